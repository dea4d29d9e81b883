package memebot

import (
	"context"
	"fmt"
)

// MessageSender delivers outbound text to a destination conversation.
//
// Delivery is fire-and-forget from the caller's perspective: failures are
// reported but never retried by the sender.
type MessageSender interface {
	// SendMessage publishes a new outbound message.
	SendMessage(ctx context.Context, request SendMessageRequest) error
}

// SendMessageRequest describes one outbound text message.
type SendMessageRequest struct {
	// ChannelID is the destination conversation identifier.
	ChannelID string
	// Text is the message body.
	Text string
}

// Validate checks the request envelope before dispatch.
func (r SendMessageRequest) Validate() error {
	if r.ChannelID == "" {
		return fmt.Errorf("%w: missing channel id", ErrValidation)
	}
	if r.Text == "" {
		return fmt.Errorf("%w: missing message text", ErrValidation)
	}

	return nil
}

// AssetProducer produces an audio asset from a source reference.
//
// Production runs in the background; the returned channel delivers exactly
// one terminal result. The asset is unavailable for playback until the
// channel fires with a nil error.
type AssetProducer interface {
	// Produce starts asset production and returns its completion signal.
	Produce(ctx context.Context, request ProduceAssetRequest) (<-chan error, error)
}

// ProduceAssetRequest describes one audio asset production job.
type ProduceAssetRequest struct {
	// SourceURL references the video source to pull audio from.
	SourceURL string
	// StartTime is the trim start bound (seconds or hh:mm:ss, decimals allowed).
	StartTime string
	// EndTime is the trim end bound.
	EndTime string
	// FileName is the desired asset file name relative to the audio directory.
	FileName string
}

// AssetStore removes produced audio assets.
type AssetStore interface {
	// Remove deletes the named asset. Missing assets are not an error.
	Remove(fileName string) error
	// NewFileName returns a collision-free asset file name for base.
	NewFileName(base string) string
}

// AudioPlayer plays one audio asset into a voice channel.
//
// Playback holds a single global slot: a request received while another
// playback is active, or while the asset is still being produced, is dropped
// with no effect and a nil error.
type AudioPlayer interface {
	// Play streams the asset into the requested voice channel.
	Play(ctx context.Context, request PlayRequest) error
	// Busy reports whether the playback slot is currently held.
	Busy() bool
}

// PlayRequest describes one playback request.
type PlayRequest struct {
	// Voice is the destination voice channel.
	Voice VoiceState
	// FileName is the asset file name relative to the audio directory.
	FileName string
	// VolumeModifier scales the base playback volume; 1.0 is unmodified.
	VolumeModifier float64
}

// CommandCatalog lists registered commands for help rendering.
type CommandCatalog interface {
	// ListCommands returns all registered command specs.
	ListCommands(ctx context.Context) ([]RegisteredCommand, error)
}

// RegisteredCommand pairs a command spec with its owning module.
type RegisteredCommand struct {
	// ModuleName identifies the module that registered the command.
	ModuleName string
	// Command is the registered command spec.
	Command CommandSpec
}

// Notifier raises out-of-band operator alerts.
type Notifier interface {
	// Notify sends one alert. Failures are logged by implementations, never fatal.
	Notify(ctx context.Context, title, message string) error
}
