package audio

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync/atomic"

	"github.com/bwmarrin/discordgo"
	"github.com/jonas747/dca"

	"memebot/pkg/memebot"
)

// baseVolume halves full scale before the per-meme modifier applies; dca's
// nominal volume is 256.
const baseVolume = 0.5

// Player streams stored assets into Discord voice channels. It holds a
// single global playback slot: requests arriving while a playback is active,
// or while the asset is still being produced, are dropped with no effect.
type Player struct {
	session *discordgo.Session
	store   *Store
	blocked func(fileName string) bool
	logger  *slog.Logger

	playing atomic.Bool
}

// PlayerOption configures a Player.
type PlayerOption func(*Player)

// WithPlayerLogger replaces the default logger.
func WithPlayerLogger(logger *slog.Logger) PlayerOption {
	return func(p *Player) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// NewPlayer creates a player streaming through session. blocked reports
// whether an asset is still under production; nil means nothing is blocked.
func NewPlayer(session *discordgo.Session, store *Store, blocked func(fileName string) bool, options ...PlayerOption) *Player {
	player := &Player{
		session: session,
		store:   store,
		blocked: blocked,
		logger:  slog.Default(),
	}
	for _, option := range options {
		option(player)
	}

	return player
}

// Busy reports whether the playback slot is currently held.
func (p *Player) Busy() bool {
	return p.playing.Load()
}

// Play starts streaming the asset into the requested voice channel and
// returns immediately; the stream runs until the asset ends. A dropped
// request returns nil so callers stay silent, matching the exclusivity rule.
func (p *Player) Play(ctx context.Context, request memebot.PlayRequest) error {
	if request.Voice.GuildID == "" || request.Voice.ChannelID == "" {
		return fmt.Errorf("%w: missing voice channel", memebot.ErrValidation)
	}
	if request.FileName == "" {
		return fmt.Errorf("%w: missing asset file name", memebot.ErrValidation)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	if p.blocked != nil && p.blocked(request.FileName) {
		p.logger.Debug("dropping playback of blocked asset", "file", request.FileName)
		return nil
	}
	if !p.playing.CompareAndSwap(false, true) {
		p.logger.Debug("dropping playback while another is active", "file", request.FileName)
		return nil
	}

	go p.stream(request)

	return nil
}

func (p *Player) stream(request memebot.PlayRequest) {
	defer p.playing.Store(false)

	voice, err := p.session.ChannelVoiceJoin(request.Voice.GuildID, request.Voice.ChannelID, false, true)
	if err != nil {
		p.logger.Error("join voice channel", "channel", request.Voice.ChannelID, "error", err)
		return
	}
	defer func() {
		if err := voice.Disconnect(); err != nil {
			p.logger.Error("leave voice channel", "channel", request.Voice.ChannelID, "error", err)
		}
	}()

	options := *dca.StdEncodeOptions
	options.Volume = encodeVolume(request.VolumeModifier)
	options.RawOutput = true

	encodeSession, err := dca.EncodeFile(p.store.Path(request.FileName), &options)
	if err != nil {
		p.logger.Error("encode asset", "file", request.FileName, "error", err)
		return
	}
	defer encodeSession.Cleanup()

	if err := voice.Speaking(true); err != nil {
		p.logger.Error("signal speaking", "error", err)
		return
	}
	defer func() {
		if err := voice.Speaking(false); err != nil {
			p.logger.Error("clear speaking", "error", err)
		}
	}()

	p.logger.Info("playing asset", "file", request.FileName)
	done := make(chan error, 1)
	dca.NewStream(encodeSession, voice, done)
	if err := <-done; err != nil && err != io.EOF {
		p.logger.Error("stream asset", "file", request.FileName, "error", err)
		return
	}
	p.logger.Info("stopped playing asset", "file", request.FileName)
}

// encodeVolume converts the per-meme modifier into dca's 256-based scale.
// Zero is a valid modifier and silences playback; only negative values fall
// back to full volume.
func encodeVolume(modifier float64) int {
	if modifier < 0 {
		modifier = 1
	}

	return int(256 * baseVolume * modifier)
}

var _ memebot.AudioPlayer = (*Player)(nil)
