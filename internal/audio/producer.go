package audio

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"sync"

	"github.com/kkdai/youtube/v2"

	"memebot/pkg/memebot"
)

// Producer pulls audio from a video source and transcodes the requested
// window into an mp3 asset. Production runs in the background; while it is
// in flight the asset is marked blocked so playback silently skips it.
type Producer struct {
	store  *Store
	client *youtube.Client
	logger *slog.Logger

	mu      sync.Mutex
	blocked map[string]struct{}
}

// ProducerOption configures a Producer.
type ProducerOption func(*Producer)

// WithProducerLogger replaces the default logger.
func WithProducerLogger(logger *slog.Logger) ProducerOption {
	return func(p *Producer) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// NewProducer creates a producer writing assets into store.
func NewProducer(store *Store, options ...ProducerOption) *Producer {
	producer := &Producer{
		store:   store,
		client:  &youtube.Client{},
		logger:  slog.Default(),
		blocked: make(map[string]struct{}),
	}
	for _, option := range options {
		option(producer)
	}

	return producer
}

// Blocked reports whether the asset is still being produced.
func (p *Producer) Blocked(fileName string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	_, blocked := p.blocked[fileName]

	return blocked
}

func (p *Producer) block(fileName string) {
	p.mu.Lock()
	p.blocked[fileName] = struct{}{}
	p.mu.Unlock()
}

func (p *Producer) unblock(fileName string) {
	p.mu.Lock()
	delete(p.blocked, fileName)
	p.mu.Unlock()
}

// Produce starts asset production and returns its completion signal. The
// source is resolved synchronously so argument errors surface to the caller;
// the transcode runs detached from the caller's context because the command
// reply is sent before production finishes.
func (p *Producer) Produce(ctx context.Context, request memebot.ProduceAssetRequest) (<-chan error, error) {
	if request.SourceURL == "" || request.FileName == "" {
		return nil, fmt.Errorf("%w: missing source url or file name", memebot.ErrValidation)
	}

	video, err := p.client.GetVideoContext(ctx, request.SourceURL)
	if err != nil {
		return nil, fmt.Errorf("resolve video source: %w", err)
	}
	formats := video.Formats.WithAudioChannels()
	if len(formats) == 0 {
		return nil, fmt.Errorf("%w: source has no audio stream", memebot.ErrValidation)
	}
	stream, _, err := p.client.GetStreamContext(ctx, video, &formats[0])
	if err != nil {
		return nil, fmt.Errorf("open video stream: %w", err)
	}

	p.block(request.FileName)
	done := make(chan error, 1)

	produceCtx := context.WithoutCancel(ctx)
	go func() {
		defer stream.Close()
		defer p.unblock(request.FileName)

		err := p.transcode(produceCtx, stream, request)
		if err != nil {
			p.logger.Error("asset production failed", "file", request.FileName, "error", err)
		} else {
			p.logger.Info("asset produced", "file", request.FileName)
		}
		done <- err
	}()

	return done, nil
}

// transcode pipes the source stream through ffmpeg, trimming to the
// requested window and stripping the xing header so players report
// accurate durations.
func (p *Producer) transcode(ctx context.Context, stream io.Reader, request memebot.ProduceAssetRequest) error {
	args := []string{"-i", "pipe:0", "-vn"}
	if request.StartTime != "" {
		args = append(args, "-ss", request.StartTime)
	}
	if request.EndTime != "" {
		args = append(args, "-to", request.EndTime)
	}
	args = append(args, "-write_xing", "0", "-f", "mp3", "-y", p.store.Path(request.FileName))

	cmd := exec.CommandContext(ctx, "ffmpeg", args...)
	cmd.Stdin = stream
	if output, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("ffmpeg: %w: %s", err, output)
	}

	return nil
}

var _ memebot.AssetProducer = (*Producer)(nil)
