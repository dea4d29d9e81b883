// Package discord adapts the Discord gateway into neutral memebot events
// and carries outbound messages and voice playback back to the platform.
package discord

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/bwmarrin/discordgo"

	"memebot/pkg/memebot"
)

const defaultPublishTimeout = 2 * time.Second

// driverConfig contains runtime controls for publish timeout and error reporting.
type driverConfig struct {
	name           string
	publishTimeout time.Duration
	logger         *slog.Logger
}

// DriverOption mutates Discord driver configuration.
type DriverOption func(*driverConfig)

// WithName configures the driver identity exposed to the kernel.
func WithName(name string) DriverOption {
	return func(cfg *driverConfig) {
		if name != "" {
			cfg.name = name
		}
	}
}

// WithPublishTimeout configures sink publish timeout per event.
func WithPublishTimeout(timeout time.Duration) DriverOption {
	return func(cfg *driverConfig) {
		if timeout > 0 {
			cfg.publishTimeout = timeout
		}
	}
}

// WithLogger replaces the default logger.
func WithLogger(logger *slog.Logger) DriverOption {
	return func(cfg *driverConfig) {
		if logger != nil {
			cfg.logger = logger
		}
	}
}

// NewSession creates a gateway session with the intents the bot requires.
func NewSession(token string) (*discordgo.Session, error) {
	session, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, fmt.Errorf("new discord session: %w", err)
	}
	session.Identify.Intents = discordgo.IntentsGuilds |
		discordgo.IntentsGuildMessages |
		discordgo.IntentsGuildVoiceStates |
		discordgo.IntentsDirectMessages |
		discordgo.IntentMessageContent
	session.State.TrackVoice = true

	return session, nil
}

// Driver adapts Discord gateway updates into neutral memebot events.
type Driver struct {
	cfg     driverConfig
	session *discordgo.Session
	decoder Decoder

	mu     sync.Mutex
	guilds map[string]struct{}
}

// NewDriver creates a Discord driver over an unopened session.
func NewDriver(session *discordgo.Session, decoder Decoder, options ...DriverOption) (*Driver, error) {
	if session == nil {
		return nil, fmt.Errorf("new discord driver: nil session")
	}
	if decoder == nil {
		return nil, fmt.Errorf("new discord driver: nil decoder")
	}

	cfg := driverConfig{
		name:           DriverType,
		publishTimeout: defaultPublishTimeout,
		logger:         slog.Default(),
	}
	for _, option := range options {
		option(&cfg)
	}

	return &Driver{
		cfg:     cfg,
		session: session,
		decoder: decoder,
		guilds:  make(map[string]struct{}),
	}, nil
}

// Name returns the stable driver identifier.
func (d *Driver) Name() string {
	return d.cfg.name
}

// Start opens the gateway connection, publishes decoded events until the
// context is cancelled, then returns.
func (d *Driver) Start(ctx context.Context, sink memebot.EventSink) error {
	if sink == nil {
		return fmt.Errorf("start discord driver: nil sink")
	}

	removeMessage := d.session.AddHandler(func(_ *discordgo.Session, message *discordgo.MessageCreate) {
		if message.Author == nil {
			return
		}
		d.handleUpdate(ctx, sink, d.messageUpdate(message))
	})
	defer removeMessage()
	removeReady := d.session.AddHandler(func(_ *discordgo.Session, ready *discordgo.Ready) {
		d.recordReadyGuilds(ready)
	})
	defer removeReady()
	removeGuild := d.session.AddHandler(func(_ *discordgo.Session, guild *discordgo.GuildCreate) {
		if !d.markGuildSeen(guild.ID) {
			return
		}
		d.handleUpdate(ctx, sink, guildUpdate(guild))
	})
	defer removeGuild()

	if err := d.session.Open(); err != nil {
		return fmt.Errorf("start discord driver: open gateway: %w", err)
	}
	d.cfg.logger.Info("discord gateway connected")

	<-ctx.Done()

	return nil
}

// Shutdown closes the gateway connection.
func (d *Driver) Shutdown(_ context.Context) error {
	if err := d.session.Close(); err != nil {
		return fmt.Errorf("shutdown discord driver: %w", err)
	}

	return nil
}

// recordReadyGuilds marks every guild listed in the READY payload as known.
// The gateway replays a GuildCreate for each of them after READY on every
// connect, and those replays must not count as joins.
func (d *Driver) recordReadyGuilds(ready *discordgo.Ready) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, guild := range ready.Guilds {
		d.guilds[guild.ID] = struct{}{}
	}
}

// markGuildSeen records the guild ID and reports whether it was previously
// unknown, meaning the GuildCreate is a genuine join rather than a READY
// replay or a reconnect duplicate.
func (d *Driver) markGuildSeen(id string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, known := d.guilds[id]; known {
		return false
	}
	d.guilds[id] = struct{}{}

	return true
}

// handleUpdate decodes one platform update and publishes it with bounded latency.
func (d *Driver) handleUpdate(ctx context.Context, sink memebot.EventSink, update Update) {
	event, err := d.decoder.Decode(ctx, update)
	if err != nil {
		d.cfg.logger.Error("decode discord update", "type", update.Type, "error", err)
		return
	}
	if event == nil {
		return
	}

	publishCtx, cancel := context.WithTimeout(ctx, d.cfg.publishTimeout)
	defer cancel()
	if err := sink.Publish(publishCtx, event); err != nil {
		d.cfg.logger.Error("publish discord event", "kind", event.Kind, "error", err)
	}
}

// messageUpdate maps an inbound message to the neutral DTO, attaching the
// author's current voice channel from session state when they occupy one.
func (d *Driver) messageUpdate(message *discordgo.MessageCreate) Update {
	update := Update{
		Type:       UpdateTypeMessage,
		ID:         message.ID,
		OccurredAt: message.Timestamp,
		Chat: Chat{
			ID:      message.ChannelID,
			GuildID: message.GuildID,
		},
		Actor: Actor{
			ID:       message.Author.ID,
			Username: message.Author.Username,
			IsBot:    message.Author.Bot,
		},
		Text: message.Content,
	}

	if message.GuildID != "" {
		if voiceState, err := d.session.State.VoiceState(message.GuildID, message.Author.ID); err == nil && voiceState != nil {
			update.Voice = &memebot.VoiceState{
				GuildID:   voiceState.GuildID,
				ChannelID: voiceState.ChannelID,
			}
		}
	}

	return update
}

func guildUpdate(guild *discordgo.GuildCreate) Update {
	return Update{
		Type:       UpdateTypeGuildJoin,
		ID:         guild.ID,
		OccurredAt: time.Now().UTC(),
	}
}

var _ memebot.Driver = (*Driver)(nil)
