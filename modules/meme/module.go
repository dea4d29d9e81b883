// Package meme implements the registry-facing commands: registration,
// deletion, aliasing, listing, volume, info, random playback, and the bare
// ![meme] playback fallback.
package meme

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"strconv"
	"strings"
	"time"

	"memebot/internal/citizens"
	"memebot/internal/metrics"
	"memebot/internal/registry"
	"memebot/internal/stats"
	"memebot/pkg/memebot"
)

const errorText = "You did something wrong.\nType **!help** my adult son."

// Module owns the meme collection commands and audio playback dispatch.
type Module struct {
	adminID     string
	randomIndex func(n int) int
	logger      *slog.Logger

	sender   memebot.MessageSender
	registry *registry.Registry
	ledger   *citizens.Ledger
	stats    *stats.Aggregator
	producer memebot.AssetProducer
	assets   memebot.AssetStore
	player   memebot.AudioPlayer
	metrics  *metrics.Collector
}

// Option configures the module.
type Option func(*Module)

// WithAdminID grants one static identity direct delete access to every meme.
func WithAdminID(id string) Option {
	return func(m *Module) {
		m.adminID = id
	}
}

// WithRandomSource overrides the random meme picker.
func WithRandomSource(pick func(n int) int) Option {
	return func(m *Module) {
		if pick != nil {
			m.randomIndex = pick
		}
	}
}

// WithLogger replaces the default logger.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Module) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// New creates the meme module.
func New(options ...Option) *Module {
	module := &Module{
		randomIndex: rand.IntN,
		logger:      slog.Default(),
	}
	for _, option := range options {
		option(module)
	}

	return module
}

// Name returns the stable module identifier.
func (m *Module) Name() string {
	return "meme"
}

// Spec declares the registry commands, the playback fallback, and the
// guild-join counter feed.
func (m *Module) Spec() memebot.ModuleSpec {
	return memebot.ModuleSpec{
		Handlers: []memebot.HandlerSpec{
			{
				Name:     "meme-commands",
				Commands: []string{"add", "delete", "alias", "list", "info", "volume", "random"},
				Handler:  m.handleCommand,
			},
			{
				Name:     "meme-play",
				Fallback: true,
				Handler:  m.handlePlay,
			},
			{
				Name:    "meme-guild-join",
				Kinds:   []memebot.EventKind{memebot.EventKindGuildJoined},
				Handler: m.handleGuildJoin,
			},
		},
		Commands: []memebot.CommandSpec{
			{
				Name:        "add",
				Usage:       "!add [youtube link] [start time] [end time] [command 1, command 2, ...]",
				Description: "Adds a meme from a youtube video, pulling audio from the start time to the end time. The name of the first command becomes the name of the meme. Start time and end time can take in seconds, hh:mm:ss format, and even decimals.",
			},
			{
				Name:        "delete",
				Usage:       "!delete [meme]",
				Description: "Deletes the meme that with this name, if you were the person who added it.",
			},
			{
				Name:        "alias",
				Usage:       "!alias [add/remove] [meme] [command 1, command 2, ...]",
				Description: "Adds or removes commands for the meme. Cannot remove the first command given to the meme.",
			},
			{
				Name:        "list",
				Usage:       "!list [most/least/newest/oldest/archives/votes/all]",
				Description: "A list of memes. If no modifier is given, the list defaults to unarchived memes ordered by the most times played.",
			},
			{
				Name:        "info",
				Usage:       "!info [meme]",
				Description: "Displays stats and alternate commands for a meme.",
			},
			{
				Name:        "volume",
				Usage:       "!volume [meme] [audio modifier]",
				Description: "Sets an audio modifier for the meme, such that 0.5 is half the normal volume and 2.0 is twice the normal volume.",
			},
			{
				Name:        "random",
				Usage:       "!random",
				Description: "Plays a random meme.",
			},
		},
	}
}

// OnRegister resolves the collaborating services.
func (m *Module) OnRegister(_ context.Context, runtime memebot.ModuleRuntime) error {
	services := runtime.Services()

	sender, err := memebot.ResolveAs[memebot.MessageSender](services, memebot.ServiceMessageSender)
	if err != nil {
		return fmt.Errorf("meme resolve message sender: %w", err)
	}
	reg, err := memebot.ResolveAs[*registry.Registry](services, memebot.ServiceMemeRegistry)
	if err != nil {
		return fmt.Errorf("meme resolve meme registry: %w", err)
	}
	ledger, err := memebot.ResolveAs[*citizens.Ledger](services, memebot.ServiceCitizenLedger)
	if err != nil {
		return fmt.Errorf("meme resolve citizen ledger: %w", err)
	}
	aggregator, err := memebot.ResolveAs[*stats.Aggregator](services, memebot.ServiceStatsAggregator)
	if err != nil {
		return fmt.Errorf("meme resolve stats aggregator: %w", err)
	}
	producer, err := memebot.ResolveAs[memebot.AssetProducer](services, memebot.ServiceAssetProducer)
	if err != nil {
		return fmt.Errorf("meme resolve asset producer: %w", err)
	}
	assets, err := memebot.ResolveAs[memebot.AssetStore](services, memebot.ServiceAssetStore)
	if err != nil {
		return fmt.Errorf("meme resolve asset store: %w", err)
	}
	player, err := memebot.ResolveAs[memebot.AudioPlayer](services, memebot.ServiceAudioPlayer)
	if err != nil {
		return fmt.Errorf("meme resolve audio player: %w", err)
	}
	collector, err := memebot.ResolveAs[*metrics.Collector](services, memebot.ServiceMetrics)
	if err != nil {
		return fmt.Errorf("meme resolve metrics: %w", err)
	}

	m.sender = sender
	m.registry = reg
	m.ledger = ledger
	m.stats = aggregator
	m.producer = producer
	m.assets = assets
	m.player = player
	m.metrics = collector

	return nil
}

// OnStart starts the module lifecycle.
func (m *Module) OnStart(_ context.Context) error {
	m.metrics.SetMemeCount(m.registry.Len())
	return nil
}

// OnShutdown stops the module lifecycle.
func (m *Module) OnShutdown(_ context.Context) error {
	return nil
}

func (m *Module) handleCommand(ctx context.Context, event *memebot.Event) error {
	if event == nil || event.Command == nil {
		return fmt.Errorf("%w: meme module requires command payload", memebot.ErrInvalidEvent)
	}

	var err error
	switch event.Command.Name {
	case "add":
		err = m.add(ctx, event)
	case "delete":
		err = m.delete(ctx, event)
	case "alias":
		err = m.alias(ctx, event)
	case "list":
		err = m.list(ctx, event)
	case "info":
		err = m.info(ctx, event)
	case "volume":
		err = m.volume(ctx, event)
	case "random":
		err = m.random(ctx, event)
	default:
		return fmt.Errorf("%w: command %q not owned by meme module", memebot.ErrInvalidEvent, event.Command.Name)
	}

	status := "ok"
	if err != nil {
		status = "error"
	}
	m.metrics.RecordCommand(event.Command.Name, status)

	return err
}

func (m *Module) add(ctx context.Context, event *memebot.Event) error {
	command := event.Command
	if len(command.Args) < 4 {
		return m.reply(ctx, event, errorText)
	}

	sourceURL := command.Arg(0)
	startTime := command.Arg(1)
	endTime := command.Arg(2)
	tokens := command.Args[3:]

	primary := registry.SanitizeToken(tokens[0])
	if primary == "" {
		return m.reply(ctx, event, errorText)
	}
	fileName := m.assets.NewFileName(primary)

	meme, err := m.registry.Register(tokens, event.Actor.Username, event.Actor.ID, fileName)
	if err != nil {
		var conflict *registry.ConflictError
		switch {
		case errors.As(err, &conflict):
			for _, token := range conflict.Reserved {
				if replyErr := m.reply(ctx, event, fmt.Sprintf("The command **%s** is a reserved word. Please use a different name.", token)); replyErr != nil {
					return replyErr
				}
			}
			for _, token := range conflict.Taken {
				if replyErr := m.reply(ctx, event, fmt.Sprintf("The command **%s** already exists! Please delete it first.", token)); replyErr != nil {
					return replyErr
				}
			}
			return nil
		case errors.Is(err, memebot.ErrValidation):
			return m.reply(ctx, event, errorText)
		default:
			return fmt.Errorf("register meme: %w", err)
		}
	}

	m.stats.InitCounter(meme.Name)
	m.metrics.SetMemeCount(m.registry.Len())

	if _, err := m.producer.Produce(ctx, memebot.ProduceAssetRequest{
		SourceURL: sourceURL,
		StartTime: startTime,
		EndTime:   endTime,
		FileName:  fileName,
	}); err != nil {
		m.logger.Error("produce asset", "meme", meme.Name, "error", err)
		return m.reply(ctx, event, errorText)
	}

	m.logger.Info("added meme", "meme", meme.Name, "author", event.Actor.Username)

	return m.reply(ctx, event, "Added "+meme.Name)
}

func (m *Module) delete(ctx context.Context, event *memebot.Event) error {
	token := event.Command.Arg(0)
	if token == "" {
		return m.reply(ctx, event, errorText)
	}
	index, exists := m.registry.Resolve(token)
	if !exists {
		if err := m.reply(ctx, event, fmt.Sprintf("Could not find meme by name: `%s`", token)); err != nil {
			return err
		}
		return m.reply(ctx, event, errorText)
	}

	meme := m.registry.Meme(index)
	if !registry.HasAccess(meme, event.Actor.ID, m.adminID) {
		return m.reply(ctx, event, "Only the author may delete memes. Vote for a deletion with the !vote command.")
	}

	deleted, err := m.registry.Delete(index)
	if err != nil {
		return fmt.Errorf("delete meme: %w", err)
	}
	if err := m.ledger.ClearVotes(deleted.Name); err != nil {
		m.logger.Error("clear ballots for deleted meme", "meme", deleted.Name, "error", err)
	}
	m.stats.RemoveCounter(deleted.Name)
	if err := m.assets.Remove(deleted.File); err != nil {
		m.logger.Error("remove asset for deleted meme", "file", deleted.File, "error", err)
	}
	m.metrics.SetMemeCount(m.registry.Len())

	return m.reply(ctx, event, fmt.Sprintf("Deleted `%s`", token))
}

func (m *Module) alias(ctx context.Context, event *memebot.Event) error {
	command := event.Command
	if len(command.Args) < 3 {
		return m.reply(ctx, event, errorText)
	}

	token := command.Arg(1)
	index, exists := m.registry.Resolve(token)
	if !exists {
		if err := m.reply(ctx, event, fmt.Sprintf("Could not find meme by name: `%s`", token)); err != nil {
			return err
		}
		return m.reply(ctx, event, errorText)
	}
	meme := m.registry.Meme(index)

	switch strings.ToLower(command.Arg(0)) {
	case "add":
		added, err := m.registry.AddAliases(index, command.Args[2:])
		if err != nil {
			return fmt.Errorf("add aliases: %w", err)
		}
		switch len(added) {
		case 0:
			return m.reply(ctx, event, "No valid commands supplied for "+meme.Name)
		case 1:
			return m.reply(ctx, event, fmt.Sprintf("Added command to %s: `%s`", meme.Name, added[0]))
		default:
			return m.reply(ctx, event, fmt.Sprintf("Added commands to %s: `%s`", meme.Name, strings.Join(added, ", ")))
		}
	case "remove":
		removed, err := m.registry.RemoveAliases(index, command.Args[2:])
		if err != nil {
			return fmt.Errorf("remove aliases: %w", err)
		}
		switch len(removed) {
		case 0:
			return m.reply(ctx, event, "No valid commands supplied for "+meme.Name)
		case 1:
			return m.reply(ctx, event, fmt.Sprintf("Removed command from %s: `%s`", meme.Name, removed[0]))
		default:
			return m.reply(ctx, event, fmt.Sprintf("Removed commands from %s: `%s`", meme.Name, strings.Join(removed, ", ")))
		}
	default:
		return m.reply(ctx, event, errorText)
	}
}

func (m *Module) list(ctx context.Context, event *memebot.Event) error {
	filter, err := registry.ParseListFilter(event.Command.Arg(0))
	if err != nil {
		return m.reply(ctx, event, errorText)
	}

	names := m.registry.List(filter, m.ledger.All())

	return m.reply(ctx, event, registry.RenderList(names))
}

func (m *Module) info(ctx context.Context, event *memebot.Event) error {
	token := event.Command.Arg(0)
	if token == "" {
		return m.reply(ctx, event, errorText)
	}
	index, exists := m.registry.Resolve(token)
	if !exists {
		return m.reply(ctx, event, fmt.Sprintf("Could not find meme by name: `%s`", token))
	}

	meme := m.registry.Meme(index)
	status := "active"
	if meme.Archived {
		status = "archived"
	}

	var builder strings.Builder
	builder.WriteString("```name: " + meme.Name)
	builder.WriteString("\ncommands: " + strings.Join(meme.Commands, ", "))
	builder.WriteString("\nauthor: " + meme.Author)
	builder.WriteString("\nlast played: " + meme.LastPlayed.Format(time.RFC1123))
	builder.WriteString("\ndate added: " + meme.DateAdded.Format("Mon Jan 02 2006"))
	builder.WriteString("\naudio modifier: " + strconv.FormatFloat(meme.AudioModifier, 'g', -1, 64))
	builder.WriteString("\nplay count: " + strconv.Itoa(meme.PlayCount))
	builder.WriteString("\nglobal play count: " + strconv.Itoa(m.stats.PendingCount(meme.Name)))
	builder.WriteString("\nstatus: " + status + "```")

	return m.reply(ctx, event, builder.String())
}

func (m *Module) volume(ctx context.Context, event *memebot.Event) error {
	command := event.Command
	if len(command.Args) < 2 {
		return m.reply(ctx, event, errorText)
	}

	modifier, err := strconv.ParseFloat(command.Arg(1), 64)
	if err != nil || modifier < 0 {
		return m.reply(ctx, event, errorText)
	}

	token := command.Arg(0)
	index, exists := m.registry.Resolve(token)
	if !exists {
		return m.reply(ctx, event, fmt.Sprintf("Could not find meme by name: `%s`", token))
	}
	if err := m.registry.SetVolume(index, modifier); err != nil {
		return fmt.Errorf("set volume: %w", err)
	}

	return m.reply(ctx, event, fmt.Sprintf("The audio modifier of %s has been set to: `%s`", token, command.Arg(1)))
}

func (m *Module) random(ctx context.Context, event *memebot.Event) error {
	if event.Voice == nil {
		return m.reply(ctx, event, "You must join a voice channel to play the dank memes")
	}

	active := make([]*memebot.Meme, 0, m.registry.Len())
	for _, meme := range m.registry.All() {
		if !meme.Archived {
			active = append(active, meme)
		}
	}
	if len(active) == 0 {
		return m.reply(ctx, event, "```No memes :'(```")
	}

	meme := active[m.randomIndex(len(active))]
	if !m.player.Busy() {
		if err := m.reply(ctx, event, "Playing "+meme.Name); err != nil {
			return err
		}
	}

	return m.player.Play(ctx, memebot.PlayRequest{
		Voice:          *event.Voice,
		FileName:       meme.File,
		VolumeModifier: meme.AudioModifier,
	})
}

// handlePlay consumes command events that matched no registered command: a
// bare ![meme] invocation.
func (m *Module) handlePlay(ctx context.Context, event *memebot.Event) error {
	if event == nil || event.Command == nil {
		return fmt.Errorf("%w: playback requires command payload", memebot.ErrInvalidEvent)
	}
	// Legacy reserved tokens like airhorn and mb reach the fallback because
	// no handler owns them. They are dropped without a reply.
	if m.registry.IsReserved(event.Command.Name) {
		return nil
	}
	if event.Voice == nil {
		return m.reply(ctx, event, "You must join a voice channel to play the dank memes")
	}

	token := event.Command.Name
	index, exists := m.registry.Resolve(token)
	if !exists {
		text := fmt.Sprintf("Could not find meme by name: `%s`", token)
		if suggestion, found := m.registry.Suggest(token); found {
			text += fmt.Sprintf("\nDid you mean: `%s`?", suggestion)
		}
		return m.reply(ctx, event, text)
	}

	meme := m.registry.Meme(index)
	if meme.Archived {
		return m.reply(ctx, event, fmt.Sprintf("Cannot play archived meme: `%s`", token))
	}

	if err := m.player.Play(ctx, memebot.PlayRequest{
		Voice:          *event.Voice,
		FileName:       meme.File,
		VolumeModifier: meme.AudioModifier,
	}); err != nil {
		return fmt.Errorf("play meme: %w", err)
	}

	if err := m.registry.RecordPlay(index); err != nil {
		m.logger.Error("record play", "meme", meme.Name, "error", err)
	}
	m.stats.RecordPlay(meme.Name)
	m.metrics.RecordPlay()

	return nil
}

func (m *Module) handleGuildJoin(_ context.Context, event *memebot.Event) error {
	m.stats.RecordGuildJoin()
	m.logger.Info("joined guild", "guild", event.Conversation.GuildID)

	return nil
}

func (m *Module) reply(ctx context.Context, event *memebot.Event, text string) error {
	err := m.sender.SendMessage(ctx, memebot.SendMessageRequest{
		ChannelID: event.Conversation.ID,
		Text:      text,
	})
	if err != nil {
		return fmt.Errorf("send reply: %w", err)
	}

	return nil
}

var _ memebot.Module = (*Module)(nil)
