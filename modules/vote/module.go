// Package vote implements council governance: naturalization into the
// citizen ledger and the archive/restore resolution command.
package vote

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"memebot/internal/citizens"
	"memebot/internal/metrics"
	"memebot/internal/voting"
	"memebot/pkg/memebot"
)

const errorText = "You did something wrong.\nType **!help** my adult son."

// Module owns the naturalize and vote commands.
type Module struct {
	logger *slog.Logger

	sender  memebot.MessageSender
	ledger  *citizens.Ledger
	engine  *voting.Engine
	metrics *metrics.Collector
}

// Option configures the module.
type Option func(*Module)

// WithLogger replaces the default logger.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Module) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// New creates the vote module.
func New(options ...Option) *Module {
	module := &Module{logger: slog.Default()}
	for _, option := range options {
		option(module)
	}

	return module
}

// Name returns the stable module identifier.
func (m *Module) Name() string {
	return "vote"
}

// Spec declares the governance commands.
func (m *Module) Spec() memebot.ModuleSpec {
	return memebot.ModuleSpec{
		Handlers: []memebot.HandlerSpec{
			{
				Name:     "vote-commands",
				Commands: []string{"naturalize", "vote"},
				Handler:  m.handleCommand,
			},
		},
		Commands: []memebot.CommandSpec{
			{
				Name:        "naturalize",
				Usage:       "!naturalize",
				Description: "Joins the Council of Memes so you can vote.",
			},
			{
				Name:        "vote",
				Usage:       "!vote [meme] [keep/remove/abstain]",
				Description: "Allows you to vote for a meme's archival. You must be a citizen to vote. The meme will be activated/deactivated once it has recieved over 50% approval.",
			},
		},
	}
}

// OnRegister resolves the collaborating services.
func (m *Module) OnRegister(_ context.Context, runtime memebot.ModuleRuntime) error {
	services := runtime.Services()

	sender, err := memebot.ResolveAs[memebot.MessageSender](services, memebot.ServiceMessageSender)
	if err != nil {
		return fmt.Errorf("vote resolve message sender: %w", err)
	}
	ledger, err := memebot.ResolveAs[*citizens.Ledger](services, memebot.ServiceCitizenLedger)
	if err != nil {
		return fmt.Errorf("vote resolve citizen ledger: %w", err)
	}
	engine, err := memebot.ResolveAs[*voting.Engine](services, memebot.ServiceVotingEngine)
	if err != nil {
		return fmt.Errorf("vote resolve voting engine: %w", err)
	}
	collector, err := memebot.ResolveAs[*metrics.Collector](services, memebot.ServiceMetrics)
	if err != nil {
		return fmt.Errorf("vote resolve metrics: %w", err)
	}

	m.sender = sender
	m.ledger = ledger
	m.engine = engine
	m.metrics = collector

	return nil
}

// OnStart starts the module lifecycle.
func (m *Module) OnStart(_ context.Context) error {
	return nil
}

// OnShutdown stops the module lifecycle.
func (m *Module) OnShutdown(_ context.Context) error {
	return nil
}

func (m *Module) handleCommand(ctx context.Context, event *memebot.Event) error {
	if event == nil || event.Command == nil {
		return fmt.Errorf("%w: vote module requires command payload", memebot.ErrInvalidEvent)
	}

	var err error
	switch event.Command.Name {
	case "naturalize":
		err = m.naturalize(ctx, event)
	case "vote":
		err = m.vote(ctx, event)
	default:
		return fmt.Errorf("%w: command %q not owned by vote module", memebot.ErrInvalidEvent, event.Command.Name)
	}

	status := "ok"
	if err != nil {
		status = "error"
	}
	m.metrics.RecordCommand(event.Command.Name, status)

	return err
}

func (m *Module) naturalize(ctx context.Context, event *memebot.Event) error {
	added, err := m.ledger.Naturalize(event.Actor.ID, event.Actor.Username)
	if err != nil {
		return fmt.Errorf("naturalize: %w", err)
	}
	if !added {
		return m.reply(ctx, event, "You are already on the meme council you pleb")
	}

	m.logger.Info("naturalized citizen", "citizen", event.Actor.Username)

	return m.reply(ctx, event, fmt.Sprintf("Welcome, %s to the Council of Memes. May dankness guide your way.", event.Actor.Username))
}

func (m *Module) vote(ctx context.Context, event *memebot.Event) error {
	memeToken := event.Command.Arg(0)
	if memeToken == "" {
		return m.reply(ctx, event, errorText)
	}

	resolution, err := m.engine.Cast(event.Actor.ID, memeToken, event.Command.Arg(1))
	if err != nil {
		switch {
		case errors.Is(err, memebot.ErrNotFound):
			if replyErr := m.reply(ctx, event, fmt.Sprintf("Could not find meme by name: `%s`", memeToken)); replyErr != nil {
				return replyErr
			}
			return m.reply(ctx, event, errorText)
		case errors.Is(err, memebot.ErrForbidden):
			if replyErr := m.reply(ctx, event, "You must naturalize to become a citizen of memebotopia"); replyErr != nil {
				return replyErr
			}
			return m.reply(ctx, event, errorText)
		case errors.Is(err, memebot.ErrValidation):
			return m.reply(ctx, event, errorText)
		default:
			return fmt.Errorf("cast ballot: %w", err)
		}
	}

	m.metrics.RecordBallot(string(resolution.Outcome))

	return m.reply(ctx, event, renderResolution(resolution))
}

// renderResolution renders the council's running tally and outcome line.
func renderResolution(resolution voting.Resolution) string {
	var builder strings.Builder

	action := "remove"
	if resolution.WasArchived {
		action = "revive"
	}
	builder.WriteString(fmt.Sprintf("**Resolution to %s** ***%s*** **and restore memebotopia to its former glory.**\n\n", action, resolution.MemeName))

	builder.WriteString(fmt.Sprintf("yea: %d\n", resolution.Yeas))
	builder.WriteString(fmt.Sprintf("nay: %d\n", resolution.Nays))
	builder.WriteString(fmt.Sprintf("abstain: %d\n", resolution.Abstains))
	builder.WriteString(fmt.Sprintf("no vote: %d\n", resolution.NoVotes))

	switch resolution.Outcome {
	case voting.OutcomeStruckDown:
		builder.WriteString("\nThe neas have it! The resolution is struck down.")
	case voting.OutcomePassed:
		result := "archived"
		if resolution.WasArchived {
			result = "unarchived"
		}
		builder.WriteString(fmt.Sprintf("\nThe ayes have it! The resolution is passed. The meme, %s, has been %s.", resolution.MemeName, result))
	case voting.OutcomeGridlock:
		builder.WriteString("\nGridlock! The resolution dies.")
	default:
		builder.WriteString(fmt.Sprintf("\n%d more yea(s) needed to pass this resolution.", resolution.YeasNeeded))
	}

	return builder.String()
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
