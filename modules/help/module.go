// Package help renders the command reference from the kernel's command
// catalog.
package help

import (
	"context"
	"fmt"
	"strings"

	"memebot/pkg/memebot"
)

const helpCommandName = "help"

// playbackUsage documents the bare ![meme] invocation, which is a fallback
// rather than a registered command and so never appears in the catalog.
const playbackUsage = "![meme]  \nPlays an audio meme on your currently connected voice channel.\n\n"

// Module replies with the rendered command reference for !help.
type Module struct {
	sender  memebot.MessageSender
	catalog memebot.CommandCatalog
}

// New creates the help module.
func New() *Module {
	return &Module{}
}

// Name returns the stable module identifier.
func (m *Module) Name() string {
	return "help"
}

// Spec declares the help command.
func (m *Module) Spec() memebot.ModuleSpec {
	return memebot.ModuleSpec{
		Handlers: []memebot.HandlerSpec{
			{
				Name:     "help-command",
				Commands: []string{helpCommandName},
				Handler:  m.handleCommand,
			},
		},
		Commands: []memebot.CommandSpec{
			{
				Name:        helpCommandName,
				Usage:       "!help ",
				Description: "This message.",
			},
		},
	}
}

// OnRegister resolves outbound dependencies required by this module.
func (m *Module) OnRegister(_ context.Context, runtime memebot.ModuleRuntime) error {
	sender, err := memebot.ResolveAs[memebot.MessageSender](runtime.Services(), memebot.ServiceMessageSender)
	if err != nil {
		return fmt.Errorf("help resolve message sender: %w", err)
	}
	catalog, err := memebot.ResolveAs[memebot.CommandCatalog](runtime.Services(), memebot.ServiceCommandCatalog)
	if err != nil {
		return fmt.Errorf("help resolve command catalog: %w", err)
	}

	m.sender = sender
	m.catalog = catalog

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
		return fmt.Errorf("%w: help module requires command payload", memebot.ErrInvalidEvent)
	}

	registered, err := m.catalog.ListCommands(ctx)
	if err != nil {
		return fmt.Errorf("list commands: %w", err)
	}

	err = m.sender.SendMessage(ctx, memebot.SendMessageRequest{
		ChannelID: event.Conversation.ID,
		Text:      render(registered),
	})
	if err != nil {
		return fmt.Errorf("send help: %w", err)
	}

	return nil
}

func render(registered []memebot.RegisteredCommand) string {
	var builder strings.Builder
	builder.WriteString("```")
	builder.WriteString(playbackUsage)
	for _, entry := range registered {
		usage := entry.Command.Usage
		if usage == "" {
			usage = memebot.CommandPrefix + entry.Command.Name
		}
		builder.WriteString(usage)
		builder.WriteString("\n")
		builder.WriteString(entry.Command.Description)
		builder.WriteString("\n\n")
	}

	return strings.TrimSuffix(builder.String(), "\n\n") + "```"
}

var _ memebot.Module = (*Module)(nil)
