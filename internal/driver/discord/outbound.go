package discord

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/bwmarrin/discordgo"

	"memebot/pkg/memebot"
)

// Sender delivers outbound text messages through the gateway session.
type Sender struct {
	session *discordgo.Session
	logger  *slog.Logger
}

// NewSender creates a message sender over session.
func NewSender(session *discordgo.Session, logger *slog.Logger) *Sender {
	if logger == nil {
		logger = slog.Default()
	}

	return &Sender{session: session, logger: logger}
}

// SendMessage publishes one outbound message to its destination channel.
func (s *Sender) SendMessage(ctx context.Context, request memebot.SendMessageRequest) error {
	if err := request.Validate(); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	if _, err := s.session.ChannelMessageSend(request.ChannelID, request.Text); err != nil {
		s.logger.Error("send discord message", "channel", request.ChannelID, "error", err)
		return fmt.Errorf("send message: %w", err)
	}

	return nil
}

var _ memebot.MessageSender = (*Sender)(nil)
