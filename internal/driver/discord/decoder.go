package discord

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"memebot/pkg/memebot"
)

// Decoder converts Discord update DTOs into neutral memebot events.
type Decoder interface {
	// Decode maps one update into a validated neutral event. A nil event
	// with nil error means the update carries nothing the bot acts on.
	Decode(ctx context.Context, update Update) (*memebot.Event, error)
}

// DefaultDecoder provides the default Discord-to-memebot mappings.
type DefaultDecoder struct{}

// NewDefaultDecoder creates a default decoder.
func NewDefaultDecoder() DefaultDecoder {
	return DefaultDecoder{}
}

// Decode converts a Discord update into a neutral event. Messages from bot
// accounts and messages that do not parse as commands decode to nil.
func (d DefaultDecoder) Decode(_ context.Context, update Update) (*memebot.Event, error) {
	switch update.Type {
	case UpdateTypeMessage:
		return decodeMessage(update)
	case UpdateTypeGuildJoin:
		return decodeGuildJoin(update)
	default:
		return nil, fmt.Errorf("%w: unsupported update type %q", memebot.ErrInvalidEvent, update.Type)
	}
}

func decodeMessage(update Update) (*memebot.Event, error) {
	if update.Actor.IsBot {
		return nil, nil
	}
	invocation, matched := memebot.ParseCommand(update.Text)
	if !matched {
		return nil, nil
	}

	event := newBaseEvent(update)
	event.Kind = memebot.EventKindCommandReceived
	event.Command = &invocation
	event.Voice = update.Voice

	if err := event.Validate(); err != nil {
		return nil, fmt.Errorf("decode message: %w", err)
	}

	return event, nil
}

func decodeGuildJoin(update Update) (*memebot.Event, error) {
	event := newBaseEvent(update)
	event.Kind = memebot.EventKindGuildJoined
	event.Conversation.GuildID = update.ID

	if err := event.Validate(); err != nil {
		return nil, fmt.Errorf("decode guild join: %w", err)
	}

	return event, nil
}

// newBaseEvent builds the shared envelope fields used by all update mappings.
func newBaseEvent(update Update) *memebot.Event {
	occurredAt := update.OccurredAt
	if occurredAt.IsZero() {
		occurredAt = time.Now().UTC()
	}

	conversationType := memebot.ConversationTypeGuild
	if update.Chat.GuildID == "" {
		conversationType = memebot.ConversationTypePrivate
	}

	return &memebot.Event{
		ID:         uuid.NewString(),
		Kind:       "",
		OccurredAt: occurredAt,
		Platform:   memebot.PlatformDiscord,
		Conversation: memebot.Conversation{
			ID:      update.Chat.ID,
			Type:    conversationType,
			GuildID: update.Chat.GuildID,
		},
		Actor: memebot.Actor{
			ID:       update.Actor.ID,
			Username: update.Actor.Username,
			IsBot:    update.Actor.IsBot,
		},
		Metadata: map[string]string{
			"discord_id": update.ID,
		},
	}
}
