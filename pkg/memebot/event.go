package memebot

import (
	"fmt"
	"time"
)

// EventKind identifies a neutral domain event type.
type EventKind string

const (
	// EventKindCommandReceived is emitted when an inbound message parses as a command.
	EventKindCommandReceived EventKind = "command.received"
	// EventKindGuildJoined is emitted when the bot joins a guild.
	EventKindGuildJoined EventKind = "guild.joined"
)

// Platform identifies an external chat platform source.
type Platform string

const (
	// PlatformDiscord is Discord.
	PlatformDiscord Platform = "discord"
)

// ConversationType identifies conversation scope.
type ConversationType string

const (
	// ConversationTypePrivate is a direct/private conversation.
	ConversationTypePrivate ConversationType = "private"
	// ConversationTypeGuild is a guild text channel.
	ConversationTypeGuild ConversationType = "guild"
)

// Event is the neutral envelope that drivers publish and modules consume.
//
// Command and Voice are optional payload branches selected by Kind so that
// platform specifics never leak past the driver boundary.
type Event struct {
	// ID is a stable identifier for this event instance.
	ID string
	// Kind selects which payload branch is expected.
	Kind EventKind
	// OccurredAt is the source-platform timestamp for the event.
	OccurredAt time.Time
	// Platform identifies the upstream platform that produced the event.
	Platform Platform
	// Conversation identifies where the event happened.
	Conversation Conversation
	// Actor identifies who initiated the event when available.
	Actor Actor
	// Command carries the parsed invocation for command events.
	Command *CommandInvocation
	// Voice carries the actor's current voice channel when known.
	Voice *VoiceState
	// Metadata stores optional driver-provided key/value context.
	Metadata map[string]string
}

// Conversation identifies the neutral destination where an event occurred.
type Conversation struct {
	// ID is the stable conversation identifier on the source platform.
	ID string
	// Type describes the conversation scope.
	Type ConversationType
	// GuildID is the owning guild identifier when the conversation is guild-scoped.
	GuildID string
}

// Actor identifies the user/account that initiated an event.
type Actor struct {
	// ID is the stable actor identifier on the source platform.
	ID string
	// Username is the platform handle when available.
	Username string
	// IsBot reports whether the actor is an automated account.
	IsBot bool
}

// VoiceState locates the voice channel an actor currently occupies.
type VoiceState struct {
	// GuildID is the guild owning the voice channel.
	GuildID string
	// ChannelID is the occupied voice channel.
	ChannelID string
}

// Validate checks event envelope and payload coherence.
func (e *Event) Validate() error {
	if e == nil {
		return fmt.Errorf("%w: nil event", ErrInvalidEvent)
	}
	if e.ID == "" {
		return fmt.Errorf("%w: missing id", ErrInvalidEvent)
	}
	if e.Kind == "" {
		return fmt.Errorf("%w: missing kind", ErrInvalidEvent)
	}
	if e.OccurredAt.IsZero() {
		return fmt.Errorf("%w: missing occurred_at", ErrInvalidEvent)
	}

	switch e.Kind {
	case EventKindCommandReceived:
		if e.Conversation.ID == "" {
			return fmt.Errorf("%w: missing conversation id", ErrInvalidEvent)
		}
		if e.Command == nil {
			return fmt.Errorf("%w: command.received requires command payload", ErrInvalidEvent)
		}
		if e.Command.Name == "" {
			return fmt.Errorf("%w: missing command name", ErrInvalidEvent)
		}
	case EventKindGuildJoined:
		if e.Conversation.GuildID == "" && e.Conversation.ID == "" {
			return fmt.Errorf("%w: guild.joined requires guild identity", ErrInvalidEvent)
		}
	default:
		return fmt.Errorf("%w: unsupported kind %q", ErrInvalidEvent, e.Kind)
	}

	return nil
}
