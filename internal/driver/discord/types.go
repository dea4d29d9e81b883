package discord

import (
	"time"

	"memebot/pkg/memebot"
)

// DriverType is the stable driver identifier exposed to the kernel.
const DriverType = "discord"

// UpdateType identifies the platform update variant carried by an Update.
type UpdateType string

const (
	// UpdateTypeMessage is an inbound text message.
	UpdateTypeMessage UpdateType = "message"
	// UpdateTypeGuildJoin is delivery of a guild the session now serves.
	UpdateTypeGuildJoin UpdateType = "guild_join"
)

// Update is the platform-neutral DTO the session adapter hands to the
// decoder, so decoding stays testable without a live gateway connection.
type Update struct {
	// Type selects the update variant.
	Type UpdateType
	// ID is the platform identifier of the update source object.
	ID string
	// OccurredAt is the platform timestamp.
	OccurredAt time.Time
	// Chat locates the originating conversation for message updates.
	Chat Chat
	// Actor identifies the initiating user.
	Actor Actor
	// Text is the raw message content for message updates.
	Text string
	// Voice is the actor's current voice channel when known.
	Voice *memebot.VoiceState
}

// Chat locates a conversation on the platform.
type Chat struct {
	// ID is the channel identifier.
	ID string
	// GuildID is the owning guild, empty for direct messages.
	GuildID string
}

// Actor identifies the user behind an update.
type Actor struct {
	// ID is the stable user identifier.
	ID string
	// Username is the user's handle.
	Username string
	// IsBot reports whether the user is an automated account.
	IsBot bool
}
