package discord

import (
	"context"
	"testing"
	"time"

	"memebot/pkg/memebot"
)

func messageUpdateFixture(text string) Update {
	return Update{
		Type:       UpdateTypeMessage,
		ID:         "msg-1",
		OccurredAt: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
		Chat:       Chat{ID: "chan-1", GuildID: "guild-1"},
		Actor:      Actor{ID: "user-1", Username: "alice"},
		Text:       text,
	}
}

func TestDecodeCommandMessage(t *testing.T) {
	t.Parallel()

	decoder := NewDefaultDecoder()
	update := messageUpdateFixture("!vote duck for")
	update.Voice = &memebot.VoiceState{GuildID: "guild-1", ChannelID: "voice-1"}

	event, err := decoder.Decode(context.Background(), update)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if event == nil {
		t.Fatal("command message decoded to nil")
	}
	if event.Kind != memebot.EventKindCommandReceived {
		t.Fatalf("kind = %q, want command.received", event.Kind)
	}
	if event.ID == "" {
		t.Fatal("event id not assigned")
	}
	if event.Command.Name != "vote" {
		t.Fatalf("command name = %q, want vote", event.Command.Name)
	}
	if len(event.Command.Args) != 2 || event.Command.Args[0] != "duck" || event.Command.Args[1] != "for" {
		t.Fatalf("command args = %v, want [duck for]", event.Command.Args)
	}
	if event.Conversation.ID != "chan-1" || event.Conversation.GuildID != "guild-1" {
		t.Fatalf("conversation = %+v", event.Conversation)
	}
	if event.Conversation.Type != memebot.ConversationTypeGuild {
		t.Fatalf("conversation type = %q, want guild", event.Conversation.Type)
	}
	if event.Voice == nil || event.Voice.ChannelID != "voice-1" {
		t.Fatalf("voice state = %+v, want voice-1", event.Voice)
	}
	if event.Metadata["discord_id"] != "msg-1" {
		t.Fatalf("metadata = %v, want discord_id msg-1", event.Metadata)
	}
}

func TestDecodeIgnoresNonCommands(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		update Update
	}{
		{name: "plain chatter", update: messageUpdateFixture("nice meme")},
		{name: "bare prefix", update: messageUpdateFixture("!")},
		{
			name: "bot author",
			update: func() Update {
				update := messageUpdateFixture("!list")
				update.Actor.IsBot = true
				return update
			}(),
		},
	}

	for _, testCase := range tests {
		testCase := testCase
		t.Run(testCase.name, func(t *testing.T) {
			t.Parallel()

			event, err := NewDefaultDecoder().Decode(context.Background(), testCase.update)
			if err != nil {
				t.Fatalf("decode: %v", err)
			}
			if event != nil {
				t.Fatalf("decoded event %+v, want nil", event)
			}
		})
	}
}

func TestDecodePrivateConversation(t *testing.T) {
	t.Parallel()

	update := messageUpdateFixture("!help")
	update.Chat.GuildID = ""

	event, err := NewDefaultDecoder().Decode(context.Background(), update)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if event.Conversation.Type != memebot.ConversationTypePrivate {
		t.Fatalf("conversation type = %q, want private", event.Conversation.Type)
	}
}

func TestDecodeGuildJoin(t *testing.T) {
	t.Parallel()

	event, err := NewDefaultDecoder().Decode(context.Background(), Update{
		Type:       UpdateTypeGuildJoin,
		ID:         "guild-9",
		OccurredAt: time.Now(),
	})
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if event.Kind != memebot.EventKindGuildJoined {
		t.Fatalf("kind = %q, want guild.joined", event.Kind)
	}
	if event.Conversation.GuildID != "guild-9" {
		t.Fatalf("guild id = %q, want guild-9", event.Conversation.GuildID)
	}
}

func TestDecodeUnsupportedType(t *testing.T) {
	t.Parallel()

	if _, err := NewDefaultDecoder().Decode(context.Background(), Update{Type: "typing"}); err == nil {
		t.Fatal("expected unsupported type error")
	}
}
