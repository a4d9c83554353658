package domain

import (
	"context"
	"time"
)

// Event is a normalized, immutable platform event. Adapters implement the
// optional capability interfaces below for whatever the platform exposes;
// consumers discover them with type assertions.
type Event interface {
	// ID identifies the event within its component.
	ID() string
	// Component names the platform component that produced the event (e.g. "discord").
	Component() string
	// BotID is the identity of the bot that received the event.
	BotID() string
	// Time is when the platform reported the event.
	Time() time.Time
}

// MemberEvent is an event authored by a participant of a chat room
// (guild channel, group, workspace channel).
type MemberEvent interface {
	Event
	MemberID(ctx context.Context) (string, error)
}

// ContactEvent is an event authored by a direct-contact peer (private chat, DM).
type ContactEvent interface {
	Event
	ContactID(ctx context.Context) (string, error)
}

// GroupEvent happened inside a chat group.
type GroupEvent interface {
	Event
	GroupID(ctx context.Context) (string, error)
}

// ChannelEvent happened inside a channel.
type ChannelEvent interface {
	Event
	ChannelID(ctx context.Context) (string, error)
}

// GuildEvent happened inside a guild (server, workspace).
type GuildEvent interface {
	Event
	GuildID(ctx context.Context) (string, error)
}

// Mention references an identity inside a message.
type Mention struct {
	TargetID string
}

// MentionEvent exposes the mentions carried by a message.
type MentionEvent interface {
	Event
	Mentions(ctx context.Context) ([]Mention, error)
}

// MessageEvent carries message content. PlainText flattens it to text;
// ok is false when the message has no textual representation.
type MessageEvent interface {
	Event
	PlainText(ctx context.Context) (text string, ok bool, err error)
}

// Replier can answer in the conversation the event came from.
type Replier interface {
	Reply(ctx context.Context, content string) error
}

// AuthorID resolves the author identity of ev by capability: chat-room
// members first, then direct contacts. ok is false when ev has neither.
func AuthorID(ctx context.Context, ev Event) (id string, ok bool, err error) {
	switch e := ev.(type) {
	case MemberEvent:
		id, err = e.MemberID(ctx)
		return id, true, err
	case ContactEvent:
		id, err = e.ContactID(ctx)
		return id, true, err
	default:
		return "", false, nil
	}
}
