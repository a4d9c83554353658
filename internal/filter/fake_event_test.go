package filter

import (
	"context"
	"time"

	"chatrouter/internal/domain"
)

// baseEvent carries only the mandatory Event surface.
type baseEvent struct {
	domain.Base
}

func newBase(component, bot string) domain.Base {
	return domain.Base{EventID: "ev-1", ComponentName: component, Bot: bot, Timestamp: time.Unix(1700000000, 0)}
}

// roomMessage is a chat-room message with group, channel, guild, mentions and text.
type roomMessage struct {
	domain.Base
	member  string
	group   string
	channel string
	guild   string
	text    string
	hasText bool
	mention []domain.Mention

	textErr    error
	memberErr  error
	mentionErr error
	panicText  bool
}

func (m *roomMessage) MemberID(context.Context) (string, error)  { return m.member, m.memberErr }
func (m *roomMessage) GroupID(context.Context) (string, error)   { return m.group, nil }
func (m *roomMessage) ChannelID(context.Context) (string, error) { return m.channel, nil }
func (m *roomMessage) GuildID(context.Context) (string, error)   { return m.guild, nil }

func (m *roomMessage) Mentions(context.Context) ([]domain.Mention, error) {
	return m.mention, m.mentionErr
}

func (m *roomMessage) PlainText(context.Context) (string, bool, error) {
	if m.panicText {
		panic("selector exploded")
	}
	return m.text, m.hasText, m.textErr
}

// directMessage is a private message from a contact.
type directMessage struct {
	domain.Base
	contact string
	text    string
}

func (m *directMessage) ContactID(context.Context) (string, error) { return m.contact, nil }
func (m *directMessage) PlainText(context.Context) (string, bool, error) {
	return m.text, true, nil
}

func textMessage(text string) *roomMessage {
	return &roomMessage{Base: newBase("discord", "bot-1"), text: text, hasText: true}
}
