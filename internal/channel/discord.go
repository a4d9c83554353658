package channel

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"chatrouter/internal/domain"

	"github.com/bwmarrin/discordgo"
)

const (
	discordMaxMsgLen = 2000
)

// discordSender is the part of *discordgo.Session events reply through.
type discordSender interface {
	ChannelMessageSend(channelID string, content string, options ...discordgo.RequestOption) (*discordgo.Message, error)
}

// discordMessage holds what guild and direct messages share.
type discordMessage struct {
	domain.Base
	channelID string
	authorID  string
	content   string
	mentions  []domain.Mention
	sender    discordSender
}

func (m *discordMessage) ChannelID(context.Context) (string, error) { return m.channelID, nil }

func (m *discordMessage) Mentions(context.Context) ([]domain.Mention, error) {
	return m.mentions, nil
}

func (m *discordMessage) PlainText(context.Context) (string, bool, error) {
	return textOf(m.content)
}

// Reply posts content to the message's channel, split to Discord's length limit.
func (m *discordMessage) Reply(_ context.Context, content string) error {
	for _, chunk := range splitMessage(content, discordMaxMsgLen) {
		if _, err := m.sender.ChannelMessageSend(m.channelID, chunk); err != nil {
			return fmt.Errorf("discord send to %s: %w", m.channelID, err)
		}
	}
	return nil
}

// DiscordGuildMessage is a message posted in a guild channel.
type DiscordGuildMessage struct {
	discordMessage
	guildID string
}

func (m *DiscordGuildMessage) MemberID(context.Context) (string, error) { return m.authorID, nil }
func (m *DiscordGuildMessage) GuildID(context.Context) (string, error)  { return m.guildID, nil }

// DiscordDirectMessage is a private message to the bot.
type DiscordDirectMessage struct {
	discordMessage
}

func (m *DiscordDirectMessage) ContactID(context.Context) (string, error) { return m.authorID, nil }

// newDiscordEvent normalizes a gateway message for the bot botID.
func newDiscordEvent(botID string, m *discordgo.Message, sender discordSender) domain.Event {
	ts := m.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}
	base := discordMessage{
		Base:      domain.Base{EventID: m.ID, ComponentName: "discord", Bot: botID, Timestamp: ts},
		channelID: m.ChannelID,
		content:   m.Content,
		sender:    sender,
	}
	if m.Author != nil {
		base.authorID = m.Author.ID
	}
	for _, u := range m.Mentions {
		if u != nil {
			base.mentions = append(base.mentions, domain.Mention{TargetID: u.ID})
		}
	}
	if m.GuildID == "" {
		return &DiscordDirectMessage{discordMessage: base}
	}
	return &DiscordGuildMessage{discordMessage: base, guildID: m.GuildID}
}

// Discord implements domain.Channel for Discord.
type Discord struct {
	token   string
	guildID string
	session *discordgo.Session
	logger  *slog.Logger
}

// DiscordConfig configures the Discord channel.
type DiscordConfig struct {
	Token string
	// GuildID restricts the adapter to one guild; direct messages always pass.
	GuildID string
	Logger  *slog.Logger
}

// NewDiscord creates a new Discord channel handler.
func NewDiscord(cfg DiscordConfig) *Discord {
	return &Discord{
		token:   cfg.Token,
		guildID: cfg.GuildID,
		logger:  cfg.Logger,
	}
}

func (d *Discord) Name() string { return "discord" }

// Start connects to Discord using a bot token and publishes every message
// not sent by the bot itself.
func (d *Discord) Start(ctx context.Context, bus domain.MessageBus) error {
	session, err := discordgo.New("Bot " + d.token)
	if err != nil {
		return fmt.Errorf("discord session: %w", err)
	}

	session.Identify.Intents = discordgo.IntentsGuildMessages | discordgo.IntentsDirectMessages | discordgo.IntentsMessageContent
	d.session = session

	session.AddHandler(func(s *discordgo.Session, m *discordgo.MessageCreate) {
		if m.Author == nil || m.Author.ID == s.State.User.ID {
			return
		}
		if d.guildID != "" && m.GuildID != "" && m.GuildID != d.guildID {
			return
		}

		d.logger.Info("discord message received",
			"author", m.Author.Username,
			"channel_id", m.ChannelID,
			"content_len", len(m.Content),
		)

		bus.Publish(newDiscordEvent(s.State.User.ID, m.Message, s))
	})

	if err := session.Open(); err != nil {
		return fmt.Errorf("discord connect: %w", err)
	}

	d.logger.Info("discord bot connected", "user", session.State.User.Username)

	<-ctx.Done()
	d.logger.Info("discord bot disconnecting")
	return session.Close()
}

// Stop is a no-op; the session closes when Start's context is cancelled.
func (d *Discord) Stop() error { return nil }
