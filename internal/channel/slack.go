package channel

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strconv"
	"strings"
	"time"

	"chatrouter/internal/domain"

	"github.com/slack-go/slack"
	"github.com/slack-go/slack/slackevents"
	"github.com/slack-go/slack/socketmode"
)

const slackMaxMsgLen = 4000

var slackUserLinkRegex = regexp.MustCompile(`<@([UW][A-Z0-9]+)(?:\|[^>]*)?>`)

// slackPoster is the part of *slack.Client events reply through.
type slackPoster interface {
	PostMessage(channelID string, options ...slack.MsgOption) (string, string, error)
}

type slackMessage struct {
	domain.Base
	channel  string
	user     string
	text     string
	threadTS string
	poster   slackPoster
}

func (m *slackMessage) ChannelID(context.Context) (string, error) { return m.channel, nil }

// Mentions parses <@U123> user links out of the message text.
func (m *slackMessage) Mentions(context.Context) ([]domain.Mention, error) {
	var out []domain.Mention
	for _, match := range slackUserLinkRegex.FindAllStringSubmatch(m.text, -1) {
		out = append(out, domain.Mention{TargetID: match[1]})
	}
	return out, nil
}

func (m *slackMessage) PlainText(context.Context) (string, bool, error) {
	return textOf(m.text)
}

// Reply posts content to the message's channel, in its thread when it has one.
func (m *slackMessage) Reply(_ context.Context, content string) error {
	for _, chunk := range splitMessage(content, slackMaxMsgLen) {
		opts := []slack.MsgOption{slack.MsgOptionText(chunk, false)}
		if m.threadTS != "" {
			opts = append(opts, slack.MsgOptionTS(m.threadTS))
		}
		if _, _, err := m.poster.PostMessage(m.channel, opts...); err != nil {
			return fmt.Errorf("slack post to %s: %w", m.channel, err)
		}
	}
	return nil
}

// SlackChannelMessage is a message in a public or private Slack channel.
type SlackChannelMessage struct {
	slackMessage
}

func (m *SlackChannelMessage) MemberID(context.Context) (string, error) { return m.user, nil }

// SlackDirectMessage is a message in a direct conversation with the bot.
type SlackDirectMessage struct {
	slackMessage
}

func (m *SlackDirectMessage) ContactID(context.Context) (string, error) { return m.user, nil }

// newSlackEvent normalizes a message for the bot botUID. Direct conversations
// ("im") become contact events; everything else is a channel message.
func newSlackEvent(botUID, id, channelType, channel, user, text, threadTS, ts string, poster slackPoster) domain.Event {
	base := slackMessage{
		Base:     domain.Base{EventID: id, ComponentName: "slack", Bot: botUID, Timestamp: slackTime(ts)},
		channel:  channel,
		user:     user,
		text:     text,
		threadTS: threadTS,
		poster:   poster,
	}
	if channelType == "im" {
		return &SlackDirectMessage{slackMessage: base}
	}
	return &SlackChannelMessage{slackMessage: base}
}

// slackTime parses a Slack "seconds.micros" timestamp.
func slackTime(ts string) time.Time {
	secs, err := strconv.ParseFloat(ts, 64)
	if err != nil || secs <= 0 {
		return time.Now()
	}
	whole := int64(secs)
	return time.Unix(whole, int64((secs-float64(whole))*1e9))
}

// Slack implements domain.Channel for Slack using Socket Mode.
type Slack struct {
	botToken string
	appToken string
	client   *slack.Client
	bus      domain.MessageBus
	logger   *slog.Logger
	botUID   string // the bot's own user ID, to avoid routing its own messages
}

// SlackConfig configures the Slack channel.
type SlackConfig struct {
	BotToken string
	AppToken string
	Logger   *slog.Logger
}

// NewSlack creates a new Slack channel handler.
func NewSlack(cfg SlackConfig) *Slack {
	return &Slack{
		botToken: cfg.BotToken,
		appToken: cfg.AppToken,
		logger:   cfg.Logger,
	}
}

func (s *Slack) Name() string { return "slack" }

// Start connects to Slack via Socket Mode and publishes message events.
func (s *Slack) Start(ctx context.Context, bus domain.MessageBus) error {
	s.bus = bus

	api := slack.New(
		s.botToken,
		slack.OptionAppLevelToken(s.appToken),
	)
	s.client = api

	authResp, err := api.AuthTestContext(ctx)
	if err != nil {
		return fmt.Errorf("slack auth: %w", err)
	}
	s.botUID = authResp.UserID
	s.logger.Info("slack bot connected", "user", authResp.User, "user_id", authResp.UserID)

	socketClient := socketmode.New(api)

	go func() {
		for evt := range socketClient.Events {
			switch evt.Type {
			case socketmode.EventTypeEventsAPI:
				eventsAPIEvent, ok := evt.Data.(slackevents.EventsAPIEvent)
				if !ok {
					continue
				}
				socketClient.Ack(*evt.Request)
				s.handleEventsAPI(eventsAPIEvent)

			case socketmode.EventTypeSlashCommand:
				cmd, ok := evt.Data.(slack.SlashCommand)
				if !ok {
					continue
				}
				socketClient.Ack(*evt.Request)
				s.handleSlashCommand(cmd)

			default:
				// Acknowledge unknown events to prevent Socket Mode disconnection.
				if evt.Request != nil {
					socketClient.Ack(*evt.Request)
				}
			}
		}
	}()

	errCh := make(chan error, 1)
	go func() {
		errCh <- socketClient.RunContext(ctx)
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("slack bot disconnecting")
		return nil
	case err := <-errCh:
		return fmt.Errorf("slack socket mode: %w", err)
	}
}

// Stop is a no-op; Socket Mode stops with Start's context.
func (s *Slack) Stop() error { return nil }

// handleEventsAPI publishes plain user messages. App mentions are not
// handled separately because the message event already carries them.
func (s *Slack) handleEventsAPI(event slackevents.EventsAPIEvent) {
	if event.Type != slackevents.CallbackEvent {
		return
	}
	ev, ok := event.InnerEvent.Data.(*slackevents.MessageEvent)
	if !ok {
		return
	}
	// Ignore the bot's own messages and edits, joins and other subtypes.
	if ev.User == s.botUID || ev.User == "" || ev.SubType != "" {
		return
	}

	s.logger.Info("slack message received",
		"user", ev.User,
		"channel", ev.Channel,
		"content_len", len(ev.Text),
	)

	s.bus.Publish(newSlackEvent(s.botUID, ev.TimeStamp, ev.ChannelType, ev.Channel, ev.User, ev.Text, ev.ThreadTimeStamp, ev.TimeStamp, s.client))
}

func (s *Slack) handleSlashCommand(cmd slack.SlashCommand) {
	content := strings.TrimSpace(cmd.Command + " " + cmd.Text)

	s.logger.Info("slack slash command",
		"command", cmd.Command,
		"user", cmd.UserID,
		"channel", cmd.ChannelID,
	)

	channelType := "channel"
	if strings.HasPrefix(cmd.ChannelID, "D") {
		channelType = "im"
	}
	s.bus.Publish(newSlackEvent(s.botUID, cmd.TriggerID, channelType, cmd.ChannelID, cmd.UserID, content, "", "", s.client))
}
