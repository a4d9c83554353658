package channel

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"
	"unicode/utf16"

	"chatrouter/internal/domain"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

const (
	telegramMaxMsgLen      = 4000
	telegramMaxSendRetries = 3
)

// telegramSender delivers replies for Telegram events.
type telegramSender interface {
	sendText(ctx context.Context, chatID int64, text string) error
}

type telegramMessage struct {
	domain.Base
	chatID   int64
	userID   int64
	text     string
	mentions []domain.Mention
	sender   telegramSender
}

func (m *telegramMessage) Mentions(context.Context) ([]domain.Mention, error) {
	return m.mentions, nil
}

func (m *telegramMessage) PlainText(context.Context) (string, bool, error) {
	return textOf(m.text)
}

func (m *telegramMessage) Reply(ctx context.Context, content string) error {
	return m.sender.sendText(ctx, m.chatID, content)
}

// TelegramGroupMessage is a message in a group or supergroup.
type TelegramGroupMessage struct {
	telegramMessage
}

func (m *TelegramGroupMessage) MemberID(context.Context) (string, error) {
	return strconv.FormatInt(m.userID, 10), nil
}

func (m *TelegramGroupMessage) GroupID(context.Context) (string, error) {
	return strconv.FormatInt(m.chatID, 10), nil
}

// TelegramPrivateMessage is a one-to-one chat with the bot.
type TelegramPrivateMessage struct {
	telegramMessage
}

func (m *TelegramPrivateMessage) ContactID(context.Context) (string, error) {
	return strconv.FormatInt(m.userID, 10), nil
}

// TelegramChannelPost is a post in a broadcast channel. Posts have no author.
type TelegramChannelPost struct {
	telegramMessage
}

func (m *TelegramChannelPost) ChannelID(context.Context) (string, error) {
	return strconv.FormatInt(m.chatID, 10), nil
}

// newTelegramEvent normalizes msg for the bot identified by botID and
// botUserName. It returns nil for messages without a chat.
func newTelegramEvent(botID int64, botUserName string, msg *tgbotapi.Message, sender telegramSender) domain.Event {
	if msg == nil || msg.Chat == nil {
		return nil
	}
	bot := strconv.FormatInt(botID, 10)
	text := msg.Text
	if text == "" {
		text = msg.Caption
	}
	base := telegramMessage{
		Base: domain.Base{
			EventID:       strconv.FormatInt(msg.Chat.ID, 10) + ":" + strconv.Itoa(msg.MessageID),
			ComponentName: "telegram",
			Bot:           bot,
			Timestamp:     time.Unix(int64(msg.Date), 0),
		},
		chatID:   msg.Chat.ID,
		text:     text,
		mentions: telegramMentions(text, msg.Entities, bot, botUserName),
		sender:   sender,
	}
	if msg.From != nil {
		base.userID = msg.From.ID
	}

	switch msg.Chat.Type {
	case "private":
		return &TelegramPrivateMessage{telegramMessage: base}
	case "channel":
		return &TelegramChannelPost{telegramMessage: base}
	default:
		return &TelegramGroupMessage{telegramMessage: base}
	}
}

// telegramMentions resolves mention entities. An @username mention of the
// bot resolves to the bot's id; other usernames keep their "@name" form.
func telegramMentions(text string, entities []tgbotapi.MessageEntity, botID, botUserName string) []domain.Mention {
	var out []domain.Mention
	units := utf16.Encode([]rune(text))
	for _, e := range entities {
		switch e.Type {
		case "text_mention":
			if e.User != nil {
				out = append(out, domain.Mention{TargetID: strconv.FormatInt(e.User.ID, 10)})
			}
		case "mention":
			if e.Offset < 0 || e.Length <= 0 || e.Offset+e.Length > len(units) {
				continue
			}
			name := string(utf16.Decode(units[e.Offset : e.Offset+e.Length]))
			if strings.EqualFold(strings.TrimPrefix(name, "@"), botUserName) {
				out = append(out, domain.Mention{TargetID: botID})
			} else {
				out = append(out, domain.Mention{TargetID: name})
			}
		}
	}
	return out
}

// Telegram implements domain.Channel for Telegram Bot.
type Telegram struct {
	token     string
	allowFrom []int64 // Allowed user IDs (empty = allow all)
	parseMode string

	bot    *tgbotapi.BotAPI
	bus    domain.MessageBus
	logger *slog.Logger
}

type TelegramConfig struct {
	Token     string
	AllowFrom []string // User IDs as strings
	ParseMode string
	Logger    *slog.Logger
}

func NewTelegram(cfg TelegramConfig) *Telegram {
	var allowed []int64
	for _, s := range cfg.AllowFrom {
		if id, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64); err == nil {
			allowed = append(allowed, id)
		}
	}
	return &Telegram{
		token:     cfg.Token,
		allowFrom: allowed,
		parseMode: cfg.ParseMode,
		logger:    cfg.Logger,
	}
}

func (t *Telegram) Name() string { return "telegram" }

// Start connects to Telegram and begins polling for updates.
func (t *Telegram) Start(ctx context.Context, bus domain.MessageBus) error {
	t.bus = bus

	bot, err := tgbotapi.NewBotAPI(t.token)
	if err != nil {
		return fmt.Errorf("telegram bot init: %w", err)
	}
	t.bot = bot
	t.logger.Info("telegram bot connected",
		"username", bot.Self.UserName,
		"id", bot.Self.ID,
	)

	u := tgbotapi.NewUpdate(0)
	u.Timeout = 30
	updates := bot.GetUpdatesChan(u)

	t.logger.Info("telegram polling started")

	for {
		select {
		case <-ctx.Done():
			t.logger.Info("telegram channel stopping")
			bot.StopReceivingUpdates()
			return nil
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			t.handleUpdate(update)
		}
	}
}

// Stop is a no-op.
// StopReceivingUpdates is already called when ctx is cancelled in Start and
// calling it twice panics.
func (t *Telegram) Stop() error {
	return nil
}

func (t *Telegram) handleUpdate(update tgbotapi.Update) {
	msg := update.Message
	if msg == nil {
		msg = update.ChannelPost
	}
	if msg == nil || msg.Chat == nil {
		return
	}

	if msg.From != nil && !t.isAllowed(msg.From.ID) {
		t.logger.Warn("unauthorized telegram user",
			"user_id", msg.From.ID,
			"username", msg.From.UserName,
		)
		return
	}

	ev := newTelegramEvent(t.bot.Self.ID, t.bot.Self.UserName, msg, t)
	if ev == nil {
		return
	}

	t.logger.Info("telegram message received",
		"chat_id", msg.Chat.ID,
		"chat_type", msg.Chat.Type,
		"text_len", len(msg.Text),
	)
	t.bus.Publish(ev)
}

func (t *Telegram) isAllowed(userID int64) bool {
	if len(t.allowFrom) == 0 {
		return true // Empty list = allow all
	}
	for _, id := range t.allowFrom {
		if id == userID {
			return true
		}
	}
	return false
}

// sendText delivers text in chunks below Telegram's 4096 character limit.
func (t *Telegram) sendText(ctx context.Context, chatID int64, text string) error {
	var errs []error
	for _, chunk := range splitMessage(text, telegramMaxMsgLen) {
		if err := t.sendChunk(ctx, chatID, chunk); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// sendChunk sends a single message chunk with retry and rate limit handling.
// The first attempt uses the configured parse mode; retries send plain text.
func (t *Telegram) sendChunk(ctx context.Context, chatID int64, text string) error {
	var lastErr error
	for attempt := 0; attempt <= telegramMaxSendRetries; attempt++ {
		msg := tgbotapi.NewMessage(chatID, text)
		if attempt == 0 && t.parseMode != "" {
			msg.ParseMode = t.parseMode
		}

		_, err := t.bot.Send(msg)
		if err == nil {
			return nil
		}
		lastErr = err
		errStr := err.Error()

		// Markdown parse error on the first attempt: retry as plain text right away.
		if attempt == 0 && msg.ParseMode != "" && strings.Contains(errStr, "can't parse entities") {
			t.logger.Warn("telegram markdown parse error, retrying as plain text",
				"err", err, "parseMode", t.parseMode,
			)
			continue
		}

		backoff := time.Duration(attempt+1) * time.Second
		if strings.Contains(errStr, "Too Many Requests") || strings.Contains(errStr, "429") {
			backoff = time.Duration(attempt+1) * 3 * time.Second
		}
		if attempt == telegramMaxSendRetries {
			break
		}
		t.logger.Warn("telegram send error, retrying", "err", err, "backoff", backoff, "attempt", attempt+1)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
	}

	t.logger.Error("telegram send failed after retries", "err", lastErr, "attempts", telegramMaxSendRetries+1)
	return fmt.Errorf("telegram send to %d: %w", chatID, lastErr)
}
