package channel

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"chatrouter/internal/domain"

	"github.com/google/uuid"
)

// ErrNoReplyTarget is returned when replying to a webhook event that carried no reply_url.
var ErrNoReplyTarget = errors.New("webhook event has no reply_url")

// WebhookConfig configures the webhook channel.
type WebhookConfig struct {
	Port   int
	Path   string // webhook URL path (default: /webhook)
	Secret string // HMAC secret for verifying webhook signatures and signing replies
	BotID  string // bot id reported by events when the payload omits bot_id
	Logger *slog.Logger
}

// Webhook implements a channel that accepts HTTP POST requests carrying chat events.
type Webhook struct {
	port   int
	path   string
	secret string
	botID  string
	bus    domain.MessageBus
	logger *slog.Logger
	server *http.Server
	client *http.Client
}

// WebhookPayload is the expected JSON body for webhook requests.
type WebhookPayload struct {
	ID        string   `json:"id,omitempty"`        // event id (generated when empty)
	Component string   `json:"component,omitempty"` // source component (default: webhook)
	BotID     string   `json:"bot_id,omitempty"`
	ChatID    string   `json:"chat_id,omitempty"` // conversation the message was posted in
	UserID    string   `json:"user_id,omitempty"` // sender identifier
	GroupID   string   `json:"group_id,omitempty"`
	GuildID   string   `json:"guild_id,omitempty"`
	Direct    bool     `json:"direct,omitempty"` // a one-to-one conversation; the sender is a contact
	Mentions  []string `json:"mentions,omitempty"`
	Content   string   `json:"content"`
	ReplyURL  string   `json:"reply_url,omitempty"` // replies are POSTed here as WebhookReply
}

// WebhookReply is the JSON body POSTed to a payload's reply_url.
type WebhookReply struct {
	EventID string `json:"event_id"`
	ChatID  string `json:"chat_id"`
	Content string `json:"content"`
}

type webhookMessage struct {
	domain.Base
	payload WebhookPayload
	hook    *Webhook
}

func (m *webhookMessage) Mentions(context.Context) ([]domain.Mention, error) {
	out := make([]domain.Mention, 0, len(m.payload.Mentions))
	for _, id := range m.payload.Mentions {
		out = append(out, domain.Mention{TargetID: id})
	}
	return out, nil
}

func (m *webhookMessage) PlainText(context.Context) (string, bool, error) {
	return textOf(m.payload.Content)
}

func (m *webhookMessage) Reply(ctx context.Context, content string) error {
	if m.payload.ReplyURL == "" {
		return ErrNoReplyTarget
	}
	return m.hook.postReply(ctx, m.payload.ReplyURL, WebhookReply{
		EventID: m.ID(),
		ChatID:  m.payload.ChatID,
		Content: content,
	})
}

// WebhookRoomMessage is a webhook message posted in a shared conversation.
type WebhookRoomMessage struct {
	webhookMessage
}

func (m *WebhookRoomMessage) MemberID(context.Context) (string, error)  { return m.payload.UserID, nil }
func (m *WebhookRoomMessage) ChannelID(context.Context) (string, error) { return m.payload.ChatID, nil }
func (m *WebhookRoomMessage) GroupID(context.Context) (string, error)   { return m.payload.GroupID, nil }
func (m *WebhookRoomMessage) GuildID(context.Context) (string, error)   { return m.payload.GuildID, nil }

// WebhookDirectMessage is a webhook message from a one-to-one conversation.
type WebhookDirectMessage struct {
	webhookMessage
}

func (m *WebhookDirectMessage) ContactID(context.Context) (string, error) { return m.payload.UserID, nil }

// NewWebhook creates a new webhook channel handler.
func NewWebhook(cfg WebhookConfig) *Webhook {
	if cfg.Path == "" {
		cfg.Path = "/webhook"
	}
	if cfg.Port == 0 {
		cfg.Port = 9090
	}
	if cfg.BotID == "" {
		cfg.BotID = "chatrouter"
	}
	return &Webhook{
		port:   cfg.Port,
		path:   cfg.Path,
		secret: cfg.Secret,
		botID:  cfg.BotID,
		logger: cfg.Logger,
		client: &http.Client{Timeout: 15 * time.Second},
	}
}

func (w *Webhook) Name() string { return "webhook" }

// Start begins the webhook HTTP server.
func (w *Webhook) Start(ctx context.Context, bus domain.MessageBus) error {
	w.bus = bus

	mux := http.NewServeMux()
	mux.HandleFunc(w.path, w.handleWebhook)

	w.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", w.port),
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	w.logger.Info("webhook server starting", "port", w.port, "path", w.path)

	errCh := make(chan error, 1)
	go func() {
		if err := w.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		w.logger.Info("webhook server shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return w.server.Shutdown(shutdownCtx)
	case err := <-errCh:
		return fmt.Errorf("webhook server: %w", err)
	}
}

// Stop is a no-op; the server shuts down when Start's context is cancelled.
func (w *Webhook) Stop() error { return nil }

func (w *Webhook) handleWebhook(rw http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(rw, "Method Not Allowed", http.StatusMethodNotAllowed)
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20)) // 1MB max
	if err != nil {
		http.Error(rw, "Bad Request", http.StatusBadRequest)
		return
	}
	defer r.Body.Close()

	// Verify HMAC signature if secret is configured.
	if w.secret != "" {
		sig := r.Header.Get("X-Signature-256")
		if sig == "" {
			http.Error(rw, "Missing signature", http.StatusUnauthorized)
			return
		}
		if !verifyHMAC(body, w.secret, sig) {
			http.Error(rw, "Invalid signature", http.StatusForbidden)
			return
		}
	}

	var payload WebhookPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		http.Error(rw, "Invalid JSON", http.StatusBadRequest)
		return
	}

	if payload.Content == "" {
		http.Error(rw, "Content is required", http.StatusBadRequest)
		return
	}

	ev := w.newEvent(payload)

	w.logger.Info("webhook received",
		"component", ev.Component(),
		"chat_id", payload.ChatID,
		"user_id", payload.UserID,
		"content_len", len(payload.Content),
	)

	w.bus.Publish(ev)

	rw.Header().Set("Content-Type", "application/json")
	rw.WriteHeader(http.StatusAccepted)
	_ = json.NewEncoder(rw).Encode(map[string]string{
		"status":   "accepted",
		"event_id": ev.ID(),
	})
}

// newEvent fills payload defaults and wraps it in the matching event type.
func (w *Webhook) newEvent(p WebhookPayload) domain.Event {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	if p.Component == "" {
		p.Component = "webhook"
	}
	if p.BotID == "" {
		p.BotID = w.botID
	}
	if p.UserID == "" {
		p.UserID = "webhook"
	}
	if p.ChatID == "" {
		p.ChatID = "webhook-default"
	}

	base := webhookMessage{
		Base:    domain.Base{EventID: p.ID, ComponentName: p.Component, Bot: p.BotID, Timestamp: time.Now()},
		payload: p,
		hook:    w,
	}
	if p.Direct {
		return &WebhookDirectMessage{webhookMessage: base}
	}
	return &WebhookRoomMessage{webhookMessage: base}
}

// postReply sends reply to url, signed like inbound requests when a secret is set.
func (w *Webhook) postReply(ctx context.Context, url string, reply WebhookReply) error {
	body, err := json.Marshal(reply)
	if err != nil {
		return fmt.Errorf("marshal webhook reply: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build webhook reply: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if w.secret != "" {
		req.Header.Set("X-Signature-256", signHMAC(body, w.secret))
	}

	resp, err := w.client.Do(req)
	if err != nil {
		return fmt.Errorf("post webhook reply: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode >= 300 {
		return fmt.Errorf("post webhook reply: unexpected status %d", resp.StatusCode)
	}
	return nil
}

func signHMAC(body []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}

// verifyHMAC verifies the HMAC-SHA256 signature of the body.
func verifyHMAC(body []byte, secret, signature string) bool {
	return hmac.Equal([]byte(signHMAC(body, secret)), []byte(signature))
}
