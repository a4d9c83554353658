package channel

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"chatrouter/internal/domain"

	"github.com/gorilla/websocket"
)

// WSConfig configures the WebSocket channel.
type WSConfig struct {
	Port   int
	Path   string // WebSocket endpoint path (default: /ws)
	BotID  string
	Logger *slog.Logger
}

// WebSocketChannel lets browser or script clients chat over a WebSocket.
// Clients connected with the same chat_id share a conversation.
type WebSocketChannel struct {
	port   int
	path   string
	botID  string
	bus    domain.MessageBus
	logger *slog.Logger
	server *http.Server
	seq    atomic.Int64

	mu    sync.RWMutex
	rooms map[string]map[*wsClient]struct{} // chat id -> clients
}

// wsClient serializes writes to one connection.
type wsClient struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

// WSMessage is the JSON protocol for WebSocket communication.
type WSMessage struct {
	Type     string   `json:"type"` // "message" | "status"
	Content  string   `json:"content,omitempty"`
	ChatID   string   `json:"chat_id,omitempty"`
	UserID   string   `json:"user_id,omitempty"`
	Mentions []string `json:"mentions,omitempty"`
}

// WebSocketMessage is a message received from a WebSocket client.
type WebSocketMessage struct {
	domain.Base
	msg WSMessage
	ws  *WebSocketChannel
}

func (m *WebSocketMessage) MemberID(context.Context) (string, error)  { return m.msg.UserID, nil }
func (m *WebSocketMessage) ChannelID(context.Context) (string, error) { return m.msg.ChatID, nil }

func (m *WebSocketMessage) Mentions(context.Context) ([]domain.Mention, error) {
	out := make([]domain.Mention, 0, len(m.msg.Mentions))
	for _, id := range m.msg.Mentions {
		out = append(out, domain.Mention{TargetID: id})
	}
	return out, nil
}

func (m *WebSocketMessage) PlainText(context.Context) (string, bool, error) {
	return textOf(m.msg.Content)
}

// Reply broadcasts content to every client in the message's chat.
func (m *WebSocketMessage) Reply(_ context.Context, content string) error {
	if n := m.ws.broadcast(m.msg.ChatID, WSMessage{Type: "message", Content: content, ChatID: m.msg.ChatID, UserID: m.Bot}); n == 0 {
		return fmt.Errorf("websocket chat %s has no connected clients", m.msg.ChatID)
	}
	return nil
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(*http.Request) bool { return true },
}

// NewWebSocketChannel creates a new WebSocket channel.
func NewWebSocketChannel(cfg WSConfig) *WebSocketChannel {
	if cfg.Path == "" {
		cfg.Path = "/ws"
	}
	if cfg.Port == 0 {
		cfg.Port = 8081
	}
	if cfg.BotID == "" {
		cfg.BotID = "chatrouter"
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &WebSocketChannel{
		port:   cfg.Port,
		path:   cfg.Path,
		botID:  cfg.BotID,
		logger: cfg.Logger,
		rooms:  make(map[string]map[*wsClient]struct{}),
	}
}

func (ws *WebSocketChannel) Name() string { return "websocket" }

// Start begins the WebSocket server.
func (ws *WebSocketChannel) Start(ctx context.Context, bus domain.MessageBus) error {
	ws.bus = bus

	ws.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", ws.port),
		Handler:           ws.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ws.logger.Info("websocket server starting", "port", ws.port, "path", ws.path)

	errCh := make(chan error, 1)
	go func() {
		if err := ws.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		ws.closeAll()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return ws.server.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}

// Handler serves the WebSocket endpoint.
func (ws *WebSocketChannel) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc(ws.path, ws.handleUpgrade)
	return mux
}

// Stop is a no-op; the server shuts down when Start's context is cancelled.
func (ws *WebSocketChannel) Stop() error { return nil }

func (ws *WebSocketChannel) handleUpgrade(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		ws.logger.Error("websocket upgrade failed", "err", err)
		return
	}

	chatID := r.URL.Query().Get("chat_id")
	if chatID == "" {
		chatID = "anon-" + strconv.FormatInt(ws.seq.Add(1), 10)
	}

	client := &wsClient{conn: conn}
	ws.join(chatID, client)
	ws.logger.Info("websocket client connected", "chat_id", chatID, "remote", r.RemoteAddr)
	defer func() {
		ws.leave(chatID, client)
		conn.Close()
		ws.logger.Info("websocket client disconnected", "chat_id", chatID, "remote", r.RemoteAddr)
	}()

	client.send(WSMessage{Type: "status", Content: "connected", ChatID: chatID})

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				ws.logger.Error("websocket read error", "err", err)
			}
			return
		}

		var wsMsg WSMessage
		if err := json.Unmarshal(data, &wsMsg); err != nil {
			ws.logger.Warn("invalid websocket message", "err", err)
			continue
		}
		if wsMsg.Type != "message" {
			continue
		}

		wsMsg.ChatID = chatID
		ws.bus.Publish(ws.newMessage(wsMsg))
	}
}

func (ws *WebSocketChannel) newMessage(msg WSMessage) *WebSocketMessage {
	id := "ws-" + strconv.FormatInt(ws.seq.Add(1), 10)
	return &WebSocketMessage{
		Base: domain.Base{EventID: id, ComponentName: "websocket", Bot: ws.botID, Timestamp: time.Now()},
		msg:  msg,
		ws:   ws,
	}
}

func (ws *WebSocketChannel) join(chatID string, c *wsClient) {
	ws.mu.Lock()
	defer ws.mu.Unlock()
	room, ok := ws.rooms[chatID]
	if !ok {
		room = make(map[*wsClient]struct{})
		ws.rooms[chatID] = room
	}
	room[c] = struct{}{}
}

func (ws *WebSocketChannel) leave(chatID string, c *wsClient) {
	ws.mu.Lock()
	defer ws.mu.Unlock()
	delete(ws.rooms[chatID], c)
	if len(ws.rooms[chatID]) == 0 {
		delete(ws.rooms, chatID)
	}
}

// broadcast writes msg to every client in chatID and returns how many
// received it.
func (ws *WebSocketChannel) broadcast(chatID string, msg WSMessage) int {
	data, err := json.Marshal(msg)
	if err != nil {
		return 0
	}

	ws.mu.RLock()
	defer ws.mu.RUnlock()
	sent := 0
	for c := range ws.rooms[chatID] {
		if err := c.write(data); err != nil {
			ws.logger.Debug("websocket write failed", "chat_id", chatID, "err", err)
			continue
		}
		sent++
	}
	return sent
}

func (c *wsClient) write(data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.WriteMessage(websocket.TextMessage, data)
}

func (c *wsClient) send(msg WSMessage) {
	if data, err := json.Marshal(msg); err == nil {
		_ = c.write(data)
	}
}

func (ws *WebSocketChannel) closeAll() {
	ws.mu.Lock()
	defer ws.mu.Unlock()
	for id, room := range ws.rooms {
		for c := range room {
			c.conn.Close()
		}
		delete(ws.rooms, id)
	}
}
