package listener

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"chatrouter/internal/domain"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// chatMessage is a room message that records replies.
type chatMessage struct {
	domain.Base
	author string
	text   string

	mu      sync.Mutex
	replies []string
}

func newChatMessage(component, author, text string) *chatMessage {
	return &chatMessage{
		Base:   domain.Base{EventID: "m-1", ComponentName: component, Bot: "bot-1", Timestamp: time.Unix(1700000000, 0)},
		author: author,
		text:   text,
	}
}

func (m *chatMessage) MemberID(context.Context) (string, error) { return m.author, nil }
func (m *chatMessage) PlainText(context.Context) (string, bool, error) {
	return m.text, true, nil
}

func (m *chatMessage) Reply(_ context.Context, content string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.replies = append(m.replies, content)
	return nil
}

func (m *chatMessage) Replies() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.replies...)
}

// silentEvent has text but cannot be replied to.
type silentEvent struct {
	domain.Base
	text string
}

func (e *silentEvent) PlainText(context.Context) (string, bool, error) { return e.text, true, nil }

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}
