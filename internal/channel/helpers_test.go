package channel

import (
	"log/slog"
	"os"
	"sync"

	"chatrouter/internal/domain"
)

func testChannelLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
}

// recordingBus collects published events.
type recordingBus struct {
	mu     sync.Mutex
	events []domain.Event
	ch     chan domain.Event
}

func newRecordingBus() *recordingBus {
	return &recordingBus{ch: make(chan domain.Event, 16)}
}

func (b *recordingBus) Publish(ev domain.Event) {
	b.mu.Lock()
	b.events = append(b.events, ev)
	b.mu.Unlock()
	select {
	case b.ch <- ev:
	default:
	}
}

func (b *recordingBus) Subscribe() <-chan domain.Event { return b.ch }
func (b *recordingBus) Close()                         {}

func (b *recordingBus) published() []domain.Event {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]domain.Event(nil), b.events...)
}
