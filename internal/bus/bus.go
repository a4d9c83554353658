// Package bus carries normalized events from channel adapters to the router.
package bus

import (
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"chatrouter/internal/domain"
)

const (
	defaultBufferSize     = 100
	defaultPublishTimeout = 10 * time.Second
)

// InMemoryBus is a Go-channel based event bus for in-process communication.
type InMemoryBus struct {
	events         chan domain.Event
	publishTimeout time.Duration
	mu             sync.RWMutex
	closed         bool
	dropped        atomic.Int64
	logger         *slog.Logger
}

// Option configures an InMemoryBus.
type Option func(*InMemoryBus)

// WithPublishTimeout bounds how long Publish waits on a full bus.
func WithPublishTimeout(d time.Duration) Option {
	return func(b *InMemoryBus) {
		if d > 0 {
			b.publishTimeout = d
		}
	}
}

// New creates an InMemoryBus with the given buffer size.
func New(bufferSize int, logger *slog.Logger, opts ...Option) *InMemoryBus {
	if bufferSize <= 0 {
		bufferSize = defaultBufferSize
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	b := &InMemoryBus{
		events:         make(chan domain.Event, bufferSize),
		publishTimeout: defaultPublishTimeout,
		logger:         logger,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Publish enqueues ev. When the bus is full it waits up to the publish
// timeout instead of dropping immediately.
func (b *InMemoryBus) Publish(ev domain.Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		b.logger.Warn("attempted to publish to closed bus", "component", ev.Component(), "event", ev.ID())
		return
	}

	select {
	case b.events <- ev:
	default:
		b.logger.Warn("event bus full, waiting...", "component", ev.Component(), "event", ev.ID())
		timer := time.NewTimer(b.publishTimeout)
		defer timer.Stop()
		select {
		case b.events <- ev:
			b.logger.Info("event delivered after wait", "component", ev.Component())
		case <-timer.C:
			b.dropped.Add(1)
			b.logger.Error("event dropped: bus full",
				"component", ev.Component(),
				"event", ev.ID(),
				"waited", b.publishTimeout,
			)
		}
	}
}

func (b *InMemoryBus) Subscribe() <-chan domain.Event {
	return b.events
}

// Len returns the number of queued events.
func (b *InMemoryBus) Len() int {
	return len(b.events)
}

// Dropped returns how many events were discarded after the publish timeout.
func (b *InMemoryBus) Dropped() int64 {
	return b.dropped.Load()
}

func (b *InMemoryBus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.closed {
		b.closed = true
		close(b.events)
	}
}
