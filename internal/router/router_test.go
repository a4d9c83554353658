package router

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"chatrouter/internal/bus"
	"chatrouter/internal/dispatch"
	"chatrouter/internal/domain"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func event(id string) domain.Event {
	return domain.Base{EventID: id, ComponentName: "cli", Bot: "bot", Timestamp: time.Now()}
}

// blockingDispatcher records events and optionally blocks until released.
type blockingDispatcher struct {
	mu      sync.Mutex
	seen    []string
	release chan struct{}

	active atomic.Int32
	peak   atomic.Int32
}

func (d *blockingDispatcher) Dispatch(ctx context.Context, ev domain.Event) []dispatch.Outcome {
	n := d.active.Add(1)
	defer d.active.Add(-1)
	for {
		p := d.peak.Load()
		if n <= p || d.peak.CompareAndSwap(p, n) {
			break
		}
	}

	d.mu.Lock()
	d.seen = append(d.seen, ev.ID())
	d.mu.Unlock()

	if d.release != nil {
		select {
		case <-d.release:
		case <-ctx.Done():
		}
	}
	return nil
}

func (d *blockingDispatcher) Seen() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.seen...)
}

func TestRouter_DispatchesEveryEvent(t *testing.T) {
	b := bus.New(10, testLogger())
	d := &blockingDispatcher{}
	r := New(Config{Source: b, Dispatcher: d, Logger: testLogger()})

	done := make(chan struct{})
	go func() {
		r.Run(context.Background())
		close(done)
	}()

	for _, id := range []string{"a", "b", "c"} {
		b.Publish(event(id))
	}
	b.Close()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("router did not stop after the source closed")
	}
	assert.ElementsMatch(t, []string{"a", "b", "c"}, d.Seen())
}

func TestRouter_BoundsConcurrency(t *testing.T) {
	b := bus.New(10, testLogger())
	d := &blockingDispatcher{release: make(chan struct{})}
	r := New(Config{Source: b, Dispatcher: d, Logger: testLogger(), MaxConcurrentEvents: 2})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		r.Run(ctx)
		close(done)
	}()

	for i := 0; i < 5; i++ {
		b.Publish(event(string(rune('a' + i))))
	}
	require.Eventually(t, func() bool { return d.active.Load() == 2 }, time.Second, 5*time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, int32(2), d.peak.Load())

	close(d.release)
	require.Eventually(t, func() bool { return len(d.Seen()) == 5 }, time.Second, 5*time.Millisecond)

	cancel()
	<-done
	b.Close()
}

func TestRouter_StopsOnCancelAndWaitsForInflight(t *testing.T) {
	b := bus.New(10, testLogger())
	d := &blockingDispatcher{release: make(chan struct{})}
	r := New(Config{Source: b, Dispatcher: d, Logger: testLogger()})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		r.Run(ctx)
		close(done)
	}()

	b.Publish(event("x"))
	require.Eventually(t, func() bool { return d.active.Load() == 1 }, time.Second, 5*time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("router did not stop")
	}
	assert.Equal(t, int32(0), d.active.Load())
	b.Close()
}

func TestRouter_HandleAppliesTimeout(t *testing.T) {
	reg := dispatch.NewRegistry(testLogger())
	_, err := reg.Register(0, nil, dispatch.HandlerFunc(func(ctx context.Context, ev domain.Event) error {
		<-ctx.Done()
		return ctx.Err()
	}))
	require.NoError(t, err)

	r := New(Config{Dispatcher: dispatch.New(reg), Logger: testLogger(), EventTimeout: 20 * time.Millisecond})
	outs := r.Handle(context.Background(), event("slow"))

	require.Len(t, outs, 1)
	assert.Equal(t, dispatch.StatusFailed, outs[0].Status)
	assert.True(t, errors.Is(outs[0].Err, context.DeadlineExceeded))
}

func TestNew_Defaults(t *testing.T) {
	r := New(Config{})
	assert.Equal(t, defaultMaxConcurrentEvents, r.maxConcurrent)
	assert.NotNil(t, r.logger)
	assert.Zero(t, r.timeout)
}
