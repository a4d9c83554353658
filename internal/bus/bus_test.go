package bus

import (
	"log/slog"
	"os"
	"testing"
	"time"

	"chatrouter/internal/domain"
)

func testBusLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError + 1}))
}

func event(id string) domain.Base {
	return domain.Base{EventID: id, ComponentName: "cli", Bot: "bot", Timestamp: time.Now()}
}

func TestInMemoryBus_PublishSubscribe(t *testing.T) {
	b := New(4, testBusLogger())

	b.Publish(event("a"))
	b.Publish(event("b"))

	if b.Len() != 2 {
		t.Fatalf("expected 2 queued events, got %d", b.Len())
	}
	got := <-b.Subscribe()
	if got.ID() != "a" {
		t.Errorf("expected FIFO delivery, got %q", got.ID())
	}
}

func TestInMemoryBus_FullBusDropsAfterTimeout(t *testing.T) {
	b := New(1, testBusLogger(), WithPublishTimeout(20*time.Millisecond))

	b.Publish(event("first"))
	start := time.Now()
	b.Publish(event("second"))

	if time.Since(start) < 20*time.Millisecond {
		t.Error("publish on a full bus should wait for the timeout")
	}
	if b.Dropped() != 1 {
		t.Errorf("expected 1 dropped event, got %d", b.Dropped())
	}
}

func TestInMemoryBus_FullBusDeliversWhenDrained(t *testing.T) {
	b := New(1, testBusLogger(), WithPublishTimeout(time.Second))
	b.Publish(event("first"))

	go func() {
		time.Sleep(10 * time.Millisecond)
		<-b.Subscribe()
	}()
	b.Publish(event("second"))

	if b.Dropped() != 0 {
		t.Errorf("expected no drops, got %d", b.Dropped())
	}
	if got := <-b.Subscribe(); got.ID() != "second" {
		t.Errorf("expected second event, got %q", got.ID())
	}
}

func TestInMemoryBus_CloseIsIdempotent(t *testing.T) {
	b := New(2, testBusLogger())
	b.Close()
	b.Close()

	b.Publish(event("late"))
	if _, ok := <-b.Subscribe(); ok {
		t.Error("subscription should be closed")
	}
}
