package listener

import (
	"context"
	"errors"
	"testing"
	"time"
)

// fakeClock drives a limiter without sleeping.
type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time          { return c.t }
func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestLimiter(burst int, perMinute float64) (*RateLimiter, *fakeClock) {
	clock := &fakeClock{t: time.Unix(1700000000, 0)}
	rl := NewRateLimiter(burst, perMinute)
	rl.now = clock.now
	return rl, clock
}

func TestRateLimiter_Burst(t *testing.T) {
	rl, _ := newTestLimiter(3, 60)
	for i := 0; i < 3; i++ {
		if !rl.Allow("") {
			t.Fatalf("burst token %d refused", i)
		}
	}
	if rl.Allow("") {
		t.Fatal("token over burst should be refused")
	}
}

func TestRateLimiter_Refill(t *testing.T) {
	rl, clock := newTestLimiter(2, 60) // one per second

	rl.Allow("")
	rl.Allow("")
	clock.advance(500 * time.Millisecond)
	if rl.Allow("") {
		t.Fatal("half a token should not be enough")
	}
	clock.advance(500 * time.Millisecond)
	if !rl.Allow("") {
		t.Fatal("expected a refilled token")
	}

	clock.advance(time.Hour)
	if !rl.Allow("") || !rl.Allow("") || rl.Allow("") {
		t.Fatal("refill should cap at burst")
	}
}

func TestRateLimiter_KeysAreIndependent(t *testing.T) {
	rl, _ := newTestLimiter(1, 1)

	if !rl.Allow("alice") {
		t.Fatal("alice first token refused")
	}
	if rl.Allow("alice") {
		t.Fatal("alice second token should be refused")
	}
	if !rl.Allow("bob") {
		t.Fatal("bob should have his own bucket")
	}
}

func TestRateLimiter_ReserveReportsDelay(t *testing.T) {
	rl, _ := newTestLimiter(1, 120) // two per second

	if d := rl.reserve("k"); d != 0 {
		t.Fatalf("first reserve should be immediate, got %v", d)
	}
	if d := rl.reserve("k"); d != 500*time.Millisecond {
		t.Fatalf("expected 500ms delay, got %v", d)
	}
}

func TestRateLimiter_EvictsFullBuckets(t *testing.T) {
	rl, clock := newTestLimiter(1, 60)
	for i := 0; i < maxIdleBuckets; i++ {
		rl.Allow(string(rune('a' + i%26)) + string(rune('0'+i/26)))
	}
	clock.advance(time.Minute)
	rl.Allow("fresh")
	if n := len(rl.buckets); n != 1 {
		t.Fatalf("expected refilled buckets to be evicted, %d left", n)
	}
}

func TestRateLimiter_WaitBlocksUntilToken(t *testing.T) {
	rl := NewRateLimiter(1, 600) // ten per second

	ctx := context.Background()
	if err := rl.Wait(ctx, ""); err != nil {
		t.Fatalf("first wait: %v", err)
	}
	start := time.Now()
	if err := rl.Wait(ctx, ""); err != nil {
		t.Fatalf("second wait: %v", err)
	}
	if elapsed := time.Since(start); elapsed < 50*time.Millisecond {
		t.Fatalf("expected some wait time, got %v", elapsed)
	}
}

func TestRateLimiter_WaitCancelled(t *testing.T) {
	rl := NewRateLimiter(1, 1)
	ctx, cancel := context.WithCancel(context.Background())
	if err := rl.Wait(ctx, ""); err != nil {
		t.Fatal(err)
	}

	cancel()
	if err := rl.Wait(ctx, ""); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestRateLimiter_Defaults(t *testing.T) {
	rl := NewRateLimiter(0, 0)
	if rl.burst != 1 || rl.perSec != 1 {
		t.Fatalf("unexpected defaults burst=%v perSec=%v", rl.burst, rl.perSec)
	}
}
