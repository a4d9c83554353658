package listener

import (
	"context"
	"sync"
	"time"
)

// maxIdleBuckets bounds how many keyed buckets are kept before full ones are
// evicted. A full bucket is indistinguishable from a fresh one.
const maxIdleBuckets = 1024

type bucket struct {
	tokens float64
	last   time.Time
}

// RateLimiter throttles listener actions with one token bucket per key. The
// empty key is a single shared bucket.
type RateLimiter struct {
	mu      sync.Mutex
	burst   float64
	perSec  float64
	buckets map[string]*bucket
	now     func() time.Time
}

// NewRateLimiter allows burst actions at once, refilled at perMinute. Zero
// values default to a burst of 1 and one action per second.
func NewRateLimiter(burst int, perMinute float64) *RateLimiter {
	if burst <= 0 {
		burst = 1
	}
	if perMinute <= 0 {
		perMinute = 60
	}
	return &RateLimiter{
		burst:   float64(burst),
		perSec:  perMinute / 60,
		buckets: make(map[string]*bucket),
		now:     time.Now,
	}
}

// reserve takes a token for key, or reports how long until one is due.
func (rl *RateLimiter) reserve(key string) time.Duration {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	b, ok := rl.buckets[key]
	if !ok {
		if len(rl.buckets) >= maxIdleBuckets {
			rl.evictFull(now)
		}
		b = &bucket{tokens: rl.burst, last: now}
		rl.buckets[key] = b
	}
	b.tokens = min(rl.burst, b.tokens+now.Sub(b.last).Seconds()*rl.perSec)
	b.last = now

	if b.tokens >= 1 {
		b.tokens--
		return 0
	}
	return time.Duration((1 - b.tokens) / rl.perSec * float64(time.Second))
}

// evictFull drops buckets that have refilled completely. mu must be held.
func (rl *RateLimiter) evictFull(now time.Time) {
	for k, b := range rl.buckets {
		if b.tokens+now.Sub(b.last).Seconds()*rl.perSec >= rl.burst {
			delete(rl.buckets, k)
		}
	}
}

// Allow takes a token for key without blocking.
func (rl *RateLimiter) Allow(key string) bool {
	return rl.reserve(key) == 0
}

// Wait blocks until a token for key is available or ctx is done.
func (rl *RateLimiter) Wait(ctx context.Context, key string) error {
	for {
		d := rl.reserve(key)
		if d == 0 {
			return nil
		}
		timer := time.NewTimer(d)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}
