// Package ratelimit provides per-key request limiters. The HTTP layer keys
// them by client IP.
package ratelimit

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Limiter decides whether one more request for key fits the budget. When it
// does not, retryAfter is how long the caller should wait.
type Limiter interface {
	Allow(ctx context.Context, key string) (allowed bool, retryAfter time.Duration, err error)
}

// TokenBucket keeps one x/time/rate bucket per key in process memory.
// Buckets idle for longer than the idle window are dropped by Serve.
type TokenBucket struct {
	mu       sync.Mutex
	buckets  map[string]*bucket
	limit    rate.Limit
	burst    int
	idle     time.Duration
	interval time.Duration
	now      func() time.Time
}

type bucket struct {
	limiter    *rate.Limiter
	lastAccess time.Time
}

// NewTokenBucket allows requests per window, refilled evenly across the window.
func NewTokenBucket(requests int, window time.Duration) *TokenBucket {
	if requests <= 0 {
		requests = 1
	}
	if window <= 0 {
		window = time.Minute
	}
	return &TokenBucket{
		buckets:  make(map[string]*bucket),
		limit:    rate.Every(window / time.Duration(requests)),
		burst:    requests,
		idle:     time.Hour,
		interval: 5 * time.Minute,
		now:      time.Now,
	}
}

func (tb *TokenBucket) Allow(_ context.Context, key string) (bool, time.Duration, error) {
	now := tb.now()
	tb.mu.Lock()
	entry, ok := tb.buckets[key]
	if !ok {
		entry = &bucket{limiter: rate.NewLimiter(tb.limit, tb.burst)}
		tb.buckets[key] = entry
	}
	entry.lastAccess = now
	limiter := entry.limiter
	tb.mu.Unlock()

	reservation := limiter.ReserveN(now, 1)
	if !reservation.OK() {
		return false, time.Second, nil
	}
	if delay := reservation.DelayFrom(now); delay > 0 {
		reservation.CancelAt(now)
		return false, delay, nil
	}
	return true, 0, nil
}

// Serve drops idle buckets until ctx is done.
func (tb *TokenBucket) Serve(ctx context.Context) error {
	ticker := time.NewTicker(tb.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			tb.cleanup()
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (tb *TokenBucket) String() string {
	return "rate-limit-cleanup"
}

func (tb *TokenBucket) cleanup() {
	threshold := tb.now().Add(-tb.idle)
	tb.mu.Lock()
	defer tb.mu.Unlock()
	for key, entry := range tb.buckets {
		if entry.lastAccess.Before(threshold) {
			delete(tb.buckets, key)
		}
	}
}

func (tb *TokenBucket) size() int {
	tb.mu.Lock()
	defer tb.mu.Unlock()
	return len(tb.buckets)
}
