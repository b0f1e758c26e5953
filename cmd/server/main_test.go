package main

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/shahdkhalaf/graduation-project/internal/cache"
	"github.com/shahdkhalaf/graduation-project/internal/config"
	"github.com/shahdkhalaf/graduation-project/internal/ratelimit"
	"github.com/shahdkhalaf/graduation-project/internal/supervisor"
)

func TestNewLimiterMemoryBackend(t *testing.T) {
	tree := supervisor.NewTree(supervisor.TreeConfig{ShutdownTimeout: time.Second})
	limiter := newLimiter(config.RateLimit{Backend: "memory", Requests: 2, Window: time.Minute}, nil, tree)

	if _, ok := limiter.(*ratelimit.TokenBucket); !ok {
		t.Fatalf("expected token bucket, got %T", limiter)
	}
	for i := 0; i < 2; i++ {
		allowed, _, err := limiter.Allow(context.Background(), "10.0.0.1")
		if err != nil || !allowed {
			t.Fatalf("request %d: expected allowed, got %v %v", i, allowed, err)
		}
	}
	allowed, retryAfter, err := limiter.Allow(context.Background(), "10.0.0.1")
	if err != nil || allowed || retryAfter <= 0 {
		t.Fatalf("expected third request rejected with retry, got %v %s %v", allowed, retryAfter, err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	errCh := tree.ServeBackground(ctx)
	cancel()
	select {
	case <-errCh:
	case <-time.After(3 * time.Second):
		t.Fatalf("tree with limiter cleanup did not stop")
	}
}

func TestNewLimiterRedisBackend(t *testing.T) {
	client := redis.NewClient(&redis.Options{Addr: "127.0.0.1:0"})
	t.Cleanup(func() { _ = client.Close() })

	limiter := newLimiter(config.RateLimit{Backend: "redis", Requests: 5, Window: time.Minute}, client, supervisor.NewTree(supervisor.TreeConfig{}))
	if _, ok := limiter.(*ratelimit.RedisLimiter); !ok {
		t.Fatalf("expected redis limiter, got %T", limiter)
	}
}

func TestNewLimiterDisabled(t *testing.T) {
	limiter := newLimiter(config.RateLimit{Disabled: true, Backend: "memory", Requests: 5, Window: time.Minute}, nil, supervisor.NewTree(supervisor.TreeConfig{}))
	if limiter != nil {
		t.Fatalf("expected no limiter, got %T", limiter)
	}
}

func TestNewLocationCache(t *testing.T) {
	if c := newLocationCache(nil, time.Minute); c != nil {
		t.Fatalf("expected no cache without redis, got %T", c)
	}

	client := redis.NewClient(&redis.Options{Addr: "127.0.0.1:0"})
	t.Cleanup(func() { _ = client.Close() })
	c := newLocationCache(client, time.Minute)
	locations, ok := c.(*cache.Locations)
	if !ok || !locations.Enabled() {
		t.Fatalf("expected enabled redis cache, got %T", c)
	}
}

func TestFareTable(t *testing.T) {
	if fares := fareTable(nil); len(fares) != 0 {
		t.Fatalf("expected empty fare table, got %v", fares)
	}

	fares := fareTable([]config.RouteFare{
		{From: "Maadi", To: "Zamalek", Cost: 45.5},
		{From: "Dokki", To: "Heliopolis", Cost: 60, Currency: "USD"},
	})
	if len(fares) != 2 {
		t.Fatalf("expected two fares, got %v", fares)
	}
	if fares[0].From != "Maadi" || fares[0].To != "Zamalek" || fares[0].Cost != 45.5 || fares[0].Currency != "" {
		t.Fatalf("unexpected first fare %+v", fares[0])
	}
	if fares[1].Currency != "USD" {
		t.Fatalf("expected currency carried through, got %+v", fares[1])
	}
}
