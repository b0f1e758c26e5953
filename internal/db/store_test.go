package db

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/sony/gobreaker/v2"

	"github.com/shahdkhalaf/graduation-project/internal/apperr"
)

func TestIsTransient(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want bool
	}{
		{"no rows", pgx.ErrNoRows, false},
		{"unique violation", &pgconn.PgError{Code: UniqueViolation}, false},
		{"wrapped pg error", fmt.Errorf("insert: %w", &pgconn.PgError{Code: "42P01"}), false},
		{"client error", apperr.NotFound("request_not_found"), false},
		{"canceled", context.Canceled, false},
		{"deadline", context.DeadlineExceeded, true},
		{"dial failure", errors.New("dial tcp 127.0.0.1:5432: connect: connection refused"), true},
	}
	for _, tc := range cases {
		if got := isTransient(tc.err); got != tc.want {
			t.Fatalf("%s: expected %v, got %v", tc.name, tc.want, got)
		}
	}
}

func TestPgCode(t *testing.T) {
	err := fmt.Errorf("create: %w", &pgconn.PgError{Code: ForeignKeyViolation})
	if PgCode(err) != ForeignKeyViolation {
		t.Fatalf("expected foreign key code, got %q", PgCode(err))
	}
	if PgCode(errors.New("boom")) != "" {
		t.Fatalf("expected empty code for non-server error")
	}
}

func TestRunSurfacesTimeoutAsUnavailable(t *testing.T) {
	store := NewStore(nil, Options{QueryTimeout: 10 * time.Millisecond, BreakerTrips: 100})
	err := store.run(context.Background(), "slow", func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})
	if apperr.KindOf(err) != apperr.KindUnavailable {
		t.Fatalf("expected unavailable, got %v", err)
	}
}

func TestRunPassesClientErrorsThrough(t *testing.T) {
	store := NewStore(nil, Options{BreakerTrips: 1})
	for i := 0; i < 3; i++ {
		err := store.run(context.Background(), "lookup", func(context.Context) error {
			return pgx.ErrNoRows
		})
		if !errors.Is(err, pgx.ErrNoRows) {
			t.Fatalf("expected no rows to pass through, got %v", err)
		}
	}
	if store.breaker.State() != gobreaker.StateClosed {
		t.Fatalf("client errors must not trip the breaker")
	}
}

func TestBreakerOpensAfterConsecutiveFailures(t *testing.T) {
	store := NewStore(nil, Options{BreakerTrips: 2, BreakerTimeout: time.Minute})
	down := errors.New("connection reset by peer")
	for i := 0; i < 2; i++ {
		_ = store.run(context.Background(), "ping", func(context.Context) error { return down })
	}

	called := false
	err := store.run(context.Background(), "ping", func(context.Context) error {
		called = true
		return nil
	})
	if called {
		t.Fatalf("open breaker must not call through")
	}
	if !errors.Is(err, gobreaker.ErrOpenState) || apperr.KindOf(err) != apperr.KindUnavailable {
		t.Fatalf("expected open breaker unavailable error, got %v", err)
	}
}
