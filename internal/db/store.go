package db

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sony/gobreaker/v2"

	"github.com/shahdkhalaf/graduation-project/internal/apperr"
	"github.com/shahdkhalaf/graduation-project/internal/logging"
	"github.com/shahdkhalaf/graduation-project/internal/metrics"
)

// Querier is satisfied by both *pgxpool.Pool and pgx.Tx.
type Querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type Options struct {
	QueryTimeout   time.Duration
	BreakerTimeout time.Duration
	BreakerTrips   uint32
}

type Store struct {
	Pool    *pgxpool.Pool
	timeout time.Duration
	breaker *gobreaker.CircuitBreaker[struct{}]
}

func NewStore(pool *pgxpool.Pool, opts Options) *Store {
	if opts.QueryTimeout <= 0 {
		opts.QueryTimeout = 5 * time.Second
	}
	if opts.BreakerTrips == 0 {
		opts.BreakerTrips = 5
	}
	trips := opts.BreakerTrips
	breaker := gobreaker.NewCircuitBreaker[struct{}](gobreaker.Settings{
		Name:    "postgres",
		Timeout: opts.BreakerTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= trips
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logging.Warn().Str("breaker", name).Str("from", from.String()).Str("to", to.String()).Msg("circuit breaker state change")
		},
		IsSuccessful: func(err error) bool {
			return err == nil || !isTransient(err)
		},
	})
	return &Store{Pool: pool, timeout: opts.QueryTimeout, breaker: breaker}
}

// Run executes fn against the pool under the query timeout and circuit breaker.
func (s *Store) Run(ctx context.Context, op string, fn func(ctx context.Context, q Querier) error) error {
	return s.run(ctx, op, func(ctx context.Context) error {
		return fn(ctx, s.Pool)
	})
}

// WithTx executes fn inside a single transaction; any error rolls it back.
func (s *Store) WithTx(ctx context.Context, op string, fn func(ctx context.Context, tx pgx.Tx) error) error {
	return s.run(ctx, op, func(ctx context.Context) error {
		tx, err := s.Pool.BeginTx(ctx, pgx.TxOptions{})
		if err != nil {
			return err
		}
		if err := fn(ctx, tx); err != nil {
			_ = tx.Rollback(ctx)
			return err
		}
		return tx.Commit(ctx)
	})
}

func (s *Store) Ping(ctx context.Context) error {
	return s.Run(ctx, "ping", func(ctx context.Context, q Querier) error {
		var solution int
		return q.QueryRow(ctx, `SELECT 1 + 1 AS solution`).Scan(&solution)
	})
}

func (s *Store) run(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	start := time.Now()
	_, err := s.breaker.Execute(func() (struct{}, error) {
		opCtx, cancel := context.WithTimeout(ctx, s.timeout)
		defer cancel()
		return struct{}{}, fn(opCtx)
	})
	if err == nil {
		metrics.ObserveStore(op, start, nil)
		return nil
	}
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		metrics.ObserveStore(op, start, err)
		return apperr.Unavailable(err)
	}
	if failure := unexpected(err); failure != nil {
		metrics.ObserveStore(op, start, failure)
		logging.Ctx(ctx).Error().Err(err).Str("operation", op).Msg("store operation failed")
	} else {
		metrics.ObserveStore(op, start, nil)
	}
	if isTransient(err) {
		return apperr.Unavailable(err)
	}
	return err
}

// isTransient reports failures of the store itself rather than of the statement:
// timeouts, dropped connections, refused dials.
func isTransient(err error) bool {
	if err == nil {
		return false
	}
	var appErr *apperr.Error
	if errors.As(err, &appErr) {
		return appErr.Kind == apperr.KindUnavailable
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return false
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return false
	}
	return true
}

// unexpected filters out outcomes the caller maps to a client error.
func unexpected(err error) error {
	if err == nil || errors.Is(err, pgx.ErrNoRows) || errors.Is(err, context.Canceled) {
		return nil
	}
	switch PgCode(err) {
	case UniqueViolation, ForeignKeyViolation, CheckViolation:
		return nil
	}
	var appErr *apperr.Error
	if errors.As(err, &appErr) && appErr.Kind != apperr.KindInternal && appErr.Kind != apperr.KindUnavailable {
		return nil
	}
	return err
}

const (
	UniqueViolation     = "23505"
	ForeignKeyViolation = "23503"
	CheckViolation      = "23514"
)

// PgCode returns the SQLSTATE of err, or "" if err is not a server error.
func PgCode(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code
	}
	return ""
}
