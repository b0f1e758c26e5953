package db

import (
	"context"
	"fmt"
)

var schema = []string{
	`CREATE TABLE IF NOT EXISTS users (
    user_id        BIGSERIAL PRIMARY KEY,
    first_name     TEXT        NOT NULL,
    last_name      TEXT        NOT NULL,
    email          TEXT        NOT NULL UNIQUE,
    password       TEXT        NOT NULL,
    age            INTEGER     NOT NULL,
    gendar         TEXT        NOT NULL,
    district       TEXT        NOT NULL,
    email_verified BOOLEAN     NOT NULL DEFAULT FALSE,
    created_at     TIMESTAMPTZ NOT NULL DEFAULT NOW()
)`,
	`CREATE TABLE IF NOT EXISTS tracking_requests (
    log_id       BIGSERIAL PRIMARY KEY,
    from_user_id BIGINT      NOT NULL REFERENCES users (user_id),
    to_user_id   BIGINT      NOT NULL REFERENCES users (user_id),
    status       SMALLINT    NOT NULL DEFAULT 0,
    created_at   TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at   TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    CHECK (from_user_id <> to_user_id)
)`,
	// At most one pending request per ordered pair.
	`CREATE UNIQUE INDEX IF NOT EXISTS tracking_requests_one_pending
    ON tracking_requests (from_user_id, to_user_id) WHERE status = 0`,
	`CREATE INDEX IF NOT EXISTS tracking_requests_to_user
    ON tracking_requests (to_user_id, status)`,
	`CREATE TABLE IF NOT EXISTS location_reports (
    id           BIGSERIAL PRIMARY KEY,
    from_user_id BIGINT           NOT NULL REFERENCES users (user_id),
    to_user_id   BIGINT           NOT NULL REFERENCES users (user_id),
    latitude     DOUBLE PRECISION NOT NULL,
    longitude    DOUBLE PRECISION NOT NULL,
    "timestamp"  TIMESTAMPTZ      NOT NULL DEFAULT clock_timestamp()
)`,
	`CREATE INDEX IF NOT EXISTS location_reports_to_user_ts
    ON location_reports (to_user_id, "timestamp" DESC, id DESC)`,
	`CREATE TABLE IF NOT EXISTS current_locations (
    user_id    BIGINT PRIMARY KEY REFERENCES users (user_id),
    latitude   DOUBLE PRECISION NOT NULL,
    longitude  DOUBLE PRECISION NOT NULL,
    updated_at TIMESTAMPTZ      NOT NULL DEFAULT NOW()
)`,
	`CREATE TABLE IF NOT EXISTS routes (
    route_from TEXT          NOT NULL,
    route_to   TEXT          NOT NULL,
    cost       NUMERIC(12,2) NOT NULL,
    currency   TEXT          NOT NULL DEFAULT 'EGP',
    PRIMARY KEY (route_from, route_to)
)`,
}

// Migrate creates the tables and indexes if they do not exist yet.
func Migrate(ctx context.Context, q Querier) error {
	for i, stmt := range schema {
		if _, err := q.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("schema statement %d: %w", i, err)
		}
	}
	return nil
}
