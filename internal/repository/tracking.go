package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"github.com/shahdkhalaf/graduation-project/internal/apperr"
	"github.com/shahdkhalaf/graduation-project/internal/db"
	"github.com/shahdkhalaf/graduation-project/internal/model"
)

const trackingColumns = `log_id, from_user_id, to_user_id, status, created_at, updated_at`

func scanTracking(row rowScanner) (model.TrackingRequest, error) {
	var req model.TrackingRequest
	var status int16
	err := row.Scan(&req.LogID, &req.FromUserID, &req.ToUserID, &status, &req.CreatedAt, &req.UpdatedAt)
	req.Status = model.TrackingStatus(status)
	return req, err
}

// CreatePendingRequest inserts a Pending request unless one already exists for
// the ordered pair. The partial unique index makes the check and insert atomic.
func (s *Store) CreatePendingRequest(ctx context.Context, fromUserID, toUserID int64) (model.TrackingRequest, error) {
	var req model.TrackingRequest
	err := s.db.Run(ctx, "tracking.create", func(ctx context.Context, q db.Querier) error {
		var err error
		req, err = scanTracking(q.QueryRow(ctx, `
			INSERT INTO tracking_requests (from_user_id, to_user_id, status)
			VALUES ($1, $2, 0)
			ON CONFLICT (from_user_id, to_user_id) WHERE status = 0 DO NOTHING
			RETURNING `+trackingColumns,
			fromUserID, toUserID,
		))
		return err
	})
	switch {
	case err == nil:
		return req, nil
	case errors.Is(err, pgx.ErrNoRows):
		return model.TrackingRequest{}, apperr.Conflict("request_pending")
	case db.PgCode(err) == db.ForeignKeyViolation:
		return model.TrackingRequest{}, apperr.NotFound("user_not_found")
	case db.PgCode(err) == db.CheckViolation:
		return model.TrackingRequest{}, apperr.InvalidArgument("self_tracking")
	}
	return model.TrackingRequest{}, classify(err, "")
}

// ResolvePendingRequest moves the oldest Pending request from fromUserID to
// toUserID into status. Zero matching rows is NotFound("request_not_found").
func (s *Store) ResolvePendingRequest(ctx context.Context, fromUserID, toUserID int64, status model.TrackingStatus) (model.TrackingRequest, error) {
	var req model.TrackingRequest
	err := s.db.Run(ctx, "tracking.resolve", func(ctx context.Context, q db.Querier) error {
		var err error
		req, err = scanTracking(q.QueryRow(ctx, `
			UPDATE tracking_requests
			SET status = $3, updated_at = NOW()
			WHERE log_id = (
				SELECT log_id FROM tracking_requests
				WHERE from_user_id = $1 AND to_user_id = $2 AND status = 0
				ORDER BY log_id
				LIMIT 1
				FOR UPDATE
			)
			RETURNING `+trackingColumns,
			fromUserID, toUserID, int16(status),
		))
		return err
	})
	return req, classify(err, "request_not_found")
}

func (s *Store) ListIncomingRequests(ctx context.Context, toUserID int64, statuses []model.TrackingStatus) ([]model.TrackingRequest, error) {
	codes := make([]int32, 0, len(statuses))
	for _, status := range statuses {
		codes = append(codes, int32(status))
	}
	return s.listRequests(ctx, "tracking.incoming", `
		SELECT `+trackingColumns+` FROM tracking_requests
		WHERE to_user_id = $1 AND status = ANY($2::int[])
		ORDER BY log_id`, toUserID, codes)
}

func (s *Store) ListOutgoingRequests(ctx context.Context, fromUserID int64) ([]model.TrackingRequest, error) {
	return s.listRequests(ctx, "tracking.outgoing", `
		SELECT `+trackingColumns+` FROM tracking_requests
		WHERE from_user_id = $1
		ORDER BY log_id`, fromUserID)
}

func (s *Store) listRequests(ctx context.Context, op, query string, args ...any) ([]model.TrackingRequest, error) {
	requests := []model.TrackingRequest{}
	err := s.db.Run(ctx, op, func(ctx context.Context, q db.Querier) error {
		rows, err := q.Query(ctx, query, args...)
		if err != nil {
			return err
		}
		collected, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (model.TrackingRequest, error) {
			return scanTracking(row)
		})
		if err != nil {
			return err
		}
		requests = append(requests, collected...)
		return nil
	})
	return requests, classify(err, "")
}

// HasAcceptedRelation reports whether an Accepted request links a and b in either direction.
func (s *Store) HasAcceptedRelation(ctx context.Context, a, b int64) (bool, error) {
	var ok bool
	err := s.db.Run(ctx, "tracking.accepted", func(ctx context.Context, q db.Querier) error {
		return q.QueryRow(ctx, `
			SELECT EXISTS (
				SELECT 1 FROM tracking_requests
				WHERE status = 1
				  AND ((from_user_id = $1 AND to_user_id = $2) OR (from_user_id = $2 AND to_user_id = $1))
			)`, a, b).Scan(&ok)
	})
	return ok, classify(err, "")
}
