package service

import (
	"context"
	"math"

	"github.com/shahdkhalaf/graduation-project/internal/apperr"
	"github.com/shahdkhalaf/graduation-project/internal/metrics"
	"github.com/shahdkhalaf/graduation-project/internal/model"
)

type TrackingStore interface {
	UserExists(ctx context.Context, userID int64) (bool, error)
	CreatePendingRequest(ctx context.Context, fromUserID, toUserID int64) (model.TrackingRequest, error)
	ResolvePendingRequest(ctx context.Context, fromUserID, toUserID int64, status model.TrackingStatus) (model.TrackingRequest, error)
	ListIncomingRequests(ctx context.Context, toUserID int64, statuses []model.TrackingStatus) ([]model.TrackingRequest, error)
	ListOutgoingRequests(ctx context.Context, fromUserID int64) ([]model.TrackingRequest, error)
}

// Tracking runs the request workflow: a request starts Pending and only its
// recipient can move it to a resolved status, once.
type Tracking struct {
	store    TrackingStore
	incoming []model.TrackingStatus
}

func NewTracking(store TrackingStore, incomingStatuses []int) *Tracking {
	incoming := make([]model.TrackingStatus, 0, len(incomingStatuses))
	for _, status := range incomingStatuses {
		incoming = append(incoming, model.TrackingStatus(status))
	}
	if len(incoming) == 0 {
		incoming = []model.TrackingStatus{model.StatusPending, model.StatusAccepted}
	}
	return &Tracking{store: store, incoming: incoming}
}

func (s *Tracking) SendRequest(ctx context.Context, fromUserID, toUserID int64) (model.TrackingRequest, error) {
	if toUserID <= 0 {
		return model.TrackingRequest{}, apperr.InvalidArgument("invalid_to_user_id")
	}
	if fromUserID == toUserID {
		return model.TrackingRequest{}, apperr.InvalidArgument("self_tracking")
	}
	exists, err := s.store.UserExists(ctx, toUserID)
	if err != nil {
		return model.TrackingRequest{}, err
	}
	if !exists {
		return model.TrackingRequest{}, apperr.NotFound("user_not_found")
	}
	req, err := s.store.CreatePendingRequest(ctx, fromUserID, toUserID)
	if err != nil {
		return model.TrackingRequest{}, err
	}
	metrics.TrackingTransitions.WithLabelValues(model.StatusPending.String()).Inc()
	return req, nil
}

// UpdateRequest resolves the pending request fromUserID sent to caller.
// claimedTo is the optional recipient named in the request body; it must be the caller.
func (s *Tracking) UpdateRequest(ctx context.Context, caller, fromUserID int64, status int, claimedTo *int64) (model.TrackingRequest, error) {
	if fromUserID <= 0 {
		return model.TrackingRequest{}, apperr.InvalidArgument("invalid_from_user_id")
	}
	next := model.TrackingStatus(status)
	if !next.Resolved() || status > math.MaxInt16 {
		return model.TrackingRequest{}, apperr.InvalidArgument("invalid_status")
	}
	if claimedTo != nil && *claimedTo != caller {
		return model.TrackingRequest{}, apperr.Forbidden("forbidden")
	}
	if fromUserID == caller {
		return model.TrackingRequest{}, apperr.Forbidden("forbidden")
	}
	req, err := s.store.ResolvePendingRequest(ctx, fromUserID, caller, next)
	if err != nil {
		return model.TrackingRequest{}, err
	}
	metrics.TrackingTransitions.WithLabelValues(next.String()).Inc()
	return req, nil
}

func (s *Tracking) ListIncoming(ctx context.Context, caller int64) ([]model.TrackingRequest, error) {
	return s.store.ListIncomingRequests(ctx, caller, s.incoming)
}

func (s *Tracking) ListOutgoing(ctx context.Context, caller int64) ([]model.TrackingRequest, error) {
	return s.store.ListOutgoingRequests(ctx, caller)
}
