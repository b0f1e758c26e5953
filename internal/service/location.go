package service

import (
	"context"
	"math"

	"github.com/shahdkhalaf/graduation-project/internal/apperr"
	"github.com/shahdkhalaf/graduation-project/internal/logging"
	"github.com/shahdkhalaf/graduation-project/internal/metrics"
	"github.com/shahdkhalaf/graduation-project/internal/model"
)

type LocationStore interface {
	AppendLocation(ctx context.Context, report model.LocationReport) (model.LocationReport, error)
	LatestLocationFor(ctx context.Context, toUserID int64) (model.LocationReport, error)
	CurrentLocation(ctx context.Context, userID int64) (model.CurrentLocation, error)
	HasAcceptedRelation(ctx context.Context, a, b int64) (bool, error)
}

type LocationCache interface {
	Store(ctx context.Context, report model.LocationReport) error
	Latest(ctx context.Context, toUserID int64) (model.LocationReport, bool, error)
	Invalidate(ctx context.Context, toUserID int64) error
}

type Location struct {
	store           LocationStore
	cache           LocationCache
	requireAccepted bool
}

func NewLocation(store LocationStore, cache LocationCache, requireAccepted bool) *Location {
	return &Location{store: store, cache: cache, requireAccepted: requireAccepted}
}

// ReportInput uses pointers so an absent field is distinguishable from zero.
type ReportInput struct {
	ToUserID  *int64   `json:"to_user_id"`
	Latitude  *float64 `json:"latitude"`
	Longitude *float64 `json:"longitude"`
}

func (s *Location) Report(ctx context.Context, fromUserID int64, in ReportInput) (model.LocationReport, error) {
	if in.ToUserID == nil || in.Latitude == nil || in.Longitude == nil {
		return model.LocationReport{}, apperr.InvalidArgument("missing_fields")
	}
	to, lat, lng := *in.ToUserID, *in.Latitude, *in.Longitude
	switch {
	case to <= 0:
		return model.LocationReport{}, apperr.InvalidArgument("invalid_to_user_id")
	case to == fromUserID:
		return model.LocationReport{}, apperr.InvalidArgument("self_tracking")
	case math.IsNaN(lat) || lat < -90 || lat > 90:
		return model.LocationReport{}, apperr.InvalidArgument("invalid_latitude")
	case math.IsNaN(lng) || lng < -180 || lng > 180:
		return model.LocationReport{}, apperr.InvalidArgument("invalid_longitude")
	}

	if s.requireAccepted {
		ok, err := s.store.HasAcceptedRelation(ctx, fromUserID, to)
		if err != nil {
			return model.LocationReport{}, err
		}
		if !ok {
			return model.LocationReport{}, apperr.Forbidden("tracking_not_accepted")
		}
	}

	report, err := s.store.AppendLocation(ctx, model.LocationReport{
		FromUserID: fromUserID,
		ToUserID:   to,
		Latitude:   lat,
		Longitude:  lng,
	})
	if err != nil {
		return model.LocationReport{}, err
	}
	metrics.LocationReports.Inc()

	if s.cache != nil {
		if err := s.cache.Store(ctx, report); err != nil {
			logging.Ctx(ctx).Warn().Err(err).Int64("to_user_id", to).Msg("location cache write failed")
			if err := s.cache.Invalidate(ctx, to); err != nil {
				logging.Ctx(ctx).Warn().Err(err).Int64("to_user_id", to).Msg("location cache invalidate failed")
			}
		}
	}
	return report, nil
}

// Latest returns the newest report addressed to caller.
func (s *Location) Latest(ctx context.Context, caller int64) (model.LocationReport, error) {
	if s.cache != nil {
		report, ok, err := s.cache.Latest(ctx, caller)
		switch {
		case err != nil:
			metrics.LocationCacheLookups.WithLabelValues("error").Inc()
			logging.Ctx(ctx).Warn().Err(err).Int64("user_id", caller).Msg("location cache read failed")
		case ok:
			metrics.LocationCacheLookups.WithLabelValues("hit").Inc()
			return report, nil
		default:
			metrics.LocationCacheLookups.WithLabelValues("miss").Inc()
		}
	}

	report, err := s.store.LatestLocationFor(ctx, caller)
	if err != nil {
		return model.LocationReport{}, err
	}
	if s.cache != nil {
		if err := s.cache.Store(ctx, report); err != nil {
			logging.Ctx(ctx).Debug().Err(err).Int64("user_id", caller).Msg("location cache fill failed")
		}
	}
	return report, nil
}

// Current returns the last position reported by userID. Callers may read their
// own position or that of a user they share an accepted request with.
func (s *Location) Current(ctx context.Context, caller, userID int64) (model.CurrentLocation, error) {
	if userID <= 0 {
		return model.CurrentLocation{}, apperr.InvalidArgument("invalid_user_id")
	}
	if userID != caller {
		ok, err := s.store.HasAcceptedRelation(ctx, caller, userID)
		if err != nil {
			return model.CurrentLocation{}, err
		}
		if !ok {
			return model.CurrentLocation{}, apperr.Forbidden("tracking_not_accepted")
		}
	}
	return s.store.CurrentLocation(ctx, userID)
}
