package service

import (
	"context"
	"strings"

	"github.com/shahdkhalaf/graduation-project/internal/apperr"
	"github.com/shahdkhalaf/graduation-project/internal/logging"
	"github.com/shahdkhalaf/graduation-project/internal/model"
)

type RouteStore interface {
	RoutePrice(ctx context.Context, from, to string) (model.RoutePrice, error)
	UpsertRoute(ctx context.Context, route model.RoutePrice) error
}

type Pricing struct {
	store    RouteStore
	currency string
}

func NewPricing(store RouteStore, currency string) *Pricing {
	if currency == "" {
		currency = "EGP"
	}
	return &Pricing{store: store, currency: currency}
}

func (s *Pricing) Price(ctx context.Context, from, to string) (model.RoutePrice, error) {
	from, to = strings.TrimSpace(from), strings.TrimSpace(to)
	if from == "" || to == "" {
		return model.RoutePrice{}, apperr.InvalidArgument("missing_route")
	}
	price, err := s.store.RoutePrice(ctx, from, to)
	if err != nil {
		return model.RoutePrice{}, err
	}
	if price.Currency == "" {
		price.Currency = s.currency
	}
	return price, nil
}

// LoadFares upserts the configured fare table. Routes without a currency get
// the default one.
func (s *Pricing) LoadFares(ctx context.Context, fares []model.RoutePrice) error {
	for _, fare := range fares {
		fare.From, fare.To = strings.TrimSpace(fare.From), strings.TrimSpace(fare.To)
		if fare.Currency == "" {
			fare.Currency = s.currency
		}
		if err := s.store.UpsertRoute(ctx, fare); err != nil {
			return err
		}
	}
	if len(fares) > 0 {
		logging.Ctx(ctx).Info().Int("routes", len(fares)).Msg("fare table loaded")
	}
	return nil
}
