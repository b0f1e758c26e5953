package repository

import (
	"context"

	"github.com/shahdkhalaf/graduation-project/internal/db"
	"github.com/shahdkhalaf/graduation-project/internal/model"
)

func (s *Store) RoutePrice(ctx context.Context, from, to string) (model.RoutePrice, error) {
	price := model.RoutePrice{From: from, To: to}
	err := s.db.Run(ctx, "routes.price", func(ctx context.Context, q db.Querier) error {
		return q.QueryRow(ctx, `
			SELECT cost::float8, currency
			FROM routes
			WHERE route_from = $1 AND route_to = $2`, from, to,
		).Scan(&price.Cost, &price.Currency)
	})
	if err != nil {
		return model.RoutePrice{}, classify(err, "route_not_found")
	}
	return price, nil
}

// UpsertRoute sets the price of a route, used to load the fare table.
func (s *Store) UpsertRoute(ctx context.Context, route model.RoutePrice) error {
	err := s.db.Run(ctx, "routes.upsert", func(ctx context.Context, q db.Querier) error {
		_, err := q.Exec(ctx, `
			INSERT INTO routes (route_from, route_to, cost, currency)
			VALUES ($1, $2, $3, $4)
			ON CONFLICT (route_from, route_to) DO UPDATE
			SET cost = EXCLUDED.cost, currency = EXCLUDED.currency`,
			route.From, route.To, route.Cost, route.Currency,
		)
		return err
	})
	return classify(err, "")
}
