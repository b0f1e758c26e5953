package repository

import (
	"context"

	"github.com/jackc/pgx/v5"

	"github.com/shahdkhalaf/graduation-project/internal/apperr"
	"github.com/shahdkhalaf/graduation-project/internal/db"
	"github.com/shahdkhalaf/graduation-project/internal/model"
)

// AppendLocation stores the report and refreshes the author's current location
// in one transaction. Timestamp and id are assigned by the database.
func (s *Store) AppendLocation(ctx context.Context, report model.LocationReport) (model.LocationReport, error) {
	err := s.db.WithTx(ctx, "locations.append", func(ctx context.Context, tx pgx.Tx) error {
		if err := tx.QueryRow(ctx, `
			INSERT INTO location_reports (from_user_id, to_user_id, latitude, longitude)
			VALUES ($1, $2, $3, $4)
			RETURNING id, "timestamp"`,
			report.FromUserID, report.ToUserID, report.Latitude, report.Longitude,
		).Scan(&report.ID, &report.Timestamp); err != nil {
			return err
		}
		_, err := tx.Exec(ctx, `
			INSERT INTO current_locations (user_id, latitude, longitude, updated_at)
			VALUES ($1, $2, $3, $4)
			ON CONFLICT (user_id) DO UPDATE
			SET latitude = EXCLUDED.latitude, longitude = EXCLUDED.longitude, updated_at = EXCLUDED.updated_at`,
			report.FromUserID, report.Latitude, report.Longitude, report.Timestamp,
		)
		return err
	})
	if db.PgCode(err) == db.ForeignKeyViolation {
		return model.LocationReport{}, apperr.NotFound("user_not_found")
	}
	if err != nil {
		return model.LocationReport{}, classify(err, "")
	}
	return report, nil
}

// LatestLocationFor returns the newest report addressed to toUserID. Ties on
// timestamp go to the later insert.
func (s *Store) LatestLocationFor(ctx context.Context, toUserID int64) (model.LocationReport, error) {
	var report model.LocationReport
	err := s.db.Run(ctx, "locations.latest", func(ctx context.Context, q db.Querier) error {
		return q.QueryRow(ctx, `
			SELECT id, from_user_id, to_user_id, latitude, longitude, "timestamp"
			FROM location_reports
			WHERE to_user_id = $1
			ORDER BY "timestamp" DESC, id DESC
			LIMIT 1`, toUserID,
		).Scan(&report.ID, &report.FromUserID, &report.ToUserID, &report.Latitude, &report.Longitude, &report.Timestamp)
	})
	return report, classify(err, "location_not_found")
}

func (s *Store) CurrentLocation(ctx context.Context, userID int64) (model.CurrentLocation, error) {
	var current model.CurrentLocation
	err := s.db.Run(ctx, "locations.current", func(ctx context.Context, q db.Querier) error {
		return q.QueryRow(ctx, `
			SELECT user_id, latitude, longitude, updated_at
			FROM current_locations
			WHERE user_id = $1`, userID,
		).Scan(&current.UserID, &current.Latitude, &current.Longitude, &current.UpdatedAt)
	})
	return current, classify(err, "location_not_found")
}
