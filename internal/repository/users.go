package repository

import (
	"context"
	"strings"

	"github.com/shahdkhalaf/graduation-project/internal/apperr"
	"github.com/shahdkhalaf/graduation-project/internal/db"
	"github.com/shahdkhalaf/graduation-project/internal/model"
)

const userColumns = `user_id, email, password, first_name, last_name, age, gendar, district, email_verified, created_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (model.User, error) {
	var user model.User
	err := row.Scan(
		&user.ID,
		&user.Email,
		&user.PasswordHash,
		&user.FirstName,
		&user.LastName,
		&user.Age,
		&user.Gender,
		&user.District,
		&user.EmailVerified,
		&user.CreatedAt,
	)
	return user, err
}

// CreateUser inserts user and returns it with its id. A taken email is Conflict("email_exists").
func (s *Store) CreateUser(ctx context.Context, user model.User) (model.User, error) {
	var created model.User
	err := s.db.Run(ctx, "users.create", func(ctx context.Context, q db.Querier) error {
		var err error
		created, err = scanUser(q.QueryRow(ctx, `
			INSERT INTO users (email, password, first_name, last_name, age, gendar, district)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
			RETURNING `+userColumns,
			strings.ToLower(user.Email), user.PasswordHash, user.FirstName, user.LastName, user.Age, user.Gender, user.District,
		))
		return err
	})
	if db.PgCode(err) == db.UniqueViolation {
		return model.User{}, apperr.Conflict("email_exists")
	}
	return created, classify(err, "")
}

func (s *Store) GetUserByEmail(ctx context.Context, email string) (model.User, error) {
	var user model.User
	err := s.db.Run(ctx, "users.by_email", func(ctx context.Context, q db.Querier) error {
		var err error
		user, err = scanUser(q.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE email = $1`, strings.ToLower(email)))
		return err
	})
	return user, classify(err, "user_not_found")
}

func (s *Store) GetUserByID(ctx context.Context, userID int64) (model.User, error) {
	var user model.User
	err := s.db.Run(ctx, "users.by_id", func(ctx context.Context, q db.Querier) error {
		var err error
		user, err = scanUser(q.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE user_id = $1`, userID))
		return err
	})
	return user, classify(err, "user_not_found")
}

func (s *Store) UserExists(ctx context.Context, userID int64) (bool, error) {
	var exists bool
	err := s.db.Run(ctx, "users.exists", func(ctx context.Context, q db.Querier) error {
		return q.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM users WHERE user_id = $1)`, userID).Scan(&exists)
	})
	return exists, classify(err, "")
}

func (s *Store) MarkEmailVerified(ctx context.Context, userID int64) error {
	err := s.db.Run(ctx, "users.verify_email", func(ctx context.Context, q db.Querier) error {
		tag, err := q.Exec(ctx, `UPDATE users SET email_verified = TRUE WHERE user_id = $1`, userID)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return apperr.NotFound("user_not_found")
		}
		return nil
	})
	return classify(err, "")
}
