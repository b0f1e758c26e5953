// Package repository holds the Postgres queries behind the identity, tracking,
// location and pricing operations. Every method runs through db.Store so it
// inherits the query timeout and circuit breaker.
package repository

import (
	"errors"

	"github.com/jackc/pgx/v5"

	"github.com/shahdkhalaf/graduation-project/internal/apperr"
	"github.com/shahdkhalaf/graduation-project/internal/db"
)

type Store struct {
	db *db.Store
}

func NewStore(store *db.Store) *Store {
	return &Store{db: store}
}

// classify leaves classified errors alone and turns the rest into Internal,
// so driver text never reaches a client. ErrNoRows becomes NotFound(code).
func classify(err error, notFoundCode string) error {
	if err == nil {
		return nil
	}
	var appErr *apperr.Error
	if errors.As(err, &appErr) {
		return err
	}
	if notFoundCode != "" && errors.Is(err, pgx.ErrNoRows) {
		return apperr.NotFound(notFoundCode)
	}
	return apperr.Internal(err)
}
