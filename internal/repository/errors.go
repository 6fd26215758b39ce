// Package repository implements the SQL persistence of reservations and
// schedule occupancy.  Missing rows are reported as model.ErrNotFound and
// every other driver failure is wrapped in model.ErrPersistence, so higher
// layers never see database/sql sentinels.
package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/iliyamo/schedule-reservation/internal/model"
)

// querier is the subset shared by *sql.DB and *sql.Tx, letting one query
// implementation serve both plain reads and transactional reads.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// notFound translates sql.ErrNoRows into model.ErrNotFound for the named
// entity; anything else goes through dbErr.
func notFound(err error, entity string, id uint64) error {
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%w: %s %d", model.ErrNotFound, entity, id)
	}
	return dbErr(err)
}

// dbErr wraps a driver error in model.ErrPersistence.  Errors already
// carrying ErrNotFound or ErrPersistence pass through untouched.
func dbErr(err error) error {
	if err == nil || errors.Is(err, model.ErrNotFound) || errors.Is(err, model.ErrPersistence) {
		return err
	}
	return fmt.Errorf("%w: %w", model.ErrPersistence, err)
}

// expectOneRow returns model.ErrNotFound when an UPDATE or DELETE
// touched no row.
func expectOneRow(res sql.Result, entity string, id uint64) error {
	n, err := res.RowsAffected()
	if err != nil {
		return dbErr(err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s %d", model.ErrNotFound, entity, id)
	}
	return nil
}
