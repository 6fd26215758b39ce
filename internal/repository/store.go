package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/iliyamo/schedule-reservation/internal/database"
	"github.com/iliyamo/schedule-reservation/internal/model"
	"github.com/iliyamo/schedule-reservation/internal/service"
)

// Store opens the transactions in which reservations and schedule
// occupancy are written together.
type Store struct {
	db      *sql.DB
	dialect database.Dialect
}

// NewStore returns a Store for the given database and dialect.
func NewStore(db *sql.DB, dialect database.Dialect) *Store {
	return &Store{db: db, dialect: dialect}
}

// WithTx runs fn inside one database transaction.  The transaction is
// committed when fn returns nil and rolled back otherwise, including when
// ctx is cancelled.  Errors returned by fn are passed back unchanged.
func (s *Store) WithTx(ctx context.Context, fn func(ctx context.Context, tx service.AllocationTx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: begin tx: %w", model.ErrPersistence, err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	if err := fn(ctx, &storeTx{tx: tx, dialect: s.dialect}); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: commit tx: %w", model.ErrPersistence, err)
	}
	committed = true
	return nil
}

// storeTx binds the reservation and schedule statements to one *sql.Tx.
// Every statement must go through tx: on SQLite the pool has a single
// connection which the transaction already holds.
type storeTx struct {
	tx      querier
	dialect database.Dialect
}

func (t *storeTx) LockOccupancy(ctx context.Context, scheduleID uint64) (model.ScheduleOccupancy, error) {
	occ, err := lockOccupancy(ctx, t.tx, t.dialect, scheduleID)
	return occ, dbErr(err)
}

func (t *storeTx) GetReservation(ctx context.Context, id uint64) (model.Reservation, error) {
	res, err := getReservation(ctx, t.tx, id, "")
	return res, dbErr(err)
}

func (t *storeTx) LockReservation(ctx context.Context, id uint64) (model.Reservation, error) {
	res, err := getReservation(ctx, t.tx, id, t.dialect.ForUpdate())
	return res, dbErr(err)
}

func (t *storeTx) InsertReservation(ctx context.Context, res *model.Reservation) error {
	return dbErr(insertReservation(ctx, t.tx, res))
}

func (t *storeTx) UpdateReservationCounts(ctx context.Context, id uint64, adult, child int32) error {
	return dbErr(updateReservationCounts(ctx, t.tx, id, adult, child))
}

func (t *storeTx) UpdateReservationStatus(ctx context.Context, id uint64, status model.Status) error {
	return dbErr(updateReservationStatus(ctx, t.tx, id, status))
}

func (t *storeTx) UpdateReservationUsed(ctx context.Context, id uint64, used bool) error {
	return dbErr(updateReservationUsed(ctx, t.tx, id, used))
}

func (t *storeTx) DeleteReservation(ctx context.Context, id uint64) error {
	return dbErr(deleteReservation(ctx, t.tx, id))
}

func (t *storeTx) AdjustOccupancy(ctx context.Context, scheduleID uint64, dAdult, dChild int32) error {
	return dbErr(adjustOccupancy(ctx, t.tx, scheduleID, dAdult, dChild))
}
