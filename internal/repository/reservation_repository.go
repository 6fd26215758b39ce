package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/iliyamo/schedule-reservation/internal/model"
)

// ReservationRepo provides reads of the reservation table and the
// duplicate/limit queries consumed by admission.  Writes happen only
// inside a Store transaction.  All timestamps are stored in UTC.
type ReservationRepo struct {
	db *sql.DB
}

// NewReservationRepo returns a new ReservationRepo bound to the given database.
func NewReservationRepo(db *sql.DB) *ReservationRepo { return &ReservationRepo{db: db} }

// GetByID returns the reservation with the given id or model.ErrNotFound.
func (r *ReservationRepo) GetByID(ctx context.Context, id uint64) (model.Reservation, error) {
	return getReservation(ctx, r.db, id, "")
}

// ListByUser returns every reservation of the user, newest first.  An
// empty slice is returned when the user has none.
func (r *ReservationRepo) ListByUser(ctx context.Context, userID string) ([]model.Reservation, error) {
	const q = `SELECT ` + reservationCols + `
               FROM reservation r
               WHERE r.user_id = ?
               ORDER BY r.id DESC`
	rows, err := r.db.QueryContext(ctx, q, userID)
	if err != nil {
		return nil, dbErr(err)
	}
	out, err := scanReservations(rows)
	return out, dbErr(err)
}

// ListByUserStartingBetween returns the user's reservations whose
// schedule starts within [from, to], ordered by start time.
func (r *ReservationRepo) ListByUserStartingBetween(ctx context.Context, userID string, from, to time.Time) ([]model.Reservation, error) {
	const q = `SELECT ` + reservationCols + `
               FROM reservation r
               JOIN content_schedules cs ON cs.id = r.content_schedule_id
               WHERE r.user_id = ? AND cs.start_time >= ? AND cs.start_time <= ?
               ORDER BY cs.start_time, r.id`
	rows, err := r.db.QueryContext(ctx, q, userID, from.UTC(), to.UTC())
	if err != nil {
		return nil, dbErr(err)
	}
	out, err := scanReservations(rows)
	return out, dbErr(err)
}

// ListUserIDsBySchedule returns the distinct users holding a live
// reservation for the schedule.
func (r *ReservationRepo) ListUserIDsBySchedule(ctx context.Context, scheduleID uint64) ([]string, error) {
	const q = `SELECT DISTINCT r.user_id
               FROM reservation r
               WHERE r.content_schedule_id = ? AND r.status <> 'CANCELLED'
               ORDER BY r.user_id`
	rows, err := r.db.QueryContext(ctx, q, scheduleID)
	if err != nil {
		return nil, dbErr(err)
	}
	defer rows.Close()
	ids := make([]string, 0)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, dbErr(err)
		}
		ids = append(ids, id)
	}
	return ids, dbErr(rows.Err())
}

// HasContentBooking reports whether the user holds a live reservation
// for any schedule of the same content as scheduleID.
func (r *ReservationRepo) HasContentBooking(ctx context.Context, userID string, scheduleID uint64) (bool, error) {
	const q = `SELECT EXISTS (
                   SELECT 1
                   FROM reservation r
                   JOIN content_schedules cs ON cs.id = r.content_schedule_id
                   JOIN content_schedules target ON target.content_id = cs.content_id
                   WHERE target.id = ? AND r.user_id = ? AND r.status <> 'CANCELLED'
               )`
	var exists bool
	if err := r.db.QueryRowContext(ctx, q, scheduleID, userID).Scan(&exists); err != nil {
		return false, dbErr(err)
	}
	return exists, nil
}

// HasOverlappingTimeBooking reports whether the user holds a live
// reservation for a different schedule that starts at the same time as
// scheduleID.
func (r *ReservationRepo) HasOverlappingTimeBooking(ctx context.Context, userID string, scheduleID uint64) (bool, error) {
	const q = `SELECT EXISTS (
                   SELECT 1
                   FROM reservation r
                   JOIN content_schedules cs ON cs.id = r.content_schedule_id
                   JOIN content_schedules target ON target.start_time = cs.start_time
                   WHERE target.id = ? AND cs.id <> target.id
                     AND r.user_id = ? AND r.status <> 'CANCELLED'
               )`
	var exists bool
	if err := r.db.QueryRowContext(ctx, q, scheduleID, userID).Scan(&exists); err != nil {
		return false, dbErr(err)
	}
	return exists, nil
}

// AggregateUserCounts sums the adult and child seats the user holds in
// live reservations for the content of scheduleID, skipping the
// reservation excludeID (0 skips nothing).  When no row matches both
// sums are model.NoCounts.
func (r *ReservationRepo) AggregateUserCounts(ctx context.Context, userID string, scheduleID, excludeID uint64) (model.UserCounts, error) {
	const q = `SELECT COALESCE(SUM(r.adult_count), -1), COALESCE(SUM(r.child_count), -1)
               FROM reservation r
               JOIN content_schedules cs ON cs.id = r.content_schedule_id
               JOIN content_schedules target ON target.content_id = cs.content_id
               WHERE target.id = ? AND r.user_id = ? AND r.status <> 'CANCELLED' AND r.id <> ?`
	var counts model.UserCounts
	if err := r.db.QueryRowContext(ctx, q, scheduleID, userID, excludeID).Scan(&counts.Adult, &counts.Child); err != nil {
		return model.UserCounts{}, dbErr(err)
	}
	return counts, nil
}

// getReservation loads one reservation through q.  lock is appended to
// the SELECT so transactional callers can take a row lock.
func getReservation(ctx context.Context, q querier, id uint64, lock string) (model.Reservation, error) {
	query := `SELECT ` + reservationCols + ` FROM reservation r WHERE r.id = ?` + lock
	res, err := scanReservation(q.QueryRowContext(ctx, query, id))
	if err != nil {
		return model.Reservation{}, notFound(err, "reservation", id)
	}
	return res, nil
}

// insertReservation inserts res and populates its generated id.
func insertReservation(ctx context.Context, q querier, res *model.Reservation) error {
	const stmt = `INSERT INTO reservation (user_id, content_schedule_id, reserved_at, status, adult_count, child_count, used)
                  VALUES (?, ?, ?, ?, ?, ?, ?)`
	var reservedAt any
	if res.ReservedAt != nil {
		reservedAt = res.ReservedAt.UTC()
	}
	result, err := q.ExecContext(ctx, stmt, res.UserID, res.ScheduleID, reservedAt, string(res.Status),
		res.AdultCount, res.ChildCount, res.Used)
	if err != nil {
		return err
	}
	id, err := result.LastInsertId()
	if err != nil {
		return err
	}
	res.ID = uint64(id)
	return nil
}

func updateReservationCounts(ctx context.Context, q querier, id uint64, adult, child int32) error {
	res, err := q.ExecContext(ctx, `UPDATE reservation SET adult_count = ?, child_count = ? WHERE id = ?`, adult, child, id)
	if err != nil {
		return err
	}
	return expectOneRow(res, "reservation", id)
}

func updateReservationStatus(ctx context.Context, q querier, id uint64, status model.Status) error {
	res, err := q.ExecContext(ctx, `UPDATE reservation SET status = ? WHERE id = ?`, string(status), id)
	if err != nil {
		return err
	}
	return expectOneRow(res, "reservation", id)
}

func updateReservationUsed(ctx context.Context, q querier, id uint64, used bool) error {
	res, err := q.ExecContext(ctx, `UPDATE reservation SET used = ? WHERE id = ?`, used, id)
	if err != nil {
		return err
	}
	return expectOneRow(res, "reservation", id)
}

func deleteReservation(ctx context.Context, q querier, id uint64) error {
	res, err := q.ExecContext(ctx, `DELETE FROM reservation WHERE id = ?`, id)
	if err != nil {
		return err
	}
	return expectOneRow(res, "reservation", id)
}
