package repository

import (
	"context"
	"database/sql"

	"github.com/iliyamo/schedule-reservation/internal/database"
	"github.com/iliyamo/schedule-reservation/internal/model"
)

// ScheduleRepo reads the occupancy aggregate of content schedules.
// Occupancy is only ever written through a Store transaction.
type ScheduleRepo struct {
	db      *sql.DB
	dialect database.Dialect
}

// NewScheduleRepo returns a new ScheduleRepo bound to the given database.
func NewScheduleRepo(db *sql.DB, dialect database.Dialect) *ScheduleRepo {
	return &ScheduleRepo{db: db, dialect: dialect}
}

// GetOccupancy returns the current occupancy and capacity of a schedule.
// The read is advisory: nothing is locked.
func (r *ScheduleRepo) GetOccupancy(ctx context.Context, scheduleID uint64) (model.ScheduleOccupancy, error) {
	const q = `SELECT cs.id, cs.content_id, cs.adult_count, cs.child_count, cs.start_time, c.total_seats
               FROM content_schedules cs
               JOIN contents c ON c.id = cs.content_id
               WHERE cs.id = ?`
	var (
		occ   model.ScheduleOccupancy
		start nullTime
	)
	err := r.db.QueryRowContext(ctx, q, scheduleID).
		Scan(&occ.ScheduleID, &occ.ContentID, &occ.AdultCount, &occ.ChildCount, &start, &occ.Capacity)
	if err != nil {
		return model.ScheduleOccupancy{}, notFound(err, "schedule", scheduleID)
	}
	occ.StartTime = start.Time
	return occ, nil
}

// lockOccupancy reads a schedule's occupancy with the row lock held until
// the surrounding transaction ends.  Only the content_schedules row is
// locked; the capacity is read separately so concurrent allocations on
// other schedules of the same content do not queue behind it.
func lockOccupancy(ctx context.Context, q querier, dialect database.Dialect, scheduleID uint64) (model.ScheduleOccupancy, error) {
	query := `SELECT id, content_id, adult_count, child_count, start_time
              FROM content_schedules
              WHERE id = ?` + dialect.ForUpdate()
	var (
		occ   model.ScheduleOccupancy
		start nullTime
	)
	err := q.QueryRowContext(ctx, query, scheduleID).
		Scan(&occ.ScheduleID, &occ.ContentID, &occ.AdultCount, &occ.ChildCount, &start)
	if err != nil {
		return model.ScheduleOccupancy{}, notFound(err, "schedule", scheduleID)
	}
	occ.StartTime = start.Time

	err = q.QueryRowContext(ctx, `SELECT total_seats FROM contents WHERE id = ?`, occ.ContentID).Scan(&occ.Capacity)
	if err != nil {
		return model.ScheduleOccupancy{}, notFound(err, "content", occ.ContentID)
	}
	return occ, nil
}

// adjustOccupancy adds the given deltas to a schedule's aggregate.
func adjustOccupancy(ctx context.Context, q querier, scheduleID uint64, dAdult, dChild int32) error {
	res, err := q.ExecContext(ctx,
		`UPDATE content_schedules SET adult_count = adult_count + ?, child_count = child_count + ? WHERE id = ?`,
		dAdult, dChild, scheduleID)
	if err != nil {
		return err
	}
	return expectOneRow(res, "schedule", scheduleID)
}
