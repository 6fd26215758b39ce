// Package dbtest provides SQLite-backed fixtures for tests that need the
// real SQL repositories.
package dbtest

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/iliyamo/schedule-reservation/internal/database"
)

// Open returns a migrated in-memory SQLite database that is closed when
// the test ends.
func Open(t testing.TB) *sql.DB {
	t.Helper()
	db, err := database.OpenSQLite(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, database.Migrate(context.Background(), db, database.SQLite))
	return db
}

// SeedContent inserts a content with the given seat capacity.
func SeedContent(t testing.TB, db *sql.DB, totalSeats int32) uint64 {
	t.Helper()
	res, err := db.Exec(`INSERT INTO contents (title, total_seats) VALUES (?, ?)`, "fixture", totalSeats)
	require.NoError(t, err)
	id, err := res.LastInsertId()
	require.NoError(t, err)
	return uint64(id)
}

// SeedSchedule inserts an empty schedule for an existing content.
func SeedSchedule(t testing.TB, db *sql.DB, contentID uint64, start time.Time) uint64 {
	t.Helper()
	res, err := db.Exec(`INSERT INTO content_schedules (content_id, adult_count, child_count, start_time) VALUES (?, 0, 0, ?)`,
		contentID, start.UTC())
	require.NoError(t, err)
	id, err := res.LastInsertId()
	require.NoError(t, err)
	return uint64(id)
}

// SeedContentSchedule inserts a content with capacity seats and one
// schedule of it, returning both ids.
func SeedContentSchedule(t testing.TB, db *sql.DB, capacity int32, start time.Time) (contentID, scheduleID uint64) {
	t.Helper()
	contentID = SeedContent(t, db, capacity)
	return contentID, SeedSchedule(t, db, contentID, start)
}

// Occupancy reads the aggregate counters of a schedule directly.
func Occupancy(t testing.TB, db *sql.DB, scheduleID uint64) (adult, child int32) {
	t.Helper()
	require.NoError(t, db.QueryRow(`SELECT adult_count, child_count FROM content_schedules WHERE id = ?`, scheduleID).
		Scan(&adult, &child))
	return adult, child
}

// LiveSeats sums the seats of all non-cancelled reservations of a
// schedule, the value the occupancy aggregate must always equal.
func LiveSeats(t testing.TB, db *sql.DB, scheduleID uint64) (adult, child int32) {
	t.Helper()
	require.NoError(t, db.QueryRow(`SELECT COALESCE(SUM(adult_count), 0), COALESCE(SUM(child_count), 0)
		FROM reservation WHERE content_schedule_id = ? AND status <> 'CANCELLED'`, scheduleID).
		Scan(&adult, &child))
	return adult, child
}
