package repository

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/iliyamo/schedule-reservation/internal/model"
)

// timeLayouts are the textual DATETIME encodings accepted when a driver
// hands back a string instead of a time.Time.
var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999-07:00",
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05.999999999 -0700 MST",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// nullTime scans DATETIME columns from MySQL (time.Time with
// parseTime=true) and SQLite (time.Time or text) alike.
type nullTime struct {
	Time  time.Time
	Valid bool
}

func (n *nullTime) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		n.Time, n.Valid = time.Time{}, false
		return nil
	case time.Time:
		n.Time, n.Valid = v.UTC(), true
		return nil
	case []byte:
		return n.parse(string(v))
	case string:
		return n.parse(v)
	}
	return fmt.Errorf("unsupported DATETIME value %T", src)
}

func (n *nullTime) parse(s string) error {
	s = strings.TrimSpace(s)
	if s == "" || strings.HasPrefix(s, "0000-00-00") {
		n.Time, n.Valid = time.Time{}, false
		return nil
	}
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			n.Time, n.Valid = t.UTC(), true
			return nil
		}
	}
	return fmt.Errorf("unparseable DATETIME %q", s)
}

func (n nullTime) ptr() *time.Time {
	if !n.Valid {
		return nil
	}
	t := n.Time
	return &t
}

// reservationCols is the column list used by every reservation read.
// Queries alias the reservation table as r.
const reservationCols = `r.id, r.user_id, r.content_schedule_id, r.reserved_at, r.status, r.adult_count, r.child_count, r.used`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanReservation(row rowScanner) (model.Reservation, error) {
	var (
		res        model.Reservation
		reservedAt nullTime
		status     string
	)
	if err := row.Scan(&res.ID, &res.UserID, &res.ScheduleID, &reservedAt, &status,
		&res.AdultCount, &res.ChildCount, &res.Used); err != nil {
		return model.Reservation{}, err
	}
	st, err := model.ParseStatus(status)
	if err != nil {
		return model.Reservation{}, fmt.Errorf("reservation %d: stored status %q", res.ID, status)
	}
	res.Status = st
	res.ReservedAt = reservedAt.ptr()
	return res, nil
}

func scanReservations(rows *sql.Rows) ([]model.Reservation, error) {
	defer rows.Close()
	out := make([]model.Reservation, 0)
	for rows.Next() {
		res, err := scanReservation(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, res)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
