package model

import "time"

// Reservation records one admitted booking of a content schedule by a
// user.  The seats it holds count towards the schedule's occupancy
// only while its status is not CANCELLED.
//
// Fields:
//
//	ID         – primary key identifier, assigned on creation.
//	UserID     – identifier returned by the identity gateway.
//	ScheduleID – content schedule being booked.
//	ReservedAt – optional booking timestamp.
//	Status     – lifecycle state (PENDING, CONFIRMED, CANCELLED).
//	AdultCount – adult seats held.
//	ChildCount – child seats held.
//	Used       – set when the holder redeems the reservation; not
//	             coupled to Status.
type Reservation struct {
	ID         uint64     `json:"id"`                    // reservation.id
	UserID     string     `json:"user_id"`               // reservation.user_id
	ScheduleID uint64     `json:"content_schedule_id"`   // reservation.content_schedule_id
	ReservedAt *time.Time `json:"reserved_at,omitempty"` // reservation.reserved_at (nullable)
	Status     Status     `json:"status"`                // reservation.status
	AdultCount int32      `json:"adult_count"`           // reservation.adult_count
	ChildCount int32      `json:"child_count"`           // reservation.child_count
	Used       bool       `json:"used"`                  // reservation.used
}

// Seats returns the total number of seats held by the reservation.  The
// sum is widened so two large counts cannot wrap.
func (r Reservation) Seats() int64 { return int64(r.AdultCount) + int64(r.ChildCount) }

// Occupies reports whether the reservation's seats count towards the
// schedule occupancy.
func (r Reservation) Occupies() bool { return r.Status != StatusCancelled }

// ValidCounts reports whether both seat counts are non-negative.
func ValidCounts(adult, child int32) bool { return adult >= 0 && child >= 0 }
