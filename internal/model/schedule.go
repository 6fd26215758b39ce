package model

import "time"

// ScheduleOccupancy is the aggregate of seats currently held against a
// content schedule together with the seat capacity of the owning
// content.  AdultCount and ChildCount mirror the sum of all
// non-cancelled reservations of the schedule and are only written by
// the allocator.
//
// Fields:
//
//	ScheduleID – content_schedules.id
//	ContentID  – content the schedule instantiates.
//	AdultCount – adult seats held across live reservations.
//	ChildCount – child seats held across live reservations.
//	Capacity   – contents.total_seats of the owning content.
//	StartTime  – when the schedule begins.
type ScheduleOccupancy struct {
	ScheduleID uint64    `json:"content_schedule_id"`
	ContentID  uint64    `json:"content_id"`
	AdultCount int32     `json:"adult_count"`
	ChildCount int32     `json:"child_count"`
	Capacity   int32     `json:"capacity"`
	StartTime  time.Time `json:"start_time"`
}

// Total returns the number of occupied seats.
func (o ScheduleOccupancy) Total() int64 { return int64(o.AdultCount) + int64(o.ChildCount) }

// Remaining returns the number of free seats, never below zero.
func (o ScheduleOccupancy) Remaining() int64 {
	if r := int64(o.Capacity) - o.Total(); r > 0 {
		return r
	}
	return 0
}

// Fits reports whether changing the occupancy by delta seats keeps it
// within capacity.  A non-positive delta always fits: giving seats back
// can never overflow the schedule.
func (o ScheduleOccupancy) Fits(delta int64) bool {
	if delta <= 0 {
		return true
	}
	return o.Total()+delta <= int64(o.Capacity)
}
