// Package queue defines the reservation lifecycle events exchanged over
// RabbitMQ together with their publisher and audit consumer.
package queue

import (
	"time"

	"github.com/google/uuid"

	"github.com/iliyamo/schedule-reservation/internal/model"
)

// EventType names a reservation lifecycle event.  It doubles as the
// routing key.
type EventType string

const (
	EventCreated   EventType = "reservation.created"
	EventConfirmed EventType = "reservation.confirmed"
	EventCancelled EventType = "reservation.cancelled"
	EventUpdated   EventType = "reservation.updated"
	EventDeleted   EventType = "reservation.deleted"
)

// ReservationEvent is published after a reservation change commits.  It
// carries enough for downstream consumers to log or notify without
// querying the primary database.
type ReservationEvent struct {
	ID            string    `json:"id"`
	Type          EventType `json:"type"`
	ReservationID uint64    `json:"reservation_id"`
	UserID        string    `json:"user_id"`
	ScheduleID    uint64    `json:"content_schedule_id"`
	Status        string    `json:"status"`
	AdultCount    int32     `json:"adult_count"`
	ChildCount    int32     `json:"child_count"`
	Used          bool      `json:"used"`
	OccurredAt    string    `json:"occurred_at"` // RFC3339, UTC
}

// NewReservationEvent builds an event with a fresh id from the committed
// state of res.
func NewReservationEvent(t EventType, res model.Reservation, at time.Time) ReservationEvent {
	return ReservationEvent{
		ID:            uuid.NewString(),
		Type:          t,
		ReservationID: res.ID,
		UserID:        res.UserID,
		ScheduleID:    res.ScheduleID,
		Status:        res.Status.String(),
		AdultCount:    res.AdultCount,
		ChildCount:    res.ChildCount,
		Used:          res.Used,
		OccurredAt:    at.UTC().Format(time.RFC3339),
	}
}
