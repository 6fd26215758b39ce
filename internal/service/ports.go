// Package service holds the booking core: the admission controller, the
// transactional allocator and the ReservationService front door used by
// the REST and gRPC transports.  Storage and gateways are reached through
// the interfaces declared here.
package service

import (
	"context"
	"time"

	"github.com/iliyamo/schedule-reservation/internal/model"
	"github.com/iliyamo/schedule-reservation/internal/queue"
)

// AllocationTx is the set of statements available inside one allocator
// transaction.  Lock methods hold their row until the transaction ends.
// Callers must lock the schedule row before the reservation row.
type AllocationTx interface {
	LockOccupancy(ctx context.Context, scheduleID uint64) (model.ScheduleOccupancy, error)
	GetReservation(ctx context.Context, id uint64) (model.Reservation, error)
	LockReservation(ctx context.Context, id uint64) (model.Reservation, error)
	InsertReservation(ctx context.Context, res *model.Reservation) error
	UpdateReservationCounts(ctx context.Context, id uint64, adult, child int32) error
	UpdateReservationStatus(ctx context.Context, id uint64, status model.Status) error
	UpdateReservationUsed(ctx context.Context, id uint64, used bool) error
	DeleteReservation(ctx context.Context, id uint64) error
	AdjustOccupancy(ctx context.Context, scheduleID uint64, dAdult, dChild int32) error
}

// TxManager runs fn in a transaction that commits only when fn returns nil.
type TxManager interface {
	WithTx(ctx context.Context, fn func(ctx context.Context, tx AllocationTx) error) error
}

// AdmissionQueries are the duplicate and limit reads behind admission.
type AdmissionQueries interface {
	HasContentBooking(ctx context.Context, userID string, scheduleID uint64) (bool, error)
	HasOverlappingTimeBooking(ctx context.Context, userID string, scheduleID uint64) (bool, error)
	AggregateUserCounts(ctx context.Context, userID string, scheduleID, excludeID uint64) (model.UserCounts, error)
}

// ReservationReader serves the non-transactional reservation reads.
type ReservationReader interface {
	GetByID(ctx context.Context, id uint64) (model.Reservation, error)
	ListByUser(ctx context.Context, userID string) ([]model.Reservation, error)
	ListByUserStartingBetween(ctx context.Context, userID string, from, to time.Time) ([]model.Reservation, error)
	ListUserIDsBySchedule(ctx context.Context, scheduleID uint64) ([]string, error)
}

// OccupancyReader serves advisory occupancy reads.
type OccupancyReader interface {
	GetOccupancy(ctx context.Context, scheduleID uint64) (model.ScheduleOccupancy, error)
}

// ProfileGateway returns the seat ceilings of a user.
type ProfileGateway interface {
	Limits(ctx context.Context, userID string) (model.UserLimits, error)
}

// IdentityGateway exchanges a caller token for a user id.  It fails with
// model.ErrUnauthorized for bad tokens and model.ErrUpstream when the
// identity service cannot be reached.
type IdentityGateway interface {
	Validate(ctx context.Context, token string) (string, error)
}

// EventPublisher delivers reservation lifecycle events after commit.
type EventPublisher interface {
	Publish(ctx context.Context, ev queue.ReservationEvent) error
}
