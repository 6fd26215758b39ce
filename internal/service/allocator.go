package service

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/iliyamo/schedule-reservation/internal/model"
)

const tracerName = "github.com/iliyamo/schedule-reservation/internal/service"

// Guard inspects a locked reservation before the allocator changes it.
// A non-nil error aborts the transaction.
type Guard func(model.Reservation) error

// Allocator is the only writer of reservations and schedule occupancy.
// Every method runs in one transaction that takes the schedule row lock
// before the reservation row lock, so allocations against a schedule are
// serialized and the occupancy aggregate moves in lock-step with the
// reservation rows.
type Allocator struct {
	tx     TxManager
	tracer trace.Tracer
}

// NewAllocator returns an allocator running its transactions through tx.
func NewAllocator(tx TxManager) *Allocator {
	return &Allocator{tx: tx, tracer: otel.Tracer(tracerName)}
}

// Allocate inserts res as a PENDING reservation and adds its seats to the
// schedule occupancy.  It fails with model.ErrCapacityExceeded when the
// seats do not fit, leaving both tables untouched.
func (a *Allocator) Allocate(ctx context.Context, res model.Reservation) (out model.Reservation, err error) {
	ctx, span := a.tracer.Start(ctx, "allocator.Allocate", trace.WithAttributes(
		attribute.Int64("schedule.id", int64(res.ScheduleID)),
		attribute.Int64("seats", res.Seats()),
	))
	defer func() { endSpan(span, err) }()

	err = a.tx.WithTx(ctx, func(ctx context.Context, tx AllocationTx) error {
		occ, err := tx.LockOccupancy(ctx, res.ScheduleID)
		if err != nil {
			return err
		}
		if !occ.Fits(res.Seats()) {
			return capacityErr(occ, res.Seats())
		}
		res.Status = model.StatusPending
		if err := tx.InsertReservation(ctx, &res); err != nil {
			return err
		}
		return tx.AdjustOccupancy(ctx, res.ScheduleID, res.AdultCount, res.ChildCount)
	})
	if err != nil {
		return model.Reservation{}, err
	}
	span.SetAttributes(attribute.Int64("reservation.id", int64(res.ID)))
	return res, nil
}

// Reallocate changes the seat counts of reservation id and moves the
// schedule occupancy by the same delta.  Growing a reservation fails with
// model.ErrCapacityExceeded when the schedule is full; shrinking always
// fits.  Cancelled reservations cannot be changed.
func (a *Allocator) Reallocate(ctx context.Context, id uint64, adult, child int32, guard Guard) (out model.Reservation, err error) {
	ctx, span := a.tracer.Start(ctx, "allocator.Reallocate", trace.WithAttributes(
		attribute.Int64("reservation.id", int64(id)),
	))
	defer func() { endSpan(span, err) }()

	err = a.tx.WithTx(ctx, func(ctx context.Context, tx AllocationTx) error {
		cur, err := tx.GetReservation(ctx, id)
		if err != nil {
			return err
		}
		occ, err := tx.LockOccupancy(ctx, cur.ScheduleID)
		if err != nil {
			return err
		}
		if cur, err = tx.LockReservation(ctx, id); err != nil {
			return err
		}
		if err := runGuard(guard, cur); err != nil {
			return err
		}
		if !cur.Occupies() {
			return fmt.Errorf("%w: reservation %d is %s", model.ErrInvalidTransition, id, cur.Status)
		}
		delta := int64(adult) + int64(child) - cur.Seats()
		if !occ.Fits(delta) {
			return capacityErr(occ, delta)
		}
		if err := tx.UpdateReservationCounts(ctx, id, adult, child); err != nil {
			return err
		}
		if err := tx.AdjustOccupancy(ctx, cur.ScheduleID, adult-cur.AdultCount, child-cur.ChildCount); err != nil {
			return err
		}
		cur.AdultCount, cur.ChildCount = adult, child
		out = cur
		return nil
	})
	if err != nil {
		return model.Reservation{}, err
	}
	return out, nil
}

// Transition moves reservation id to status next through the state
// machine.  With release set, a transition to CANCELLED also gives the
// reservation's seats back to the schedule in the same transaction.
func (a *Allocator) Transition(ctx context.Context, id uint64, next model.Status, release bool, guard Guard) (out model.Reservation, err error) {
	ctx, span := a.tracer.Start(ctx, "allocator.Transition", trace.WithAttributes(
		attribute.Int64("reservation.id", int64(id)),
		attribute.String("status.next", next.String()),
	))
	defer func() { endSpan(span, err) }()

	release = release && next == model.StatusCancelled
	err = a.tx.WithTx(ctx, func(ctx context.Context, tx AllocationTx) error {
		cur, err := tx.GetReservation(ctx, id)
		if err != nil {
			return err
		}
		if release && cur.Occupies() {
			if _, err := tx.LockOccupancy(ctx, cur.ScheduleID); err != nil {
				return err
			}
		}
		if cur, err = tx.LockReservation(ctx, id); err != nil {
			return err
		}
		if err := runGuard(guard, cur); err != nil {
			return err
		}
		status, err := cur.Status.Transition(next)
		if err != nil {
			return fmt.Errorf("reservation %d: %w", id, err)
		}
		if err := tx.UpdateReservationStatus(ctx, id, status); err != nil {
			return err
		}
		if release && cur.Occupies() {
			if err := tx.AdjustOccupancy(ctx, cur.ScheduleID, -cur.AdultCount, -cur.ChildCount); err != nil {
				return err
			}
		}
		cur.Status = status
		out = cur
		return nil
	})
	if err != nil {
		return model.Reservation{}, err
	}
	return out, nil
}

// SetUsed sets the redeem flag of reservation id.  The flag is independent
// of the status and does not touch occupancy.
func (a *Allocator) SetUsed(ctx context.Context, id uint64, used bool, guard Guard) (out model.Reservation, err error) {
	ctx, span := a.tracer.Start(ctx, "allocator.SetUsed", trace.WithAttributes(
		attribute.Int64("reservation.id", int64(id)),
		attribute.Bool("used", used),
	))
	defer func() { endSpan(span, err) }()

	err = a.tx.WithTx(ctx, func(ctx context.Context, tx AllocationTx) error {
		cur, err := tx.LockReservation(ctx, id)
		if err != nil {
			return err
		}
		if err := runGuard(guard, cur); err != nil {
			return err
		}
		if err := tx.UpdateReservationUsed(ctx, id, used); err != nil {
			return err
		}
		cur.Used = used
		out = cur
		return nil
	})
	if err != nil {
		return model.Reservation{}, err
	}
	return out, nil
}

// Delete removes reservation id.  Seats still held by it are released
// in the same transaction.
func (a *Allocator) Delete(ctx context.Context, id uint64, guard Guard) (out model.Reservation, err error) {
	ctx, span := a.tracer.Start(ctx, "allocator.Delete", trace.WithAttributes(
		attribute.Int64("reservation.id", int64(id)),
	))
	defer func() { endSpan(span, err) }()

	err = a.tx.WithTx(ctx, func(ctx context.Context, tx AllocationTx) error {
		cur, err := tx.GetReservation(ctx, id)
		if err != nil {
			return err
		}
		if cur.Occupies() {
			if _, err := tx.LockOccupancy(ctx, cur.ScheduleID); err != nil {
				return err
			}
		}
		if cur, err = tx.LockReservation(ctx, id); err != nil {
			return err
		}
		if err := runGuard(guard, cur); err != nil {
			return err
		}
		if err := tx.DeleteReservation(ctx, id); err != nil {
			return err
		}
		if cur.Occupies() {
			if err := tx.AdjustOccupancy(ctx, cur.ScheduleID, -cur.AdultCount, -cur.ChildCount); err != nil {
				return err
			}
		}
		out = cur
		return nil
	})
	if err != nil {
		return model.Reservation{}, err
	}
	return out, nil
}

func runGuard(guard Guard, res model.Reservation) error {
	if guard == nil {
		return nil
	}
	return guard(res)
}

func capacityErr(occ model.ScheduleOccupancy, delta int64) error {
	return fmt.Errorf("%w: schedule %d holds %d of %d seats, %d more requested",
		model.ErrCapacityExceeded, occ.ScheduleID, occ.Total(), occ.Capacity, delta)
}

// endSpan records err on span and ends it.
func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}
