package service

import (
	"context"
	"fmt"

	"github.com/iliyamo/schedule-reservation/internal/model"
)

// AdmissionRequest is one booking attempt as seen by the admission
// controller.
type AdmissionRequest struct {
	UserID     string
	ScheduleID uint64
	Adult      int32
	Child      int32
	Limits     model.UserLimits
	// ExcludeReservationID is set when re-admitting the new counts of an
	// existing reservation; its own seats are left out of the aggregate.
	ExcludeReservationID uint64
}

// Decision is the outcome of Admission.Decide.  Reason is nil when the
// request is admitted and wraps one of the model errors otherwise.
type Decision struct {
	Admitted bool
	Reason   error
}

func admit() Decision { return Decision{Admitted: true} }

func reject(reason error) Decision { return Decision{Reason: reason} }

// Admission decides whether a request may proceed to allocation.  It never
// writes and never looks at capacity; the allocator rechecks capacity
// under lock.
type Admission struct {
	queries           AdmissionQueries
	rejectOverlapping bool
}

// NewAdmission returns an admission controller.  rejectOverlapping enables
// the overlapping-time gate.
func NewAdmission(queries AdmissionQueries, rejectOverlapping bool) *Admission {
	return &Admission{queries: queries, rejectOverlapping: rejectOverlapping}
}

// Decide runs the gates in order; the first failing gate decides.  A
// non-nil error means a query failed and no decision was made.
func (a *Admission) Decide(ctx context.Context, req AdmissionRequest) (Decision, error) {
	if d, ok := checkRequested(req); !ok {
		return d, nil
	}

	if a.rejectOverlapping && req.ExcludeReservationID == 0 {
		overlap, err := a.queries.HasOverlappingTimeBooking(ctx, req.UserID, req.ScheduleID)
		if err != nil {
			return Decision{}, err
		}
		if overlap {
			return reject(fmt.Errorf("%w: another booking starts at the same time", model.ErrDuplicateBooking)), nil
		}
	}

	// The aggregate check only applies once the user already holds seats
	// for the content.  Updates always run it, minus their own row.
	if req.ExcludeReservationID == 0 {
		held, err := a.queries.HasContentBooking(ctx, req.UserID, req.ScheduleID)
		if err != nil {
			return Decision{}, err
		}
		if !held {
			return admit(), nil
		}
	}

	counts, err := a.queries.AggregateUserCounts(ctx, req.UserID, req.ScheduleID, req.ExcludeReservationID)
	if err != nil {
		return Decision{}, err
	}
	if counts.Empty() {
		return admit(), nil
	}
	if counts.Adult+int64(req.Adult) > int64(req.Limits.MaxAdult) {
		return reject(fmt.Errorf("%w: adults %d held + %d requested > %d",
			model.ErrLimitExceeded, counts.Adult, req.Adult, req.Limits.MaxAdult)), nil
	}
	if counts.Child+int64(req.Child) > int64(req.Limits.MaxChild) {
		return reject(fmt.Errorf("%w: children %d held + %d requested > %d",
			model.ErrLimitExceeded, counts.Child, req.Child, req.Limits.MaxChild)), nil
	}
	return admit(), nil
}

// checkRequested is the input sanity gate.  A count of zero means the
// category is not requested and is never above the limit.
func checkRequested(req AdmissionRequest) (Decision, bool) {
	if !model.ValidCounts(req.Adult, req.Child) {
		return reject(fmt.Errorf("%w: counts must not be negative", model.ErrInvalidRequest)), false
	}
	if req.Adult > 0 && req.Adult > req.Limits.MaxAdult {
		return reject(fmt.Errorf("%w: %d adults exceeds the limit of %d",
			model.ErrInvalidRequest, req.Adult, req.Limits.MaxAdult)), false
	}
	if req.Child > 0 && req.Child > req.Limits.MaxChild {
		return reject(fmt.Errorf("%w: %d children exceeds the limit of %d",
			model.ErrInvalidRequest, req.Child, req.Limits.MaxChild)), false
	}
	return Decision{}, true
}
