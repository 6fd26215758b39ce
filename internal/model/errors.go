// Package model holds the reservation domain types and the errors
// shared by every layer of the service.  Lower layers wrap the errors
// with fmt.Errorf("%w: ...") and the transports map them to status
// codes with errors.Is.
package model

import "errors"

var (
	// ErrInvalidRequest covers malformed input and counts above the
	// user's per-request limits.
	ErrInvalidRequest = errors.New("invalid request")
	// ErrUnauthorized is surfaced by the identity gateway for a bad or
	// expired token.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrForbidden is returned when a caller touches a reservation held
	// by a different user.
	ErrForbidden = errors.New("forbidden")
	// ErrNotFound is returned for unknown reservations and schedules.
	ErrNotFound = errors.New("not found")
	// ErrDuplicateBooking rejects a booking that overlaps an existing one.
	ErrDuplicateBooking = errors.New("duplicate booking")
	// ErrLimitExceeded rejects a booking that would push the user's
	// aggregate for a content past the profile limits.
	ErrLimitExceeded = errors.New("limit exceeded")
	// ErrCapacityExceeded is returned by the allocator when the schedule
	// has no room left at commit time.
	ErrCapacityExceeded = errors.New("capacity exceeded")
	// ErrInvalidTransition rejects an illegal status change.
	ErrInvalidTransition = errors.New("invalid status transition")
	// ErrPersistence marks an infrastructure failure; the transaction was
	// rolled back.
	ErrPersistence = errors.New("persistence error")
	// ErrUpstream marks a failing identity or profile service.
	ErrUpstream = errors.New("upstream error")
)
