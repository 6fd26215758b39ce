package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/iliyamo/schedule-reservation/internal/model"
	"github.com/iliyamo/schedule-reservation/internal/queue"
)

// Options tune the policy of a ReservationService.
type Options struct {
	// ReleaseSeatsOnCancel gives a cancelled reservation's seats back to
	// its schedule.  When false, cancelled seats stay consumed.
	ReleaseSeatsOnCancel bool
	// RejectOverlapping turns on the overlapping-time admission gate.
	RejectOverlapping bool
	// Now overrides the clock; nil means time.Now.
	Now func() time.Time
}

// Dependencies are the collaborators of a ReservationService.  Events may
// be nil, in which case nothing is published.
type Dependencies struct {
	Reservations ReservationReader
	Schedules    OccupancyReader
	Queries      AdmissionQueries
	Tx           TxManager
	Profiles     ProfileGateway
	Events       EventPublisher
	Logger       *zap.Logger
}

// CreateRequest is the transport independent create-reservation input.
type CreateRequest struct {
	ScheduleID  uint64 `json:"content_schedule_id"`
	RequestedAt string `json:"requested_at,omitempty"`
	Adult       int32  `json:"adult_count"`
	Child       int32  `json:"child_count"`
}

// ReservationService is the front door of the booking core.  Every
// operation acts on behalf of a user id already resolved by the identity
// gateway.
type ReservationService struct {
	reservations ReservationReader
	schedules    OccupancyReader
	profiles     ProfileGateway
	events       EventPublisher
	admission    *Admission
	allocator    *Allocator
	log          *zap.Logger
	opts         Options
	now          func() time.Time
}

// NewReservationService wires a ReservationService.  It panics when a
// required dependency is missing.
func NewReservationService(d Dependencies, opts Options) *ReservationService {
	if d.Reservations == nil || d.Schedules == nil || d.Queries == nil || d.Tx == nil || d.Profiles == nil {
		panic("nil dependency passed to NewReservationService")
	}
	log := d.Logger
	if log == nil {
		log = zap.NewNop()
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &ReservationService{
		reservations: d.Reservations,
		schedules:    d.Schedules,
		profiles:     d.Profiles,
		events:       d.Events,
		admission:    NewAdmission(d.Queries, opts.RejectOverlapping),
		allocator:    NewAllocator(d.Tx),
		log:          log.Named("reservation"),
		opts:         opts,
		now:          now,
	}
}

// Create admits and allocates a new reservation for userID.
func (s *ReservationService) Create(ctx context.Context, userID string, req CreateRequest) (model.Reservation, error) {
	if req.ScheduleID == 0 {
		return model.Reservation{}, fmt.Errorf("%w: content_schedule_id is required", model.ErrInvalidRequest)
	}
	if err := checkCounts(req.Adult, req.Child); err != nil {
		return model.Reservation{}, err
	}
	reservedAt, err := s.parseRequestedAt(req.RequestedAt)
	if err != nil {
		return model.Reservation{}, err
	}
	limits, err := s.limits(ctx, userID)
	if err != nil {
		return model.Reservation{}, err
	}

	dec, err := s.admission.Decide(ctx, AdmissionRequest{
		UserID:     userID,
		ScheduleID: req.ScheduleID,
		Adult:      req.Adult,
		Child:      req.Child,
		Limits:     limits,
	})
	if err != nil {
		return model.Reservation{}, s.fail("admission query", err)
	}
	if !dec.Admitted {
		s.log.Info("admission rejected",
			zap.String("user_id", userID), zap.Uint64("schedule_id", req.ScheduleID), zap.Error(dec.Reason))
		return model.Reservation{}, dec.Reason
	}

	res, err := s.allocator.Allocate(ctx, model.Reservation{
		UserID:     userID,
		ScheduleID: req.ScheduleID,
		ReservedAt: &reservedAt,
		AdultCount: req.Adult,
		ChildCount: req.Child,
	})
	if err != nil {
		return model.Reservation{}, s.fail("allocate", err)
	}
	s.log.Info("reservation created",
		zap.Uint64("reservation_id", res.ID), zap.String("user_id", userID),
		zap.Uint64("schedule_id", res.ScheduleID), zap.Int32("adult", res.AdultCount), zap.Int32("child", res.ChildCount))
	s.publish(ctx, queue.EventCreated, res)
	return res, nil
}

// Get returns reservation id if it belongs to userID.
func (s *ReservationService) Get(ctx context.Context, userID string, id uint64) (model.Reservation, error) {
	res, err := s.reservations.GetByID(ctx, id)
	if err != nil {
		return model.Reservation{}, err
	}
	if err := ownedBy(userID)(res); err != nil {
		return model.Reservation{}, err
	}
	return res, nil
}

// ListByUser returns all reservations of userID, newest first.
func (s *ReservationService) ListByUser(ctx context.Context, userID string) ([]model.Reservation, error) {
	return s.reservations.ListByUser(ctx, userID)
}

// ListToday returns the reservations of userID whose schedule starts
// during the current UTC day.
func (s *ReservationService) ListToday(ctx context.Context, userID string) ([]model.Reservation, error) {
	from, to := dayRange(s.now())
	return s.reservations.ListByUserStartingBetween(ctx, userID, from, to)
}

// CheckAvailability reports the current occupancy of a schedule.  The
// answer is advisory; only Create decides under lock.
func (s *ReservationService) CheckAvailability(ctx context.Context, scheduleID uint64) (model.ScheduleOccupancy, error) {
	return s.schedules.GetOccupancy(ctx, scheduleID)
}

// Use confirms a pending reservation.
func (s *ReservationService) Use(ctx context.Context, userID string, id uint64) (model.Reservation, error) {
	res, err := s.allocator.Transition(ctx, id, model.StatusConfirmed, false, ownedBy(userID))
	if err != nil {
		return model.Reservation{}, s.fail("confirm", err)
	}
	s.publish(ctx, queue.EventConfirmed, res)
	return res, nil
}

// Cancel cancels a pending or confirmed reservation.
func (s *ReservationService) Cancel(ctx context.Context, userID string, id uint64) (model.Reservation, error) {
	res, err := s.allocator.Transition(ctx, id, model.StatusCancelled, s.opts.ReleaseSeatsOnCancel, ownedBy(userID))
	if err != nil {
		return model.Reservation{}, s.fail("cancel", err)
	}
	s.publish(ctx, queue.EventCancelled, res)
	return res, nil
}

// SetUsed sets or clears the redeem flag of a reservation.
func (s *ReservationService) SetUsed(ctx context.Context, userID string, id uint64, used bool) (model.Reservation, error) {
	res, err := s.allocator.SetUsed(ctx, id, used, ownedBy(userID))
	if err != nil {
		return model.Reservation{}, s.fail("set used", err)
	}
	s.publish(ctx, queue.EventUpdated, res)
	return res, nil
}

// UpdateCounts re-admits and reallocates a reservation with new counts.
func (s *ReservationService) UpdateCounts(ctx context.Context, userID string, id uint64, adult, child int32) (model.Reservation, error) {
	if err := checkCounts(adult, child); err != nil {
		return model.Reservation{}, err
	}
	cur, err := s.Get(ctx, userID, id)
	if err != nil {
		return model.Reservation{}, err
	}
	if !cur.Occupies() {
		return model.Reservation{}, fmt.Errorf("%w: reservation %d is %s", model.ErrInvalidTransition, id, cur.Status)
	}
	limits, err := s.limits(ctx, userID)
	if err != nil {
		return model.Reservation{}, err
	}

	dec, err := s.admission.Decide(ctx, AdmissionRequest{
		UserID:               userID,
		ScheduleID:           cur.ScheduleID,
		Adult:                adult,
		Child:                child,
		Limits:               limits,
		ExcludeReservationID: id,
	})
	if err != nil {
		return model.Reservation{}, s.fail("admission query", err)
	}
	if !dec.Admitted {
		s.log.Info("update rejected",
			zap.String("user_id", userID), zap.Uint64("reservation_id", id), zap.Error(dec.Reason))
		return model.Reservation{}, dec.Reason
	}

	res, err := s.allocator.Reallocate(ctx, id, adult, child, ownedBy(userID))
	if err != nil {
		return model.Reservation{}, s.fail("reallocate", err)
	}
	s.publish(ctx, queue.EventUpdated, res)
	return res, nil
}

// Delete removes a reservation regardless of its owner, releasing any
// seats it still holds.
func (s *ReservationService) Delete(ctx context.Context, id uint64) error {
	res, err := s.allocator.Delete(ctx, id, nil)
	if err != nil {
		return s.fail("delete", err)
	}
	s.publish(ctx, queue.EventDeleted, res)
	return nil
}

// UsersForSchedule returns the users holding a live reservation for the
// schedule.
func (s *ReservationService) UsersForSchedule(ctx context.Context, scheduleID uint64) ([]string, error) {
	return s.reservations.ListUserIDsBySchedule(ctx, scheduleID)
}

func (s *ReservationService) limits(ctx context.Context, userID string) (model.UserLimits, error) {
	limits, err := s.profiles.Limits(ctx, userID)
	if err != nil {
		s.log.Warn("profile lookup failed", zap.String("user_id", userID), zap.Error(err))
		if errors.Is(err, model.ErrUpstream) || errors.Is(err, model.ErrUnauthorized) {
			return model.UserLimits{}, err
		}
		return model.UserLimits{}, fmt.Errorf("%w: profile: %w", model.ErrUpstream, err)
	}
	return limits, nil
}

func (s *ReservationService) parseRequestedAt(v string) (time.Time, error) {
	v = strings.TrimSpace(v)
	if v == "" {
		return s.now().UTC(), nil
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02 15:04:05"} {
		if t, err := time.Parse(layout, v); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("%w: requested_at %q is not a timestamp", model.ErrInvalidRequest, v)
}

// fail logs infrastructure failures at error level and passes err back.
func (s *ReservationService) fail(op string, err error) error {
	if errors.Is(err, model.ErrPersistence) {
		s.log.Error(op+" failed", zap.Error(err))
	} else {
		s.log.Debug(op+" rejected", zap.Error(err))
	}
	return err
}

// publish sends a lifecycle event.  Failures are logged and otherwise
// ignored: the change is already committed.
func (s *ReservationService) publish(ctx context.Context, t queue.EventType, res model.Reservation) {
	if s.events == nil {
		return
	}
	if err := s.events.Publish(ctx, queue.NewReservationEvent(t, res, s.now())); err != nil {
		s.log.Warn("publish event failed",
			zap.String("type", string(t)), zap.Uint64("reservation_id", res.ID), zap.Error(err))
	}
}

func ownedBy(userID string) Guard {
	return func(res model.Reservation) error {
		if res.UserID != userID {
			return fmt.Errorf("%w: reservation %d belongs to another user", model.ErrForbidden, res.ID)
		}
		return nil
	}
}

func checkCounts(adult, child int32) error {
	if !model.ValidCounts(adult, child) {
		return fmt.Errorf("%w: counts must not be negative", model.ErrInvalidRequest)
	}
	if int64(adult)+int64(child) == 0 {
		return fmt.Errorf("%w: at least one seat is required", model.ErrInvalidRequest)
	}
	return nil
}

// dayRange returns 00:00:00 and 23:59:59 of the UTC day containing t.
func dayRange(t time.Time) (from, to time.Time) {
	y, m, d := t.UTC().Date()
	from = time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	return from, from.Add(24*time.Hour - time.Second)
}
