package service_test

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/iliyamo/schedule-reservation/internal/database"
	"github.com/iliyamo/schedule-reservation/internal/database/dbtest"
	"github.com/iliyamo/schedule-reservation/internal/model"
	"github.com/iliyamo/schedule-reservation/internal/queue"
	"github.com/iliyamo/schedule-reservation/internal/repository"
	"github.com/iliyamo/schedule-reservation/internal/service"
)

var (
	today = time.Date(2026, 10, 16, 12, 0, 0, 0, time.UTC)
	wide  = model.UserLimits{MaxAdult: 100, MaxChild: 100}
)

type fixedProfile model.UserLimits

func (p fixedProfile) Limits(context.Context, string) (model.UserLimits, error) {
	return model.UserLimits(p), nil
}

type failingProfile struct{}

func (failingProfile) Limits(context.Context, string) (model.UserLimits, error) {
	return model.UserLimits{}, errors.New("connection refused")
}

type recorder struct {
	mu     sync.Mutex
	events []queue.ReservationEvent
}

func (r *recorder) Publish(_ context.Context, ev queue.ReservationEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
	return nil
}

func (r *recorder) types() []queue.EventType {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]queue.EventType, 0, len(r.events))
	for _, ev := range r.events {
		out = append(out, ev.Type)
	}
	return out
}

type fixture struct {
	db       *sql.DB
	svc      *service.ReservationService
	events   *recorder
	content  uint64
	schedule uint64
}

func setup(t *testing.T, capacity int32, profile service.ProfileGateway, opts service.Options) *fixture {
	t.Helper()
	db := dbtest.Open(t)
	contentID, scheduleID := dbtest.SeedContentSchedule(t, db, capacity, today.Add(2*time.Hour))
	return withService(t, db, repository.NewStore(db, database.SQLite), profile, opts, contentID, scheduleID)
}

func withService(t *testing.T, db *sql.DB, tx service.TxManager, profile service.ProfileGateway, opts service.Options, contentID, scheduleID uint64) *fixture {
	t.Helper()
	if opts.Now == nil {
		opts.Now = func() time.Time { return today }
	}
	rec := &recorder{}
	repo := repository.NewReservationRepo(db)
	svc := service.NewReservationService(service.Dependencies{
		Reservations: repo,
		Schedules:    repository.NewScheduleRepo(db, database.SQLite),
		Queries:      repo,
		Tx:           tx,
		Profiles:     profile,
		Events:       rec,
		Logger:       zaptest.NewLogger(t),
	}, opts)
	return &fixture{db: db, svc: svc, events: rec, content: contentID, schedule: scheduleID}
}

func (f *fixture) create(t *testing.T, user string, adult, child int32) model.Reservation {
	t.Helper()
	res, err := f.svc.Create(context.Background(), user, service.CreateRequest{ScheduleID: f.schedule, Adult: adult, Child: child})
	require.NoError(t, err)
	return res
}

func (f *fixture) assertConsistent(t *testing.T) {
	t.Helper()
	adult, child := dbtest.Occupancy(t, f.db, f.schedule)
	liveAdult, liveChild := dbtest.LiveSeats(t, f.db, f.schedule)
	assert.Equal(t, liveAdult, adult, "adult occupancy")
	assert.Equal(t, liveChild, child, "child occupancy")
}

func TestCreateAdmitsWithinCapacity(t *testing.T) {
	f := setup(t, 10, fixedProfile(wide), service.Options{ReleaseSeatsOnCancel: true})

	res := f.create(t, "u1", 6, 2)

	assert.NotZero(t, res.ID)
	assert.Equal(t, model.StatusPending, res.Status)
	assert.False(t, res.Used)
	require.NotNil(t, res.ReservedAt)
	assert.Equal(t, today, *res.ReservedAt)
	adult, child := dbtest.Occupancy(t, f.db, f.schedule)
	assert.Equal(t, int32(6), adult)
	assert.Equal(t, int32(2), child)
	assert.Equal(t, []queue.EventType{queue.EventCreated}, f.events.types())
}

func TestCreateRejectsOverCapacity(t *testing.T) {
	f := setup(t, 10, fixedProfile(wide), service.Options{})
	f.create(t, "u1", 6, 2)

	_, err := f.svc.Create(context.Background(), "u2", service.CreateRequest{ScheduleID: f.schedule, Adult: 3})

	require.ErrorIs(t, err, model.ErrCapacityExceeded)
	adult, child := dbtest.Occupancy(t, f.db, f.schedule)
	assert.Equal(t, int32(6), adult)
	assert.Equal(t, int32(2), child)
	list, err := f.svc.ListByUser(context.Background(), "u2")
	require.NoError(t, err)
	assert.Empty(t, list)
	f.assertConsistent(t)
}

func TestCreateHugeCountsDoNotWrapCapacity(t *testing.T) {
	f := setup(t, 10, fixedProfile(model.UserLimits{MaxAdult: math.MaxInt32, MaxChild: math.MaxInt32}), service.Options{})

	_, err := f.svc.Create(context.Background(), "u1", service.CreateRequest{ScheduleID: f.schedule, Adult: math.MaxInt32, Child: 1})
	require.ErrorIs(t, err, model.ErrCapacityExceeded)

	_, err = f.svc.Create(context.Background(), "u1", service.CreateRequest{ScheduleID: f.schedule, Adult: math.MaxInt32, Child: math.MaxInt32})
	require.ErrorIs(t, err, model.ErrCapacityExceeded)

	adult, child := dbtest.Occupancy(t, f.db, f.schedule)
	assert.Zero(t, adult)
	assert.Zero(t, child)
	f.assertConsistent(t)
}

func TestUpdateCountsHugeGrowDoesNotWrap(t *testing.T) {
	f := setup(t, 10, fixedProfile(model.UserLimits{MaxAdult: math.MaxInt32, MaxChild: math.MaxInt32}), service.Options{})
	res := f.create(t, "u1", 2, 0)

	_, err := f.svc.UpdateCounts(context.Background(), "u1", res.ID, math.MaxInt32, math.MaxInt32)
	require.ErrorIs(t, err, model.ErrCapacityExceeded)

	adult, child := dbtest.Occupancy(t, f.db, f.schedule)
	assert.Equal(t, int32(2), adult)
	assert.Zero(t, child)
	f.assertConsistent(t)
}

func TestCreateRejectsAggregateOverUserLimit(t *testing.T) {
	f := setup(t, 50, fixedProfile(model.UserLimits{MaxAdult: 3, MaxChild: 3}), service.Options{})
	other := dbtest.SeedSchedule(t, f.db, f.content, today.Add(26*time.Hour))
	f.create(t, "u1", 2, 0)

	_, err := f.svc.Create(context.Background(), "u1", service.CreateRequest{ScheduleID: other, Adult: 2})
	require.ErrorIs(t, err, model.ErrLimitExceeded)

	res, err := f.svc.Create(context.Background(), "u1", service.CreateRequest{ScheduleID: other, Adult: 1})
	require.NoError(t, err)
	assert.Equal(t, other, res.ScheduleID)
}

func TestCreateIgnoresCancelledBookingsForLimit(t *testing.T) {
	f := setup(t, 50, fixedProfile(model.UserLimits{MaxAdult: 3, MaxChild: 3}), service.Options{ReleaseSeatsOnCancel: true})
	first := f.create(t, "u1", 3, 0)
	_, err := f.svc.Cancel(context.Background(), "u1", first.ID)
	require.NoError(t, err)

	f.create(t, "u1", 3, 0)
}

func TestCreateInvalidRequests(t *testing.T) {
	f := setup(t, 10, fixedProfile(model.UserLimits{MaxAdult: 2, MaxChild: 1}), service.Options{})

	tests := []struct {
		name string
		req  service.CreateRequest
	}{
		{"missing schedule", service.CreateRequest{Adult: 1}},
		{"no seats", service.CreateRequest{ScheduleID: f.schedule}},
		{"negative child", service.CreateRequest{ScheduleID: f.schedule, Adult: 1, Child: -1}},
		{"adults above profile limit", service.CreateRequest{ScheduleID: f.schedule, Adult: 3}},
		{"children above profile limit", service.CreateRequest{ScheduleID: f.schedule, Child: 2}},
		{"bad requested_at", service.CreateRequest{ScheduleID: f.schedule, Adult: 1, RequestedAt: "tomorrow"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.Create(context.Background(), "u1", tt.req)
			assert.ErrorIs(t, err, model.ErrInvalidRequest)
		})
	}
	f.assertConsistent(t)
}

func TestCreateParsesRequestedAt(t *testing.T) {
	f := setup(t, 10, fixedProfile(wide), service.Options{})

	res, err := f.svc.Create(context.Background(), "u1", service.CreateRequest{
		ScheduleID: f.schedule, Adult: 1, RequestedAt: "2026-10-15 09:30:00",
	})
	require.NoError(t, err)
	require.NotNil(t, res.ReservedAt)
	assert.Equal(t, time.Date(2026, 10, 15, 9, 30, 0, 0, time.UTC), *res.ReservedAt)
}

func TestCreateUnknownSchedule(t *testing.T) {
	f := setup(t, 10, fixedProfile(wide), service.Options{})

	_, err := f.svc.Create(context.Background(), "u1", service.CreateRequest{ScheduleID: 999, Adult: 1})
	assert.ErrorIs(t, err, model.ErrNotFound)
}

func TestCreateProfileFailureIsUpstream(t *testing.T) {
	f := setup(t, 10, failingProfile{}, service.Options{})

	_, err := f.svc.Create(context.Background(), "u1", service.CreateRequest{ScheduleID: f.schedule, Adult: 1})
	assert.ErrorIs(t, err, model.ErrUpstream)
}

func TestCreateOverlappingGate(t *testing.T) {
	f := setup(t, 10, fixedProfile(wide), service.Options{RejectOverlapping: true})
	otherContent := dbtest.SeedContent(t, f.db, 10)
	sameTime := dbtest.SeedSchedule(t, f.db, otherContent, today.Add(2*time.Hour))
	f.create(t, "u1", 1, 0)

	_, err := f.svc.Create(context.Background(), "u1", service.CreateRequest{ScheduleID: sameTime, Adult: 1})
	assert.ErrorIs(t, err, model.ErrDuplicateBooking)

	_, err = f.svc.Create(context.Background(), "u2", service.CreateRequest{ScheduleID: sameTime, Adult: 1})
	assert.NoError(t, err)
}

func TestConcurrentCreateNeverExceedsCapacity(t *testing.T) {
	const (
		capacity = 10
		workers  = 25
	)
	f := setup(t, capacity, fixedProfile(wide), service.Options{})

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		admitted int
		rejected int
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			// 3 seats each: only three requests fit into ten seats.
			_, err := f.svc.Create(context.Background(), fmt.Sprintf("user-%d", i),
				service.CreateRequest{ScheduleID: f.schedule, Adult: 2, Child: 1})
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				admitted++
			case errors.Is(err, model.ErrCapacityExceeded):
				rejected++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 3, admitted)
	assert.Equal(t, workers-3, rejected)
	adult, child := dbtest.Occupancy(t, f.db, f.schedule)
	assert.Equal(t, int32(9), adult+child)
	f.assertConsistent(t)
}

func TestConcurrentMixedOperationsKeepAggregate(t *testing.T) {
	f := setup(t, 40, fixedProfile(wide), service.Options{ReleaseSeatsOnCancel: true})
	seeded := make([]model.Reservation, 0, 10)
	for i := 0; i < 10; i++ {
		seeded = append(seeded, f.create(t, fmt.Sprintf("user-%d", i), 2, 1))
	}

	var wg sync.WaitGroup
	for i, res := range seeded {
		wg.Add(2)
		go func(i int, res model.Reservation) {
			defer wg.Done()
			var err error
			switch i % 3 {
			case 0:
				_, err = f.svc.Cancel(context.Background(), res.UserID, res.ID)
			case 1:
				_, err = f.svc.UpdateCounts(context.Background(), res.UserID, res.ID, 4, 2)
			default:
				_, err = f.svc.UpdateCounts(context.Background(), res.UserID, res.ID, 1, 0)
			}
			if err != nil && !errors.Is(err, model.ErrCapacityExceeded) {
				t.Errorf("reservation %d: %v", res.ID, err)
			}
		}(i, res)
		go func(i int) {
			defer wg.Done()
			_, err := f.svc.Create(context.Background(), fmt.Sprintf("late-%d", i),
				service.CreateRequest{ScheduleID: f.schedule, Adult: 1, Child: 1})
			if err != nil && !errors.Is(err, model.ErrCapacityExceeded) {
				t.Errorf("late create %d: %v", i, err)
			}
		}(i)
	}
	wg.Wait()

	adult, child := dbtest.Occupancy(t, f.db, f.schedule)
	assert.LessOrEqual(t, adult+child, int32(40))
	f.assertConsistent(t)
}

func TestGetIsIdempotentAndOwned(t *testing.T) {
	f := setup(t, 10, fixedProfile(wide), service.Options{})
	created := f.create(t, "u1", 1, 1)

	first, err := f.svc.Get(context.Background(), "u1", created.ID)
	require.NoError(t, err)
	second, err := f.svc.Get(context.Background(), "u1", created.ID)
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Equal(t, created, first)

	_, err = f.svc.Get(context.Background(), "u2", created.ID)
	assert.ErrorIs(t, err, model.ErrForbidden)
	_, err = f.svc.Get(context.Background(), "u1", created.ID+100)
	assert.ErrorIs(t, err, model.ErrNotFound)
}

func TestUpdateCountsShrinksOnFullSchedule(t *testing.T) {
	f := setup(t, 3, fixedProfile(wide), service.Options{})
	res := f.create(t, "u1", 2, 0)
	f.create(t, "u2", 1, 0)

	updated, err := f.svc.UpdateCounts(context.Background(), "u1", res.ID, 1, 0)
	require.NoError(t, err)

	assert.Equal(t, int32(1), updated.AdultCount)
	adult, child := dbtest.Occupancy(t, f.db, f.schedule)
	assert.Equal(t, int32(2), adult)
	assert.Zero(t, child)
	f.assertConsistent(t)
}

func TestUpdateCountsGrowBeyondCapacity(t *testing.T) {
	f := setup(t, 5, fixedProfile(wide), service.Options{})
	res := f.create(t, "u1", 2, 0)
	f.create(t, "u2", 2, 0)

	_, err := f.svc.UpdateCounts(context.Background(), "u1", res.ID, 2, 2)
	require.ErrorIs(t, err, model.ErrCapacityExceeded)

	_, err = f.svc.UpdateCounts(context.Background(), "u1", res.ID, 2, 1)
	require.NoError(t, err)
	adult, child := dbtest.Occupancy(t, f.db, f.schedule)
	assert.Equal(t, int32(4), adult)
	assert.Equal(t, int32(1), child)
	f.assertConsistent(t)
}

func TestUpdateCountsChecksLimitsExcludingItself(t *testing.T) {
	f := setup(t, 50, fixedProfile(model.UserLimits{MaxAdult: 4, MaxChild: 4}), service.Options{})
	other := dbtest.SeedSchedule(t, f.db, f.content, today.Add(30*time.Hour))
	res := f.create(t, "u1", 3, 0)
	_, err := f.svc.Create(context.Background(), "u1", service.CreateRequest{ScheduleID: other, Adult: 1})
	require.NoError(t, err)

	// 3 -> 3 keeps the aggregate at 4.
	_, err = f.svc.UpdateCounts(context.Background(), "u1", res.ID, 3, 1)
	require.NoError(t, err)

	_, err = f.svc.UpdateCounts(context.Background(), "u1", res.ID, 4, 0)
	assert.ErrorIs(t, err, model.ErrLimitExceeded)

	_, err = f.svc.UpdateCounts(context.Background(), "u1", res.ID, 5, 0)
	assert.ErrorIs(t, err, model.ErrInvalidRequest)
}

func TestUpdateCountsForbiddenAndCancelled(t *testing.T) {
	f := setup(t, 10, fixedProfile(wide), service.Options{ReleaseSeatsOnCancel: true})
	res := f.create(t, "u1", 2, 0)

	_, err := f.svc.UpdateCounts(context.Background(), "u2", res.ID, 1, 0)
	assert.ErrorIs(t, err, model.ErrForbidden)

	_, err = f.svc.Cancel(context.Background(), "u1", res.ID)
	require.NoError(t, err)
	_, err = f.svc.UpdateCounts(context.Background(), "u1", res.ID, 1, 0)
	assert.ErrorIs(t, err, model.ErrInvalidTransition)
	f.assertConsistent(t)
}

func TestStatusLifecycle(t *testing.T) {
	f := setup(t, 10, fixedProfile(wide), service.Options{ReleaseSeatsOnCancel: true})
	res := f.create(t, "u1", 2, 1)

	_, err := f.svc.Use(context.Background(), "u2", res.ID)
	require.ErrorIs(t, err, model.ErrForbidden)

	confirmed, err := f.svc.Use(context.Background(), "u1", res.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusConfirmed, confirmed.Status)
	assert.False(t, confirmed.Used, "confirming does not redeem")

	_, err = f.svc.Use(context.Background(), "u1", res.ID)
	assert.ErrorIs(t, err, model.ErrInvalidTransition)

	cancelled, err := f.svc.Cancel(context.Background(), "u1", res.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusCancelled, cancelled.Status)

	_, err = f.svc.Cancel(context.Background(), "u1", res.ID)
	assert.ErrorIs(t, err, model.ErrInvalidTransition)
	_, err = f.svc.Use(context.Background(), "u1", res.ID)
	assert.ErrorIs(t, err, model.ErrInvalidTransition)

	stored, err := f.svc.Get(context.Background(), "u1", res.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusCancelled, stored.Status)
	assert.Equal(t, []queue.EventType{queue.EventCreated, queue.EventConfirmed, queue.EventCancelled}, f.events.types())
}

func TestCancelReleasesSeats(t *testing.T) {
	f := setup(t, 4, fixedProfile(wide), service.Options{ReleaseSeatsOnCancel: true})
	res := f.create(t, "u1", 3, 1)

	_, err := f.svc.Cancel(context.Background(), "u1", res.ID)
	require.NoError(t, err)

	adult, child := dbtest.Occupancy(t, f.db, f.schedule)
	assert.Zero(t, adult)
	assert.Zero(t, child)
	f.assertConsistent(t)
	f.create(t, "u2", 4, 0)
}

func TestCancelWithoutReleaseKeepsSeats(t *testing.T) {
	f := setup(t, 4, fixedProfile(wide), service.Options{ReleaseSeatsOnCancel: false})
	res := f.create(t, "u1", 3, 1)

	_, err := f.svc.Cancel(context.Background(), "u1", res.ID)
	require.NoError(t, err)

	adult, child := dbtest.Occupancy(t, f.db, f.schedule)
	assert.Equal(t, int32(3), adult)
	assert.Equal(t, int32(1), child)
	_, err = f.svc.Create(context.Background(), "u2", service.CreateRequest{ScheduleID: f.schedule, Adult: 1})
	assert.ErrorIs(t, err, model.ErrCapacityExceeded)
}

func TestSetUsedIsIndependentOfStatus(t *testing.T) {
	f := setup(t, 10, fixedProfile(wide), service.Options{})
	res := f.create(t, "u1", 1, 0)

	used, err := f.svc.SetUsed(context.Background(), "u1", res.ID, true)
	require.NoError(t, err)
	assert.True(t, used.Used)
	assert.Equal(t, model.StatusPending, used.Status)

	stored, err := f.svc.Get(context.Background(), "u1", res.ID)
	require.NoError(t, err)
	assert.True(t, stored.Used)

	// Setting the same value again still succeeds.
	_, err = f.svc.SetUsed(context.Background(), "u1", res.ID, true)
	require.NoError(t, err)

	_, err = f.svc.SetUsed(context.Background(), "u2", res.ID, false)
	assert.ErrorIs(t, err, model.ErrForbidden)
}

func TestDeleteReleasesSeats(t *testing.T) {
	f := setup(t, 10, fixedProfile(wide), service.Options{})
	keep := f.create(t, "u1", 2, 0)
	drop := f.create(t, "u2", 3, 2)

	require.NoError(t, f.svc.Delete(context.Background(), drop.ID))

	adult, child := dbtest.Occupancy(t, f.db, f.schedule)
	assert.Equal(t, keep.AdultCount, adult)
	assert.Zero(t, child)
	f.assertConsistent(t)
	assert.ErrorIs(t, f.svc.Delete(context.Background(), drop.ID), model.ErrNotFound)
}

func TestListToday(t *testing.T) {
	f := setup(t, 10, fixedProfile(wide), service.Options{})
	tomorrow := dbtest.SeedSchedule(t, f.db, dbtest.SeedContent(t, f.db, 10), today.Add(24*time.Hour))
	todays := f.create(t, "u1", 1, 0)
	_, err := f.svc.Create(context.Background(), "u1", service.CreateRequest{ScheduleID: tomorrow, Adult: 1})
	require.NoError(t, err)
	f.create(t, "u2", 1, 0)

	list, err := f.svc.ListToday(context.Background(), "u1")
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, todays.ID, list[0].ID)

	all, err := f.svc.ListByUser(context.Background(), "u1")
	require.NoError(t, err)
	assert.Len(t, all, 2)
	assert.Greater(t, all[0].ID, all[1].ID, "newest first")
}

func TestCheckAvailability(t *testing.T) {
	f := setup(t, 10, fixedProfile(wide), service.Options{})
	f.create(t, "u1", 3, 2)

	occ, err := f.svc.CheckAvailability(context.Background(), f.schedule)
	require.NoError(t, err)
	assert.Equal(t, int32(10), occ.Capacity)
	assert.Equal(t, int64(5), occ.Total())
	assert.Equal(t, int64(5), occ.Remaining())
	assert.Equal(t, f.content, occ.ContentID)

	_, err = f.svc.CheckAvailability(context.Background(), 404)
	assert.ErrorIs(t, err, model.ErrNotFound)
}

func TestUsersForSchedule(t *testing.T) {
	f := setup(t, 10, fixedProfile(wide), service.Options{ReleaseSeatsOnCancel: true})
	f.create(t, "alice", 1, 0)
	f.create(t, "alice", 1, 0)
	gone := f.create(t, "carol", 1, 0)
	f.create(t, "bob", 1, 0)
	_, err := f.svc.Cancel(context.Background(), "carol", gone.ID)
	require.NoError(t, err)

	users, err := f.svc.UsersForSchedule(context.Background(), f.schedule)
	require.NoError(t, err)
	assert.Equal(t, []string{"alice", "bob"}, users)
}

// failingTx makes the final occupancy write fail after the reservation
// row was inserted.
type failingTx struct{ service.AllocationTx }

func (failingTx) AdjustOccupancy(context.Context, uint64, int32, int32) error {
	return fmt.Errorf("%w: disk full", model.ErrPersistence)
}

type failingStore struct{ *repository.Store }

func (s failingStore) WithTx(ctx context.Context, fn func(context.Context, service.AllocationTx) error) error {
	return s.Store.WithTx(ctx, func(ctx context.Context, tx service.AllocationTx) error {
		return fn(ctx, failingTx{tx})
	})
}

func TestPersistenceFailureRollsBack(t *testing.T) {
	db := dbtest.Open(t)
	contentID, scheduleID := dbtest.SeedContentSchedule(t, db, 10, today)
	f := withService(t, db, failingStore{repository.NewStore(db, database.SQLite)}, fixedProfile(wide),
		service.Options{}, contentID, scheduleID)

	_, err := f.svc.Create(context.Background(), "u1", service.CreateRequest{ScheduleID: scheduleID, Adult: 2})
	require.ErrorIs(t, err, model.ErrPersistence)

	list, err := f.svc.ListByUser(context.Background(), "u1")
	require.NoError(t, err)
	assert.Empty(t, list, "insert must be rolled back")
	f.assertConsistent(t)
	assert.Empty(t, f.events.types())
}

func TestCancelledContextRollsBack(t *testing.T) {
	f := setup(t, 10, fixedProfile(wide), service.Options{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := f.svc.Create(ctx, "u1", service.CreateRequest{ScheduleID: f.schedule, Adult: 1})
	require.Error(t, err)
	f.assertConsistent(t)
}
