package reconcile

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Tanmay2302/CampusSpot/internal/core"
)

var testNow = time.Date(2025, 6, 1, 16, 0, 0, 0, time.UTC)

type fakeStore struct {
	mu       sync.Mutex
	bookings map[int64]*core.Booking
	lockBusy bool
	locks    int
	unlocks  int
}

func newFakeStore(bookings ...core.Booking) *fakeStore {
	s := &fakeStore{bookings: make(map[int64]*core.Booking)}
	for _, b := range bookings {
		copied := b
		s.bookings[b.ID] = &copied
	}
	return s
}

func (s *fakeStore) WithTx(_ context.Context, fn func(tx Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return fn((*fakeTx)(s))
}

func (s *fakeStore) AcquireCleanupLock(context.Context, int64) (func(), bool, error) {
	if s.lockBusy {
		return nil, false, nil
	}
	s.locks++
	return func() { s.unlocks++ }, true, nil
}

func (s *fakeStore) NoShowCandidates(_ context.Context, cutoff time.Time) ([]core.Booking, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []core.Booking
	for _, b := range s.bookings {
		if b.Status == core.StatusScheduled && b.StartsAt.Before(cutoff) {
			out = append(out, core.Booking{ID: b.ID, FacilityID: b.FacilityID})
		}
	}
	return out, nil
}

func (s *fakeStore) ExpiredCandidates(_ context.Context, now time.Time) ([]core.Booking, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []core.Booking
	for _, b := range s.bookings {
		if b.Status == core.StatusCheckedIn && !b.EndsAt.After(now) {
			out = append(out, core.Booking{ID: b.ID, FacilityID: b.FacilityID})
		}
	}
	return out, nil
}

func (s *fakeStore) JustStartedCount(_ context.Context, from, to time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, b := range s.bookings {
		if b.Status == core.StatusScheduled && b.StartsAt.After(from) && !b.StartsAt.After(to) {
			n++
		}
	}
	return n, nil
}

func (s *fakeStore) status(id int64) core.BookingStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.bookings[id].Status
}

type fakeTx fakeStore

func (t *fakeTx) FacilityForUpdate(_ context.Context, id int64) (*core.Facility, error) {
	return &core.Facility{ID: id}, nil
}

func (t *fakeTx) BookingForUpdate(_ context.Context, id int64) (*core.Booking, error) {
	if b, ok := t.bookings[id]; ok {
		copied := *b
		return &copied, nil
	}
	return nil, nil
}

func (t *fakeTx) SetBookingStatus(_ context.Context, id int64, status core.BookingStatus) error {
	t.bookings[id].Status = status
	return nil
}

type signalCounter struct {
	mu sync.Mutex
	n  int
}

func (c *signalCounter) StateChanged() {
	c.mu.Lock()
	c.n++
	c.mu.Unlock()
}

func (c *signalCounter) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.n
}

func newTestWorker(s *fakeStore, b Broadcaster) *Worker {
	return New(s, core.FixedClock{T: testNow}, time.Minute, 1001, 15*time.Minute, b)
}

func TestCycleReleasesNoShows(t *testing.T) {
	store := newFakeStore(
		core.Booking{ID: 1, FacilityID: 2, Status: core.StatusScheduled,
			StartsAt: testNow.Add(-20 * time.Minute), EndsAt: testNow.Add(40 * time.Minute)},
		// Still inside the grace window.
		core.Booking{ID: 2, FacilityID: 2, Status: core.StatusScheduled,
			StartsAt: testNow.Add(-10 * time.Minute), EndsAt: testNow.Add(50 * time.Minute)},
		// Exactly at the boundary: check-in is still allowed, so keep it.
		core.Booking{ID: 3, FacilityID: 2, Status: core.StatusScheduled,
			StartsAt: testNow.Add(-15 * time.Minute), EndsAt: testNow.Add(45 * time.Minute)},
	)
	sig := &signalCounter{}
	w := newTestWorker(store, sig)

	w.cycle(context.Background())

	assert.Equal(t, core.StatusReleased, store.status(1))
	assert.Equal(t, core.StatusScheduled, store.status(2))
	assert.Equal(t, core.StatusScheduled, store.status(3))
	assert.Equal(t, 1, sig.count())
	assert.Equal(t, store.locks, store.unlocks)
}

func TestCycleCompletesExpiredSessions(t *testing.T) {
	store := newFakeStore(
		core.Booking{ID: 1, FacilityID: 1, Status: core.StatusCheckedIn,
			StartsAt: testNow.Add(-2 * time.Hour), EndsAt: testNow.Add(-30 * time.Minute)},
		// Ends exactly now: the window is half-open, complete it.
		core.Booking{ID: 2, FacilityID: 1, Status: core.StatusCheckedIn,
			StartsAt: testNow.Add(-time.Hour), EndsAt: testNow},
		core.Booking{ID: 3, FacilityID: 1, Status: core.StatusCheckedIn,
			StartsAt: testNow.Add(-time.Hour), EndsAt: testNow.Add(time.Hour)},
	)
	w := newTestWorker(store, nil)

	w.cycle(context.Background())

	assert.Equal(t, core.StatusCompleted, store.status(1))
	assert.Equal(t, core.StatusCompleted, store.status(2))
	assert.Equal(t, core.StatusCheckedIn, store.status(3))
}

func TestCycleSkipsWhenLockBusy(t *testing.T) {
	store := newFakeStore(
		core.Booking{ID: 1, FacilityID: 2, Status: core.StatusScheduled,
			StartsAt: testNow.Add(-time.Hour), EndsAt: testNow.Add(time.Hour)},
	)
	store.lockBusy = true
	sig := &signalCounter{}
	w := newTestWorker(store, sig)

	w.cycle(context.Background())

	assert.Equal(t, core.StatusScheduled, store.status(1))
	assert.Zero(t, sig.count())

	// The other holder is doing the work, so the cycle still counts for
	// health reporting.
	last, ok := w.LastRunAt()
	require.True(t, ok)
	assert.Equal(t, testNow, last)
}

func TestCycleRechecksUnderLock(t *testing.T) {
	// The scan sees a stale scheduled row, but by the time the locks are
	// held the user has checked in. The re-read must win.
	store := newFakeStore(
		core.Booking{ID: 1, FacilityID: 2, Status: core.StatusScheduled,
			StartsAt: testNow.Add(-20 * time.Minute), EndsAt: testNow.Add(40 * time.Minute)},
	)
	base := store.WithTx
	raced := &racingStore{fakeStore: store, flipOnce: func() {
		store.bookings[1].Status = core.StatusCheckedIn
	}, withTx: base}
	sig := &signalCounter{}
	w := New(raced, core.FixedClock{T: testNow}, time.Minute, 1001, 15*time.Minute, sig)

	w.cycle(context.Background())

	assert.Equal(t, core.StatusCheckedIn, store.status(1))
	assert.Zero(t, sig.count())
}

// racingStore flips a booking's state between the candidate scan and the
// locked transaction.
type racingStore struct {
	*fakeStore
	flipOnce func()
	withTx   func(ctx context.Context, fn func(tx Tx) error) error
}

func (r *racingStore) WithTx(ctx context.Context, fn func(tx Tx) error) error {
	if r.flipOnce != nil {
		r.flipOnce()
		r.flipOnce = nil
	}
	return r.withTx(ctx, fn)
}

func TestCycleBroadcastsOnJustStartedBooking(t *testing.T) {
	// A booking entered its check-in window during the last interval. No row
	// changes, but occupancy did, so observers must be notified.
	store := newFakeStore(
		core.Booking{ID: 1, FacilityID: 2, Status: core.StatusScheduled,
			StartsAt: testNow.Add(-30 * time.Second), EndsAt: testNow.Add(time.Hour)},
	)
	sig := &signalCounter{}
	w := newTestWorker(store, sig)

	w.cycle(context.Background())

	assert.Equal(t, core.StatusScheduled, store.status(1))
	assert.Equal(t, 1, sig.count())
}

func TestNoBroadcastWhenNothingChanged(t *testing.T) {
	store := newFakeStore(
		core.Booking{ID: 1, FacilityID: 1, Status: core.StatusScheduled,
			StartsAt: testNow.Add(time.Hour), EndsAt: testNow.Add(2 * time.Hour)},
	)
	sig := &signalCounter{}
	w := newTestWorker(store, sig)

	w.cycle(context.Background())

	assert.Zero(t, sig.count())
	last, ok := w.LastRunAt()
	require.True(t, ok)
	assert.Equal(t, testNow, last)
}
