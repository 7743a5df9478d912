package booking

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/Tanmay2302/CampusSpot/internal/core"
)

// memStore is an in-memory Store/Tx used to exercise the service's
// transactional choreography without a database. The mutex stands in for the
// row locks: one request at a time inside WithTx.
type memStore struct {
	mu         sync.Mutex
	facilities map[int64]*core.Facility
	units      map[int64]*core.FacilityUnit
	bookings   map[int64]*core.Booking
	nextID     int64
}

func newMemStore() *memStore {
	return &memStore{
		facilities: make(map[int64]*core.Facility),
		units:      make(map[int64]*core.FacilityUnit),
		bookings:   make(map[int64]*core.Booking),
		nextID:     1,
	}
}

func (m *memStore) addFacility(f core.Facility) {
	m.facilities[f.ID] = &f
}

func (m *memStore) addUnit(u core.FacilityUnit) {
	m.units[u.ID] = &u
}

func (m *memStore) WithTx(_ context.Context, fn func(tx Tx) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return fn((*memTx)(m))
}

type memTx memStore

func (t *memTx) FacilityForUpdate(_ context.Context, id int64) (*core.Facility, error) {
	if f, ok := t.facilities[id]; ok {
		copied := *f
		return &copied, nil
	}
	return nil, nil
}

func (t *memTx) UnitForUpdate(_ context.Context, id int64) (*core.FacilityUnit, error) {
	if u, ok := t.units[id]; ok {
		copied := *u
		return &copied, nil
	}
	return nil, nil
}

func (t *memTx) BookingByID(_ context.Context, id int64) (*core.Booking, error) {
	if b, ok := t.bookings[id]; ok {
		copied := *b
		return &copied, nil
	}
	return nil, nil
}

func (t *memTx) BookingForUpdate(ctx context.Context, id int64) (*core.Booking, error) {
	return t.BookingByID(ctx, id)
}

func (t *memTx) ActiveOverlapping(_ context.Context, facilityID int64, unitID *int64, start, end time.Time) ([]core.Booking, error) {
	var out []core.Booking
	for _, b := range t.bookings {
		if b.FacilityID != facilityID || !b.Status.Active() || !b.Overlaps(start, end) {
			continue
		}
		if unitID != nil && (b.UnitID == nil || *b.UnitID != *unitID) {
			continue
		}
		out = append(out, *b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (t *memTx) ActiveUserOverlapping(_ context.Context, userName string, start, end time.Time) ([]core.Booking, error) {
	var out []core.Booking
	for _, b := range t.bookings {
		if b.BookedBy == userName && b.Status.Active() && b.Overlaps(start, end) {
			out = append(out, *b)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (t *memTx) InsertBooking(_ context.Context, b *core.Booking) error {
	for _, existing := range t.bookings {
		if existing.Status.Active() && existing.IdempotencyKey == b.IdempotencyKey {
			return ErrDuplicateIdempotencyKey
		}
	}
	b.ID = t.nextID
	t.nextID++
	b.CreatedAt = time.Now().UTC()
	copied := *b
	t.bookings[b.ID] = &copied
	return nil
}

func (t *memTx) SetBookingStatus(_ context.Context, id int64, status core.BookingStatus) error {
	if b, ok := t.bookings[id]; ok {
		b.Status = status
	}
	return nil
}

func (t *memTx) CompleteBooking(_ context.Context, id int64, endsAt time.Time) error {
	if b, ok := t.bookings[id]; ok {
		b.Status = core.StatusCompleted
		b.EndsAt = endsAt
	}
	return nil
}

// countingBroadcaster records state-changed signals.
type countingBroadcaster struct {
	mu    sync.Mutex
	count int
}

func (c *countingBroadcaster) StateChanged() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.count++
}

func (c *countingBroadcaster) signals() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.count
}
