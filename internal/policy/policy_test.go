package policy

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Tanmay2302/CampusSpot/internal/core"
)

func newEvaluator() Evaluator {
	return Evaluator{
		SlotSize:               30 * time.Minute,
		MaxBookingHorizonDays:  7,
		ClubBookingHorizonDays: 30,
	}
}

func courts() *core.Facility {
	return &core.Facility{
		ID:                 2,
		Name:               "Sports Courts",
		Category:           "Sports",
		TotalCapacity:      3,
		IsPooled:           false,
		MinDurationMinutes: 30,
		MaxDurationMinutes: 120,
		OpenTime:           "07:00",
		CloseTime:          "23:00",
	}
}

func at(hour, min int) time.Time {
	return time.Date(2025, 6, 1, hour, min, 0, 0, time.UTC)
}

func TestSnapToSlot(t *testing.T) {
	e := newEvaluator()
	tests := []struct {
		name string
		in   time.Time
		want time.Time
	}{
		{"already aligned", at(16, 0), at(16, 0)},
		{"rounds down", at(16, 7), at(16, 0)},
		{"rounds up", at(16, 52), at(17, 0)},
		{"tie rounds half up", at(16, 15), at(16, 30)},
		{"just below tie", at(16, 14), at(16, 0)},
		{"seconds zeroed before rounding", at(16, 14).Add(59 * time.Second), at(16, 0)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.True(t, tt.want.Equal(e.SnapToSlot(tt.in)), "got %v", e.SnapToSlot(tt.in))
		})
	}
}

func TestSnapToNextBoundary(t *testing.T) {
	e := newEvaluator()
	tests := []struct {
		name string
		in   time.Time
		want time.Time
	}{
		{"mid slot", at(17, 30), at(18, 0)}, // on a boundary jumps to the next one
		{"just after boundary", at(17, 31), at(18, 0)},
		{"just before boundary", at(17, 59), at(18, 0)},
		{"top of hour", at(17, 0), at(17, 30)},
		{"with seconds", at(17, 30).Add(45 * time.Second), at(18, 0)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.True(t, tt.want.Equal(e.SnapToNextBoundary(tt.in)), "got %v", e.SnapToNextBoundary(tt.in))
		})
	}
}

func TestIdempotencyKeyDeterministic(t *testing.T) {
	e := newEvaluator()
	start := at(16, 0)
	assert.Equal(t, e.IdempotencyKey("alice", start), e.IdempotencyKey("alice", start))
	assert.NotEqual(t, e.IdempotencyKey("alice", start), e.IdempotencyKey("bob", start))
	assert.NotEqual(t, e.IdempotencyKey("alice", start), e.IdempotencyKey("alice", start.Add(30*time.Minute)))
}

func TestValidateHappyPath(t *testing.T) {
	e := newEvaluator()
	now := at(15, 45)

	bt, err := e.Validate(courts(), at(16, 0), at(17, 0), core.UserIndividual, now)
	require.NoError(t, err)
	assert.Equal(t, core.BookingTimeBased, bt)
}

func TestValidatePastStart(t *testing.T) {
	e := newEvaluator()
	now := at(16, 30)

	_, err := e.Validate(courts(), at(16, 0), at(17, 0), core.UserIndividual, now)
	require.Error(t, err)
	assert.Equal(t, core.KindBadRequest, core.KindOf(err))
}

func TestValidateHorizon(t *testing.T) {
	e := newEvaluator()
	now := at(10, 0)

	// 8 days out is beyond the individual horizon.
	start := now.AddDate(0, 0, 8)
	_, err := e.Validate(courts(), start, start.Add(time.Hour), core.UserIndividual, now)
	require.Error(t, err)
	assert.Equal(t, core.KindForbidden, core.KindOf(err))

	// The same date is fine for a club.
	_, err = e.Validate(courts(), start, start.Add(time.Hour), core.UserClub, now)
	assert.NoError(t, err)

	// 31 days out exceeds even the club horizon.
	start = now.AddDate(0, 0, 31)
	_, err = e.Validate(courts(), start, start.Add(time.Hour), core.UserClub, now)
	require.Error(t, err)
	assert.Equal(t, core.KindForbidden, core.KindOf(err))
}

func TestValidateEndBeforeStart(t *testing.T) {
	e := newEvaluator()
	now := at(10, 0)

	_, err := e.Validate(courts(), at(16, 0), at(16, 0), core.UserIndividual, now)
	require.Error(t, err)
	assert.Equal(t, core.KindBadRequest, core.KindOf(err))
}

func TestValidateFullDayClassification(t *testing.T) {
	e := newEvaluator()
	now := at(1, 0)
	f := courts()

	// Exactly eight hours classifies as full day; clubs only.
	bt, err := e.Validate(f, at(8, 0), at(16, 0), core.UserClub, now)
	require.NoError(t, err)
	assert.Equal(t, core.BookingFullDay, bt)

	_, err = e.Validate(f, at(8, 0), at(16, 0), core.UserIndividual, now)
	require.Error(t, err)
	assert.Equal(t, core.KindForbidden, core.KindOf(err))

	// One minute under eight hours stays time based (but exceeds max duration here).
	_, err = e.Validate(f, at(8, 0), at(15, 59), core.UserIndividual, now)
	require.Error(t, err)
	assert.Equal(t, core.KindBadRequest, core.KindOf(err))
}

func TestValidateOperatingHours(t *testing.T) {
	e := newEvaluator()
	now := at(1, 0)

	_, err := e.Validate(courts(), at(6, 0), at(7, 0), core.UserIndividual, now)
	require.Error(t, err)
	assert.Equal(t, core.KindForbidden, core.KindOf(err))

	_, err = e.Validate(courts(), at(22, 30), at(23, 0), core.UserIndividual, now)
	assert.NoError(t, err)
}

func TestValidateDurationBounds(t *testing.T) {
	e := newEvaluator()
	now := at(1, 0)

	_, err := e.Validate(courts(), at(10, 0), at(12, 30), core.UserIndividual, now)
	require.Error(t, err)
	assert.Equal(t, core.KindBadRequest, core.KindOf(err))
}

func TestFullDayWindow(t *testing.T) {
	e := newEvaluator()
	open, closeAt, err := e.FullDayWindow(courts(), at(13, 37))
	require.NoError(t, err)
	assert.True(t, at(7, 0).Equal(open))
	assert.True(t, at(23, 0).Equal(closeAt))
}

func TestDayBounds(t *testing.T) {
	start, end := DayBounds(at(13, 37))
	assert.True(t, at(0, 0).Equal(start))
	assert.True(t, at(0, 0).AddDate(0, 0, 1).Equal(end))
}

func TestParseClock(t *testing.T) {
	min, err := ParseClock("07:30")
	require.NoError(t, err)
	assert.Equal(t, 450, min)

	min, err = ParseClock("23:00:00")
	require.NoError(t, err)
	assert.Equal(t, 1380, min)

	_, err = ParseClock("25:00")
	assert.Error(t, err)
	_, err = ParseClock("nope")
	assert.Error(t, err)
}
