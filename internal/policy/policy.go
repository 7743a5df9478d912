// Package policy implements the pure booking policy evaluator: slot snapping,
// temporal validation, booking classification and idempotency key derivation.
// It never touches the store.
package policy

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/Tanmay2302/CampusSpot/internal/core"
)

// FullDayThreshold is the duration at or above which a booking is classified
// as a whole-day claim.
const FullDayThreshold = 8 * time.Hour

// Evaluator validates booking requests against facility policy. All inputs
// arrive as arguments; the evaluator holds only configuration.
type Evaluator struct {
	SlotSize               time.Duration
	MaxBookingHorizonDays  int
	ClubBookingHorizonDays int
}

// SnapToSlot rounds t to the nearest slot boundary. Seconds and sub-seconds
// are zeroed first; ties round half up on minutes.
func (e Evaluator) SnapToSlot(t time.Time) time.Time {
	t = t.Truncate(time.Minute)
	floor := t.Truncate(e.SlotSize)
	if rem := t.Sub(floor); rem*2 >= e.SlotSize {
		return floor.Add(e.SlotSize)
	}
	return floor
}

// SnapToNextBoundary returns the smallest slot boundary strictly greater
// than t. A t already on a boundary jumps to the next one.
func (e Evaluator) SnapToNextBoundary(t time.Time) time.Time {
	t = t.Truncate(time.Minute).Add(time.Minute)
	floor := t.Truncate(e.SlotSize)
	if floor.Equal(t) {
		return t
	}
	return floor.Add(e.SlotSize)
}

// IdempotencyKey derives the deterministic duplicate-submission key from the
// caller identity and the snapped start instant.
func (e Evaluator) IdempotencyKey(identity string, startsAt time.Time) string {
	return fmt.Sprintf("%s_%d", identity, startsAt.UnixMilli())
}

// horizonDays returns the advance-booking horizon for the user type.
func (e Evaluator) horizonDays(userType core.UserType) int {
	if userType == core.UserClub && e.ClubBookingHorizonDays > 0 {
		return e.ClubBookingHorizonDays
	}
	return e.MaxBookingHorizonDays
}

// Validate applies the temporal policy rules in order and classifies the
// booking. Endpoints must already be snapped to slot boundaries.
func (e Evaluator) Validate(f *core.Facility, start, end time.Time, userType core.UserType, now time.Time) (core.BookingType, error) {
	if start.Before(now) {
		return "", core.BadRequest("booking cannot start in the past")
	}
	horizon := e.horizonDays(userType)
	if start.After(now.AddDate(0, 0, horizon)) {
		return "", core.Forbidden("booking is more than %d days in advance", horizon)
	}
	if !end.After(start) {
		return "", core.BadRequest("end time must be after start time")
	}

	duration := end.Sub(start)
	if duration >= FullDayThreshold {
		if userType != core.UserClub {
			return "", core.Forbidden("full-day bookings are reserved for clubs")
		}
		return core.BookingFullDay, nil
	}

	if err := e.checkOperatingHours(f, start, end); err != nil {
		return "", err
	}

	minutes := int(duration / time.Minute)
	if minutes < f.MinDurationMinutes {
		return "", core.BadRequest("duration %d min is below the %d min minimum", minutes, f.MinDurationMinutes)
	}
	if minutes > f.MaxDurationMinutes {
		return "", core.BadRequest("duration %d min exceeds the %d min maximum", minutes, f.MaxDurationMinutes)
	}
	return core.BookingTimeBased, nil
}

// checkOperatingHours verifies that the time-of-day components of the window
// lie within the facility's open hours. The facility timezone is advisory;
// comparison happens on the instants' own wall clock.
func (e Evaluator) checkOperatingHours(f *core.Facility, start, end time.Time) error {
	open, err := ParseClock(f.OpenTime)
	if err != nil {
		return core.Internal(err, "facility %d has a malformed open_time", f.ID)
	}
	closeAt, err := ParseClock(f.CloseTime)
	if err != nil {
		return core.Internal(err, "facility %d has a malformed close_time", f.ID)
	}

	startMin := start.Hour()*60 + start.Minute()
	endMin := end.Hour()*60 + end.Minute()
	if endMin == 0 && end.After(start) {
		endMin = 24 * 60 // window ends exactly at midnight
	}
	if startMin < open || endMin > closeAt || endMin < startMin {
		return core.Forbidden("facility is open %s to %s", f.OpenTime, f.CloseTime)
	}
	return nil
}

// FullDayWindow returns the open/close instants of the facility on the civil
// date of t, used to rewrite club whole-day requests before validation.
func (e Evaluator) FullDayWindow(f *core.Facility, t time.Time) (time.Time, time.Time, error) {
	open, err := ParseClock(f.OpenTime)
	if err != nil {
		return time.Time{}, time.Time{}, core.Internal(err, "facility %d has a malformed open_time", f.ID)
	}
	closeAt, err := ParseClock(f.CloseTime)
	if err != nil {
		return time.Time{}, time.Time{}, core.Internal(err, "facility %d has a malformed close_time", f.ID)
	}
	day := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
	return day.Add(time.Duration(open) * time.Minute), day.Add(time.Duration(closeAt) * time.Minute), nil
}

// DayBounds returns [00:00, 24:00) of the civil date of t.
func DayBounds(t time.Time) (time.Time, time.Time) {
	start := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
	return start, start.AddDate(0, 0, 1)
}

// ParseClock parses a "HH:MM" wall-clock label into minutes past midnight.
func ParseClock(s string) (int, error) {
	parts := strings.SplitN(s, ":", 3)
	if len(parts) < 2 {
		return 0, fmt.Errorf("malformed clock value %q", s)
	}
	h, err := strconv.Atoi(parts[0])
	if err != nil {
		return 0, fmt.Errorf("malformed clock value %q", s)
	}
	m, err := strconv.Atoi(parts[1])
	if err != nil {
		return 0, fmt.Errorf("malformed clock value %q", s)
	}
	if h < 0 || h > 24 || m < 0 || m > 59 {
		return 0, fmt.Errorf("clock value %q out of range", s)
	}
	return h*60 + m, nil
}
