// Package core holds the domain model shared by the booking service, the
// store and the projectors.
package core

import "time"

// UserType distinguishes individual bookers from registered clubs.
type UserType string

const (
	UserIndividual UserType = "individual"
	UserClub       UserType = "club"
)

// Valid reports whether the user type is one of the known values.
func (u UserType) Valid() bool {
	return u == UserIndividual || u == UserClub
}

// BookingType classifies a booking as a per-slot session or a whole-day claim.
type BookingType string

const (
	BookingTimeBased BookingType = "time_based"
	BookingFullDay   BookingType = "full_day"
)

// BookingStatus is the lifecycle state of a booking.
type BookingStatus string

const (
	StatusScheduled BookingStatus = "scheduled"
	StatusCheckedIn BookingStatus = "checked_in"
	StatusCompleted BookingStatus = "completed"
	StatusReleased  BookingStatus = "released"
)

// Active reports whether the status still holds capacity. Only scheduled and
// checked-in bookings block other claims.
func (s BookingStatus) Active() bool {
	return s == StatusScheduled || s == StatusCheckedIn
}

// CategoryEventSpace is the facility category visible only to clubs.
const CategoryEventSpace = "Event Space"

// Facility is the static description of a bookable resource class.
type Facility struct {
	ID                 int64     `json:"id"`
	Name               string    `json:"name"`
	Category           string    `json:"category"`
	Description        string    `json:"description"`
	TotalCapacity      int       `json:"total_capacity"`
	IsPooled           bool      `json:"is_pooled"`
	MinDurationMinutes int       `json:"min_duration_minutes"`
	MaxDurationMinutes int       `json:"max_duration_minutes"`
	OpenTime           string    `json:"open_time"`  // "HH:MM" wall-clock time of day
	CloseTime          string    `json:"close_time"` // "HH:MM" wall-clock time of day
	Timezone           string    `json:"timezone"`   // advisory label
	CreatedAt          time.Time `json:"created_at"`
}

// FacilityUnit is a sub-unit of a non-pooled facility, e.g. one court.
type FacilityUnit struct {
	ID            int64     `json:"id"`
	FacilityID    int64     `json:"facility_id"`
	UnitName      string    `json:"unit_name"`
	IsOperational bool      `json:"is_operational"`
	CreatedAt     time.Time `json:"created_at"`
}

// Booking is a time-bound exclusive claim on a facility or one of its units.
type Booking struct {
	ID             int64         `json:"id"`
	FacilityID     int64         `json:"facility_id"`
	UnitID         *int64        `json:"unit_id"` // nil iff the owning facility is pooled
	BookedBy       string        `json:"booked_by"`
	UserType       UserType      `json:"user_type"`
	ClubName       *string       `json:"club_name,omitempty"`
	BookingType    BookingType   `json:"booking_type"`
	StartsAt       time.Time     `json:"starts_at"`
	EndsAt         time.Time     `json:"ends_at"`
	Status         BookingStatus `json:"status"`
	IdempotencyKey string        `json:"idempotency_key"`
	CreatedAt      time.Time     `json:"created_at"`
}

// Overlaps reports whether the booking's half-open interval intersects
// [start, end).
func (b Booking) Overlaps(start, end time.Time) bool {
	return b.StartsAt.Before(end) && b.EndsAt.After(start)
}
