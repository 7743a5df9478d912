package store

import (
	"context"
	"encoding/json"
	"time"

	"github.com/Tanmay2302/CampusSpot/internal/core"
)

// OccupantView is one active claim in the availability projection.
type OccupantView struct {
	BookingID   int64              `json:"booking_id"`
	BookedBy    string             `json:"booked_by"`
	UserType    core.UserType      `json:"user_type"`
	ClubName    *string            `json:"club_name"`
	UnitID      *int64             `json:"unit_id"`
	UnitName    *string            `json:"unit_name"`
	StartsAt    time.Time          `json:"starts_at"`
	EndsAt      time.Time          `json:"ends_at"`
	Status      core.BookingStatus `json:"status"`
	BookingType core.BookingType   `json:"booking_type"`
}

// MyBookingView is the caller's current or next active booking at a facility.
type MyBookingView struct {
	ID          int64              `json:"id"`
	UnitID      *int64             `json:"unit_id"`
	UnitName    *string            `json:"unit_name"`
	BookingType core.BookingType   `json:"booking_type"`
	StartsAt    time.Time          `json:"starts_at"`
	EndsAt      time.Time          `json:"ends_at"`
	Status      core.BookingStatus `json:"status"`
}

// FacilityAvailability is one row of the dashboard projection.
type FacilityAvailability struct {
	core.Facility
	CurrentUsage      int            `json:"current_usage"`
	AvailableCapacity int            `json:"available_capacity"`
	CurrentStatus     string         `json:"current_status"`
	MyActiveBooking   *MyBookingView `json:"my_active_booking"`
	ActiveOccupants   []OccupantView `json:"active_occupants"`
}

// AllAssets builds the availability projection for every facility visible to
// the caller in one statement. Usage counts distinct units for unit
// facilities and distinct bookings for pooled ones, evaluated at the instant
// now. Event Space facilities are hidden from individuals.
func (s *Store) AllAssets(ctx context.Context, now time.Time, callerName string, callerType core.UserType) ([]FacilityAvailability, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT f.id, f.name, f.category, f.description, f.total_capacity, f.is_pooled,
		       f.min_duration_minutes, f.max_duration_minutes,
		       to_char(f.open_time, 'HH24:MI'), to_char(f.close_time, 'HH24:MI'),
		       f.timezone, f.created_at,
		       (SELECT COUNT(DISTINCT COALESCE(b.unit_id, b.id))::int
		          FROM bookings b
		         WHERE b.facility_id = f.id
		           AND b.status IN ('scheduled','checked_in')
		           AND b.starts_at <= $1 AND b.ends_at > $1) AS current_usage,
		       (SELECT row_to_json(mb) FROM (
		            SELECT b.id, b.unit_id, fu.unit_name, b.booking_type,
		                   b.starts_at, b.ends_at, b.status
		              FROM bookings b
		              LEFT JOIN facility_units fu ON fu.id = b.unit_id
		             WHERE b.facility_id = f.id
		               AND b.booked_by = $2
		               AND b.status IN ('scheduled','checked_in')
		               AND b.ends_at > $1
		             ORDER BY b.starts_at
		             LIMIT 1) mb) AS my_active_booking,
		       (SELECT json_agg(occ ORDER BY occ.starts_at) FROM (
		            SELECT b.id AS booking_id, b.booked_by, b.user_type, b.club_name,
		                   b.unit_id, fu.unit_name, b.starts_at, b.ends_at,
		                   b.status, b.booking_type
		              FROM bookings b
		              LEFT JOIN facility_units fu ON fu.id = b.unit_id
		             WHERE b.facility_id = f.id
		               AND b.status IN ('scheduled','checked_in')
		               AND b.starts_at <= $1 AND b.ends_at > $1) occ) AS active_occupants
		FROM facilities f
		WHERE $3 = 'club' OR f.category <> $4
		ORDER BY f.category, f.name`,
		now, callerName, string(callerType), core.CategoryEventSpace)
	if err != nil {
		return nil, core.Internal(err, "query availability")
	}
	defer rows.Close()

	out := make([]FacilityAvailability, 0, 8)
	for rows.Next() {
		var (
			fa           FacilityAvailability
			myJSON, occJ []byte
		)
		if err := rows.Scan(&fa.ID, &fa.Name, &fa.Category, &fa.Description,
			&fa.TotalCapacity, &fa.IsPooled, &fa.MinDurationMinutes,
			&fa.MaxDurationMinutes, &fa.OpenTime, &fa.CloseTime, &fa.Timezone,
			&fa.CreatedAt, &fa.CurrentUsage, &myJSON, &occJ); err != nil {
			return nil, core.Internal(err, "scan availability row")
		}
		if myJSON != nil {
			fa.MyActiveBooking = &MyBookingView{}
			if err := json.Unmarshal(myJSON, fa.MyActiveBooking); err != nil {
				return nil, core.Internal(err, "decode my_active_booking")
			}
		}
		fa.ActiveOccupants = []OccupantView{}
		if occJ != nil {
			if err := json.Unmarshal(occJ, &fa.ActiveOccupants); err != nil {
				return nil, core.Internal(err, "decode active_occupants")
			}
		}
		fa.AvailableCapacity, fa.CurrentStatus = availabilityStatus(fa.TotalCapacity, fa.CurrentUsage)
		out = append(out, fa)
	}
	if err := rows.Err(); err != nil {
		return nil, core.Internal(err, "iterate availability rows")
	}
	return out, nil
}

// availabilityStatus derives the remaining capacity and the status label of
// the dashboard row: "in_use" once capacity is exhausted, "available"
// otherwise.
func availabilityStatus(total, usage int) (int, string) {
	remaining := total - usage
	if remaining < 0 {
		remaining = 0
	}
	if remaining == 0 {
		return 0, "in_use"
	}
	return remaining, "available"
}

// SlotView is one booked window in the day schedule.
type SlotView struct {
	BookingID   int64              `json:"booking_id"`
	BookedBy    string             `json:"booked_by"`
	UserType    core.UserType      `json:"user_type"`
	ClubName    *string            `json:"club_name"`
	BookingType core.BookingType   `json:"booking_type"`
	StartsAt    time.Time          `json:"starts_at"`
	EndsAt      time.Time          `json:"ends_at"`
	Status      core.BookingStatus `json:"status"`
}

// UnitSchedule is one operational unit with its active bookings on the day.
type UnitSchedule struct {
	UnitID   int64      `json:"unit_id"`
	UnitName string     `json:"unit_name"`
	Bookings []SlotView `json:"bookings"`
}

// ScheduleView is the per-day schedule of one facility.
type ScheduleView struct {
	FacilityID     int64          `json:"facility_id"`
	FacilityName   string         `json:"facility_name"`
	Date           string         `json:"date"`
	IsPooled       bool           `json:"is_pooled"`
	Units          []UnitSchedule `json:"units"`
	PooledBookings []SlotView     `json:"pooled_bookings"`
}

// FacilityByID returns the facility without locking, or nil if absent.
func (s *Store) FacilityByID(ctx context.Context, id int64) (*core.Facility, error) {
	return scanFacility(s.pool.QueryRow(ctx,
		`SELECT `+facilityColumns+` FROM facilities WHERE id = $1`, id))
}

// ScheduleForDate projects the facility's active bookings onto the civil day
// [dayStart, dayEnd). Non-operational units are omitted. Pooled facilities
// have no units; their bookings land in PooledBookings.
func (s *Store) ScheduleForDate(ctx context.Context, f *core.Facility, dayStart, dayEnd time.Time) (*ScheduleView, error) {
	view := &ScheduleView{
		FacilityID:     f.ID,
		FacilityName:   f.Name,
		Date:           dayStart.Format("2006-01-02"),
		IsPooled:       f.IsPooled,
		Units:          []UnitSchedule{},
		PooledBookings: []SlotView{},
	}

	if f.IsPooled {
		slots, err := s.slotsInWindow(ctx, `b.facility_id = $1 AND b.unit_id IS NULL`, f.ID, dayStart, dayEnd)
		if err != nil {
			return nil, err
		}
		view.PooledBookings = slots
		return view, nil
	}

	rows, err := s.pool.Query(ctx, `
		SELECT fu.id, fu.unit_name,
		       COALESCE((SELECT json_agg(bk ORDER BY bk.starts_at) FROM (
		            SELECT b.id AS booking_id, b.booked_by, b.user_type, b.club_name,
		                   b.booking_type, b.starts_at, b.ends_at, b.status
		              FROM bookings b
		             WHERE b.unit_id = fu.id
		               AND b.status IN ('scheduled','checked_in')
		               AND b.starts_at < $3 AND b.ends_at > $2) bk), '[]'::json)
		FROM facility_units fu
		WHERE fu.facility_id = $1 AND fu.is_operational
		ORDER BY fu.unit_name`,
		f.ID, dayStart, dayEnd)
	if err != nil {
		return nil, core.Internal(err, "query schedule")
	}
	defer rows.Close()

	for rows.Next() {
		var (
			us  UnitSchedule
			raw []byte
		)
		if err := rows.Scan(&us.UnitID, &us.UnitName, &raw); err != nil {
			return nil, core.Internal(err, "scan schedule row")
		}
		us.Bookings = []SlotView{}
		if err := json.Unmarshal(raw, &us.Bookings); err != nil {
			return nil, core.Internal(err, "decode unit bookings")
		}
		view.Units = append(view.Units, us)
	}
	if err := rows.Err(); err != nil {
		return nil, core.Internal(err, "iterate schedule rows")
	}
	return view, nil
}

// slotsInWindow returns active bookings matching cond inside [start, end).
func (s *Store) slotsInWindow(ctx context.Context, cond string, id int64, start, end time.Time) ([]SlotView, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT b.id, b.booked_by, b.user_type, b.club_name, b.booking_type,
		       b.starts_at, b.ends_at, b.status
		FROM bookings b
		WHERE `+cond+`
		  AND b.status IN ('scheduled','checked_in')
		  AND b.starts_at < $3 AND b.ends_at > $2
		ORDER BY b.starts_at`,
		id, start, end)
	if err != nil {
		return nil, core.Internal(err, "query slots")
	}
	defer rows.Close()

	out := []SlotView{}
	for rows.Next() {
		var sv SlotView
		if err := rows.Scan(&sv.BookingID, &sv.BookedBy, &sv.UserType, &sv.ClubName,
			&sv.BookingType, &sv.StartsAt, &sv.EndsAt, &sv.Status); err != nil {
			return nil, core.Internal(err, "scan slot row")
		}
		out = append(out, sv)
	}
	if err := rows.Err(); err != nil {
		return nil, core.Internal(err, "iterate slot rows")
	}
	return out, nil
}

// UnitView is one row of the facility units listing.
type UnitView struct {
	ID            int64  `json:"id"`
	UnitName      string `json:"unit_name"`
	IsOperational bool   `json:"is_operational"`
}

// UnitsForFacility lists all units of a facility, operational or not.
func (s *Store) UnitsForFacility(ctx context.Context, facilityID int64) ([]UnitView, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, unit_name, is_operational
		FROM facility_units
		WHERE facility_id = $1
		ORDER BY unit_name`, facilityID)
	if err != nil {
		return nil, core.Internal(err, "query units")
	}
	defer rows.Close()

	out := []UnitView{}
	for rows.Next() {
		var u UnitView
		if err := rows.Scan(&u.ID, &u.UnitName, &u.IsOperational); err != nil {
			return nil, core.Internal(err, "scan unit row")
		}
		out = append(out, u)
	}
	if err := rows.Err(); err != nil {
		return nil, core.Internal(err, "iterate unit rows")
	}
	return out, nil
}

// UserBookingView is one row of the per-user booking history.
type UserBookingView struct {
	core.Booking
	FacilityName string  `json:"facility_name"`
	UnitName     *string `json:"unit_name,omitempty"`
}

// UserBookings returns the user's bookings, newest start first, with the
// facility and unit names joined in.
func (s *Store) UserBookings(ctx context.Context, userName string) ([]UserBookingView, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT b.id, b.facility_id, b.unit_id, b.booked_by, b.user_type, b.club_name,
		       b.booking_type, b.starts_at, b.ends_at, b.status, b.idempotency_key,
		       b.created_at, f.name, fu.unit_name
		FROM bookings b
		JOIN facilities f ON f.id = b.facility_id
		LEFT JOIN facility_units fu ON fu.id = b.unit_id
		WHERE b.booked_by = $1
		ORDER BY b.starts_at DESC, b.id DESC
		LIMIT 200`, userName)
	if err != nil {
		return nil, core.Internal(err, "query user bookings")
	}
	defer rows.Close()

	out := []UserBookingView{}
	for rows.Next() {
		var v UserBookingView
		if err := rows.Scan(&v.ID, &v.FacilityID, &v.UnitID, &v.BookedBy, &v.UserType,
			&v.ClubName, &v.BookingType, &v.StartsAt, &v.EndsAt, &v.Status,
			&v.IdempotencyKey, &v.CreatedAt, &v.FacilityName, &v.UnitName); err != nil {
			return nil, core.Internal(err, "scan user booking row")
		}
		out = append(out, v)
	}
	if err := rows.Err(); err != nil {
		return nil, core.Internal(err, "iterate user booking rows")
	}
	return out, nil
}
