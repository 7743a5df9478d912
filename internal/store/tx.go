package store

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/Tanmay2302/CampusSpot/internal/booking"
	"github.com/Tanmay2302/CampusSpot/internal/core"
)

// Tx wraps one open pgx transaction. Its method set satisfies the store
// surfaces of the booking service and the reconciler.
type Tx struct {
	tx pgx.Tx
}

const facilityColumns = `id, name, category, description, total_capacity, is_pooled,
	min_duration_minutes, max_duration_minutes,
	to_char(open_time, 'HH24:MI'), to_char(close_time, 'HH24:MI'), timezone, created_at`

const bookingColumns = `id, facility_id, unit_id, booked_by, user_type, club_name,
	booking_type, starts_at, ends_at, status, idempotency_key, created_at`

func scanFacility(row pgx.Row) (*core.Facility, error) {
	var f core.Facility
	err := row.Scan(&f.ID, &f.Name, &f.Category, &f.Description, &f.TotalCapacity,
		&f.IsPooled, &f.MinDurationMinutes, &f.MaxDurationMinutes,
		&f.OpenTime, &f.CloseTime, &f.Timezone, &f.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, core.Internal(err, "scan facility")
	}
	return &f, nil
}

func scanBooking(row pgx.Row) (*core.Booking, error) {
	var b core.Booking
	err := row.Scan(&b.ID, &b.FacilityID, &b.UnitID, &b.BookedBy, &b.UserType,
		&b.ClubName, &b.BookingType, &b.StartsAt, &b.EndsAt, &b.Status,
		&b.IdempotencyKey, &b.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, core.Internal(err, "scan booking")
	}
	return &b, nil
}

func collectBookings(rows pgx.Rows, err error) ([]core.Booking, error) {
	if err != nil {
		return nil, core.Internal(err, "query bookings")
	}
	defer rows.Close()

	var out []core.Booking
	for rows.Next() {
		var b core.Booking
		if err := rows.Scan(&b.ID, &b.FacilityID, &b.UnitID, &b.BookedBy, &b.UserType,
			&b.ClubName, &b.BookingType, &b.StartsAt, &b.EndsAt, &b.Status,
			&b.IdempotencyKey, &b.CreatedAt); err != nil {
			return nil, core.Internal(err, "scan booking row")
		}
		out = append(out, b)
	}
	if err := rows.Err(); err != nil {
		return nil, core.Internal(err, "iterate booking rows")
	}
	return out, nil
}

// FacilityForUpdate locks the facility row for the remainder of the
// transaction. Concurrent requests against the same facility serialize here.
func (t *Tx) FacilityForUpdate(ctx context.Context, id int64) (*core.Facility, error) {
	return scanFacility(t.tx.QueryRow(ctx,
		`SELECT `+facilityColumns+` FROM facilities WHERE id = $1 FOR UPDATE`, id))
}

// UnitForUpdate locks the unit row. Always called after the owning facility
// row is held, preserving the facility -> unit -> booking lock order.
func (t *Tx) UnitForUpdate(ctx context.Context, id int64) (*core.FacilityUnit, error) {
	var u core.FacilityUnit
	err := t.tx.QueryRow(ctx,
		`SELECT id, facility_id, unit_name, is_operational, created_at
		 FROM facility_units WHERE id = $1 FOR UPDATE`, id).
		Scan(&u.ID, &u.FacilityID, &u.UnitName, &u.IsOperational, &u.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, core.Internal(err, "scan facility unit")
	}
	return &u, nil
}

func (t *Tx) BookingByID(ctx context.Context, id int64) (*core.Booking, error) {
	return scanBooking(t.tx.QueryRow(ctx,
		`SELECT `+bookingColumns+` FROM bookings WHERE id = $1`, id))
}

func (t *Tx) BookingForUpdate(ctx context.Context, id int64) (*core.Booking, error) {
	return scanBooking(t.tx.QueryRow(ctx,
		`SELECT `+bookingColumns+` FROM bookings WHERE id = $1 FOR UPDATE`, id))
}

// ActiveOverlapping returns active bookings on the facility intersecting the
// half-open window [start, end). A non-nil unitID narrows the scan to one
// unit.
func (t *Tx) ActiveOverlapping(ctx context.Context, facilityID int64, unitID *int64, start, end time.Time) ([]core.Booking, error) {
	return collectBookings(t.tx.Query(ctx,
		`SELECT `+bookingColumns+` FROM bookings
		 WHERE facility_id = $1
		   AND ($2::bigint IS NULL OR unit_id = $2)
		   AND status IN ('scheduled','checked_in')
		   AND starts_at < $4 AND ends_at > $3
		 ORDER BY starts_at, id`,
		facilityID, unitID, start, end))
}

// ActiveUserOverlapping returns the user's active bookings intersecting
// [start, end) across every facility.
func (t *Tx) ActiveUserOverlapping(ctx context.Context, userName string, start, end time.Time) ([]core.Booking, error) {
	return collectBookings(t.tx.Query(ctx,
		`SELECT `+bookingColumns+` FROM bookings
		 WHERE booked_by = $1
		   AND status IN ('scheduled','checked_in')
		   AND starts_at < $3 AND ends_at > $2
		 ORDER BY starts_at, id`,
		userName, start, end))
}

// InsertBooking persists b and fills its ID and CreatedAt. A collision on the
// active-idempotency unique index surfaces as ErrDuplicateIdempotencyKey.
func (t *Tx) InsertBooking(ctx context.Context, b *core.Booking) error {
	err := t.tx.QueryRow(ctx,
		`INSERT INTO bookings
			(facility_id, unit_id, booked_by, user_type, club_name,
			 booking_type, starts_at, ends_at, status, idempotency_key)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		 RETURNING id, created_at`,
		b.FacilityID, b.UnitID, b.BookedBy, b.UserType, b.ClubName,
		b.BookingType, b.StartsAt, b.EndsAt, b.Status, b.IdempotencyKey).
		Scan(&b.ID, &b.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return booking.ErrDuplicateIdempotencyKey
		}
		return core.Internal(err, "insert booking")
	}
	return nil
}

func (t *Tx) SetBookingStatus(ctx context.Context, id int64, status core.BookingStatus) error {
	if _, err := t.tx.Exec(ctx,
		`UPDATE bookings SET status = $2 WHERE id = $1`, id, status); err != nil {
		return core.Internal(err, "update booking status")
	}
	return nil
}

// CompleteBooking closes the booking and rewrites its end time, releasing the
// remainder of the window.
func (t *Tx) CompleteBooking(ctx context.Context, id int64, endsAt time.Time) error {
	if _, err := t.tx.Exec(ctx,
		`UPDATE bookings SET status = 'completed', ends_at = $2 WHERE id = $1`,
		id, endsAt); err != nil {
		return core.Internal(err, "complete booking")
	}
	return nil
}
