package booking

import (
	"context"
	"errors"
	"time"

	"github.com/Tanmay2302/CampusSpot/internal/core"
)

// ErrDuplicateIdempotencyKey is returned by Tx.InsertBooking when the unique
// active-idempotency index rejects the row. The service remaps it to a
// Conflict "duplicate submission".
var ErrDuplicateIdempotencyKey = errors.New("active booking with this idempotency key already exists")

// Tx is the transactional store surface the booking service drives. Every
// method runs inside the surrounding transaction; the ForUpdate variants take
// row locks that are held until commit or rollback.
//
// Lock ordering is part of the contract: callers lock the facility row first,
// then unit rows, then booking rows. The store only executes what it is told.
type Tx interface {
	// FacilityForUpdate locks and returns the facility, or nil if absent.
	FacilityForUpdate(ctx context.Context, id int64) (*core.Facility, error)

	// UnitForUpdate locks and returns the unit, or nil if absent.
	UnitForUpdate(ctx context.Context, id int64) (*core.FacilityUnit, error)

	// BookingByID returns the booking without locking it, or nil if absent.
	BookingByID(ctx context.Context, id int64) (*core.Booking, error)

	// BookingForUpdate locks and returns the booking, or nil if absent.
	BookingForUpdate(ctx context.Context, id int64) (*core.Booking, error)

	// ActiveOverlapping returns active bookings on the facility whose
	// half-open interval intersects [start, end). When unitID is non-nil the
	// scope narrows to that unit.
	ActiveOverlapping(ctx context.Context, facilityID int64, unitID *int64, start, end time.Time) ([]core.Booking, error)

	// ActiveUserOverlapping returns the user's active bookings intersecting
	// [start, end), across all facilities.
	ActiveUserOverlapping(ctx context.Context, userName string, start, end time.Time) ([]core.Booking, error)

	// InsertBooking persists b and fills ID and CreatedAt. A violation of the
	// active-idempotency unique index surfaces as ErrDuplicateIdempotencyKey.
	InsertBooking(ctx context.Context, b *core.Booking) error

	// SetBookingStatus rewrites the booking status.
	SetBookingStatus(ctx context.Context, id int64, status core.BookingStatus) error

	// CompleteBooking marks the booking completed and rewrites its end time.
	CompleteBooking(ctx context.Context, id int64, endsAt time.Time) error
}

// Store opens transactions against the backing database. fn runs inside one
// transaction; any error rolls back, otherwise the transaction commits.
type Store interface {
	WithTx(ctx context.Context, fn func(tx Tx) error) error
}

// Broadcaster receives the coarse state-changed signal after committed
// mutations. Implementations must not block the caller.
type Broadcaster interface {
	StateChanged()
}
