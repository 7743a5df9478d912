// Package booking implements the transactional booking coordination engine:
// reservation creation under concurrency and the four-state lifecycle
// (scheduled, checked_in, completed, released).
package booking

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"github.com/Tanmay2302/CampusSpot/internal/config"
	"github.com/Tanmay2302/CampusSpot/internal/core"
	"github.com/Tanmay2302/CampusSpot/internal/log"
	"github.com/Tanmay2302/CampusSpot/internal/metrics"
	"github.com/Tanmay2302/CampusSpot/internal/policy"
)

// Service orchestrates booking mutations. All collaborators are injected;
// there is no module-scope state.
type Service struct {
	store     Store
	clock     core.Clock
	policy    policy.Evaluator
	cfg       config.Config
	broadcast Broadcaster
	logger    zerolog.Logger
}

// NewService builds a booking service from its collaborators.
func NewService(store Store, clock core.Clock, cfg config.Config, broadcast Broadcaster) *Service {
	return &Service{
		store: store,
		clock: clock,
		policy: policy.Evaluator{
			SlotSize:               cfg.SlotSize,
			MaxBookingHorizonDays:  cfg.MaxBookingHorizonDays,
			ClubBookingHorizonDays: cfg.ClubBookingHorizonDays,
		},
		cfg:       cfg,
		broadcast: broadcast,
		logger:    log.WithComponent("booking"),
	}
}

// CreateRequest carries a reservation attempt. Identity is a trusted string
// asserted by the caller.
type CreateRequest struct {
	FacilityID int64
	UnitID     *int64
	UserName   string
	UserType   core.UserType
	ClubName   *string
	StartsAt   time.Time
	EndsAt     time.Time
}

// Create drives the transactional reservation algorithm. The facility row is
// locked first, then the unit row; that global order linearizes contention on
// a facility and prevents deadlocks between concurrent requests.
func (s *Service) Create(ctx context.Context, req CreateRequest) (*core.Booking, error) {
	if req.UserName == "" {
		return nil, core.BadRequest("userName is required")
	}
	if !req.UserType.Valid() {
		return nil, core.BadRequest("userType must be individual or club")
	}
	if req.StartsAt.IsZero() || req.EndsAt.IsZero() {
		return nil, core.BadRequest("startsAt and endsAt are required")
	}

	now := s.clock.Now().UTC()
	start := s.policy.SnapToSlot(req.StartsAt.UTC())
	end := s.policy.SnapToSlot(req.EndsAt.UTC())

	var out *core.Booking
	err := s.store.WithTx(ctx, func(tx Tx) error {
		facility, err := tx.FacilityForUpdate(ctx, req.FacilityID)
		if err != nil {
			return err
		}
		if facility == nil {
			return core.NotFound("facility %d not found", req.FacilityID)
		}

		// A club asking for a whole day books the facility's full operating
		// window, regardless of the exact endpoints it sent. The rewrite
		// happens before validation so classification is deterministic.
		if req.UserType == core.UserClub && end.Sub(start) >= policy.FullDayThreshold {
			open, closeAt, err := s.policy.FullDayWindow(facility, start)
			if err != nil {
				return err
			}
			start, end = open, closeAt
			if start.Before(now) {
				// The day is already underway; claim the remainder.
				start = s.policy.SnapToNextBoundary(now)
			}
		}

		bookingType, err := s.policy.Validate(facility, start, end, req.UserType, now)
		if err != nil {
			return err
		}

		dayStart, dayEnd := policy.DayBounds(start)

		if bookingType == core.BookingTimeBased {
			if err := s.checkFullDayBlock(ctx, tx, facility.ID, dayStart, dayEnd); err != nil {
				return err
			}
		} else {
			if err := s.checkFullDayClaim(ctx, tx, facility, req.UnitID, dayStart, dayEnd); err != nil {
				return err
			}
		}

		if req.UserType == core.UserClub {
			if req.ClubName == nil || *req.ClubName == "" {
				return core.BadRequest("clubName is required for club bookings")
			}
			if !s.cfg.IsValidClub(*req.ClubName) {
				return core.BadRequest("%q is not a registered club", *req.ClubName)
			}
		}

		mine, err := tx.ActiveUserOverlapping(ctx, req.UserName, start, end)
		if err != nil {
			return err
		}
		if len(mine) > 0 {
			return core.Conflict("you already have a booking from %s to %s",
				mine[0].StartsAt.Format(time.RFC3339), mine[0].EndsAt.Format(time.RFC3339))
		}

		unitID, err := s.checkCapacity(ctx, tx, facility, req.UnitID, start, end)
		if err != nil {
			return err
		}

		b := &core.Booking{
			FacilityID:     facility.ID,
			UnitID:         unitID,
			BookedBy:       req.UserName,
			UserType:       req.UserType,
			ClubName:       req.ClubName,
			BookingType:    bookingType,
			StartsAt:       start,
			EndsAt:         end,
			Status:         core.StatusScheduled,
			IdempotencyKey: s.policy.IdempotencyKey(req.UserName, start),
		}
		if err := tx.InsertBooking(ctx, b); err != nil {
			if errors.Is(err, ErrDuplicateIdempotencyKey) {
				return core.Conflict("duplicate submission")
			}
			return err
		}
		out = b
		return nil
	})
	if err != nil {
		if core.KindOf(err) == core.KindConflict {
			metrics.BookingConflicts.Inc()
		}
		return nil, err
	}

	metrics.BookingsCreated.WithLabelValues(string(out.BookingType)).Inc()
	s.logger.Info().
		Int64(log.FieldBookingID, out.ID).
		Int64(log.FieldFacilityID, out.FacilityID).
		Str(log.FieldUser, out.BookedBy).
		Str("booking_type", string(out.BookingType)).
		Time(log.FieldStartsAt, out.StartsAt).
		Time(log.FieldEndsAt, out.EndsAt).
		Msg("booking created")
	s.broadcast.StateChanged()
	return out, nil
}

// checkFullDayBlock rejects a per-slot request when a whole-day claim already
// covers the facility on that civil date.
func (s *Service) checkFullDayBlock(ctx context.Context, tx Tx, facilityID int64, dayStart, dayEnd time.Time) error {
	existing, err := tx.ActiveOverlapping(ctx, facilityID, nil, dayStart, dayEnd)
	if err != nil {
		return err
	}
	for _, b := range existing {
		if b.BookingType == core.BookingFullDay {
			return core.ConflictWith(detailsOf(b), "the facility is reserved for the whole day by %s", holderName(b))
		}
	}
	return nil
}

// checkFullDayClaim verifies a whole-day claim has the facility (pooled) or
// the unit (non-pooled) entirely to itself for the civil date.
func (s *Service) checkFullDayClaim(ctx context.Context, tx Tx, facility *core.Facility, unitID *int64, dayStart, dayEnd time.Time) error {
	scope := unitID
	if facility.IsPooled {
		scope = nil
	} else if unitID == nil {
		return core.BadRequest("unitId is required for this facility")
	}
	existing, err := tx.ActiveOverlapping(ctx, facility.ID, scope, dayStart, dayEnd)
	if err != nil {
		return err
	}
	if len(existing) == 0 {
		return nil
	}
	for _, b := range existing {
		if b.BookingType == core.BookingFullDay {
			return core.ConflictWith(detailsOf(b), "the day is taken by %s", holderName(b))
		}
	}
	return core.ConflictWith(detailsOf(existing[0]), "there are per-slot bookings on this day")
}

// checkCapacity enforces pooled capacity or exclusive unit ownership for the
// window and returns the unit reference to persist (nil for pooled).
func (s *Service) checkCapacity(ctx context.Context, tx Tx, facility *core.Facility, unitID *int64, start, end time.Time) (*int64, error) {
	if facility.IsPooled {
		overlapping, err := tx.ActiveOverlapping(ctx, facility.ID, nil, start, end)
		if err != nil {
			return nil, err
		}
		if len(overlapping) >= facility.TotalCapacity {
			return nil, core.Conflict("facility is at capacity for this time")
		}
		return nil, nil
	}

	if unitID == nil {
		return nil, core.BadRequest("unitId is required for this facility")
	}
	unit, err := tx.UnitForUpdate(ctx, *unitID)
	if err != nil {
		return nil, err
	}
	if unit == nil || unit.FacilityID != facility.ID {
		return nil, core.BadRequest("unit %d does not belong to facility %d", *unitID, facility.ID)
	}
	if !unit.IsOperational {
		return nil, core.BadRequest("unit %q is not operational", unit.UnitName)
	}

	conflicts, err := tx.ActiveOverlapping(ctx, facility.ID, unitID, start, end)
	if err != nil {
		return nil, err
	}
	if len(conflicts) > 0 {
		incumbent := conflicts[0]
		details := detailsOf(incumbent)
		if facility.Category == core.CategoryEventSpace && incumbent.UserType == core.UserClub && incumbent.ClubName != nil {
			// Event Space conflicts surface the club, not the individual.
			details.BookedBy = *incumbent.ClubName
			return nil, core.ConflictWith(details, "the space is reserved by %s", *incumbent.ClubName)
		}
		return nil, core.ConflictWith(details, "unit is already booked for this time")
	}
	return unitID, nil
}

// CheckIn transitions scheduled to checked_in within the grace window
// [starts_at, starts_at + grace].
func (s *Service) CheckIn(ctx context.Context, bookingID int64, userName string) (*core.Booking, error) {
	now := s.clock.Now().UTC()
	return s.transition(ctx, bookingID, userName, core.StatusCheckedIn, func(b *core.Booking) error {
		if b.Status != core.StatusScheduled {
			return core.BadRequest("booking is %s, not scheduled", b.Status)
		}
		if now.Before(b.StartsAt) {
			return core.Forbidden("check-in opens at the booking start time")
		}
		if now.After(b.StartsAt.Add(s.cfg.NoShowGrace)) {
			return core.Forbidden("the check-in window has closed")
		}
		return nil
	}, nil)
}

// CheckOut transitions checked_in to completed and rounds the end time up to
// the next slot boundary after now.
func (s *Service) CheckOut(ctx context.Context, bookingID int64, userName string) (*core.Booking, error) {
	now := s.clock.Now().UTC()
	newEnd := s.policy.SnapToNextBoundary(now)
	return s.transition(ctx, bookingID, userName, core.StatusCompleted, func(b *core.Booking) error {
		if b.Status != core.StatusCheckedIn {
			return core.BadRequest("booking is %s, not checked_in", b.Status)
		}
		return nil
	}, &newEnd)
}

// Cancel transitions scheduled to released.
func (s *Service) Cancel(ctx context.Context, bookingID int64, userName string) (*core.Booking, error) {
	return s.transition(ctx, bookingID, userName, core.StatusReleased, func(b *core.Booking) error {
		if b.Status != core.StatusScheduled {
			return core.BadRequest("booking is %s, not scheduled", b.Status)
		}
		return nil
	}, nil)
}

// transition runs a guarded status change inside one transaction, locking the
// facility row before the booking row.
func (s *Service) transition(ctx context.Context, bookingID int64, userName string, to core.BookingStatus, guard func(*core.Booking) error, newEnd *time.Time) (*core.Booking, error) {
	if userName == "" {
		return nil, core.BadRequest("userName is required")
	}

	var out *core.Booking
	err := s.store.WithTx(ctx, func(tx Tx) error {
		peek, err := tx.BookingByID(ctx, bookingID)
		if err != nil {
			return err
		}
		if peek == nil {
			return core.NotFound("booking %d not found", bookingID)
		}

		if _, err := tx.FacilityForUpdate(ctx, peek.FacilityID); err != nil {
			return err
		}
		b, err := tx.BookingForUpdate(ctx, bookingID)
		if err != nil {
			return err
		}
		if b == nil {
			return core.NotFound("booking %d not found", bookingID)
		}
		if b.BookedBy != userName {
			return core.Forbidden("booking belongs to another user")
		}
		if err := guard(b); err != nil {
			return err
		}

		if newEnd != nil {
			if err := tx.CompleteBooking(ctx, bookingID, *newEnd); err != nil {
				return err
			}
			b.EndsAt = *newEnd
		} else {
			if err := tx.SetBookingStatus(ctx, bookingID, to); err != nil {
				return err
			}
		}
		oldStatus := b.Status
		b.Status = to
		out = b

		s.logger.Info().
			Int64(log.FieldBookingID, b.ID).
			Str(log.FieldUser, b.BookedBy).
			Str(log.FieldOldStatus, string(oldStatus)).
			Str(log.FieldNewStatus, string(to)).
			Msg("booking transition")
		return nil
	})
	if err != nil {
		return nil, err
	}

	metrics.Transitions.WithLabelValues(string(to)).Inc()
	s.broadcast.StateChanged()
	return out, nil
}

func detailsOf(b core.Booking) core.ConflictDetails {
	return core.ConflictDetails{
		BookedBy: b.BookedBy,
		ClubName: b.ClubName,
		UserType: b.UserType,
		StartsAt: b.StartsAt,
		EndsAt:   b.EndsAt,
	}
}

func holderName(b core.Booking) string {
	if b.ClubName != nil && *b.ClubName != "" {
		return *b.ClubName
	}
	return b.BookedBy
}
