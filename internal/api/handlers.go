package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/Tanmay2302/CampusSpot/internal/booking"
	"github.com/Tanmay2302/CampusSpot/internal/core"
)

// reserveRequest is the wire form of a reservation attempt.
type reserveRequest struct {
	FacilityID int64     `json:"facilityId"`
	UnitID     *int64    `json:"unitId,omitempty"`
	UserName   string    `json:"userName"`
	UserType   string    `json:"userType"`
	ClubName   *string   `json:"clubName,omitempty"`
	StartsAt   time.Time `json:"startsAt"`
	EndsAt     time.Time `json:"endsAt"`
}

// transitionRequest covers check-in, check-out and cancel.
type transitionRequest struct {
	BookingID int64  `json:"bookingId"`
	UserName  string `json:"userName"`
}

func decode(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return core.BadRequest("malformed request body: %v", err)
	}
	return nil
}

func (s *Server) handleReserve(w http.ResponseWriter, r *http.Request) {
	var req reserveRequest
	if err := decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	b, err := s.svc.Create(r.Context(), booking.CreateRequest{
		FacilityID: req.FacilityID,
		UnitID:     req.UnitID,
		UserName:   req.UserName,
		UserType:   core.UserType(req.UserType),
		ClubName:   req.ClubName,
		StartsAt:   req.StartsAt,
		EndsAt:     req.EndsAt,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusCreated, b)
}

func (s *Server) handleCheckIn(w http.ResponseWriter, r *http.Request) {
	s.handleTransition(w, r, s.svc.CheckIn)
}

func (s *Server) handleCheckOut(w http.ResponseWriter, r *http.Request) {
	s.handleTransition(w, r, s.svc.CheckOut)
}

func (s *Server) handleCancel(w http.ResponseWriter, r *http.Request) {
	s.handleTransition(w, r, s.svc.Cancel)
}

func (s *Server) handleTransition(w http.ResponseWriter, r *http.Request, op func(ctx context.Context, id int64, user string) (*core.Booking, error)) {
	var req transitionRequest
	if err := decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if req.BookingID <= 0 {
		writeError(w, r, core.BadRequest("bookingId is required"))
		return
	}
	b, err := op(r.Context(), req.BookingID, req.UserName)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, b)
}

// handleAssets serves the availability dashboard. Identity arrives as query
// parameters; Event Space rows are filtered for individuals inside the query.
func (s *Server) handleAssets(w http.ResponseWriter, r *http.Request) {
	userName := r.URL.Query().Get("userName")
	userType := core.UserType(r.URL.Query().Get("userType"))
	if userType == "" {
		userType = core.UserIndividual
	}
	if !userType.Valid() {
		writeError(w, r, core.BadRequest("userType must be individual or club"))
		return
	}

	assets, err := s.views.AllAssets(r.Context(), s.clock.Now().UTC(), userName, userType)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, assets)
}

func (s *Server) handleUnits(w http.ResponseWriter, r *http.Request) {
	facilityID, err := pathID(r, "facilityID")
	if err != nil {
		writeError(w, r, err)
		return
	}
	f, err := s.views.FacilityByID(r.Context(), facilityID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if f == nil {
		writeError(w, r, core.NotFound("facility %d not found", facilityID))
		return
	}
	units, err := s.views.UnitsForFacility(r.Context(), facilityID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, units)
}

// handleSchedule serves one civil day of a facility's bookings. Dates beyond
// the caller's advance-booking horizon are rejected.
func (s *Server) handleSchedule(w http.ResponseWriter, r *http.Request) {
	facilityID, err := pathID(r, "facilityID")
	if err != nil {
		writeError(w, r, err)
		return
	}

	now := s.clock.Now().UTC()
	day := now
	if raw := r.URL.Query().Get("date"); raw != "" {
		day, err = time.ParseInLocation("2006-01-02", raw, time.UTC)
		if err != nil {
			writeError(w, r, core.BadRequest("date must be YYYY-MM-DD"))
			return
		}
	}

	// The visible window is the civil-day range [today, today+horizon-1];
	// past days and anything beyond the horizon are rejected alike.
	horizon := s.cfg.HorizonDays(r.URL.Query().Get("userType"))
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	dayStart := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, time.UTC)
	if dayStart.Before(today) || dayStart.After(today.AddDate(0, 0, horizon-1)) {
		writeError(w, r, core.Forbidden("schedule is only visible from today through the next %d days", horizon))
		return
	}

	f, err := s.views.FacilityByID(r.Context(), facilityID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if f == nil {
		writeError(w, r, core.NotFound("facility %d not found", facilityID))
		return
	}

	view, err := s.views.ScheduleForDate(r.Context(), f, dayStart, dayStart.AddDate(0, 0, 1))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, view)
}

func (s *Server) handleUserBookings(w http.ResponseWriter, r *http.Request) {
	userName := chi.URLParam(r, "userName")
	if userName == "" {
		writeError(w, r, core.BadRequest("userName is required"))
		return
	}
	bookings, err := s.views.UserBookings(r.Context(), userName)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, bookings)
}

func (s *Server) handleSeed(w http.ResponseWriter, r *http.Request) {
	if s.seeder == nil {
		writeError(w, r, core.Unavailable("seeding is not enabled"))
		return
	}
	seeded, err := s.seeder.Seed(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	msg := "database already contains facilities, nothing seeded"
	if seeded {
		msg = "demo campus seeded"
	}
	writeJSON(w, r, http.StatusOK, map[string]any{"seeded": seeded, "message": msg})
}

func pathID(r *http.Request, name string) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil || id <= 0 {
		return 0, core.BadRequest("%s must be a positive integer", name)
	}
	return id, nil
}
