// Package api exposes the booking engine over HTTP: reservation and
// lifecycle mutations, the availability and schedule projections and the
// operational endpoints (health, metrics, websocket, seed).
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/Tanmay2302/CampusSpot/internal/booking"
	"github.com/Tanmay2302/CampusSpot/internal/config"
	"github.com/Tanmay2302/CampusSpot/internal/core"
	"github.com/Tanmay2302/CampusSpot/internal/health"
	"github.com/Tanmay2302/CampusSpot/internal/log"
	"github.com/Tanmay2302/CampusSpot/internal/store"
)

// BookingService is the mutation surface the handlers drive.
type BookingService interface {
	Create(ctx context.Context, req booking.CreateRequest) (*core.Booking, error)
	CheckIn(ctx context.Context, bookingID int64, userName string) (*core.Booking, error)
	CheckOut(ctx context.Context, bookingID int64, userName string) (*core.Booking, error)
	Cancel(ctx context.Context, bookingID int64, userName string) (*core.Booking, error)
}

// Views is the read-side projection surface.
type Views interface {
	AllAssets(ctx context.Context, now time.Time, callerName string, callerType core.UserType) ([]store.FacilityAvailability, error)
	FacilityByID(ctx context.Context, id int64) (*core.Facility, error)
	ScheduleForDate(ctx context.Context, f *core.Facility, dayStart, dayEnd time.Time) (*store.ScheduleView, error)
	UnitsForFacility(ctx context.Context, facilityID int64) ([]store.UnitView, error)
	UserBookings(ctx context.Context, userName string) ([]store.UserBookingView, error)
}

// Seeder loads the demo fixture on demand.
type Seeder interface {
	Seed(ctx context.Context) (bool, error)
}

// Server wires the handlers to their collaborators.
type Server struct {
	cfg     config.Config
	svc     BookingService
	views   Views
	seeder  Seeder
	clock   core.Clock
	healthM *health.Manager
	serveWS http.HandlerFunc
	logger  zerolog.Logger
}

// NewServer builds the HTTP server. serveWS may be nil when the websocket
// hub is not running (tests).
func NewServer(cfg config.Config, svc BookingService, views Views, seeder Seeder, clock core.Clock, healthM *health.Manager, serveWS http.HandlerFunc) *Server {
	return &Server{
		cfg:     cfg,
		svc:     svc,
		views:   views,
		seeder:  seeder,
		clock:   clock,
		healthM: healthM,
		serveWS: serveWS,
		logger:  log.WithComponent("api"),
	}
}

// Router assembles the middleware stack and the route table.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(Recoverer)
	r.Use(RequestID)
	r.Use(CORS(s.cfg.AllowedOrigins))
	r.Use(Metrics())
	r.Use(RequestLogger())
	r.Use(httprate.LimitByIP(300, time.Minute))

	r.Get("/assets", s.handleAssets)
	r.Get("/facilities/{facilityID}/units", s.handleUnits)
	r.Get("/facilities/{facilityID}/schedule", s.handleSchedule)
	r.Get("/bookings/user/{userName}", s.handleUserBookings)

	r.Post("/reserve", s.handleReserve)
	r.Post("/check-in", s.handleCheckIn)
	r.Post("/check-out", s.handleCheckOut)
	r.Post("/cancel", s.handleCancel)

	if s.healthM != nil {
		r.Get("/system/health", s.healthM.ServeHTTP)
	}
	r.Post("/system/seed", s.handleSeed)
	r.Handle("/metrics", promhttp.Handler())

	if s.serveWS != nil {
		r.Get("/ws", s.serveWS)
	}
	return r
}

// HTTPServer wraps the router in an http.Server. WriteTimeout stays unset:
// the websocket route holds its connection open indefinitely.
func (s *Server) HTTPServer(addr string) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
}
