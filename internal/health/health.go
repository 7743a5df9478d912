// Package health reports liveness and readiness for the booking daemon:
// database connectivity plus the recency of the cleanup reconciler.
package health

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/Tanmay2302/CampusSpot/internal/log"
)

// Status represents the overall health status
type Status string

const (
	StatusHealthy   Status = "healthy"
	StatusDegraded  Status = "degraded"
	StatusUnhealthy Status = "unhealthy"
)

// CheckResult represents the result of a component health check
type CheckResult struct {
	Status  Status `json:"status"`
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
}

// Response is the full health check payload.
type Response struct {
	Status           Status                 `json:"status"`
	Version          string                 `json:"version,omitempty"`
	ServerTime       time.Time              `json:"serverTime"`
	LastCleanupRunAt *time.Time             `json:"lastCleanupRunAt"`
	Checks           map[string]CheckResult `json:"checks,omitempty"`
}

// Checker defines the interface for health checks
type Checker interface {
	Name() string
	Check(ctx context.Context) CheckResult
}

// Manager runs the registered checkers and serves the health endpoint.
type Manager struct {
	version    string
	checkers   []Checker
	lastRun    func() (time.Time, bool)
	serverTime func() time.Time
}

// NewManager creates a health manager. lastRun reports the reconciler's most
// recent cycle; serverTime supplies the clock (nil uses the host clock).
func NewManager(version string, lastRun func() (time.Time, bool), serverTime func() time.Time) *Manager {
	if serverTime == nil {
		serverTime = func() time.Time { return time.Now().UTC() }
	}
	return &Manager{
		version:    version,
		checkers:   make([]Checker, 0),
		lastRun:    lastRun,
		serverTime: serverTime,
	}
}

// RegisterChecker adds a health checker to the manager
func (m *Manager) RegisterChecker(checker Checker) {
	m.checkers = append(m.checkers, checker)
}

// Check runs every checker and folds the component results into one status.
func (m *Manager) Check(ctx context.Context) Response {
	resp := Response{
		Status:     StatusHealthy,
		Version:    m.version,
		ServerTime: m.serverTime(),
		Checks:     make(map[string]CheckResult, len(m.checkers)),
	}
	if m.lastRun != nil {
		if t, ok := m.lastRun(); ok {
			resp.LastCleanupRunAt = &t
		}
	}

	hasUnhealthy := false
	hasDegraded := false
	for _, checker := range m.checkers {
		result := checker.Check(ctx)
		resp.Checks[checker.Name()] = result
		switch result.Status {
		case StatusUnhealthy:
			hasUnhealthy = true
		case StatusDegraded:
			hasDegraded = true
		}
	}
	if hasUnhealthy {
		resp.Status = StatusUnhealthy
	} else if hasDegraded {
		resp.Status = StatusDegraded
	}
	return resp
}

// ServeHTTP handles health check requests. Unhealthy reports 503 so load
// balancers stop routing; degraded still serves.
func (m *Manager) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	logger := log.WithComponentFromContext(r.Context(), "health")

	resp := m.Check(r.Context())

	w.Header().Set("Content-Type", "application/json")
	if resp.Status == StatusUnhealthy {
		w.WriteHeader(http.StatusServiceUnavailable)
	} else {
		w.WriteHeader(http.StatusOK)
	}
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		logger.Error().Err(err).Str("event", "health.encode_error").Msg("failed to encode health response")
	}

	logger.Debug().
		Str("event", "health.checked").
		Str("status", string(resp.Status)).
		Msg("health check performed")
}

// Pinger is anything with a connectivity probe, i.e. the database pool.
type Pinger interface {
	Ping(ctx context.Context) error
}

// DatabaseChecker probes database connectivity.
type DatabaseChecker struct {
	pinger Pinger
}

// NewDatabaseChecker creates a checker backed by the store's pool.
func NewDatabaseChecker(p Pinger) *DatabaseChecker {
	return &DatabaseChecker{pinger: p}
}

func (c *DatabaseChecker) Name() string { return "database" }

func (c *DatabaseChecker) Check(ctx context.Context) CheckResult {
	if err := c.pinger.Ping(ctx); err != nil {
		return CheckResult{Status: StatusUnhealthy, Error: err.Error()}
	}
	return CheckResult{Status: StatusHealthy, Message: "connected"}
}

// CleanupChecker flags a reconciler that has not completed a cycle recently.
type CleanupChecker struct {
	lastRun  func() (time.Time, bool)
	now      func() time.Time
	staleCap time.Duration
}

// NewCleanupChecker creates a checker for reconciler recency. staleCap is how
// old the last cycle may be before the daemon reports degraded.
func NewCleanupChecker(lastRun func() (time.Time, bool), now func() time.Time, staleCap time.Duration) *CleanupChecker {
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	return &CleanupChecker{lastRun: lastRun, now: now, staleCap: staleCap}
}

func (c *CleanupChecker) Name() string { return "cleanup" }

func (c *CleanupChecker) Check(context.Context) CheckResult {
	last, ran := c.lastRun()
	if !ran {
		return CheckResult{Status: StatusDegraded, Message: "no cleanup cycle yet"}
	}
	if age := c.now().Sub(last); age > c.staleCap {
		return CheckResult{
			Status:  StatusDegraded,
			Message: "last cleanup cycle " + age.Round(time.Second).String() + " ago",
		}
	}
	return CheckResult{Status: StatusHealthy, Message: "cleanup current"}
}
