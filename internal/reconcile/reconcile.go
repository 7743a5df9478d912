// Package reconcile runs the periodic cleanup worker: it releases no-show
// bookings whose check-in window closed and completes checked-in sessions
// whose end time passed. A Postgres advisory lock makes each cycle a cluster
// singleton, so running several instances of the daemon stays safe.
package reconcile

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/Tanmay2302/CampusSpot/internal/core"
	"github.com/Tanmay2302/CampusSpot/internal/log"
	"github.com/Tanmay2302/CampusSpot/internal/metrics"
)

// Tx is the transactional surface one candidate fix-up runs on. The
// facility row is locked before the booking row, the same order the booking
// service uses, so the worker never deadlocks with live requests.
type Tx interface {
	FacilityForUpdate(ctx context.Context, id int64) (*core.Facility, error)
	BookingForUpdate(ctx context.Context, id int64) (*core.Booking, error)
	SetBookingStatus(ctx context.Context, id int64, status core.BookingStatus) error
}

// Store is what the worker needs from the persistence layer.
type Store interface {
	WithTx(ctx context.Context, fn func(tx Tx) error) error

	// AcquireCleanupLock takes the non-blocking singleton lock. When acquired
	// is true the caller must invoke release exactly once.
	AcquireCleanupLock(ctx context.Context, key int64) (release func(), acquired bool, err error)

	// NoShowCandidates lists scheduled bookings starting strictly before cutoff.
	NoShowCandidates(ctx context.Context, cutoff time.Time) ([]core.Booking, error)

	// ExpiredCandidates lists checked-in bookings ending at or before now.
	ExpiredCandidates(ctx context.Context, now time.Time) ([]core.Booking, error)

	// JustStartedCount counts scheduled bookings starting inside (from, to].
	JustStartedCount(ctx context.Context, from, to time.Time) (int, error)
}

// Broadcaster receives the state-changed signal when a cycle mutated rows.
type Broadcaster interface {
	StateChanged()
}

// Worker is the cleanup reconciler.
type Worker struct {
	store     Store
	clock     core.Clock
	broadcast Broadcaster
	logger    zerolog.Logger

	interval    time.Duration
	lockKey     int64
	noShowGrace time.Duration

	mu          sync.Mutex
	lastRunAt   time.Time
	lastRunOnce bool
}

// New builds a Worker. broadcast may be nil.
func New(store Store, clock core.Clock, interval time.Duration, lockKey int64, noShowGrace time.Duration, broadcast Broadcaster) *Worker {
	return &Worker{
		store:       store,
		clock:       clock,
		broadcast:   broadcast,
		logger:      log.WithComponent("reconcile"),
		interval:    interval,
		lockKey:     lockKey,
		noShowGrace: noShowGrace,
	}
}

// LastRunAt returns the completion time of the most recent successful cycle
// and whether one has happened yet. Cycles skipped on a busy lock count: the
// other holder is doing the work.
func (w *Worker) LastRunAt() (time.Time, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.lastRunAt, w.lastRunOnce
}

func (w *Worker) markRun(t time.Time) {
	w.mu.Lock()
	w.lastRunAt = t
	w.lastRunOnce = true
	w.mu.Unlock()
}

// Run executes cleanup cycles on the configured interval until ctx is done.
// One cycle runs immediately on startup.
func (w *Worker) Run(ctx context.Context) error {
	w.logger.Info().
		Dur("interval", w.interval).
		Int64("lock_id", w.lockKey).
		Msg("reconciler started")

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	w.cycle(ctx)
	for {
		select {
		case <-ctx.Done():
			w.logger.Info().Msg("reconciler stopped")
			return ctx.Err()
		case <-ticker.C:
			w.cycle(ctx)
		}
	}
}

// cycle runs one cleanup pass. Errors are logged, never fatal: the next tick
// retries.
func (w *Worker) cycle(ctx context.Context) {
	started := w.clock.Now()

	release, acquired, err := w.store.AcquireCleanupLock(ctx, w.lockKey)
	if err != nil {
		w.logger.Error().Err(err).Msg("advisory lock attempt failed")
		return
	}
	if !acquired {
		metrics.ReconcilerLockBusy.Inc()
		w.logger.Debug().Msg("cleanup lock held elsewhere, skipping cycle")
		w.markRun(started)
		return
	}
	defer release()

	released := w.releaseNoShows(ctx, started)
	completed := w.completeExpired(ctx, started)
	justStarted := w.noteJustStarted(ctx, started)

	metrics.ReconcilerCycleDuration.Observe(w.clock.Now().Sub(started).Seconds())
	w.markRun(started)

	if released+completed > 0 {
		w.logger.Info().
			Int("released", released).
			Int("completed", completed).
			Msg("cleanup cycle applied changes")
	}
	// Bookings entering their window change occupancy too, so observers get
	// the signal even when no row was mutated.
	if released+completed+justStarted > 0 && w.broadcast != nil {
		w.broadcast.StateChanged()
	}
}

// releaseNoShows moves scheduled bookings past their grace window to
// released. Each candidate is re-read under the facility and booking locks; a
// row that got checked in between the scan and the lock is left alone.
func (w *Worker) releaseNoShows(ctx context.Context, now time.Time) int {
	cutoff := now.Add(-w.noShowGrace)
	candidates, err := w.store.NoShowCandidates(ctx, cutoff)
	if err != nil {
		w.logger.Error().Err(err).Msg("no-show scan failed")
		return 0
	}

	n := 0
	for _, c := range candidates {
		err := w.fixup(ctx, c, func(tx Tx, b *core.Booking) error {
			if b.Status != core.StatusScheduled || !b.StartsAt.Before(cutoff) {
				return nil
			}
			if err := tx.SetBookingStatus(ctx, b.ID, core.StatusReleased); err != nil {
				return err
			}
			metrics.ReconcilerReleased.Inc()
			n++
			w.logger.Info().
				Int64(log.FieldBookingID, b.ID).
				Int64(log.FieldFacilityID, b.FacilityID).
				Str(log.FieldOldStatus, string(core.StatusScheduled)).
				Str(log.FieldNewStatus, string(core.StatusReleased)).
				Msg("released no-show booking")
			return nil
		})
		if err != nil {
			w.logger.Error().Err(err).Int64(log.FieldBookingID, c.ID).Msg("no-show release failed")
		}
	}
	return n
}

// completeExpired moves checked-in bookings whose end time passed to
// completed.
func (w *Worker) completeExpired(ctx context.Context, now time.Time) int {
	candidates, err := w.store.ExpiredCandidates(ctx, now)
	if err != nil {
		w.logger.Error().Err(err).Msg("expired-session scan failed")
		return 0
	}

	n := 0
	for _, c := range candidates {
		err := w.fixup(ctx, c, func(tx Tx, b *core.Booking) error {
			if b.Status != core.StatusCheckedIn || b.EndsAt.After(now) {
				return nil
			}
			if err := tx.SetBookingStatus(ctx, b.ID, core.StatusCompleted); err != nil {
				return err
			}
			metrics.ReconcilerCompleted.Inc()
			n++
			w.logger.Info().
				Int64(log.FieldBookingID, b.ID).
				Int64(log.FieldFacilityID, b.FacilityID).
				Str(log.FieldOldStatus, string(core.StatusCheckedIn)).
				Str(log.FieldNewStatus, string(core.StatusCompleted)).
				Msg("completed expired session")
			return nil
		})
		if err != nil {
			w.logger.Error().Err(err).Int64(log.FieldBookingID, c.ID).Msg("expiry completion failed")
		}
	}
	return n
}

// fixup opens one short transaction per candidate so a single poisoned row
// cannot roll back the whole cycle.
func (w *Worker) fixup(ctx context.Context, c core.Booking, apply func(tx Tx, b *core.Booking) error) error {
	return w.store.WithTx(ctx, func(tx Tx) error {
		if _, err := tx.FacilityForUpdate(ctx, c.FacilityID); err != nil {
			return err
		}
		b, err := tx.BookingForUpdate(ctx, c.ID)
		if err != nil {
			return err
		}
		if b == nil {
			return nil
		}
		return apply(tx, b)
	})
}

// noteJustStarted counts bookings whose window opened in the last interval.
// Nothing is mutated, but the count feeds the cycle's broadcast decision.
func (w *Worker) noteJustStarted(ctx context.Context, now time.Time) int {
	n, err := w.store.JustStartedCount(ctx, now.Add(-w.interval), now)
	if err != nil {
		w.logger.Error().Err(err).Msg("just-started scan failed")
		return 0
	}
	if n > 0 {
		w.logger.Debug().Int("count", n).Msg("bookings entered their check-in window")
	}
	return n
}
