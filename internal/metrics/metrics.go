// Package metrics defines the Prometheus collectors for the booking engine.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// BookingsCreated counts successful reservations by booking type.
	BookingsCreated = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "campusspot_bookings_created_total",
		Help: "Bookings successfully created, by booking type",
	}, []string{"booking_type"})

	// BookingConflicts counts reservations rejected with a conflict.
	BookingConflicts = promauto.NewCounter(prometheus.CounterOpts{
		Name: "campusspot_booking_conflicts_total",
		Help: "Reservation attempts rejected due to overlap, capacity or duplicate submission",
	})

	// Transitions counts user-driven lifecycle transitions by target status.
	Transitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "campusspot_booking_transitions_total",
		Help: "User-driven booking state transitions, by resulting status",
	}, []string{"status"})

	// ReconcilerReleased counts no-show bookings released by the reconciler.
	ReconcilerReleased = promauto.NewCounter(prometheus.CounterOpts{
		Name: "campusspot_reconciler_released_total",
		Help: "Scheduled bookings released as no-shows",
	})

	// ReconcilerCompleted counts expired sessions completed by the reconciler.
	ReconcilerCompleted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "campusspot_reconciler_completed_total",
		Help: "Checked-in bookings completed after their end time",
	})

	// ReconcilerLockBusy counts cycles skipped because another instance held
	// the cleanup lock.
	ReconcilerLockBusy = promauto.NewCounter(prometheus.CounterOpts{
		Name: "campusspot_reconciler_lock_busy_total",
		Help: "Reconciler cycles skipped because the advisory lock was held elsewhere",
	})

	// ReconcilerCycleDuration observes the wall time of a full cleanup cycle.
	ReconcilerCycleDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "campusspot_reconciler_cycle_seconds",
		Help:    "Duration of reconciler cleanup cycles in seconds",
		Buckets: prometheus.DefBuckets,
	})

	// BroadcastEvents counts state-changed notifications fanned out.
	BroadcastEvents = promauto.NewCounter(prometheus.CounterOpts{
		Name: "campusspot_broadcast_events_total",
		Help: "State-changed events delivered to the broadcast hub",
	})
)
