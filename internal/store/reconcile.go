package store

import (
	"context"
	"time"

	"github.com/Tanmay2302/CampusSpot/internal/core"
)

// NoShowCandidates returns bookings still scheduled whose check-in window has
// closed, i.e. starts_at is strictly before cutoff (= now minus the grace
// period). Only id and facility_id are populated; the reconciler re-reads the
// full row under lock before acting.
func (s *Store) NoShowCandidates(ctx context.Context, cutoff time.Time) ([]core.Booking, error) {
	return s.candidates(ctx, `
		SELECT id, facility_id FROM bookings
		WHERE status = 'scheduled' AND starts_at < $1
		ORDER BY id`, cutoff)
}

// ExpiredCandidates returns checked-in bookings whose window has ended.
func (s *Store) ExpiredCandidates(ctx context.Context, now time.Time) ([]core.Booking, error) {
	return s.candidates(ctx, `
		SELECT id, facility_id FROM bookings
		WHERE status = 'checked_in' AND ends_at <= $1
		ORDER BY id`, now)
}

func (s *Store) candidates(ctx context.Context, query string, arg time.Time) ([]core.Booking, error) {
	rows, err := s.pool.Query(ctx, query, arg)
	if err != nil {
		return nil, core.Internal(err, "query reconciler candidates")
	}
	defer rows.Close()

	var out []core.Booking
	for rows.Next() {
		var b core.Booking
		if err := rows.Scan(&b.ID, &b.FacilityID); err != nil {
			return nil, core.Internal(err, "scan candidate row")
		}
		out = append(out, b)
	}
	if err := rows.Err(); err != nil {
		return nil, core.Internal(err, "iterate candidate rows")
	}
	return out, nil
}

// JustStartedCount counts scheduled bookings whose start fell inside
// (from, to]. The reconciler uses it to log windows entering their grace
// period without mutating them.
func (s *Store) JustStartedCount(ctx context.Context, from, to time.Time) (int, error) {
	var n int
	err := s.pool.QueryRow(ctx, `
		SELECT COUNT(*) FROM bookings
		WHERE status = 'scheduled' AND starts_at > $1 AND starts_at <= $2`,
		from, to).Scan(&n)
	if err != nil {
		return 0, core.Internal(err, "count just-started bookings")
	}
	return n, nil
}
