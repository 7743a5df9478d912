package store

import (
	"context"

	"github.com/Tanmay2302/CampusSpot/internal/core"
)

type seedFacility struct {
	name        string
	category    string
	description string
	capacity    int
	pooled      bool
	minMinutes  int
	maxMinutes  int
	open        string
	close       string
	units       []string
	brokenUnits []string
}

// demoCampus is the development fixture: one pooled facility, two unit
// facilities (one with a non-operational unit) and a club-only event space.
var demoCampus = []seedFacility{
	{
		name: "Study Hall", category: "Study Spaces",
		description: "Open-plan quiet study hall, first come first served seating",
		capacity:    40, pooled: true,
		minMinutes: 30, maxMinutes: 240,
		open: "07:00", close: "23:00",
	},
	{
		name: "Sports Courts", category: "Sports",
		description: "Outdoor multi-purpose courts",
		capacity:    4, pooled: false,
		minMinutes: 30, maxMinutes: 120,
		open: "06:00", close: "22:00",
		units:       []string{"Court 1", "Court 2", "Court 3"},
		brokenUnits: []string{"Court 4"},
	},
	{
		name: "Music Rooms", category: "Arts",
		description: "Soundproofed rehearsal rooms with upright pianos",
		capacity:    3, pooled: false,
		minMinutes: 30, maxMinutes: 180,
		open: "08:00", close: "22:00",
		units: []string{"Room A", "Room B", "Room C"},
	},
	{
		name: "Main Auditorium", category: core.CategoryEventSpace,
		description: "500-seat auditorium for club events",
		capacity:    1, pooled: false,
		minMinutes: 60, maxMinutes: 960,
		open: "07:00", close: "23:00",
		units: []string{"Main Stage"},
	},
}

// Seed inserts the demo campus fixture when the facilities table is empty.
// It reports whether anything was inserted.
func (s *Store) Seed(ctx context.Context) (bool, error) {
	var seeded bool
	err := s.WithTx(ctx, func(tx *Tx) error {
		var n int
		if err := tx.tx.QueryRow(ctx, `SELECT COUNT(*) FROM facilities`).Scan(&n); err != nil {
			return core.Internal(err, "count facilities")
		}
		if n > 0 {
			return nil
		}
		for _, f := range demoCampus {
			var facilityID int64
			err := tx.tx.QueryRow(ctx, `
				INSERT INTO facilities
					(name, category, description, total_capacity, is_pooled,
					 min_duration_minutes, max_duration_minutes, open_time, close_time)
				VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
				RETURNING id`,
				f.name, f.category, f.description, f.capacity, f.pooled,
				f.minMinutes, f.maxMinutes, f.open, f.close).Scan(&facilityID)
			if err != nil {
				return core.Internal(err, "seed facility %q", f.name)
			}
			if err := s.seedUnits(ctx, tx, facilityID, f.units, true); err != nil {
				return err
			}
			if err := s.seedUnits(ctx, tx, facilityID, f.brokenUnits, false); err != nil {
				return err
			}
		}
		seeded = true
		return nil
	})
	if err != nil {
		return false, err
	}
	if seeded {
		s.logger.Info().Int("facilities", len(demoCampus)).Msg("seeded demo campus")
	}
	return seeded, nil
}

func (s *Store) seedUnits(ctx context.Context, tx *Tx, facilityID int64, names []string, operational bool) error {
	for _, name := range names {
		if _, err := tx.tx.Exec(ctx, `
			INSERT INTO facility_units (facility_id, unit_name, is_operational)
			VALUES ($1, $2, $3)`,
			facilityID, name, operational); err != nil {
			return core.Internal(err, "seed unit %q", name)
		}
	}
	return nil
}
