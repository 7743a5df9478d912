package store

import (
	"context"

	"github.com/Tanmay2302/CampusSpot/internal/core"
)

// schema is applied on startup. Statements are idempotent so the daemon can
// run against a fresh or an already-migrated database.
//
// The partial indexes carry the predicate status IN ('scheduled','checked_in')
// so that completed and released rows never widen the conflict scans, and so
// the idempotency uniqueness stops binding once a booking is cancelled.
const schema = `
CREATE TABLE IF NOT EXISTS facilities (
	id                   BIGSERIAL PRIMARY KEY,
	name                 TEXT NOT NULL UNIQUE,
	category             TEXT NOT NULL,
	description          TEXT NOT NULL DEFAULT '',
	total_capacity       INTEGER NOT NULL CHECK (total_capacity > 0),
	is_pooled            BOOLEAN NOT NULL DEFAULT FALSE,
	min_duration_minutes INTEGER NOT NULL,
	max_duration_minutes INTEGER NOT NULL,
	open_time            TIME NOT NULL,
	close_time           TIME NOT NULL,
	timezone             TEXT NOT NULL DEFAULT 'UTC',
	created_at           TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS facility_units (
	id             BIGSERIAL PRIMARY KEY,
	facility_id    BIGINT NOT NULL REFERENCES facilities(id) ON DELETE CASCADE,
	unit_name      TEXT NOT NULL,
	is_operational BOOLEAN NOT NULL DEFAULT TRUE,
	created_at     TIMESTAMPTZ NOT NULL DEFAULT now(),
	UNIQUE (facility_id, unit_name)
);

CREATE TABLE IF NOT EXISTS bookings (
	id              BIGSERIAL PRIMARY KEY,
	facility_id     BIGINT NOT NULL REFERENCES facilities(id),
	unit_id         BIGINT REFERENCES facility_units(id),
	booked_by       TEXT NOT NULL,
	user_type       TEXT NOT NULL CHECK (user_type IN ('individual','club')),
	club_name       TEXT,
	booking_type    TEXT NOT NULL CHECK (booking_type IN ('time_based','full_day')),
	starts_at       TIMESTAMPTZ NOT NULL,
	ends_at         TIMESTAMPTZ NOT NULL CHECK (ends_at > starts_at),
	status          TEXT NOT NULL DEFAULT 'scheduled'
	                CHECK (status IN ('scheduled','checked_in','completed','released')),
	idempotency_key TEXT NOT NULL,
	created_at      TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_bookings_facility_active
	ON bookings (facility_id, starts_at, ends_at)
	WHERE status IN ('scheduled','checked_in');

CREATE INDEX IF NOT EXISTS idx_bookings_unit_active
	ON bookings (unit_id, starts_at, ends_at)
	WHERE status IN ('scheduled','checked_in');

CREATE INDEX IF NOT EXISTS idx_bookings_user_active
	ON bookings (booked_by, starts_at, ends_at)
	WHERE status IN ('scheduled','checked_in');

CREATE UNIQUE INDEX IF NOT EXISTS uq_bookings_active_idempotency
	ON bookings (idempotency_key)
	WHERE status IN ('scheduled','checked_in');

CREATE INDEX IF NOT EXISTS idx_bookings_cleanup
	ON bookings (starts_at, status, ends_at);
`

// Migrate applies the schema.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schema); err != nil {
		return core.Internal(err, "apply schema")
	}
	s.logger.Debug().Msg("schema applied")
	return nil
}
