// Package store implements the PostgreSQL persistence layer: schema
// management, transactional step queries for the booking service, the
// availability and schedule projections and the reconciler's advisory lock.
package store

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/Tanmay2302/CampusSpot/internal/core"
	"github.com/Tanmay2302/CampusSpot/internal/log"
)

// Store wraps a pgx connection pool.
type Store struct {
	pool   *pgxpool.Pool
	logger zerolog.Logger
}

// New connects to the database and verifies the connection.
func New(ctx context.Context, databaseURL string) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, core.Internal(err, "parse database url")
	}
	cfg.MaxConnLifetime = time.Hour
	cfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, core.Internal(err, "create connection pool")
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, core.Internal(err, "ping database")
	}

	return &Store{pool: pool, logger: log.WithComponent("store")}, nil
}

// Close releases the connection pool.
func (s *Store) Close() {
	s.pool.Close()
}

// Ping verifies database connectivity. Used by the health checker.
func (s *Store) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := s.pool.Ping(ctx); err != nil {
		return core.Unavailable("database unreachable: %v", err)
	}
	return nil
}

// WithTx runs fn inside one transaction. The deferred rollback guarantees
// locks are released on every exit path; it is a no-op after a commit.
func (s *Store) WithTx(ctx context.Context, fn func(tx *Tx) error) error {
	pgtx, err := s.pool.Begin(ctx)
	if err != nil {
		return core.Internal(err, "begin transaction")
	}
	defer func() { _ = pgtx.Rollback(ctx) }()

	if err := fn(&Tx{tx: pgtx}); err != nil {
		return err
	}
	if err := pgtx.Commit(ctx); err != nil {
		return core.Internal(err, "commit transaction")
	}
	return nil
}

// AcquireCleanupLock attempts the non-blocking session advisory lock keyed by
// key. On success it returns a release closure that unlocks and returns the
// underlying connection to the pool. The closure must run on the same
// session that took the lock, which is why the connection is pinned.
func (s *Store) AcquireCleanupLock(ctx context.Context, key int64) (release func(), acquired bool, err error) {
	conn, err := s.pool.Acquire(ctx)
	if err != nil {
		return nil, false, core.Internal(err, "acquire connection for advisory lock")
	}

	var got bool
	if err := conn.QueryRow(ctx, `SELECT pg_try_advisory_lock($1)`, key).Scan(&got); err != nil {
		conn.Release()
		return nil, false, core.Internal(err, "try advisory lock %d", key)
	}
	if !got {
		conn.Release()
		return nil, false, nil
	}

	release = func() {
		// Unlock on a fresh context: the cycle's context may already be done.
		unlockCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if _, err := conn.Exec(unlockCtx, `SELECT pg_advisory_unlock($1)`, key); err != nil {
			s.logger.Error().Err(err).Int64("lock_id", key).Msg("advisory unlock failed")
		}
		conn.Release()
	}
	return release, true, nil
}
