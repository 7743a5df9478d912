// Command daemon runs the CampusSpot booking service: HTTP API, websocket
// broadcaster and the cleanup reconciler, backed by PostgreSQL.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"github.com/Tanmay2302/CampusSpot/internal/api"
	"github.com/Tanmay2302/CampusSpot/internal/booking"
	"github.com/Tanmay2302/CampusSpot/internal/broadcast"
	"github.com/Tanmay2302/CampusSpot/internal/config"
	"github.com/Tanmay2302/CampusSpot/internal/core"
	"github.com/Tanmay2302/CampusSpot/internal/health"
	"github.com/Tanmay2302/CampusSpot/internal/log"
	"github.com/Tanmay2302/CampusSpot/internal/reconcile"
	"github.com/Tanmay2302/CampusSpot/internal/store"
)

var version = "dev"

// bookingStore adapts *store.Store to the booking service's store interface.
// *store.Tx satisfies booking.Tx structurally; only the callback type needs
// bridging.
type bookingStore struct{ *store.Store }

func (s bookingStore) WithTx(ctx context.Context, fn func(tx booking.Tx) error) error {
	return s.Store.WithTx(ctx, func(tx *store.Tx) error { return fn(tx) })
}

// reconcileStore adapts *store.Store to the reconciler's store interface.
type reconcileStore struct{ *store.Store }

func (s reconcileStore) WithTx(ctx context.Context, fn func(tx reconcile.Tx) error) error {
	return s.Store.WithTx(ctx, func(tx *store.Tx) error { return fn(tx) })
}

func main() {
	showVersion := flag.Bool("version", false, "print version and exit")
	flag.Parse()
	if *showVersion {
		fmt.Printf("campusspot %s\n", version)
		os.Exit(0)
	}

	// Local development convenience; a missing .env is not an error.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		logger := log.WithComponent("daemon")
		logger.Fatal().
			Err(err).
			Str("event", "config.load_failed").
			Msg("failed to load configuration")
	}

	log.Configure(log.Config{Level: cfg.LogLevel, Service: "campusspot"})
	logger := log.WithComponent("daemon")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil && !errors.Is(err, context.Canceled) {
		logger.Fatal().Err(err).Msg("daemon exited with error")
	}
	logger.Info().Msg("daemon stopped")
}

func run(ctx context.Context, cfg config.Config) error {
	logger := log.WithComponent("daemon")
	clock := core.SystemClock{}

	st, err := store.New(ctx, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer st.Close()

	if err := st.Migrate(ctx); err != nil {
		return err
	}
	if cfg.SeedOnEmpty {
		if _, err := st.Seed(ctx); err != nil {
			return err
		}
	}

	hub := broadcast.NewHub(originCheck(cfg.AllowedOrigins))

	var caster booking.Broadcaster = hub
	var bridge *broadcast.Bridge
	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		bridge = broadcast.NewBridge(hub, rdb)
		caster = bridge
		logger.Info().Str("redis_addr", cfg.RedisAddr).Msg("cross-instance broadcast enabled")
	}

	svc := booking.NewService(bookingStore{st}, clock, cfg, caster)
	worker := reconcile.New(reconcileStore{st}, clock, cfg.CleanupInterval, cfg.CleanupLockID, cfg.NoShowGrace, caster)

	healthM := health.NewManager(version, worker.LastRunAt, nil)
	healthM.RegisterChecker(health.NewDatabaseChecker(st))
	healthM.RegisterChecker(health.NewCleanupChecker(worker.LastRunAt, nil, 5*cfg.CleanupInterval))

	var seeder api.Seeder
	if cfg.SeedOnEmpty {
		seeder = st
	}
	srv := api.NewServer(cfg, svc, st, seeder, clock, healthM, hub.ServeWS)
	httpSrv := srv.HTTPServer(fmt.Sprintf(":%d", cfg.Port))

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		err := hub.Run(gctx)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	})
	if bridge != nil {
		g.Go(func() error {
			err := bridge.Run(gctx)
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		})
	}
	g.Go(func() error {
		err := worker.Run(gctx)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	})
	g.Go(func() error {
		logger.Info().Int("port", cfg.Port).Str("version", version).Msg("http server listening")
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return httpSrv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

// originCheck builds the websocket origin policy from the CORS allow list.
// An empty list or "*" admits every origin.
func originCheck(allowedOrigins []string) func(r *http.Request) bool {
	if len(allowedOrigins) == 0 {
		return nil
	}
	allowed := make(map[string]bool, len(allowedOrigins))
	for _, o := range allowedOrigins {
		allowed[o] = true
	}
	if allowed["*"] {
		return nil
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		return origin == "" || allowed[origin]
	}
}
