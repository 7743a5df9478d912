// Package config loads daemon configuration from the environment.
package config

import (
	"fmt"
	"time"

	"github.com/samber/lo"
)

// Defaults for booking policy knobs. Values are overridable via environment
// variables of the same name.
const (
	DefaultSlotSizeMinutes        = 30
	DefaultNoShowGraceMinutes     = 15
	DefaultMaxBookingHorizonDays  = 7
	DefaultClubBookingHorizonDays = 30
	DefaultMinSessionMinutes      = 30
	DefaultCleanupInterval        = time.Minute
	DefaultCleanupLockID          = 1001
)

// DefaultValidClubs is the closed set of registered clubs that may hold
// club-typed bookings.
var DefaultValidClubs = []string{
	"Roobooru",
	"Chess Circle",
	"Debate Society",
	"Robotics Club",
	"Drama Troupe",
}

// Config holds the full daemon configuration.
type Config struct {
	// Wiring
	DatabaseURL    string
	Port           int
	AllowedOrigins []string
	RedisAddr      string // optional; enables the cross-process broadcast bridge
	LogLevel       string

	// Booking policy
	SlotSize               time.Duration
	NoShowGrace            time.Duration
	MaxBookingHorizonDays  int
	ClubBookingHorizonDays int
	MinSessionMinutes      int
	ValidClubs             []string

	// Reconciler
	CleanupInterval time.Duration
	CleanupLockID   int64

	// Seeding
	SeedOnEmpty bool
}

// Load reads the configuration from the environment.
func Load() (Config, error) {
	cfg := Config{
		DatabaseURL:    ParseString("DATABASE_URL", ""),
		Port:           ParseInt("PORT", 8080),
		AllowedOrigins: ParseStringSlice("ALLOWED_ORIGINS", nil),
		RedisAddr:      ParseString("REDIS_ADDR", ""),
		LogLevel:       ParseString("LOG_LEVEL", "info"),

		SlotSize:               time.Duration(ParseInt("SLOT_SIZE_MINUTES", DefaultSlotSizeMinutes)) * time.Minute,
		NoShowGrace:            time.Duration(ParseInt("NO_SHOW_GRACE_MINUTES", DefaultNoShowGraceMinutes)) * time.Minute,
		MaxBookingHorizonDays:  ParseInt("MAX_BOOKING_HORIZON_DAYS", DefaultMaxBookingHorizonDays),
		ClubBookingHorizonDays: ParseInt("CLUB_BOOKING_HORIZON_DAYS", DefaultClubBookingHorizonDays),
		MinSessionMinutes:      ParseInt("MIN_SESSION_MINUTES", DefaultMinSessionMinutes),
		ValidClubs:             ParseStringSlice("VALID_CLUBS", DefaultValidClubs),

		CleanupInterval: ParseDuration("CLEANUP_INTERVAL", DefaultCleanupInterval),
		CleanupLockID:   ParseInt64("CLEANUP_LOCK_ID", DefaultCleanupLockID),

		SeedOnEmpty: ParseString("SEED_ON_EMPTY", "true") == "true",
	}
	return cfg, cfg.Validate()
}

// Validate checks the configuration for values that cannot work at runtime.
func (c Config) Validate() error {
	if c.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("PORT %d is out of range", c.Port)
	}
	if c.SlotSize <= 0 {
		return fmt.Errorf("SLOT_SIZE_MINUTES must be positive")
	}
	if c.NoShowGrace < 0 {
		return fmt.Errorf("NO_SHOW_GRACE_MINUTES must not be negative")
	}
	if c.MaxBookingHorizonDays <= 0 || c.ClubBookingHorizonDays <= 0 {
		return fmt.Errorf("booking horizons must be positive")
	}
	if c.CleanupInterval <= 0 {
		return fmt.Errorf("CLEANUP_INTERVAL must be positive")
	}
	return nil
}

// IsValidClub reports whether name belongs to the registered club set.
func (c Config) IsValidClub(name string) bool {
	return lo.Contains(c.ValidClubs, name)
}

// HorizonDays returns the advance-booking horizon for the given user type.
// Clubs get the extended horizon; everyone else gets the default.
func (c Config) HorizonDays(userType string) int {
	if userType == "club" {
		return c.ClubBookingHorizonDays
	}
	return c.MaxBookingHorizonDays
}
