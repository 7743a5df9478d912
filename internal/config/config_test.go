package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost:5432/campusspot")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, 30*time.Minute, cfg.SlotSize)
	assert.Equal(t, 15*time.Minute, cfg.NoShowGrace)
	assert.Equal(t, 7, cfg.MaxBookingHorizonDays)
	assert.Equal(t, 30, cfg.ClubBookingHorizonDays)
	assert.Equal(t, time.Minute, cfg.CleanupInterval)
	assert.Equal(t, int64(1001), cfg.CleanupLockID)
	assert.Contains(t, cfg.ValidClubs, "Roobooru")
}

func TestLoadRequiresDatabaseURL(t *testing.T) {
	t.Setenv("DATABASE_URL", "")

	_, err := Load()
	require.Error(t, err)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost:5432/campusspot")
	t.Setenv("PORT", "9000")
	t.Setenv("NO_SHOW_GRACE_MINUTES", "20")
	t.Setenv("CLEANUP_INTERVAL", "30s")
	t.Setenv("VALID_CLUBS", "Roobooru, Astronomy Society")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 9000, cfg.Port)
	assert.Equal(t, 20*time.Minute, cfg.NoShowGrace)
	assert.Equal(t, 30*time.Second, cfg.CleanupInterval)
	assert.Equal(t, []string{"Roobooru", "Astronomy Society"}, cfg.ValidClubs)
}

func TestIsValidClub(t *testing.T) {
	cfg := Config{ValidClubs: []string{"Roobooru"}}
	assert.True(t, cfg.IsValidClub("Roobooru"))
	assert.False(t, cfg.IsValidClub("Unknown Club"))
}

func TestHorizonDays(t *testing.T) {
	cfg := Config{MaxBookingHorizonDays: 7, ClubBookingHorizonDays: 30}
	assert.Equal(t, 7, cfg.HorizonDays("individual"))
	assert.Equal(t, 30, cfg.HorizonDays("club"))
}
