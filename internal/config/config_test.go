package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":3001", cfg.Addr)
	assert.Equal(t, "./data", cfg.DataDir)
	assert.Equal(t, "./uploads", cfg.UploadsDir)
	assert.Equal(t, 5*time.Second, cfg.SnapshotInterval)
	assert.Equal(t, 60*time.Second, cfg.RoomGracePeriod)
	assert.Equal(t, 30, cfg.RetentionDays)
	assert.Equal(t, int64(3<<20), cfg.MaxImageBytes)
	assert.Equal(t, 1000, cfg.MaxRooms)
	assert.Equal(t, 50, cfg.MaxRoomSessions)
	assert.Equal(t, 10000, cfg.MaxElements)
	assert.Empty(t, cfg.AllowedOrigins)
	assert.False(t, cfg.Development)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("ADDR", ":9999")
	t.Setenv("SNAPSHOT_INTERVAL", "250ms")
	t.Setenv("ROOM_GRACE_PERIOD", "2m")
	t.Setenv("RETENTION_DAYS", "7")
	t.Setenv("MAX_IMAGE_BYTES", "1048576")
	t.Setenv("MAX_ROOMS", "10")
	t.Setenv("DEVELOPMENT", "true")
	t.Setenv("ALLOWED_ORIGINS", "https://a.example.com, https://b.example.com ,")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":9999", cfg.Addr)
	assert.Equal(t, 250*time.Millisecond, cfg.SnapshotInterval)
	assert.Equal(t, 2*time.Minute, cfg.RoomGracePeriod)
	assert.Equal(t, 7, cfg.RetentionDays)
	assert.Equal(t, int64(1<<20), cfg.MaxImageBytes)
	assert.Equal(t, 10, cfg.MaxRooms)
	assert.True(t, cfg.Development)
	assert.Equal(t, []string{"https://a.example.com", "https://b.example.com"}, cfg.AllowedOrigins)
}

func TestLoadCollectsEveryProblem(t *testing.T) {
	t.Setenv("SNAPSHOT_INTERVAL", "soon")
	t.Setenv("RETENTION_DAYS", "-1")
	t.Setenv("MAX_ROOMS", "many")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "SNAPSHOT_INTERVAL")
	assert.Contains(t, err.Error(), "RETENTION_DAYS")
	assert.Contains(t, err.Error(), "MAX_ROOMS")
}

func TestRetentionHorizon(t *testing.T) {
	cfg := &Config{RetentionDays: 30}
	assert.Equal(t, 30*24*time.Hour, cfg.RetentionHorizon())
}
