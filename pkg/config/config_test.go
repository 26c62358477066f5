package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func inTempDir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(wd) })
	return dir
}

func TestLoadDefaults(t *testing.T) {
	inTempDir(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, EnvDevelopment, cfg.Env)
	assert.Equal(t, "/api/v1", cfg.APIPrefix)
	assert.Equal(t, 5*time.Second, cfg.Database.TxTimeout)
	assert.Equal(t, 6, cfg.Seating.Columns)
	assert.Equal(t, time.Minute, cfg.Seating.StatsCacheTTL)
	assert.Equal(t, 2*time.Minute, cfg.Seating.LockTTL)
	assert.Zero(t, cfg.Seating.HealthInterval)
	assert.Equal(t, 10, cfg.Seating.DegradedThresholdPct)
	assert.False(t, cfg.Seating.AllowDestructive)
	assert.False(t, cfg.Events.Enabled)
	assert.Equal(t, "seating.events", cfg.Events.Queue)
}

func TestLoadReadsEnvironment(t *testing.T) {
	inTempDir(t)
	t.Setenv("SEATING_COLUMNS", "8")
	t.Setenv("SEATING_HEALTH_INTERVAL", "90s")
	t.Setenv("SEATING_ALLOW_DESTRUCTIVE", "true")
	t.Setenv("DB_TX_TIMEOUT", "not-a-duration")
	t.Setenv("JWT_AUDIENCE", "web, mobile ,")
	t.Setenv("ALLOWED_ORIGINS", "https://sma.example")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 8, cfg.Seating.Columns)
	assert.Equal(t, 90*time.Second, cfg.Seating.HealthInterval)
	assert.True(t, cfg.Seating.AllowDestructive)
	assert.Equal(t, 5*time.Second, cfg.Database.TxTimeout)
	assert.Equal(t, []string{"web", "mobile"}, cfg.JWT.Audience)
	assert.Equal(t, []string{"https://sma.example"}, cfg.CORS.AllowedOrigins)
}

func TestLoadReadsDotEnvFile(t *testing.T) {
	dir := inTempDir(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("SEATING_COLUMNS=4\nSEATING_AUTO_REPAIR=true\n"), 0o600))
	t.Cleanup(func() {
		_ = os.Unsetenv("SEATING_COLUMNS")
		_ = os.Unsetenv("SEATING_AUTO_REPAIR")
	})

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 4, cfg.Seating.Columns)
	assert.True(t, cfg.Seating.AutoRepair)
}

func TestNonPositiveColumnsFallBack(t *testing.T) {
	inTempDir(t)
	t.Setenv("SEATING_COLUMNS", "0")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 6, cfg.Seating.Columns)
}
