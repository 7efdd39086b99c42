package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	for _, k := range []string{
		"PICKUP_HTTP_ADDR", "PICKUP_REDIS_ADDR", "PICKUP_MAPS_API_KEY", "PICKUP_MAPS_TIMEOUT",
		"PICKUP_DISPATCH_RADIUS_M", "PICKUP_DISPATCH_MAX_CANDIDATES", "PICKUP_ETA_CACHE_TTL",
		"PICKUP_MAPS_ALTERNATIVES",
	} {
		t.Setenv(k, "")
	}

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.HTTP.Addr)
	assert.Empty(t, cfg.Redis.Addr)
	assert.Empty(t, cfg.Maps.APIKey)
	assert.Equal(t, 5*time.Second, cfg.Maps.Timeout)
	assert.False(t, cfg.Maps.Alternatives)
	assert.Equal(t, 100000.0, cfg.Dispatch.RadiusMeters)
	assert.Equal(t, 5, cfg.Dispatch.MaxCandidates)
	assert.Equal(t, 2*time.Minute, cfg.ETA.CacheTTL)
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("PICKUP_HTTP_ADDR", ":9090")
	t.Setenv("PICKUP_MAPS_API_KEY", "key")
	t.Setenv("PICKUP_MAPS_TIMEOUT", "2s")
	t.Setenv("PICKUP_MAPS_ALTERNATIVES", "true")
	t.Setenv("PICKUP_DISPATCH_RADIUS_M", "2500")
	t.Setenv("PICKUP_DISPATCH_MAX_CANDIDATES", "3")
	t.Setenv("PICKUP_ETA_CACHE_TTL", "0s")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.HTTP.Addr)
	assert.Equal(t, "key", cfg.Maps.APIKey)
	assert.Equal(t, 2*time.Second, cfg.Maps.Timeout)
	assert.True(t, cfg.Maps.Alternatives)
	assert.Equal(t, 2500.0, cfg.Dispatch.RadiusMeters)
	assert.Equal(t, 3, cfg.Dispatch.MaxCandidates)
	assert.Equal(t, time.Duration(0), cfg.ETA.CacheTTL)
}

func TestLoad_IgnoresMalformedNumbers(t *testing.T) {
	t.Setenv("PICKUP_DISPATCH_RADIUS_M", "far")
	t.Setenv("PICKUP_DISPATCH_MAX_CANDIDATES", "-2")
	t.Setenv("PICKUP_MAPS_TIMEOUT", "soon")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 100000.0, cfg.Dispatch.RadiusMeters)
	assert.Equal(t, 5, cfg.Dispatch.MaxCandidates)
	assert.Equal(t, 5*time.Second, cfg.Maps.Timeout)
}

func TestLoad_DotEnv(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("PICKUP_LOG_LEVEL=debug\n"), 0o600))
	chdir(t, dir)
	t.Setenv("PICKUP_LOG_LEVEL", "")
	os.Unsetenv("PICKUP_LOG_LEVEL")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.Log.Level)
}

func TestLoad_MalformedDotEnv(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("BAD-KEY=1\n"), 0o600))
	chdir(t, dir)

	_, err := Load()
	assert.ErrorContains(t, err, "load .env")
}

// chdir changes the working directory for the duration of the test
// (equivalent of testing.T.Chdir, which requires Go 1.24).
func chdir(t *testing.T, dir string) {
	t.Helper()
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(wd) })
}
