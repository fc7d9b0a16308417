package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigLoad_Defaults(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	cfg, err := New()
	require.NoError(t, err)
	assert.Equal(t, "local", cfg.BuildTarget)
	assert.Equal(t, "sqlite", cfg.DBDriver)
	assert.Equal(t, 8000, cfg.HTTPPort)
	assert.Equal(t, ":8000", cfg.GetHTTPAddr())
	assert.Equal(t, "stationary", cfg.RecordingSource)
	assert.Equal(t, "midpoint", cfg.ProbeStrategy)
	assert.Equal(t, 5*time.Second, cfg.CatalogTimeout())
	assert.Equal(t, time.Duration(0), cfg.SessionIdleTTL())
	assert.Equal(t, 5, cfg.BootstrapTimeoutSeconds)
	assert.Contains(t, cfg.SQLitePath, ".recollect")
}

func TestConfigLoad_EnvOverride(t *testing.T) {
	t.Setenv("RECOLLECT_HTTP_PORT", "9001")
	t.Setenv("RECOLLECT_SQLITE_PATH", "/tmp/x.db")
	t.Setenv("RECOLLECT_CATALOG_TIMEOUT_SECONDS", "1")
	t.Setenv("RECOLLECT_SESSION_IDLE_TTL_MINUTES", "30")
	t.Setenv("RECOLLECT_PROBE_STRATEGY", "coverage")

	cfg, err := New()
	require.NoError(t, err)
	assert.Equal(t, 9001, cfg.HTTPPort)
	assert.Equal(t, "/tmp/x.db", cfg.SQLitePath)
	assert.Equal(t, time.Second, cfg.CatalogTimeout())
	assert.Equal(t, 30*time.Minute, cfg.SessionIdleTTL())
	assert.Equal(t, "coverage", cfg.ProbeStrategy)
}

func TestConfigLoad_RejectsUnknownStrategy(t *testing.T) {
	t.Setenv("RECOLLECT_SQLITE_PATH", "/tmp/x.db")
	t.Setenv("RECOLLECT_PROBE_STRATEGY", "random")

	_, err := New()
	assert.Error(t, err)
}

func TestNewForTesting(t *testing.T) {
	cfg := NewForTesting()
	assert.True(t, cfg.IsTesting())
	assert.False(t, cfg.IsProduction())
	require.NoError(t, cfg.ResolveDefaults())
	assert.Equal(t, "sqlite", cfg.DBDriver)
}
