package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/pos-core/config"
)

func TestDefault(t *testing.T) {
	cfg := config.Default()

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 30*time.Second, cfg.HTTPTimeout())
	assert.Equal(t, "pos.db", cfg.Storage.SQLitePath)
	assert.Equal(t, "pos-cart.ldb", cfg.Storage.LevelDBPath)
	assert.Equal(t, 10*time.Hour, cfg.CartTTL())
	assert.Equal(t, 3, cfg.Breaker.Threshold)
	assert.Equal(t, time.Minute, cfg.BreakerCooldown())
	assert.Equal(t, 5*time.Minute, cfg.TerminalCacheTTL())
	assert.True(t, cfg.Republisher.Enabled)
	assert.Equal(t, 5*time.Minute, cfg.RepublishInterval())
	assert.Equal(t, 15*time.Minute, cfg.RepublishGrace())
	assert.Equal(t, 24*time.Hour, cfg.RepublishWindow())
	assert.Empty(t, cfg.Subscribers)
}

func TestLoad_YAMLOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pos.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server:
  port: 9090
storage:
  sqlitePath: /var/lib/pos/pos.db
  cartTtlSeconds: 7200
breaker:
  threshold: 5
  cooldownSeconds: 120
republisher:
  enabled: false
  checkIntervalSeconds: 60
subscribers:
  - serviceName: journal
    url: http://journal.internal/events
  - serviceName: stock
    url: http://stock.internal/events
`), 0o600))

	cfg, err := config.Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "/var/lib/pos/pos.db", cfg.Storage.SQLitePath)
	assert.Equal(t, 2*time.Hour, cfg.CartTTL())
	assert.Equal(t, 5, cfg.Breaker.Threshold)
	assert.Equal(t, 2*time.Minute, cfg.BreakerCooldown())
	assert.False(t, cfg.Republisher.Enabled)
	assert.Equal(t, time.Minute, cfg.RepublishInterval())

	// Untouched sections keep their defaults
	assert.Equal(t, 30*time.Second, cfg.HTTPTimeout())
	assert.Equal(t, "pos-cart.ldb", cfg.Storage.LevelDBPath)

	require.Len(t, cfg.Subscribers, 2)
	assert.Equal(t, "journal", cfg.Subscribers[0].ServiceName)
	assert.Equal(t, "http://stock.internal/events", cfg.Subscribers[1].URL)
}

func TestLoad_EnvOverridesYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pos.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server:\n  port: 9090\n"), 0o600))

	t.Setenv("PORT", "7070")
	t.Setenv("CIRCUIT_BREAKER_THRESHOLD", "10")
	t.Setenv("JWT_SECRET", "env-secret")

	cfg, err := config.Load(path)
	require.NoError(t, err)

	assert.Equal(t, 7070, cfg.Server.Port)
	assert.Equal(t, 10, cfg.Breaker.Threshold)
	assert.Equal(t, "env-secret", cfg.Auth.JWTSecret)
}

func TestLoad_RepublisherUnitNamedEnvKeys(t *testing.T) {
	t.Setenv("UNDELIVERED_CHECK_INTERVAL_IN_MINUTES", "10")
	t.Setenv("UNDELIVERED_CHECK_FAILED_PERIOD_IN_MINUTES", "30")
	t.Setenv("UNDELIVERED_CHECK_PERIOD_IN_HOURS", "48")

	cfg, err := config.Load("")
	require.NoError(t, err)

	assert.Equal(t, 10*time.Minute, cfg.RepublishInterval())
	assert.Equal(t, 30*time.Minute, cfg.RepublishGrace())
	assert.Equal(t, 48*time.Hour, cfg.RepublishWindow())
}

func TestLoad_UnitNamedKeysWinOverSecondsVariants(t *testing.T) {
	t.Setenv("UNDELIVERED_CHECK_INTERVAL", "90")
	t.Setenv("UNDELIVERED_CHECK_INTERVAL_IN_MINUTES", "2")

	cfg, err := config.Load("")
	require.NoError(t, err)
	assert.Equal(t, 2*time.Minute, cfg.RepublishInterval())
}

func TestLoad_IgnoresMalformedEnvInt(t *testing.T) {
	t.Setenv("PORT", "not-a-number")

	cfg, err := config.Load("")
	require.NoError(t, err)
	assert.Equal(t, 8080, cfg.Server.Port)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := config.Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestLoad_MalformedYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server: [not a map"), 0o600))

	_, err := config.Load(path)
	assert.Error(t, err)
}
