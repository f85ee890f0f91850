package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var managedKeys = []string{
	"APP_NAME", "APP_ENV", "PORT", "LOG_LEVEL", "BOT_TOKEN", "AUTH_TEST_MODE", "AUTH_MAX_AGE",
	"DATABASE_URL", "REDIS_URL", "SHUTDOWN_TIMEOUT", "SHUTDOWN_TIMEOUT_SECONDS", "IDEMPOTENCY_TTL",
	"IDEMPOTENCY_TTL_SECONDS", "REQUISITES_TTL", "CATALOG_CACHE_TTL", "EXPIRY_SWEEP_SCHEDULE",
	"MERCHANT_KEY_HASH", "AUTH_FAILURES_PER_MINUTE",
}

// clearEnv unsets every key Load reads; t.Setenv restores them afterwards.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range managedKeys {
		t.Setenv(k, "")
		os.Unsetenv(k)
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)
	t.Setenv("BOT_TOKEN", "123:abc")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "development", cfg.AppEnv)
	assert.Equal(t, ":8080", cfg.Address())
	assert.Equal(t, 24*time.Hour, cfg.AuthMaxAge)
	assert.Equal(t, 20*time.Minute, cfg.RequisitesTTL)
	assert.Equal(t, 10*time.Second, cfg.ShutdownPeriod)
	assert.Equal(t, "@every 1m", cfg.SweepSchedule)
	assert.Equal(t, 20, cfg.AuthFailuresPerMinute)
	assert.False(t, cfg.AuthTestMode)
}

func TestLoadRequiresBotToken(t *testing.T) {
	clearEnv(t)

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "BOT_TOKEN")
}

func TestLoadTestModeWithoutToken(t *testing.T) {
	clearEnv(t)
	t.Setenv("AUTH_TEST_MODE", "true")

	cfg, err := Load()
	require.NoError(t, err)
	assert.True(t, cfg.AuthTestMode)
}

func TestLoadRejectsTestModeInProduction(t *testing.T) {
	clearEnv(t)
	t.Setenv("APP_ENV", "production")
	t.Setenv("AUTH_TEST_MODE", "true")
	t.Setenv("BOT_TOKEN", "123:abc")
	t.Setenv("DATABASE_URL", "postgres://localhost/db")
	t.Setenv("REDIS_URL", "redis://localhost:6379/0")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "AUTH_TEST_MODE")
}

func TestLoadProductionRequiresStores(t *testing.T) {
	clearEnv(t)
	t.Setenv("APP_ENV", "production")
	t.Setenv("BOT_TOKEN", "123:abc")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "DATABASE_URL")
	assert.Contains(t, err.Error(), "REDIS_URL")
}

func TestLoadDurations(t *testing.T) {
	clearEnv(t)
	t.Setenv("BOT_TOKEN", "123:abc")
	t.Setenv("SHUTDOWN_TIMEOUT_SECONDS", "3")
	t.Setenv("SHUTDOWN_TIMEOUT", "1m")
	t.Setenv("IDEMPOTENCY_TTL", "2h")
	t.Setenv("REQUISITES_TTL", "5m")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 3*time.Second, cfg.ShutdownPeriod)
	assert.Equal(t, 2*time.Hour, cfg.IdempotencyTTL)
	assert.Equal(t, 5*time.Minute, cfg.RequisitesTTL)
}

func TestLoadInvalidValues(t *testing.T) {
	cases := map[string]string{
		"AUTH_MAX_AGE":             "forever",
		"AUTH_TEST_MODE":           "maybe",
		"AUTH_FAILURES_PER_MINUTE": "0",
		"EXPIRY_SWEEP_SCHEDULE":    "every minute",
		"REQUISITES_TTL":           "-1m",
	}
	for key, value := range cases {
		t.Run(key, func(t *testing.T) {
			clearEnv(t)
			t.Setenv("BOT_TOKEN", "123:abc")
			t.Setenv(key, value)

			_, err := Load()
			require.Error(t, err)
			assert.Contains(t, err.Error(), key)
		})
	}
}

func TestLoadSweepCanBeDisabled(t *testing.T) {
	clearEnv(t)
	t.Setenv("BOT_TOKEN", "123:abc")
	t.Setenv("EXPIRY_SWEEP_SCHEDULE", "")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "", cfg.SweepSchedule)
}
