package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setBaseEnv(t *testing.T) {
	t.Helper()
	t.Setenv("APP_NAME", "skill-exchange")
	t.Setenv("APP_ENV", "development")
	t.Setenv("HTTP_PORT", "8080")
	t.Setenv("JWT_ACCESS_SECRET", "secret")
	t.Setenv("STORE_DRIVER", "memory")
}

func TestLoad_MemoryDriverDefaults(t *testing.T) {
	setBaseEnv(t)

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, StoreDriverMemory, cfg.Store.Driver)
	assert.Equal(t, 5*time.Second, cfg.Store.Timeout)
	assert.Equal(t, FeedDriverMemory, cfg.Feed.Driver)
	assert.Equal(t, 64, cfg.Feed.Buffer)
	assert.Equal(t, "localhost:6379", cfg.Redis.Addr())
	assert.True(t, cfg.App.IsDevelopment())
}

func TestLoad_ReportsAllMissingVariables(t *testing.T) {
	t.Setenv("APP_NAME", "")
	t.Setenv("APP_ENV", "")
	t.Setenv("HTTP_PORT", "8080")
	t.Setenv("JWT_ACCESS_SECRET", "secret")
	t.Setenv("STORE_DRIVER", "postgres")
	t.Setenv("DB_HOST", "")
	t.Setenv("DB_NAME", "db")
	t.Setenv("DB_USER", "user")

	_, err := Load()
	require.ErrorIs(t, err, errMissingRequiredEnv)
	assert.Contains(t, err.Error(), "APP_NAME, APP_ENV, DB_HOST")
}

func TestLoad_RejectsInvalidValues(t *testing.T) {
	setBaseEnv(t)
	t.Setenv("STORE_TIMEOUT", "soon")
	t.Setenv("FEED_DRIVER", "kafka")

	_, err := Load()
	require.ErrorIs(t, err, errInvalidEnv)
	assert.Contains(t, err.Error(), "STORE_TIMEOUT")
	assert.Contains(t, err.Error(), "FEED_DRIVER")
}

func TestParseDuration(t *testing.T) {
	d, err := ParseDuration("7")
	require.NoError(t, err)
	assert.Equal(t, 7*time.Second, d)

	d, err = ParseDuration("250ms")
	require.NoError(t, err)
	assert.Equal(t, 250*time.Millisecond, d)

	_, err = ParseDuration("-3")
	assert.Error(t, err)
}
