package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromEnvDefaults(t *testing.T) {
	cfg, err := FromEnv()
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Addr)
	assert.Equal(t, 5, cfg.Coordinator.MaxConcurrent)
	assert.Equal(t, 3, cfg.Coordinator.MaxConcurrentSessions)
	assert.Equal(t, 1000, cfg.Cache.MaxEntries)
	assert.Equal(t, "lru", cfg.Cache.Strategy)
	assert.Equal(t, time.Hour, cfg.Cache.DefaultTTL)
	assert.Equal(t, time.Minute, cfg.Cache.CleanupInterval)
}

func TestFromEnvOverrides(t *testing.T) {
	t.Setenv("SITEAUDIT_ADDR", ":9999")
	t.Setenv("SITEAUDIT_MAX_CONCURRENT", "12")
	t.Setenv("SITEAUDIT_CACHE_STRATEGY", "lfu")
	t.Setenv("SITEAUDIT_CACHE_DEFAULT_TTL", "30m")

	cfg, err := FromEnv()
	require.NoError(t, err)

	assert.Equal(t, ":9999", cfg.Addr)
	assert.Equal(t, 12, cfg.Coordinator.MaxConcurrent)
	assert.Equal(t, "lfu", cfg.Cache.Strategy)
	assert.Equal(t, 30*time.Minute, cfg.Cache.DefaultTTL)
}

func TestFromEnvRejectsInvalid(t *testing.T) {
	t.Setenv("SITEAUDIT_CACHE_STRATEGY", "arc")

	_, err := FromEnv()
	assert.Error(t, err)
}

func TestValidateBounds(t *testing.T) {
	cfg, err := FromEnv()
	require.NoError(t, err)

	cfg.Coordinator.MaxConcurrent = 0
	assert.Error(t, cfg.Validate())

	cfg.Coordinator.MaxConcurrent = 1
	cfg.Cache.MaxEntries = -1
	assert.Error(t, cfg.Validate())
}
