package config_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/kontext-systems/audit-core/pkg/config"
)

// TestLoad_Defaults verifies that Load() returns sensible defaults
// when no environment variables are set.
func TestLoad_Defaults(t *testing.T) {
	t.Setenv("KONTEXT_LOG_LEVEL", "")
	t.Setenv("KONTEXT_STORAGE_BACKEND", "")
	t.Setenv("KONTEXT_STORAGE_PATH", "")
	t.Setenv("KONTEXT_REDIS_ADDR", "")
	t.Setenv("KONTEXT_REDIS_PREFIX", "")
	t.Setenv("KONTEXT_EVENT_STORE_MAX_SIZE", "")
	t.Setenv("KONTEXT_EXPORTER_QUEUE_CAPACITY", "")
	t.Setenv("KONTEXT_APPROVAL_TTL", "")
	t.Setenv("KONTEXT_ANOMALY_WINDOW", "")
	t.Setenv("KONTEXT_PROFILES_DIR", "")
	t.Setenv("KONTEXT_PROFILE", "")

	cfg := config.Load()

	assert.Equal(t, "INFO", cfg.LogLevel)
	assert.Equal(t, "file", cfg.StorageBackend)
	assert.Equal(t, "./kontext-data", cfg.StoragePath)
	assert.Equal(t, "localhost:6379", cfg.RedisAddr)
	assert.Equal(t, "kontext", cfg.RedisKeyPrefix)
	assert.Equal(t, 10000, cfg.EventStoreMaxSize)
	assert.Equal(t, 256, cfg.ExporterQueueCapacity)
	assert.Equal(t, time.Hour, cfg.ApprovalTTL)
	assert.Equal(t, 24*time.Hour, cfg.AnomalyWindow)
	assert.Equal(t, "./profiles", cfg.ProfilesDir)
	assert.Equal(t, "default", cfg.Profile)
}

// TestLoad_Overrides verifies that environment variables correctly
// override default values.
func TestLoad_Overrides(t *testing.T) {
	t.Setenv("KONTEXT_LOG_LEVEL", "DEBUG")
	t.Setenv("KONTEXT_STORAGE_BACKEND", "redis")
	t.Setenv("KONTEXT_STORAGE_PATH", "/var/lib/kontext")
	t.Setenv("KONTEXT_REDIS_ADDR", "redis.internal:6380")
	t.Setenv("KONTEXT_REDIS_PASSWORD", "hunter2")
	t.Setenv("KONTEXT_REDIS_DB", "3")
	t.Setenv("KONTEXT_REDIS_PREFIX", "audit")
	t.Setenv("KONTEXT_EVENT_STORE_MAX_SIZE", "500")
	t.Setenv("KONTEXT_EXPORTER_QUEUE_CAPACITY", "64")
	t.Setenv("KONTEXT_APPROVAL_TTL", "30m")
	t.Setenv("KONTEXT_ANOMALY_WINDOW", "1h")
	t.Setenv("KONTEXT_PROFILES_DIR", "/etc/kontext/profiles")
	t.Setenv("KONTEXT_PROFILE", "strict")

	cfg := config.Load()

	assert.Equal(t, "DEBUG", cfg.LogLevel)
	assert.Equal(t, "redis", cfg.StorageBackend)
	assert.Equal(t, "/var/lib/kontext", cfg.StoragePath)
	assert.Equal(t, "redis.internal:6380", cfg.RedisAddr)
	assert.Equal(t, "hunter2", cfg.RedisPassword)
	assert.Equal(t, 3, cfg.RedisDB)
	assert.Equal(t, "audit", cfg.RedisKeyPrefix)
	assert.Equal(t, 500, cfg.EventStoreMaxSize)
	assert.Equal(t, 64, cfg.ExporterQueueCapacity)
	assert.Equal(t, 30*time.Minute, cfg.ApprovalTTL)
	assert.Equal(t, time.Hour, cfg.AnomalyWindow)
	assert.Equal(t, "/etc/kontext/profiles", cfg.ProfilesDir)
	assert.Equal(t, "strict", cfg.Profile)
}

// TestLoad_InvalidIntFallsBackToDefault verifies malformed numeric env
// vars are ignored rather than propagated as zero values.
func TestLoad_InvalidIntFallsBackToDefault(t *testing.T) {
	t.Setenv("KONTEXT_EVENT_STORE_MAX_SIZE", "not-a-number")
	t.Setenv("KONTEXT_APPROVAL_TTL", "not-a-duration")

	cfg := config.Load()

	assert.Equal(t, 10000, cfg.EventStoreMaxSize)
	assert.Equal(t, time.Hour, cfg.ApprovalTTL)
}
