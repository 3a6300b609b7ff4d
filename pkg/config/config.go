// Package config holds environment-driven runtime configuration for the
// audit core, grounded on the teacher's config.Load (os.Getenv with
// defaults, 12-factor style).
package config

import (
	"os"
	"strconv"
	"time"
)

// Config holds the core's runtime configuration.
type Config struct {
	LogLevel string

	StorageBackend string // "file" | "redis" | "" (disabled)
	StoragePath    string
	RedisAddr      string
	RedisPassword  string
	RedisDB        int
	RedisKeyPrefix string

	EventStoreMaxSize     int
	ExporterQueueCapacity int

	ApprovalTTL   time.Duration
	AnomalyWindow time.Duration

	ProfilesDir string
	Profile     string
}

// Load loads configuration from environment variables.
func Load() *Config {
	logLevel := os.Getenv("KONTEXT_LOG_LEVEL")
	if logLevel == "" {
		logLevel = "INFO"
	}

	storageBackend := os.Getenv("KONTEXT_STORAGE_BACKEND")
	if storageBackend == "" {
		storageBackend = "file"
	}

	storagePath := os.Getenv("KONTEXT_STORAGE_PATH")
	if storagePath == "" {
		storagePath = "./kontext-data"
	}

	redisAddr := os.Getenv("KONTEXT_REDIS_ADDR")
	if redisAddr == "" {
		redisAddr = "localhost:6379"
	}

	redisKeyPrefix := os.Getenv("KONTEXT_REDIS_PREFIX")
	if redisKeyPrefix == "" {
		redisKeyPrefix = "kontext"
	}

	eventStoreMaxSize := envInt("KONTEXT_EVENT_STORE_MAX_SIZE", 10000)
	exporterQueueCapacity := envInt("KONTEXT_EXPORTER_QUEUE_CAPACITY", 256)
	redisDB := envInt("KONTEXT_REDIS_DB", 0)

	approvalTTL := envDuration("KONTEXT_APPROVAL_TTL", time.Hour)
	anomalyWindow := envDuration("KONTEXT_ANOMALY_WINDOW", 24*time.Hour)

	profilesDir := os.Getenv("KONTEXT_PROFILES_DIR")
	if profilesDir == "" {
		profilesDir = "./profiles"
	}

	profile := os.Getenv("KONTEXT_PROFILE")
	if profile == "" {
		profile = "default"
	}

	return &Config{
		LogLevel: logLevel,

		StorageBackend: storageBackend,
		StoragePath:    storagePath,
		RedisAddr:      redisAddr,
		RedisPassword:  os.Getenv("KONTEXT_REDIS_PASSWORD"),
		RedisDB:        redisDB,
		RedisKeyPrefix: redisKeyPrefix,

		EventStoreMaxSize:     eventStoreMaxSize,
		ExporterQueueCapacity: exporterQueueCapacity,

		ApprovalTTL:   approvalTTL,
		AnomalyWindow: anomalyWindow,

		ProfilesDir: profilesDir,
		Profile:     profile,
	}
}

func envInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func envDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}
