package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
)

// Coordinator captures the dispatcher's concurrency knobs.
type Coordinator struct {
	MaxConcurrent         int `validate:"gt=0"`
	MaxConcurrentSessions int `validate:"gt=0"`
}

// Cache captures the result cache's knobs.
type Cache struct {
	MaxEntries      int           `validate:"gt=0"`
	MaxSizeBytes    int64         `validate:"gt=0"`
	DefaultTTL      time.Duration `validate:"gte=0"`
	Strategy        string        `validate:"oneof=lru lfu fifo ttl"`
	CleanupInterval time.Duration `validate:"gt=0"`
}

// Config is the process configuration. Unknown environment variables are
// ignored; every recognized knob is a field here.
type Config struct {
	Addr         string `validate:"required"`
	LogLevel     string
	DevAssessors bool

	Coordinator Coordinator `validate:"required"`
	Cache       Cache       `validate:"required"`
}

// FromEnv builds a Config from environment variables so main stays lean.
func FromEnv() (Config, error) {
	cfg := Config{
		Addr:         envString("SITEAUDIT_ADDR", ":8080"),
		LogLevel:     envString("SITEAUDIT_LOG_LEVEL", "info"),
		DevAssessors: os.Getenv("SITEAUDIT_DEV_ASSESSORS") == "true",
		Coordinator: Coordinator{
			MaxConcurrent:         envInt("SITEAUDIT_MAX_CONCURRENT", 5),
			MaxConcurrentSessions: envInt("SITEAUDIT_MAX_CONCURRENT_SESSIONS", 3),
		},
		Cache: Cache{
			MaxEntries:      envInt("SITEAUDIT_CACHE_MAX_ENTRIES", 1000),
			MaxSizeBytes:    int64(envInt("SITEAUDIT_CACHE_MAX_SIZE_BYTES", 64<<20)),
			DefaultTTL:      envDuration("SITEAUDIT_CACHE_DEFAULT_TTL", time.Hour),
			Strategy:        envString("SITEAUDIT_CACHE_STRATEGY", "lru"),
			CleanupInterval: envDuration("SITEAUDIT_CACHE_CLEANUP_INTERVAL", time.Minute),
		},
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks field constraints via struct tags.
func (c Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}

func envString(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
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
