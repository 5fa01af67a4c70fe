// Package config loads runtime configuration from the environment, with an
// optional .env file picked up via godotenv.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds everything the app needs to talk to the remote store and the
// device-local cache.
type Config struct {
	// StoreURL is the remote store endpoint. Empty selects the in-memory
	// store (demo mode).
	StoreURL string
	// StoreAuth is sent as the auth query parameter when set.
	StoreAuth string
	// LocalDBPath is the device-local SQLite cache.
	LocalDBPath string

	// Retry policy for the resilient wrapper.
	RetryAttempts int
	ReadDelay     time.Duration
	WriteDelay    time.Duration

	// LeaseTTL is how long a session lease lives without renewal.
	LeaseTTL time.Duration

	// MetricsAddr, when set, serves Prometheus metrics on that address.
	MetricsAddr string
}

// Load reads the configuration. A missing .env file is not an error.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		StoreURL:    os.Getenv("STORE_URL"),
		StoreAuth:   os.Getenv("STORE_AUTH"),
		LocalDBPath: getEnv("LOCAL_DB_PATH", "./data/device.db"),
		MetricsAddr: os.Getenv("METRICS_ADDR"),
	}

	var err error
	if cfg.RetryAttempts, err = intEnv("RETRY_ATTEMPTS", 3); err != nil {
		return nil, err
	}
	if cfg.ReadDelay, err = durationEnv("READ_RETRY_DELAY", time.Second); err != nil {
		return nil, err
	}
	if cfg.WriteDelay, err = durationEnv("WRITE_RETRY_DELAY", 5*time.Second); err != nil {
		return nil, err
	}
	if cfg.LeaseTTL, err = durationEnv("LEASE_TTL", 5*time.Minute); err != nil {
		return nil, err
	}
	return cfg, nil
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func intEnv(key string, fallback int) (int, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, raw, err)
	}
	return v, nil
}

func durationEnv(key string, fallback time.Duration) (time.Duration, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback, nil
	}
	v, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, raw, err)
	}
	return v, nil
}
