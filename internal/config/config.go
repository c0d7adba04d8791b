// Package config reads server settings from the environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"
)

// StoreKind selects the persistence backend.
type StoreKind string

const (
	StoreMemory   StoreKind = "memory"
	StoreSQLite   StoreKind = "sqlite"
	StorePostgres StoreKind = "postgres"
)

type Config struct {
	HTTPAddr        string
	Store           StoreKind
	DSN             string
	RedisAddr       string
	LogLevel        string
	RenewalInterval time.Duration
	RenewalEnabled  bool
}

// Default is the configuration with no environment set.
func Default() Config {
	return Config{
		HTTPAddr:        ":8080",
		Store:           StoreMemory,
		DSN:             "b2b.db",
		LogLevel:        "info",
		RenewalInterval: time.Hour,
		RenewalEnabled:  true,
	}
}

// FromEnv overlays B2B_* variables on Default and validates the result.
func FromEnv() (Config, error) {
	def := Default()

	interval, err := envDuration("B2B_RENEWAL_INTERVAL", def.RenewalInterval)
	if err != nil {
		return Config{}, err
	}
	enabled, err := envBool("B2B_RENEWAL_ENABLED", def.RenewalEnabled)
	if err != nil {
		return Config{}, err
	}

	cfg := Config{
		HTTPAddr:        envString("B2B_HTTP_ADDR", def.HTTPAddr),
		Store:           StoreKind(envString("B2B_STORE", string(def.Store))),
		DSN:             envString("B2B_DSN", def.DSN),
		RedisAddr:       envString("B2B_REDIS_ADDR", def.RedisAddr),
		LogLevel:        envString("B2B_LOG_LEVEL", def.LogLevel),
		RenewalInterval: interval,
		RenewalEnabled:  enabled,
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	if c.HTTPAddr == "" {
		return errors.New("B2B_HTTP_ADDR is required")
	}
	switch c.Store {
	case StoreMemory:
	case StoreSQLite, StorePostgres:
		if c.DSN == "" {
			return fmt.Errorf("B2B_DSN is required for store %q", c.Store)
		}
	default:
		return fmt.Errorf("B2B_STORE must be memory, sqlite or postgres, got %q", c.Store)
	}
	if c.RenewalEnabled && c.RenewalInterval <= 0 {
		return errors.New("B2B_RENEWAL_INTERVAL must be positive")
	}
	return nil
}

func envString(key, def string) string {
	if v, ok := os.LookupEnv(key); ok {
		return v
	}
	return def
}

func envDuration(key string, def time.Duration) (time.Duration, error) {
	if v, ok := os.LookupEnv(key); ok {
		d, err := time.ParseDuration(v)
		if err != nil {
			return 0, fmt.Errorf("parse %s: %w", key, err)
		}
		return d, nil
	}
	return def, nil
}

func envBool(key string, def bool) (bool, error) {
	if v, ok := os.LookupEnv(key); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return false, fmt.Errorf("parse %s: %w", key, err)
		}
		return b, nil
	}
	return def, nil
}
