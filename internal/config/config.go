package config

import (
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"time"
)

// Config holds every environment-driven setting for the broker, enumerated
// in full: DATABASE_URL (replaces the reference corpus's separate
// MONGO_URI/MONGO_DATABASE pair, now that the Store is a relational schema
// rather than a Mongo handle), LILA_DEEPQ_BIND, LILA_DEEPQ_CHANNEL_CAPACITY,
// LILA_DEEPQ_LEASE_SECONDS, IRWIN_URI, IRWIN_API_KEY, plus LOG_LEVEL,
// STORE_TIMEOUT and SHUTDOWN_GRACE as ambient infrastructure.
type Config struct {
	DatabaseURL string

	Bind              string
	ChannelCapacity   int
	LeaseSeconds      int
	IrwinURI          string
	IrwinAPIKey       string
	LogLevel          slog.Level

	StoreTimeout    time.Duration
	ShutdownGrace   time.Duration
}

const (
	defaultBind            = "127.0.0.1:3030"
	defaultChannelCapacity = 1024
	defaultLeaseSeconds    = 600
	defaultStoreTimeout    = 5 * time.Second
	defaultShutdownGrace   = 15 * time.Second
)

// Load reads Config from the process environment, applying the defaults
// enumerated in the external interface contract.
func Load() (*Config, error) {
	cfg := &Config{
		DatabaseURL:     GetEnvStr("DATABASE_URL", ""),
		Bind:            GetEnvStr("LILA_DEEPQ_BIND", defaultBind),
		ChannelCapacity: GetEnvInt("LILA_DEEPQ_CHANNEL_CAPACITY", defaultChannelCapacity),
		LeaseSeconds:    GetEnvInt("LILA_DEEPQ_LEASE_SECONDS", defaultLeaseSeconds),
		IrwinURI:        GetEnvStr("IRWIN_URI", ""),
		IrwinAPIKey:     GetEnvStr("IRWIN_API_KEY", ""),
		LogLevel:        GetEnvLogLevel("LOG_LEVEL", slog.LevelInfo),
		StoreTimeout:    GetEnvDuration("STORE_TIMEOUT", defaultStoreTimeout),
		ShutdownGrace:   GetEnvDuration("SHUTDOWN_GRACE", defaultShutdownGrace),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks that every required setting is present and well-formed.
func (c *Config) Validate() error {
	if c.DatabaseURL == "" {
		return errors.New("config: DATABASE_URL is required")
	}

	if _, err := url.Parse(c.DatabaseURL); err != nil {
		return fmt.Errorf("config: invalid DATABASE_URL: %w", err)
	}

	if c.ChannelCapacity <= 0 {
		return errors.New("config: LILA_DEEPQ_CHANNEL_CAPACITY must be positive")
	}

	if c.LeaseSeconds <= 0 {
		return errors.New("config: LILA_DEEPQ_LEASE_SECONDS must be positive")
	}

	return nil
}

// LeaseTTL returns the queue lease duration.
func (c *Config) LeaseTTL() time.Duration {
	return time.Duration(c.LeaseSeconds) * time.Second
}

// MaskDatabaseURL returns the database URL with any embedded password
// redacted, safe to include in logs.
func (c *Config) MaskDatabaseURL() string {
	u, err := url.Parse(c.DatabaseURL)
	if err != nil {
		return "***"
	}

	if u.User != nil {
		if _, hasPassword := u.User.Password(); hasPassword {
			u.User = url.UserPassword(u.User.Username(), "***")
		}
	}

	return u.String()
}
