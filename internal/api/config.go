package api

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/lila-deepq/deepq/internal/config"
)

const (
	defaultReadTimeout     = 30 * time.Second
	defaultWriteTimeout    = 30 * time.Second
	defaultShutdownTimeout = 15 * time.Second
)

// Static validation errors.
var (
	ErrEmptyBind              = errors.New("api: bind address cannot be empty")
	ErrInvalidReadTimeout     = errors.New("api: read timeout must be positive")
	ErrInvalidWriteTimeout    = errors.New("api: write timeout must be positive")
	ErrInvalidShutdownTimeout = errors.New("api: shutdown timeout must be positive")
)

// ServerConfig holds the HTTP-specific settings the Worker API server needs,
// derived from the process-wide config.Config rather than reading the
// environment itself a second time.
type ServerConfig struct {
	Bind            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
	LogLevel        slog.Level
}

// NewServerConfig derives a ServerConfig from the broker's process config.
func NewServerConfig(cfg *config.Config) ServerConfig {
	return ServerConfig{
		Bind:            cfg.Bind,
		ReadTimeout:     defaultReadTimeout,
		WriteTimeout:    defaultWriteTimeout,
		ShutdownTimeout: cfg.ShutdownGrace,
		LogLevel:        cfg.LogLevel,
	}
}

// Validate checks that every required setting is present and well-formed.
func (c ServerConfig) Validate() error {
	if c.Bind == "" {
		return ErrEmptyBind
	}

	if c.ReadTimeout <= 0 {
		return fmt.Errorf("%w: got %v", ErrInvalidReadTimeout, c.ReadTimeout)
	}

	if c.WriteTimeout <= 0 {
		return fmt.Errorf("%w: got %v", ErrInvalidWriteTimeout, c.WriteTimeout)
	}

	if c.ShutdownTimeout <= 0 {
		return fmt.Errorf("%w: got %v", ErrInvalidShutdownTimeout, c.ShutdownTimeout)
	}

	return nil
}
