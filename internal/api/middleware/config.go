package middleware

import (
	"time"

	"github.com/lila-deepq/deepq/internal/config"
)

// Config holds rate limiter configuration: requests per second for the
// three tiers (global, per-key, unauthenticated), optional burst overrides,
// and idle-bucket cleanup settings.
type Config struct {
	GlobalRPS int
	KeyRPS    int
	UnAuthRPS int

	GlobalBurst int
	KeyBurst    int
	UnAuthBurst int

	CleanupInterval time.Duration
	IdleTimeout     time.Duration
	MaxKeys         int
}

// LoadConfig reads rate limiter configuration from the environment, falling
// back to the same defaults the InMemoryRateLimiter documents.
func LoadConfig() *Config {
	return &Config{
		GlobalRPS: config.GetEnvInt("LILA_DEEPQ_GLOBAL_RPS", defaultGlobalRPS),
		KeyRPS:    config.GetEnvInt("LILA_DEEPQ_KEY_RPS", defaultKeyRPS),
		UnAuthRPS: config.GetEnvInt("LILA_DEEPQ_UNAUTH_RPS", defaultUnAuthRPS),

		GlobalBurst: config.GetEnvInt("LILA_DEEPQ_GLOBAL_BURST", 0),
		KeyBurst:    config.GetEnvInt("LILA_DEEPQ_KEY_BURST", 0),
		UnAuthBurst: config.GetEnvInt("LILA_DEEPQ_UNAUTH_BURST", 0),

		CleanupInterval: config.GetEnvDuration("LILA_DEEPQ_RATE_LIMIT_CLEANUP_INTERVAL", rateLimiterCleanupInterval),
		IdleTimeout:     config.GetEnvDuration("LILA_DEEPQ_RATE_LIMIT_IDLE_TIMEOUT", rateLimiterIdleTimeout),
		MaxKeys:         config.GetEnvInt("LILA_DEEPQ_RATE_LIMIT_MAX_KEYS", maxKeysDefault),
	}
}
