package middleware

import (
	"log/slog"
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const (
	burstCapacityMultiplier    int     = 2
	maxKeysDefault             int     = 10000
	defaultGlobalRPS           int     = 100
	defaultKeyRPS              int     = 50
	defaultUnAuthRPS           int     = 10
	thresholdMultiplier        float64 = 0.8
	thresholdPercentage        int     = 80
	rateLimiterCleanupInterval         = 5 * time.Minute
	rateLimiterIdleTimeout             = 1 * time.Hour
)

type (
	// RateLimiter decides whether a request identified by keyID (empty for
	// unauthenticated requests) should be allowed through.
	RateLimiter interface {
		Allow(keyID string) bool
	}

	// InMemoryRateLimiter implements RateLimiter with three tiers of
	// golang.org/x/time/rate token buckets: a global limit applied to every
	// request, a per-key limit for authenticated workers, and a stricter
	// limit for unauthenticated requests. A background goroutine evicts
	// buckets for keys idle longer than idleTimeout, bounding memory growth
	// under a rotating or leaked set of worker keys.
	InMemoryRateLimiter struct {
		global          *rate.Limiter
		perKey          map[string]*keyLimiter
		unauthenticated *rate.Limiter
		mu              sync.RWMutex
		cleanupTicker   *time.Ticker
		done            chan struct{}

		keyRPS          int
		keyBurst        int
		cleanupInterval time.Duration
		idleTimeout     time.Duration
		maxKeys         int
	}

	keyLimiter struct {
		limiter    *rate.Limiter
		lastAccess time.Time
		mu         sync.Mutex
	}
)

// NewInMemoryRateLimiter builds a rate limiter from cfg. Burst capacity
// defaults to 2x the configured rate for any tier left at 0.
func NewInMemoryRateLimiter(cfg *Config) *InMemoryRateLimiter {
	globalBurst := computeBurstCapacity(cfg.GlobalRPS, cfg.GlobalBurst)
	keyBurst := computeBurstCapacity(cfg.KeyRPS, cfg.KeyBurst)
	unauthBurst := computeBurstCapacity(cfg.UnAuthRPS, cfg.UnAuthBurst)

	rl := &InMemoryRateLimiter{
		global:          rate.NewLimiter(rate.Limit(cfg.GlobalRPS), globalBurst),
		perKey:          make(map[string]*keyLimiter),
		unauthenticated: rate.NewLimiter(rate.Limit(cfg.UnAuthRPS), unauthBurst),
		done:            make(chan struct{}),
		keyRPS:          cfg.KeyRPS,
		keyBurst:        keyBurst,
		cleanupInterval: cfg.CleanupInterval,
		idleTimeout:     cfg.IdleTimeout,
		maxKeys:         cfg.MaxKeys,
	}

	rl.startCleanup()

	return rl
}

func computeBurstCapacity(rps, override int) int {
	if override > 0 {
		return override
	}

	return rps * burstCapacityMultiplier
}

// Allow implements RateLimiter.
func (rl *InMemoryRateLimiter) Allow(keyID string) bool {
	if !rl.global.Allow() {
		return false
	}

	if keyID == "" {
		return rl.unauthenticated.Allow()
	}

	rl.mu.RLock()
	kl, ok := rl.perKey[keyID]
	rl.mu.RUnlock()

	if !ok {
		rl.mu.Lock()
		if kl, ok = rl.perKey[keyID]; !ok {
			kl = &keyLimiter{
				limiter:    rate.NewLimiter(rate.Limit(rl.keyRPS), rl.keyBurst),
				lastAccess: time.Now(),
			}

			rl.perKey[keyID] = kl

			currentCount := len(rl.perKey)
			threshold := int(float64(rl.maxKeys) * thresholdMultiplier)

			if currentCount >= threshold {
				slog.Warn("rate limiter approaching max keys limit",
					"current_keys", currentCount,
					"max_keys", rl.maxKeys,
					"threshold_percent", thresholdPercentage,
				)
			}
		}
		rl.mu.Unlock()
	}

	kl.mu.Lock()
	kl.lastAccess = time.Now()
	kl.mu.Unlock()

	return kl.limiter.Allow()
}

// Close stops the cleanup goroutine. Must be called when the limiter is no
// longer needed.
func (rl *InMemoryRateLimiter) Close() {
	if rl.cleanupTicker != nil {
		rl.cleanupTicker.Stop()
	}

	close(rl.done)
}

func (rl *InMemoryRateLimiter) startCleanup() {
	interval := rl.cleanupInterval
	if interval == 0 {
		interval = rateLimiterCleanupInterval
	}

	rl.cleanupTicker = time.NewTicker(interval)

	go func() {
		for {
			select {
			case <-rl.cleanupTicker.C:
				rl.cleanup()
			case <-rl.done:
				return
			}
		}
	}()
}

func (rl *InMemoryRateLimiter) cleanup() {
	idleTimeout := rl.idleTimeout
	if idleTimeout == 0 {
		idleTimeout = rateLimiterIdleTimeout
	}

	now := time.Now()

	rl.mu.Lock()
	defer rl.mu.Unlock()

	for keyID, kl := range rl.perKey {
		kl.mu.Lock()
		lastAccess := kl.lastAccess
		kl.mu.Unlock()

		if now.Sub(lastAccess) > idleTimeout {
			delete(rl.perKey, keyID)
		}
	}
}

// RateLimit returns middleware enforcing limiter against every request. It
// must sit after Authenticate in the chain so GetAuthContext can supply the
// per-key identity; requests with no AuthContext are rate limited as
// unauthenticated.
func RateLimit(limiter RateLimiter, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			keyID := ""
			if ac, ok := GetAuthContext(r.Context()); ok && ac.User != nil {
				keyID = string(ac.User.Key)
			}

			if !limiter.Allow(keyID) {
				correlationID := GetCorrelationID(r.Context())
				detail := "rate limit exceeded, retry later"

				if err := writeRFC7807Error(w, r, http.StatusTooManyRequests, detail, correlationID); err != nil {
					logger.Error("failed to write rate limit response",
						slog.String("correlation_id", correlationID),
						slog.String("error", err.Error()),
					)

					http.Error(w, detail, http.StatusTooManyRequests)
				}

				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
