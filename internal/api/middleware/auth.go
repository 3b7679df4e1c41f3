// Package middleware provides the HTTP middleware chain shared by every
// route the Worker API exposes: correlation IDs, panic recovery,
// authentication, rate limiting, and request logging.
package middleware

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/lila-deepq/deepq/internal/apiauth"
	"github.com/lila-deepq/deepq/internal/apperror"
	"github.com/lila-deepq/deepq/internal/model"
)

// authContextKey is the context key for the authenticated caller.
// Using a struct type prevents collisions with other context keys.
type authContextKey struct{}

// AuthContext carries the authenticated worker's identity into downstream
// handlers. It is set by Authenticate after a successful key resolution.
type AuthContext struct {
	User     *model.ApiUser
	AuthTime time.Time
}

// GetAuthContext extracts the authenticated caller from ctx.
// Returns (context, true) if Authenticate ran and succeeded.
func GetAuthContext(ctx context.Context) (AuthContext, bool) {
	ac, ok := ctx.Value(authContextKey{}).(AuthContext)

	return ac, ok
}

// SetAuthContext attaches ac to ctx.
func SetAuthContext(ctx context.Context, ac AuthContext) context.Context {
	return context.WithValue(ctx, authContextKey{}, ac)
}

// extractAPIKey extracts the bearer key from request headers. It checks
// X-Api-Key first (primary), then falls back to Authorization: Bearer
// (secondary). Returns ("", false) if neither is present or well-formed.
//
// Security considerations:
//   - Rejects keys containing newlines (header injection prevention)
//   - Trims whitespace from keys
//   - Case-sensitive "Bearer " prefix check
//   - X-Api-Key takes precedence over Authorization header
func extractAPIKey(r *http.Request) (string, bool) {
	if key := r.Header.Get("X-Api-Key"); key != "" {
		return validateAPIKey(key)
	}

	if auth := r.Header.Get("Authorization"); strings.HasPrefix(auth, "Bearer ") {
		return validateAPIKey(strings.TrimPrefix(auth, "Bearer "))
	}

	return "", false
}

// validateAPIKey trims and rejects header-injection or empty keys.
func validateAPIKey(key string) (string, bool) {
	if strings.ContainsAny(key, "\r\n") {
		return "", false
	}

	key = strings.TrimSpace(key)
	if key == "" {
		return "", false
	}

	return key, true
}

// Authenticate creates middleware that resolves a bearer API key from the
// request header via store, when one is present, and enriches the request
// context with an AuthContext. Not every route the Worker API exposes
// requires a credential (/key, /status, and the upstream ingest endpoint do
// not), so a request that carries no header key proceeds with an empty
// AuthContext rather than being rejected here — routes that require
// authentication check GetAuthContext themselves, and a worker may instead
// carry its key in a fishnet envelope inside the JSON body, which only the
// handler can see. A header key that store.Resolve rejects (unknown, or
// known but failing bcrypt verification) always fails the request here,
// since a bad credential is never equivalent to no credential.
func Authenticate(store *apiauth.Store, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			key, present := extractAPIKey(r)

			var ac AuthContext

			if present {
				user, err := store.Resolve(r.Context(), model.ApiKey(key))
				if err != nil {
					writeAuthError(w, r, logger, err)

					return
				}

				ac = AuthContext{User: user, AuthTime: time.Now()}

				logger.Info("api key authenticated",
					slog.String("name", user.Name),
					slog.Duration("auth_latency", time.Since(start)),
					slog.String("correlation_id", GetCorrelationID(r.Context())),
					slog.String("endpoint", r.URL.Path),
				)
			}

			next.ServeHTTP(w, r.WithContext(SetAuthContext(r.Context(), ac)))
		})
	}
}

// writeAuthError writes an RFC 7807 compliant error response for an
// authentication failure, mapping its apperror.Kind to an HTTP status.
func writeAuthError(w http.ResponseWriter, r *http.Request, logger *slog.Logger, err error) {
	correlationID := GetCorrelationID(r.Context())

	status := http.StatusUnauthorized
	if apperror.KindOf(err) == apperror.Forbidden {
		status = http.StatusForbidden
	}

	logger.Warn("authentication failed",
		slog.String("reason", err.Error()),
		slog.String("correlation_id", correlationID),
		slog.String("endpoint", r.URL.Path),
		slog.String("remote_addr", r.RemoteAddr),
	)

	detail := "invalid or missing api key"
	if writeErr := writeRFC7807Error(w, r, status, detail, correlationID); writeErr != nil {
		logger.Error("failed to write auth error response",
			slog.String("correlation_id", correlationID),
			slog.Any("error", writeErr),
		)
	}
}

// writeRFC7807Error writes a minimal RFC 7807 Problem Details body without
// importing the api package (which already imports middleware). The api
// package's own error writer is the canonical one; this one only covers the
// handful of statuses auth and rate-limit failures can produce.
func writeRFC7807Error(w http.ResponseWriter, r *http.Request, status int, detail, correlationID string) error {
	var title string

	switch status {
	case http.StatusUnauthorized:
		title = "Unauthorized"
	case http.StatusForbidden:
		title = "Forbidden"
	case http.StatusTooManyRequests:
		title = "Too Many Requests"
	default:
		title = "Request Failed"
	}

	problem := map[string]any{
		"type":           fmt.Sprintf("https://lila-deepq.example/problems/%d", status),
		"title":          title,
		"status":         status,
		"detail":         detail,
		"instance":       r.URL.Path,
		"correlation_id": correlationID,
	}

	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(status)

	return json.NewEncoder(w).Encode(problem)
}
