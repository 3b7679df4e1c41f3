// Package api is the Worker API (spec component C7): the HTTP surface
// analysis workers speak (acquire/abort/analysis/key/status) plus the
// upstream report-ingest endpoint. It is the only package that translates an
// apperror.Kind into a wire response — every other package returns
// *apperror.Error and lets this one decide the status code.
package api

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/lila-deepq/deepq/internal/api/middleware"
	"github.com/lila-deepq/deepq/internal/apperror"
)

// ProblemDetail represents an RFC 7807 Problem Details structure.
// See https://tools.ietf.org/html/rfc7807 for specification.
type ProblemDetail struct {
	Type          string `json:"type"`
	Title         string `json:"title"`
	Status        int    `json:"status"`
	Detail        string `json:"detail,omitempty"`
	Instance      string `json:"instance,omitempty"`
	CorrelationID string `json:"correlationId,omitempty"`
}

// NewProblemDetail creates a new RFC 7807 Problem Detail.
func NewProblemDetail(status int, title, detail string) *ProblemDetail {
	return &ProblemDetail{
		Type:   fmt.Sprintf("https://lila-deepq.example/problems/%d", status),
		Title:  title,
		Status: status,
		Detail: detail,
	}
}

// WriteErrorResponse writes an RFC 7807 compliant error response.
func WriteErrorResponse(w http.ResponseWriter, r *http.Request, logger *slog.Logger, problem *ProblemDetail) {
	correlationID := middleware.GetCorrelationID(r.Context())

	if problem.CorrelationID == "" {
		problem.CorrelationID = correlationID
	}

	if problem.Instance == "" {
		problem.Instance = r.URL.Path
	}

	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(problem.Status)

	if err := json.NewEncoder(w).Encode(problem); err != nil {
		logger.Error("failed to encode error response",
			slog.String("correlation_id", correlationID),
			slog.String("path", r.URL.Path),
			slog.String("method", r.Method),
			slog.Any("encode_error", err),
			slog.Int("status", problem.Status),
		)

		http.Error(w, "internal server error", http.StatusInternalServerError)
	}
}

// StatusForKind maps a closed apperror.Kind to its HTTP status, per spec §7.
// Kind values that the spec routes away before they ever reach this package
// (Conflict, swallowed at atomic-latch call sites; IncompleteAnalysis and
// DownstreamDispatchFailed, both handled entirely inside the Aggregator) still
// get a status if one surfaces here: Conflict 409, DownstreamDispatchFailed
// 502, IncompleteAnalysis 500.
func StatusForKind(k apperror.Kind) int {
	switch k {
	case apperror.Connectivity:
		return http.StatusServiceUnavailable
	case apperror.NotFound:
		return http.StatusNotFound
	case apperror.InvalidMoves, apperror.MalformedBody:
		return http.StatusBadRequest
	case apperror.MalformedHeader, apperror.Unauthenticated:
		return http.StatusUnauthorized
	case apperror.Forbidden:
		return http.StatusForbidden
	case apperror.Conflict:
		return http.StatusConflict
	case apperror.DownstreamDispatchFailed:
		return http.StatusBadGateway
	case apperror.IncompleteAnalysis, apperror.Internal:
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}

// titleForStatus gives the RFC 7807 title conventionally paired with status.
func titleForStatus(status int) string {
	if title := http.StatusText(status); title != "" {
		return title
	}

	return "Request Failed"
}

// WriteAppError translates err into an RFC 7807 response via StatusForKind,
// the single point where an internal *apperror.Error becomes a wire status.
func WriteAppError(w http.ResponseWriter, r *http.Request, logger *slog.Logger, err error) {
	status := StatusForKind(apperror.KindOf(err))

	problem := NewProblemDetail(status, titleForStatus(status), err.Error())

	WriteErrorResponse(w, r, logger, problem)
}
