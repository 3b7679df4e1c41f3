package api

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/lila-deepq/deepq/internal/chess"
)

// startingFEN is the position every acquired job's moves are replayed from
// — the broker only ever analyzes standard games from the initial position.
const startingFEN = chess.StartingFEN

// writeJSON encodes body as the response, logging (without failing the
// request further) if encoding itself breaks.
func writeJSON(w http.ResponseWriter, logger *slog.Logger, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(body); err != nil {
		logger.Error("api: failed to encode response", slog.Any("error", err))
	}
}

// decodeJSON decodes the request body into dst. Callers wrap a non-nil
// error as apperror.MalformedBody before routing it through WriteAppError.
func decodeJSON(r *http.Request, dst any) error {
	if r.Body == nil {
		return nil
	}

	return json.NewDecoder(r.Body).Decode(dst)
}
