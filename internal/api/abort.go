package api

import (
	"net/http"

	"github.com/lila-deepq/deepq/internal/apperror"
	"github.com/lila-deepq/deepq/internal/model"
)

// handleAbort implements POST /abort/{id}: releases the caller's lease on a
// job. Always 204, matching spec §4.6 — an abort of a job the caller does
// not own is a no-op, not an error.
func (s *Server) handleAbort(w http.ResponseWriter, r *http.Request) {
	var req AbortRequest
	if err := decodeJSON(r, &req); err != nil {
		WriteAppError(w, r, s.logger, apperror.Wrap(apperror.MalformedBody, "api: malformed abort body", err))

		return
	}

	user, err := resolveWorker(r.Context(), s.authStore, r, req)
	if err != nil {
		WriteAppError(w, r, s.logger, err)

		return
	}

	jobID := model.JobId(r.PathValue("id"))

	if err := s.queue.Unassign(r.Context(), user.Key, jobID); err != nil {
		WriteAppError(w, r, s.logger, err)

		return
	}

	w.WriteHeader(http.StatusNoContent)
}
