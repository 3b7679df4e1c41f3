package api

import (
	"net/http"

	"github.com/lila-deepq/deepq/internal/api/middleware"
	"github.com/lila-deepq/deepq/internal/model"
)

// handleStatus implements GET /status: queue depth counters for every
// analysis type. Authentication is optional — present only to echo the
// caller's name back in the "key" field.
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	resp := StatusResponse{}

	for _, t := range model.AllAnalysisTypes() {
		st, err := s.queue.Status(r.Context(), t)
		if err != nil {
			WriteAppError(w, r, s.logger, err)

			return
		}

		qs := QueueStatus{Acquired: st.Acquired, Queued: st.Queued, OldestSeconds: st.OldestSeconds}

		switch t {
		case model.UserAnalysis:
			resp.Analysis.User = qs
		case model.SystemAnalysis:
			resp.Analysis.System = qs
		case model.Deep:
			resp.Analysis.Deep = qs
		}
	}

	if ac, ok := middleware.GetAuthContext(r.Context()); ok && ac.User != nil {
		resp.Key = &StatusKey{Name: ac.User.Name}
	}

	writeJSON(w, s.logger, http.StatusOK, resp)
}
