package api

import (
	"net/http"

	"github.com/lila-deepq/deepq/internal/model"
)

// handleKeyExists implements GET /key/{k}: an existence probe for a bearer
// key, used by dashboards to validate a key without ever handing out the
// ApiUser it resolves to. 200 empty body if it resolves, 404 otherwise —
// Resolve's own dummy-bcrypt-on-miss behavior keeps this probe from being a
// timing oracle for key enumeration.
func (s *Server) handleKeyExists(w http.ResponseWriter, r *http.Request) {
	key := model.ApiKey(r.PathValue("k"))

	if _, err := s.authStore.Resolve(r.Context(), key); err != nil {
		w.WriteHeader(http.StatusNotFound)

		return
	}

	w.WriteHeader(http.StatusOK)
}
