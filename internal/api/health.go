package api

import "net/http"

// handleHealthz reports liveness by round-tripping the store.
func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	if err := s.queue.HealthCheck(r.Context()); err != nil {
		WriteAppError(w, r, s.logger, err)

		return
	}

	w.WriteHeader(http.StatusOK)
}
