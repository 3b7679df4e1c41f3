package api

import "net/http"

// setupRoutes registers every endpoint the Worker API exposes (spec §4.6)
// plus the upstream report-ingest endpoint, on mux.
func (s *Server) setupRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /acquire", s.handleAcquire)
	mux.HandleFunc("POST /abort/{id}", s.handleAbort)
	mux.HandleFunc("POST /analysis/{id}", s.handleAnalysis)
	mux.HandleFunc("GET /key/{k}", s.handleKeyExists)
	mux.HandleFunc("GET /status", s.handleStatus)
	mux.HandleFunc("POST /ingest", s.handleIngest)

	mux.HandleFunc("GET /healthz", s.handleHealthz)
}
