package api

import (
	"net/http"

	"github.com/lila-deepq/deepq/internal/apperror"
	"github.com/lila-deepq/deepq/internal/ingestion"
)

// ingestEnvelope decodes either a real ingestion.Request or a keep-alive
// heartbeat frame in a single pass — a cheap peek at one boolean field
// rather than a failed decode attempt against the full Request shape.
type ingestEnvelope struct {
	ingestion.Request
	ingestion.KeepAlive
}

// handleIngest implements the upstream report-ingest endpoint: accepts a
// report, or silently accepts and ignores a keep-alive frame.
func (s *Server) handleIngest(w http.ResponseWriter, r *http.Request) {
	var env ingestEnvelope
	if err := decodeJSON(r, &env); err != nil {
		WriteAppError(w, r, s.logger, apperror.Wrap(apperror.MalformedBody, "api: malformed ingest body", err))

		return
	}

	if env.KeepAliveFlag {
		w.WriteHeader(http.StatusNoContent)

		return
	}

	result, err := s.ingestor.Ingest(r.Context(), &env.Request)
	if err != nil {
		WriteAppError(w, r, s.logger, err)

		return
	}

	writeJSON(w, s.logger, http.StatusOK, IngestResponse{ReportID: result.ReportID, JobsCreated: result.JobsCreated})
}
