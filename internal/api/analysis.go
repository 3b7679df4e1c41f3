package api

import (
	"fmt"
	"net/http"

	"github.com/lila-deepq/deepq/internal/apperror"
	"github.com/lila-deepq/deepq/internal/model"
)

// handleAnalysis implements POST /analysis/{id}: records a completed job's
// per-ply analysis and marks it done. 204 on success, whether or not this
// call is the one that actually flipped is_complete — a duplicate
// resubmission of an already-complete job is not an error, per spec S6.
func (s *Server) handleAnalysis(w http.ResponseWriter, r *http.Request) {
	var req AnalysisRequest
	if err := decodeJSON(r, &req); err != nil {
		WriteAppError(w, r, s.logger, apperror.Wrap(apperror.MalformedBody, "api: malformed analysis body", err))

		return
	}

	user, err := resolveWorker(r.Context(), s.authStore, r, req)
	if err != nil {
		WriteAppError(w, r, s.logger, err)

		return
	}

	jobID := model.JobId(r.PathValue("id"))

	job, err := s.queue.JobByID(r.Context(), jobID)
	if err != nil {
		WriteAppError(w, r, s.logger, err)

		return
	}

	game, err := s.games.FindByID(r.Context(), job.GameID)
	if err != nil {
		WriteAppError(w, r, s.logger, err)

		return
	}

	if len(req.Analysis) != len(game.Moves) {
		WriteAppError(w, r, s.logger, apperror.New(
			apperror.InvalidMoves,
			fmt.Sprintf("api: analysis length %d does not match move count %d", len(req.Analysis), len(game.Moves)),
		))

		return
	}

	plies := make([]model.PlyAnalysis, len(req.Analysis))
	for i, p := range req.Analysis {
		plies[i] = p.toPlyAnalysis()
	}

	policy := model.PolicyFor(job.AnalysisType)

	analysis := &model.GameAnalysis{
		GameID:           job.GameID,
		Plies:            plies,
		RequestedNodes:   policy.Nodes,
		RequestedMultiPV: policy.MultiPV,
	}

	if _, err := s.queue.Complete(r.Context(), user.Key, jobID, analysis); err != nil {
		WriteAppError(w, r, s.logger, err)

		return
	}

	w.WriteHeader(http.StatusNoContent)
}
