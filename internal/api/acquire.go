package api

import (
	"log/slog"
	"net/http"

	"github.com/lila-deepq/deepq/internal/apperror"
	"github.com/lila-deepq/deepq/internal/model"
)

// handleAcquire implements POST /acquire: assigns at most one job to the
// authenticated worker and returns its payload, or 204 if none is available.
func (s *Server) handleAcquire(w http.ResponseWriter, r *http.Request) {
	var req AcquireRequest
	if err := decodeJSON(r, &req); err != nil {
		WriteAppError(w, r, s.logger, apperror.Wrap(apperror.MalformedBody, "api: malformed acquire body", err))

		return
	}

	user, err := resolveWorker(r.Context(), s.authStore, r, req)
	if err != nil {
		WriteAppError(w, r, s.logger, err)

		return
	}

	job, err := s.queue.Assign(r.Context(), user)
	if err != nil {
		WriteAppError(w, r, s.logger, err)

		return
	}

	if job == nil {
		w.WriteHeader(http.StatusNoContent)

		return
	}

	game, err := s.games.FindByID(r.Context(), job.GameID)
	if err != nil {
		if apperror.Is(err, apperror.NotFound) {
			s.logger.Warn("acquire: job references a missing game, deleting",
				slog.String("job_id", string(job.ID)),
				slog.String("game_id", string(job.GameID)),
			)

			if delErr := s.queue.Delete(r.Context(), job.ID); delErr != nil {
				WriteAppError(w, r, s.logger, delErr)

				return
			}

			w.WriteHeader(http.StatusNoContent)

			return
		}

		WriteAppError(w, r, s.logger, err)

		return
	}

	writeJSON(w, s.logger, http.StatusOK, buildAcquireResponse(job, game))
}

// buildAcquireResponse assembles the bit-exact acquire payload existing
// fishnet-style workers expect, per the job's analysis-type policy.
func buildAcquireResponse(job *model.Job, game *model.Game) AcquireResponse {
	policy := model.PolicyFor(job.AnalysisType)

	resp := AcquireResponse{
		Work: AcquireWork{
			Type: "analysis",
			ID:   string(job.ID),
			Nodes: AcquireNodes{
				NNUE:      policy.Nodes.NNUE,
				Classical: policy.Nodes.Classical,
			},
		},
		GameID:        string(game.ID),
		Position:      startingFEN,
		Variant:       "standard",
		Moves:         joinMoves(game.Moves),
		SkipPositions: policy.SkipPositions,
	}

	if policy.MultiPV > 0 {
		mpv := policy.MultiPV
		resp.Work.MultiPV = &mpv
	}

	return resp
}

func joinMoves(moves []string) string {
	out := ""

	for i, m := range moves {
		if i > 0 {
			out += " "
		}

		out += m
	}

	return out
}
