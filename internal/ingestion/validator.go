package ingestion

import (
	"fmt"

	"github.com/lila-deepq/deepq/internal/apperror"
	"github.com/lila-deepq/deepq/internal/model"
)

// Validator performs structural validation of an inbound Request before any
// move translation or persistence is attempted. It carries no mutable state
// and is safe for concurrent use, created once at server boot.
type Validator struct{}

// NewValidator constructs a Validator.
func NewValidator() *Validator {
	return &Validator{}
}

// Validate checks the structural shape of req: a known report origin, a
// non-empty game list, and well-formed per-game fields. It does not validate
// move legality — that happens during SAN-to-UCI translation, which is where
// an illegal move produces the spec's InvalidMoves error.
func (v *Validator) Validate(req *Request) error {
	if req.User.ID == "" {
		return apperror.New(apperror.InvalidMoves, "ingestion: request.user.id is required")
	}

	if _, err := model.ParseReportOrigin(req.Origin); err != nil {
		return apperror.Wrap(apperror.InvalidMoves, "ingestion: invalid report origin", err)
	}

	if len(req.Games) == 0 {
		return apperror.New(apperror.InvalidMoves, "ingestion: request.games must be non-empty")
	}

	for i, g := range req.Games {
		if err := v.validateGame(i, g); err != nil {
			return err
		}
	}

	return nil
}

func (v *Validator) validateGame(index int, g GameInput) error {
	if g.ID == "" {
		return apperror.New(apperror.InvalidMoves, fmt.Sprintf("ingestion: games[%d].id is required", index))
	}

	if len(g.EMTs) != 0 {
		// The emt/moves length invariant is only checkable after SAN->UCI
		// translation produces the move count; callers re-check it there.
		for _, t := range g.EMTs {
			if t < 0 {
				return apperror.New(
					apperror.InvalidMoves,
					fmt.Sprintf("ingestion: games[%d].emts contains a negative elapsed time", index),
				)
			}
		}
	}

	return nil
}
