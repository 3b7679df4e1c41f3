package aggregation

import (
	"github.com/lila-deepq/deepq/internal/model"
)

// scoreWire is the wire shape of one engine evaluation, matching the
// original implementation's signed centipawn/mate encoding (the open
// question about unsigned mate scores downstream is resolved in
// SPEC_FULL.md §13: this broker forwards what it computed, signed,
// end-to-end).
type scoreWire struct {
	CP   *int32 `json:"cp,omitempty"`
	Mate *int32 `json:"mate,omitempty"`
}

func scoreToWire(s model.Score) scoreWire {
	switch s.Kind {
	case "cp":
		cp := s.CP

		return scoreWire{CP: &cp}
	case "mate":
		m := s.Mate

		return scoreWire{Mate: &m}
	default:
		return scoreWire{}
	}
}

// irwinGame is one game of the downstream dispatch payload, field-for-field
// with spec.md §6's wire contract: "pgn" carries UCI moves (a naming
// artifact inherited from the upstream protocol this broker speaks), not
// the SAN text the key name suggests.
type irwinGame struct {
	ID       string      `json:"id"`
	White    *string     `json:"white,omitempty"`
	Black    *string     `json:"black,omitempty"`
	PGN      []string    `json:"pgn"`
	EMT      []int       `json:"emt,omitempty"`
	Analysis []scoreWire `json:"analysis"`
}

// irwinReport is the full downstream dispatch payload for one completed
// report. analyzedPositions is always empty: the original protocol reserves
// it for a feature this broker's ingest path never populates.
type irwinReport struct {
	PlayerID          string      `json:"playerId"` //nolint:tagliatelle
	Games             []irwinGame `json:"games"`
	AnalyzedPositions []int       `json:"analyzedPositions"` //nolint:tagliatelle
}
