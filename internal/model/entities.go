package model

import (
	"errors"
	"time"
)

// ErrEMTLengthMismatch is returned when a Game's elapsed-move-time list is
// neither empty nor the same length as its move list.
var ErrEMTLengthMismatch = errors.New("model: emt length must be zero or equal to moves length")

type (
	// Game is a single chess game under analysis. Upserted by GameId: a
	// re-submission of the same game overwrites the prior record.
	Game struct {
		ID    GameId
		White *UserId
		Black *UserId
		// Moves is the ordered sequence of UCI moves, normalized from SAN at
		// ingest time.
		Moves []string
		// EMT is the ordered sequence of per-ply elapsed-move-times in
		// milliseconds. Either empty or exactly len(Moves) long.
		EMT []int
	}

	// ApiUser is a credential holder authorized to serve some subset of
	// analysis types.
	ApiUser struct {
		Key   ApiKey
		Name  string
		User  *UserId
		Perms []AnalysisType
	}

	// Report is one abuse-detection request covering a set of games for a
	// single suspect user.
	Report struct {
		ID             ReportId
		UserID         UserId
		Origin         ReportOrigin
		ReportType     ReportType
		GameIDs        []GameId
		DateRequested  time.Time
		DateCompleted  *time.Time
		SentToIrwin    bool
	}

	// Job is a single unit of analysis work tied to one game, optionally
	// belonging to a report.
	Job struct {
		ID              JobId
		GameID          GameId
		ReportID        *ReportId
		AnalysisType    AnalysisType
		Precedence      int64
		Owner           *ApiKey
		DateLastUpdated time.Time
		IsComplete      bool
	}

	// GameAnalysis is the immutable output of a completed job.
	GameAnalysis struct {
		ID              string
		JobID           JobId
		GameID          GameId
		Plies           []PlyAnalysis
		RequestedNodes  EngineNodes
		RequestedMultiPV int
	}

	// EngineNodes is the per-engine node budget requested for a job.
	EngineNodes struct {
		NNUE      int64
		Classical int64
	}
)

// Validate checks the EMT/Moves length invariant.
func (g *Game) Validate() error {
	if len(g.EMT) != 0 && len(g.EMT) != len(g.Moves) {
		return ErrEMTLengthMismatch
	}

	return nil
}

// HasPermission reports whether the api user may serve the given analysis
// type.
func (u *ApiUser) HasPermission(t AnalysisType) bool {
	for _, p := range u.Perms {
		if p == t {
			return true
		}
	}

	return false
}

// PlyKind discriminates the variants of PlyAnalysis.
type PlyKind int

const (
	PlySkipped PlyKind = iota
	PlyEmpty
	PlyFull
)

// Score is the engine evaluation of a position: either centipawns or a
// forced mate in N, both signed.
type Score struct {
	// Kind is "cp" or "mate"; exactly one of CP/Mate is meaningful.
	Kind string
	CP   int32
	Mate int32
}

// CpScore builds a centipawn Score.
func CpScore(cp int32) Score { return Score{Kind: "cp", CP: cp} }

// MateScore builds a mate-in-N Score.
func MateScore(n int32) Score { return Score{Kind: "mate", Mate: n} }

// PlyAnalysis is the engine's verdict on one ply: skipped entirely, an empty
// shallow eval, or a full evaluation with principal variation and timing.
type PlyAnalysis struct {
	Kind  PlyKind
	Depth int
	Score Score

	// Full-only fields.
	PV    []string
	Time  int64
	Nodes int64
	NPS   int64
}
