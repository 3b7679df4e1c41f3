package model

// AnalysisPolicy describes the engine parameters a worker should apply for a
// given analysis type, and which plies it may skip entirely.
type AnalysisPolicy struct {
	Nodes         EngineNodes
	MultiPV       int // 0 means "not applicable"
	SkipPositions []int
}

// skipZeroToNine is the shared skip-list for the two shallow analysis types:
// the engine skips plies 0 through 9 (opening book territory).
func skipZeroToNine() []int {
	skip := make([]int, 10)
	for i := range skip {
		skip[i] = i
	}

	return skip
}

var policyByType = map[AnalysisType]AnalysisPolicy{
	UserAnalysis: {
		Nodes:         EngineNodes{NNUE: 2_250_000, Classical: 4_050_000},
		SkipPositions: skipZeroToNine(),
	},
	SystemAnalysis: {
		Nodes:         EngineNodes{NNUE: 2_250_000, Classical: 4_050_000},
		SkipPositions: skipZeroToNine(),
	},
	Deep: {
		Nodes:         EngineNodes{NNUE: 2_500_000, Classical: 4_500_000},
		MultiPV:       5,
		SkipPositions: []int{},
	},
}

// PolicyFor returns the engine policy for an analysis type. Callers must only
// pass a valid AnalysisType (checked with IsValid upstream); an unknown type
// returns the zero policy.
func PolicyFor(t AnalysisType) AnalysisPolicy {
	return policyByType[t]
}
