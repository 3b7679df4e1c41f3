package model

import "fmt"

// AnalysisType governs engine node budgets, multi-PV, skipped plies, and
// which jobs a worker's permissions allow it to acquire.
type AnalysisType string

const (
	UserAnalysis   AnalysisType = "user"
	SystemAnalysis AnalysisType = "system"
	Deep           AnalysisType = "deep"
)

// IsValid reports whether t is one of the known analysis types.
func (t AnalysisType) IsValid() bool {
	switch t {
	case UserAnalysis, SystemAnalysis, Deep:
		return true
	default:
		return false
	}
}

func (t AnalysisType) String() string { return string(t) }

// ParseAnalysisType parses the wire representation of an analysis type.
func ParseAnalysisType(s string) (AnalysisType, error) {
	t := AnalysisType(s)
	if !t.IsValid() {
		return "", fmt.Errorf("model: invalid analysis type %q", s)
	}

	return t, nil
}

// AllAnalysisTypes lists every known analysis type, in a stable order used by
// /status and similar enumerations.
func AllAnalysisTypes() []AnalysisType {
	return []AnalysisType{UserAnalysis, SystemAnalysis, Deep}
}

// ReportOrigin identifies who or what requested a report, and determines its
// queue precedence.
type ReportOrigin string

const (
	Moderator   ReportOrigin = "moderator"
	Random      ReportOrigin = "random"
	Leaderboard ReportOrigin = "leaderboard"
	Tournament  ReportOrigin = "tournament"
)

// IsValid reports whether o is one of the known report origins.
func (o ReportOrigin) IsValid() bool {
	switch o {
	case Moderator, Random, Leaderboard, Tournament:
		return true
	default:
		return false
	}
}

func (o ReportOrigin) String() string { return string(o) }

// ParseReportOrigin parses the wire representation of a report origin.
func ParseReportOrigin(s string) (ReportOrigin, error) {
	o := ReportOrigin(s)
	if !o.IsValid() {
		return "", fmt.Errorf("model: invalid report origin %q", s)
	}

	return o, nil
}

// precedenceByOrigin is the total, pure mapping from report origin to queue
// precedence. Higher values are served first.
var precedenceByOrigin = map[ReportOrigin]int64{
	Moderator:   1_000_000,
	Tournament:  100,
	Leaderboard: 100,
	Random:      10,
}

// DefaultAdHocPrecedence is used for jobs created outside of report ingest
// (no report origin known), matching the reference implementation's fallback
// for jobs created without a parent report.
const DefaultAdHocPrecedence = 100

// PrecedenceForOrigin maps a report origin to its queue precedence.
func PrecedenceForOrigin(o ReportOrigin) int64 {
	if p, ok := precedenceByOrigin[o]; ok {
		return p
	}

	return DefaultAdHocPrecedence
}

// ReportType identifies the downstream consumer family a report targets.
// Only Irwin is currently implemented.
type ReportType string

const (
	Irwin ReportType = "irwin"
)

func (t ReportType) String() string { return string(t) }
