package api

import "github.com/lila-deepq/deepq/internal/model"

// FishnetInfo is the worker-identity envelope a request body may carry
// instead of (or alongside) a bearer header, per spec §4.6: "a
// {fishnet: {apikey, version}, ...} envelope inside the JSON body."
type FishnetInfo struct {
	APIKey  string `json:"apikey"`
	Version string `json:"version"`
}

// HasAPIKey is implemented by every request body shape that can carry a
// fishnet envelope, so the auth-extraction code in this package doesn't need
// a type switch per endpoint — spec §9's "dynamic dispatch in auth
// extraction" note, resolved here as one small interface rather than open
// polymorphism.
type HasAPIKey interface {
	FishnetAPIKey() string
}

// AcquireRequest is the body of POST /acquire.
type AcquireRequest struct {
	Fishnet FishnetInfo `json:"fishnet"`
}

// FishnetAPIKey implements HasAPIKey.
func (r AcquireRequest) FishnetAPIKey() string { return r.Fishnet.APIKey }

// AbortRequest is the body of POST /abort/{id}.
type AbortRequest struct {
	Fishnet FishnetInfo `json:"fishnet"`
}

// FishnetAPIKey implements HasAPIKey.
func (r AbortRequest) FishnetAPIKey() string { return r.Fishnet.APIKey }

// AnalysisRequest is the body of POST /analysis/{id}.
type AnalysisRequest struct {
	Fishnet   FishnetInfo   `json:"fishnet"`
	Stockfish StockfishInfo `json:"stockfish"`
	Analysis  []PlyWire     `json:"analysis"`
}

// FishnetAPIKey implements HasAPIKey.
func (r AnalysisRequest) FishnetAPIKey() string { return r.Fishnet.APIKey }

// StockfishInfo describes the engine build a worker ran, carried through
// verbatim and not otherwise interpreted by the broker.
type StockfishInfo struct {
	Name    string            `json:"name"`
	Options map[string]string `json:"options,omitempty"`
}

// PlyWire is the wire shape of one ply's analysis result. A ply with no
// "skipped" marker and no "score" is treated as PlySkipped; one with a score
// but no "pv" is PlyEmpty; one with both is PlyFull.
type PlyWire struct {
	Skipped bool       `json:"skipped,omitempty"`
	Depth   int        `json:"depth,omitempty"`
	Score   *ScoreWire `json:"score,omitempty"`
	PV      []string   `json:"pv,omitempty"`
	Time    int64      `json:"time,omitempty"`
	Nodes   int64      `json:"nodes,omitempty"`
	NPS     int64      `json:"nps,omitempty"`
}

// ScoreWire is the wire shape of an engine evaluation: exactly one of CP or
// Mate is set, both signed (spec §9's resolved open question).
type ScoreWire struct {
	CP   *int32 `json:"cp,omitempty"`
	Mate *int32 `json:"mate,omitempty"`
}

// toPlyAnalysis converts the wire shape to the model's PlyAnalysis,
// inferring the variant from which fields are present.
func (p PlyWire) toPlyAnalysis() model.PlyAnalysis {
	if p.Skipped || p.Score == nil {
		return model.PlyAnalysis{Kind: model.PlySkipped}
	}

	score := model.Score{}
	if p.Score.CP != nil {
		score = model.CpScore(*p.Score.CP)
	} else if p.Score.Mate != nil {
		score = model.MateScore(*p.Score.Mate)
	}

	if len(p.PV) == 0 {
		return model.PlyAnalysis{Kind: model.PlyEmpty, Depth: p.Depth, Score: score}
	}

	return model.PlyAnalysis{
		Kind:  model.PlyFull,
		Depth: p.Depth,
		Score: score,
		PV:    p.PV,
		Time:  p.Time,
		Nodes: p.Nodes,
		NPS:   p.NPS,
	}
}

// AcquireWork is the "work" sub-object of the acquire response.
type AcquireWork struct {
	Type    string       `json:"type"`
	ID      string       `json:"id"`
	Nodes   AcquireNodes `json:"nodes"`
	Depth   *int         `json:"depth,omitempty"`
	MultiPV *int         `json:"multipv,omitempty"`
}

// AcquireNodes is the per-engine node budget in the acquire response.
type AcquireNodes struct {
	NNUE      int64 `json:"nnue"`
	Classical int64 `json:"classical"`
}

// AcquireResponse is the bit-exact shape existing fishnet-style workers
// expect from a successful POST /acquire.
type AcquireResponse struct {
	Work          AcquireWork `json:"work"`
	GameID        string      `json:"game_id"` //nolint:tagliatelle
	Position      string      `json:"position"`
	Variant       string      `json:"variant"`
	Moves         string      `json:"moves"`
	SkipPositions []int       `json:"skipPositions"`
}

// StatusResponse is the body of GET /status.
type StatusResponse struct {
	Analysis StatusAnalysis `json:"analysis"`
	Key      *StatusKey     `json:"key,omitempty"`
}

// StatusAnalysis carries one queue snapshot per analysis type.
type StatusAnalysis struct {
	User   QueueStatus `json:"user"`
	System QueueStatus `json:"system"`
	Deep   QueueStatus `json:"deep"`
}

// QueueStatus mirrors queue.Status on the wire.
type QueueStatus struct {
	Acquired      int64 `json:"acquired"`
	Queued        int64 `json:"queued"`
	OldestSeconds int64 `json:"oldestSeconds"` //nolint:tagliatelle
}

// StatusKey describes the authenticated caller, present only when the
// request carried a valid credential.
type StatusKey struct {
	Name string `json:"name"`
}

// IngestResponse acknowledges a successfully ingested report.
type IngestResponse struct {
	ReportID    string `json:"reportId"`    //nolint:tagliatelle
	JobsCreated int    `json:"jobsCreated"` //nolint:tagliatelle
}
