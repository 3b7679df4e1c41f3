package queue

import (
	"time"

	"github.com/lila-deepq/deepq/internal/model"
)

// jobsCollection is the Store collection jobs live in.
const jobsCollection = "jobs"

// gameAnalysesCollection is the Store collection completed analyses live in.
const gameAnalysesCollection = "game_analyses"

// jobDoc is the on-the-wire (jsonb) shape of a Job. Field names here are
// load-bearing: internal/store's generic Filter/Mutation helpers in this
// package reference them by jsonb key.
type jobDoc struct {
	ID              string     `json:"id"`
	GameID          string     `json:"game_id"`
	ReportID        *string    `json:"report_id,omitempty"`
	AnalysisType    string     `json:"analysis_type"`
	Precedence      int64      `json:"precedence"`
	Owner           *string    `json:"owner,omitempty"`
	DateLastUpdated time.Time  `json:"date_last_updated"`
	IsComplete      bool       `json:"is_complete"`
}

func (d jobDoc) DocID() string { return d.ID }

func jobToDoc(j *model.Job) jobDoc {
	d := jobDoc{
		ID:              string(j.ID),
		GameID:          string(j.GameID.Canon()),
		AnalysisType:    j.AnalysisType.String(),
		Precedence:      j.Precedence,
		DateLastUpdated: j.DateLastUpdated,
		IsComplete:      j.IsComplete,
	}

	if j.ReportID != nil {
		rid := string(*j.ReportID)
		d.ReportID = &rid
	}

	if j.Owner != nil {
		owner := string(*j.Owner)
		d.Owner = &owner
	}

	return d
}

func docToJob(d jobDoc) (*model.Job, error) {
	at, err := model.ParseAnalysisType(d.AnalysisType)
	if err != nil {
		return nil, err
	}

	job := &model.Job{
		ID:              model.JobId(d.ID),
		GameID:          model.GameId(d.GameID),
		AnalysisType:    at,
		Precedence:      d.Precedence,
		DateLastUpdated: d.DateLastUpdated,
		IsComplete:      d.IsComplete,
	}

	if d.ReportID != nil {
		rid := model.ReportId(*d.ReportID)
		job.ReportID = &rid
	}

	if d.Owner != nil {
		owner := model.ApiKey(*d.Owner)
		job.Owner = &owner
	}

	return job, nil
}

// gameAnalysisDoc is the jsonb shape of a stored GameAnalysis.
type gameAnalysisDoc struct {
	ID               string             `json:"id"`
	JobID            string             `json:"job_id"`
	GameID           string             `json:"game_id"`
	Plies            []plyDoc           `json:"plies"`
	RequestedNNUE    int64              `json:"requested_nnue_nodes"`
	RequestedClassical int64            `json:"requested_classical_nodes"`
	RequestedMultiPV int                `json:"requested_multi_pv"`
	// CreatedAt orders duplicate analyses for the same job (the tolerated
	// orphan case in §4.2.6) so readers can pick the newest as authoritative.
	CreatedAt        time.Time          `json:"created_at"`
}

func (d gameAnalysisDoc) DocID() string { return d.ID }

type plyDoc struct {
	Kind  string  `json:"kind"` // "skipped" | "empty" | "full"
	Depth int     `json:"depth,omitempty"`
	Score *scoreDoc `json:"score,omitempty"`
	PV    []string `json:"pv,omitempty"`
	Time  int64   `json:"time,omitempty"`
	Nodes int64   `json:"nodes,omitempty"`
	NPS   int64   `json:"nps,omitempty"`
}

type scoreDoc struct {
	CP   *int32 `json:"cp,omitempty"`
	Mate *int32 `json:"mate,omitempty"`
}

func analysisToDoc(id string, a *model.GameAnalysis) gameAnalysisDoc {
	plies := make([]plyDoc, len(a.Plies))

	for i, p := range a.Plies {
		pd := plyDoc{Depth: p.Depth, PV: p.PV, Time: p.Time, Nodes: p.Nodes, NPS: p.NPS}

		switch p.Kind {
		case model.PlySkipped:
			pd.Kind = "skipped"
		case model.PlyEmpty:
			pd.Kind = "empty"
			pd.Score = scoreToDoc(p.Score)
		case model.PlyFull:
			pd.Kind = "full"
			pd.Score = scoreToDoc(p.Score)
		}

		plies[i] = pd
	}

	return gameAnalysisDoc{
		ID:                 id,
		JobID:              string(a.JobID),
		GameID:             string(a.GameID.Canon()),
		Plies:              plies,
		RequestedNNUE:      a.RequestedNodes.NNUE,
		RequestedClassical: a.RequestedNodes.Classical,
		RequestedMultiPV:   a.RequestedMultiPV,
		CreatedAt:          time.Now().UTC(),
	}
}

func scoreToDoc(s model.Score) *scoreDoc {
	switch s.Kind {
	case "cp":
		cp := s.CP
		return &scoreDoc{CP: &cp}
	case "mate":
		m := s.Mate
		return &scoreDoc{Mate: &m}
	default:
		return nil
	}
}
