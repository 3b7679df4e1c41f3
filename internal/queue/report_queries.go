package queue

import (
	"context"
	"sort"

	"github.com/lila-deepq/deepq/internal/apperror"
	"github.com/lila-deepq/deepq/internal/model"
	"github.com/lila-deepq/deepq/internal/store"
)

// JobsForReport returns every job belonging to reportID. Used by the
// Aggregator (C6) to recompute a report's completeness — always a fresh
// read of current state, never an accumulation of past events.
func (q *Queue) JobsForReport(ctx context.Context, reportID model.ReportId) ([]*model.Job, error) {
	cursor, err := store.Find[jobDoc](ctx, q.store, jobsCollection, store.Filter{
		Where: `doc->>'report_id' = $1`,
		Args:  []any{string(reportID)},
	}, "")
	if err != nil {
		return nil, err
	}

	defer cursor.Close()

	var jobs []*model.Job

	for {
		doc, ok, err := cursor.Next(ctx)
		if err != nil {
			return nil, err
		}

		if !ok {
			break
		}

		job, err := docToJob(doc)
		if err != nil {
			return nil, err
		}

		jobs = append(jobs, job)
	}

	return jobs, nil
}

// JobByID returns a single job by id.
func (q *Queue) JobByID(ctx context.Context, jobID model.JobId) (*model.Job, error) {
	doc, err := store.FindOne[jobDoc](ctx, q.store, jobsCollection, store.Filter{
		Where: `id = $1`,
		Args:  []any{string(jobID)},
	})
	if err != nil {
		return nil, err
	}

	return docToJob(*doc)
}

// LatestAnalysisForJob returns the most recently written GameAnalysis for
// jobID. Partial Complete failures (§4.2.6) can leave more than one analysis
// row per job; the newest is authoritative. The analysisID is a UUID, not
// sortable, so this orders the job's analyses by their created_at timestamp
// ascending and takes the last.
func (q *Queue) LatestAnalysisForJob(ctx context.Context, jobID model.JobId) (*model.GameAnalysis, error) {
	cursor, err := store.Find[gameAnalysisDoc](ctx, q.store, gameAnalysesCollection, store.Filter{
		Where: `doc->>'job_id' = $1`,
		Args:  []any{string(jobID)},
	}, store.Sort(`(doc->>'created_at')::timestamptz ASC`))
	if err != nil {
		return nil, err
	}

	defer cursor.Close()

	var docs []gameAnalysisDoc

	for {
		doc, ok, err := cursor.Next(ctx)
		if err != nil {
			return nil, err
		}

		if !ok {
			break
		}

		docs = append(docs, doc)
	}

	if len(docs) == 0 {
		return nil, apperror.New(apperror.NotFound, "queue: no analysis recorded for job")
	}

	sort.SliceStable(docs, func(i, j int) bool { return docs[i].CreatedAt.Before(docs[j].CreatedAt) })

	return docToAnalysis(docs[len(docs)-1])
}

func docToAnalysis(d gameAnalysisDoc) (*model.GameAnalysis, error) {
	plies := make([]model.PlyAnalysis, len(d.Plies))

	for i, pd := range d.Plies {
		p := model.PlyAnalysis{Depth: pd.Depth, PV: pd.PV, Time: pd.Time, Nodes: pd.Nodes, NPS: pd.NPS}

		switch pd.Kind {
		case "skipped":
			p.Kind = model.PlySkipped
		case "empty":
			p.Kind = model.PlyEmpty
			p.Score = docToScore(pd.Score)
		case "full":
			p.Kind = model.PlyFull
			p.Score = docToScore(pd.Score)
		}

		plies[i] = p
	}

	return &model.GameAnalysis{
		ID:               d.ID,
		JobID:            model.JobId(d.JobID),
		GameID:           model.GameId(d.GameID),
		Plies:            plies,
		RequestedNodes:   model.EngineNodes{NNUE: d.RequestedNNUE, Classical: d.RequestedClassical},
		RequestedMultiPV: d.RequestedMultiPV,
	}, nil
}

func docToScore(d *scoreDoc) model.Score {
	if d == nil {
		return model.Score{}
	}

	if d.CP != nil {
		return model.CpScore(*d.CP)
	}

	if d.Mate != nil {
		return model.MateScore(*d.Mate)
	}

	return model.Score{}
}
