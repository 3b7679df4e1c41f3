// Package aggregation implements the report aggregation state machine
// (spec component C6): fan-in from N per-game jobs to one report, with
// exactly-once downstream dispatch. It never accumulates state across
// events — every completion recomputes completeness from the Store, so a
// lagged or dropped Bus event only delays a dispatch, never loses one.
package aggregation

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/lila-deepq/deepq/internal/apperror"
	"github.com/lila-deepq/deepq/internal/bus"
	"github.com/lila-deepq/deepq/internal/ingestion"
	"github.com/lila-deepq/deepq/internal/model"
	"github.com/lila-deepq/deepq/internal/queue"
)

// Dispatcher delivers a completed report's payload to the downstream
// consumer. The default implementation is an HTTP POST; tests substitute a
// fake.
type Dispatcher interface {
	Dispatch(ctx context.Context, report *model.Report, payload []byte) error
}

// HTTPDispatcher POSTs the payload to a fixed URI with a bearer API key,
// the shape spec.md describes as "the downstream analysis consumer" — only
// its message shape is in scope, not its own behavior.
type HTTPDispatcher struct {
	Client *http.Client
	URI    string
	APIKey string
}

// Dispatch sends payload to the configured downstream URI. A non-2xx
// response is treated as a dispatch failure.
func (d *HTTPDispatcher) Dispatch(ctx context.Context, report *model.Report, payload []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.URI, bytes.NewReader(payload))
	if err != nil {
		return apperror.Wrap(apperror.DownstreamDispatchFailed, "aggregation: build downstream request", err)
	}

	req.Header.Set("Content-Type", "application/json")

	if d.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+d.APIKey)
	}

	client := d.Client
	if client == nil {
		client = http.DefaultClient
	}

	resp, err := client.Do(req)
	if err != nil {
		return apperror.Wrap(apperror.DownstreamDispatchFailed, "aggregation: downstream request failed", err)
	}

	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return apperror.New(apperror.DownstreamDispatchFailed,
			fmt.Sprintf("aggregation: downstream responded %d for report %s", resp.StatusCode, report.ID))
	}

	return nil
}

// Aggregator is the long-running C6 task. Run subscribes to a Bus and loops
// until its context is canceled or the Bus is closed.
type Aggregator struct {
	queue      *queue.Queue
	reports    *ingestion.ReportStore
	games      *ingestion.GameStore
	dispatcher Dispatcher
	logger     *slog.Logger
}

// New constructs an Aggregator.
func New(
	q *queue.Queue,
	reports *ingestion.ReportStore,
	games *ingestion.GameStore,
	dispatcher Dispatcher,
	logger *slog.Logger,
) *Aggregator {
	return &Aggregator{queue: q, reports: reports, games: games, dispatcher: dispatcher, logger: logger}
}

// Run subscribes to b and processes events until ctx is canceled or b is
// closed. It unsubscribes on return.
func (a *Aggregator) Run(ctx context.Context, b *bus.Bus) {
	sub := b.Subscribe()
	defer b.Unsubscribe(sub)

	for {
		evt, ok := sub.Receive(ctx)
		if !ok {
			a.logger.Info("aggregation: subscription closed, stopping")

			return
		}

		a.handle(ctx, evt)
	}
}

func (a *Aggregator) handle(ctx context.Context, evt bus.Event) {
	switch evt.Kind {
	case bus.JobAcquired:
		a.logger.Debug("aggregation: job acquired", slog.String("job_id", string(evt.JobID)))

		return
	case bus.JobAborted:
		a.logger.Debug("aggregation: job aborted", slog.String("job_id", string(evt.JobID)))

		return
	case bus.JobCompleted:
		// fall through to the fan-in logic below.
	default:
		return
	}

	log := a.logger.With(slog.String("job_id", string(evt.JobID)), slog.String("game_id", string(evt.GameID)))

	job, err := a.queue.JobByID(ctx, evt.JobID)
	if err != nil {
		log.Error("aggregation: failed to load completed job", slog.Any("error", err))

		return
	}

	if job.ReportID == nil {
		log.Debug("aggregation: job has no report, nothing to aggregate")

		return
	}

	reportID := *job.ReportID

	report, err := a.reports.FindByID(ctx, reportID)
	if err != nil {
		if apperror.Is(err, apperror.NotFound) {
			log.Warn("aggregation: job references missing report", slog.String("report_id", string(reportID)))

			return
		}

		log.Error("aggregation: failed to load report", slog.Any("error", err))

		return
	}

	jobs, err := a.queue.JobsForReport(ctx, reportID)
	if err != nil {
		log.Error("aggregation: failed to load report jobs", slog.Any("error", err))

		return
	}

	if !complete(jobs) {
		log.Debug("aggregation: report not yet complete",
			slog.String("report_id", string(reportID)), slog.Int("jobs", len(jobs)))

		return
	}

	latched, err := a.reports.Latch(ctx, reportID)
	if err != nil {
		log.Error("aggregation: failed to latch report", slog.Any("error", err))

		return
	}

	if !latched {
		log.Debug("aggregation: report already dispatched", slog.String("report_id", string(reportID)))

		return
	}

	payload, err := a.buildPayload(ctx, report)
	if err != nil {
		log.Error("aggregation: failed to assemble downstream payload",
			slog.String("report_id", string(reportID)), slog.Any("error", err))

		return
	}

	if err := a.dispatcher.Dispatch(ctx, report, payload); err != nil {
		log.Error("aggregation: downstream dispatch failed",
			slog.String("report_id", string(reportID)), slog.Any("error", err))

		return
	}

	log.Info("aggregation: report dispatched", slog.String("report_id", string(reportID)))
}

// complete reports whether every job in jobs is done. An empty slice is not
// complete — a report with zero materialized jobs never dispatches.
func complete(jobs []*model.Job) bool {
	if len(jobs) == 0 {
		return false
	}

	for _, j := range jobs {
		if !j.IsComplete {
			return false
		}
	}

	return true
}

// buildPayload assembles the downstream dispatch body: one irwinGame per
// game in the report, with UCI moves interleaved with the latest recorded
// analysis for that game's job. A game whose job has no recorded analysis
// (a data-integrity anomaly, since dispatch only begins once every job is
// complete) fails the whole assembly with IncompleteAnalysis, per spec §4.5
// step 6 — the latch is never rolled back, matching the documented open
// question in spec.md §9.
func (a *Aggregator) buildPayload(ctx context.Context, report *model.Report) ([]byte, error) {
	jobs, err := a.queue.JobsForReport(ctx, report.ID)
	if err != nil {
		return nil, err
	}

	byGame := make(map[model.GameId]*model.Job, len(jobs))
	for _, j := range jobs {
		byGame[j.GameID] = j
	}

	games := make([]irwinGame, 0, len(report.GameIDs))

	for _, gid := range report.GameIDs {
		job, ok := byGame[gid]
		if !ok {
			return nil, apperror.New(apperror.IncompleteAnalysis,
				fmt.Sprintf("aggregation: report %s has no job for game %s", report.ID, gid))
		}

		g, err := a.games.FindByID(ctx, gid)
		if err != nil {
			return nil, apperror.Wrap(apperror.IncompleteAnalysis,
				fmt.Sprintf("aggregation: failed to load game %s", gid), err)
		}

		analysis, err := a.queue.LatestAnalysisForJob(ctx, job.ID)
		if err != nil {
			return nil, apperror.Wrap(apperror.IncompleteAnalysis,
				fmt.Sprintf("aggregation: no analysis recorded for game %s", gid), err)
		}

		games = append(games, gameToWire(g, analysis))
	}

	out := irwinReport{
		PlayerID:          string(report.UserID),
		Games:             games,
		AnalyzedPositions: []int{},
	}

	body, err := json.Marshal(out)
	if err != nil {
		return nil, apperror.Wrap(apperror.Internal, "aggregation: marshal downstream payload", err)
	}

	return body, nil
}

func gameToWire(g *model.Game, analysis *model.GameAnalysis) irwinGame {
	scores := make([]scoreWire, 0, len(analysis.Plies))

	for _, p := range analysis.Plies {
		if p.Kind == model.PlySkipped {
			continue
		}

		scores = append(scores, scoreToWire(p.Score))
	}

	out := irwinGame{
		ID:       string(g.ID),
		PGN:      g.Moves,
		EMT:      g.EMT,
		Analysis: scores,
	}

	if g.White != nil {
		w := string(*g.White)
		out.White = &w
	}

	if g.Black != nil {
		b := string(*g.Black)
		out.Black = &b
	}

	return out
}
