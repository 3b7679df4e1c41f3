package ingestion

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/lila-deepq/deepq/internal/apperror"
	"github.com/lila-deepq/deepq/internal/chess"
	"github.com/lila-deepq/deepq/internal/model"
	"github.com/lila-deepq/deepq/internal/queue"
)

// Ingestor accepts upstream reports and materializes the durable state the
// rest of the broker operates on. It is the only component that translates
// SAN to UCI and the only writer of new Report and Job rows from outside
// the Worker API.
type Ingestor struct {
	games     *GameStore
	reports   *ReportStore
	queue     *queue.Queue
	validator *Validator
	logger    *slog.Logger
}

// New constructs an Ingestor.
func New(games *GameStore, reports *ReportStore, q *queue.Queue, logger *slog.Logger) *Ingestor {
	return &Ingestor{games: games, reports: reports, queue: q, validator: NewValidator(), logger: logger}
}

// Ingest validates req, translates every game's SAN move list to UCI,
// upserts the games, inserts the report, and materializes one Deep-analysis
// job per game. On any illegal move the whole request fails with
// apperror.InvalidMoves and no state is written — steps 2-4 only begin once
// every game's moves have translated cleanly.
func (ig *Ingestor) Ingest(ctx context.Context, req *Request) (*Result, error) {
	if err := ig.validator.Validate(req); err != nil {
		return nil, err
	}

	origin, err := model.ParseReportOrigin(req.Origin)
	if err != nil {
		return nil, apperror.Wrap(apperror.InvalidMoves, "ingestion: invalid origin", err)
	}

	games := make([]*model.Game, 0, len(req.Games))

	for _, gi := range req.Games {
		uciMoves, err := chess.TranslateSANToUCI(gi.PGN)
		if err != nil {
			return nil, apperror.Wrap(
				apperror.InvalidMoves,
				fmt.Sprintf("ingestion: game %s has an illegal move", gi.ID),
				err,
			)
		}

		if len(gi.EMTs) != 0 && len(gi.EMTs) != len(uciMoves) {
			return nil, apperror.New(
				apperror.InvalidMoves,
				fmt.Sprintf("ingestion: game %s emt length %d does not match move count %d",
					gi.ID, len(gi.EMTs), len(uciMoves)),
			)
		}

		g := &model.Game{ID: model.GameId(gi.ID), Moves: uciMoves, EMT: gi.EMTs}

		if gi.White != "" {
			w := model.UserId(gi.White)
			g.White = &w
		}

		if gi.Black != "" {
			b := model.UserId(gi.Black)
			g.Black = &b
		}

		games = append(games, g)
	}

	// No partial state below this point: every game translated cleanly.
	for _, g := range games {
		if err := ig.games.Upsert(ctx, g); err != nil {
			return nil, err
		}
	}

	now := time.Now().UTC()

	gameIDs := make([]model.GameId, len(games))
	for i, g := range games {
		gameIDs[i] = g.ID
	}

	report := &model.Report{
		ID:            model.ReportId(uuid.NewString()),
		UserID:        model.UserId(req.User.ID),
		Origin:        origin,
		ReportType:    model.Irwin,
		GameIDs:       gameIDs,
		DateRequested: now,
	}

	reportID, err := ig.reports.Insert(ctx, report)
	if err != nil {
		return nil, err
	}

	precedence := model.PrecedenceForOrigin(origin)

	jobsCreated := 0

	for _, g := range games {
		rid := reportID
		job := &model.Job{
			GameID:          g.ID,
			ReportID:        &rid,
			AnalysisType:    model.Deep,
			Precedence:      precedence,
			DateLastUpdated: now,
		}

		if _, err := ig.queue.InsertJob(ctx, job); err != nil {
			ig.logger.Error("ingestion: failed to create job for game",
				slog.String("report_id", string(reportID)),
				slog.String("game_id", string(g.ID)),
				slog.Any("error", err),
			)

			continue
		}

		jobsCreated++
	}

	ig.logger.Info("ingestion: report accepted",
		slog.String("report_id", string(reportID)),
		slog.String("user_id", string(report.UserID.Canon())),
		slog.String("origin", origin.String()),
		slog.Int("games", len(games)),
		slog.Int("jobs_created", jobsCreated),
	)

	return &Result{ReportID: string(reportID), JobsCreated: jobsCreated, DateRequested: now}, nil
}
