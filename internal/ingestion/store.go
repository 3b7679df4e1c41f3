package ingestion

import (
	"context"
	"time"

	"github.com/lila-deepq/deepq/internal/model"
	"github.com/lila-deepq/deepq/internal/store"
)

// gamesCollection and reportsCollection are the Store collections this
// package owns — the same one-file-owns-its-queries convention
// internal/queue/doc.go uses for jobs and game_analyses.
const (
	gamesCollection   = "games"
	reportsCollection = "reports"
)

// gameDoc is the jsonb shape of a persisted Game.
type gameDoc struct {
	ID    string   `json:"id"`
	White *string  `json:"white,omitempty"`
	Black *string  `json:"black,omitempty"`
	Moves []string `json:"moves"`
	EMT   []int    `json:"emt,omitempty"`
}

func (d gameDoc) DocID() string { return d.ID }

func gameToDoc(g *model.Game) gameDoc {
	d := gameDoc{ID: string(g.ID.Canon()), Moves: g.Moves, EMT: g.EMT}

	if g.White != nil {
		w := string(g.White.Canon())
		d.White = &w
	}

	if g.Black != nil {
		b := string(g.Black.Canon())
		d.Black = &b
	}

	return d
}

func docToGame(d gameDoc) *model.Game {
	g := &model.Game{ID: model.GameId(d.ID), Moves: d.Moves, EMT: d.EMT}

	if d.White != nil {
		w := model.UserId(*d.White)
		g.White = &w
	}

	if d.Black != nil {
		b := model.UserId(*d.Black)
		g.Black = &b
	}

	return g
}

// reportDoc is the jsonb shape of a persisted Report.
type reportDoc struct {
	ID             string     `json:"id"`
	UserID         string     `json:"user_id"`
	Origin         string     `json:"origin"`
	ReportType     string     `json:"report_type"`
	GameIDs        []string   `json:"game_ids"`
	DateRequested  time.Time  `json:"date_requested"`
	DateCompleted  *time.Time `json:"date_completed,omitempty"`
	SentToIrwin    bool       `json:"sent_to_irwin"`
}

func (d reportDoc) DocID() string { return d.ID }

func reportToDoc(r *model.Report) reportDoc {
	gameIDs := make([]string, len(r.GameIDs))
	for i, id := range r.GameIDs {
		gameIDs[i] = string(id.Canon())
	}

	return reportDoc{
		ID:            string(r.ID),
		UserID:        string(r.UserID.Canon()),
		Origin:        r.Origin.String(),
		ReportType:    r.ReportType.String(),
		GameIDs:       gameIDs,
		DateRequested: r.DateRequested,
		DateCompleted: r.DateCompleted,
		SentToIrwin:   r.SentToIrwin,
	}
}

func docToReport(d reportDoc) (*model.Report, error) {
	origin, err := model.ParseReportOrigin(d.Origin)
	if err != nil {
		return nil, err
	}

	gameIDs := make([]model.GameId, len(d.GameIDs))
	for i, id := range d.GameIDs {
		gameIDs[i] = model.GameId(id)
	}

	return &model.Report{
		ID:            model.ReportId(d.ID),
		UserID:        model.UserId(d.UserID),
		Origin:        origin,
		ReportType:    model.ReportType(d.ReportType),
		GameIDs:       gameIDs,
		DateRequested: d.DateRequested,
		DateCompleted: d.DateCompleted,
		SentToIrwin:   d.SentToIrwin,
	}, nil
}

// GameStore persists and retrieves Games. It is also used by internal/api's
// acquire handler, which needs to resolve a job's game before handing work
// to a worker.
type GameStore struct {
	store *store.Store
}

// NewGameStore wraps s for game persistence.
func NewGameStore(s *store.Store) *GameStore {
	return &GameStore{store: s}
}

// Upsert inserts g, or replaces the existing row with the same (canonical)
// id — re-submitting the same game is idempotent.
func (gs *GameStore) Upsert(ctx context.Context, g *model.Game) error {
	return store.Upsert(ctx, gs.store, gamesCollection, gameToDoc(g))
}

// FindByID returns the game with the given id, or apperror.NotFound.
func (gs *GameStore) FindByID(ctx context.Context, id model.GameId) (*model.Game, error) {
	doc, err := store.FindOne[gameDoc](ctx, gs.store, gamesCollection, store.Filter{
		Where: `id = $1`,
		Args:  []any{string(id.Canon())},
	})
	if err != nil {
		return nil, err
	}

	return docToGame(*doc), nil
}

// ReportStore persists and retrieves Reports.
type ReportStore struct {
	store *store.Store
}

// NewReportStore wraps s for report persistence.
func NewReportStore(s *store.Store) *ReportStore {
	return &ReportStore{store: s}
}

// Insert stores a new report and returns its id.
func (rs *ReportStore) Insert(ctx context.Context, r *model.Report) (model.ReportId, error) {
	id, err := store.Insert(ctx, rs.store, reportsCollection, reportToDoc(r))
	if err != nil {
		return "", err
	}

	return model.ReportId(id), nil
}

// FindByID returns the report with the given id, or apperror.NotFound.
func (rs *ReportStore) FindByID(ctx context.Context, id model.ReportId) (*model.Report, error) {
	doc, err := store.FindOne[reportDoc](ctx, rs.store, reportsCollection, store.Filter{
		Where: `id = $1`,
		Args:  []any{string(id)},
	})
	if err != nil {
		return nil, err
	}

	return docToReport(*doc)
}

// Latch attempts the exactly-once sent_to_irwin transition: it sets
// sent_to_irwin=true and date_completed=now only if sent_to_irwin is
// currently false, atomically. Returns whether it matched — false means
// another caller already dispatched this report.
func (rs *ReportStore) Latch(ctx context.Context, id model.ReportId) (bool, error) {
	now := time.Now().UTC()

	doc, err := store.FindOneAndUpdate[reportDoc](ctx, rs.store, reportsCollection, store.Filter{
		Where: `id = $1 AND (doc->>'sent_to_irwin')::bool = false`,
		Args:  []any{string(id)},
	}, store.Set(map[string]any{
		"sent_to_irwin":  true,
		"date_completed": now,
	}), "")
	if err != nil {
		return false, err
	}

	return doc != nil, nil
}

// Per-report job lookups (Queue.JobsForReport) live in internal/queue,
// since jobs are that package's collection; the Aggregator composes
// ReportStore with queue.Queue to compute completeness.
