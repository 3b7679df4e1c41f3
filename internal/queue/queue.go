// Package queue implements the job-queue state machine (spec component C3):
// assignment with precedence ordering and lease-based reclamation, lease
// release, idempotent completion, the missing-game delete guard, and status
// counters. Every state-changing operation is a single atomic document
// mutation against internal/store — never a read followed by a write.
package queue

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/lila-deepq/deepq/internal/apperror"
	"github.com/lila-deepq/deepq/internal/bus"
	"github.com/lila-deepq/deepq/internal/model"
	"github.com/lila-deepq/deepq/internal/store"
)

// Queue is the job-queue state machine, backed by a Store and publishing its
// state transitions on a Bus.
type Queue struct {
	store    *store.Store
	bus      *bus.Bus
	leaseTTL time.Duration
	logger   *slog.Logger
}

// New creates a Queue. leaseTTL is the duration after which an owned,
// incomplete job becomes reclaimable by any worker (including its original
// owner, which the spec calls out explicitly: a worker that crashed and
// restarted with the same key can resume without waiting on another worker).
func New(s *store.Store, b *bus.Bus, leaseTTL time.Duration, logger *slog.Logger) *Queue {
	return &Queue{store: s, bus: b, leaseTTL: leaseTTL, logger: logger}
}

// HealthCheck reports whether the underlying store is reachable.
func (q *Queue) HealthCheck(ctx context.Context) error {
	return q.store.HealthCheck(ctx)
}

// InsertJob inserts a new, unowned job. Used by the Ingestor (C5) to
// materialize one job per game at report creation time.
func (q *Queue) InsertJob(ctx context.Context, job *model.Job) (model.JobId, error) {
	if job.ID == "" {
		job.ID = model.JobId(uuid.NewString())
	}

	if job.DateLastUpdated.IsZero() {
		job.DateLastUpdated = time.Now().UTC()
	}

	doc := jobToDoc(job)

	id, err := store.Insert(ctx, q.store, jobsCollection, doc)
	if err != nil {
		return "", err
	}

	return model.JobId(id), nil
}

// Assign atomically selects at most one job for apiUser and marks it owned.
//
// Selection predicate: the job is unowned, or it is owned by apiUser,
// incomplete, and its lease has expired; and its analysis type is one the
// caller is permitted to serve. Ordering is precedence descending, then
// date_last_updated ascending (older first) — ties beyond that are whatever
// order Postgres returns matching rows in, stable within one query plan.
func (q *Queue) Assign(ctx context.Context, apiUser *model.ApiUser) (*model.Job, error) {
	if len(apiUser.Perms) == 0 {
		return nil, nil
	}

	perms := make([]string, len(apiUser.Perms))
	for i, p := range apiUser.Perms {
		perms[i] = p.String()
	}

	now := time.Now().UTC()
	leaseExpiry := now.Add(-q.leaseTTL)

	filter := store.Filter{
		Where: `(
			doc->>'owner' IS NULL
			OR (
				doc->>'owner' = $1
				AND (doc->>'is_complete')::bool = false
				AND (doc->>'date_last_updated')::timestamptz < $2
			)
		) AND doc->>'analysis_type' = ANY($3)`,
		Args: []any{string(apiUser.Key), leaseExpiry, pq.Array(perms)},
	}

	sort := store.Sort(`(doc->>'precedence')::bigint DESC, (doc->>'date_last_updated')::timestamptz ASC`)

	mutation := store.Set(map[string]any{
		"owner":             string(apiUser.Key),
		"date_last_updated": now,
	})

	doc, err := store.FindOneAndUpdate[jobDoc](ctx, q.store, jobsCollection, filter, mutation, sort)
	if err != nil {
		return nil, err
	}

	if doc == nil {
		return nil, nil
	}

	job, err := docToJob(*doc)
	if err != nil {
		return nil, apperror.Wrap(apperror.Internal, "queue: decode assigned job", err)
	}

	q.bus.Publish(bus.Event{Kind: bus.JobAcquired, JobID: job.ID, GameID: job.GameID})

	return job, nil
}

// Unassign releases apiUser's lease on jobID, if it is currently held. A no-op
// (not an error) if the caller does not own the job — idempotent by design.
func (q *Queue) Unassign(ctx context.Context, owner model.ApiKey, jobID model.JobId) error {
	filter := store.Filter{
		Where: `id = $1 AND doc->>'owner' = $2`,
		Args:  []any{string(jobID), string(owner)},
	}

	mutation := store.Set(map[string]any{
		"owner":             nil,
		"date_last_updated": time.Now().UTC(),
	})

	doc, err := store.FindOneAndUpdate[jobDoc](ctx, q.store, jobsCollection, filter, mutation, "")
	if err != nil {
		return err
	}

	if doc != nil {
		q.bus.Publish(bus.Event{Kind: bus.JobAborted, JobID: jobID, GameID: model.GameId(doc.GameID)})
	}

	return nil
}

// Complete records analysis for jobID and marks it done, in effect:
//  1. Insert a GameAnalysis tied to this job.
//  2. Atomically set is_complete=true where id=jobID, owner=owner,
//     is_complete=false.
//
// If step 2 does not match (already complete, or owner mismatch), the
// GameAnalysis inserted in step 1 is left in place as a tolerated orphan —
// readers must treat the newest GameAnalysis for a job as authoritative, per
// the documented failure semantics. Returns whether step 2 matched.
func (q *Queue) Complete(
	ctx context.Context,
	owner model.ApiKey,
	jobID model.JobId,
	analysis *model.GameAnalysis,
) (bool, error) {
	analysisID := uuid.NewString()
	analysis.ID = analysisID
	analysis.JobID = jobID

	if _, err := store.Insert(ctx, q.store, gameAnalysesCollection, analysisToDoc(analysisID, analysis)); err != nil {
		return false, err
	}

	filter := store.Filter{
		Where: `id = $1 AND doc->>'owner' = $2 AND (doc->>'is_complete')::bool = false`,
		Args:  []any{string(jobID), string(owner)},
	}

	mutation := store.Set(map[string]any{
		"is_complete":       true,
		"date_last_updated": time.Now().UTC(),
	})

	doc, err := store.FindOneAndUpdate[jobDoc](ctx, q.store, jobsCollection, filter, mutation, "")
	if err != nil {
		return false, err
	}

	if doc == nil {
		return false, nil
	}

	q.bus.Publish(bus.Event{Kind: bus.JobCompleted, JobID: jobID, GameID: model.GameId(doc.GameID)})

	return true, nil
}

// Delete removes jobID. Used only as a data-integrity guard when ingestion
// created a job for a GameId with no corresponding Game.
func (q *Queue) Delete(ctx context.Context, jobID model.JobId) error {
	return store.DeleteOne(ctx, q.store, jobsCollection, store.Filter{
		Where: `id = $1`,
		Args:  []any{string(jobID)},
	})
}

// Status is the queue depth snapshot for one analysis type.
type Status struct {
	Acquired     int64
	Queued       int64
	OldestSeconds int64
}

// Status computes acquired/queued counts and the age of the oldest queued
// job for the given analysis type.
func (q *Queue) Status(ctx context.Context, t model.AnalysisType) (Status, error) {
	acquired, err := store.Count(ctx, q.store, jobsCollection, store.Filter{
		Where: `doc->>'owner' IS NOT NULL AND (doc->>'is_complete')::bool = false AND doc->>'analysis_type' = $1`,
		Args:  []any{t.String()},
	})
	if err != nil {
		return Status{}, err
	}

	queued, err := store.Count(ctx, q.store, jobsCollection, store.Filter{
		Where: `doc->>'owner' IS NULL AND (doc->>'is_complete')::bool = false AND doc->>'analysis_type' = $1`,
		Args:  []any{t.String()},
	})
	if err != nil {
		return Status{}, err
	}

	var oldestSeconds int64

	oldestCursor, err := store.Find[jobDoc](ctx, q.store, jobsCollection, store.Filter{
		Where: `doc->>'owner' IS NULL AND (doc->>'is_complete')::bool = false AND doc->>'analysis_type' = $1`,
		Args:  []any{t.String()},
	}, store.Sort(`(doc->>'date_last_updated')::timestamptz ASC`))
	if err != nil {
		return Status{}, err
	}

	defer oldestCursor.Close()

	first, ok, err := oldestCursor.Next(ctx)
	if err != nil {
		return Status{}, err
	}

	if ok {
		oldestSeconds = int64(time.Since(first.DateLastUpdated).Seconds())
	}

	return Status{Acquired: acquired, Queued: queued, OldestSeconds: oldestSeconds}, nil
}
