package queue

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/lila-deepq/deepq/internal/bus"
	"github.com/lila-deepq/deepq/internal/dbtest"
	"github.com/lila-deepq/deepq/internal/model"
	"github.com/lila-deepq/deepq/internal/store"
)

func newTestQueue(t *testing.T, leaseTTL time.Duration) (*Queue, *bus.Bus) {
	t.Helper()

	ctx := context.Background()
	db := dbtest.Open(ctx, t)
	s := store.New(db)
	b := bus.New(16)
	t.Cleanup(b.Close)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	return New(s, b, leaseTTL, logger), b
}

func TestQueue_AssignRespectsPrecedenceOrder(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	ctx := context.Background()
	q, _ := newTestQueue(t, 10*time.Minute)

	_, err := q.InsertJob(ctx, &model.Job{GameID: "low", AnalysisType: model.Deep, Precedence: 10})
	require.NoError(t, err)

	_, err = q.InsertJob(ctx, &model.Job{GameID: "high", AnalysisType: model.Deep, Precedence: 1_000_000})
	require.NoError(t, err)

	user := &model.ApiUser{Key: "w1", Perms: []model.AnalysisType{model.Deep}}

	job, err := q.Assign(ctx, user)
	require.NoError(t, err)
	require.NotNil(t, job)
	require.Equal(t, model.GameId("high"), job.GameID)
}

func TestQueue_AssignFiltersByPermission(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	ctx := context.Background()
	q, _ := newTestQueue(t, 10*time.Minute)

	_, err := q.InsertJob(ctx, &model.Job{GameID: "g1", AnalysisType: model.UserAnalysis, Precedence: 100})
	require.NoError(t, err)

	_, err = q.InsertJob(ctx, &model.Job{GameID: "g2", AnalysisType: model.Deep, Precedence: 100})
	require.NoError(t, err)

	user := &model.ApiUser{Key: "w1", Perms: []model.AnalysisType{model.UserAnalysis}}

	job, err := q.Assign(ctx, user)
	require.NoError(t, err)
	require.NotNil(t, job)
	require.Equal(t, model.GameId("g1"), job.GameID)

	second, err := q.Assign(ctx, user)
	require.NoError(t, err)
	require.Nil(t, second, "worker without Deep permission must never see the Deep job")
}

func TestQueue_UnassignIsIdempotent(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	ctx := context.Background()
	q, _ := newTestQueue(t, 10*time.Minute)

	jobID, err := q.InsertJob(ctx, &model.Job{GameID: "g1", AnalysisType: model.Deep, Precedence: 100})
	require.NoError(t, err)

	require.NoError(t, q.Unassign(ctx, "nobody", jobID))

	user := &model.ApiUser{Key: "w1", Perms: []model.AnalysisType{model.Deep}}
	job, err := q.Assign(ctx, user)
	require.NoError(t, err)
	require.NotNil(t, job)

	require.NoError(t, q.Unassign(ctx, "w1", job.ID))

	status, err := q.Status(ctx, model.Deep)
	require.NoError(t, err)
	require.Equal(t, int64(0), status.Acquired)
	require.Equal(t, int64(1), status.Queued)
}

func TestQueue_CompleteTwiceStaysIdempotent(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	ctx := context.Background()
	q, _ := newTestQueue(t, 10*time.Minute)

	jobID, err := q.InsertJob(ctx, &model.Job{GameID: "g1", AnalysisType: model.Deep, Precedence: 100})
	require.NoError(t, err)

	user := &model.ApiUser{Key: "w1", Perms: []model.AnalysisType{model.Deep}}
	job, err := q.Assign(ctx, user)
	require.NoError(t, err)
	require.Equal(t, jobID, job.ID)

	analysis := &model.GameAnalysis{GameID: "g1", Plies: []model.PlyAnalysis{{Kind: model.PlySkipped}}}

	matched, err := q.Complete(ctx, "w1", jobID, analysis)
	require.NoError(t, err)
	require.True(t, matched)

	matchedAgain, err := q.Complete(ctx, "w1", jobID, analysis)
	require.NoError(t, err)
	require.False(t, matchedAgain, "a second completion of an already-complete job must not re-match")

	stored, err := q.JobByID(ctx, jobID)
	require.NoError(t, err)
	require.True(t, stored.IsComplete)
}

func TestQueue_LeaseExpiryAllowsReassignment(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	ctx := context.Background()
	q, _ := newTestQueue(t, 1*time.Millisecond)

	jobID, err := q.InsertJob(ctx, &model.Job{GameID: "g1", AnalysisType: model.Deep, Precedence: 100})
	require.NoError(t, err)

	workerA := &model.ApiUser{Key: "worker-a", Perms: []model.AnalysisType{model.Deep}}
	job, err := q.Assign(ctx, workerA)
	require.NoError(t, err)
	require.Equal(t, jobID, job.ID)

	time.Sleep(10 * time.Millisecond)

	workerB := &model.ApiUser{Key: "worker-b", Perms: []model.AnalysisType{model.Deep}}
	reassigned, err := q.Assign(ctx, workerB)
	require.NoError(t, err)
	require.NotNil(t, reassigned)
	require.Equal(t, jobID, reassigned.ID)
}

func TestQueue_StatusCountsOldestQueuedAge(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	ctx := context.Background()
	q, _ := newTestQueue(t, 10*time.Minute)

	_, err := q.InsertJob(ctx, &model.Job{
		GameID:          "g1",
		AnalysisType:    model.Deep,
		Precedence:      100,
		DateLastUpdated: time.Now().UTC().Add(-time.Hour),
	})
	require.NoError(t, err)

	status, err := q.Status(ctx, model.Deep)
	require.NoError(t, err)
	require.Equal(t, int64(1), status.Queued)
	require.GreaterOrEqual(t, status.OldestSeconds, int64(3500))
}
