package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/lila-deepq/deepq/internal/api/middleware"
	"github.com/lila-deepq/deepq/internal/apiauth"
	"github.com/lila-deepq/deepq/internal/bus"
	"github.com/lila-deepq/deepq/internal/dbtest"
	"github.com/lila-deepq/deepq/internal/ingestion"
	"github.com/lila-deepq/deepq/internal/model"
	"github.com/lila-deepq/deepq/internal/queue"
	"github.com/lila-deepq/deepq/internal/store"
)

func newTestServer(t *testing.T) (*httptest.Server, *apiauth.Store) {
	t.Helper()

	ctx := context.Background()
	db := dbtest.Open(ctx, t)
	s := store.New(db)
	b := bus.New(16)
	t.Cleanup(b.Close)

	q := queue.New(s, b, 10*time.Minute, slog.New(slog.NewTextHandler(io.Discard, nil)))
	games := ingestion.NewGameStore(s)
	reports := ingestion.NewReportStore(s)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	ingestor := ingestion.New(games, reports, q, logger)
	authStore := apiauth.New(s)

	cfg := ServerConfig{Bind: "127.0.0.1:0"}
	srv := NewServer(cfg, q, games, reports, ingestor, authStore, nil, logger)

	mux := http.NewServeMux()
	srv.setupRoutes(mux)

	handler := middleware.Apply(mux,
		middleware.WithCorrelationID(),
		middleware.WithAuth(authStore, logger),
	)

	return httptest.NewServer(handler), authStore
}

func TestWorkerAPI_HappyPath(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	ts, authStore := newTestServer(t)
	defer ts.Close()

	ctx := context.Background()
	require.NoError(t, authStore.Register(ctx, "worker-key", &model.ApiUser{
		Name:  "worker",
		Perms: []model.AnalysisType{model.Deep},
	}))

	ingestBody := `{
		"t": "analysis",
		"origin": "moderator",
		"user": {"id": "suspect", "titled": false, "engine": false, "games": 1},
		"games": [
			{"id": "game1", "white": "suspect", "black": "opponent",
			 "pgn": "1. e4 e5 2. Nf3 Nc6"}
		]
	}`

	resp, err := http.Post(ts.URL+"/ingest", "application/json", bytes.NewBufferString(ingestBody))
	require.NoError(t, err)

	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)

	var ingestResp IngestResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&ingestResp))
	require.Equal(t, 1, ingestResp.JobsCreated)

	acquireReq, err := http.NewRequest(http.MethodPost, ts.URL+"/acquire", bytes.NewBufferString(`{}`))
	require.NoError(t, err)
	acquireReq.Header.Set("X-Api-Key", "worker-key")

	acquireResp, err := http.DefaultClient.Do(acquireReq)
	require.NoError(t, err)

	defer acquireResp.Body.Close()

	require.Equal(t, http.StatusOK, acquireResp.StatusCode)

	var acquired AcquireResponse
	require.NoError(t, json.NewDecoder(acquireResp.Body).Decode(&acquired))
	require.Equal(t, "game1", acquired.GameID)
	require.Equal(t, "e2e4 e7e5 g1f3 b8c6", acquired.Moves)
	require.Equal(t, int64(2_500_000), acquired.Work.Nodes.NNUE)

	analysisBody := `{"analysis": [
		{"skipped": true},
		{"skipped": true},
		{"depth": 20, "score": {"cp": 30}, "pv": ["g1f3"], "time": 100, "nodes": 1000, "nps": 10000},
		{"depth": 20, "score": {"cp": 25}, "pv": ["b8c6"], "time": 100, "nodes": 1000, "nps": 10000}
	]}`

	submitReq, err := http.NewRequest(
		http.MethodPost,
		ts.URL+"/analysis/"+acquired.Work.ID,
		bytes.NewBufferString(analysisBody),
	)
	require.NoError(t, err)
	submitReq.Header.Set("X-Api-Key", "worker-key")

	submitResp, err := http.DefaultClient.Do(submitReq)
	require.NoError(t, err)

	defer submitResp.Body.Close()

	require.Equal(t, http.StatusNoContent, submitResp.StatusCode)

	statusResp, err := http.Get(ts.URL + "/status")
	require.NoError(t, err)

	defer statusResp.Body.Close()

	require.Equal(t, http.StatusOK, statusResp.StatusCode)

	var status StatusResponse
	require.NoError(t, json.NewDecoder(statusResp.Body).Decode(&status))
	require.Equal(t, int64(0), status.Analysis.Deep.Acquired)
	require.Equal(t, int64(0), status.Analysis.Deep.Queued)
}

func TestWorkerAPI_IngestKeepAliveIsNoContent(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	ts, authStore := newTestServer(t)
	defer ts.Close()

	ctx := context.Background()
	require.NoError(t, authStore.Register(ctx, "worker-key", &model.ApiUser{
		Name:  "worker",
		Perms: []model.AnalysisType{model.Deep},
	}))

	// A keep-alive frame on /ingest is accepted and answered with 204.
	keepAliveBody := `{"keepAlive": true}`

	resp, err := http.Post(ts.URL+"/ingest", "application/json", bytes.NewBufferString(keepAliveBody))
	require.NoError(t, err)

	defer resp.Body.Close()

	require.Equal(t, http.StatusNoContent, resp.StatusCode)
}

func TestWorkerAPI_KeyExistence(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	ts, authStore := newTestServer(t)
	defer ts.Close()

	ctx := context.Background()
	require.NoError(t, authStore.Register(ctx, "known-key", &model.ApiUser{Name: "worker"}))

	resp, err := http.Get(ts.URL + "/key/known-key")
	require.NoError(t, err)

	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp2, err := http.Get(ts.URL + "/key/unknown-key")
	require.NoError(t, err)

	defer resp2.Body.Close()

	require.Equal(t, http.StatusNotFound, resp2.StatusCode)
}

func TestWorkerAPI_AbortReleasesLease(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	ts, authStore := newTestServer(t)
	defer ts.Close()

	ctx := context.Background()
	require.NoError(t, authStore.Register(ctx, "worker-key", &model.ApiUser{
		Name:  "worker",
		Perms: []model.AnalysisType{model.Deep},
	}))

	ingestBody := `{
		"t": "analysis",
		"origin": "random",
		"user": {"id": "suspect2", "titled": false, "engine": false, "games": 1},
		"games": [{"id": "game2", "white": "suspect2", "black": "opponent2", "pgn": "1. d4 d5"}]
	}`

	resp, err := http.Post(ts.URL+"/ingest", "application/json", bytes.NewBufferString(ingestBody))
	require.NoError(t, err)

	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)

	acquireReq, err := http.NewRequest(http.MethodPost, ts.URL+"/acquire", bytes.NewBufferString(`{}`))
	require.NoError(t, err)
	acquireReq.Header.Set("X-Api-Key", "worker-key")

	acquireResp, err := http.DefaultClient.Do(acquireReq)
	require.NoError(t, err)

	defer acquireResp.Body.Close()

	var acquired AcquireResponse
	require.NoError(t, json.NewDecoder(acquireResp.Body).Decode(&acquired))

	abortReq, err := http.NewRequest(
		http.MethodPost,
		ts.URL+"/abort/"+acquired.Work.ID,
		bytes.NewBufferString(`{}`),
	)
	require.NoError(t, err)
	abortReq.Header.Set("X-Api-Key", "worker-key")

	abortResp, err := http.DefaultClient.Do(abortReq)
	require.NoError(t, err)

	defer abortResp.Body.Close()

	require.Equal(t, http.StatusNoContent, abortResp.StatusCode)
}

func TestWorkerAPI_MalformedBodyIsBadRequestNotUnauthorized(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	ts, _ := newTestServer(t)
	defer ts.Close()

	resp, err := http.Post(ts.URL+"/acquire", "application/json", bytes.NewBufferString(`{not json`))
	require.NoError(t, err)

	defer resp.Body.Close()

	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
}
