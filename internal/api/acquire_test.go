package api

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/lila-deepq/deepq/internal/model"
)

func TestBuildAcquireResponse_DeepPolicyIncludesMultiPV(t *testing.T) {
	if !testing.Short() {
		t.Skip("skipping unit test in non-short mode")
	}

	job := &model.Job{ID: "job-1", GameID: "game-1", AnalysisType: model.Deep}
	game := &model.Game{ID: "game-1", Moves: []string{"e2e4", "e7e5"}}

	resp := buildAcquireResponse(job, game)

	require.Equal(t, "analysis", resp.Work.Type)
	require.Equal(t, "job-1", resp.Work.ID)
	require.Equal(t, int64(2_500_000), resp.Work.Nodes.NNUE)
	require.Equal(t, int64(4_500_000), resp.Work.Nodes.Classical)
	require.NotNil(t, resp.Work.MultiPV)
	require.Equal(t, 5, *resp.Work.MultiPV)
	require.Equal(t, "e2e4 e7e5", resp.Moves)
	require.Empty(t, resp.SkipPositions)
}

func TestBuildAcquireResponse_UserAnalysisSkipsOpeningPlies(t *testing.T) {
	if !testing.Short() {
		t.Skip("skipping unit test in non-short mode")
	}

	job := &model.Job{ID: "job-2", GameID: "game-2", AnalysisType: model.UserAnalysis}
	game := &model.Game{ID: "game-2", Moves: []string{"e2e4"}}

	resp := buildAcquireResponse(job, game)

	require.Nil(t, resp.Work.MultiPV)
	require.Len(t, resp.SkipPositions, 10)
	require.Equal(t, 0, resp.SkipPositions[0])
	require.Equal(t, 9, resp.SkipPositions[9])
}

func TestJoinMoves(t *testing.T) {
	if !testing.Short() {
		t.Skip("skipping unit test in non-short mode")
	}

	require.Equal(t, "", joinMoves(nil))
	require.Equal(t, "e2e4", joinMoves([]string{"e2e4"}))
	require.Equal(t, "e2e4 e7e5 g1f3", joinMoves([]string{"e2e4", "e7e5", "g1f3"}))
}
