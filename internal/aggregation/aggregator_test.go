package aggregation

import (
	"testing"

	"github.com/lila-deepq/deepq/internal/model"
)

func TestComplete(t *testing.T) {
	if !testing.Short() {
		t.Skip("skipping unit test in non-short mode")
	}

	cases := []struct {
		name string
		jobs []*model.Job
		want bool
	}{
		{name: "no jobs", jobs: nil, want: false},
		{name: "all complete", jobs: []*model.Job{{IsComplete: true}, {IsComplete: true}}, want: true},
		{name: "one incomplete", jobs: []*model.Job{{IsComplete: true}, {IsComplete: false}}, want: false},
	}

	for _, tt := range cases {
		t.Run(tt.name, func(t *testing.T) {
			if got := complete(tt.jobs); got != tt.want {
				t.Errorf("complete() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestGameToWire_SkipsSkippedPlies(t *testing.T) {
	if !testing.Short() {
		t.Skip("skipping unit test in non-short mode")
	}

	white := model.UserId("alice")
	g := &model.Game{ID: "g1", Moves: []string{"e2e4", "e7e5", "g1f3"}, White: &white}
	analysis := &model.GameAnalysis{
		Plies: []model.PlyAnalysis{
			{Kind: model.PlySkipped},
			{Kind: model.PlyFull, Score: model.CpScore(25)},
			{Kind: model.PlyEmpty, Score: model.MateScore(3)},
		},
	}

	wire := gameToWire(g, analysis)

	if len(wire.Analysis) != 2 {
		t.Fatalf("Analysis len = %d, want 2 (skipped ply dropped)", len(wire.Analysis))
	}

	if wire.White == nil || *wire.White != "alice" {
		t.Errorf("White = %v, want alice", wire.White)
	}

	if len(wire.PGN) != 3 || wire.PGN[2] != "g1f3" {
		t.Errorf("PGN = %v", wire.PGN)
	}
}
