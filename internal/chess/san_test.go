package chess

import "testing"

func TestTranslateSANToUCI_OpeningSequence(t *testing.T) {
	uci, err := TranslateSANToUCI("e4 e5 Nf3 Nc6")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := []string{"e2e4", "e7e5", "g1f3", "b8c6"}

	if len(uci) != len(want) {
		t.Fatalf("got %v, want %v", uci, want)
	}

	for i := range want {
		if uci[i] != want[i] {
			t.Errorf("move %d: got %q, want %q", i, uci[i], want[i])
		}
	}
}

func TestTranslateSANToUCI_CastlingAndCapture(t *testing.T) {
	uci, err := TranslateSANToUCI("e4 e5 Nf3 Nc6 Bc4 Bc5 O-O Nf6")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if uci[6] != "e1g1" {
		t.Errorf("castle move: got %q, want e1g1", uci[6])
	}
}

func TestTranslateSANToUCI_IllegalMoveFailsWhole(t *testing.T) {
	_, err := TranslateSANToUCI("e4 e5 Nf3 Nc6 Bb5 a6 Bxc6 dxc6 Nxe5 Qe7 Nf3 Bxh2")
	if err == nil {
		t.Fatal("expected error for unreachable bishop move")
	}
}

func TestTranslateSANToUCI_Disambiguation(t *testing.T) {
	// Knights on b1 and f3 can both reach d2: disambiguation by file is
	// required to pick the one starting on b1.
	uci, err := TranslateSANToUCI("d4 d5 Nf3 Nf6 Nbd2 Nc6")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if uci[4] != "b1d2" {
		t.Errorf("got %q, want b1d2", uci[4])
	}
}

func TestTranslateSANToUCI_EmptyInput(t *testing.T) {
	uci, err := TranslateSANToUCI("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(uci) != 0 {
		t.Errorf("expected no moves, got %v", uci)
	}
}

func TestStartingFEN_IsNonEmpty(t *testing.T) {
	if StartingFEN == "" {
		t.Fatal("StartingFEN must be non-empty")
	}
}
