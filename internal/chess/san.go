package chess

import (
	"fmt"
	"strings"
)

// ErrIllegalMove is returned when a SAN token does not match any legal move
// in the current position.
type ErrIllegalMove struct {
	SAN string
	Ply int
}

func (e *ErrIllegalMove) Error() string {
	return fmt.Sprintf("chess: illegal move %q at ply %d", e.SAN, e.Ply)
}

var pieceLetters = map[byte]PieceType{
	'N': Knight,
	'B': Bishop,
	'R': Rook,
	'Q': Queen,
	'K': King,
}

// parseSAN resolves a single SAN token against the legal moves available in
// position b, returning the one legal move it denotes.
func parseSAN(b *Board, san string) (Move, error) {
	token := strings.TrimRight(san, "+#!?")
	token = strings.TrimSpace(token)

	if token == "O-O" || token == "0-0" {
		return findCastle(b, true)
	}

	if token == "O-O-O" || token == "0-0-0" {
		return findCastle(b, false)
	}

	pieceType := Pawn
	rest := token

	if len(token) > 0 {
		if pt, ok := pieceLetters[token[0]]; ok {
			pieceType = pt
			rest = token[1:]
		}
	}

	var promotion PieceType

	if idx := strings.IndexByte(rest, '='); idx >= 0 {
		promoLetter := rest[idx+1]
		if pt, ok := pieceLetters[promoLetter]; ok {
			promotion = pt
		}

		rest = rest[:idx]
	}

	rest = strings.ReplaceAll(rest, "x", "")

	if len(rest) < 2 {
		return Move{}, fmt.Errorf("chess: malformed SAN token %q", san)
	}

	destStr := rest[len(rest)-2:]
	disambig := rest[:len(rest)-2]

	dest, err := ParseSquare(destStr)
	if err != nil {
		return Move{}, fmt.Errorf("chess: malformed SAN token %q: %w", san, err)
	}

	var fileHint, rankHint = -1, -1

	for _, c := range disambig {
		switch {
		case c >= 'a' && c <= 'h':
			fileHint = int(c - 'a')
		case c >= '1' && c <= '8':
			rankHint = int(c - '1')
		}
	}

	var candidates []Move

	for _, m := range b.LegalMoves() {
		if m.Piece != pieceType || m.To != dest {
			continue
		}

		if pieceType == Pawn && m.Promotion != promotion {
			continue
		}

		if fileHint >= 0 && m.From.File() != fileHint {
			continue
		}

		if rankHint >= 0 && m.From.Rank() != rankHint {
			continue
		}

		candidates = append(candidates, m)
	}

	switch len(candidates) {
	case 0:
		return Move{}, &ErrIllegalMove{SAN: san}
	case 1:
		return candidates[0], nil
	default:
		return Move{}, fmt.Errorf("chess: ambiguous SAN token %q", san)
	}
}

func findCastle(b *Board, kingside bool) (Move, error) {
	for _, m := range b.LegalMoves() {
		if kingside && m.CastleK {
			return m, nil
		}

		if !kingside && m.CastleQ {
			return m, nil
		}
	}

	return Move{}, &ErrIllegalMove{SAN: map[bool]string{true: "O-O", false: "O-O-O"}[kingside]}
}

// TranslateSANToUCI plays a space-separated sequence of SAN moves from the
// standard starting position and returns the equivalent UCI moves in order.
// Fails the whole sequence (returns no partial result) the moment any move
// is illegal, matching the Ingestor's "no partial state on InvalidMoves"
// contract.
func TranslateSANToUCI(pgn string) ([]string, error) {
	fields := strings.Fields(pgn)
	board := StartingPosition()
	uci := make([]string, 0, len(fields))

	for i, tok := range fields {
		if isMoveNumber(tok) {
			continue
		}

		move, err := parseSAN(board, tok)
		if err != nil {
			var illegal *ErrIllegalMove
			if asIllegalMove(err, &illegal) {
				illegal.Ply = len(uci)

				return nil, illegal
			}

			return nil, fmt.Errorf("chess: move %d (%q): %w", i, tok, err)
		}

		board.Apply(move)
		uci = append(uci, move.UCI())
	}

	return uci, nil
}

func asIllegalMove(err error, target **ErrIllegalMove) bool {
	if im, ok := err.(*ErrIllegalMove); ok {
		*target = im

		return true
	}

	return false
}

// isMoveNumber reports whether tok is a PGN move-number marker like "1." or
// "12...", which TranslateSANToUCI tolerates even though the Ingestor's wire
// format normally sends bare SAN tokens.
func isMoveNumber(tok string) bool {
	if tok == "" {
		return false
	}

	for _, c := range tok {
		if c == '.' {
			return true
		}

		if c < '0' || c > '9' {
			return false
		}
	}

	return false
}
