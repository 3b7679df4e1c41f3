package chess

// Move is a fully-resolved legal move: a source and destination square, plus
// an optional promotion piece and flags describing special moves that Apply
// needs to handle beyond "move the piece".
type Move struct {
	From      Square
	To        Square
	Promotion PieceType // None unless this is a pawn promotion
	Piece     PieceType
	Capture   bool
	EnPassant bool
	CastleK   bool
	CastleQ   bool
}

// UCI renders the move in Universal Chess Interface notation.
func (m Move) UCI() string {
	s := m.From.String() + m.To.String()

	switch m.Promotion {
	case Queen:
		s += "q"
	case Rook:
		s += "r"
	case Bishop:
		s += "b"
	case Knight:
		s += "n"
	}

	return s
}

var knightOffsets = [][2]int{{1, 2}, {2, 1}, {2, -1}, {1, -2}, {-1, -2}, {-2, -1}, {-2, 1}, {-1, 2}}
var kingOffsets = [][2]int{{1, 0}, {1, 1}, {0, 1}, {-1, 1}, {-1, 0}, {-1, -1}, {0, -1}, {1, -1}}
var bishopDirs = [][2]int{{1, 1}, {1, -1}, {-1, 1}, {-1, -1}}
var rookDirs = [][2]int{{1, 0}, {-1, 0}, {0, 1}, {0, -1}}

func inBounds(file, rank int) bool { return file >= 0 && file < 8 && rank >= 0 && rank < 8 }

// LegalMoves returns every legal move for the side to move, i.e. every
// pseudo-legal move that does not leave that side's own king in check.
func (b *Board) LegalMoves() []Move {
	pseudo := b.pseudoLegalMoves()
	legal := make([]Move, 0, len(pseudo))

	for _, m := range pseudo {
		probe := b.Clone()
		probe.apply(m)

		if !probe.isAttacked(probe.kingSquare(b.ToMove), b.ToMove.other()) {
			legal = append(legal, m)
		}
	}

	return legal
}

func (b *Board) kingSquare(c Color) Square {
	for sq := Square(0); sq < 64; sq++ {
		p := b.at(sq)
		if p.Type == King && p.Color == c {
			return sq
		}
	}

	return -1
}

func (b *Board) pseudoLegalMoves() []Move {
	var moves []Move

	for sq := Square(0); sq < 64; sq++ {
		p := b.at(sq)
		if p.Type == None || p.Color != b.ToMove {
			continue
		}

		switch p.Type {
		case Pawn:
			moves = append(moves, b.pawnMoves(sq)...)
		case Knight:
			moves = append(moves, b.stepMoves(sq, Knight, knightOffsets)...)
		case Bishop:
			moves = append(moves, b.slideMoves(sq, Bishop, bishopDirs)...)
		case Rook:
			moves = append(moves, b.slideMoves(sq, Rook, rookDirs)...)
		case Queen:
			moves = append(moves, b.slideMoves(sq, Queen, append(append([][2]int{}, bishopDirs...), rookDirs...))...)
		case King:
			moves = append(moves, b.stepMoves(sq, King, kingOffsets)...)
			moves = append(moves, b.castleMoves(sq)...)
		}
	}

	return moves
}

func (b *Board) stepMoves(from Square, pt PieceType, offsets [][2]int) []Move {
	var moves []Move

	file, rank := from.File(), from.Rank()

	for _, o := range offsets {
		nf, nr := file+o[0], rank+o[1]
		if !inBounds(nf, nr) {
			continue
		}

		to := NewSquare(nf, nr)
		target := b.at(to)

		if target.Type != None && target.Color == b.ToMove {
			continue
		}

		moves = append(moves, Move{From: from, To: to, Piece: pt, Capture: target.Type != None})
	}

	return moves
}

func (b *Board) slideMoves(from Square, pt PieceType, dirs [][2]int) []Move {
	var moves []Move

	file, rank := from.File(), from.Rank()

	for _, d := range dirs {
		nf, nr := file+d[0], rank+d[1]

		for inBounds(nf, nr) {
			to := NewSquare(nf, nr)
			target := b.at(to)

			if target.Type != None && target.Color == b.ToMove {
				break
			}

			moves = append(moves, Move{From: from, To: to, Piece: pt, Capture: target.Type != None})

			if target.Type != None {
				break
			}

			nf += d[0]
			nr += d[1]
		}
	}

	return moves
}

func (b *Board) pawnMoves(from Square) []Move {
	var moves []Move

	dir := 1
	startRank := 1
	promoRank := 7

	if b.ToMove == Black {
		dir = -1
		startRank = 6
		promoRank = 0
	}

	file, rank := from.File(), from.Rank()

	addPawnMove := func(to Square, capture bool, enPassant bool) {
		if to.Rank() == promoRank {
			for _, promo := range []PieceType{Queen, Rook, Bishop, Knight} {
				moves = append(moves, Move{From: from, To: to, Piece: Pawn, Promotion: promo, Capture: capture, EnPassant: enPassant})
			}
		} else {
			moves = append(moves, Move{From: from, To: to, Piece: Pawn, Capture: capture, EnPassant: enPassant})
		}
	}

	// single push
	if inBounds(file, rank+dir) {
		oneAhead := NewSquare(file, rank+dir)
		if b.at(oneAhead).Type == None {
			addPawnMove(oneAhead, false, false)

			// double push
			if rank == startRank {
				twoAhead := NewSquare(file, rank+2*dir)
				if b.at(twoAhead).Type == None {
					moves = append(moves, Move{From: from, To: twoAhead, Piece: Pawn})
				}
			}
		}
	}

	// captures, including en passant
	for _, df := range []int{-1, 1} {
		nf, nr := file+df, rank+dir
		if !inBounds(nf, nr) {
			continue
		}

		to := NewSquare(nf, nr)
		target := b.at(to)

		if target.Type != None && target.Color != b.ToMove {
			addPawnMove(to, true, false)
		} else if target.Type == None && b.EnPassant != nil && *b.EnPassant == to {
			addPawnMove(to, true, true)
		}
	}

	return moves
}

func (b *Board) castleMoves(from Square) []Move {
	var moves []Move

	rank := 0
	if b.ToMove == Black {
		rank = 7
	}

	if from != NewSquare(4, rank) {
		return moves
	}

	opponent := b.ToMove.other()

	canKingside := b.Castle.WhiteKingside
	canQueenside := b.Castle.WhiteQueenside

	if b.ToMove == Black {
		canKingside = b.Castle.BlackKingside
		canQueenside = b.Castle.BlackQueenside
	}

	if canKingside &&
		b.at(NewSquare(5, rank)).Type == None && b.at(NewSquare(6, rank)).Type == None &&
		!b.isAttacked(NewSquare(4, rank), opponent) &&
		!b.isAttacked(NewSquare(5, rank), opponent) &&
		!b.isAttacked(NewSquare(6, rank), opponent) {
		moves = append(moves, Move{From: from, To: NewSquare(6, rank), Piece: King, CastleK: true})
	}

	if canQueenside &&
		b.at(NewSquare(3, rank)).Type == None && b.at(NewSquare(2, rank)).Type == None && b.at(NewSquare(1, rank)).Type == None &&
		!b.isAttacked(NewSquare(4, rank), opponent) &&
		!b.isAttacked(NewSquare(3, rank), opponent) &&
		!b.isAttacked(NewSquare(2, rank), opponent) {
		moves = append(moves, Move{From: from, To: NewSquare(2, rank), Piece: King, CastleQ: true})
	}

	return moves
}

// isAttacked reports whether sq is attacked by any piece of the given color.
func (b *Board) isAttacked(sq Square, by Color) bool {
	if sq < 0 {
		return false
	}

	// Pawn attacks.
	dir := -1
	if by == Black {
		dir = 1
	}

	for _, df := range []int{-1, 1} {
		nf, nr := sq.File()+df, sq.Rank()+dir
		if inBounds(nf, nr) {
			p := b.at(NewSquare(nf, nr))
			if p.Type == Pawn && p.Color == by {
				return true
			}
		}
	}

	for _, o := range knightOffsets {
		nf, nr := sq.File()+o[0], sq.Rank()+o[1]
		if inBounds(nf, nr) {
			p := b.at(NewSquare(nf, nr))
			if p.Type == Knight && p.Color == by {
				return true
			}
		}
	}

	for _, o := range kingOffsets {
		nf, nr := sq.File()+o[0], sq.Rank()+o[1]
		if inBounds(nf, nr) {
			p := b.at(NewSquare(nf, nr))
			if p.Type == King && p.Color == by {
				return true
			}
		}
	}

	for _, d := range bishopDirs {
		if b.rayAttacked(sq, d, by, Bishop, Queen) {
			return true
		}
	}

	for _, d := range rookDirs {
		if b.rayAttacked(sq, d, by, Rook, Queen) {
			return true
		}
	}

	return false
}

func (b *Board) rayAttacked(from Square, dir [2]int, by Color, slider1, slider2 PieceType) bool {
	nf, nr := from.File()+dir[0], from.Rank()+dir[1]

	for inBounds(nf, nr) {
		p := b.at(NewSquare(nf, nr))
		if p.Type != None {
			if p.Color == by && (p.Type == slider1 || p.Type == slider2) {
				return true
			}

			return false
		}

		nf += dir[0]
		nr += dir[1]
	}

	return false
}

// apply mutates the board to reflect move m, without legality checking.
// Exported as Apply for callers that already hold a legal move (e.g. from
// LegalMoves or SAN parsing).
func (b *Board) Apply(m Move) { b.apply(m) }

func (b *Board) apply(m Move) {
	mover := b.at(m.From)

	b.EnPassant = nil

	if m.CastleK || m.CastleQ {
		rank := m.From.Rank()
		b.clear(m.From)
		b.set(m.To, mover)

		if m.CastleK {
			rook := b.at(NewSquare(7, rank))
			b.clear(NewSquare(7, rank))
			b.set(NewSquare(5, rank), rook)
		} else {
			rook := b.at(NewSquare(0, rank))
			b.clear(NewSquare(0, rank))
			b.set(NewSquare(3, rank), rook)
		}
	} else if m.EnPassant {
		b.clear(m.From)
		b.set(m.To, mover)
		capturedRank := m.From.Rank()
		b.clear(NewSquare(m.To.File(), capturedRank))
	} else {
		b.clear(m.From)

		if m.Promotion != None {
			mover.Type = m.Promotion
		}

		b.set(m.To, mover)

		if mover.Type == Pawn {
			rankDelta := m.To.Rank() - m.From.Rank()
			if rankDelta == 2 || rankDelta == -2 {
				epRank := (m.To.Rank() + m.From.Rank()) / 2
				ep := NewSquare(m.From.File(), epRank)
				b.EnPassant = &ep
			}
		}
	}

	b.updateCastleRights(m, mover)

	b.ToMove = b.ToMove.other()
}

func (b *Board) updateCastleRights(m Move, mover Piece) {
	if mover.Type == King {
		if mover.Color == White {
			b.Castle.WhiteKingside = false
			b.Castle.WhiteQueenside = false
		} else {
			b.Castle.BlackKingside = false
			b.Castle.BlackQueenside = false
		}
	}

	clearIfRookSquare := func(sq Square) {
		switch sq {
		case NewSquare(0, 0):
			b.Castle.WhiteQueenside = false
		case NewSquare(7, 0):
			b.Castle.WhiteKingside = false
		case NewSquare(0, 7):
			b.Castle.BlackQueenside = false
		case NewSquare(7, 7):
			b.Castle.BlackKingside = false
		}
	}

	clearIfRookSquare(m.From)
	clearIfRookSquare(m.To)
}

// InCheck reports whether the side to move is currently in check.
func (b *Board) InCheck() bool {
	return b.isAttacked(b.kingSquare(b.ToMove), b.ToMove.other())
}
