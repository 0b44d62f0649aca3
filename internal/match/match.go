// Package match enumerates pattern matches against a board around a move
// coordinate.
package match

import (
	"github.com/brindlegames/gridforge/internal/board"
	"github.com/brindlegames/gridforge/internal/orient"
	"github.com/brindlegames/gridforge/internal/pattern"
)

// Match is a concrete instantiation of a pattern at an (orientation,
// anchor) pair that contains the move coordinate.
type Match struct {
	OrientationIndex int
	Orientation      orient.Vector
	Anchor           board.Coord   // coordinate of the pattern's first cell
	CenterCoord      board.Coord   // the coordinate bound to the move
	CellCoords       []board.Coord // one per pattern cell, in pattern order
	Owners           []board.PlayerID
	CenterOwner      board.PlayerID
	Bindings         [26]board.PlayerID
}

// OwnerAt returns the player owning the stone at the i-th match cell, as
// observed at match time, or board.Empty.
func (m Match) OwnerAt(i int) board.PlayerID {
	if i < 0 || i >= len(m.Owners) {
		return board.Empty
	}
	return m.Owners[i]
}

func newBindings() [26]board.PlayerID {
	var b [26]board.PlayerID
	for i := range b {
		b[i] = board.Empty
	}
	return b
}

// Find returns every admissible match of pat against b that contains move,
// in canonical (orientation, anchor) order.
func Find(pat *pattern.Compiled, b *board.Board, move board.Coord) []Match {
	var out []Match
	l := pat.Len()
	orientations := orient.For(b.NDims())

	centerCandidates := make([]int, 0, l)
	if pat.HasFixedCenter() {
		centerCandidates = append(centerCandidates, pat.CenterIndex)
	} else {
		for i := 0; i < l; i++ {
			centerCandidates = append(centerCandidates, i)
		}
	}

	for orientIdx, v := range orientations {
		for _, i := range centerCandidates {
			m, ok := tryMatch(pat, b, move, v, orientIdx, i)
			if ok {
				out = append(out, m)
			}
		}
	}
	return out
}

func tryMatch(pat *pattern.Compiled, b *board.Board, move board.Coord, v orient.Vector, orientIdx, centerIdx int) (Match, bool) {
	l := pat.Len()
	n := b.NDims()

	cells := make([]board.Coord, l)
	for k := 0; k < l; k++ {
		offset := k - centerIdx
		c := make(board.Coord, n)
		for axis := 0; axis < n; axis++ {
			c[axis] = move[axis] + offset*v[axis]
		}
		if !b.InBounds(c) {
			return Match{}, false
		}
		cells[k] = c
	}

	bindings := newBindings()

	// Pass 1: establish uppercase (Same) bindings, left to right.
	for k := 0; k < l; k++ {
		pred := pat.Cells[k]
		if pred.Kind != pattern.KindAlias || pred.Polarity != pattern.Same {
			continue
		}
		owner := b.Get(cells[k])
		if owner == board.Empty {
			return Match{}, false
		}
		if bindings[pred.Letter] == board.Empty {
			bindings[pred.Letter] = owner
		} else if bindings[pred.Letter] != owner {
			return Match{}, false
		}
	}

	// Pass 2: check every cell, including Opposite aliases which now have
	// a resolved uppercase binding available regardless of string order.
	for k := 0; k < l; k++ {
		pred := pat.Cells[k]
		cell := cells[k]
		switch pred.Kind {
		case pattern.KindAny:
			// always passes
		case pattern.KindEmpty:
			if !b.IsEmpty(cell) {
				return Match{}, false
			}
		case pattern.KindAnyStone:
			if b.IsEmpty(cell) {
				return Match{}, false
			}
		case pattern.KindAlias:
			owner := b.Get(cell)
			if owner == board.Empty {
				return Match{}, false
			}
			if pred.Polarity == pattern.Same {
				// Already validated in pass 1.
				continue
			}
			bound := bindings[pred.Letter]
			if bound == board.Empty || owner == bound {
				return Match{}, false
			}
		}
	}

	owners := make([]board.PlayerID, l)
	for k, c := range cells {
		owners[k] = b.Get(c)
	}

	return Match{
		OrientationIndex: orientIdx,
		Orientation:      v,
		Anchor:           cells[0],
		CenterCoord:      cells[centerIdx],
		CellCoords:       cells,
		Owners:           owners,
		CenterOwner:      owners[centerIdx],
		Bindings:         bindings,
	}, true
}

// SameCellSet reports whether two matches cover the same set of board
// cells, independent of orientation and traversal order. Used for the
// reverse-orientation dedup of half-mode.
func SameCellSet(a, b Match) bool {
	if len(a.CellCoords) != len(b.CellCoords) {
		return false
	}
	used := make([]bool, len(b.CellCoords))
	for _, ca := range a.CellCoords {
		found := false
		for j, cb := range b.CellCoords {
			if used[j] {
				continue
			}
			if ca.Equal(cb) {
				used[j] = true
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

// IsReverse reports whether orientation v is the negation of w.
func IsReverse(v, w orient.Vector) bool {
	if len(v) != len(w) {
		return false
	}
	for i := range v {
		if v[i] != -w[i] {
			return false
		}
	}
	return true
}
