// Package restriction evaluates boolean-composed restrictions to decide
// move legality.
package restriction

import (
	"github.com/brindlegames/gridforge/internal/board"
	"github.com/brindlegames/gridforge/internal/condition"
	"github.com/brindlegames/gridforge/internal/match"
	"github.com/brindlegames/gridforge/internal/pattern"
	"github.com/brindlegames/gridforge/internal/score"
)

// Kind tags the restriction variant.
type Kind uint8

const (
	KindPattern Kind = iota
	KindDisjunction
)

// Restriction is the tagged union of PatternRestriction and
// DisjunctionRestriction.
type Restriction struct {
	Kind Kind

	// Top-level restrictions carry a qualified name; nested ones are
	// anonymous and cannot be overridden.
	QualifiedName string

	// PatternRestriction fields.
	Pattern      *pattern.Compiled
	Conditions   []condition.Condition
	ActivePlayer *board.PlayerID
	Negate       bool

	// DisjunctionRestriction fields: DNF groups, each an AND of
	// sub-restrictions; the disjunction holds iff any group holds.
	Conjunctions [][]Restriction
}

// Holds evaluates whether r holds for the hypothetical board state after
// placing at move, for the given active player.
func Holds(r Restriction, b *board.Board, move board.Coord, scores *score.Store, activePlayer board.PlayerID) (bool, error) {
	switch r.Kind {
	case KindPattern:
		return patternHolds(r, b, move, scores, activePlayer)
	case KindDisjunction:
		for _, group := range r.Conjunctions {
			groupHolds := true
			for _, sub := range group {
				ok, err := Holds(sub, b, move, scores, activePlayer)
				if err != nil {
					return false, err
				}
				if !ok {
					groupHolds = false
					break
				}
			}
			if groupHolds {
				return true, nil
			}
		}
		return false, nil
	default:
		return false, nil
	}
}

func patternHolds(r Restriction, b *board.Board, move board.Coord, scores *score.Store, activePlayer board.PlayerID) (bool, error) {
	if r.ActivePlayer != nil && *r.ActivePlayer != activePlayer {
		// A restriction scoped to a different active player trivially
		// holds: it does not block the move.
		return true, nil
	}

	matches := match.Find(r.Pattern, b, move)
	satisfied := false
	for _, m := range matches {
		allConds := true
		for _, c := range r.Conditions {
			ok, err := condition.Evaluate(c, m, scores, activePlayer)
			if err != nil {
				return false, err
			}
			if !ok {
				allConds = false
				break
			}
		}
		if allConds {
			satisfied = true
			break
		}
	}

	if r.Negate {
		return !satisfied, nil
	}
	return satisfied, nil
}

// IsLegal decides whether move is legal for activePlayer: placement on an
// occupied cell is always illegal, independent of restrictions; otherwise
// the move is legal iff every top-level restriction holds against the
// post-placement hypothetical (the stone is placed temporarily, every
// restriction is evaluated, and the board is restored before returning),
// keeping IsLegal pure and side-effect free.
func IsLegal(restrictions []Restriction, b *board.Board, move board.Coord, scores *score.Store, activePlayer board.PlayerID) (bool, error) {
	if !b.InBounds(move) {
		return false, nil
	}
	if !b.IsEmpty(move) {
		return false, nil
	}

	b.Set(move, activePlayer)
	defer b.Set(move, board.Empty)

	for _, r := range restrictions {
		ok, err := Holds(r, b, move, scores, activePlayer)
		if err != nil {
			return false, err
		}
		if !ok {
			return false, nil
		}
	}
	return true, nil
}
