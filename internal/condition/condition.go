// Package condition evaluates score- and coordinate-conditions against a
// match.
package condition

import (
	"fmt"

	"github.com/brindlegames/gridforge/internal/board"
	"github.com/brindlegames/gridforge/internal/match"
	"github.com/brindlegames/gridforge/internal/score"
)

// Special player-index sentinels for ScoreCondition.PlayerIndex and for
// ScoreAction.PlayerIndex.
const (
	PlayerCenter = -1
	PlayerActive = -2
	// PlayerRemove is only meaningful for BoardAction.PlayerIndex.
	PlayerRemove = -3
)

// Kind tags the condition variant.
type Kind uint8

const (
	KindScore Kind = iota
	KindCoords
)

// Condition is the tagged union of ScoreCondition and CoordsCondition.
type Condition struct {
	Kind Kind

	// ScoreCondition fields.
	PlayerIndex int // >=0 match-cell index, PlayerCenter, or PlayerActive
	Memo        string
	Min         *int64
	Max         *int64

	// CoordsCondition fields.
	Axes []int
	CMin *int
	CMax *int
}

// AuthoringError reports a datapack bug discovered at runtime: a
// ScoreCondition's player index resolves to an empty cell. It is
// distinct from a LoadError because it can only be detected once a
// concrete match exists.
type AuthoringError struct {
	Memo        string
	PlayerIndex int
}

func (e *AuthoringError) Error() string {
	return fmt.Sprintf("datapack error: score condition for memo %q references match cell %d, which is empty", e.Memo, e.PlayerIndex)
}

// Evaluate reports whether cond holds for m, given the active player and
// score state.
func Evaluate(cond Condition, m match.Match, scores *score.Store, activePlayer board.PlayerID) (bool, error) {
	switch cond.Kind {
	case KindScore:
		return evaluateScore(cond, m, scores, activePlayer)
	case KindCoords:
		return evaluateCoords(cond, m), nil
	default:
		return false, fmt.Errorf("condition: unknown kind %d", cond.Kind)
	}
}

func evaluateScore(cond Condition, m match.Match, scores *score.Store, activePlayer board.PlayerID) (bool, error) {
	player, err := ResolvePlayer(cond.PlayerIndex, m, activePlayer)
	if err != nil {
		if cond.PlayerIndex >= 0 {
			return false, &AuthoringError{Memo: cond.Memo, PlayerIndex: cond.PlayerIndex}
		}
		return false, err
	}

	v := scores.Get(player, cond.Memo)
	if cond.Min != nil && v < *cond.Min {
		return false, nil
	}
	if cond.Max != nil && v > *cond.Max {
		return false, nil
	}
	return true, nil
}

// ResolvePlayer resolves a match-relative player index:
// >=0 selects the owner of that match cell, PlayerCenter the owner at the
// match's center, PlayerActive the active player. Returns an error if a
// non-negative index addresses an empty cell.
func ResolvePlayer(index int, m match.Match, activePlayer board.PlayerID) (board.PlayerID, error) {
	switch {
	case index == PlayerActive:
		return activePlayer, nil
	case index == PlayerCenter:
		if m.CenterOwner == board.Empty {
			return board.Empty, fmt.Errorf("condition: center cell is empty")
		}
		return m.CenterOwner, nil
	case index >= 0:
		if index >= len(m.CellCoords) {
			return board.Empty, fmt.Errorf("condition: player index %d out of range for match of length %d", index, len(m.CellCoords))
		}
		owner := m.OwnerAt(index)
		if owner == board.Empty {
			return board.Empty, fmt.Errorf("condition: match cell %d is empty", index)
		}
		return owner, nil
	default:
		return board.Empty, fmt.Errorf("condition: invalid player index %d", index)
	}
}

func evaluateCoords(cond Condition, m match.Match) bool {
	for _, axis := range cond.Axes {
		v := m.CenterCoord[axis]
		if cond.CMin != nil && v < *cond.CMin {
			return false
		}
		if cond.CMax != nil && v > *cond.CMax {
			return false
		}
	}
	return true
}
