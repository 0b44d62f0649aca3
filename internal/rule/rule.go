// Package rule implements priority-ordered rule application: restriction
// checking happens before a move is placed (see package restriction); this
// package runs after placement, matching and firing rules in the merged
// total order and applying their score and board actions.
package rule

import (
	"fmt"

	"github.com/go-logr/logr"

	"github.com/brindlegames/gridforge/internal/board"
	"github.com/brindlegames/gridforge/internal/condition"
	"github.com/brindlegames/gridforge/internal/match"
	"github.com/brindlegames/gridforge/internal/pattern"
	"github.com/brindlegames/gridforge/internal/score"
)

// Priority is the rule priority bucket; buckets are
// compared with plain integer ordering, earliest first.
type Priority int

const (
	Earliest Priority = iota
	Earlier
	Early
	Default
	Late
	Later
	Latest
)

// MultimatchMode controls which matches of a firing rule are retained.
type MultimatchMode uint8

const (
	ModeOne MultimatchMode = iota
	ModeHalf
	ModeAll
)

// ScoreAction mutates a player's score when a rule fires.
type ScoreAction struct {
	PlayerIndex int // match-cell index, condition.PlayerCenter, or condition.PlayerActive
	Memo        string
	Op          score.Op
	Value       int64
}

// BoardAction mutates the board when a rule fires.
// PlayerIndex may additionally be condition.PlayerRemove (-3).
// LocationIndex >= 0 selects a match cell; -1 selects the match center.
type BoardAction struct {
	PlayerIndex   int
	LocationIndex int
}

// Rule is one priority-ordered, pattern-triggered rule.
type Rule struct {
	QualifiedName  string
	Priority       Priority
	Pattern        *pattern.Compiled
	MultimatchMode MultimatchMode
	Conditions     []condition.Condition
	ScoreActions   []ScoreAction
	BoardActions   []BoardAction
	ActivePlayer   *board.PlayerID

	// LoadOrder and DeclOrder are assigned by the loader (datapack
	// topological order, then declaration order within the datapack) and
	// are what makes the total rule order deterministic.
	LoadOrder int
	DeclOrder int
}

// Less implements the total rule order: priority bucket, then datapack
// load order, then declaration order within the datapack.
func Less(a, b Rule) bool {
	if a.Priority != b.Priority {
		return a.Priority < b.Priority
	}
	if a.LoadOrder != b.LoadOrder {
		return a.LoadOrder < b.LoadOrder
	}
	return a.DeclOrder < b.DeclOrder
}

// ApplyTurn runs every rule in rules (already in the total rule order)
// against b/scores for the move just placed by activePlayer.
//
// Two-phase execution per rule: every retained match's score actions run
// first (in match order, then action order), then every board action runs.
// The board does not change mid-rule during score computation, but later
// rules in the same call see earlier rules' board mutations - matches for
// rule N+1 are (re)computed against the board as rule N left it.
//
// log receives a V(2) entry for every rule that retains at least one
// match; pass obslog.Discard() to opt out.
func ApplyTurn(rules []Rule, b *board.Board, scores *score.Store, move board.Coord, activePlayer board.PlayerID, log logr.Logger) error {
	for _, r := range rules {
		if r.ActivePlayer != nil && *r.ActivePlayer != activePlayer {
			continue
		}

		matches, err := collectMatches(r, b, scores, move, activePlayer)
		if err != nil {
			return fmt.Errorf("rule %s: %w", r.QualifiedName, err)
		}
		matches = applyMultimatch(r.MultimatchMode, matches)
		if len(matches) == 0 {
			continue
		}
		log.V(2).Info("rule fired", "rule", r.QualifiedName, "matches", len(matches))

		for _, m := range matches {
			for _, sa := range r.ScoreActions {
				if err := applyScoreAction(sa, m, scores, activePlayer); err != nil {
					return fmt.Errorf("rule %s: %w", r.QualifiedName, err)
				}
			}
		}
		for _, m := range matches {
			for _, ba := range r.BoardActions {
				if err := applyBoardAction(ba, m, b, activePlayer); err != nil {
					return fmt.Errorf("rule %s: %w", r.QualifiedName, err)
				}
			}
		}
	}
	return nil
}

func collectMatches(r Rule, b *board.Board, scores *score.Store, move board.Coord, activePlayer board.PlayerID) ([]match.Match, error) {
	all := match.Find(r.Pattern, b, move)
	var out []match.Match
	for _, m := range all {
		ok := true
		for _, c := range r.Conditions {
			pass, err := condition.Evaluate(c, m, scores, activePlayer)
			if err != nil {
				return nil, err
			}
			if !pass {
				ok = false
				break
			}
		}
		if ok {
			out = append(out, m)
		}
	}
	return out, nil
}

func applyMultimatch(mode MultimatchMode, matches []match.Match) []match.Match {
	switch mode {
	case ModeOne:
		if len(matches) == 0 {
			return nil
		}
		return matches[:1]
	case ModeHalf:
		var kept []match.Match
		for _, m := range matches {
			suppressed := false
			for _, k := range kept {
				if match.IsReverse(m.Orientation, k.Orientation) && match.SameCellSet(m, k) {
					suppressed = true
					break
				}
			}
			if !suppressed {
				kept = append(kept, m)
			}
		}
		return kept
	default: // ModeAll
		return matches
	}
}

func applyScoreAction(sa ScoreAction, m match.Match, scores *score.Store, activePlayer board.PlayerID) error {
	player, err := condition.ResolvePlayer(sa.PlayerIndex, m, activePlayer)
	if err != nil {
		if sa.PlayerIndex >= 0 {
			return &condition.AuthoringError{Memo: sa.Memo, PlayerIndex: sa.PlayerIndex}
		}
		return err
	}
	scores.Apply(player, sa.Memo, sa.Op, sa.Value)
	return nil
}

func applyBoardAction(ba BoardAction, m match.Match, b *board.Board, activePlayer board.PlayerID) error {
	loc, err := resolveLocation(ba.LocationIndex, m)
	if err != nil {
		return err
	}

	player, err := resolveActionPlayer(ba.PlayerIndex, m, activePlayer)
	if err != nil {
		return err
	}
	b.Set(loc, player)
	return nil
}

func resolveLocation(index int, m match.Match) (board.Coord, error) {
	if index == -1 {
		return m.CenterCoord, nil
	}
	if index < 0 || index >= len(m.CellCoords) {
		return nil, fmt.Errorf("board action: location index %d out of range for match of length %d", index, len(m.CellCoords))
	}
	return m.CellCoords[index], nil
}

func resolveActionPlayer(index int, m match.Match, activePlayer board.PlayerID) (board.PlayerID, error) {
	switch {
	case index == condition.PlayerRemove:
		return board.Empty, nil
	case index == condition.PlayerActive:
		return activePlayer, nil
	case index == condition.PlayerCenter:
		return m.CenterOwner, nil
	case index >= 0:
		if index >= len(m.CellCoords) {
			return board.Empty, fmt.Errorf("board action: player index %d out of range for match of length %d", index, len(m.CellCoords))
		}
		return m.OwnerAt(index), nil
	default:
		return board.Empty, fmt.Errorf("board action: invalid player index %d", index)
	}
}
