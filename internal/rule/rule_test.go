package rule

import (
	"testing"

	"github.com/brindlegames/gridforge/internal/board"
	"github.com/brindlegames/gridforge/internal/condition"
	"github.com/brindlegames/gridforge/internal/obslog"
	"github.com/brindlegames/gridforge/internal/pattern"
	"github.com/brindlegames/gridforge/internal/score"
)

func mustCompile(t *testing.T, raw string) *pattern.Compiled {
	t.Helper()
	c, err := pattern.Compile(raw)
	if err != nil {
		t.Fatalf("Compile(%q): %v", raw, err)
	}
	return c
}

func TestApplyTurnFiveInARowWinScore(t *testing.T) {
	b := board.New([]int{19, 19}, board.TopologyStop)
	for col := 11; col <= 14; col++ {
		b.Set(board.Coord{10, col}, 0)
	}
	b.Set(board.Coord{10, 10}, 0)

	s := score.New(2)
	win := Rule{
		QualifiedName:  "pente.win",
		Priority:       Default,
		Pattern:        mustCompile(t, "[X]XXXX"),
		MultimatchMode: ModeOne,
		ScoreActions: []ScoreAction{
			{PlayerIndex: condition.PlayerActive, Memo: "pente.wins", Op: score.OpAdd, Value: 1},
		},
	}

	if err := ApplyTurn([]Rule{win}, b, s, board.Coord{10, 10}, 0, obslog.Discard()); err != nil {
		t.Fatalf("ApplyTurn: %v", err)
	}
	if got := s.Get(0, "pente.wins"); got != 1 {
		t.Errorf("pente.wins = %d, want 1", got)
	}
}

func TestApplyTurnCaptureRemovesStonesAndScores(t *testing.T) {
	b := board.New([]int{19, 19}, board.TopologyStop)
	b.Set(board.Coord{5, 1}, 0) // X
	b.Set(board.Coord{5, 2}, 1) // O
	b.Set(board.Coord{5, 3}, 1) // O
	b.Set(board.Coord{5, 4}, 0) // move: X

	s := score.New(2)
	capture := Rule{
		QualifiedName:  "pente.capture",
		Priority:       Default,
		Pattern:        mustCompile(t, "[X]OOX"),
		MultimatchMode: ModeAll,
		ScoreActions: []ScoreAction{
			{PlayerIndex: condition.PlayerActive, Memo: "pente.captures", Op: score.OpAdd, Value: 2},
		},
		BoardActions: []BoardAction{
			{PlayerIndex: condition.PlayerRemove, LocationIndex: 1},
			{PlayerIndex: condition.PlayerRemove, LocationIndex: 2},
		},
	}

	if err := ApplyTurn([]Rule{capture}, b, s, board.Coord{5, 4}, 0, obslog.Discard()); err != nil {
		t.Fatalf("ApplyTurn: %v", err)
	}
	if !b.IsEmpty(board.Coord{5, 2}) || !b.IsEmpty(board.Coord{5, 3}) {
		t.Errorf("captured stones should have been removed")
	}
	if got := s.Get(0, "pente.captures"); got != 2 {
		t.Errorf("pente.captures = %d, want 2", got)
	}
}

func TestApplyTurnHalfVsAllMultimatch(t *testing.T) {
	// Palindromic pattern X.X centered on the move: two symmetric
	// orientations (v and -v) see the same cell set.
	newBoard := func() *board.Board {
		b := board.New([]int{19, 19}, board.TopologyStop)
		b.Set(board.Coord{9, 9}, 0)
		b.Set(board.Coord{9, 11}, 0)
		b.Set(board.Coord{9, 10}, 0)
		return b
	}

	half := Rule{
		QualifiedName:  "test.half",
		Pattern:        mustCompile(t, "X.X"),
		MultimatchMode: ModeHalf,
		ScoreActions: []ScoreAction{
			{PlayerIndex: condition.PlayerActive, Memo: "test.fires", Op: score.OpAdd, Value: 1},
		},
	}
	all := half
	all.MultimatchMode = ModeAll

	bHalf := newBoard()
	sHalf := score.New(2)
	if err := ApplyTurn([]Rule{half}, bHalf, sHalf, board.Coord{9, 10}, 0, obslog.Discard()); err != nil {
		t.Fatalf("ApplyTurn (half): %v", err)
	}

	bAll := newBoard()
	sAll := score.New(2)
	if err := ApplyTurn([]Rule{all}, bAll, sAll, board.Coord{9, 10}, 0, obslog.Discard()); err != nil {
		t.Fatalf("ApplyTurn (all): %v", err)
	}

	halfFires := sHalf.Get(0, "test.fires")
	allFires := sAll.Get(0, "test.fires")
	if allFires <= halfFires {
		t.Errorf("all-mode fires (%d) should exceed half-mode fires (%d) for a symmetric pattern", allFires, halfFires)
	}
}

func TestApplyTurnSequentialRulesSeeEarlierMutations(t *testing.T) {
	b := board.New([]int{19, 19}, board.TopologyStop)
	b.Set(board.Coord{5, 1}, 0)
	b.Set(board.Coord{5, 2}, 0) // the move is placed before rules run
	s := score.New(2)

	place := Rule{
		QualifiedName: "a.place",
		Priority:      Earliest,
		Pattern:       mustCompile(t, "[X]"),
		BoardActions: []BoardAction{
			{PlayerIndex: condition.PlayerActive, LocationIndex: -1},
		},
	}
	// A later rule looks for two-in-a-row created by the earlier rule's
	// board action (which, in this contrived test, is a no-op re-placement
	// of the move itself) plus the pre-existing stone.
	countPair := Rule{
		QualifiedName:  "b.count_pair",
		Priority:       Default,
		Pattern:        mustCompile(t, "[X]X"),
		MultimatchMode: ModeOne,
		ScoreActions: []ScoreAction{
			{PlayerIndex: condition.PlayerActive, Memo: "b.pairs", Op: score.OpAdd, Value: 1},
		},
	}

	if err := ApplyTurn([]Rule{place, countPair}, b, s, board.Coord{5, 2}, 0, obslog.Discard()); err != nil {
		t.Fatalf("ApplyTurn: %v", err)
	}
	if got := s.Get(0, "b.pairs"); got != 1 {
		t.Errorf("b.pairs = %d, want 1", got)
	}
}

func TestLessOrdersByPriorityThenLoadThenDecl(t *testing.T) {
	a := Rule{Priority: Early, LoadOrder: 1, DeclOrder: 0}
	b := Rule{Priority: Default, LoadOrder: 0, DeclOrder: 0}
	if !Less(a, b) {
		t.Errorf("earlier priority must sort first regardless of load order")
	}

	c := Rule{Priority: Default, LoadOrder: 0, DeclOrder: 1}
	d := Rule{Priority: Default, LoadOrder: 0, DeclOrder: 0}
	if Less(c, d) {
		t.Errorf("higher declaration order must not sort first")
	}
}
