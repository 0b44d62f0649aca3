package engine

import (
	"context"
	"testing"

	"github.com/brindlegames/gridforge/internal/board"
	"github.com/brindlegames/gridforge/internal/datapack"
	"github.com/brindlegames/gridforge/internal/score"
)

func threshold(v int64) *int64 { return &v }

func penteDoc() datapack.Document {
	return datapack.Document{
		Name:  "pente",
		Board: &datapack.BoardSpec{Dimensions: []int{19, 19}, Topology: "stop"},
		Scores: []datapack.ScoreSpec{
			{QualifiedMemo: "pente.wins", Threshold: threshold(0)},
			{QualifiedMemo: "pente.captures"},
		},
		Rules: []datapack.RuleSpec{
			{
				QualifiedName:  "pente.win",
				Pattern:        "[X]XXXX",
				MultimatchMode: "one",
				ScoreActions: []datapack.ScoreActionSpec{
					{PlayerIndex: -2, Memo: "pente.wins", Op: "add", Value: 1},
				},
			},
			{
				QualifiedName:  "pente.capture",
				Pattern:        "[X]OOX",
				MultimatchMode: "all",
				ScoreActions: []datapack.ScoreActionSpec{
					{PlayerIndex: -2, Memo: "pente.captures", Op: "add", Value: 2},
				},
				BoardActions: []datapack.BoardActionSpec{
					{PlayerIndex: -3, LocationIndex: 1},
					{PlayerIndex: -3, LocationIndex: 2},
				},
			},
		},
	}
}

func TestEngineFiveInARowWin(t *testing.T) {
	e := New()
	rs, err := e.Load(context.Background(), []datapack.Document{penteDoc()})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	st := e.NewGame(rs, 2)
	for col := 11; col <= 14; col++ {
		st.Board.Set(board.Coord{10, col}, 0)
	}

	legal, err := e.IsLegal(st, board.Coord{10, 10})
	if err != nil || !legal {
		t.Fatalf("IsLegal: legal=%v err=%v", legal, err)
	}

	next, err := e.Apply(context.Background(), st, board.Coord{10, 10})
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if winner, ok := e.Winner(next); !ok || winner != 0 {
		t.Errorf("Winner = (%v, %v), want (0, true)", winner, ok)
	}
	// Apply must not have mutated the original state.
	if !st.Board.IsEmpty(board.Coord{10, 10}) {
		t.Errorf("Apply must not mutate its input state")
	}
}

func TestEngineCaptureRemovesStones(t *testing.T) {
	e := New()
	rs, err := e.Load(context.Background(), []datapack.Document{penteDoc()})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	st := e.NewGame(rs, 2)
	st.Board.Set(board.Coord{5, 1}, 0)
	st.Board.Set(board.Coord{5, 2}, 1)
	st.Board.Set(board.Coord{5, 3}, 1)

	next, err := e.Apply(context.Background(), st, board.Coord{5, 4})
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if !next.Board.IsEmpty(board.Coord{5, 2}) || !next.Board.IsEmpty(board.Coord{5, 3}) {
		t.Errorf("captured stones should be removed in the returned state")
	}
	if got := next.Scores.Get(0, "pente.captures"); got != 2 {
		t.Errorf("pente.captures = %d, want 2", got)
	}
}

func TestEngineApplyRejectsIllegalMove(t *testing.T) {
	e := New()
	rs, err := e.Load(context.Background(), []datapack.Document{penteDoc()})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	st := e.NewGame(rs, 2)
	st.Board.Set(board.Coord{0, 0}, 0)

	if _, err := e.Apply(context.Background(), st, board.Coord{0, 0}); err == nil {
		t.Errorf("expected an ApplyError for an occupied cell")
	}
}

func TestEngineTurnAdvancesActivePlayer(t *testing.T) {
	e := New()
	rs, err := e.Load(context.Background(), []datapack.Document{penteDoc()})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	st := e.NewGame(rs, 2)

	next, err := e.Apply(context.Background(), st, board.Coord{0, 0})
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if next.ActivePlayer != 1 {
		t.Errorf("ActivePlayer = %d, want 1", next.ActivePlayer)
	}
}

func TestEngineSerializeDeserializeRoundTrip(t *testing.T) {
	e := New()
	rs, err := e.Load(context.Background(), []datapack.Document{penteDoc()})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	st := e.NewGame(rs, 2)
	st.Board.Set(board.Coord{3, 3}, 1)
	st.Scores.Apply(1, "pente.captures", score.OpAdd, 4)
	st.ActivePlayer = 1

	doc := e.Serialize(st)
	restored, err := e.Deserialize(rs, doc)
	if err != nil {
		t.Fatalf("Deserialize: %v", err)
	}
	if !restored.Board.Equal(st.Board) {
		t.Errorf("board did not round-trip")
	}
	if restored.Scores.Get(1, "pente.captures") != 4 {
		t.Errorf("scores did not round-trip")
	}
	if restored.ActivePlayer != 1 {
		t.Errorf("active player did not round-trip")
	}
}
