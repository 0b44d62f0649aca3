package loader

import (
	"context"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/brindlegames/gridforge/internal/datapack"
	"github.com/brindlegames/gridforge/internal/obslog"
)

func threshold(v int64) *int64 { return &v }

func baseDoc(name string) datapack.Document {
	return datapack.Document{Name: name}
}

func TestLoadMissingDependencyFails(t *testing.T) {
	docs := []datapack.Document{
		{Name: "house_rules", Dependencies: []string{"pente"}},
	}
	_, err := Load(context.Background(), docs, obslog.Discard())
	var le *LoadError
	if !errors.As(err, &le) {
		t.Fatalf("expected *LoadError, got %v", err)
	}
}

func TestLoadCycleFails(t *testing.T) {
	docs := []datapack.Document{
		{Name: "a", Dependencies: []string{"b"}},
		{Name: "b", Dependencies: []string{"a"}},
	}
	_, err := Load(context.Background(), docs, obslog.Discard())
	if err == nil {
		t.Fatalf("expected a cycle error")
	}
}

func TestLoadDuplicateScoreRegistrationFails(t *testing.T) {
	pente := baseDoc("pente")
	pente.Scores = []datapack.ScoreSpec{
		{QualifiedMemo: "pente.wins", Threshold: threshold(0)},
		{QualifiedMemo: "pente.wins", Threshold: threshold(1)},
	}
	_, err := Load(context.Background(), []datapack.Document{pente}, obslog.Discard())
	if err == nil {
		t.Fatalf("expected a duplicate registration error")
	}
}

func TestLoadOverrideRequiresDependencyOrdering(t *testing.T) {
	pente := baseDoc("pente")
	pente.Scores = []datapack.ScoreSpec{{QualifiedMemo: "pente.captures"}}
	pente.Rules = []datapack.RuleSpec{
		{
			QualifiedName:  "pente.capture",
			Pattern:        "[X]OOX",
			MultimatchMode: "all",
			ScoreActions: []datapack.ScoreActionSpec{
				{PlayerIndex: -2, Memo: "pente.captures", Op: "add", Value: 2},
			},
		},
	}

	houseRules := baseDoc("house_rules")
	houseRules.Scores = []datapack.ScoreSpec{{QualifiedMemo: "house_rules.points"}}
	houseRules.Dependencies = []string{"pente"}
	houseRules.Rules = []datapack.RuleSpec{
		{
			QualifiedName:  "pente.capture",
			Pattern:        "[X]OOX",
			MultimatchMode: "all",
			ScoreActions: []datapack.ScoreActionSpec{
				{PlayerIndex: -2, Memo: "pente.captures", Op: "add", Value: 2},
				{PlayerIndex: -2, Memo: "house_rules.points", Op: "add", Value: 5},
			},
		},
	}

	rs, err := Load(context.Background(), []datapack.Document{pente, houseRules}, obslog.Discard())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(rs.Rules) != 1 {
		t.Fatalf("expected the override to replace pente.capture in place, got %d rules", len(rs.Rules))
	}
	if len(rs.Rules[0].ScoreActions) != 2 {
		t.Errorf("expected the overridden rule to carry both score actions, got %d", len(rs.Rules[0].ScoreActions))
	}

	// Without the dependency edge, "house_rules" < "pente" lexicographically
	// and the override runs before pente registers pente.capture at all, so
	// it is silently dropped.
	houseRulesNoDep := houseRules
	houseRulesNoDep.Dependencies = nil
	rs2, err := Load(context.Background(), []datapack.Document{pente, houseRulesNoDep}, obslog.Discard())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(rs2.Rules) != 1 || len(rs2.Rules[0].ScoreActions) != 1 {
		t.Errorf("expected the override to be silently dropped without the dependency edge")
	}
}

func TestLoadUnknownMemoReferenceFails(t *testing.T) {
	pente := baseDoc("pente")
	pente.Rules = []datapack.RuleSpec{
		{
			QualifiedName:  "pente.win",
			Pattern:        "[X]XXXX",
			MultimatchMode: "one",
			ScoreActions: []datapack.ScoreActionSpec{
				{PlayerIndex: -2, Memo: "pente.wins", Op: "add", Value: 1},
			},
		},
	}
	_, err := Load(context.Background(), []datapack.Document{pente}, obslog.Discard())
	if err == nil {
		t.Fatalf("expected a dangling memo reference error")
	}
}

func TestLoadBoardDimensionsLastDeclarationWins(t *testing.T) {
	a := baseDoc("a")
	a.Board = &datapack.BoardSpec{Dimensions: []int{9, 9}}
	b := baseDoc("b")
	b.Dependencies = []string{"a"}
	b.Board = &datapack.BoardSpec{Dimensions: []int{19, 19}}

	rs, err := Load(context.Background(), []datapack.Document{a, b}, obslog.Discard())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if rs.BoardDims[0] != 19 || rs.BoardDims[1] != 19 {
		t.Errorf("BoardDims = %v, want [19 19] (last declaration in load order wins)", rs.BoardDims)
	}
}

func TestLoadDefaultsBoard(t *testing.T) {
	rs, err := Load(context.Background(), []datapack.Document{baseDoc("pente")}, obslog.Discard())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(rs.BoardDims) != 2 || rs.BoardDims[0] != 19 {
		t.Errorf("BoardDims = %v, want default [19 19]", rs.BoardDims)
	}
}

func TestLoadIsOrderIndependentOfInputSliceOrder(t *testing.T) {
	pente := baseDoc("pente")
	pente.Scores = []datapack.ScoreSpec{{QualifiedMemo: "pente.wins", Threshold: threshold(0)}}
	renju := baseDoc("renju")
	renju.Dependencies = []string{"pente"}

	rs1, err := Load(context.Background(), []datapack.Document{pente, renju}, obslog.Discard())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	rs2, err := Load(context.Background(), []datapack.Document{renju, pente}, obslog.Discard())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(rs1.DatapackOrder) != len(rs2.DatapackOrder) || rs1.DatapackOrder[0] != rs2.DatapackOrder[0] {
		t.Errorf("load order should not depend on input slice order: %v vs %v", rs1.DatapackOrder, rs2.DatapackOrder)
	}

	// The two rulesets should be wholly equivalent, not just agree on
	// DatapackOrder: a diff here would mean some other part of Load is
	// silently sensitive to input slice order.
	if diff := cmp.Diff(rs1, rs2); diff != "" {
		t.Errorf("ruleset differs by input slice order (-rs1 +rs2):\n%s", diff)
	}
}
