// Package loader resolves an unordered set of datapack documents into a
// single merged, immutable ruleset: dependency closure, a deterministic
// topological sort, qualified-name registration with override semantics,
// reference validation and board-dimension resolution.
package loader

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/go-logr/logr"
	"golang.org/x/sync/errgroup"

	"github.com/brindlegames/gridforge/internal/board"
	"github.com/brindlegames/gridforge/internal/condition"
	"github.com/brindlegames/gridforge/internal/datapack"
	"github.com/brindlegames/gridforge/internal/pattern"
	"github.com/brindlegames/gridforge/internal/restriction"
	"github.com/brindlegames/gridforge/internal/rule"
	"github.com/brindlegames/gridforge/internal/score"
)

// LoadError reports any failure to merge a datapack set into a ruleset:
// a missing dependency, a load-order cycle, a malformed pattern, an
// unrecognized enum value, a duplicate registration or a dangling memo
// reference.
type LoadError struct {
	Datapack string
	Reason   string
}

func (e *LoadError) Error() string {
	if e.Datapack == "" {
		return fmt.Sprintf("load: %s", e.Reason)
	}
	return fmt.Sprintf("load: datapack %q: %s", e.Datapack, e.Reason)
}

// Ruleset is the immutable, merged result of Load. Nothing in it is
// mutated once returned; every consumer (a new game's board, a turn's
// rule list) clones or reads it.
type Ruleset struct {
	DatapackOrder []string

	BoardDims     []int
	BoardTopology board.Topology

	Scores       []score.Spec
	Restrictions []restriction.Restriction
	Rules        []rule.Rule
}

const defaultBoardDim = 19

// Load merges docs into a Ruleset. docs need not be pre-sorted; Load
// computes the deterministic load order itself. log receives V(1)
// entries for each registration/override decision; pass obslog.Discard()
// to opt out.
func Load(ctx context.Context, docs []datapack.Document, log logr.Logger) (*Ruleset, error) {
	byName := make(map[string]datapack.Document, len(docs))
	for _, d := range docs {
		if d.Name == "" {
			return nil, &LoadError{Reason: "datapack has an empty name"}
		}
		if _, dup := byName[d.Name]; dup {
			return nil, &LoadError{Datapack: d.Name, Reason: "datapack name loaded twice"}
		}
		byName[d.Name] = d
	}

	if err := checkClosure(byName); err != nil {
		return nil, err
	}

	order, err := topoSort(byName)
	if err != nil {
		return nil, err
	}

	compiled, err := compileAll(ctx, byName, order)
	if err != nil {
		return nil, err
	}

	rs, err := register(order, compiled, log)
	if err != nil {
		return nil, err
	}

	if err := validateReferences(rs); err != nil {
		return nil, err
	}

	resolveBoard(byName, order, rs)
	if rs.BoardTopology != board.TopologyStop {
		return nil, &LoadError{Reason: fmt.Sprintf("unimplemented board topology %q", rs.BoardTopology)}
	}
	return rs, nil
}

// checkClosure fails if any datapack names a dependency absent from the
// given set. load_after is advisory and never triggers this check.
func checkClosure(byName map[string]datapack.Document) error {
	for _, d := range byName {
		for _, dep := range d.Dependencies {
			if _, ok := byName[dep]; !ok {
				return &LoadError{Datapack: d.Name, Reason: fmt.Sprintf("missing dependency %q", dep)}
			}
		}
	}
	return nil
}

// topoSort orders datapacks so every dependency and load_after target
// (when present) precedes the datapack that names it, breaking ties
// lexicographically by name so the result is deterministic regardless
// of input order.
func topoSort(byName map[string]datapack.Document) ([]string, error) {
	indegree := make(map[string]int, len(byName))
	edges := make(map[string][]string, len(byName)) // from -> list of to

	for name := range byName {
		indegree[name] = 0
	}
	addEdge := func(from, to string) {
		edges[from] = append(edges[from], to)
		indegree[to]++
	}
	for _, d := range byName {
		for _, dep := range d.Dependencies {
			addEdge(dep, d.Name)
		}
		for _, after := range d.LoadAfter {
			if _, ok := byName[after]; ok {
				addEdge(after, d.Name)
			}
		}
	}

	var ready []string
	for name, deg := range indegree {
		if deg == 0 {
			ready = append(ready, name)
		}
	}
	sort.Strings(ready)

	var order []string
	for len(ready) > 0 {
		next := ready[0]
		ready = ready[1:]
		order = append(order, next)

		var newlyReady []string
		for _, to := range edges[next] {
			indegree[to]--
			if indegree[to] == 0 {
				newlyReady = append(newlyReady, to)
			}
		}
		sort.Strings(newlyReady)
		ready = mergeSorted(ready, newlyReady)
	}

	if len(order) != len(byName) {
		return nil, &LoadError{Reason: "dependency/load_after graph has a cycle"}
	}
	return order, nil
}

// mergeSorted merges two already-sorted string slices, keeping the
// overall ready queue sorted without a full re-sort each round.
func mergeSorted(a, b []string) []string {
	if len(b) == 0 {
		return a
	}
	out := make([]string, 0, len(a)+len(b))
	i, j := 0, 0
	for i < len(a) && j < len(b) {
		if a[i] <= b[j] {
			out = append(out, a[i])
			i++
		} else {
			out = append(out, b[j])
			j++
		}
	}
	out = append(out, a[i:]...)
	out = append(out, b[j:]...)
	return out
}

// compiledDatapack is the pure-function-of-one-datapack compilation
// result: patterns compiled, enums mapped, nothing about registration
// or overrides decided yet.
type compiledDatapack struct {
	name         string
	scores       []score.Spec
	restrictions []restrictionEntry
	rules        []rule.Rule
}

type restrictionEntry struct {
	name  string
	value restriction.Restriction
}

// compileAll compiles every datapack independently and concurrently:
// pattern compilation and enum mapping for one datapack never depends
// on another, so the work fans out across an errgroup before the
// strictly sequential registration pass.
func compileAll(ctx context.Context, byName map[string]datapack.Document, order []string) (map[string]*compiledDatapack, error) {
	results := make(map[string]*compiledDatapack, len(order))
	var mu sync.Mutex

	g, _ := errgroup.WithContext(ctx)
	for _, name := range order {
		name := name
		g.Go(func() error {
			cd, err := compileDatapack(byName[name])
			if err != nil {
				return err
			}
			mu.Lock()
			results[name] = cd
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

func compileDatapack(d datapack.Document) (*compiledDatapack, error) {
	cd := &compiledDatapack{name: d.Name}

	for _, s := range d.Scores {
		spec := score.Spec{QualifiedMemo: s.QualifiedMemo, DisplayName: s.DisplayName}
		if s.Threshold != nil {
			spec.HasThreshold = true
			spec.Threshold = *s.Threshold
		}
		cd.scores = append(cd.scores, spec)
	}

	for _, rs := range d.Restrictions {
		r, err := buildRestriction(rs)
		if err != nil {
			return nil, &LoadError{Datapack: d.Name, Reason: err.Error()}
		}
		cd.restrictions = append(cd.restrictions, restrictionEntry{name: rs.Name, value: r})
	}

	for i, rs := range d.Rules {
		r, err := buildRule(rs, i)
		if err != nil {
			return nil, &LoadError{Datapack: d.Name, Reason: err.Error()}
		}
		cd.rules = append(cd.rules, r)
	}

	return cd, nil
}

func buildRestriction(rs datapack.RestrictionSpec) (restriction.Restriction, error) {
	if rs.Conjunctions != nil {
		groups := make([][]restriction.Restriction, 0, len(rs.Conjunctions))
		for _, group := range rs.Conjunctions {
			var built []restriction.Restriction
			for _, sub := range group {
				r, err := buildRestriction(sub)
				if err != nil {
					return restriction.Restriction{}, err
				}
				built = append(built, r)
			}
			groups = append(groups, built)
		}
		return restriction.Restriction{
			Kind:          restriction.KindDisjunction,
			QualifiedName: rs.Name,
			Conjunctions:  groups,
		}, nil
	}

	pat, err := pattern.Compile(rs.Pattern)
	if err != nil {
		return restriction.Restriction{}, fmt.Errorf("restriction %q: %w", rs.Name, err)
	}
	conds, err := buildConditions(rs.Conditions)
	if err != nil {
		return restriction.Restriction{}, fmt.Errorf("restriction %q: %w", rs.Name, err)
	}

	r := restriction.Restriction{
		Kind:          restriction.KindPattern,
		QualifiedName: rs.Name,
		Pattern:       pat,
		Conditions:    conds,
		Negate:        rs.Negate,
	}
	if rs.ActivePlayer != nil {
		p := board.PlayerID(*rs.ActivePlayer)
		r.ActivePlayer = &p
	}
	return r, nil
}

func buildRule(rs datapack.RuleSpec, declOrder int) (rule.Rule, error) {
	pat, err := pattern.Compile(rs.Pattern)
	if err != nil {
		return rule.Rule{}, fmt.Errorf("rule %q: %w", rs.QualifiedName, err)
	}
	priority, err := parsePriority(rs.Priority)
	if err != nil {
		return rule.Rule{}, fmt.Errorf("rule %q: %w", rs.QualifiedName, err)
	}
	mode, err := parseMultimatchMode(rs.MultimatchMode)
	if err != nil {
		return rule.Rule{}, fmt.Errorf("rule %q: %w", rs.QualifiedName, err)
	}
	conds, err := buildConditions(rs.Conditions)
	if err != nil {
		return rule.Rule{}, fmt.Errorf("rule %q: %w", rs.QualifiedName, err)
	}

	var scoreActions []rule.ScoreAction
	for _, sa := range rs.ScoreActions {
		op, err := parseOp(sa.Op)
		if err != nil {
			return rule.Rule{}, fmt.Errorf("rule %q: %w", rs.QualifiedName, err)
		}
		scoreActions = append(scoreActions, rule.ScoreAction{
			PlayerIndex: sa.PlayerIndex,
			Memo:        sa.Memo,
			Op:          op,
			Value:       sa.Value,
		})
	}

	var boardActions []rule.BoardAction
	for _, ba := range rs.BoardActions {
		boardActions = append(boardActions, rule.BoardAction{
			PlayerIndex:   ba.PlayerIndex,
			LocationIndex: ba.LocationIndex,
		})
	}

	r := rule.Rule{
		QualifiedName:  rs.QualifiedName,
		Priority:       priority,
		Pattern:        pat,
		MultimatchMode: mode,
		Conditions:     conds,
		ScoreActions:   scoreActions,
		BoardActions:   boardActions,
		DeclOrder:      declOrder,
	}
	if rs.ActivePlayer != nil {
		p := board.PlayerID(*rs.ActivePlayer)
		r.ActivePlayer = &p
	}
	return r, nil
}

func buildConditions(specs []datapack.ConditionSpec) ([]condition.Condition, error) {
	var out []condition.Condition
	for _, cs := range specs {
		c, err := buildCondition(cs)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, nil
}

func buildCondition(cs datapack.ConditionSpec) (condition.Condition, error) {
	switch cs.Type {
	case "score":
		return condition.Condition{
			Kind:        condition.KindScore,
			PlayerIndex: cs.PlayerIndex,
			Memo:        cs.Memo,
			Min:         cs.Min,
			Max:         cs.Max,
		}, nil
	case "coords":
		return condition.Condition{
			Kind: condition.KindCoords,
			Axes: cs.Axes,
			CMin: cs.CMin,
			CMax: cs.CMax,
		}, nil
	default:
		return condition.Condition{}, fmt.Errorf("condition: unrecognized type %q", cs.Type)
	}
}

func parsePriority(s string) (rule.Priority, error) {
	switch s {
	case "", "default":
		return rule.Default, nil
	case "earliest":
		return rule.Earliest, nil
	case "earlier":
		return rule.Earlier, nil
	case "early":
		return rule.Early, nil
	case "late":
		return rule.Late, nil
	case "later":
		return rule.Later, nil
	case "latest":
		return rule.Latest, nil
	default:
		return 0, fmt.Errorf("unrecognized priority %q", s)
	}
}

func parseMultimatchMode(s string) (rule.MultimatchMode, error) {
	switch s {
	case "", "one":
		return rule.ModeOne, nil
	case "half":
		return rule.ModeHalf, nil
	case "all":
		return rule.ModeAll, nil
	default:
		return 0, fmt.Errorf("unrecognized multimatch_mode %q", s)
	}
}

func parseOp(s string) (score.Op, error) {
	switch s {
	case "set":
		return score.OpSet, nil
	case "add":
		return score.OpAdd, nil
	case "multiply":
		return score.OpMultiply, nil
	default:
		return 0, fmt.Errorf("unrecognized op %q", s)
	}
}

// featureTable tracks qualified-name ownership for one feature kind
// (scores, restrictions, rules) so a second registration of the same
// name is caught; overrides locate their target through register's
// per-kind index maps.
type featureTable struct {
	owner map[string]string // qualified name -> owning datapack
}

func newFeatureTable() *featureTable {
	return &featureTable{owner: map[string]string{}}
}

func (t *featureTable) qualifierOwner(qualifiedName string) (string, bool) {
	owner, ok := t.owner[qualifiedName]
	return owner, ok
}

func ownerOf(qualifiedName string) string {
	i := strings.IndexByte(qualifiedName, '.')
	if i < 0 {
		return qualifiedName
	}
	return qualifiedName[:i]
}

// register runs the sequential registration/override pass over the
// datapacks in topological order, building the final merged tables.
// An entry's LoadOrder/DeclOrder (its position in the merged order)
// is fixed at first registration; a later override from a different
// datapack replaces its payload but never relocates it.
func register(order []string, compiled map[string]*compiledDatapack, log logr.Logger) (*Ruleset, error) {
	rs := &Ruleset{DatapackOrder: order}

	scoreTable := newFeatureTable()
	restrictionTable := newFeatureTable()
	ruleTable := newFeatureTable()

	scoreIndex := map[string]int{}       // qualified name -> index into rs.Scores
	restrictionIndex := map[string]int{} // qualified name -> index into rs.Restrictions
	ruleIndex := map[string]int{}        // qualified name -> index into rs.Rules

	for loadOrder, name := range order {
		cd := compiled[name]

		for _, spec := range cd.scores {
			owner := ownerOf(spec.QualifiedMemo)
			if owner == name {
				if _, dup := scoreTable.qualifierOwner(spec.QualifiedMemo); dup {
					return nil, &LoadError{Datapack: name, Reason: fmt.Sprintf("duplicate score registration %q", spec.QualifiedMemo)}
				}
				scoreTable.owner[spec.QualifiedMemo] = name
				scoreIndex[spec.QualifiedMemo] = len(rs.Scores)
				rs.Scores = append(rs.Scores, spec)
				log.V(1).Info("registered score", "datapack", name, "memo", spec.QualifiedMemo)
				continue
			}
			if idx, ok := scoreIndex[spec.QualifiedMemo]; ok {
				rs.Scores[idx] = spec
				log.V(1).Info("applied score override", "datapack", name, "memo", spec.QualifiedMemo)
			} else {
				log.V(1).Info("dropped score override, owner not yet registered", "datapack", name, "memo", spec.QualifiedMemo)
			}
		}

		for _, entry := range cd.restrictions {
			if entry.name == "" {
				return nil, &LoadError{Datapack: name, Reason: "top-level restriction missing a name"}
			}
			owner := ownerOf(entry.name)
			if owner == name {
				if _, dup := restrictionTable.qualifierOwner(entry.name); dup {
					return nil, &LoadError{Datapack: name, Reason: fmt.Sprintf("duplicate restriction registration %q", entry.name)}
				}
				restrictionTable.owner[entry.name] = name
				restrictionIndex[entry.name] = len(rs.Restrictions)
				rs.Restrictions = append(rs.Restrictions, entry.value)
				log.V(1).Info("registered restriction", "datapack", name, "name", entry.name)
				continue
			}
			if idx, ok := restrictionIndex[entry.name]; ok {
				rs.Restrictions[idx] = entry.value
				log.V(1).Info("applied restriction override", "datapack", name, "name", entry.name)
			} else {
				log.V(1).Info("dropped restriction override, owner not yet registered", "datapack", name, "name", entry.name)
			}
		}

		for _, r := range cd.rules {
			owner := ownerOf(r.QualifiedName)
			if owner == name {
				if _, dup := ruleTable.qualifierOwner(r.QualifiedName); dup {
					return nil, &LoadError{Datapack: name, Reason: fmt.Sprintf("duplicate rule registration %q", r.QualifiedName)}
				}
				ruleTable.owner[r.QualifiedName] = name
				r.LoadOrder = loadOrder
				ruleIndex[r.QualifiedName] = len(rs.Rules)
				rs.Rules = append(rs.Rules, r)
				log.V(1).Info("registered rule", "datapack", name, "rule", r.QualifiedName)
				continue
			}
			if idx, ok := ruleIndex[r.QualifiedName]; ok {
				original := rs.Rules[idx]
				r.LoadOrder = original.LoadOrder
				r.DeclOrder = original.DeclOrder
				rs.Rules[idx] = r
				log.V(1).Info("applied rule override", "datapack", name, "rule", r.QualifiedName)
			} else {
				log.V(1).Info("dropped rule override, owner not yet registered", "datapack", name, "rule", r.QualifiedName)
			}
		}
	}

	sort.SliceStable(rs.Rules, func(i, j int) bool { return rule.Less(rs.Rules[i], rs.Rules[j]) })
	return rs, nil
}

// validateReferences checks that every score memo named by a condition
// or score action resolves in the final score table.
func validateReferences(rs *Ruleset) error {
	known := map[string]bool{}
	for _, s := range rs.Scores {
		known[s.QualifiedMemo] = true
	}

	checkConditions := func(owner string, conds []condition.Condition) error {
		for _, c := range conds {
			if c.Kind == condition.KindScore && !known[c.Memo] {
				return &LoadError{Datapack: owner, Reason: fmt.Sprintf("condition references unknown memo %q", c.Memo)}
			}
		}
		return nil
	}

	var checkRestriction func(owner string, r restriction.Restriction) error
	checkRestriction = func(owner string, r restriction.Restriction) error {
		if r.Kind == restriction.KindDisjunction {
			for _, group := range r.Conjunctions {
				for _, sub := range group {
					if err := checkRestriction(owner, sub); err != nil {
						return err
					}
				}
			}
			return nil
		}
		return checkConditions(owner, r.Conditions)
	}

	for _, r := range rs.Restrictions {
		if err := checkRestriction(ownerOf(r.QualifiedName), r); err != nil {
			return err
		}
	}
	for _, r := range rs.Rules {
		if err := checkConditions(ownerOf(r.QualifiedName), r.Conditions); err != nil {
			return err
		}
		for _, sa := range r.ScoreActions {
			if !known[sa.Memo] {
				return &LoadError{Datapack: ownerOf(r.QualifiedName), Reason: fmt.Sprintf("score action references unknown memo %q", sa.Memo)}
			}
		}
	}
	return nil
}

// resolveBoard picks the dimensions/topology declared by the last
// datapack (in load order) that declares a board at all, defaulting to
// a 19x19 flat grid when none do.
func resolveBoard(byName map[string]datapack.Document, order []string, rs *Ruleset) {
	rs.BoardDims = []int{defaultBoardDim, defaultBoardDim}
	rs.BoardTopology = board.TopologyStop

	for _, name := range order {
		d := byName[name]
		if d.Board == nil {
			continue
		}
		if len(d.Board.Dimensions) > 0 {
			rs.BoardDims = append([]int(nil), d.Board.Dimensions...)
		}
		if d.Board.Topology != "" {
			rs.BoardTopology = board.Topology(d.Board.Topology)
		}
	}
}
