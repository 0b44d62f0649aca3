// Package engine is the facade that ties the board, pattern, match,
// condition, score, restriction, rule and loader packages together into
// the handful of operations a host program actually calls: load a
// datapack set, start a game, check and apply moves, detect a winner,
// and serialize/deserialize a game in progress.
package engine

import (
	"context"
	"fmt"

	"github.com/go-logr/logr"
	"go.opentelemetry.io/otel/trace"

	"github.com/brindlegames/gridforge/internal/board"
	"github.com/brindlegames/gridforge/internal/datapack"
	"github.com/brindlegames/gridforge/internal/loader"
	"github.com/brindlegames/gridforge/internal/obslog"
	"github.com/brindlegames/gridforge/internal/restriction"
	"github.com/brindlegames/gridforge/internal/rule"
	"github.com/brindlegames/gridforge/internal/rulesetcache"
	"github.com/brindlegames/gridforge/internal/score"
)

// ApplyError reports a move that could not be applied, either because it
// was illegal or because a datapack's rules referenced something
// malformed at turn-application time.
type ApplyError struct {
	Move   board.Coord
	Reason string
}

func (e *ApplyError) Error() string {
	return fmt.Sprintf("apply: move %v: %s", e.Move, e.Reason)
}

// State is one immutable snapshot of a game in progress. Apply never
// mutates a State; it returns a new one.
type State struct {
	Ruleset      *loader.Ruleset
	Board        *board.Board
	Scores       *score.Store
	NumPlayers   int
	ActivePlayer board.PlayerID
}

// Clone returns an independent copy of the state.
func (s *State) Clone() *State {
	return &State{
		Ruleset:      s.Ruleset,
		Board:        s.Board.Clone(),
		Scores:       s.Scores.Clone(),
		NumPlayers:   s.NumPlayers,
		ActivePlayer: s.ActivePlayer,
	}
}

// Engine holds the optional ambient dependencies (logging, tracing, a
// ruleset cache) every operation below is built against.
type Engine struct {
	log       logr.Logger
	telemetry *obslog.Telemetry
	cache     *rulesetcache.Cache
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger attaches a structured logger; the default discards output.
func WithLogger(l logr.Logger) Option {
	return func(e *Engine) { e.log = l }
}

// WithTelemetry attaches tracing/metrics; the default is a no-op.
func WithTelemetry(t *obslog.Telemetry) Option {
	return func(e *Engine) { e.telemetry = t }
}

// WithCache attaches a ruleset cache; without one, Load always
// recompiles.
func WithCache(c *rulesetcache.Cache) Option {
	return func(e *Engine) { e.cache = c }
}

// New builds an Engine. With no options, it logs nothing, traces
// nothing, and caches nothing - every Load recompiles from scratch.
func New(opts ...Option) *Engine {
	e := &Engine{log: obslog.Discard()}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Load merges docs into a ruleset, through the cache if one is
// attached.
func (e *Engine) Load(ctx context.Context, docs []datapack.Document) (*loader.Ruleset, error) {
	if e.telemetry != nil {
		var span trace.Span
		ctx, span = e.telemetry.StartLoad(ctx)
		defer span.End()
	}

	if e.cache != nil {
		return e.cache.GetOrCompile(ctx, docs)
	}
	return loader.Load(ctx, docs, e.log)
}

// NewGame starts a fresh game against rs for numPlayers, player 0 to
// move first.
func (e *Engine) NewGame(rs *loader.Ruleset, numPlayers int) *State {
	return &State{
		Ruleset:      rs,
		Board:        board.New(rs.BoardDims, rs.BoardTopology),
		Scores:       score.New(numPlayers),
		NumPlayers:   numPlayers,
		ActivePlayer: 0,
	}
}

// IsLegal reports whether move is legal for st's active player, without
// mutating st.
func (e *Engine) IsLegal(st *State, move board.Coord) (bool, error) {
	return restriction.IsLegal(st.Ruleset.Restrictions, st.Board, move, st.Scores, st.ActivePlayer)
}

// Apply places move for st's active player and runs every rule against
// the result, returning the new state. st is never mutated; on any
// failure (illegal move, a rule referencing something malformed) the
// error is returned and no partial state escapes.
func (e *Engine) Apply(ctx context.Context, st *State, move board.Coord) (*State, error) {
	if e.telemetry != nil {
		var span trace.Span
		_, span = e.telemetry.StartApply(ctx)
		defer span.End()
	}

	legal, err := restriction.IsLegal(st.Ruleset.Restrictions, st.Board, move, st.Scores, st.ActivePlayer)
	if err != nil {
		return nil, &ApplyError{Move: move, Reason: err.Error()}
	}
	if !legal {
		return nil, &ApplyError{Move: move, Reason: "illegal move"}
	}

	next := st.Clone()
	next.Board.Set(move, st.ActivePlayer)

	if err := rule.ApplyTurn(next.Ruleset.Rules, next.Board, next.Scores, move, st.ActivePlayer, e.log); err != nil {
		return nil, &ApplyError{Move: move, Reason: err.Error()}
	}

	next.ActivePlayer = board.PlayerID((int(st.ActivePlayer) + 1) % st.NumPlayers)
	return next, nil
}

// Winner reports the winning player, if st has reached a terminal
// state.
func (e *Engine) Winner(st *State) (board.PlayerID, bool) {
	return score.Winner(st.Ruleset.Scores, st.Scores, st.NumPlayers)
}

// Serialize captures st into a save document.
func (e *Engine) Serialize(st *State) rulesetcache.SaveDoc {
	return rulesetcache.Serialize(st.Ruleset.DatapackOrder, st.Board, st.Scores, st.NumPlayers, st.ActivePlayer)
}

// Deserialize rebuilds a State from a save document against rs. It does
// not check that rs actually matches doc.Datapacks; callers that load
// rulesets by name should verify that themselves first.
func (e *Engine) Deserialize(rs *loader.Ruleset, doc rulesetcache.SaveDoc) (*State, error) {
	b, s, active, err := rulesetcache.Deserialize(doc)
	if err != nil {
		return nil, err
	}
	return &State{
		Ruleset:      rs,
		Board:        b,
		Scores:       s,
		NumPlayers:   doc.NumPlayers,
		ActivePlayer: active,
	}, nil
}
