// Package datapack defines the JSON document shape datapacks are authored
// in and the parsed, not-yet-merged in-memory form the loader
// consumes.
package datapack

// Document is the raw, parsed JSON datapack document.
type Document struct {
	Name         string             `json:"name"`
	Dependencies []string           `json:"dependencies,omitempty"`
	LoadAfter    []string           `json:"load_after,omitempty"`
	Scores       []ScoreSpec        `json:"scores,omitempty"`
	Restrictions []RestrictionSpec  `json:"restrictions,omitempty"`
	Rules        []RuleSpec         `json:"rules,omitempty"`
	Board        *BoardSpec         `json:"board,omitempty"`
}

// BoardSpec declares board dimensionality and topology.
type BoardSpec struct {
	Dimensions []int  `json:"dimensions"`
	Topology   string `json:"topology,omitempty"`
}

// ScoreSpec declares a score counter.
type ScoreSpec struct {
	QualifiedMemo string `json:"qualified_memo"`
	DisplayName   string `json:"display_name,omitempty"`
	Threshold     *int64 `json:"threshold,omitempty"`
}

// ConditionSpec is the raw tagged union for ScoreCondition/CoordsCondition.
type ConditionSpec struct {
	Type string `json:"type"` // "score" | "coords"

	// score
	PlayerIndex int    `json:"player_index,omitempty"`
	Memo        string `json:"memo,omitempty"`
	Min         *int64 `json:"min,omitempty"`
	Max         *int64 `json:"max,omitempty"`

	// coords
	Axes []int `json:"axes,omitempty"`
	CMin *int  `json:"coord_min,omitempty"`
	CMax *int  `json:"coord_max,omitempty"`
}

// ScoreActionSpec is the raw ScoreAction.
type ScoreActionSpec struct {
	PlayerIndex int    `json:"player_index"`
	Memo        string `json:"memo"`
	Op          string `json:"op"` // "set" | "add" | "multiply"
	Value       int64  `json:"value"`
}

// BoardActionSpec is the raw BoardAction.
type BoardActionSpec struct {
	PlayerIndex   int `json:"player_index"`
	LocationIndex int `json:"location_index"`
}

// RuleSpec is the raw Rule.
type RuleSpec struct {
	QualifiedName  string            `json:"qualified_name"`
	Priority       string            `json:"priority"`
	Pattern        string            `json:"pattern"`
	MultimatchMode string            `json:"multimatch_mode"`
	Conditions     []ConditionSpec   `json:"conditions,omitempty"`
	ScoreActions   []ScoreActionSpec `json:"score_actions,omitempty"`
	BoardActions   []BoardActionSpec `json:"board_actions,omitempty"`
	ActivePlayer   *int              `json:"active_player,omitempty"`
}

// RestrictionSpec is the raw tagged union for PatternRestriction and
// DisjunctionRestriction. A restriction is a
// DisjunctionRestriction iff Conjunctions is non-nil; otherwise it is a
// PatternRestriction.
type RestrictionSpec struct {
	Name string `json:"name,omitempty"`

	// PatternRestriction
	Pattern      string          `json:"pattern,omitempty"`
	Conditions   []ConditionSpec `json:"conditions,omitempty"`
	ActivePlayer *int            `json:"active_player,omitempty"`
	Negate       bool            `json:"negate,omitempty"`

	// DisjunctionRestriction
	Conjunctions [][]RestrictionSpec `json:"conjunctions,omitempty"`
}
