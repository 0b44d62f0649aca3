// Package pattern compiles pattern strings into a dense,
// hot-path-friendly cell-predicate sequence with alias and center metadata.
package pattern

import "fmt"

// Polarity is the sense in which an alias letter binds a player.
type Polarity uint8

const (
	Same     Polarity = iota // uppercase A-Z: equal to the bound player
	Opposite                 // lowercase a-z: different from the bound player
)

// Kind distinguishes the predicate categories a compiled cell can hold.
type Kind uint8

const (
	KindAny      Kind = iota // .
	KindEmpty                // -
	KindAnyStone             // #
	KindAlias                // A-Z / a-z
)

// Predicate is one compiled cell predicate. Alias fields are only
// meaningful when Kind == KindAlias.
type Predicate struct {
	Kind     Kind
	Letter   uint8 // 0-25, index into the 26-entry alias binding table
	Polarity Polarity
}

// Compiled is a parsed pattern: a dense predicate sequence plus the
// (possibly unconstrained) index that must coincide with the move.
type Compiled struct {
	Raw         string
	Cells       []Predicate
	CenterIndex int // -1 if any index may serve as center
}

// Len returns the number of cells in the pattern.
func (c *Compiled) Len() int { return len(c.Cells) }

// HasFixedCenter reports whether the pattern names an explicit center cell.
func (c *Compiled) HasFixedCenter() bool { return c.CenterIndex >= 0 }

// CompileError reports a malformed pattern string: a load-time datapack
// authoring mistake, never a condition that arises from board state.
type CompileError struct {
	Pattern string
	Reason  string
}

func (e *CompileError) Error() string {
	return fmt.Sprintf("pattern %q: %s", e.Pattern, e.Reason)
}

// Compile parses a raw pattern string into a Compiled pattern.
//
// Grammar: left to right, '[' opens a bracketed center
// marker that must be immediately followed by exactly one predicate
// character and ']'; at most one bracketed center may appear. The empty
// pattern is rejected. Every lowercase letter must be paired with at least
// one occurrence of the corresponding uppercase letter somewhere in the
// pattern.
func Compile(raw string) (*Compiled, error) {
	if raw == "" {
		return nil, &CompileError{Pattern: raw, Reason: "pattern must not be empty"}
	}

	c := &Compiled{Raw: raw, CenterIndex: -1}
	var upperSeen, lowerSeen [26]bool

	runes := []rune(raw)
	i := 0
	for i < len(runes) {
		ch := runes[i]
		if ch == '[' {
			if c.CenterIndex >= 0 {
				return nil, &CompileError{Pattern: raw, Reason: "multiple bracketed centers"}
			}
			if i+2 >= len(runes) || runes[i+2] != ']' {
				return nil, &CompileError{Pattern: raw, Reason: "malformed center marker, expected [X]"}
			}
			pred, err := predicateFor(runes[i+1], &upperSeen, &lowerSeen)
			if err != nil {
				return nil, &CompileError{Pattern: raw, Reason: err.Error()}
			}
			c.CenterIndex = len(c.Cells)
			c.Cells = append(c.Cells, pred)
			i += 3
			continue
		}

		pred, err := predicateFor(ch, &upperSeen, &lowerSeen)
		if err != nil {
			return nil, &CompileError{Pattern: raw, Reason: err.Error()}
		}
		c.Cells = append(c.Cells, pred)
		i++
	}

	if len(c.Cells) == 0 {
		return nil, &CompileError{Pattern: raw, Reason: "pattern must not be empty"}
	}

	for l := 0; l < 26; l++ {
		if lowerSeen[l] && !upperSeen[l] {
			return nil, &CompileError{
				Pattern: raw,
				Reason:  fmt.Sprintf("lowercase %q has no matching uppercase %q", 'a'+rune(l), 'A'+rune(l)),
			}
		}
	}

	return c, nil
}

func predicateFor(ch rune, upperSeen, lowerSeen *[26]bool) (Predicate, error) {
	switch {
	case ch == '.':
		return Predicate{Kind: KindAny}, nil
	case ch == '-':
		return Predicate{Kind: KindEmpty}, nil
	case ch == '#':
		return Predicate{Kind: KindAnyStone}, nil
	case ch >= 'A' && ch <= 'Z':
		letter := uint8(ch - 'A')
		upperSeen[letter] = true
		return Predicate{Kind: KindAlias, Letter: letter, Polarity: Same}, nil
	case ch >= 'a' && ch <= 'z':
		letter := uint8(ch - 'a')
		lowerSeen[letter] = true
		return Predicate{Kind: KindAlias, Letter: letter, Polarity: Opposite}, nil
	default:
		return Predicate{}, fmt.Errorf("unrecognized predicate character %q", ch)
	}
}
