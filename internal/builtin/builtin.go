// Package builtin embeds a small set of reference datapacks (a Pente
// ruleset, a Renju variant layered on top of it, and a house-rules
// variant demonstrating override resolution) used by cmd/gridforge-loadcheck
// and loaded end-to-end by this package's own tests.
package builtin

import (
	"embed"
	"encoding/json"
	"fmt"

	"github.com/brindlegames/gridforge/internal/datapack"
)

//go:embed datapacks/*.json
var files embed.FS

func load(name string) (datapack.Document, error) {
	data, err := files.ReadFile("datapacks/" + name)
	if err != nil {
		return datapack.Document{}, fmt.Errorf("builtin: %s: %w", name, err)
	}
	var doc datapack.Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return datapack.Document{}, fmt.Errorf("builtin: parse %s: %w", name, err)
	}
	return doc, nil
}

// Pente returns the five-in-a-row-with-capture base ruleset.
func Pente() (datapack.Document, error) { return load("pente.json") }

// Renju returns the overline-prohibition variant, depending on Pente.
func Renju() (datapack.Document, error) { return load("renju.json") }

// HouseRules returns the variant that overrides pente.capture to also
// award house points, depending on Pente.
func HouseRules() (datapack.Document, error) { return load("house_rules.json") }

// All returns Pente, Renju and HouseRules together.
func All() ([]datapack.Document, error) {
	var docs []datapack.Document
	for _, f := range []func() (datapack.Document, error){Pente, Renju, HouseRules} {
		d, err := f()
		if err != nil {
			return nil, err
		}
		docs = append(docs, d)
	}
	return docs, nil
}
