// Command gridforge-loadcheck loads a directory of datapack JSON files
// and prints the merged ruleset's load order, score table and rule
// order, or reports the first load error and exits non-zero. It does
// not play a game; see internal/engine for that.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/go-logr/stdr"

	"github.com/brindlegames/gridforge/internal/builtin"
	"github.com/brindlegames/gridforge/internal/datapack"
	"github.com/brindlegames/gridforge/internal/loader"
	"github.com/brindlegames/gridforge/internal/obslog"
)

var (
	dir        = flag.String("dir", "", "directory of *.json datapack files to load")
	useBuiltin = flag.Bool("builtin", false, "load the embedded pente/renju/house_rules datapacks instead of -dir")
	verbosity  = flag.Int("v", 0, "logr verbosity: 1 logs datapack registration/override decisions")
)

func main() {
	flag.Parse()
	stdr.SetVerbosity(*verbosity)

	docs, err := loadDocs()
	if err != nil {
		log.Fatalf("load: %v", err)
	}

	rs, err := loader.Load(context.Background(), docs, obslog.NewStdLogger("gridforge-loadcheck"))
	if err != nil {
		log.Fatalf("merge: %v", err)
	}

	fmt.Printf("load order: %v\n", rs.DatapackOrder)
	fmt.Printf("board: dims=%v topology=%s\n", rs.BoardDims, rs.BoardTopology)

	fmt.Println("scores:")
	for _, s := range rs.Scores {
		fmt.Printf("  %s (threshold=%d set=%v)\n", s.QualifiedMemo, s.Threshold, s.HasThreshold)
	}

	fmt.Println("restrictions:")
	for _, r := range rs.Restrictions {
		fmt.Printf("  %s\n", r.QualifiedName)
	}

	fmt.Println("rules (priority order):")
	for _, r := range rs.Rules {
		fmt.Printf("  %s (priority=%d load=%d decl=%d)\n", r.QualifiedName, r.Priority, r.LoadOrder, r.DeclOrder)
	}
}

func loadDocs() ([]datapack.Document, error) {
	if *useBuiltin {
		return builtin.All()
	}
	if *dir == "" {
		return nil, fmt.Errorf("one of -dir or -builtin is required")
	}

	entries, err := os.ReadDir(*dir)
	if err != nil {
		return nil, err
	}

	var docs []datapack.Document
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".json" {
			continue
		}
		data, err := os.ReadFile(filepath.Join(*dir, entry.Name()))
		if err != nil {
			return nil, err
		}
		var doc datapack.Document
		if err := json.Unmarshal(data, &doc); err != nil {
			return nil, fmt.Errorf("%s: %w", entry.Name(), err)
		}
		docs = append(docs, doc)
	}
	return docs, nil
}
