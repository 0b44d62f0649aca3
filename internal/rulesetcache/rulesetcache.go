// Package rulesetcache persists compiled rulesets and saved games in
// Badger: JSON-encode a value, store it under a fixed key, read it back
// through db.View/db.Update closures.
package rulesetcache

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/cespare/xxhash/v2"
	"github.com/dgraph-io/badger/v4"
	"github.com/dustin/go-humanize"
	"golang.org/x/sync/singleflight"

	"github.com/brindlegames/gridforge/internal/datapack"
	"github.com/brindlegames/gridforge/internal/loader"
	"github.com/go-logr/logr"
)

const rulesetKeyPrefix = "ruleset:"

// Cache wraps a BadgerDB holding compiled rulesets, keyed by an xxhash
// digest of the canonicalized datapack document set that produced them.
// Concurrent cache misses on the same key collapse into a single
// loader.Load call via singleflight.
type Cache struct {
	db  *badger.DB
	sf  singleflight.Group
	log logr.Logger
}

// Open opens (creating if absent) a Badger database at dir for the
// ruleset cache and save-game store.
func Open(dir string, log logr.Logger) (*Cache, error) {
	opts := badger.DefaultOptions(dir)
	opts.Logger = nil // badger's own logger is noisy by default; we log through obslog instead

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("rulesetcache: open: %w", err)
	}
	return &Cache{db: db, log: log}, nil
}

// Close closes the underlying database.
func (c *Cache) Close() error {
	return c.db.Close()
}

// GetOrCompile returns the cached ruleset for docs, compiling and
// storing it on a miss. Concurrent callers asking for the same
// datapack set share one loader.Load call.
func (c *Cache) GetOrCompile(ctx context.Context, docs []datapack.Document) (*loader.Ruleset, error) {
	key, err := cacheKey(docs)
	if err != nil {
		return nil, err
	}

	v, err, _ := c.sf.Do(key, func() (interface{}, error) {
		if rs, ok := c.lookup(key); ok {
			c.log.V(1).Info("ruleset cache hit", "key", key)
			return rs, nil
		}

		rs, err := loader.Load(ctx, docs, c.log)
		if err != nil {
			return nil, err
		}

		if err := c.store(key, rs); err != nil {
			c.log.Error(err, "failed to persist compiled ruleset", "key", key)
		}
		return rs, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*loader.Ruleset), nil
}

func cacheKey(docs []datapack.Document) (string, error) {
	sorted := make([]datapack.Document, len(docs))
	copy(sorted, docs)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Name < sorted[j].Name })

	buf, err := json.Marshal(sorted)
	if err != nil {
		return "", fmt.Errorf("rulesetcache: canonicalize: %w", err)
	}
	sum := xxhash.Sum64(buf)
	return fmt.Sprintf("%s%016x", rulesetKeyPrefix, sum), nil
}

func (c *Cache) lookup(key string) (*loader.Ruleset, bool) {
	var rs loader.Ruleset
	err := c.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &rs)
		})
	})
	if err != nil {
		return nil, false
	}
	return &rs, true
}

func (c *Cache) store(key string, rs *loader.Ruleset) error {
	data, err := json.Marshal(rs)
	if err != nil {
		return fmt.Errorf("rulesetcache: encode: %w", err)
	}
	c.log.V(1).Info("caching compiled ruleset", "key", key, "size", humanize.Bytes(uint64(len(data))))
	return c.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(key), data)
	})
}
