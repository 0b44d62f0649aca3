package rulesetcache

import (
	"encoding/json"
	"fmt"

	"github.com/dgraph-io/badger/v4"

	"github.com/brindlegames/gridforge/internal/board"
	"github.com/brindlegames/gridforge/internal/score"
)

const saveKeyPrefix = "save:"

// SaveDoc is the on-disk save-game format: enough to fully reconstruct a
// State against the ruleset named by Datapacks.
type SaveDoc struct {
	Datapacks     []string           `json:"datapacks"`
	BoardDims     []int              `json:"board_dims"`
	BoardTopology string             `json:"board_topology"`
	Cells         []int16            `json:"cells"`
	Scores        map[string][]int64 `json:"scores"`
	NumPlayers    int                `json:"num_players"`
	ActivePlayer  int16              `json:"active_player"`
}

// Serialize captures a board, score store and active player into a
// SaveDoc naming the datapacks the ruleset was built from.
func Serialize(datapacks []string, b *board.Board, s *score.Store, numPlayers int, activePlayer board.PlayerID) SaveDoc {
	cells := b.Cells()
	flat := make([]int16, len(cells))
	for i, c := range cells {
		flat[i] = int16(c)
	}
	return SaveDoc{
		Datapacks:     append([]string(nil), datapacks...),
		BoardDims:     append([]int(nil), b.Dims...),
		BoardTopology: string(b.Topology),
		Cells:         flat,
		Scores:        s.Snapshot(),
		NumPlayers:    numPlayers,
		ActivePlayer:  int16(activePlayer),
	}
}

// Deserialize rebuilds a board, score store and active player from a
// SaveDoc. It does not itself re-validate the doc against a ruleset;
// callers that need that should re-run Load against doc.Datapacks and
// compare board dimensions/topology first.
func Deserialize(doc SaveDoc) (*board.Board, *score.Store, board.PlayerID, error) {
	cells := make([]board.PlayerID, len(doc.Cells))
	for i, c := range doc.Cells {
		cells[i] = board.PlayerID(c)
	}
	b, err := board.FromCells(doc.BoardDims, board.Topology(doc.BoardTopology), cells)
	if err != nil {
		return nil, nil, board.Empty, fmt.Errorf("rulesetcache: deserialize board: %w", err)
	}
	s := score.Restore(doc.NumPlayers, doc.Scores)
	return b, s, board.PlayerID(doc.ActivePlayer), nil
}

// SaveGame stores doc under name, overwriting any existing save with the
// same name.
func (c *Cache) SaveGame(name string, doc SaveDoc) error {
	data, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("rulesetcache: encode save %q: %w", name, err)
	}
	return c.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(saveKeyPrefix+name), data)
	})
}

// LoadGame loads the save previously stored under name.
func (c *Cache) LoadGame(name string) (SaveDoc, error) {
	var doc SaveDoc
	err := c.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(saveKeyPrefix + name))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &doc)
		})
	})
	if err != nil {
		return SaveDoc{}, fmt.Errorf("rulesetcache: load save %q: %w", name, err)
	}
	return doc, nil
}
