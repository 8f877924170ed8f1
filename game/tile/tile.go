package tile

import (
	"errors"
	"fmt"
	"sort"
	"sync/atomic"

	"github.com/wricardo/mcp-training/merge2048/game/board"
)

var (
	ErrCellOccupied   = errors.New("cell already holds a tile")
	ErrAlreadyClaimed = errors.New("identity already claimed")
)

// ID identifies one logical tile. The zero ID is never minted.
type ID uint64

func (id ID) String() string {
	return fmt.Sprintf("t%d", uint64(id))
}

var lastID atomic.Uint64

// NewID mints an ID that is unique for the lifetime of the process.
func NewID() ID {
	return ID(lastID.Add(1))
}

// Tile is one identified tile at its current cell.
type Tile struct {
	ID    ID         `json:"id"`
	Cell  board.Cell `json:"cell"`
	Value int        `json:"value"`
}

// Table maps cells to tiles. A Table is never modified after construction.
type Table struct {
	byCell map[board.Cell]Tile
}

// NewTable builds a table from tiles. Two tiles on the same cell is an error.
func NewTable(tiles ...Tile) (Table, error) {
	byCell := make(map[board.Cell]Tile, len(tiles))
	for _, t := range tiles {
		if _, exists := byCell[t.Cell]; exists {
			return Table{}, fmt.Errorf("%w: %v", ErrCellOccupied, t.Cell)
		}
		byCell[t.Cell] = t
	}
	return Table{byCell: byCell}, nil
}

// Lookup returns the tile at c, if any.
func (t Table) Lookup(c board.Cell) (Tile, bool) {
	tl, ok := t.byCell[c]
	return tl, ok
}

// Len returns the number of tracked tiles.
func (t Table) Len() int {
	return len(t.byCell)
}

// Has reports whether id is present anywhere in the table.
func (t Table) Has(id ID) bool {
	for _, tl := range t.byCell {
		if tl.ID == id {
			return true
		}
	}
	return false
}

// Tiles returns the tiles in row-major cell order.
func (t Table) Tiles() []Tile {
	tiles := make([]Tile, 0, len(t.byCell))
	for _, tl := range t.byCell {
		tiles = append(tiles, tl)
	}
	sort.Slice(tiles, func(i, j int) bool {
		a, b := tiles[i].Cell, tiles[j].Cell
		if a.Row != b.Row {
			return a.Row < b.Row
		}
		return a.Col < b.Col
	})
	return tiles
}

// Board renders the table back into the values it describes.
func (t Table) Board() board.Board {
	var b board.Board
	for c, tl := range t.byCell {
		b.Set(c, tl.Value)
	}
	return b
}

// Describes reports whether the table holds exactly the nonzero cells of b with
// matching values.
func (t Table) Describes(b board.Board) bool {
	if t.Len() != b.Count() {
		return false
	}
	for c, tl := range t.byCell {
		if b.At(c) != tl.Value {
			return false
		}
	}
	return true
}

// Claims records which identities one transition has consumed.
type Claims struct {
	claimed map[ID]struct{}
}

// NewClaims returns an empty claim set.
func NewClaims() *Claims {
	return &Claims{claimed: make(map[ID]struct{})}
}

// Claim marks id as consumed. Claiming the same id twice returns ErrAlreadyClaimed.
func (c *Claims) Claim(id ID) error {
	if _, ok := c.claimed[id]; ok {
		return fmt.Errorf("%w: %v", ErrAlreadyClaimed, id)
	}
	c.claimed[id] = struct{}{}
	return nil
}
