package reconcile

import (
	"math/rand"

	"github.com/wricardo/mcp-training/merge2048/game/board"
	"github.com/wricardo/mcp-training/merge2048/game/tile"
)

// slide applies a legal move the way the rules engine does: each line is
// compacted toward its edge and equal neighbours merge at most once.
func slide(b board.Board, dir board.Direction) (board.Board, int) {
	var out board.Board
	score := 0
	for line := 0; line < board.Size; line++ {
		cells := board.Line(dir, line)
		var vals []int
		for _, c := range cells {
			if v := b.At(c); v != 0 {
				vals = append(vals, v)
			}
		}
		var packed []int
		for k := 0; k < len(vals); k++ {
			if k+1 < len(vals) && vals[k] == vals[k+1] {
				packed = append(packed, vals[k]*2)
				score += vals[k] * 2
				k++
				continue
			}
			packed = append(packed, vals[k])
		}
		for k, v := range packed {
			out.Set(cells[k], v)
		}
	}
	return out, score
}

// spawn places a 2 (90%) or a 4 on a random empty cell.
func spawn(b board.Board, rng *rand.Rand) board.Board {
	var empty []board.Cell
	for r := 0; r < board.Size; r++ {
		for c := 0; c < board.Size; c++ {
			if b[r][c] == 0 {
				empty = append(empty, board.Cell{Row: r, Col: c})
			}
		}
	}
	if len(empty) == 0 {
		return b
	}
	v := 2
	if rng.Float64() >= 0.9 {
		v = 4
	}
	b.Set(empty[rng.Intn(len(empty))], v)
	return b
}

// identify gives every tile of b a fresh identity.
func identify(b board.Board) tile.Table {
	var tiles []tile.Tile
	for _, c := range b.Occupied() {
		tiles = append(tiles, tile.Tile{ID: tile.NewID(), Cell: c, Value: b.At(c)})
	}
	table, err := tile.NewTable(tiles...)
	if err != nil {
		panic(err)
	}
	return table
}

func row(r int, vals ...int) board.Board {
	var b board.Board
	copy(b[r][:], vals)
	return b
}

func cell(r, c int) board.Cell {
	return board.Cell{Row: r, Col: c}
}
