package board

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidDirection is returned for anything other than the four directions.
var ErrInvalidDirection = errors.New("invalid direction")

// Size is the number of rows and columns of a board.
const Size = 4

// WinningValue is the tile value the rules engine treats as a win.
const WinningValue = 2048

// Board is a 4x4 matrix of tile values indexed [row][col]. Zero is empty.
type Board [Size][Size]int

// Cell addresses one position on the board.
type Cell struct {
	Row int `json:"row"`
	Col int `json:"col"`
}

func (c Cell) String() string {
	return fmt.Sprintf("(%d,%d)", c.Row, c.Col)
}

// InBounds reports whether the cell lies on a board.
func (c Cell) InBounds() bool {
	return c.Row >= 0 && c.Row < Size && c.Col >= 0 && c.Col < Size
}

// GameState is one snapshot reported by the rules engine.
type GameState struct {
	Board    Board `json:"board"`
	Score    int   `json:"score"`
	Won      bool  `json:"won"`
	GameOver bool  `json:"gameOver"`
}

// Banner messages shown once a game has ended.
const (
	WonBanner      = "Amazing! You reached 2048!"
	GameOverBanner = "Game Over! Ready for another try?"
)

// Banner returns the end-of-game message for s, or "" while play continues.
// A win takes precedence over game over.
func (s GameState) Banner() string {
	switch {
	case s.Won:
		return WonBanner
	case s.GameOver:
		return GameOverBanner
	}
	return ""
}

// Direction is a move direction.
type Direction int

const (
	Up Direction = iota
	Down
	Left
	Right
)

var directionNames = [...]string{"up", "down", "left", "right"}

// Directions lists every direction in wire order.
var Directions = []Direction{Up, Down, Left, Right}

func (d Direction) String() string {
	if d < Up || d > Right {
		return fmt.Sprintf("direction(%d)", int(d))
	}
	return directionNames[d]
}

// Valid reports whether d is one of the four directions.
func (d Direction) Valid() bool {
	return d >= Up && d <= Right
}

// ParseDirection converts "up", "down", "left" or "right" (any case) to a Direction.
func ParseDirection(s string) (Direction, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	for i, n := range directionNames {
		if n == name {
			return Direction(i), nil
		}
	}
	return 0, fmt.Errorf("%w %q: must be up, down, left or right", ErrInvalidDirection, s)
}

// MarshalText encodes the direction by name.
func (d Direction) MarshalText() ([]byte, error) {
	if !d.Valid() {
		return nil, fmt.Errorf("%w %d", ErrInvalidDirection, int(d))
	}
	return []byte(d.String()), nil
}

// UnmarshalText decodes a direction name.
func (d *Direction) UnmarshalText(text []byte) error {
	parsed, err := ParseDirection(string(text))
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// At returns the value at c.
func (b *Board) At(c Cell) int {
	return b[c.Row][c.Col]
}

// Set stores v at c.
func (b *Board) Set(c Cell, v int) {
	b[c.Row][c.Col] = v
}

// Occupied returns the nonzero cells in row-major order.
func (b *Board) Occupied() []Cell {
	var cells []Cell
	for r := 0; r < Size; r++ {
		for c := 0; c < Size; c++ {
			if b[r][c] != 0 {
				cells = append(cells, Cell{Row: r, Col: c})
			}
		}
	}
	return cells
}

// Count returns the number of nonzero cells.
func (b *Board) Count() int {
	n := 0
	for r := 0; r < Size; r++ {
		for c := 0; c < Size; c++ {
			if b[r][c] != 0 {
				n++
			}
		}
	}
	return n
}

// MaxTile returns the largest value on the board.
func (b *Board) MaxTile() int {
	max := 0
	for r := 0; r < Size; r++ {
		for c := 0; c < Size; c++ {
			if b[r][c] > max {
				max = b[r][c]
			}
		}
	}
	return max
}

// Rows returns the board as a slice of slices, the shape used on the wire.
func (b *Board) Rows() [][]int {
	rows := make([][]int, Size)
	for r := 0; r < Size; r++ {
		rows[r] = append([]int(nil), b[r][:]...)
	}
	return rows
}

// String renders the board as four space-separated rows, for logs and tests.
func (b *Board) String() string {
	var sb strings.Builder
	for r := 0; r < Size; r++ {
		if r > 0 {
			sb.WriteByte('/')
		}
		for c := 0; c < Size; c++ {
			if c > 0 {
				sb.WriteByte(' ')
			}
			fmt.Fprintf(&sb, "%d", b[r][c])
		}
	}
	return sb.String()
}

// Line returns the cells of line i in travel order for dir: the cell on the
// compaction edge comes first. Rows are lines for Left and Right, columns for
// Up and Down.
func Line(dir Direction, i int) [Size]Cell {
	var cells [Size]Cell
	for k := 0; k < Size; k++ {
		switch dir {
		case Left:
			cells[k] = Cell{Row: i, Col: k}
		case Right:
			cells[k] = Cell{Row: i, Col: Size - 1 - k}
		case Up:
			cells[k] = Cell{Row: k, Col: i}
		case Down:
			cells[k] = Cell{Row: Size - 1 - k, Col: i}
		}
	}
	return cells
}
