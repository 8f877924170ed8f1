package board

import (
	"encoding/json"
	"errors"
	"fmt"
)

// ErrInvalidSnapshot is wrapped by every validation failure.
var ErrInvalidSnapshot = errors.New("invalid snapshot")

// IsPowerOfTwo reports whether v is a power of two greater than or equal to 2.
func IsPowerOfTwo(v int) bool {
	return v >= 2 && v&(v-1) == 0
}

// Validate checks that every nonzero value is a power of two >= 2.
func (b *Board) Validate() error {
	for r := 0; r < Size; r++ {
		for c := 0; c < Size; c++ {
			v := b[r][c]
			if v != 0 && !IsPowerOfTwo(v) {
				return fmt.Errorf("%w: value %d at (%d,%d) is not a power of two", ErrInvalidSnapshot, v, r, c)
			}
		}
	}
	return nil
}

// Validate checks the board and the score.
func (s *GameState) Validate() error {
	if s.Score < 0 {
		return fmt.Errorf("%w: negative score %d", ErrInvalidSnapshot, s.Score)
	}
	return s.Board.Validate()
}

// wireState mirrors the rules engine payload. Pointer fields detect missing keys.
type wireState struct {
	Board    *[][]int `json:"board"`
	Score    *int     `json:"score"`
	Won      *bool    `json:"won"`
	GameOver *bool    `json:"gameOver"`
}

// BoardFromRows converts a wire board into a Board, rejecting any shape other than 4x4.
func BoardFromRows(rows [][]int) (Board, error) {
	var b Board
	if len(rows) != Size {
		return b, fmt.Errorf("%w: board has %d rows, want %d", ErrInvalidSnapshot, len(rows), Size)
	}
	for r, row := range rows {
		if len(row) != Size {
			return b, fmt.Errorf("%w: row %d has %d cells, want %d", ErrInvalidSnapshot, r, len(row), Size)
		}
		copy(b[r][:], row)
	}
	return b, b.Validate()
}

// DecodeGameState parses and strictly validates a rules engine snapshot.
func DecodeGameState(data []byte) (GameState, error) {
	var w wireState
	if err := json.Unmarshal(data, &w); err != nil {
		return GameState{}, fmt.Errorf("%w: %v", ErrInvalidSnapshot, err)
	}
	return w.toState()
}

func (w wireState) toState() (GameState, error) {
	switch {
	case w.Board == nil:
		return GameState{}, fmt.Errorf("%w: missing field board", ErrInvalidSnapshot)
	case w.Score == nil:
		return GameState{}, fmt.Errorf("%w: missing field score", ErrInvalidSnapshot)
	case w.Won == nil:
		return GameState{}, fmt.Errorf("%w: missing field won", ErrInvalidSnapshot)
	case w.GameOver == nil:
		return GameState{}, fmt.Errorf("%w: missing field gameOver", ErrInvalidSnapshot)
	}

	b, err := BoardFromRows(*w.Board)
	if err != nil {
		return GameState{}, err
	}
	state := GameState{Board: b, Score: *w.Score, Won: *w.Won, GameOver: *w.GameOver}
	if err := state.Validate(); err != nil {
		return GameState{}, err
	}
	return state, nil
}

// MarshalJSON writes the board as nested arrays, matching the rules engine.
func (b Board) MarshalJSON() ([]byte, error) {
	return json.Marshal(b.Rows())
}

// UnmarshalJSON reads nested arrays and rejects anything but a valid 4x4 board.
func (b *Board) UnmarshalJSON(data []byte) error {
	var rows [][]int
	if err := json.Unmarshal(data, &rows); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidSnapshot, err)
	}
	parsed, err := BoardFromRows(rows)
	if err != nil {
		return err
	}
	*b = parsed
	return nil
}
