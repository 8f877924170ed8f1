// Package board defines the snapshot model shared by every part of the client:
// the 4x4 Board, the GameState reported by the remote rules engine, grid cells,
// move directions and the per-line travel order used during reconciliation.
//
// Snapshots coming off the wire are strictly validated. A board with the wrong
// dimensions, a nonzero value that is not a power of two, a negative score or a
// missing field is rejected with an error wrapping ErrInvalidSnapshot, so nothing
// downstream ever sees a malformed board.
//
// Usage:
//
//	state, err := board.DecodeGameState(body)
//	if err != nil {
//		return err
//	}
//
//	dir, err := board.ParseDirection("left")
//	for i := 0; i < board.Size; i++ {
//		cells := board.Line(dir, i) // compaction edge first
//		...
//	}
package board
