package service

import (
	"time"

	"github.com/wricardo/mcp-training/merge2048/game/board"
	"github.com/wricardo/mcp-training/merge2048/game/reconcile"
	"github.com/wricardo/mcp-training/merge2048/game/session"
	"github.com/wricardo/mcp-training/merge2048/game/tile"
)

// CreateSessionRequest configures a new session.
type CreateSessionRequest struct {
	// ID is optional; a UUID is generated when empty.
	ID string `json:"id,omitempty"`
	// Resume presents the game the rules engine already holds instead of
	// starting a new one.
	Resume bool `json:"resume,omitempty"`
}

// SessionInfo provides information about a client session
type SessionInfo struct {
	ID             string           `json:"id"`
	CreatedAt      time.Time        `json:"created_at"`
	LastAccessedAt time.Time        `json:"last_accessed_at"`
	Busy           bool             `json:"busy"`
	GameState      *board.GameState `json:"game_state"`
	Tiles          []tile.Tile      `json:"tiles"`
	Notice         *session.Notice  `json:"notice,omitempty"`
	Banner         string           `json:"banner,omitempty"`
}

// MoveResult contains the outcome of a move or new game
type MoveResult struct {
	Success    bool                `json:"success"`
	GameState  *board.GameState    `json:"game_state"`
	Message    string              `json:"message,omitempty"`
	ScoreDelta int                 `json:"score_delta"`
	Transition *session.Transition `json:"transition"`
	OpCounts   OpCounts            `json:"op_counts"`
}

// OpCounts summarises the ops of one transition.
type OpCounts struct {
	Moves   int `json:"moves"`
	Merges  int `json:"merges"`
	Spawns  int `json:"spawns"`
	Removes int `json:"removes"`
}

func countOps(ops []reconcile.Op) OpCounts {
	return OpCounts{
		Moves:   reconcile.Count(ops, reconcile.KindMove),
		Merges:  reconcile.Count(ops, reconcile.KindMerge),
		Spawns:  reconcile.Count(ops, reconcile.KindSpawn),
		Removes: reconcile.Count(ops, reconcile.KindRemove),
	}
}
