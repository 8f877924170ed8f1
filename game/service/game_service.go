package service

import (
	"context"

	"github.com/wricardo/mcp-training/merge2048/game/session"
)

// GameService defines all operations the transports expose.
type GameService interface {
	// Session Management
	CreateSession(ctx context.Context, req CreateSessionRequest) (*SessionInfo, error)
	GetSession(ctx context.Context, sessionID string) (*SessionInfo, error)
	ListSessions(ctx context.Context) ([]*SessionInfo, error)
	DeleteSession(ctx context.Context, sessionID string) error

	// Game Operations
	Move(ctx context.Context, sessionID, direction string) (*MoveResult, error)
	NewGame(ctx context.Context, sessionID string) (*MoveResult, error)

	// Render State
	Tiles(ctx context.Context, sessionID string) (*session.Snapshot, error)
}

// SessionManager defines session storage operations
type SessionManager interface {
	Create(id string) (*session.Session, error)
	Get(id string) (*session.Session, error)
	List() []*session.Session
	Delete(id string) error
}

var _ SessionManager = (*session.Manager)(nil)
