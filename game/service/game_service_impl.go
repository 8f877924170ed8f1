package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/wricardo/mcp-training/merge2048/game/board"
	"github.com/wricardo/mcp-training/merge2048/game/reconcile"
	"github.com/wricardo/mcp-training/merge2048/game/session"
)

// gameServiceImpl implements the GameService interface
type gameServiceImpl struct {
	sessions SessionManager
	logger   *slog.Logger
}

// NewGameService creates a new game service instance
func NewGameService(sessions SessionManager, logger *slog.Logger) GameService {
	if logger == nil {
		logger = slog.Default()
	}
	return &gameServiceImpl{
		sessions: sessions,
		logger:   logger.With("component", "service"),
	}
}

// CreateSession creates a session and presents its first game. A failed
// start leaves the session in place with a notice so the caller can retry
// with NewGame.
func (s *gameServiceImpl) CreateSession(ctx context.Context, req CreateSessionRequest) (*SessionInfo, error) {
	sess, err := s.sessions.Create(req.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}

	start := sess.Controller.NewGame
	if req.Resume {
		start = sess.Controller.Resume
	}
	if _, err := start(ctx); err != nil {
		s.logger.Warn("session started without a game", "session", sess.ID, "error", err)
	}

	return s.info(ctx, sess)
}

// GetSession retrieves session information
func (s *gameServiceImpl) GetSession(ctx context.Context, sessionID string) (*SessionInfo, error) {
	sess, err := s.sessions.Get(sessionID)
	if err != nil {
		return nil, err
	}
	return s.info(ctx, sess)
}

// ListSessions returns all active sessions
func (s *gameServiceImpl) ListSessions(ctx context.Context) ([]*SessionInfo, error) {
	sessions := s.sessions.List()
	result := make([]*SessionInfo, 0, len(sessions))

	for _, sess := range sessions {
		info, err := s.info(ctx, sess)
		if err != nil {
			// Deleted while listing.
			continue
		}
		result = append(result, info)
	}

	return result, nil
}

// DeleteSession removes a session
func (s *gameServiceImpl) DeleteSession(ctx context.Context, sessionID string) error {
	return s.sessions.Delete(sessionID)
}

// Move executes a single move for a session and waits for it to commit.
func (s *gameServiceImpl) Move(ctx context.Context, sessionID, direction string) (*MoveResult, error) {
	dir, err := board.ParseDirection(direction)
	if err != nil {
		return nil, err
	}

	sess, err := s.sessions.Get(sessionID)
	if err != nil {
		return nil, err
	}

	tr, err := sess.Controller.Move(ctx, dir)
	if err != nil {
		return nil, err
	}
	return result(tr), nil
}

// NewGame starts a new game for a session, abandoning anything in flight.
func (s *gameServiceImpl) NewGame(ctx context.Context, sessionID string) (*MoveResult, error) {
	sess, err := s.sessions.Get(sessionID)
	if err != nil {
		return nil, err
	}

	tr, err := sess.Controller.NewGame(ctx)
	if err != nil {
		return nil, err
	}
	return result(tr), nil
}

// Tiles returns the committed tile table of a session.
func (s *gameServiceImpl) Tiles(ctx context.Context, sessionID string) (*session.Snapshot, error) {
	sess, err := s.sessions.Get(sessionID)
	if err != nil {
		return nil, err
	}
	return sess.Controller.Snapshot(ctx)
}

func (s *gameServiceImpl) info(ctx context.Context, sess *session.Session) (*SessionInfo, error) {
	snap, err := sess.Controller.Snapshot(ctx)
	if err != nil {
		return nil, err
	}

	info := &SessionInfo{
		ID:             sess.ID,
		CreatedAt:      sess.CreatedAt,
		LastAccessedAt: sess.LastAccessedAt,
		Busy:           snap.Busy,
		GameState:      snap.State,
		Tiles:          snap.Tiles,
		Notice:         snap.Notice,
	}
	if snap.State != nil {
		info.Banner = snap.State.Banner()
	}
	return info, nil
}

func result(tr *session.Transition) *MoveResult {
	state := tr.State
	res := &MoveResult{
		Success:    true,
		GameState:  &state,
		Message:    state.Banner(),
		Transition: tr,
		OpCounts:   countOps(tr.Ops),
	}
	if !tr.Initial {
		res.ScoreDelta = reconcile.MergedScore(tr.Ops)
	}
	return res
}
