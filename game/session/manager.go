package session

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/wricardo/mcp-training/merge2048/observability"
)

var (
	ErrSessionNotFound      = errors.New("session not found")
	ErrSessionAlreadyExists = errors.New("session already exists")
	ErrSessionLimit         = errors.New("session limit reached")
)

// Session is one hosted client session. The manager hands out copies, so a
// Session's timestamps are as of the call that returned it.
type Session struct {
	ID             string
	Controller     *Controller
	CreatedAt      time.Time
	LastAccessedAt time.Time

	cancel context.CancelFunc
}

// Factory builds the controller for a new session.
type Factory func(id string) *Controller

// ManagerOption configures a Manager.
type ManagerOption func(*Manager)

// WithLimit caps the number of live sessions. Zero means no cap.
func WithLimit(n int) ManagerOption {
	return func(m *Manager) {
		m.limit = n
	}
}

// Manager hosts client sessions, each running its own controller loop.
type Manager struct {
	sessions map[string]*Session
	factory  Factory
	metrics  *observability.Metrics
	ctx      context.Context
	limit    int
	mu       sync.RWMutex
}

// NewManager creates a manager. Controllers run until ctx is cancelled or
// their session is deleted.
func NewManager(ctx context.Context, factory Factory, metrics *observability.Metrics, opts ...ManagerOption) *Manager {
	m := &Manager{
		sessions: make(map[string]*Session),
		factory:  factory,
		metrics:  metrics,
		ctx:      ctx,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Create starts a session. An empty id gets a generated one.
func (m *Manager) Create(id string) (*Session, error) {
	if id == "" {
		id = uuid.NewString()
	}
	key := strings.ToLower(id)

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.sessions[key]; exists {
		return nil, ErrSessionAlreadyExists
	}
	if m.limit > 0 && len(m.sessions) >= m.limit {
		return nil, fmt.Errorf("%w: %d of %d in use", ErrSessionLimit, len(m.sessions), m.limit)
	}

	ctx, cancel := context.WithCancel(m.ctx)
	ctrl := m.factory(id)
	go ctrl.Run(ctx)

	now := time.Now()
	sess := &Session{
		ID:             id,
		Controller:     ctrl,
		CreatedAt:      now,
		LastAccessedAt: now,
		cancel:         cancel,
	}
	m.sessions[key] = sess
	if m.metrics != nil {
		m.metrics.ActiveSessions.Inc()
	}

	cp := *sess
	return &cp, nil
}

// Get retrieves a session by ID (case-insensitive) and marks it accessed.
func (m *Manager) Get(id string) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	sess, exists := m.sessions[strings.ToLower(id)]
	if !exists {
		return nil, ErrSessionNotFound
	}
	sess.LastAccessedAt = time.Now()
	cp := *sess
	return &cp, nil
}

// List returns all sessions, oldest first.
func (m *Manager) List() []*Session {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]*Session, 0, len(m.sessions))
	for _, sess := range m.sessions {
		cp := *sess
		result = append(result, &cp)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.Before(result[j].CreatedAt)
	})
	return result
}

// Delete stops a session's controller and forgets it.
func (m *Manager) Delete(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := strings.ToLower(id)
	sess, exists := m.sessions[key]
	if !exists {
		return ErrSessionNotFound
	}
	m.remove(key, sess)
	return nil
}

// CleanupExpiredSessions removes sessions that haven't been accessed in the given duration
func (m *Manager) CleanupExpiredSessions(maxAge time.Duration) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	cutoff := time.Now().Add(-maxAge)
	removed := 0

	for key, sess := range m.sessions {
		if sess.LastAccessedAt.Before(cutoff) {
			m.remove(key, sess)
			removed++
		}
	}

	return removed
}

// Count returns the number of active sessions
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// Close stops every session.
func (m *Manager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()

	for key, sess := range m.sessions {
		m.remove(key, sess)
	}
}

func (m *Manager) remove(key string, sess *Session) {
	sess.cancel()
	delete(m.sessions, key)
	if m.metrics != nil {
		m.metrics.ActiveSessions.Dec()
	}
}
