package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/rryowa/blog_admin/internal/models"
	"github.com/rryowa/blog_admin/internal/storage"
)

var _ storage.SessionRepository = (*InMemorySessionManager)(nil)

type InMemorySessionManager struct {
	mu       sync.RWMutex
	sessions map[string]models.Session
	log      *zap.SugaredLogger
	now      func() time.Time
}

func NewSessionRepository(log *zap.SugaredLogger) *InMemorySessionManager {
	return &InMemorySessionManager{
		sessions: make(map[string]models.Session),
		log:      log,
		now:      time.Now,
	}
}

// WithClock replaces the clock used for expiry checks.
func (m *InMemorySessionManager) WithClock(now func() time.Time) *InMemorySessionManager {
	m.now = now
	return m
}

func (m *InMemorySessionManager) CreateSession(_ context.Context, session models.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.sessions[session.ID]; exists {
		return fmt.Errorf("session %s already exists", session.ID)
	}
	m.sessions[session.ID] = session
	m.log.Debugw("Session created", "sessionID", session.ID, "userID", session.UserID)

	return nil
}

func (m *InMemorySessionManager) FindByID(_ context.Context, sessionID string) (*models.Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	session, ok := m.sessions[sessionID]
	if !ok || !session.ExpiresAt.After(m.now()) {
		m.log.Debugw("Session not found", "sessionID", sessionID)
		return nil, fmt.Errorf("session %s: %w", sessionID, storage.ErrSessionNotFound)
	}

	return &session, nil
}

func (m *InMemorySessionManager) FindByOwnerCandidate(_ context.Context, userID string) (*models.Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	now := m.now()
	var (
		best     models.Session
		bestSeen time.Time
		found    bool
	)
	for _, session := range m.sessions {
		if session.UserID != userID || !session.ExpiresAt.After(now) {
			continue
		}
		seen := session.CreatedAt
		if session.RotatedAt != nil {
			seen = *session.RotatedAt
		}
		if !found || seen.After(bestSeen) {
			best, bestSeen, found = session, seen, true
		}
	}
	if !found {
		return nil, fmt.Errorf("session for user %s: %w", userID, storage.ErrSessionNotFound)
	}

	return &best, nil
}

func (m *InMemorySessionManager) DeleteByID(_ context.Context, sessionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.sessions, sessionID)

	return nil
}

func (m *InMemorySessionManager) Rotate(_ context.Context, sessionID string, rotation models.Rotation) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	session, ok := m.sessions[sessionID]
	if !ok {
		return fmt.Errorf("rotate session %s: %w", sessionID, storage.ErrSessionNotFound)
	}
	rotatedAt := rotation.RotatedAt
	session.RefreshTokenHash = rotation.RefreshTokenHash
	session.ExpiresAt = rotation.ExpiresAt
	session.RotatedAt = &rotatedAt
	m.sessions[sessionID] = session

	return nil
}

// Len reports the number of stored rows, expired ones included.
func (m *InMemorySessionManager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return len(m.sessions)
}
