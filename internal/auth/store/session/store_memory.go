package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"taskboard/internal/auth/models"
	id "taskboard/pkg/domain"
	"taskboard/pkg/platform/sentinel"
)

// InMemorySessionStore keeps sessions in process memory.
type InMemorySessionStore struct {
	mu      sync.RWMutex
	byID    map[id.SessionID]*models.Session
	byToken map[string]id.SessionID
}

// New constructs an empty in-memory session store.
func New() *InMemorySessionStore {
	return &InMemorySessionStore{
		byID:    make(map[id.SessionID]*models.Session),
		byToken: make(map[string]id.SessionID),
	}
}

// Create stores session. A reused token hash yields sentinel.ErrAlreadyUsed.
func (s *InMemorySessionStore) Create(_ context.Context, session *models.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, taken := s.byToken[session.TokenHash]; taken {
		return fmt.Errorf("session token: %w", sentinel.ErrAlreadyUsed)
	}
	stored := *session
	s.byID[session.ID] = &stored
	s.byToken[session.TokenHash] = session.ID
	return nil
}

func (s *InMemorySessionStore) FindByID(_ context.Context, sessionID id.SessionID) (*models.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	session, ok := s.byID[sessionID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return copySession(session), nil
}

// FindByTokenHash looks a session up by the SHA-256 hex of its bearer token.
func (s *InMemorySessionStore) FindByTokenHash(_ context.Context, tokenHash string) (*models.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sessionID, ok := s.byToken[tokenHash]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return copySession(s.byID[sessionID]), nil
}

// ListByUser returns every session of userID, newest first.
func (s *InMemorySessionStore) ListByUser(_ context.Context, userID id.UserID) ([]*models.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var sessions []*models.Session
	for _, session := range s.byID {
		if session.UserID == userID {
			sessions = append(sessions, copySession(session))
		}
	}
	newestFirst(sessions)
	return sessions, nil
}

func (s *InMemorySessionStore) UpdateSession(_ context.Context, session *models.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.byID[session.ID]; !ok {
		return sentinel.ErrNotFound
	}
	s.byID[session.ID] = copySession(session)
	return nil
}

// Execute runs validate then mutate on the stored session under the store
// lock. A validate error is returned unchanged and nothing is written.
func (s *InMemorySessionStore) Execute(_ context.Context, sessionID id.SessionID, validate func(*models.Session) error, mutate func(*models.Session)) (*models.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored, ok := s.byID[sessionID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	working := copySession(stored)
	if err := validate(working); err != nil {
		return nil, err
	}
	mutate(working)
	s.byID[sessionID] = working
	return copySession(working), nil
}

// RevokeSessionIfActive revokes the session unless it already is.
func (s *InMemorySessionStore) RevokeSessionIfActive(_ context.Context, sessionID id.SessionID, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, ok := s.byID[sessionID]
	if !ok {
		return sentinel.ErrNotFound
	}
	if session.CanRevoke() != nil {
		return ErrSessionRevoked
	}
	session.ApplyRevocation(now)
	return nil
}

// RevokeExpired revokes every active session whose expiry is before now and
// returns how many were revoked.
func (s *InMemorySessionStore) RevokeExpired(_ context.Context, now time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	count := 0
	for _, session := range s.byID {
		if session.IsActive() && session.IsExpired(now) {
			session.ApplyRevocation(now)
			count++
		}
	}
	return count, nil
}

func copySession(session *models.Session) *models.Session {
	c := *session
	if session.RevokedAt != nil {
		revokedAt := *session.RevokedAt
		c.RevokedAt = &revokedAt
	}
	return &c
}
