package user

import (
	"context"
	"fmt"
	"sync"

	"taskboard/internal/auth/models"
	id "taskboard/pkg/domain"
	"taskboard/pkg/platform/sentinel"
)

// InMemoryUserStore keeps users in process memory, indexed by ID and email.
type InMemoryUserStore struct {
	mu      sync.RWMutex
	users   map[id.UserID]*models.User
	byEmail map[string]id.UserID
}

// New constructs an empty in-memory user store.
func New() *InMemoryUserStore {
	return &InMemoryUserStore{
		users:   make(map[id.UserID]*models.User),
		byEmail: make(map[string]id.UserID),
	}
}

// Create inserts user. A taken email yields sentinel.ErrAlreadyUsed.
func (s *InMemoryUserStore) Create(_ context.Context, user *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, taken := s.byEmail[user.Email]; taken {
		return fmt.Errorf("email %s: %w", user.Email, sentinel.ErrAlreadyUsed)
	}
	stored := *user
	s.users[user.ID] = &stored
	s.byEmail[user.Email] = user.ID
	return nil
}

func (s *InMemoryUserStore) FindByID(_ context.Context, userID id.UserID) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.users[userID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	found := *u
	return &found, nil
}

// FindByEmail expects a normalized address.
func (s *InMemoryUserStore) FindByEmail(_ context.Context, email string) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	userID, ok := s.byEmail[email]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	found := *s.users[userID]
	return &found, nil
}
