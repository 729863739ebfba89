package tag

import (
	"context"
	"fmt"
	"sync"

	"taskboard/internal/todo/models"
	id "taskboard/pkg/domain"
	"taskboard/pkg/platform/sentinel"
)

// InMemoryTagStore keeps tags in process memory.
type InMemoryTagStore struct {
	mu   sync.RWMutex
	tags map[id.TagID]*models.Tag
}

// New constructs an empty in-memory tag store.
func New() *InMemoryTagStore {
	return &InMemoryTagStore{tags: make(map[id.TagID]*models.Tag)}
}

// Create inserts tag. A name the owner already uses yields sentinel.ErrAlreadyUsed.
func (s *InMemoryTagStore) Create(_ context.Context, tag *models.Tag) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkNameLocked(tag); err != nil {
		return err
	}
	stored := *tag
	s.tags[tag.ID] = &stored
	return nil
}

func (s *InMemoryTagStore) FindByID(_ context.Context, tagID id.TagID) (*models.Tag, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, ok := s.tags[tagID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	found := *t
	return &found, nil
}

// FindByIDs returns the tags that exist among tagIDs, in input order.
// Missing IDs are skipped.
func (s *InMemoryTagStore) FindByIDs(_ context.Context, tagIDs []id.TagID) ([]*models.Tag, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*models.Tag, 0, len(tagIDs))
	for _, tagID := range tagIDs {
		if t, ok := s.tags[tagID]; ok {
			found := *t
			out = append(out, &found)
		}
	}
	return out, nil
}

// ListByUser returns userID's tags ordered by name.
func (s *InMemoryTagStore) ListByUser(_ context.Context, userID id.UserID) ([]*models.Tag, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*models.Tag
	for _, t := range s.tags {
		if t.UserID == userID {
			found := *t
			out = append(out, &found)
		}
	}
	models.SortTagsByName(out)
	return out, nil
}

func (s *InMemoryTagStore) Update(_ context.Context, tag *models.Tag) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.tags[tag.ID]; !ok {
		return sentinel.ErrNotFound
	}
	if err := s.checkNameLocked(tag); err != nil {
		return err
	}
	stored := *tag
	s.tags[tag.ID] = &stored
	return nil
}

func (s *InMemoryTagStore) Delete(_ context.Context, tagID id.TagID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.tags[tagID]; !ok {
		return sentinel.ErrNotFound
	}
	delete(s.tags, tagID)
	return nil
}

func (s *InMemoryTagStore) checkNameLocked(tag *models.Tag) error {
	key := tag.NameKey()
	for _, existing := range s.tags {
		if existing.ID != tag.ID && existing.UserID == tag.UserID && existing.NameKey() == key {
			return fmt.Errorf("tag name %q: %w", tag.Name, sentinel.ErrAlreadyUsed)
		}
	}
	return nil
}
