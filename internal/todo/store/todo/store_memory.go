package todo

import (
	"bytes"
	"context"
	"sort"
	"sync"

	"taskboard/internal/todo/models"
	id "taskboard/pkg/domain"
	"taskboard/pkg/platform/sentinel"
)

// InMemoryTodoStore keeps todos and their tag links in process memory.
type InMemoryTodoStore struct {
	mu    sync.RWMutex
	todos map[id.TodoID]*models.Todo
}

// New constructs an empty in-memory todo store.
func New() *InMemoryTodoStore {
	return &InMemoryTodoStore{todos: make(map[id.TodoID]*models.Todo)}
}

// Create inserts todo together with its tag links.
func (s *InMemoryTodoStore) Create(_ context.Context, todo *models.Todo) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.todos[todo.ID]; exists {
		return sentinel.ErrAlreadyUsed
	}
	s.todos[todo.ID] = todo.Clone()
	return nil
}

func (s *InMemoryTodoStore) FindByID(_ context.Context, todoID id.TodoID) (*models.Todo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, ok := s.todos[todoID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return t.Clone(), nil
}

// List returns one page of the filter owner's todos, newest first.
// The filter is expected to be normalized.
func (s *InMemoryTodoStore) List(_ context.Context, filter models.ListFilter) ([]*models.Todo, error) {
	s.mu.RLock()
	var matched []*models.Todo
	for _, t := range s.todos {
		if t.UserID == filter.UserID && filter.Matches(t) {
			matched = append(matched, t.Clone())
		}
	}
	s.mu.RUnlock()

	SortNewestFirst(matched)
	if filter.Offset >= len(matched) {
		return []*models.Todo{}, nil
	}
	end := filter.Offset + filter.Limit
	if end > len(matched) {
		end = len(matched)
	}
	return matched[filter.Offset:end], nil
}

// Update replaces the stored todo, including its tag links.
func (s *InMemoryTodoStore) Update(_ context.Context, todo *models.Todo) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.todos[todo.ID]; !ok {
		return sentinel.ErrNotFound
	}
	s.todos[todo.ID] = todo.Clone()
	return nil
}

func (s *InMemoryTodoStore) Delete(_ context.Context, todoID id.TodoID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.todos[todoID]; !ok {
		return sentinel.ErrNotFound
	}
	delete(s.todos, todoID)
	return nil
}

// DetachTag removes tagID from every todo carrying it.
func (s *InMemoryTodoStore) DetachTag(_ context.Context, tagID id.TagID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, t := range s.todos {
		if t.HasTag(tagID) {
			t.DetachTag(tagID)
		}
	}
	return nil
}

// SortNewestFirst orders by created_at descending, breaking ties by ID
// descending to match the Postgres ordering.
func SortNewestFirst(todos []*models.Todo) {
	sort.Slice(todos, func(i, j int) bool {
		if !todos[i].CreatedAt.Equal(todos[j].CreatedAt) {
			return todos[i].CreatedAt.After(todos[j].CreatedAt)
		}
		a, b := todos[i].ID, todos[j].ID
		return bytes.Compare(a[:], b[:]) > 0
	})
}
