package models

import (
	id "taskboard/pkg/domain"
	dErrors "taskboard/pkg/domain-errors"
)

const (
	DefaultListLimit = 50
	MaxListLimit     = 100
)

// ListFilter selects a page of one user's todos, newest first.
// TagIDs match any-of; a todo carrying several listed tags appears once.
type ListFilter struct {
	UserID id.UserID
	Status *Status
	TagIDs []id.TagID
	Limit  int
	Offset int
}

// NewListFilter returns the first default-sized page of userID's todos.
func NewListFilter(userID id.UserID) ListFilter {
	return ListFilter{UserID: userID, Limit: DefaultListLimit}
}

// Normalize caps Limit at MaxListLimit and rejects out of range paging values.
func (f *ListFilter) Normalize() error {
	if f.Limit < 1 {
		return dErrors.New(dErrors.CodeValidation, "limit must be at least 1")
	}
	if f.Limit > MaxListLimit {
		f.Limit = MaxListLimit
	}
	if f.Offset < 0 {
		return dErrors.New(dErrors.CodeValidation, "offset must not be negative")
	}
	if f.Status != nil && !f.Status.IsValid() {
		_, err := ParseStatus(string(*f.Status))
		return err
	}
	f.TagIDs = DedupeTagIDs(f.TagIDs)
	return nil
}

// Matches reports whether todo passes the status and tag criteria.
// Ownership and paging are applied by the store.
func (f ListFilter) Matches(todo *Todo) bool {
	if f.Status != nil && todo.Status != *f.Status {
		return false
	}
	if len(f.TagIDs) == 0 {
		return true
	}
	for _, tagID := range f.TagIDs {
		if todo.HasTag(tagID) {
			return true
		}
	}
	return false
}
