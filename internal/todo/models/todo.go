package models

import (
	"strings"
	"time"
	"unicode/utf8"

	id "taskboard/pkg/domain"
	dErrors "taskboard/pkg/domain-errors"
)

const (
	MaxTitleLength       = 200
	MaxDescriptionLength = 2000
)

// Status is the progress state of a todo.
type Status string

const (
	StatusPending    Status = "pending"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
)

// IsValid reports whether s is a known status.
func (s Status) IsValid() bool {
	switch s {
	case StatusPending, StatusInProgress, StatusCompleted:
		return true
	}
	return false
}

func (s Status) String() string { return string(s) }

// ParseStatus accepts the wire form of a status.
func ParseStatus(raw string) (Status, error) {
	s := Status(raw)
	if !s.IsValid() {
		return "", dErrors.New(dErrors.CodeBadRequest,
			"Invalid status: "+raw+". Must be one of: pending, in_progress, completed")
	}
	return s, nil
}

// Todo is a work item owned by one user.
//
// Invariants:
//   - Title is trimmed and 1..200 characters
//   - Description, when set, is at most 2000 characters
//   - ExpiresDate is not before StartsDate when both are set
//   - TagIDs holds no duplicates
type Todo struct {
	ID          id.TodoID  `json:"id"`
	UserID      id.UserID  `json:"user_id"`
	Title       string     `json:"title"`
	Description *string    `json:"description"`
	Status      Status     `json:"status"`
	StartsDate  *time.Time `json:"starts_date"`
	ExpiresDate *time.Time `json:"expires_date"`
	TagIDs      []id.TagID `json:"-"`
	Tags        []*Tag     `json:"tags"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// TodoFields are the caller-controlled attributes of a todo.
type TodoFields struct {
	Title       string
	Description *string
	Status      Status
	StartsDate  *time.Time
	ExpiresDate *time.Time
	TagIDs      []id.TagID
}

// NewTodo validates fields and builds a todo owned by userID.
// An empty status defaults to pending.
func NewTodo(todoID id.TodoID, userID id.UserID, fields TodoFields, now time.Time) (*Todo, error) {
	if userID.IsNil() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "todo requires an owner")
	}
	if fields.Status == "" {
		fields.Status = StatusPending
	}
	t := &Todo{
		ID:          todoID,
		UserID:      userID,
		Title:       strings.TrimSpace(fields.Title),
		Description: fields.Description,
		Status:      fields.Status,
		StartsDate:  fields.StartsDate,
		ExpiresDate: fields.ExpiresDate,
		TagIDs:      DedupeTagIDs(fields.TagIDs),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := t.Validate(); err != nil {
		return nil, err
	}
	return t, nil
}

// Validate checks every invariant. Call it after merging a partial update.
func (t *Todo) Validate() error {
	if err := ValidateTitle(t.Title); err != nil {
		return err
	}
	if err := ValidateDescription(t.Description); err != nil {
		return err
	}
	if !t.Status.IsValid() {
		return dErrors.New(dErrors.CodeInvariantViolation,
			"Invalid status: "+string(t.Status)+". Must be one of: pending, in_progress, completed")
	}
	return ValidateDates(t.StartsDate, t.ExpiresDate)
}

// HasTag reports whether tagID is attached.
func (t *Todo) HasTag(tagID id.TagID) bool {
	for _, existing := range t.TagIDs {
		if existing == tagID {
			return true
		}
	}
	return false
}

// DetachTag removes tagID if present.
func (t *Todo) DetachTag(tagID id.TagID) {
	kept := t.TagIDs[:0]
	for _, existing := range t.TagIDs {
		if existing != tagID {
			kept = append(kept, existing)
		}
	}
	t.TagIDs = kept
}

// ValidateTitle checks a trimmed title.
func ValidateTitle(title string) error {
	if title == "" {
		return dErrors.New(dErrors.CodeInvariantViolation, "title is required")
	}
	if utf8.RuneCountInString(title) > MaxTitleLength {
		return dErrors.New(dErrors.CodeInvariantViolation, "title must be 200 characters or less")
	}
	return nil
}

func ValidateDescription(description *string) error {
	if description != nil && utf8.RuneCountInString(*description) > MaxDescriptionLength {
		return dErrors.New(dErrors.CodeInvariantViolation, "description must be 2000 characters or less")
	}
	return nil
}

// ValidateDates allows equal dates; only an expiry strictly before the start is rejected.
func ValidateDates(starts, expires *time.Time) error {
	if starts != nil && expires != nil && expires.Before(*starts) {
		return dErrors.New(dErrors.CodeInvariantViolation, "expires_date must be after starts_date")
	}
	return nil
}

// DedupeTagIDs drops repeated IDs, keeping first-seen order.
func DedupeTagIDs(ids []id.TagID) []id.TagID {
	if ids == nil {
		return nil
	}
	seen := make(map[id.TagID]struct{}, len(ids))
	out := make([]id.TagID, 0, len(ids))
	for _, tagID := range ids {
		if _, dup := seen[tagID]; dup {
			continue
		}
		seen[tagID] = struct{}{}
		out = append(out, tagID)
	}
	return out
}

// Clone returns a deep copy so stores never share mutable state with callers.
func (t *Todo) Clone() *Todo {
	c := *t
	if t.Description != nil {
		d := *t.Description
		c.Description = &d
	}
	if t.StartsDate != nil {
		s := *t.StartsDate
		c.StartsDate = &s
	}
	if t.ExpiresDate != nil {
		e := *t.ExpiresDate
		c.ExpiresDate = &e
	}
	if t.TagIDs != nil {
		c.TagIDs = append([]id.TagID{}, t.TagIDs...)
	}
	c.Tags = nil
	return &c
}
