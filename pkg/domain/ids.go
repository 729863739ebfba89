package domain

import (
	"strings"

	"github.com/google/uuid"

	dErrors "taskboard/pkg/domain-errors"
)

// Typed identifiers. Each wraps a UUID so the compiler rejects passing a
// TagID where a TodoID is expected.
type (
	UserID    uuid.UUID
	SessionID uuid.UUID
	TodoID    uuid.UUID
	TagID     uuid.UUID
)

// maxIDLength bounds input before it reaches uuid.Parse.
const maxIDLength = 64

func parseUUID(kind, s string) (uuid.UUID, error) {
	if len(s) > maxIDLength {
		return uuid.Nil, dErrors.New(dErrors.CodeBadRequest, kind+" is too long")
	}
	s = strings.TrimSpace(s)
	if s == "" {
		return uuid.Nil, dErrors.New(dErrors.CodeBadRequest, kind+" is required")
	}
	u, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, dErrors.Wrap(err, dErrors.CodeBadRequest, "invalid "+kind)
	}
	if u == uuid.Nil {
		return uuid.Nil, dErrors.New(dErrors.CodeBadRequest, kind+" cannot be nil")
	}
	return u, nil
}

func ParseUserID(s string) (UserID, error) {
	u, err := parseUUID("user id", s)
	return UserID(u), err
}

func ParseSessionID(s string) (SessionID, error) {
	u, err := parseUUID("session id", s)
	return SessionID(u), err
}

func ParseTodoID(s string) (TodoID, error) {
	u, err := parseUUID("todo id", s)
	return TodoID(u), err
}

func ParseTagID(s string) (TagID, error) {
	u, err := parseUUID("tag id", s)
	return TagID(u), err
}

func NewUserID() UserID       { return UserID(uuid.New()) }
func NewSessionID() SessionID { return SessionID(uuid.New()) }
func NewTodoID() TodoID       { return TodoID(uuid.New()) }
func NewTagID() TagID         { return TagID(uuid.New()) }

func (id UserID) String() string    { return uuid.UUID(id).String() }
func (id SessionID) String() string { return uuid.UUID(id).String() }
func (id TodoID) String() string    { return uuid.UUID(id).String() }
func (id TagID) String() string     { return uuid.UUID(id).String() }

func (id UserID) IsNil() bool    { return uuid.UUID(id) == uuid.Nil }
func (id SessionID) IsNil() bool { return uuid.UUID(id) == uuid.Nil }
func (id TodoID) IsNil() bool    { return uuid.UUID(id) == uuid.Nil }
func (id TagID) IsNil() bool     { return uuid.UUID(id) == uuid.Nil }

// Text marshaling keeps JSON payloads in canonical UUID form.

func (id UserID) MarshalText() ([]byte, error)    { return uuid.UUID(id).MarshalText() }
func (id SessionID) MarshalText() ([]byte, error) { return uuid.UUID(id).MarshalText() }
func (id TodoID) MarshalText() ([]byte, error)    { return uuid.UUID(id).MarshalText() }
func (id TagID) MarshalText() ([]byte, error)     { return uuid.UUID(id).MarshalText() }

func (id *UserID) UnmarshalText(b []byte) error {
	parsed, err := ParseUserID(string(b))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}

func (id *SessionID) UnmarshalText(b []byte) error {
	parsed, err := ParseSessionID(string(b))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}

func (id *TodoID) UnmarshalText(b []byte) error {
	parsed, err := ParseTodoID(string(b))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}

func (id *TagID) UnmarshalText(b []byte) error {
	parsed, err := ParseTagID(string(b))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}

// TagIDStrings renders ids for SQL array parameters and log attributes.
func TagIDStrings(ids []TagID) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = id.String()
	}
	return out
}
