// Package sentinel defines the store-level errors that services translate into
// domain errors.
package sentinel

import "errors"

// Stores return these, optionally wrapped, to report facts about a resource:
//   - ErrNotFound: no row or key for the lookup
//   - ErrConflict: a write raced with another writer
//   - ErrExpired: the session is past its expiry
//   - ErrAlreadyUsed: a unique value (email, tag name, todo/tag link) is taken
//   - ErrInvalidState: the row exists but cannot make the requested transition
//   - ErrUnavailable: the backing database or cache could not be reached
//
// Input validation failures belong in pkg/domain-errors, not here.
var (
	ErrNotFound     = errors.New("not found")
	ErrConflict     = errors.New("conflict")
	ErrExpired      = errors.New("expired")
	ErrAlreadyUsed  = errors.New("already used")
	ErrInvalidState = errors.New("invalid state")
	ErrUnavailable  = errors.New("unavailable")
)
