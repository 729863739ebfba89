package models

import (
	"net/mail"
	"strings"
	"time"
	"unicode/utf8"

	id "taskboard/pkg/domain"
	dErrors "taskboard/pkg/domain-errors"
)

const (
	MaxEmailLength    = 255
	MaxNameLength     = 255
	MinPasswordLength = 8
	// MaxPasswordLength is bcrypt's input limit; longer secrets are silently
	// truncated by the algorithm so they are rejected instead.
	MaxPasswordLength = 72

	passwordSpecials = `!@#$%^&*(),.?":{}|<>`
)

// User is an account that owns todos, tags and sessions.
//
// Invariants:
//   - Email is trimmed, lower-cased and a valid address of at most 255 characters
//   - Name is non-empty and at most 255 characters
//   - PasswordHash is a bcrypt hash and is never serialized
type User struct {
	ID           id.UserID `json:"id"`
	Email        string    `json:"email"`
	Name         string    `json:"name"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// NewUser validates the profile fields and builds a user.
func NewUser(userID id.UserID, email, name, passwordHash string, now time.Time) (*User, error) {
	email = NormalizeEmail(email)
	if err := ValidateEmail(email); err != nil {
		return nil, err
	}
	name = strings.TrimSpace(name)
	if err := ValidateName(name); err != nil {
		return nil, err
	}
	if passwordHash == "" {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "password hash is required")
	}
	return &User{
		ID:           userID,
		Email:        email,
		Name:         name,
		PasswordHash: passwordHash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}, nil
}

// NormalizeEmail trims and lower-cases an address for storage and lookup.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// ValidateEmail checks a normalized address.
func ValidateEmail(email string) error {
	if email == "" {
		return dErrors.New(dErrors.CodeInvariantViolation, "email is required")
	}
	if len(email) > MaxEmailLength {
		return dErrors.New(dErrors.CodeInvariantViolation, "email must be 255 characters or less")
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email || !strings.Contains(email[strings.LastIndex(email, "@")+1:], ".") {
		return dErrors.New(dErrors.CodeInvariantViolation, "email must be a valid email address")
	}
	return nil
}

// ValidateName checks a trimmed display name.
func ValidateName(name string) error {
	if name == "" {
		return dErrors.New(dErrors.CodeInvariantViolation, "name is required")
	}
	if utf8.RuneCountInString(name) > MaxNameLength {
		return dErrors.New(dErrors.CodeInvariantViolation, "name must be 255 characters or less")
	}
	return nil
}

// ValidatePassword enforces the sign-up password policy. Letter and digit
// classes are ASCII only.
func ValidatePassword(password string) error {
	if len(password) < MinPasswordLength {
		return dErrors.New(dErrors.CodeInvariantViolation, "password must be at least 8 characters long")
	}
	if len(password) > MaxPasswordLength {
		return dErrors.New(dErrors.CodeInvariantViolation, "password must be at most 72 bytes long")
	}

	var upper, lower, digit, special bool
	for _, r := range password {
		switch {
		case r >= 'A' && r <= 'Z':
			upper = true
		case r >= 'a' && r <= 'z':
			lower = true
		case r >= '0' && r <= '9':
			digit = true
		case strings.ContainsRune(passwordSpecials, r):
			special = true
		}
	}
	switch {
	case !upper:
		return dErrors.New(dErrors.CodeInvariantViolation, "password must contain at least one uppercase letter")
	case !lower:
		return dErrors.New(dErrors.CodeInvariantViolation, "password must contain at least one lowercase letter")
	case !digit:
		return dErrors.New(dErrors.CodeInvariantViolation, "password must contain at least one digit")
	case !special:
		return dErrors.New(dErrors.CodeInvariantViolation, "password must contain at least one special character")
	}
	return nil
}
