package models

import (
	"time"

	id "taskboard/pkg/domain"
	dErrors "taskboard/pkg/domain-errors"
)

// SessionStatus is the lifecycle state of a session.
type SessionStatus string

const (
	SessionStatusActive  SessionStatus = "active"
	SessionStatusRevoked SessionStatus = "revoked"
)

// IsValid reports whether s is a known status.
func (s SessionStatus) IsValid() bool {
	return s == SessionStatusActive || s == SessionStatusRevoked
}

// Session is a signed-in device. The bearer token itself is never stored;
// TokenHash holds its SHA-256 hex digest.
//
// Invariants:
//   - Status transitions active -> revoked only
//   - RevokedAt is set exactly when Status is revoked
//   - ExpiresAt is after CreatedAt
type Session struct {
	ID                id.SessionID  `json:"id"`
	UserID            id.UserID     `json:"user_id"`
	TokenHash         string        `json:"token_hash"`
	Status            SessionStatus `json:"status"`
	UserAgent         string        `json:"user_agent,omitempty"`
	ClientIP          string        `json:"client_ip,omitempty"`
	DeviceDisplayName string        `json:"device_display_name,omitempty"`
	CreatedAt         time.Time     `json:"created_at"`
	ExpiresAt         time.Time     `json:"expires_at"`
	RevokedAt         *time.Time    `json:"revoked_at,omitempty"`
}

// NewSession builds an active session for userID that expires after ttl.
func NewSession(sessionID id.SessionID, userID id.UserID, tokenHash string, now time.Time, ttl time.Duration) (*Session, error) {
	if userID.IsNil() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "session requires a user")
	}
	if tokenHash == "" {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "session requires a token hash")
	}
	if ttl <= 0 {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "session ttl must be positive")
	}
	return &Session{
		ID:        sessionID,
		UserID:    userID,
		TokenHash: tokenHash,
		Status:    SessionStatusActive,
		CreatedAt: now,
		ExpiresAt: now.Add(ttl),
	}, nil
}

// IsActive reports whether the session has not been revoked.
func (s *Session) IsActive() bool {
	return s.Status == SessionStatusActive
}

// IsExpired reports whether now is past the session expiry.
func (s *Session) IsExpired(now time.Time) bool {
	return now.After(s.ExpiresAt)
}

// CanRevoke checks whether the session may transition to revoked.
// Use with ApplyRevocation in Execute callbacks.
func (s *Session) CanRevoke() error {
	if s.Status == SessionStatusRevoked {
		return dErrors.New(dErrors.CodeInvariantViolation, "session already revoked")
	}
	return nil
}

// ApplyRevocation marks the session revoked at now.
// Call CanRevoke first to validate the transition.
func (s *Session) ApplyRevocation(now time.Time) {
	s.Status = SessionStatusRevoked
	revokedAt := now
	s.RevokedAt = &revokedAt
}

// SessionSummary is the caller-facing view of a session.
type SessionSummary struct {
	SessionID id.SessionID `json:"session_id"`
	Device    string       `json:"device"`
	IPAddress string       `json:"ip_address,omitempty"`
	CreatedAt time.Time    `json:"created_at"`
	ExpiresAt time.Time    `json:"expires_at"`
	IsCurrent bool         `json:"is_current"`
}

// Summarize converts the session for listing, flagging the caller's own session.
func (s *Session) Summarize(current id.SessionID) SessionSummary {
	return SessionSummary{
		SessionID: s.ID,
		Device:    s.DeviceDisplayName,
		IPAddress: s.ClientIP,
		CreatedAt: s.CreatedAt,
		ExpiresAt: s.ExpiresAt,
		IsCurrent: s.ID == current,
	}
}
