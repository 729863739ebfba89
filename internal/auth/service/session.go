package service

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"taskboard/internal/auth/models"
	"taskboard/internal/auth/store/session"
	id "taskboard/pkg/domain"
	dErrors "taskboard/pkg/domain-errors"
	"taskboard/pkg/platform/audit"
	"taskboard/pkg/platform/secrets"
	"taskboard/pkg/platform/sentinel"
	"taskboard/pkg/requestcontext"
)

const (
	msgInvalidToken     = "Invalid or expired session token"
	msgSessionExpired   = "Session has expired"
	msgSessionNotActive = "Session not found or already expired"
)

// Authenticate resolves a bearer token to its user and active session.
// An expired session is revoked on first use.
func (s *Service) Authenticate(ctx context.Context, token string) (user *models.User, sess *models.Session, err error) {
	if s.metrics != nil {
		defer s.metrics.ObserveAuthenticate(time.Now())
	}
	if token == "" {
		return nil, nil, dErrors.New(dErrors.CodeUnauthorized, msgInvalidToken)
	}

	sess, err = s.sessions.FindByTokenHash(ctx, secrets.HashToken(token))
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, nil, dErrors.New(dErrors.CodeUnauthorized, msgInvalidToken)
		}
		return nil, nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load session")
	}
	if !sess.IsActive() {
		return nil, nil, dErrors.New(dErrors.CodeUnauthorized, msgInvalidToken)
	}

	now := requestcontext.Now(ctx)
	if sess.IsExpired(now) {
		s.expireSession(ctx, sess, now)
		return nil, nil, dErrors.New(dErrors.CodeUnauthorized, msgSessionExpired)
	}

	user, err = s.users.FindByID(ctx, sess.UserID)
	if err != nil {
		return nil, nil, translateUserLookup(err, dErrors.CodeUnauthorized)
	}
	return user, sess, nil
}

func (s *Service) expireSession(ctx context.Context, sess *models.Session, now time.Time) {
	err := s.sessions.RevokeSessionIfActive(ctx, sess.ID, now)
	if err != nil {
		if !errors.Is(err, session.ErrSessionRevoked) && s.logger != nil {
			s.logger.ErrorContext(ctx, "failed to revoke expired session",
				"session_id", sess.ID,
				"error", err,
			)
		}
		return
	}
	s.logAudit(ctx, audit.EventSessionExpired,
		"user_id", sess.UserID,
		"session_id", sess.ID,
		"reason", "expired",
	)
	if s.metrics != nil {
		s.metrics.AddSessionsRevoked(1)
	}
}

// Signout revokes the session behind token.
func (s *Service) Signout(ctx context.Context, token string) (err error) {
	ctx, span := s.startSpan(ctx, "auth.Signout")
	defer func() { endSpan(span, err) }()

	if token == "" {
		return dErrors.New(dErrors.CodeUnauthorized, msgSessionNotActive)
	}
	sess, err := s.sessions.FindByTokenHash(ctx, secrets.HashToken(token))
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return dErrors.New(dErrors.CodeUnauthorized, msgSessionNotActive)
		}
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to load session")
	}

	err = s.sessions.RevokeSessionIfActive(ctx, sess.ID, requestcontext.Now(ctx))
	if err != nil {
		if errors.Is(err, session.ErrSessionRevoked) || errors.Is(err, sentinel.ErrNotFound) {
			return dErrors.New(dErrors.CodeUnauthorized, msgSessionNotActive)
		}
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to revoke session")
	}

	s.logAudit(ctx, audit.EventSessionRevoked,
		"user_id", sess.UserID,
		"session_id", sess.ID,
		"reason", "signout",
	)
	if s.metrics != nil {
		s.metrics.AddSessionsRevoked(1)
	}
	return nil
}

// ListSessions returns the caller's active, unexpired sessions, flagging the
// one making the request.
func (s *Service) ListSessions(ctx context.Context, userID id.UserID, currentSessionID id.SessionID) ([]models.SessionSummary, error) {
	ctx, span := s.startSpan(ctx, "auth.ListSessions", attribute.String("user_id", userID.String()))
	defer span.End()

	if userID.IsNil() {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "user ID required")
	}
	sessions, err := s.sessions.ListByUser(ctx, userID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list sessions")
	}

	now := requestcontext.Now(ctx)
	summaries := make([]models.SessionSummary, 0, len(sessions))
	for _, sess := range sessions {
		if !sess.IsActive() || sess.IsExpired(now) {
			continue
		}
		summaries = append(summaries, sess.Summarize(currentSessionID))
	}
	return summaries, nil
}
