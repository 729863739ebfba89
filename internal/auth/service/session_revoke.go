package service

import (
	"context"
	"errors"

	"taskboard/internal/auth/models"
	id "taskboard/pkg/domain"
	dErrors "taskboard/pkg/domain-errors"
	"taskboard/pkg/platform/audit"
	"taskboard/pkg/platform/sentinel"
	"taskboard/pkg/requestcontext"
)

// RevokeSession revokes one of the caller's sessions.
// Uses the Execute callback pattern to check ownership atomically under lock.
// Revoking an already revoked session succeeds without side effects.
func (s *Service) RevokeSession(ctx context.Context, userID id.UserID, sessionID id.SessionID) (err error) {
	ctx, span := s.startSpan(ctx, "auth.RevokeSession")
	defer func() { endSpan(span, err) }()

	if userID.IsNil() {
		return dErrors.New(dErrors.CodeUnauthorized, "user ID required")
	}
	if sessionID.IsNil() {
		return dErrors.New(dErrors.CodeBadRequest, "session ID required")
	}

	now := requestcontext.Now(ctx)
	var alreadyRevoked bool

	_, err = s.sessions.Execute(ctx, sessionID,
		func(sess *models.Session) error {
			if sess.UserID != userID {
				s.logAudit(ctx, audit.EventAccessDenied,
					"user_id", userID,
					"session_id", sess.ID,
					"reason", "session_owner_mismatch",
				)
				return dErrors.New(dErrors.CodeForbidden, "You don't have permission to revoke this session")
			}
			if sess.CanRevoke() != nil {
				alreadyRevoked = true
			}
			return nil
		},
		func(sess *models.Session) {
			if !alreadyRevoked {
				sess.ApplyRevocation(now)
			}
		},
	)
	if err != nil {
		if dErrors.HasCode(err, dErrors.CodeForbidden) {
			return err
		}
		if errors.Is(err, sentinel.ErrNotFound) {
			return dErrors.New(dErrors.CodeNotFound, "session not found")
		}
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to revoke session")
	}

	if alreadyRevoked {
		return nil
	}

	s.logAudit(ctx, audit.EventSessionRevoked,
		"user_id", userID,
		"session_id", sessionID,
		"reason", "user_initiated",
	)
	if s.metrics != nil {
		s.metrics.AddSessionsRevoked(1)
	}
	return nil
}
