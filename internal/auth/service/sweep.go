package service

import (
	"context"

	dErrors "taskboard/pkg/domain-errors"
	"taskboard/pkg/platform/audit"
	"taskboard/pkg/requestcontext"
)

// SweepExpired revokes every active session past its expiry and returns the
// number revoked. It runs from the sweep-sessions command, not in the server.
func (s *Service) SweepExpired(ctx context.Context) (count int, err error) {
	ctx, span := s.startSpan(ctx, "auth.SweepExpired")
	defer func() { endSpan(span, err) }()

	count, err = s.sessions.RevokeExpired(ctx, requestcontext.Now(ctx))
	if err != nil {
		return count, dErrors.Wrap(err, dErrors.CodeInternal, "failed to sweep expired sessions")
	}

	s.logAudit(ctx, audit.EventSessionsSwept, "count", count)
	if s.metrics != nil {
		s.metrics.AddSessionsSwept(count)
		s.metrics.AddSessionsRevoked(count)
	}
	return count, nil
}
