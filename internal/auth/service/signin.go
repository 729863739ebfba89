package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"taskboard/internal/auth/device"
	"taskboard/internal/auth/metrics"
	"taskboard/internal/auth/models"
	id "taskboard/pkg/domain"
	dErrors "taskboard/pkg/domain-errors"
	"taskboard/pkg/platform/audit"
	"taskboard/pkg/platform/secrets"
	"taskboard/pkg/platform/sentinel"
	"taskboard/pkg/requestcontext"
)

const invalidCredentials = "Invalid email or password"

// SigninResult is returned once per sign-in. Token is the only copy of the
// bearer token; the store keeps its hash.
type SigninResult struct {
	User    *models.User
	Token   string
	Session *models.Session
}

// Signin verifies credentials and opens a session. Unknown email and wrong
// password produce the same error.
func (s *Service) Signin(ctx context.Context, email, password string) (result *SigninResult, err error) {
	ctx, span := s.startSpan(ctx, "auth.Signin")
	defer func() { endSpan(span, err) }()
	if s.metrics != nil {
		defer s.metrics.ObserveSignin(time.Now())
	}

	email = models.NormalizeEmail(email)
	user, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, s.signinFailed(ctx, email, id.UserID{}, "unknown_email")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to look up user")
	}
	if err := secrets.Verify(password, user.PasswordHash); err != nil {
		return nil, s.signinFailed(ctx, email, user.ID, "invalid_password")
	}

	token, err := secrets.Generate()
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to generate session token")
	}

	now := requestcontext.Now(ctx)
	session, err := models.NewSession(id.NewSessionID(), user.ID, secrets.HashToken(token), now, s.cfg.SessionTTL)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to build session")
	}
	session.UserAgent = requestcontext.UserAgent(ctx)
	session.ClientIP = requestcontext.ClientIP(ctx)
	session.DeviceDisplayName = device.ParseUserAgent(session.UserAgent)

	if err := s.sessions.Create(ctx, session); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to create session")
	}

	s.logAudit(ctx, audit.EventSessionCreated,
		"user_id", user.ID,
		"session_id", session.ID,
		"device", session.DeviceDisplayName,
	)
	if s.metrics != nil {
		s.metrics.IncrementSigninAttempt(metrics.ResultSuccess)
	}
	return &SigninResult{User: user, Token: token, Session: session}, nil
}

func (s *Service) signinFailed(ctx context.Context, email string, userID id.UserID, reason string) error {
	s.logAudit(ctx, audit.EventAuthFailed,
		"user_id", userID,
		"email", email,
		"reason", reason,
	)
	if s.metrics != nil {
		s.metrics.IncrementSigninAttempt(metrics.ResultFailure)
	}
	return dErrors.New(dErrors.CodeUnauthorized, invalidCredentials)
}

// translateUserLookup maps a missing user to code and anything else to internal.
func translateUserLookup(err error, code dErrors.Code) error {
	if errors.Is(err, sentinel.ErrNotFound) {
		if code == dErrors.CodeUnauthorized {
			return dErrors.New(code, "User not found")
		}
		return dErrors.New(code, "user not found")
	}
	return dErrors.Wrap(err, dErrors.CodeInternal, "failed to load user")
}

func trimmed(s string) string {
	return strings.TrimSpace(s)
}
