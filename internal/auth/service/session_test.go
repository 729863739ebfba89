package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"go.uber.org/mock/gomock"

	"taskboard/internal/auth/models"
	"taskboard/internal/auth/store/session"
	id "taskboard/pkg/domain"
	dErrors "taskboard/pkg/domain-errors"
	"taskboard/pkg/platform/audit"
	"taskboard/pkg/platform/secrets"
	"taskboard/pkg/platform/sentinel"
)

func (s *ServiceSuite) TestAuthenticate() {
	s.Run("empty token is rejected without lookups", func() {
		_, _, err := s.service.Authenticate(s.ctx(), "")
		s.True(dErrors.HasCode(err, dErrors.CodeUnauthorized))
		s.Equal("Invalid or expired session token", err.Error())
	})

	s.Run("unknown token", func() {
		s.mockSessionStore.EXPECT().FindByTokenHash(gomock.Any(), secrets.HashToken("unknown")).Return(nil, sentinel.ErrNotFound)

		_, _, err := s.service.Authenticate(s.ctx(), "unknown")
		s.True(dErrors.HasCode(err, dErrors.CodeUnauthorized))
		s.Equal("Invalid or expired session token", err.Error())
	})

	s.Run("revoked session", func() {
		sess := s.newSession(id.NewUserID(), "revoked-token")
		sess.ApplyRevocation(s.now)
		s.mockSessionStore.EXPECT().FindByTokenHash(gomock.Any(), sess.TokenHash).Return(sess, nil)

		_, _, err := s.service.Authenticate(s.ctx(), "revoked-token")
		s.True(dErrors.HasCode(err, dErrors.CodeUnauthorized))
	})

	s.Run("expired session is revoked on access", func() {
		sess := s.newSession(id.NewUserID(), "stale-token")
		sess.ExpiresAt = s.now.Add(-time.Second)
		s.mockSessionStore.EXPECT().FindByTokenHash(gomock.Any(), sess.TokenHash).Return(sess, nil)
		s.mockSessionStore.EXPECT().RevokeSessionIfActive(gomock.Any(), sess.ID, s.now).Return(nil)
		s.mockAuditPublisher.EXPECT().Emit(gomock.Any(), gomock.Any()).
			DoAndReturn(func(_ context.Context, e audit.Event) error {
				s.Equal(string(audit.EventSessionExpired), e.Action)
				s.Equal(sess.UserID, e.UserID)
				return nil
			})

		_, _, err := s.service.Authenticate(s.ctx(), "stale-token")
		s.True(dErrors.HasCode(err, dErrors.CodeUnauthorized))
		s.Equal("Session has expired", err.Error())
	})

	s.Run("owner missing", func() {
		sess := s.newSession(id.NewUserID(), "orphan-token")
		s.mockSessionStore.EXPECT().FindByTokenHash(gomock.Any(), sess.TokenHash).Return(sess, nil)
		s.mockUserStore.EXPECT().FindByID(gomock.Any(), sess.UserID).Return(nil, sentinel.ErrNotFound)

		_, _, err := s.service.Authenticate(s.ctx(), "orphan-token")
		s.True(dErrors.HasCode(err, dErrors.CodeUnauthorized))
		s.Equal("User not found", err.Error())
	})

	s.Run("active session resolves user", func() {
		user := s.newUser(testPassword)
		sess := s.newSession(user.ID, "good-token")
		s.mockSessionStore.EXPECT().FindByTokenHash(gomock.Any(), sess.TokenHash).Return(sess, nil)
		s.mockUserStore.EXPECT().FindByID(gomock.Any(), user.ID).Return(user, nil)

		gotUser, gotSession, err := s.service.Authenticate(s.ctx(), "good-token")
		s.Require().NoError(err)
		s.Equal(user.ID, gotUser.ID)
		s.Equal(sess.ID, gotSession.ID)
	})
}

func (s *ServiceSuite) TestSignout() {
	s.Run("revokes the token's session", func() {
		sess := s.newSession(id.NewUserID(), "bye-token")
		s.mockSessionStore.EXPECT().FindByTokenHash(gomock.Any(), sess.TokenHash).Return(sess, nil)
		s.mockSessionStore.EXPECT().RevokeSessionIfActive(gomock.Any(), sess.ID, s.now).Return(nil)
		s.mockAuditPublisher.EXPECT().Emit(gomock.Any(), gomock.Any()).Return(nil)

		s.Require().NoError(s.service.Signout(s.ctx(), "bye-token"))
		s.Equal(1.0, testutil.ToFloat64(s.metrics.SessionsRevoked))
	})

	s.Run("second signout is unauthorized", func() {
		sess := s.newSession(id.NewUserID(), "twice-token")
		s.mockSessionStore.EXPECT().FindByTokenHash(gomock.Any(), sess.TokenHash).Return(sess, nil)
		s.mockSessionStore.EXPECT().RevokeSessionIfActive(gomock.Any(), sess.ID, gomock.Any()).Return(session.ErrSessionRevoked)

		err := s.service.Signout(s.ctx(), "twice-token")
		s.True(dErrors.HasCode(err, dErrors.CodeUnauthorized))
		s.Equal("Session not found or already expired", err.Error())
	})

	s.Run("unknown token is unauthorized", func() {
		s.mockSessionStore.EXPECT().FindByTokenHash(gomock.Any(), gomock.Any()).Return(nil, sentinel.ErrNotFound)

		err := s.service.Signout(s.ctx(), "nope")
		s.True(dErrors.HasCode(err, dErrors.CodeUnauthorized))
	})
}

func (s *ServiceSuite) TestListSessions() {
	userID := id.NewUserID()
	current := s.newSession(userID, "current")
	other := s.newSession(userID, "other")
	revoked := s.newSession(userID, "revoked")
	revoked.ApplyRevocation(s.now)
	expired := s.newSession(userID, "expired")
	expired.ExpiresAt = s.now.Add(-time.Minute)

	s.mockSessionStore.EXPECT().ListByUser(gomock.Any(), userID).
		Return([]*models.Session{current, other, revoked, expired}, nil)

	summaries, err := s.service.ListSessions(s.ctx(), userID, current.ID)
	s.Require().NoError(err)
	s.Require().Len(summaries, 2)
	s.Equal(current.ID, summaries[0].SessionID)
	s.True(summaries[0].IsCurrent)
	s.False(summaries[1].IsCurrent)
}

// TestSessionRevocation covers ownership, idempotency and error mapping.
func (s *ServiceSuite) TestSessionRevocation() {
	ctx := s.ctx()

	s.Run("invalid user returns unauthorized", func() {
		err := s.service.RevokeSession(ctx, id.UserID(uuid.Nil), id.SessionID(uuid.New()))
		s.True(dErrors.HasCode(err, dErrors.CodeUnauthorized))
	})

	s.Run("missing session id returns bad request", func() {
		err := s.service.RevokeSession(ctx, id.UserID(uuid.New()), id.SessionID(uuid.Nil))
		s.True(dErrors.HasCode(err, dErrors.CodeBadRequest))
	})

	s.Run("session not found returns not found", func() {
		sessionID := id.SessionID(uuid.New())
		s.mockSessionStore.EXPECT().Execute(gomock.Any(), sessionID, gomock.Any(), gomock.Any()).
			Return(nil, sentinel.ErrNotFound)

		err := s.service.RevokeSession(ctx, id.UserID(uuid.New()), sessionID)
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})

	s.Run("session belonging to different user returns forbidden", func() {
		sess := s.newSession(id.NewUserID(), "someone-else")
		s.expectExecute(sess)
		s.mockAuditPublisher.EXPECT().Emit(gomock.Any(), gomock.Any()).Return(nil)

		err := s.service.RevokeSession(ctx, id.NewUserID(), sess.ID)
		s.True(dErrors.HasCode(err, dErrors.CodeForbidden))
		s.Equal(models.SessionStatusActive, sess.Status)
	})

	s.Run("owner revokes active session", func() {
		sess := s.newSession(id.NewUserID(), "mine")
		s.expectExecute(sess)
		s.mockAuditPublisher.EXPECT().Emit(gomock.Any(), gomock.Any()).Return(nil)

		s.Require().NoError(s.service.RevokeSession(ctx, sess.UserID, sess.ID))
		s.Equal(models.SessionStatusRevoked, sess.Status)
		s.Equal(s.now, *sess.RevokedAt)
	})

	s.Run("already revoked session is a silent success", func() {
		sess := s.newSession(id.NewUserID(), "done")
		revokedAt := s.now.Add(-time.Hour)
		sess.ApplyRevocation(revokedAt)
		s.expectExecute(sess)

		s.Require().NoError(s.service.RevokeSession(ctx, sess.UserID, sess.ID))
		s.Equal(revokedAt, *sess.RevokedAt)
	})
}

// expectExecute runs the service's callbacks against sess in place.
func (s *ServiceSuite) expectExecute(sess *models.Session) {
	s.mockSessionStore.EXPECT().Execute(gomock.Any(), sess.ID, gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, _ id.SessionID, validate func(*models.Session) error, mutate func(*models.Session)) (*models.Session, error) {
			if err := validate(sess); err != nil {
				return nil, err
			}
			mutate(sess)
			return sess, nil
		})
}

func (s *ServiceSuite) TestSweepExpired() {
	s.mockSessionStore.EXPECT().RevokeExpired(gomock.Any(), s.now).Return(3, nil)
	s.mockAuditPublisher.EXPECT().Emit(gomock.Any(), gomock.Any()).Return(nil)

	count, err := s.service.SweepExpired(s.ctx())
	s.Require().NoError(err)
	s.Equal(3, count)
	s.Equal(3.0, testutil.ToFloat64(s.metrics.SessionsSwept))
}

func (s *ServiceSuite) TestCurrentUser() {
	user := s.newUser(testPassword)
	s.mockUserStore.EXPECT().FindByID(gomock.Any(), user.ID).Return(user, nil)
	s.mockUserStore.EXPECT().FindByID(gomock.Any(), gomock.Any()).Return(nil, sentinel.ErrNotFound)

	got, err := s.service.CurrentUser(s.ctx(), user.ID)
	s.Require().NoError(err)
	s.Equal(user.Email, got.Email)

	_, err = s.service.CurrentUser(s.ctx(), id.NewUserID())
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
}
