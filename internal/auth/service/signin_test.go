package service

import (
	"github.com/prometheus/client_golang/prometheus/testutil"
	"go.uber.org/mock/gomock"

	"taskboard/internal/auth/metrics"
	"taskboard/internal/auth/models"
	dErrors "taskboard/pkg/domain-errors"
	"taskboard/pkg/platform/audit"
	"taskboard/pkg/platform/secrets"
	"taskboard/pkg/platform/sentinel"
)

func (s *ServiceSuite) TestSignin() {
	s.Run("opens a session bound to the request metadata", func() {
		user := s.newUser(testPassword)
		var created *models.Session
		s.mockUserStore.EXPECT().FindByEmail(gomock.Any(), "jane@example.com").Return(user, nil)
		s.mockSessionStore.EXPECT().Create(gomock.Any(), gomock.Any()).
			DoAndReturn(func(_ any, sess *models.Session) error {
				created = sess
				return nil
			})
		s.mockAuditPublisher.EXPECT().Emit(gomock.Any(), gomock.Any()).Return(nil)

		result, err := s.service.Signin(s.ctx(), " JANE@example.com", testPassword)
		s.Require().NoError(err)
		s.Require().NotNil(created)

		s.Equal(user.ID, result.User.ID)
		s.NotEmpty(result.Token)
		s.Equal(secrets.HashToken(result.Token), created.TokenHash)
		s.NotEqual(result.Token, created.TokenHash)
		s.Equal(s.now.Add(s.service.cfg.SessionTTL), created.ExpiresAt)
		s.Equal("203.0.113.7", created.ClientIP)
		s.Contains(created.DeviceDisplayName, "Firefox")
		s.Equal(models.SessionStatusActive, created.Status)
		s.Equal(1.0, testutil.ToFloat64(s.metrics.SigninAttempts.WithLabelValues(metrics.ResultSuccess)))
	})

	s.Run("unknown email and wrong password share one message", func() {
		user := s.newUser(testPassword)
		s.mockUserStore.EXPECT().FindByEmail(gomock.Any(), "ghost@example.com").Return(nil, sentinel.ErrNotFound)
		s.mockUserStore.EXPECT().FindByEmail(gomock.Any(), user.Email).Return(user, nil)
		s.mockAuditPublisher.EXPECT().Emit(gomock.Any(), gomock.Any()).
			DoAndReturn(func(_ any, e audit.Event) error {
				s.Equal(string(audit.EventAuthFailed), e.Action)
				s.Equal(audit.CategorySecurity, audit.AuditEvent(e.Action).Category())
				return nil
			}).Times(2)

		_, errUnknown := s.service.Signin(s.ctx(), "ghost@example.com", testPassword)
		_, errWrong := s.service.Signin(s.ctx(), user.Email, "Wr0ng!password")

		s.True(dErrors.HasCode(errUnknown, dErrors.CodeUnauthorized))
		s.True(dErrors.HasCode(errWrong, dErrors.CodeUnauthorized))
		s.Equal("Invalid email or password", errUnknown.Error())
		s.Equal(errUnknown.Error(), errWrong.Error())
		s.Equal(2.0, testutil.ToFloat64(s.metrics.SigninAttempts.WithLabelValues(metrics.ResultFailure)))
	})

	s.Run("session store failure is internal", func() {
		user := s.newUser(testPassword)
		s.mockUserStore.EXPECT().FindByEmail(gomock.Any(), user.Email).Return(user, nil)
		s.mockSessionStore.EXPECT().Create(gomock.Any(), gomock.Any()).Return(sentinel.ErrUnavailable)

		_, err := s.service.Signin(s.ctx(), user.Email, testPassword)
		s.True(dErrors.HasCode(err, dErrors.CodeInternal))
	})
}
