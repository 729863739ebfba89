package service

import (
	"errors"
	"strings"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"go.uber.org/mock/gomock"

	"taskboard/internal/auth/models"
	dErrors "taskboard/pkg/domain-errors"
	"taskboard/pkg/platform/audit"
	"taskboard/pkg/platform/secrets"
	"taskboard/pkg/platform/sentinel"
)

func (s *ServiceSuite) TestSignup() {
	s.Run("creates user with normalized email and bcrypt hash", func() {
		s.mockUserStore.EXPECT().FindByEmail(gomock.Any(), "new.user@example.com").Return(nil, sentinel.ErrNotFound)
		s.mockUserStore.EXPECT().Create(gomock.Any(), gomock.Any()).
			DoAndReturn(func(_ any, u *models.User) error {
				s.Equal("new.user@example.com", u.Email)
				s.Equal("New User", u.Name)
				s.NoError(secrets.Verify(testPassword, u.PasswordHash))
				return nil
			})
		s.mockAuditPublisher.EXPECT().Emit(gomock.Any(), gomock.Any()).
			DoAndReturn(func(_ any, e audit.Event) error {
				s.Equal(string(audit.EventUserCreated), e.Action)
				s.Equal("new.user@example.com", e.Subject)
				s.Equal("req-123", e.RequestID)
				return nil
			})

		user, err := s.service.Signup(s.ctx(), SignupCommand{
			Email:    "  New.User@Example.com ",
			Name:     " New User ",
			Password: testPassword,
		})
		s.Require().NoError(err)
		s.Equal("new.user@example.com", user.Email)
		s.Equal(s.now, user.CreatedAt)
		s.Equal(1.0, testutil.ToFloat64(s.metrics.UsersCreated))
		s.Contains(s.logs.String(), `"log_type":"audit"`)
	})

	s.Run("duplicate email is a bad request", func() {
		existing := s.newUser(testPassword)
		s.mockUserStore.EXPECT().FindByEmail(gomock.Any(), existing.Email).Return(existing, nil)

		_, err := s.service.Signup(s.ctx(), SignupCommand{Email: existing.Email, Name: "Jane", Password: testPassword})
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeBadRequest))
		s.Equal("user with email jane@example.com already exists", err.Error())
	})

	s.Run("losing a create race is reported as duplicate", func() {
		s.mockUserStore.EXPECT().FindByEmail(gomock.Any(), "race@example.com").Return(nil, sentinel.ErrNotFound)
		s.mockUserStore.EXPECT().Create(gomock.Any(), gomock.Any()).Return(sentinel.ErrAlreadyUsed)

		_, err := s.service.Signup(s.ctx(), SignupCommand{Email: "race@example.com", Name: "R", Password: testPassword})
		s.True(dErrors.HasCode(err, dErrors.CodeBadRequest))
	})

	s.Run("weak password is a validation error without touching the store", func() {
		_, err := s.service.Signup(s.ctx(), SignupCommand{Email: "a@example.com", Name: "A", Password: "weak"})
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})

	s.Run("invalid email and name are validation errors", func() {
		_, err := s.service.Signup(s.ctx(), SignupCommand{Email: "nope", Name: "A", Password: testPassword})
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))

		_, err = s.service.Signup(s.ctx(), SignupCommand{Email: "a@example.com", Name: strings.Repeat("n", 256), Password: testPassword})
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})

	s.Run("store failure is internal", func() {
		s.mockUserStore.EXPECT().FindByEmail(gomock.Any(), gomock.Any()).Return(nil, errors.New("db down"))

		_, err := s.service.Signup(s.ctx(), SignupCommand{Email: "a@example.com", Name: "A", Password: testPassword})
		s.True(dErrors.HasCode(err, dErrors.CodeInternal))
	})
}
