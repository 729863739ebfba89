package service

import (
	"context"
	"errors"
	"time"

	"taskboard/internal/auth/models"
	id "taskboard/pkg/domain"
	dErrors "taskboard/pkg/domain-errors"
	"taskboard/pkg/platform/audit"
	"taskboard/pkg/platform/secrets"
	"taskboard/pkg/platform/sentinel"
	"taskboard/pkg/requestcontext"
)

// SignupCommand carries the fields of a new account.
type SignupCommand struct {
	Email    string
	Name     string
	Password string
}

// Signup registers a user. A taken email is a bad request rather than a
// conflict so clients can show it next to the form.
func (s *Service) Signup(ctx context.Context, cmd SignupCommand) (user *models.User, err error) {
	ctx, span := s.startSpan(ctx, "auth.Signup")
	defer func() { endSpan(span, err) }()
	if s.metrics != nil {
		defer s.metrics.ObserveSignup(time.Now())
	}

	email := models.NormalizeEmail(cmd.Email)
	if err := models.ValidateEmail(email); err != nil {
		return nil, toValidation(err)
	}
	if err := models.ValidateName(trimmed(cmd.Name)); err != nil {
		return nil, toValidation(err)
	}
	if err := models.ValidatePassword(cmd.Password); err != nil {
		return nil, toValidation(err)
	}

	if _, err := s.users.FindByEmail(ctx, email); err == nil {
		return nil, duplicateEmail(email)
	} else if !errors.Is(err, sentinel.ErrNotFound) {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to look up user")
	}

	hash, err := secrets.Hash(cmd.Password, s.cfg.BcryptCost)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to hash password")
	}

	user, err = models.NewUser(id.NewUserID(), email, cmd.Name, hash, requestcontext.Now(ctx))
	if err != nil {
		return nil, toValidation(err)
	}

	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, sentinel.ErrAlreadyUsed) {
			return nil, duplicateEmail(email)
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to create user")
	}

	s.logAudit(ctx, audit.EventUserCreated,
		"user_id", user.ID,
		"email", user.Email,
	)
	if s.metrics != nil {
		s.metrics.IncrementUsersCreated()
	}
	return user, nil
}

func duplicateEmail(email string) error {
	return dErrors.New(dErrors.CodeBadRequest, "user with email "+email+" already exists")
}

// toValidation converts model invariant violations into validation errors
// for the API response.
func toValidation(err error) error {
	if dErrors.HasCode(err, dErrors.CodeInvariantViolation) {
		return dErrors.New(dErrors.CodeValidation, err.Error())
	}
	return err
}
