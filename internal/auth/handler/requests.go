package handler

import (
	"strings"

	"taskboard/internal/auth/models"
	dErrors "taskboard/pkg/domain-errors"
)

// SignupRequest is the HTTP request body for POST /api/auth/signup.
type SignupRequest struct {
	Email    string `json:"email"`
	Name     string `json:"name"`
	Password string `json:"password"`
}

// Validate normalizes and checks the sign-up fields.
// Implements the Validatable interface for httputil.DecodeAndPrepare.
func (r *SignupRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}

	// Size validation (fail fast)
	if len(r.Email) > 2*models.MaxEmailLength || len(r.Name) > 2*models.MaxNameLength {
		return dErrors.New(dErrors.CodeValidation, "request fields are too long")
	}

	r.Email = models.NormalizeEmail(r.Email)
	r.Name = strings.TrimSpace(r.Name)
	if r.Email == "" {
		return dErrors.New(dErrors.CodeValidation, "email is required")
	}
	if r.Name == "" {
		return dErrors.New(dErrors.CodeValidation, "name is required")
	}
	if r.Password == "" {
		return dErrors.New(dErrors.CodeValidation, "password is required")
	}

	for _, check := range []error{
		models.ValidateEmail(r.Email),
		models.ValidateName(r.Name),
		models.ValidatePassword(r.Password),
	} {
		if check != nil {
			return dErrors.New(dErrors.CodeValidation, check.Error())
		}
	}
	return nil
}

// SigninRequest is the HTTP request body for POST /api/auth/signin.
type SigninRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (r *SigninRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}
	r.Email = models.NormalizeEmail(r.Email)
	if r.Email == "" {
		return dErrors.New(dErrors.CodeValidation, "email is required")
	}
	if r.Password == "" {
		return dErrors.New(dErrors.CodeValidation, "password is required")
	}
	return nil
}
