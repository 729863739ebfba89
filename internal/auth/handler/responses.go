package handler

import (
	"time"

	"taskboard/internal/auth/models"
	"taskboard/internal/auth/service"
	id "taskboard/pkg/domain"
)

// UserResponse is the public view of an account. It never carries password data.
type UserResponse struct {
	ID        id.UserID `json:"id"`
	Email     string    `json:"email"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// SigninResponse is returned by POST /api/auth/signin.
type SigninResponse struct {
	User      UserResponse `json:"user"`
	Token     string       `json:"token"`
	TokenType string       `json:"token_type"`
	ExpiresAt time.Time    `json:"expires_at"`
}

// SessionsResponse is returned by GET /api/auth/sessions.
type SessionsResponse struct {
	Sessions []models.SessionSummary `json:"sessions"`
}

func toUserResponse(u *models.User) UserResponse {
	return UserResponse{
		ID:        u.ID,
		Email:     u.Email,
		Name:      u.Name,
		CreatedAt: u.CreatedAt.UTC(),
		UpdatedAt: u.UpdatedAt.UTC(),
	}
}

func toSigninResponse(result *service.SigninResult) SigninResponse {
	return SigninResponse{
		User:      toUserResponse(result.User),
		Token:     result.Token,
		TokenType: "Bearer",
		ExpiresAt: result.Session.ExpiresAt.UTC(),
	}
}
