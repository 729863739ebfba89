// Package adapters exposes the auth service through the interfaces other
// layers depend on.
package adapters

import (
	"context"

	"taskboard/internal/auth/models"
	authmw "taskboard/pkg/platform/middleware/auth"
)

// Authenticator is the part of the auth service the bearer middleware needs.
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (*models.User, *models.Session, error)
}

// SessionAuthenticator adapts the auth service to authmw.SessionAuthenticator.
type SessionAuthenticator struct {
	auth Authenticator
}

func NewSessionAuthenticator(auth Authenticator) *SessionAuthenticator {
	return &SessionAuthenticator{auth: auth}
}

// AuthenticateToken resolves token to the owning user and session.
func (a *SessionAuthenticator) AuthenticateToken(ctx context.Context, token string) (*authmw.Principal, error) {
	user, session, err := a.auth.Authenticate(ctx, token)
	if err != nil {
		return nil, err
	}
	return &authmw.Principal{UserID: user.ID, SessionID: session.ID}, nil
}
