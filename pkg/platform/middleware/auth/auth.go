// Package auth provides the bearer-session middleware guarding authenticated routes.
package auth

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	id "taskboard/pkg/domain"
	dErrors "taskboard/pkg/domain-errors"
	"taskboard/pkg/platform/httputil"
	"taskboard/pkg/requestcontext"
)

const bearerPrefix = "Bearer "

// Principal is the identity resolved from a session token.
type Principal struct {
	UserID    id.UserID
	SessionID id.SessionID
}

// SessionAuthenticator resolves an opaque bearer token to an active session.
// Implementations return coded domain errors (unauthorized for bad tokens).
type SessionAuthenticator interface {
	AuthenticateToken(ctx context.Context, token string) (*Principal, error)
}

// BearerToken extracts the token from an "Authorization: Bearer <token>" header.
func BearerToken(r *http.Request) (string, bool) {
	after, ok := strings.CutPrefix(r.Header.Get("Authorization"), bearerPrefix)
	if !ok {
		return "", false
	}
	token := strings.TrimSpace(after)
	return token, token != ""
}

// RequireSession rejects requests without a valid session token and injects
// the user and session IDs into the request context.
func RequireSession(authenticator SessionAuthenticator, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			requestID := requestcontext.RequestID(ctx)

			token, ok := BearerToken(r)
			if !ok {
				logger.WarnContext(ctx, "unauthorized access - missing token",
					"request_id", requestID,
				)
				httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "Missing or invalid Authorization header"))
				return
			}

			principal, err := authenticator.AuthenticateToken(ctx, token)
			if err != nil {
				if dErrors.HasCode(err, dErrors.CodeUnauthorized) {
					logger.WarnContext(ctx, "unauthorized access - invalid session",
						"request_id", requestID,
						"error", err,
					)
				} else {
					logger.ErrorContext(ctx, "failed to authenticate session",
						"request_id", requestID,
						"error", err,
					)
				}
				httputil.WriteError(w, err)
				return
			}

			ctx = requestcontext.WithUserID(ctx, principal.UserID)
			ctx = requestcontext.WithSessionID(ctx, principal.SessionID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
