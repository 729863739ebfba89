package testutil

import (
	"net/http"

	id "taskboard/pkg/domain"
	"taskboard/pkg/requestcontext"
)

// WithUserID simulates the session middleware for an authenticated user.
func WithUserID(req *http.Request, userID id.UserID) *http.Request {
	return req.WithContext(requestcontext.WithUserID(req.Context(), userID))
}

// WithAuth adds both user ID and session ID to the request context.
func WithAuth(req *http.Request, userID id.UserID, sessionID id.SessionID) *http.Request {
	ctx := requestcontext.WithUserID(req.Context(), userID)
	ctx = requestcontext.WithSessionID(ctx, sessionID)
	return req.WithContext(ctx)
}
