package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"taskboard/internal/auth/models"
	"taskboard/internal/auth/service"
	id "taskboard/pkg/domain"
	dErrors "taskboard/pkg/domain-errors"
	"taskboard/pkg/platform/httputil"
	authmw "taskboard/pkg/platform/middleware/auth"
	"taskboard/pkg/requestcontext"
)

// Service defines the auth operations exposed over HTTP.
type Service interface {
	Signup(ctx context.Context, cmd service.SignupCommand) (*models.User, error)
	Signin(ctx context.Context, email, password string) (*service.SigninResult, error)
	Signout(ctx context.Context, token string) error
	CurrentUser(ctx context.Context, userID id.UserID) (*models.User, error)
	ListSessions(ctx context.Context, userID id.UserID, currentSessionID id.SessionID) ([]models.SessionSummary, error)
	RevokeSession(ctx context.Context, userID id.UserID, sessionID id.SessionID) error
}

// Middleware wraps a handler.
type Middleware = func(http.Handler) http.Handler

// Handler wires /api/auth endpoints to the auth service.
type Handler struct {
	service     Service
	logger      *slog.Logger
	requireAuth Middleware
	throttle    Middleware
}

// New constructs an auth handler. requireAuth guards the session endpoints;
// throttle, when non-nil, rate limits sign-up and sign-in.
func New(service Service, logger *slog.Logger, requireAuth, throttle Middleware) *Handler {
	return &Handler{
		service:     service,
		logger:      logger,
		requireAuth: requireAuth,
		throttle:    throttle,
	}
}

// Register mounts the auth endpoints on the router.
func (h *Handler) Register(r chi.Router) {
	r.Route("/api/auth", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			if h.throttle != nil {
				r.Use(h.throttle)
			}
			r.Post("/signup", h.HandleSignup)
			r.Post("/signin", h.HandleSignin)
		})
		r.Group(func(r chi.Router) {
			r.Use(h.requireAuth)
			r.Post("/signout", h.HandleSignout)
			r.Get("/me", h.HandleMe)
			r.Get("/sessions", h.HandleListSessions)
			r.Delete("/sessions/{id}", h.HandleRevokeSession)
		})
	})
}

// HandleSignup handles POST /api/auth/signup.
func (h *Handler) HandleSignup(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[SignupRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	user, err := h.service.Signup(ctx, service.SignupCommand{
		Email:    req.Email,
		Name:     req.Name,
		Password: req.Password,
	})
	if err != nil {
		h.fail(ctx, w, "signup failed", err)
		return
	}

	h.logger.InfoContext(ctx, "user signed up",
		"request_id", requestID,
		"user_id", user.ID,
	)
	httputil.WriteJSON(w, http.StatusCreated, toUserResponse(user))
}

// HandleSignin handles POST /api/auth/signin.
func (h *Handler) HandleSignin(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[SigninRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	result, err := h.service.Signin(ctx, req.Email, req.Password)
	if err != nil {
		h.fail(ctx, w, "signin failed", err)
		return
	}

	h.logger.InfoContext(ctx, "user signed in",
		"request_id", requestID,
		"user_id", result.User.ID,
		"session_id", result.Session.ID,
	)
	httputil.WriteJSON(w, http.StatusOK, toSigninResponse(result))
}

// HandleSignout handles POST /api/auth/signout.
func (h *Handler) HandleSignout(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	token, ok := authmw.BearerToken(r)
	if !ok {
		httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "Missing or invalid Authorization header"))
		return
	}
	if err := h.service.Signout(ctx, token); err != nil {
		h.fail(ctx, w, "signout failed", err)
		return
	}
	httputil.WriteMessage(w, http.StatusOK, "Successfully signed out")
}

// HandleMe handles GET /api/auth/me.
func (h *Handler) HandleMe(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	user, err := h.service.CurrentUser(ctx, requestcontext.UserID(ctx))
	if err != nil {
		h.fail(ctx, w, "failed to load current user", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toUserResponse(user))
}

// HandleListSessions handles GET /api/auth/sessions.
func (h *Handler) HandleListSessions(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	sessions, err := h.service.ListSessions(ctx, requestcontext.UserID(ctx), requestcontext.SessionID(ctx))
	if err != nil {
		h.fail(ctx, w, "failed to list sessions", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, SessionsResponse{Sessions: sessions})
}

// HandleRevokeSession handles DELETE /api/auth/sessions/{id}.
func (h *Handler) HandleRevokeSession(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	sessionID, err := id.ParseSessionID(chi.URLParam(r, "id"))
	if err != nil {
		h.fail(ctx, w, "invalid session id", err)
		return
	}
	if err := h.service.RevokeSession(ctx, requestcontext.UserID(ctx), sessionID); err != nil {
		h.fail(ctx, w, "failed to revoke session", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// fail logs err at a level matching its code and writes the error response.
func (h *Handler) fail(ctx context.Context, w http.ResponseWriter, msg string, err error) {
	args := []any{
		"request_id", requestcontext.RequestID(ctx),
		"error", err,
	}
	if userID := requestcontext.UserID(ctx); !userID.IsNil() {
		args = append(args, "user_id", userID)
	}
	if de, ok := dErrors.As(err); ok && de.Code != dErrors.CodeInternal {
		h.logger.WarnContext(ctx, msg, args...)
	} else {
		h.logger.ErrorContext(ctx, msg, args...)
	}
	httputil.WriteError(w, err)
}
