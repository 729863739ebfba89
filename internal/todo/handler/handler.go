package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"taskboard/internal/todo/models"
	"taskboard/internal/todo/service"
	id "taskboard/pkg/domain"
	dErrors "taskboard/pkg/domain-errors"
	"taskboard/pkg/platform/httputil"
	"taskboard/pkg/requestcontext"
)

// Service defines the todo and tag operations exposed over HTTP.
type Service interface {
	ListTodos(ctx context.Context, filter models.ListFilter) ([]*models.Todo, error)
	GetTodo(ctx context.Context, userID id.UserID, todoID id.TodoID) (*models.Todo, error)
	CreateTodo(ctx context.Context, userID id.UserID, cmd service.CreateTodoCommand) (*models.Todo, error)
	UpdateTodo(ctx context.Context, userID id.UserID, todoID id.TodoID, cmd service.UpdateTodoCommand) (*models.Todo, error)
	DeleteTodo(ctx context.Context, userID id.UserID, todoID id.TodoID) error

	CreateTag(ctx context.Context, userID id.UserID, cmd service.CreateTagCommand) (*models.Tag, error)
	ListTags(ctx context.Context, userID id.UserID) ([]*models.Tag, error)
	GetTag(ctx context.Context, userID id.UserID, tagID id.TagID) (*models.Tag, error)
	UpdateTag(ctx context.Context, userID id.UserID, tagID id.TagID, cmd service.UpdateTagCommand) (*models.Tag, error)
	DeleteTag(ctx context.Context, userID id.UserID, tagID id.TagID) error
}

// Middleware wraps a handler.
type Middleware = func(http.Handler) http.Handler

// Handler wires /api/todos and /api/tags to the todo service. Every route
// requires a session.
type Handler struct {
	service     Service
	logger      *slog.Logger
	requireAuth Middleware
}

func New(service Service, logger *slog.Logger, requireAuth Middleware) *Handler {
	return &Handler{
		service:     service,
		logger:      logger,
		requireAuth: requireAuth,
	}
}

// Register mounts the todo and tag endpoints on the router.
func (h *Handler) Register(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.requireAuth)

		r.Route("/api/todos", func(r chi.Router) {
			r.Post("/", h.HandleCreateTodo)
			r.Get("/", h.HandleListTodos)
			r.Get("/{id}", h.HandleGetTodo)
			r.Put("/{id}", h.HandleUpdateTodo)
			r.Patch("/{id}", h.HandleUpdateTodo)
			r.Delete("/{id}", h.HandleDeleteTodo)
		})
		r.Route("/api/tags", func(r chi.Router) {
			r.Post("/", h.HandleCreateTag)
			r.Get("/", h.HandleListTags)
			r.Get("/{id}", h.HandleGetTag)
			r.Put("/{id}", h.HandleUpdateTag)
			r.Patch("/{id}", h.HandleUpdateTag)
			r.Delete("/{id}", h.HandleDeleteTag)
		})
	})
}

// HandleCreateTodo handles POST /api/todos.
func (h *Handler) HandleCreateTodo(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	userID := requestcontext.UserID(ctx)

	req, ok := httputil.DecodeAndPrepare[CreateTodoRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	todo, err := h.service.CreateTodo(ctx, userID, req.toCommand())
	if err != nil {
		h.fail(ctx, w, "failed to create todo", err)
		return
	}

	h.logger.InfoContext(ctx, "todo created",
		"request_id", requestID,
		"user_id", userID,
		"todo_id", todo.ID,
	)
	httputil.WriteJSON(w, http.StatusCreated, toTodoResponse(todo))
}

// HandleListTodos handles GET /api/todos.
func (h *Handler) HandleListTodos(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	filter, err := parseListFilter(r, requestcontext.UserID(ctx))
	if err != nil {
		h.fail(ctx, w, "invalid todo filter", err)
		return
	}
	todos, err := h.service.ListTodos(ctx, filter)
	if err != nil {
		h.fail(ctx, w, "failed to list todos", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toTodoResponses(todos))
}

// HandleGetTodo handles GET /api/todos/{id}.
func (h *Handler) HandleGetTodo(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	todoID, err := id.ParseTodoID(chi.URLParam(r, "id"))
	if err != nil {
		h.fail(ctx, w, "invalid todo id", err)
		return
	}
	todo, err := h.service.GetTodo(ctx, requestcontext.UserID(ctx), todoID)
	if err != nil {
		h.fail(ctx, w, "failed to get todo", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toTodoResponse(todo))
}

// HandleUpdateTodo handles PUT and PATCH /api/todos/{id}. Both are partial.
func (h *Handler) HandleUpdateTodo(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	userID := requestcontext.UserID(ctx)

	todoID, err := id.ParseTodoID(chi.URLParam(r, "id"))
	if err != nil {
		h.fail(ctx, w, "invalid todo id", err)
		return
	}
	req, ok := httputil.DecodeAndPrepare[UpdateTodoRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	todo, err := h.service.UpdateTodo(ctx, userID, todoID, req.toCommand())
	if err != nil {
		h.fail(ctx, w, "failed to update todo", err)
		return
	}

	h.logger.InfoContext(ctx, "todo updated",
		"request_id", requestID,
		"user_id", userID,
		"todo_id", todo.ID,
	)
	httputil.WriteJSON(w, http.StatusOK, toTodoResponse(todo))
}

// HandleDeleteTodo handles DELETE /api/todos/{id}.
func (h *Handler) HandleDeleteTodo(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	todoID, err := id.ParseTodoID(chi.URLParam(r, "id"))
	if err != nil {
		h.fail(ctx, w, "invalid todo id", err)
		return
	}
	if err := h.service.DeleteTodo(ctx, requestcontext.UserID(ctx), todoID); err != nil {
		h.fail(ctx, w, "failed to delete todo", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleCreateTag handles POST /api/tags.
func (h *Handler) HandleCreateTag(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[CreateTagRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	tag, err := h.service.CreateTag(ctx, requestcontext.UserID(ctx), service.CreateTagCommand{
		Name:      req.Name,
		ColorCode: req.ColorCode,
	})
	if err != nil {
		h.fail(ctx, w, "failed to create tag", err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, toTagResponse(tag))
}

// HandleListTags handles GET /api/tags.
func (h *Handler) HandleListTags(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	tags, err := h.service.ListTags(ctx, requestcontext.UserID(ctx))
	if err != nil {
		h.fail(ctx, w, "failed to list tags", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toTagResponses(tags))
}

// HandleGetTag handles GET /api/tags/{id}.
func (h *Handler) HandleGetTag(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	tagID, err := id.ParseTagID(chi.URLParam(r, "id"))
	if err != nil {
		h.fail(ctx, w, "invalid tag id", err)
		return
	}
	tag, err := h.service.GetTag(ctx, requestcontext.UserID(ctx), tagID)
	if err != nil {
		h.fail(ctx, w, "failed to get tag", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toTagResponse(tag))
}

// HandleUpdateTag handles PUT and PATCH /api/tags/{id}.
func (h *Handler) HandleUpdateTag(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	tagID, err := id.ParseTagID(chi.URLParam(r, "id"))
	if err != nil {
		h.fail(ctx, w, "invalid tag id", err)
		return
	}
	req, ok := httputil.DecodeAndPrepare[UpdateTagRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	tag, err := h.service.UpdateTag(ctx, requestcontext.UserID(ctx), tagID, service.UpdateTagCommand{
		Name:      req.Name,
		ColorCode: req.ColorCode,
	})
	if err != nil {
		h.fail(ctx, w, "failed to update tag", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toTagResponse(tag))
}

// HandleDeleteTag handles DELETE /api/tags/{id}.
func (h *Handler) HandleDeleteTag(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	tagID, err := id.ParseTagID(chi.URLParam(r, "id"))
	if err != nil {
		h.fail(ctx, w, "invalid tag id", err)
		return
	}
	if err := h.service.DeleteTag(ctx, requestcontext.UserID(ctx), tagID); err != nil {
		h.fail(ctx, w, "failed to delete tag", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) fail(ctx context.Context, w http.ResponseWriter, msg string, err error) {
	args := []any{
		"request_id", requestcontext.RequestID(ctx),
		"user_id", requestcontext.UserID(ctx),
		"error", err,
	}
	if de, ok := dErrors.As(err); ok && de.Code != dErrors.CodeInternal {
		h.logger.WarnContext(ctx, msg, args...)
	} else {
		h.logger.ErrorContext(ctx, msg, args...)
	}
	httputil.WriteError(w, err)
}
