package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"taskboard/internal/todo/models"
	id "taskboard/pkg/domain"
	dErrors "taskboard/pkg/domain-errors"
	"taskboard/pkg/platform/audit"
	"taskboard/pkg/platform/sentinel"
	"taskboard/pkg/requestcontext"
)

// CreateTodoCommand carries the fields of a new todo. An empty Status means pending.
type CreateTodoCommand struct {
	Title       string
	Description *string
	Status      models.Status
	StartsDate  *time.Time
	ExpiresDate *time.Time
	TagIDs      []id.TagID
}

// UpdateTodoCommand is a partial update: nil or unset fields keep their
// stored value. A nil TagIDs keeps the links; an empty one clears them.
type UpdateTodoCommand struct {
	Title       *string
	Description models.Optional[string]
	Status      *models.Status
	StartsDate  models.Optional[time.Time]
	ExpiresDate models.Optional[time.Time]
	TagIDs      []id.TagID
}

// ListTodos returns one page of the filter owner's todos with tags attached.
func (s *Service) ListTodos(ctx context.Context, filter models.ListFilter) (todos []*models.Todo, err error) {
	ctx, span := s.startSpan(ctx, "todo.ListTodos",
		attribute.Int("limit", filter.Limit),
		attribute.Int("offset", filter.Offset),
	)
	defer func() { endSpan(span, err) }()
	if s.metrics != nil {
		defer s.metrics.ObserveList(time.Now())
	}

	if err := requireUser(filter.UserID); err != nil {
		return nil, err
	}
	if err := filter.Normalize(); err != nil {
		return nil, err
	}

	todos, err = s.todos.List(ctx, filter)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list todos")
	}
	if err := s.attachTags(ctx, todos...); err != nil {
		return nil, err
	}
	return todos, nil
}

// GetTodo returns one of the caller's todos.
func (s *Service) GetTodo(ctx context.Context, userID id.UserID, todoID id.TodoID) (todo *models.Todo, err error) {
	ctx, span := s.startSpan(ctx, "todo.GetTodo", attribute.String("todo_id", todoID.String()))
	defer func() { endSpan(span, err) }()

	if err := requireUser(userID); err != nil {
		return nil, err
	}
	todo, err = s.loadOwnedTodo(ctx, userID, todoID)
	if err != nil {
		return nil, err
	}
	if err := s.attachTags(ctx, todo); err != nil {
		return nil, err
	}
	return todo, nil
}

// CreateTodo stores a todo and its tag links in one transaction. Every tag
// must exist and belong to the caller.
func (s *Service) CreateTodo(ctx context.Context, userID id.UserID, cmd CreateTodoCommand) (todo *models.Todo, err error) {
	ctx, span := s.startSpan(ctx, "todo.CreateTodo")
	defer func() { endSpan(span, err) }()

	if err := requireUser(userID); err != nil {
		return nil, err
	}
	todo, err = models.NewTodo(id.NewTodoID(), userID, models.TodoFields{
		Title:       cmd.Title,
		Description: cmd.Description,
		Status:      cmd.Status,
		StartsDate:  cmd.StartsDate,
		ExpiresDate: cmd.ExpiresDate,
		TagIDs:      cmd.TagIDs,
	}, requestcontext.Now(ctx))
	if err != nil {
		return nil, toValidation(err)
	}

	var tags []*models.Tag
	err = s.inTx(ctx, userID, func(ctx context.Context) error {
		if tags, err = s.ownedTags(ctx, userID, todo.TagIDs); err != nil {
			return err
		}
		if err := s.todos.Create(ctx, todo); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to create todo")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	todo.Tags = tags
	models.SortTagsByName(todo.Tags)

	s.logAudit(ctx, audit.EventTodoCreated,
		"user_id", userID,
		"todo_id", todo.ID,
		"title", todo.Title,
	)
	if s.metrics != nil {
		s.metrics.IncrementTodosCreated()
	}
	return todo, nil
}

// UpdateTodo applies a partial update. The date ordering is checked on the
// merged result, so moving only one date can still be rejected.
func (s *Service) UpdateTodo(ctx context.Context, userID id.UserID, todoID id.TodoID, cmd UpdateTodoCommand) (todo *models.Todo, err error) {
	ctx, span := s.startSpan(ctx, "todo.UpdateTodo", attribute.String("todo_id", todoID.String()))
	defer func() { endSpan(span, err) }()

	if err := requireUser(userID); err != nil {
		return nil, err
	}

	err = s.inTx(ctx, userID, func(ctx context.Context) error {
		current, err := s.loadOwnedTodo(ctx, userID, todoID)
		if err != nil {
			return err
		}
		if cmd.Title != nil {
			current.Title = strings.TrimSpace(*cmd.Title)
		}
		cmd.Description.ApplyTo(&current.Description)
		if cmd.Status != nil {
			current.Status = *cmd.Status
		}
		cmd.StartsDate.ApplyTo(&current.StartsDate)
		cmd.ExpiresDate.ApplyTo(&current.ExpiresDate)
		if cmd.TagIDs != nil {
			current.TagIDs = models.DedupeTagIDs(cmd.TagIDs)
		}
		if err := current.Validate(); err != nil {
			return toValidation(err)
		}
		if cmd.TagIDs != nil {
			if _, err := s.ownedTags(ctx, userID, current.TagIDs); err != nil {
				return err
			}
		}
		current.UpdatedAt = requestcontext.Now(ctx)
		if err := s.todos.Update(ctx, current); err != nil {
			return translateTodoErr(err, todoID, "failed to update todo")
		}
		todo = current
		return nil
	})
	if err != nil {
		return nil, err
	}
	if err := s.attachTags(ctx, todo); err != nil {
		return nil, err
	}

	s.logAudit(ctx, audit.EventTodoUpdated,
		"user_id", userID,
		"todo_id", todo.ID,
		"title", todo.Title,
	)
	if s.metrics != nil {
		s.metrics.IncrementTodoUpdated(todo.Status.String())
	}
	return todo, nil
}

// DeleteTodo removes one of the caller's todos and its tag links.
func (s *Service) DeleteTodo(ctx context.Context, userID id.UserID, todoID id.TodoID) (err error) {
	ctx, span := s.startSpan(ctx, "todo.DeleteTodo", attribute.String("todo_id", todoID.String()))
	defer func() { endSpan(span, err) }()

	if err := requireUser(userID); err != nil {
		return err
	}
	err = s.inTx(ctx, userID, func(ctx context.Context) error {
		if _, err := s.loadOwnedTodo(ctx, userID, todoID); err != nil {
			return err
		}
		if err := s.todos.Delete(ctx, todoID); err != nil {
			return translateTodoErr(err, todoID, "failed to delete todo")
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.logAudit(ctx, audit.EventTodoDeleted,
		"user_id", userID,
		"todo_id", todoID,
	)
	if s.metrics != nil {
		s.metrics.IncrementTodosDeleted()
	}
	return nil
}

func (s *Service) loadOwnedTodo(ctx context.Context, userID id.UserID, todoID id.TodoID) (*models.Todo, error) {
	todo, err := s.todos.FindByID(ctx, todoID)
	if err != nil {
		return nil, translateTodoErr(err, todoID, "failed to load todo")
	}
	if todo.UserID != userID {
		s.denyAccess(ctx, userID, "todo", "todo_id", todoID)
		return nil, dErrors.New(dErrors.CodeForbidden, "You don't have permission to access this TODO")
	}
	return todo, nil
}

// ownedTags resolves tagIDs, rejecting any that are missing or belong to
// another user. The two cases share one message so tag IDs of other users
// cannot be probed.
func (s *Service) ownedTags(ctx context.Context, userID id.UserID, tagIDs []id.TagID) ([]*models.Tag, error) {
	if len(tagIDs) == 0 {
		return []*models.Tag{}, nil
	}
	found, err := s.tags.FindByIDs(ctx, tagIDs)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load tags")
	}
	byID := make(map[id.TagID]*models.Tag, len(found))
	for _, t := range found {
		if t.UserID == userID {
			byID[t.ID] = t
		}
	}
	tags := make([]*models.Tag, 0, len(tagIDs))
	for _, tagID := range tagIDs {
		t, ok := byID[tagID]
		if !ok {
			return nil, dErrors.New(dErrors.CodeBadRequest, "unknown tag id "+tagID.String())
		}
		tags = append(tags, t)
	}
	return tags, nil
}

// attachTags hydrates Tags on each todo with one store call, sorted by name.
func (s *Service) attachTags(ctx context.Context, todos ...*models.Todo) error {
	var all []id.TagID
	for _, t := range todos {
		all = append(all, t.TagIDs...)
	}
	byID := map[id.TagID]*models.Tag{}
	if all = models.DedupeTagIDs(all); len(all) > 0 {
		found, err := s.tags.FindByIDs(ctx, all)
		if err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to load tags")
		}
		for _, t := range found {
			byID[t.ID] = t
		}
	}
	for _, t := range todos {
		t.Tags = make([]*models.Tag, 0, len(t.TagIDs))
		for _, tagID := range t.TagIDs {
			if tag, ok := byID[tagID]; ok {
				t.Tags = append(t.Tags, tag)
			}
		}
		models.SortTagsByName(t.Tags)
	}
	return nil
}

func translateTodoErr(err error, todoID id.TodoID, msg string) error {
	if errors.Is(err, sentinel.ErrNotFound) {
		return dErrors.New(dErrors.CodeNotFound, "TODO with id "+todoID.String()+" not found")
	}
	return dErrors.Wrap(err, dErrors.CodeInternal, msg)
}
