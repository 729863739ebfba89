package service

import (
	"context"
	"errors"

	"go.opentelemetry.io/otel/attribute"

	"taskboard/internal/todo/models"
	id "taskboard/pkg/domain"
	dErrors "taskboard/pkg/domain-errors"
	"taskboard/pkg/platform/audit"
	"taskboard/pkg/platform/sentinel"
	"taskboard/pkg/requestcontext"
)

type CreateTagCommand struct {
	Name      string
	ColorCode string
}

// UpdateTagCommand changes only the non-nil fields.
type UpdateTagCommand struct {
	Name      *string
	ColorCode *string
}

func (s *Service) CreateTag(ctx context.Context, userID id.UserID, cmd CreateTagCommand) (tag *models.Tag, err error) {
	ctx, span := s.startSpan(ctx, "todo.CreateTag")
	defer func() { endSpan(span, err) }()

	if err := requireUser(userID); err != nil {
		return nil, err
	}
	tag, err = models.NewTag(id.NewTagID(), userID, cmd.Name, cmd.ColorCode, requestcontext.Now(ctx))
	if err != nil {
		return nil, toValidation(err)
	}
	if err := s.tags.Create(ctx, tag); err != nil {
		return nil, translateTagErr(err, tag, "failed to create tag")
	}

	s.logAudit(ctx, audit.EventTagCreated,
		"user_id", userID,
		"tag_id", tag.ID,
		"title", tag.Name,
	)
	if s.metrics != nil {
		s.metrics.IncrementTagsCreated()
	}
	return tag, nil
}

// ListTags returns the caller's tags ordered by name.
func (s *Service) ListTags(ctx context.Context, userID id.UserID) (tags []*models.Tag, err error) {
	ctx, span := s.startSpan(ctx, "todo.ListTags")
	defer func() { endSpan(span, err) }()

	if err := requireUser(userID); err != nil {
		return nil, err
	}
	tags, err = s.tags.ListByUser(ctx, userID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list tags")
	}
	if tags == nil {
		tags = []*models.Tag{}
	}
	return tags, nil
}

func (s *Service) GetTag(ctx context.Context, userID id.UserID, tagID id.TagID) (tag *models.Tag, err error) {
	ctx, span := s.startSpan(ctx, "todo.GetTag", attribute.String("tag_id", tagID.String()))
	defer func() { endSpan(span, err) }()

	if err := requireUser(userID); err != nil {
		return nil, err
	}
	return s.loadOwnedTag(ctx, userID, tagID)
}

// UpdateTag renames or recolors one of the caller's tags.
func (s *Service) UpdateTag(ctx context.Context, userID id.UserID, tagID id.TagID, cmd UpdateTagCommand) (tag *models.Tag, err error) {
	ctx, span := s.startSpan(ctx, "todo.UpdateTag", attribute.String("tag_id", tagID.String()))
	defer func() { endSpan(span, err) }()

	if err := requireUser(userID); err != nil {
		return nil, err
	}
	err = s.inTx(ctx, userID, func(ctx context.Context) error {
		current, err := s.loadOwnedTag(ctx, userID, tagID)
		if err != nil {
			return err
		}
		if err := current.ApplyUpdate(cmd.Name, cmd.ColorCode, requestcontext.Now(ctx)); err != nil {
			return toValidation(err)
		}
		if err := s.tags.Update(ctx, current); err != nil {
			return translateTagErr(err, current, "failed to update tag")
		}
		tag = current
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logAudit(ctx, audit.EventTagUpdated,
		"user_id", userID,
		"tag_id", tag.ID,
		"title", tag.Name,
	)
	return tag, nil
}

// DeleteTag removes one of the caller's tags and detaches it from every todo
// in the same transaction.
func (s *Service) DeleteTag(ctx context.Context, userID id.UserID, tagID id.TagID) (err error) {
	ctx, span := s.startSpan(ctx, "todo.DeleteTag", attribute.String("tag_id", tagID.String()))
	defer func() { endSpan(span, err) }()

	if err := requireUser(userID); err != nil {
		return err
	}
	err = s.inTx(ctx, userID, func(ctx context.Context) error {
		if _, err := s.loadOwnedTag(ctx, userID, tagID); err != nil {
			return err
		}
		if err := s.todos.DetachTag(ctx, tagID); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to detach tag")
		}
		if err := s.tags.Delete(ctx, tagID); err != nil {
			if errors.Is(err, sentinel.ErrNotFound) {
				return tagNotFound(tagID)
			}
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to delete tag")
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.logAudit(ctx, audit.EventTagDeleted,
		"user_id", userID,
		"tag_id", tagID,
	)
	if s.metrics != nil {
		s.metrics.IncrementTagsDeleted()
	}
	return nil
}

func (s *Service) loadOwnedTag(ctx context.Context, userID id.UserID, tagID id.TagID) (*models.Tag, error) {
	tag, err := s.tags.FindByID(ctx, tagID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, tagNotFound(tagID)
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load tag")
	}
	if tag.UserID != userID {
		s.denyAccess(ctx, userID, "tag", "tag_id", tagID)
		return nil, dErrors.New(dErrors.CodeForbidden, "You don't have permission to access this tag")
	}
	return tag, nil
}

func tagNotFound(tagID id.TagID) error {
	return dErrors.New(dErrors.CodeNotFound, "Tag with id "+tagID.String()+" not found")
}

func translateTagErr(err error, tag *models.Tag, msg string) error {
	switch {
	case errors.Is(err, sentinel.ErrAlreadyUsed):
		return dErrors.New(dErrors.CodeConflict, "tag with name "+tag.Name+" already exists")
	case errors.Is(err, sentinel.ErrNotFound):
		return tagNotFound(tag.ID)
	default:
		return dErrors.Wrap(err, dErrors.CodeInternal, msg)
	}
}
