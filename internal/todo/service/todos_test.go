package service

import (
	"context"
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"go.uber.org/mock/gomock"

	"taskboard/internal/todo/models"
	id "taskboard/pkg/domain"
	dErrors "taskboard/pkg/domain-errors"
	"taskboard/pkg/platform/audit"
	"taskboard/pkg/platform/sentinel"
)

func (s *ServiceSuite) TestCreateTodo() {
	s.Run("stores todo with owned tags", func() {
		work, home := s.newTag(s.userID, "work"), s.newTag(s.userID, "Home")
		s.mockTagStore.EXPECT().FindByIDs(gomock.Any(), []id.TagID{work.ID, home.ID}).Return([]*models.Tag{home, work}, nil)
		s.mockTodoStore.EXPECT().Create(gomock.Any(), gomock.Any()).
			DoAndReturn(func(_ context.Context, todo *models.Todo) error {
				s.Equal(s.userID, todo.UserID)
				s.Equal("Plan sprint", todo.Title)
				s.Equal(models.StatusPending, todo.Status)
				s.Equal(s.now, todo.CreatedAt)
				s.Equal([]id.TagID{work.ID, home.ID}, todo.TagIDs)
				return nil
			})
		s.expectAudit(string(audit.EventTodoCreated))

		todo, err := s.service.CreateTodo(s.ctx(), s.userID, CreateTodoCommand{
			Title:  " Plan sprint ",
			TagIDs: []id.TagID{work.ID, home.ID, work.ID},
		})
		s.Require().NoError(err)
		s.Require().Len(todo.Tags, 2)
		s.Equal("Home", todo.Tags[0].Name)
		s.Equal(float64(1), testutil.ToFloat64(s.metrics.TodosCreated))
	})

	s.Run("invalid fields are validation errors", func() {
		starts := s.now
		expires := s.now.Add(-time.Hour)
		_, err := s.service.CreateTodo(s.ctx(), s.userID, CreateTodoCommand{
			Title:       "Plan",
			StartsDate:  &starts,
			ExpiresDate: &expires,
		})
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
		s.Equal("expires_date must be after starts_date", err.Error())
	})

	s.Run("another user's tag is unknown", func() {
		foreign := s.newTag(id.NewUserID(), "theirs")
		s.mockTagStore.EXPECT().FindByIDs(gomock.Any(), []id.TagID{foreign.ID}).Return([]*models.Tag{foreign}, nil)

		_, err := s.service.CreateTodo(s.ctx(), s.userID, CreateTodoCommand{Title: "x", TagIDs: []id.TagID{foreign.ID}})
		s.True(dErrors.HasCode(err, dErrors.CodeBadRequest))
		s.Equal("unknown tag id "+foreign.ID.String(), err.Error())
	})

	s.Run("missing tag is unknown", func() {
		missing := id.NewTagID()
		s.mockTagStore.EXPECT().FindByIDs(gomock.Any(), []id.TagID{missing}).Return(nil, nil)

		_, err := s.service.CreateTodo(s.ctx(), s.userID, CreateTodoCommand{Title: "x", TagIDs: []id.TagID{missing}})
		s.True(dErrors.HasCode(err, dErrors.CodeBadRequest))
	})

	s.Run("store failure is internal", func() {
		s.mockTodoStore.EXPECT().Create(gomock.Any(), gomock.Any()).Return(errors.New("connection reset"))

		_, err := s.service.CreateTodo(s.ctx(), s.userID, CreateTodoCommand{Title: "x"})
		s.True(dErrors.HasCode(err, dErrors.CodeInternal))
	})

	s.Run("requires a user", func() {
		_, err := s.service.CreateTodo(s.ctx(), id.UserID{}, CreateTodoCommand{Title: "x"})
		s.True(dErrors.HasCode(err, dErrors.CodeUnauthorized))
	})
}

func (s *ServiceSuite) TestGetTodo() {
	s.Run("missing todo", func() {
		todoID := id.NewTodoID()
		s.mockTodoStore.EXPECT().FindByID(gomock.Any(), todoID).Return(nil, sentinel.ErrNotFound)

		_, err := s.service.GetTodo(s.ctx(), s.userID, todoID)
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
		s.Equal("TODO with id "+todoID.String()+" not found", err.Error())
	})

	s.Run("another user's todo is forbidden and audited", func() {
		todo := s.newTodo(id.NewUserID())
		s.mockTodoStore.EXPECT().FindByID(gomock.Any(), todo.ID).Return(todo, nil)
		s.expectAudit(string(audit.EventAccessDenied))

		_, err := s.service.GetTodo(s.ctx(), s.userID, todo.ID)
		s.True(dErrors.HasCode(err, dErrors.CodeForbidden))
		s.Equal("You don't have permission to access this TODO", err.Error())
		s.Equal(float64(1), testutil.ToFloat64(s.metrics.AccessDenied.WithLabelValues("todo")))
	})

	s.Run("hydrates tags", func() {
		tag := s.newTag(s.userID, "work")
		todo := s.newTodo(s.userID, tag.ID)
		s.mockTodoStore.EXPECT().FindByID(gomock.Any(), todo.ID).Return(todo, nil)
		s.mockTagStore.EXPECT().FindByIDs(gomock.Any(), []id.TagID{tag.ID}).Return([]*models.Tag{tag}, nil)

		found, err := s.service.GetTodo(s.ctx(), s.userID, todo.ID)
		s.Require().NoError(err)
		s.Require().Len(found.Tags, 1)
		s.Equal(tag.ID, found.Tags[0].ID)
	})
}

func (s *ServiceSuite) TestListTodos() {
	s.Run("caps the limit and hydrates tags in one call", func() {
		shared := s.newTag(s.userID, "shared")
		a, b := s.newTodo(s.userID, shared.ID), s.newTodo(s.userID, shared.ID)
		filter := models.ListFilter{UserID: s.userID, Limit: 500}

		s.mockTodoStore.EXPECT().List(gomock.Any(), gomock.Any()).
			DoAndReturn(func(_ context.Context, f models.ListFilter) ([]*models.Todo, error) {
				s.Equal(models.MaxListLimit, f.Limit)
				return []*models.Todo{a, b}, nil
			})
		s.mockTagStore.EXPECT().FindByIDs(gomock.Any(), []id.TagID{shared.ID}).Return([]*models.Tag{shared}, nil)

		todos, err := s.service.ListTodos(s.ctx(), filter)
		s.Require().NoError(err)
		s.Len(todos, 2)
		s.Len(todos[1].Tags, 1)
	})

	s.Run("empty page has no tag lookup", func() {
		s.mockTodoStore.EXPECT().List(gomock.Any(), gomock.Any()).Return([]*models.Todo{}, nil)

		todos, err := s.service.ListTodos(s.ctx(), models.NewListFilter(s.userID))
		s.Require().NoError(err)
		s.Empty(todos)
	})

	s.Run("rejects bad paging before the store", func() {
		_, err := s.service.ListTodos(s.ctx(), models.ListFilter{UserID: s.userID, Limit: 0})
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})

	s.Run("rejects unknown status", func() {
		status := models.Status("archived")
		f := models.NewListFilter(s.userID)
		f.Status = &status
		_, err := s.service.ListTodos(s.ctx(), f)
		s.True(dErrors.HasCode(err, dErrors.CodeBadRequest))
	})
}

func (s *ServiceSuite) TestUpdateTodo() {
	s.Run("changes only provided fields", func() {
		todo := s.newTodo(s.userID)
		description := "keep me"
		todo.Description = &description
		title := "Renamed"
		status := models.StatusInProgress

		s.mockTodoStore.EXPECT().FindByID(gomock.Any(), todo.ID).Return(todo, nil)
		s.mockTodoStore.EXPECT().Update(gomock.Any(), gomock.Any()).
			DoAndReturn(func(_ context.Context, updated *models.Todo) error {
				s.Equal("Renamed", updated.Title)
				s.Equal(models.StatusInProgress, updated.Status)
				s.Equal("keep me", *updated.Description)
				s.Equal(s.now, updated.UpdatedAt)
				return nil
			})
		s.expectAudit(string(audit.EventTodoUpdated))

		updated, err := s.service.UpdateTodo(s.ctx(), s.userID, todo.ID, UpdateTodoCommand{Title: &title, Status: &status})
		s.Require().NoError(err)
		s.Equal("Renamed", updated.Title)
		s.Equal(float64(1), testutil.ToFloat64(s.metrics.TodoUpdates.WithLabelValues("in_progress")))
	})

	s.Run("null clears description and empty tag list clears links", func() {
		tag := s.newTag(s.userID, "work")
		todo := s.newTodo(s.userID, tag.ID)
		description := "old"
		todo.Description = &description

		s.mockTodoStore.EXPECT().FindByID(gomock.Any(), todo.ID).Return(todo, nil)
		s.mockTodoStore.EXPECT().Update(gomock.Any(), gomock.Any()).
			DoAndReturn(func(_ context.Context, updated *models.Todo) error {
				s.Nil(updated.Description)
				s.Empty(updated.TagIDs)
				return nil
			})
		s.expectAudit(string(audit.EventTodoUpdated))

		updated, err := s.service.UpdateTodo(s.ctx(), s.userID, todo.ID, UpdateTodoCommand{
			Description: models.Null[string](),
			TagIDs:      []id.TagID{},
		})
		s.Require().NoError(err)
		s.Empty(updated.Tags)
	})

	s.Run("date order is checked on the merged todo", func() {
		todo := s.newTodo(s.userID)
		starts := s.now
		todo.StartsDate = &starts
		s.mockTodoStore.EXPECT().FindByID(gomock.Any(), todo.ID).Return(todo, nil)

		_, err := s.service.UpdateTodo(s.ctx(), s.userID, todo.ID, UpdateTodoCommand{
			ExpiresDate: models.Some(s.now.Add(-time.Minute)),
		})
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
		s.Equal("expires_date must be after starts_date", err.Error())
	})

	s.Run("blank title is rejected", func() {
		todo := s.newTodo(s.userID)
		blank := "   "
		s.mockTodoStore.EXPECT().FindByID(gomock.Any(), todo.ID).Return(todo, nil)

		_, err := s.service.UpdateTodo(s.ctx(), s.userID, todo.ID, UpdateTodoCommand{Title: &blank})
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})

	s.Run("new tags must be owned", func() {
		todo := s.newTodo(s.userID)
		missing := id.NewTagID()
		s.mockTodoStore.EXPECT().FindByID(gomock.Any(), todo.ID).Return(todo, nil)
		s.mockTagStore.EXPECT().FindByIDs(gomock.Any(), []id.TagID{missing}).Return(nil, nil)

		_, err := s.service.UpdateTodo(s.ctx(), s.userID, todo.ID, UpdateTodoCommand{TagIDs: []id.TagID{missing}})
		s.True(dErrors.HasCode(err, dErrors.CodeBadRequest))
	})

	s.Run("another user's todo is forbidden", func() {
		todo := s.newTodo(id.NewUserID())
		s.mockTodoStore.EXPECT().FindByID(gomock.Any(), todo.ID).Return(todo, nil)
		s.expectAudit(string(audit.EventAccessDenied))

		title := "mine now"
		_, err := s.service.UpdateTodo(s.ctx(), s.userID, todo.ID, UpdateTodoCommand{Title: &title})
		s.True(dErrors.HasCode(err, dErrors.CodeForbidden))
	})
}

func (s *ServiceSuite) TestDeleteTodo() {
	s.Run("deletes an owned todo", func() {
		todo := s.newTodo(s.userID)
		gomock.InOrder(
			s.mockTodoStore.EXPECT().FindByID(gomock.Any(), todo.ID).Return(todo, nil),
			s.mockTodoStore.EXPECT().Delete(gomock.Any(), todo.ID).Return(nil),
		)
		s.expectAudit(string(audit.EventTodoDeleted))

		s.Require().NoError(s.service.DeleteTodo(s.ctx(), s.userID, todo.ID))
		s.Equal(float64(1), testutil.ToFloat64(s.metrics.TodosDeleted))
	})

	s.Run("missing todo", func() {
		todoID := id.NewTodoID()
		s.mockTodoStore.EXPECT().FindByID(gomock.Any(), todoID).Return(nil, sentinel.ErrNotFound)

		err := s.service.DeleteTodo(s.ctx(), s.userID, todoID)
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})

	s.Run("another user's todo is forbidden", func() {
		todo := s.newTodo(id.NewUserID())
		s.mockTodoStore.EXPECT().FindByID(gomock.Any(), todo.ID).Return(todo, nil)
		s.expectAudit(string(audit.EventAccessDenied))

		err := s.service.DeleteTodo(s.ctx(), s.userID, todo.ID)
		s.True(dErrors.HasCode(err, dErrors.CodeForbidden))
	})
}
