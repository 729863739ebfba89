package service

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"go.uber.org/mock/gomock"

	"taskboard/internal/todo/models"
	id "taskboard/pkg/domain"
	dErrors "taskboard/pkg/domain-errors"
	"taskboard/pkg/platform/audit"
	"taskboard/pkg/platform/sentinel"
)

func (s *ServiceSuite) TestCreateTag() {
	s.Run("creates a tag", func() {
		s.mockTagStore.EXPECT().Create(gomock.Any(), gomock.Any()).
			DoAndReturn(func(_ context.Context, tag *models.Tag) error {
				s.Equal("Work", tag.Name)
				s.Equal(s.userID, tag.UserID)
				return nil
			})
		s.expectAudit(string(audit.EventTagCreated))

		tag, err := s.service.CreateTag(s.ctx(), s.userID, CreateTagCommand{Name: " Work ", ColorCode: "#FF5733"})
		s.Require().NoError(err)
		s.Equal("#FF5733", tag.ColorCode)
		s.Equal(float64(1), testutil.ToFloat64(s.metrics.TagsCreated))
	})

	s.Run("duplicate name is a conflict", func() {
		s.mockTagStore.EXPECT().Create(gomock.Any(), gomock.Any()).
			Return(fmt.Errorf("tag name: %w", sentinel.ErrAlreadyUsed))

		_, err := s.service.CreateTag(s.ctx(), s.userID, CreateTagCommand{Name: "Work", ColorCode: "#FF5733"})
		s.True(dErrors.HasCode(err, dErrors.CodeConflict))
		s.Equal("tag with name Work already exists", err.Error())
	})

	s.Run("bad color is a validation error", func() {
		_, err := s.service.CreateTag(s.ctx(), s.userID, CreateTagCommand{Name: "Work", ColorCode: "red"})
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})
}

func (s *ServiceSuite) TestListTags() {
	s.mockTagStore.EXPECT().ListByUser(gomock.Any(), s.userID).Return(nil, nil)

	tags, err := s.service.ListTags(s.ctx(), s.userID)
	s.Require().NoError(err)
	s.NotNil(tags)
	s.Empty(tags)
}

func (s *ServiceSuite) TestGetTag() {
	s.Run("missing tag", func() {
		tagID := id.NewTagID()
		s.mockTagStore.EXPECT().FindByID(gomock.Any(), tagID).Return(nil, sentinel.ErrNotFound)

		_, err := s.service.GetTag(s.ctx(), s.userID, tagID)
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})

	s.Run("another user's tag is forbidden", func() {
		tag := s.newTag(id.NewUserID(), "theirs")
		s.mockTagStore.EXPECT().FindByID(gomock.Any(), tag.ID).Return(tag, nil)
		s.expectAudit(string(audit.EventAccessDenied))

		_, err := s.service.GetTag(s.ctx(), s.userID, tag.ID)
		s.True(dErrors.HasCode(err, dErrors.CodeForbidden))
		s.Equal(float64(1), testutil.ToFloat64(s.metrics.AccessDenied.WithLabelValues("tag")))
	})
}

func (s *ServiceSuite) TestUpdateTag() {
	s.Run("recolors an owned tag", func() {
		tag := s.newTag(s.userID, "Work")
		color := "#000000"
		s.mockTagStore.EXPECT().FindByID(gomock.Any(), tag.ID).Return(tag, nil)
		s.mockTagStore.EXPECT().Update(gomock.Any(), gomock.Any()).
			DoAndReturn(func(_ context.Context, updated *models.Tag) error {
				s.Equal("Work", updated.Name)
				s.Equal("#000000", updated.ColorCode)
				s.Equal(s.now, updated.UpdatedAt)
				return nil
			})
		s.expectAudit(string(audit.EventTagUpdated))

		updated, err := s.service.UpdateTag(s.ctx(), s.userID, tag.ID, UpdateTagCommand{ColorCode: &color})
		s.Require().NoError(err)
		s.Equal("#000000", updated.ColorCode)
	})

	s.Run("rename onto a taken name is a conflict", func() {
		tag := s.newTag(s.userID, "Work")
		name := "Home"
		s.mockTagStore.EXPECT().FindByID(gomock.Any(), tag.ID).Return(tag, nil)
		s.mockTagStore.EXPECT().Update(gomock.Any(), gomock.Any()).Return(sentinel.ErrAlreadyUsed)

		_, err := s.service.UpdateTag(s.ctx(), s.userID, tag.ID, UpdateTagCommand{Name: &name})
		s.True(dErrors.HasCode(err, dErrors.CodeConflict))
		s.Equal("tag with name Home already exists", err.Error())
	})

	s.Run("invalid name never reaches the store", func() {
		tag := s.newTag(s.userID, "Work")
		empty := ""
		s.mockTagStore.EXPECT().FindByID(gomock.Any(), tag.ID).Return(tag, nil)

		_, err := s.service.UpdateTag(s.ctx(), s.userID, tag.ID, UpdateTagCommand{Name: &empty})
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})
}

func (s *ServiceSuite) TestDeleteTag() {
	s.Run("detaches before deleting", func() {
		tag := s.newTag(s.userID, "Work")
		gomock.InOrder(
			s.mockTagStore.EXPECT().FindByID(gomock.Any(), tag.ID).Return(tag, nil),
			s.mockTodoStore.EXPECT().DetachTag(gomock.Any(), tag.ID).Return(nil),
			s.mockTagStore.EXPECT().Delete(gomock.Any(), tag.ID).Return(nil),
		)
		s.expectAudit(string(audit.EventTagDeleted))

		s.Require().NoError(s.service.DeleteTag(s.ctx(), s.userID, tag.ID))
		s.Equal(float64(1), testutil.ToFloat64(s.metrics.TagsDeleted))
	})

	s.Run("another user's tag is left alone", func() {
		tag := s.newTag(id.NewUserID(), "theirs")
		s.mockTagStore.EXPECT().FindByID(gomock.Any(), tag.ID).Return(tag, nil)
		s.expectAudit(string(audit.EventAccessDenied))

		err := s.service.DeleteTag(s.ctx(), s.userID, tag.ID)
		s.True(dErrors.HasCode(err, dErrors.CodeForbidden))
	})
}
