package handler

import (
	"time"

	"taskboard/internal/todo/models"
	id "taskboard/pkg/domain"
)

// TagResponse is the public view of a tag.
type TagResponse struct {
	ID        id.TagID  `json:"id"`
	Name      string    `json:"name"`
	ColorCode string    `json:"color_code"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TodoResponse is the public view of a todo with its tags ordered by name.
// Timestamps are UTC.
type TodoResponse struct {
	ID          id.TodoID     `json:"id"`
	UserID      id.UserID     `json:"user_id"`
	Title       string        `json:"title"`
	Description *string       `json:"description"`
	Status      models.Status `json:"status"`
	StartsDate  *time.Time    `json:"starts_date"`
	ExpiresDate *time.Time    `json:"expires_date"`
	CreatedAt   time.Time     `json:"created_at"`
	UpdatedAt   time.Time     `json:"updated_at"`
	Tags        []TagResponse `json:"tags"`
}

func toTagResponse(t *models.Tag) TagResponse {
	return TagResponse{
		ID:        t.ID,
		Name:      t.Name,
		ColorCode: t.ColorCode,
		CreatedAt: t.CreatedAt.UTC(),
		UpdatedAt: t.UpdatedAt.UTC(),
	}
}

func toTagResponses(tags []*models.Tag) []TagResponse {
	out := make([]TagResponse, 0, len(tags))
	for _, t := range tags {
		out = append(out, toTagResponse(t))
	}
	return out
}

func toTodoResponse(t *models.Todo) TodoResponse {
	return TodoResponse{
		ID:          t.ID,
		UserID:      t.UserID,
		Title:       t.Title,
		Description: t.Description,
		Status:      t.Status,
		StartsDate:  utcPtr(t.StartsDate),
		ExpiresDate: utcPtr(t.ExpiresDate),
		CreatedAt:   t.CreatedAt.UTC(),
		UpdatedAt:   t.UpdatedAt.UTC(),
		Tags:        toTagResponses(t.Tags),
	}
}

func toTodoResponses(todos []*models.Todo) []TodoResponse {
	out := make([]TodoResponse, 0, len(todos))
	for _, t := range todos {
		out = append(out, toTodoResponse(t))
	}
	return out
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}
