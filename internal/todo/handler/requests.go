package handler

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"taskboard/internal/todo/models"
	"taskboard/internal/todo/service"
	id "taskboard/pkg/domain"
	dErrors "taskboard/pkg/domain-errors"
	pstrings "taskboard/pkg/platform/strings"
)

// maxTagIDsPerRequest bounds tag_ids in bodies and queries.
const maxTagIDsPerRequest = 100

// CreateTodoRequest is the HTTP request body for POST /api/todos.
type CreateTodoRequest struct {
	Title       string     `json:"title"`
	Description *string    `json:"description"`
	Status      string     `json:"status"`
	StartsDate  *time.Time `json:"starts_date"`
	ExpiresDate *time.Time `json:"expires_date"`
	TagIDs      []id.TagID `json:"tag_ids"`

	status models.Status
}

// Validate implements httputil.Validatable. Field rules beyond presence and
// status are enforced by the todo model.
func (r *CreateTodoRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}
	if strings.TrimSpace(r.Title) == "" {
		return dErrors.New(dErrors.CodeValidation, "title is required")
	}
	if len(r.TagIDs) > maxTagIDsPerRequest {
		return dErrors.New(dErrors.CodeValidation, "too many tag_ids")
	}
	r.status = models.StatusPending
	if r.Status != "" {
		status, err := parseBodyStatus(r.Status)
		if err != nil {
			return err
		}
		r.status = status
	}
	return nil
}

func (r *CreateTodoRequest) toCommand() service.CreateTodoCommand {
	return service.CreateTodoCommand{
		Title:       r.Title,
		Description: r.Description,
		Status:      r.status,
		StartsDate:  r.StartsDate,
		ExpiresDate: r.ExpiresDate,
		TagIDs:      r.TagIDs,
	}
}

// UpdateTodoRequest is the HTTP request body for PUT and PATCH
// /api/todos/{id}. Absent fields are left unchanged; description and the two
// dates may be cleared with null.
type UpdateTodoRequest struct {
	Title       *string                    `json:"title"`
	Description models.Optional[string]    `json:"description"`
	Status      *string                    `json:"status"`
	StartsDate  models.Optional[time.Time] `json:"starts_date"`
	ExpiresDate models.Optional[time.Time] `json:"expires_date"`
	TagIDs      []id.TagID                 `json:"tag_ids"`

	status *models.Status
}

func (r *UpdateTodoRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}
	if r.Title != nil && strings.TrimSpace(*r.Title) == "" {
		return dErrors.New(dErrors.CodeValidation, "title must not be empty")
	}
	if len(r.TagIDs) > maxTagIDsPerRequest {
		return dErrors.New(dErrors.CodeValidation, "too many tag_ids")
	}
	if r.Status != nil {
		status, err := parseBodyStatus(*r.Status)
		if err != nil {
			return err
		}
		r.status = &status
	}
	return nil
}

func (r *UpdateTodoRequest) toCommand() service.UpdateTodoCommand {
	return service.UpdateTodoCommand{
		Title:       r.Title,
		Description: r.Description,
		Status:      r.status,
		StartsDate:  r.StartsDate,
		ExpiresDate: r.ExpiresDate,
		TagIDs:      r.TagIDs,
	}
}

// parseBodyStatus reports an unknown status in a body as a validation error;
// in a query it stays a bad request.
func parseBodyStatus(raw string) (models.Status, error) {
	status, err := models.ParseStatus(raw)
	if err != nil {
		return "", dErrors.New(dErrors.CodeValidation, err.Error())
	}
	return status, nil
}

// CreateTagRequest is the HTTP request body for POST /api/tags.
type CreateTagRequest struct {
	Name      string `json:"name"`
	ColorCode string `json:"color_code"`
}

func (r *CreateTagRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}
	if strings.TrimSpace(r.Name) == "" {
		return dErrors.New(dErrors.CodeValidation, "name is required")
	}
	if r.ColorCode == "" {
		return dErrors.New(dErrors.CodeValidation, "color_code is required")
	}
	return nil
}

// UpdateTagRequest is the HTTP request body for PUT and PATCH /api/tags/{id}.
type UpdateTagRequest struct {
	Name      *string `json:"name"`
	ColorCode *string `json:"color_code"`
}

func (r *UpdateTagRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}
	return nil
}

// parseListFilter reads status, tag_ids, limit and offset from the query.
// Range checks on limit and offset happen in ListFilter.Normalize.
func parseListFilter(r *http.Request, userID id.UserID) (models.ListFilter, error) {
	q := r.URL.Query()
	filter := models.NewListFilter(userID)

	if raw := q.Get("status"); raw != "" {
		status, err := models.ParseStatus(raw)
		if err != nil {
			return filter, err
		}
		filter.Status = &status
	}

	if raw := q.Get("tag_ids"); raw != "" {
		parts := pstrings.SplitCommaList(raw)
		if len(parts) > maxTagIDsPerRequest {
			return filter, dErrors.New(dErrors.CodeBadRequest, "too many tag_ids")
		}
		for _, part := range parts {
			tagID, err := id.ParseTagID(part)
			if err != nil {
				return filter, dErrors.New(dErrors.CodeBadRequest, "Invalid tag_ids format. Must be comma-separated UUIDs")
			}
			filter.TagIDs = append(filter.TagIDs, tagID)
		}
	}

	var err error
	if filter.Limit, err = intParam(q.Get("limit"), "limit", models.DefaultListLimit); err != nil {
		return filter, err
	}
	if filter.Offset, err = intParam(q.Get("offset"), "offset", 0); err != nil {
		return filter, err
	}
	return filter, nil
}

func intParam(raw, name string, fallback int) (int, error) {
	if raw == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, dErrors.New(dErrors.CodeValidation, name+" must be an integer")
	}
	return n, nil
}
