package models

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	id "taskboard/pkg/domain"
	dErrors "taskboard/pkg/domain-errors"
)

func ptr[T any](v T) *T { return &v }

func TestParseStatus(t *testing.T) {
	for _, raw := range []string{"pending", "in_progress", "completed"} {
		s, err := ParseStatus(raw)
		require.NoError(t, err)
		assert.Equal(t, raw, s.String())
	}

	_, err := ParseStatus("done")
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeBadRequest))
	assert.Equal(t, "Invalid status: done. Must be one of: pending, in_progress, completed", err.Error())
}

func TestNewTodo(t *testing.T) {
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	userID := id.NewUserID()

	t.Run("defaults to pending and trims title", func(t *testing.T) {
		todo, err := NewTodo(id.NewTodoID(), userID, TodoFields{Title: "  Buy milk "}, now)
		require.NoError(t, err)
		assert.Equal(t, "Buy milk", todo.Title)
		assert.Equal(t, StatusPending, todo.Status)
		assert.Equal(t, now, todo.CreatedAt)
		assert.Nil(t, todo.TagIDs)
	})

	t.Run("dedupes tag ids", func(t *testing.T) {
		tagID := id.NewTagID()
		todo, err := NewTodo(id.NewTodoID(), userID, TodoFields{Title: "x", TagIDs: []id.TagID{tagID, tagID}}, now)
		require.NoError(t, err)
		assert.Equal(t, []id.TagID{tagID}, todo.TagIDs)
	})

	t.Run("equal dates are allowed", func(t *testing.T) {
		_, err := NewTodo(id.NewTodoID(), userID, TodoFields{Title: "x", StartsDate: &now, ExpiresDate: &now}, now)
		assert.NoError(t, err)
	})

	cases := map[string]struct {
		fields  TodoFields
		message string
	}{
		"blank title":      {TodoFields{Title: "   "}, "title is required"},
		"long title":       {TodoFields{Title: strings.Repeat("t", 201)}, "title must be 200 characters or less"},
		"long description": {TodoFields{Title: "x", Description: ptr(strings.Repeat("d", 2001))}, "description must be 2000 characters or less"},
		"unknown status":   {TodoFields{Title: "x", Status: "archived"}, "Invalid status: archived"},
		"expiry before start": {
			TodoFields{Title: "x", StartsDate: ptr(now), ExpiresDate: ptr(now.Add(-time.Minute))},
			"expires_date must be after starts_date",
		},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := NewTodo(id.NewTodoID(), userID, tc.fields, now)
			require.Error(t, err)
			assert.True(t, dErrors.HasCode(err, dErrors.CodeInvariantViolation))
			assert.Contains(t, err.Error(), tc.message)
		})
	}

	t.Run("multibyte titles count characters", func(t *testing.T) {
		_, err := NewTodo(id.NewTodoID(), userID, TodoFields{Title: strings.Repeat("é", 200)}, now)
		assert.NoError(t, err)
	})

	t.Run("owner is required", func(t *testing.T) {
		_, err := NewTodo(id.NewTodoID(), id.UserID{}, TodoFields{Title: "x"}, now)
		assert.Error(t, err)
	})
}

func TestTodoTags(t *testing.T) {
	a, b := id.NewTagID(), id.NewTagID()
	todo := &Todo{TagIDs: []id.TagID{a, b}}
	assert.True(t, todo.HasTag(b))

	todo.DetachTag(a)
	assert.Equal(t, []id.TagID{b}, todo.TagIDs)
	assert.False(t, todo.HasTag(a))
}

func TestTodoClone(t *testing.T) {
	now := time.Now()
	orig := &Todo{Title: "x", Description: ptr("d"), StartsDate: &now, TagIDs: []id.TagID{id.NewTagID()}}
	c := orig.Clone()

	*c.Description = "changed"
	c.TagIDs[0] = id.NewTagID()
	assert.Equal(t, "d", *orig.Description)
	assert.NotEqual(t, orig.TagIDs[0], c.TagIDs[0])
}

func TestNewTag(t *testing.T) {
	now := time.Now()
	userID := id.NewUserID()

	tag, err := NewTag(id.NewTagID(), userID, " Work ", "#1a2B3c", now)
	require.NoError(t, err)
	assert.Equal(t, "Work", tag.Name)
	assert.Equal(t, "work", tag.NameKey())

	cases := map[string]struct{ name, color string }{
		"blank name":    {" ", "#FFFFFF"},
		"long name":     {strings.Repeat("n", 51), "#FFFFFF"},
		"short color":   {"Work", "#FFF"},
		"missing hash":  {"Work", "FFFFFF"},
		"non-hex color": {"Work", "#GGGGGG"},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := NewTag(id.NewTagID(), userID, tc.name, tc.color, now)
			require.Error(t, err)
			assert.True(t, dErrors.HasCode(err, dErrors.CodeInvariantViolation))
		})
	}
}

func TestTagApplyUpdate(t *testing.T) {
	created := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	later := created.Add(time.Hour)
	tag, err := NewTag(id.NewTagID(), id.NewUserID(), "Work", "#000000", created)
	require.NoError(t, err)

	t.Run("invalid update leaves tag untouched", func(t *testing.T) {
		err := tag.ApplyUpdate(ptr("Home"), ptr("red"), later)
		require.Error(t, err)
		assert.Equal(t, "Work", tag.Name)
		assert.Equal(t, created, tag.UpdatedAt)
	})

	t.Run("partial update", func(t *testing.T) {
		require.NoError(t, tag.ApplyUpdate(nil, ptr("#FF5733"), later))
		assert.Equal(t, "Work", tag.Name)
		assert.Equal(t, "#FF5733", tag.ColorCode)
		assert.Equal(t, later, tag.UpdatedAt)
	})
}

func TestListFilterNormalize(t *testing.T) {
	userID := id.NewUserID()

	t.Run("defaults", func(t *testing.T) {
		f := NewListFilter(userID)
		require.NoError(t, f.Normalize())
		assert.Equal(t, DefaultListLimit, f.Limit)
		assert.Zero(t, f.Offset)
	})

	t.Run("caps limit", func(t *testing.T) {
		f := ListFilter{UserID: userID, Limit: 500}
		require.NoError(t, f.Normalize())
		assert.Equal(t, MaxListLimit, f.Limit)
	})

	t.Run("rejects bad paging", func(t *testing.T) {
		f := ListFilter{UserID: userID, Limit: 0}
		assert.True(t, dErrors.HasCode(f.Normalize(), dErrors.CodeValidation))

		f = ListFilter{UserID: userID, Limit: 10, Offset: -1}
		assert.True(t, dErrors.HasCode(f.Normalize(), dErrors.CodeValidation))
	})

	t.Run("rejects unknown status", func(t *testing.T) {
		f := ListFilter{UserID: userID, Limit: 10, Status: ptr(Status("done"))}
		assert.True(t, dErrors.HasCode(f.Normalize(), dErrors.CodeBadRequest))
	})
}

func TestListFilterMatches(t *testing.T) {
	work, home := id.NewTagID(), id.NewTagID()
	todo := &Todo{Status: StatusInProgress, TagIDs: []id.TagID{work}}

	assert.True(t, ListFilter{}.Matches(todo))
	assert.True(t, ListFilter{Status: ptr(StatusInProgress)}.Matches(todo))
	assert.False(t, ListFilter{Status: ptr(StatusCompleted)}.Matches(todo))
	assert.True(t, ListFilter{TagIDs: []id.TagID{home, work}}.Matches(todo))
	assert.False(t, ListFilter{TagIDs: []id.TagID{home}}.Matches(todo))
}

func TestOptional(t *testing.T) {
	var body struct {
		Description Optional[string]    `json:"description"`
		Starts      Optional[time.Time] `json:"starts_date"`
		Absent      Optional[string]    `json:"absent"`
	}
	err := json.Unmarshal([]byte(`{"description": null, "starts_date": "2026-03-01T10:00:00Z"}`), &body)
	require.NoError(t, err)

	assert.True(t, body.Description.Set)
	assert.Nil(t, body.Description.Value)
	assert.True(t, body.Starts.Set)
	require.NotNil(t, body.Starts.Value)
	assert.Equal(t, 2026, body.Starts.Value.Year())
	assert.False(t, body.Absent.Set)

	current := ptr("keep")
	body.Absent.ApplyTo(&current)
	assert.Equal(t, "keep", *current)
	body.Description.ApplyTo(&current)
	assert.Nil(t, current)
	Some("new").ApplyTo(&current)
	assert.Equal(t, "new", *current)
	Null[string]().ApplyTo(&current)
	assert.Nil(t, current)
}
