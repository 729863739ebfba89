package todos

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"

	"github.com/cucumber/godog"
)

// TestContext interface defines the methods needed from the main test context
type TestContext interface {
	POST(path string, body interface{}) error
	PATCH(path string, body interface{}) error
	GET(path string, headers map[string]string) error
	DELETE(path string) error
	GetResponseField(field string) (interface{}, error)
	GetLastResponseStatus() int
	GetLastResponseBody() []byte
	Save(name, value string)
	Saved(name string) (string, error)
}

// RegisterSteps registers todo and tag step definitions
func RegisterSteps(ctx *godog.ScenarioContext, tc TestContext) {
	steps := &todoSteps{tc: tc}

	// Tag steps
	ctx.Step(`^I create a tag "([^"]*)" with color "([^"]*)"$`, steps.createTag)
	ctx.Step(`^I delete the tag "([^"]*)"$`, steps.deleteTag)
	ctx.Step(`^I list my tags$`, steps.listTags)

	// Todo steps
	ctx.Step(`^I create a todo "([^"]*)"$`, steps.createTodo)
	ctx.Step(`^I create a todo "([^"]*)" with status "([^"]*)"$`, steps.createTodoWithStatus)
	ctx.Step(`^I create a todo "([^"]*)" tagged "([^"]*)"$`, steps.createTaggedTodo)
	ctx.Step(`^I list todos$`, steps.listTodos)
	ctx.Step(`^I list todos with query "([^"]*)"$`, steps.listTodosWithQuery)
	ctx.Step(`^I list todos tagged "([^"]*)"$`, steps.listTodosTagged)
	ctx.Step(`^I fetch the todo "([^"]*)"$`, steps.fetchTodo)
	ctx.Step(`^I set the status of todo "([^"]*)" to "([^"]*)"$`, steps.setStatus)
	ctx.Step(`^I delete the todo "([^"]*)"$`, steps.deleteTodo)

	// Assertions
	ctx.Step(`^the todo should have (\d+) tags?$`, steps.todoShouldHaveTags)
}

type todoSteps struct {
	tc TestContext
}

func (s *todoSteps) saveID(kind, name string) error {
	if status := s.tc.GetLastResponseStatus(); status != 201 {
		return nil
	}
	v, err := s.tc.GetResponseField("id")
	if err != nil {
		return err
	}
	s.tc.Save(kind+":"+name, v.(string))
	return nil
}

func (s *todoSteps) createTag(ctx context.Context, name, color string) error {
	if err := s.tc.POST("/api/tags", map[string]interface{}{"name": name, "color_code": color}); err != nil {
		return err
	}
	return s.saveID("tag", name)
}

func (s *todoSteps) deleteTag(ctx context.Context, name string) error {
	tagID, err := s.tc.Saved("tag:" + name)
	if err != nil {
		return err
	}
	return s.tc.DELETE("/api/tags/" + tagID)
}

func (s *todoSteps) listTags(ctx context.Context) error {
	return s.tc.GET("/api/tags", nil)
}

func (s *todoSteps) createTodo(ctx context.Context, title string) error {
	return s.postTodo(title, map[string]interface{}{"title": title})
}

func (s *todoSteps) createTodoWithStatus(ctx context.Context, title, status string) error {
	return s.postTodo(title, map[string]interface{}{"title": title, "status": status})
}

func (s *todoSteps) createTaggedTodo(ctx context.Context, title, tagNames string) error {
	tagIDs, err := s.tagIDs(tagNames)
	if err != nil {
		return err
	}
	return s.postTodo(title, map[string]interface{}{"title": title, "tag_ids": tagIDs})
}

func (s *todoSteps) postTodo(title string, body map[string]interface{}) error {
	if err := s.tc.POST("/api/todos", body); err != nil {
		return err
	}
	return s.saveID("todo", title)
}

func (s *todoSteps) listTodos(ctx context.Context) error {
	return s.tc.GET("/api/todos", nil)
}

func (s *todoSteps) listTodosWithQuery(ctx context.Context, query string) error {
	return s.tc.GET("/api/todos?"+query, nil)
}

func (s *todoSteps) listTodosTagged(ctx context.Context, tagNames string) error {
	tagIDs, err := s.tagIDs(tagNames)
	if err != nil {
		return err
	}
	return s.tc.GET("/api/todos?tag_ids="+url.QueryEscape(strings.Join(tagIDs, ",")), nil)
}

func (s *todoSteps) fetchTodo(ctx context.Context, title string) error {
	todoID, err := s.tc.Saved("todo:" + title)
	if err != nil {
		return err
	}
	return s.tc.GET("/api/todos/"+todoID, nil)
}

func (s *todoSteps) setStatus(ctx context.Context, title, status string) error {
	todoID, err := s.tc.Saved("todo:" + title)
	if err != nil {
		return err
	}
	return s.tc.PATCH("/api/todos/"+todoID, map[string]interface{}{"status": status})
}

func (s *todoSteps) deleteTodo(ctx context.Context, title string) error {
	todoID, err := s.tc.Saved("todo:" + title)
	if err != nil {
		return err
	}
	return s.tc.DELETE("/api/todos/" + todoID)
}

func (s *todoSteps) todoShouldHaveTags(ctx context.Context, n int) error {
	var todo struct {
		Tags []json.RawMessage `json:"tags"`
	}
	if err := json.Unmarshal(s.tc.GetLastResponseBody(), &todo); err != nil {
		return fmt.Errorf("response is not a todo: %s", s.tc.GetLastResponseBody())
	}
	if len(todo.Tags) != n {
		return fmt.Errorf("expected %d tags, got %d", n, len(todo.Tags))
	}
	return nil
}

func (s *todoSteps) tagIDs(tagNames string) ([]string, error) {
	var ids []string
	for _, name := range strings.Split(tagNames, ",") {
		tagID, err := s.tc.Saved("tag:" + strings.TrimSpace(name))
		if err != nil {
			return nil, err
		}
		ids = append(ids, tagID)
	}
	return ids, nil
}
