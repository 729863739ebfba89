package common

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/cucumber/godog"
)

// TestContext interface defines the methods needed from the main test context
type TestContext interface {
	GET(path string, headers map[string]string) error
	GetResponseField(field string) (interface{}, error)
	GetLastResponseStatus() int
	GetLastResponseBody() []byte
}

// RegisterSteps registers request and assertion steps shared by every feature
func RegisterSteps(ctx *godog.ScenarioContext, tc TestContext) {
	steps := &commonSteps{tc: tc}

	ctx.Step(`^the service is healthy$`, steps.serviceIsHealthy)
	ctx.Step(`^I GET "([^"]*)"$`, steps.get)
	ctx.Step(`^the response status should be (\d+)$`, steps.statusShouldBe)
	ctx.Step(`^the response field "([^"]*)" should equal "([^"]*)"$`, steps.fieldShouldEqual)
	ctx.Step(`^the response should not contain "([^"]*)"$`, steps.responseShouldNotContain)
	ctx.Step(`^the error should be "([^"]*)"$`, steps.errorShouldBe)
	ctx.Step(`^the response should be a list of (\d+) items?$`, steps.listLengthShouldBe)
}

type commonSteps struct {
	tc TestContext
}

func (s *commonSteps) serviceIsHealthy(ctx context.Context) error {
	if err := s.tc.GET("/health", nil); err != nil {
		return err
	}
	return s.statusShouldBe(ctx, 200)
}

func (s *commonSteps) get(ctx context.Context, path string) error {
	return s.tc.GET(path, nil)
}

func (s *commonSteps) statusShouldBe(ctx context.Context, expected int) error {
	if got := s.tc.GetLastResponseStatus(); got != expected {
		return fmt.Errorf("expected status %d, got %d: %s", expected, got, s.tc.GetLastResponseBody())
	}
	return nil
}

func (s *commonSteps) fieldShouldEqual(ctx context.Context, field, expected string) error {
	v, err := s.tc.GetResponseField(field)
	if err != nil {
		return err
	}
	if fmt.Sprint(v) != expected {
		return fmt.Errorf("expected %s=%q, got %q", field, expected, fmt.Sprint(v))
	}
	return nil
}

func (s *commonSteps) responseShouldNotContain(ctx context.Context, text string) error {
	if body := string(s.tc.GetLastResponseBody()); strings.Contains(strings.ToLower(body), strings.ToLower(text)) {
		return fmt.Errorf("response unexpectedly contains %q: %s", text, body)
	}
	return nil
}

func (s *commonSteps) errorShouldBe(ctx context.Context, code string) error {
	return s.fieldShouldEqual(ctx, "error", code)
}

func (s *commonSteps) listLengthShouldBe(ctx context.Context, n int) error {
	var items []json.RawMessage
	if err := json.Unmarshal(s.tc.GetLastResponseBody(), &items); err != nil {
		return fmt.Errorf("response is not a JSON array: %s", s.tc.GetLastResponseBody())
	}
	if len(items) != n {
		return fmt.Errorf("expected %d items, got %d", n, len(items))
	}
	return nil
}
