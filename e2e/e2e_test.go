//go:build e2e

package e2e

import (
	"context"
	"os"
	"testing"

	"github.com/cucumber/godog"
)

// TestFeatures runs the Gherkin features against a live server at
// E2E_BASE_URL (default http://localhost:8000).
func TestFeatures(t *testing.T) {
	baseURL := os.Getenv("E2E_BASE_URL")
	if baseURL == "" {
		baseURL = "http://localhost:8000"
	}

	suite := godog.TestSuite{
		Name: "taskboard",
		ScenarioInitializer: func(ctx *godog.ScenarioContext) {
			tc := NewTestContext(baseURL)
			ctx.Before(func(ctx context.Context, _ *godog.Scenario) (context.Context, error) {
				tc.Reset()
				return ctx, nil
			})
			RegisterSteps(ctx, tc)
		},
		Options: &godog.Options{
			Format:   "pretty",
			Paths:    []string{"features"},
			Strict:   true,
			TestingT: t,
		},
	}
	if suite.Run() != 0 {
		t.Fatal("feature tests failed")
	}
}
