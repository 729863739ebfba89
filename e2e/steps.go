package e2e

import (
	"github.com/cucumber/godog"

	"taskboard/e2e/steps/auth"
	"taskboard/e2e/steps/common"
	"taskboard/e2e/steps/todos"
)

// RegisterSteps registers all step definitions from modular packages
func RegisterSteps(ctx *godog.ScenarioContext, tc *TestContext) {
	// Register common steps (generic requests, assertions)
	common.RegisterSteps(ctx, tc)

	// Register authentication-specific steps
	auth.RegisterSteps(ctx, tc)

	// Register todo and tag steps
	todos.RegisterSteps(ctx, tc)
}
