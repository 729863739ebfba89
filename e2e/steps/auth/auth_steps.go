package auth

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/cucumber/godog"
)

// TestContext interface defines the methods needed from the main test context
type TestContext interface {
	POST(path string, body interface{}) error
	GET(path string, headers map[string]string) error
	DELETE(path string) error
	GetResponseField(field string) (interface{}, error)
	GetLastResponseStatus() int
	GetAccessToken() string
	SetAccessToken(token string)
	Save(name, value string)
	Saved(name string) (string, error)
}

// RegisterSteps registers authentication-related step definitions
func RegisterSteps(ctx *godog.ScenarioContext, tc TestContext) {
	steps := &authSteps{
		tc:    tc,
		nonce: strconv.FormatInt(time.Now().UnixNano(), 36),
	}

	// Account steps
	ctx.Step(`^I sign up as "([^"]*)" with password "([^"]*)"$`, steps.signUp)
	ctx.Step(`^I sign in as "([^"]*)" with password "([^"]*)"$`, steps.signIn)
	ctx.Step(`^I am signed in as "([^"]*)"$`, steps.signedInAs)
	ctx.Step(`^I act as "([^"]*)"$`, steps.actAs)

	// Session steps
	ctx.Step(`^I request my profile$`, steps.requestProfile)
	ctx.Step(`^I list my sessions$`, steps.listSessions)
	ctx.Step(`^I sign out$`, steps.signOut)
	ctx.Step(`^I use the bearer token "([^"]*)"$`, steps.useToken)
}

type authSteps struct {
	tc    TestContext
	nonce string
}

const defaultPassword = "Str0ng!pass"

// email makes addresses unique per scenario so runs do not collide.
func (s *authSteps) email(alias string) string {
	return fmt.Sprintf("%s-%s@example.com", alias, s.nonce)
}

func (s *authSteps) signUp(ctx context.Context, alias, password string) error {
	return s.tc.POST("/api/auth/signup", map[string]interface{}{
		"email":    s.email(alias),
		"name":     alias,
		"password": password,
	})
}

func (s *authSteps) signIn(ctx context.Context, alias, password string) error {
	err := s.tc.POST("/api/auth/signin", map[string]interface{}{
		"email":    s.email(alias),
		"password": password,
	})
	if err != nil || s.tc.GetLastResponseStatus() != 200 {
		return err
	}
	token, err := s.tc.GetResponseField("token")
	if err != nil {
		return err
	}
	s.tc.SetAccessToken(token.(string))
	s.tc.Save("token:"+alias, token.(string))
	return nil
}

func (s *authSteps) signedInAs(ctx context.Context, alias string) error {
	s.tc.SetAccessToken("")
	if err := s.signUp(ctx, alias, defaultPassword); err != nil {
		return err
	}
	if status := s.tc.GetLastResponseStatus(); status != 201 {
		return fmt.Errorf("sign up %s: status %d", alias, status)
	}
	if err := s.signIn(ctx, alias, defaultPassword); err != nil {
		return err
	}
	if status := s.tc.GetLastResponseStatus(); status != 200 {
		return fmt.Errorf("sign in %s: status %d", alias, status)
	}
	return nil
}

func (s *authSteps) actAs(ctx context.Context, alias string) error {
	token, err := s.tc.Saved("token:" + alias)
	if err != nil {
		return err
	}
	s.tc.SetAccessToken(token)
	return nil
}

func (s *authSteps) requestProfile(ctx context.Context) error {
	return s.tc.GET("/api/auth/me", nil)
}

func (s *authSteps) listSessions(ctx context.Context) error {
	return s.tc.GET("/api/auth/sessions", nil)
}

func (s *authSteps) signOut(ctx context.Context) error {
	return s.tc.POST("/api/auth/signout", nil)
}

func (s *authSteps) useToken(ctx context.Context, token string) error {
	s.tc.SetAccessToken(token)
	return nil
}
