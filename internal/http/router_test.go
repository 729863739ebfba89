package httpapi

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"taskboard/internal/auth/adapters"
	authhandler "taskboard/internal/auth/handler"
	authservice "taskboard/internal/auth/service"
	sessionStore "taskboard/internal/auth/store/session"
	userStore "taskboard/internal/auth/store/user"
	"taskboard/internal/platform/metrics"
	"taskboard/internal/platform/middleware"
	todohandler "taskboard/internal/todo/handler"
	todoservice "taskboard/internal/todo/service"
	tagStore "taskboard/internal/todo/store/tag"
	todoStore "taskboard/internal/todo/store/todo"
	authmw "taskboard/pkg/platform/middleware/auth"
	"taskboard/pkg/platform/middleware/metadata"
	"taskboard/pkg/testutil"
)

func newTestRouter(t *testing.T, checks map[string]HealthCheck) http.Handler {
	t.Helper()
	return buildTestRouter(t, checks, nil, nil)
}

func buildTestRouter(t *testing.T, checks map[string]HealthCheck, throttle authhandler.Middleware, clientIP *metadata.Resolver) http.Handler {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))

	auth := authservice.New(userStore.New(), sessionStore.New(),
		authservice.Config{SessionTTL: time.Hour, BcryptCost: 4},
		authservice.WithLogger(logger),
	)
	requireAuth := authmw.RequireSession(adapters.NewSessionAuthenticator(auth), logger)
	todos := todoservice.New(todoStore.New(), tagStore.New(), todoservice.WithLogger(logger))

	return NewRouter(Config{
		Logger:         logger,
		Metrics:        metrics.NewWithRegisterer(prometheus.NewRegistry()),
		Version:        "test",
		AllowedOrigins: []string{"http://localhost:3000"},
		RequestTimeout: 5 * time.Second,
		HealthChecks:   checks,
		ClientIP:       clientIP,
		Handlers: []Registrar{
			authhandler.New(auth, logger, requireAuth, throttle),
			todohandler.New(todos, logger, requireAuth),
		},
	})
}

func TestOperationalEndpoints(t *testing.T) {
	router := newTestRouter(t, nil)

	t.Run("service info", func(t *testing.T) {
		rr := testutil.DoRequest(router, httptest.NewRequest(http.MethodGet, "/", nil))
		testutil.AssertStatus(t, rr, http.StatusOK)
		info := testutil.UnmarshalResponse[InfoResponse](t, rr)
		assert.Equal(t, "taskboard", info.Name)
		assert.Equal(t, "/health", info.Health)
	})

	t.Run("security headers and request id", func(t *testing.T) {
		rr := testutil.DoRequest(router, httptest.NewRequest(http.MethodGet, "/", nil))
		assert.Equal(t, "nosniff", rr.Header().Get("X-Content-Type-Options"))
		assert.Equal(t, "DENY", rr.Header().Get("X-Frame-Options"))
		assert.Equal(t, "1; mode=block", rr.Header().Get("X-XSS-Protection"))
		assert.NotEmpty(t, rr.Header().Get("X-Request-ID"))
	})

	t.Run("metrics", func(t *testing.T) {
		rr := testutil.DoRequest(router, httptest.NewRequest(http.MethodGet, "/metrics", nil))
		testutil.AssertStatus(t, rr, http.StatusOK)
	})

	t.Run("unknown route", func(t *testing.T) {
		rr := testutil.DoRequest(router, httptest.NewRequest(http.MethodGet, "/nope", nil))
		testutil.AssertStatusAndError(t, rr, http.StatusNotFound, "not_found")
	})

	t.Run("CORS preflight from an allowed origin", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodOptions, "/api/todos", nil)
		req.Header.Set("Origin", "http://localhost:3000")
		req.Header.Set("Access-Control-Request-Method", http.MethodPost)
		rr := testutil.DoRequest(router, req)
		assert.Equal(t, "http://localhost:3000", rr.Header().Get("Access-Control-Allow-Origin"))
	})
}

func TestHealth(t *testing.T) {
	t.Run("healthy", func(t *testing.T) {
		router := newTestRouter(t, map[string]HealthCheck{
			"database": func(context.Context) error { return nil },
		})
		rr := testutil.DoRequest(router, httptest.NewRequest(http.MethodGet, "/health", nil))
		testutil.AssertStatus(t, rr, http.StatusOK)
		health := testutil.UnmarshalResponse[HealthResponse](t, rr)
		assert.Equal(t, "healthy", health.Status)
		assert.Equal(t, "taskboard", health.Service)
		assert.Equal(t, "test", health.Version)
		assert.Equal(t, "ok", health.Checks["database"])
	})

	t.Run("failing dependency", func(t *testing.T) {
		router := newTestRouter(t, map[string]HealthCheck{
			"database": func(context.Context) error { return nil },
			"redis":    func(context.Context) error { return errors.New("connection refused") },
		})
		rr := testutil.DoRequest(router, httptest.NewRequest(http.MethodGet, "/health", nil))
		testutil.AssertStatus(t, rr, http.StatusServiceUnavailable)
		health := testutil.UnmarshalResponse[HealthResponse](t, rr)
		assert.Equal(t, "unhealthy", health.Status)
		assert.Equal(t, "unavailable", health.Checks["redis"])
		assert.NotContains(t, rr.Body.String(), "connection refused")
	})
}

func TestTodoFlow(t *testing.T) {
	router := newTestRouter(t, nil)

	testutil.Given(t, "a signed-in user", func(t *testing.T) {
		rr := testutil.DoRequest(router, testutil.NewJSONRequest(t, http.MethodPost, "/api/auth/signup",
			map[string]string{"email": "flow@example.com", "name": "Flow", "password": "Str0ng!pass"}))
		testutil.AssertStatus(t, rr, http.StatusCreated)

		rr = testutil.DoRequest(router, testutil.NewJSONRequest(t, http.MethodPost, "/api/auth/signin",
			map[string]string{"email": "flow@example.com", "password": "Str0ng!pass"}))
		testutil.AssertStatus(t, rr, http.StatusOK)
		token := testutil.UnmarshalResponse[authhandler.SigninResponse](t, rr).Token
		require.NotEmpty(t, token)

		authed := func(method, path string, body any) *httptest.ResponseRecorder {
			return testutil.DoRequest(router, testutil.WithBearer(testutil.NewJSONRequest(t, method, path, body), token))
		}

		testutil.When(t, "a tagged todo is created", func(t *testing.T) {
			rr := authed(http.MethodPost, "/api/tags", map[string]string{"name": "work", "color_code": "#FF5733"})
			testutil.AssertStatus(t, rr, http.StatusCreated)
			tag := testutil.UnmarshalResponse[todohandler.TagResponse](t, rr)

			rr = authed(http.MethodPost, "/api/todos", map[string]any{"title": "Ship it", "tag_ids": []string{tag.ID.String()}})
			testutil.AssertStatus(t, rr, http.StatusCreated)

			testutil.Then(t, "it is listed with its tag", func(t *testing.T) {
				rr := authed(http.MethodGet, "/api/todos?tag_ids="+tag.ID.String(), nil)
				testutil.AssertStatus(t, rr, http.StatusOK)
				todos := *testutil.UnmarshalResponse[[]todohandler.TodoResponse](t, rr)
				require.Len(t, todos, 1)
				assert.Equal(t, "Ship it", todos[0].Title)
				require.Len(t, todos[0].Tags, 1)
				assert.Equal(t, "work", todos[0].Tags[0].Name)
			})
		})

		testutil.When(t, "the user signs out", func(t *testing.T) {
			rr := authed(http.MethodPost, "/api/auth/signout", nil)
			testutil.AssertStatus(t, rr, http.StatusOK)

			testutil.Then(t, "the token no longer reaches todos", func(t *testing.T) {
				rr := authed(http.MethodGet, "/api/todos", nil)
				testutil.AssertStatusAndError(t, rr, http.StatusUnauthorized, "unauthorized")
			})
		})
	})

	t.Run("todos require a bearer token", func(t *testing.T) {
		rr := testutil.DoRequest(router, httptest.NewRequest(http.MethodGet, "/api/todos", nil))
		testutil.AssertStatusAndError(t, rr, http.StatusUnauthorized, "unauthorized")
	})

	t.Run("non-JSON bodies are refused", func(t *testing.T) {
		req := testutil.NewRequestWithBody(t, http.MethodPost, "/api/auth/signup", "email=x")
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		rr := testutil.DoRequest(router, req)
		testutil.AssertStatus(t, rr, http.StatusUnsupportedMediaType)
	})
}

func TestSigninThrottleKeysOnPeerAddress(t *testing.T) {
	signin := func(router http.Handler, remote, forwardedFor string) int {
		req := testutil.NewJSONRequest(t, http.MethodPost, "/api/auth/signin",
			map[string]string{"email": "nobody@example.com", "password": "Wr0ng!pass"})
		req.RemoteAddr = remote
		req.Header.Set("X-Forwarded-For", forwardedFor)
		return testutil.DoRequest(router, req).Code
	}
	countAllowed := func(router http.Handler, remote string) int {
		allowed := 0
		for i := 0; i < 20; i++ {
			if signin(router, remote, fmt.Sprintf("198.51.100.%d", i+1)) != http.StatusTooManyRequests {
				allowed++
			}
		}
		return allowed
	}
	newLimiter := func() *middleware.IPRateLimiter {
		return middleware.NewIPRateLimiter(1, 2, slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil)),
			middleware.WithRateLimitClock(func() time.Time { return time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC) }))
	}

	t.Run("rotating X-Forwarded-For from one peer stays limited", func(t *testing.T) {
		router := buildTestRouter(t, nil, newLimiter().RateLimitByIP, nil)
		assert.Equal(t, 2, countAllowed(router, "203.0.113.10:40000"))
	})

	t.Run("forwarded clients are split only behind a trusted proxy", func(t *testing.T) {
		proxies, err := metadata.NewResolver([]string{"10.0.0.0/8"})
		require.NoError(t, err)
		router := buildTestRouter(t, nil, newLimiter().RateLimitByIP, proxies)

		assert.Equal(t, 20, countAllowed(router, "10.0.0.5:40000"))
		assert.Equal(t, 2, countAllowed(router, "203.0.113.11:40000"))
	})
}
