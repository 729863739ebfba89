// Package httpapi assembles the chi router: the middleware chain, the
// operational endpoints and every domain handler.
package httpapi

import (
	"context"
	"log/slog"
	"net/http"
	"sort"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"

	"taskboard/internal/platform/metrics"
	"taskboard/internal/platform/middleware"
	"taskboard/pkg/platform/httputil"
	"taskboard/pkg/platform/middleware/metadata"
	"taskboard/pkg/platform/middleware/requesttime"
)

const serviceName = "taskboard"

// healthCheckTimeout bounds each dependency ping made by /health.
const healthCheckTimeout = 2 * time.Second

// Registrar mounts a group of routes.
type Registrar interface {
	Register(r chi.Router)
}

// HealthCheck pings one dependency.
type HealthCheck func(ctx context.Context) error

// Config carries everything NewRouter needs. Nil Metrics disables latency
// recording; an empty HealthChecks map always reports healthy. A nil ClientIP
// takes the client address from the connection only.
type Config struct {
	Logger         *slog.Logger
	Metrics        *metrics.Metrics
	Version        string
	AllowedOrigins []string
	RequestTimeout time.Duration
	ClientIP       *metadata.Resolver
	HealthChecks   map[string]HealthCheck
	Handlers       []Registrar
}

// InfoResponse is returned by GET /.
type InfoResponse struct {
	Name    string `json:"name"`
	Version string `json:"version"`
	Health  string `json:"health"`
}

// HealthResponse is returned by GET /health.
type HealthResponse struct {
	Status  string            `json:"status"`
	Service string            `json:"service"`
	Version string            `json:"version"`
	Checks  map[string]string `json:"checks,omitempty"`
}

// NewRouter wires the middleware chain and all routes.
func NewRouter(cfg Config) http.Handler {
	r := chi.NewRouter()

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Authorization", "Content-Type", middleware.RequestIDHeader},
		ExposedHeaders:   []string{middleware.RequestIDHeader},
		AllowCredentials: true,
		MaxAge:           300,
	}))
	r.Use(middleware.SecurityHeaders)
	r.Use(middleware.RequestID)
	if cfg.ClientIP != nil {
		r.Use(cfg.ClientIP.Middleware)
	} else {
		r.Use(metadata.ClientMetadata)
	}
	r.Use(requesttime.Middleware)
	r.Use(middleware.Recovery(cfg.Logger))
	r.Use(middleware.Logger(cfg.Logger))
	r.Use(middleware.LatencyMiddleware(cfg.Metrics))
	if cfg.RequestTimeout > 0 {
		r.Use(middleware.Timeout(cfg.RequestTimeout))
	}
	r.Use(middleware.ContentTypeJSON)

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		httputil.WriteJSON(w, http.StatusNotFound, httputil.ErrorResponse{
			Error:            "not_found",
			ErrorDescription: "route not found",
		})
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		httputil.WriteJSON(w, http.StatusMethodNotAllowed, httputil.ErrorResponse{
			Error:            "method_not_allowed",
			ErrorDescription: "method not allowed",
		})
	})

	r.Get("/", func(w http.ResponseWriter, _ *http.Request) {
		httputil.WriteJSON(w, http.StatusOK, InfoResponse{
			Name:    serviceName,
			Version: cfg.Version,
			Health:  "/health",
		})
	})
	r.Get("/health", healthHandler(cfg))
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	for _, h := range cfg.Handlers {
		h.Register(r)
	}
	return r
}

// healthHandler pings every configured dependency and answers 503 when any
// of them fails. Failure details are logged, not returned.
func healthHandler(cfg Config) http.HandlerFunc {
	names := make([]string, 0, len(cfg.HealthChecks))
	for name := range cfg.HealthChecks {
		names = append(names, name)
	}
	sort.Strings(names)

	return func(w http.ResponseWriter, r *http.Request) {
		resp := HealthResponse{
			Status:  "healthy",
			Service: serviceName,
			Version: cfg.Version,
		}
		status := http.StatusOK
		for _, name := range names {
			ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
			err := cfg.HealthChecks[name](ctx)
			cancel()

			if resp.Checks == nil {
				resp.Checks = make(map[string]string, len(names))
			}
			if err != nil {
				cfg.Logger.WarnContext(r.Context(), "health check failed", "dependency", name, "error", err)
				resp.Checks[name] = "unavailable"
				resp.Status = "unhealthy"
				status = http.StatusServiceUnavailable
				continue
			}
			resp.Checks[name] = "ok"
		}
		httputil.WriteJSON(w, status, resp)
	}
}
