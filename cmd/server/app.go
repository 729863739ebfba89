package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/twmb/franz-go/pkg/kadm"
	"github.com/twmb/franz-go/pkg/kgo"

	"taskboard/internal/auth/adapters"
	authhandler "taskboard/internal/auth/handler"
	authmetrics "taskboard/internal/auth/metrics"
	authservice "taskboard/internal/auth/service"
	sessionStore "taskboard/internal/auth/store/session"
	userStore "taskboard/internal/auth/store/user"
	httpapi "taskboard/internal/http"
	"taskboard/internal/platform/config"
	"taskboard/internal/platform/metrics"
	"taskboard/internal/platform/middleware"
	"taskboard/internal/platform/postgres"
	redisclient "taskboard/internal/platform/redis"
	todohandler "taskboard/internal/todo/handler"
	todometrics "taskboard/internal/todo/metrics"
	todoservice "taskboard/internal/todo/service"
	tagStore "taskboard/internal/todo/store/tag"
	todoStore "taskboard/internal/todo/store/todo"
	"taskboard/pkg/platform/audit"
	auditkafka "taskboard/pkg/platform/audit/kafka"
	"taskboard/pkg/platform/audit/publisher"
	authmw "taskboard/pkg/platform/middleware/auth"
	"taskboard/pkg/platform/middleware/metadata"
)

const (
	auditBufferSize      = 256
	auditTopicPartitions = 3
	auditTopicReplicas   = 1
)

// app owns every long-lived dependency of the process.
type app struct {
	cfg    config.Config
	logger *slog.Logger

	db        *sql.DB
	redis     *redisclient.Client
	kafka     *kgo.Client
	auditSink *auditkafka.Store
	audit     *publisher.Publisher

	clientIP *metadata.Resolver
	auth     *authservice.Service
	todos    *todoservice.Service
}

// newApp connects the configured backends and builds the services. Close
// releases whatever was opened, also after a partial failure.
func newApp(ctx context.Context, cfg config.Config, logger *slog.Logger) (_ *app, err error) {
	a := &app{cfg: cfg, logger: logger}
	defer func() {
		if err != nil {
			a.Close()
		}
	}()

	if a.clientIP, err = metadata.NewResolver(cfg.TrustedProxies); err != nil {
		return nil, err
	}
	if cfg.UsePostgres() {
		if a.db, err = postgres.Open(ctx, cfg.Database); err != nil {
			return nil, err
		}
	}
	if a.redis, err = redisclient.New(ctx, cfg.Redis); err != nil {
		return nil, err
	}

	auditStore, err := a.auditStore(ctx)
	if err != nil {
		return nil, err
	}
	a.audit = publisher.NewPublisher(auditStore,
		publisher.WithAsyncBuffer(auditBufferSize),
		publisher.WithLogger(logger),
	)

	users, sessions, err := a.authStores()
	if err != nil {
		return nil, err
	}
	a.auth = authservice.New(users, sessions,
		authservice.Config{SessionTTL: cfg.Auth.SessionTTL, BcryptCost: cfg.Auth.BcryptCost},
		authservice.WithLogger(logger),
		authservice.WithAuditPublisher(a.audit),
		authservice.WithMetrics(authmetrics.New()),
	)

	todoOpts := []todoservice.Option{
		todoservice.WithLogger(logger),
		todoservice.WithAuditPublisher(a.audit),
		todoservice.WithMetrics(todometrics.New()),
	}
	if a.db != nil {
		todoOpts = append(todoOpts, todoservice.WithStoreTx(newTodoPostgresTx(a.db)))
		a.todos = todoservice.New(todoStore.NewPostgres(a.db), tagStore.NewPostgres(a.db), todoOpts...)
	} else {
		a.todos = todoservice.New(todoStore.New(), tagStore.New(), todoOpts...)
	}

	logger.InfoContext(ctx, "backends ready",
		"postgres", a.db != nil,
		"session_store", cfg.ResolvedSessionStore(),
		"kafka_audit", a.kafka != nil,
	)
	return a, nil
}

// auditStore publishes to Kafka when brokers are configured. Without brokers
// the audit trail is the service log only.
func (a *app) auditStore(ctx context.Context) (audit.Store, error) {
	if len(a.cfg.Audit.KafkaBrokers) == 0 {
		return audit.Discard{}, nil
	}
	client, err := auditkafka.NewClient(a.cfg.Audit.KafkaBrokers, a.cfg.Audit.KafkaTopic)
	if err != nil {
		return nil, err
	}
	a.kafka = client
	if err := auditkafka.EnsureTopic(ctx, kadm.NewClient(client), a.cfg.Audit.KafkaTopic, auditTopicPartitions, auditTopicReplicas); err != nil {
		return nil, err
	}
	a.auditSink = auditkafka.New(client, a.cfg.Audit.KafkaTopic, a.logger)
	return a.auditSink, nil
}

func (a *app) authStores() (authservice.UserStore, authservice.SessionStore, error) {
	var users authservice.UserStore = userStore.New()
	if a.db != nil {
		users = userStore.NewPostgres(a.db)
	}

	switch backend := a.cfg.ResolvedSessionStore(); backend {
	case config.SessionStoreMemory:
		return users, sessionStore.New(), nil
	case config.SessionStorePostgres:
		return users, sessionStore.NewPostgres(a.db), nil
	case config.SessionStoreRedis:
		if a.redis == nil {
			return nil, nil, errors.New("redis session store selected but REDIS_URL is empty")
		}
		return users, sessionStore.NewRedis(a.redis.Client), nil
	default:
		return nil, nil, fmt.Errorf("unknown session store %q", backend)
	}
}

// router builds the HTTP handler with every route mounted.
func (a *app) router() http.Handler {
	requireAuth := authmw.RequireSession(adapters.NewSessionAuthenticator(a.auth), a.logger)
	limiter := middleware.NewIPRateLimiter(a.cfg.Auth.RateLimitRPS, a.cfg.Auth.RateLimitBurst, a.logger,
		middleware.WithRateLimitDisabled(a.cfg.Auth.RateLimitDisabled),
	)

	checks := map[string]httpapi.HealthCheck{}
	if a.db != nil {
		checks["database"] = a.db.PingContext
	}
	if a.redis != nil {
		checks["redis"] = a.redis.Health
	}
	if a.auditSink != nil {
		checks["kafka"] = a.auditSink.Health
	}

	return httpapi.NewRouter(httpapi.Config{
		Logger:         a.logger,
		Metrics:        metrics.New(),
		Version:        version,
		AllowedOrigins: a.cfg.CORS.AllowedOrigins,
		RequestTimeout: a.cfg.RequestTimeout,
		ClientIP:       a.clientIP,
		HealthChecks:   checks,
		Handlers: []httpapi.Registrar{
			authhandler.New(a.auth, a.logger, requireAuth, limiter.RateLimitByIP),
			todohandler.New(a.todos, a.logger, requireAuth),
		},
	})
}

// Close flushes pending audit events before the sinks go away.
func (a *app) Close() {
	if a.audit != nil {
		if err := a.audit.Close(); err != nil {
			a.logger.Warn("audit publisher close failed", "error", err)
		}
	}
	if a.kafka != nil {
		a.kafka.Close()
	}
	if a.redis != nil {
		_ = a.redis.Close()
	}
	if a.db != nil {
		_ = a.db.Close()
	}
}
