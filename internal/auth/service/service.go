package service

//go:generate mockgen -source=service.go -destination=mocks/mocks.go -package=mocks

import (
	"context"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"taskboard/internal/auth/metrics"
	"taskboard/internal/auth/models"
	"taskboard/pkg/attrs"
	id "taskboard/pkg/domain"
	dErrors "taskboard/pkg/domain-errors"
	"taskboard/pkg/platform/audit"
	"taskboard/pkg/requestcontext"
)

const (
	DefaultSessionTTL = 24 * time.Hour
	DefaultBcryptCost = 12
)

type UserStore interface {
	Create(ctx context.Context, user *models.User) error
	FindByID(ctx context.Context, userID id.UserID) (*models.User, error)
	FindByEmail(ctx context.Context, email string) (*models.User, error)
}

type SessionStore interface {
	Create(ctx context.Context, session *models.Session) error
	FindByID(ctx context.Context, sessionID id.SessionID) (*models.Session, error)
	FindByTokenHash(ctx context.Context, tokenHash string) (*models.Session, error)
	ListByUser(ctx context.Context, userID id.UserID) ([]*models.Session, error)
	Execute(ctx context.Context, sessionID id.SessionID, validate func(*models.Session) error, mutate func(*models.Session)) (*models.Session, error)
	RevokeSessionIfActive(ctx context.Context, sessionID id.SessionID, now time.Time) error
	RevokeExpired(ctx context.Context, now time.Time) (int, error)
}

type AuditPublisher interface {
	Emit(ctx context.Context, base audit.Event) error
}

// Config holds the credential and session settings.
type Config struct {
	SessionTTL time.Duration
	BcryptCost int
}

// Service owns accounts and sessions: sign-up, sign-in, bearer token
// resolution and revocation.
type Service struct {
	users          UserStore
	sessions       SessionStore
	cfg            Config
	logger         *slog.Logger
	auditPublisher AuditPublisher
	metrics        *metrics.Metrics
	tracer         trace.Tracer
}

type Option func(s *Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithAuditPublisher(publisher AuditPublisher) Option {
	return func(s *Service) {
		s.auditPublisher = publisher
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

func WithTracer(tracer trace.Tracer) Option {
	return func(s *Service) {
		s.tracer = tracer
	}
}

// New constructs a Service. Zero config values fall back to the defaults.
func New(users UserStore, sessions SessionStore, cfg Config, opts ...Option) *Service {
	if cfg.SessionTTL <= 0 {
		cfg.SessionTTL = DefaultSessionTTL
	}
	if cfg.BcryptCost == 0 {
		cfg.BcryptCost = DefaultBcryptCost
	}
	s := &Service{
		users:    users,
		sessions: sessions,
		cfg:      cfg,
		tracer:   otel.Tracer("taskboard/internal/auth/service"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CurrentUser returns the profile of an authenticated user.
func (s *Service) CurrentUser(ctx context.Context, userID id.UserID) (*models.User, error) {
	if userID.IsNil() {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "user ID required")
	}
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return nil, translateUserLookup(err, dErrors.CodeNotFound)
	}
	return user, nil
}

func (s *Service) startSpan(ctx context.Context, name string, kv ...attribute.KeyValue) (context.Context, trace.Span) {
	return s.tracer.Start(ctx, name, trace.WithAttributes(kv...))
}

// endSpan records err on span when it is a server-side failure.
func endSpan(span trace.Span, err error) {
	if err != nil && dErrors.HasCode(err, dErrors.CodeInternal) {
		span.RecordError(err)
		span.SetStatus(codes.Error, "internal error")
	}
	span.End()
}

func (s *Service) logAudit(ctx context.Context, event audit.AuditEvent, attributes ...any) {
	if requestID := requestcontext.RequestID(ctx); requestID != "" {
		attributes = append(attributes, "request_id", requestID)
	}
	args := append(attributes, "event", string(event), "log_type", "audit")
	if s.logger != nil {
		s.logger.InfoContext(ctx, string(event), args...)
	}
	if s.auditPublisher == nil {
		return
	}
	userID, _ := attrs.Extract[id.UserID](attributes, "user_id")
	err := s.auditPublisher.Emit(ctx, audit.Event{
		UserID:    userID,
		Subject:   attrs.ExtractString(attributes, "email"),
		Action:    string(event),
		Resource:  attrs.ExtractString(attributes, "session_id"),
		Reason:    attrs.ExtractString(attributes, "reason"),
		IP:        requestcontext.ClientIP(ctx),
		RequestID: requestcontext.RequestID(ctx),
	})
	if err != nil && s.logger != nil {
		s.logger.WarnContext(ctx, "failed to emit audit event", "event", string(event), "error", err)
	}
}
