package service

//go:generate mockgen -source=service.go -destination=mocks/mocks.go -package=mocks

import (
	"context"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"taskboard/internal/todo/metrics"
	"taskboard/internal/todo/models"
	"taskboard/pkg/attrs"
	id "taskboard/pkg/domain"
	dErrors "taskboard/pkg/domain-errors"
	"taskboard/pkg/platform/audit"
	"taskboard/pkg/requestcontext"
)

type TodoStore interface {
	Create(ctx context.Context, todo *models.Todo) error
	FindByID(ctx context.Context, todoID id.TodoID) (*models.Todo, error)
	List(ctx context.Context, filter models.ListFilter) ([]*models.Todo, error)
	Update(ctx context.Context, todo *models.Todo) error
	Delete(ctx context.Context, todoID id.TodoID) error
	DetachTag(ctx context.Context, tagID id.TagID) error
}

type TagStore interface {
	Create(ctx context.Context, tag *models.Tag) error
	FindByID(ctx context.Context, tagID id.TagID) (*models.Tag, error)
	FindByIDs(ctx context.Context, tagIDs []id.TagID) ([]*models.Tag, error)
	ListByUser(ctx context.Context, userID id.UserID) ([]*models.Tag, error)
	Update(ctx context.Context, tag *models.Tag) error
	Delete(ctx context.Context, tagID id.TagID) error
}

type AuditPublisher interface {
	Emit(ctx context.Context, base audit.Event) error
}

// Service owns todos and tags. Every operation is scoped to the calling user:
// reading or changing another user's todo or tag is forbidden.
type Service struct {
	todos          TodoStore
	tags           TagStore
	tx             StoreTx
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

// WithStoreTx sets the transaction boundary. Postgres deployments pass one
// backed by a database transaction; the default serializes per user in memory.
func WithStoreTx(tx StoreTx) Option {
	return func(s *Service) {
		s.tx = tx
	}
}

// New constructs a Service.
func New(todos TodoStore, tags TagStore, opts ...Option) *Service {
	s := &Service{
		todos:  todos,
		tags:   tags,
		tracer: otel.Tracer("taskboard/internal/todo/service"),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.tx == nil {
		s.tx = NewInMemoryTx()
	}
	return s
}

func (s *Service) startSpan(ctx context.Context, name string, kv ...attribute.KeyValue) (context.Context, trace.Span) {
	return s.tracer.Start(ctx, name, trace.WithAttributes(kv...))
}

func endSpan(span trace.Span, err error) {
	if err != nil && dErrors.HasCode(err, dErrors.CodeInternal) {
		span.RecordError(err)
		span.SetStatus(codes.Error, "internal error")
	}
	span.End()
}

func requireUser(userID id.UserID) error {
	if userID.IsNil() {
		return dErrors.New(dErrors.CodeUnauthorized, "user ID required")
	}
	return nil
}

// toValidation converts model invariant violations into validation errors
// for the API response.
func toValidation(err error) error {
	if dErrors.HasCode(err, dErrors.CodeInvariantViolation) {
		return dErrors.New(dErrors.CodeValidation, err.Error())
	}
	return err
}

func (s *Service) denyAccess(ctx context.Context, userID id.UserID, resource string, attributes ...any) {
	attributes = append(attributes, "user_id", userID, "reason", resource+"_owner_mismatch")
	s.logAudit(ctx, audit.EventAccessDenied, attributes...)
	if s.metrics != nil {
		s.metrics.IncrementAccessDenied(resource)
	}
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
	resource := attrs.ExtractString(attributes, "todo_id")
	if resource == "" {
		resource = attrs.ExtractString(attributes, "tag_id")
	}
	err := s.auditPublisher.Emit(ctx, audit.Event{
		UserID:    userID,
		Subject:   attrs.ExtractString(attributes, "title"),
		Action:    string(event),
		Resource:  resource,
		Reason:    attrs.ExtractString(attributes, "reason"),
		IP:        requestcontext.ClientIP(ctx),
		RequestID: requestcontext.RequestID(ctx),
	})
	if err != nil && s.logger != nil {
		s.logger.WarnContext(ctx, "failed to emit audit event", "event", string(event), "error", err)
	}
}
