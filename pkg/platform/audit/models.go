// Package audit defines the audit trail events emitted by the auth and todo services.
package audit

import (
	"context"
	"time"

	id "taskboard/pkg/domain"
)

// EventCategory classifies audit events so sinks can route and retain them differently.
type EventCategory string

const (
	// CategoryCompliance covers account lifecycle events.
	CategoryCompliance EventCategory = "compliance"
	// CategorySecurity covers failed sign-ins, revocations and throttling.
	CategorySecurity EventCategory = "security"
	// CategoryOperations covers routine activity on todos and tags.
	CategoryOperations EventCategory = "operations"
)

// Event is emitted from service logic to capture key actions. It is
// transport-agnostic so stores and sinks can fan out.
type Event struct {
	Category  EventCategory `json:"category"`
	Timestamp time.Time     `json:"timestamp"`
	UserID    id.UserID     `json:"user_id"`
	Subject   string        `json:"subject,omitempty"`
	Action    string        `json:"action"`
	Resource  string        `json:"resource,omitempty"`
	Reason    string        `json:"reason,omitempty"`
	IP        string        `json:"ip,omitempty"`
	RequestID string        `json:"request_id,omitempty"`
}

// AuditEvent names an auditable action.
type AuditEvent string

const (
	EventUserCreated    AuditEvent = "user_created"
	EventAuthFailed     AuditEvent = "auth_failed"
	EventSessionCreated AuditEvent = "session_created"
	EventSessionRevoked AuditEvent = "session_revoked"
	EventSessionExpired AuditEvent = "session_expired"
	EventSessionsSwept  AuditEvent = "sessions_swept"

	EventTodoCreated AuditEvent = "todo_created"
	EventTodoUpdated AuditEvent = "todo_updated"
	EventTodoDeleted AuditEvent = "todo_deleted"
	EventTagCreated  AuditEvent = "tag_created"
	EventTagUpdated  AuditEvent = "tag_updated"
	EventTagDeleted  AuditEvent = "tag_deleted"

	EventAccessDenied AuditEvent = "access_denied"
)

var eventCategories = map[AuditEvent]EventCategory{
	EventUserCreated: CategoryCompliance,

	EventAuthFailed:     CategorySecurity,
	EventSessionRevoked: CategorySecurity,
	EventSessionExpired: CategorySecurity,
	EventSessionsSwept:  CategorySecurity,
	EventAccessDenied:   CategorySecurity,

	EventSessionCreated: CategoryOperations,
	EventTodoCreated:    CategoryOperations,
	EventTodoUpdated:    CategoryOperations,
	EventTodoDeleted:    CategoryOperations,
	EventTagCreated:     CategoryOperations,
	EventTagUpdated:     CategoryOperations,
	EventTagDeleted:     CategoryOperations,
}

// Category returns the EventCategory for this audit event.
// Unknown events default to CategoryOperations.
func (e AuditEvent) Category() EventCategory {
	if cat, ok := eventCategories[e]; ok {
		return cat
	}
	return CategoryOperations
}

// Store persists or forwards audit events.
type Store interface {
	Append(ctx context.Context, event Event) error
}

// Discard is a Store that keeps nothing. The services log every audit event
// with log_type=audit, so the log stream is the trail when no sink is configured.
type Discard struct{}

func (Discard) Append(context.Context, Event) error { return nil }
