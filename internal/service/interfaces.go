package service

import (
	"context"

	"github.com/regidesk/be-deed-forms/internal/model"
)

// FormStore is the persistence contract the services depend on. The pgx
// repository implements it; tests use an in-memory fake. UpdateState must be
// conditional on the form's read version and fail with
// CONCURRENT_MODIFICATION when another writer advanced it.
type FormStore interface {
	Create(ctx context.Context, f *model.Form) error
	GetByID(ctx context.Context, id string) (*model.Form, error)
	List(ctx context.Context, serviceType, status, applicantID *string, page, pageSize int) ([]*model.Form, int, error)
	UpdateState(ctx context.Context, f *model.Form) error
}

// AuditSink receives immutable audit entries. Failures are logged, never
// propagated: audit is best-effort relative to the transition itself, whose
// own history lives in the form document.
type AuditSink interface {
	Append(ctx context.Context, entry *model.AuditEntry) error
	GetByFormID(ctx context.Context, formID string) ([]*model.AuditEntry, error)
}

// Notifier publishes workflow events to the notification transport.
type Notifier interface {
	PublishFormEvent(eventType, formID, serviceType, actorID, status string, payload map[string]any)
}

// NopNotifier discards all events; used when NATS is not configured and in
// tests.
type NopNotifier struct{}

// PublishFormEvent implements Notifier.
func (NopNotifier) PublishFormEvent(string, string, string, string, string, map[string]any) {}
