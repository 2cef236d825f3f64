package service

import (
	"context"

	"github.com/regidesk/be-deed-forms/internal/errors"
	"github.com/regidesk/be-deed-forms/internal/logger"
	"github.com/regidesk/be-deed-forms/internal/model"
	"github.com/regidesk/be-deed-forms/internal/workflow"
)

// DeliveryService orchestrates the delivery negotiation sub-machine. It runs
// after final approval and is exempt from the content lock; like the review
// operations it persists with the conditional version write.
type DeliveryService struct {
	store    FormStore
	audit    AuditSink
	notifier Notifier
	log      *logger.Logger
}

// NewDeliveryService creates a new DeliveryService.
func NewDeliveryService(store FormStore, audit AuditSink, notifier Notifier, log *logger.Logger) *DeliveryService {
	return &DeliveryService{store: store, audit: audit, notifier: notifier, log: log}
}

// SetUserPreferenceRequest carries the owner's delivery choice.
type SetUserPreferenceRequest struct {
	FormID          string `json:"form_id"`
	Method          string `json:"method"`
	DeliveryAddress string `json:"delivery_address,omitempty"`
	ContactPhone    string `json:"contact_phone,omitempty"`
	ActorID         string `json:"actor_id"`
}

// SetUserPreference records the owner's delivery preference.
func (s *DeliveryService) SetUserPreference(ctx context.Context, req *SetUserPreferenceRequest) (*model.Form, error) {
	return s.apply(ctx, req.FormID, req.ActorID, "delivery_preference_set", func(f *model.Form) error {
		return workflow.SetUserPreference(f, model.DeliveryChoice{
			Method:          req.Method,
			DeliveryAddress: req.DeliveryAddress,
			ContactPhone:    req.ContactPhone,
		})
	})
}

// SetStaffDecisionRequest carries the delivery authority's override.
type SetStaffDecisionRequest struct {
	FormID          string `json:"form_id"`
	Method          string `json:"method"`
	DeliveryAddress string `json:"delivery_address,omitempty"`
	ContactPhone    string `json:"contact_phone,omitempty"`
	TrackingNumber  string `json:"tracking_number,omitempty"`
	Notes           string `json:"notes,omitempty"`
	ActorID         string `json:"actor_id"`
}

// SetStaffDecision records the delivery authority's decision, which always
// wins over the owner's preference.
func (s *DeliveryService) SetStaffDecision(ctx context.Context, req *SetStaffDecisionRequest) (*model.Form, error) {
	return s.apply(ctx, req.FormID, req.ActorID, "delivery_decided", func(f *model.Form) error {
		return workflow.SetStaffDecision(f, model.DeliveryDecision{
			Method:          req.Method,
			DeliveryAddress: req.DeliveryAddress,
			ContactPhone:    req.ContactPhone,
			TrackingNumber:  req.TrackingNumber,
			Notes:           req.Notes,
		})
	})
}

// MarkDispatched moves the delivery to dispatched with an optional tracking
// number.
func (s *DeliveryService) MarkDispatched(ctx context.Context, formID, trackingNumber, notes, actorID string) (*model.Form, error) {
	return s.apply(ctx, formID, actorID, "dispatched", func(f *model.Form) error {
		return workflow.MarkDispatched(f, trackingNumber, notes)
	})
}

// MarkDelivered closes the delivery flow.
func (s *DeliveryService) MarkDelivered(ctx context.Context, formID, notes, actorID string) (*model.Form, error) {
	return s.apply(ctx, formID, actorID, "delivered", func(f *model.Form) error {
		return workflow.MarkDelivered(f, notes)
	})
}

// CancelDelivery aborts a non-terminal delivery flow.
func (s *DeliveryService) CancelDelivery(ctx context.Context, formID, notes, actorID string) (*model.Form, error) {
	return s.apply(ctx, formID, actorID, "delivery_cancelled", func(f *model.Form) error {
		return workflow.CancelDelivery(f, notes)
	})
}

// GetDelivery returns a form's delivery state.
func (s *DeliveryService) GetDelivery(ctx context.Context, formID string) (*model.DeliveryState, error) {
	f, err := s.store.GetByID(ctx, formID)
	if err != nil {
		return nil, err
	}
	if f.Delivery == nil {
		return nil, errors.Newf(errors.ErrCodeNotFound,
			"form %s has no delivery state (not yet approved)", formID)
	}
	return f.Delivery, nil
}

// apply runs one delivery transition through the shared
// read-transition-write cycle.
func (s *DeliveryService) apply(ctx context.Context, formID, actorID, action string, fn func(f *model.Form) error) (*model.Form, error) {
	f, err := s.store.GetByID(ctx, formID)
	if err != nil {
		return nil, err
	}

	if err := fn(f); err != nil {
		return nil, err
	}
	if err := s.store.UpdateState(ctx, f); err != nil {
		return nil, err
	}

	deliveryStatus := ""
	if f.Delivery != nil {
		deliveryStatus = string(f.Delivery.Status)
	}

	s.log.Info().
		Str("form_id", f.ID).
		Str("action", action).
		Str("delivery_status", deliveryStatus).
		Msg("Delivery state updated")

	s.appendAudit(ctx, &model.AuditEntry{
		FormID:      f.ID,
		Action:      action,
		PerformedBy: actorID,
		Metadata:    map[string]any{"delivery_status": deliveryStatus},
	})
	s.notifier.PublishFormEvent("delivery_updated", f.ID, string(f.ServiceType), actorID, string(f.Status),
		map[string]any{"action": action, "delivery_status": deliveryStatus})
	return f, nil
}

func (s *DeliveryService) appendAudit(ctx context.Context, entry *model.AuditEntry) {
	if err := s.audit.Append(ctx, entry); err != nil {
		s.log.Warn().Err(err).
			Str("form_id", entry.FormID).
			Str("action", entry.Action).
			Msg("Failed to write audit log entry")
	}
}
