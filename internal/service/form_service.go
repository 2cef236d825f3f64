package service

import (
	"context"

	"github.com/regidesk/be-deed-forms/internal/errors"
	"github.com/regidesk/be-deed-forms/internal/logger"
	"github.com/regidesk/be-deed-forms/internal/model"
	"github.com/regidesk/be-deed-forms/internal/workflow"
)

// FormService handles form lifecycle outside the staff review operations:
// creation, reads, owner submission and administrative cancellation.
type FormService struct {
	store    FormStore
	audit    AuditSink
	notifier Notifier
	log      *logger.Logger
}

// NewFormService creates a new FormService.
func NewFormService(store FormStore, audit AuditSink, notifier Notifier, log *logger.Logger) *FormService {
	return &FormService{store: store, audit: audit, notifier: notifier, log: log}
}

// CreateFormRequest carries a new form submission payload.
type CreateFormRequest struct {
	ServiceType string         `json:"service_type"`
	ApplicantID string         `json:"applicant_id"`
	Fields      map[string]any `json:"fields"`
}

// CreateForm stores a new draft with all five review stages pending.
func (s *FormService) CreateForm(ctx context.Context, req *CreateFormRequest) (*model.Form, error) {
	serviceType, ok := model.ParseServiceType(req.ServiceType)
	if !ok {
		return nil, errors.InvalidInput("service_type", "unknown service type")
	}
	if req.ApplicantID == "" {
		return nil, errors.InvalidInput("applicant_id", "applicant id is required")
	}

	f := &model.Form{
		ServiceType: serviceType,
		ApplicantID: req.ApplicantID,
		Fields:      req.Fields,
		Status:      model.FormStatusDraft,
		Approvals:   model.NewLedger(),
	}
	if f.Fields == nil {
		f.Fields = map[string]any{}
	}

	if err := s.store.Create(ctx, f); err != nil {
		return nil, err
	}

	s.log.Info().
		Str("form_id", f.ID).
		Str("service_type", string(f.ServiceType)).
		Msg("Form created")

	s.appendAudit(ctx, &model.AuditEntry{
		FormID:      f.ID,
		Action:      "created",
		PerformedBy: req.ApplicantID,
		StatusAfter: statusPtr(f.Status),
		Metadata:    map[string]any{"service_type": string(f.ServiceType)},
	})
	return f, nil
}

// GetForm retrieves a form by id.
func (s *FormService) GetForm(ctx context.Context, id string) (*model.Form, error) {
	if id == "" {
		return nil, errors.InvalidInput("id", "form id is required")
	}
	return s.store.GetByID(ctx, id)
}

// ListForms returns a filtered page of forms with the total count.
func (s *FormService) ListForms(
	ctx context.Context,
	serviceType, status, applicantID *string,
	page, pageSize int,
) ([]*model.Form, int, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 100 {
		pageSize = 50
	}
	return s.store.List(ctx, serviceType, status, applicantID, page, pageSize)
}

// SubmitForm moves an owner's draft into the review pipeline.
func (s *FormService) SubmitForm(ctx context.Context, formID, actorID string) (*model.Form, error) {
	f, err := s.store.GetByID(ctx, formID)
	if err != nil {
		return nil, err
	}

	before := f.Status
	if err := workflow.Submit(f); err != nil {
		return nil, err
	}
	if err := s.store.UpdateState(ctx, f); err != nil {
		return nil, err
	}

	s.log.Info().Str("form_id", f.ID).Msg("Form submitted for review")

	s.appendAudit(ctx, &model.AuditEntry{
		FormID:       f.ID,
		Action:       "submitted",
		PerformedBy:  actorID,
		StatusBefore: statusPtr(before),
		StatusAfter:  statusPtr(f.Status),
	})
	s.notifier.PublishFormEvent("form_submitted", f.ID, string(f.ServiceType), actorID, string(f.Status), nil)
	return f, nil
}

// CancelForm is the administrative cancellation from any non-terminal status.
func (s *FormService) CancelForm(ctx context.Context, formID, actorID, reason string) (*model.Form, error) {
	f, err := s.store.GetByID(ctx, formID)
	if err != nil {
		return nil, err
	}

	before := f.Status
	if err := workflow.Cancel(f, actorID, reason); err != nil {
		return nil, err
	}
	if err := s.store.UpdateState(ctx, f); err != nil {
		return nil, err
	}

	s.appendAudit(ctx, &model.AuditEntry{
		FormID:       f.ID,
		Action:       "cancelled",
		PerformedBy:  actorID,
		StatusBefore: statusPtr(before),
		StatusAfter:  statusPtr(f.Status),
		Metadata:     map[string]any{"reason": reason},
	})
	s.notifier.PublishFormEvent("form_cancelled", f.ID, string(f.ServiceType), actorID, string(f.Status), nil)
	return f, nil
}

// FormStatusView is the read-only pipeline position of a form.
type FormStatusView struct {
	FormID                 string                                  `json:"form_id"`
	Status                 model.FormStatus                        `json:"status"`
	VerificationStageLabel string                                  `json:"verification_stage_label"`
	ReadyForStage          map[model.StageID]bool                  `json:"ready_for_stage"`
	Approvals              map[model.StageID]*model.ApprovalRecord `json:"approvals"`
}

// FormStatus computes the display view of a form's pipeline position. Pure
// read; no side effects.
func (s *FormService) FormStatus(ctx context.Context, formID string) (*FormStatusView, error) {
	f, err := s.store.GetByID(ctx, formID)
	if err != nil {
		return nil, err
	}

	ready := make(map[model.StageID]bool, len(model.Stages))
	for _, stage := range model.Stages {
		ready[stage] = workflow.ReadyForStage(f, stage)
	}
	return &FormStatusView{
		FormID:                 f.ID,
		Status:                 f.Status,
		VerificationStageLabel: workflow.VerificationStageLabel(f),
		ReadyForStage:          ready,
		Approvals:              f.Approvals,
	}, nil
}

// appendAudit writes an audit entry and logs a warning on failure (never
// returns an error).
func (s *FormService) appendAudit(ctx context.Context, entry *model.AuditEntry) {
	if err := s.audit.Append(ctx, entry); err != nil {
		s.log.Warn().Err(err).
			Str("form_id", entry.FormID).
			Str("action", entry.Action).
			Msg("Failed to write audit log entry")
	}
}

func statusPtr(s model.FormStatus) *string {
	v := string(s)
	return &v
}

func stagePtr(s model.StageID) *string {
	v := string(s)
	return &v
}
