package service

import (
	"context"

	"github.com/regidesk/be-deed-forms/internal/errors"
	"github.com/regidesk/be-deed-forms/internal/logger"
	"github.com/regidesk/be-deed-forms/internal/model"
	"github.com/regidesk/be-deed-forms/internal/workflow"
)

// ReviewService orchestrates the staff review operations. Every operation is
// a read-transition-write cycle: load the form, run the in-memory workflow
// transition, persist conditionally on the read version. A version race
// surfaces as CONCURRENT_MODIFICATION and the caller re-reads and retries;
// nothing is retried here.
type ReviewService struct {
	store    FormStore
	audit    AuditSink
	notifier Notifier
	log      *logger.Logger
}

// NewReviewService creates a new ReviewService.
func NewReviewService(store FormStore, audit AuditSink, notifier Notifier, log *logger.Logger) *ReviewService {
	return &ReviewService{store: store, audit: audit, notifier: notifier, log: log}
}

// Verify records a sequential stage sign-off (staff1..staff3). Re-verifying
// an approved stage returns the current state without writing.
func (s *ReviewService) Verify(ctx context.Context, formID, stage, notes, actorID string) (*model.Form, error) {
	stageID, ok := model.ParseStage(stage)
	if !ok {
		return nil, errors.InvalidInput("stage", "unknown stage id")
	}

	f, err := s.store.GetByID(ctx, formID)
	if err != nil {
		return nil, err
	}

	before := f.Status
	changed, err := workflow.Verify(f, stageID, notes)
	if err != nil {
		return nil, err
	}
	if !changed {
		return f, nil
	}
	if err := s.store.UpdateState(ctx, f); err != nil {
		return nil, err
	}

	s.log.Info().
		Str("form_id", f.ID).
		Str("stage", stage).
		Str("status", string(f.Status)).
		Msg("Stage verified")

	s.appendAudit(ctx, &model.AuditEntry{
		FormID:       f.ID,
		Stage:        stagePtr(stageID),
		Action:       "verified",
		PerformedBy:  actorID,
		StatusBefore: statusPtr(before),
		StatusAfter:  statusPtr(f.Status),
	})
	s.notifier.PublishFormEvent("stage_verified", f.ID, string(f.ServiceType), actorID, string(f.Status),
		map[string]any{"stage": stage})
	return f, nil
}

// RequestCorrectionRequest carries a correction demand from a review stage.
// TargetStage defaults to the acting stage; UpdatedFields, when present, are
// diffed and written through.
type RequestCorrectionRequest struct {
	FormID        string         `json:"form_id"`
	Stage         string         `json:"stage"`
	TargetStage   string         `json:"target_stage,omitempty"`
	Notes         string         `json:"notes"`
	UpdatedFields map[string]any `json:"updated_fields,omitempty"`
	ActorID       string         `json:"actor_id"`
}

// RequestCorrection flags a stage's data for rework and records the field
// diff in the verification history. Returns the history entry produced.
func (s *ReviewService) RequestCorrection(ctx context.Context, req *RequestCorrectionRequest) (*model.Form, *model.HistoryEntry, error) {
	stageID, ok := model.ParseStage(req.Stage)
	if !ok {
		return nil, nil, errors.InvalidInput("stage", "unknown stage id")
	}
	var targetID model.StageID
	if req.TargetStage != "" {
		if targetID, ok = model.ParseStage(req.TargetStage); !ok {
			return nil, nil, errors.InvalidInput("target_stage", "unknown stage id")
		}
	}

	f, err := s.store.GetByID(ctx, req.FormID)
	if err != nil {
		return nil, nil, err
	}

	before := f.Status
	entry, err := workflow.RequestCorrection(f, stageID, targetID, req.Notes, req.UpdatedFields)
	if err != nil {
		return nil, nil, err
	}
	if err := s.store.UpdateState(ctx, f); err != nil {
		return nil, nil, err
	}

	s.log.Info().
		Str("form_id", f.ID).
		Str("stage", req.Stage).
		Int("corrections", len(entry.Corrections)).
		Msg("Correction requested")

	s.appendAudit(ctx, &model.AuditEntry{
		FormID:       f.ID,
		Stage:        stagePtr(stageID),
		Action:       "correction_requested",
		PerformedBy:  req.ActorID,
		StatusBefore: statusPtr(before),
		StatusAfter:  statusPtr(f.Status),
		Metadata: map[string]any{
			"target_stage": req.TargetStage,
			"corrections":  len(entry.Corrections),
		},
	})
	s.notifier.PublishFormEvent("correction_requested", f.ID, string(f.ServiceType), req.ActorID, string(f.Status),
		map[string]any{"stage": req.Stage})
	return f, entry, nil
}

// CrossVerifyRequest carries staff4's whole-ledger review outcome.
type CrossVerifyRequest struct {
	FormID        string         `json:"form_id"`
	Approved      bool           `json:"approved"`
	Notes         string         `json:"notes,omitempty"`
	UpdatedFields map[string]any `json:"updated_fields,omitempty"`
	ActorID       string         `json:"actor_id"`
}

// CrossVerify runs staff4's cross-verification across all prior stages.
// Returns the corrections recorded, if any.
func (s *ReviewService) CrossVerify(ctx context.Context, req *CrossVerifyRequest) (*model.Form, []model.FieldCorrection, error) {
	f, err := s.store.GetByID(ctx, req.FormID)
	if err != nil {
		return nil, nil, err
	}

	before := f.Status
	changed, entry, err := workflow.CrossVerify(f, req.Approved, req.Notes, req.UpdatedFields)
	if err != nil {
		return nil, nil, err
	}
	if !changed {
		return f, nil, nil
	}
	if err := s.store.UpdateState(ctx, f); err != nil {
		return nil, nil, err
	}

	var corrections []model.FieldCorrection
	if entry != nil {
		corrections = entry.Corrections
	}

	s.log.Info().
		Str("form_id", f.ID).
		Bool("approved", req.Approved).
		Int("corrections", len(corrections)).
		Msg("Cross-verification recorded")

	s.appendAudit(ctx, &model.AuditEntry{
		FormID:       f.ID,
		Stage:        stagePtr(model.StageStaff4),
		Action:       "cross_verified",
		PerformedBy:  req.ActorID,
		StatusBefore: statusPtr(before),
		StatusAfter:  statusPtr(f.Status),
		Metadata: map[string]any{
			"approved":    req.Approved,
			"corrections": len(corrections),
		},
	})
	s.notifier.PublishFormEvent("cross_verified", f.ID, string(f.ServiceType), req.ActorID, string(f.Status),
		map[string]any{"approved": req.Approved})
	return f, corrections, nil
}

// FinalApprove runs staff5's terminal decision and locks the ledger.
func (s *ReviewService) FinalApprove(ctx context.Context, formID, decision, remarks, actorID string) (*model.Form, error) {
	dec, ok := model.ParseFinalDecision(decision)
	if !ok {
		return nil, errors.InvalidInput("decision", `must be "approved" or "rejected"`)
	}

	f, err := s.store.GetByID(ctx, formID)
	if err != nil {
		return nil, err
	}

	before := f.Status
	if err := workflow.FinalApprove(f, dec, remarks); err != nil {
		return nil, err
	}
	if err := s.store.UpdateState(ctx, f); err != nil {
		return nil, err
	}

	s.log.Info().
		Str("form_id", f.ID).
		Str("decision", decision).
		Msg("Final decision recorded, form locked")

	s.appendAudit(ctx, &model.AuditEntry{
		FormID:       f.ID,
		Stage:        stagePtr(model.StageStaff5),
		Action:       "final_" + decision,
		PerformedBy:  actorID,
		StatusBefore: statusPtr(before),
		StatusAfter:  statusPtr(f.Status),
		Metadata:     map[string]any{"remarks": remarks},
	})
	s.notifier.PublishFormEvent("final_decision", f.ID, string(f.ServiceType), actorID, string(f.Status),
		map[string]any{"decision": decision})
	return f, nil
}

// History returns a form's verification history, oldest first.
func (s *ReviewService) History(ctx context.Context, formID string) ([]model.HistoryEntry, error) {
	f, err := s.store.GetByID(ctx, formID)
	if err != nil {
		return nil, err
	}
	return f.VerificationHistory, nil
}

// AuditTrail returns a form's audit log from the audit sink.
func (s *ReviewService) AuditTrail(ctx context.Context, formID string) ([]*model.AuditEntry, error) {
	if _, err := s.store.GetByID(ctx, formID); err != nil {
		return nil, err
	}
	return s.audit.GetByFormID(ctx, formID)
}

func (s *ReviewService) appendAudit(ctx context.Context, entry *model.AuditEntry) {
	if err := s.audit.Append(ctx, entry); err != nil {
		s.log.Warn().Err(err).
			Str("form_id", entry.FormID).
			Str("action", entry.Action).
			Msg("Failed to write audit log entry")
	}
}
