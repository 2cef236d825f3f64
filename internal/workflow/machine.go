// Package workflow implements the sequential five-stage review state machine
// for deed forms, the delivery negotiation sub-machine and the append-only
// verification history tracker.
//
// Every operation here is a synchronous, in-memory transition on a single
// form: it validates preconditions against the approval ledger, applies the
// new state and appends history, or returns a typed error without touching
// the form. Persistence, retries and concurrency control belong to the
// service layer.
package workflow

import (
	"time"

	"github.com/regidesk/be-deed-forms/internal/errors"
	"github.com/regidesk/be-deed-forms/internal/model"
)

// statusAfterVerify maps a verifying stage to the form status it advances to.
var statusAfterVerify = map[model.StageID]model.FormStatus{
	model.StageStaff1: model.FormStatusStaff2Review,
	model.StageStaff2: model.FormStatusStaff3Review,
	model.StageStaff3: model.FormStatusPendingCrossVerif,
}

// guardMutable rejects content mutation on locked or terminal forms. The
// single lock check for every content-mutating operation lives here.
func guardMutable(f *model.Form) error {
	if f.Locked() {
		return errors.New(errors.ErrCodeFormLocked, "form is locked by final approval")
	}
	if f.Status.IsTerminal() {
		return errors.Newf(errors.ErrCodeInvalidTransition,
			"form is in terminal status %q", f.Status)
	}
	return nil
}

// priorStagesApproved checks that every stage before ordinal upTo has signed off.
func priorStagesApproved(f *model.Form, upTo int) (model.StageID, bool) {
	for _, stage := range model.Stages {
		if stage.Ordinal() >= upTo {
			break
		}
		if !f.Approval(stage).Approved {
			return stage, false
		}
	}
	return "", true
}

// Submit transitions an owner's draft into the review pipeline.
func Submit(f *model.Form) error {
	if err := guardMutable(f); err != nil {
		return err
	}
	if f.Status != model.FormStatusDraft {
		return errors.Newf(errors.ErrCodeInvalidTransition,
			"form cannot be submitted from status %q", f.Status)
	}
	f.Status = model.FormStatusSubmitted
	Record(f, model.ActorOwner, "submitted", "", nil)
	return nil
}

// Verify records a sequential stage's sign-off and advances the form to the
// next review state. Only staff1..staff3 verify here; staff4 acts through
// CrossVerify and staff5 through FinalApprove.
//
// Re-verifying an already-approved stage is a no-op (changed == false) so
// duplicated client retries never error or double-append history.
func Verify(f *model.Form, stage model.StageID, notes string) (changed bool, err error) {
	if err := guardMutable(f); err != nil {
		return false, err
	}
	if !stage.Valid() || stage.Ordinal() > model.StageStaff3.Ordinal() {
		return false, errors.InvalidInput("stage",
			"verify accepts staff1..staff3; staff4 uses cross-verify, staff5 uses final approval")
	}
	if f.Status == model.FormStatusDraft {
		return false, errors.New(errors.ErrCodeInvalidTransition, "form has not been submitted")
	}

	rec := f.Approval(stage)
	if rec.Approved {
		return false, nil
	}
	if blocker, ok := priorStagesApproved(f, stage.Ordinal()); !ok {
		return false, errors.Newf(errors.ErrCodeStagePreconditionUnmet,
			"stage %s has not approved yet", blocker)
	}

	now := time.Now().UTC()
	rec.Approved = true
	rec.Status = model.ApprovalStatusVerified
	rec.Notes = notes
	rec.VerifiedAt = &now
	f.Status = statusAfterVerify[stage]
	Record(f, string(stage), "verified", notes, nil)
	return true, nil
}

// RequestCorrection flags a stage's data as needing rework. The acting stage
// may target itself or an earlier stage; later stages' approval flags are
// deliberately left untouched — the history entry is the source of truth for
// what changed. When updatedFields is supplied the differing values are
// recorded as corrections and written through to the form's fields.
func RequestCorrection(
	f *model.Form,
	actingStage, targetStage model.StageID,
	notes string,
	updatedFields map[string]any,
) (*model.HistoryEntry, error) {
	if err := guardMutable(f); err != nil {
		return nil, err
	}
	if !actingStage.Valid() {
		return nil, errors.InvalidInput("stage", "unknown stage id")
	}
	if targetStage == "" {
		targetStage = actingStage
	}
	if !targetStage.Valid() {
		return nil, errors.InvalidInput("targetStage", "unknown stage id")
	}
	if targetStage.Ordinal() > actingStage.Ordinal() {
		return nil, errors.InvalidInput("targetStage",
			"a stage can only flag itself or an earlier stage")
	}
	if notes == "" {
		return nil, errors.InvalidInput("notes", "correction notes are required")
	}
	if f.Status == model.FormStatusDraft {
		return nil, errors.New(errors.ErrCodeInvalidTransition, "form has not been submitted")
	}

	var corrections []model.FieldCorrection
	if len(updatedFields) > 0 {
		corrections = DiffFields(f.Fields, updatedFields, string(actingStage))
		ApplyFields(f, updatedFields)
	}

	rec := f.Approval(targetStage)
	rec.Approved = false
	rec.Status = model.ApprovalStatusNeedsCorrection
	rec.Notes = notes

	f.Status = model.FormStatusNeedsCorrection
	entry := Record(f, string(actingStage), "correction_requested", notes, corrections)
	return entry, nil
}

// CrossVerify is staff4's re-examination of all prior stages' data as a
// single unit. It requires staff1..staff3 approved regardless of the
// outcome. On approval the form advances to final review; otherwise staff4's
// record (and the history diff) flags the rework without resetting any other
// stage's approval.
func CrossVerify(
	f *model.Form,
	approved bool,
	notes string,
	updatedFields map[string]any,
) (changed bool, entry *model.HistoryEntry, err error) {
	if err := guardMutable(f); err != nil {
		return false, nil, err
	}
	if f.Status == model.FormStatusDraft {
		return false, nil, errors.New(errors.ErrCodeInvalidTransition, "form has not been submitted")
	}
	if blocker, ok := priorStagesApproved(f, model.StageStaff4.Ordinal()); !ok {
		return false, nil, errors.Newf(errors.ErrCodeStagePreconditionUnmet,
			"stage %s has not approved yet", blocker)
	}

	rec := f.Approval(model.StageStaff4)
	if rec.Approved && approved && len(updatedFields) == 0 {
		return false, nil, nil
	}
	if !approved && notes == "" {
		return false, nil, errors.InvalidInput("notes", "rejection notes are required")
	}

	var corrections []model.FieldCorrection
	if len(updatedFields) > 0 {
		corrections = DiffFields(f.Fields, updatedFields, string(model.StageStaff4))
		ApplyFields(f, updatedFields)
	}

	if approved {
		now := time.Now().UTC()
		rec.Approved = true
		rec.Status = model.ApprovalStatusVerified
		rec.Notes = notes
		rec.VerifiedAt = &now
		f.Status = model.FormStatusPendingFinal
		entry = Record(f, string(model.StageStaff4), "cross_verified", notes, corrections)
		return true, entry, nil
	}

	rec.Approved = false
	rec.Status = model.ApprovalStatusNeedsCorrection
	rec.Notes = notes
	f.Status = model.FormStatusNeedsCorrection
	entry = Record(f, string(model.StageStaff4), "correction_requested", notes, corrections)
	return true, entry, nil
}

// FinalApprove is staff5's terminal decision. It requires all four prior
// stages approved, locks the ledger and moves the form through
// locked_by_staff5 into its terminal status. An approved form becomes
// delivery-eligible and gets its delivery state initialized.
func FinalApprove(f *model.Form, decision model.FinalDecision, remarks string) error {
	if err := guardMutable(f); err != nil {
		return err
	}
	if f.Status == model.FormStatusDraft {
		return errors.New(errors.ErrCodeInvalidTransition, "form has not been submitted")
	}
	if blocker, ok := priorStagesApproved(f, model.StageStaff5.Ordinal()); !ok {
		return errors.Newf(errors.ErrCodeAllStagesComplete,
			"final approval requires staff1..staff4 approved; stage %s has not", blocker)
	}

	now := time.Now().UTC()
	rec := f.Approval(model.StageStaff5)
	rec.Approved = decision == model.DecisionApproved
	rec.Status = model.ApprovalStatusLocked
	rec.Notes = remarks
	rec.Locked = true
	rec.LockedAt = &now
	if rec.Approved {
		rec.VerifiedAt = &now
	}

	// locked_by_staff5 is transient: the lock flag is what persists, the
	// stored status is the terminal outcome.
	f.Status = model.FormStatusLockedByStaff5
	if decision == model.DecisionApproved {
		f.Status = model.FormStatusApproved
		if f.Delivery == nil {
			f.Delivery = &model.DeliveryState{
				Status:             model.DeliveryStatusPendingUserSelection,
				ReadyForDeliveryAt: now,
			}
		}
	} else {
		f.Status = model.FormStatusRejected
	}
	Record(f, string(model.StageStaff5), string(decision), remarks, nil)
	return nil
}

// Cancel is the administrative cancellation reachable from any non-terminal
// status. The trigger itself (admin authorization) is outside the core.
func Cancel(f *model.Form, actor, reason string) error {
	if err := guardMutable(f); err != nil {
		return err
	}
	f.Status = model.FormStatusCancelled
	Record(f, actor, "cancelled", reason, nil)
	return nil
}

// ReadyForStage reports whether the given stage is the next one that can act:
// every earlier stage has approved and the stage itself has not. Pure read
// on the ledger.
func ReadyForStage(f *model.Form, stage model.StageID) bool {
	if !stage.Valid() || f.Status == model.FormStatusDraft || f.Status.IsTerminal() {
		return false
	}
	if f.Approval(stage).Approved {
		return false
	}
	_, ok := priorStagesApproved(f, stage.Ordinal())
	return ok
}

// VerificationStageLabel returns the display label for where the form sits
// in the pipeline.
func VerificationStageLabel(f *model.Form) string {
	switch f.Status {
	case model.FormStatusDraft:
		return "Draft"
	case model.FormStatusApproved:
		return "Approved"
	case model.FormStatusRejected:
		return "Rejected"
	case model.FormStatusCancelled:
		return "Cancelled"
	case model.FormStatusNeedsCorrection:
		return "Needs Correction"
	}
	for _, stage := range model.Stages {
		if !f.Approval(stage).Approved {
			return stage.Label()
		}
	}
	return model.StageStaff5.Label()
}
