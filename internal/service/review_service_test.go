package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/regidesk/be-deed-forms/internal/errors"
	"github.com/regidesk/be-deed-forms/internal/model"
	"github.com/regidesk/be-deed-forms/internal/workflow"
)

func TestCreateFormValidation(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()

	_, err := env.forms.CreateForm(ctx, &CreateFormRequest{ServiceType: "parking-permit", ApplicantID: "u1"})
	assert.Equal(t, errors.ErrCodeValidation, errors.Code(err))

	_, err = env.forms.CreateForm(ctx, &CreateFormRequest{ServiceType: "sale-deed"})
	assert.Equal(t, errors.ErrCodeValidation, errors.Code(err))
}

func TestFullReviewPipeline(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()

	f := createSubmitted(t, env)
	f = reviewToApproval(t, env, f.ID)

	assert.Equal(t, model.FormStatusApproved, f.Status)
	assert.True(t, f.Locked())
	require.NotNil(t, f.Delivery)

	history, err := env.review.History(ctx, f.ID)
	require.NoError(t, err)
	require.Len(t, history, 6)
	assert.Equal(t, "submitted", history[0].Action)
	assert.Equal(t, "approved", history[5].Action)

	trail, err := env.review.AuditTrail(ctx, f.ID)
	require.NoError(t, err)
	assert.NotEmpty(t, trail)
}

func TestVerifyUnknownStage(t *testing.T) {
	env := newTestEnv()
	f := createSubmitted(t, env)

	_, err := env.review.Verify(context.Background(), f.ID, "staff9", "", "someone")
	assert.Equal(t, errors.ErrCodeValidation, errors.Code(err))
}

func TestVerifyUnknownForm(t *testing.T) {
	env := newTestEnv()

	_, err := env.review.Verify(context.Background(), "missing", "staff1", "", "someone")
	assert.Equal(t, errors.ErrCodeNotFound, errors.Code(err))
}

func TestVerifyIdempotentAcrossRequests(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	f := createSubmitted(t, env)

	first, err := env.review.Verify(ctx, f.ID, "staff1", "ok", "staff1-user")
	require.NoError(t, err)

	// Simulated client retry: same outcome, no extra history, no version bump.
	second, err := env.review.Verify(ctx, f.ID, "staff1", "ok again", "staff1-user")
	require.NoError(t, err)

	assert.Equal(t, first.Status, second.Status)
	assert.Equal(t, first.Version, second.Version)
	assert.Len(t, second.VerificationHistory, len(first.VerificationHistory))
}

func TestRequestCorrectionPersistsDiff(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	f := createSubmitted(t, env)

	for _, stage := range model.Stages[:3] {
		_, err := env.review.Verify(ctx, f.ID, string(stage), "", "reviewer")
		require.NoError(t, err)
	}

	updated, entry, err := env.review.RequestCorrection(ctx, &RequestCorrectionRequest{
		FormID:        f.ID,
		Stage:         "staff3",
		TargetStage:   "staff1",
		Notes:         "district recorded wrong",
		UpdatedFields: map[string]any{"district": "Nashik"},
		ActorID:       "staff3-user",
	})
	require.NoError(t, err)

	assert.Equal(t, model.FormStatusNeedsCorrection, updated.Status)
	require.Len(t, entry.Corrections, 1)
	assert.Equal(t, "district", entry.Corrections[0].Field)

	// The change survived the round trip through the store.
	stored, err := env.forms.GetForm(ctx, f.ID)
	require.NoError(t, err)
	assert.Equal(t, "Nashik", stored.Fields["district"])
	assert.True(t, stored.Approvals[model.StageStaff2].Approved)
	assert.False(t, stored.Approvals[model.StageStaff1].Approved)
}

func TestFinalApproveValidatesDecision(t *testing.T) {
	env := newTestEnv()
	f := createSubmitted(t, env)

	_, err := env.review.FinalApprove(context.Background(), f.ID, "maybe", "", "staff5-user")
	assert.Equal(t, errors.ErrCodeValidation, errors.Code(err))
}

func TestFinalApproveBeforeAllStages(t *testing.T) {
	env := newTestEnv()
	f := createSubmitted(t, env)

	_, err := env.review.FinalApprove(context.Background(), f.ID, "approved", "", "staff5-user")
	assert.Equal(t, errors.ErrCodeAllStagesComplete, errors.Code(err))
}

func TestLockedFormRejectsReviewOperations(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	f := createSubmitted(t, env)
	reviewToApproval(t, env, f.ID)

	_, err := env.review.Verify(ctx, f.ID, "staff1", "", "staff1-user")
	assert.Equal(t, errors.ErrCodeFormLocked, errors.Code(err))

	_, _, err = env.review.RequestCorrection(ctx, &RequestCorrectionRequest{
		FormID: f.ID, Stage: "staff3", Notes: "late", ActorID: "staff3-user",
	})
	assert.Equal(t, errors.ErrCodeFormLocked, errors.Code(err))
}

// Two writers loading the same version: exactly one transition lands, the
// other reports the version race, and the stored ledger shows no double
// apply and no lost update.
func TestConcurrentVerifySameVersion(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	f := createSubmitted(t, env)

	first, err := env.store.GetByID(ctx, f.ID)
	require.NoError(t, err)
	second, err := env.store.GetByID(ctx, f.ID)
	require.NoError(t, err)
	require.Equal(t, first.Version, second.Version)

	changed, err := workflow.Verify(first, model.StageStaff1, "writer A")
	require.NoError(t, err)
	require.True(t, changed)
	require.NoError(t, env.store.UpdateState(ctx, first))

	changed, err = workflow.Verify(second, model.StageStaff1, "writer B")
	require.NoError(t, err)
	require.True(t, changed)
	err = env.store.UpdateState(ctx, second)
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeConcurrentModification, errors.Code(err))

	stored, err := env.store.GetByID(ctx, f.ID)
	require.NoError(t, err)
	assert.Equal(t, first.Version, stored.Version)
	assert.True(t, stored.Approvals[model.StageStaff1].Approved)
	assert.Equal(t, "writer A", stored.Approvals[model.StageStaff1].Notes)
	// submitted + exactly one verified entry
	assert.Len(t, stored.VerificationHistory, 2)
}

func TestCancelForm(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	f := createSubmitted(t, env)

	cancelled, err := env.forms.CancelForm(ctx, f.ID, "admin-1", "withdrawn by applicant")
	require.NoError(t, err)
	assert.Equal(t, model.FormStatusCancelled, cancelled.Status)

	_, err = env.review.Verify(ctx, f.ID, "staff1", "", "staff1-user")
	assert.Equal(t, errors.ErrCodeInvalidTransition, errors.Code(err))
}

func TestFormStatusView(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	f := createSubmitted(t, env)

	view, err := env.forms.FormStatus(ctx, f.ID)
	require.NoError(t, err)
	assert.Equal(t, "Intake Review", view.VerificationStageLabel)
	assert.True(t, view.ReadyForStage[model.StageStaff1])
	assert.False(t, view.ReadyForStage[model.StageStaff2])

	_, err = env.review.Verify(ctx, f.ID, "staff1", "", "staff1-user")
	require.NoError(t, err)

	view, err = env.forms.FormStatus(ctx, f.ID)
	require.NoError(t, err)
	assert.Equal(t, "Party Validation", view.VerificationStageLabel)
	assert.True(t, view.ReadyForStage[model.StageStaff2])
}
