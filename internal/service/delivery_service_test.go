package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/regidesk/be-deed-forms/internal/errors"
	"github.com/regidesk/be-deed-forms/internal/model"
)

func TestDeliveryNegotiationFlow(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	f := createSubmitted(t, env)
	reviewToApproval(t, env, f.ID)

	updated, err := env.delivery.SetUserPreference(ctx, &SetUserPreferenceRequest{
		FormID:          f.ID,
		Method:          "courier",
		DeliveryAddress: "7 Registry Lane",
		ActorID:         "user-9",
	})
	require.NoError(t, err)
	assert.Equal(t, model.DeliveryStatusUserSelected, updated.Delivery.Status)

	updated, err = env.delivery.SetStaffDecision(ctx, &SetStaffDecisionRequest{
		FormID:  f.ID,
		Method:  "registered-post",
		Notes:   "courier not serviceable",
		ActorID: "staff4-user",
	})
	require.NoError(t, err)
	assert.Equal(t, model.DeliveryStatusStaff4Decided, updated.Delivery.Status)
	assert.Equal(t, "registered-post", updated.Delivery.FinalMethod)

	updated, err = env.delivery.MarkDispatched(ctx, f.ID, "RP-552", "", "staff4-user")
	require.NoError(t, err)
	assert.Equal(t, model.DeliveryStatusDispatched, updated.Delivery.Status)
	assert.Equal(t, "RP-552", updated.Delivery.TrackingNumber)

	updated, err = env.delivery.MarkDelivered(ctx, f.ID, "received", "staff4-user")
	require.NoError(t, err)
	assert.Equal(t, model.DeliveryStatusDelivered, updated.Delivery.Status)

	// Each delivery step landed in the audit trail.
	trail, err := env.audit.GetByFormID(ctx, f.ID)
	require.NoError(t, err)
	actions := make(map[string]bool)
	for _, e := range trail {
		actions[e.Action] = true
	}
	assert.True(t, actions["delivery_preference_set"])
	assert.True(t, actions["dispatched"])
	assert.True(t, actions["delivered"])
}

func TestDispatchWithoutAnyMethod(t *testing.T) {
	env := newTestEnv()
	f := createSubmitted(t, env)
	reviewToApproval(t, env, f.ID)

	_, err := env.delivery.MarkDispatched(context.Background(), f.ID, "", "", "staff4-user")
	assert.Equal(t, errors.ErrCodeNoDeliveryMethodSet, errors.Code(err))
}

func TestDeliveryBeforeApproval(t *testing.T) {
	env := newTestEnv()
	f := createSubmitted(t, env)

	_, err := env.delivery.SetUserPreference(context.Background(), &SetUserPreferenceRequest{
		FormID: f.ID, Method: "courier", ActorID: "user-9",
	})
	assert.Equal(t, errors.ErrCodeInvalidTransition, errors.Code(err))

	_, err = env.delivery.GetDelivery(context.Background(), f.ID)
	assert.Equal(t, errors.ErrCodeNotFound, errors.Code(err))
}

func TestDeliveryContinuesAfterLock(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	f := createSubmitted(t, env)
	approved := reviewToApproval(t, env, f.ID)
	require.True(t, approved.Locked())

	// Content is frozen but delivery negotiation proceeds.
	_, err := env.delivery.SetUserPreference(ctx, &SetUserPreferenceRequest{
		FormID: f.ID, Method: "pickup", ActorID: "user-9",
	})
	require.NoError(t, err)

	_, err = env.delivery.MarkDispatched(ctx, f.ID, "", "counter handover", "staff4-user")
	require.NoError(t, err)
}
