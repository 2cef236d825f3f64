package workflow

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/regidesk/be-deed-forms/internal/errors"
	"github.com/regidesk/be-deed-forms/internal/model"
)

func TestDeliveryRequiresApprovedForm(t *testing.T) {
	f := submittedForm(t)

	err := SetUserPreference(f, model.DeliveryChoice{Method: "courier"})
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeInvalidTransition, errors.Code(err))
	assert.Nil(t, f.Delivery)
}

func TestUserPreferenceFlow(t *testing.T) {
	f := approvedForm(t)

	err := SetUserPreference(f, model.DeliveryChoice{
		Method:          "courier",
		DeliveryAddress: "12 Court Road",
		ContactPhone:    "9800000000",
	})
	require.NoError(t, err)
	assert.Equal(t, model.DeliveryStatusUserSelected, f.Delivery.Status)
	assert.Equal(t, "courier", f.Delivery.FinalMethod)

	require.NoError(t, MarkDispatched(f, "TRK-77", "handed to courier"))
	assert.Equal(t, model.DeliveryStatusDispatched, f.Delivery.Status)
	assert.Equal(t, "courier", f.Delivery.FinalMethod)
	assert.Equal(t, "TRK-77", f.Delivery.TrackingNumber)
	require.NotNil(t, f.Delivery.DispatchedAt)

	require.NoError(t, MarkDelivered(f, "signed by applicant"))
	assert.Equal(t, model.DeliveryStatusDelivered, f.Delivery.Status)
	require.NotNil(t, f.Delivery.DeliveredAt)
}

func TestStaffDecisionOverridesUserPreference(t *testing.T) {
	f := approvedForm(t)

	require.NoError(t, SetUserPreference(f, model.DeliveryChoice{Method: "pickup"}))
	require.NoError(t, SetStaffDecision(f, model.DeliveryDecision{
		Method:         "registered-post",
		TrackingNumber: "RP-100",
		Notes:          "office pickup unavailable",
	}))

	assert.Equal(t, model.DeliveryStatusStaff4Decided, f.Delivery.Status)
	assert.Equal(t, "registered-post", f.Delivery.FinalMethod)
	assert.Equal(t, "RP-100", f.Delivery.TrackingNumber)

	require.NoError(t, MarkDispatched(f, "", ""))
	assert.Equal(t, "registered-post", f.Delivery.FinalMethod)
}

func TestDispatchWithoutMethod(t *testing.T) {
	f := approvedForm(t)

	err := MarkDispatched(f, "", "")
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeNoDeliveryMethodSet, errors.Code(err))
	assert.Equal(t, model.DeliveryStatusPendingUserSelection, f.Delivery.Status)
}

func TestMarkDeliveredRequiresDispatch(t *testing.T) {
	f := approvedForm(t)
	require.NoError(t, SetUserPreference(f, model.DeliveryChoice{Method: "courier"}))

	err := MarkDelivered(f, "")
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeInvalidTransition, errors.Code(err))
}

func TestPreferenceFrozenAfterDispatch(t *testing.T) {
	f := approvedForm(t)
	require.NoError(t, SetUserPreference(f, model.DeliveryChoice{Method: "courier"}))
	require.NoError(t, MarkDispatched(f, "", ""))

	err := SetUserPreference(f, model.DeliveryChoice{Method: "pickup"})
	assert.Equal(t, errors.ErrCodeInvalidTransition, errors.Code(err))

	err = SetStaffDecision(f, model.DeliveryDecision{Method: "pickup"})
	assert.Equal(t, errors.ErrCodeInvalidTransition, errors.Code(err))
}

func TestCancelDelivery(t *testing.T) {
	f := approvedForm(t)
	require.NoError(t, SetUserPreference(f, model.DeliveryChoice{Method: "courier"}))

	require.NoError(t, CancelDelivery(f, "applicant withdrew"))
	assert.Equal(t, model.DeliveryStatusCancelled, f.Delivery.Status)
	require.NotNil(t, f.Delivery.CancelledAt)

	err := CancelDelivery(f, "again")
	assert.Equal(t, errors.ErrCodeInvalidTransition, errors.Code(err))

	err = MarkDispatched(f, "", "")
	assert.Equal(t, errors.ErrCodeInvalidTransition, errors.Code(err))
}
