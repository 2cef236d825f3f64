package workflow

import (
	"time"

	"github.com/regidesk/be-deed-forms/internal/errors"
	"github.com/regidesk/be-deed-forms/internal/model"
)

// The delivery negotiation sub-machine runs after stage5 approval, so it is
// deliberately exempt from the content lock: none of these operations call
// guardMutable. Delivery logistics are downstream of content, not content.

// delivery returns the form's delivery state, creating it lazily when the
// form has reached its delivery-eligible status.
func delivery(f *model.Form) (*model.DeliveryState, error) {
	if f.Delivery != nil {
		return f.Delivery, nil
	}
	if f.Status != model.FormStatusApproved {
		return nil, errors.Newf(errors.ErrCodeInvalidTransition,
			"form in status %q is not delivery-eligible", f.Status)
	}
	f.Delivery = &model.DeliveryState{
		Status:             model.DeliveryStatusPendingUserSelection,
		ReadyForDeliveryAt: time.Now().UTC(),
	}
	return f.Delivery, nil
}

// resolveFinalMethod derives the method actually used: the staff decision
// always wins over the owner's preference when both exist.
func resolveFinalMethod(d *model.DeliveryState) string {
	if d.Staff4Decision != nil && d.Staff4Decision.Method != "" {
		return d.Staff4Decision.Method
	}
	if d.UserPreference != nil {
		return d.UserPreference.Method
	}
	return ""
}

// SetUserPreference records the owner's delivery choice. Allowed any time
// before dispatch.
func SetUserPreference(f *model.Form, choice model.DeliveryChoice) error {
	if choice.Method == "" {
		return errors.InvalidInput("method", "delivery method is required")
	}
	d, err := delivery(f)
	if err != nil {
		return err
	}
	if d.Status.IsTerminal() || d.Status == model.DeliveryStatusDispatched {
		return errors.Newf(errors.ErrCodeInvalidTransition,
			"delivery preference cannot change in status %q", d.Status)
	}

	d.UserPreference = &choice
	if d.Status == model.DeliveryStatusPendingUserSelection {
		d.Status = model.DeliveryStatusUserSelected
	}
	d.FinalMethod = resolveFinalMethod(d)
	Record(f, model.ActorOwner, "delivery_preference_set", "", nil)
	return nil
}

// SetStaffDecision records the delivery authority's override. Allowed any
// time before dispatch; always moves the negotiation to staff4_decided.
func SetStaffDecision(f *model.Form, decision model.DeliveryDecision) error {
	if decision.Method == "" {
		return errors.InvalidInput("method", "delivery method is required")
	}
	d, err := delivery(f)
	if err != nil {
		return err
	}
	if d.Status.IsTerminal() || d.Status == model.DeliveryStatusDispatched {
		return errors.Newf(errors.ErrCodeInvalidTransition,
			"delivery decision cannot change in status %q", d.Status)
	}

	d.Staff4Decision = &decision
	d.Status = model.DeliveryStatusStaff4Decided
	d.FinalMethod = decision.Method
	if decision.TrackingNumber != "" {
		d.TrackingNumber = decision.TrackingNumber
	}
	Record(f, string(model.StageStaff4), "delivery_decided", decision.Notes, nil)
	return nil
}

// MarkDispatched moves the delivery to dispatched. The resolved method must
// exist — either the staff decision or, absent an override, the owner's
// preference.
func MarkDispatched(f *model.Form, trackingNumber, notes string) error {
	d, err := delivery(f)
	if err != nil {
		return err
	}
	switch d.Status {
	case model.DeliveryStatusUserSelected, model.DeliveryStatusStaff4Decided:
	case model.DeliveryStatusPendingUserSelection:
		return errors.New(errors.ErrCodeNoDeliveryMethodSet,
			"no delivery method has been selected or decided")
	default:
		return errors.Newf(errors.ErrCodeInvalidTransition,
			"delivery cannot be dispatched from status %q", d.Status)
	}

	method := resolveFinalMethod(d)
	if method == "" {
		return errors.New(errors.ErrCodeNoDeliveryMethodSet,
			"no delivery method has been selected or decided")
	}

	now := time.Now().UTC()
	d.FinalMethod = method
	d.Status = model.DeliveryStatusDispatched
	d.DispatchedAt = &now
	if trackingNumber != "" {
		d.TrackingNumber = trackingNumber
	}
	Record(f, string(model.StageStaff4), "dispatched", notes, nil)
	return nil
}

// MarkDelivered closes the delivery flow. Requires a prior dispatch.
func MarkDelivered(f *model.Form, notes string) error {
	d, err := delivery(f)
	if err != nil {
		return err
	}
	if d.Status != model.DeliveryStatusDispatched {
		return errors.Newf(errors.ErrCodeInvalidTransition,
			"delivery cannot be marked delivered from status %q", d.Status)
	}

	now := time.Now().UTC()
	d.Status = model.DeliveryStatusDelivered
	d.DeliveredAt = &now
	Record(f, string(model.StageStaff4), "delivered", notes, nil)
	return nil
}

// CancelDelivery aborts the delivery flow from any non-terminal state.
func CancelDelivery(f *model.Form, notes string) error {
	d, err := delivery(f)
	if err != nil {
		return err
	}
	if d.Status.IsTerminal() {
		return errors.Newf(errors.ErrCodeInvalidTransition,
			"delivery cannot be cancelled from status %q", d.Status)
	}

	now := time.Now().UTC()
	d.Status = model.DeliveryStatusCancelled
	d.CancelledAt = &now
	Record(f, string(model.StageStaff4), "delivery_cancelled", notes, nil)
	return nil
}
