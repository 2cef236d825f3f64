package model

// FormStatus is the lifecycle status of a form. Closed set; transitions are
// owned exclusively by the workflow package.
type FormStatus string

const (
	FormStatusDraft             FormStatus = "draft"
	FormStatusSubmitted         FormStatus = "submitted"
	FormStatusStaff1Review      FormStatus = "staff1_review"
	FormStatusStaff2Review      FormStatus = "staff2_review"
	FormStatusStaff3Review      FormStatus = "staff3_review"
	FormStatusPendingCrossVerif FormStatus = "pending_cross_verification"
	FormStatusNeedsCorrection   FormStatus = "needs_correction"
	FormStatusPendingFinal      FormStatus = "pending_final_approval"
	FormStatusLockedByStaff5    FormStatus = "locked_by_staff5"
	FormStatusApproved          FormStatus = "approved"
	FormStatusRejected          FormStatus = "rejected"
	FormStatusCancelled         FormStatus = "cancelled"
)

// IsTerminal reports whether no further content transitions are possible.
func (s FormStatus) IsTerminal() bool {
	switch s {
	case FormStatusApproved, FormStatusRejected, FormStatusCancelled:
		return true
	}
	return false
}

// ApprovalStatus is the per-stage review status within the ledger.
type ApprovalStatus string

const (
	ApprovalStatusPending         ApprovalStatus = "pending"
	ApprovalStatusNeedsCorrection ApprovalStatus = "needs_correction"
	ApprovalStatusVerified        ApprovalStatus = "verified"
	ApprovalStatusLocked          ApprovalStatus = "locked"
)

// DeliveryStatus is the status of the delivery negotiation sub-machine.
type DeliveryStatus string

const (
	DeliveryStatusPendingUserSelection DeliveryStatus = "pending_user_selection"
	DeliveryStatusUserSelected         DeliveryStatus = "user_selected"
	DeliveryStatusStaff4Decided        DeliveryStatus = "staff4_decided"
	DeliveryStatusDispatched           DeliveryStatus = "dispatched"
	DeliveryStatusDelivered            DeliveryStatus = "delivered"
	DeliveryStatusCancelled            DeliveryStatus = "cancelled"
)

// IsTerminal reports whether the delivery flow has finished.
func (s DeliveryStatus) IsTerminal() bool {
	return s == DeliveryStatusDelivered || s == DeliveryStatusCancelled
}

// FinalDecision is the stage5 outcome on a form.
type FinalDecision string

const (
	DecisionApproved FinalDecision = "approved"
	DecisionRejected FinalDecision = "rejected"
)

// ParseFinalDecision validates a stage5 decision value.
func ParseFinalDecision(s string) (FinalDecision, bool) {
	d := FinalDecision(s)
	return d, d == DecisionApproved || d == DecisionRejected
}

// ServiceType identifies the legal form product a submission belongs to.
type ServiceType string

const (
	ServiceSaleDeed             ServiceType = "sale-deed"
	ServiceWillDeed             ServiceType = "will-deed"
	ServiceTrustDeed            ServiceType = "trust-deed"
	ServicePropertyRegistration ServiceType = "property-registration"
	ServicePowerOfAttorney      ServiceType = "power-of-attorney"
	ServiceAdoptionDeed         ServiceType = "adoption-deed"
	ServiceEStamp               ServiceType = "e-stamp"
	ServiceMapModule            ServiceType = "map-module"
	ServiceContactForm          ServiceType = "contact-form"
)

var serviceTypes = map[ServiceType]bool{
	ServiceSaleDeed:             true,
	ServiceWillDeed:             true,
	ServiceTrustDeed:            true,
	ServicePropertyRegistration: true,
	ServicePowerOfAttorney:      true,
	ServiceAdoptionDeed:         true,
	ServiceEStamp:               true,
	ServiceMapModule:            true,
	ServiceContactForm:          true,
}

// ParseServiceType validates a service type coming from the outside.
func ParseServiceType(s string) (ServiceType, bool) {
	st := ServiceType(s)
	return st, serviceTypes[st]
}
