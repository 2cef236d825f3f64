package model

import "time"

// Form is the unit of work: one submitted legal form moving through the
// five-stage review pipeline. Fields is opaque to the workflow core; its
// schema belongs to the form-definition layer.
type Form struct {
	ID                  string                      `json:"id"`
	ServiceType         ServiceType                 `json:"service_type"`
	ApplicantID         string                      `json:"applicant_id"`
	Fields              map[string]any              `json:"fields"`
	Status              FormStatus                  `json:"status"`
	Approvals           map[StageID]*ApprovalRecord `json:"approvals"`
	Delivery            *DeliveryState              `json:"delivery,omitempty"`
	VerificationHistory []HistoryEntry              `json:"verification_history"`
	Version             int                         `json:"version"`
	CreatedAt           time.Time                   `json:"created_at"`
	UpdatedAt           time.Time                   `json:"updated_at"`
}

// NewLedger returns a fresh approval ledger with every stage pending.
func NewLedger() map[StageID]*ApprovalRecord {
	ledger := make(map[StageID]*ApprovalRecord, len(Stages))
	for _, stage := range Stages {
		ledger[stage] = &ApprovalRecord{Status: ApprovalStatusPending}
	}
	return ledger
}

// Approval returns the ledger record for a stage, creating a pending record
// on first access so callers never see a nil entry.
func (f *Form) Approval(stage StageID) *ApprovalRecord {
	if f.Approvals == nil {
		f.Approvals = NewLedger()
	}
	rec, ok := f.Approvals[stage]
	if !ok {
		rec = &ApprovalRecord{Status: ApprovalStatusPending}
		f.Approvals[stage] = rec
	}
	return rec
}

// Locked reports whether stage5 has locked the form. Once true, all content
// mutation is rejected; only delivery negotiation remains open.
func (f *Form) Locked() bool {
	rec, ok := f.Approvals[StageStaff5]
	return ok && rec.Locked
}

// ApprovalRecord is one stage's sign-off state within a form's ledger.
type ApprovalRecord struct {
	Approved   bool           `json:"approved"`
	Status     ApprovalStatus `json:"status"`
	Notes      string         `json:"notes,omitempty"`
	VerifiedAt *time.Time     `json:"verified_at,omitempty"`
	Locked     bool           `json:"locked,omitempty"`
	LockedAt   *time.Time     `json:"locked_at,omitempty"`
}

// HistoryEntry is one immutable record in a form's verification history.
type HistoryEntry struct {
	ID          string            `json:"id"`
	StaffLevel  string            `json:"staff_level"`
	Action      string            `json:"action"`
	Timestamp   time.Time         `json:"timestamp"`
	Notes       string            `json:"notes,omitempty"`
	Corrections []FieldCorrection `json:"corrections,omitempty"`
}

// FieldCorrection records one field value changed by a review stage.
// OriginalValue is nil when the field did not previously exist.
type FieldCorrection struct {
	Field          string `json:"field"`
	OriginalValue  any    `json:"original_value"`
	CorrectedValue any    `json:"corrected_value"`
	CorrectedBy    string `json:"corrected_by"`
}

// DeliveryState is the delivery negotiation attached to a form once stage5
// approves it. It advances independently of the content lock.
type DeliveryState struct {
	Status             DeliveryStatus    `json:"status"`
	UserPreference     *DeliveryChoice   `json:"user_preference,omitempty"`
	Staff4Decision     *DeliveryDecision `json:"staff4_decision,omitempty"`
	FinalMethod        string            `json:"final_method,omitempty"`
	TrackingNumber     string            `json:"tracking_number,omitempty"`
	ReadyForDeliveryAt time.Time         `json:"ready_for_delivery_at"`
	DispatchedAt       *time.Time        `json:"dispatched_at,omitempty"`
	DeliveredAt        *time.Time        `json:"delivered_at,omitempty"`
	CancelledAt        *time.Time        `json:"cancelled_at,omitempty"`
}

// DeliveryChoice is the form owner's delivery preference.
type DeliveryChoice struct {
	Method          string `json:"method"`
	DeliveryAddress string `json:"delivery_address,omitempty"`
	ContactPhone    string `json:"contact_phone,omitempty"`
}

// DeliveryDecision is the delivery-authority override. When present its
// method always wins over the owner's preference.
type DeliveryDecision struct {
	Method          string `json:"method"`
	DeliveryAddress string `json:"delivery_address,omitempty"`
	ContactPhone    string `json:"contact_phone,omitempty"`
	TrackingNumber  string `json:"tracking_number,omitempty"`
	Notes           string `json:"notes,omitempty"`
}

// AuditEntry is one immutable record in the form audit log table.
type AuditEntry struct {
	ID           string         `json:"id"`
	FormID       string         `json:"form_id"`
	Stage        *string        `json:"stage,omitempty"`
	Action       string         `json:"action"`
	PerformedBy  string         `json:"performed_by"`
	PerformedAt  time.Time      `json:"performed_at"`
	StatusBefore *string        `json:"status_before,omitempty"`
	StatusAfter  *string        `json:"status_after,omitempty"`
	Metadata     map[string]any `json:"metadata,omitempty"`
}
