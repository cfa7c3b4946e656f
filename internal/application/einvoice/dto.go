package einvoice

import (
	"time"

	"github.com/einvoice/backend/internal/domain/einvoice"
	"github.com/google/uuid"
)

// SubmitOptions carries the caller-provided submission parameters. A nil
// Profile means the profile is resolved from persisted document data or,
// failing that, from counterpart capability.
type SubmitOptions struct {
	Profile         *einvoice.Profile
	ForceResend     bool
	DeliveryChannel string
	NotifyAddresses []string
}

// SubmitOutcome is the result of a submission attempt
type SubmitOutcome struct {
	DocumentID        uuid.UUID
	Status            einvoice.DocumentStatus
	Kind              einvoice.Kind
	ExternalRefID     string
	NeedsConfirmation bool
	Snapshot          *einvoice.StatusSnapshot
	Message           string
}

// CheckOutcome is the result of a single on-demand status check
type CheckOutcome struct {
	DocumentID uuid.UUID
	Status     einvoice.DocumentStatus
	Kind       einvoice.Kind
	StateCode  *int
	Message    string
}

// ReconcileResult aggregates one bulk reconciliation pass
type ReconcileResult struct {
	Checked      int `json:"checked"`
	SuccessCount int `json:"success_count"`
	ErrorCount   int `json:"error_count"`
}

// ConfirmationRequest is the transient record of a duplicate-submission
// conflict awaiting an operator decision. It is never persisted.
type ConfirmationRequest struct {
	TenantID   uuid.UUID
	DocumentID uuid.UUID
	Snapshot   einvoice.StatusSnapshot
	Options    SubmitOptions
	OpenedAt   time.Time
}
