package einvoice

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

// Provider state codes, fixed by the exchange vendor. Nothing outside this
// package should match on the raw integers.
const (
	StateDraft      = 1 // Draft on the provider side
	StateQueued     = 2 // Awaiting signature / dispatch to the authority
	StateInDispatch = 3 // In the dispatch list
	StateError      = 4 // Provider-reported processing error
	StateDelivered  = 5 // Delivered to the recipient (terminal success)
)

// IsProcessingState returns true for states the provider reports while a
// document is still working its way through its pipeline.
func IsProcessingState(code int) bool {
	return code == StateQueued || code == StateInDispatch
}

// StateName returns the canonical name for a provider state code
func StateName(code int) string {
	switch code {
	case StateDraft:
		return "DRAFT"
	case StateQueued:
		return "QUEUED"
	case StateInDispatch:
		return "IN_DISPATCH"
	case StateError:
		return "ERROR"
	case StateDelivered:
		return "DELIVERED"
	default:
		return "UNKNOWN"
	}
}

// Provider transport errors. Adapters map their wire-level failures onto
// these so the classifier never sees vendor-specific error shapes.
var (
	ErrProviderNotConfigured  = errors.New("einvoice: exchange provider not configured for tenant")
	ErrProviderAuthFailed     = errors.New("einvoice: exchange provider authentication failed")
	ErrProviderUnavailable    = errors.New("einvoice: exchange provider temporarily unavailable")
	ErrProviderInvalidReply   = errors.New("einvoice: invalid exchange provider response")
	ErrProviderRequestFailed  = errors.New("einvoice: exchange provider request failed")
	ErrProviderSessionExpired = errors.New("einvoice: exchange provider session expired")
)

// StatusSnapshot is the provider's view of a document at a point in time.
// It is what the confirmation gate shows the operator when a duplicate
// submission conflict is detected.
type StatusSnapshot struct {
	StateCode          int    `json:"state_code"`
	StateName          string `json:"state_name"`
	UserFriendlyStatus string `json:"user_friendly_status"`
}

// SubmitRequest carries everything a provider needs to submit a document.
// Document content construction happens upstream; the provider resolves the
// prepared payload from the document id.
type SubmitRequest struct {
	TenantID      uuid.UUID
	DocumentID    uuid.UUID
	InvoiceNumber string
	Profile       Profile
	// ForceResend records that an operator explicitly authorized
	// resending a document the provider may already hold. The duplicate
	// guard itself runs in the submission coordinator before the remote
	// call; adapters see the flag for audit logging.
	ForceResend bool
	// DeliveryChannel selects how an archive-profile document reaches
	// the recipient. Electronic delivery unless paper is requested.
	DeliveryChannel string
	NotifyAddresses []string
}

// SubmitResult is the provider's answer to a submission
type SubmitResult struct {
	Accepted          bool
	ExternalRefID     string
	NeedsConfirmation bool
	Snapshot          *StatusSnapshot
	ErrorBody         string
}

// StatusRequest identifies the document whose processing state is queried
type StatusRequest struct {
	TenantID      uuid.UUID
	ExternalRefID string
	Profile       Profile
}

// StatusResult is the provider's processing state report
type StatusResult struct {
	StateCode          int
	StateName          string
	UserFriendlyStatus string
	AnswerStatus       string
	Description        string
}

// ExchangeProvider abstracts the external transactional-document exchange
// service. Two profiles route to distinct endpoint pairs on the same
// provider but share response shapes and state codes.
type ExchangeProvider interface {
	// Submit sends a document to the provider. A request carrying
	// ForceResend has already passed the duplicate-submission guard with
	// an explicit operator confirmation.
	Submit(ctx context.Context, req SubmitRequest) (*SubmitResult, error)

	// GetStatus queries the provider's processing state for a previously
	// accepted document.
	GetStatus(ctx context.Context, req StatusRequest) (*StatusResult, error)
}

// TaxpayerDirectory answers whether a counterpart is a registered e-invoice
// taxpayer. Used only to default the submission profile when neither the
// caller nor the stored document specifies one.
type TaxpayerDirectory interface {
	IsRegistered(ctx context.Context, tenantID uuid.UUID, taxID string) (bool, error)
}
