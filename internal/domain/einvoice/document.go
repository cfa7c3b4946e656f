package einvoice

import (
	"errors"
	"time"

	"github.com/einvoice/backend/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Domain errors for document submission state handling
var (
	ErrDocumentNotFound     = errors.New("einvoice: document not found")
	ErrDocumentTerminal     = errors.New("einvoice: document already reached a terminal state")
	ErrInvalidTransition    = errors.New("einvoice: invalid document status transition")
	ErrMissingExternalRef   = errors.New("einvoice: document has no external reference id")
	ErrInvalidProfile       = errors.New("einvoice: invalid submission profile")
	ErrMissingCounterpartID = errors.New("einvoice: counterpart tax id is missing")
)

// DocumentStatus represents the submission lifecycle state of a document
type DocumentStatus string

const (
	StatusDraft     DocumentStatus = "draft"     // Not yet submitted
	StatusSending   DocumentStatus = "sending"   // Submission in flight (optimistic pre-mark)
	StatusSent      DocumentStatus = "sent"      // Accepted by the exchange provider
	StatusDelivered DocumentStatus = "delivered" // Provider reports final acceptance
	StatusError     DocumentStatus = "error"     // Terminal failure
)

// IsValid checks if the status is a valid DocumentStatus
func (s DocumentStatus) IsValid() bool {
	switch s {
	case StatusDraft, StatusSending, StatusSent, StatusDelivered, StatusError:
		return true
	}
	return false
}

// String returns the string representation of DocumentStatus
func (s DocumentStatus) String() string {
	return string(s)
}

// IsTerminal returns true if no further automatic transition may occur
func (s DocumentStatus) IsTerminal() bool {
	return s == StatusDelivered || s == StatusError
}

// canTransitionTo reports whether the edge s -> next is part of the
// document state machine: draft -> sending -> {sent, error},
// sent -> {delivered, error}.
func (s DocumentStatus) canTransitionTo(next DocumentStatus) bool {
	switch s {
	case StatusDraft:
		return next == StatusSending
	case StatusSending:
		return next == StatusSent || next == StatusError
	case StatusSent:
		return next == StatusDelivered || next == StatusError
	default:
		return false
	}
}

// Profile is a submission mode routing to a distinct provider endpoint
// pair. Both profiles share identical state semantics.
type Profile string

const (
	// ProfileEInvoice routes to the registered-taxpayer invoice channel
	ProfileEInvoice Profile = "E_INVOICE"
	// ProfileEArchive routes to the archive channel for counterparts that
	// are not registered e-invoice taxpayers
	ProfileEArchive Profile = "E_ARCHIVE"
)

// IsValid checks if the profile is valid
func (p Profile) IsValid() bool {
	return p == ProfileEInvoice || p == ProfileEArchive
}

// String returns the string representation of Profile
func (p Profile) String() string {
	return string(p)
}

// Document is a sales invoice as seen by the exchange subsystem. It carries
// only the fields this subsystem reads or writes; invoice line items and
// document content construction live with the billing collaborator.
type Document struct {
	shared.TenantAggregateRoot

	InvoiceNumber     string
	CounterpartName   string
	CounterpartTaxID  string
	TotalAmount       decimal.Decimal
	Currency          string
	Profile           Profile // Empty until first resolved
	Status            DocumentStatus
	ExternalRefID     string // Assigned by the provider on acceptance
	ProviderStateCode *int
	ErrorMessage      string
	LastStatusCheckAt *time.Time
}

// NewDocument creates a draft document ready for submission
func NewDocument(tenantID uuid.UUID, invoiceNumber, counterpartName, counterpartTaxID string, amount decimal.Decimal, currency string) *Document {
	return &Document{
		TenantAggregateRoot: shared.NewTenantAggregateRoot(tenantID),
		InvoiceNumber:       invoiceNumber,
		CounterpartName:     counterpartName,
		CounterpartTaxID:    counterpartTaxID,
		TotalAmount:         amount,
		Currency:            currency,
		Status:              StatusDraft,
	}
}

// HasExternalRef returns true once the provider has assigned a reference id
func (d *Document) HasExternalRef() bool {
	return d.ExternalRefID != ""
}

// transition moves the document to the given status, enforcing the state
// machine, and raises a DocumentStatusChanged event.
func (d *Document) transition(next DocumentStatus) error {
	if d.Status.IsTerminal() {
		return ErrDocumentTerminal
	}
	if !d.Status.canTransitionTo(next) {
		return ErrInvalidTransition
	}
	previous := d.Status
	d.Status = next
	d.UpdatedAt = time.Now()
	d.AddDomainEvent(NewDocumentStatusChangedEvent(d, previous))
	return nil
}

// MarkSending pre-marks the document before the remote submit call so that
// concurrent viewers see the in-flight state immediately. Re-marking a
// document that is already sending is allowed: a confirmed force-resend
// submits again without ever leaving the sending state.
func (d *Document) MarkSending(profile Profile) error {
	if !profile.IsValid() {
		return ErrInvalidProfile
	}
	if d.Status == StatusSending {
		d.Profile = profile
		d.ErrorMessage = ""
		d.UpdatedAt = time.Now()
		d.AddDomainEvent(NewDocumentStatusChangedEvent(d, StatusSending))
		return nil
	}
	if err := d.transition(StatusSending); err != nil {
		return err
	}
	d.Profile = profile
	d.ErrorMessage = ""
	return nil
}

// MarkSent records provider acceptance and the assigned external reference
func (d *Document) MarkSent(externalRefID string, stateCode int) error {
	if err := d.transition(StatusSent); err != nil {
		return err
	}
	d.ExternalRefID = externalRefID
	d.ProviderStateCode = &stateCode
	return nil
}

// MarkDelivered records the terminal success reported by the provider
func (d *Document) MarkDelivered(stateCode int) error {
	if err := d.transition(StatusDelivered); err != nil {
		return err
	}
	d.ProviderStateCode = &stateCode
	return nil
}

// MarkFailed records a terminal failure with the classified message and the
// provider state code, when one was reported.
func (d *Document) MarkFailed(message string, stateCode *int) error {
	if err := d.transition(StatusError); err != nil {
		return err
	}
	d.ErrorMessage = message
	if stateCode != nil {
		d.ProviderStateCode = stateCode
	} else {
		code := StateError
		d.ProviderStateCode = &code
	}
	return nil
}

// ResetToDraft prepares a terminal or stuck document for a new explicit
// submission request. Only an explicit caller action reaches this; the
// engine itself never resets automatically.
func (d *Document) ResetToDraft() {
	d.Status = StatusDraft
	d.ErrorMessage = ""
	d.ProviderStateCode = nil
	d.UpdatedAt = time.Now()
}

// RecordStatusCheck stamps the time of the last provider status lookup
func (d *Document) RecordStatusCheck(at time.Time) {
	d.LastStatusCheckAt = &at
	d.UpdatedAt = at
}
