package einvoice

import (
	"github.com/einvoice/backend/internal/domain/shared"
	"github.com/google/uuid"
)

// DocumentStatusChangedEvent is raised on every persisted status transition,
// including the optimistic sending pre-mark, so live views update promptly.
type DocumentStatusChangedEvent struct {
	shared.BaseDomainEvent
	DocumentID        uuid.UUID      `json:"document_id"`
	InvoiceNumber     string         `json:"invoice_number"`
	PreviousStatus    DocumentStatus `json:"previous_status"`
	Status            DocumentStatus `json:"status"`
	ProviderStateCode *int           `json:"provider_state_code,omitempty"`
	ErrorMessage      string         `json:"error_message,omitempty"`
}

// EventType returns the event type name
func (e *DocumentStatusChangedEvent) EventType() string {
	return "DocumentStatusChanged"
}

// NewDocumentStatusChangedEvent creates a new DocumentStatusChangedEvent
func NewDocumentStatusChangedEvent(d *Document, previous DocumentStatus) *DocumentStatusChangedEvent {
	return &DocumentStatusChangedEvent{
		BaseDomainEvent:   shared.NewBaseDomainEvent("DocumentStatusChanged", "Document", d.ID, d.TenantID),
		DocumentID:        d.ID,
		InvoiceNumber:     d.InvoiceNumber,
		PreviousStatus:    previous,
		Status:            d.Status,
		ProviderStateCode: d.ProviderStateCode,
		ErrorMessage:      d.ErrorMessage,
	}
}

// BulkRefreshCompletedEvent is raised exactly once per reconciliation pass,
// never per document.
type BulkRefreshCompletedEvent struct {
	shared.BaseDomainEvent
	Checked      int `json:"checked"`
	SuccessCount int `json:"success_count"`
	ErrorCount   int `json:"error_count"`
}

// EventType returns the event type name
func (e *BulkRefreshCompletedEvent) EventType() string {
	return "BulkRefreshCompleted"
}

// NewBulkRefreshCompletedEvent creates a new BulkRefreshCompletedEvent
func NewBulkRefreshCompletedEvent(tenantID uuid.UUID, checked, successCount, errorCount int) *BulkRefreshCompletedEvent {
	return &BulkRefreshCompletedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent("BulkRefreshCompleted", "Document", uuid.Nil, tenantID),
		Checked:         checked,
		SuccessCount:    successCount,
		ErrorCount:      errorCount,
	}
}
