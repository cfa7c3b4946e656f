package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/einvoice/backend/internal/domain/einvoice"
)

// DocumentModel is the persistence model for the exchange Document aggregate.
type DocumentModel struct {
	TenantAggregateModel
	InvoiceNumber     string                  `gorm:"type:varchar(50);not null;uniqueIndex:idx_document_tenant_number,priority:2"`
	CounterpartName   string                  `gorm:"type:varchar(200);not null"`
	CounterpartTaxID  string                  `gorm:"type:varchar(20);index"`
	TotalAmount       decimal.Decimal         `gorm:"type:decimal(18,2);not null"`
	Currency          string                  `gorm:"type:varchar(3);not null;default:'TRY'"`
	Profile           einvoice.Profile        `gorm:"type:varchar(20)"`
	Status            einvoice.DocumentStatus `gorm:"type:varchar(20);not null;default:'draft';index"`
	ExternalRefID     string                  `gorm:"type:varchar(100);index"`
	ProviderStateCode *int
	ErrorMessage      string `gorm:"type:text"`
	LastStatusCheckAt *time.Time
}

// TableName specifies the table name
func (DocumentModel) TableName() string {
	return "documents"
}

// ToDomain converts the persistence model to a domain Document aggregate
func (m *DocumentModel) ToDomain() *einvoice.Document {
	doc := &einvoice.Document{
		InvoiceNumber:     m.InvoiceNumber,
		CounterpartName:   m.CounterpartName,
		CounterpartTaxID:  m.CounterpartTaxID,
		TotalAmount:       m.TotalAmount,
		Currency:          m.Currency,
		Profile:           m.Profile,
		Status:            m.Status,
		ExternalRefID:     m.ExternalRefID,
		ProviderStateCode: m.ProviderStateCode,
		ErrorMessage:      m.ErrorMessage,
		LastStatusCheckAt: m.LastStatusCheckAt,
	}
	m.PopulateTenantAggregateRoot(&doc.TenantAggregateRoot)
	return doc
}

// FromDomain populates the persistence model from a domain Document aggregate
func (m *DocumentModel) FromDomain(doc *einvoice.Document) {
	m.FromDomainTenantAggregateRoot(doc.TenantAggregateRoot)
	m.InvoiceNumber = doc.InvoiceNumber
	m.CounterpartName = doc.CounterpartName
	m.CounterpartTaxID = doc.CounterpartTaxID
	m.TotalAmount = doc.TotalAmount
	m.Currency = doc.Currency
	m.Profile = doc.Profile
	m.Status = doc.Status
	m.ExternalRefID = doc.ExternalRefID
	m.ProviderStateCode = doc.ProviderStateCode
	m.ErrorMessage = doc.ErrorMessage
	m.LastStatusCheckAt = doc.LastStatusCheckAt
}

// DocumentModelFromDomain creates a new persistence model from a domain Document
func DocumentModelFromDomain(doc *einvoice.Document) *DocumentModel {
	m := &DocumentModel{}
	m.FromDomain(doc)
	return m
}

// DocumentPayloadModel stores the prepared transfer file for a document.
// Payloads are written when the document content is assembled upstream and
// read back at submission time.
type DocumentPayloadModel struct {
	DocumentID uuid.UUID `gorm:"type:uuid;primary_key"`
	TenantID   uuid.UUID `gorm:"type:uuid;not null;index"`
	FileName   string    `gorm:"type:varchar(200);not null"`
	Content    []byte    `gorm:"type:bytea;not null"`
	CreatedAt  time.Time `gorm:"not null"`
	UpdatedAt  time.Time `gorm:"not null"`
}

// TableName specifies the table name
func (DocumentPayloadModel) TableName() string {
	return "document_payloads"
}
