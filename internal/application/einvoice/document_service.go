package einvoice

import (
	"context"
	"fmt"
	"strings"

	"github.com/einvoice/backend/internal/domain/einvoice"
	"github.com/einvoice/backend/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const defaultCurrency = "TRY"

// PayloadStore persists the prepared transfer payload for a document so the
// exchange provider can resolve it at submit time.
type PayloadStore interface {
	Store(ctx context.Context, tenantID, documentID uuid.UUID, fileName string, content []byte) error
}

// CreateDocumentRequest carries the fields required to register a draft
// document with the exchange subsystem.
type CreateDocumentRequest struct {
	InvoiceNumber    string
	CounterpartName  string
	CounterpartTaxID string
	TotalAmount      decimal.Decimal
	Currency         string
	Profile          *einvoice.Profile
}

// DocumentService manages document registration and queries. Lifecycle
// operations live on SubmissionService.
type DocumentService struct {
	repo     einvoice.DocumentRepository
	payloads PayloadStore
	logger   *zap.Logger
}

// NewDocumentService creates a new DocumentService
func NewDocumentService(repo einvoice.DocumentRepository, payloads PayloadStore, logger *zap.Logger) *DocumentService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DocumentService{
		repo:     repo,
		payloads: payloads,
		logger:   logger,
	}
}

// Create registers a new draft document. The invoice number must be unique
// within the tenant.
func (s *DocumentService) Create(ctx context.Context, tenantID uuid.UUID, req CreateDocumentRequest) (*einvoice.Document, error) {
	req.InvoiceNumber = strings.TrimSpace(req.InvoiceNumber)
	if req.InvoiceNumber == "" {
		return nil, shared.NewDomainError("VALIDATION_ERROR", "invoice number is required")
	}
	if req.TotalAmount.IsNegative() {
		return nil, shared.NewDomainError("VALIDATION_ERROR", "total amount must not be negative")
	}
	if req.Profile != nil && !req.Profile.IsValid() {
		return nil, einvoice.ErrInvalidProfile
	}
	if req.Currency == "" {
		req.Currency = defaultCurrency
	}

	_, total, err := s.repo.ListForTenant(ctx, tenantID, shared.Filter{
		Page:     1,
		PageSize: 1,
		Filters:  map[string]interface{}{"invoice_number": req.InvoiceNumber},
	})
	if err != nil {
		return nil, err
	}
	if total > 0 {
		return nil, shared.NewDomainError("ALREADY_EXISTS",
			fmt.Sprintf("a document with invoice number %s already exists", req.InvoiceNumber))
	}

	doc := einvoice.NewDocument(tenantID, req.InvoiceNumber, req.CounterpartName,
		req.CounterpartTaxID, req.TotalAmount, req.Currency)
	if req.Profile != nil {
		doc.Profile = *req.Profile
	}

	if err := s.repo.Save(ctx, doc); err != nil {
		return nil, err
	}

	s.logger.Info("document registered",
		zap.String("document_id", doc.ID.String()),
		zap.String("invoice_number", doc.InvoiceNumber),
	)
	return doc, nil
}

// GetByID returns a document scoped to the tenant
func (s *DocumentService) GetByID(ctx context.Context, tenantID, documentID uuid.UUID) (*einvoice.Document, error) {
	return s.repo.FindByIDForTenant(ctx, tenantID, documentID)
}

// List returns a page of the tenant's documents
func (s *DocumentService) List(ctx context.Context, tenantID uuid.UUID, filter shared.Filter) ([]einvoice.Document, int64, error) {
	return s.repo.ListForTenant(ctx, tenantID, filter)
}

// AttachPayload stores the prepared transfer file for a document. The
// document must exist within the tenant before a payload is accepted.
func (s *DocumentService) AttachPayload(ctx context.Context, tenantID, documentID uuid.UUID, fileName string, content []byte) error {
	if len(content) == 0 {
		return shared.NewDomainError("VALIDATION_ERROR", "payload content is empty")
	}
	if fileName == "" {
		return shared.NewDomainError("VALIDATION_ERROR", "payload file name is required")
	}
	if _, err := s.repo.FindByIDForTenant(ctx, tenantID, documentID); err != nil {
		return err
	}
	return s.payloads.Store(ctx, tenantID, documentID, fileName, content)
}
