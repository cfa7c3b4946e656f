package einvoice

import (
	"context"

	"github.com/einvoice/backend/internal/domain/einvoice"
	"github.com/einvoice/backend/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"
)

// =============================================================================
// Mock Document Repository
// =============================================================================

type MockDocumentRepository struct {
	mock.Mock
}

func (m *MockDocumentRepository) Save(ctx context.Context, doc *einvoice.Document) error {
	args := m.Called(ctx, doc)
	return args.Error(0)
}

func (m *MockDocumentRepository) FindByID(ctx context.Context, id uuid.UUID) (*einvoice.Document, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*einvoice.Document), args.Error(1)
}

func (m *MockDocumentRepository) FindByIDForTenant(ctx context.Context, tenantID, id uuid.UUID) (*einvoice.Document, error) {
	args := m.Called(ctx, tenantID, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*einvoice.Document), args.Error(1)
}

func (m *MockDocumentRepository) FindByExternalRef(ctx context.Context, tenantID uuid.UUID, externalRefID string) (*einvoice.Document, error) {
	args := m.Called(ctx, tenantID, externalRefID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*einvoice.Document), args.Error(1)
}

func (m *MockDocumentRepository) FindReconcilable(ctx context.Context, limit int) ([]einvoice.Document, error) {
	args := m.Called(ctx, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]einvoice.Document), args.Error(1)
}

func (m *MockDocumentRepository) ListForTenant(ctx context.Context, tenantID uuid.UUID, filter shared.Filter) ([]einvoice.Document, int64, error) {
	args := m.Called(ctx, tenantID, filter)
	if args.Get(0) == nil {
		return nil, args.Get(1).(int64), args.Error(2)
	}
	return args.Get(0).([]einvoice.Document), args.Get(1).(int64), args.Error(2)
}

// =============================================================================
// Mock Exchange Provider
// =============================================================================

type MockExchangeProvider struct {
	mock.Mock
}

func (m *MockExchangeProvider) Submit(ctx context.Context, req einvoice.SubmitRequest) (*einvoice.SubmitResult, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*einvoice.SubmitResult), args.Error(1)
}

func (m *MockExchangeProvider) GetStatus(ctx context.Context, req einvoice.StatusRequest) (*einvoice.StatusResult, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*einvoice.StatusResult), args.Error(1)
}

// =============================================================================
// Mock Taxpayer Directory
// =============================================================================

type MockTaxpayerDirectory struct {
	mock.Mock
}

func (m *MockTaxpayerDirectory) IsRegistered(ctx context.Context, tenantID uuid.UUID, taxID string) (bool, error) {
	args := m.Called(ctx, tenantID, taxID)
	return args.Get(0).(bool), args.Error(1)
}

// =============================================================================
// Mock Event Publisher
// =============================================================================

type MockEventPublisher struct {
	mock.Mock
}

func (m *MockEventPublisher) Publish(ctx context.Context, events ...shared.DomainEvent) error {
	args := m.Called(ctx, events)
	return args.Error(0)
}

// PublishedEvents flattens every event passed across all Publish calls
func (m *MockEventPublisher) PublishedEvents() []shared.DomainEvent {
	var out []shared.DomainEvent
	for _, call := range m.Calls {
		if call.Method != "Publish" {
			continue
		}
		if events, ok := call.Arguments.Get(1).([]shared.DomainEvent); ok {
			out = append(out, events...)
		}
	}
	return out
}

// =============================================================================
// Test fixtures
// =============================================================================

func newDraftDocument(tenantID uuid.UUID) *einvoice.Document {
	return einvoice.NewDocument(
		tenantID,
		"INV-2026-0042",
		"Acme Wholesale Ltd",
		"1234567890",
		decimal.NewFromFloat(1250.75),
		"TRY",
	)
}

func newSentDocument(tenantID uuid.UUID, externalRefID string) *einvoice.Document {
	doc := newDraftDocument(tenantID)
	_ = doc.MarkSending(einvoice.ProfileEInvoice)
	_ = doc.MarkSent(externalRefID, einvoice.StateQueued)
	doc.ClearDomainEvents()
	return doc
}
