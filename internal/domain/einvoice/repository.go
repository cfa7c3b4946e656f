package einvoice

import (
	"context"

	"github.com/einvoice/backend/internal/domain/shared"
	"github.com/google/uuid"
)

// DocumentRepository defines persistence for exchange documents
type DocumentRepository interface {
	// Save creates or updates a document, honouring optimistic locking
	Save(ctx context.Context, doc *Document) error

	// FindByID finds a document by its ID
	FindByID(ctx context.Context, id uuid.UUID) (*Document, error)

	// FindByIDForTenant finds a document by ID within a tenant
	FindByIDForTenant(ctx context.Context, tenantID, id uuid.UUID) (*Document, error)

	// FindByExternalRef finds a document by the provider-assigned reference
	FindByExternalRef(ctx context.Context, tenantID uuid.UUID, externalRefID string) (*Document, error)

	// FindReconcilable returns up to limit documents that carry an
	// external reference id but have not reached a terminal state,
	// least-recently-checked first.
	FindReconcilable(ctx context.Context, limit int) ([]Document, error)

	// ListForTenant returns a page of documents for a tenant
	ListForTenant(ctx context.Context, tenantID uuid.UUID, filter shared.Filter) ([]Document, int64, error)
}
