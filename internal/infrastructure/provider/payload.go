package provider

import (
	"context"

	"github.com/google/uuid"

	"github.com/einvoice/backend/internal/domain/einvoice"
)

// TransferPayload is the prepared document file handed to the exchange
// provider. Content is the packaged UBL document; the adapter encodes and
// hashes it for the wire.
type TransferPayload struct {
	FileName string
	Content  []byte
}

// PayloadSource resolves the prepared transfer file for a document.
// Document content is assembled upstream when the document is drafted; the
// submission path only reads it back.
type PayloadSource interface {
	Fetch(ctx context.Context, tenantID, documentID uuid.UUID, profile einvoice.Profile) (*TransferPayload, error)
}
