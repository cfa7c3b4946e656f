package einvoice

import (
	"errors"
	"sync"
	"time"

	"github.com/einvoice/backend/internal/domain/einvoice"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

var (
	// ErrConfirmationPending is returned when a conflict is detected for a
	// document that already has an open confirmation request. The first
	// request is never silently overwritten.
	ErrConfirmationPending = errors.New("einvoice: a confirmation request is already open for this document")
	// ErrNoConfirmationPending is returned when Confirm or Cancel is
	// called for a document with no open request.
	ErrNoConfirmationPending = errors.New("einvoice: no confirmation request is open for this document")
)

// ConfirmationGate holds open confirmation requests, one per document at
// most. A request is created when the provider reports a duplicate
// submission conflict and destroyed when the operator confirms or cancels.
// Gates for different documents are independent.
type ConfirmationGate struct {
	mu     sync.Mutex
	open   map[uuid.UUID]*ConfirmationRequest
	logger *zap.Logger
}

// NewConfirmationGate creates an empty gate registry
func NewConfirmationGate(logger *zap.Logger) *ConfirmationGate {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ConfirmationGate{
		open:   make(map[uuid.UUID]*ConfirmationRequest),
		logger: logger,
	}
}

// Open records a conflict awaiting an operator decision. Opening a second
// request for the same document is an error, not an overwrite.
func (g *ConfirmationGate) Open(tenantID, documentID uuid.UUID, snapshot einvoice.StatusSnapshot, opts SubmitOptions) (*ConfirmationRequest, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if _, exists := g.open[documentID]; exists {
		return nil, ErrConfirmationPending
	}

	req := &ConfirmationRequest{
		TenantID:   tenantID,
		DocumentID: documentID,
		Snapshot:   snapshot,
		Options:    opts,
		OpenedAt:   time.Now(),
	}
	g.open[documentID] = req

	g.logger.Info("confirmation gate opened",
		zap.String("document_id", documentID.String()),
		zap.Int("provider_state_code", req.Snapshot.StateCode),
	)
	return req, nil
}

// Get returns the open request for a document, if any
func (g *ConfirmationGate) Get(documentID uuid.UUID) (*ConfirmationRequest, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	req, ok := g.open[documentID]
	return req, ok
}

// Resolve closes the gate for a document and returns the request it held.
// Both confirm and cancel resolve through here; the caller decides whether
// a resubmission follows.
func (g *ConfirmationGate) Resolve(documentID uuid.UUID) (*ConfirmationRequest, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	req, ok := g.open[documentID]
	if !ok {
		return nil, ErrNoConfirmationPending
	}
	delete(g.open, documentID)

	g.logger.Info("confirmation gate resolved",
		zap.String("document_id", documentID.String()),
	)
	return req, nil
}

// OpenCount returns the number of open requests across all documents
func (g *ConfirmationGate) OpenCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.open)
}
