package einvoice

import (
	"context"
	"errors"
	"testing"

	"github.com/einvoice/backend/internal/domain/einvoice"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestBulkReconcileService_EmptyPass(t *testing.T) {
	repo := &MockDocumentRepository{}
	publisher := &MockEventPublisher{}

	repo.On("FindReconcilable", mock.Anything, 50).Return([]einvoice.Document{}, nil)

	svc := NewBulkReconcileService(BulkReconcileServiceConfig{
		Repo:           repo,
		Provider:       &MockExchangeProvider{},
		EventPublisher: publisher,
	})

	result, err := svc.Reconcile(context.Background())

	require.NoError(t, err)
	assert.Equal(t, 0, result.Checked)
	publisher.AssertNotCalled(t, "Publish", mock.Anything, mock.Anything)
}

func TestBulkReconcileService_MixedOutcomes(t *testing.T) {
	tenantID := uuid.New()
	delivered := newSentDocument(tenantID, "VRB-BULK-1")
	failed := newSentDocument(tenantID, "VRB-BULK-2")
	pending := newSentDocument(tenantID, "VRB-BULK-3")

	repo := &MockDocumentRepository{}
	provider := &MockExchangeProvider{}
	publisher := &MockEventPublisher{}

	repo.On("FindReconcilable", mock.Anything, 50).Return([]einvoice.Document{*delivered, *failed, *pending}, nil)
	repo.On("Save", mock.Anything, mock.Anything).Return(nil)
	publisher.On("Publish", mock.Anything, mock.Anything).Return(nil)

	statusFor := func(ref string) interface{} {
		return mock.MatchedBy(func(req einvoice.StatusRequest) bool {
			return req.ExternalRefID == ref
		})
	}
	provider.On("GetStatus", mock.Anything, statusFor("VRB-BULK-1")).
		Return(&einvoice.StatusResult{StateCode: einvoice.StateDelivered, StateName: "DONE"}, nil)
	provider.On("GetStatus", mock.Anything, statusFor("VRB-BULK-2")).
		Return(&einvoice.StatusResult{StateCode: einvoice.StateError, Description: "rejected upstream"}, nil)
	provider.On("GetStatus", mock.Anything, statusFor("VRB-BULK-3")).
		Return(&einvoice.StatusResult{StateCode: einvoice.StateQueued, StateName: "QUEUED"}, nil)

	svc := NewBulkReconcileService(BulkReconcileServiceConfig{
		Repo:           repo,
		Provider:       provider,
		EventPublisher: publisher,
	})

	result, err := svc.Reconcile(context.Background())

	require.NoError(t, err)
	assert.Equal(t, 3, result.Checked)
	assert.Equal(t, 1, result.SuccessCount)
	assert.Equal(t, 1, result.ErrorCount)

	// One aggregate notification for the whole pass, never one per document
	var bulkEvents int
	for _, event := range publisher.PublishedEvents() {
		if event.EventType() == "BulkRefreshCompleted" {
			bulkEvents++
		}
	}
	assert.Equal(t, 1, bulkEvents)
}

func TestBulkReconcileService_CheckFailureCountsAsError(t *testing.T) {
	tenantID := uuid.New()
	doc := newSentDocument(tenantID, "VRB-BULK-4")

	repo := &MockDocumentRepository{}
	provider := &MockExchangeProvider{}
	publisher := &MockEventPublisher{}

	repo.On("FindReconcilable", mock.Anything, 50).Return([]einvoice.Document{*doc}, nil)
	repo.On("Save", mock.Anything, mock.Anything).Return(errors.New("connection reset"))
	publisher.On("Publish", mock.Anything, mock.Anything).Return(nil)
	provider.On("GetStatus", mock.Anything, mock.Anything).Return(&einvoice.StatusResult{
		StateCode: einvoice.StateDelivered,
	}, nil)

	svc := NewBulkReconcileService(BulkReconcileServiceConfig{
		Repo:           repo,
		Provider:       provider,
		EventPublisher: publisher,
	})

	result, err := svc.Reconcile(context.Background())

	require.NoError(t, err)
	assert.Equal(t, 1, result.Checked)
	assert.Equal(t, 0, result.SuccessCount)
	assert.Equal(t, 1, result.ErrorCount)
}

func TestBulkReconcileService_RepositoryFailure(t *testing.T) {
	repo := &MockDocumentRepository{}
	repo.On("FindReconcilable", mock.Anything, 50).Return(nil, errors.New("database unavailable"))

	svc := NewBulkReconcileService(BulkReconcileServiceConfig{
		Repo:           repo,
		Provider:       &MockExchangeProvider{},
		EventPublisher: &MockEventPublisher{},
	})

	_, err := svc.Reconcile(context.Background())
	assert.Error(t, err)
}

func TestBulkReconcileService_HonoursConfiguredLimit(t *testing.T) {
	repo := &MockDocumentRepository{}
	repo.On("FindReconcilable", mock.Anything, 10).Return([]einvoice.Document{}, nil)

	svc := NewBulkReconcileService(BulkReconcileServiceConfig{
		Repo:           repo,
		Provider:       &MockExchangeProvider{},
		EventPublisher: &MockEventPublisher{},
		Limit:          10,
	})

	_, err := svc.Reconcile(context.Background())
	require.NoError(t, err)
	repo.AssertExpectations(t)
}
