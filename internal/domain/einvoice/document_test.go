package einvoice

import (
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestDocument(t *testing.T) *Document {
	t.Helper()
	return NewDocument(uuid.New(), "INV-2026-000001", "Acme Ltd", "1234567890", decimal.NewFromInt(1500), "TRY")
}

func TestNewDocument(t *testing.T) {
	doc := newTestDocument(t)

	assert.NotEqual(t, uuid.Nil, doc.ID)
	assert.Equal(t, StatusDraft, doc.Status)
	assert.Empty(t, doc.ExternalRefID)
	assert.Nil(t, doc.ProviderStateCode)
	assert.False(t, doc.HasExternalRef())
}

func TestDocument_StatusTransitions(t *testing.T) {
	t.Run("happy path draft to delivered", func(t *testing.T) {
		doc := newTestDocument(t)

		require.NoError(t, doc.MarkSending(ProfileEInvoice))
		assert.Equal(t, StatusSending, doc.Status)
		assert.Equal(t, ProfileEInvoice, doc.Profile)

		require.NoError(t, doc.MarkSent("REF-001", StateQueued))
		assert.Equal(t, StatusSent, doc.Status)
		assert.Equal(t, "REF-001", doc.ExternalRefID)
		require.NotNil(t, doc.ProviderStateCode)
		assert.Equal(t, StateQueued, *doc.ProviderStateCode)

		require.NoError(t, doc.MarkDelivered(StateDelivered))
		assert.Equal(t, StatusDelivered, doc.Status)
		assert.Equal(t, StateDelivered, *doc.ProviderStateCode)
	})

	t.Run("sending to error", func(t *testing.T) {
		doc := newTestDocument(t)
		require.NoError(t, doc.MarkSending(ProfileEArchive))

		code := StateError
		require.NoError(t, doc.MarkFailed("provider rejected the document", &code))
		assert.Equal(t, StatusError, doc.Status)
		assert.Equal(t, "provider rejected the document", doc.ErrorMessage)
		assert.Equal(t, StateError, *doc.ProviderStateCode)
	})

	t.Run("sent to error", func(t *testing.T) {
		doc := newTestDocument(t)
		require.NoError(t, doc.MarkSending(ProfileEInvoice))
		require.NoError(t, doc.MarkSent("REF-002", StateQueued))

		require.NoError(t, doc.MarkFailed("processing error", nil))
		assert.Equal(t, StatusError, doc.Status)
		assert.Equal(t, StateError, *doc.ProviderStateCode)
	})

	t.Run("no edge skips sending", func(t *testing.T) {
		doc := newTestDocument(t)
		assert.ErrorIs(t, doc.MarkSent("REF-003", StateQueued), ErrInvalidTransition)
		assert.ErrorIs(t, doc.MarkDelivered(StateDelivered), ErrInvalidTransition)
	})

	t.Run("no edge from draft to delivered or error", func(t *testing.T) {
		doc := newTestDocument(t)
		assert.ErrorIs(t, doc.MarkDelivered(StateDelivered), ErrInvalidTransition)
		assert.ErrorIs(t, doc.MarkFailed("boom", nil), ErrInvalidTransition)
	})

	t.Run("terminal states accept no automatic transition", func(t *testing.T) {
		doc := newTestDocument(t)
		require.NoError(t, doc.MarkSending(ProfileEInvoice))
		require.NoError(t, doc.MarkSent("REF-004", StateQueued))
		require.NoError(t, doc.MarkDelivered(StateDelivered))

		assert.ErrorIs(t, doc.MarkSending(ProfileEInvoice), ErrDocumentTerminal)
		assert.ErrorIs(t, doc.MarkFailed("late error", nil), ErrDocumentTerminal)

		failed := newTestDocument(t)
		require.NoError(t, failed.MarkSending(ProfileEInvoice))
		require.NoError(t, failed.MarkFailed("rejected", nil))
		assert.ErrorIs(t, failed.MarkSending(ProfileEInvoice), ErrDocumentTerminal)
	})

	t.Run("resending while sending is allowed", func(t *testing.T) {
		doc := newTestDocument(t)
		require.NoError(t, doc.MarkSending(ProfileEInvoice))
		require.NoError(t, doc.MarkSending(ProfileEInvoice))
		assert.Equal(t, StatusSending, doc.Status)
	})

	t.Run("invalid profile rejected", func(t *testing.T) {
		doc := newTestDocument(t)
		assert.ErrorIs(t, doc.MarkSending(Profile("BOGUS")), ErrInvalidProfile)
	})
}

func TestDocument_ResetToDraft(t *testing.T) {
	doc := newTestDocument(t)
	require.NoError(t, doc.MarkSending(ProfileEInvoice))
	require.NoError(t, doc.MarkFailed("rejected", nil))

	doc.ResetToDraft()
	assert.Equal(t, StatusDraft, doc.Status)
	assert.Empty(t, doc.ErrorMessage)
	assert.Nil(t, doc.ProviderStateCode)

	// A fresh explicit submission is possible again
	require.NoError(t, doc.MarkSending(ProfileEArchive))
}

func TestDocument_StatusChangedEvents(t *testing.T) {
	doc := newTestDocument(t)
	require.NoError(t, doc.MarkSending(ProfileEInvoice))
	require.NoError(t, doc.MarkSent("REF-005", StateQueued))

	events := doc.GetDomainEvents()
	require.Len(t, events, 2)

	first, ok := events[0].(*DocumentStatusChangedEvent)
	require.True(t, ok)
	assert.Equal(t, StatusDraft, first.PreviousStatus)
	assert.Equal(t, StatusSending, first.Status)

	second, ok := events[1].(*DocumentStatusChangedEvent)
	require.True(t, ok)
	assert.Equal(t, StatusSending, second.PreviousStatus)
	assert.Equal(t, StatusSent, second.Status)

	doc.ClearDomainEvents()
	assert.Empty(t, doc.GetDomainEvents())
}

func TestDocumentStatus_IsTerminal(t *testing.T) {
	assert.True(t, StatusDelivered.IsTerminal())
	assert.True(t, StatusError.IsTerminal())
	assert.False(t, StatusDraft.IsTerminal())
	assert.False(t, StatusSending.IsTerminal())
	assert.False(t, StatusSent.IsTerminal())
}

func TestProfile_IsValid(t *testing.T) {
	assert.True(t, ProfileEInvoice.IsValid())
	assert.True(t, ProfileEArchive.IsValid())
	assert.False(t, Profile("SMS").IsValid())
}
