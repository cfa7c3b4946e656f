package einvoice

import (
	"context"
	"time"

	"github.com/einvoice/backend/internal/domain/einvoice"
	"github.com/einvoice/backend/internal/domain/shared"
	"go.uber.org/zap"
)

// statusChecker performs one provider status lookup for a document and
// applies the classified outcome to it. Shared by the on-demand check, the
// background poller, and the bulk reconciler so all three settle documents
// by the same rules.
type statusChecker struct {
	repo      einvoice.DocumentRepository
	provider  einvoice.ExchangeProvider
	publisher shared.EventPublisher
	logger    *zap.Logger
}

// check queries the provider once and persists whatever the classification
// dictates: delivered on a terminal success report, error only when the
// provider itself reports a processing failure, no status change otherwise.
// The last-check timestamp is stamped either way.
func (c *statusChecker) check(ctx context.Context, doc *einvoice.Document) (einvoice.Classification, error) {
	if !doc.HasExternalRef() {
		return einvoice.Classification{}, einvoice.ErrMissingExternalRef
	}

	res, callErr := c.provider.GetStatus(ctx, einvoice.StatusRequest{
		TenantID:      doc.TenantID,
		ExternalRefID: doc.ExternalRefID,
		Profile:       doc.Profile,
	})
	verdict := einvoice.ClassifyStatus(res, callErr)
	doc.RecordStatusCheck(time.Now())

	switch {
	case verdict.Kind == einvoice.KindResolved:
		code := einvoice.StateDelivered
		if verdict.StateCode != nil {
			code = *verdict.StateCode
		}
		if err := doc.MarkDelivered(code); err != nil {
			c.logger.Warn("cannot mark document delivered",
				zap.String("document_id", doc.ID.String()),
				zap.String("status", doc.Status.String()),
				zap.Error(err),
			)
		}
	case verdict.Kind == einvoice.KindProviderError:
		if err := doc.MarkFailed(verdict.Message, verdict.StateCode); err != nil {
			c.logger.Warn("cannot mark document failed",
				zap.String("document_id", doc.ID.String()),
				zap.String("status", doc.Status.String()),
				zap.Error(err),
			)
		}
	case verdict.Kind.IsFailure() && !verdict.Retryable:
		// Auth and transport failures say nothing about the document
		// itself; the provider may still deliver it. The status stays
		// as is and a later check settles it.
		c.logger.Warn("status check failed without a provider verdict",
			zap.String("document_id", doc.ID.String()),
			zap.String("kind", string(verdict.Kind)),
			zap.String("message", verdict.Message),
		)
	}

	if err := c.repo.Save(ctx, doc); err != nil {
		return verdict, err
	}
	c.publishEvents(ctx, doc)

	return verdict, nil
}

// publishEvents drains the document's pending domain events onto the bus.
// Publish failures are logged, not propagated: the status change is already
// persisted and must not be rolled back over a notification problem.
func (c *statusChecker) publishEvents(ctx context.Context, doc *einvoice.Document) {
	events := doc.GetDomainEvents()
	if len(events) == 0 {
		return
	}
	if c.publisher == nil {
		doc.ClearDomainEvents()
		return
	}
	if err := c.publisher.Publish(ctx, events...); err != nil {
		c.logger.Warn("failed to publish document events",
			zap.String("document_id", doc.ID.String()),
			zap.Error(err),
		)
	}
	doc.ClearDomainEvents()
}
