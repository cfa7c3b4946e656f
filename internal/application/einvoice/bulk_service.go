package einvoice

import (
	"context"
	"sync"
	"time"

	"github.com/einvoice/backend/internal/domain/einvoice"
	"github.com/einvoice/backend/internal/domain/shared"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	defaultReconcileLimit        = 50
	defaultReconcileCheckTimeout = 30 * time.Second
)

// BulkReconcileService sweeps non-terminal documents that carry an external
// reference and checks each against the provider once. It exists for
// documents the per-document poller missed: a crashed process, an exhausted
// poll budget, or a provider that was slow past every backoff window.
type BulkReconcileService struct {
	repo      einvoice.DocumentRepository
	publisher shared.EventPublisher
	checker   statusChecker
	logger    *zap.Logger

	limit        int
	checkTimeout time.Duration
}

// BulkReconcileServiceConfig holds configuration for the reconciler
type BulkReconcileServiceConfig struct {
	Repo           einvoice.DocumentRepository
	Provider       einvoice.ExchangeProvider
	EventPublisher shared.EventPublisher
	Logger         *zap.Logger

	Limit        int           // Documents per pass, least recently checked first
	CheckTimeout time.Duration // Deadline for a single status call
}

// NewBulkReconcileService creates a new BulkReconcileService
func NewBulkReconcileService(config BulkReconcileServiceConfig) *BulkReconcileService {
	logger := config.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	if config.Limit <= 0 {
		config.Limit = defaultReconcileLimit
	}
	if config.CheckTimeout <= 0 {
		config.CheckTimeout = defaultReconcileCheckTimeout
	}

	return &BulkReconcileService{
		repo:      config.Repo,
		publisher: config.EventPublisher,
		checker: statusChecker{
			repo:      config.Repo,
			provider:  config.Provider,
			publisher: config.EventPublisher,
			logger:    logger,
		},
		logger:       logger,
		limit:        config.Limit,
		checkTimeout: config.CheckTimeout,
	}
}

// Reconcile runs one bulk pass: fetch up to the configured limit of
// reconcilable documents, check each concurrently, and publish a single
// aggregate notification once every check has settled. Per-document
// retryable outcomes are neither successes nor errors; those documents
// simply wait for the next pass.
func (s *BulkReconcileService) Reconcile(ctx context.Context) (*ReconcileResult, error) {
	docs, err := s.repo.FindReconcilable(ctx, s.limit)
	if err != nil {
		return nil, err
	}

	result := &ReconcileResult{Checked: len(docs)}
	if len(docs) == 0 {
		return result, nil
	}

	var (
		wg sync.WaitGroup
		mu sync.Mutex
	)
	for i := range docs {
		doc := &docs[i]
		wg.Add(1)
		go func() {
			defer wg.Done()

			checkCtx, cancel := context.WithTimeout(ctx, s.checkTimeout)
			defer cancel()

			verdict, checkErr := s.checker.check(checkCtx, doc)

			mu.Lock()
			defer mu.Unlock()
			switch {
			case checkErr != nil:
				result.ErrorCount++
				s.logger.Warn("reconcile check failed",
					zap.String("document_id", doc.ID.String()),
					zap.Error(checkErr),
				)
			case verdict.Kind == einvoice.KindResolved:
				result.SuccessCount++
			case verdict.Kind.IsFailure() && !verdict.Retryable:
				result.ErrorCount++
			}
		}()
	}
	wg.Wait()

	if s.publisher != nil {
		event := einvoice.NewBulkRefreshCompletedEvent(uuid.Nil, result.Checked, result.SuccessCount, result.ErrorCount)
		if err := s.publisher.Publish(ctx, event); err != nil {
			s.logger.Warn("failed to publish bulk refresh notification", zap.Error(err))
		}
	}

	s.logger.Info("bulk reconciliation pass completed",
		zap.Int("checked", result.Checked),
		zap.Int("success_count", result.SuccessCount),
		zap.Int("error_count", result.ErrorCount),
	)
	return result, nil
}
