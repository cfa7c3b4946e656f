package einvoice

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/einvoice/backend/internal/domain/einvoice"
	"github.com/einvoice/backend/internal/domain/shared"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	defaultPollBaseDelay    = 30 * time.Second
	defaultPollMaxDelay     = 5 * time.Minute
	defaultPollMaxAttempts  = 10
	defaultPollCheckTimeout = 30 * time.Second
)

// StatusPoller re-checks submitted documents against the provider with
// exponential backoff until the provider reports a terminal state or the
// attempt budget runs out. One timer per document at most; scheduling a
// document that already has a pending poll replaces it.
type StatusPoller struct {
	checker statusChecker
	repo    einvoice.DocumentRepository
	logger  *zap.Logger

	baseDelay    time.Duration
	maxDelay     time.Duration
	maxAttempts  int
	checkTimeout time.Duration

	mu     sync.Mutex
	timers map[uuid.UUID]*time.Timer
	closed bool
}

// StatusPollerConfig holds configuration for the poller
type StatusPollerConfig struct {
	Repo           einvoice.DocumentRepository
	Provider       einvoice.ExchangeProvider
	EventPublisher shared.EventPublisher
	Logger         *zap.Logger

	BaseDelay    time.Duration // First backoff step, doubled per attempt
	MaxDelay     time.Duration // Backoff ceiling
	MaxAttempts  int           // Poll budget per scheduled document
	CheckTimeout time.Duration // Deadline for a single status call
}

// NewStatusPoller creates a new StatusPoller
func NewStatusPoller(config StatusPollerConfig) *StatusPoller {
	logger := config.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	if config.BaseDelay <= 0 {
		config.BaseDelay = defaultPollBaseDelay
	}
	if config.MaxDelay <= 0 {
		config.MaxDelay = defaultPollMaxDelay
	}
	if config.MaxAttempts <= 0 {
		config.MaxAttempts = defaultPollMaxAttempts
	}
	if config.CheckTimeout <= 0 {
		config.CheckTimeout = defaultPollCheckTimeout
	}

	return &StatusPoller{
		checker: statusChecker{
			repo:      config.Repo,
			provider:  config.Provider,
			publisher: config.EventPublisher,
			logger:    logger,
		},
		repo:         config.Repo,
		logger:       logger,
		baseDelay:    config.BaseDelay,
		maxDelay:     config.MaxDelay,
		maxAttempts:  config.MaxAttempts,
		checkTimeout: config.CheckTimeout,
		timers:       make(map[uuid.UUID]*time.Timer),
	}
}

// Delay returns the backoff delay after the given attempt: the base delay
// doubled per attempt, capped at the configured ceiling.
func (p *StatusPoller) Delay(attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	// Shifting past 62 bits would wrap; anything that far is over the
	// ceiling anyway.
	if attempt > 30 {
		return p.maxDelay
	}
	d := p.baseDelay << uint(attempt)
	if d <= 0 || d > p.maxDelay {
		return p.maxDelay
	}
	return d
}

// Schedule arranges a status poll for the document after the given delay.
// A pending poll for the same document is cancelled first, so each document
// holds at most one timer.
func (p *StatusPoller) Schedule(documentID uuid.UUID, delay time.Duration, attempt int) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return
	}
	if existing, ok := p.timers[documentID]; ok {
		existing.Stop()
	}
	p.timers[documentID] = time.AfterFunc(delay, func() {
		p.poll(documentID, attempt)
	})

	p.logger.Debug("status poll scheduled",
		zap.String("document_id", documentID.String()),
		zap.Duration("delay", delay),
		zap.Int("attempt", attempt),
	)
}

// Cancel drops the pending poll for a document, if any
func (p *StatusPoller) Cancel(documentID uuid.UUID) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if timer, ok := p.timers[documentID]; ok {
		timer.Stop()
		delete(p.timers, documentID)
	}
}

// PendingCount returns the number of documents with a pending poll
func (p *StatusPoller) PendingCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.timers)
}

// Shutdown stops all pending polls. The poller accepts no new schedules
// afterwards.
func (p *StatusPoller) Shutdown() {
	p.mu.Lock()
	defer p.mu.Unlock()

	for id, timer := range p.timers {
		timer.Stop()
		delete(p.timers, id)
	}
	p.closed = true
	p.logger.Info("status poller stopped")
}

// poll runs one status check and decides whether a follow-up is due. Any
// outcome that leaves the document non-terminal, a still-processing report
// and a transport blip alike, reschedules with backoff within the attempt
// budget; an exhausted budget is logged and left for the bulk reconciler,
// not treated as a document failure.
func (p *StatusPoller) poll(documentID uuid.UUID, attempt int) {
	p.mu.Lock()
	delete(p.timers, documentID)
	closed := p.closed
	p.mu.Unlock()
	if closed {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), p.checkTimeout)
	defer cancel()

	doc, err := p.repo.FindByID(ctx, documentID)
	if err != nil {
		if errors.Is(err, einvoice.ErrDocumentNotFound) {
			p.logger.Debug("polled document no longer exists",
				zap.String("document_id", documentID.String()),
			)
			return
		}
		p.logger.Error("failed to load document for status poll",
			zap.String("document_id", documentID.String()),
			zap.Error(err),
		)
		p.reschedule(documentID, attempt)
		return
	}
	if doc.Status.IsTerminal() {
		return
	}

	verdict, err := p.checker.check(ctx, doc)
	if err != nil {
		p.logger.Error("status poll failed",
			zap.String("document_id", documentID.String()),
			zap.Int("attempt", attempt),
			zap.Error(err),
		)
		p.reschedule(documentID, attempt)
		return
	}

	if !doc.Status.IsTerminal() {
		p.reschedule(documentID, attempt)
		return
	}

	p.logger.Info("status poll settled document",
		zap.String("document_id", documentID.String()),
		zap.String("kind", string(verdict.Kind)),
		zap.Int("attempt", attempt),
	)
}

// reschedule queues the next attempt unless the budget is spent. Running
// out of attempts is expected for slow documents; the periodic bulk
// reconciliation picks them up later.
func (p *StatusPoller) reschedule(documentID uuid.UUID, attempt int) {
	next := attempt + 1
	if next >= p.maxAttempts {
		p.logger.Info("status poll budget exhausted, leaving document to bulk reconciliation",
			zap.String("document_id", documentID.String()),
			zap.Int("attempts", p.maxAttempts),
		)
		return
	}
	p.Schedule(documentID, p.Delay(attempt), next)
}
