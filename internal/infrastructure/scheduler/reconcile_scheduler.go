package scheduler

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	appeinvoice "github.com/einvoice/backend/internal/application/einvoice"
)

// Reconciler runs one bulk status reconciliation pass
type Reconciler interface {
	Reconcile(ctx context.Context) (*appeinvoice.ReconcileResult, error)
}

// ReconcileSchedulerConfig holds configuration for the periodic
// reconciliation scheduler
type ReconcileSchedulerConfig struct {
	// Enabled indicates if the scheduler is enabled
	Enabled bool
	// Interval is how often a reconciliation pass runs
	Interval time.Duration
	// PassTimeout is the maximum time a single pass can run
	PassTimeout time.Duration
}

// DefaultReconcileSchedulerConfig returns default configuration
func DefaultReconcileSchedulerConfig() ReconcileSchedulerConfig {
	return ReconcileSchedulerConfig{
		Enabled:     true,
		Interval:    15 * time.Minute,
		PassTimeout: 5 * time.Minute,
	}
}

// Validate validates the configuration
func (c *ReconcileSchedulerConfig) Validate() error {
	if c.Interval <= 0 {
		return ErrInvalidConfig
	}
	if c.PassTimeout <= 0 {
		return ErrInvalidConfig
	}
	return nil
}

// ReconcileScheduler periodically sweeps documents the per-document pollers
// no longer cover. A pass is also triggerable on demand.
type ReconcileScheduler struct {
	config     ReconcileSchedulerConfig
	reconciler Reconciler
	logger     *zap.Logger

	cancel    context.CancelFunc
	wg        sync.WaitGroup
	mu        sync.Mutex
	isRunning bool
	lastRunAt *time.Time
}

// NewReconcileScheduler creates a new reconciliation scheduler
func NewReconcileScheduler(config ReconcileSchedulerConfig, reconciler Reconciler, logger *zap.Logger) (*ReconcileScheduler, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ReconcileScheduler{
		config:     config,
		reconciler: reconciler,
		logger:     logger,
	}, nil
}

// Start starts the scheduler loop. A disabled scheduler stays stopped and
// rejects manual runs.
func (s *ReconcileScheduler) Start(ctx context.Context) error {
	if !s.config.Enabled {
		s.logger.Info("reconcile scheduler disabled by configuration")
		return nil
	}

	s.mu.Lock()
	if s.isRunning {
		s.mu.Unlock()
		return nil
	}
	s.isRunning = true
	s.mu.Unlock()

	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel

	s.wg.Add(1)
	go s.loop(ctx)

	s.logger.Info("reconcile scheduler started",
		zap.Duration("interval", s.config.Interval),
		zap.Duration("pass_timeout", s.config.PassTimeout),
	)
	return nil
}

// Stop gracefully stops the scheduler, waiting for an in-flight pass
func (s *ReconcileScheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.isRunning {
		s.mu.Unlock()
		return nil
	}
	s.isRunning = false
	s.mu.Unlock()

	if s.cancel != nil {
		s.cancel()
	}

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.logger.Info("reconcile scheduler stopped")
		return nil
	case <-ctx.Done():
		s.logger.Warn("reconcile scheduler stop timed out")
		return ctx.Err()
	}
}

// TriggerManualRun runs one pass outside the regular schedule
func (s *ReconcileScheduler) TriggerManualRun(ctx context.Context) (*appeinvoice.ReconcileResult, error) {
	s.mu.Lock()
	running := s.isRunning
	s.mu.Unlock()
	if !running {
		return nil, ErrSchedulerNotRunning
	}
	return s.runPass(ctx)
}

// LastRunAt returns the time of the most recent pass
func (s *ReconcileScheduler) LastRunAt() *time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastRunAt
}

func (s *ReconcileScheduler) loop(ctx context.Context) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := s.runPass(ctx); err != nil {
				s.logger.Error("reconciliation pass failed", zap.Error(err))
			}
		}
	}
}

func (s *ReconcileScheduler) runPass(ctx context.Context) (*appeinvoice.ReconcileResult, error) {
	passCtx, cancel := context.WithTimeout(ctx, s.config.PassTimeout)
	defer cancel()

	now := time.Now()
	s.mu.Lock()
	s.lastRunAt = &now
	s.mu.Unlock()

	result, err := s.reconciler.Reconcile(passCtx)
	if err != nil {
		return nil, err
	}

	s.logger.Info("reconciliation pass finished",
		zap.Int("checked", result.Checked),
		zap.Int("success_count", result.SuccessCount),
		zap.Int("error_count", result.ErrorCount),
	)
	return result, nil
}
