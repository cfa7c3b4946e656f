package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	appeinvoice "github.com/einvoice/backend/internal/application/einvoice"
)

// stubReconciler counts passes and returns a canned result
type stubReconciler struct {
	calls  atomic.Int64
	result *appeinvoice.ReconcileResult
	err    error
}

func (s *stubReconciler) Reconcile(_ context.Context) (*appeinvoice.ReconcileResult, error) {
	s.calls.Add(1)
	if s.err != nil {
		return nil, s.err
	}
	return s.result, nil
}

func TestReconcileSchedulerConfig_Validate(t *testing.T) {
	t.Run("defaults are valid", func(t *testing.T) {
		config := DefaultReconcileSchedulerConfig()
		assert.NoError(t, config.Validate())
	})

	t.Run("rejects non-positive interval", func(t *testing.T) {
		config := DefaultReconcileSchedulerConfig()
		config.Interval = 0
		assert.ErrorIs(t, config.Validate(), ErrInvalidConfig)
	})

	t.Run("rejects non-positive pass timeout", func(t *testing.T) {
		config := DefaultReconcileSchedulerConfig()
		config.PassTimeout = -1 * time.Second
		assert.ErrorIs(t, config.Validate(), ErrInvalidConfig)
	})
}

func TestReconcileScheduler_RunsPeriodicPasses(t *testing.T) {
	reconciler := &stubReconciler{result: &appeinvoice.ReconcileResult{Checked: 3, SuccessCount: 2, ErrorCount: 1}}
	scheduler, err := NewReconcileScheduler(ReconcileSchedulerConfig{
		Enabled:     true,
		Interval:    10 * time.Millisecond,
		PassTimeout: time.Second,
	}, reconciler, zap.NewNop())
	require.NoError(t, err)

	require.NoError(t, scheduler.Start(context.Background()))
	defer scheduler.Stop(context.Background())

	require.Eventually(t, func() bool {
		return reconciler.calls.Load() >= 2
	}, time.Second, 5*time.Millisecond)

	assert.NotNil(t, scheduler.LastRunAt())
}

func TestReconcileScheduler_DisabledStaysStopped(t *testing.T) {
	reconciler := &stubReconciler{result: &appeinvoice.ReconcileResult{}}
	scheduler, err := NewReconcileScheduler(ReconcileSchedulerConfig{
		Enabled:     false,
		Interval:    5 * time.Millisecond,
		PassTimeout: time.Second,
	}, reconciler, zap.NewNop())
	require.NoError(t, err)

	require.NoError(t, scheduler.Start(context.Background()))
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, int64(0), reconciler.calls.Load())

	_, err = scheduler.TriggerManualRun(context.Background())
	assert.ErrorIs(t, err, ErrSchedulerNotRunning)

	require.NoError(t, scheduler.Stop(context.Background()))
}

func TestReconcileScheduler_StopHaltsPasses(t *testing.T) {
	reconciler := &stubReconciler{result: &appeinvoice.ReconcileResult{}}
	scheduler, err := NewReconcileScheduler(ReconcileSchedulerConfig{
		Enabled:     true,
		Interval:    10 * time.Millisecond,
		PassTimeout: time.Second,
	}, reconciler, zap.NewNop())
	require.NoError(t, err)

	require.NoError(t, scheduler.Start(context.Background()))
	require.Eventually(t, func() bool {
		return reconciler.calls.Load() >= 1
	}, time.Second, 5*time.Millisecond)

	require.NoError(t, scheduler.Stop(context.Background()))
	after := reconciler.calls.Load()
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, after, reconciler.calls.Load())
}

func TestReconcileScheduler_TriggerManualRun(t *testing.T) {
	reconciler := &stubReconciler{result: &appeinvoice.ReconcileResult{Checked: 5}}
	scheduler, err := NewReconcileScheduler(ReconcileSchedulerConfig{
		Enabled:     true,
		Interval:    time.Hour,
		PassTimeout: time.Second,
	}, reconciler, zap.NewNop())
	require.NoError(t, err)

	t.Run("rejected while stopped", func(t *testing.T) {
		_, err := scheduler.TriggerManualRun(context.Background())
		assert.ErrorIs(t, err, ErrSchedulerNotRunning)
	})

	require.NoError(t, scheduler.Start(context.Background()))
	defer scheduler.Stop(context.Background())

	t.Run("runs a pass on demand", func(t *testing.T) {
		result, err := scheduler.TriggerManualRun(context.Background())
		require.NoError(t, err)
		assert.Equal(t, 5, result.Checked)
		assert.Equal(t, int64(1), reconciler.calls.Load())
	})

	t.Run("propagates pass failure", func(t *testing.T) {
		reconciler.err = errors.New("repository offline")
		_, err := scheduler.TriggerManualRun(context.Background())
		assert.Error(t, err)
	})
}

func TestReconcileScheduler_StartIsIdempotent(t *testing.T) {
	reconciler := &stubReconciler{result: &appeinvoice.ReconcileResult{}}
	scheduler, err := NewReconcileScheduler(DefaultReconcileSchedulerConfig(), reconciler, zap.NewNop())
	require.NoError(t, err)

	require.NoError(t, scheduler.Start(context.Background()))
	require.NoError(t, scheduler.Start(context.Background()))
	require.NoError(t, scheduler.Stop(context.Background()))
	require.NoError(t, scheduler.Stop(context.Background()))
}
