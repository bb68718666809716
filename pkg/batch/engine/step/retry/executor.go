package retry

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"

	metrics "github.com/tigerroll/congresso/pkg/batch/core/metrics"
	"github.com/tigerroll/congresso/pkg/batch/support/util/exception"
	"github.com/tigerroll/congresso/pkg/batch/support/util/logger"
)

// Executor runs operations under a RetryPolicy. One executor is built per API family
// and shared by all workers of a run.
type Executor struct {
	name     string
	policy   RetryPolicy
	recorder metrics.MetricRecorder
	sleep    func(ctx context.Context, d time.Duration) error
}

// NewExecutor creates an executor. name labels log lines and retry metrics.
func NewExecutor(name string, policy RetryPolicy, recorder metrics.MetricRecorder) *Executor {
	if recorder == nil {
		recorder = metrics.NewNoOpMetricRecorder()
	}
	return &Executor{name: name, policy: policy, recorder: recorder, sleep: Sleep}
}

// Name returns the executor name.
func (e *Executor) Name() string {
	return e.name
}

// Run calls op until it succeeds, fails permanently or the policy's attempts are exhausted.
func (e *Executor) Run(ctx context.Context, label string, op func(ctx context.Context) error) error {
	_, err := Execute(ctx, e, label, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, op(ctx)
	})
	return err
}

// Execute is Run for operations returning a value. After exhaustion the error is an
// OperationFailed BatchError wrapping the last attempt's error. Permanent errors are
// returned unchanged on the attempt that produced them.
func Execute[T any](ctx context.Context, e *Executor, label string, op func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	maxAttempts := e.policy.GetMaxAttempts()

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return zero, errors.Wrapf(err, "%s aborted", label)
		}
		logger.Debugf("[%s] %s: attempt %d/%d", e.name, label, attempt, maxAttempts)

		v, err := op(ctx)
		if err == nil {
			if attempt > 1 {
				logger.Infof("[%s] %s: succeeded on attempt %d/%d", e.name, label, attempt, maxAttempts)
			}
			return v, nil
		}
		lastErr = err

		if !e.policy.ShouldRetry(err) {
			logger.Debugf("[%s] %s: not retrying: %v", e.name, label, err)
			return zero, err
		}
		if attempt == maxAttempts {
			break
		}

		wait := time.Duration(e.policy.GetBackoffInterval(attempt)) * time.Millisecond
		logger.Warnf("[%s] %s: attempt %d/%d failed, retrying in %s: %v", e.name, label, attempt, maxAttempts, wait, err)
		e.recorder.RecordRetry(ctx, e.name, attempt)
		if err := e.sleep(ctx, wait); err != nil {
			return zero, errors.Wrapf(err, "%s aborted while waiting to retry", label)
		}
	}

	logger.Errorf("[%s] %s: giving up after %d attempts: %v", e.name, label, maxAttempts, lastErr)
	return zero, exception.NewOperationFailedError(label, maxAttempts, lastErr)
}

// Sleep waits for d or until ctx is done.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
