package executor

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/avi3tal/stepflow/pkg/agent"
)

// SleepFunc waits between retry attempts. Tests substitute a recording no-op.
type SleepFunc func(ctx context.Context, d time.Duration)

func defaultSleep(ctx context.Context, d time.Duration) {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}

// backoffDelay returns the wait before retry attempt n (1-indexed): 1s, 2s,
// 4s, 8s, doubling without cap.
func backoffDelay(attempt int) time.Duration {
	return time.Second << (attempt - 1)
}

// executeWithRetry drives a single step: up to retries re-attempts beyond the
// first, exponential backoff between attempts, the same input every time.
// Attempt errors are never partially consumed; the last one propagates whole.
func (e *Executor) executeWithRetry(
	ctx context.Context,
	a agent.Agent,
	input any,
	retries int,
	logger *zap.Logger,
) (agent.Result, error) {
	attempt := 0
	for {
		res, err := agent.Execute(ctx, a, input)
		if err == nil {
			return res, nil
		}

		attempt++
		if attempt > retries {
			return agent.Result{}, err
		}

		delay := backoffDelay(attempt)
		logger.Warn("step attempt failed, backing off",
			zap.Int("attempt", attempt),
			zap.Int("retries", retries),
			zap.Duration("backoff", delay),
			zap.Error(err))
		e.sleep(ctx, delay)
	}
}
