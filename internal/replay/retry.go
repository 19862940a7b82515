package replay

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
)

const defaultRetryBackoff = 100 * time.Millisecond

// retry calls fn up to MaxRetries+1 times. The wait starts at RetryBackoff
// and doubles after every failed attempt.
func (r *Runner) retry(ctx context.Context, op string, fn func(context.Context) error) error {
	attempts := r.cfg.MaxRetries + 1
	if attempts < 1 {
		attempts = 1
	}
	delay := r.cfg.RetryBackoff
	if delay <= 0 {
		delay = defaultRetryBackoff
	}

	var err error
	for attempt := 1; ; attempt++ {
		if err = fn(ctx); err == nil {
			if attempt > 1 {
				r.logger.Info("retry succeeded", zap.String("op", op), zap.Int("attempt", attempt))
			}
			return nil
		}
		if attempt >= attempts {
			break
		}
		r.logger.Warn("attempt failed, backing off",
			zap.String("op", op),
			zap.Int("attempt", attempt),
			zap.Int("max_attempts", attempts),
			zap.Duration("backoff", delay),
			zap.Error(err),
		)

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
		delay *= 2
	}
	return fmt.Errorf("%s: giving up after %d attempts: %w", op, attempts, err)
}
