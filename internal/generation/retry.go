package generation

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// RetryPolicy bounds how rate-limited calls are retried.
type RetryPolicy struct {
	MaxRetries     int
	InitialBackoff time.Duration
}

// DefaultRetryPolicy retries twice, waiting 2s then 4s.
var DefaultRetryPolicy = RetryPolicy{
	MaxRetries:     2,
	InitialBackoff: 2 * time.Second,
}

// Backoff returns the delay before retry number attempt (1-based).
func (p RetryPolicy) Backoff(attempt int) time.Duration {
	if attempt < 1 {
		return 0
	}
	return p.InitialBackoff << (attempt - 1)
}

// sleepFunc waits for d or until ctx is done.
type sleepFunc func(ctx context.Context, d time.Duration) error

func sleepContext(ctx context.Context, d time.Duration) error {
	select {
	case <-time.After(d):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// withRetry runs fn, retrying only on rate-limit errors with exponential backoff.
// Every other error is returned immediately.
func withRetry[T any](ctx context.Context, c *Client, op string, fn func(context.Context) (T, error)) (T, error) {
	var zero T
	var lastErr error

	for attempt := 0; attempt <= c.retry.MaxRetries; attempt++ {
		if attempt > 0 {
			backoffTime := c.retry.Backoff(attempt)
			c.metrics.RecordGenerationRetry(op)
			c.logger.Warn("Rate limited, backing off",
				slog.String("operation", op),
				slog.Int("attempt", attempt),
				slog.Duration("backoff", backoffTime),
			)

			if err := c.sleep(ctx, backoffTime); err != nil {
				return zero, &GenerationError{Op: op, Err: err}
			}
		}

		attemptCtx, cancel := c.requestContext(ctx)
		result, err := fn(attemptCtx)
		cancel()
		if err == nil {
			return result, nil
		}

		lastErr = err
		if !IsRateLimit(err) {
			return zero, err
		}
	}

	return zero, fmt.Errorf("%s failed after %d attempts: %w", op, c.retry.MaxRetries+1, lastErr)
}

// requestContext bounds a single attempt by the per-request timeout.
func (c *Client) requestContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.requestTimeout > 0 {
		return context.WithTimeout(ctx, c.requestTimeout)
	}
	return context.WithCancel(ctx)
}
