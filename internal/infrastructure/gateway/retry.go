package gateway

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"time"
)

// Reader is the read surface of the gateway API.
type Reader interface {
	FetchTransaction(ctx context.Context, id string) (*Transaction, error)
	ListTransactions(ctx context.Context, q ListQuery) (*TransactionPage, error)
}

// RetryClient retries reads that failed with a 5xx or 429. Timeouts and
// network failures are not retried here; the sweeps pick those up on their
// next cycle.
type RetryClient struct {
	inner       Reader
	baseDelay   time.Duration
	maxAttempts int
	logger      *slog.Logger
	sleep       func(ctx context.Context, d time.Duration) error
}

func NewRetryClient(inner Reader, baseDelay time.Duration, maxAttempts int, logger *slog.Logger) *RetryClient {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	return &RetryClient{
		inner:       inner,
		baseDelay:   baseDelay,
		maxAttempts: maxAttempts,
		logger:      logger,
		sleep:       sleepContext,
	}
}

func (r *RetryClient) FetchTransaction(ctx context.Context, id string) (*Transaction, error) {
	return retry(r, ctx, "fetch_transaction", func(ctx context.Context) (*Transaction, error) {
		return r.inner.FetchTransaction(ctx, id)
	})
}

func (r *RetryClient) ListTransactions(ctx context.Context, q ListQuery) (*TransactionPage, error) {
	return retry(r, ctx, "list_transactions", func(ctx context.Context) (*TransactionPage, error) {
		return r.inner.ListTransactions(ctx, q)
	})
}

func retry[T any](r *RetryClient, ctx context.Context, operation string, call func(ctx context.Context) (*T, error)) (*T, error) {
	var lastErr error

	for attempt := 0; attempt < r.maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		resp, err := call(ctx)
		if err == nil {
			return resp, nil
		}
		lastErr = err

		if !isRetryable(err) || attempt == r.maxAttempts-1 {
			break
		}

		delay := r.backoff(attempt)
		r.logger.Warn("gateway call failed, retrying",
			"operation", operation,
			"attempt", attempt+1,
			"delay", delay,
			"error", err)
		if err := r.sleep(ctx, delay); err != nil {
			return nil, err
		}
	}

	if r.maxAttempts > 1 && isRetryable(lastErr) {
		return nil, fmt.Errorf("gateway %s: maximum attempts exceeded: %w", operation, lastErr)
	}
	return nil, lastErr
}

func isRetryable(err error) bool {
	var gwErr *GatewayError
	return errors.As(err, &gwErr) && gwErr.IsRetryable()
}

// backoff doubles per attempt and adds up to 250ms of jitter.
func (r *RetryClient) backoff(attempt int) time.Duration {
	base := r.baseDelay * time.Duration(1<<attempt)
	jitter := time.Duration(rand.Intn(250)) * time.Millisecond
	return base + jitter
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
