package source

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math/rand/v2"
	"time"

	"github.com/ahrav/pbcheck/internal/ports"
)

// Middleware wraps a Source with additional behavior.
type Middleware func(ports.Source) ports.Source

// Chain applies middlewares to src, the first one outermost.
func Chain(src ports.Source, mws ...Middleware) ports.Source {
	for i := len(mws) - 1; i >= 0; i-- {
		src = mws[i](src)
	}
	return src
}

// retrySource retries List and Open with exponential backoff. Missing
// objects and context errors are not retried.
type retrySource struct {
	next       ports.Source
	maxRetries int
	baseDelay  time.Duration
	maxDelay   time.Duration
}

// Retry creates middleware that retries failed listings and downloads up
// to maxRetries times.
func Retry(maxRetries int, baseDelay, maxDelay time.Duration) Middleware {
	return func(next ports.Source) ports.Source {
		return &retrySource{
			next:       next,
			maxRetries: max(maxRetries, 0),
			baseDelay:  baseDelay,
			maxDelay:   maxDelay,
		}
	}
}

func (r *retrySource) List(ctx context.Context, pattern string) ([]string, error) {
	var names []string
	err := r.do(ctx, func() error {
		var err error
		names, err = r.next.List(ctx, pattern)
		return err
	})
	return names, err
}

func (r *retrySource) Open(ctx context.Context, name string) (io.ReadCloser, error) {
	var rc io.ReadCloser
	err := r.do(ctx, func() error {
		var err error
		rc, err = r.next.Open(ctx, name)
		return err
	})
	return rc, err
}

func (r *retrySource) String() string { return r.next.String() }

func (r *retrySource) do(ctx context.Context, fn func() error) error {
	var lastErr error
	for attempt := 0; attempt <= r.maxRetries; attempt++ {
		err := fn()
		if err == nil {
			return nil
		}
		lastErr = err

		if !retryable(err) || ctx.Err() != nil || attempt == r.maxRetries {
			break
		}

		timer := time.NewTimer(r.delay(attempt))
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
	if r.maxRetries == 0 || !retryable(lastErr) {
		return lastErr
	}
	return fmt.Errorf("failed after %d attempts: %w", r.maxRetries+1, lastErr)
}

func retryable(err error) bool {
	return !errors.Is(err, ports.ErrObjectNotFound) &&
		!errors.Is(err, context.Canceled) &&
		!errors.Is(err, context.DeadlineExceeded)
}

func (r *retrySource) delay(attempt int) time.Duration {
	attempt = min(max(attempt, 0), 30)
	delay := r.baseDelay * time.Duration(1<<uint(attempt))

	// ±25% jitter.
	jitter := time.Duration(rand.Float64() * float64(delay) * 0.5)
	delay = delay + jitter - delay/4

	return min(delay, r.maxDelay)
}
