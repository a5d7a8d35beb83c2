// Package retry implements the bounded optimistic-concurrency retry loop
// shared by the question-list and presence-map mutations.
package retry

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrConflict signals that a conditional write lost to a concurrent writer
// and the operation should reload and retry.
var ErrConflict = errors.New("retry: version conflict")

// ErrExhausted wraps the final error once all attempts are spent.
var ErrExhausted = errors.New("retry: attempts exhausted")

// BackoffFunc returns the delay to sleep after the given failed attempt
// (1-based).
type BackoffFunc func(attempt int) time.Duration

// Linear grows the delay by base per attempt: base, 2*base, 3*base, ...
func Linear(base time.Duration) BackoffFunc {
	return func(attempt int) time.Duration {
		return base * time.Duration(attempt)
	}
}

// Exponential doubles the delay per attempt starting at base: base, 2*base,
// 4*base, ...
func Exponential(base time.Duration) BackoffFunc {
	return func(attempt int) time.Duration {
		return base << (attempt - 1)
	}
}

// WithOptimisticRetry runs op up to maxAttempts times. An op returning
// ErrConflict (possibly wrapped) is retried after the backoff delay; any
// other result is returned as-is. Exhausting all attempts returns an error
// wrapping both ErrExhausted and ErrConflict. Cancellation of ctx is honored
// between attempts.
func WithOptimisticRetry(ctx context.Context, maxAttempts int, backoff BackoffFunc, op func(ctx context.Context) error) error {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	var err error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		err = op(ctx)
		if err == nil || !errors.Is(err, ErrConflict) {
			return err
		}
		if attempt == maxAttempts {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff(attempt)):
		}
	}
	return fmt.Errorf("%w after %d attempts: %w", ErrExhausted, maxAttempts, err)
}
