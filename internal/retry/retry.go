// Package retry provides the bounded retry policy used by ledger
// reconciliation writes.
package retry

import (
	"context"
	"time"
)

// Policy describes a bounded retry with fixed backoff. The zero value never
// retries.
type Policy struct {
	MaxAttempts int
	Backoff     time.Duration
	// Retryable reports whether an error is worth another attempt.
	// When nil, every error is retryable.
	Retryable func(error) bool
}

// Do runs fn up to MaxAttempts times, sleeping Backoff between attempts.
// It returns nil on the first success, the last error otherwise. Context
// cancellation cuts the backoff sleep short and stops further attempts.
func (p Policy) Do(ctx context.Context, fn func() error) error {
	attempts := p.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	var err error
	for i := 0; i < attempts; i++ {
		if err = fn(); err == nil {
			return nil
		}
		if p.Retryable != nil && !p.Retryable(err) {
			return err
		}
		if i == attempts-1 {
			break
		}
		select {
		case <-time.After(p.Backoff):
		case <-ctx.Done():
			return err
		}
	}
	return err
}

// Once is the common case: one retry after a fixed backoff.
func Once(backoff time.Duration) Policy {
	return Policy{MaxAttempts: 2, Backoff: backoff}
}
