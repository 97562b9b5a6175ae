package wake

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// ErrUserCancelled marks failures caused by the user backing out of a
// flow. They are never retried.
var ErrUserCancelled = errors.New("cancelled by user")

// RetryPolicy bounds an exponential backoff loop.
type RetryPolicy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
}

// DefaultRetryPolicy is used for vault transfers.
var DefaultRetryPolicy = RetryPolicy{MaxAttempts: 4, BaseDelay: 500 * time.Millisecond, MaxDelay: 8 * time.Second}

type permanentError struct{ err error }

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// Permanent wraps err so Retry returns it without further attempts.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

func isRetryable(err error) bool {
	var p *permanentError
	switch {
	case errors.As(err, &p):
		return false
	case errors.Is(err, ErrUserCancelled), errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return false
	}
	return true
}

// newBackOff doubles from BaseDelay up to MaxDelay without jitter and stops
// after MaxAttempts calls or when ctx is done.
func (p RetryPolicy) newBackOff(ctx context.Context) backoff.BackOffContext {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = p.BaseDelay
	if p.MaxDelay > 0 {
		b.MaxInterval = p.MaxDelay
	}
	b.Multiplier = 2
	b.RandomizationFactor = 0
	b.MaxElapsedTime = 0
	b.Reset()

	attempts := p.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}
	return backoff.WithContext(backoff.WithMaxRetries(b, uint64(attempts-1)), ctx)
}

// Retry calls fn until it succeeds, returns a non-retryable error, the
// attempts run out, or ctx is done. The last error is returned.
func Retry(ctx context.Context, policy RetryPolicy, fn func() error) error {
	var last error
	err := backoff.Retry(func() error {
		last = fn()
		if last == nil || isRetryable(last) {
			return last
		}
		var p *permanentError
		if errors.As(last, &p) {
			return backoff.Permanent(p.err)
		}
		return backoff.Permanent(last)
	}, policy.newBackOff(ctx))

	if ctxErr := ctx.Err(); ctxErr != nil && errors.Is(err, ctxErr) && last != nil && !errors.Is(last, ctxErr) {
		return errors.Join(last, ctxErr)
	}
	return err
}
