// Package retry is the bounded exponential retry loop shared by downstream
// calls and event delivery.
package retry

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v5"
)

// Policy bounds a retry loop.
type Policy struct {
	// MaxAttempts counts the first try. Values below 1 mean a single attempt.
	MaxAttempts    int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	Multiplier     float64
	// Jitter is the randomization factor in [0, 1).
	Jitter float64
}

// NewPolicy returns a policy with a doubling backoff capped at 30 times the
// initial interval.
func NewPolicy(maxAttempts int, initialBackoff time.Duration) Policy {
	return Policy{
		MaxAttempts:    maxAttempts,
		InitialBackoff: initialBackoff,
		MaxBackoff:     30 * initialBackoff,
		Multiplier:     2,
		Jitter:         0.2,
	}
}

func (p Policy) backOff() backoff.BackOff {
	if p.InitialBackoff <= 0 {
		return &backoff.ZeroBackOff{}
	}
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = p.InitialBackoff
	b.RandomizationFactor = p.Jitter
	if p.Multiplier > 0 {
		b.Multiplier = p.Multiplier
	}
	if p.MaxBackoff > 0 {
		b.MaxInterval = p.MaxBackoff
	}
	return b
}

// Permanent marks err so that Do stops retrying and returns err unwrapped.
func Permanent(err error) error {
	return backoff.Permanent(err)
}

// Operation is one attempt. attempt starts at 1.
type Operation[T any] func(ctx context.Context, attempt int) (T, error)

// Notify is called before sleeping ahead of the next attempt.
type Notify func(attempt int, err error, next time.Duration)

// Do runs op until it succeeds, returns a Permanent error, the attempt budget
// is spent or ctx is done. It returns the number of attempts made.
func Do[T any](ctx context.Context, p Policy, op Operation[T], notify Notify) (T, int, error) {
	maxAttempts := p.MaxAttempts
	if maxAttempts < 1 {
		maxAttempts = 1
	}

	attempts := 0
	opts := []backoff.RetryOption{
		backoff.WithBackOff(p.backOff()),
		backoff.WithMaxTries(uint(maxAttempts)),
		backoff.WithMaxElapsedTime(0),
	}
	if notify != nil {
		opts = append(opts, backoff.WithNotify(func(err error, next time.Duration) {
			notify(attempts, err, next)
		}))
	}

	result, err := backoff.Retry(ctx, func() (T, error) {
		attempts++
		return op(ctx, attempts)
	}, opts...)

	var permanent *backoff.PermanentError
	if errors.As(err, &permanent) {
		err = permanent.Err
	}
	return result, attempts, err
}

// IsPermanent reports whether err was marked with Permanent.
func IsPermanent(err error) bool {
	var permanent *backoff.PermanentError
	return errors.As(err, &permanent)
}
