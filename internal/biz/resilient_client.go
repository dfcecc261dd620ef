package biz

import (
	"context"
	"errors"
	"fmt"
	"time"

	"KuroAccounts/internal/conf"
	pkglog "KuroAccounts/pkg/log"
	"KuroAccounts/pkg/retry"

	"github.com/go-kratos/kratos/v2/log"
)

// ErrDownstreamUnavailable wraps the cause of every non-successful downstream call.
var ErrDownstreamUnavailable = errors.New("downstream unavailable")

// Outcome classifies a DownstreamResult.
type Outcome int

const (
	OutcomeSuccess Outcome = iota
	OutcomeFailure
	OutcomeFallback
)

// String implements fmt.Stringer.
func (o Outcome) String() string {
	switch o {
	case OutcomeSuccess:
		return "success"
	case OutcomeFailure:
		return "failure"
	case OutcomeFallback:
		return "fallback"
	default:
		return fmt.Sprintf("outcome(%d)", int(o))
	}
}

// DownstreamRequest is one call to a dependency.
type DownstreamRequest struct {
	CorrelationID string
	MobileNumber  string
	Dependency    string
}

// DownstreamResult is what a ResilientClient call produced. Err holds the
// cause whenever Outcome is not OutcomeSuccess.
type DownstreamResult[T any] struct {
	Outcome  Outcome
	Payload  T
	Err      error
	Attempts int
	Latency  time.Duration
}

// ResilientClientOptions configures a ResilientClient.
type ResilientClientOptions[T any] struct {
	Dependency string
	Invoke     func(ctx context.Context, req DownstreamRequest) (T, error)
	// Fallback produces the payload returned once the call is given up.
	// Without it a given-up call is reported as OutcomeFailure.
	Fallback       func() T
	RetryCount     int
	AttemptTimeout time.Duration
	RetryBackoff   time.Duration
}

// ResilientClient calls one dependency with a per-attempt timeout, bounded
// retries and the dependency's circuit breaker.
type ResilientClient[T any] struct {
	dependency     string
	invoke         func(ctx context.Context, req DownstreamRequest) (T, error)
	fallback       func() T
	policy         retry.Policy
	attemptTimeout time.Duration

	breakers *CircuitBreakerRegistry
	metrics  *Metrics
	logger   *pkglog.LogHelper
}

// NewResilientClient creates a client for opts.Dependency. Its breaker is
// taken from breakers.
func NewResilientClient[T any](opts ResilientClientOptions[T], breakers *CircuitBreakerRegistry, metrics *Metrics, logger log.Logger) *ResilientClient[T] {
	return &ResilientClient[T]{
		dependency:     opts.Dependency,
		invoke:         opts.Invoke,
		fallback:       opts.Fallback,
		policy:         retry.NewPolicy(opts.RetryCount, opts.RetryBackoff),
		attemptTimeout: opts.AttemptTimeout,
		breakers:       breakers,
		metrics:        metrics,
		logger:         pkglog.NewLogHelper(logger),
	}
}

// ResilientClientOptionsFrom fills the retry and timeout settings from dep.
func ResilientClientOptionsFrom[T any](dependency string, dep *conf.Dependency) ResilientClientOptions[T] {
	opts := ResilientClientOptions[T]{Dependency: dependency, RetryCount: 1}
	if dep != nil {
		opts.RetryCount = dep.RetryCount
		opts.AttemptTimeout = dep.AttemptTimeout
		opts.RetryBackoff = dep.RetryBackoff
	}
	return opts
}

// Call runs the request. A breaker rejection ends the call at once without
// invoking the dependency. Timeouts and errors are recorded as breaker
// failures and retried until the attempt budget is spent or ctx is done. An
// attempt cut short by ctx itself is not held against the dependency.
func (c *ResilientClient[T]) Call(ctx context.Context, req DownstreamRequest) DownstreamResult[T] {
	start := time.Now()
	if req.Dependency == "" {
		req.Dependency = c.dependency
	}

	payload, attempts, err := retry.Do(ctx, c.policy, func(ctx context.Context, _ int) (T, error) {
		return c.attempt(ctx, req)
	}, func(attempt int, err error, next time.Duration) {
		c.logger.Debugw("msg", "downstream attempt failed, retrying",
			"correlation_id", req.CorrelationID,
			"dependency", c.dependency,
			"attempt", attempt,
			"next_backoff", next.String(),
			"error", err)
	})

	result := DownstreamResult[T]{
		Attempts: attempts,
		Latency:  time.Since(start),
	}

	switch {
	case err == nil:
		result.Outcome = OutcomeSuccess
		result.Payload = payload
	case c.fallback != nil:
		result.Outcome = OutcomeFallback
		result.Payload = c.fallback()
		result.Err = fmt.Errorf("%w: %s: %w", ErrDownstreamUnavailable, c.dependency, err)
		c.metrics.RecordFallback(ctx, c.dependency)
	default:
		result.Outcome = OutcomeFailure
		result.Err = fmt.Errorf("%w: %s: %w", ErrDownstreamUnavailable, c.dependency, err)
	}

	kvs := []interface{}{}
	if result.Err != nil {
		kvs = append(kvs, "error", result.Err)
	}
	c.logger.Downstream(pkglog.WithRequestContext(ctx, req.CorrelationID, c.dependency),
		c.dependency, result.Outcome.String(), result.Latency, result.Attempts, kvs...)

	return result
}

type attemptReply[T any] struct {
	payload T
	err     error
}

func (c *ResilientClient[T]) attempt(ctx context.Context, req DownstreamRequest) (T, error) {
	var zero T

	permit, err := c.breakers.Allow(c.dependency)
	if err != nil {
		return zero, retry.Permanent(err)
	}

	attemptCtx, cancel := ctx, context.CancelFunc(func() {})
	if c.attemptTimeout > 0 {
		attemptCtx, cancel = context.WithTimeout(ctx, c.attemptTimeout)
	}
	defer cancel()

	// Buffered so a dependency that ignores its context cannot leak a blocked sender.
	replies := make(chan attemptReply[T], 1)
	go func() {
		payload, err := c.invoke(attemptCtx, req)
		replies <- attemptReply[T]{payload: payload, err: err}
	}()

	select {
	case reply := <-replies:
		if reply.err != nil {
			if ctx.Err() != nil {
				permit.Release()
				return zero, retry.Permanent(reply.err)
			}
			permit.Failure()
			return zero, reply.err
		}
		permit.Success()
		return reply.payload, nil
	case <-attemptCtx.Done():
		if ctx.Err() != nil {
			permit.Release()
			return zero, retry.Permanent(ctx.Err())
		}
		permit.Failure()
		return zero, fmt.Errorf("attempt timed out after %s: %w", c.attemptTimeout, attemptCtx.Err())
	}
}
