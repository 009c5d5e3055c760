package resilience

import (
	"context"
	"time"
)

// Executor composes the resilience patterns around one call.
type Executor struct {
	limiter *Limiter
	breaker *CircuitBreaker
	retry   *Retry
	timeout *Timeout
}

// ExecutorOption configures an Executor.
type ExecutorOption func(*Executor)

// NewExecutor returns an Executor; with no options it runs calls unchanged.
func NewExecutor(opts ...ExecutorOption) *Executor {
	e := &Executor{}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// WithLimiter rejects calls when the bucket is empty.
func WithLimiter(l *Limiter) ExecutorOption {
	return func(e *Executor) { e.limiter = l }
}

// WithCircuitBreaker short-circuits calls while the remote is failing.
func WithCircuitBreaker(cb *CircuitBreaker) ExecutorOption {
	return func(e *Executor) { e.breaker = cb }
}

// WithRetry re-runs failed calls.
func WithRetry(r *Retry) ExecutorOption {
	return func(e *Executor) { e.retry = r }
}

// WithTimeout bounds every individual attempt.
func WithTimeout(d time.Duration) ExecutorOption {
	return func(e *Executor) { e.timeout = NewTimeout(d) }
}

// Execute runs op through the configured patterns. From the outside in:
// limiter, circuit breaker, retry, per-attempt timeout. The breaker therefore
// counts one failure per exhausted retry sequence, not per attempt.
func (e *Executor) Execute(ctx context.Context, op func(context.Context) error) error {
	run := op

	if e.timeout != nil {
		inner := run
		run = func(ctx context.Context) error { return e.timeout.Execute(ctx, inner) }
	}
	if e.retry != nil {
		inner := run
		run = func(ctx context.Context) error { return e.retry.Execute(ctx, inner) }
	}
	if e.breaker != nil {
		inner := run
		run = func(ctx context.Context) error { return e.breaker.Execute(ctx, inner) }
	}
	if e.limiter != nil {
		inner := run
		run = func(ctx context.Context) error { return e.limiter.Execute(ctx, inner) }
	}

	return run(ctx)
}
