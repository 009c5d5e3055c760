package resilience

import (
	"context"
	"errors"
	"time"
)

// DefaultFetchTimeout bounds a single network fetch.
const DefaultFetchTimeout = 10 * time.Second

// Timeout enforces a deadline on a call, even one that ignores its context.
type Timeout struct {
	d time.Duration
}

// NewTimeout returns a Timeout of d. Non-positive d selects DefaultFetchTimeout.
func NewTimeout(d time.Duration) *Timeout {
	if d <= 0 {
		d = DefaultFetchTimeout
	}
	return &Timeout{d: d}
}

// Duration returns the configured deadline.
func (t *Timeout) Duration() time.Duration {
	return t.d
}

// Execute runs op with a derived context that expires after the deadline.
// ErrTimeout is returned when the deadline fires first; cancellation of the
// parent context is reported as the parent's error.
func (t *Timeout) Execute(ctx context.Context, op func(context.Context) error) error {
	ctx, cancel := context.WithTimeoutCause(ctx, t.d, ErrTimeout)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- op(ctx)
	}()

	select {
	case err := <-done:
		if err != nil && ctx.Err() != nil && errors.Is(context.Cause(ctx), ErrTimeout) {
			return ErrTimeout
		}
		return err
	case <-ctx.Done():
		if cause := context.Cause(ctx); errors.Is(cause, ErrTimeout) {
			return ErrTimeout
		}
		return ctx.Err()
	}
}
