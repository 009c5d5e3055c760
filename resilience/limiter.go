package resilience

import (
	"context"
	"sync"
	"time"
)

// Limiter is a token bucket refilled continuously at Rate tokens per second.
type Limiter struct {
	rate  float64
	burst float64
	now   func() time.Time

	mu     sync.Mutex
	tokens float64
	last   time.Time
}

// NewLimiter returns a full bucket. Defaults: rate 10/s, burst 10.
func NewLimiter(rate float64, burst int) *Limiter {
	if rate <= 0 {
		rate = 10
	}
	if burst <= 0 {
		burst = 10
	}
	l := &Limiter{rate: rate, burst: float64(burst), now: time.Now}
	l.tokens = l.burst
	l.last = l.now()
	return l
}

// Allow takes a token if one is available.
func (l *Limiter) Allow() bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	l.tokens = min(l.burst, l.tokens+now.Sub(l.last).Seconds()*l.rate)
	l.last = now

	if l.tokens < 1 {
		return false
	}
	l.tokens--
	return true
}

// Execute runs op if a token is available, otherwise returns ErrRateLimited.
func (l *Limiter) Execute(ctx context.Context, op func(context.Context) error) error {
	if !l.Allow() {
		return ErrRateLimited
	}
	return op(ctx)
}
