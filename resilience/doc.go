// Package resilience bounds and retries the outbound calls an offline worker
// makes: cache-miss fetches, precache downloads and queue replays.
//
// Four building blocks are provided and can be composed with an Executor:
//
//   - Timeout puts a hard deadline on a single call. The interception engine
//     uses it so a stalled network cannot hold a request open forever.
//   - Retry re-runs a failed call with constant, linear or exponential backoff.
//   - CircuitBreaker stops calling a remote that keeps failing and probes it
//     again after a cool-down.
//   - Limiter is a token bucket used to throttle the control endpoint.
//
// A replay client typically combines them:
//
//	exec := resilience.NewExecutor(
//	    resilience.WithCircuitBreaker(resilience.NewCircuitBreaker(resilience.CircuitBreakerConfig{})),
//	    resilience.WithRetry(resilience.NewRetry(resilience.RetryConfig{MaxAttempts: 3})),
//	    resilience.WithTimeout(10*time.Second),
//	)
//
//	err := exec.Execute(ctx, func(ctx context.Context) error {
//	    return postQuestion(ctx, item)
//	})
package resilience
