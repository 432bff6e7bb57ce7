// Package resilience provides fault-tolerance helpers for pipeline edges.
//
//   - Retry and Backoff: exponential backoff for calls and reconnect loops
//   - CircuitBreaker: fails fast while a downstream keeps failing
//   - RateLimiter: token bucket
//
// The stream adapters combine them with pipelines:
//
//	cb := resilience.NewCircuitBreaker(resilience.DefaultCircuitBreakerConfig("redis"))
//	sink := resilience.RetrySink(resilience.BreakerSink(redisSink, cb), resilience.DefaultRetryConfig())
//	flow := stream.Via(posts, resilience.Throttle[Post](resilience.NewRateLimiter(cfg)))
package resilience
