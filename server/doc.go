// Package server provides the status server of a running pipeline: a Gin
// engine behind h2c with liveness, readiness, stats and server-sent events.
//
// # Middleware
//
// Built-in middleware (server/middleware):
//
//   - Recovery: panic recovery with structured logging
//   - RequestID: request ID generation and propagation
//   - RateLimit: token bucket rate limiting backed by resilience.RateLimiter
//   - RequestLogger: request logging with duration tracking
//
// # Endpoints
//
// Built-in endpoints (server/endpoint):
//
//   - /healthz: liveness
//   - /readyz: component health aggregation, 503 when any component is unhealthy
//   - /info: service version and runtime figures
//   - /stats: per-task and per-stage counters from observability.Monitor
//   - /events: the sse.Hub stream, path configurable
package server
