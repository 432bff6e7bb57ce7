// Package errors provides the structured error type used across floq.
//
// Stage callbacks, sources and sinks report failures as *AppError values
// carrying a machine-readable code, a retryable flag and free-form details.
// The status server renders them with ToResponse.
package errors
