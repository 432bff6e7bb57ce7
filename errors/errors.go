package errors

import (
	"fmt"
	"maps"
	"net/http"
)

// AppError is the error type shared by stages, connectors and the status server.
type AppError struct {
	// Code is a machine-readable error code.
	Code ErrorCode `json:"code"`
	// Message is a human-readable error message.
	Message string `json:"message"`
	// Retryable indicates if the operation can be retried.
	Retryable bool `json:"retryable"`
	// HTTPStatus is the status the server reports for this error.
	HTTPStatus int `json:"-"`
	// Details contains additional context for the error.
	Details map[string]any `json:"details,omitempty"`
	// Cause is the underlying error that caused this error.
	Cause error `json:"-"`
}

// Error returns the string representation of the error.
func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (cause: %v)", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause of the error.
func (e *AppError) Unwrap() error { return e.Cause }

// WithCause sets the underlying cause of the error and returns the receiver.
func (e *AppError) WithCause(cause error) *AppError {
	e.Cause = cause
	return e
}

// WithDetails merges details into the error. Details is non-nil afterwards.
func (e *AppError) WithDetails(details map[string]any) *AppError {
	if e.Details == nil {
		e.Details = make(map[string]any, len(details))
	}
	maps.Copy(e.Details, details)
	return e
}

// WithDetail sets one detail key.
func (e *AppError) WithDetail(key string, value any) *AppError {
	return e.WithDetails(map[string]any{key: value})
}

// withField adds a "field" detail unless field is empty.
func (e *AppError) withField(field string) *AppError {
	if field == "" {
		return e
	}
	return e.WithDetail("field", field)
}

// New creates an AppError whose Retryable flag follows the code.
func New(code ErrorCode, message string, httpStatus int) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: httpStatus,
		Retryable:  IsRetryableCode(code),
	}
}

// StageFailed reports a user callback that returned an error inside a stage.
func StageFailed(stage string, cause error) *AppError {
	return New(ErrCodeStageFailed, fmt.Sprintf("stage %q failed", stage), http.StatusInternalServerError).
		WithDetail("stage", stage).WithCause(cause)
}

// Panic reports a user callback that panicked inside a stage.
func Panic(stage string, recovered any) *AppError {
	return New(ErrCodeStageFailed, fmt.Sprintf("stage %q panicked: %v", stage, recovered), http.StatusInternalServerError).
		WithDetails(map[string]any{"stage": stage, "panic": true})
}

// SourceFailed reports a source that could not produce its next message.
func SourceFailed(source string, cause error) *AppError {
	return New(ErrCodeSourceFailed, "source "+source+" failed", http.StatusBadGateway).
		WithDetail("source", source).WithCause(cause)
}

// SinkFailed reports a sink that could not accept a value.
func SinkFailed(sink string, cause error) *AppError {
	return New(ErrCodeSinkFailed, "sink "+sink+" failed", http.StatusBadGateway).
		WithDetail("sink", sink).WithCause(cause)
}

// DecodeFailed reports a payload that could not be decoded.
func DecodeFailed(format string, cause error) *AppError {
	return New(ErrCodeDecodeFailed, "unable to decode "+format+" payload", http.StatusUnprocessableEntity).
		WithDetail("format", format).WithCause(cause)
}

// InvalidConfig reports a configuration value that cannot be used.
func InvalidConfig(field, reason string) *AppError {
	return New(ErrCodeInvalidConfig, "invalid configuration: "+reason, http.StatusBadRequest).withField(field)
}

// Validation carries the joined messages of a failed validation.
func Validation(message string) *AppError {
	return New(ErrCodeInvalidConfig, message, http.StatusBadRequest)
}

func ServiceUnavailable(service string) *AppError {
	return New(ErrCodeServiceUnavailable, service+" is temporarily unavailable", http.StatusServiceUnavailable).
		WithDetail("service", service)
}

func ConnectionFailed(service string) *AppError {
	return New(ErrCodeConnectionFailed, "unable to connect to "+service, http.StatusServiceUnavailable).
		WithDetail("service", service)
}

func Timeout(operation string) *AppError {
	return New(ErrCodeTimeout, operation+" timed out", http.StatusGatewayTimeout).
		WithDetail("operation", operation)
}

// RateLimited reports a request refused by the status server's limiter.
func RateLimited(perSecond float64) *AppError {
	return New(ErrCodeRateLimited, "rate limit exceeded", http.StatusTooManyRequests).
		WithDetail("requests_per_second", perSecond)
}

func NotFound(resource, id string) *AppError {
	e := New(ErrCodeNotFound, resource+" not found", http.StatusNotFound).WithDetail("resource", resource)
	if id != "" {
		e.WithDetail("id", id)
	}
	return e
}

func InvalidInput(field, reason string) *AppError {
	return New(ErrCodeInvalidInput, "invalid input: "+reason, http.StatusBadRequest).withField(field)
}

// Internal wraps an unexpected failure.
func Internal(cause error) *AppError {
	return New(ErrCodeInternal, "an unexpected error occurred", http.StatusInternalServerError).WithCause(cause)
}
