package kafka

import (
	stderrors "errors"
	"strings"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/kbukum/floq/errors"
)

var connectionPatterns = []string{
	"connection refused",
	"connection reset",
	"broken pipe",
	"i/o timeout",
	"no route to host",
	"network is unreachable",
	"connection closed",
	"dial tcp",
}

// IsConnectionError checks if err is a network-level failure talking to a broker.
func IsConnectionError(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	for _, p := range connectionPatterns {
		if strings.Contains(msg, p) {
			return true
		}
	}
	return false
}

// IsRetryableError reports whether a broker error is worth another attempt:
// connection failures and the protocol errors kafka-go marks temporary.
func IsRetryableError(err error) bool {
	if err == nil {
		return false
	}
	var kerr kafkago.Error
	if stderrors.As(err, &kerr) {
		return kerr.Temporary()
	}
	return IsConnectionError(err)
}

// sourceError classifies a reader failure as a SOURCE_FAILED AppError.
func sourceError(name string, err error) *errors.AppError {
	appErr := errors.SourceFailed(name, err)
	appErr.Retryable = IsRetryableError(err)
	return appErr
}

// sinkError classifies a writer failure as a SINK_FAILED AppError so that
// resilience.RetrySink only retries what the broker can recover from.
func sinkError(name string, err error) *errors.AppError {
	var werr kafkago.WriteErrors
	if stderrors.As(err, &werr) {
		for _, e := range werr {
			if e != nil {
				err = e
				break
			}
		}
	}
	appErr := errors.SinkFailed(name, err)
	appErr.Retryable = IsRetryableError(err)
	return appErr
}
