package stream

import (
	"context"
	stderrors "errors"
	"fmt"

	"github.com/kbukum/floq/errors"
)

// ErrTaskConsumed is returned by Run on a task that has already run.
var ErrTaskConsumed = stderrors.New("stream: task already ran")

// StageError reports a user callback failure inside one stage.
// The step that failed is dropped; the producer stays usable.
type StageError struct {
	Stage string
	Kind  Kind
	Err   *errors.AppError
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s stage %q: %v", e.Kind, e.Stage, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }

// AsStageError returns the first StageError in err's chain.
func AsStageError(err error) (*StageError, bool) {
	var se *StageError
	if stderrors.As(err, &se) {
		return se, true
	}
	return nil, false
}

func newStageError(stage string, kind Kind, cause error) *StageError {
	if se, ok := AsStageError(cause); ok {
		return se
	}
	return &StageError{Stage: stage, Kind: kind, Err: errors.StageFailed(stage, cause)}
}

// guard runs a user callback, converting errors and panics into a StageError.
// Errors returned after ctx is done are passed through as cancellation.
func guard[O any](ctx context.Context, stage string, kind Kind, fn func() (O, Outcome, error)) (out O, outcome Outcome, err error) {
	defer func() {
		if r := recover(); r != nil {
			var zero O
			out, outcome = zero, Pending
			err = &StageError{Stage: stage, Kind: kind, Err: errors.Panic(stage, r)}
		}
	}()
	out, outcome, err = fn()
	if err != nil && ctx.Err() == nil {
		err = newStageError(stage, kind, err)
	}
	return out, outcome, err
}
