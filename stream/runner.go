package stream

import (
	"context"
	stderrors "errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/kbukum/floq/logger"
)

// ErrorPolicy decides what the runner does with a stage error.
type ErrorPolicy int

const (
	// AbortOnError ends the run with the stage error. This is the default.
	AbortOnError ErrorPolicy = iota
	// SkipOnError logs and counts the failed item, then keeps running.
	SkipOnError
)

func (p ErrorPolicy) String() string {
	if p == SkipOnError {
		return "skip"
	}
	return "abort"
}

// ParseErrorPolicy parses "abort" or "skip".
func ParseErrorPolicy(s string) (ErrorPolicy, error) {
	switch strings.ToLower(s) {
	case "", "abort":
		return AbortOnError, nil
	case "skip":
		return SkipOnError, nil
	}
	return AbortOnError, fmt.Errorf("unknown error policy %q", s)
}

// CancelPolicy decides what happens to buffered window contents on cancellation.
type CancelPolicy int

const (
	// DiscardOnCancel drops open and queued window batches. This is the default.
	DiscardOnCancel CancelPolicy = iota
	// FlushOnCancel delivers open and queued window batches once before the
	// run reports cancellation. Sources are not polled again.
	FlushOnCancel
)

func (p CancelPolicy) String() string {
	if p == FlushOnCancel {
		return "flush"
	}
	return "discard"
}

// ParseCancelPolicy parses "discard" or "flush".
func ParseCancelPolicy(s string) (CancelPolicy, error) {
	switch strings.ToLower(s) {
	case "", "discard":
		return DiscardOnCancel, nil
	case "flush":
		return FlushOnCancel, nil
	}
	return DiscardOnCancel, fmt.Errorf("unknown cancel policy %q", s)
}

// Status is the terminal state of a run.
type Status string

const (
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusCancelled Status = "cancelled"
	StatusFailed    Status = "failed"
)

// Report summarizes one run.
type Report struct {
	RunID     string        `json:"run_id"`
	Task      string        `json:"task"`
	Status    Status        `json:"status"`
	Delivered int64         `json:"delivered"`
	Skipped   int64         `json:"skipped"`
	Started   time.Time     `json:"started"`
	Duration  time.Duration `json:"duration"`
	Error     string        `json:"error,omitempty"`
}

// TaskOption configures a Task.
type TaskOption func(*taskOptions)

type taskOptions struct {
	name         string
	policy       ErrorPolicy
	cancel       CancelPolicy
	drainTimeout time.Duration
	observer     Observer
	onError      func(*StageError)
	log          *logger.Logger
}

// WithName overrides the task name, which defaults to the source name.
func WithName(name string) TaskOption {
	return func(o *taskOptions) { o.name = name }
}

// WithErrorPolicy sets how stage errors are handled.
func WithErrorPolicy(p ErrorPolicy) TaskOption {
	return func(o *taskOptions) { o.policy = p }
}

// WithCancelPolicy sets what windows do with buffered batches on cancellation.
func WithCancelPolicy(p CancelPolicy) TaskOption {
	return func(o *taskOptions) { o.cancel = p }
}

// WithDrainTimeout bounds the final delivery under FlushOnCancel. Default 5s.
func WithDrainTimeout(d time.Duration) TaskOption {
	return func(o *taskOptions) { o.drainTimeout = d }
}

// WithObserver attaches an observer to the run.
func WithObserver(obs Observer) TaskOption {
	return func(o *taskOptions) { o.observer = obs }
}

// WithErrorHandler is called for every stage error, whatever the policy.
func WithErrorHandler(fn func(*StageError)) TaskOption {
	return func(o *taskOptions) { o.onError = fn }
}

// WithLogger sets the task logger. Defaults to the "stream" component logger.
func WithLogger(l *logger.Logger) TaskOption {
	return func(o *taskOptions) { o.log = l }
}

// Task is a flow closed by a sink: the single runnable of a pipeline.
// A task runs once; it is inert afterwards.
type Task struct {
	opts   taskOptions
	stages []string
	drive  func(ctx context.Context, rs *runState) error
	ran    atomic.Bool
}

// To closes the flow with sink, producing a runnable Task.
func To[T any](f *Flow[T], sink Sink[T], opts ...TaskOption) *Task {
	o := taskOptions{name: f.name, drainTimeout: 5 * time.Second}
	for _, opt := range opts {
		opt(&o)
	}
	if o.log == nil {
		o.log = logger.Get("stream")
	}
	if o.observer == nil {
		o.observer = BaseObserver{}
	}
	sinkName := nameOf(sink, string(KindSink))

	t := &Task{opts: o, stages: append(f.Stages(), sinkName)}
	t.drive = func(ctx context.Context, rs *runState) error {
		p, err := f.open(ctx)
		if err != nil {
			return err
		}
		defer func() {
			if cerr := p.Close(); cerr != nil {
				rs.log.Warn("failed to close flow", logger.Fields(logger.FieldError, cerr.Error()))
			}
			if c, ok := sink.(interface{ Close() error }); ok {
				if cerr := c.Close(); cerr != nil {
					rs.log.Warn("failed to close sink", logger.Fields(logger.FieldSink, sinkName, logger.FieldError, cerr.Error()))
				}
			}
		}()

		err = drive(ctx, rs, p, sink, sinkName)
		if stderrors.Is(err, errCancelled) && o.cancel == FlushOnCancel {
			dctx, cancel := drainContext(ctx, o.drainTimeout)
			derr := drive(dctx, rs, p, sink, sinkName)
			cancel()
			if derr != nil && !stderrors.Is(derr, errCancelled) {
				rs.log.Warn("final flush failed", logger.Fields(logger.FieldError, derr.Error()))
			}
		}
		return err
	}
	return t
}

// Name returns the task name.
func (t *Task) Name() string { return t.opts.name }

// Stages returns the stage names from source to sink.
func (t *Task) Stages() []string { return append([]string(nil), t.stages...) }

// Run drives the task until the source is exhausted, ctx is cancelled or a
// stage fails under AbortOnError. Cancellation is a clean completion: the
// report has StatusCancelled and the error is nil.
func (t *Task) Run(ctx context.Context) (Report, error) {
	if !t.ran.CompareAndSwap(false, true) {
		return Report{}, ErrTaskConsumed
	}
	runID := uuid.NewString()
	rs := &runState{
		opts: &t.opts,
		log:  t.opts.log.WithFields(logger.Fields(logger.FieldRunID, runID, logger.FieldTask, t.opts.name)),
		report: Report{
			RunID:   runID,
			Task:    t.opts.name,
			Status:  StatusRunning,
			Started: time.Now(),
		},
	}
	runCtx := withRunInfo(ctx, &runInfo{
		task:     t.opts.name,
		runID:    runID,
		observer: t.opts.observer,
		log:      rs.log,
		cancel:   t.opts.cancel,
	})
	runCtx = logger.ContextWith(runCtx, logger.FieldRunID, runID)

	rs.log.Info("task started", logger.Fields("stages", strings.Join(t.stages, " | ")))
	t.opts.observer.OnStart(t.opts.name, runID)

	err := t.drive(runCtx, rs)

	r := &rs.report
	r.Duration = time.Since(r.Started)
	fields := logger.Fields("delivered", r.Delivered, "skipped", r.Skipped, logger.FieldDuration, r.Duration.Milliseconds())
	switch {
	case err == nil:
		r.Status = StatusCompleted
		rs.log.Info("task completed", fields)
	case stderrors.Is(err, errCancelled):
		r.Status = StatusCancelled
		err = nil
		rs.log.Info("task cancelled", fields)
	default:
		r.Status = StatusFailed
		r.Error = err.Error()
		if _, ok := AsStageError(err); !ok {
			t.opts.observer.OnError(t.opts.name, KindSource, err)
		}
		rs.log.Error("task failed", logger.MergeWithError(fields, err))
	}
	t.opts.observer.OnFinish(*r)
	return *r, err
}

// RunFlow is To(f, sink, opts...).Run(ctx).
func RunFlow[T any](ctx context.Context, f *Flow[T], sink Sink[T], opts ...TaskOption) (Report, error) {
	return To(f, sink, opts...).Run(ctx)
}

// Gather runs f to completion and returns everything it produced.
func Gather[T any](ctx context.Context, f *Flow[T], opts ...TaskOption) ([]T, Report, error) {
	var rec Recorder[T]
	report, err := RunFlow(ctx, f, Sink[T](&rec), opts...)
	return rec.Values(), report, err
}

var errCancelled = stderrors.New("stream: run cancelled")

type runState struct {
	opts   *taskOptions
	log    *logger.Logger
	report Report
}

// skip reports a run error and decides whether the run continues past it.
func (rs *runState) skip(err error) bool {
	se, ok := AsStageError(err)
	if !ok {
		return false
	}
	rs.opts.observer.OnError(se.Stage, se.Kind, se)
	if rs.opts.onError != nil {
		rs.opts.onError(se)
	}
	if rs.opts.policy != SkipOnError {
		return false
	}
	rs.report.Skipped++
	rs.log.Warn("stage error skipped", logger.Fields(
		logger.FieldStage, se.Stage,
		logger.FieldKind, string(se.Kind),
		logger.FieldError, se.Err.Error(),
	))
	return true
}

func drive[T any](ctx context.Context, rs *runState, p Producer[T], sink Sink[T], sinkName string) error {
	var wait idle
	for {
		if ctx.Err() != nil {
			return errCancelled
		}
		v, outcome, err := p.Next(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return errCancelled
			}
			if rs.skip(err) {
				continue
			}
			return err
		}
		switch outcome {
		case Exhausted:
			return nil
		case Pending:
			select {
			case <-time.After(wait.next()):
			case <-ctx.Done():
			}
			continue
		}
		wait.reset()

		// No callbacks once cancellation has been requested.
		if ctx.Err() != nil {
			return errCancelled
		}
		_, _, err = guard(ctx, sinkName, KindSink, func() (struct{}, Outcome, error) {
			return struct{}{}, Produced, sink.Consume(ctx, v)
		})
		if err != nil {
			if ctx.Err() != nil {
				return errCancelled
			}
			if rs.skip(err) {
				continue
			}
			return err
		}
		rs.report.Delivered++
		observe(ctx, sinkName, KindSink, Produced)
	}
}
