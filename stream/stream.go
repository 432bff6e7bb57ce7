package stream

import "context"

// Outcome is the result of a single step.
type Outcome int

const (
	// Produced means a value is available.
	Produced Outcome = iota
	// Pending means nothing was produced this step; the caller polls again.
	// It never signals end of stream.
	Pending
	// Exhausted means the upstream has finished.
	Exhausted
)

func (o Outcome) String() string {
	switch o {
	case Produced:
		return "produced"
	case Pending:
		return "pending"
	case Exhausted:
		return "exhausted"
	default:
		return "unknown"
	}
}

// Kind identifies the behavioral shape of a stage.
type Kind string

const (
	KindSource Kind = "source"
	KindFilter Kind = "filter"
	KindMap    Kind = "map"
	KindReduce Kind = "reduce"
	KindWindow Kind = "window"
	KindTap    Kind = "tap"
	KindBuffer Kind = "buffer"
	KindSink   Kind = "sink"
	KindChain  Kind = "chain"
)

// Batch is the ordered set of messages collected during one window.
type Batch[T any] []T

// Producer yields values one step at a time. Every flow is a Producer,
// so flows compose with further operators.
type Producer[T any] interface {
	// Next blocks cooperatively until a value is produced, the stream is
	// exhausted, or ctx is done. The value is only meaningful with Produced.
	// When err is non-nil the outcome is ignored.
	Next(ctx context.Context) (T, Outcome, error)
	// Close releases any resources held by the producer.
	Close() error
}

// Notifier is implemented by producers that can tell when a Pending step is
// worth retrying. A source whose producer implements it is not polled: after
// Pending the flow waits for a receive on Notify or for ctx to end.
type Notifier interface {
	Notify() <-chan struct{}
}

// Source is the head of a flow. Open is called once per run.
type Source[T any] interface {
	Open(ctx context.Context) (Producer[T], error)
}

// Stage is a single-input step: Filter, Map and Reduce are stages.
// Returning Pending drops the input; returning Exhausted ends the stream.
type Stage[I, O any] interface {
	Step(ctx context.Context, in I) (O, Outcome, error)
}

// StageFunc adapts a function to Stage.
type StageFunc[I, O any] func(ctx context.Context, in I) (O, Outcome, error)

func (f StageFunc[I, O]) Step(ctx context.Context, in I) (O, Outcome, error) { return f(ctx, in) }

// Operator turns an upstream producer into a downstream one.
type Operator[I, O any] interface {
	Name() string
	Kind() Kind
	Bind(upstream Producer[I]) Producer[O]
}

// Sink is the tail of a flow.
type Sink[T any] interface {
	Consume(ctx context.Context, v T) error
}

// Namer is implemented by sources and sinks that report a name in errors and logs.
type Namer interface {
	Name() string
}

func nameOf(v any, fallback string) string {
	if n, ok := v.(Namer); ok && n.Name() != "" {
		return n.Name()
	}
	return fallback
}
