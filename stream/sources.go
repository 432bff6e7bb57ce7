package stream

import (
	"context"
	"sync"
)

// FromSlice is a source that yields items in order, then ends.
func FromSlice[T any](items []T) Source[T] {
	return SourceFunc[T](func(context.Context) (Producer[T], error) {
		return &sliceProducer[T]{items: items}, nil
	})
}

// FromChan is a source that yields values received from ch until it is closed.
func FromChan[T any](ch <-chan T) Source[T] {
	return SourceFunc[T](func(context.Context) (Producer[T], error) {
		return &recvProducer[T]{ch: ch}, nil
	})
}

// FromFunc is a source backed by a step function. fn may return Pending
// when nothing is available yet; the runner then sleeps between 1ms and 50ms,
// doubling while fn stays idle, and polls again. Sources that can signal
// readiness should use FromFuncNotify instead.
func FromFunc[T any](fn func(ctx context.Context) (T, Outcome, error)) Source[T] {
	return SourceFunc[T](func(context.Context) (Producer[T], error) {
		return ProducerFunc[T](fn), nil
	})
}

// FromFuncNotify is FromFunc without polling: after fn returns Pending it is
// called again only once a value is received from notify. A closed notify
// channel degrades to a busy loop.
func FromFuncNotify[T any](fn func(ctx context.Context) (T, Outcome, error), notify <-chan struct{}) Source[T] {
	return SourceFunc[T](func(context.Context) (Producer[T], error) {
		return &notifyProducer[T]{ProducerFunc: fn, ch: notify}, nil
	})
}

type notifyProducer[T any] struct {
	ProducerFunc[T]
	ch <-chan struct{}
}

func (n *notifyProducer[T]) Notify() <-chan struct{} { return n.ch }

// SourceFunc adapts an open function to Source.
type SourceFunc[T any] func(ctx context.Context) (Producer[T], error)

func (f SourceFunc[T]) Open(ctx context.Context) (Producer[T], error) { return f(ctx) }

// ProducerFunc adapts a step function to a Producer with a no-op Close.
type ProducerFunc[T any] func(ctx context.Context) (T, Outcome, error)

func (f ProducerFunc[T]) Next(ctx context.Context) (T, Outcome, error) { return f(ctx) }
func (f ProducerFunc[T]) Close() error                                 { return nil }

// NamedSource gives src a name for logs, metrics and errors.
func NamedSource[T any](name string, src Source[T]) Source[T] {
	return &namedSource[T]{Source: src, name: name}
}

type namedSource[T any] struct {
	Source[T]
	name string
}

func (n *namedSource[T]) Name() string { return n.name }

type sliceProducer[T any] struct {
	items []T
	index int
}

func (s *sliceProducer[T]) Next(context.Context) (T, Outcome, error) {
	if s.index >= len(s.items) {
		var zero T
		return zero, Exhausted, nil
	}
	v := s.items[s.index]
	s.index++
	return v, Produced, nil
}

func (s *sliceProducer[T]) Close() error { return nil }

type recvProducer[T any] struct {
	ch <-chan T
}

func (r *recvProducer[T]) Next(ctx context.Context) (T, Outcome, error) {
	var zero T
	select {
	case v, ok := <-r.ch:
		if !ok {
			return zero, Exhausted, nil
		}
		return v, Produced, nil
	case <-ctx.Done():
		return zero, Pending, ctx.Err()
	}
}

func (r *recvProducer[T]) Close() error { return nil }

// SinkFunc adapts a function to Sink.
type SinkFunc[T any] func(ctx context.Context, v T) error

func (f SinkFunc[T]) Consume(ctx context.Context, v T) error { return f(ctx, v) }

// Collect returns a sink that calls fn for every value.
func Collect[T any](fn func(context.Context, T) error) Sink[T] {
	return SinkFunc[T](fn)
}

// Discard returns a sink that drops every value.
func Discard[T any]() Sink[T] {
	return SinkFunc[T](func(context.Context, T) error { return nil })
}

// NamedSink gives sink a name for logs, metrics and errors.
// Close is forwarded when the wrapped sink has one.
func NamedSink[T any](name string, sink Sink[T]) Sink[T] {
	return &namedSink[T]{Sink: sink, name: name}
}

type namedSink[T any] struct {
	Sink[T]
	name string
}

func (n *namedSink[T]) Name() string { return n.name }

func (n *namedSink[T]) Close() error {
	if c, ok := n.Sink.(interface{ Close() error }); ok {
		return c.Close()
	}
	return nil
}

// Recorder is a sink that keeps every value it receives. Safe for concurrent use.
type Recorder[T any] struct {
	mu     sync.Mutex
	values []T
}

func (r *Recorder[T]) Consume(_ context.Context, v T) error {
	r.mu.Lock()
	r.values = append(r.values, v)
	r.mu.Unlock()
	return nil
}

// Values returns a copy of the recorded values.
func (r *Recorder[T]) Values() []T {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]T(nil), r.values...)
}
