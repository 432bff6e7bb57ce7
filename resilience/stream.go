package resilience

import (
	"context"

	"github.com/kbukum/floq/errors"
	"github.com/kbukum/floq/stream"
)

// KindThrottle is the stage kind of Throttle and Shed.
const KindThrottle stream.Kind = "throttle"

type guardedSink[T any] struct {
	inner   stream.Sink[T]
	name    string
	consume func(ctx context.Context, v T) error
}

func (g *guardedSink[T]) Name() string                           { return g.name }
func (g *guardedSink[T]) Consume(ctx context.Context, v T) error { return g.consume(ctx, v) }

func (g *guardedSink[T]) Close() error {
	if c, ok := g.inner.(interface{ Close() error }); ok {
		return c.Close()
	}
	return nil
}

func sinkName(sink any) string {
	if n, ok := sink.(interface{ Name() string }); ok {
		return n.Name()
	}
	return string(stream.KindSink)
}

// RetrySink redelivers a value to sink until it is accepted or cfg gives up.
// The sink keeps the wrapped sink's name and Close.
func RetrySink[T any](sink stream.Sink[T], cfg RetryConfig) stream.Sink[T] {
	return &guardedSink[T]{inner: sink, name: sinkName(sink), consume: func(ctx context.Context, v T) error {
		return RetryFunc(ctx, cfg, func() error { return sink.Consume(ctx, v) })
	}}
}

// BreakerSink sends values through cb. While the circuit is open, Consume
// fails fast with a retryable SINK_FAILED error wrapping ErrCircuitOpen.
func BreakerSink[T any](sink stream.Sink[T], cb *CircuitBreaker) stream.Sink[T] {
	name := sinkName(sink)
	return &guardedSink[T]{inner: sink, name: name, consume: func(ctx context.Context, v T) error {
		err := cb.Execute(func() error { return sink.Consume(ctx, v) })
		if err == ErrCircuitOpen {
			return errors.SinkFailed(name, err)
		}
		return err
	}}
}

// Throttle passes values through no faster than rl allows, holding back
// the upstream while it waits.
func Throttle[T any](rl *RateLimiter) stream.Operator[T, T] {
	return stream.Lift[T, T]("throttle", KindThrottle, stream.StageFunc[T, T](func(ctx context.Context, v T) (T, stream.Outcome, error) {
		if err := rl.Wait(ctx); err != nil {
			var zero T
			return zero, stream.Pending, err
		}
		return v, stream.Produced, nil
	}))
}

// Shed drops values that arrive while rl has no token left.
func Shed[T any](rl *RateLimiter) stream.Operator[T, T] {
	return stream.Named("shed", stream.Filter(func(T) bool { return rl.Allow() }))
}
