package stream

import (
	"context"
	stderrors "errors"
	"sync"
	"sync/atomic"
	"time"
)

// result carries a value or error through a channel.
type result[T any] struct {
	val T
	err error
}

// pump pulls from p into out until p is exhausted, fails terminally or ctx
// ends. Stage errors are forwarded and pumping continues. out is closed on return.
func pump[T any](ctx context.Context, p Producer[T], out chan<- result[T]) {
	defer close(out)
	var wait idle
	for {
		v, outcome, err := p.Next(ctx)
		if err != nil {
			select {
			case out <- result[T]{err: err}:
			case <-ctx.Done():
				return
			}
			if _, ok := AsStageError(err); ok && ctx.Err() == nil {
				continue
			}
			return
		}
		switch outcome {
		case Exhausted:
			return
		case Pending:
			select {
			case <-time.After(wait.next()):
				continue
			case <-ctx.Done():
				return
			}
		}
		wait.reset()
		select {
		case out <- result[T]{val: v}:
		case <-ctx.Done():
			return
		}
	}
}

// chanProducer reads values from a pump channel.
type chanProducer[T any] struct {
	ch     <-chan result[T]
	closer func() error
}

func (c *chanProducer[T]) Next(ctx context.Context) (T, Outcome, error) {
	var zero T
	select {
	case r, open := <-c.ch:
		if !open {
			return zero, Exhausted, nil
		}
		if r.err != nil {
			return zero, Pending, r.err
		}
		return r.val, Produced, nil
	case <-ctx.Done():
		return zero, Pending, ctx.Err()
	}
}

func (c *chanProducer[T]) Close() error {
	if c.closer != nil {
		return c.closer()
	}
	return nil
}

// Buffer decouples upstream from downstream with a channel of size values,
// so a slow stage or sink does not stall the producer until the buffer fills.
func Buffer[T any](size int) Operator[T, T] {
	if size <= 0 {
		size = 1
	}
	return &bufferOp[T]{name: string(KindBuffer), size: size}
}

type bufferOp[T any] struct {
	name string
	size int
}

func (b *bufferOp[T]) Name() string { return b.name }
func (b *bufferOp[T]) Kind() Kind   { return KindBuffer }

func (b *bufferOp[T]) withName(name string) Operator[T, T] {
	return &bufferOp[T]{name: name, size: b.size}
}

func (b *bufferOp[T]) Bind(upstream Producer[T]) Producer[T] {
	return &lazyChan[T]{size: b.size, start: func(ctx context.Context, out chan<- result[T]) {
		go pump(ctx, upstream, out)
	}, closeUp: upstream.Close}
}

// lazyChan starts its goroutines on the first Next, with that call's context.
type lazyChan[T any] struct {
	size    int
	start   func(ctx context.Context, out chan<- result[T])
	closeUp func() error

	once   sync.Once
	cancel context.CancelFunc
	inner  *chanProducer[T]
}

func (l *lazyChan[T]) Next(ctx context.Context) (T, Outcome, error) {
	l.once.Do(func() {
		cctx, cancel := context.WithCancel(ctx)
		l.cancel = cancel
		ch := make(chan result[T], l.size)
		if isDraining(ctx) {
			close(ch)
		} else {
			l.start(cctx, ch)
		}
		l.inner = &chanProducer[T]{ch: ch}
	})
	return l.inner.Next(ctx)
}

func (l *lazyChan[T]) Close() error {
	if l.cancel != nil {
		l.cancel()
	}
	return l.closeUp()
}

// Merge combines several sources into one. Each source is pumped by its own
// goroutine; values are yielded as they arrive, so order across sources is
// not preserved. The merged source ends when every source has ended.
func Merge[T any](sources ...Source[T]) Source[T] {
	return &mergeSource[T]{sources: sources}
}

type mergeSource[T any] struct {
	sources []Source[T]
}

func (m *mergeSource[T]) Name() string { return "merge" }

func (m *mergeSource[T]) Open(ctx context.Context) (Producer[T], error) {
	producers := make([]Producer[T], 0, len(m.sources))
	closeAll := func() error {
		var errs []error
		for _, p := range producers {
			if err := p.Close(); err != nil {
				errs = append(errs, err)
			}
		}
		return stderrors.Join(errs...)
	}
	for _, src := range m.sources {
		p, err := From(src).Open(ctx)
		if err != nil {
			_ = closeAll()
			return nil, err
		}
		producers = append(producers, p)
	}

	return &lazyChan[T]{size: len(producers), start: func(ctx context.Context, out chan<- result[T]) {
		var wg sync.WaitGroup
		for _, p := range producers {
			in := make(chan result[T])
			wg.Add(1)
			go pump(ctx, p, in)
			go func() {
				defer wg.Done()
				for r := range in {
					select {
					case out <- r:
					case <-ctx.Done():
						// Drain so the pump can exit.
						for range in {
						}
						return
					}
				}
			}()
		}
		go func() {
			wg.Wait()
			close(out)
		}()
	}, closeUp: closeAll}, nil
}

// RoundRobin distributes values across sinks in turn.
func RoundRobin[T any](sinks ...Sink[T]) Sink[T] {
	if len(sinks) == 0 {
		panic("stream: RoundRobin needs at least one sink")
	}
	return &roundRobin[T]{sinks: sinks}
}

type roundRobin[T any] struct {
	sinks []Sink[T]
	next  atomic.Uint64
}

func (r *roundRobin[T]) Name() string { return "round-robin" }

func (r *roundRobin[T]) Consume(ctx context.Context, v T) error {
	i := (r.next.Add(1) - 1) % uint64(len(r.sinks))
	return r.sinks[i].Consume(ctx, v)
}

// Close closes every sink that is closable.
func (r *roundRobin[T]) Close() error {
	var errs []error
	for _, s := range r.sinks {
		if c, ok := s.(interface{ Close() error }); ok {
			if err := c.Close(); err != nil {
				errs = append(errs, err)
			}
		}
	}
	return stderrors.Join(errs...)
}
