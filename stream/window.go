package stream

import (
	"context"
	"sync"
	"time"

	"github.com/kbukum/floq/logger"
)

// WindowOption configures a window operator.
type WindowOption func(*windowConfig)

type windowConfig struct {
	clock     Clock
	skipEmpty bool
}

// WithClock sets the clock that drives window flushes. Defaults to WallClock.
func WithClock(c Clock) WindowOption {
	return func(cfg *windowConfig) { cfg.clock = c }
}

// WithSkipEmpty suppresses batches for periods in which nothing arrived.
// By default an empty period produces an empty batch.
func WithSkipEmpty() WindowOption {
	return func(cfg *windowConfig) { cfg.skipEmpty = true }
}

func newWindowConfig(opts []WindowOption) windowConfig {
	cfg := windowConfig{clock: WallClock}
	for _, opt := range opts {
		opt(&cfg)
	}
	return cfg
}

// Tumbling groups messages into consecutive, non-overlapping batches of
// one period each. The period is measured by a ticker running independently
// of arrivals, so a slow downstream never delays a flush: flushed batches
// queue until they are pulled. When the upstream ends, a non-empty partial
// batch is flushed before the window reports exhaustion.
//
// Tumbling panics if period is not positive.
func Tumbling[T any](period time.Duration, opts ...WindowOption) Operator[T, Batch[T]] {
	if period <= 0 {
		panic("stream: tumbling window period must be positive")
	}
	return &timedWindow[T]{
		name:      "tumbling",
		period:    period,
		cfg:       newWindowConfig(opts),
		newBuffer: func() windowBuffer[T] { return &tumblingBuffer[T]{} },
	}
}

// Sliding emits, every slide, the messages that arrived during the last size.
// Consecutive batches overlap when size > slide.
//
// Sliding panics if size or slide is not positive.
func Sliding[T any](size, slide time.Duration, opts ...WindowOption) Operator[T, Batch[T]] {
	if size <= 0 || slide <= 0 {
		panic("stream: sliding window size and slide must be positive")
	}
	return &timedWindow[T]{
		name:      "sliding",
		period:    slide,
		cfg:       newWindowConfig(opts),
		newBuffer: func() windowBuffer[T] { return &slidingBuffer[T]{size: size} },
	}
}

// windowBuffer holds the open batch of a timed window.
type windowBuffer[T any] interface {
	add(at time.Time, v T)
	// flush closes the current period and returns its batch (possibly empty).
	flush(now time.Time) Batch[T]
	// rest returns what would be lost if the window stopped now.
	rest() Batch[T]
}

type tumblingBuffer[T any] struct {
	open Batch[T]
}

func (b *tumblingBuffer[T]) add(_ time.Time, v T) { b.open = append(b.open, v) }

func (b *tumblingBuffer[T]) flush(time.Time) Batch[T] {
	batch := b.open
	b.open = nil
	if batch == nil {
		batch = Batch[T]{}
	}
	return batch
}

func (b *tumblingBuffer[T]) rest() Batch[T] { return b.flush(time.Time{}) }

type stamped[T any] struct {
	at time.Time
	v  T
}

type slidingBuffer[T any] struct {
	size    time.Duration
	entries []stamped[T]
	fresh   int // entries added since the last flush
}

func (b *slidingBuffer[T]) add(at time.Time, v T) {
	b.entries = append(b.entries, stamped[T]{at: at, v: v})
	b.fresh++
}

func (b *slidingBuffer[T]) flush(now time.Time) Batch[T] {
	cutoff := now.Add(-b.size)
	keep := 0
	for keep < len(b.entries) && !b.entries[keep].at.After(cutoff) {
		keep++
	}
	b.entries = b.entries[keep:]
	b.fresh = 0
	batch := make(Batch[T], len(b.entries))
	for i, e := range b.entries {
		batch[i] = e.v
	}
	return batch
}

func (b *slidingBuffer[T]) rest() Batch[T] {
	if b.fresh == 0 {
		return nil
	}
	batch := make(Batch[T], len(b.entries))
	for i, e := range b.entries {
		batch[i] = e.v
	}
	b.entries, b.fresh = nil, 0
	return batch
}

type timedWindow[T any] struct {
	name      string
	period    time.Duration
	cfg       windowConfig
	newBuffer func() windowBuffer[T]
}

func (w *timedWindow[T]) Name() string { return w.name }
func (w *timedWindow[T]) Kind() Kind   { return KindWindow }

func (w *timedWindow[T]) withName(name string) Operator[T, Batch[T]] {
	c := *w
	c.name = name
	return &c
}

func (w *timedWindow[T]) Bind(upstream Producer[T]) Producer[Batch[T]] {
	return &timedProducer[T]{w: w, up: upstream}
}

type timedProducer[T any] struct {
	w  *timedWindow[T]
	up Producer[T]

	once   sync.Once
	runCtx context.Context
	cancel context.CancelFunc
	out    chan result[Batch[T]]
	done   bool

	// leftover is written by the collector before it closes out.
	leftover []Batch[T]
	// held is a batch pulled after cancellation, kept for the final flush.
	held []Batch[T]
}

func (p *timedProducer[T]) start(ctx context.Context) {
	p.once.Do(func() {
		if isDraining(ctx) {
			p.done = true
			return
		}
		wctx, cancel := context.WithCancel(ctx)
		p.runCtx, p.cancel = ctx, cancel
		in := make(chan result[T])
		p.out = make(chan result[Batch[T]])
		go pump(wctx, p.up, in)
		go p.collect(wctx, in)
	})
}

func (p *timedProducer[T]) Next(ctx context.Context) (Batch[T], Outcome, error) {
	p.start(ctx)
	if p.done {
		return nil, Exhausted, nil
	}
	select {
	case r, ok := <-p.out:
		if !ok {
			if err := p.runCtx.Err(); err != nil && !isDraining(ctx) {
				return nil, Pending, err
			}
			if len(p.held) > 0 {
				b := p.held[0]
				p.held = p.held[1:]
				return b, Produced, nil
			}
			if len(p.leftover) > 0 {
				b := p.leftover[0]
				p.leftover = p.leftover[1:]
				return b, Produced, nil
			}
			p.done = true
			return nil, Exhausted, nil
		}
		if r.err != nil {
			return nil, Pending, r.err
		}
		if err := ctx.Err(); err != nil {
			if cancelPolicyFrom(ctx) == FlushOnCancel {
				p.held = append(p.held, r.val)
			}
			return nil, Pending, err
		}
		return r.val, Produced, nil
	case <-ctx.Done():
		return nil, Pending, ctx.Err()
	}
}

func (p *timedProducer[T]) Close() error {
	if p.cancel != nil {
		p.cancel()
	}
	return p.up.Close()
}

// collect owns the open batch. It races arrivals, ticks and downstream
// demand in a single select; flushed batches wait in queue.
func (p *timedProducer[T]) collect(ctx context.Context, in <-chan result[T]) {
	defer close(p.out)
	w := p.w
	ticker := w.cfg.clock.NewTicker(w.period)
	defer ticker.Stop()

	buf := w.newBuffer()
	var queue []result[Batch[T]]
	upstreamDone := false

	for {
		if upstreamDone && len(queue) == 0 {
			return
		}
		var out chan<- result[Batch[T]]
		var head result[Batch[T]]
		if len(queue) > 0 {
			out, head = p.out, queue[0]
		}
		recv := in
		if upstreamDone {
			recv = nil
		}

		select {
		case r, ok := <-recv:
			if !ok {
				upstreamDone = true
				if rest := buf.rest(); len(rest) > 0 {
					queue = append(queue, result[Batch[T]]{val: rest})
				}
				continue
			}
			if r.err != nil {
				queue = append(queue, result[Batch[T]]{err: r.err})
				continue
			}
			buf.add(w.cfg.clock.Now(), r.val)
			observe(ctx, w.name, KindWindow, Pending)

		case now := <-ticker.C():
			if upstreamDone {
				continue
			}
			batch := buf.flush(now)
			if len(batch) == 0 && w.cfg.skipEmpty {
				continue
			}
			queue = append(queue, result[Batch[T]]{val: batch})
			observe(ctx, w.name, KindWindow, Produced)
			logFrom(ctx).Debug("window flushed", logger.Fields(
				logger.FieldStage, w.name, logger.FieldCount, len(batch), "queued", len(queue)))

		case out <- head:
			queue[0] = result[Batch[T]]{}
			queue = queue[1:]

		case <-ctx.Done():
			if cancelPolicyFrom(ctx) == FlushOnCancel {
				logFrom(ctx).Debug("window keeping batches for final flush", logger.Fields(
					logger.FieldStage, w.name, "queued", len(queue)))
				for _, r := range queue {
					if r.err == nil {
						p.leftover = append(p.leftover, r.val)
					}
				}
				if rest := buf.rest(); len(rest) > 0 {
					p.leftover = append(p.leftover, rest)
				}
			}
			return
		}
	}
}

// Counting groups messages into batches of n. When the upstream ends, the
// final short batch is flushed if it is not empty.
//
// Counting panics if n is not positive.
func Counting[T any](n int) Operator[T, Batch[T]] {
	if n <= 0 {
		panic("stream: counting window size must be positive")
	}
	return &countWindow[T]{name: "counting", n: n}
}

type countWindow[T any] struct {
	name string
	n    int
}

func (w *countWindow[T]) Name() string { return w.name }
func (w *countWindow[T]) Kind() Kind   { return KindWindow }

func (w *countWindow[T]) withName(name string) Operator[T, Batch[T]] {
	return &countWindow[T]{name: name, n: w.n}
}

func (w *countWindow[T]) Bind(upstream Producer[T]) Producer[Batch[T]] {
	return &countProducer[T]{w: w, up: upstream}
}

type countProducer[T any] struct {
	w    *countWindow[T]
	up   Producer[T]
	open Batch[T]
	done bool
}

func (p *countProducer[T]) Next(ctx context.Context) (Batch[T], Outcome, error) {
	if p.done {
		return nil, Exhausted, nil
	}
	for {
		v, outcome, err := p.up.Next(ctx)
		if err != nil {
			return nil, Pending, err
		}
		switch outcome {
		case Pending:
			return nil, Pending, nil
		case Exhausted:
			p.done = true
			if len(p.open) > 0 && (ctx.Err() == nil || isDraining(ctx)) {
				return p.take(ctx), Produced, nil
			}
			return nil, Exhausted, nil
		}
		p.open = append(p.open, v)
		observe(ctx, p.w.name, KindWindow, Pending)
		if len(p.open) >= p.w.n {
			return p.take(ctx), Produced, nil
		}
	}
}

func (p *countProducer[T]) take(ctx context.Context) Batch[T] {
	batch := p.open
	p.open = nil
	observe(ctx, p.w.name, KindWindow, Produced)
	return batch
}

func (p *countProducer[T]) Close() error { return p.up.Close() }
