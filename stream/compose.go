package stream

import (
	"context"
	"slices"

	"github.com/kbukum/floq/errors"
)

// Lift turns a Stage into an Operator. The same stage value serves every
// run; use a stateless stage or build state per run with LiftFunc.
func Lift[I, O any](name string, kind Kind, stage Stage[I, O]) Operator[I, O] {
	return &lifted[I, O]{name: name, kind: kind, newStage: func() Stage[I, O] { return stage }}
}

// LiftFunc is like Lift but creates a fresh stage every time the operator is bound.
func LiftFunc[I, O any](name string, kind Kind, newStage func() Stage[I, O]) Operator[I, O] {
	return &lifted[I, O]{name: name, kind: kind, newStage: newStage}
}

type lifted[I, O any] struct {
	name     string
	kind     Kind
	newStage func() Stage[I, O]
}

func (l *lifted[I, O]) Name() string { return l.name }
func (l *lifted[I, O]) Kind() Kind   { return l.kind }

func (l *lifted[I, O]) withName(name string) Operator[I, O] {
	c := *l
	c.name = name
	return &c
}

func (l *lifted[I, O]) Bind(upstream Producer[I]) Producer[O] {
	return &liftedProducer[I, O]{up: upstream, stage: l.newStage(), name: l.name, kind: l.kind}
}

type liftedProducer[I, O any] struct {
	up    Producer[I]
	stage Stage[I, O]
	name  string
	kind  Kind
	done  bool
}

func (p *liftedProducer[I, O]) Next(ctx context.Context) (O, Outcome, error) {
	var zero O
	if p.done {
		return zero, Exhausted, nil
	}
	for {
		in, outcome, err := p.up.Next(ctx)
		if err != nil {
			return zero, Pending, err
		}
		switch outcome {
		case Exhausted:
			p.done = true
			return zero, Exhausted, nil
		case Pending:
			return zero, Pending, nil
		}

		// No callbacks once cancellation has been requested. The final drain
		// runs on a detached context, so it still reaches the stage.
		if err := ctx.Err(); err != nil {
			return zero, Pending, err
		}
		out, outcome, err := guard(ctx, p.name, p.kind, func() (O, Outcome, error) {
			return p.stage.Step(ctx, in)
		})
		if err != nil {
			return zero, Pending, err
		}
		observe(ctx, p.name, p.kind, outcome)
		switch outcome {
		case Produced:
			return out, Produced, nil
		case Exhausted:
			p.done = true
			return zero, Exhausted, nil
		}
		// Dropped: pull the next upstream value without forwarding anything.
		if err := ctx.Err(); err != nil {
			return zero, Pending, err
		}
	}
}

func (p *liftedProducer[I, O]) Close() error { return p.up.Close() }

type renamer[I, O any] interface {
	withName(name string) Operator[I, O]
}

// Named returns op reporting under name in errors, logs and metrics.
func Named[I, O any](name string, op Operator[I, O]) Operator[I, O] {
	if r, ok := op.(renamer[I, O]); ok {
		return r.withName(name)
	}
	return &renamed[I, O]{Operator: op, name: name}
}

type renamed[I, O any] struct {
	Operator[I, O]
	name string
}

func (r *renamed[I, O]) Name() string { return r.name }

// Then composes two operators into one. Composition is associative:
// Then(Then(a, b), c) and Then(a, Then(b, c)) bind to the same producer chain.
func Then[A, B, C any](first Operator[A, B], second Operator[B, C]) Operator[A, C] {
	return &chain[A, B, C]{first: first, second: second}
}

type chain[A, B, C any] struct {
	first  Operator[A, B]
	second Operator[B, C]
}

func (c *chain[A, B, C]) Name() string { return c.first.Name() + " | " + c.second.Name() }
func (c *chain[A, B, C]) Kind() Kind   { return KindChain }

func (c *chain[A, B, C]) Bind(upstream Producer[A]) Producer[C] {
	return c.second.Bind(c.first.Bind(upstream))
}

// Flow is a source-rooted chain that has not been given a sink yet.
// A Flow is itself a Source, so flows nest and merge.
type Flow[T any] struct {
	name   string
	stages []string
	open   func(ctx context.Context) (Producer[T], error)
}

// From starts a flow at src.
func From[T any](src Source[T]) *Flow[T] {
	name := nameOf(src, string(KindSource))
	return &Flow[T]{
		name:   name,
		stages: []string{name},
		open: func(ctx context.Context) (Producer[T], error) {
			p, err := src.Open(ctx)
			if err != nil {
				if errors.IsAppError(err) {
					return nil, err
				}
				return nil, errors.SourceFailed(name, err)
			}
			return &sourceProducer[T]{name: name, p: p}, nil
		},
	}
}

// Via appends op to the flow.
func Via[I, O any](f *Flow[I], op Operator[I, O]) *Flow[O] {
	return &Flow[O]{
		name:   f.name,
		stages: append(slices.Clone(f.stages), op.Name()),
		open: func(ctx context.Context) (Producer[O], error) {
			up, err := f.open(ctx)
			if err != nil {
				return nil, err
			}
			return op.Bind(up), nil
		},
	}
}

// Open implements Source.
func (f *Flow[T]) Open(ctx context.Context) (Producer[T], error) { return f.open(ctx) }

// Name implements Namer; a flow is named after its source.
func (f *Flow[T]) Name() string { return f.name }

// Stages returns the stage names from source to tail.
func (f *Flow[T]) Stages() []string { return slices.Clone(f.stages) }

type sourceProducer[T any] struct {
	name string
	p    Producer[T]
}

func (s *sourceProducer[T]) Next(ctx context.Context) (T, Outcome, error) {
	var zero T
	if isDraining(ctx) {
		return zero, Exhausted, nil
	}
	v, outcome, err := s.p.Next(ctx)
	if n, ok := s.p.(Notifier); ok {
		for err == nil && outcome == Pending {
			select {
			case <-n.Notify():
			case <-ctx.Done():
				return zero, Pending, ctx.Err()
			}
			v, outcome, err = s.p.Next(ctx)
		}
	}
	if err != nil {
		if ctx.Err() == nil && !errors.IsAppError(err) {
			if _, ok := AsStageError(err); !ok {
				err = errors.SourceFailed(s.name, err)
			}
		}
		return zero, Pending, err
	}
	if outcome == Produced {
		observe(ctx, s.name, KindSource, Produced)
	}
	return v, outcome, nil
}

func (s *sourceProducer[T]) Close() error { return s.p.Close() }
