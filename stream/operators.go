package stream

import (
	"context"
	"regexp"

	"github.com/kbukum/floq/errors"
)

// Filter keeps values for which keep returns true. Dropped values produce
// no output and do not end the stream.
func Filter[T any](keep func(T) bool) Operator[T, T] {
	return Lift[T, T](string(KindFilter), KindFilter, StageFunc[T, T](func(_ context.Context, v T) (T, Outcome, error) {
		if keep(v) {
			return v, Produced, nil
		}
		var zero T
		return zero, Pending, nil
	}))
}

// FilterErr is Filter with a fallible predicate. A predicate error is a
// stage failure, never a drop.
func FilterErr[T any](keep func(context.Context, T) (bool, error)) Operator[T, T] {
	return Lift[T, T](string(KindFilter), KindFilter, StageFunc[T, T](func(ctx context.Context, v T) (T, Outcome, error) {
		var zero T
		ok, err := keep(ctx, v)
		if err != nil {
			return zero, Pending, err
		}
		if !ok {
			return zero, Pending, nil
		}
		return v, Produced, nil
	}))
}

// Match keeps strings matching the regular expression pattern.
func Match(pattern string) (Operator[string, string], error) {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, errors.InvalidInput("pattern", err.Error()).WithCause(err)
	}
	return Named("match", Filter(re.MatchString)), nil
}

// MustMatch is like Match but panics on an invalid pattern.
func MustMatch(pattern string) Operator[string, string] {
	op, err := Match(pattern)
	if err != nil {
		panic(err)
	}
	return op
}

// BatchFunc transforms a whole batch.
type BatchFunc[I, O any] func(ctx context.Context, in Batch[I]) (Batch[O], error)

// Map applies fn to every batch. A failing fn is a stage failure and the
// batch is not forwarded.
func Map[I, O any](fn BatchFunc[I, O]) Operator[Batch[I], Batch[O]] {
	return Lift[Batch[I], Batch[O]](string(KindMap), KindMap, mapStage[I, O](fn))
}

// MapOne applies a batch transform to single messages, each treated as a
// batch of one. Messages whose batch maps to nothing are dropped.
func MapOne[I, O any](fn BatchFunc[I, O]) Operator[I, O] {
	stage := mapStage[I, O](fn)
	return Lift[I, O](string(KindMap), KindMap, StageFunc[I, O](func(ctx context.Context, in I) (O, Outcome, error) {
		var zero O
		out, outcome, err := stage.Step(ctx, Batch[I]{in})
		if err != nil || outcome != Produced || len(out) == 0 {
			return zero, Pending, err
		}
		return out[0], Produced, nil
	}))
}

// Each lifts a per-message function into a BatchFunc, preserving order.
func Each[I, O any](fn func(context.Context, I) (O, error)) BatchFunc[I, O] {
	return func(ctx context.Context, in Batch[I]) (Batch[O], error) {
		out := make(Batch[O], 0, len(in))
		for _, v := range in {
			o, err := fn(ctx, v)
			if err != nil {
				return nil, err
			}
			out = append(out, o)
		}
		return out, nil
	}
}

type mapStage[I, O any] BatchFunc[I, O]

func (m mapStage[I, O]) Step(ctx context.Context, in Batch[I]) (Batch[O], Outcome, error) {
	out, err := m(ctx, in)
	if err != nil {
		return nil, Pending, err
	}
	if out == nil {
		out = Batch[O]{}
	}
	return out, Produced, nil
}

// FoldFunc folds one batch into the accumulator and returns its replacement.
type FoldFunc[T, A any] func(ctx context.Context, acc A, batch Batch[T]) (A, error)

// Reduce folds every incoming batch into an accumulator seeded with init and
// emits the updated accumulator once per batch. init may be the zero value;
// fn is responsible for seeding. A failed fold leaves the accumulator as it was.
// Each run starts again from init.
func Reduce[T, A any](init A, fn FoldFunc[T, A]) Operator[Batch[T], A] {
	return LiftFunc[Batch[T], A](string(KindReduce), KindReduce, func() Stage[Batch[T], A] {
		return &reduceStage[T, A]{acc: init, fn: fn}
	})
}

type reduceStage[T, A any] struct {
	acc A
	fn  FoldFunc[T, A]
}

func (r *reduceStage[T, A]) Step(ctx context.Context, batch Batch[T]) (A, Outcome, error) {
	next, err := r.fn(ctx, r.acc, batch)
	if err != nil {
		var zero A
		return zero, Pending, err
	}
	r.acc = next
	return next, Produced, nil
}

// Tap calls fn for every value and passes the value through unchanged.
// Use for logging, metrics, or mid-pipeline publishing.
func Tap[T any](fn func(context.Context, T) error) Operator[T, T] {
	return Lift[T, T](string(KindTap), KindTap, StageFunc[T, T](func(ctx context.Context, v T) (T, Outcome, error) {
		if err := fn(ctx, v); err != nil {
			var zero T
			return zero, Pending, err
		}
		return v, Produced, nil
	}))
}
