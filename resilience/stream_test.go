package resilience

import (
	"context"
	"errors"
	"slices"
	"testing"
	"time"

	apperrors "github.com/kbukum/floq/errors"
	"github.com/kbukum/floq/stream"
)

type flakySink struct {
	failures int
	got      []int
	closed   bool
}

func (f *flakySink) Name() string { return "flaky" }

func (f *flakySink) Consume(_ context.Context, v int) error {
	if f.failures > 0 {
		f.failures--
		return errors.New("unavailable")
	}
	f.got = append(f.got, v)
	return nil
}

func (f *flakySink) Close() error {
	f.closed = true
	return nil
}

func TestRetrySink(t *testing.T) {
	inner := &flakySink{failures: 2}
	sink := RetrySink[int](inner, RetryConfig{MaxAttempts: 3, InitialBackoff: time.Millisecond})

	report, err := stream.RunFlow(context.Background(), stream.From(stream.FromSlice([]int{1, 2})), sink)
	if err != nil {
		t.Fatal(err)
	}
	if !slices.Equal(inner.got, []int{1, 2}) || report.Delivered != 2 {
		t.Errorf("expected both values delivered, got %v (%d)", inner.got, report.Delivered)
	}
	if !inner.closed {
		t.Error("expected Close to reach the wrapped sink")
	}
}

func TestRetrySinkGivesUp(t *testing.T) {
	inner := &flakySink{failures: 10}
	sink := RetrySink[int](inner, RetryConfig{MaxAttempts: 2, InitialBackoff: time.Millisecond})

	_, err := stream.RunFlow(context.Background(), stream.From(stream.FromSlice([]int{1})), sink)
	se, ok := stream.AsStageError(err)
	if !ok {
		t.Fatalf("expected stage error, got %v", err)
	}
	if se.Stage != "flaky" || se.Kind != stream.KindSink {
		t.Errorf("unexpected stage %q kind %s", se.Stage, se.Kind)
	}
	if inner.failures != 8 {
		t.Errorf("expected 2 attempts, %d failures left", inner.failures)
	}
}

func TestBreakerSink(t *testing.T) {
	inner := &flakySink{failures: 100}
	cb := NewCircuitBreaker(CircuitBreakerConfig{Name: "flaky", MaxFailures: 2, Timeout: time.Hour})
	sink := BreakerSink[int](inner, cb)

	var errs []error
	_, err := stream.RunFlow(context.Background(), stream.From(stream.FromSlice([]int{1, 2, 3, 4})), sink,
		stream.WithErrorPolicy(stream.SkipOnError),
		stream.WithErrorHandler(func(se *stream.StageError) { errs = append(errs, se) }))
	if err != nil {
		t.Fatal(err)
	}
	if len(errs) != 4 {
		t.Fatalf("expected 4 failed deliveries, got %d", len(errs))
	}
	if inner.failures != 98 {
		t.Errorf("expected only 2 calls to reach the sink, got %d", 100-inner.failures)
	}
	if !errors.Is(errs[3], ErrCircuitOpen) {
		t.Errorf("expected open circuit error, got %v", errs[3])
	}
	if apperrors.CodeOf(errs[3]) != apperrors.ErrCodeStageFailed {
		t.Errorf("expected stage failure wrapper, got %q", apperrors.CodeOf(errs[3]))
	}
}

func TestThrottle(t *testing.T) {
	rl := NewRateLimiter(RateLimiterConfig{Rate: 500, Burst: 1})
	start := time.Now()
	got, _, err := stream.Gather(context.Background(), stream.Via(stream.From(stream.FromSlice([]int{1, 2, 3})), Throttle[int](rl)))
	if err != nil {
		t.Fatal(err)
	}
	if !slices.Equal(got, []int{1, 2, 3}) {
		t.Errorf("got %v", got)
	}
	if elapsed := time.Since(start); elapsed < 3*time.Millisecond {
		t.Errorf("expected throttling to take at least 3ms, took %v", elapsed)
	}
}

func TestShed(t *testing.T) {
	clock := newFakeTime()
	rl := limiterAt(RateLimiterConfig{Rate: 1, Burst: 2}, clock)
	got, _, err := stream.Gather(context.Background(), stream.Via(stream.From(stream.FromSlice([]int{1, 2, 3, 4})), Shed[int](rl)))
	if err != nil {
		t.Fatal(err)
	}
	if !slices.Equal(got, []int{1, 2}) {
		t.Errorf("expected values over the limit to be dropped, got %v", got)
	}
}
