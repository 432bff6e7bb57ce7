package resilience

import (
	"errors"
	"sync"
	"testing"
	"time"
)

type fakeTime struct{ t time.Time }

func newFakeTime() *fakeTime            { return &fakeTime{t: time.Unix(1000, 0)} }
func (f *fakeTime) now() time.Time      { return f.t }
func (f *fakeTime) add(d time.Duration) { f.t = f.t.Add(d) }

func failing() error    { return errors.New("fail") }
func succeeding() error { return nil }

func tripped(cb *CircuitBreaker, n int) {
	for i := 0; i < n; i++ {
		_ = cb.Execute(failing)
	}
}

func breakerAt(cfg CircuitBreakerConfig, clock *fakeTime) *CircuitBreaker {
	cb := NewCircuitBreaker(cfg)
	cb.now = clock.now
	return cb
}

func TestCircuitBreaker_StartsClosed(t *testing.T) {
	cb := NewCircuitBreaker(DefaultCircuitBreakerConfig("sink"))
	if cb.State() != StateClosed {
		t.Errorf("expected StateClosed, got %s", cb.State())
	}
	if cb.Name() != "sink" {
		t.Errorf("expected name 'sink', got %q", cb.Name())
	}
	var called bool
	if err := cb.Execute(func() error { called = true; return nil }); err != nil || !called {
		t.Errorf("expected call through, err=%v called=%v", err, called)
	}
}

func TestCircuitBreaker_OpensAfterMaxFailures(t *testing.T) {
	clock := newFakeTime()
	cb := breakerAt(CircuitBreakerConfig{Name: "test", MaxFailures: 3, Timeout: time.Second}, clock)

	tripped(cb, 2)
	if cb.State() != StateClosed || cb.Failures() != 2 {
		t.Fatalf("expected closed with 2 failures, got %s/%d", cb.State(), cb.Failures())
	}
	tripped(cb, 1)
	if cb.State() != StateOpen {
		t.Fatalf("expected StateOpen, got %s", cb.State())
	}

	err := cb.Execute(func() error {
		t.Error("function should not have been called")
		return nil
	})
	if !errors.Is(err, ErrCircuitOpen) {
		t.Errorf("expected ErrCircuitOpen, got %v", err)
	}
}

func TestCircuitBreaker_SuccessResetsFailures(t *testing.T) {
	cb := NewCircuitBreaker(CircuitBreakerConfig{MaxFailures: 3})
	tripped(cb, 2)
	_ = cb.Execute(succeeding)
	tripped(cb, 2)
	if cb.State() != StateClosed {
		t.Errorf("expected failures to be consecutive, got %s", cb.State())
	}
}

func TestCircuitBreaker_HalfOpenRecovery(t *testing.T) {
	tests := []struct {
		name  string
		trial func() error
		want  State
	}{
		{"success closes", succeeding, StateClosed},
		{"failure reopens", failing, StateOpen},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			clock := newFakeTime()
			cb := breakerAt(CircuitBreakerConfig{MaxFailures: 1, Timeout: time.Minute, HalfOpenMaxCalls: 1}, clock)
			tripped(cb, 1)

			clock.add(59 * time.Second)
			if cb.State() != StateOpen {
				t.Fatalf("expected still open before timeout, got %s", cb.State())
			}
			clock.add(time.Second)
			if cb.State() != StateHalfOpen {
				t.Fatalf("expected StateHalfOpen, got %s", cb.State())
			}

			_ = cb.Execute(tc.trial)
			if cb.State() != tc.want {
				t.Errorf("expected %s, got %s", tc.want, cb.State())
			}
		})
	}
}

func TestCircuitBreaker_HalfOpenLimitsTrialCalls(t *testing.T) {
	clock := newFakeTime()
	cb := breakerAt(CircuitBreakerConfig{MaxFailures: 1, Timeout: time.Second, HalfOpenMaxCalls: 1}, clock)
	tripped(cb, 1)
	clock.add(time.Second)

	release := make(chan struct{})
	done := make(chan error)
	go func() {
		done <- cb.Execute(func() error { <-release; return nil })
	}()
	// Wait until the trial call holds the only half-open slot.
	for {
		cb.mu.Lock()
		inFlight := cb.halfOpenCalls
		cb.mu.Unlock()
		if inFlight == 1 {
			break
		}
		time.Sleep(time.Millisecond)
	}
	if err := cb.Execute(succeeding); !errors.Is(err, ErrCircuitOpen) {
		t.Errorf("expected second trial call to be rejected, got %v", err)
	}
	close(release)
	if err := <-done; err != nil {
		t.Errorf("trial call failed: %v", err)
	}
	if cb.State() != StateClosed {
		t.Errorf("expected StateClosed, got %s", cb.State())
	}
}

func TestCircuitBreaker_Reset(t *testing.T) {
	cb := NewCircuitBreaker(CircuitBreakerConfig{MaxFailures: 1})
	tripped(cb, 1)
	cb.Reset()
	if cb.State() != StateClosed || cb.Failures() != 0 {
		t.Errorf("expected closed with no failures, got %s/%d", cb.State(), cb.Failures())
	}
}

func TestCircuitBreaker_StateChangeCallback(t *testing.T) {
	clock := newFakeTime()
	var changes []string
	cb := breakerAt(CircuitBreakerConfig{
		Name:        "redis",
		MaxFailures: 1,
		Timeout:     time.Second,
		OnStateChange: func(name string, from, to State) {
			changes = append(changes, name+":"+from.String()+"->"+to.String())
		},
	}, clock)

	tripped(cb, 1)
	clock.add(time.Second)
	_ = cb.Execute(succeeding)

	want := []string{"redis:closed->open", "redis:open->half-open", "redis:half-open->closed"}
	if len(changes) != len(want) {
		t.Fatalf("expected %v, got %v", want, changes)
	}
	for i := range want {
		if changes[i] != want[i] {
			t.Errorf("change %d: expected %q, got %q", i, want[i], changes[i])
		}
	}
}

func TestCircuitBreaker_ConcurrentAccess(t *testing.T) {
	cb := NewCircuitBreaker(CircuitBreakerConfig{MaxFailures: 1000})
	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if i%2 == 0 {
				_ = cb.Execute(failing)
			} else {
				_ = cb.Execute(succeeding)
			}
		}(i)
	}
	wg.Wait()
	if cb.State() != StateClosed {
		t.Errorf("expected StateClosed, got %s", cb.State())
	}
}

func TestState_String(t *testing.T) {
	tests := map[State]string{
		StateClosed:   "closed",
		StateOpen:     "open",
		StateHalfOpen: "half-open",
		State(99):     "unknown",
	}
	for state, want := range tests {
		if got := state.String(); got != want {
			t.Errorf("State(%d).String() = %q, want %q", state, got, want)
		}
	}
}
