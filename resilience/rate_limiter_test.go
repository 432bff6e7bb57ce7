package resilience

import (
	"context"
	"errors"
	"testing"
	"time"
)

func limiterAt(cfg RateLimiterConfig, clock *fakeTime) *RateLimiter {
	rl := NewRateLimiter(cfg)
	rl.now = clock.now
	rl.lastRefill = clock.now()
	return rl
}

func TestRateLimiter_BurstThenReject(t *testing.T) {
	clock := newFakeTime()
	rl := limiterAt(RateLimiterConfig{Name: "test", Rate: 10, Burst: 3}, clock)

	for i := 0; i < 3; i++ {
		if !rl.Allow() {
			t.Errorf("request %d should be allowed", i)
		}
	}
	if rl.Allow() {
		t.Error("request should be rejected over burst limit")
	}
}

func TestRateLimiter_RefillsOverTime(t *testing.T) {
	clock := newFakeTime()
	rl := limiterAt(RateLimiterConfig{Rate: 100, Burst: 1}, clock)

	if !rl.Allow() {
		t.Fatal("first request should be allowed")
	}
	if rl.Allow() {
		t.Fatal("second request should be rejected")
	}
	clock.add(10 * time.Millisecond)
	if !rl.Allow() {
		t.Error("request after refill should be allowed")
	}
	clock.add(time.Hour)
	if got := rl.Tokens(); got != 1 {
		t.Errorf("expected tokens capped at burst, got %v", got)
	}
}

func TestRateLimiter_AllowN(t *testing.T) {
	rl := NewRateLimiter(RateLimiterConfig{Rate: 1, Burst: 5})
	if !rl.AllowN(5) {
		t.Error("expected 5 tokens to be available")
	}
	if rl.AllowN(1) {
		t.Error("expected bucket to be empty")
	}
}

func TestRateLimiter_OnLimitCallback(t *testing.T) {
	var limited []string
	rl := NewRateLimiter(RateLimiterConfig{Name: "mastodon", Rate: 1, Burst: 1, OnLimit: func(name string) {
		limited = append(limited, name)
	}})
	rl.Allow()
	rl.Allow()
	if len(limited) != 1 || limited[0] != "mastodon" {
		t.Errorf("expected one limit callback for mastodon, got %v", limited)
	}
}

func TestRateLimiter_Wait(t *testing.T) {
	rl := NewRateLimiter(RateLimiterConfig{Rate: 200, Burst: 1})
	rl.Allow()

	start := time.Now()
	if err := rl.Wait(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if elapsed := time.Since(start); elapsed < 2*time.Millisecond {
		t.Errorf("expected to wait for a token, waited %v", elapsed)
	}
}

func TestRateLimiter_WaitRespectsContext(t *testing.T) {
	rl := NewRateLimiter(RateLimiterConfig{Rate: 0.1, Burst: 1})
	rl.Allow()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	if err := rl.Wait(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("expected context.DeadlineExceeded, got %v", err)
	}
}

func TestRateLimiter_Defaults(t *testing.T) {
	rl := NewRateLimiter(RateLimiterConfig{})
	if rl.Rate() != 10 || rl.Burst() != 10 {
		t.Errorf("expected rate 10 burst 10, got %v/%d", rl.Rate(), rl.Burst())
	}
	if d := DefaultRateLimiterConfig("x"); d.Burst != 20 {
		t.Errorf("expected default burst 20, got %d", d.Burst)
	}
}
