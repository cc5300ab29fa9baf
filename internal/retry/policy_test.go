package retry

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"git.home.luguber.info/inful/litebuilder/internal/config"
)

func TestDelay_Fixed(t *testing.T) {
	p := NewPolicy(config.RetryBackoffFixed, 2*time.Second, 30*time.Second, 3)
	for attempt := 1; attempt <= 3; attempt++ {
		if got := p.Delay(attempt); got != 2*time.Second {
			t.Errorf("Delay(%d) = %v, want 2s", attempt, got)
		}
	}
}

func TestDelay_Linear(t *testing.T) {
	p := NewPolicy(config.RetryBackoffLinear, time.Second, 30*time.Second, 5)
	tests := map[int]time.Duration{
		1: time.Second,
		2: 2 * time.Second,
		3: 3 * time.Second,
	}
	for attempt, want := range tests {
		if got := p.Delay(attempt); got != want {
			t.Errorf("Delay(%d) = %v, want %v", attempt, got, want)
		}
	}
}

func TestDelay_Exponential(t *testing.T) {
	p := NewPolicy(config.RetryBackoffExponential, time.Second, 10*time.Second, 6)
	tests := map[int]time.Duration{
		1: time.Second,
		2: 2 * time.Second,
		3: 4 * time.Second,
		4: 8 * time.Second,
		5: 10 * time.Second, // capped
		6: 10 * time.Second,
	}
	for attempt, want := range tests {
		if got := p.Delay(attempt); got != want {
			t.Errorf("Delay(%d) = %v, want %v", attempt, got, want)
		}
	}
}

func TestDelay_CapAppliesToLinear(t *testing.T) {
	p := NewPolicy(config.RetryBackoffLinear, 10*time.Second, 15*time.Second, 5)
	if got := p.Delay(4); got != 15*time.Second {
		t.Errorf("Delay(4) = %v, want capped 15s", got)
	}
}

func TestDelay_ZeroAttempt(t *testing.T) {
	p := DefaultPolicy()
	if got := p.Delay(0); got != 0 {
		t.Errorf("Delay(0) = %v, want 0", got)
	}
}

func TestNewPolicy_FallsBackOnInvalid(t *testing.T) {
	p := NewPolicy("bogus", 0, 0, -1)
	def := DefaultPolicy()
	if p != def {
		t.Errorf("invalid inputs should yield defaults, got %+v", p)
	}
}

func TestNewPolicy_ClampsInitialToMax(t *testing.T) {
	p := NewPolicy(config.RetryBackoffFixed, time.Minute, 10*time.Second, 1)
	if p.Initial != 10*time.Second {
		t.Errorf("initial should be clamped to max, got %v", p.Initial)
	}
}

func TestFromConfig(t *testing.T) {
	rc := config.RetryConfig{Backoff: config.RetryBackoffExponential, Initial: "500ms", Max: "8s", MaxRetries: 4}
	p := FromConfig(rc)
	if p.Mode != config.RetryBackoffExponential || p.Initial != 500*time.Millisecond || p.Max != 8*time.Second || p.MaxRetries != 4 {
		t.Errorf("unexpected policy: %+v", p)
	}
}

func TestValidate(t *testing.T) {
	if err := DefaultPolicy().Validate(); err != nil {
		t.Errorf("default policy should validate: %v", err)
	}
	bad := Policy{Mode: config.RetryBackoffFixed, Initial: 0, Max: time.Second, MaxRetries: 1}
	if err := bad.Validate(); err == nil {
		t.Error("expected error for zero initial delay")
	}
}

type hintedError struct{ factor float64 }

func (e *hintedError) Error() string          { return "transient" }
func (e *hintedError) BackoffFactor() float64 { return e.factor }

func TestDelayFor(t *testing.T) {
	p := NewPolicy(config.RetryBackoffFixed, 2*time.Second, 30*time.Second, 3)

	tests := []struct {
		name string
		err  error
		want time.Duration
	}{
		{"nil error", nil, 2 * time.Second},
		{"plain error", errors.New("boom"), 2 * time.Second},
		{"hinted error scales", &hintedError{factor: 3}, 6 * time.Second},
		{"wrapped hint still scales", fmt.Errorf("fetch: %w", &hintedError{factor: 3}), 6 * time.Second},
		{"unit hint keeps base", &hintedError{factor: 1}, 2 * time.Second},
	}
	for _, tt := range tests {
		if got := p.DelayFor(1, tt.err); got != tt.want {
			t.Errorf("%s: DelayFor(1, err) = %v, want %v", tt.name, got, tt.want)
		}
	}
}

func TestDelayFor_HintMayExceedCap(t *testing.T) {
	p := NewPolicy(config.RetryBackoffLinear, 10*time.Second, 15*time.Second, 3)
	// Base delay caps at 15s; the rate-limit hint pushes past the cap.
	if got := p.DelayFor(3, &hintedError{factor: 3}); got != 45*time.Second {
		t.Errorf("DelayFor(3) = %v, want 45s", got)
	}
}
