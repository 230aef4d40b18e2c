package resilience

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

var errHostDown = errors.New("fetch: connect: connection refused")

// trip drives the breaker to open with n consecutive failures.
func trip(cb *CircuitBreaker, n int) {
	for i := 0; i < n; i++ {
		_ = cb.Execute(context.Background(), func(_ context.Context) error {
			return errHostDown
		})
	}
}

func TestCircuitBreaker_HealthyHostFlowsThrough(t *testing.T) {
	cb := NewCircuitBreaker(DefaultCircuitBreakerConfig())

	for i := 0; i < 10; i++ {
		err := cb.Execute(context.Background(), func(_ context.Context) error { return nil })
		if err != nil {
			t.Fatalf("call %d rejected: %v", i, err)
		}
	}
	if got := cb.State(); got != CircuitClosed {
		t.Errorf("state = %s, want closed", got)
	}
}

func TestCircuitBreaker_OpensAtThreshold(t *testing.T) {
	cb := NewCircuitBreaker(CircuitBreakerConfig{FailureThreshold: 3, ResetTimeout: time.Hour})

	trip(cb, 2)
	if got := cb.State(); got != CircuitClosed {
		t.Fatalf("state after 2 failures = %s, want closed", got)
	}

	trip(cb, 1)
	if got := cb.State(); got != CircuitOpen {
		t.Fatalf("state after 3 failures = %s, want open", got)
	}

	// Open circuit rejects without calling through.
	called := false
	err := cb.Execute(context.Background(), func(_ context.Context) error {
		called = true
		return nil
	})
	if !errors.Is(err, ErrCircuitOpen) {
		t.Errorf("err = %v, want ErrCircuitOpen", err)
	}
	if called {
		t.Error("open circuit must not invoke the function")
	}
}

func TestCircuitBreaker_SuccessClearsFailureStreak(t *testing.T) {
	cb := NewCircuitBreaker(CircuitBreakerConfig{FailureThreshold: 3, ResetTimeout: time.Hour})

	trip(cb, 2)
	_ = cb.Execute(context.Background(), func(_ context.Context) error { return nil })
	trip(cb, 2)

	// The streak restarted after the success, so 2+2 never reaches 3.
	if got := cb.State(); got != CircuitClosed {
		t.Errorf("state = %s, want closed", got)
	}
	failures, _ := cb.Counters()
	if failures != 2 {
		t.Errorf("consecutive failures = %d, want 2", failures)
	}
}

func TestCircuitBreaker_ProbeAfterResetTimeout(t *testing.T) {
	cb := NewCircuitBreaker(CircuitBreakerConfig{FailureThreshold: 1, ResetTimeout: time.Minute})

	now := time.Now()
	cb.nowFunc = func() time.Time { return now }
	trip(cb, 1)

	if got := cb.State(); got != CircuitOpen {
		t.Fatalf("state = %s, want open", got)
	}

	// After the reset window a probe is allowed; success closes the circuit.
	now = now.Add(2 * time.Minute)
	if got := cb.State(); got != CircuitHalfOpen {
		t.Fatalf("state = %s, want half-open", got)
	}
	err := cb.Execute(context.Background(), func(_ context.Context) error { return nil })
	if err != nil {
		t.Fatalf("probe rejected: %v", err)
	}
	if got := cb.State(); got != CircuitClosed {
		t.Errorf("state after successful probe = %s, want closed", got)
	}
}

func TestCircuitBreaker_FailedProbeReopens(t *testing.T) {
	cb := NewCircuitBreaker(CircuitBreakerConfig{FailureThreshold: 1, ResetTimeout: time.Minute})

	now := time.Now()
	cb.nowFunc = func() time.Time { return now }
	trip(cb, 1)

	now = now.Add(2 * time.Minute)
	_ = cb.Execute(context.Background(), func(_ context.Context) error { return errHostDown })

	if got := cb.State(); got != CircuitOpen {
		t.Errorf("state after failed probe = %s, want open", got)
	}
}

func TestCircuitBreaker_ShouldTripFilter(t *testing.T) {
	// Only transient errors count toward the threshold.
	cb := NewCircuitBreaker(CircuitBreakerConfig{
		FailureThreshold: 2,
		ResetTimeout:     time.Hour,
		ShouldTrip:       IsTransient,
	})

	for i := 0; i < 5; i++ {
		_ = cb.Execute(context.Background(), func(_ context.Context) error {
			return errors.New("fetch: status 404")
		})
	}
	if got := cb.State(); got != CircuitClosed {
		t.Fatalf("permanent errors tripped the breaker: %s", got)
	}

	for i := 0; i < 2; i++ {
		_ = cb.Execute(context.Background(), func(_ context.Context) error {
			return NewTransientError(errors.New("fetch: status 503"), 503)
		})
	}
	if got := cb.State(); got != CircuitOpen {
		t.Errorf("state = %s, want open after transient failures", got)
	}
}

func TestCircuitBreaker_StateChangeCallback(t *testing.T) {
	type change struct{ from, to CircuitState }
	var changes []change

	cb := NewCircuitBreaker(CircuitBreakerConfig{
		FailureThreshold: 1,
		ResetTimeout:     time.Hour,
		OnStateChange:    func(from, to CircuitState) { changes = append(changes, change{from, to}) },
	})

	trip(cb, 1)
	cb.Reset()

	if len(changes) != 2 {
		t.Fatalf("got %d transitions, want 2", len(changes))
	}
	if changes[0] != (change{CircuitClosed, CircuitOpen}) {
		t.Errorf("first transition %v", changes[0])
	}
	if changes[1] != (change{CircuitOpen, CircuitClosed}) {
		t.Errorf("second transition %v", changes[1])
	}
}

func TestCircuitBreaker_Reset(t *testing.T) {
	cb := NewCircuitBreaker(CircuitBreakerConfig{FailureThreshold: 1, ResetTimeout: time.Hour})
	trip(cb, 1)
	cb.Reset()

	if got := cb.State(); got != CircuitClosed {
		t.Errorf("state after reset = %s, want closed", got)
	}
	failures, _ := cb.Counters()
	if failures != 0 {
		t.Errorf("failures after reset = %d", failures)
	}
}

func TestExecuteVal_PreservesValue(t *testing.T) {
	cb := NewCircuitBreaker(DefaultCircuitBreakerConfig())

	got, err := ExecuteVal(context.Background(), cb, func(_ context.Context) (string, error) {
		return "listing html", nil
	})
	if err != nil || got != "listing html" {
		t.Errorf("got %q, err %v", got, err)
	}
}

func TestExecuteVal_OpenCircuitReturnsZero(t *testing.T) {
	cb := NewCircuitBreaker(CircuitBreakerConfig{FailureThreshold: 1, ResetTimeout: time.Hour})
	trip(cb, 1)

	got, err := ExecuteVal(context.Background(), cb, func(_ context.Context) (string, error) {
		return "never", nil
	})
	if !errors.Is(err, ErrCircuitOpen) {
		t.Errorf("err = %v, want ErrCircuitOpen", err)
	}
	if got != "" {
		t.Errorf("got %q, want zero value", got)
	}
}

func TestCircuitBreaker_ParallelCallers(t *testing.T) {
	cb := NewCircuitBreaker(CircuitBreakerConfig{FailureThreshold: 50, ResetTimeout: time.Hour})

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			for j := 0; j < 25; j++ {
				_ = cb.Execute(context.Background(), func(_ context.Context) error {
					if (n+j)%2 == 0 {
						return errHostDown
					}
					return nil
				})
			}
		}(i)
	}
	wg.Wait()

	// No assertion on the final state; the test exists for the race detector.
	_, _ = cb.Counters()
}

func TestCircuitState_String(t *testing.T) {
	cases := map[CircuitState]string{
		CircuitClosed:    "closed",
		CircuitOpen:      "open",
		CircuitHalfOpen:  "half-open",
		CircuitState(99): "unknown",
	}
	for state, want := range cases {
		if got := state.String(); got != want {
			t.Errorf("%d.String() = %q, want %q", state, got, want)
		}
	}
}
