package circuitbreaker

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestBreakerOpensAfterThreshold(t *testing.T) {
	cb := New(Config{
		FailureThreshold: 3,
		SuccessThreshold: 1,
		Timeout:          time.Minute,
		ResetTimeout:     time.Minute,
	})

	fail := errors.New("carrier timeout")
	for i := 0; i < 3; i++ {
		if err := cb.Execute(context.Background(), func() error { return fail }); !errors.Is(err, fail) {
			t.Fatalf("attempt %d: err = %v, want pass-through failure", i, err)
		}
	}

	ran := false
	err := cb.Execute(context.Background(), func() error { ran = true; return nil })
	if !errors.Is(err, ErrOpen) {
		t.Errorf("err = %v, want ErrOpen", err)
	}
	if ran {
		t.Error("fn must not run while the breaker is open")
	}
	if cb.State() != StateOpen {
		t.Errorf("state = %v, want open", cb.State())
	}
}

func TestBreakerRecoversThroughHalfOpen(t *testing.T) {
	cb := New(Config{
		FailureThreshold: 1,
		SuccessThreshold: 2,
		Timeout:          time.Millisecond,
		ResetTimeout:     time.Minute,
	})

	_ = cb.Execute(context.Background(), func() error { return errors.New("boom") })

	// The trip happens on the next call, which is rejected.
	if err := cb.Execute(context.Background(), func() error { return nil }); !errors.Is(err, ErrOpen) {
		t.Fatalf("err = %v, want ErrOpen after trip", err)
	}

	time.Sleep(5 * time.Millisecond)

	// Two half-open successes close the breaker again.
	for i := 0; i < 3; i++ {
		if err := cb.Execute(context.Background(), func() error { return nil }); err != nil {
			t.Fatalf("attempt %d: err = %v", i, err)
		}
	}
	if cb.State() != StateClosed {
		t.Errorf("state = %v, want closed", cb.State())
	}
}
