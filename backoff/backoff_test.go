package backoff_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/xraph/jobrepo"
	"github.com/xraph/jobrepo/backoff"
)

func TestConstant_ReturnsFixedDelay(t *testing.T) {
	c := backoff.NewConstant(5 * time.Second)
	for attempt := 1; attempt <= 10; attempt++ {
		if got := c.Delay(attempt); got != 5*time.Second {
			t.Errorf("Delay(%d) = %v, want %v", attempt, got, 5*time.Second)
		}
	}
}

func TestExponential_DoublesEachAttempt(t *testing.T) {
	e := backoff.NewExponential(time.Second, time.Hour)

	tests := []struct {
		attempt int
		want    time.Duration
	}{
		{1, 1 * time.Second},
		{2, 2 * time.Second},
		{3, 4 * time.Second},
		{4, 8 * time.Second},
		{5, 16 * time.Second},
	}
	for _, tt := range tests {
		if got := e.Delay(tt.attempt); got != tt.want {
			t.Errorf("Delay(%d) = %v, want %v", tt.attempt, got, tt.want)
		}
	}
}

func TestExponential_CapsAtMax(t *testing.T) {
	e := backoff.NewExponential(time.Second, 10*time.Second)

	if got := e.Delay(5); got != 10*time.Second {
		t.Errorf("Delay(5) = %v, want %v (capped at Max)", got, 10*time.Second)
	}
	if got := e.Delay(20); got != 10*time.Second {
		t.Errorf("Delay(20) = %v, want %v (capped at Max)", got, 10*time.Second)
	}
}

func TestExponentialWithJitter_WithinBounds(t *testing.T) {
	e := backoff.NewExponentialWithJitter(time.Second, 10*time.Second)

	for attempt := 1; attempt <= 5; attempt++ {
		for range 100 {
			got := e.Delay(attempt)
			if got < 0 || got > 10*time.Second {
				t.Errorf("Delay(%d) = %v, want within [0, 10s]", attempt, got)
			}
		}
	}
}

func TestDefaultStrategy_FirstDelayBounded(t *testing.T) {
	d := backoff.DefaultStrategy().Delay(1)
	if d < 0 || d > 200*time.Millisecond {
		t.Errorf("DefaultStrategy().Delay(1) = %v, want within [0, 200ms]", d)
	}
}

// ──────────────────────────────────────────────────
// Retry
// ──────────────────────────────────────────────────

func TestRetry_RetriesUnavailableUntilSuccess(t *testing.T) {
	calls := 0
	err := backoff.Retry(context.Background(), backoff.NewConstant(time.Millisecond), 5, func(context.Context) error {
		calls++
		if calls < 3 {
			return jobrepo.Unavailable("mongo: ping", errors.New("connection refused"))
		}
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls != 3 {
		t.Errorf("calls = %d, want 3", calls)
	}
}

func TestRetry_DoesNotRetryOtherErrors(t *testing.T) {
	calls := 0
	err := backoff.Retry(context.Background(), backoff.NewConstant(time.Millisecond), 5, func(context.Context) error {
		calls++
		return jobrepo.ErrInvalidTransition
	})
	if !errors.Is(err, jobrepo.ErrInvalidTransition) {
		t.Fatalf("err = %v, want ErrInvalidTransition", err)
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
}

func TestRetry_StopsAtMaxAttempts(t *testing.T) {
	calls := 0
	err := backoff.Retry(context.Background(), backoff.NewConstant(time.Millisecond), 3, func(context.Context) error {
		calls++
		return jobrepo.Unavailable("redis: ping", errors.New("closed"))
	})
	if !errors.Is(err, jobrepo.ErrBackendUnavailable) {
		t.Fatalf("err = %v, want ErrBackendUnavailable", err)
	}
	if calls != 3 {
		t.Errorf("calls = %d, want 3", calls)
	}
}

func TestRetry_StopsOnContextDone(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	err := backoff.Retry(ctx, backoff.NewConstant(time.Hour), 10, func(context.Context) error {
		calls++
		cancel()
		return jobrepo.Unavailable("postgres: ping", errors.New("refused"))
	})
	if !errors.Is(err, jobrepo.ErrBackendUnavailable) {
		t.Fatalf("err = %v, want ErrBackendUnavailable", err)
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
}
