// Package backoff provides retry delay strategies and a retry loop for
// callers of the repository. The repository itself never retries; a caller
// that wants to ride out a backend restart (the CLI at startup, for
// example) wraps its call in Retry, which only retries errors classified as
// jobrepo.ErrBackendUnavailable.
package backoff

import (
	"context"
	"math"
	"math/rand/v2"
	"time"

	"github.com/xraph/jobrepo"
)

// Strategy computes the delay before a retry attempt.
type Strategy interface {
	// Delay returns how long to wait before retry attempt n (1-indexed).
	Delay(attempt int) time.Duration
}

// ──────────────────────────────────────────────────
// Constant
// ──────────────────────────────────────────────────

// Constant always returns the same delay regardless of attempt number.
type Constant struct {
	Interval time.Duration
}

// NewConstant creates a constant backoff strategy.
func NewConstant(interval time.Duration) *Constant {
	return &Constant{Interval: interval}
}

// Delay returns the fixed interval.
func (c *Constant) Delay(_ int) time.Duration {
	return c.Interval
}

// ──────────────────────────────────────────────────
// Exponential
// ──────────────────────────────────────────────────

// Exponential doubles the delay each attempt, capped at Max.
type Exponential struct {
	Initial time.Duration
	Max     time.Duration
	// Jitter spreads each delay uniformly over [0, delay].
	Jitter bool
}

// NewExponential creates an exponential backoff strategy.
func NewExponential(initial, maxDelay time.Duration) *Exponential {
	return &Exponential{Initial: initial, Max: maxDelay}
}

// NewExponentialWithJitter creates an exponential backoff with full jitter.
func NewExponentialWithJitter(initial, maxDelay time.Duration) *Exponential {
	return &Exponential{Initial: initial, Max: maxDelay, Jitter: true}
}

// Delay returns Initial * 2^(attempt-1), capped at Max, jittered if set.
func (e *Exponential) Delay(attempt int) time.Duration {
	base := float64(e.Initial) * math.Pow(2, float64(attempt-1))
	if e.Max > 0 && base > float64(e.Max) {
		base = float64(e.Max)
	}
	if e.Jitter {
		return time.Duration(rand.Float64() * base) //nolint:gosec // jitter intentionally uses non-crypto rand
	}
	return time.Duration(base)
}

// DefaultStrategy returns the strategy used for backend connects:
// jittered exponential from 200ms up to 5s.
func DefaultStrategy() Strategy {
	return NewExponentialWithJitter(200*time.Millisecond, 5*time.Second)
}

// ──────────────────────────────────────────────────
// Retry
// ──────────────────────────────────────────────────

// Retry calls fn until it succeeds, returns an error that is not
// retryable, maxAttempts calls have been made, or ctx is done. The last
// error from fn is returned. maxAttempts <= 0 means one attempt.
func Retry(ctx context.Context, s Strategy, maxAttempts int, fn func(ctx context.Context) error) error {
	if maxAttempts <= 0 {
		maxAttempts = 1
	}

	var err error
	for attempt := 1; ; attempt++ {
		err = fn(ctx)
		if err == nil || !jobrepo.IsRetryable(err) || attempt >= maxAttempts {
			return err
		}

		timer := time.NewTimer(s.Delay(attempt))
		select {
		case <-ctx.Done():
			timer.Stop()
			return err
		case <-timer.C:
		}
	}
}
