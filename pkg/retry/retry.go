// Package retry provides a bounded retry policy with exponential backoff.
//
// The policy is parameterized by attempt count, base delay, and multiplier,
// and accepts an injectable sleep function so callers can test retry behavior
// without waiting on a real clock.
package retry

import (
	"context"
	"time"
)

// Policy describes a bounded exponential backoff schedule.
//
// With MaxAttempts=3, BaseDelay=1s, Multiplier=2, a failing operation is
// attempted three times with sleeps of 1s and 2s between attempts.
type Policy struct {
	// MaxAttempts is the total number of attempts, including the first.
	MaxAttempts int

	// BaseDelay is the delay before the first retry.
	BaseDelay time.Duration

	// Multiplier scales the delay after each retry.
	Multiplier float64

	// Sleep is the sleep function used between attempts.
	// If nil, time.Sleep is used.
	Sleep func(time.Duration)
}

// Default returns the policy used for transient provider errors:
// 3 attempts, 1 second base delay, doubling each retry.
func Default() Policy {
	return Policy{
		MaxAttempts: 3,
		BaseDelay:   time.Second,
		Multiplier:  2,
	}
}

// Do runs fn until it succeeds, the policy is exhausted, or fn returns an
// error that retryable reports as permanent.
//
// Parameters:
//   - ctx: Context checked before each attempt
//   - fn: The operation to run
//   - retryable: Reports whether an error is transient; a nil retryable
//     treats every error as transient
//
// Returns nil on success, ctx.Err() if the context is done, or the last
// error once attempts are exhausted or a permanent error is seen.
func (p Policy) Do(ctx context.Context, fn func() error, retryable func(error) bool) error {
	sleep := p.Sleep
	if sleep == nil {
		sleep = time.Sleep
	}

	delay := p.BaseDelay
	var lastErr error

	for attempt := 0; attempt < p.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		lastErr = fn()
		if lastErr == nil {
			return nil
		}

		if retryable != nil && !retryable(lastErr) {
			return lastErr
		}

		if attempt < p.MaxAttempts-1 {
			sleep(delay)
			delay = time.Duration(float64(delay) * p.Multiplier)
		}
	}

	return lastErr
}
