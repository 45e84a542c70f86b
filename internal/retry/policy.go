// Package retry implements the exponential backoff schedule described
// in §4.D: transient failures get retried up to a configured attempt
// ceiling with jittered exponential delays, permanent failures and
// missing-credentials never retry, and when a provider sends a
// Retry-After hint the delay is the greater of that hint and the
// computed backoff. Built on
// github.com/cenkalti/backoff/v4, promoted here from an indirect
// dependency of the teacher's Vault client tooling to a direct one,
// rather than hand-rolling a scheduler the ecosystem already provides.
package retry

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/duskline/reconforge/internal/reconerr"
)

// Policy configures the retry schedule for a single provider unit.
type Policy struct {
	// MaxAttempts is the total number of tries, including the first.
	MaxAttempts int
	// InitialInterval is the delay before the first retry.
	InitialInterval time.Duration
	// MaxInterval caps the exponential growth.
	MaxInterval time.Duration
	// Multiplier is the exponential growth factor between retries.
	Multiplier float64
}

// DefaultPolicy mirrors the illustrative schedule in §4.D: up to 3
// attempts, starting at 1s, doubling, capped at 4s.
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts:     3,
		InitialInterval: 1 * time.Second,
		MaxInterval:     4 * time.Second,
		Multiplier:      2.0,
	}
}

func (p Policy) newBackOff() *backoff.ExponentialBackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = p.InitialInterval
	b.MaxInterval = p.MaxInterval
	b.Multiplier = p.Multiplier
	b.RandomizationFactor = 0.2
	b.MaxElapsedTime = 0 // bounded by MaxAttempts in Do's loop, not elapsed wall time
	return b
}

// Outcome is what a single provider attempt resolves to, classifying
// the fetch error (if any) so Do knows whether to keep retrying.
type Outcome struct {
	Err       error
	RetryAfter time.Duration // when set, the next delay is the greater of this and the computed backoff delay
}

// Attempt is the caller-supplied unit of work: perform one fetch and
// classify the result.
type Attempt func(ctx context.Context, attemptNum int) Outcome

// Result summarizes what Do observed across every attempt made.
type Result struct {
	Attempts int
	Err      error
}

// Do runs attempt up to policy.MaxAttempts times, retrying only on
// transient/timeout outcomes and honoring ctx cancellation between
// attempts. A permanent or credentials-missing outcome from attempt
// returns immediately without consuming further retries. When an
// outcome carries a Retry-After hint, the delay before the next
// attempt is the greater of that hint and the computed backoff
// interval (§4.D), not their sum — so Do drives the backoff schedule
// itself rather than delegating to backoff.Retry's own loop.
func Do(ctx context.Context, policy Policy, attempt Attempt) Result {
	b := policy.newBackOff()

	maxAttempts := policy.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = 1
	}

	var lastErr error
	for n := 1; n <= maxAttempts; n++ {
		outcome := attempt(ctx, n)
		lastErr = outcome.Err
		if outcome.Err == nil {
			return Result{Attempts: n, Err: nil}
		}
		if !reconerr.IsRetryable(outcome.Err) {
			return Result{Attempts: n, Err: outcome.Err}
		}
		if n == maxAttempts {
			break
		}

		delay := b.NextBackOff()
		if delay == backoff.Stop {
			break
		}
		if outcome.RetryAfter > delay {
			delay = outcome.RetryAfter
		}

		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return Result{Attempts: n, Err: ctx.Err()}
		}
	}

	return Result{Attempts: maxAttempts, Err: lastErr}
}
