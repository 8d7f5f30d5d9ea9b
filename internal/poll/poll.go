// Package poll provides bounded-retry waiting for readiness conditions.
//
// Every blocking wait in the deployment core goes through this package so that
// retry budgets live in one place instead of ad hoc loops per operation. A wait
// is always bounded by MaxAttempts × Interval; exhausting the budget is a
// reportable outcome, not an error.
package poll

import (
	"context"
	"fmt"
	"time"
)

// Probe evaluates a readiness condition once. It returns whether the condition
// holds and a short human-readable description of the observed state. A probe
// error is treated as "not ready yet" and absorbed by the retry budget; it must
// not have side effects.
type Probe func(ctx context.Context) (bool, string, error)

// Check describes one bounded wait: what to probe, how often, and how many times.
type Check struct {
	// Name identifies the condition in observed-state messages.
	Name string

	// MaxAttempts is the number of probe evaluations before giving up.
	MaxAttempts int

	// Interval is the delay between attempts.
	Interval time.Duration

	// Probe evaluates the condition.
	Probe Probe
}

// WaitUntilReady polls the check's probe at the configured interval until it
// reports ready, the attempt budget is exhausted, or the context is cancelled.
// It returns whether the condition was met and the last observed state. An
// exhausted budget yields ready=false; callers decide whether that is fatal.
func WaitUntilReady(ctx context.Context, check Check) (bool, string) {
	attempts := check.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	last := "not probed"
	for attempt := 1; attempt <= attempts; attempt++ {
		ready, observed, err := check.Probe(ctx)
		switch {
		case err != nil:
			last = fmt.Sprintf("attempt %d/%d: %v", attempt, attempts, err)
		case observed != "":
			last = observed
		default:
			last = fmt.Sprintf("attempt %d/%d: not ready", attempt, attempts)
		}

		if ready && err == nil {
			return true, last
		}

		if attempt == attempts {
			break
		}

		select {
		case <-ctx.Done():
			return false, fmt.Sprintf("%s (wait cancelled: %v)", last, ctx.Err())
		case <-time.After(check.Interval):
		}
	}

	return false, last
}
