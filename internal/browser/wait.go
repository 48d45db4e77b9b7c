package browser

import (
	"context"
	"time"
)

// DefaultPollInterval is the interval between condition checks in Poll.
const DefaultPollInterval = 250 * time.Millisecond

// Condition reports whether a wait is satisfied. A non-nil error does not stop
// polling; the last error is attached to the TimeoutError if the wait expires.
type Condition func(ctx context.Context) (bool, error)

// Poll checks cond every interval until it returns true or timeout elapses.
// Expiry yields a *TimeoutError naming op; cancellation of ctx returns ctx.Err().
func Poll(ctx context.Context, op string, timeout, interval time.Duration, cond Condition) error {
	if interval <= 0 {
		interval = DefaultPollInterval
	}

	deadline := time.NewTimer(timeout)
	defer deadline.Stop()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	var lastErr error
	for {
		ok, err := cond(ctx)
		if ok {
			return nil
		}
		lastErr = err

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-deadline.C:
			return &TimeoutError{Op: op, Timeout: timeout, Cause: lastErr}
		case <-ticker.C:
		}
	}
}
