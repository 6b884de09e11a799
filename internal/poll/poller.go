// Package poll provides the bounded polling primitive the interaction
// flows are built on.
package poll

import (
	"context"
	"time"
)

// WaitForUiAction runs probe immediately and then once per interval until
// it returns true, the timeout elapses or ctx is done. Returns the final
// probe verdict: true as soon as the probe succeeds, false on timeout or
// cancellation. The last wait is clamped so the loop never overshoots the
// timeout by more than one interval.
func WaitForUiAction(ctx context.Context, timeout, interval time.Duration, probe func() bool) bool {
	deadline := time.Now().Add(timeout)
	for {
		if probe() {
			return true
		}
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return false
		}
		sleep := interval
		if sleep > remaining {
			sleep = remaining
		}
		timer := time.NewTimer(sleep)
		select {
		case <-ctx.Done():
			timer.Stop()
			return false
		case <-timer.C:
		}
	}
}
