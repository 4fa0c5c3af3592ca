// Package retry wraps fallible remote operations with bounded retries and
// exponential backoff plus jitter. Wrapping is per call: an operation that
// needs a stat and then an upload retries each independently.
package retry

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"time"
)

// maxJitter is the upper bound of the random delay added to every backoff
// step to avoid synchronized retries.
const maxJitter = 200 * time.Millisecond

// An Op is a single retriable unit of work.
type Op func(ctx context.Context) error

// Policy holds the retry knobs shared by every remote call in a run.
type Policy struct {
	// MaxRetries is the number of re-attempts after the first failure,
	// so an operation runs at most MaxRetries+1 times.
	MaxRetries int

	// BaseDelay seeds the backoff: attempt i sleeps
	// BaseDelay*2^i + uniform(0, 200ms) before retrying.
	BaseDelay time.Duration
}

// Do runs op until it succeeds or the attempt budget is exhausted, sleeping
// between attempts. The last error is returned on exhaustion. The sleep is
// context-aware so a cancelled run does not sit out its backoff.
func (p Policy) Do(ctx context.Context, name string, op Op) error {
	var lastErr error

	for attempt := 0; attempt <= p.MaxRetries; attempt++ {
		if attempt > 0 {
			delay := p.BaseDelay*(1<<(attempt-1)) + time.Duration(rand.Int63n(int64(maxJitter)))
			slog.Debug("retrying", "op", name, "attempt", attempt, "delay", delay, "error", lastErr)
			select {
			case <-ctx.Done():
				return fmt.Errorf("%s cancelled during backoff: %w", name, ctx.Err())
			case <-time.After(delay):
			}
		}

		if err := op(ctx); err != nil {
			lastErr = err
			continue
		}
		return nil
	}

	return fmt.Errorf("%s failed after %d attempts: %w", name, p.MaxRetries+1, lastErr)
}
