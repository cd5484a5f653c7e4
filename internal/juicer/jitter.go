package juicer

import (
	"context"
	"fmt"
	"math/rand/v2"
	"time"
)

// Jitter is an inclusive range of durations to pick a random wait from.
type Jitter struct {
	Min time.Duration
	Max time.Duration
}

// Validate reports bounds that can't produce a duration.
func (j Jitter) Validate() error {
	if j.Min < 0 || j.Max < j.Min {
		return fmt.Errorf("%w: jitter bounds [%s, %s]", ErrConfig, j.Min, j.Max)
	}

	return nil
}

// Duration picks a uniformly random duration in [Min, Max].
func (j Jitter) Duration() time.Duration {
	if j.Max <= j.Min {
		return j.Min
	}

	return j.Min + time.Duration(rand.Int64N(int64(j.Max-j.Min)+1))
}

// Sleep blocks for d or until the context is done, whichever comes first.
func Sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
