package fetcher

import (
	"context"
	"runtime"
	"time"
)

// Yielder pauses between rounds so readers can render the partial state.
// It returns ctx.Err() when ctx ends first.
type Yielder func(ctx context.Context) error

// TimerYield waits on its own timer, so a stalled relay connection cannot
// delay it. A zero delay only hands the processor to other goroutines.
func TimerYield(delay time.Duration) Yielder {
	return func(ctx context.Context) error {
		if delay <= 0 {
			runtime.Gosched()
			return ctx.Err()
		}
		t := time.NewTimer(delay)
		defer t.Stop()
		select {
		case <-t.C:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
