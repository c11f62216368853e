// timer.go
// Purpose: Cancellable waits used by the car loop for the inbox poll, door
// timings and the motion tick.
package elevfsm

import (
	"context"
	"time"
)

// sleepCtx waits for d and reports false if ctx was cancelled first.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
