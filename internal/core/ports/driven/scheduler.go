package driven

import "time"

// Scheduler runs the canvas's deferred side effects.
// Callbacks run on a goroutine owned by the scheduler, never inline.
type Scheduler interface {
	// Debounce runs fn after delay. A later call with the same key replaces
	// the pending one and restarts the delay.
	Debounce(key string, delay time.Duration, fn func())

	// Cancel drops the pending callback for key, if any.
	Cancel(key string)

	// Idle runs fn when the scheduler has no due debounced work.
	// Idle work is best-effort and may be dropped on Stop.
	Idle(fn func())

	// Stop cancels all pending work. Further calls are ignored.
	Stop()
}
