// Package api
//
// Scheduler contract for single-shot, absolute-deadline callback execution.
// Implemented by internal/concurrency.Scheduler and consumed by the alarm
// engine as its in-process timer collaborator.

package api

// Cancelable is a handle to a scheduled, in-flight operation that may be
// canceled before it completes. Scheduler.Schedule returns one of these.
type Cancelable interface {
	// Cancel attempts to abort the operation.
	Cancel() error
	// Done signals completion/cancellation.
	Done() <-chan struct{}
	// Err returns the cancellation reason, if any.
	Err() error
}

// Scheduler abstracts a single-shot, deadline-ordered callback source.
type Scheduler interface {
	// Schedule runs fn once delayNanos from now and returns a handle that
	// can be used to Cancel it before it fires.
	Schedule(delayNanos int64, fn func()) (Cancelable, error)

	// Cancel cancels a previously scheduled callback. Canceling a callback
	// that already fired or was already canceled is a no-op.
	Cancel(c Cancelable) error

	// Now returns monotonic time in nanoseconds, from the same clock
	// Schedule's delays are measured against.
	Now() int64
}
