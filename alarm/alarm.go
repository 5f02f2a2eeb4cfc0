// Package alarm implements a process-wide deferred-callback alarm engine:
// callers schedule one-shot or periodic callbacks to fire at a future
// monotonic deadline, dispatched onto a caller-chosen worker queue.
package alarm

import (
	"github.com/momentics/alarmsvc/internal/queue"
)

// Callback is invoked when an alarm fires. data is whatever was passed to
// Set/SetOnQueue at schedule time.
type Callback func(data any)

// Alarm is a single schedulable unit: identity, cadence, current deadline,
// target queue, user callback, and per-alarm statistics. An Alarm is
// returned inert (unarmed) by Service.New/NewPeriodic; callers must Set it
// to arm it.
type Alarm struct {
	svc *Service

	name       string
	isPeriodic bool

	creationTimeMs int64
	periodMs       int64
	deadlineMs     int64
	prevDeadlineMs int64

	queue    *queue.Queue
	callback Callback
	data     any

	callbackLock *reentrantMutex
	scheduled    scheduledFlag
	stats        Stats

	// heapIndex is maintained by the pending list's container/heap
	// implementation; -1 when not currently armed/in the pending list.
	heapIndex int
	seq       int64
}

// Name returns the alarm's identifying name.
func (a *Alarm) Name() string { return a.name }

// Set arms the alarm to fire intervalMs from now on its service's default
// queue, invoking cb(data). Re-arms in place if already scheduled.
func (a *Alarm) Set(intervalMs int64, cb Callback, data any) error {
	return a.svc.Set(a, intervalMs, cb, data)
}

// SetOnQueue arms the alarm on a specific worker queue.
func (a *Alarm) SetOnQueue(intervalMs int64, cb Callback, data any, q *queue.Queue) error {
	return a.svc.SetOnQueue(a, intervalMs, cb, data, q)
}

// Cancel disarms the alarm and waits out any in-flight callback.
func (a *Alarm) Cancel() {
	a.svc.Cancel(a)
}

// IsPeriodic reports whether the alarm reschedules itself after firing.
func (a *Alarm) IsPeriodic() bool { return a.isPeriodic }

// IsScheduled reports whether the alarm currently has a live callback
// registered, without acquiring the monitor. Best-effort: the
// answer may be stale by the time the caller observes it.
func (a *Alarm) IsScheduled() bool {
	return a.scheduled.get()
}

// Stats returns a snapshot of the alarm's counters and timing measures.
// Safe to call at any time; values may be mid-update if a callback for this
// alarm is currently in flight.
func (a *Alarm) Stats() Stats {
	return a.stats.Snapshot()
}

// GetRemainingMs returns the milliseconds until this alarm's next deadline,
// clamped to zero, or zero if the alarm is not armed.
func (a *Alarm) GetRemainingMs() int64 {
	return a.svc.getRemainingMs(a)
}

// Free cancels the alarm (draining any in-flight callback) and drops it from
// the service's stats registry. Go's garbage collector reclaims the record
// itself once the caller drops its last reference; Free is the explicit end
// of an alarm's lifecycle.
func (a *Alarm) Free() {
	a.svc.free(a)
}
