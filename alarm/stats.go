package alarm

import "sync/atomic"

// Measure is a windowed count/total/max accumulator, used for the three
// timing measures tracked per alarm: callback execution time, overdue
// scheduling jitter, and premature scheduling jitter.
type Measure struct {
	Count   int64
	TotalMs int64
	MaxMs   int64
}

func (m *Measure) update(deltaMs int64) {
	m.Count++
	m.TotalMs += deltaMs
	if deltaMs > m.MaxMs {
		m.MaxMs = deltaMs
	}
}

// Stats holds per-alarm counters and timing measures. Every field here is
// written only by the worker-queue handler while holding the alarm's
// callback_lock, or by the monitor-holding API methods (Set/Cancel), never
// concurrently, so plain int64 fields suffice without atomics.
type Stats struct {
	ScheduledCount   int64
	CanceledCount    int64
	RescheduledCount int64
	TotalUpdates     int64
	LastUpdateMs     int64

	CallbackExecution   Measure
	OverdueScheduling   Measure
	PrematureScheduling Measure
}

// Snapshot returns a copy of s, safe to read without the monitor held
// provided no callback for the owning alarm is currently in flight, the
// same caveat all stats reads carry.
func (s *Stats) Snapshot() Stats {
	return *s
}

// AlarmSnapshot couples an alarm's identity and arming state with a copy of
// its counters, the unit Service.DumpStats reports.
type AlarmSnapshot struct {
	Name       string
	IsPeriodic bool
	Scheduled  bool
	DeadlineMs int64
	Stats      Stats
}

// scheduledFlag is a lock-free view of "does this alarm currently have a
// live callback/queue" for IsScheduled, which may be read
// without the monitor as a best-effort check. Go's race detector would flag
// a plain bool read/write straddling goroutines without synchronization, so
// this uses atomic.Bool to stay race-free while preserving "no lock" cost.
type scheduledFlag struct {
	v atomic.Bool
}

func (f *scheduledFlag) set(v bool) { f.v.Store(v) }
func (f *scheduledFlag) get() bool  { return f.v.Load() }
