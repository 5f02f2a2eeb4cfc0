package alarm

import (
	"log"
	"runtime"

	"github.com/momentics/alarmsvc/affinity"
	"github.com/momentics/alarmsvc/internal/concurrency"
)

// dispatcherThreadNice mirrors the host stack's high-priority callback
// thread setting. Applying it needs CAP_SYS_NICE; failure is best-effort.
const dispatcherThreadNice = -19

// dispatchLoop is the dispatcher: a dedicated goroutine that waits for the
// expiration signal, pops due alarms off the pending list, re-schedules
// periodic ones, enqueues due alarms onto their worker queue, and re-arms
// the wake policy before releasing the monitor.
func (s *Service) dispatchLoop() {
	defer close(s.dispatchDone)

	runtime.LockOSThread()
	if err := concurrency.SetCurrentThreadPriority(dispatcherThreadNice); err != nil {
		log.Printf("alarm: dispatcher priority unchanged: %v", err)
	}
	if s.dispatcherCPUID >= 0 {
		if err := affinity.SetAffinity(s.dispatcherCPUID); err != nil {
			log.Printf("alarm: dispatcher affinity pin failed: %v", err)
		}
	}

	for {
		select {
		case <-s.expSignal.Wait():
		case <-s.dispatchStop:
			return
		}

		select {
		case <-s.dispatchStop:
			return
		default:
		}

		s.mu.Lock()
		now := s.clockSrc.NowMs()
		if s.pending.Empty() || s.pending.Front().deadlineMs > now {
			s.rescheduleRootAlarmLocked()
			s.mu.Unlock()
			continue
		}

		a := s.pending.PopFront()
		s.metrics.Inc("dispatcher.fired", 1)
		if a.isPeriodic {
			a.prevDeadlineMs = a.deadlineMs
			s.scheduleNextInstanceLocked(a)
			a.stats.RescheduledCount++
		}

		// Re-arm before enqueueing: later due alarms become eligible as
		// soon as their own deadline passes, independent of how long the
		// callback about to be enqueued takes to run.
		s.rescheduleRootAlarmLocked()

		if a.queue != nil {
			a.queue.Enqueue(a)
		}
		s.mu.Unlock()
	}
}
