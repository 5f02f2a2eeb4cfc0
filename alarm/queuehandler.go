package alarm

// queueHandler runs on every worker queue's thread (the default queue and
// any registered via RegisterProcessingQueue). The worker's reactor has
// already dequeued the item, so queueHandler starts from "capture
// callback/data/effective deadline" and runs to "release callback_lock".
func (s *Service) queueHandler(item any) {
	a, ok := item.(*Alarm)
	if !ok || a == nil {
		return
	}

	s.mu.Lock()
	cb := a.callback
	data := a.data

	var effectiveDeadline int64
	if a.isPeriodic {
		effectiveDeadline = a.prevDeadlineMs
	} else {
		effectiveDeadline = a.deadlineMs
	}

	if !a.isPeriodic {
		a.callback = nil
		a.data = nil
		a.deadlineMs = 0
		a.scheduled.set(false)
	}

	// Acquire callback_lock while still holding the monitor, then release
	// the monitor before invoking the callback, preserving the ordering
	// guarantee: a racing cancel() that observes the monitor after this
	// point cannot find A in the queue, but blocks on callback_lock until
	// the callback below returns.
	a.callbackLock.Lock()
	s.mu.Unlock()

	if cb == nil {
		a.callbackLock.Unlock()
		return
	}

	t0 := s.clockSrc.NowMs()
	cb(data)
	t1 := s.clockSrc.NowMs()
	s.metrics.Inc("callbacks.invoked", 1)

	delta := t1 - t0
	jitter := t0 - effectiveDeadline

	a.stats.CallbackExecution.update(delta)
	if jitter >= 0 {
		a.stats.OverdueScheduling.update(jitter)
	} else {
		a.stats.PrematureScheduling.update(-jitter)
	}
	a.stats.LastUpdateMs = t1

	a.callbackLock.Unlock()
}
