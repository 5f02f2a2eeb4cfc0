// License: Apache-2.0
//
// High-precision in-process scheduler used as the alarm engine's short-horizon
// timer collaborator: it fires callbacks for deadlines close enough that a
// kernel wake alarm would be overkill, without needing to wake the device.

package concurrency

import (
	"container/heap"
	"sync"
	"time"

	"github.com/momentics/alarmsvc/api"
)

// task is one pending entry in the scheduler's timer heap.
type task struct {
	deadline int64 // absolute time, nanoseconds, same epoch as Scheduler.Now
	fn       func()
	index    int  // heap index, maintained by taskHeap; -1 once removed
	canceled bool
}

// Cancel marks the task canceled. The scheduler's run loop skips canceled
// tasks when they reach the head of the heap instead of searching for them.
func (t *task) Cancel() error {
	t.canceled = true
	return nil
}

func (t *task) Done() <-chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}

func (t *task) Err() error {
	return nil
}

// taskHeap is a container/heap.Interface min-heap ordered by deadline, with
// each element tracking its own index. Scheduler.Cancel does not remove
// entries through that index: canceled tasks stay in the heap until they
// reach the head, where the run loop drops them.
type taskHeap []*task

func (h taskHeap) Len() int { return len(h) }

func (h taskHeap) Less(i, j int) bool { return h[i].deadline < h[j].deadline }

func (h taskHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}

func (h *taskHeap) Push(x any) {
	t := x.(*task)
	t.index = len(*h)
	*h = append(*h, t)
}

func (h *taskHeap) Pop() any {
	old := *h
	n := len(old)
	t := old[n-1]
	old[n-1] = nil
	t.index = -1
	*h = old[:n-1]
	return t
}

// Scheduler is a single-goroutine, heap-ordered one-shot timer. It implements
// api.Scheduler and is the in-process half of the alarm engine's wake policy:
// deadlines within TIMER_INTERVAL_FOR_WAKELOCK_IN_MS are armed here instead of
// against a kernel wake source.
type Scheduler struct {
	mu     sync.Mutex
	timerQ taskHeap
	notify chan struct{}
	stop   chan struct{}
	once   sync.Once
	epoch  time.Time
}

var _ api.Scheduler = (*Scheduler)(nil)

// NewScheduler constructs a Scheduler and starts its run loop goroutine.
func NewScheduler() *Scheduler {
	s := &Scheduler{
		notify: make(chan struct{}, 1),
		stop:   make(chan struct{}),
		epoch:  time.Now(),
	}
	go s.run()
	return s
}

// Now returns the scheduler's clock reading, nanoseconds since an unspecified
// epoch stable across the process lifetime. Callers compute delays against
// this same epoch.
func (s *Scheduler) Now() int64 {
	return int64(time.Since(s.epoch))
}

// Schedule arms fn to run after delayNanos elapse. The returned Cancelable's
// Cancel marks the task dead; it is lazily dropped from the heap when the run
// loop next considers it, avoiding a linear-scan removal on every cancel.
func (s *Scheduler) Schedule(delayNanos int64, fn func()) (api.Cancelable, error) {
	if fn == nil {
		return nil, api.ErrNilCallback
	}
	t := &task{
		deadline: s.Now() + delayNanos,
		fn:       fn,
	}

	s.mu.Lock()
	heap.Push(&s.timerQ, t)
	wake := s.timerQ[0] == t
	s.mu.Unlock()

	if wake {
		s.kick()
	}
	return t, nil
}

// Cancel marks t canceled so it never fires; the run loop drops it from the
// heap once it reaches the head. Safe to call after t has already fired; it
// is then a no-op.
func (s *Scheduler) Cancel(c api.Cancelable) error {
	t, ok := c.(*task)
	if !ok {
		return api.ErrInvalidArgument
	}
	return t.Cancel()
}

// Close stops the run loop. Pending tasks are dropped without firing.
func (s *Scheduler) Close() error {
	s.once.Do(func() { close(s.stop) })
	return nil
}

func (s *Scheduler) kick() {
	select {
	case s.notify <- struct{}{}:
	default:
	}
}

func (s *Scheduler) run() {
	timer := time.NewTimer(time.Hour)
	defer timer.Stop()

	for {
		s.mu.Lock()
		for s.timerQ.Len() > 0 && s.timerQ[0].canceled {
			heap.Pop(&s.timerQ)
		}

		if s.timerQ.Len() == 0 {
			s.mu.Unlock()
			if !timer.Stop() {
				drainTimer(timer)
			}
			select {
			case <-s.notify:
			case <-s.stop:
				return
			}
			continue
		}

		next := s.timerQ[0]
		delay := time.Duration(next.deadline - s.Now())
		s.mu.Unlock()

		if delay <= 0 {
			s.fireDue()
			continue
		}

		if !timer.Stop() {
			drainTimer(timer)
		}
		timer.Reset(delay)

		select {
		case <-timer.C:
			s.fireDue()
		case <-s.notify:
			// Re-examine the heap; a new earlier deadline may have arrived.
		case <-s.stop:
			return
		}
	}
}

// fireDue pops and runs every task whose deadline has passed, outside the
// scheduler's lock so a callback can itself call Schedule/Cancel.
func (s *Scheduler) fireDue() {
	var due []*task
	now := s.Now()

	s.mu.Lock()
	for s.timerQ.Len() > 0 && (s.timerQ[0].canceled || s.timerQ[0].deadline <= now) {
		t := heap.Pop(&s.timerQ).(*task)
		if !t.canceled {
			due = append(due, t)
		}
	}
	s.mu.Unlock()

	for _, t := range due {
		t.fn()
	}
}

func drainTimer(t *time.Timer) {
	select {
	case <-t.C:
	default:
	}
}
