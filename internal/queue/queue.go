// Package queue
//
// FIFO queue used for each alarm worker queue. Wraps github.com/eapache/queue's
// ring-buffer Queue, adding a TryRemoveFromQueue operation the upstream type
// doesn't provide: eapache/queue only supports FIFO Add/Remove/Peek, but
// cancel(A) must be able to pull a specific alarm out of a queue wherever it
// currently sits (stale duplicate copies included). The queue has no
// capacity limit: the ring buffer grows as needed, and Enqueue never blocks
// or rejects an item.
package queue

import (
	"sync"

	eapacheq "github.com/eapache/queue"

	"github.com/momentics/alarmsvc/api"
)

// Queue is a thread-safe FIFO of arbitrary items with removal-by-predicate:
// enqueue, try-dequeue, and remove-anywhere. It implements api.EventSource
// so a reactor.Reactor can register it and drain it on a worker thread.
type Queue struct {
	mu    sync.Mutex
	inner *eapacheq.Queue
	sink  func()
}

var _ api.EventSource = (*Queue)(nil)

// New constructs an empty queue.
func New() *Queue {
	return &Queue{
		inner: eapacheq.New(),
	}
}

// Enqueue appends item to the tail and signals the readiness sink.
func (q *Queue) Enqueue(item any) {
	q.mu.Lock()
	q.inner.Add(item)
	sink := q.sink
	q.mu.Unlock()
	if sink != nil {
		sink()
	}
}

// TryDequeue removes and returns the head item, if any.
func (q *Queue) TryDequeue() (any, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.inner.Length() == 0 {
		return nil, false
	}
	v := q.inner.Peek()
	q.inner.Remove()
	return v, true
}

// OnReady installs fn as the readiness sink, called after every Enqueue.
// Installing over a non-empty queue invokes fn once immediately so a reactor
// attaching late cannot miss items already posted. Passing nil detaches.
func (q *Queue) OnReady(fn func()) {
	q.mu.Lock()
	q.sink = fn
	pending := q.inner.Length() > 0
	q.mu.Unlock()
	if fn != nil && pending {
		fn()
	}
}

// TryRemoveFromQueue removes every item for which match returns true,
// wherever it sits in the queue, preserving the relative order of the
// remaining items. Returns the count removed. Used by cancel(A) to drain
// stale copies of an alarm posted before it was canceled, and by
// UnregisterProcessingQueue to cancel every alarm bound to a queue.
func (q *Queue) TryRemoveFromQueue(match func(item any) bool) int {
	q.mu.Lock()
	defer q.mu.Unlock()

	n := q.inner.Length()
	if n == 0 {
		return 0
	}
	kept := eapacheq.New()
	removed := 0
	for i := 0; i < n; i++ {
		item := q.inner.Get(i)
		if match(item) {
			removed++
			continue
		}
		kept.Add(item)
	}
	q.inner = kept
	return removed
}

// Len reports the current item count.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.inner.Length()
}
