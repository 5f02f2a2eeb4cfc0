// Package worker
//
// Worker thread abstraction bound 1:1 to a single queue.Queue: a worker
// thread with best-effort priority/CPU-pinning support and a reactor that
// can be woken by its queue. Each Thread runs its own
// reactor.Reactor on a dedicated goroutine (pinned best-effort via
// internal/concurrency.PinCurrentThread when requested); the bound queue is
// registered on that reactor so the registered handler runs once per item,
// strictly serially, in enqueue order.
package worker

import (
	"log"
	"runtime"
	"sync"

	"github.com/momentics/alarmsvc/api"
	"github.com/momentics/alarmsvc/internal/concurrency"
	"github.com/momentics/alarmsvc/internal/queue"
	"github.com/momentics/alarmsvc/reactor"
)

// Handler processes one item popped from a worker's bound queue.
type Handler func(item any)

// callbackThreadNice mirrors the host stack's high-priority callback thread
// setting, applied to each worker's OS thread. Raising priority needs
// CAP_SYS_NICE; failure is best-effort.
const callbackThreadNice = -19

// Thread runs handler once per item enqueued onto queue, strictly serially,
// on a single dedicated goroutine, matching the
// guarantee that a single worker queue's callbacks execute in enqueue order.
type Thread struct {
	queue   *queue.Queue
	reactor *reactor.Reactor
	cpuID   int
	pin     bool

	stopOnce sync.Once
	doneCh   chan struct{}
}

// NewThread constructs a Thread bound to q, with its queue registered on a
// fresh reactor. If pin is true, the worker goroutine attempts to lock to
// the OS thread running on cpuID; affinity failures are logged and the
// worker keeps running unpinned (PinCurrentThread is itself best-effort).
func NewThread(q *queue.Queue, handler Handler, pin bool, cpuID int) *Thread {
	t := &Thread{
		queue:   q,
		reactor: reactor.New(),
		cpuID:   cpuID,
		pin:     pin,
		doneCh:  make(chan struct{}),
	}
	if err := t.reactor.Register(q, api.HandlerFunc(func(item any) error {
		handler(item)
		return nil
	})); err != nil {
		log.Printf("worker: queue registration failed: %v", err)
	}
	return t
}

// Queue returns the bound queue, used by the alarm engine to post due
// alarms and by cancel to remove stale copies.
func (t *Thread) Queue() *queue.Queue {
	return t.queue
}

// Reactor returns the thread's event loop, letting callers register
// additional sources onto the same worker goroutine.
func (t *Thread) Reactor() api.Reactor {
	return t.reactor
}

// Start launches the worker goroutine.
func (t *Thread) Start() {
	go t.run()
}

// Stop shuts the reactor down and waits for the worker goroutine to exit.
// It does not drain remaining queued items; callers that need the default
// queue drained on shutdown (per cleanup()) must do so separately before
// calling Stop.
func (t *Thread) Stop() {
	t.stopOnce.Do(func() {
		t.reactor.Close()
	})
	<-t.doneCh
}

func (t *Thread) run() {
	defer close(t.doneCh)
	runtime.LockOSThread()
	if err := concurrency.SetCurrentThreadPriority(callbackThreadNice); err != nil {
		log.Printf("worker: thread priority unchanged: %v", err)
	}
	if t.pin {
		concurrency.PinCurrentThread(-1, t.cpuID)
	}
	t.reactor.Run()
}
