// File: reactor/reactor.go
//
// Queue-readiness reactor: the event loop each worker thread runs. Producers
// (the alarm dispatcher) enqueue onto a registered source; the source's
// readiness sink wakes the reactor; the reactor drains every registered
// source in registration order, invoking the bound handler per item.

package reactor

import (
	"sync"

	"github.com/momentics/alarmsvc/api"
)

// entry binds one registered source to its handler.
type entry struct {
	src api.EventSource
	h   api.Handler
}

// Reactor implements api.Reactor over readiness-sink sources. All handler
// invocations happen on the single goroutine running Run, so items drained
// from one reactor execute strictly serially in dequeue order.
type Reactor struct {
	mu      sync.Mutex
	entries []entry

	wake     chan struct{}
	stop     chan struct{}
	stopOnce sync.Once
}

var _ api.Reactor = (*Reactor)(nil)

// New constructs an idle Reactor. Call Run on the goroutine that should own
// handler execution.
func New() *Reactor {
	return &Reactor{
		wake: make(chan struct{}, 1),
		stop: make(chan struct{}),
	}
}

// Register installs r's wakeup as src's readiness sink and binds h to it.
func (r *Reactor) Register(src api.EventSource, h api.Handler) error {
	if src == nil || h == nil {
		return api.ErrInvalidArgument
	}
	r.mu.Lock()
	for _, e := range r.entries {
		if e.src == src {
			r.mu.Unlock()
			return api.ErrAlreadyExists
		}
	}
	r.entries = append(r.entries, entry{src: src, h: h})
	r.mu.Unlock()

	// Installed after the entry is visible, so a wakeup delivered for
	// already-queued items finds the entry to drain.
	src.OnReady(r.wakeup)
	return nil
}

// Unregister detaches src from the reactor and removes its readiness sink.
// Items still queued on src stay there.
func (r *Reactor) Unregister(src api.EventSource) error {
	r.mu.Lock()
	found := false
	for i, e := range r.entries {
		if e.src == src {
			r.entries = append(r.entries[:i], r.entries[i+1:]...)
			found = true
			break
		}
	}
	r.mu.Unlock()
	if !found {
		return api.ErrNotFound
	}
	src.OnReady(nil)
	return nil
}

// Run drains ready sources until Close is called. Handler errors are the
// handler's own concern; the reactor keeps draining.
func (r *Reactor) Run() {
	for {
		select {
		case <-r.stop:
			return
		case <-r.wake:
		}
		r.drain()
	}
}

// Close stops Run. Safe to call more than once.
func (r *Reactor) Close() error {
	r.stopOnce.Do(func() { close(r.stop) })
	return nil
}

func (r *Reactor) wakeup() {
	select {
	case r.wake <- struct{}{}:
	default:
	}
}

// drain empties every registered source. The entry slice is snapshotted so a
// handler may Register/Unregister without holding up the loop.
func (r *Reactor) drain() {
	r.mu.Lock()
	snapshot := make([]entry, len(r.entries))
	copy(snapshot, r.entries)
	r.mu.Unlock()

	for _, e := range snapshot {
		for {
			item, ok := e.src.TryDequeue()
			if !ok {
				break
			}
			_ = e.h.Handle(item)
		}
	}
}
