// File: api/reactor.go
//
// Defines the abstract interface for the event reactor that wakes a worker
// thread when one of its registered queues becomes ready, regardless of the
// concrete queue implementation behind the EventSource.

package api

// EventSource is anything a Reactor can drain: a producer posts items and
// signals readiness, the reactor's thread dequeues until empty.
type EventSource interface {
	// TryDequeue removes and returns the oldest item, if any.
	TryDequeue() (any, bool)

	// OnReady installs fn as the readiness sink: the source calls it (from
	// any goroutine) whenever an item is enqueued. Passing nil detaches the
	// sink. If items are already queued when a sink is installed, the source
	// must invoke it once immediately so no wakeup is lost.
	OnReady(fn func())
}

// Reactor defines the common interface for an event loop that dispatches
// ready items from registered sources to their handlers, strictly serially
// on the goroutine running Run.
type Reactor interface {
	// Register associates a source with the reactor and installs its
	// readiness sink.
	Register(src EventSource, h Handler) error

	// Unregister detaches a source. Items still queued on the source are
	// left in place for the caller to drain or discard.
	Unregister(src EventSource) error

	// Run blocks, draining ready sources, until Close is called.
	Run()

	// Close stops the Run loop and releases the reactor.
	Close() error
}
