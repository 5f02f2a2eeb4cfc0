// Package semaphore
//
// Counting semaphore used as the expiration signal between the timer paths
// (in-process scheduler or boot timer SIGALRM) and the dispatcher goroutine.
// Grounded on the channel-as-semaphore idiom used for flow control elsewhere
// in this module's concurrency primitives: a buffered chan struct{} where a
// send is Post and a receive is Wait.
package semaphore

// Semaphore is a counting semaphore usable across goroutines. Multiple Post
// calls before a Wait coalesce only up to the channel's capacity; the
// expiration signal relies on this being harmless, since the dispatcher
// always re-validates the pending list's front against now_ms after waking.
type Semaphore struct {
	c chan struct{}
}

// New constructs a Semaphore with the given buffer capacity. A capacity of 1
// is sufficient for a coalescing "something may be ready" signal.
func New(capacity int) *Semaphore {
	if capacity < 1 {
		capacity = 1
	}
	return &Semaphore{c: make(chan struct{}, capacity)}
}

// Post increments the semaphore, non-blocking; it drops the post if the
// buffer is already full rather than blocking the poster.
func (s *Semaphore) Post() {
	select {
	case s.c <- struct{}{}:
	default:
	}
}

// Wait blocks until a Post is available, returning the channel so callers can
// select on it alongside a shutdown channel.
func (s *Semaphore) Wait() <-chan struct{} {
	return s.c
}
