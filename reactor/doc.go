// Copyright (c) 2025

// Package reactor provides the queue-readiness event loop run by each alarm
// worker thread: registered queues wake the reactor when an item is posted,
// and the reactor drains them serially on its own goroutine.
package reactor
