//go:build linux

// internal/concurrency/priority_linux.go
//
// Thread priority for the alarm dispatcher. Go has no per-goroutine
// priority; the caller locks its goroutine to an OS thread and renices that
// thread. Raising priority (negative nice) needs CAP_SYS_NICE, so failures
// are expected for unprivileged processes and must be treated as best-effort.

package concurrency

import "golang.org/x/sys/unix"

// SetCurrentThreadPriority sets the calling OS thread's nice value. The
// caller must hold runtime.LockOSThread for the value to stay meaningful.
func SetCurrentThreadPriority(nice int) error {
	return unix.Setpriority(unix.PRIO_PROCESS, unix.Gettid(), nice)
}
