//go:build linux && !cgo
// +build linux,!cgo

// Package concurrency
//
// Stub for PinCurrentThread on Linux when CGO is disabled. The CGO-backed
// version in pin_linux.go uses pthread_setaffinity_np/libnuma and is
// automatically excluded from !cgo builds by the toolchain, which would
// otherwise leave PinCurrentThread undefined; this variant fills that gap
// so worker threads can still call it unconditionally.

package concurrency

import "runtime"

// PinCurrentThread stub for Linux without CGO: it locks the goroutine to its
// OS thread and applies no CPU or NUMA affinity.
func PinCurrentThread(numaNode int, cpuID int) {
	runtime.LockOSThread()
}
