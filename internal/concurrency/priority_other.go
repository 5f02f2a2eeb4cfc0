//go:build !linux

// internal/concurrency/priority_other.go

package concurrency

import "github.com/momentics/alarmsvc/api"

// SetCurrentThreadPriority is unsupported off Linux.
func SetCurrentThreadPriority(nice int) error {
	return api.ErrNotSupported
}
