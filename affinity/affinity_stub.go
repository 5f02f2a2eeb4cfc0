//go:build !linux && !windows
// +build !linux,!windows

// File: affinity/affinity_stub.go
//
// Stub for platforms without affinity support; the dispatcher logs the
// error and runs unpinned.

package affinity

import "errors"

// setAffinityPlatform is a stub for platforms where CPU affinity is not supported.
func setAffinityPlatform(cpuID int) error {
	return errors.New("affinity: not supported on this platform")
}
