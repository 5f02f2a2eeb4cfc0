//go:build linux && !cgo
// +build linux,!cgo

// File: affinity/affinity_linux_nocgo.go
//
// Stub for Linux builds with CGO disabled; the CGO-backed version in
// affinity_linux.go uses pthread_setaffinity_np and is automatically
// excluded from !cgo builds by the toolchain, which would otherwise leave
// setAffinityPlatform undefined.

package affinity

import "errors"

// setAffinityPlatform is a stub for Linux builds without CGO.
func setAffinityPlatform(cpuID int) error {
	return errors.New("affinity: not supported on this platform")
}
