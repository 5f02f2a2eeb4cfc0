//go:build !linux && !windows
// +build !linux,!windows

// control/platform_other.go
//
// Fallback for platforms without dedicated debug probe integrations.

package control

// RegisterPlatformProbes is a no-op on platforms without specific probes.
func RegisterPlatformProbes(dp *DebugProbes) {}
