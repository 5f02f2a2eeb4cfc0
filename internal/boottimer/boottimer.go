// Package boottimer
//
// Kernel-backed absolute-time timer armed against CLOCK_BOOTTIME, used as the
// long-horizon wake-alarm collaborator: unlike the in-process scheduler (which
// only runs while goroutines are scheduled), a POSIX timer backed by
// CLOCK_BOOTTIME keeps counting across suspend and delivers SIGALRM on
// expiry, which is what lets the alarm engine wake a suspended device for a
// far-future deadline.
//
// Grounded on the CLOCK_BOOTTIME POSIX timer pattern (timer_create /
// timer_settime / timer_gettime / timer_delete, SIGALRM notification) with
// absolute-time arming, readback, and disarm added for the wake-policy
// self-heal case: a timer armed for a deadline that has already elapsed may
// read back disarmed with no pending notification.
package boottimer

import "errors"

// ErrNotSupported is returned by the Linux cgo timer when the
// CLOCK_BOOTTIME POSIX timer cannot be created, armed, disarmed or read back.
// Platforms without such a timer (non-Linux, or Linux built without cgo) use
// a time.Timer-backed fallback that never returns it.
var ErrNotSupported = errors.New("boottimer: not supported on this platform")

// Timer is a single absolute-deadline kernel timer.
type Timer interface {
	// ArmAbsoluteMs arms the timer to fire once boot-relative time reaches
	// deadlineMs. Arming a deadline already in the past may fire
	// immediately, or may read back disarmed; callers must read back after
	// arming to detect the self-heal case.
	ArmAbsoluteMs(deadlineMs int64) error

	// Disarm cancels any pending expiration. Equivalent to arming zero.
	Disarm() error

	// RemainingMs reads back the timer state. armed is false if the timer
	// is currently disarmed (including the case where it already fired and
	// was not re-armed).
	RemainingMs() (remainingMs int64, armed bool, err error)

	// Notifications delivers a value each time the timer fires.
	Notifications() <-chan struct{}

	// Close releases the underlying kernel timer.
	Close() error
}

// New constructs a platform Timer. On Linux with cgo it returns
// ErrNotSupported if timer_create fails; callers treat this like any other
// initialization failure: log and degrade (the wake policy's long-horizon
// branch simply never fires, which is no worse than the kernel wake-alarm
// callout refusing the request). On other platforms it returns the
// time.Timer-backed fallback, which cannot wake a suspended device.
func New() (Timer, error) {
	return newPlatformTimer()
}
