// Package wakelock
//
// Default wake-alarm callout: acquire/release a wake lock and program a
// suspend-capable wake alarm.
// The wake lock here is a simple reference count plus a hook point real
// platform integration (Android's PowerManager, systemd-inhibit, …) would
// replace; set_wake_alarm is backed by internal/boottimer's CLOCK_BOOTTIME
// timer so a far-future alarm can still notify after the process wakes from
// suspend.
package wakelock

import (
	"log"
	"sync"
	"sync/atomic"

	"github.com/momentics/alarmsvc/internal/boottimer"
	"github.com/momentics/alarmsvc/internal/clock"
)

// Callout is the wake-alarm collaborator the alarm engine's wake policy
// consults on every re-evaluation.
type Callout interface {
	// AcquireWakeLock increments the hold count by one on every call,
	// including calls made while the lock is already held.
	AcquireWakeLock(id string) error
	// ReleaseWakeLock decrements the hold count.
	ReleaseWakeLock(id string) error
	// SetWakeAlarm asks the platform to wake the process at now+delayMs,
	// invoking cb on expiry. Returns false if the platform refuses.
	SetWakeAlarm(delayMs int64, shouldWake bool, cb func()) bool
	// HeldCount reports the current wake-lock reference count, used by
	// tests to verify acquire/release balance (testable property 8).
	HeldCount() int32
	// Close releases the underlying kernel timer. Safe to call more than
	// once.
	Close() error
}

var _ Callout = (*Default)(nil)

// Default is the standard wake-lock callout; each alarm Service constructs
// its own with New unless given another via WithWakeCallout.
type Default struct {
	mu        sync.Mutex
	held      int32
	timer     boottimer.Timer
	pendingCb func()
	stop      chan struct{}
	closeOnce sync.Once
}

// New constructs a Default callout. Construction never fails: if the
// platform kernel timer is unavailable, New logs that once and SetWakeAlarm
// returns false on every call, matching the "kernel wake-alarm refusal" error taxonomy
// entry (callers degrade to "fires when the system is next awake" or, in
// this fallback's case, never via this path; the in-process scheduler
// still covers short-horizon deadlines).
func New() *Default {
	d := &Default{stop: make(chan struct{})}
	t, err := boottimer.New()
	if err != nil {
		log.Printf("wakelock: kernel wake-alarm timer unavailable: %v", err)
		return d
	}
	d.timer = t
	go d.pump()
	return d
}

func (d *Default) pump() {
	for {
		select {
		case <-d.stop:
			return
		case <-d.timer.Notifications():
			d.mu.Lock()
			cb := d.pendingCb
			d.pendingCb = nil
			d.mu.Unlock()
			if cb != nil {
				cb()
			}
		}
	}
}

// Close disarms and releases the kernel timer and stops the notification
// pump.
func (d *Default) Close() error {
	d.closeOnce.Do(func() {
		close(d.stop)
		if d.timer != nil {
			d.timer.Disarm()
			d.timer.Close()
		}
	})
	return nil
}

func (d *Default) AcquireWakeLock(id string) error {
	atomic.AddInt32(&d.held, 1)
	return nil
}

func (d *Default) ReleaseWakeLock(id string) error {
	atomic.AddInt32(&d.held, -1)
	return nil
}

func (d *Default) HeldCount() int32 {
	return atomic.LoadInt32(&d.held)
}

func (d *Default) SetWakeAlarm(delayMs int64, shouldWake bool, cb func()) bool {
	if d.timer == nil {
		return false
	}
	d.mu.Lock()
	d.pendingCb = cb
	d.mu.Unlock()

	now := clock.NowMs()
	if err := d.timer.ArmAbsoluteMs(now + delayMs); err != nil {
		log.Printf("wakelock: set_wake_alarm refused: %v", err)
		return false
	}
	return true
}
