//go:build !linux || !cgo

package boottimer

import (
	"sync"
	"time"

	"github.com/momentics/alarmsvc/internal/clock"
)

// fallbackTimer emulates the kernel wake-alarm collaborator with a
// time.Timer. It cannot wake a suspended device and does not survive
// suspend-induced clock jumps as faithfully as CLOCK_BOOTTIME, but preserves
// the same absolute-arm/disarm/readback contract for platforms without a
// cgo-backed POSIX timer.
type fallbackTimer struct {
	mu       sync.Mutex
	timer    *time.Timer
	deadline int64
	armed    bool
	notify   chan struct{}
}

func newPlatformTimer() (Timer, error) {
	t := &fallbackTimer{notify: make(chan struct{}, 1)}
	return t, nil
}

func (t *fallbackTimer) ArmAbsoluteMs(deadlineMs int64) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.timer != nil {
		t.timer.Stop()
	}
	t.deadline = deadlineMs
	delay := time.Duration(deadlineMs-clock.NowMs()) * time.Millisecond
	if delay < 0 {
		delay = 0
	}
	t.armed = true
	t.timer = time.AfterFunc(delay, func() {
		t.mu.Lock()
		t.armed = false
		t.mu.Unlock()
		select {
		case t.notify <- struct{}{}:
		default:
		}
	})
	return nil
}

func (t *fallbackTimer) Disarm() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.timer != nil {
		t.timer.Stop()
	}
	t.armed = false
	return nil
}

func (t *fallbackTimer) RemainingMs() (int64, bool, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.armed {
		return 0, false, nil
	}
	remaining := t.deadline - clock.NowMs()
	if remaining < 0 {
		remaining = 0
	}
	return remaining, true, nil
}

func (t *fallbackTimer) Notifications() <-chan struct{} {
	return t.notify
}

func (t *fallbackTimer) Close() error {
	return t.Disarm()
}
