//go:build linux && cgo

package boottimer

// #include <signal.h>
// #include <time.h>
import "C"

import (
	"os"
	"os/signal"
	"sync"
	"syscall"
	"unsafe"
)

// posixTimer wraps a single Linux POSIX timer armed against CLOCK_BOOTTIME.
// Each instance owns its own timer_t, but SIGALRM delivery is process-wide,
// so the notification fan-in is routed through a shared signal channel and
// redistributed to every currently registered posixTimer instance, armed or
// not.
type posixTimer struct {
	mu      sync.Mutex
	id      C.timer_t
	created bool
	notify  chan struct{}
}

func newPlatformTimer() (Timer, error) {
	t := &posixTimer{notify: make(chan struct{}, 1)}
	var sev C.struct_sigevent
	sev.sigev_notify = C.SIGEV_SIGNAL
	sev.sigev_signo = C.int(syscall.SIGALRM)

	if ret := C.timer_create(C.CLOCK_BOOTTIME, &sev, &t.id); ret != 0 {
		return nil, ErrNotSupported
	}
	t.created = true
	registerTimer(t)
	return t, nil
}

func (t *posixTimer) ArmAbsoluteMs(deadlineMs int64) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	spec := msToItimerspec(deadlineMs)
	if ret := C.timer_settime(t.id, C.TIMER_ABSTIME, &spec, nil); ret != 0 {
		return ErrNotSupported
	}
	return nil
}

func (t *posixTimer) Disarm() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	var zero C.struct_itimerspec
	if ret := C.timer_settime(t.id, 0, &zero, nil); ret != 0 {
		return ErrNotSupported
	}
	return nil
}

func (t *posixTimer) RemainingMs() (int64, bool, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	var cur C.struct_itimerspec
	if ret := C.timer_gettime(t.id, &cur); ret != 0 {
		return 0, false, ErrNotSupported
	}
	remaining := int64(cur.it_value.tv_sec)*1000 + int64(cur.it_value.tv_nsec)/1_000_000
	armed := cur.it_value.tv_sec != 0 || cur.it_value.tv_nsec != 0
	return remaining, armed, nil
}

func (t *posixTimer) Notifications() <-chan struct{} {
	return t.notify
}

func (t *posixTimer) Close() error {
	unregisterTimer(t)
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.created {
		C.timer_delete(t.id)
		t.created = false
	}
	return nil
}

func msToItimerspec(absMs int64) C.struct_itimerspec {
	var spec C.struct_itimerspec
	spec.it_interval = C.struct_timespec{}
	spec.it_value = C.struct_timespec{
		tv_sec:  C.time_t(absMs / 1000),
		tv_nsec: C.long((absMs % 1000) * 1_000_000),
	}
	_ = unsafe.Sizeof(spec)
	return spec
}

var (
	registryMu sync.Mutex
	registry   = map[*posixTimer]struct{}{}
	once       sync.Once
)

func registerTimer(t *posixTimer) {
	registryMu.Lock()
	registry[t] = struct{}{}
	registryMu.Unlock()
	once.Do(startSignalPump)
}

func unregisterTimer(t *posixTimer) {
	registryMu.Lock()
	delete(registry, t)
	registryMu.Unlock()
}

// startSignalPump fans SIGALRM out to every currently-registered timer's
// notification channel. A timer that didn't actually fire simply ignores a
// spurious wake (the dispatcher re-validates against now_ms regardless).
func startSignalPump() {
	c := make(chan os.Signal, 4)
	signal.Notify(c, syscall.SIGALRM)
	go func() {
		for range c {
			registryMu.Lock()
			for t := range registry {
				select {
				case t.notify <- struct{}{}:
				default:
				}
			}
			registryMu.Unlock()
		}
	}()
}
