//go:build linux

package clock

import (
	"log"

	"golang.org/x/sys/unix"
)

// bootTimeSource reads CLOCK_BOOTTIME, which (unlike CLOCK_MONOTONIC) keeps
// advancing across suspend, required so a deadline computed before suspend
// still compares correctly against now_ms after resume.
type bootTimeSource struct{}

func newPlatformSource() Source {
	return bootTimeSource{}
}

func (bootTimeSource) NowMs() int64 {
	var ts unix.Timespec
	if err := unix.ClockGettime(unix.CLOCK_BOOTTIME, &ts); err != nil {
		log.Printf("clock: CLOCK_BOOTTIME read failed: %v", err)
		return 0
	}
	return ts.Sec*1000 + int64(ts.Nsec)/1_000_000
}
