//go:build !linux

package clock

import "time"

// monotonicSource falls back to the runtime's monotonic reading on platforms
// without a boot-relative clock exposed through golang.org/x/sys/unix. It
// will not reflect suspended time, so long-horizon scheduling across sleep
// degrades on these platforms; short-horizon behavior is unaffected.
type monotonicSource struct {
	epoch time.Time
}

func newPlatformSource() Source {
	return monotonicSource{epoch: time.Now()}
}

func (m monotonicSource) NowMs() int64 {
	return time.Since(m.epoch).Milliseconds()
}
