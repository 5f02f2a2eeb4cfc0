package alarm

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

// fakeCallout records wake-lock and wake-alarm traffic so tests can observe
// which wake-policy branch a re-evaluation took.
type fakeCallout struct {
	mu         sync.Mutex
	held       int32
	wakeAlarms []int64
}

func (f *fakeCallout) AcquireWakeLock(id string) error {
	atomic.AddInt32(&f.held, 1)
	return nil
}

func (f *fakeCallout) ReleaseWakeLock(id string) error {
	atomic.AddInt32(&f.held, -1)
	return nil
}

func (f *fakeCallout) HeldCount() int32 { return atomic.LoadInt32(&f.held) }

func (f *fakeCallout) SetWakeAlarm(delayMs int64, shouldWake bool, cb func()) bool {
	f.mu.Lock()
	f.wakeAlarms = append(f.wakeAlarms, delayMs)
	f.mu.Unlock()
	return true
}

func (f *fakeCallout) Close() error { return nil }

func (f *fakeCallout) wakeAlarmCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.wakeAlarms)
}

func (f *fakeCallout) lastWakeAlarm() int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.wakeAlarms) == 0 {
		return -1
	}
	return f.wakeAlarms[len(f.wakeAlarms)-1]
}

// S3: a far deadline takes the long-horizon branch (kernel wake alarm, no
// wake lock); an implicit reschedule to a near deadline flips to the
// short-horizon branch (wake lock held, in-process timer armed).
func TestWakePolicyBranchFlip(t *testing.T) {
	fc := &fakeCallout{}
	svc := NewService(WithWakeCallout(fc))
	t.Cleanup(svc.Cleanup)

	a := svc.New("S3")
	fired := make(chan struct{})
	if err := svc.Set(a, 10000, func(any) { close(fired) }, nil); err != nil {
		t.Fatalf("Set far: %v", err)
	}

	if n := fc.wakeAlarmCount(); n != 1 {
		t.Fatalf("wake alarm requests after far Set = %d, want 1", n)
	}
	if d := fc.lastWakeAlarm(); d < 9000 || d > 10000 {
		t.Fatalf("wake alarm delay = %dms, want ~10000", d)
	}
	if held := fc.HeldCount(); held != 0 {
		t.Fatalf("wake lock held on long-horizon branch: %d", held)
	}

	if err := svc.Set(a, 100, func(any) { close(fired) }, nil); err != nil {
		t.Fatalf("Set near: %v", err)
	}
	if held := fc.HeldCount(); held != 1 {
		t.Fatalf("wake lock held after short-horizon flip = %d, want 1", held)
	}

	select {
	case <-fired:
	case <-time.After(2 * time.Second):
		t.Fatal("rescheduled alarm did not fire")
	}

	time.Sleep(100 * time.Millisecond)
	if held := fc.HeldCount(); held != 0 {
		t.Fatalf("wake lock held after quiesce = %d, want 0", held)
	}
}

// Periodic firings stay anchored to creation_time + k*period even when the
// callback eats a large fraction of the period: late completions must not
// push later deadlines out.
func TestPeriodicAnchoringResistsCallbackLatency(t *testing.T) {
	svc := newTestService(t)

	const periodMs = 60
	const firings = 4

	var mu sync.Mutex
	var times []time.Time
	done := make(chan struct{})

	start := time.Now()
	a := svc.NewPeriodic("anchored")
	if err := svc.Set(a, periodMs, func(any) {
		mu.Lock()
		times = append(times, time.Now())
		n := len(times)
		mu.Unlock()
		time.Sleep(25 * time.Millisecond)
		if n == firings {
			close(done)
		}
	}, nil); err != nil {
		t.Fatalf("Set: %v", err)
	}

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("periodic alarm did not reach expected firing count")
	}
	svc.Cancel(a)

	mu.Lock()
	defer mu.Unlock()
	for k, ts := range times {
		want := time.Duration(periodMs*(k+1)) * time.Millisecond
		got := ts.Sub(start)
		// A drifting (non-anchored) implementation accumulates the 25ms
		// callback latency per firing and lands well outside this window.
		if diff := got - want; diff < -20*time.Millisecond || diff > 45*time.Millisecond {
			t.Fatalf("firing %d at %v, want ~%v", k+1, got, want)
		}
	}
}

func TestStatsAccounting(t *testing.T) {
	svc := newTestService(t)

	done := make(chan struct{})
	a := svc.New("stats")
	if err := svc.Set(a, 20, func(any) {
		time.Sleep(30 * time.Millisecond)
		close(done)
	}, nil); err != nil {
		t.Fatalf("Set: %v", err)
	}

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("alarm did not fire")
	}
	time.Sleep(50 * time.Millisecond)

	st := a.Stats()
	if st.ScheduledCount != 1 {
		t.Fatalf("ScheduledCount = %d, want 1", st.ScheduledCount)
	}
	if st.TotalUpdates != 1 {
		t.Fatalf("TotalUpdates = %d, want 1", st.TotalUpdates)
	}
	if st.CallbackExecution.Count != 1 {
		t.Fatalf("CallbackExecution.Count = %d, want 1", st.CallbackExecution.Count)
	}
	if st.CallbackExecution.TotalMs < 25 {
		t.Fatalf("CallbackExecution.TotalMs = %d, want >= 25", st.CallbackExecution.TotalMs)
	}
	if st.PrematureScheduling.Count != 0 {
		t.Fatalf("PrematureScheduling.Count = %d, want 0", st.PrematureScheduling.Count)
	}

	// Cancel counts unconditionally, even when the alarm already fired and
	// there was nothing left to remove from the pending list or queue.
	svc.Cancel(a)
	if got := a.Stats().CanceledCount; got != 1 {
		t.Fatalf("CanceledCount after cancel of fired one-shot = %d, want 1", got)
	}
}

func TestDumpStatsSortedByName(t *testing.T) {
	svc := newTestService(t)

	for _, name := range []string{"zeta", "alpha", "mid"} {
		svc.New(name)
	}

	snaps := svc.DumpStats()
	if len(snaps) != 3 {
		t.Fatalf("DumpStats len = %d, want 3", len(snaps))
	}
	for _, want := range []string{"alpha", "mid", "zeta"} {
		found := false
		for _, s := range snaps {
			if s.Name == want {
				found = true
			}
		}
		if !found {
			t.Fatalf("DumpStats missing %q", want)
		}
	}
	for i := 1; i < len(snaps); i++ {
		if snaps[i-1].Name > snaps[i].Name {
			t.Fatalf("DumpStats not sorted: %q before %q", snaps[i-1].Name, snaps[i].Name)
		}
	}
}

func TestSetConfigUpdatesThreshold(t *testing.T) {
	fc := &fakeCallout{}
	svc := NewService(WithWakeCallout(fc))
	t.Cleanup(svc.Cleanup)

	if err := svc.SetConfig(map[string]any{ConfigKeyWakelockThresholdMs: int64(20000)}); err != nil {
		t.Fatalf("SetConfig: %v", err)
	}

	// With the threshold above the deadline, a 10s alarm now takes the
	// short-horizon branch: wake lock held, no kernel wake-alarm request.
	a := svc.New("cfg")
	if err := svc.Set(a, 10000, func(any) {}, nil); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if n := fc.wakeAlarmCount(); n != 0 {
		t.Fatalf("wake alarm requested despite raised threshold: %d", n)
	}
	if held := fc.HeldCount(); held != 1 {
		t.Fatalf("wake lock held = %d, want 1", held)
	}
	svc.Cancel(a)
}

func TestFreeRemovesFromDumpStats(t *testing.T) {
	svc := newTestService(t)

	a := svc.New("ephemeral")
	if len(svc.DumpStats()) != 1 {
		t.Fatal("alarm missing from DumpStats after New")
	}
	a.Free()
	if len(svc.DumpStats()) != 0 {
		t.Fatal("alarm still in DumpStats after Free")
	}
}
