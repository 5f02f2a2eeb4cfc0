package alarm

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/momentics/alarmsvc/internal/queue"
)

func newTestService(t *testing.T) *Service {
	t.Helper()
	svc := NewService()
	svc.SetThresholdMs(50)
	t.Cleanup(svc.Cleanup)
	return svc
}

func TestOneShotFiresOnce(t *testing.T) {
	svc := newTestService(t)

	var count int32
	fired := make(chan struct{})
	a := svc.New("S1")
	if err := svc.Set(a, 50, func(data any) {
		if atomic.AddInt32(&count, 1) == 1 {
			close(fired)
		}
	}, nil); err != nil {
		t.Fatalf("Set: %v", err)
	}

	select {
	case <-fired:
	case <-time.After(2 * time.Second):
		t.Fatal("alarm did not fire within timeout")
	}

	time.Sleep(100 * time.Millisecond)
	if got := atomic.LoadInt32(&count); got != 1 {
		t.Fatalf("callback invoked %d times, want 1", got)
	}
	if a.IsScheduled() {
		t.Fatal("one-shot alarm should not be scheduled after firing")
	}
}

func TestPeriodicCancelStopsFutureFirings(t *testing.T) {
	svc := newTestService(t)

	var count int32
	a := svc.NewPeriodic("S2")
	if err := svc.Set(a, 30, func(data any) {
		atomic.AddInt32(&count, 1)
	}, nil); err != nil {
		t.Fatalf("Set: %v", err)
	}

	time.Sleep(175 * time.Millisecond)
	svc.Cancel(a)
	countAtCancel := atomic.LoadInt32(&count)

	time.Sleep(150 * time.Millisecond)
	countAfter := atomic.LoadInt32(&count)

	if countAtCancel < 2 {
		t.Fatalf("expected at least 2 firings before cancel, got %d", countAtCancel)
	}
	if countAfter != countAtCancel {
		t.Fatalf("callback fired after cancel: before=%d after=%d", countAtCancel, countAfter)
	}
}

func TestTwoAlarmsFireInEnqueueOrder(t *testing.T) {
	svc := newTestService(t)

	var mu sync.Mutex
	var order []string
	done := make(chan struct{})

	x := svc.New("X")
	y := svc.New("Y")

	var fires int32
	record := func(name string) func(any) {
		return func(any) {
			mu.Lock()
			order = append(order, name)
			mu.Unlock()
			if atomic.AddInt32(&fires, 1) == 2 {
				close(done)
			}
		}
	}

	if err := svc.Set(x, 80, record("X"), nil); err != nil {
		t.Fatalf("Set X: %v", err)
	}
	if err := svc.Set(y, 80, record("Y"), nil); err != nil {
		t.Fatalf("Set Y: %v", err)
	}

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("alarms did not both fire within timeout")
	}

	mu.Lock()
	defer mu.Unlock()
	if len(order) != 2 || order[0] != "X" || order[1] != "Y" {
		t.Fatalf("got order %v, want [X Y]", order)
	}
}

func TestSelfCancelFromCallback(t *testing.T) {
	svc := newTestService(t)

	done := make(chan struct{})
	var a *Alarm
	a = svc.New("S5")
	if err := svc.Set(a, 30, func(data any) {
		svc.Cancel(a)
		close(done)
	}, nil); err != nil {
		t.Fatalf("Set: %v", err)
	}

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("self-cancel deadlocked or did not run")
	}

	time.Sleep(100 * time.Millisecond)
	if a.IsScheduled() {
		t.Fatal("alarm should not be scheduled after self-cancel")
	}
}

func TestCancelDrainsInFlightCallback(t *testing.T) {
	svc := newTestService(t)

	started := make(chan struct{})
	release := make(chan struct{})
	a := svc.New("S6")
	if err := svc.Set(a, 10, func(data any) {
		close(started)
		<-release
	}, nil); err != nil {
		t.Fatalf("Set: %v", err)
	}

	<-started

	cancelDone := make(chan struct{})
	go func() {
		svc.Cancel(a)
		close(cancelDone)
	}()

	select {
	case <-cancelDone:
		t.Fatal("cancel returned before in-flight callback finished")
	case <-time.After(100 * time.Millisecond):
	}

	close(release)

	select {
	case <-cancelDone:
	case <-time.After(2 * time.Second):
		t.Fatal("cancel did not return after callback finished")
	}
}

func TestGetRemainingMsDecreases(t *testing.T) {
	svc := newTestService(t)

	a := svc.New("remaining")
	if err := svc.Set(a, 500, func(any) {}, nil); err != nil {
		t.Fatalf("Set: %v", err)
	}

	first := a.GetRemainingMs()
	time.Sleep(50 * time.Millisecond)
	second := a.GetRemainingMs()

	if first <= 0 {
		t.Fatalf("expected positive remaining time, got %d", first)
	}
	if second >= first {
		t.Fatalf("expected remaining time to decrease: first=%d second=%d", first, second)
	}
}

func TestZeroPeriodPassThrough(t *testing.T) {
	svc := newTestService(t)

	var fires int32
	done := make(chan struct{})
	a := svc.NewPeriodic("zero-period")
	if err := svc.Set(a, 0, func(any) {
		if atomic.AddInt32(&fires, 1) == 3 {
			close(done)
		}
	}, nil); err != nil {
		t.Fatalf("Set: %v", err)
	}

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("zero-period alarm did not reschedule repeatedly")
	}
	svc.Cancel(a)
}

func TestWakeLockBalanceAfterQuiesce(t *testing.T) {
	svc := newTestService(t)

	done := make(chan struct{})
	a := svc.New("wakelock-balance")
	if err := svc.Set(a, 20, func(any) { close(done) }, nil); err != nil {
		t.Fatalf("Set: %v", err)
	}

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("alarm did not fire")
	}

	time.Sleep(100 * time.Millisecond)

	if held := svc.wake.HeldCount(); held != 0 {
		t.Fatalf("wake lock held count after quiesce = %d, want 0", held)
	}
}

func TestUnregisterProcessingQueueCancelsBoundAlarms(t *testing.T) {
	svc := newTestService(t)

	q := queue.New()
	thread, err := svc.RegisterProcessingQueue(q, false, 0)
	if err != nil {
		t.Fatalf("RegisterProcessingQueue: %v", err)
	}
	_ = thread

	a := svc.New("bound")
	if err := svc.SetOnQueue(a, 10000, func(any) {}, nil, q); err != nil {
		t.Fatalf("SetOnQueue: %v", err)
	}

	if err := svc.UnregisterProcessingQueue(q); err != nil {
		t.Fatalf("UnregisterProcessingQueue: %v", err)
	}

	if a.IsScheduled() {
		t.Fatal("alarm bound to unregistered queue should be canceled")
	}
}
