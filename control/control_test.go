package control

import (
	"testing"
	"time"
)

func TestConfigStoreSnapshotIsolation(t *testing.T) {
	cs := NewConfigStore()
	cs.SetConfig(map[string]any{"k": 1})

	snap := cs.GetSnapshot()
	snap["k"] = 2

	if got := cs.GetSnapshot()["k"]; got != 1 {
		t.Fatalf("snapshot mutation leaked into store: %v", got)
	}
}

func TestConfigStoreReloadListener(t *testing.T) {
	cs := NewConfigStore()
	notified := make(chan struct{}, 1)
	cs.OnReload(func() {
		select {
		case notified <- struct{}{}:
		default:
		}
	})

	cs.SetConfig(map[string]any{"threshold": int64(500)})

	select {
	case <-notified:
	case <-time.After(2 * time.Second):
		t.Fatal("reload listener not invoked")
	}
}

func TestMetricsRegistryInc(t *testing.T) {
	mr := NewMetricsRegistry()
	if got := mr.Inc("fired", 1); got != 1 {
		t.Fatalf("first Inc = %d, want 1", got)
	}
	if got := mr.Inc("fired", 2); got != 3 {
		t.Fatalf("second Inc = %d, want 3", got)
	}
	if got := mr.GetSnapshot()["fired"]; got != int64(3) {
		t.Fatalf("snapshot fired = %v, want 3", got)
	}
}

func TestDebugProbesDumpState(t *testing.T) {
	dp := NewDebugProbes()
	dp.RegisterProbe("answer", func() any { return 42 })

	out := dp.DumpState()
	if out["answer"] != 42 {
		t.Fatalf("probe output = %v, want 42", out["answer"])
	}
}
