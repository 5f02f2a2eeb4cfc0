package queue

import "testing"

func TestFIFOOrder(t *testing.T) {
	q := New()
	for i := 0; i < 5; i++ {
		q.Enqueue(i)
	}
	for i := 0; i < 5; i++ {
		v, ok := q.TryDequeue()
		if !ok || v.(int) != i {
			t.Fatalf("dequeue %d: got %v ok=%v", i, v, ok)
		}
	}
	if _, ok := q.TryDequeue(); ok {
		t.Fatal("dequeue from empty queue succeeded")
	}
}

func TestTryRemoveFromQueuePreservesOrder(t *testing.T) {
	q := New()
	for i := 0; i < 6; i++ {
		q.Enqueue(i)
	}

	removed := q.TryRemoveFromQueue(func(item any) bool {
		return item.(int)%2 == 1
	})
	if removed != 3 {
		t.Fatalf("removed = %d, want 3", removed)
	}
	if q.Len() != 3 {
		t.Fatalf("len = %d, want 3", q.Len())
	}
	for _, want := range []int{0, 2, 4} {
		v, ok := q.TryDequeue()
		if !ok || v.(int) != want {
			t.Fatalf("got %v, want %d", v, want)
		}
	}
}

func TestTryRemoveFromQueueNoMatch(t *testing.T) {
	q := New()
	q.Enqueue("a")
	if removed := q.TryRemoveFromQueue(func(any) bool { return false }); removed != 0 {
		t.Fatalf("removed = %d, want 0", removed)
	}
	if q.Len() != 1 {
		t.Fatalf("len = %d, want 1", q.Len())
	}
}

func TestOnReadySignalsEnqueue(t *testing.T) {
	q := New()
	ready := make(chan struct{}, 4)
	q.OnReady(func() {
		select {
		case ready <- struct{}{}:
		default:
		}
	})

	q.Enqueue(1)
	select {
	case <-ready:
	default:
		t.Fatal("sink not invoked on enqueue")
	}
}

func TestOnReadyFiresImmediatelyForBacklog(t *testing.T) {
	q := New()
	q.Enqueue(1)

	fired := false
	q.OnReady(func() { fired = true })
	if !fired {
		t.Fatal("sink not invoked for pre-existing backlog")
	}
}
