package alarm

import (
	"math/rand"
	"testing"
)

func TestPendingListOrdersByDeadline(t *testing.T) {
	p := newPendingList()
	rng := rand.New(rand.NewSource(1))

	for i := 0; i < 200; i++ {
		a := &Alarm{heapIndex: -1, deadlineMs: int64(rng.Intn(1000))}
		p.Insert(a)
	}

	prev := int64(-1)
	for !p.Empty() {
		a := p.PopFront()
		if a.deadlineMs < prev {
			t.Fatalf("pop out of order: %d after %d", a.deadlineMs, prev)
		}
		prev = a.deadlineMs
	}
}

func TestPendingListEqualDeadlinesKeepInsertionOrder(t *testing.T) {
	p := newPendingList()

	first := &Alarm{name: "first", heapIndex: -1, deadlineMs: 100}
	second := &Alarm{name: "second", heapIndex: -1, deadlineMs: 100}
	third := &Alarm{name: "third", heapIndex: -1, deadlineMs: 100}
	p.Insert(first)
	p.Insert(second)
	p.Insert(third)

	for _, want := range []*Alarm{first, second, third} {
		if got := p.PopFront(); got != want {
			t.Fatalf("equal-deadline order: got %q, want %q", got.name, want.name)
		}
	}
}

func TestPendingListRemove(t *testing.T) {
	p := newPendingList()

	a := &Alarm{heapIndex: -1, deadlineMs: 50}
	b := &Alarm{heapIndex: -1, deadlineMs: 10}
	c := &Alarm{heapIndex: -1, deadlineMs: 90}
	p.Insert(a)
	p.Insert(b)
	p.Insert(c)

	if !p.Remove(a) {
		t.Fatal("Remove of present alarm returned false")
	}
	if p.Remove(a) {
		t.Fatal("second Remove of same alarm returned true")
	}
	if p.Len() != 2 {
		t.Fatalf("len after remove = %d, want 2", p.Len())
	}
	if p.Front() != b {
		t.Fatal("front should be the earliest remaining deadline")
	}
}
