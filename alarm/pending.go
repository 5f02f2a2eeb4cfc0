package alarm

import "container/heap"

// pendingList is the deadline-ordered container of currently-armed alarms,
// implemented as a container/heap min-heap so front-detection,
// arbitrary-element removal, and insertion all stay O(log n). Ties on
// deadline are broken by insertion sequence, preserving FIFO order among
// equal-deadline alarms.
type pendingList struct {
	items   []*Alarm
	nextSeq int64
}

func newPendingList() *pendingList {
	return &pendingList{}
}

func (p *pendingList) Len() int { return len(p.items) }

func (p *pendingList) Less(i, j int) bool {
	if p.items[i].deadlineMs != p.items[j].deadlineMs {
		return p.items[i].deadlineMs < p.items[j].deadlineMs
	}
	return p.items[i].seq < p.items[j].seq
}

func (p *pendingList) Swap(i, j int) {
	p.items[i], p.items[j] = p.items[j], p.items[i]
	p.items[i].heapIndex = i
	p.items[j].heapIndex = j
}

func (p *pendingList) Push(x any) {
	a := x.(*Alarm)
	a.heapIndex = len(p.items)
	p.items = append(p.items, a)
}

func (p *pendingList) Pop() any {
	old := p.items
	n := len(old)
	a := old[n-1]
	old[n-1] = nil
	a.heapIndex = -1
	p.items = old[:n-1]
	return a
}

// Insert arms a into the pending list at its current a.deadlineMs.
func (p *pendingList) Insert(a *Alarm) {
	a.seq = p.nextSeq
	p.nextSeq++
	heap.Push(p, a)
}

// Remove removes a from the pending list if present. Returns true if a was
// found and removed.
func (p *pendingList) Remove(a *Alarm) bool {
	if a.heapIndex < 0 || a.heapIndex >= len(p.items) || p.items[a.heapIndex] != a {
		return false
	}
	heap.Remove(p, a.heapIndex)
	return true
}

// Front returns the earliest-deadline alarm, or nil if the list is empty.
func (p *pendingList) Front() *Alarm {
	if len(p.items) == 0 {
		return nil
	}
	return p.items[0]
}

// PopFront removes and returns the earliest-deadline alarm.
func (p *pendingList) PopFront() *Alarm {
	return heap.Pop(p).(*Alarm)
}

// Empty reports whether the list has no armed alarms.
func (p *pendingList) Empty() bool {
	return len(p.items) == 0
}
