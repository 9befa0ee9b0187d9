package sim

import "container/heap"

// TaskID identifies a scheduled callback
type TaskID uint64

type task struct {
	id   TaskID
	due  uint64
	key  string
	fn   func()
	dead bool
}

type taskHeap []*task

func (h taskHeap) Len() int { return len(h) }
func (h taskHeap) Less(i, j int) bool {
	if h[i].due != h[j].due {
		return h[i].due < h[j].due
	}
	return h[i].id < h[j].id
}
func (h taskHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }
func (h *taskHeap) Push(x any)   { *h = append(*h, x.(*task)) }
func (h *taskHeap) Pop() any {
	old := *h
	n := len(old)
	t := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return t
}

// Scheduler runs deferred callbacks on a future tick. Callbacks run inside
// Advance, on the caller's goroutine, in (tick, insertion) order.
type Scheduler struct {
	now   uint64
	seq   TaskID
	queue taskHeap
	byID  map[TaskID]*task
}

// NewScheduler creates an empty scheduler at tick 0
func NewScheduler() *Scheduler {
	return &Scheduler{byID: make(map[TaskID]*task)}
}

// Now returns the current tick
func (s *Scheduler) Now() uint64 { return s.now }

// After schedules fn to run ticks from now. key groups tasks for CancelKey.
func (s *Scheduler) After(ticks uint64, key string, fn func()) TaskID {
	s.seq++
	t := &task{id: s.seq, due: s.now + ticks, key: key, fn: fn}
	heap.Push(&s.queue, t)
	s.byID[t.id] = t
	return t.id
}

// Cancel drops a pending task and reports whether it was still pending
func (s *Scheduler) Cancel(id TaskID) bool {
	t, ok := s.byID[id]
	if !ok {
		return false
	}
	t.dead = true
	delete(s.byID, id)
	return true
}

// CancelKey drops every pending task scheduled under key
func (s *Scheduler) CancelKey(key string) int {
	n := 0
	for id, t := range s.byID {
		if t.key == key {
			t.dead = true
			delete(s.byID, id)
			n++
		}
	}
	return n
}

// Pending returns the number of live tasks
func (s *Scheduler) Pending() int { return len(s.byID) }

// Advance moves to the next tick and runs everything due
func (s *Scheduler) Advance() {
	s.now++
	for len(s.queue) > 0 && s.queue[0].due <= s.now {
		t := heap.Pop(&s.queue).(*task)
		if t.dead {
			continue
		}
		delete(s.byID, t.id)
		t.fn()
	}
}

// Clear drops every pending task
func (s *Scheduler) Clear() {
	s.queue = nil
	s.byID = make(map[TaskID]*task)
}
