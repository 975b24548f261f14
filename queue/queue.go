package queue

import "container/list"

// Entry is the minimal contract required of a value stored in a
// Priority queue: a stable identifier used by Find and Remove.
// Uniqueness of ids across lanes is the caller's obligation.
type Entry interface {
	ID() string
}

// Priority is a priority/FIFO queue: a mapping from priority to a FIFO
// lane of entries. Higher integer priorities are served first; within
// a lane, entries are served in insertion order.
type Priority[T Entry] struct {
	lanes  map[int]*list.List
	maxSet bool
	max    int
}

// New returns an empty Priority queue.
func New[T Entry]() *Priority[T] {
	return &Priority[T]{lanes: make(map[int]*list.List)}
}

// PushBack appends e to the back of its priority lane.
func (q *Priority[T]) PushBack(priority int, e T) {
	q.laneFor(priority).PushBack(e)
	q.noteActive(priority)
}

// PushFront inserts e at the front of its priority lane, ahead of
// anything already queued at that priority (used to re-queue an
// in-flight request after a transient failure without losing its
// place relative to requests that have not yet been attempted).
func (q *Priority[T]) PushFront(priority int, e T) {
	q.laneFor(priority).PushFront(e)
	q.noteActive(priority)
}

func (q *Priority[T]) laneFor(priority int) *list.List {
	l, ok := q.lanes[priority]
	if !ok {
		l = list.New()
		q.lanes[priority] = l
	}
	return l
}

func (q *Priority[T]) noteActive(priority int) {
	if !q.maxSet || priority > q.max {
		q.max = priority
		q.maxSet = true
	}
}

// Front removes and returns the front entry of the highest-priority
// non-empty lane. It returns the zero value and false if the queue is
// empty.
func (q *Priority[T]) Front() (T, bool) {
	var zero T
	if !q.maxSet {
		return zero, false
	}
	l, ok := q.lanes[q.max]
	if !ok || l.Len() == 0 {
		q.recomputeMax()
		if !q.maxSet {
			return zero, false
		}
		l = q.lanes[q.max]
	}
	front := l.Remove(l.Front()).(T)
	if l.Len() == 0 {
		q.recomputeMax()
	}
	return front, true
}

// recomputeMax scans the known lanes for the highest priority that
// still holds entries. Called only when the cached max lane has been
// drained, so its cost is amortized against however many entries were
// just served from that lane.
func (q *Priority[T]) recomputeMax() {
	q.maxSet = false
	for p, l := range q.lanes {
		if l.Len() == 0 {
			continue
		}
		if !q.maxSet || p > q.max {
			q.max = p
			q.maxSet = true
		}
	}
}

// Find returns the entry with the given id without removing it, or the
// zero value and false if no entry matches. Find is O(n) across all
// lanes and is intended only for cancellation paths.
func (q *Priority[T]) Find(id string) (T, bool) {
	var zero T
	for _, l := range q.lanes {
		for e := l.Front(); e != nil; e = e.Next() {
			if v := e.Value.(T); v.ID() == id {
				return v, true
			}
		}
	}
	return zero, false
}

// Remove deletes the entry with the given id from whichever lane holds
// it. It reports whether an entry was removed.
func (q *Priority[T]) Remove(id string) bool {
	for p, l := range q.lanes {
		for e := l.Front(); e != nil; e = e.Next() {
			if v := e.Value.(T); v.ID() == id {
				l.Remove(e)
				if l.Len() == 0 && q.maxSet && q.max == p {
					q.recomputeMax()
				}
				return true
			}
		}
	}
	return false
}

// Size returns the total number of entries across all lanes.
func (q *Priority[T]) Size() int {
	n := 0
	for _, l := range q.lanes {
		n += l.Len()
	}
	return n
}

// Empty reports whether the queue holds no entries.
func (q *Priority[T]) Empty() bool {
	return q.Size() == 0
}
