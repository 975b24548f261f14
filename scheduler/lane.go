package scheduler

import (
	"sync"

	"github.com/lsst/qserv-sub022/queue"
)

// LaneName identifies one of the fixed named schedulers.
type LaneName string

const (
	VeryHigh LaneName = "very-high"
	High     LaneName = "high"
	Normal   LaneName = "normal"
	Low      LaneName = "low"
	Snail    LaneName = "snail"
)

// ranks orders the lanes from most to least preferred. Blend always
// drains a higher-ranked lane before even looking at a lower one.
var ranks = []LaneName{VeryHigh, High, Normal, Low, Snail}

// LaneConfig holds one lane's capacity (max concurrently running
// tasks; zero means unbounded) and its per-chunk time budget in
// minutes, used by the examiner to derive an expected ceiling.
type LaneConfig struct {
	Capacity       int
	MaxTimeMinutes float64
}

// lane is one named scheduler: a FIFO of not-yet-running tasks plus
// the set of tasks it currently accounts as running.
type lane struct {
	name LaneName
	cfg  LaneConfig

	mu      sync.Mutex
	pending *queue.Priority[*Task]
	running map[string]*Task
}

func newLane(name LaneName, cfg LaneConfig) *lane {
	return &lane{
		name:    name,
		cfg:     cfg,
		pending: queue.New[*Task](),
		running: make(map[string]*Task),
	}
}

func (l *lane) push(t *Task) {
	l.mu.Lock()
	defer l.mu.Unlock()
	t.lane = l.name
	l.pending.PushBack(0, t)
}

// pop removes and returns the next pending task, provided the lane has
// spare running capacity.
func (l *lane) pop() (*Task, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.cfg.Capacity > 0 && len(l.running) >= l.cfg.Capacity {
		return nil, false
	}
	t, ok := l.pending.Front()
	if !ok {
		return nil, false
	}
	l.running[t.ID()] = t
	return t, true
}

// removeRunning drops id from the running set, freeing a slot. It
// reports whether id was present. The task's own goroutine, if any, is
// unaffected: the scheduler merely stops accounting for it.
func (l *lane) removeRunning(id string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.running[id]; !ok {
		return false
	}
	delete(l.running, id)
	return true
}

func (l *lane) runningTasks() []*Task {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]*Task, 0, len(l.running))
	for _, t := range l.running {
		out = append(out, t)
	}
	return out
}

func (l *lane) pendingLen() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.pending.Size()
}

// removeQuery implements the not-yet-running-first half of the
// task-removal contract for cancellation: drop every pending task of
// qid outright and mark every running task of qid as completed on this
// lane (freeing its slot without touching the task's own goroutine).
func (l *lane) removeQuery(qid string) (pendingRemoved, runningMarked int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	var kept []*Task
	for {
		t, ok := l.pending.Front()
		if !ok {
			break
		}
		if t.QueryID == qid {
			pendingRemoved++
			continue
		}
		kept = append(kept, t)
	}
	for _, t := range kept {
		l.pending.PushBack(0, t)
	}
	for id, t := range l.running {
		if t.QueryID == qid {
			delete(l.running, id)
			runningMarked++
		}
	}
	return
}

// removeQueryTasks behaves like removeQuery but returns the actual
// tasks removed instead of counts, so the caller can re-home them
// (used when moving a query's remaining work to the snail lane).
func (l *lane) removeQueryTasks(qid string) (pending []*Task, running []*Task) {
	l.mu.Lock()
	defer l.mu.Unlock()
	var kept []*Task
	for {
		t, ok := l.pending.Front()
		if !ok {
			break
		}
		if t.QueryID == qid {
			pending = append(pending, t)
			continue
		}
		kept = append(kept, t)
	}
	for _, t := range kept {
		l.pending.PushBack(0, t)
	}
	for id, t := range l.running {
		if t.QueryID == qid {
			running = append(running, t)
			delete(l.running, id)
		}
	}
	return
}

// adoptRunning directly installs t as running on this lane, used when
// a task already in flight is re-homed to snail without interrupting
// its goroutine.
func (l *lane) adoptRunning(t *Task) {
	l.mu.Lock()
	defer l.mu.Unlock()
	t.lane = l.name
	l.running[t.ID()] = t
}
