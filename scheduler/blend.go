package scheduler

import (
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"
)

// Config maps each named lane to its configuration. A lane absent
// from Config runs with an unbounded capacity and no time budget
// (the examiner never boots tasks from it).
type Config map[LaneName]LaneConfig

// Blend multiplexes the five named lanes by fixed rank order:
// very-high drains completely before high is even considered, and so
// on down to snail.
type Blend struct {
	lanes map[LaneName]*lane
	log   *slog.Logger
}

// NewBlend builds a Blend with all five lanes present, configured
// from cfg (missing entries get the zero LaneConfig).
func NewBlend(cfg Config, log *slog.Logger) *Blend {
	b := &Blend{lanes: make(map[LaneName]*lane, len(ranks)), log: log}
	for _, name := range ranks {
		b.lanes[name] = newLane(name, cfg[name])
	}
	return b
}

func hintLane(h Hint) LaneName {
	switch h {
	case HintInteractive:
		return VeryHigh
	case HintLow:
		return Low
	case HintSnail:
		return Snail
	default:
		return Normal
	}
}

// Push submits t to the lane selected by its hint.
func (b *Blend) Push(t *Task) {
	b.lanes[hintLane(t.Hint)].push(t)
}

// Pop returns the next task to hand to a worker thread. Lanes are
// drained in fixed rank order, so a higher lane with pending capacity
// always wins over a lower one, regardless of arrival order.
func (b *Blend) Pop() (*Task, bool) {
	for _, name := range ranks {
		if t, ok := b.lanes[name].pop(); ok {
			t.startedAt = time.Now()
			return t, true
		}
	}
	return nil, false
}

// Complete marks t as no longer running on its current lane, freeing
// a capacity slot.
func (b *Blend) Complete(t *Task) {
	b.lanes[t.lane].removeRunning(t.ID())
}

// RemoveQuery implements the removeQueryFrom(qid, sched?) contract:
// not-yet-running tasks of qid are dropped outright, running tasks are
// marked completed on their scheduler (freeing their slot) without
// touching whatever goroutine is already executing them. If sched is
// empty, every lane is swept.
func (b *Blend) RemoveQuery(qid string, sched LaneName) (pendingRemoved, runningMarked int) {
	names := ranks
	if sched != "" {
		names = []LaneName{sched}
	}
	for _, name := range names {
		p, r := b.lanes[name].removeQuery(qid)
		pendingRemoved += p
		runningMarked += r
	}
	return
}

// MoveQueryToSnail re-homes every remaining task of qid (pending and
// running) into the snail lane. Each source lane is drained on its own
// goroutine; a source lane's lock is released before the snail lane's
// is taken, so no two lane locks are ever held at once.
func (b *Blend) MoveQueryToSnail(qid string) {
	snail := b.lanes[Snail]
	var eg errgroup.Group
	for _, name := range ranks {
		if name == Snail {
			continue
		}
		name := name
		eg.Go(func() error {
			pending, running := b.lanes[name].removeQueryTasks(qid)
			for _, t := range pending {
				t.lane = Snail
				snail.push(t)
			}
			for _, t := range running {
				snail.adoptRunning(t)
			}
			return nil
		})
	}
	_ = eg.Wait()
}

// Pending reports how many tasks are queued (not yet running) on the
// named lane.
func (b *Blend) Pending(name LaneName) int {
	return b.lanes[name].pendingLen()
}
