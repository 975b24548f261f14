package scheduler

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/lsst/qserv-sub022/internal"
	"github.com/lsst/qserv-sub022/stats"
)

// CancelFunc is invoked when a query that is already running entirely
// in the snail lane boots again, surfacing the upstream cancellation
// signal described in §4.7.
type CancelFunc func(queryID string)

// ExaminerConfig configures the examiner loop.
type ExaminerConfig struct {
	// Interval is how often the examiner ticks. Zero disables it.
	Interval time.Duration
	// BootThreshold is the number of boots a query accumulates before
	// its remaining tasks are moved to the snail lane.
	BootThreshold int
	OnCancel      CancelFunc
	Log           *slog.Logger
}

// Examiner periodically reviews every lane's running tasks against the
// per-(table,chunk) statistics in a stats.Tracker and boots tasks that
// are running far past their expected ceiling.
type Examiner struct {
	blend  *Blend
	stats  *stats.Tracker
	cfg    ExaminerConfig
	task   internal.TimerTask
	mu     sync.Mutex
	snailed map[string]bool
}

// NewExaminer builds an Examiner over blend, consulting tracker for
// per-(table,chunk) timing evidence.
func NewExaminer(blend *Blend, tracker *stats.Tracker, cfg ExaminerConfig) *Examiner {
	return &Examiner{
		blend:   blend,
		stats:   tracker,
		cfg:     cfg,
		snailed: make(map[string]bool),
	}
}

// Start begins the periodic examination loop. It is a no-op if
// Interval is zero or non-positive.
func (e *Examiner) Start(ctx context.Context) {
	if e.cfg.Interval <= 0 {
		return
	}
	e.task.Start(ctx, func(context.Context) { e.tick() }, e.cfg.Interval)
}

// Stop halts the examination loop and waits for it to exit.
func (e *Examiner) Stop() {
	<-e.task.Stop()
}

// Tick runs one examination pass synchronously, outside of Start's
// periodic loop. Exported so callers (and tests) can drive the
// examiner deterministically instead of waiting on Interval.
func (e *Examiner) Tick() {
	e.tick()
}

func (e *Examiner) tick() {
	var eg errgroup.Group
	for _, name := range ranks {
		name := name
		eg.Go(func() error {
			e.examineLane(name)
			return nil
		})
	}
	_ = eg.Wait()
}

func (e *Examiner) examineLane(name LaneName) {
	l := e.blend.lanes[name]
	if l.cfg.MaxTimeMinutes <= 0 {
		return
	}
	for _, t := range l.runningTasks() {
		fraction, valid := e.stats.ChunkFraction(t.Table, t.Chunk)
		if !valid {
			continue
		}
		ceiling := fraction * l.cfg.MaxTimeMinutes
		if t.Elapsed().Minutes() > ceiling {
			e.boot(name, t)
		}
	}
}

// boot implements §4.7's Booting step: the task is removed from its
// current lane's accounting (its goroutine keeps running), the
// query's boot counter advances, and if the counter crosses the
// configured threshold every remaining task of that query, the booted
// one included, moves to snail. A query already confined to snail that
// boots again surfaces OnCancel instead of moving anything further.
func (e *Examiner) boot(from LaneName, t *Task) {
	if !e.blend.lanes[from].removeRunning(t.ID()) {
		return
	}
	n := e.stats.QueryBooted(t.QueryID)
	if e.cfg.BootThreshold <= 0 || n < e.cfg.BootThreshold {
		return
	}

	e.mu.Lock()
	alreadySnail := e.snailed[t.QueryID]
	e.snailed[t.QueryID] = true
	e.mu.Unlock()

	if alreadySnail {
		if e.cfg.OnCancel != nil {
			e.cfg.OnCancel(t.QueryID)
		}
		return
	}
	e.blend.MoveQueryToSnail(t.QueryID)
	e.blend.lanes[Snail].adoptRunning(t)
}

// forget drops a query's snail-escalation bookkeeping, called once the
// query finishes or is cancelled so a later query reusing the same id
// is not born half-escalated.
func (e *Examiner) forget(queryID string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.snailed, queryID)
}
