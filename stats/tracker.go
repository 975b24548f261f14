package stats

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/lsst/qserv-sub022/internal"
)

// MinEvidence is the minimum number of completed-task observations a
// (table, chunk) pair must have before its rolling average is
// considered valid evidence for the examiner's booting decision.
const MinEvidence = 3

// Config configures a Tracker.
type Config struct {
	// GracePeriod is how long a "mostly dead" query must go untouched
	// before it is evicted from the tracker entirely.
	GracePeriod time.Duration
	// ReapInterval is how often the reaper sweeps for mostly-dead
	// queries past their grace period. Zero disables the background
	// reaper; Reap can still be called directly (e.g. from tests).
	ReapInterval time.Duration
	Log          *slog.Logger
}

// Tracker implements component H. It is safe for concurrent use.
type Tracker struct {
	mu sync.Mutex

	queries   map[string]*QueryStats
	deadSince map[string]time.Time

	chunks map[int]map[string]*tableStat

	cfg  Config
	task internal.TimerTask
}

// New creates an empty Tracker.
func New(cfg Config) *Tracker {
	if cfg.GracePeriod <= 0 {
		cfg.GracePeriod = time.Minute
	}
	return &Tracker{
		queries:   make(map[string]*QueryStats),
		deadSince: make(map[string]time.Time),
		chunks:    make(map[int]map[string]*tableStat),
		cfg:       cfg,
	}
}

// StartReaper begins the periodic mostly-dead -> dead -> removed sweep.
// It is a no-op if ReapInterval was zero.
func (t *Tracker) StartReaper(ctx context.Context) {
	if t.cfg.ReapInterval <= 0 {
		return
	}
	t.task.Start(ctx, func(context.Context) { t.Reap() }, t.cfg.ReapInterval)
}

// StopReaper stops the background reaper and waits for it to exit.
func (t *Tracker) StopReaper() {
	<-t.task.Stop()
}

func (t *Tracker) queryLocked(id string) *QueryStats {
	q, ok := t.queries[id]
	if !ok {
		q = &QueryStats{ID: id, SubmittedAt: time.Now()}
		t.queries[id] = q
	}
	return q
}

// QueryQueued registers size tasks for query id as queued, creating the
// entry if this is the first time id has been seen.
func (t *Tracker) QueryQueued(id string, size int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	q := t.queryLocked(id)
	q.Size += size
	q.Queued += size
	q.TouchedAt = time.Now()
	delete(t.deadSince, id)
}

// QueryTaskStarted records that one queued task of id transitioned to
// running.
func (t *Tracker) QueryTaskStarted(id string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	q := t.queryLocked(id)
	if q.Queued > 0 {
		q.Queued--
	}
	q.Running++
	q.TouchedAt = time.Now()
}

// QueryTaskFinished records that one running task of id completed,
// contributing its runtime to the query's cumulative minutes.
func (t *Tracker) QueryTaskFinished(id string, runtime time.Duration) {
	t.mu.Lock()
	defer t.mu.Unlock()
	q := t.queryLocked(id)
	if q.Running > 0 {
		q.Running--
	}
	q.Completed++
	q.Minutes += runtime.Minutes()
	q.TouchedAt = time.Now()
	if q.MostlyDead() {
		t.deadSince[id] = time.Now()
	} else {
		delete(t.deadSince, id)
	}
}

// QueryBooted increments the boot counter for id and returns its new
// value.
func (t *Tracker) QueryBooted(id string) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	q := t.queryLocked(id)
	q.Booted++
	q.IsBooted = true
	q.TouchedAt = time.Now()
	return q.Booted
}

// Query returns a snapshot of id's counters, or (zero value, false) if
// unknown.
func (t *Tracker) Query(id string) (QueryStats, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	q, ok := t.queries[id]
	if !ok {
		return QueryStats{}, false
	}
	return *q, true
}

// TaskCompleted feeds one completed task's runtime into the
// (chunk, table) rolling average.
func (t *Tracker) TaskCompleted(table string, chunk int, d time.Duration) {
	t.mu.Lock()
	defer t.mu.Unlock()
	byTable, ok := t.chunks[chunk]
	if !ok {
		byTable = make(map[string]*tableStat)
		t.chunks[chunk] = byTable
	}
	st, ok := byTable[table]
	if !ok {
		st = &tableStat{}
		byTable[table] = st
	}
	st.observe(d)
}

// ChunkFraction computes, for (table, chunk), the fraction of that
// table's total average completion time which chunk represents: per
// §4.7, "the sum of its (chunk) average times" across the table,
// divided into chunk's own average. valid is false if there is not yet
// MinEvidence worth of completed-task observations for this
// (table, chunk) pair.
func (t *Tracker) ChunkFraction(table string, chunk int) (fraction float64, valid bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	st, ok := t.chunks[chunk][table]
	if !ok || st.completed < MinEvidence {
		return 0, false
	}

	total := 0.0
	for _, byTable := range t.chunks {
		if s, ok := byTable[table]; ok {
			total += s.avgSeconds
		}
	}
	if total <= 0 {
		return 0, false
	}
	return st.avgSeconds / total, true
}

// Reap moves queries that have been mostly-dead for longer than
// GracePeriod out of the tracker entirely, and advances deadSince
// bookkeeping for queries newly mostly-dead. It is exported so tests
// and callers with their own scheduling can drive it without a
// background goroutine.
func (t *Tracker) Reap() {
	t.mu.Lock()
	defer t.mu.Unlock()
	now := time.Now()
	for id, q := range t.queries {
		if q.MostlyDead() {
			if _, staged := t.deadSince[id]; !staged {
				t.deadSince[id] = now
			}
		}
	}
	for id, since := range t.deadSince {
		if now.Sub(since) >= t.cfg.GracePeriod {
			delete(t.queries, id)
			delete(t.deadSince, id)
		}
	}
}
