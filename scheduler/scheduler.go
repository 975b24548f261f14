package scheduler

import (
	"context"
	"log/slog"
	"time"

	"github.com/lsst/qserv-sub022/stats"
)

// Scheduler is the worker-side façade over a Blend and its Examiner,
// keeping query and chunk statistics in sync with lane pops and
// completions so the examiner always has fresh evidence to boot on.
type Scheduler struct {
	Blend    *Blend
	Examiner *Examiner
	Stats    *stats.Tracker
}

// New builds a Scheduler with all five lanes, a fresh stats.Tracker,
// and an examiner wired to it.
func New(laneCfg Config, statsCfg stats.Config, examinerCfg ExaminerConfig, log *slog.Logger) *Scheduler {
	tracker := stats.New(statsCfg)
	blend := NewBlend(laneCfg, log)
	examiner := NewExaminer(blend, tracker, examinerCfg)
	return &Scheduler{Blend: blend, Examiner: examiner, Stats: tracker}
}

// Start begins the stats reaper and the examiner loop.
func (s *Scheduler) Start(ctx context.Context) {
	s.Stats.StartReaper(ctx)
	s.Examiner.Start(ctx)
}

// Stop halts the examiner loop and the stats reaper.
func (s *Scheduler) Stop() {
	s.Examiner.Stop()
	s.Stats.StopReaper()
}

// Push enqueues t on the lane selected by its hint and registers one
// more queued task against its query.
func (s *Scheduler) Push(t *Task) {
	s.Stats.QueryQueued(t.QueryID, 1)
	s.Blend.Push(t)
}

// Pop hands the next task to a worker thread, recording the
// queued->running transition.
func (s *Scheduler) Pop() (*Task, bool) {
	t, ok := s.Blend.Pop()
	if !ok {
		return nil, false
	}
	s.Stats.QueryTaskStarted(t.QueryID)
	return t, true
}

// Complete records that t finished after running for d, updating both
// the lane's running accounting and the per-query/per-(table,chunk)
// statistics the examiner relies on. Once every task of the query has
// completed, its snail-escalation bookkeeping is cleared.
func (s *Scheduler) Complete(t *Task, d time.Duration) {
	s.Blend.Complete(t)
	s.Stats.TaskCompleted(t.Table, t.Chunk, d)
	s.Stats.QueryTaskFinished(t.QueryID, d)
	if q, ok := s.Stats.Query(t.QueryID); ok && q.MostlyDead() {
		s.Examiner.forget(t.QueryID)
	}
}

// RemoveQuery cancels all of qid's remaining work, per the
// removeQueryFrom(qid, sched?) contract, and clears its
// snail-escalation bookkeeping.
func (s *Scheduler) RemoveQuery(qid string, sched LaneName) (pendingRemoved, runningMarked int) {
	pendingRemoved, runningMarked = s.Blend.RemoveQuery(qid, sched)
	s.Examiner.forget(qid)
	return
}
