// Package stats implements component H: per-query and
// per-chunk/per-table runtime accounting that drives the worker task
// scheduler's (package scheduler) demotion decisions.
//
// Tracker keeps two maps: one from user-query id to submission/
// completion counters (used to decide when a query is "mostly dead"
// and, after a grace period with no further activity, fully "dead" and
// evictable), and one from chunk id to a per-scan-table rolling
// average completion time (used by the scheduler's examiner to derive
// an expected time ceiling for a still-running task).
//
// The reaper that evicts dead queries is grounded on the teacher's
// CleanWorker/Cleaner pair: a TimerTask-driven background pass that
// deletes entries meeting an age/status predicate, generalized here
// from "terminal job older than X" to "query mostly-dead for longer
// than the grace period, with no further touches".
package stats
