// Package internal provides the concurrency plumbing shared by every
// exported package in this module: a start/stop Lifecycle guard used
// by the Controller, a repeating TimerTask used by the
// query-statistics reaper and the scheduler's examiner loop, a
// single-shot DeadlineTimer used by the request state machine's
// expiration and adaptive-polling timers, an EventLoop that Controller
// and messenger.Pool post completion callbacks through, and
// DoneChan/DoneFunc, the small vocabulary those building blocks use to
// signal shutdown completion.
//
// None of these types are specific to replication, queries, or any
// other domain concept in this module; they exist so that each
// domain package can implement its own lifecycle without re-deriving
// goroutine bookkeeping.
package internal
