// Package scheduler implements component G, the worker-side task
// scheduler: a set of named lanes (very-high, high, normal, low,
// snail), each with its own capacity and per-chunk time budget, fed
// from a stream of tasks tagged with a scheduling hint, plus an
// examiner loop that demotes tasks running far longer than their
// table's observed chunk-time distribution predicts.
//
// Lane/Blend generalize the teacher's Puller/Worker lease-and-pull
// model: where the teacher pulls jobs from durable storage with a
// visibility timeout, Blend pops in-memory Tasks from whichever named
// lane ranks highest and still has capacity. Examiner plays the role
// of the teacher's CleanWorker — a TimerTask-driven periodic pass —
// but instead of deleting terminal rows it demotes or boots
// long-running tasks using per-(table,chunk) statistics from the
// stats package.
package scheduler
