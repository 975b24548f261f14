// Package queue implements the priority/FIFO message queue used by the
// messenger to hold pending per-worker requests, and by the worker task
// scheduler to hold pending scan-lane tasks.
//
// A Priority[T] is a mapping from an integer priority to a FIFO list of
// T. Insertion is O(1) per lane. Front removes and returns the front of
// the highest-priority non-empty lane, breaking ties strictly by FIFO
// order within that lane; implementations are free to cache the
// highest non-empty lane to keep the common path O(1), which is what
// this implementation does.
//
// Priority is not safe for concurrent use; callers lock around it
// (the messenger locks per-connection, the scheduler locks per-lane).
package queue
