// Package messenger implements component C: one Conn multiplexes
// framed requests over a single persistent connection to a worker,
// reconnecting on failure, and Pool holds one Conn per worker name.
//
// # Scheduling model
//
// Each Conn runs a single-threaded cooperative loop on its own
// goroutine: requests are popped from a priority queue.Priority one at
// a time, and the loop suspends at every I/O operation (dial, write,
// read). Only one request is ever in flight per connection, which is
// what makes "requests within the same priority lane of a Messenger
// are sent in FIFO order" hold trivially.
//
// # State machine
//
// A Conn moves INITIAL -> CONNECTING (on the first send attempt) ->
// COMMUNICATING (once connected) -> INITIAL (on any transport error).
// The transition back to INITIAL cancels in-flight I/O but does not
// notify the caller: the request stays queued and is retried once the
// connection is reestablished, after a jpillora/backoff-governed
// reconnect delay.
//
// # Cancellation
//
// Cancel(id) removes a queued request outright. If id is the request
// currently in flight, the connector aborts the I/O (closing the
// stream) and does not requeue it; the caller's own bookkeeping (the
// controller's request registry) is responsible for cleaning it up.
package messenger
