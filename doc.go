// Package qserv provides the Controller façade (component E): the
// typed entry point replication and ingest callers use to drive
// per-worker operations (replicate, delete-replica, find-replica,
// find-all-replicas, stop-*, status-*, service-{suspend, resume,
// status, requests, drain}).
//
// # Overview
//
// Controller owns a registry of in-flight requests keyed by id, a
// messenger.Pool dispatching to the worker fleet, and a background
// internal.EventLoop every request's completion notification runs on.
// Each typed constructor in requests.go builds a request.Base wired to
// an operation (this package's request.Hooks implementation), inserts
// it into the registry, starts it, and returns its id; Controller.finish
// removes the entry and invokes the caller's callback once the request
// reaches FINISHED.
//
// # Lifecycle
//
// A request inside the controller follows: create -> insert in
// registry -> start (arms the expiration timer) -> on completion,
// remove from registry and notify upstream. Controller.finish performs
// this removal under its own lock, then releases the lock before
// invoking the callback, so a callback that calls back into the
// controller (to issue a follow-up request, say) cannot deadlock on
// the registry mutex.
//
// Stop resets the messenger pool and the event loop, then asserts the
// registry is empty; a non-empty registry at stop time is a logic
// error surfaced as a returned error rather than a panic.
package qserv
