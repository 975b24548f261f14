// Package registry implements component F: the cluster service
// registry HTTP endpoint workers, czars, and controllers heartbeat
// into, plus the query-management control-plane fan-out endpoint.
//
// State holds three puzpuzpuz/xsync.MapOf maps (workers, czars,
// controllers), the same concurrent-map choice messenger.Pool makes
// for its per-worker connection table: registration traffic from a
// large cluster should not funnel through one lock. Each entry applies
// the §4.6 merge-under-replication/qserv contract: security-context
// keys are stripped, the sender IP and a millisecond timestamp are
// stamped, and only the touched fields are overwritten.
//
// Service wires the route table with github.com/julienschmidt/httprouter,
// following the handler-per-route style exercised in the pack's
// httprouter usages. QueryFanout implements the POST /query
// control-plane endpoint, dispatching a QueryManagement message to
// every registered worker through a messenger.Pool and aggregating the
// per-worker outcome.
package registry
