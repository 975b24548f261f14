// Package qdisp implements components I and J: the czar-side
// chunk-query dispatcher (ChunkQuery, one instance per chunk of one
// user query) and the streaming, pull-based result-ingestion protocol
// that drives it (QueryRequest, one instance per user query).
//
// ChunkQuery is a small state machine of its own
// (WRITE_QUEUE..COMPLETE/ABORTED/CORRUPT) rather than an instance of
// request.Base: its states describe a single chunk's wire round trip,
// not the generic CREATED/IN_PROGRESS/FINISHED shape request.Base
// models. QueryRequest, by contrast, embeds request.Base and supplies
// request.Hooks, so a whole query's retry budget, cancellation and
// expiration bookkeeping reuse the same machinery as the replica
// operations in the root package.
//
// The pull-based ask/flush loop is grounded on the teacher's
// Worker.handleOrExtend pattern (a result channel raced against a
// periodic timer), generalized here to a priority-ordered command pump
// so interactive queries preempt large-result ones.
package qdisp
