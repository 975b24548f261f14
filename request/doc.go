// Package request implements the per-operation request state machine
// (component D of the design): a Request progresses
// CREATED -> IN_PROGRESS -> FINISHED, optionally polling the worker at
// an adaptively growing interval while in progress, and always
// finishing with an ExtendedState that explains why.
//
// Base is embedded by the typed requests the root package constructs
// (Replicate, DeleteReplica, FindReplica, ...) and by qdisp's
// QueryRequest where a comparable lifecycle applies. Base owns
// nothing about the wire protocol or the worker connection; it is
// driven by Hooks supplied by the embedder and by ReportWorkerStatus calls
// fed in by whatever transport (messenger.Pool) carries the request.
package request
