package qserv

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/lsst/qserv-sub022/request"
)

// RequestOptions carries the call-site knobs common to every typed
// constructor below: which job groups the request for reporting, how
// long before it hard-expires, its dispatch priority, and the
// completion callback Controller.finish invokes once the request
// reaches FINISHED.
type RequestOptions struct {
	JobID      string
	Expiration time.Duration
	Priority   int
	Callback   func(request.Snapshot)
}

func (c *Controller) simpleRequest(ctx context.Context, kind, worker string, body map[string]any, keepTracking, disposeRequired, allowDuplicate bool, opts RequestOptions) (uuid.UUID, error) {
	return c.dispatch(ctx, dispatchConfig{
		Kind:            kind,
		Worker:          worker,
		JobID:           opts.JobID,
		Body:            body,
		Priority:        opts.Priority,
		Expiration:      opts.Expiration,
		KeepTracking:    keepTracking,
		DisposeRequired: disposeRequired,
		AllowDuplicate:  allowDuplicate,
		Callback:        opts.Callback,
	})
}

// Replicate creates REPLICA_CREATE{db, chunk, src} on worker "dst",
// instructing it to pull chunk from src. It keeps tracking the
// worker's QUEUED/IN_PROGRESS progression and allows duplicate-request
// folding, per §4.4.
func (c *Controller) Replicate(ctx context.Context, dst, db string, chunk int, src string, opts RequestOptions) (uuid.UUID, error) {
	body := map[string]any{"db": db, "chunk": chunk, "src": src}
	return c.simpleRequest(ctx, "REPLICA_CREATE", dst, body, true, true, true, opts)
}

// DeleteReplica creates REPLICA_DELETE{db, chunk} on worker.
func (c *Controller) DeleteReplica(ctx context.Context, worker, db string, chunk int, opts RequestOptions) (uuid.UUID, error) {
	body := map[string]any{"db": db, "chunk": chunk}
	return c.simpleRequest(ctx, "REPLICA_DELETE", worker, body, true, true, true, opts)
}

// FindReplica creates REPLICA_FIND{db, chunk} on worker, a one-shot
// inquiry that does not keep tracking after the initial reply.
func (c *Controller) FindReplica(ctx context.Context, worker, db string, chunk int, opts RequestOptions) (uuid.UUID, error) {
	body := map[string]any{"db": db, "chunk": chunk}
	return c.simpleRequest(ctx, "REPLICA_FIND", worker, body, false, false, false, opts)
}

// FindAllReplicas creates REPLICA_FIND_ALL{db} on worker, enumerating
// every chunk replica the worker currently holds for db.
func (c *Controller) FindAllReplicas(ctx context.Context, worker, db string, opts RequestOptions) (uuid.UUID, error) {
	body := map[string]any{"db": db}
	return c.simpleRequest(ctx, "REPLICA_FIND_ALL", worker, body, false, false, false, opts)
}

// StopReplicate requests cancellation, on the worker side, of an
// earlier REPLICA_CREATE identified by targetID.
func (c *Controller) StopReplicate(ctx context.Context, worker string, targetID uuid.UUID, opts RequestOptions) (uuid.UUID, error) {
	body := map[string]any{"target_id": targetID.String()}
	return c.simpleRequest(ctx, "STOP_REPLICA_CREATE", worker, body, true, false, false, opts)
}

// StopDeleteReplica requests cancellation of an earlier REPLICA_DELETE.
func (c *Controller) StopDeleteReplica(ctx context.Context, worker string, targetID uuid.UUID, opts RequestOptions) (uuid.UUID, error) {
	body := map[string]any{"target_id": targetID.String()}
	return c.simpleRequest(ctx, "STOP_REPLICA_DELETE", worker, body, true, false, false, opts)
}

// StopFindReplica requests cancellation of an earlier REPLICA_FIND.
func (c *Controller) StopFindReplica(ctx context.Context, worker string, targetID uuid.UUID, opts RequestOptions) (uuid.UUID, error) {
	body := map[string]any{"target_id": targetID.String()}
	return c.simpleRequest(ctx, "STOP_REPLICA_FIND", worker, body, false, false, false, opts)
}

// StatusReplicate polls the worker for the current status of an
// earlier REPLICA_CREATE identified by targetID.
func (c *Controller) StatusReplicate(ctx context.Context, worker string, targetID uuid.UUID, opts RequestOptions) (uuid.UUID, error) {
	body := map[string]any{"target_id": targetID.String()}
	return c.simpleRequest(ctx, "STATUS_REPLICA_CREATE", worker, body, false, false, false, opts)
}

// StatusDeleteReplica polls the worker for the current status of an
// earlier REPLICA_DELETE.
func (c *Controller) StatusDeleteReplica(ctx context.Context, worker string, targetID uuid.UUID, opts RequestOptions) (uuid.UUID, error) {
	body := map[string]any{"target_id": targetID.String()}
	return c.simpleRequest(ctx, "STATUS_REPLICA_DELETE", worker, body, false, false, false, opts)
}

// StatusFindReplica polls the worker for the current status of an
// earlier REPLICA_FIND.
func (c *Controller) StatusFindReplica(ctx context.Context, worker string, targetID uuid.UUID, opts RequestOptions) (uuid.UUID, error) {
	body := map[string]any{"target_id": targetID.String()}
	return c.simpleRequest(ctx, "STATUS_REPLICA_FIND", worker, body, false, false, false, opts)
}

// ServiceSuspend asks worker's scheduler to stop popping new tasks,
// letting in-flight ones drain.
func (c *Controller) ServiceSuspend(ctx context.Context, worker string, opts RequestOptions) (uuid.UUID, error) {
	return c.simpleRequest(ctx, "SERVICE_SUSPEND", worker, nil, false, false, false, opts)
}

// ServiceResume asks worker's scheduler to resume popping tasks after
// a ServiceSuspend.
func (c *Controller) ServiceResume(ctx context.Context, worker string, opts RequestOptions) (uuid.UUID, error) {
	return c.simpleRequest(ctx, "SERVICE_RESUME", worker, nil, false, false, false, opts)
}

// ServiceStatus queries worker's current scheduler state and queue
// depths.
func (c *Controller) ServiceStatus(ctx context.Context, worker string, opts RequestOptions) (uuid.UUID, error) {
	return c.simpleRequest(ctx, "SERVICE_STATUS", worker, nil, false, false, false, opts)
}

// ServiceRequests queries worker for the full list of tasks it is
// currently tracking, across every lane.
func (c *Controller) ServiceRequests(ctx context.Context, worker string, opts RequestOptions) (uuid.UUID, error) {
	return c.simpleRequest(ctx, "SERVICE_REQUESTS", worker, nil, false, false, false, opts)
}

// ServiceDrain asks worker to cancel every task it is currently
// tracking, across every lane, as part of a planned worker eviction.
func (c *Controller) ServiceDrain(ctx context.Context, worker string, opts RequestOptions) (uuid.UUID, error) {
	return c.simpleRequest(ctx, "SERVICE_DRAIN", worker, nil, true, false, false, opts)
}
