package qserv

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/lsst/qserv-sub022/messenger"
	"github.com/lsst/qserv-sub022/request"
	"github.com/lsst/qserv-sub022/wire"
)

// workerResponse is the wire shape every worker reply to a replication
// operation decodes into: a status tag, an optional duplicate-request
// id, an opaque result blob (e.g. replica_info on SUCCESS), and the
// raw status string for Snapshot.ServerStatus bookkeeping.
type workerResponse struct {
	Status      string            `msgpack:"status"`
	DuplicateOf string            `msgpack:"duplicate_of,omitempty"`
	Blob        []byte            `msgpack:"blob,omitempty"`
	Attrs       map[string]any    `msgpack:"attrs,omitempty"`
}

func (r workerResponse) workerStatus() (request.WorkerStatus, error) {
	switch r.Status {
	case "SUCCESS":
		return request.WorkerSuccess, nil
	case "QUEUED":
		return request.WorkerQueued, nil
	case "IN_PROGRESS":
		return request.WorkerInProgress, nil
	case "IS_CANCELLING":
		return request.WorkerIsCancelling, nil
	case "BAD":
		return request.WorkerBad, nil
	case "FAILED":
		return request.WorkerFailed, nil
	case "CANCELLED":
		return request.WorkerCancelled, nil
	default:
		return 0, fmt.Errorf("qserv: unrecognized worker status %q", r.Status)
	}
}

// persister is the subset of store.Store an operation needs, kept as
// an interface so Controller can be exercised without a real database.
type persister interface {
	Save(ctx context.Context, snap request.Snapshot, blob []byte) error
}

// operationConfig carries everything an operation needs to build its
// outbound message and interpret the worker's replies.
type operationConfig struct {
	Kind     string
	Worker   string
	Body     map[string]any
	Pool     *messenger.Pool
	Codec    wire.Codec
	Store    persister
	Log      *slog.Logger
	Priority int
}

// operation implements request.Hooks for every replication-protocol
// request kind (REPLICA_CREATE, REPLICA_DELETE, REPLICA_FIND,
// REPLICA_FIND_ALL, STOP_*, STATUS_*, SERVICE_*). The wire-level
// message differs only in Kind and Body; the lifecycle handling is
// identical, so one Hooks implementation serves every constructor in
// requests.go.
type operation struct {
	*request.Base
	cfg     operationConfig
	envID   string
	lastBlob []byte
}

func newOperation(cfg operationConfig) *operation {
	op := &operation{cfg: cfg, envID: uuid.NewString()}
	return op
}

func (o *operation) message() map[string]any {
	body := make(map[string]any, len(o.cfg.Body)+2)
	for k, v := range o.cfg.Body {
		body[k] = v
	}
	body["kind"] = o.cfg.Kind
	body["request_id"] = o.envID
	return body
}

func (o *operation) send(ctx context.Context, onResponse func(workerResponse, error)) error {
	buf := wire.NewBuffer(0, 0, 0, o.cfg.Codec)
	if err := buf.Serialize(o.message()); err != nil {
		return err
	}
	outbound := append([]byte(nil), buf.Bytes()...)

	env := messenger.NewEnvelope(o.envID, o.cfg.Priority, outbound, func(env *messenger.Envelope, sendErr error) {
		if sendErr != nil {
			onResponse(workerResponse{}, sendErr)
			return
		}
		var resp workerResponse
		if err := o.cfg.Codec.Unmarshal(env.Response, &resp); err != nil {
			onResponse(workerResponse{}, err)
			return
		}
		onResponse(resp, nil)
	})
	o.cfg.Pool.Send(o.cfg.Worker, env)
	return nil
}

// StartImpl implements request.Hooks.
func (o *operation) StartImpl(ctx context.Context) error {
	return o.send(ctx, func(resp workerResponse, err error) {
		o.handleResponse(ctx, resp, err)
	})
}

// PollImpl implements request.Hooks: a status re-check re-sends the
// same message envelope shape with kind STATUS_<original kind>.
func (o *operation) PollImpl(ctx context.Context) error {
	pollCfg := o.cfg
	pollCfg.Kind = "STATUS_" + o.cfg.Kind
	poll := &operation{cfg: pollCfg, envID: uuid.NewString(), Base: o.Base}
	return poll.send(ctx, func(resp workerResponse, err error) {
		o.handleResponse(ctx, resp, err)
	})
}

func (o *operation) handleResponse(ctx context.Context, resp workerResponse, err error) {
	if err != nil {
		if o.cfg.Log != nil {
			o.cfg.Log.Warn("qserv: operation transport error", "kind", o.cfg.Kind, "worker", o.cfg.Worker, "err", err)
		}
		o.Finish(ctx, request.ServerError)
		return
	}
	o.lastBlob = resp.Blob
	status, err := resp.workerStatus()
	if err != nil {
		o.Finish(ctx, request.ClientError)
		return
	}
	var dup *uuid.UUID
	if resp.DuplicateOf != "" {
		if id, parseErr := uuid.Parse(resp.DuplicateOf); parseErr == nil {
			dup = &id
		}
	}
	o.ReportWorkerStatus(ctx, status, dup)
}

// Dispose implements request.Hooks: it issues a best-effort DISPOSE_*
// message for DisposeRequired requests to let the worker free any
// state it retained. Failures are logged, never surfaced.
func (o *operation) Dispose(ctx context.Context) {
	disposeCfg := o.cfg
	disposeCfg.Kind = "DISPOSE_" + o.cfg.Kind
	dispose := &operation{cfg: disposeCfg, envID: uuid.NewString()}
	if err := dispose.send(ctx, func(workerResponse, error) {}); err != nil && o.cfg.Log != nil {
		o.cfg.Log.Warn("qserv: dispose failed", "kind", o.cfg.Kind, "worker", o.cfg.Worker, "err", err)
	}
}

// SavePersistentState implements request.Hooks.
func (o *operation) SavePersistentState(snap request.Snapshot) error {
	if o.cfg.Store == nil {
		return nil
	}
	return o.cfg.Store.Save(context.Background(), snap, o.lastBlob)
}
