package qserv

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/lsst/qserv-sub022/internal"
	"github.com/lsst/qserv-sub022/messenger"
	"github.com/lsst/qserv-sub022/request"
	"github.com/lsst/qserv-sub022/wire"
)

// stopTimeout bounds how long Stop waits for the pool and event loop
// to finish tearing down before reporting internal.ErrStopTimeout.
const stopTimeout = 30 * time.Second

// inflight is the registry wrapper described in §4.5: a request paired
// with the caller's completion callback.
type inflight struct {
	op       *operation
	callback func(request.Snapshot)
}

// Config configures a Controller.
type Config struct {
	Pool  *messenger.Pool
	Loop  *internal.EventLoop
	Codec wire.Codec
	Store persister
	Log   *slog.Logger
}

// Controller is the typed façade over replication-protocol requests
// described in §4.5. It owns the registry of in-flight requests keyed
// by id, the worker-dispatched messenger, and the background event
// loop those requests notify through.
type Controller struct {
	lifecycle internal.Lifecycle

	mu       sync.Mutex
	registry map[uuid.UUID]*inflight

	pool  *messenger.Pool
	loop  *internal.EventLoop
	codec wire.Codec
	store persister
	log   *slog.Logger
}

// New constructs a Controller in the Stopped state.
func New(cfg Config) *Controller {
	return &Controller{
		registry: make(map[uuid.UUID]*inflight),
		pool:     cfg.Pool,
		loop:     cfg.Loop,
		codec:    cfg.Codec,
		store:    cfg.Store,
		log:      cfg.Log,
	}
}

// Start transitions the controller to Running and starts its
// messenger pool.
func (c *Controller) Start(ctx context.Context) error {
	if err := c.lifecycle.TryStart(); err != nil {
		return ErrAlreadyRunning
	}
	c.pool.Start(ctx)
	return nil
}

// Stop resets the event-service work anchor, stops the messenger
// pool, and asserts the registry is empty: a non-empty registry at
// stop time is a logic error, per §4.5. Calling Stop when the
// controller is not running is a no-op.
func (c *Controller) Stop() error {
	var n int
	err := c.lifecycle.TryStop(stopTimeout, func() internal.DoneChan {
		c.mu.Lock()
		n = len(c.registry)
		c.mu.Unlock()

		c.pool.Stop()
		c.loop.Stop()

		done := make(internal.DoneChan)
		close(done)
		return done
	})
	if errors.Is(err, internal.ErrDoubleStopped) {
		return nil
	}
	if err != nil {
		return err
	}
	if n != 0 {
		return fmt.Errorf("qserv: stop called with %d requests still in flight", n)
	}
	return nil
}

// dispatchConfig groups the per-call parameters every typed
// constructor in requests.go supplies to dispatch.
type dispatchConfig struct {
	Kind            string
	Worker          string
	JobID           string
	Body            map[string]any
	Priority        int
	Expiration      time.Duration
	KeepTracking    bool
	DisposeRequired bool
	AllowDuplicate  bool
	Callback        func(request.Snapshot)
}

// dispatch implements the five numbered steps of §4.5: assert
// Running, construct the request with a completion lambda that calls
// back into Controller.finish, insert the registry wrapper, start the
// request, and return its id.
func (c *Controller) dispatch(ctx context.Context, dc dispatchConfig) (uuid.UUID, error) {
	if !c.lifecycle.Running() {
		return uuid.Nil, ErrNotRunning
	}

	op := newOperation(operationConfig{
		Kind:     dc.Kind,
		Worker:   dc.Worker,
		Body:     dc.Body,
		Pool:     c.pool,
		Codec:    c.codec,
		Store:    c.store,
		Log:      c.log,
		Priority: dc.Priority,
	})
	base := request.NewBase(request.Config{
		Type:            dc.Kind,
		Worker:          dc.Worker,
		Priority:        dc.Priority,
		KeepTracking:    dc.KeepTracking,
		DisposeRequired: dc.DisposeRequired,
		AllowDuplicate:  dc.AllowDuplicate,
		Loop:            c.loop,
		Hooks:           op,
		Notify: func(snap request.Snapshot) {
			c.finish(snap.ID, snap)
		},
	})
	op.Base = base
	id := base.ID()

	c.mu.Lock()
	c.registry[id] = &inflight{op: op, callback: dc.Callback}
	c.mu.Unlock()

	if err := base.Start(ctx, dc.JobID, dc.Expiration); err != nil {
		// base.Start already called Finish on this failure, which posts
		// the Notify closure (-> c.finish) onto the event loop rather
		// than running it inline. finish is the sole place that erases
		// a registry entry; deleting it here too would race the posted
		// call and could drop dc.Callback on the floor.
		return id, err
	}
	return id, nil
}

// finish implements Controller::finish from §4.5: it copies the
// wrapper out of the registry under the lock, erases the entry,
// releases the lock, then invokes the user callback. This ordering
// lets a callback call back into the controller (e.g. to issue a
// follow-up request) without deadlocking on the registry mutex.
func (c *Controller) finish(id uuid.UUID, snap request.Snapshot) {
	c.mu.Lock()
	wrapper, ok := c.registry[id]
	if ok {
		delete(c.registry, id)
	}
	c.mu.Unlock()
	if !ok {
		return
	}
	if wrapper.callback != nil {
		wrapper.callback(snap)
	}
}

// Cancel finalizes the in-flight request id with Cancelled. It returns
// ErrUnknownRequest if id is not currently registered (already
// finished, or never existed).
func (c *Controller) Cancel(ctx context.Context, id uuid.UUID) error {
	c.mu.Lock()
	wrapper, ok := c.registry[id]
	c.mu.Unlock()
	if !ok {
		return ErrUnknownRequest
	}
	wrapper.op.Cancel(ctx)
	return nil
}

// Snapshot returns the current snapshot of a still-registered
// request.
func (c *Controller) Snapshot(id uuid.UUID) (request.Snapshot, error) {
	c.mu.Lock()
	wrapper, ok := c.registry[id]
	c.mu.Unlock()
	if !ok {
		return request.Snapshot{}, ErrUnknownRequest
	}
	return wrapper.op.Snapshot(), nil
}

// Pending returns the number of requests currently in the registry.
func (c *Controller) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.registry)
}
