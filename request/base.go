package request

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/lsst/qserv-sub022/internal"
)

// ErrAlreadyStarted is returned by Start if the request is not in the
// Created state.
var ErrAlreadyStarted = errors.New("request: already started")

// DefaultExpiration is used when Start is called with a zero
// expiration duration.
const DefaultExpiration = 5 * time.Minute

// DefaultPollCeiling bounds the adaptive keep-tracking poll interval.
const DefaultPollCeiling = 30 * time.Second

// Hooks are the operations a concrete request type (a replica
// operation constructed by the root Controller, or qdisp.QueryRequest)
// supplies to drive a Base through its lifecycle.
type Hooks interface {
	// StartImpl performs the operation-specific action that begins the
	// request: typically enqueuing an outbound message with the
	// messenger. It is called once, synchronously, from Start.
	StartImpl(ctx context.Context) error

	// PollImpl sends a status re-check to the worker. Its result is
	// expected to arrive asynchronously via a later call to
	// Base.ReportWorkerStatus; PollImpl itself only needs to initiate
	// the check.
	PollImpl(ctx context.Context) error

	// Dispose is invoked best-effort after Finish if the request was
	// marked DisposeRequired, to let the worker release any resources
	// associated with the request. Errors are not surfaced to the
	// caller of Finish; Dispose is expected to log its own failures.
	Dispose(ctx context.Context)

	// SavePersistentState persists the terminal snapshot of the
	// request. Called synchronously during Finish, before notify.
	SavePersistentState(snap Snapshot) error
}

// Config configures a Base at construction time.
type Config struct {
	Type            string
	Worker          string
	Priority        int
	KeepTracking    bool
	DisposeRequired bool
	AllowDuplicate  bool
	PollCeiling     time.Duration
	Loop            *internal.EventLoop
	Hooks           Hooks
	// Notify is invoked exactly once, on Loop, when the request
	// finishes.
	Notify func(Snapshot)
}

// Base implements the request lifecycle common to every operation:
// CREATED -> IN_PROGRESS -> FINISHED, with expiration, cancellation,
// and adaptive keep-tracking polling. Concrete request types embed
// Base and supply Hooks.
type Base struct {
	mu sync.Mutex

	typ             string
	id              uuid.UUID
	worker          string
	priority        int
	keepTracking    bool
	disposeRequired bool
	allowDuplicate  bool

	state        State
	extended     ExtendedState
	serverStatus WorkerStatus
	jobID        string
	perf         Performance
	deadline     time.Time
	expiration   time.Duration

	remoteID uuid.UUID

	poll        *pollBackoff
	expireTimer internal.DeadlineTimer
	pollTimer   internal.DeadlineTimer

	loop   *internal.EventLoop
	hooks  Hooks
	notify func(Snapshot)

	notified bool
}

// NewBase constructs a Base in the Created state.
func NewBase(cfg Config) *Base {
	id := uuid.New()
	return &Base{
		typ:             cfg.Type,
		id:              id,
		remoteID:        id,
		worker:          cfg.Worker,
		priority:        cfg.Priority,
		keepTracking:    cfg.KeepTracking,
		disposeRequired: cfg.DisposeRequired,
		allowDuplicate:  cfg.AllowDuplicate,
		poll:            newPollBackoff(cfg.PollCeiling),
		loop:            cfg.Loop,
		hooks:           cfg.Hooks,
		notify:          cfg.Notify,
		perf:            Performance{CreateTime: time.Now()},
	}
}

// ID returns the request's identifier.
func (b *Base) ID() uuid.UUID {
	return b.id
}

// Snapshot returns an immutable view of the request's current state.
func (b *Base) Snapshot() Snapshot {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.snapshotLocked()
}

func (b *Base) snapshotLocked() Snapshot {
	return Snapshot{
		Type:         b.typ,
		ID:           b.id,
		Worker:       b.worker,
		Priority:     b.priority,
		JobID:        b.jobID,
		State:        b.state,
		Extended:     b.extended,
		ServerStatus: b.serverStatus,
		Performance:  b.perf,
	}
}

// Start transitions CREATED -> IN_PROGRESS: it arms the hard-expiration
// timer, records the start time, and invokes Hooks.StartImpl.
//
// jobID associates the request with a controller job for grouping and
// reporting. If expiration is zero, DefaultExpiration is used.
func (b *Base) Start(ctx context.Context, jobID string, expiration time.Duration) error {
	b.mu.Lock()
	if b.state != Created {
		b.mu.Unlock()
		return ErrAlreadyStarted
	}
	if expiration <= 0 {
		expiration = DefaultExpiration
	}
	b.jobID = jobID
	b.expiration = expiration
	b.deadline = time.Now().Add(expiration)
	b.state = InProgress
	b.perf.StartTime = time.Now()
	b.expireTimer.Arm(expiration, func() { b.expire() })
	hooks := b.hooks
	b.mu.Unlock()

	if err := hooks.StartImpl(ctx); err != nil {
		b.Finish(ctx, ClientError)
		return err
	}
	return nil
}

// ReportWorkerStatus feeds in a status the worker reported for this
// request (either from the initial response or from a status
// re-poll), and applies the mapping of §4.4: SUCCESS finishes the
// request successfully; QUEUED/IN_PROGRESS/IS_CANCELLING either
// schedule another poll (if KeepTracking) or surface immediately;
// BAD/FAILED/CANCELLED finish the request with the corresponding
// extended state. duplicateOf is non-nil when the worker reports that
// this request duplicates an earlier one still in flight.
func (b *Base) ReportWorkerStatus(ctx context.Context, status WorkerStatus, duplicateOf *uuid.UUID) {
	b.mu.Lock()
	if b.state == Finished {
		b.mu.Unlock()
		return
	}
	b.serverStatus = status
	keepTracking := b.keepTracking
	b.mu.Unlock()

	switch status {
	case WorkerSuccess:
		b.Finish(ctx, Success)
		return
	case WorkerBad:
		if duplicateOf != nil && b.allowDuplicate && keepTracking {
			b.mu.Lock()
			b.remoteID = *duplicateOf
			b.mu.Unlock()
			// The duplicate is still running on the worker: keep
			// polling it instead of finishing with ServerBad.
			b.keepTrackingOrFinish(ctx, ServerInProgress)
			return
		}
		b.Finish(ctx, ServerBad)
		return
	case WorkerFailed:
		b.Finish(ctx, ServerError)
		return
	case WorkerCancelled:
		b.Finish(ctx, ServerCancelled)
		return
	case WorkerQueued:
		b.keepTrackingOrFinish(ctx, ServerQueued)
		return
	case WorkerInProgress:
		b.keepTrackingOrFinish(ctx, ServerInProgress)
		return
	case WorkerIsCancelling:
		b.keepTrackingOrFinish(ctx, ServerIsCancelling)
		return
	}
}

// keepTrackingOrFinish is the subclass completion gate described in
// §4.4: if KeepTracking is set and extended is one of the "still
// running on the worker" states, it schedules another status re-poll
// at an exponentially growing interval; otherwise it finalizes with
// extended.
func (b *Base) keepTrackingOrFinish(ctx context.Context, extended ExtendedState) {
	b.mu.Lock()
	if b.state == Finished {
		b.mu.Unlock()
		return
	}
	if !b.keepTracking || !extended.Keeping() {
		b.mu.Unlock()
		b.Finish(ctx, extended)
		return
	}
	b.extended = extended
	interval := b.poll.next()
	b.mu.Unlock()

	b.pollTimer.Arm(interval, func() {
		b.mu.Lock()
		if b.state == Finished {
			b.mu.Unlock()
			return
		}
		hooks := b.hooks
		b.mu.Unlock()
		if err := hooks.PollImpl(ctx); err != nil {
			b.Finish(ctx, ServerError)
		}
	})
}

// Cancel finalizes the request with Cancelled. It is idempotent and
// safe to call before Start (in which case the request finishes
// immediately without ever calling StartImpl).
func (b *Base) Cancel(ctx context.Context) {
	b.Finish(ctx, Cancelled)
}

func (b *Base) expire() {
	b.Finish(context.Background(), TimeoutExpired)
}

// Finish is idempotent: it transitions to FINISHED (from any
// non-Finished state), cancels both timers atomically, records the
// completion time, persists the terminal state, and notifies the
// subscriber exactly once on the event loop. If DisposeRequired was
// set, it also issues a best-effort Dispose after notifying.
func (b *Base) Finish(ctx context.Context, extended ExtendedState) {
	b.mu.Lock()
	if b.state == Finished {
		b.mu.Unlock()
		return
	}
	b.state = Finished
	b.extended = extended
	b.perf.FinishTime = time.Now()
	b.expireTimer.Cancel()
	b.pollTimer.Cancel()
	snap := b.snapshotLocked()
	hooks := b.hooks
	disposeRequired := b.disposeRequired
	loop := b.loop
	notifyFn := b.notify
	alreadyNotified := b.notified
	b.notified = true
	b.mu.Unlock()

	if alreadyNotified {
		return
	}

	if err := hooks.SavePersistentState(snap); err != nil {
		// Persistence failures must not prevent the subscriber from
		// being told the request finished; the store package is
		// responsible for its own retry/alerting policy.
		_ = err
	}

	post := func() {
		if notifyFn != nil {
			notifyFn(snap)
		}
		if disposeRequired {
			hooks.Dispose(ctx)
		}
	}
	if loop != nil {
		loop.Post(post)
	} else {
		post()
	}
}

// State returns the current primary state.
func (b *Base) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// RemoteID returns the id currently used when polling the worker. It
// starts out equal to ID and only diverges after a duplicate-request
// swap (see ReportWorkerStatus).
func (b *Base) RemoteID() uuid.UUID {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.remoteID
}
