package qdisp

import (
	"context"
	"log/slog"
	"sync"

	"github.com/lsst/qserv-sub022/internal"
	"github.com/lsst/qserv-sub022/request"
)

// ChunkSpec describes one chunk assigned to a worker as part of a
// user query.
type ChunkSpec struct {
	Worker  string
	Chunk   int
	Payload []byte
}

// QueryRequestConfig configures a QueryRequest.
type QueryRequestConfig struct {
	JobID       string
	Interactive bool
	Chunks      []ChunkSpec

	Write   WriteTransport
	Read    ReadTransport
	Handler ResponseHandler
	Merger  Merger
	Pump    *Pump

	// Unlink releases a chunk's worker-side resource; see
	// ChunkQuery.Cancel for when it is called.
	Unlink func(ctx context.Context, worker, resource string) error

	// MaxRetries bounds how many times a single chunk may be retried
	// under a fresh ChunkQuery after a transient transport failure.
	MaxRetries int

	Save   func(request.Snapshot) error
	Notify func(request.Snapshot)
	Loop   *internal.EventLoop
	Log    *slog.Logger
}

// QueryRequest is component J: the streaming, pull-based result
// ingestion driver for one user query, fanning out one ChunkQuery per
// assigned chunk and feeding their AskForResponseData rounds through a
// shared Pump. It embeds request.Base for its own
// CREATED/IN_PROGRESS/FINISHED lifecycle, cancellation and retry
// bookkeeping at the whole-query level.
type QueryRequest struct {
	*request.Base

	cfg QueryRequestConfig

	mu          sync.Mutex
	queries     map[int]*ChunkQuery
	attempts    map[int]int
	largeResult bool
}

// NewQueryRequest builds a QueryRequest in the Created state. Call
// Start to begin dispatching its chunks.
func NewQueryRequest(cfg QueryRequestConfig) *QueryRequest {
	qr := &QueryRequest{
		cfg:      cfg,
		queries:  make(map[int]*ChunkQuery),
		attempts: make(map[int]int),
	}
	priority := 0
	if cfg.Interactive {
		priority = int(AskVeryHigh)
	}
	qr.Base = request.NewBase(request.Config{
		Type:     "QUERY",
		Priority: priority,
		Hooks:    qr,
		Loop:     cfg.Loop,
		Notify:   cfg.Notify,
	})
	return qr
}

// StartImpl dispatches one ChunkQuery per configured chunk.
func (q *QueryRequest) StartImpl(ctx context.Context) error {
	for _, spec := range q.cfg.Chunks {
		q.startChunk(ctx, spec)
	}
	return nil
}

// PollImpl is unused: QueryRequest does not keep-track poll a worker
// status the way replica operations do, since its completion is
// driven entirely by its chunks' ask/flush rounds.
func (q *QueryRequest) PollImpl(ctx context.Context) error { return nil }

// Dispose releases no resources of its own; chunk-level cleanup
// happens via Cancel and Unlink.
func (q *QueryRequest) Dispose(ctx context.Context) {}

// SavePersistentState delegates to the injected Save, if any.
func (q *QueryRequest) SavePersistentState(snap request.Snapshot) error {
	if q.cfg.Save == nil {
		return nil
	}
	return q.cfg.Save(snap)
}

func (q *QueryRequest) startChunk(ctx context.Context, spec ChunkSpec) {
	cq := NewChunkQuery(ChunkQueryConfig{
		JobID:   q.cfg.JobID,
		Worker:  spec.Worker,
		Chunk:   spec.Chunk,
		Payload: spec.Payload,
		Write:   q.cfg.Write,
		Log:     q.cfg.Log,
	})
	q.mu.Lock()
	q.queries[spec.Chunk] = cq
	q.mu.Unlock()
	go q.driveChunk(ctx, cq, spec)
}

func (q *QueryRequest) driveChunk(ctx context.Context, cq *ChunkQuery, spec ChunkSpec) {
	if err := cq.Run(ctx); err != nil {
		q.handleChunkFailure(ctx, spec)
		return
	}
	q.enqueueAsk(ctx, cq, spec)
}

func (q *QueryRequest) enqueueAsk(ctx context.Context, cq *ChunkQuery, spec ChunkSpec) {
	q.cfg.Pump.Enqueue(q.priorityFor(), func(ctx context.Context) {
		enqueueNext, large, err := cq.AskStep(ctx, q.cfg.Handler, q.cfg.Read, q.cfg.Merger)
		if large {
			q.mu.Lock()
			q.largeResult = true
			q.mu.Unlock()
		}
		if err != nil {
			if cq.State() == Corrupt {
				q.finishChunk(spec, false)
				return
			}
			q.handleChunkFailure(ctx, spec)
			return
		}
		if enqueueNext {
			q.enqueueAsk(ctx, cq, spec)
			return
		}
		q.finishChunk(spec, true)
	})
}

// priorityFor implements the ask-priority rule of §4.9: interactive
// queries run very-high, a query that has ever reported a large
// result sticks at low, everything else runs normal.
func (q *QueryRequest) priorityFor() AskPriority {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.largeResult {
		return AskLow
	}
	if q.cfg.Interactive {
		return AskVeryHigh
	}
	return AskNormal
}

// handleChunkFailure implements the transport-error branch of the
// failure semantics: retry with a fresh ChunkQuery under the same job
// id if the chunk hasn't already consumed its at-most-once delivery
// guarantee and the retry budget allows, otherwise mark the chunk
// (and therefore the query) complete-as-failed.
func (q *QueryRequest) handleChunkFailure(ctx context.Context, spec ChunkSpec) {
	q.mu.Lock()
	cq := q.queries[spec.Chunk]
	alreadyRetried := cq != nil && cq.Retried()
	q.attempts[spec.Chunk]++
	attempts := q.attempts[spec.Chunk]
	q.mu.Unlock()

	if !alreadyRetried && attempts <= q.cfg.MaxRetries {
		q.startChunk(ctx, spec)
		return
	}
	q.finishChunk(spec, false)
}

// finishChunk records spec's chunk as done (successfully if ok) and,
// once every chunk has finished, finalizes the whole query request.
func (q *QueryRequest) finishChunk(spec ChunkSpec, ok bool) {
	q.mu.Lock()
	delete(q.queries, spec.Chunk)
	remaining := len(q.queries)
	q.mu.Unlock()

	if !ok {
		q.Base.Finish(context.Background(), request.ServerError)
		return
	}
	if remaining == 0 {
		q.Base.Finish(context.Background(), request.Success)
	}
}

// Cancel drains every still-live chunk query (an ask that runs after
// its chunk query was cancelled fails, and the per-chunk unlink is
// skipped for chunks that never reached READ_OPEN) before finalizing
// the request as Cancelled.
func (q *QueryRequest) Cancel(ctx context.Context) {
	q.mu.Lock()
	live := make([]*ChunkQuery, 0, len(q.queries))
	for _, cq := range q.queries {
		live = append(live, cq)
	}
	q.mu.Unlock()

	for _, cq := range live {
		cq.Cancel(ctx, q.cfg.Unlink)
	}
	q.Base.Cancel(ctx)
}
