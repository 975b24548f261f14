package qdisp

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"sync"
)

// ErrResourceNotFound is the transient error Open should wrap when the
// target resource does not exist yet, so ChunkQuery knows to retry.
var ErrResourceNotFound = errors.New("qdisp: resource not found")

// ErrProtocolUnexpected signals a response of a type the dispatcher
// never expects; it is always fatal and never retried.
var ErrProtocolUnexpected = errors.New("qdisp: unexpected response type")

// maxOpenRetries bounds WRITE_OPEN's retry count on transient
// not-found errors.
const maxOpenRetries = 3

var writeTerminator = []byte{0, 0, 0, 0}

// ResponseHandler supplies the buffer a ReadTransport fills on each
// AskForResponseData round.
type ResponseHandler interface {
	ClaimBuffer() []byte
}

// ChunkQueryConfig configures one chunk query.
type ChunkQueryConfig struct {
	JobID   string
	Worker  string
	Chunk   int
	Payload []byte
	Write   WriteTransport
	Log     *slog.Logger
}

// ChunkQuery handles the full round trip for one chunk of one user
// query. It is its own state machine (see state.go), not an instance
// of request.Base.
type ChunkQuery struct {
	mu sync.Mutex

	cfg   ChunkQueryConfig
	state ChunkState

	resource        string
	diagnostics     []string
	retried         bool
	reachedReadOpen bool
}

// NewChunkQuery builds a chunk query in WRITE_QUEUE.
func NewChunkQuery(cfg ChunkQueryConfig) *ChunkQuery {
	return &ChunkQuery{cfg: cfg, state: WriteQueue}
}

// State returns the chunk query's current state.
func (c *ChunkQuery) State() ChunkState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Retried reports whether this chunk query has already consumed its
// at-most-once delivery guarantee (see package doc for the contract).
func (c *ChunkQuery) Retried() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.retried
}

// Diagnostics returns the user-visible messages emitted on each
// WRITE_OPEN retry.
func (c *ChunkQuery) Diagnostics() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, len(c.diagnostics))
	copy(out, c.diagnostics)
	return out
}

// Resource returns the content-addressable resource URL computed
// after a successful write, or "" before then.
func (c *ChunkQuery) Resource() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.resource
}

func (c *ChunkQuery) transition(next ChunkState) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !validTransition(c.state, next) {
		return false
	}
	c.state = next
	return true
}

// writeResource names the job/chunk-scoped resource WRITE_OPEN and
// WRITE_WRITE address; it is distinct from the content-addressable URL
// computed after a successful write, which subsequent READ states use.
func writeResource(jobID string, chunk int) string {
	return fmt.Sprintf("/query2/%d/%s", chunk, jobID)
}

func resourceURL(worker string, payload []byte) string {
	sum := md5.Sum(payload)
	return fmt.Sprintf("/result/%s/%s", worker, hex.EncodeToString(sum[:]))
}

// Run drives the write side of the chunk query:
// WRITE_QUEUE -> WRITE_OPEN -> WRITE_WRITE -> READ_QUEUE. It returns
// once the write side has completed, the query was aborted before
// Run was called, or a transport error occurred.
func (c *ChunkQuery) Run(ctx context.Context) error {
	if !c.transition(WriteOpen) {
		return nil
	}

	resource := writeResource(c.cfg.JobID, c.cfg.Chunk)
	if err := c.openWithRetry(ctx, resource); err != nil {
		c.abortTransient(err)
		return err
	}

	if !c.transition(WriteWrite) {
		return nil
	}
	payload := make([]byte, 0, len(c.cfg.Payload)+len(writeTerminator))
	payload = append(payload, c.cfg.Payload...)
	payload = append(payload, writeTerminator...)
	if err := c.cfg.Write.Write(ctx, c.cfg.Worker, resource, payload); err != nil {
		c.abortTransient(err)
		return err
	}

	c.mu.Lock()
	c.resource = resourceURL(c.cfg.Worker, c.cfg.Payload)
	c.mu.Unlock()
	c.transition(ReadQueue)
	return nil
}

func (c *ChunkQuery) openWithRetry(ctx context.Context, resource string) error {
	var err error
	for attempt := 0; attempt <= maxOpenRetries; attempt++ {
		err = c.cfg.Write.Open(ctx, c.cfg.Worker, resource)
		if err == nil {
			return nil
		}
		if !errors.Is(err, ErrResourceNotFound) {
			return err
		}
		if attempt == maxOpenRetries {
			c.mu.Lock()
			c.retried = true
			c.mu.Unlock()
			return err
		}
		msg := fmt.Sprintf("open retry %d/%d for chunk %d: %v", attempt+1, maxOpenRetries, c.cfg.Chunk, err)
		c.mu.Lock()
		c.diagnostics = append(c.diagnostics, msg)
		c.mu.Unlock()
		if c.cfg.Log != nil {
			c.cfg.Log.Warn("chunk query open retry",
				"jobID", c.cfg.JobID, "chunk", c.cfg.Chunk, "attempt", attempt+1, "err", err)
		}
	}
	return err
}

// AskStep runs one AskForResponseData round: claims a buffer, asks the
// transport for data, waits for the result, and hands it to merger.
// It reports whether another ask should be enqueued (false once the
// chunk query reached a terminal state) and whether this round's Flush
// reported a large result. An ask on a chunk query that is already in
// a terminal state (for example, cancelled) fails without contacting
// the transport.
func (c *ChunkQuery) AskStep(ctx context.Context, handler ResponseHandler, read ReadTransport, merger Merger) (enqueueNext bool, largeResult bool, err error) {
	c.mu.Lock()
	if c.state.Terminal() {
		state := c.state
		c.mu.Unlock()
		return false, false, fmt.Errorf("qdisp: ask on chunk query in state %s", state)
	}
	if c.state == ReadQueue {
		c.state = ReadOpen
	}
	c.reachedReadOpen = true
	worker, resource := c.cfg.Worker, c.resource
	c.mu.Unlock()

	buf := handler.ClaimBuffer()
	resCh := read.Ask(ctx, worker, resource, buf)

	c.transition(ReadRead)

	select {
	case <-ctx.Done():
		c.abortFinal(ctx.Err())
		return false, false, ctx.Err()
	case res := <-resCh:
		if res.Err != nil {
			if errors.Is(res.Err, ErrProtocolUnexpected) {
				c.corrupt()
				return false, false, res.Err
			}
			c.abortTransient(res.Err)
			return false, false, res.Err
		}
		large, mergeErr := merger.Flush(buf[:res.Len], res.Last)
		if mergeErr != nil {
			c.abortFinal(mergeErr)
			return false, large, mergeErr
		}
		if res.Last {
			c.transition(Complete)
			return false, large, nil
		}
		c.mu.Lock()
		c.state = ReadQueue
		c.mu.Unlock()
		return true, large, nil
	}
}

// Cancel aborts the chunk query. The per-chunk unlink is only
// attempted once the query reached READ_OPEN or later; cancelling
// before then skips it, per the failure-semantics contract.
func (c *ChunkQuery) Cancel(ctx context.Context, unlink func(ctx context.Context, worker, resource string) error) {
	c.mu.Lock()
	if c.state.Terminal() {
		c.mu.Unlock()
		return
	}
	pastReadOpen := c.reachedReadOpen
	worker, resource := c.cfg.Worker, c.resource
	c.state = Aborted
	c.retried = true
	c.mu.Unlock()

	if pastReadOpen && unlink != nil {
		_ = unlink(ctx, worker, resource)
	}
}

// abortTransient moves the query to ABORTED without marking it
// retried, so a controller may construct a fresh request under the
// same job id if its retry budget allows.
func (c *ChunkQuery) abortTransient(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state.Terminal() {
		return
	}
	c.state = Aborted
}

// abortFinal moves the query to ABORTED and marks it retried: no
// further attempt may deliver a result to the merger.
func (c *ChunkQuery) abortFinal(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state.Terminal() {
		return
	}
	c.state = Aborted
	c.retried = true
}

// corrupt moves the query to CORRUPT: fatal, never retried.
func (c *ChunkQuery) corrupt() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state.Terminal() {
		return
	}
	c.state = Corrupt
}
