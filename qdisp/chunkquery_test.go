package qdisp_test

import (
	"context"
	"errors"
	"testing"

	"github.com/lsst/qserv-sub022/qdisp"
)

type fakeWrite struct {
	failOpenTimes int
	openCalls     int
	writeCalls    int
	lastPayload   []byte
	writeErr      error
}

func (f *fakeWrite) Open(ctx context.Context, worker, resource string) error {
	f.openCalls++
	if f.openCalls <= f.failOpenTimes {
		return qdisp.ErrResourceNotFound
	}
	return nil
}

func (f *fakeWrite) Write(ctx context.Context, worker, resource string, payload []byte) error {
	f.writeCalls++
	f.lastPayload = payload
	return f.writeErr
}

func newChunkQuery(w *fakeWrite) *qdisp.ChunkQuery {
	return qdisp.NewChunkQuery(qdisp.ChunkQueryConfig{
		JobID:   "job-1",
		Worker:  "worker-1",
		Chunk:   42,
		Payload: []byte("SELECT 1"),
		Write:   w,
	})
}

func TestChunkQueryHappyPathReachesReadQueue(t *testing.T) {
	w := &fakeWrite{}
	cq := newChunkQuery(w)

	if err := cq.Run(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cq.State() != qdisp.ReadQueue {
		t.Fatalf("expected READ_QUEUE, got %s", cq.State())
	}
	if cq.Resource() == "" {
		t.Fatal("expected a resource URL after successful write")
	}
	tail := w.lastPayload[len(w.lastPayload)-4:]
	for _, b := range tail {
		if b != 0 {
			t.Fatalf("expected 4-null terminator, got %v", w.lastPayload)
		}
	}
}

func TestChunkQueryRetriesTransientOpenFailures(t *testing.T) {
	w := &fakeWrite{failOpenTimes: 2}
	cq := newChunkQuery(w)

	if err := cq.Run(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(cq.Diagnostics()) != 2 {
		t.Fatalf("expected 2 retry diagnostics, got %d", len(cq.Diagnostics()))
	}
	if cq.Retried() {
		t.Fatal("expected retried=false after a successful retry sequence")
	}
}

func TestChunkQueryExhaustingOpenRetriesMarksRetried(t *testing.T) {
	w := &fakeWrite{failOpenTimes: 100}
	cq := newChunkQuery(w)

	if err := cq.Run(context.Background()); err == nil {
		t.Fatal("expected an error once retries are exhausted")
	}
	if cq.State() != qdisp.Aborted {
		t.Fatalf("expected ABORTED, got %s", cq.State())
	}
	if !cq.Retried() {
		t.Fatal("expected retried=true once open retries are exhausted")
	}
}

func TestChunkQueryTransportWriteErrorDoesNotMarkRetried(t *testing.T) {
	w := &fakeWrite{writeErr: errors.New("boom")}
	cq := newChunkQuery(w)

	if err := cq.Run(context.Background()); err == nil {
		t.Fatal("expected write error to propagate")
	}
	if cq.State() != qdisp.Aborted {
		t.Fatalf("expected ABORTED, got %s", cq.State())
	}
	if cq.Retried() {
		t.Fatal("expected retried=false for a plain transport error, to allow a controller-level retry")
	}
}

type fakeHandler struct{ size int }

func (h fakeHandler) ClaimBuffer() []byte { return make([]byte, h.size) }

type fakeRead struct {
	results []qdisp.AskResult
	call    int
}

func (r *fakeRead) Ask(ctx context.Context, worker, resource string, buf []byte) <-chan qdisp.AskResult {
	ch := make(chan qdisp.AskResult, 1)
	res := r.results[r.call]
	if r.call < len(r.results)-1 {
		r.call++
	}
	copy(buf, []byte("data"))
	ch <- res
	return ch
}

type fakeMerger struct {
	large   bool
	err     error
	flushes int
	lastLast bool
}

func (m *fakeMerger) Flush(data []byte, last bool) (bool, error) {
	m.flushes++
	m.lastLast = last
	return m.large, m.err
}

func TestAskStepCompletesOnLast(t *testing.T) {
	w := &fakeWrite{}
	cq := newChunkQuery(w)
	if err := cq.Run(context.Background()); err != nil {
		t.Fatal(err)
	}
	read := &fakeRead{results: []qdisp.AskResult{{Len: 4, Last: true}}}
	merger := &fakeMerger{}

	enqueueNext, large, err := cq.AskStep(context.Background(), fakeHandler{size: 4}, read, merger)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if enqueueNext {
		t.Fatal("expected no further ask after last=true")
	}
	if large {
		t.Fatal("expected largeResult=false")
	}
	if cq.State() != qdisp.Complete {
		t.Fatalf("expected COMPLETE, got %s", cq.State())
	}
	if merger.flushes != 1 || !merger.lastLast {
		t.Fatalf("expected one flush with last=true, got %+v", merger)
	}
}

func TestAskStepContinuesWhenNotLast(t *testing.T) {
	w := &fakeWrite{}
	cq := newChunkQuery(w)
	if err := cq.Run(context.Background()); err != nil {
		t.Fatal(err)
	}
	read := &fakeRead{results: []qdisp.AskResult{{Len: 4, Last: false}}}
	merger := &fakeMerger{}

	enqueueNext, _, err := cq.AskStep(context.Background(), fakeHandler{size: 4}, read, merger)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !enqueueNext {
		t.Fatal("expected another ask to be enqueued")
	}
	if cq.State() != qdisp.ReadQueue {
		t.Fatalf("expected READ_QUEUE between rounds, got %s", cq.State())
	}
}

func TestAskStepMergeFailureMarksRetried(t *testing.T) {
	w := &fakeWrite{}
	cq := newChunkQuery(w)
	if err := cq.Run(context.Background()); err != nil {
		t.Fatal(err)
	}
	read := &fakeRead{results: []qdisp.AskResult{{Len: 4, Last: true}}}
	merger := &fakeMerger{err: errors.New("corrupt merge")}

	_, _, err := cq.AskStep(context.Background(), fakeHandler{size: 4}, read, merger)
	if err == nil {
		t.Fatal("expected merge error to propagate")
	}
	if cq.State() != qdisp.Aborted {
		t.Fatalf("expected ABORTED, got %s", cq.State())
	}
	if !cq.Retried() {
		t.Fatal("expected retried=true after a merge failure")
	}
}

func TestAskStepProtocolUnexpectedIsCorruptAndNotRetried(t *testing.T) {
	w := &fakeWrite{}
	cq := newChunkQuery(w)
	if err := cq.Run(context.Background()); err != nil {
		t.Fatal(err)
	}
	read := &fakeRead{results: []qdisp.AskResult{{Err: qdisp.ErrProtocolUnexpected}}}
	merger := &fakeMerger{}

	_, _, err := cq.AskStep(context.Background(), fakeHandler{size: 4}, read, merger)
	if !errors.Is(err, qdisp.ErrProtocolUnexpected) {
		t.Fatalf("expected protocol-unexpected error, got %v", err)
	}
	if cq.State() != qdisp.Corrupt {
		t.Fatalf("expected CORRUPT, got %s", cq.State())
	}
	if cq.Retried() {
		t.Fatal("CORRUPT is fatal on its own; retried should stay false")
	}
}

func TestCancelSkipsUnlinkBeforeReadOpen(t *testing.T) {
	w := &fakeWrite{}
	cq := newChunkQuery(w)
	unlinkCalled := false
	cq.Cancel(context.Background(), func(ctx context.Context, worker, resource string) error {
		unlinkCalled = true
		return nil
	})
	if unlinkCalled {
		t.Fatal("expected no unlink before READ_OPEN")
	}
	if cq.State() != qdisp.Aborted {
		t.Fatalf("expected ABORTED, got %s", cq.State())
	}
	if !cq.Retried() {
		t.Fatal("expected retried=true after cancellation")
	}
}

func TestCancelCallsUnlinkAfterReadOpen(t *testing.T) {
	w := &fakeWrite{}
	cq := newChunkQuery(w)
	if err := cq.Run(context.Background()); err != nil {
		t.Fatal(err)
	}
	read := &fakeRead{results: []qdisp.AskResult{{Len: 4, Last: false}}}
	merger := &fakeMerger{}
	// Drive into READ_OPEN/READ_READ via one in-flight ask round, then
	// cancel while conceptually mid-flight by invoking Cancel directly
	// (AskStep already advanced state past WRITE_QUEUE).
	if _, _, err := cq.AskStep(context.Background(), fakeHandler{size: 4}, read, merger); err != nil {
		t.Fatal(err)
	}

	unlinkCalled := false
	cq.Cancel(context.Background(), func(ctx context.Context, worker, resource string) error {
		unlinkCalled = true
		return nil
	})
	if !unlinkCalled {
		t.Fatal("expected unlink once the chunk query reached READ_OPEN")
	}
}
