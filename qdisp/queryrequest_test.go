package qdisp_test

import (
	"context"
	"testing"
	"time"

	"github.com/lsst/qserv-sub022/internal"
	"github.com/lsst/qserv-sub022/qdisp"
	"github.com/lsst/qserv-sub022/request"
)

func TestQueryRequestCompletesAllChunks(t *testing.T) {
	pump := qdisp.NewPump(2)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go pump.Run(ctx)

	loop := internal.NewEventLoop()
	defer loop.Stop()

	done := make(chan request.Snapshot, 1)
	qr := qdisp.NewQueryRequest(qdisp.QueryRequestConfig{
		JobID: "job-1",
		Chunks: []qdisp.ChunkSpec{
			{Worker: "w1", Chunk: 1, Payload: []byte("q")},
			{Worker: "w2", Chunk: 2, Payload: []byte("q")},
		},
		Write:   &fakeWrite{},
		Read:    &fakeRead{results: []qdisp.AskResult{{Len: 4, Last: true}}},
		Handler: fakeHandler{size: 4},
		Merger:  &fakeMerger{},
		Pump:    pump,
		Loop:    loop,
		Notify:  func(snap request.Snapshot) { done <- snap },
	})

	if err := qr.Start(ctx, "job-1", time.Second); err != nil {
		t.Fatalf("unexpected start error: %v", err)
	}

	select {
	case snap := <-done:
		if snap.Extended != request.Success {
			t.Fatalf("expected Success, got %s", snap.Extended)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for query request to finish")
	}
}

func TestQueryRequestRetriesTransientChunkFailure(t *testing.T) {
	pump := qdisp.NewPump(2)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go pump.Run(ctx)

	loop := internal.NewEventLoop()
	defer loop.Stop()

	done := make(chan request.Snapshot, 1)
	failingWrite := &fakeWrite{writeErr: nil}
	attempts := 0
	write := &countingWrite{inner: failingWrite, fail: 1, count: &attempts}

	qr := qdisp.NewQueryRequest(qdisp.QueryRequestConfig{
		JobID: "job-2",
		Chunks: []qdisp.ChunkSpec{
			{Worker: "w1", Chunk: 1, Payload: []byte("q")},
		},
		Write:      write,
		Read:       &fakeRead{results: []qdisp.AskResult{{Len: 4, Last: true}}},
		Handler:    fakeHandler{size: 4},
		Merger:     &fakeMerger{},
		Pump:       pump,
		MaxRetries: 2,
		Loop:       loop,
		Notify:     func(snap request.Snapshot) { done <- snap },
	})

	if err := qr.Start(ctx, "job-2", time.Second); err != nil {
		t.Fatalf("unexpected start error: %v", err)
	}

	select {
	case snap := <-done:
		if snap.Extended != request.Success {
			t.Fatalf("expected Success after retry, got %s", snap.Extended)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for query request to finish")
	}
	if attempts < 2 {
		t.Fatalf("expected at least 2 write attempts, got %d", attempts)
	}
}

// countingWrite fails its first `fail` writes with a plain transport
// error (not ErrResourceNotFound, so it exercises the
// handleChunkFailure retry path rather than WRITE_OPEN's own retries).
type countingWrite struct {
	inner *fakeWrite
	fail  int
	count *int
}

func (w *countingWrite) Open(ctx context.Context, worker, resource string) error {
	return w.inner.Open(ctx, worker, resource)
}

func (w *countingWrite) Write(ctx context.Context, worker, resource string, payload []byte) error {
	*w.count++
	if *w.count <= w.fail {
		return errTransient
	}
	return w.inner.Write(ctx, worker, resource, payload)
}

var errTransient = &transientErr{}

type transientErr struct{}

func (*transientErr) Error() string { return "transient write failure" }
