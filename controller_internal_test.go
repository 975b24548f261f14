package qserv

import (
	"context"
	"testing"
	"time"

	"github.com/lsst/qserv-sub022/codec"
	"github.com/lsst/qserv-sub022/internal"
	"github.com/lsst/qserv-sub022/messenger"
	"github.com/lsst/qserv-sub022/request"
)

// nilTransport never dials; it exists only so a Controller can be
// constructed for dispatch tests that fail before any I/O happens.
type nilTransport struct{}

func (nilTransport) Dial(ctx context.Context, worker string) (messenger.Stream, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

// TestDispatchSynchronousStartFailureStillInvokesCallback covers the
// case where Hooks.StartImpl fails before any worker round trip (here,
// an outbound body msgpack cannot encode). base.Start already calls
// Finish, which posts the Notify closure onto the event loop rather
// than running it inline; dispatch's own error branch must not also
// delete the registry entry, or the posted call to finish loses the
// race and the caller's callback never fires.
func TestDispatchSynchronousStartFailureStillInvokesCallback(t *testing.T) {
	loop := internal.NewEventLoop()
	defer loop.Stop()
	pool := messenger.NewPool(nilTransport{}, loop, nil)

	ctrl := New(Config{Pool: pool, Loop: loop, Codec: codec.New()})
	if err := ctrl.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer ctrl.Stop()

	done := make(chan request.Snapshot, 1)
	// A function value is unmarshalable by msgpack, so operation.send's
	// buf.Serialize fails synchronously inside StartImpl.
	body := map[string]any{"bad": func() {}}
	id, err := ctrl.dispatch(context.Background(), dispatchConfig{
		Kind:     "REPLICA_CREATE",
		Worker:   "worker-1",
		Body:     body,
		Callback: func(s request.Snapshot) { done <- s },
	})
	if err == nil {
		t.Fatal("expected dispatch to surface the synchronous serialize error")
	}

	select {
	case snap := <-done:
		if snap.ID != id {
			t.Fatalf("callback fired for wrong request: got %s want %s", snap.ID, id)
		}
		if snap.Extended != request.ClientError {
			t.Fatalf("expected ClientError, got %s", snap.Extended)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for callback")
	}

	if ctrl.Pending() != 0 {
		t.Fatalf("expected registry to be empty after finish, got %d pending", ctrl.Pending())
	}
}
