package qserv_test

import (
	"context"
	"encoding/binary"
	"io"
	"net"
	"testing"
	"time"

	qserv "github.com/lsst/qserv-sub022"
	"github.com/lsst/qserv-sub022/codec"
	"github.com/lsst/qserv-sub022/internal"
	"github.com/lsst/qserv-sub022/messenger"
	"github.com/lsst/qserv-sub022/request"
)

// scriptedTransport replies to every request on worker with the
// framed responses in order, repeating the last one once exhausted.
type scriptedTransport struct {
	responses map[string][][]byte
}

func (t *scriptedTransport) Dial(ctx context.Context, worker string) (messenger.Stream, error) {
	client, server := net.Pipe()
	go t.serve(server, worker)
	return client, nil
}

func (t *scriptedTransport) serve(conn net.Conn, worker string) {
	defer conn.Close()
	responses := t.responses[worker]
	i := 0
	for {
		header := make([]byte, 4)
		if _, err := io.ReadFull(conn, header); err != nil {
			return
		}
		length := binary.BigEndian.Uint32(header)
		payload := make([]byte, length)
		if _, err := io.ReadFull(conn, payload); err != nil {
			return
		}
		resp := responses[i]
		if i < len(responses)-1 {
			i++
		}
		respHeader := make([]byte, 4)
		binary.BigEndian.PutUint32(respHeader, uint32(len(resp)))
		if _, err := conn.Write(respHeader); err != nil {
			return
		}
		if _, err := conn.Write(resp); err != nil {
			return
		}
	}
}

func frameBody(t *testing.T, body map[string]any) []byte {
	t.Helper()
	c := codec.New()
	data, err := c.Marshal(nil, body)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return data
}

func newTestController(t *testing.T, responses map[string][][]byte) *qserv.Controller {
	t.Helper()
	transport := &scriptedTransport{responses: responses}
	loop := internal.NewEventLoop()
	t.Cleanup(loop.Stop)
	pool := messenger.NewPool(transport, loop, nil)

	ctrl := qserv.New(qserv.Config{
		Pool:  pool,
		Loop:  loop,
		Codec: codec.New(),
	})
	if err := ctrl.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	t.Cleanup(func() { ctrl.Stop() })
	return ctrl
}

func TestReplicateSucceeds(t *testing.T) {
	ctrl := newTestController(t, map[string][][]byte{
		"worker-2": {frameBody(t, map[string]any{"status": "SUCCESS"})},
	})

	done := make(chan request.Snapshot, 1)
	_, err := ctrl.Replicate(context.Background(), "worker-2", "LSST", 12, "worker-1", qserv.RequestOptions{
		JobID:    "job-1",
		Callback: func(s request.Snapshot) { done <- s },
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	select {
	case snap := <-done:
		if snap.Extended != request.Success {
			t.Fatalf("expected Success, got %s", snap.Extended)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for callback")
	}
	if ctrl.Pending() != 0 {
		t.Fatalf("expected empty registry after completion, got %d pending", ctrl.Pending())
	}
}

func TestReplicateKeepsTrackingThroughQueuedThenSucceeds(t *testing.T) {
	ctrl := newTestController(t, map[string][][]byte{
		"worker-2": {
			frameBody(t, map[string]any{"status": "QUEUED"}),
			frameBody(t, map[string]any{"status": "SUCCESS"}),
		},
	})

	done := make(chan request.Snapshot, 1)
	_, err := ctrl.Replicate(context.Background(), "worker-2", "LSST", 12, "worker-1", qserv.RequestOptions{
		JobID:    "job-2",
		Callback: func(s request.Snapshot) { done <- s },
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	select {
	case snap := <-done:
		if snap.Extended != request.Success {
			t.Fatalf("expected eventual Success, got %s", snap.Extended)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for keep-tracking poll to resolve")
	}
}

func TestDispatchFailsWhenNotRunning(t *testing.T) {
	ctrl := qserv.New(qserv.Config{Codec: codec.New()})
	_, err := ctrl.FindReplica(context.Background(), "worker-1", "LSST", 1, qserv.RequestOptions{})
	if err != qserv.ErrNotRunning {
		t.Fatalf("expected ErrNotRunning, got %v", err)
	}
}

func TestStopFailsWithRequestsStillInFlight(t *testing.T) {
	ctrl := newTestController(t, map[string][][]byte{
		"worker-2": {frameBody(t, map[string]any{"status": "IN_PROGRESS"})},
	})
	_, err := ctrl.Replicate(context.Background(), "worker-2", "LSST", 12, "worker-1", qserv.RequestOptions{JobID: "job-3"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	time.Sleep(20 * time.Millisecond)

	if err := ctrl.Stop(); err == nil {
		t.Fatal("expected Stop to report the registry is non-empty")
	}
}
