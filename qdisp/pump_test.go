package qdisp_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/lsst/qserv-sub022/qdisp"
)

func TestPumpDrainsHighestPriorityFirst(t *testing.T) {
	p := qdisp.NewPump(1)

	var mu sync.Mutex
	var order []string
	done := make(chan struct{})
	record := func(name string) func(context.Context) {
		return func(context.Context) {
			mu.Lock()
			order = append(order, name)
			n := len(order)
			mu.Unlock()
			if n == 3 {
				close(done)
			}
		}
	}

	p.Enqueue(qdisp.AskLow, record("low"))
	p.Enqueue(qdisp.AskNormal, record("normal"))
	p.Enqueue(qdisp.AskVeryHigh, record("high"))

	ctx, cancel := context.WithCancel(context.Background())
	runDone := make(chan error, 1)
	go func() { runDone <- p.Run(ctx) }()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for all three commands to run")
	}
	cancel()
	<-runDone

	mu.Lock()
	defer mu.Unlock()
	want := []string{"high", "normal", "low"}
	for i, w := range want {
		if order[i] != w {
			t.Fatalf("expected order %v, got %v", want, order)
		}
	}
}

func TestPumpCloseStopsRun(t *testing.T) {
	p := qdisp.NewPump(2)
	runDone := make(chan error, 1)
	go func() { runDone <- p.Run(context.Background()) }()

	time.Sleep(5 * time.Millisecond)
	p.Close()

	select {
	case err := <-runDone:
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("expected Run to return after Close")
	}
}
