package qdisp

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"github.com/lsst/qserv-sub022/queue"
)

// AskPriority chooses which lane an AskForResponseData command is
// enqueued at: interactive queries preempt everything, a query that
// has ever reported a large result is pinned to the low lane, and
// everything else runs at normal priority.
type AskPriority int

const (
	AskLow AskPriority = iota
	AskNormal
	AskVeryHigh
)

type askCmd struct {
	id       string
	priority AskPriority
	run      func(ctx context.Context)
}

func (c *askCmd) ID() string { return c.id }

// Pump executes AskForResponseData commands pulled from a shared
// priority queue across a fixed number of goroutines, so an
// interactive query's ask always preempts a queued large-result ask
// even if the large-result one arrived first.
type Pump struct {
	mu    sync.Mutex
	cond  *sync.Cond
	items *queue.Priority[*askCmd]
	seq   atomic.Uint64

	concurrency int
	closed      bool
}

// NewPump builds a Pump draining commands across concurrency
// goroutines once Run is called.
func NewPump(concurrency int) *Pump {
	p := &Pump{
		items:       queue.New[*askCmd](),
		concurrency: concurrency,
	}
	p.cond = sync.NewCond(&p.mu)
	return p
}

// Enqueue schedules run at the given priority.
func (p *Pump) Enqueue(priority AskPriority, run func(ctx context.Context)) {
	p.mu.Lock()
	id := fmt.Sprintf("ask-%d", p.seq.Add(1))
	p.items.PushBack(int(priority), &askCmd{id: id, priority: priority, run: run})
	p.mu.Unlock()
	p.cond.Signal()
}

// pop blocks until a command is available, the pump is closed, or ctx
// is done.
func (p *Pump) pop(ctx context.Context) (*askCmd, bool) {
	done := make(chan struct{})
	stop := context.AfterFunc(ctx, func() {
		close(done)
		p.cond.Broadcast()
	})
	defer stop()

	p.mu.Lock()
	defer p.mu.Unlock()
	for {
		if p.closed {
			return nil, false
		}
		if cmd, ok := p.items.Front(); ok {
			return cmd, true
		}
		select {
		case <-done:
			return nil, false
		default:
		}
		p.cond.Wait()
	}
}

// Run starts concurrency goroutines draining the queue until Close is
// called or ctx is done, then waits for them to exit.
func (p *Pump) Run(ctx context.Context) error {
	var eg errgroup.Group
	for i := 0; i < p.concurrency; i++ {
		eg.Go(func() error {
			for {
				cmd, ok := p.pop(ctx)
				if !ok {
					return nil
				}
				cmd.run(ctx)
			}
		})
	}
	return eg.Wait()
}

// Close stops the pump: pending commands are discarded and Run's
// goroutines exit once they next wake.
func (p *Pump) Close() {
	p.mu.Lock()
	p.closed = true
	p.mu.Unlock()
	p.cond.Broadcast()
}
