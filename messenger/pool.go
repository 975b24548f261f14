package messenger

import (
	"context"
	"log/slog"
	"sync"

	"github.com/puzpuzpuz/xsync/v3"

	"github.com/lsst/qserv-sub022/internal"
)

// Pool owns one Conn per worker name, created lazily on first Send.
// The connection map is a puzpuzpuz/xsync.MapOf rather than a
// mutex-guarded map: Send is the hot path for every in-flight request
// across every worker, and xsync's sharded map avoids funneling that
// traffic through a single lock the way a plain map+sync.Mutex would.
type Pool struct {
	transport Transport
	loop      *internal.EventLoop
	log       *slog.Logger
	conns     *xsync.MapOf[string, *Conn]
	wg        sync.WaitGroup
	ctx       context.Context
	cancel    context.CancelFunc
}

// NewPool creates a Pool. Start must be called before Send.
func NewPool(transport Transport, loop *internal.EventLoop, log *slog.Logger) *Pool {
	return &Pool{
		transport: transport,
		loop:      loop,
		log:       log,
		conns:     xsync.NewMapOf[string, *Conn](),
	}
}

// Start prepares the pool to accept Send calls. Connections are still
// created lazily per worker.
func (p *Pool) Start(ctx context.Context) {
	p.ctx, p.cancel = context.WithCancel(ctx)
}

// Stop terminates every worker connection and waits for their
// goroutines to exit.
func (p *Pool) Stop() {
	if p.cancel != nil {
		p.cancel()
	}
	p.conns.Range(func(worker string, c *Conn) bool {
		c.Stop()
		return true
	})
	p.wg.Wait()
}

func (p *Pool) connFor(worker string) *Conn {
	c, loaded := p.conns.LoadOrCompute(worker, func() *Conn {
		conn := NewConn(ConnConfig{
			Worker:    worker,
			Transport: p.transport,
			Loop:      p.loop,
			Log:       p.log,
		})
		p.wg.Add(1)
		go func() {
			defer p.wg.Done()
			conn.Run(p.ctx)
		}()
		return conn
	})
	_ = loaded
	return c
}

// Send enqueues env on worker's connection, dialing and starting that
// connection's goroutine on first use.
func (p *Pool) Send(worker string, env *Envelope) {
	p.connFor(worker).Push(env)
}

// Cancel removes id from worker's pending queue, or aborts it if it is
// currently in flight.
func (p *Pool) Cancel(worker, id string) {
	if c, ok := p.conns.Load(worker); ok {
		c.Cancel(id)
	}
}

// ConnState reports the connection state for worker, or Initial if no
// connection has been created yet.
func (p *Pool) ConnState(worker string) State {
	if c, ok := p.conns.Load(worker); ok {
		return c.State()
	}
	return Initial
}
