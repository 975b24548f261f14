package messenger

import (
	"context"
	"encoding/binary"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/jpillora/backoff"

	"github.com/lsst/qserv-sub022/internal"
	"github.com/lsst/qserv-sub022/queue"
)

// State is a Conn's connection state.
type State uint8

const (
	Initial State = iota
	Connecting
	Communicating
)

func (s State) String() string {
	switch s {
	case Initial:
		return "INITIAL"
	case Connecting:
		return "CONNECTING"
	case Communicating:
		return "COMMUNICATING"
	default:
		return "UNKNOWN"
	}
}

// ConnConfig configures a single worker connection.
type ConnConfig struct {
	Worker    string
	Transport Transport
	Loop      *internal.EventLoop
	Log       *slog.Logger
	// ReconnectMin/Max bound the backoff applied between reconnect
	// attempts after a transport error.
	ReconnectMin time.Duration
	ReconnectMax time.Duration
}

// Conn multiplexes Envelopes to one worker over one persistent Stream,
// per §4.3. It runs its own single goroutine; all queue and state
// mutation happens on that goroutine except for Push and Cancel, which
// synchronize via mu.
type Conn struct {
	cfg ConnConfig

	mu        sync.Mutex
	state     State
	q         *queue.Priority[*Envelope]
	stream    Stream
	current   *Envelope
	cancelled map[string]bool

	wake   chan struct{}
	done   chan struct{}
	closed chan struct{}

	backoff *backoff.Backoff
}

// NewConn creates a Conn in the Initial state. Run must be called to
// start its goroutine.
func NewConn(cfg ConnConfig) *Conn {
	if cfg.ReconnectMin <= 0 {
		cfg.ReconnectMin = 100 * time.Millisecond
	}
	if cfg.ReconnectMax <= 0 {
		cfg.ReconnectMax = 10 * time.Second
	}
	return &Conn{
		cfg:       cfg,
		q:         queue.New[*Envelope](),
		cancelled: make(map[string]bool),
		wake:      make(chan struct{}, 1),
		done:      make(chan struct{}),
		closed:    make(chan struct{}),
		backoff: &backoff.Backoff{
			Min:    cfg.ReconnectMin,
			Max:    cfg.ReconnectMax,
			Factor: 2,
			Jitter: true,
		},
	}
}

// Run executes the connection's cooperative loop until ctx is done or
// Stop is called. It must be run on its own goroutine.
func (c *Conn) Run(ctx context.Context) {
	defer close(c.closed)
	for {
		select {
		case <-ctx.Done():
			return
		case <-c.done:
			return
		default:
		}
		env, ok := c.popNext()
		if !ok {
			select {
			case <-c.wake:
				continue
			case <-ctx.Done():
				return
			case <-c.done:
				return
			}
		}
		c.process(ctx, env)
	}
}

// Stop terminates the connection's goroutine and closes its stream, if
// any. Queued envelopes are left untouched; it is the caller's
// responsibility to drain/cancel them first if that matters.
func (c *Conn) Stop() {
	select {
	case <-c.done:
	default:
		close(c.done)
	}
	c.mu.Lock()
	if c.stream != nil {
		_ = c.stream.Close()
	}
	c.mu.Unlock()
	<-c.closed
}

// Push enqueues env for sending. Requests within the same priority
// lane are sent in FIFO order.
func (c *Conn) Push(env *Envelope) {
	c.mu.Lock()
	c.q.PushBack(env.priority, env)
	c.mu.Unlock()
	select {
	case c.wake <- struct{}{}:
	default:
	}
}

// Cancel removes env by id from the pending queue. If it is the
// envelope currently in flight, the active I/O is aborted by closing
// the stream; per §4.3 the request is not requeued in either case.
func (c *Conn) Cancel(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.q.Remove(id) {
		return
	}
	if c.current != nil && c.current.id == id {
		c.cancelled[id] = true
		if c.stream != nil {
			_ = c.stream.Close()
		}
	}
}

func (c *Conn) popNext() (*Envelope, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	env, ok := c.q.Front()
	if ok {
		c.current = env
	}
	return env, ok
}

func (c *Conn) setState(s State) {
	c.mu.Lock()
	c.state = s
	c.mu.Unlock()
}

// State returns the connection's current state.
func (c *Conn) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *Conn) process(ctx context.Context, env *Envelope) {
	stream, err := c.ensureConnected(ctx)
	if err != nil {
		c.finishTransportError(env, err)
		return
	}
	if err := c.sendAndReceive(stream, env); err != nil {
		c.mu.Lock()
		wasCancelled := c.cancelled[env.id]
		delete(c.cancelled, env.id)
		c.current = nil
		c.mu.Unlock()
		c.teardown()
		if wasCancelled {
			// §4.3: cancellation of the in-flight request is not
			// reported through the transport error path and is not
			// requeued; the controller's own registry cleans it up.
			return
		}
		c.requeue(env)
		return
	}
	c.mu.Lock()
	c.current = nil
	c.mu.Unlock()
	env.Success = true
	c.complete(env, nil)
}

func (c *Conn) ensureConnected(ctx context.Context) (Stream, error) {
	c.mu.Lock()
	if c.state == Communicating && c.stream != nil {
		s := c.stream
		c.mu.Unlock()
		return s, nil
	}
	c.mu.Unlock()

	c.setState(Connecting)
	stream, err := c.cfg.Transport.Dial(ctx, c.cfg.Worker)
	if err != nil {
		c.setState(Initial)
		return nil, err
	}
	c.mu.Lock()
	c.stream = stream
	c.state = Communicating
	c.mu.Unlock()
	c.backoff.Reset()
	return stream, nil
}

// sendAndReceive writes the envelope's framed request and synchronously
// reads back one framed response. Per §4.3 this is the entire send
// protocol: write -> read header -> read payload -> success.
func (c *Conn) sendAndReceive(stream Stream, env *Envelope) error {
	if _, err := stream.Write(env.outbound); err != nil {
		return err
	}
	header := make([]byte, 4)
	if _, err := io.ReadFull(stream, header); err != nil {
		return err
	}
	length := binary.BigEndian.Uint32(header)
	payload := make([]byte, length)
	if _, err := io.ReadFull(stream, payload); err != nil {
		return err
	}
	env.Response = payload
	return nil
}

func (c *Conn) teardown() {
	c.mu.Lock()
	if c.stream != nil {
		_ = c.stream.Close()
		c.stream = nil
	}
	c.state = Initial
	c.mu.Unlock()
}

func (c *Conn) requeue(env *Envelope) {
	c.mu.Lock()
	c.q.PushFront(env.priority, env)
	c.mu.Unlock()
	delay := c.backoff.Duration()
	if c.cfg.Log != nil {
		c.cfg.Log.Warn("messenger: reconnect backoff", "worker", c.cfg.Worker, "delay", delay)
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-timer.C:
	case <-c.done:
	}
}

func (c *Conn) finishTransportError(env *Envelope, err error) {
	c.mu.Lock()
	c.current = nil
	c.mu.Unlock()
	c.requeue(env)
}

func (c *Conn) complete(env *Envelope, err error) {
	if c.cfg.Loop != nil {
		c.cfg.Loop.Post(func() { env.OnComplete(env, err) })
	} else {
		env.OnComplete(env, err)
	}
}
