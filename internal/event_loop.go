package internal

import "sync"

// EventLoop is a small FIFO executor: Post enqueues a func to run on a
// single background goroutine, so that callbacks never fire inline
// from whatever mutex-holding code scheduled them (the messenger's I/O
// completion handlers, a Request's timer callbacks, the controller's
// registry mutations).
//
// It is the cooperative "event service" the spec's messenger and
// controller are described as running on, reduced to the one property
// those components actually depend on: posted functions run later, in
// order, off the caller's stack.
type EventLoop struct {
	mu      sync.Mutex
	pending []func()
	signal  chan struct{}
	done    chan struct{}
	once    sync.Once
}

// NewEventLoop creates and starts an EventLoop. Stop must be called to
// release its goroutine.
func NewEventLoop() *EventLoop {
	l := &EventLoop{
		signal: make(chan struct{}, 1),
		done:   make(chan struct{}),
	}
	go l.run()
	return l
}

func (l *EventLoop) run() {
	for {
		l.mu.Lock()
		batch := l.pending
		l.pending = nil
		l.mu.Unlock()
		for _, fn := range batch {
			fn()
		}
		select {
		case <-l.signal:
		case <-l.done:
			return
		}
	}
}

// Post schedules fn to run on the loop's goroutine. Post never blocks
// and never runs fn synchronously, even if called from the loop's own
// goroutine.
func (l *EventLoop) Post(fn func()) {
	l.mu.Lock()
	l.pending = append(l.pending, fn)
	l.mu.Unlock()
	select {
	case l.signal <- struct{}{}:
	default:
	}
}

// Stop terminates the loop's goroutine. Pending callbacks that were
// never drained are dropped. Stop is idempotent.
func (l *EventLoop) Stop() {
	l.once.Do(func() {
		close(l.done)
	})
}
