package internal

import (
	"sync"
	"time"
)

// DeadlineTimer fires a callback once after a duration, and may be
// rearmed with a new duration before it fires (used by request.Base for
// both the hard-expiration timer and the adaptive keep-tracking timer,
// which is rearmed with a growing interval on every poll).
//
// Unlike TimerTask, DeadlineTimer is single-shot per arming and does not
// loop on a ticker; Cancel is idempotent.
type DeadlineTimer struct {
	mu    sync.Mutex
	timer *time.Timer
}

// Arm schedules fn to run after d, replacing any previously armed timer.
func (t *DeadlineTimer) Arm(d time.Duration, fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.timer != nil {
		t.timer.Stop()
	}
	t.timer = time.AfterFunc(d, fn)
}

// Cancel stops the timer if armed. It is safe to call multiple times and
// on a timer that was never armed.
func (t *DeadlineTimer) Cancel() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.timer != nil {
		t.timer.Stop()
		t.timer = nil
	}
}
