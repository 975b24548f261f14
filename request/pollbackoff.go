package request

import "time"

// defaultInitialPollInterval is the interval before the first status
// re-poll of a request still being tracked on the worker.
const defaultInitialPollInterval = 10 * time.Millisecond

// pollBackoff computes the adaptive keep-tracking polling interval: it
// starts at an initial interval and doubles after every poll, saturating
// at a configured ceiling. This keeps latency low for short requests
// while avoiding flooding long-running ones with status polls.
//
// Structurally this mirrors the teacher's backoffCounter (exponential
// with optional jitter, used for message-handler retry delay); here
// there is no jitter and no retry ceiling because the quantity being
// computed is a polling cadence, not a number of attempts.
type pollBackoff struct {
	initial time.Duration
	ceiling time.Duration
	current time.Duration
}

func newPollBackoff(ceiling time.Duration) *pollBackoff {
	if ceiling <= 0 {
		ceiling = DefaultPollCeiling
	}
	return &pollBackoff{
		initial: defaultInitialPollInterval,
		ceiling: ceiling,
	}
}

// reset returns the backoff to its initial interval.
func (p *pollBackoff) reset() {
	p.current = 0
}

// next returns the interval to wait before the next poll and advances
// the internal state by doubling it (capped at ceiling) for the
// following call.
func (p *pollBackoff) next() time.Duration {
	if p.current == 0 {
		p.current = p.initial
		return p.current
	}
	p.current *= 2
	if p.current > p.ceiling {
		p.current = p.ceiling
	}
	return p.current
}
