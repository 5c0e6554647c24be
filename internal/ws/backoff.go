package ws

import "time"

const (
	defaultBaseDelay   = time.Second
	defaultMaxDelay    = 30 * time.Second
	defaultMaxAttempts = 5
)

// reconnector tracks reconnect attempts for one supervisor. Exponential:
// base << attempt, capped by maxDelay. Exceeding maxAttempts is terminal.
type reconnector struct {
	baseDelay   time.Duration
	maxDelay    time.Duration
	maxAttempts int
	attempt     int
}

func newReconnector(base, max time.Duration, attempts int) *reconnector {
	if base <= 0 {
		base = defaultBaseDelay
	}
	if max <= 0 {
		max = defaultMaxDelay
	}
	if attempts <= 0 {
		attempts = defaultMaxAttempts
	}
	return &reconnector{baseDelay: base, maxDelay: max, maxAttempts: attempts}
}

func (r *reconnector) exhausted() bool {
	return r.attempt >= r.maxAttempts
}

// nextDelay returns the delay for the current attempt and increments the
// counter.
func (r *reconnector) nextDelay() time.Duration {
	delay := r.baseDelay << r.attempt
	if delay > r.maxDelay {
		delay = r.maxDelay
	}
	r.attempt++
	return delay
}

// reset is called on every successful open, so the next disconnect starts
// from attempt 0 again.
func (r *reconnector) reset() {
	r.attempt = 0
}
