package courier

import (
	"time"
)

// LinearBackOff produces waits that grow by a fixed increment per
// attempt: Initial, Initial+Increment, Initial+2*Increment, and so on.
// The deterministic schedule keeps retry timing predictable, which
// matters when callers stack a concurrency limiter on top.
//
// It implements backoff.BackOff from cenkalti/backoff.
type LinearBackOff struct {
	// Initial is the wait before the first retry.
	Initial time.Duration

	// Increment is added to the wait after every retry.
	Increment time.Duration

	attempt int
}

// NewLinearBackOff returns a schedule of step, 2*step, 3*step, ...
func NewLinearBackOff(step time.Duration) *LinearBackOff {
	return &LinearBackOff{Initial: step, Increment: step}
}

// NextBackOff returns the wait before the next retry.
func (b *LinearBackOff) NextBackOff() time.Duration {
	d := b.Initial + time.Duration(b.attempt)*b.Increment
	b.attempt++
	return d
}

// Reset restarts the schedule from Initial.
func (b *LinearBackOff) Reset() {
	b.attempt = 0
}
