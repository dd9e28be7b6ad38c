package channel

import (
	"time"

	"github.com/cenkalti/backoff/v5"
)

// linearBackOff waits step*n before the n-th reconnect and stops after max
// attempts. With the defaults that is 2s, 4s, 6s, 8s, 10s.
type linearBackOff struct {
	step        time.Duration
	maxAttempts int
	attempt     int
}

var _ backoff.BackOff = (*linearBackOff)(nil)

func newLinearBackOff(step time.Duration, maxAttempts int) *linearBackOff {
	return &linearBackOff{step: step, maxAttempts: maxAttempts}
}

func (b *linearBackOff) NextBackOff() time.Duration {
	if b.attempt >= b.maxAttempts {
		return backoff.Stop
	}
	b.attempt++
	return b.step * time.Duration(b.attempt)
}

func (b *linearBackOff) Reset() {
	b.attempt = 0
}

func (b *linearBackOff) Attempts() int {
	return b.attempt
}
