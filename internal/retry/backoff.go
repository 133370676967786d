package retry

import (
	"math/rand"
	"time"
)

// Backoff computes exponential retry delays with jitter
type Backoff struct {
	InitialDelay time.Duration
	MaxDelay     time.Duration
}

// NewBackoff creates a backoff policy with the given bounds
func NewBackoff(initial, max time.Duration) Backoff {
	if initial <= 0 {
		initial = 5 * time.Second
	}
	if max < initial {
		max = initial
	}
	return Backoff{InitialDelay: initial, MaxDelay: max}
}

// Delay returns the delay before retrying the given zero-based attempt:
// min(MaxDelay, InitialDelay*2^attempt) plus uniform jitter in
// [0, 0.1*delay]. Never negative, never above MaxDelay*1.1.
func (b Backoff) Delay(attempt int) time.Duration {
	d := b.InitialDelay
	// Doubling stops at the cap, so large attempt counts cannot overflow
	for i := 0; i < attempt && d < b.MaxDelay; i++ {
		d *= 2
	}
	if d > b.MaxDelay {
		d = b.MaxDelay
	}
	jitter := time.Duration(rand.Int63n(int64(d)/10 + 1))
	return d + jitter
}
