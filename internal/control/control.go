package control

import "time"

// RetryPolicy bounds completion attempts. The delay between attempts is
// fixed (no growth, no jitter) and is never applied after the final attempt.
type RetryPolicy struct {
	Attempts int
	Delay    time.Duration
}

// DefaultRetryPolicy returns the stock policy: three attempts, one second apart.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		Attempts: 3,
		Delay:    time.Second,
	}
}

// Normalize clamps the policy to usable values. At least one attempt is
// always made; negative delays collapse to zero.
func (p RetryPolicy) Normalize() RetryPolicy {
	if p.Attempts < 1 {
		p.Attempts = 1
	}
	if p.Delay < 0 {
		p.Delay = 0
	}
	return p
}
