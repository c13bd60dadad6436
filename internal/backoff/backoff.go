// Package backoff computes exponential retry delays.
package backoff

import (
	"math"
	"math/rand/v2"
	"time"
)

// Policy configures exponential backoff between delivery attempts.
type Policy struct {
	MaxAttempts  int           // Total attempts, including the first
	InitialDelay time.Duration // Delay after the first failure
	MaxDelay     time.Duration // Upper bound for any single delay
	Multiplier   float64       // Growth factor per attempt
	Jitter       float64       // Fractional jitter in [0, 1]
}

// DefaultPolicy returns five attempts starting at 500ms, doubling up to 30s.
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts:  5,
		InitialDelay: 500 * time.Millisecond,
		MaxDelay:     30 * time.Second,
		Multiplier:   2.0,
		Jitter:       0.1,
	}
}

// Delay returns the wait before the retry that follows failed attempt
// number attempt (zero based).
func (p Policy) Delay(attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	mult := p.Multiplier
	if mult < 1 {
		mult = 1
	}

	delay := float64(p.InitialDelay) * math.Pow(mult, float64(attempt))
	if p.MaxDelay > 0 && delay > float64(p.MaxDelay) {
		delay = float64(p.MaxDelay)
	}

	// Jitter: random value in range [-jitter, +jitter]
	if p.Jitter > 0 {
		delay *= 1.0 + (rand.Float64()*2-1)*p.Jitter
	}

	return time.Duration(delay)
}

// Attempts returns MaxAttempts, never less than one.
func (p Policy) Attempts() int {
	if p.MaxAttempts < 1 {
		return 1
	}
	return p.MaxAttempts
}
