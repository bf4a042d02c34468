package jobs

import (
	"time"

	"github.com/cenkalti/backoff/v4"
)

// RetryPolicy describes how a failed job is rescheduled.
type RetryPolicy struct {
	MaxRetries          int
	InitialInterval     time.Duration
	Multiplier          float64
	RandomizationFactor float64
	MaxInterval         time.Duration
}

// DefaultRetryPolicy retries five times, doubling a jittered delay from 2s.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxRetries:          5,
		InitialInterval:     2 * time.Second,
		Multiplier:          2,
		RandomizationFactor: 0.5,
		MaxInterval:         10 * time.Minute,
	}
}

func (p RetryPolicy) backOff() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = p.InitialInterval
	b.Multiplier = p.Multiplier
	b.RandomizationFactor = p.RandomizationFactor
	b.MaxInterval = p.MaxInterval
	b.MaxElapsedTime = 0
	b.Reset()
	return backoff.WithMaxRetries(b, uint64(p.MaxRetries))
}

// NextDelay returns the wait before the retry that follows failure number
// attempt (1 for the first failure). ok is false once retries are used up.
func (p RetryPolicy) NextDelay(attempt int) (delay time.Duration, ok bool) {
	if attempt < 1 {
		return 0, true
	}
	b := p.backOff()
	for i := 0; i < attempt; i++ {
		delay = b.NextBackOff()
		if delay == backoff.Stop {
			return 0, false
		}
	}
	return delay, true
}
