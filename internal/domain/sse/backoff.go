package sse

import (
	"time"

	"github.com/cenkalti/backoff/v4"
)

// Backoff configures capped exponential reconnect delays.
type Backoff struct {
	Initial    time.Duration
	Max        time.Duration
	Multiplier float64
	// Jitter spreads each delay by ±Jitter (0.2 = ±20%).
	Jitter float64
}

func DefaultBackoff() Backoff {
	return Backoff{
		Initial:    time.Second,
		Max:        30 * time.Second,
		Multiplier: 2,
		Jitter:     0.2,
	}
}

// retryPolicy is the reconnect schedule of one connection loop. It never
// gives up; the manager decides when the channel counts as Failed.
type retryPolicy struct {
	max time.Duration
	exp *backoff.ExponentialBackOff
}

func (b Backoff) newPolicy() *retryPolicy {
	exp := backoff.NewExponentialBackOff()
	exp.InitialInterval = b.Initial
	exp.MaxInterval = b.Max
	exp.Multiplier = b.Multiplier
	if exp.Multiplier < 1 {
		exp.Multiplier = 1
	}
	exp.RandomizationFactor = b.Jitter
	exp.MaxElapsedTime = 0
	exp.Reset()
	return &retryPolicy{max: b.Max, exp: exp}
}

// Next returns the wait before the next attempt. Jitter never pushes it past Max.
func (p *retryPolicy) Next() time.Duration {
	d := p.exp.NextBackOff()
	if d == backoff.Stop || d > p.max {
		d = p.max
	}
	return d
}

// Reset starts over from Initial, after a connection was accepted.
func (p *retryPolicy) Reset() {
	p.exp.Reset()
}

// clampFloor bounds a server retry hint by Max.
func (b Backoff) clampFloor(d time.Duration) time.Duration {
	if d > b.Max {
		return b.Max
	}
	return d
}
