// Package ratecontrol implements the closed-loop request pacer each
// dispatcher worker uses to steer its issue rate toward a target RPS, with
// an optional linear ramp-up.
package ratecontrol

import (
	"sync"
	"time"
)

// DefaultInitialWait is the pacer's starting sleep before any observation
// has been made.
const DefaultInitialWait = 100 * time.Millisecond

// RPSForRampup returns the effective target RPS at elapsed seconds into a
// run with the given rampupSeconds and final target rps. Before the ramp
// completes the target grows linearly from 0; at or after rampupSeconds it
// is exactly rps. A rampupSeconds of 0 disables ramping, returning rps
// unconditionally.
func RPSForRampup(elapsedSeconds, rampupSeconds float64, rps float64) float64 {
	if rampupSeconds <= 0 || elapsedSeconds >= rampupSeconds {
		return rps
	}
	return rps * elapsedSeconds / rampupSeconds
}

// Controller paces calls toward a target rate. Its methods are guarded by a
// mutex and safe for concurrent use; each dispatcher run owns one.
type Controller struct {
	mu         sync.Mutex
	rps        float64
	rampup     time.Duration
	start      time.Time
	lastWait   time.Duration
	callsCount int64
}

// New creates a Controller targeting rps requests/second, ramping up
// linearly over rampup (0 disables ramping), starting the clock at start.
func New(rps float64, rampup time.Duration, start time.Time) *Controller {
	return &Controller{
		rps:      rps,
		rampup:   rampup,
		start:    start,
		lastWait: DefaultInitialWait,
	}
}

// RecordCall tells the controller one more call has been issued. Call this
// once per issued call, before WaitTime.
func (c *Controller) RecordCall() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.callsCount++
}

// WaitTime computes the next pacing interval given the current time and
// returns it; the caller is responsible for sleeping. The returned value
// also becomes the baseline for the next adjustment.
func (c *Controller) WaitTime(now time.Time) time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()

	elapsed := now.Sub(c.start)
	elapsedSeconds := elapsed.Seconds()

	target := RPSForRampup(elapsedSeconds, c.rampup.Seconds(), c.rps)

	var currentRPS float64
	if elapsedSeconds > 1 {
		currentRPS = float64(c.callsCount) / elapsedSeconds
	} else {
		currentRPS = float64(c.callsCount)
	}

	wait := c.lastWait
	switch {
	case target <= 0:
		// no target yet at the very start of a ramp; leave wait unchanged.
	case currentRPS > target:
		wait += time.Duration(float64(c.lastWait) * target / currentRPS)
	case currentRPS < target-1:
		wait -= time.Duration(float64(c.lastWait) * currentRPS / target)
	}

	if wait < 0 {
		wait = 0
	}

	c.lastWait = wait
	return wait
}
