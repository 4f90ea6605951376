// Package sim paces the simulation: a rate-adjustable clock mapping wall
// time to simulated seconds, a registry for the mutable beacon set, and a
// runner that owns the engine loop and publishes frames.
package sim

import (
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/kabirarshafidz/galactic-grip/internal/engine"
)

// Clock converts wall time to simulated seconds at an adjustable rate.
// Simulated time pegs at the horizon. Safe for concurrent use. A new clock
// starts paused at zero.
type Clock struct {
	mu       sync.Mutex
	now      func() time.Time
	rate     float64
	simT     float64
	lastWall time.Time
	paused   bool
}

// NewClock returns a paused clock at simulated time zero running at rate
// simulated seconds per wall second.
func NewClock(rate float64) *Clock {
	if rate <= 0 || math.IsNaN(rate) || math.IsInf(rate, 0) {
		rate = 1
	}
	c := &Clock{now: time.Now, rate: rate, paused: true}
	c.lastWall = c.now()
	return c
}

// advanceLocked folds elapsed wall time into simulated time. Callers hold mu.
func (c *Clock) advanceLocked() {
	now := c.now()
	if !c.paused {
		c.simT += c.rate * now.Sub(c.lastWall).Seconds()
		if c.simT > engine.HorizonSeconds {
			c.simT = engine.HorizonSeconds
		}
	}
	c.lastWall = now
}

// Now returns the current simulated time in seconds.
func (c *Clock) Now() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.advanceLocked()
	return c.simT
}

// Pause freezes simulated time.
func (c *Clock) Pause() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.advanceLocked()
	c.paused = true
}

// Resume lets simulated time flow again.
func (c *Clock) Resume() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.advanceLocked()
	c.paused = false
}

// Paused reports whether the clock is frozen.
func (c *Clock) Paused() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.paused
}

// Rate returns the current rate in simulated seconds per wall second.
func (c *Clock) Rate() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.rate
}

// SetRate changes the rate without disturbing the current simulated time.
func (c *Clock) SetRate(rate float64) error {
	if rate <= 0 || math.IsNaN(rate) || math.IsInf(rate, 0) {
		return fmt.Errorf("rate must be a positive number, got %v", rate)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.advanceLocked()
	c.rate = rate
	return nil
}

// Seek jumps to simulated time t, clamped to the run window. Pause state is
// unchanged.
func (c *Clock) Seek(t float64) {
	if math.IsNaN(t) {
		return
	}
	t = math.Min(math.Max(t, 0), engine.HorizonSeconds)
	c.mu.Lock()
	defer c.mu.Unlock()
	c.simT = t
	c.lastWall = c.now()
}

// Reset returns to simulated time zero, paused.
func (c *Clock) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.simT = 0
	c.paused = true
	c.lastWall = c.now()
}
