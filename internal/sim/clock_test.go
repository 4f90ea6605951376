package sim

import (
	"testing"
	"time"

	"github.com/kabirarshafidz/galactic-grip/internal/engine"
)

// fakeClock returns a clock driven by a hand-cranked wall time.
func fakeClock(rate float64) (*Clock, func(d time.Duration)) {
	cur := time.Date(2026, time.March, 1, 0, 0, 0, 0, time.UTC)
	c := NewClock(rate)
	c.now = func() time.Time { return cur }
	c.lastWall = cur
	return c, func(d time.Duration) { cur = cur.Add(d) }
}

func TestClockStartsPaused(t *testing.T) {
	c, advance := fakeClock(60)
	if !c.Paused() {
		t.Fatal("new clock not paused")
	}
	advance(10 * time.Second)
	if got := c.Now(); got != 0 {
		t.Errorf("Now = %v while paused, want 0", got)
	}
}

func TestClockRate(t *testing.T) {
	c, advance := fakeClock(60)
	c.Resume()
	advance(1 * time.Second)
	if got := c.Now(); got != 60 {
		t.Errorf("Now = %v after 1s at rate 60, want 60", got)
	}

	if err := c.SetRate(120); err != nil {
		t.Fatalf("SetRate: %v", err)
	}
	advance(1 * time.Second)
	if got := c.Now(); got != 180 {
		t.Errorf("Now = %v after rate change, want 180", got)
	}

	if err := c.SetRate(0); err == nil {
		t.Error("SetRate(0) accepted")
	}
	if err := c.SetRate(-5); err == nil {
		t.Error("SetRate(-5) accepted")
	}
}

func TestClockPauseResume(t *testing.T) {
	c, advance := fakeClock(60)
	c.Resume()
	advance(2 * time.Second)
	c.Pause()
	advance(30 * time.Second)
	if got := c.Now(); got != 120 {
		t.Errorf("Now = %v after pause, want 120", got)
	}
	c.Resume()
	advance(1 * time.Second)
	if got := c.Now(); got != 180 {
		t.Errorf("Now = %v after resume, want 180", got)
	}
}

func TestClockSeekAndReset(t *testing.T) {
	c, advance := fakeClock(60)
	c.Seek(5000)
	if got := c.Now(); got != 5000 {
		t.Errorf("Now = %v after seek, want 5000", got)
	}
	if !c.Paused() {
		t.Error("seek changed pause state")
	}

	c.Seek(-10)
	if got := c.Now(); got != 0 {
		t.Errorf("Now = %v after negative seek, want 0", got)
	}
	c.Seek(1e9)
	if got := c.Now(); got != engine.HorizonSeconds {
		t.Errorf("Now = %v after far seek, want horizon", got)
	}

	c.Resume()
	advance(time.Second)
	c.Reset()
	if got := c.Now(); got != 0 {
		t.Errorf("Now = %v after reset, want 0", got)
	}
	if !c.Paused() {
		t.Error("reset did not pause the clock")
	}
}

func TestClockPegsAtHorizon(t *testing.T) {
	c, advance := fakeClock(86400)
	c.Resume()
	advance(2 * time.Second)
	if got := c.Now(); got != engine.HorizonSeconds {
		t.Errorf("Now = %v, want pegged at %v", got, engine.HorizonSeconds)
	}
	advance(time.Hour)
	if got := c.Now(); got != engine.HorizonSeconds {
		t.Errorf("Now = %v long after the horizon, want %v", got, engine.HorizonSeconds)
	}
}

func TestNewClockRejectsBadRate(t *testing.T) {
	c := NewClock(-3)
	if got := c.Rate(); got != 1 {
		t.Errorf("Rate = %v for invalid construction, want fallback 1", got)
	}
}
