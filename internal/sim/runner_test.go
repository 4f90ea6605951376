package sim

import (
	"io"
	"log/slog"
	"math"
	"testing"
	"time"

	"github.com/kabirarshafidz/galactic-grip/internal/catalog"
	"github.com/kabirarshafidz/galactic-grip/internal/engine"
	"github.com/kabirarshafidz/galactic-grip/internal/orbit"
)

// runnerFixture wires a runner around a one-satellite dataset whose orbit
// matches the test beacon exactly, so the beacon is covered at all times.
func runnerFixture(t *testing.T) (*Runner, func(d time.Duration)) {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	epoch := time.Date(2026, time.March, 1, 0, 0, 0, 0, time.UTC)

	store := catalog.NewStore()
	store.Set(catalog.NewDataset("test", epoch, []catalog.Satellite{{
		ID:             "SAT-MATCH",
		Name:           "SAT-MATCH",
		AltitudeKm:     600,
		InclinationDeg: orbit.SunSyncInclinationDeg,
		RAANDeg:        orbit.SunSyncRAAN(12) * 180 / math.Pi,
		PeriodSeconds:  orbit.CircularPeriod(600),
	}}))

	reg := NewRegistry()
	if err := reg.Seed([]engine.BeaconConfig{{
		ID:         "alpha",
		Name:       "alpha",
		Kind:       engine.KindSunSync,
		AltitudeKm: 600,
		LSTHours:   12,
	}}); err != nil {
		t.Fatalf("Seed: %v", err)
	}

	clock, advance := fakeClock(60)
	eng := engine.New(logger, engine.Config{ReferenceEpoch: epoch})
	r := NewRunner(logger, eng, store, reg, clock, RunnerConfig{TickInterval: 100 * time.Millisecond})
	return r, advance
}

func TestRunnerPublishesFrames(t *testing.T) {
	r, advance := runnerFixture(t)

	r.step()
	frame := r.Frame()
	if frame == nil {
		t.Fatal("no frame after first step")
	}
	if frame.SimTimeS != 0 || !frame.Paused {
		t.Errorf("initial frame = %+v, want paused at 0", frame)
	}

	r.Resume()
	advance(time.Second)
	r.step()

	frame = r.Frame()
	if frame.SimTimeS != 60 {
		t.Errorf("SimTimeS = %v, want 60", frame.SimTimeS)
	}
	if frame.Paused || frame.Finished {
		t.Errorf("frame = %+v, want running", frame)
	}
	if got := frame.Coverage["alpha"]; len(got) != 1 || got[0] != "SAT-MATCH" {
		t.Errorf("Coverage[alpha] = %v, want [SAT-MATCH]", got)
	}
	if len(frame.Satellites) != 1 || len(frame.Beacons) != 1 {
		t.Errorf("positions: %d satellites, %d beacons, want 1 and 1", len(frame.Satellites), len(frame.Beacons))
	}
	if frame.Stats == nil || len(frame.Stats.Beacons) != 1 {
		t.Fatalf("Stats = %+v, want one beacon row", frame.Stats)
	}
}

func TestRunnerSkipsUnchangedPausedFrames(t *testing.T) {
	r, advance := runnerFixture(t)
	r.Resume()
	advance(time.Second)
	r.step()

	r.Pause()
	r.step()
	paused := r.Frame()
	if paused == nil || !paused.Paused {
		t.Fatalf("frame = %+v, want paused", paused)
	}

	advance(10 * time.Second)
	r.step()
	if r.Frame() != paused {
		t.Error("paused runner republished an unchanged frame")
	}

	// A nudge forces a republish even when nothing moved.
	r.Nudge()
	r.step()
	if r.Frame() == paused {
		t.Error("nudge did not republish")
	}
}

func TestRunnerStopSettles(t *testing.T) {
	r, advance := runnerFixture(t)
	r.step() // opens the contact at time zero
	r.Resume()
	advance(time.Second)
	r.step()

	r.Stop()
	r.step()

	frame := r.Frame()
	if !frame.Finished {
		t.Fatalf("frame = %+v, want finished", frame)
	}
	row := frame.Stats.Beacons[0]
	if math.Abs(row.TotalInS-frame.SimTimeS) > 0.01 {
		t.Errorf("TotalInS = %v, want %v", row.TotalInS, frame.SimTimeS)
	}

	// Settled runs stop publishing new frames.
	advance(time.Second)
	r.step()
	if r.Frame() != frame {
		t.Error("settled runner republished")
	}
}

func TestRunnerSeekBackwardRestartsTracking(t *testing.T) {
	r, advance := runnerFixture(t)
	r.Resume()
	advance(2 * time.Second)
	r.step()
	if got := r.Frame().SimTimeS; got != 120 {
		t.Fatalf("SimTimeS = %v, want 120", got)
	}

	r.Seek(30)
	r.step()

	frame := r.Frame()
	if frame.SimTimeS != 30 {
		t.Errorf("SimTimeS = %v after seek, want 30", frame.SimTimeS)
	}
	if frame.Finished {
		t.Error("seek left the run finished")
	}
}

func TestRunnerSeekRevivesSettledRun(t *testing.T) {
	r, advance := runnerFixture(t)
	r.Resume()
	advance(time.Second)
	r.step()
	r.Stop()
	r.step()
	if !r.Frame().Finished {
		t.Fatal("run did not settle")
	}

	r.Seek(600)
	r.step()

	frame := r.Frame()
	if frame.Finished {
		t.Error("seek did not revive the settled run")
	}
	if frame.SimTimeS != 600 {
		t.Errorf("SimTimeS = %v, want 600", frame.SimTimeS)
	}
}

func TestRunnerReset(t *testing.T) {
	r, advance := runnerFixture(t)
	r.Resume()
	advance(time.Second)
	r.step()

	r.Reset()
	r.step()

	frame := r.Frame()
	if frame.SimTimeS != 0 {
		t.Errorf("SimTimeS = %v after reset, want 0", frame.SimTimeS)
	}
	if !frame.Paused {
		t.Error("reset did not pause the run")
	}
	// Covered at time zero: the fresh run opens a contact immediately but
	// has accumulated nothing.
	row := frame.Stats.Beacons[0]
	if row.TotalInS != 0 {
		t.Errorf("TotalInS = %v after reset, want 0", row.TotalInS)
	}
	if row.Handshakes != 1 {
		t.Errorf("Handshakes = %d after reset, want 1", row.Handshakes)
	}
}

func TestRunnerWithoutCatalog(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	clock, _ := fakeClock(60)
	eng := engine.New(logger, engine.Config{})
	r := NewRunner(logger, eng, catalog.NewStore(), NewRegistry(), clock, RunnerConfig{})

	r.step()
	if r.Frame() != nil {
		t.Error("frame published without a catalog")
	}
}
