package sim

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/kabirarshafidz/galactic-grip/internal/catalog"
	"github.com/kabirarshafidz/galactic-grip/internal/engine"
	"github.com/kabirarshafidz/galactic-grip/internal/stats"
)

// Frame is the published simulation state at one tick. Frames are immutable
// once stored.
type Frame struct {
	SimTimeS   float64               `json:"sim_time_s"`
	Rate       float64               `json:"rate"`
	Paused     bool                  `json:"paused"`
	Finished   bool                  `json:"finished"`
	Coverage   map[string][]string   `json:"coverage"`
	Satellites []engine.BodyPosition `json:"satellites"`
	Beacons    []engine.BodyPosition `json:"beacons"`
	Stats      *stats.Snapshot       `json:"stats"`
}

// RunnerConfig sets the loop cadence.
type RunnerConfig struct {
	TickInterval time.Duration
}

// Runner owns the engine loop. All engine mutation happens on the loop
// goroutine; control calls only flag work for the next tick, so they are
// safe from any goroutine.
type Runner struct {
	logger *slog.Logger
	eng    *engine.Engine
	store  *catalog.Store
	reg    *Registry
	clock  *Clock
	tick   time.Duration

	frame       atomic.Pointer[Frame]
	pendingSeek atomic.Pointer[float64]
	stopFlag    atomic.Bool
	resetFlag   atomic.Bool
	dirty       atomic.Bool
}

// NewRunner wires a runner. The clock sets pacing; the registry supplies the
// beacon set each tick.
func NewRunner(logger *slog.Logger, eng *engine.Engine, store *catalog.Store, reg *Registry, clock *Clock, cfg RunnerConfig) *Runner {
	tick := cfg.TickInterval
	if tick <= 0 {
		tick = 100 * time.Millisecond
	}
	return &Runner{
		logger: logger,
		eng:    eng,
		store:  store,
		reg:    reg,
		clock:  clock,
		tick:   tick,
	}
}

// Start runs the loop until ctx is done.
func (r *Runner) Start(ctx context.Context) {
	r.logger.Info("runner started", "tick", r.tick, "rate", r.clock.Rate())
	ticker := time.NewTicker(r.tick)
	defer ticker.Stop()

	r.step()
	for {
		select {
		case <-ctx.Done():
			r.logger.Info("runner stopped")
			return
		case <-ticker.C:
			r.step()
		}
	}
}

// Frame returns the latest published frame, or nil before the first tick.
func (r *Runner) Frame() *Frame {
	return r.frame.Load()
}

// Nudge forces the next tick to publish even if nothing seems to have
// changed. Callers use it after mutating shared inputs such as the beacon
// set or the catalog.
func (r *Runner) Nudge() {
	r.dirty.Store(true)
}

// Pause freezes simulated time. Tracking state is kept; the run resumes
// where it stopped.
func (r *Runner) Pause() {
	r.clock.Pause()
	r.Nudge()
}

// Resume lets simulated time flow again.
func (r *Runner) Resume() {
	r.clock.Resume()
	r.Nudge()
}

// SetRate changes the simulation rate.
func (r *Runner) SetRate(rate float64) error {
	if err := r.clock.SetRate(rate); err != nil {
		return err
	}
	r.Nudge()
	return nil
}

// Seek schedules a jump to simulated time t. Jumping backwards, or anywhere
// after the run settled, restarts tracking from scratch at t.
func (r *Runner) Seek(t float64) {
	v := t
	r.pendingSeek.Store(&v)
	r.Nudge()
}

// Stop settles the run at the current simulated time on the next tick.
func (r *Runner) Stop() {
	r.stopFlag.Store(true)
	r.Nudge()
}

// Reset schedules a return to simulated time zero, paused, with tracking
// state cleared.
func (r *Runner) Reset() {
	r.resetFlag.Store(true)
	r.Nudge()
}

// step advances the engine once and publishes a frame. Runs only on the
// loop goroutine (or directly in tests).
func (r *Runner) step() {
	ds := r.store.Get()
	if ds == nil {
		return
	}

	dirty := r.dirty.Swap(false)

	if r.resetFlag.Swap(false) {
		r.clock.Reset()
		r.eng.Reset()
	}
	if ps := r.pendingSeek.Swap(nil); ps != nil {
		r.clock.Seek(*ps)
		if *ps < r.eng.LastTime() || r.eng.Finished() {
			r.eng.Reset()
		}
	}
	stop := r.stopFlag.Swap(false)

	t := r.clock.Now()
	paused := r.clock.Paused()

	if prev := r.frame.Load(); prev != nil && !stop && !dirty {
		// Nothing moved: settled runs and a frozen clock keep the
		// published frame.
		if prev.Finished || (paused && prev.SimTimeS == t) {
			return
		}
	}

	beacons := r.reg.List()
	snap, err := r.eng.Advance(ds, beacons, t, !stop)
	if err != nil {
		r.logger.Error("engine advance failed", "sim_time_s", t, "error", err)
		return
	}

	cov, err := r.eng.ResolveCoverage(ds, beacons, snap.SimTimeS)
	if err != nil {
		r.logger.Error("coverage resolve failed", "sim_time_s", snap.SimTimeS, "error", err)
		return
	}
	satPos, bcPos, err := r.eng.PositionsAt(ds, beacons, snap.SimTimeS)
	if err != nil {
		r.logger.Error("position compute failed", "sim_time_s", snap.SimTimeS, "error", err)
		return
	}

	coverage := make(map[string][]string, len(beacons))
	for _, b := range beacons {
		coverage[b.ID] = cov.Covering(b.ID)
	}

	r.frame.Store(&Frame{
		SimTimeS:   snap.SimTimeS,
		Rate:       r.clock.Rate(),
		Paused:     paused,
		Finished:   r.eng.Finished(),
		Coverage:   coverage,
		Satellites: satPos,
		Beacons:    bcPos,
		Stats:      snap,
	})
}
