// Package timeline precomputes the coverage relation at fixed steps across
// the whole simulated day, so seek previews and interval queries answer
// without recomputing orbits per request. The cache rebuilds in the
// background whenever the catalog snapshot or the beacon set changes.
package timeline

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/kabirarshafidz/galactic-grip/internal/catalog"
	"github.com/kabirarshafidz/galactic-grip/internal/engine"
	"github.com/kabirarshafidz/galactic-grip/internal/metrics"
	"github.com/kabirarshafidz/galactic-grip/internal/sim"
)

// Keyframe is the coverage relation at one sampled simulated time.
type Keyframe struct {
	TimeS    float64             `json:"time_s"`
	Coverage map[string][]string `json:"coverage"`
}

// Interval is a sampled out-of-coverage stretch for one beacon. Edges are
// quantized to the sampling step.
type Interval struct {
	StartS float64 `json:"start_s"`
	EndS   float64 `json:"end_s"`
}

// Config shapes the precomputation.
type Config struct {
	// StepSeconds is the sampling interval across the day.
	StepSeconds float64
	// Workers caps the rebuild parallelism. Zero means one per CPU.
	Workers int
	// PollInterval is how often the background loop checks for input
	// changes. Zero selects a sensible default.
	PollInterval time.Duration
}

// buildKey identifies the inputs a frame set was computed from.
type buildKey struct {
	fetchedAt time.Time
	beaconSig string
}

// Cache holds the precomputed keyframes. Safe for concurrent use.
type Cache struct {
	logger *slog.Logger
	cfg    Config
	eng    *engine.Engine
	store  *catalog.Store
	reg    *sim.Registry

	mu       sync.RWMutex
	frames   []Keyframe
	builtFor buildKey
}

// NewCache wires a timeline cache. Frames stay empty until the first
// rebuild.
func NewCache(logger *slog.Logger, cfg Config, eng *engine.Engine, store *catalog.Store, reg *sim.Registry) *Cache {
	if cfg.StepSeconds <= 0 {
		cfg.StepSeconds = 60
	}
	if cfg.Workers < 1 {
		cfg.Workers = runtime.NumCPU()
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 2 * time.Second
	}
	logger.Info("timeline cache initialized",
		"step_s", cfg.StepSeconds,
		"workers", cfg.Workers,
	)
	return &Cache{
		logger: logger,
		cfg:    cfg,
		eng:    eng,
		store:  store,
		reg:    reg,
	}
}

// Start runs the rebuild loop until ctx is done.
func (c *Cache) Start(ctx context.Context) {
	ticker := time.NewTicker(c.cfg.PollInterval)
	defer ticker.Stop()

	c.maybeRebuild(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.maybeRebuild(ctx)
		}
	}
}

// Refresh rebuilds synchronously when the inputs changed. Callers use it to
// warm the cache before serving; Start keeps it fresh afterwards. Not safe
// to call concurrently with Start.
func (c *Cache) Refresh(ctx context.Context) {
	c.maybeRebuild(ctx)
}

// beaconSignature folds the parameters that affect coverage into a
// comparable string.
func beaconSignature(beacons []engine.BeaconConfig) string {
	parts := make([]string, 0, len(beacons))
	for _, b := range beacons {
		parts = append(parts, fmt.Sprintf("%s|%s|%g|%g|%g", b.ID, b.Kind, b.AltitudeKm, b.LSTHours, b.InclinationDeg))
	}
	sort.Strings(parts)
	return strings.Join(parts, ";")
}

// maybeRebuild recomputes the frames when the inputs changed. Runs on the
// Start goroutine only.
func (c *Cache) maybeRebuild(ctx context.Context) {
	ds := c.store.Get()
	if ds == nil {
		return
	}
	beacons := c.reg.List()
	key := buildKey{fetchedAt: ds.FetchedAt, beaconSig: beaconSignature(beacons)}

	c.mu.RLock()
	current := c.builtFor
	c.mu.RUnlock()
	if key == current {
		return
	}

	start := time.Now()
	frames, err := c.rebuild(ctx, ds, beacons)
	if err != nil {
		c.logger.Error("timeline rebuild failed", "error", err)
		return
	}
	if frames == nil {
		// Cancelled mid-build; leave the old frames in place.
		return
	}

	c.mu.Lock()
	c.frames = frames
	c.builtFor = key
	c.mu.Unlock()

	elapsed := time.Since(start)
	metrics.RecordTimelineRebuild(elapsed.Seconds())
	c.logger.Info("timeline rebuilt",
		"frames", len(frames),
		"beacons", len(beacons),
		"satellites", len(ds.Satellites),
		"elapsed_ms", elapsed.Milliseconds(),
	)
}

// rebuild samples the coverage relation across the day with a fixed worker
// pool. Workers write disjoint indices, so no locking is needed. Returns
// nil frames when cancelled.
func (c *Cache) rebuild(ctx context.Context, ds *catalog.Dataset, beacons []engine.BeaconConfig) ([]Keyframe, error) {
	// Validate once up front so workers cannot fail individually.
	if _, err := c.eng.ResolveCoverage(ds, beacons, 0); err != nil {
		return nil, err
	}

	n := int(engine.HorizonSeconds/c.cfg.StepSeconds) + 1
	frames := make([]Keyframe, n)

	jobs := make(chan int, c.cfg.Workers*2)
	var wg sync.WaitGroup
	for w := 0; w < c.cfg.Workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				t := float64(i) * c.cfg.StepSeconds
				if t > engine.HorizonSeconds {
					t = engine.HorizonSeconds
				}
				res, err := c.eng.ResolveCoverage(ds, beacons, t)
				if err != nil {
					// Inputs were validated above; anything here
					// means the dataset is unusable.
					c.logger.Warn("timeline sample failed", "time_s", t, "error", err)
					continue
				}
				coverage := make(map[string][]string, len(beacons))
				for _, b := range beacons {
					coverage[b.ID] = res.Covering(b.ID)
				}
				frames[i] = Keyframe{TimeS: t, Coverage: coverage}
			}
		}()
	}

	cancelled := false
feed:
	for i := 0; i < n; i++ {
		select {
		case jobs <- i:
		case <-ctx.Done():
			cancelled = true
			break feed
		}
	}
	close(jobs)
	wg.Wait()

	if cancelled {
		return nil, nil
	}
	return frames, nil
}

// Ready reports whether a frame set has been built.
func (c *Cache) Ready() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.frames) > 0
}

// StepSeconds returns the sampling interval.
func (c *Cache) StepSeconds() float64 {
	return c.cfg.StepSeconds
}

// Frames returns the current frame set, oldest first. The slice and its
// contents are read-only.
func (c *Cache) Frames() []Keyframe {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.frames
}

// At returns the keyframe nearest to simulated time t, or nil before the
// first rebuild.
func (c *Cache) At(t float64) *Keyframe {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if len(c.frames) == 0 {
		return nil
	}
	i := int(t/c.cfg.StepSeconds + 0.5)
	if i < 0 {
		i = 0
	}
	if i >= len(c.frames) {
		i = len(c.frames) - 1
	}
	return &c.frames[i]
}

// Intervals derives the sampled out-of-coverage stretches for one beacon.
// Unknown beacons get nothing.
func (c *Cache) Intervals(beaconID string) []Interval {
	c.mu.RLock()
	defer c.mu.RUnlock()

	var out []Interval
	open := false
	var startS float64
	for _, f := range c.frames {
		sets, known := f.Coverage[beaconID]
		if !known {
			continue
		}
		covered := len(sets) > 0
		switch {
		case !covered && !open:
			open = true
			startS = f.TimeS
		case covered && open:
			out = append(out, Interval{StartS: startS, EndS: f.TimeS})
			open = false
		}
	}
	if open {
		out = append(out, Interval{StartS: startS, EndS: engine.HorizonSeconds})
	}
	return out
}
