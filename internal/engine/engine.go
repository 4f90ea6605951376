// Package engine advances the one-day coverage simulation: it resolves which
// satellites cover which beacons at a simulated time, feeds the
// edge-triggered trackers, and aggregates the run statistics.
package engine

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/kabirarshafidz/galactic-grip/internal/catalog"
	"github.com/kabirarshafidz/galactic-grip/internal/coverage"
	"github.com/kabirarshafidz/galactic-grip/internal/metrics"
	"github.com/kabirarshafidz/galactic-grip/internal/orbit"
	"github.com/kabirarshafidz/galactic-grip/internal/stats"
	"github.com/kabirarshafidz/galactic-grip/internal/tracking"
)

// HorizonSeconds is the simulated day every run spans.
const HorizonSeconds = 86400.0

var (
	// ErrNoCatalog is returned when no satellite dataset is loaded.
	ErrNoCatalog = errors.New("no catalog loaded")

	// ErrTimeReversed is returned when simulated time moves backwards
	// without a reset.
	ErrTimeReversed = errors.New("simulated time moved backwards")
)

// Config holds the engine's fixed run parameters.
type Config struct {
	// ReferenceEpoch is the wall-clock instant mapped to simulated time
	// zero. Zero means now, captured once at construction.
	ReferenceEpoch time.Time

	// GroundRadiusKm sets the coverage footprint radius measured along
	// the ground. Zero selects the default footprint.
	GroundRadiusKm float64

	// InCoverageFromIntervals derives each beacon's in-coverage total
	// from its out-of-coverage intervals instead of summing contact
	// durations.
	InCoverageFromIntervals bool
}

// Engine owns the mutable tracking state of one simulation run.
//
// Advance and Reset must be called from a single goroutine. ResolveCoverage
// and PositionsAt never touch run state and are safe for concurrent use.
type Engine struct {
	logger *slog.Logger
	cfg    Config
	cone   coverage.Cone

	bodyMu    sync.Mutex
	bodyCache atomic.Pointer[bodyCacheEntry]

	arena    *tracking.Arena
	lastT    float64
	finished bool
}

// bodyCacheEntry pins converted satellite bodies to the dataset snapshot
// they came from.
type bodyCacheEntry struct {
	fetchedAt time.Time
	bodies    []coverage.Body
}

// New builds an engine. A zero ReferenceEpoch is resolved to the current
// time here so every later conversion sees the same anchor.
func New(logger *slog.Logger, cfg Config) *Engine {
	if cfg.ReferenceEpoch.IsZero() {
		cfg.ReferenceEpoch = time.Now().UTC()
	}
	if cfg.GroundRadiusKm <= 0 || math.IsNaN(cfg.GroundRadiusKm) {
		cfg.GroundRadiusKm = coverage.DefaultGroundRadiusKm
	}
	return &Engine{
		logger: logger,
		cfg:    cfg,
		cone:   coverage.NewCone(cfg.GroundRadiusKm),
		arena:  tracking.NewArena(),
	}
}

// ReferenceEpoch returns the wall-clock instant mapped to simulated time zero.
func (e *Engine) ReferenceEpoch() time.Time {
	return e.cfg.ReferenceEpoch
}

// Finished reports whether the run has settled.
func (e *Engine) Finished() bool {
	return e.finished
}

// LastTime returns the last simulated time the run advanced to.
func (e *Engine) LastTime() float64 {
	return e.lastT
}

// satelliteBodies converts a dataset to coverage bodies once per snapshot.
// Snapshots are immutable, so the conversion is keyed by fetch time.
func (e *Engine) satelliteBodies(ds *catalog.Dataset) []coverage.Body {
	if cached := e.bodyCache.Load(); cached != nil && cached.fetchedAt.Equal(ds.FetchedAt) {
		return cached.bodies
	}

	e.bodyMu.Lock()
	defer e.bodyMu.Unlock()

	if cached := e.bodyCache.Load(); cached != nil && cached.fetchedAt.Equal(ds.FetchedAt) {
		return cached.bodies
	}

	bodies := make([]coverage.Body, 0, len(ds.Satellites))
	for _, s := range ds.Satellites {
		bodies = append(bodies, coverage.Body{ID: s.ID, Params: s.OrbitParams(e.cfg.ReferenceEpoch)})
	}
	e.bodyCache.Store(&bodyCacheEntry{fetchedAt: ds.FetchedAt, bodies: bodies})
	e.logger.Debug("converted catalog snapshot", "satellites", len(bodies), "fetched_at", ds.FetchedAt)
	return bodies
}

// beaconBodies validates the beacon set and converts it to coverage bodies.
func beaconBodies(beacons []BeaconConfig) ([]coverage.Body, error) {
	if len(beacons) > MaxBeacons {
		return nil, fmt.Errorf("%w: %d beacons, limit %d", ErrInvalidBeacon, len(beacons), MaxBeacons)
	}
	seen := make(map[string]bool, len(beacons))
	bodies := make([]coverage.Body, 0, len(beacons))
	for _, b := range beacons {
		if err := b.Validate(); err != nil {
			return nil, err
		}
		if seen[b.ID] {
			return nil, fmt.Errorf("%w: duplicate id %q", ErrInvalidBeacon, b.ID)
		}
		seen[b.ID] = true
		bodies = append(bodies, coverage.Body{ID: b.ID, Params: b.OrbitParams()})
	}
	return bodies, nil
}

// Advance moves the run to simulated time t and returns the aggregated
// snapshot. t equal to zero starts a fresh run. running false settles the
// run early: open contacts and intervals close at the clamped time and the
// run refuses further mutation until a reset. Times beyond the horizon
// settle the run at the horizon.
func (e *Engine) Advance(ds *catalog.Dataset, beacons []BeaconConfig, t float64, running bool) (*stats.Snapshot, error) {
	start := time.Now()

	if ds == nil {
		return nil, ErrNoCatalog
	}
	if math.IsNaN(t) || math.IsInf(t, 0) || t < 0 {
		return nil, fmt.Errorf("simulated time %v out of range", t)
	}
	bcBodies, err := beaconBodies(beacons)
	if err != nil {
		return nil, err
	}

	if t == 0 {
		e.Reset()
	} else if t < e.lastT {
		return nil, fmt.Errorf("%w: %.3f after %.3f", ErrTimeReversed, t, e.lastT)
	}

	known := make(map[string]bool, len(beacons))
	ids := make([]string, 0, len(beacons))
	for _, b := range beacons {
		known[b.ID] = true
		ids = append(ids, b.ID)
	}

	if e.finished {
		// The run already settled; report without mutating.
		return stats.Aggregate(e.arena, known, e.lastT, e.statsConfig()), nil
	}

	clamped := math.Min(t, HorizonSeconds)

	result, err := coverage.Resolve(bcBodies, e.satelliteBodies(ds), e.cone, clamped, HorizonSeconds)
	if err != nil {
		return nil, err
	}

	added, removed := e.arena.Sync(ids)
	for _, id := range added {
		e.logger.Debug("tracking beacon", "beacon", id)
	}
	for _, id := range removed {
		e.logger.Debug("dropped beacon", "beacon", id)
	}

	opened := 0
	for _, id := range ids {
		opened += e.arena.Beacon(id).Observe(result[id], clamped)
	}
	metrics.AddHandshakes(opened)

	if t >= HorizonSeconds || !running {
		closed := e.arena.ForceCloseAll(clamped)
		e.finished = true
		e.logger.Info("run settled", "sim_time_s", clamped, "contacts_closed", closed)
	}
	e.lastT = clamped

	snap := stats.Aggregate(e.arena, known, clamped, e.statsConfig())
	for _, id := range snap.NormalizedBeacons() {
		metrics.IncCoverageNormalizations()
		e.logger.Warn("coverage totals exceeded horizon, scaled back", "beacon", id)
	}

	metrics.SetSimTime(clamped)
	metrics.SetActiveBeacons(len(beacons))
	metrics.RecordAdvance(time.Since(start).Seconds())
	return snap, nil
}

// Reset clears all tracking state for a fresh run.
func (e *Engine) Reset() {
	e.arena.Reset()
	e.lastT = 0
	e.finished = false
}

func (e *Engine) statsConfig() stats.Config {
	return stats.Config{
		HorizonSeconds:          HorizonSeconds,
		InCoverageFromIntervals: e.cfg.InCoverageFromIntervals,
	}
}

// ResolveCoverage computes the coverage relation at simulated time t without
// touching run state.
func (e *Engine) ResolveCoverage(ds *catalog.Dataset, beacons []BeaconConfig, t float64) (coverage.Result, error) {
	if ds == nil {
		return nil, ErrNoCatalog
	}
	bcBodies, err := beaconBodies(beacons)
	if err != nil {
		return nil, err
	}
	return coverage.Resolve(bcBodies, e.satelliteBodies(ds), e.cone, t, HorizonSeconds)
}

// BodyPosition is one body's position at a simulated time.
type BodyPosition struct {
	ID         string  `json:"id"`
	XKm        float64 `json:"x_km"`
	YKm        float64 `json:"y_km"`
	ZKm        float64 `json:"z_km"`
	AltitudeKm float64 `json:"altitude_km"`
}

// PositionsAt returns satellite and beacon positions at simulated time t,
// clamped to the run window. It never touches run state.
func (e *Engine) PositionsAt(ds *catalog.Dataset, beacons []BeaconConfig, t float64) (sats, bcs []BodyPosition, err error) {
	if ds == nil {
		return nil, nil, ErrNoCatalog
	}
	if math.IsNaN(t) || math.IsInf(t, 0) {
		return nil, nil, fmt.Errorf("simulated time %v out of range", t)
	}
	bcBodies, err := beaconBodies(beacons)
	if err != nil {
		return nil, nil, err
	}

	clamped := math.Min(math.Max(t, 0), HorizonSeconds)
	return positionsAt(e.satelliteBodies(ds), clamped), positionsAt(bcBodies, clamped), nil
}

func positionsAt(bodies []coverage.Body, t float64) []BodyPosition {
	out := make([]BodyPosition, 0, len(bodies))
	for _, b := range bodies {
		p := orbit.Position(b.Params, t)
		out = append(out, BodyPosition{
			ID:         b.ID,
			XKm:        p.X,
			YKm:        p.Y,
			ZKm:        p.Z,
			AltitudeKm: b.Params.AltitudeKm,
		})
	}
	return out
}
