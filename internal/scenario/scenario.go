// Package scenario loads run definitions from TOML: simulation pacing,
// catalog source, the synthesized constellation shape, and the initial
// beacon set. A compiled-in default scenario keeps the server runnable with
// no configuration at all.
package scenario

import (
	"bytes"
	_ "embed"
	"fmt"
	"time"

	"github.com/spf13/viper"

	"github.com/kabirarshafidz/galactic-grip/internal/coverage"
	"github.com/kabirarshafidz/galactic-grip/internal/engine"
)

//go:embed default.toml
var defaultTOML []byte

// Simulation sets the run pacing and coverage geometry.
type Simulation struct {
	// Rate is simulated seconds per wall-clock second.
	Rate float64
	// TickInterval is how often the runner advances the engine.
	TickInterval time.Duration
	// GroundRadiusKm is the coverage footprint radius.
	GroundRadiusKm float64
	// InCoverageFromIntervals selects the interval-derived in-coverage
	// accounting mode.
	InCoverageFromIntervals bool
	// Autostart lets simulated time flow as soon as the server is up.
	// When false the run waits, paused at zero, for a start request.
	Autostart bool
}

// Catalog selects where the satellite table comes from.
type Catalog struct {
	// Source is one of walker, fetch, cache or file.
	Source string
	// File is the element-set path when Source is file.
	File string
}

// Walker shapes the synthesized constellation used by the walker source.
type Walker struct {
	Planes         int
	PerPlane       int
	Phasing        int
	AltitudeKm     float64
	InclinationDeg float64
}

// Timeline sets keyframe precomputation over the simulated day.
type Timeline struct {
	StepSeconds float64
	Workers     int
}

// Scenario is one complete run definition.
type Scenario struct {
	Simulation Simulation
	Catalog    Catalog
	Walker     Walker
	Timeline   Timeline
	Beacons    []engine.BeaconConfig
}

// Default returns the compiled-in scenario.
func Default() (*Scenario, error) {
	v := newViper()
	v.SetConfigType("toml")
	if err := v.ReadConfig(bytes.NewReader(defaultTOML)); err != nil {
		return nil, fmt.Errorf("reading embedded scenario: %w", err)
	}
	return parse(v)
}

// Load reads a scenario TOML file from disk.
func Load(path string) (*Scenario, error) {
	v := newViper()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("reading scenario %s: %w", path, err)
	}
	return parse(v)
}

func newViper() *viper.Viper {
	v := viper.New()
	v.SetDefault("simulation.rate", 60.0)
	v.SetDefault("simulation.tick_ms", 100)
	v.SetDefault("simulation.ground_radius_km", coverage.DefaultGroundRadiusKm)
	v.SetDefault("simulation.in_coverage_from_intervals", false)
	v.SetDefault("simulation.autostart", true)
	v.SetDefault("catalog.source", "walker")
	v.SetDefault("walker.planes", 6)
	v.SetDefault("walker.per_plane", 11)
	v.SetDefault("walker.phasing", 2)
	v.SetDefault("walker.altitude_km", 780.0)
	v.SetDefault("walker.inclination_deg", 86.4)
	v.SetDefault("timeline.step_s", 60.0)
	v.SetDefault("timeline.workers", 0)
	return v
}

func parse(v *viper.Viper) (*Scenario, error) {
	s := &Scenario{
		Simulation: Simulation{
			Rate:                    v.GetFloat64("simulation.rate"),
			TickInterval:            time.Duration(v.GetInt("simulation.tick_ms")) * time.Millisecond,
			GroundRadiusKm:          v.GetFloat64("simulation.ground_radius_km"),
			InCoverageFromIntervals: v.GetBool("simulation.in_coverage_from_intervals"),
			Autostart:               v.GetBool("simulation.autostart"),
		},
		Catalog: Catalog{
			Source: v.GetString("catalog.source"),
			File:   v.GetString("catalog.file"),
		},
		Walker: Walker{
			Planes:         v.GetInt("walker.planes"),
			PerPlane:       v.GetInt("walker.per_plane"),
			Phasing:        v.GetInt("walker.phasing"),
			AltitudeKm:     v.GetFloat64("walker.altitude_km"),
			InclinationDeg: v.GetFloat64("walker.inclination_deg"),
		},
		Timeline: Timeline{
			StepSeconds: v.GetFloat64("timeline.step_s"),
			Workers:     v.GetInt("timeline.workers"),
		},
	}

	for i := 0; v.IsSet(fmt.Sprintf("beacons.%d", i)); i++ {
		key := fmt.Sprintf("beacons.%d.", i)
		s.Beacons = append(s.Beacons, engine.BeaconConfig{
			Name:           v.GetString(key + "name"),
			Kind:           engine.BeaconKind(v.GetString(key + "kind")),
			AltitudeKm:     v.GetFloat64(key + "altitude_km"),
			LSTHours:       v.GetFloat64(key + "lst_hours"),
			InclinationDeg: v.GetFloat64(key + "inclination_deg"),
			Color:          v.GetString(key + "color"),
		})
	}

	if err := s.validate(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Scenario) validate() error {
	if s.Simulation.Rate <= 0 {
		return fmt.Errorf("scenario: simulation.rate must be positive, got %v", s.Simulation.Rate)
	}
	if s.Simulation.TickInterval <= 0 {
		return fmt.Errorf("scenario: simulation.tick_ms must be positive, got %v", s.Simulation.TickInterval)
	}
	if s.Timeline.StepSeconds <= 0 {
		return fmt.Errorf("scenario: timeline.step_s must be positive, got %v", s.Timeline.StepSeconds)
	}
	switch s.Catalog.Source {
	case "walker", "fetch", "cache", "file":
	default:
		return fmt.Errorf("scenario: unknown catalog.source %q", s.Catalog.Source)
	}
	if s.Catalog.Source == "file" && s.Catalog.File == "" {
		return fmt.Errorf("scenario: catalog.file is required when catalog.source is file")
	}
	if len(s.Beacons) > engine.MaxBeacons {
		return fmt.Errorf("scenario: %d beacons, limit %d", len(s.Beacons), engine.MaxBeacons)
	}
	return nil
}
