package catalog

import (
	"fmt"
	"math"
	"time"

	"github.com/kabirarshafidz/galactic-grip/internal/orbit"
)

// WalkerConfig describes a synthesized Walker-delta constellation: evenly
// spaced planes, evenly spaced slots per plane, with an inter-plane phase
// stagger controlled by the phasing factor.
type WalkerConfig struct {
	Planes         int
	PerPlane       int
	Phasing        int
	AltitudeKm     float64
	InclinationDeg float64
	Epoch          time.Time
}

// DefaultWalker is an Iridium-like 66-satellite shell: 6 planes of 11 at
// 780 km, near-polar.
func DefaultWalker(epoch time.Time) WalkerConfig {
	return WalkerConfig{
		Planes:         6,
		PerPlane:       11,
		Phasing:        2,
		AltitudeKm:     780,
		InclinationDeg: 86.4,
		Epoch:          epoch,
	}
}

// Synthesize builds a dataset from the config. All records share the config
// epoch, so the constellation geometry is exact at simulated time zero.
func Synthesize(cfg WalkerConfig) (*Dataset, error) {
	if cfg.Planes < 1 || cfg.PerPlane < 1 {
		return nil, fmt.Errorf("walker config needs at least one plane and one slot, got %dx%d", cfg.Planes, cfg.PerPlane)
	}
	if cfg.AltitudeKm <= 0 || math.IsNaN(cfg.AltitudeKm) {
		return nil, fmt.Errorf("walker altitude must be positive, got %.1f", cfg.AltitudeKm)
	}

	period := orbit.CircularPeriod(cfg.AltitudeKm)
	total := cfg.Planes * cfg.PerPlane
	raanStep := 360.0 / float64(cfg.Planes)
	slotStep := 360.0 / float64(cfg.PerPlane)
	phaseStep := 360.0 * float64(cfg.Phasing) / float64(total)

	sats := make([]Satellite, 0, total)
	for p := 0; p < cfg.Planes; p++ {
		for s := 0; s < cfg.PerPlane; s++ {
			sats = append(sats, Satellite{
				ID:             fmt.Sprintf("WALKER-%d%02d", p+1, s+1),
				Name:           fmt.Sprintf("Walker P%d S%02d", p+1, s+1),
				AltitudeKm:     cfg.AltitudeKm,
				InclinationDeg: cfg.InclinationDeg,
				RAANDeg:        float64(p) * raanStep,
				MeanAnomalyDeg: math.Mod(float64(s)*slotStep+float64(p)*phaseStep, 360),
				PeriodSeconds:  period,
				Epoch:          cfg.Epoch,
			})
		}
	}
	return NewDataset("synthesized", cfg.Epoch, sats), nil
}
