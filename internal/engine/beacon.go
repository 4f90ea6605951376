package engine

import (
	"errors"
	"fmt"
	"math"

	"github.com/kabirarshafidz/galactic-grip/internal/orbit"
)

// MaxBeacons caps how many beacons one run tracks.
const MaxBeacons = 3

// ErrInvalidBeacon marks beacon configuration errors.
var ErrInvalidBeacon = errors.New("invalid beacon")

// BeaconKind selects how a beacon's orbital plane is parameterized.
type BeaconKind string

const (
	// KindSunSync pins the orbital plane to a local solar time; the
	// inclination is fixed for the whole class.
	KindSunSync BeaconKind = "sun_sync"
	// KindInclined orbits at a chosen inclination with the ascending
	// node at zero.
	KindInclined BeaconKind = "inclined"
)

// BeaconConfig describes one beacon. Exactly one plane parameter applies:
// LSTHours for sun-synchronous beacons, InclinationDeg for inclined ones.
type BeaconConfig struct {
	ID             string     `json:"id"`
	Name           string     `json:"name"`
	Kind           BeaconKind `json:"kind"`
	AltitudeKm     float64    `json:"altitude_km"`
	LSTHours       float64    `json:"lst_hours,omitempty"`
	InclinationDeg float64    `json:"inclination_deg,omitempty"`
	Color          string     `json:"color,omitempty"`
}

// Validate checks the config. All failures wrap ErrInvalidBeacon.
func (b BeaconConfig) Validate() error {
	if b.ID == "" {
		return fmt.Errorf("%w: missing id", ErrInvalidBeacon)
	}
	if math.IsNaN(b.AltitudeKm) || math.IsInf(b.AltitudeKm, 0) || b.AltitudeKm <= 0 {
		return fmt.Errorf("%w: altitude %v km", ErrInvalidBeacon, b.AltitudeKm)
	}
	switch b.Kind {
	case KindSunSync:
		if math.IsNaN(b.LSTHours) || b.LSTHours < 0 || b.LSTHours >= 24 {
			return fmt.Errorf("%w: local solar time %v h, want [0, 24)", ErrInvalidBeacon, b.LSTHours)
		}
		if b.InclinationDeg != 0 {
			return fmt.Errorf("%w: inclination is fixed for sun-synchronous beacons", ErrInvalidBeacon)
		}
	case KindInclined:
		if math.IsNaN(b.InclinationDeg) || b.InclinationDeg <= 0 || b.InclinationDeg > 180 {
			return fmt.Errorf("%w: inclination %v deg, want (0, 180]", ErrInvalidBeacon, b.InclinationDeg)
		}
		if b.LSTHours != 0 {
			return fmt.Errorf("%w: local solar time only applies to sun-synchronous beacons", ErrInvalidBeacon)
		}
	default:
		return fmt.Errorf("%w: unknown kind %q", ErrInvalidBeacon, b.Kind)
	}
	return nil
}

// OrbitParams derives the beacon's orbit. Beacons are phase anchored at
// simulated time zero, so no epoch offset applies.
func (b BeaconConfig) OrbitParams() orbit.Params {
	if b.Kind == KindInclined {
		return orbit.InclinedBeacon(b.AltitudeKm, b.InclinationDeg)
	}
	return orbit.SunSyncBeacon(b.AltitudeKm, b.LSTHours)
}
