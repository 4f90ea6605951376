// Package orbit computes positions of satellites and beacons on circular
// Keplerian orbits as a pure function of simulated time.
//
// Frame: Earth-centered, right-handed, Y is the polar axis, distances in
// kilometers. An orbit is described by altitude, period, the plane angles
// (inclination, RAAN, argument of pericenter) and a phase (mean anomaly plus
// an optional epoch offset). Position is stateless and deterministic, so
// simulated time can be sampled in any order without drift.
package orbit

import (
	"errors"
	"fmt"
	"math"
	"time"
)

const (
	// EarthRadiusKm is the mean Earth radius.
	EarthRadiusKm = 6371.0

	// MuEarth is Earth's gravitational parameter in km³/s².
	MuEarth = 398600.4418

	// SunSyncInclinationDeg is the fixed inclination of sun-synchronous beacons.
	SunSyncInclinationDeg = 97.5
)

// ErrInvalidOrbitParameters marks parameters that would produce a degenerate
// orbit or NaN positions (non-positive or non-finite altitude or period).
var ErrInvalidOrbitParameters = errors.New("invalid orbit parameters")

// Params describes one body's circular orbit. Angles are in radians.
type Params struct {
	AltitudeKm       float64
	PeriodSeconds    float64
	InclinationRad   float64
	RAANRad          float64
	ArgPericenterRad float64
	MeanAnomalyRad   float64

	// EpochOffsetRad anchors a catalog body's real-world epoch to simulated
	// time zero. Zero for beacons, which are phase-anchored at t = 0.
	EpochOffsetRad float64
}

// Validate rejects parameters that cannot describe a circular orbit.
// Positions computed from invalid parameters would be NaN or degenerate,
// so callers must fail fast here instead.
func (p Params) Validate() error {
	if math.IsNaN(p.AltitudeKm) || math.IsInf(p.AltitudeKm, 0) || p.AltitudeKm <= 0 {
		return fmt.Errorf("%w: altitude %v km, must be finite and > 0", ErrInvalidOrbitParameters, p.AltitudeKm)
	}
	if math.IsNaN(p.PeriodSeconds) || math.IsInf(p.PeriodSeconds, 0) || p.PeriodSeconds <= 0 {
		return fmt.Errorf("%w: period %v s, must be finite and > 0", ErrInvalidOrbitParameters, p.PeriodSeconds)
	}
	return nil
}

// CircularPeriod returns the period in seconds of a circular orbit at the
// given altitude: T = 2π·sqrt(R³/μ), R = EarthRadiusKm + altitude.
func CircularPeriod(altitudeKm float64) float64 {
	r := EarthRadiusKm + altitudeKm
	return 2 * math.Pi * math.Sqrt(r*r*r/MuEarth)
}

// Position returns the body's position at simulated time t (seconds, any
// non-negative value; t is not required to be monotonic between calls).
//
// The body sits at phase ω·t + meanAnomaly + epochOffset on a circle of
// radius R = EarthRadiusKm + altitude in the XZ plane, which is then rotated
// by argument of pericenter (about Y), inclination (about X, the line of
// nodes) and RAAN (about Y), in that order.
func Position(p Params, t float64) Vec3 {
	r := EarthRadiusKm + p.AltitudeKm
	omega := 2 * math.Pi / p.PeriodSeconds
	phase := omega*t + p.MeanAnomalyRad + p.EpochOffsetRad

	v := Vec3{X: r * math.Cos(phase), Z: r * math.Sin(phase)}
	v = v.RotY(p.ArgPericenterRad)
	v = v.RotX(p.InclinationRad)
	return v.RotY(p.RAANRad)
}

// SunSyncRAAN derives the RAAN (radians) of a sun-synchronous orbit from its
// local solar time at the descending node: RAAN = LST·π/12 − π/2.
func SunSyncRAAN(lstHours float64) float64 {
	return lstHours*math.Pi/12.0 - math.Pi/2.0
}

// SunSyncBeacon builds parameters for a sun-synchronous beacon. The period
// follows from the altitude, the inclination is fixed, and the RAAN comes
// from the configured local solar time.
func SunSyncBeacon(altitudeKm, lstHours float64) Params {
	return Params{
		AltitudeKm:     altitudeKm,
		PeriodSeconds:  CircularPeriod(altitudeKm),
		InclinationRad: SunSyncInclinationDeg * math.Pi / 180.0,
		RAANRad:        SunSyncRAAN(lstHours),
	}
}

// InclinedBeacon builds parameters for a beacon on a plain inclined orbit
// (RAAN fixed at 0).
func InclinedBeacon(altitudeKm, inclinationDeg float64) Params {
	return Params{
		AltitudeKm:     altitudeKm,
		PeriodSeconds:  CircularPeriod(altitudeKm),
		InclinationRad: inclinationDeg * math.Pi / 180.0,
	}
}

// PhaseOffset returns the phase offset (radians) that aligns a body with the
// given period and real-world epoch to a simulation whose t = 0 corresponds
// to refEpoch. The reference epoch is captured once at simulation start;
// nothing here reads the wall clock.
func PhaseOffset(periodSeconds float64, refEpoch, epoch time.Time) float64 {
	omega := 2 * math.Pi / periodSeconds
	return omega * refEpoch.Sub(epoch).Seconds()
}
