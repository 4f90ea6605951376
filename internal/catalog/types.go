// Package catalog produces and holds the satellite table the simulation
// consumes: immutable snapshots of circular-orbit records, ingested from
// two-line element sets, loaded from disk, or synthesized as a Walker shell.
package catalog

import (
	"math"
	"time"

	"github.com/kabirarshafidz/galactic-grip/internal/orbit"
)

// Satellite is one catalog record, reduced to the circular-orbit attributes
// the simulation uses. Angles are kept in degrees as they appear in the
// source elements; OrbitParams converts.
type Satellite struct {
	ID               string    `json:"id"`
	Name             string    `json:"name"`
	AltitudeKm       float64   `json:"altitude_km"`
	InclinationDeg   float64   `json:"inclination_deg"`
	RAANDeg          float64   `json:"raan_deg"`
	ArgPericenterDeg float64   `json:"arg_pericenter_deg"`
	MeanAnomalyDeg   float64   `json:"mean_anomaly_deg"`
	PeriodSeconds    float64   `json:"period_seconds"`
	Epoch            time.Time `json:"epoch"`
}

// OrbitParams converts the record to radian orbit parameters, phase-anchored
// so that refEpoch corresponds to simulated time zero. A zero epoch (for
// synthesized records built without one) gets no offset.
func (s Satellite) OrbitParams(refEpoch time.Time) orbit.Params {
	const degToRad = math.Pi / 180.0
	p := orbit.Params{
		AltitudeKm:       s.AltitudeKm,
		PeriodSeconds:    s.PeriodSeconds,
		InclinationRad:   s.InclinationDeg * degToRad,
		RAANRad:          s.RAANDeg * degToRad,
		ArgPericenterRad: s.ArgPericenterDeg * degToRad,
		MeanAnomalyRad:   s.MeanAnomalyDeg * degToRad,
	}
	if !s.Epoch.IsZero() {
		p.EpochOffsetRad = orbit.PhaseOffset(s.PeriodSeconds, refEpoch, s.Epoch)
	}
	return p
}

// EpochRange spans the oldest and newest element epochs in a dataset.
type EpochRange struct {
	Min time.Time `json:"min"`
	Max time.Time `json:"max"`
}

// Dataset is an immutable catalog snapshot. Replaced wholesale on refresh,
// never mutated in place; safe to share across goroutines.
type Dataset struct {
	Source     string      `json:"source"`
	FetchedAt  time.Time   `json:"fetched_at"`
	EpochRange EpochRange  `json:"epoch_range"`
	Satellites []Satellite `json:"satellites"`
}

// NewDataset wraps records in a snapshot and computes the epoch range.
func NewDataset(source string, fetchedAt time.Time, sats []Satellite) *Dataset {
	ds := &Dataset{Source: source, FetchedAt: fetchedAt, Satellites: sats}
	for _, s := range sats {
		if s.Epoch.IsZero() {
			continue
		}
		if ds.EpochRange.Min.IsZero() || s.Epoch.Before(ds.EpochRange.Min) {
			ds.EpochRange.Min = s.Epoch
		}
		if s.Epoch.After(ds.EpochRange.Max) {
			ds.EpochRange.Max = s.Epoch
		}
	}
	return ds
}
