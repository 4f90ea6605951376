// Package stats reduces tracker state into reportable coverage summaries:
// per-beacon totals and averages plus a flat per-(beacon, satellite) contact
// table. Snapshots are rebuilt from scratch on every call and owned by the
// caller; nothing here is incremental.
package stats

import (
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/kabirarshafidz/galactic-grip/internal/tracking"
)

// Config controls aggregation.
type Config struct {
	// HorizonSeconds is the simulated run length. Totals exceeding it are
	// scaled back onto it.
	HorizonSeconds float64

	// InCoverageFromIntervals derives each beacon's in-coverage total from
	// its out-of-coverage intervals (elapsed − out) instead of summing
	// per-satellite contact durations. The summed form double-counts time
	// while several satellites cover a beacon at once; the interval form
	// cannot exceed elapsed time. Off by default, matching the summed
	// bookkeeping the contact table reports.
	InCoverageFromIntervals bool
}

// BeaconAggregate is one beacon's coverage summary.
type BeaconAggregate struct {
	BeaconID      string  `json:"beacon_id"`
	Handshakes    int     `json:"handshakes"`
	TotalInS      float64 `json:"total_in_coverage_s"`
	AvgInS        float64 `json:"avg_in_coverage_s"`
	TotalOutS     float64 `json:"total_out_of_coverage_s"`
	AvgOutS       float64 `json:"avg_out_of_coverage_s"`
	InCoverageNow bool    `json:"in_coverage_now"`
	// Normalized reports that in+out overran the horizon and both totals
	// were scaled back onto it.
	Normalized bool `json:"normalized,omitempty"`
}

// PairRow is one (beacon, satellite) line of the contact table.
type PairRow struct {
	BeaconID    string  `json:"beacon_id"`
	SatelliteID string  `json:"satellite_id"`
	Handshakes  int     `json:"handshakes"`
	TotalS      float64 `json:"total_duration_s"`
}

// Snapshot is a full aggregation result.
type Snapshot struct {
	SimTimeS float64           `json:"sim_time_s"`
	HorizonS float64           `json:"horizon_s"`
	Beacons  []BeaconAggregate `json:"beacons"`
	Pairs    []PairRow         `json:"pairs"`
}

// NormalizedBeacons returns the ids of beacons whose totals were scaled.
func (s *Snapshot) NormalizedBeacons() []string {
	var ids []string
	for _, b := range s.Beacons {
		if b.Normalized {
			ids = append(ids, b.BeaconID)
		}
	}
	return ids
}

// Aggregate reduces the arena into a fresh snapshot at simulated time t.
// known is the live beacon id set; tracker entries outside it are dropped
// rather than failing the aggregation (a beacon removed mid-run must not
// poison the report). A nil known keeps everything.
func Aggregate(arena *tracking.Arena, known map[string]bool, t float64, cfg Config) *Snapshot {
	elapsed := t
	if cfg.HorizonSeconds > 0 && elapsed > cfg.HorizonSeconds {
		elapsed = cfg.HorizonSeconds
	}

	snap := &Snapshot{SimTimeS: elapsed, HorizonS: cfg.HorizonSeconds}

	for beaconID, bt := range arena.Beacons() {
		if known != nil && !known[beaconID] {
			continue
		}

		agg := BeaconAggregate{
			BeaconID:      beaconID,
			InCoverageNow: bt.Interval.In,
		}

		var contact []float64
		for satID, p := range bt.Pairs {
			agg.Handshakes += p.Count
			contact = append(contact, p.Durations...)
			snap.Pairs = append(snap.Pairs, PairRow{
				BeaconID:    beaconID,
				SatelliteID: satID,
				Handshakes:  p.Count,
				TotalS:      floats.Sum(p.Durations),
			})
		}

		agg.TotalInS = floats.Sum(contact)
		if len(contact) > 0 {
			agg.AvgInS = stat.Mean(contact, nil)
		}

		out := bt.Interval.OutDurations
		agg.TotalOutS = floats.Sum(out)
		if len(out) > 0 {
			agg.AvgOutS = stat.Mean(out, nil)
		}

		if cfg.InCoverageFromIntervals {
			openOut := 0.0
			if !bt.Interval.In {
				openOut = elapsed - bt.Interval.OutSince
			}
			agg.TotalInS = elapsed - agg.TotalOutS - openOut
			if agg.TotalInS < 0 {
				agg.TotalInS = 0
			}
		}

		// Overlapping satellite contacts are summed as if exclusive, so the
		// totals can overrun the horizon; scale both back onto it.
		if sum := agg.TotalInS + agg.TotalOutS; cfg.HorizonSeconds > 0 && sum > cfg.HorizonSeconds {
			scale := cfg.HorizonSeconds / sum
			agg.TotalInS *= scale
			agg.TotalOutS *= scale
			agg.Normalized = true
		}

		snap.Beacons = append(snap.Beacons, agg)
	}

	sort.Slice(snap.Beacons, func(i, j int) bool {
		return snap.Beacons[i].BeaconID < snap.Beacons[j].BeaconID
	})
	sort.Slice(snap.Pairs, func(i, j int) bool {
		a, b := snap.Pairs[i], snap.Pairs[j]
		if a.BeaconID != b.BeaconID {
			return a.BeaconID < b.BeaconID
		}
		return a.SatelliteID < b.SatelliteID
	})

	return snap
}
