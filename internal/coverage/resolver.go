package coverage

import (
	"fmt"
	"sort"

	"github.com/kabirarshafidz/galactic-grip/internal/orbit"
)

// Body pairs an identifier with orbit parameters for resolution.
type Body struct {
	ID     string
	Params orbit.Params
}

// Result maps beacon id → set of covering satellite ids. Every beacon that
// was resolved has an entry, empty when nothing covers it.
type Result map[string]map[string]bool

// Covered reports whether the beacon has at least one covering satellite.
func (r Result) Covered(beaconID string) bool {
	return len(r[beaconID]) > 0
}

// Covering returns the sorted ids of satellites covering the beacon.
func (r Result) Covering(beaconID string) []string {
	set := r[beaconID]
	if len(set) == 0 {
		return nil
	}
	ids := make([]string, 0, len(set))
	for id := range set {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// BySatellite derives the inverse view: satellite id → sorted beacon ids it
// covers. Satellites covering nothing are absent.
func (r Result) BySatellite() map[string][]string {
	inv := make(map[string][]string)
	for beaconID, sats := range r {
		for satID := range sats {
			inv[satID] = append(inv[satID], beaconID)
		}
	}
	for satID := range inv {
		sort.Strings(inv[satID])
	}
	return inv
}

// Resolve computes the coverage sets at simulated time t, clamped to
// [0, horizon] (horizon ≤ 0 means no upper clamp). Positions are recomputed
// freshly on every call and no state is kept, so identical inputs always
// produce identical results. Invalid orbit parameters fail the whole call.
func Resolve(beacons, satellites []Body, cone Cone, t, horizon float64) (Result, error) {
	if t < 0 {
		t = 0
	}
	if horizon > 0 && t > horizon {
		t = horizon
	}

	// Satellite positions are shared across beacons; compute them once.
	satPos := make([]orbit.Vec3, len(satellites))
	for i, s := range satellites {
		if err := s.Params.Validate(); err != nil {
			return nil, fmt.Errorf("satellite %s: %w", s.ID, err)
		}
		satPos[i] = orbit.Position(s.Params, t)
	}

	res := make(Result, len(beacons))
	for _, b := range beacons {
		if err := b.Params.Validate(); err != nil {
			return nil, fmt.Errorf("beacon %s: %w", b.ID, err)
		}
		pos := orbit.Position(b.Params, t)

		set := make(map[string]bool)
		for i, s := range satellites {
			if cone.Contains(pos, satPos[i], s.Params.AltitudeKm) {
				set[s.ID] = true
			}
		}
		res[b.ID] = set
	}
	return res, nil
}
