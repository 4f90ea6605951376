// Package coverage decides which satellites cover which beacons at a given
// simulated time. A satellite covers everything inside its nadir-pointing
// cone; the resolver applies that test across the full beacons × satellites
// cross product for one time snapshot.
package coverage

import (
	"math"

	"github.com/kabirarshafidz/galactic-grip/internal/orbit"
)

// DefaultGroundRadiusKm is the ground footprint radius used when no override
// is configured.
const DefaultGroundRadiusKm = 2000.0

// Cone is the nadir-pointing coverage cone geometry shared by all
// satellites: the ground footprint is fixed, only the apex altitude varies
// per satellite. Immutable after construction; safe for concurrent use.
type Cone struct {
	// BaseRadiusKm is the cone base radius, the chord radius of the ground
	// footprint arc.
	BaseRadiusKm float64
	// ExtraHeightKm extends the cone height below the surface so the base
	// plane reaches the footprint chord.
	ExtraHeightKm float64
}

// NewCone derives the cone geometry from the ground coverage radius
// (kilometers along the surface). The footprint subtends an arc of
// 2·radius/EarthRadius; the base radius and extra height follow from the
// chord of that arc.
func NewCone(groundRadiusKm float64) Cone {
	angle := 2 * groundRadiusKm / orbit.EarthRadiusKm
	base := orbit.EarthRadiusKm * math.Sin(angle/2)
	extra := orbit.EarthRadiusKm - math.Sqrt(orbit.EarthRadiusKm*orbit.EarthRadiusKm-base*base)
	return Cone{BaseRadiusKm: base, ExtraHeightKm: extra}
}

// Contains reports whether target lies inside the coverage cone of a
// satellite at satPos with the given altitude. The apex sits at the
// satellite, the axis points at the Earth center, and the height is
// altitude + ExtraHeightKm. The boundary counts as inside.
func (c Cone) Contains(target, satPos orbit.Vec3, satAltitudeKm float64) bool {
	h := satAltitudeKm + c.ExtraHeightKm
	if h <= 0 {
		return false
	}

	axis := satPos.Scale(-1.0 / satPos.Norm())
	v := target.Sub(satPos)

	along := v.Dot(axis)
	if along < 0 || along > h {
		return false
	}

	radial := v.Sub(axis.Scale(along)).Norm()
	return radial <= c.BaseRadiusKm*along/h
}
