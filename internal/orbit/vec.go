package orbit

import "math"

// Vec3 is a position vector in the simulation frame (kilometers).
type Vec3 struct {
	X, Y, Z float64
}

// Add returns v + o.
func (v Vec3) Add(o Vec3) Vec3 {
	return Vec3{v.X + o.X, v.Y + o.Y, v.Z + o.Z}
}

// Sub returns v - o.
func (v Vec3) Sub(o Vec3) Vec3 {
	return Vec3{v.X - o.X, v.Y - o.Y, v.Z - o.Z}
}

// Scale returns v scaled by s.
func (v Vec3) Scale(s float64) Vec3 {
	return Vec3{v.X * s, v.Y * s, v.Z * s}
}

// Dot returns the dot product of v and o.
func (v Vec3) Dot(o Vec3) float64 {
	return v.X*o.X + v.Y*o.Y + v.Z*o.Z
}

// Norm returns the Euclidean magnitude of v.
func (v Vec3) Norm() float64 {
	return math.Sqrt(v.Dot(v))
}

// RotY rotates v about the Y (polar) axis by angle radians.
//
//	x' =  x·cos + z·sin
//	z' = -x·sin + z·cos
func (v Vec3) RotY(angle float64) Vec3 {
	c := math.Cos(angle)
	s := math.Sin(angle)
	return Vec3{
		X: v.X*c + v.Z*s,
		Y: v.Y,
		Z: -v.X*s + v.Z*c,
	}
}

// RotX rotates v about the X axis by angle radians.
//
//	y' = y·cos - z·sin
//	z' = y·sin + z·cos
func (v Vec3) RotX(angle float64) Vec3 {
	c := math.Cos(angle)
	s := math.Sin(angle)
	return Vec3{
		X: v.X,
		Y: v.Y*c - v.Z*s,
		Z: v.Y*s + v.Z*c,
	}
}
