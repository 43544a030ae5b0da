// Package math provides the small vector and matrix set used for rendering
// and planar geometry.
package math

import "math"

// Vec2 is a 2D vector.
type Vec2 struct {
	X, Y float32
}

// Sub returns v - other.
func (v Vec2) Sub(other Vec2) Vec2 {
	return Vec2{v.X - other.X, v.Y - other.Y}
}

// Cross returns the z component of the 3D cross product, in float64.
// Its sign tells the winding of (origin, v, other).
func (v Vec2) Cross(other Vec2) float64 {
	return float64(v.X)*float64(other.Y) - float64(other.X)*float64(v.Y)
}

// Length returns the magnitude.
func (v Vec2) Length() float32 {
	return float32(math.Sqrt(float64(v.X*v.X + v.Y*v.Y)))
}
