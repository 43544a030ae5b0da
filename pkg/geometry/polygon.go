// Package geometry provides planar geometry helpers for tracked surfaces.
package geometry

import (
	gomath "math"

	"github.com/Faultbox/arcloud/pkg/math"
)

// PolygonArea returns the unsigned area of a simple polygon using the shoelace formula.
// Points may be in either winding order. Fewer than three points yields 0.
func PolygonArea(points []math.Vec2) float64 {
	n := len(points)
	if n < 3 {
		return 0
	}

	var sum float64
	for i := 0; i < n-1; i++ {
		sum += points[i].Cross(points[i+1])
	}
	sum += points[n-1].Cross(points[0])
	return gomath.Abs(sum) / 2
}

// FlatPolygonArea returns the area of a boundary stored as [x0, z0, x1, z1, ...],
// the layout tracking engines use for plane polygons. A trailing odd value is ignored.
func FlatPolygonArea(xz []float32) float64 {
	return PolygonArea(Vec2s(xz))
}

// Vec2s decodes a flat [x0, y0, x1, y1, ...] buffer into points.
func Vec2s(flat []float32) []math.Vec2 {
	points := make([]math.Vec2, len(flat)/2)
	for i := range points {
		points[i] = math.Vec2{X: flat[2*i], Y: flat[2*i+1]}
	}
	return points
}
