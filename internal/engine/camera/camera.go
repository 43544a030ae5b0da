// Package camera provides the orbit camera used by the viewer.
package camera

import (
	gomath "math"

	"github.com/Faultbox/arcloud/pkg/math"
)

// OrbitCamera orbits around a center point. Distances are in metres.
type OrbitCamera struct {
	// Center point to orbit around
	Center math.Vec3

	// Spherical coordinates
	Distance  float32 // Distance from center
	RotationX float32 // Pitch (vertical angle, radians)
	RotationY float32 // Yaw (horizontal angle, radians)

	// Constraints
	MinDistance float32
	MaxDistance float32
	MinPitch    float32
	MaxPitch    float32

	// Sensitivity
	DragSensitivity float32
	ZoomSensitivity float32
}

// NewOrbitCamera creates an orbit camera framing a small room.
func NewOrbitCamera() *OrbitCamera {
	return &OrbitCamera{
		Center:          math.Vec3{X: 0, Y: -1, Z: -1},
		Distance:        3.0,
		RotationX:       0.5,
		RotationY:       0.0,
		MinDistance:     0.1,
		MaxDistance:     20.0,
		MinPitch:        -1.5,
		MaxPitch:        1.5,
		DragSensitivity: 0.005,
		ZoomSensitivity: 0.1,
	}
}

// Position returns the camera position in world space.
func (c *OrbitCamera) Position() math.Vec3 {
	pitch, yaw := float64(c.RotationX), float64(c.RotationY)
	offset := math.Vec3{
		X: float32(gomath.Cos(pitch) * gomath.Sin(yaw)),
		Y: float32(gomath.Sin(pitch)),
		Z: float32(gomath.Cos(pitch) * gomath.Cos(yaw)),
	}
	return c.Center.Add(offset.Scale(c.Distance))
}

// ViewMatrix returns the view matrix for this camera.
func (c *OrbitCamera) ViewMatrix() math.Mat4 {
	return math.LookAt(c.Position(), c.Center, math.Vec3{X: 0, Y: 1, Z: 0})
}

// HandleDrag updates rotation based on mouse drag delta.
func (c *OrbitCamera) HandleDrag(deltaX, deltaY float32) {
	c.RotationY -= deltaX * c.DragSensitivity
	c.RotationX += deltaY * c.DragSensitivity
	c.RotationX = clamp(c.RotationX, c.MinPitch, c.MaxPitch)
}

// HandleZoom updates distance based on scroll wheel delta.
func (c *OrbitCamera) HandleZoom(delta float32) {
	c.Distance -= delta * c.Distance * c.ZoomSensitivity
	c.Distance = clamp(c.Distance, c.MinDistance, c.MaxDistance)
}

// FitToBounds centers the camera on the box spanned by two corners and backs
// off far enough to see it. The corners may be given in any order.
func (c *OrbitCamera) FitToBounds(a, b math.Vec3) {
	lo, hi := a.Min(b), a.Max(b)
	c.Center = lo.Lerp(hi, 0.5)
	c.Distance = clamp(lo.Distance(hi)*1.2, c.MinDistance, c.MaxDistance)
}

func clamp(v, lo, hi float32) float32 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
