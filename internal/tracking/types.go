// Package tracking describes the motion-tracking engine the application runs on.
//
// The engine itself (pose estimation, feature extraction, plane detection) is
// external. This package defines the frames it delivers and a synthetic
// implementation used for headless runs and the desktop viewer.
package tracking

import (
	"context"
	"sync"

	"github.com/Faultbox/arcloud/internal/engine/pointcloud"
	"github.com/Faultbox/arcloud/pkg/geometry"
)

// TrackingState is the tracking status of the camera or a trackable.
type TrackingState int

const (
	Tracking TrackingState = iota
	Paused
	Stopped
)

// String returns the state name.
func (s TrackingState) String() string {
	switch s {
	case Tracking:
		return "tracking"
	case Paused:
		return "paused"
	case Stopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// Plane is a detected horizontal planar region.
// Polygon is the boundary relative to Center as [x0, z0, x1, z1, ...].
type Plane struct {
	ID      int
	State   TrackingState
	Center  [3]float32 // world position of the polygon origin
	Polygon []float32
}

// Area returns the plane's area in square metres.
func (p *Plane) Area() float64 {
	return geometry.FlatPolygonArea(p.Polygon)
}

// Frame is one tracking update.
// Callers must call Release once they are done with the frame; the point
// cloud buffer is recycled by the source afterwards.
type Frame struct {
	Timestamp     int64
	Camera        TrackingState
	Cloud         *pointcloud.Snapshot
	UpdatedPlanes []Plane

	release     func()
	releaseOnce sync.Once
}

// NewFrame creates a frame whose buffers are returned to their owner by release.
// release may be nil.
func NewFrame(timestamp int64, camera TrackingState, cloud *pointcloud.Snapshot, release func()) *Frame {
	return &Frame{Timestamp: timestamp, Camera: camera, Cloud: cloud, release: release}
}

// Release hands the frame's buffers back to the source. It is safe to call more than once.
func (f *Frame) Release() {
	if f == nil {
		return
	}
	f.releaseOnce.Do(func() {
		if f.release != nil {
			f.release()
		}
		f.Cloud = nil
	})
}

// Source delivers tracking frames.
type Source interface {
	// Next blocks until the next frame is available or ctx is done.
	Next(ctx context.Context) (*Frame, error)
	Close() error
}
