// Package session runs the per-frame pipeline of an AR session: it pulls
// frames from the tracking source, keeps the point-cloud mesh current and
// collects experiment records.
package session

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"go.uber.org/zap"

	"github.com/Faultbox/arcloud/internal/engine/pointcloud"
	"github.com/Faultbox/arcloud/internal/experiment"
	"github.com/Faultbox/arcloud/internal/logger"
	"github.com/Faultbox/arcloud/internal/tracking"
)

// ErrMeshUpdate wraps errors returned by the mesh updater.
var ErrMeshUpdate = errors.New("update point cloud mesh")

// MeshUpdater receives point-cloud snapshots. *scene.PointCloudNode implements it.
type MeshUpdater interface {
	Update(ctx context.Context, snap *pointcloud.Snapshot) (pointcloud.Status, error)
}

// StepResult describes what one Step did.
type StepResult struct {
	Camera   tracking.TrackingState
	Status   pointcloud.Status
	Recorded bool
}

// Session wires a tracking source to a mesh updater and a collector.
type Session struct {
	source    tracking.Source
	mesh      MeshUpdater
	collector *experiment.Collector
	log       *zap.Logger

	planes map[int]tracking.Plane
	frames int
}

// New creates a session. mesh may be nil for collection-only runs.
func New(source tracking.Source, mesh MeshUpdater, collector *experiment.Collector) *Session {
	return &Session{
		source:    source,
		mesh:      mesh,
		collector: collector,
		log:       logger.Named("session"),
		planes:    make(map[int]tracking.Plane),
	}
}

// Step processes a single frame.
// A mesh submission error is returned after the frame has been fully
// processed; the next Step continues normally.
func (s *Session) Step(ctx context.Context) (StepResult, error) {
	f, err := s.source.Next(ctx)
	if err != nil {
		return StepResult{}, err
	}
	defer f.Release()

	s.frames++
	res := StepResult{Camera: f.Camera, Status: pointcloud.NoChange}

	for _, p := range f.UpdatedPlanes {
		if p.State == tracking.Stopped {
			delete(s.planes, p.ID)
			continue
		}
		if p.State == tracking.Tracking {
			s.planes[p.ID] = p
		}
	}

	if s.collector != nil {
		_, res.Recorded = s.collector.Observe(f)
	}

	if f.Camera != tracking.Tracking || s.mesh == nil {
		return res, nil
	}

	res.Status, err = s.mesh.Update(ctx, f.Cloud)
	if err != nil {
		return res, fmt.Errorf("%w: %w", ErrMeshUpdate, err)
	}
	return res, nil
}

// Run steps until frames have been processed, ctx is done or the source
// closes. frames <= 0 runs until ctx is done or the source closes.
// Mesh submission errors are logged and do not stop the run.
func (s *Session) Run(ctx context.Context, frames int) error {
	for n := 0; frames <= 0 || n < frames; n++ {
		_, err := s.Step(ctx)
		switch {
		case errors.Is(err, tracking.ErrClosed):
			s.log.Debug("tracking source closed", zap.Int("frames", s.frames))
			return nil
		case errors.Is(err, ErrMeshUpdate):
			s.log.Warn("mesh update failed", zap.Error(err))
		case err != nil:
			return err
		}
	}
	s.log.Debug("session run finished", zap.Int("frames", s.frames))
	return nil
}

// Frames returns the number of frames processed.
func (s *Session) Frames() int {
	return s.frames
}

// Experiment returns the experiment being collected, or nil.
func (s *Session) Experiment() *experiment.Experiment {
	if s.collector == nil {
		return nil
	}
	return s.collector.Experiment()
}

// Planes returns the currently tracked planes ordered by ID.
func (s *Session) Planes() []tracking.Plane {
	planes := make([]tracking.Plane, 0, len(s.planes))
	for _, p := range s.planes {
		planes = append(planes, p)
	}
	sort.Slice(planes, func(i, j int) bool { return planes[i].ID < planes[j].ID })
	return planes
}
