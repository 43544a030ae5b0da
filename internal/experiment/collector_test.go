package experiment

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Faultbox/arcloud/internal/engine/pointcloud"
	"github.com/Faultbox/arcloud/internal/tracking"
)

func square(side float32) []float32 {
	return []float32{0, 0, side, 0, side, side, 0, side}
}

func frame(ts, cloudTS int64, camera tracking.TrackingState, confidences ...float32) *tracking.Frame {
	snap := &pointcloud.Snapshot{Timestamp: cloudTS}
	for _, c := range confidences {
		snap.AppendFeature(pointcloud.FeaturePoint{Confidence: c})
	}
	return &tracking.Frame{Timestamp: ts, Camera: camera, Cloud: snap}
}

func TestCollector_RecordsChangedClouds(t *testing.T) {
	t.Parallel()
	c := NewCollector(New(time.Now()))

	_, ok := c.Observe(frame(int64(time.Second), 0, tracking.Paused))
	assert.False(t, ok, "no records while the camera is not tracking")

	rec, ok := c.Observe(frame(int64(2*time.Second), 10, tracking.Tracking, 0.2, 0.4, 0.6))
	require.True(t, ok)
	assert.Equal(t, time.Second, rec.Time)
	assert.Equal(t, 3, rec.NumFeatures)
	assert.InDelta(t, 0.4, rec.AvgConfidence, 1e-6)

	_, ok = c.Observe(frame(int64(3*time.Second), 10, tracking.Tracking, 0.2, 0.4, 0.6))
	assert.False(t, ok, "unchanged cloud")

	_, ok = c.Observe(frame(int64(4*time.Second), 20, tracking.Tracking))
	assert.True(t, ok)

	recs := c.Experiment().Records
	require.Len(t, recs, 2)
	assert.Zero(t, recs[1].NumFeatures)
	assert.Zero(t, recs[1].AvgConfidence)
}

func TestCollector_ZeroCloudTimestamp(t *testing.T) {
	t.Parallel()
	c := NewCollector(New(time.Now()))
	_, ok := c.Observe(frame(0, 0, tracking.Tracking, 0.5))
	assert.True(t, ok)
	_, ok = c.Observe(frame(1, 0, tracking.Tracking, 0.5))
	assert.False(t, ok)
}

func TestCollector_PlaneArea(t *testing.T) {
	t.Parallel()
	c := NewCollector(New(time.Now()))

	f := frame(1, 1, tracking.Tracking)
	f.UpdatedPlanes = []tracking.Plane{
		{ID: 1, State: tracking.Tracking, Polygon: square(1)},
		{ID: 2, State: tracking.Tracking, Polygon: square(2)},
	}
	rec, ok := c.Observe(f)
	require.True(t, ok)
	assert.InDelta(t, 4, rec.PlaneArea, 1e-9)

	// Plane 2 is lost; plane 1 keeps its last area.
	f = frame(2, 2, tracking.Tracking)
	f.UpdatedPlanes = []tracking.Plane{{ID: 2, State: tracking.Stopped}}
	rec, ok = c.Observe(f)
	require.True(t, ok)
	assert.InDelta(t, 1, rec.PlaneArea, 1e-9)

	// Paused planes keep their area; updates while the camera is paused still count.
	f = frame(3, 2, tracking.Paused)
	f.UpdatedPlanes = []tracking.Plane{
		{ID: 1, State: tracking.Paused},
		{ID: 3, State: tracking.Tracking, Polygon: square(3)},
	}
	_, ok = c.Observe(f)
	assert.False(t, ok)

	rec, ok = c.Observe(frame(4, 3, tracking.Tracking))
	require.True(t, ok)
	assert.InDelta(t, 9, rec.PlaneArea, 1e-9)
}

func TestCollector_NilInput(t *testing.T) {
	t.Parallel()
	c := NewCollector(New(time.Now()))
	_, ok := c.Observe(nil)
	assert.False(t, ok)
	_, ok = c.Observe(&tracking.Frame{Camera: tracking.Tracking})
	assert.False(t, ok)
}
