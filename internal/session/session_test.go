package session

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Faultbox/arcloud/internal/engine/pointcloud"
	"github.com/Faultbox/arcloud/internal/engine/scene"
	"github.com/Faultbox/arcloud/internal/experiment"
	"github.com/Faultbox/arcloud/internal/tracking"
)

// scriptedSource replays a fixed list of frames, then reports ErrClosed.
type scriptedSource struct {
	frames   []*tracking.Frame
	released int
}

func (s *scriptedSource) add(ts int64, camera tracking.TrackingState, cloudTS int64, n int, planes ...tracking.Plane) {
	snap := &pointcloud.Snapshot{Timestamp: cloudTS}
	for i := 0; i < n; i++ {
		snap.AppendFeature(pointcloud.FeaturePoint{X: float32(i), Confidence: 0.5})
	}
	f := tracking.NewFrame(ts, camera, snap, func() { s.released++ })
	f.UpdatedPlanes = planes
	s.frames = append(s.frames, f)
}

func (s *scriptedSource) Next(ctx context.Context) (*tracking.Frame, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(s.frames) == 0 {
		return nil, tracking.ErrClosed
	}
	f := s.frames[0]
	s.frames = s.frames[1:]
	return f, nil
}

func (s *scriptedSource) Close() error { return nil }

type fakeMesh struct {
	builder *pointcloud.Builder
	err     error
	calls   int
}

func newFakeMesh(t *testing.T) *fakeMesh {
	t.Helper()
	b := pointcloud.NewBuilder()
	require.NoError(t, b.Prepare(context.Background(), colorFactory{}, pointcloud.UniformMaterial(pointcloud.DefaultUniformColor)))
	return &fakeMesh{builder: b}
}

func (m *fakeMesh) Update(_ context.Context, snap *pointcloud.Snapshot) (pointcloud.Status, error) {
	m.calls++
	res := m.builder.Update(snap)
	if m.err != nil && res.Status == pointcloud.Rebuilt {
		return res.Status, m.err
	}
	return res.Status, nil
}

type colorFactory struct{}

func (colorFactory) MakeOpaqueWithColor(_ context.Context, c pointcloud.Color) (pointcloud.Material, error) {
	return c, nil
}

func unitSquare() []float32 { return []float32{0, 0, 1, 0, 1, 1, 0, 1} }

func TestStep_SkipsUntilTracking(t *testing.T) {
	t.Parallel()
	src := &scriptedSource{}
	src.add(1, tracking.Paused, 0, 0)
	src.add(2, tracking.Tracking, 2, 3)
	src.add(3, tracking.Tracking, 2, 3)
	src.add(4, tracking.Tracking, 4, 0)

	mesh := newFakeMesh(t)
	s := New(src, mesh, experiment.NewCollector(experiment.New(time.Now())))
	ctx := context.Background()

	res, err := s.Step(ctx)
	require.NoError(t, err)
	assert.Equal(t, tracking.Paused, res.Camera)
	assert.Equal(t, pointcloud.NoChange, res.Status)
	assert.False(t, res.Recorded)
	assert.Zero(t, mesh.calls, "mesh must not be touched while the camera is not tracking")

	res, err = s.Step(ctx)
	require.NoError(t, err)
	assert.Equal(t, pointcloud.Rebuilt, res.Status)
	assert.True(t, res.Recorded)

	res, err = s.Step(ctx)
	require.NoError(t, err)
	assert.Equal(t, pointcloud.NoChange, res.Status)
	assert.False(t, res.Recorded)

	res, err = s.Step(ctx)
	require.NoError(t, err)
	assert.Equal(t, pointcloud.Clear, res.Status)

	_, err = s.Step(ctx)
	assert.ErrorIs(t, err, tracking.ErrClosed)

	assert.Equal(t, 4, src.released, "every frame is released")
	assert.Equal(t, 4, s.Frames())
	assert.Len(t, s.Experiment().Records, 2)
}

func TestStep_MeshErrorIsReported(t *testing.T) {
	t.Parallel()
	src := &scriptedSource{}
	src.add(1, tracking.Tracking, 1, 2)

	mesh := newFakeMesh(t)
	boom := errors.New("upload failed")
	mesh.err = boom

	s := New(src, mesh, nil)
	_, err := s.Step(context.Background())
	assert.ErrorIs(t, err, ErrMeshUpdate)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 1, src.released)
	assert.Nil(t, s.Experiment())
}

func TestRun_StopsWhenSourceCloses(t *testing.T) {
	t.Parallel()
	src := &scriptedSource{}
	for i := int64(1); i <= 5; i++ {
		src.add(i, tracking.Tracking, i, int(i))
	}
	mesh := newFakeMesh(t)
	mesh.err = errors.New("upload failed")

	s := New(src, mesh, experiment.NewCollector(experiment.New(time.Now())))
	require.NoError(t, s.Run(context.Background(), 0), "mesh errors do not stop the run")
	assert.Equal(t, 5, s.Frames())
	assert.Len(t, s.Experiment().Records, 5)
}

func TestRun_FrameLimit(t *testing.T) {
	t.Parallel()
	src := &scriptedSource{}
	for i := int64(1); i <= 5; i++ {
		src.add(i, tracking.Tracking, i, 1)
	}
	s := New(src, nil, nil)
	require.NoError(t, s.Run(context.Background(), 3))
	assert.Equal(t, 3, s.Frames())
}

func TestRun_ContextCancelled(t *testing.T) {
	t.Parallel()
	src := &scriptedSource{}
	src.add(1, tracking.Tracking, 1, 1)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	s := New(src, nil, nil)
	assert.ErrorIs(t, s.Run(ctx, 0), context.Canceled)
}

func TestPlanes(t *testing.T) {
	t.Parallel()
	src := &scriptedSource{}
	src.add(1, tracking.Tracking, 1, 1,
		tracking.Plane{ID: 2, State: tracking.Tracking, Polygon: unitSquare()},
		tracking.Plane{ID: 1, State: tracking.Tracking, Polygon: unitSquare()},
	)
	src.add(2, tracking.Tracking, 1, 1, tracking.Plane{ID: 2, State: tracking.Stopped})

	s := New(src, nil, nil)
	_, err := s.Step(context.Background())
	require.NoError(t, err)
	planes := s.Planes()
	require.Len(t, planes, 2)
	assert.Equal(t, 1, planes[0].ID)
	assert.Equal(t, 2, planes[1].ID)

	_, err = s.Step(context.Background())
	require.NoError(t, err)
	planes = s.Planes()
	require.Len(t, planes, 1)
	assert.Equal(t, 1, planes[0].ID)
}

func TestWithSyntheticSourceAndNode(t *testing.T) {
	t.Parallel()
	cfg := tracking.DefaultSyntheticConfig()
	cfg.FrameRate = 0
	cfg.MaxFeatures = 40
	src := tracking.NewSynthetic(cfg)
	defer src.Close()

	node := scene.NewPointCloudNode(pointcloud.NewBuilder(), discardSubmitter{})
	require.NoError(t, node.Activate(context.Background(), colorFactory{}, pointcloud.ConfidenceMaterials(pointcloud.DefaultConfidenceColors)))
	<-node.Prepared()
	require.NoError(t, node.PrepareErr())
	defer node.Deactivate()

	s := New(src, node, experiment.NewCollector(experiment.New(time.Now())))
	require.NoError(t, s.Run(context.Background(), cfg.WarmupFrames+60))

	recs := s.Experiment().Records
	assert.Len(t, recs, 30, "one record per cloud change")
	assert.Positive(t, recs[len(recs)-1].NumFeatures)
	assert.Positive(t, recs[len(recs)-1].PlaneArea)
	assert.NotNil(t, node.Renderable())
}

type discardSubmitter struct{}

func (discardSubmitter) Submit(context.Context, *pointcloud.Mesh) (scene.Renderable, error) {
	return nopRenderable{}, nil
}

type nopRenderable struct{}

func (nopRenderable) Release() {}
