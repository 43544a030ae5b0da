package tracking

import (
	"context"
	"errors"
	gomath "math"
	"math/rand"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/Faultbox/arcloud/internal/engine/pointcloud"
	"github.com/Faultbox/arcloud/internal/logger"
)

// ErrClosed is returned by Next after Close.
var ErrClosed = errors.New("tracking: source closed")

// Plane IDs emitted by the synthetic source.
const (
	FloorPlaneID = 1
	TablePlaneID = 2
)

// floorHeight is the floor's y coordinate; the camera starts at the origin.
const floorHeight = -1.2

// SyntheticConfig configures the synthetic tracking source.
type SyntheticConfig struct {
	Seed         int64   // RNG seed; equal seeds produce equal sessions
	MaxFeatures  int     // feature points tracked once the scene is mapped
	FrameRate    float64 // frames per second; 0 delivers frames as fast as they are read
	CloudEvery   int     // the point cloud changes every N frames
	WarmupFrames int     // frames before the camera starts tracking
}

// DefaultSyntheticConfig returns settings resembling a phone walking a small room.
func DefaultSyntheticConfig() SyntheticConfig {
	return SyntheticConfig{
		Seed:         1,
		MaxFeatures:  400,
		FrameRate:    30,
		CloudEvery:   2,
		WarmupFrames: 15,
	}
}

// Synthetic generates a deterministic tracking session: features are sampled
// from a fixed set of anchors on the floor and scattered furniture, their
// confidence rises as the session goes on, and a floor plane grows over time.
type Synthetic struct {
	cfg     SyntheticConfig
	rng     *rand.Rand
	anchors []pointcloud.FeaturePoint
	ticker  *time.Ticker
	closed  atomic.Bool

	frame     int
	cloudTime int64
	lastCloud []float32

	pool sync.Pool
}

// NewSynthetic creates a synthetic source.
func NewSynthetic(cfg SyntheticConfig) *Synthetic {
	if cfg.CloudEvery < 1 {
		cfg.CloudEvery = 1
	}
	if cfg.MaxFeatures < 0 {
		cfg.MaxFeatures = 0
	}

	s := &Synthetic{
		cfg: cfg,
		rng: rand.New(rand.NewSource(cfg.Seed)),
	}
	s.pool.New = func() any {
		buf := make([]float32, 0, cfg.MaxFeatures*4)
		return &buf
	}
	s.anchors = s.generateAnchors(cfg.MaxFeatures)
	if cfg.FrameRate > 0 {
		s.ticker = time.NewTicker(time.Duration(float64(time.Second) / cfg.FrameRate))
	}

	logger.Debug("synthetic tracking source created",
		zap.Int64("seed", cfg.Seed),
		zap.Int("max_features", cfg.MaxFeatures),
		zap.Float64("frame_rate", cfg.FrameRate),
	)
	return s
}

// generateAnchors places two thirds of the anchors on the floor and the rest
// on box-shaped clutter around the room.
func (s *Synthetic) generateAnchors(n int) []pointcloud.FeaturePoint {
	anchors := make([]pointcloud.FeaturePoint, n)
	for i := range anchors {
		a := &anchors[i]
		a.X = float32(s.rng.Float64()*4 - 2)
		a.Z = float32(s.rng.Float64()*4 - 3)
		if i%3 == 2 {
			a.Y = float32(floorHeight + s.rng.Float64()*0.8)
		} else {
			a.Y = floorHeight
		}
		// Base confidence; grows with session progress.
		a.Confidence = float32(s.rng.Float64() * 0.4)
	}
	return anchors
}

// Next returns the next frame.
func (s *Synthetic) Next(ctx context.Context) (*Frame, error) {
	if s.closed.Load() {
		return nil, ErrClosed
	}
	if s.ticker != nil {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-s.ticker.C:
		}
	} else if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.frame++
	ts := s.timestamp(s.frame)
	f := &Frame{Timestamp: ts, Camera: Paused}

	if s.frame > s.cfg.WarmupFrames {
		f.Camera = Tracking
		if (s.frame-s.cfg.WarmupFrames-1)%s.cfg.CloudEvery == 0 {
			s.cloudTime = ts
			s.lastCloud = s.generateCloud(s.lastCloud[:0])
		}
		f.UpdatedPlanes = s.planeUpdates()
	}

	buf := s.pool.Get().(*[]float32)
	*buf = append((*buf)[:0], s.lastCloud...)
	f.Cloud = &pointcloud.Snapshot{Timestamp: s.cloudTime, Points: *buf}
	f.release = func() {
		*buf = (*buf)[:0]
		s.pool.Put(buf)
	}
	return f, nil
}

// Close stops the source.
func (s *Synthetic) Close() error {
	if s.closed.Swap(true) {
		return nil
	}
	if s.ticker != nil {
		s.ticker.Stop()
	}
	return nil
}

func (s *Synthetic) timestamp(frame int) int64 {
	rate := s.cfg.FrameRate
	if rate <= 0 {
		rate = 30
	}
	return int64(float64(frame) * float64(time.Second) / rate)
}

// progress runs from 0 when tracking starts to 1 about ten seconds later.
func (s *Synthetic) progress() float64 {
	p := float64(s.frame-s.cfg.WarmupFrames) / 300
	return gomath.Max(0, gomath.Min(1, p))
}

func (s *Synthetic) generateCloud(dst []float32) []float32 {
	if len(s.anchors) == 0 {
		return dst
	}
	p := s.progress()

	// Ramp up over the first second of tracking, then fluctuate by ±15%.
	n := int(float64(len(s.anchors)) * gomath.Min(1, 0.25+p*7.5))
	n = int(float64(n) * (0.85 + s.rng.Float64()*0.15))

	// Visible anchors drift as the camera moves.
	start := (s.frame * 7) % len(s.anchors)
	for i := 0; i < n; i++ {
		a := s.anchors[(start+i)%len(s.anchors)]
		conf := float64(a.Confidence) + p*0.6 + s.rng.NormFloat64()*0.05
		dst = append(dst,
			a.X+float32(s.rng.NormFloat64()*0.002),
			a.Y+float32(s.rng.NormFloat64()*0.002),
			a.Z+float32(s.rng.NormFloat64()*0.002),
			float32(gomath.Max(0, gomath.Min(1, conf))),
		)
	}
	return dst
}

// planeUpdates reports the floor every ten frames and a table that is found
// after three seconds and lost after ten.
func (s *Synthetic) planeUpdates() []Plane {
	tracked := s.frame - s.cfg.WarmupFrames
	if tracked%10 != 0 {
		return nil
	}

	floorRadius := gomath.Min(0.3+0.02*float64(tracked/10), 2.5)
	planes := []Plane{{
		ID:      FloorPlaneID,
		State:   Tracking,
		Center:  [3]float32{0, floorHeight, -1},
		Polygon: regularPolygon(8, floorRadius),
	}}

	switch {
	case tracked >= 300:
		planes = append(planes, Plane{ID: TablePlaneID, State: Stopped})
	case tracked >= 90:
		planes = append(planes, Plane{
			ID:      TablePlaneID,
			State:   Tracking,
			Center:  [3]float32{0.8, floorHeight + 0.75, -1.5},
			Polygon: regularPolygon(4, 0.5),
		})
	}
	return planes
}

// regularPolygon returns an n-gon of the given circumradius as flat x,z pairs.
func regularPolygon(n int, radius float64) []float32 {
	poly := make([]float32, 0, n*2)
	for i := 0; i < n; i++ {
		angle := 2 * gomath.Pi * float64(i) / float64(n)
		poly = append(poly, float32(radius*gomath.Cos(angle)), float32(radius*gomath.Sin(angle)))
	}
	return poly
}
