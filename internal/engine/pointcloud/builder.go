package pointcloud

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/Faultbox/arcloud/internal/logger"
)

// State is the material preparation state of a Builder.
type State int32

const (
	// Uninitialized means Prepare has not been called or has failed.
	Uninitialized State = iota
	// Preparing means materials are being constructed.
	Preparing
	// Ready means Update builds meshes.
	Ready
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case Uninitialized:
		return "uninitialized"
	case Preparing:
		return "preparing"
	case Ready:
		return "ready"
	default:
		return "unknown"
	}
}

var (
	// ErrAlreadyPrepared is returned by Prepare once preparation has started.
	ErrAlreadyPrepared = errors.New("pointcloud: materials already prepared")
	// ErrEmptyMaterialSpec is returned by Prepare for a spec without colors.
	ErrEmptyMaterialSpec = errors.New("pointcloud: empty material spec")
)

// Builder converts point cloud snapshots into glyph meshes.
//
// Update must be called from a single goroutine. Prepare may run on another
// goroutine; Update returns NoChange until it completes.
type Builder struct {
	state   atomic.Int32
	enabled atomic.Bool

	// Written by Prepare before state becomes Ready.
	materials []Material
	bucketed  bool

	processed     bool
	lastTimestamp int64

	// Scratch buffers, grown to the high-water mark and never shrunk.
	vertices      []Vertex
	indices       []uint32
	submeshes     []Submesh
	reallocations int
}

// NewBuilder creates an enabled builder with no materials.
func NewBuilder() *Builder {
	b := &Builder{}
	b.enabled.Store(true)
	return b
}

// State returns the current preparation state.
func (b *Builder) State() State {
	return State(b.state.Load())
}

// SetEnabled toggles mesh building without discarding materials or buffers.
func (b *Builder) SetEnabled(enabled bool) {
	b.enabled.Store(enabled)
}

// Enabled reports whether Update builds meshes.
func (b *Builder) Enabled() bool {
	return b.enabled.Load()
}

// Capacity returns how many glyphs the scratch buffers can hold.
func (b *Builder) Capacity() int {
	return len(b.vertices) / GlyphVertexCount
}

// Reallocations returns how many times the scratch buffers have grown.
func (b *Builder) Reallocations() int {
	return b.reallocations
}

// Prepare constructs the materials described by spec and blocks until they are ready.
// It may only succeed once. On failure the builder returns to Uninitialized and
// the caller decides whether to retry. If ctx is cancelled first, pending results
// are discarded, the builder is left Uninitialized and ctx.Err() is returned.
func (b *Builder) Prepare(ctx context.Context, factory MaterialFactory, spec MaterialSpec) error {
	if len(spec.colors) == 0 {
		return ErrEmptyMaterialSpec
	}
	if !b.state.CompareAndSwap(int32(Uninitialized), int32(Preparing)) {
		return ErrAlreadyPrepared
	}

	materials := make([]Material, len(spec.colors))
	for i, c := range spec.colors {
		m, err := makeMaterial(ctx, factory, c)
		if err != nil {
			b.state.Store(int32(Uninitialized))
			if ctxErr := ctx.Err(); ctxErr != nil {
				return ctxErr
			}
			return fmt.Errorf("material %d: %w", i, err)
		}
		materials[i] = m
	}
	if err := ctx.Err(); err != nil {
		b.state.Store(int32(Uninitialized))
		return err
	}

	b.materials = materials
	b.bucketed = spec.bucketed
	if !b.state.CompareAndSwap(int32(Preparing), int32(Ready)) {
		return ErrAlreadyPrepared
	}
	// A cancel that raced the publish rolls it back; the caller sees ctx.Err().
	if err := ctx.Err(); err != nil {
		b.state.CompareAndSwap(int32(Ready), int32(Uninitialized))
		return err
	}

	logger.Debug("point cloud materials ready",
		zap.Int("materials", len(materials)),
		zap.Bool("bucketed", spec.bucketed),
	)
	return nil
}

// makeMaterial waits for a single material or for ctx to be done, whichever comes first.
func makeMaterial(ctx context.Context, factory MaterialFactory, c Color) (Material, error) {
	type result struct {
		material Material
		err      error
	}
	done := make(chan result, 1)
	go func() {
		m, err := factory.MakeOpaqueWithColor(ctx, c)
		done <- result{m, err}
	}()

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case r := <-done:
		return r.material, r.err
	}
}

// Update builds the mesh for snap.
//
// It returns NoChange when the builder is disabled, not Ready, or snap carries
// the timestamp that was processed last. An empty snapshot returns Clear.
// The returned mesh shares the builder's scratch buffers and is valid until
// the next call to Update.
func (b *Builder) Update(snap *Snapshot) Result {
	if snap == nil || !b.enabled.Load() || b.State() != Ready {
		return Result{Status: NoChange}
	}
	if b.processed && snap.Timestamp == b.lastTimestamp {
		return Result{Status: NoChange}
	}
	b.processed = true
	b.lastTimestamp = snap.Timestamp

	n := snap.NumFeatures()
	if n == 0 {
		return Result{Status: Clear}
	}
	b.reserve(n)

	mesh := &Mesh{
		Vertices: b.vertices[:n*GlyphVertexCount],
		Indices:  b.indices[:n*GlyphIndexCount],
		Bounds: Bounds{
			Min: [3]float32{1e10, 1e10, 1e10},
			Max: [3]float32{-1e10, -1e10, -1e10},
		},
	}
	for i := 0; i < n; i++ {
		p := snap.Feature(i)
		WriteGlyph(mesh.Vertices[i*GlyphVertexCount:], p)
		updateBounds(&mesh.Bounds, p)
	}

	if b.bucketed {
		mesh.Submeshes = b.writeBucketedIndices(snap, mesh.Indices)
	} else {
		for i := 0; i < n; i++ {
			writeGlyphIndices(mesh.Indices[i*GlyphIndexCount:], i)
		}
		b.submeshes = append(b.submeshes[:0], Submesh{
			Name:       "Features",
			Material:   b.materials[0],
			IndexCount: int32(len(mesh.Indices)),
		})
		mesh.Submeshes = b.submeshes
	}
	return Result{Status: Rebuilt, Mesh: mesh}
}

// reserve grows the scratch buffers to hold exactly n glyphs when they are too small.
func (b *Builder) reserve(n int) {
	if n <= b.Capacity() {
		return
	}
	b.vertices = make([]Vertex, n*GlyphVertexCount)
	b.indices = make([]uint32, n*GlyphIndexCount)
	b.reallocations++

	logger.Debug("point cloud buffers grown",
		zap.Int("glyphs", n),
		zap.Int("reallocations", b.reallocations),
	)
}

// writeBucketedIndices groups glyph faces by confidence bucket so each bucket
// is one contiguous sub-mesh. Glyphs keep their index order within a bucket.
func (b *Builder) writeBucketedIndices(snap *Snapshot, indices []uint32) []Submesh {
	n := snap.NumFeatures()

	var counts [NumBuckets]int
	for i := 0; i < n; i++ {
		counts[BucketFor(snap.Feature(i).Confidence)]++
	}

	var offsets [NumBuckets]int
	b.submeshes = b.submeshes[:0]
	start := 0
	for bucket, count := range counts {
		offsets[bucket] = start
		if count > 0 {
			b.submeshes = append(b.submeshes, Submesh{
				Name:       "Confidence " + Bucket(bucket).String(),
				Material:   b.materials[bucket],
				StartIndex: int32(start),
				IndexCount: int32(count * GlyphIndexCount),
			})
		}
		start += count * GlyphIndexCount
	}

	for i := 0; i < n; i++ {
		bucket := BucketFor(snap.Feature(i).Confidence)
		writeGlyphIndices(indices[offsets[bucket]:], i)
		offsets[bucket] += GlyphIndexCount
	}
	return b.submeshes
}

// updateBounds extends b by the glyph around p.
func updateBounds(b *Bounds, p FeaturePoint) {
	const s = GlyphHalfExtent
	lo := [3]float32{p.X - s, p.Y, p.Z - s}
	hi := [3]float32{p.X + s, p.Y + s, p.Z + s}
	for i := 0; i < 3; i++ {
		if lo[i] < b.Min[i] {
			b.Min[i] = lo[i]
		}
		if hi[i] > b.Max[i] {
			b.Max[i] = hi[i]
		}
	}
}
