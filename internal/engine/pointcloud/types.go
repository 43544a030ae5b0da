// Package pointcloud builds renderable glyph meshes from tracked feature point clouds.
package pointcloud

// pointStride is the number of float32 values per feature in a snapshot buffer:
// x, y, z and a confidence value.
const pointStride = 4

// FeaturePoint is a tracked 3D point with its tracking confidence in [0, 1].
type FeaturePoint struct {
	X, Y, Z    float32
	Confidence float32
}

// Snapshot is one frame of the tracking engine's point cloud.
// Points holds the features flattened as [x, y, z, confidence] per feature.
// The buffer is owned by the tracking engine and must not be retained.
type Snapshot struct {
	Timestamp int64
	Points    []float32
}

// NumFeatures returns the number of complete features in the snapshot.
func (s *Snapshot) NumFeatures() int {
	if s == nil {
		return 0
	}
	return len(s.Points) / pointStride
}

// Feature decodes the feature at index i.
func (s *Snapshot) Feature(i int) FeaturePoint {
	base := i * pointStride
	return FeaturePoint{
		X:          s.Points[base],
		Y:          s.Points[base+1],
		Z:          s.Points[base+2],
		Confidence: s.Points[base+3],
	}
}

// AppendFeature appends a feature to the snapshot buffer.
func (s *Snapshot) AppendFeature(p FeaturePoint) {
	s.Points = append(s.Points, p.X, p.Y, p.Z, p.Confidence)
}

// Vertex is a mesh vertex with position, normal, and texture coordinates.
type Vertex struct {
	Position [3]float32
	Normal   [3]float32
	TexCoord [2]float32
}

// Submesh is a contiguous range of the index buffer drawn with one material.
type Submesh struct {
	Name       string
	Material   Material
	StartIndex int32
	IndexCount int32
}

// Bounds holds an axis-aligned bounding box.
type Bounds struct {
	Min [3]float32
	Max [3]float32
}

// Mesh is the renderable description of one snapshot.
//
// Vertices and Indices are views over the builder's scratch buffers. They stay
// valid until the next call to Builder.Update and must not be modified.
// Submitters that keep the data past that point must copy it.
type Mesh struct {
	Vertices  []Vertex
	Indices   []uint32
	Submeshes []Submesh
	Bounds    Bounds
}

// GlyphCount returns the number of feature glyphs in the mesh.
func (m *Mesh) GlyphCount() int {
	return len(m.Vertices) / GlyphVertexCount
}

// Status describes the outcome of Builder.Update.
type Status int

const (
	// NoChange means nothing was processed; the current renderable stays as is.
	NoChange Status = iota
	// Clear means the cloud was empty and the current renderable must be removed.
	Clear
	// Rebuilt means Result.Mesh holds a new mesh to submit.
	Rebuilt
)

// String returns the status name.
func (s Status) String() string {
	switch s {
	case NoChange:
		return "no-change"
	case Clear:
		return "clear"
	case Rebuilt:
		return "rebuilt"
	default:
		return "unknown"
	}
}

// Result is returned by Builder.Update.
type Result struct {
	Status Status
	Mesh   *Mesh
}
