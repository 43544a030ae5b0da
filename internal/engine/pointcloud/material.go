package pointcloud

import "context"

// Color is an RGB color with float components (0.0 to 1.0).
type Color struct {
	R, G, B float32
}

// Material is an opaque material handle produced by a MaterialFactory.
type Material any

// MaterialFactory constructs materials on the rendering engine.
// MakeOpaqueWithColor blocks until the engine has built the material or ctx is done.
type MaterialFactory interface {
	MakeOpaqueWithColor(ctx context.Context, c Color) (Material, error)
}

// Bucket is a confidence range used to pick a glyph material.
type Bucket int

// Confidence buckets. Each is half-open except the last, which includes 1.0.
const (
	Bucket0to20 Bucket = iota
	Bucket20to40
	Bucket40to60
	Bucket60to80
	Bucket80to100
	NumBuckets // number of buckets
)

// String returns the bucket's confidence range.
func (b Bucket) String() string {
	switch b {
	case Bucket0to20:
		return "[0.0,0.2)"
	case Bucket20to40:
		return "[0.2,0.4)"
	case Bucket40to60:
		return "[0.4,0.6)"
	case Bucket60to80:
		return "[0.6,0.8)"
	case Bucket80to100:
		return "[0.8,1.0]"
	default:
		return "invalid"
	}
}

// BucketFor returns the bucket containing confidence.
// Values below 0 fall in the first bucket and values above 1 in the last.
func BucketFor(confidence float32) Bucket {
	switch {
	case confidence < 0.2:
		return Bucket0to20
	case confidence < 0.4:
		return Bucket20to40
	case confidence < 0.6:
		return Bucket40to60
	case confidence < 0.8:
		return Bucket60to80
	default:
		return Bucket80to100
	}
}

// DefaultConfidenceColors runs from light to dark red as confidence increases.
var DefaultConfidenceColors = [NumBuckets]Color{
	{1, 1, 0.8},
	{1, 0.8, 0.6},
	{1, 0.6, 0.4},
	{1, 0.4, 0.2},
	{1, 0.2, 0},
}

// DefaultUniformColor is the glyph color when confidence coloring is off.
var DefaultUniformColor = Color{1, 0.4, 0.2}

// MaterialSpec selects the materials a builder prepares.
type MaterialSpec struct {
	colors   []Color
	bucketed bool
}

// UniformMaterial returns a spec with one shared material and one combined sub-mesh.
func UniformMaterial(c Color) MaterialSpec {
	return MaterialSpec{colors: []Color{c}}
}

// ConfidenceMaterials returns a spec with one material per confidence bucket.
func ConfidenceMaterials(colors [NumBuckets]Color) MaterialSpec {
	return MaterialSpec{colors: colors[:], bucketed: true}
}

// Bucketed reports whether glyphs are colored by confidence.
func (s MaterialSpec) Bucketed() bool {
	return s.bucketed
}

// Colors returns the material colors in bucket order.
func (s MaterialSpec) Colors() []Color {
	return append([]Color(nil), s.colors...)
}
