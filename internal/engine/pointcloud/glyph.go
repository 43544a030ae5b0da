package pointcloud

import gomath "math"

const (
	// GlyphHalfExtent is the distance from a feature to each glyph corner.
	GlyphHalfExtent float32 = 0.005
	// GlyphVertexCount is the number of vertices per glyph.
	GlyphVertexCount = 4
	// GlyphIndexCount is the number of triangle indices per glyph (4 faces).
	GlyphIndexCount = 12
)

// Glyph vertex slots.
const (
	glyphTop = iota
	glyphLeft
	glyphFront
	glyphRight
)

// GlyphIndices lists the glyph faces (left, right, back, bottom) in
// counter-clockwise order as seen from outside each face.
var GlyphIndices = [GlyphIndexCount]uint32{
	1, 2, 0,
	0, 2, 3,
	0, 3, 1,
	1, 2, 3,
}

var (
	diag = float32(1 / gomath.Sqrt2)

	normalTop   = [3]float32{0, 0, 1}
	normalLeft  = [3]float32{diag, 0, diag}
	normalFront = [3]float32{-diag, 0, diag}
	normalRight = [3]float32{0, 1, 0}
)

// WriteGlyph writes the four pyramid vertices for p into dst[0:4].
// The normals and UVs only satisfy the material contract; they are not meant for shading.
func WriteGlyph(dst []Vertex, p FeaturePoint) {
	const s = GlyphHalfExtent
	_ = dst[glyphRight]

	dst[glyphTop] = Vertex{Position: [3]float32{p.X, p.Y + s, p.Z}, Normal: normalTop}
	dst[glyphLeft] = Vertex{Position: [3]float32{p.X - s, p.Y, p.Z - s}, Normal: normalLeft}
	dst[glyphFront] = Vertex{Position: [3]float32{p.X, p.Y, p.Z + s}, Normal: normalFront}
	dst[glyphRight] = Vertex{Position: [3]float32{p.X + s, p.Y, p.Z - s}, Normal: normalRight}
}

// writeGlyphIndices writes the glyph faces for the glyph at featureIndex into dst[0:12].
func writeGlyphIndices(dst []uint32, featureIndex int) {
	base := uint32(featureIndex * GlyphVertexCount)
	_ = dst[GlyphIndexCount-1]
	for i, idx := range GlyphIndices {
		dst[i] = base + idx
	}
}
