// Package debug provides debug visualization utilities.
package debug

import "github.com/Faultbox/arcloud/internal/engine/pointcloud"

// BBoxWireframeVertexCount is the number of vertices for a bbox wireframe (12 edges × 2).
const BBoxWireframeVertexCount = 24

// BBoxWireframe appends line vertices for the box to dst and returns it.
// Format is [x, y, z] per vertex, two vertices per edge.
// padding expands the box by the given amount on all sides.
func BBoxWireframe(dst []float32, b pointcloud.Bounds, padding float32) []float32 {
	minX, minY, minZ := b.Min[0]-padding, b.Min[1]-padding, b.Min[2]-padding
	maxX, maxY, maxZ := b.Max[0]+padding, b.Max[1]+padding, b.Max[2]+padding

	return append(dst,
		// Bottom face (4 edges)
		minX, minY, minZ, maxX, minY, minZ,
		maxX, minY, minZ, maxX, minY, maxZ,
		maxX, minY, maxZ, minX, minY, maxZ,
		minX, minY, maxZ, minX, minY, minZ,
		// Top face (4 edges)
		minX, maxY, minZ, maxX, maxY, minZ,
		maxX, maxY, minZ, maxX, maxY, maxZ,
		maxX, maxY, maxZ, minX, maxY, maxZ,
		minX, maxY, maxZ, minX, maxY, minZ,
		// Vertical edges (4 edges)
		minX, minY, minZ, minX, maxY, minZ,
		maxX, minY, minZ, maxX, maxY, minZ,
		maxX, minY, maxZ, maxX, maxY, maxZ,
		minX, minY, maxZ, minX, maxY, maxZ,
	)
}
