package systems

import (
	"github.com/spaghettifunk/marionette/engine/core"
	"github.com/spaghettifunk/marionette/engine/math"
	"github.com/spaghettifunk/marionette/engine/resources"
)

/**
 * @brief Generates mesh data for a flat ground plane on the XZ axes, facing +Y.
 *
 * @param width The overall width of the plane. Must be non-zero.
 * @param depth The overall depth of the plane. Must be non-zero.
 * @param xSegmentCount The number of segments along the x-axis in the plane. Must be non-zero.
 * @param zSegmentCount The number of segments along the z-axis in the plane. Must be non-zero.
 * @param tileX The number of times the texture should tile across the plane on the x-axis. Must be non-zero.
 * @param tileY The number of times the texture should tile across the plane on the z-axis. Must be non-zero.
 * @param name The name of the generated mesh.
 * @param materialName The name of the material every segment is drawn with.
 */
func GeneratePlane(width, depth float32, xSegmentCount, zSegmentCount uint32, tileX, tileY float32, name, materialName string) *resources.MeshData {
	if width == 0 {
		core.LogWarn("Width must be nonzero. Defaulting to one.")
		width = 1.0
	}
	if depth == 0 {
		core.LogWarn("Depth must be nonzero. Defaulting to one.")
		depth = 1.0
	}
	if xSegmentCount < 1 {
		core.LogWarn("xSegmentCount must be a positive number. Defaulting to one.")
		xSegmentCount = 1
	}
	if zSegmentCount < 1 {
		core.LogWarn("zSegmentCount must be a positive number. Defaulting to one.")
		zSegmentCount = 1
	}
	if tileX == 0 {
		core.LogWarn("tileX must be nonzero. Defaulting to one.")
		tileX = 1.0
	}
	if tileY == 0 {
		core.LogWarn("tileY must be nonzero. Defaulting to one.")
		tileY = 1.0
	}

	segments := xSegmentCount * zSegmentCount
	data := &resources.MeshData{
		Name:     name,
		Vertices: make([]resources.MeshVertex, segments*4),
		Indices:  make([]uint32, segments*6),
	}

	segWidth := width / float32(xSegmentCount)
	segDepth := depth / float32(zSegmentCount)
	halfWidth := width * 0.5
	halfDepth := depth * 0.5
	normal := math.NewVec3Up()
	tangent := math.NewVec3Right()
	bitangent := normal.Cross(tangent)

	for z := uint32(0); z < zSegmentCount; z++ {
		for x := uint32(0); x < xSegmentCount; x++ {
			minX := (float32(x) * segWidth) - halfWidth
			minZ := halfDepth - (float32(z) * segDepth)
			maxX := minX + segWidth
			maxZ := minZ - segDepth
			minU := (float32(x) / float32(xSegmentCount)) * tileX
			minV := (float32(z) / float32(zSegmentCount)) * tileY
			maxU := (float32(x+1) / float32(xSegmentCount)) * tileX
			maxV := (float32(z+1) / float32(zSegmentCount)) * tileY

			vOffset := ((z * xSegmentCount) + x) * 4
			corners := [4]struct {
				pos math.Vec3
				uv  math.Vec2
			}{
				{math.NewVec3(minX, 0, minZ), math.NewVec2(minU, minV)},
				{math.NewVec3(maxX, 0, maxZ), math.NewVec2(maxU, maxV)},
				{math.NewVec3(minX, 0, maxZ), math.NewVec2(minU, maxV)},
				{math.NewVec3(maxX, 0, minZ), math.NewVec2(maxU, minV)},
			}
			for i, c := range corners {
				data.Vertices[vOffset+uint32(i)] = resources.MeshVertex{
					Position:  c.pos,
					Normal:    normal,
					Tangent:   tangent,
					Bitangent: bitangent,
					TexCoord:  c.uv,
				}
			}

			iOffset := ((z * xSegmentCount) + x) * 6
			writeQuadIndices(data.Indices[iOffset:], vOffset)
		}
	}

	data.Materials = []resources.MeshMaterial{{FirstIndex: 0, IndexCount: uint32(len(data.Indices)), Material: materialName}}
	return data
}

// GenerateCube builds an axis-aligned box centred on the origin with one
// texture tile per face.
func GenerateCube(width, height, depth, tileX, tileY float32, name, materialName string) *resources.MeshData {
	if width == 0 {
		core.LogWarn("Width must be nonzero. Defaulting to one.")
		width = 1.0
	}
	if height == 0 {
		core.LogWarn("Height must be nonzero. Defaulting to one.")
		height = 1.0
	}
	if depth == 0 {
		core.LogWarn("Depth must be nonzero. Defaulting to one.")
		depth = 1
	}
	if tileX == 0 {
		core.LogWarn("tileX must be nonzero. Defaulting to one.")
		tileX = 1.0
	}
	if tileY == 0 {
		core.LogWarn("tileY must be nonzero. Defaulting to one.")
		tileY = 1.0
	}

	minX, maxX := -width*0.5, width*0.5
	minY, maxY := -height*0.5, height*0.5
	minZ, maxZ := -depth*0.5, depth*0.5

	// Corners per face in the order (min uv, max uv, min u max v, max u min v).
	faces := [6]struct {
		normal  math.Vec3
		corners [4]math.Vec3
	}{
		// Front
		{math.NewVec3(0, 0, 1), [4]math.Vec3{
			math.NewVec3(minX, minY, maxZ), math.NewVec3(maxX, maxY, maxZ), math.NewVec3(minX, maxY, maxZ), math.NewVec3(maxX, minY, maxZ)}},
		// Back
		{math.NewVec3(0, 0, -1), [4]math.Vec3{
			math.NewVec3(maxX, minY, minZ), math.NewVec3(minX, maxY, minZ), math.NewVec3(maxX, maxY, minZ), math.NewVec3(minX, minY, minZ)}},
		// Left
		{math.NewVec3(-1, 0, 0), [4]math.Vec3{
			math.NewVec3(minX, minY, minZ), math.NewVec3(minX, maxY, maxZ), math.NewVec3(minX, maxY, minZ), math.NewVec3(minX, minY, maxZ)}},
		// Right
		{math.NewVec3(1, 0, 0), [4]math.Vec3{
			math.NewVec3(maxX, minY, maxZ), math.NewVec3(maxX, maxY, minZ), math.NewVec3(maxX, maxY, maxZ), math.NewVec3(maxX, minY, minZ)}},
		// Bottom
		{math.NewVec3(0, -1, 0), [4]math.Vec3{
			math.NewVec3(maxX, minY, maxZ), math.NewVec3(minX, minY, minZ), math.NewVec3(maxX, minY, minZ), math.NewVec3(minX, minY, maxZ)}},
		// Top
		{math.NewVec3(0, 1, 0), [4]math.Vec3{
			math.NewVec3(minX, maxY, maxZ), math.NewVec3(maxX, maxY, minZ), math.NewVec3(minX, maxY, minZ), math.NewVec3(maxX, maxY, maxZ)}},
	}
	uvs := [4]math.Vec2{
		math.NewVec2(0, 0), math.NewVec2(tileX, tileY), math.NewVec2(0, tileY), math.NewVec2(tileX, 0),
	}

	data := &resources.MeshData{
		Name:     name,
		Vertices: make([]resources.MeshVertex, 4*6),
		Indices:  make([]uint32, 6*6),
	}
	for f, face := range faces {
		// u grows from corner 0 towards corner 3
		tangent := face.corners[3].Sub(face.corners[0]).Normalize()
		bitangent := face.normal.Cross(tangent)
		for i, c := range face.corners {
			data.Vertices[f*4+i] = resources.MeshVertex{
				Position:  c,
				Normal:    face.normal,
				Tangent:   tangent,
				Bitangent: bitangent,
				TexCoord:  uvs[i],
			}
		}
		writeQuadIndices(data.Indices[f*6:], uint32(f*4))
	}

	data.Materials = []resources.MeshMaterial{{FirstIndex: 0, IndexCount: uint32(len(data.Indices)), Material: materialName}}
	return data
}

// writeQuadIndices emits the two counter-clockwise triangles of a quad laid
// out as (min, max, min-max, max-min).
func writeQuadIndices(dst []uint32, vOffset uint32) {
	dst[0] = vOffset + 0
	dst[1] = vOffset + 1
	dst[2] = vOffset + 2
	dst[3] = vOffset + 0
	dst[4] = vOffset + 3
	dst[5] = vOffset + 1
}
