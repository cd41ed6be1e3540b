package resources

import (
	"fmt"

	"github.com/spaghettifunk/marionette/engine/math"
)

// MeshVertex is the static vertex layout, 56 bytes with no padding.
type MeshVertex struct {
	Position  math.Vec3
	Normal    math.Vec3
	Tangent   math.Vec3
	Bitangent math.Vec3
	TexCoord  math.Vec2
}

// SkinningVertex is the per-vertex bone influence, 20 bytes.
type SkinningVertex struct {
	Weights [4]float32
	Indices [4]uint8
}

// MeshMaterial is a contiguous index range drawn with one material.
type MeshMaterial struct {
	FirstIndex uint32
	IndexCount uint32
	Material   string
}

// MeshData is immutable geometry shared by every instance of a mesh.
type MeshData struct {
	Name      string
	Vertices  []MeshVertex
	Skin      []SkinningVertex
	Indices   []uint32
	Materials []MeshMaterial
}

func (md *MeshData) IsSkinned() bool {
	return len(md.Skin) > 0
}

// Validate checks index ranges and, for skinned meshes, that every vertex
// has influence data addressing an existing bone.
func (md *MeshData) Validate(boneCount int) error {
	if len(md.Vertices) == 0 || len(md.Indices) == 0 {
		return fmt.Errorf("mesh %q has no geometry", md.Name)
	}
	for i, idx := range md.Indices {
		if int(idx) >= len(md.Vertices) {
			return fmt.Errorf("mesh %q index %d references vertex %d of %d", md.Name, i, idx, len(md.Vertices))
		}
	}
	for _, m := range md.Materials {
		if uint64(m.FirstIndex)+uint64(m.IndexCount) > uint64(len(md.Indices)) {
			return fmt.Errorf("mesh %q material %q range [%d,+%d) exceeds %d indices",
				md.Name, m.Material, m.FirstIndex, m.IndexCount, len(md.Indices))
		}
	}
	if !md.IsSkinned() {
		return nil
	}
	if len(md.Skin) != len(md.Vertices) {
		return fmt.Errorf("mesh %q has %d skin entries for %d vertices", md.Name, len(md.Skin), len(md.Vertices))
	}
	for v, s := range md.Skin {
		for k, b := range s.Indices {
			if s.Weights[k] != 0 && int(b) >= boneCount {
				return fmt.Errorf("mesh %q vertex %d references bone %d of %d", md.Name, v, b, boneCount)
			}
		}
	}
	return nil
}

// StaticVertexFormat describes MeshVertex in buffer 0.
func StaticVertexFormat() *VertexFormat {
	return NewVertexFormat().
		AddAttribute(0, VertexFormatFloat3).
		AddAttribute(0, VertexFormatFloat3).
		AddAttribute(0, VertexFormatFloat3).
		AddAttribute(0, VertexFormatFloat3).
		AddAttribute(0, VertexFormatFloat2)
}

// SkinnedVertexFormat adds SkinningVertex in buffer 1.
func SkinnedVertexFormat() *VertexFormat {
	return StaticVertexFormat().
		AddAttribute(1, VertexFormatFloat4).
		AddAttribute(1, VertexFormatUByte4)
}
