package resources

import (
	"testing"
	"unsafe"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spaghettifunk/marionette/engine/math"
)

func TestVertexFormatMatchesGoLayout(t *testing.T) {
	vf := SkinnedVertexFormat()
	require.Equal(t, 2, vf.BufferCount())

	assert.Equal(t, uint32(unsafe.Sizeof(MeshVertex{})), vf.Stride(0))
	assert.Equal(t, uint32(unsafe.Sizeof(SkinningVertex{})), vf.Stride(1))
	assert.Equal(t, uint32(0), vf.Stride(7))

	skin := vf.BufferAttributes(1)
	require.Len(t, skin, 2)
	assert.Equal(t, uint32(5), skin[0].Location)
	assert.Equal(t, uint32(0), skin[0].Offset)
	assert.Equal(t, uint32(unsafe.Offsetof(SkinningVertex{}.Indices)), skin[1].Offset)

	static := vf.BufferAttributes(0)
	require.Len(t, static, 5)
	assert.Equal(t, uint32(unsafe.Offsetof(MeshVertex{}.TexCoord)), static[4].Offset)
}

func TestSliceBytes(t *testing.T) {
	m := []math.Mat4{math.NewMat4Identity(), math.NewMat4Identity()}
	b := SliceBytes(m)
	assert.Len(t, b, 128)
	assert.Nil(t, SliceBytes([]uint32{}))
}

func quad() *MeshData {
	return &MeshData{
		Name:      "quad",
		Vertices:  make([]MeshVertex, 4),
		Indices:   []uint32{0, 1, 2, 2, 3, 0},
		Materials: []MeshMaterial{{FirstIndex: 0, IndexCount: 6, Material: "skin"}},
	}
}

func TestMeshDataValidate(t *testing.T) {
	md := quad()
	require.NoError(t, md.Validate(0))
	assert.False(t, md.IsSkinned())

	md.Skin = make([]SkinningVertex, 4)
	md.Skin[2] = SkinningVertex{Weights: [4]float32{1}, Indices: [4]uint8{3}}
	assert.Error(t, md.Validate(2), "bone 3 does not exist")
	assert.NoError(t, md.Validate(4))

	md.Skin = md.Skin[:3]
	assert.Error(t, md.Validate(4))

	bad := quad()
	bad.Indices[0] = 9
	assert.Error(t, bad.Validate(0))

	bad = quad()
	bad.Materials[0].IndexCount = 7
	assert.Error(t, bad.Validate(0))
}
