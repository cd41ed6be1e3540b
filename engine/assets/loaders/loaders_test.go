package loaders

import (
	"encoding/binary"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spaghettifunk/marionette/engine/animation"
	"github.com/spaghettifunk/marionette/engine/core"
	"github.com/spaghettifunk/marionette/engine/math"
	"github.com/spaghettifunk/marionette/engine/resources"
)

const skeletonTOML = `
[[bones]]
name = "root"
parent = -1

[[bones]]
name = "arm"
parent = 0
bind = [1,0,0,0, 0,1,0,0, 0,0,1,0, 0,-1,0,1]
`

const clipTOML = `
name = "wave"
duration = 10.0
ticks_per_second = 10.0

[[tracks]]
bone = "arm"
positions = [{time = 0.0, value = [0, 0, 0]}, {time = 5.0, value = [1, 0, 0]}]
rotations = [{time = 0.0, value = [0, 0, 0, 2]}]
`

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func loadSkeleton(t *testing.T) *animation.Skeleton {
	t.Helper()
	res, err := (&SkeletonLoader{}).Load(writeFile(t, "arm.skeleton.toml", skeletonTOML), nil)
	require.NoError(t, err)
	return res.Data.(*animation.Skeleton)
}

func TestSkeletonLoader(t *testing.T) {
	skel := loadSkeleton(t)
	require.Equal(t, 2, skel.BoneCount())
	assert.Equal(t, animation.NoParent, skel.Bones[0].Parent)
	assert.True(t, skel.Bones[0].BindMatrix.Compare(math.NewMat4Identity(), 0))
	assert.True(t, skel.Bones[1].BindMatrix.Translation().Compare(math.NewVec3(0, -1, 0), 0))
	assert.True(t, skel.GlobalInverse.Compare(math.NewMat4Identity(), 0))
}

func TestSkeletonLoaderRejects(t *testing.T) {
	cases := map[string]string{
		"bad bind":       "[[bones]]\nname = \"a\"\nparent = -1\nbind = [1, 2]\n",
		"forward parent": "[[bones]]\nname = \"a\"\nparent = 1\n[[bones]]\nname = \"b\"\nparent = -1\n",
		"unknown key":    "[[bones]]\nname = \"a\"\nparent = -1\nparnet = 0\n",
		"empty":          "",
	}
	for name, content := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := (&SkeletonLoader{}).Load(writeFile(t, "bad.skeleton.toml", content), nil)
			assert.ErrorIs(t, err, core.ErrInvalidAsset)
		})
	}
}

func TestClipLoader(t *testing.T) {
	skel := loadSkeleton(t)
	res, err := (&ClipLoader{}).Load(writeFile(t, "wave.clip.toml", clipTOML), skel)
	require.NoError(t, err)

	clip := res.Data.(*animation.Clip)
	assert.Equal(t, "wave", clip.Name)
	assert.Equal(t, resources.ResourceTypeClip, res.Type)
	require.Len(t, clip.Tracks, 2)
	assert.True(t, clip.Tracks[0].IsEmpty())
	require.Len(t, clip.Tracks[1].Positions, 2)
	assert.InDelta(t, 1.0, clip.Tracks[1].Rotations[0].Value.Normal(), 1e-6, "rotations are normalized")

	// The arm slides half way at 0.25s, then the bind offset applies.
	pose := animation.NewEvaluator(skel).Evaluate(clip, 0.25)
	assert.True(t, pose[1].Translation().Compare(math.NewVec3(0.5, -1, 0), 1e-4), "got %v", pose[1].Translation())
}

func TestClipLoaderErrorsNameFileClipAndBone(t *testing.T) {
	skel := loadSkeleton(t)
	content := "name = \"wave\"\nduration = 1.0\n[[tracks]]\nbone = \"leg\"\n"
	path := writeFile(t, "wave.clip.toml", content)

	_, err := (&ClipLoader{}).Load(path, skel)
	require.ErrorIs(t, err, core.ErrInvalidAsset)
	assert.Contains(t, err.Error(), path)
	assert.Contains(t, err.Error(), `"wave"`)
	assert.Contains(t, err.Error(), `"leg"`)

	content = "name = \"wave\"\nduration = 10.0\n[[tracks]]\nbone = \"arm\"\npositions = [{time = 5.0, value = [0,0,0]}, {time = 1.0, value = [0,0,0]}]\n"
	_, err = (&ClipLoader{}).Load(writeFile(t, "wave.clip.toml", content), skel)
	require.ErrorIs(t, err, core.ErrInvalidAsset)
	assert.Contains(t, err.Error(), `"arm"`)

	_, err = (&ClipLoader{}).Load(path, nil)
	assert.Error(t, err, "a skeleton is required")
}

const meshTOML = `
name = "strip"
indices = [0, 1, 2]

[[vertices]]
position = [0, 0, 0]
uv = [0, 0]
[[vertices]]
position = [1, 0, 0]
normal = [0, 0, 1]
tangent = [1, 0, 0]
uv = [1, 0]
[[vertices]]
position = [0, 1, 0]

[[skin]]
weights = [1.0]
joints = [0]
[[skin]]
weights = [0.5, 0.5]
joints = [0, 1]
[[skin]]
weights = [1.0]
joints = [1]

[[materials]]
first_index = 0
index_count = 3
material = "skin"
`

func TestMeshLoader(t *testing.T) {
	res, err := (&MeshLoader{}).Load(writeFile(t, "strip.mesh.toml", meshTOML), nil)
	require.NoError(t, err)

	md := res.Data.(*resources.MeshData)
	assert.Equal(t, "strip", md.Name)
	require.Len(t, md.Vertices, 3)
	assert.True(t, md.IsSkinned())
	assert.Equal(t, [4]uint8{0, 1, 0, 0}, md.Skin[1].Indices)
	assert.Equal(t, [4]float32{0.5, 0.5, 0, 0}, md.Skin[1].Weights)
	assert.True(t, md.Vertices[1].Bitangent.Compare(math.NewVec3(0, 1, 0), 1e-6))
	assert.Equal(t, math.NewVec2(1, 0), md.Vertices[1].TexCoord)
	require.Len(t, md.Materials, 1)
	assert.Equal(t, "skin", md.Materials[0].Material)
}

func TestMeshLoaderRejectsBadIndex(t *testing.T) {
	content := "indices = [0, 3]\n[[vertices]]\nposition = [0,0,0]\n"
	_, err := (&MeshLoader{}).Load(writeFile(t, "bad.mesh.toml", content), nil)
	assert.ErrorIs(t, err, core.ErrInvalidAsset)
}

func TestMaterialLoader(t *testing.T) {
	content := "name = \"skin\"\nshader = \"skinned\"\ndiffuse_colour = [1, 0.5, 0.5, 1]\ntextures = [\"checker\"]\nskinned = true\n"
	res, err := (&MaterialLoader{}).Load(writeFile(t, "skin.material.toml", content), nil)
	require.NoError(t, err)

	cfg := res.Data.(*resources.MaterialConfig)
	assert.Equal(t, "skinned", cfg.ShaderName)
	assert.Equal(t, []string{"checker"}, cfg.Textures)
	assert.True(t, cfg.Skinned)
	assert.Equal(t, float32(0.5), cfg.DiffuseColour.Y)

	_, err = (&MaterialLoader{}).Load(writeFile(t, "x.material.toml", "name = \"x\"\n"), nil)
	assert.ErrorIs(t, err, core.ErrInvalidAsset)
}

func TestTextureLoader(t *testing.T) {
	img := image.NewNRGBA(image.Rect(0, 0, 2, 2))
	img.Set(0, 0, color.NRGBA{R: 255, A: 255})
	img.Set(1, 0, color.NRGBA{G: 255, A: 255})
	img.Set(0, 1, color.NRGBA{B: 255, A: 255})
	img.Set(1, 1, color.NRGBA{R: 255, G: 255, B: 255, A: 128})

	path := filepath.Join(t.TempDir(), "tiles.png")
	f, err := os.Create(path)
	require.NoError(t, err)
	require.NoError(t, png.Encode(f, img))
	require.NoError(t, f.Close())

	res, err := (&TextureLoader{}).Load(path, &resources.ImageResourceParams{FlipY: true})
	require.NoError(t, err)
	data := res.Data.(*resources.ImageResourceData)
	assert.Equal(t, "tiles", res.Name)
	assert.Equal(t, uint32(2), data.Width)
	assert.Len(t, data.Pixels, 16)
	assert.True(t, data.HasTransparency)
	// Flipped: the blue pixel now comes first.
	assert.Equal(t, []uint8{0, 0, 255, 255}, data.Pixels[0:4])

	_, err = (&TextureLoader{}).Load(writeFile(t, "junk.png", "not an image"), nil)
	assert.ErrorIs(t, err, core.ErrInvalidAsset)
}

func TestBinaryLoader(t *testing.T) {
	words := []uint32{spirvMagic, 0x00010000, 0, 1, 0}
	buf := make([]byte, len(words)*4)
	for i, w := range words {
		binary.LittleEndian.PutUint32(buf[i*4:], w)
	}
	res, err := (&BinaryLoader{}).Load(writeFile(t, "skinned.vert.spv", string(buf)), nil)
	require.NoError(t, err)
	sd := res.Data.(*resources.ShaderResourceData)
	assert.Equal(t, "skinned.vert", sd.Name)
	assert.Equal(t, words, sd.SPIRV)

	_, err = (&BinaryLoader{}).Load(writeFile(t, "bad.frag.spv", "abcd"), nil)
	assert.ErrorIs(t, err, core.ErrInvalidAsset)
	_, err = (&BinaryLoader{}).Load(writeFile(t, "odd.frag.spv", "abc"), nil)
	assert.ErrorIs(t, err, core.ErrInvalidAsset)
}

func TestShaderLoader(t *testing.T) {
	res, err := (&ShaderLoader{}).Load(writeFile(t, "skinned.wgsl", "fn vs_main() {}\nfn fs_main() {}\n"), nil)
	require.NoError(t, err)
	assert.Equal(t, "skinned", res.Data.(*resources.ShaderResourceData).Name)

	_, err = (&ShaderLoader{}).Load(writeFile(t, "half.wgsl", "fn vs_main() {}\n"), nil)
	assert.ErrorIs(t, err, core.ErrInvalidAsset)
}

func TestAssetName(t *testing.T) {
	assert.Equal(t, "walk", AssetName("assets/clips/walk.clip.toml"))
	assert.Equal(t, "hero", AssetName("hero.skeleton.toml"))
	assert.Equal(t, "skinned.frag", AssetName("shaders/skinned.frag.spv"))
	assert.Equal(t, "Checker", AssetName("Checker.PNG"))
	assert.Equal(t, "notes", AssetName("notes.txt"))
}
