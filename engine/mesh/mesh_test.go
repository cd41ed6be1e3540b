package mesh

import (
	"encoding/binary"
	gomath "math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spaghettifunk/marionette/engine/animation"
	"github.com/spaghettifunk/marionette/engine/config"
	"github.com/spaghettifunk/marionette/engine/core"
	"github.com/spaghettifunk/marionette/engine/math"
	"github.com/spaghettifunk/marionette/engine/renderer"
	"github.com/spaghettifunk/marionette/engine/renderer/components"
	"github.com/spaghettifunk/marionette/engine/renderer/headless"
	"github.com/spaghettifunk/marionette/engine/renderer/metadata"
	"github.com/spaghettifunk/marionette/engine/resources"
)

const tolerance = 1e-4

type fixture struct {
	renderer *renderer.Renderer
	device   *headless.Device
	camera   *components.Camera
	material *Material
	static   *StaticMesh
	skeleton *animation.Skeleton
	clip     *animation.Clip
}

func quad() *resources.MeshData {
	v := func(x, y float32) resources.MeshVertex {
		return resources.MeshVertex{Position: math.NewVec3(x, y, 0), Normal: math.NewVec3(0, 0, 1)}
	}
	return &resources.MeshData{
		Name:      "quad",
		Vertices:  []resources.MeshVertex{v(0, 0), v(1, 0), v(1, 1), v(0, 1)},
		Indices:   []uint32{0, 1, 2, 2, 3, 0},
		Materials: []resources.MeshMaterial{{FirstIndex: 0, IndexCount: 3, Material: "skin"}, {FirstIndex: 3, IndexCount: 3, Material: "skin"}},
	}
}

func quadSkin() []resources.SkinningVertex {
	return []resources.SkinningVertex{
		{Weights: [4]float32{1}, Indices: [4]uint8{0}},
		{Weights: [4]float32{1}, Indices: [4]uint8{0}},
		{Weights: [4]float32{1}, Indices: [4]uint8{1}},
		{Weights: [4]float32{0.5, 0.5}, Indices: [4]uint8{0, 1}},
	}
}

func newFixture(t *testing.T, latency int) *fixture {
	t.Helper()
	cfg := config.Default().Renderer
	cfg.FramesInFlight = 3
	cfg.MaxRegions = 64
	cfg.FenceTimeout = config.Duration{Duration: time.Second}

	dev := headless.New(latency)
	r := renderer.New(dev, cfg)
	require.NoError(t, r.Initialize("mesh-test", 320, 240))
	t.Cleanup(func() { _ = r.Shutdown() })

	tex, err := UploadTexture(r, "white", &resources.ImageResourceData{ChannelCount: 4, Width: 1, Height: 1, Pixels: []uint8{255, 255, 255, 255}})
	require.NoError(t, err)
	mat, err := NewMaterial(r, resources.MaterialConfig{Name: "skin", ShaderName: "skinned", Textures: []string{"white"}, Skinned: true},
		ShaderStages{Vertex: &resources.ShaderResourceData{Name: "skinned", Source: "// wgsl"}}, []*metadata.Texture{tex})
	require.NoError(t, err)

	static, err := NewStaticMesh(r, quad(), map[string]*Material{"skin": mat})
	require.NoError(t, err)

	skel, err := animation.NewSkeleton([]animation.Bone{
		{Name: "root", Parent: animation.NoParent, BindMatrix: math.NewMat4Identity()},
		{Name: "child", Parent: 0, BindMatrix: math.NewMat4Translation(math.NewVec3(0, 1, 0))},
	}, math.NewMat4Identity())
	require.NoError(t, err)

	clip := &animation.Clip{
		Name:           "slide",
		Duration:       10,
		TicksPerSecond: 10,
		Tracks: []animation.BoneTrack{{Positions: []animation.PositionKey{
			{Time: 0, Value: math.NewVec3(0, 0, 0)},
			{Time: 5, Value: math.NewVec3(1, 0, 0)},
		}}},
	}

	cam := components.NewCamera()
	cam.SetSize(320, 240)
	cam.LookAt(math.NewVec3(0, 0, 5), math.NewVec3Zero())

	return &fixture{renderer: r, device: dev, camera: cam, material: mat, static: static, skeleton: skel, clip: clip}
}

func (f *fixture) beginFrame(t *testing.T) {
	t.Helper()
	ok, err := f.renderer.BeginFrame(1.0 / 60)
	require.NoError(t, err)
	require.True(t, ok)
}

func mat4At(t *testing.T, dev *headless.Device, c headless.Command, index int) math.Mat4 {
	t.Helper()
	mem := dev.Contents(c.Buffer)
	start := c.Offset + uint64(index*64)
	require.LessOrEqual(t, start+64, uint64(len(mem)))
	var m math.Mat4
	for i := range m.Data {
		m.Data[i] = gomath.Float32frombits(binary.LittleEndian.Uint32(mem[start+uint64(i*4):]))
	}
	return m
}

func TestAnimatedMeshRenderClaimsOneRegion(t *testing.T) {
	f := newFixture(t, 2)
	am, err := NewAnimatedMesh(f.renderer, f.static, f.skeleton, quadSkin())
	require.NoError(t, err)
	am.SetAnimation(f.clip)
	am.Transform.SetPosition(math.NewVec3(0, 0, -3))
	am.AddTime(0.25)

	f.beginFrame(t)
	require.NoError(t, f.renderer.BindCamera(f.camera))
	before := f.renderer.Transient().Stats().Claimed
	require.NoError(t, am.Render(f.camera))
	assert.Equal(t, before+1, f.renderer.Transient().Stats().Claimed)
	require.NoError(t, f.renderer.EndFrame(1.0/60))

	frame := f.device.Frames()[0]
	var ops []headless.Op
	var instance headless.Command
	for _, c := range frame {
		ops = append(ops, c.Op)
		if c.Op == headless.OpBindBufferRange && c.Slot == uint32(metadata.BindingSlotInstance) {
			instance = c
		}
	}
	assert.Equal(t, []headless.Op{
		headless.OpBindBufferRange, // camera
		headless.OpBindBufferRange, // camera, cached
		headless.OpBindBufferRange, // bones
		headless.OpBindVertexBuffer,
		headless.OpBindVertexBuffer,
		headless.OpBindIndexBuffer,
		headless.OpBindPipeline, headless.OpBindTextures, headless.OpDrawIndexed,
		headless.OpBindPipeline, headless.OpBindTextures, headless.OpDrawIndexed,
	}, ops)
	assert.Equal(t, uint64(2*64), instance.Size)

	root := mat4At(t, f.device, instance, 0)
	child := mat4At(t, f.device, instance, 1)
	assert.True(t, root.Translation().Compare(math.NewVec3(0.5, 0, -3), tolerance), "root %v", root.Translation())
	assert.True(t, child.Translation().Compare(math.NewVec3(0.5, 1, -3), tolerance), "child %v", child.Translation())
}

func TestCameraRegionIsPerFrameNotPerDraw(t *testing.T) {
	f := newFixture(t, 2)
	first, err := NewAnimatedMesh(f.renderer, f.static, f.skeleton, quadSkin())
	require.NoError(t, err)
	second, err := NewAnimatedMesh(f.renderer, f.static, f.skeleton, quadSkin())
	require.NoError(t, err)

	for frame := 0; frame < 2; frame++ {
		f.beginFrame(t)
		stats := f.renderer.Transient().Stats
		require.Equal(t, 0, stats().Claimed)

		require.NoError(t, first.Render(f.camera))
		assert.Equal(t, 2, stats().Claimed, "camera and bones")
		require.NoError(t, second.Render(f.camera))
		assert.Equal(t, 3, stats().Claimed, "bones only")

		require.NoError(t, f.renderer.EndFrame(1.0/60))
	}
}

func TestAnimatedMeshInstancesShareGeometry(t *testing.T) {
	f := newFixture(t, 2)
	a, err := NewAnimatedMesh(f.renderer, f.static, f.skeleton, quadSkin())
	require.NoError(t, err)
	b, err := NewAnimatedMesh(f.renderer, f.static, f.skeleton, quadSkin())
	require.NoError(t, err)
	a.SetAnimation(f.clip)
	b.SetAnimation(f.clip)
	b.AddTime(0.5)

	assert.NotEqual(t, a.ID, b.ID)
	assert.Same(t, a.Static(), b.Static())
	assert.NotEqual(t, a.Elapsed(), b.Elapsed())

	// Many frames with a GPU lagging behind: headless fails any write into
	// a range a pending frame still reads.
	for i := 0; i < 50; i++ {
		f.beginFrame(t)
		a.AddTime(1.0 / 60)
		b.AddTime(1.0 / 30)
		require.NoError(t, a.Render(f.camera))
		require.NoError(t, b.Render(f.camera))
		require.NoError(t, f.renderer.EndFrame(1.0/60))
	}
	assert.Len(t, f.device.Frames(), 50)
}

func TestSetAnimation(t *testing.T) {
	f := newFixture(t, 1)
	am, err := NewAnimatedMesh(f.renderer, f.static, f.skeleton, quadSkin())
	require.NoError(t, err)

	assert.Zero(t, am.AnimationDuration())
	am.SetAnimation(f.clip)
	assert.InDelta(t, 1.0, am.AnimationDuration(), tolerance)

	am.AddTime(0.4)
	am.SetAnimation(f.clip)
	assert.InDelta(t, 0.4, am.Elapsed(), tolerance, "same clip keeps position")

	other := *f.clip
	other.Name = "other"
	am.SetAnimation(&other)
	assert.Zero(t, am.Elapsed())

	am.AddTime(2.3)
	assert.InDelta(t, 0.3, am.Elapsed(), tolerance, "elapsed wraps to one loop")
}

func TestBindPoseWithoutClip(t *testing.T) {
	f := newFixture(t, 1)
	am, err := NewAnimatedMesh(f.renderer, f.static, f.skeleton, quadSkin())
	require.NoError(t, err)
	am.AddTime(3)

	pose := am.Pose()
	require.Len(t, pose, 2)
	assert.True(t, pose[0].Compare(math.NewMat4Identity(), tolerance))
	assert.True(t, pose[1].Compare(f.skeleton.Bones[1].BindMatrix, tolerance))
}

func TestReloadAnimationKeepsPosition(t *testing.T) {
	f := newFixture(t, 1)
	am, err := NewAnimatedMesh(f.renderer, f.static, f.skeleton, quadSkin())
	require.NoError(t, err)
	am.SetAnimation(f.clip)
	am.AddTime(0.3)

	reloaded := *f.clip
	assert.True(t, am.ReloadAnimation(&reloaded))
	assert.Same(t, &reloaded, am.Animation())
	assert.InDelta(t, 0.3, am.Elapsed(), tolerance)

	unrelated := *f.clip
	unrelated.Name = "run"
	assert.False(t, am.ReloadAnimation(&unrelated))
}

func TestNewAnimatedMeshRejectsBadSkin(t *testing.T) {
	f := newFixture(t, 1)

	_, err := NewAnimatedMesh(f.renderer, f.static, f.skeleton, nil)
	assert.ErrorIs(t, err, core.ErrInvalidAsset)

	short := quadSkin()[:3]
	_, err = NewAnimatedMesh(f.renderer, f.static, f.skeleton, short)
	assert.ErrorIs(t, err, core.ErrInvalidAsset)

	bad := quadSkin()
	bad[2].Indices[0] = 7
	_, err = NewAnimatedMesh(f.renderer, f.static, f.skeleton, bad)
	assert.ErrorIs(t, err, core.ErrInvalidAsset)
}

func TestStaticMeshRender(t *testing.T) {
	f := newFixture(t, 1)
	f.static.Transform.SetPosition(math.NewVec3(2, 0, 0))

	f.beginFrame(t)
	require.NoError(t, f.static.Render(f.camera))
	require.NoError(t, f.renderer.EndFrame(0))

	var draws int
	for _, c := range f.device.Frames()[0] {
		if c.Op == headless.OpDrawIndexed {
			draws++
			assert.Equal(t, uint32(3), c.IndexCount)
		}
		if c.Op == headless.OpBindBufferRange && c.Slot == uint32(metadata.BindingSlotInstance) {
			m := mat4At(t, f.device, c, 0)
			assert.True(t, m.Translation().Compare(math.NewVec3(2, 0, 0), tolerance))
		}
	}
	assert.Equal(t, 2, draws)
}

func TestNewStaticMeshRejectsUnknownMaterial(t *testing.T) {
	f := newFixture(t, 1)
	_, err := NewStaticMesh(f.renderer, quad(), map[string]*Material{})
	assert.ErrorIs(t, err, core.ErrInvalidAsset)

	broken := quad()
	broken.Indices = append(broken.Indices, 9)
	_, err = NewStaticMesh(f.renderer, broken, map[string]*Material{"skin": f.material})
	assert.ErrorIs(t, err, core.ErrInvalidAsset)
}

func TestMaterialTextureCountMustMatch(t *testing.T) {
	f := newFixture(t, 1)
	_, err := NewMaterial(f.renderer, resources.MaterialConfig{Name: "m", Textures: []string{"a", "b"}},
		ShaderStages{Vertex: &resources.ShaderResourceData{Name: "s"}}, nil)
	assert.ErrorIs(t, err, core.ErrInvalidAsset)
}
