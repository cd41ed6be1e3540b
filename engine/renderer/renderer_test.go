package renderer

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spaghettifunk/marionette/engine/config"
	"github.com/spaghettifunk/marionette/engine/math"
	"github.com/spaghettifunk/marionette/engine/renderer/components"
	"github.com/spaghettifunk/marionette/engine/renderer/headless"
	"github.com/spaghettifunk/marionette/engine/renderer/metadata"
	"github.com/spaghettifunk/marionette/engine/resources"
)

func newHeadlessRenderer(t *testing.T, latency int, frames uint32) (*Renderer, *headless.Device) {
	t.Helper()
	cfg := config.Default().Renderer
	cfg.Backend = config.BackendHeadless
	cfg.FramesInFlight = frames
	cfg.MaxRegions = 64
	cfg.FenceTimeout = config.Duration{Duration: time.Second}

	dev := headless.New(latency)
	r := New(dev, cfg)
	require.NoError(t, r.Initialize("renderer-test", 640, 480))
	t.Cleanup(func() { _ = r.Shutdown() })
	return r, dev
}

func testPipeline(t *testing.T, r *Renderer) *metadata.Pipeline {
	t.Helper()
	p, err := r.Device().CreatePipeline(&metadata.PipelineConfig{
		Name:         "skinned",
		VertexFormat: resources.SkinnedVertexFormat(),
		DepthTest:    true,
	})
	require.NoError(t, err)
	return p
}

func TestRendererFrameLoop(t *testing.T) {
	r, dev := newHeadlessRenderer(t, 2, 3)
	p := testPipeline(t, r)

	for i := 0; i < 20; i++ {
		ok, err := r.BeginFrame(1.0 / 60)
		require.NoError(t, err)
		require.True(t, ok)

		require.NoError(t, r.SetCamera(math.NewMat4Identity(), math.NewMat4Identity()))
		require.NoError(t, r.Device().BindPipeline(p))
		for d := 0; d < 3; d++ {
			bones := []math.Mat4{
				math.NewMat4Translation(math.NewVec3(float32(i), float32(d), 0)),
				math.NewMat4Identity(),
			}
			// headless rejects any write into a range a pending frame reads.
			_, err := r.UploadMatrices(bones)
			require.NoError(t, err)
			require.NoError(t, r.Device().DrawIndexed(6, 0, 1))
		}
		require.NoError(t, r.EndFrame(1.0/60))
	}

	assert.Equal(t, uint64(20), r.FrameNumber())
	assert.Len(t, dev.Frames(), 20)
	assert.LessOrEqual(t, r.Transient().Stats().InFlightFrames, 3)
	assert.LessOrEqual(t, r.Transient().Stats().Regions, 64)
}

func TestUploadMatricesWritesAndBinds(t *testing.T) {
	r, dev := newHeadlessRenderer(t, 1, 2)

	ok, err := r.BeginFrame(0)
	require.NoError(t, err)
	require.True(t, ok)

	m := math.NewMat4Translation(math.NewVec3(1, 2, 3))
	region, err := r.UploadMatrices([]math.Mat4{m})
	require.NoError(t, err)
	assert.Equal(t, uint64(256), region.Size)

	got := dev.Contents(region.Buffer)[region.Offset : region.Offset+64]
	assert.Equal(t, resources.SliceBytes([]math.Mat4{m}), got)

	require.NoError(t, r.EndFrame(0))
	frame := dev.Frames()[0]
	require.Len(t, frame, 1)
	assert.Equal(t, headless.OpBindBufferRange, frame[0].Op)
	assert.Equal(t, uint32(metadata.BindingSlotInstance), frame[0].Slot)
	assert.Equal(t, uint64(64), frame[0].Size)

	_, err = r.UploadMatrices(nil)
	assert.Error(t, err)
}

func TestRendererFrameBracketing(t *testing.T) {
	r, _ := newHeadlessRenderer(t, 1, 2)

	assert.Error(t, r.EndFrame(0))
	ok, err := r.BeginFrame(0)
	require.NoError(t, err)
	require.True(t, ok)
	_, err = r.BeginFrame(0)
	assert.Error(t, err)
	require.NoError(t, r.EndFrame(0))
}

func TestRendererSkipsMinimizedFrames(t *testing.T) {
	r, dev := newHeadlessRenderer(t, 1, 2)
	require.NoError(t, r.OnResize(0, 0))

	ok, err := r.BeginFrame(0)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Error(t, r.EndFrame(0), "a skipped frame has nothing to end")
	assert.Empty(t, dev.Frames())
}

func TestRendererDeviceLost(t *testing.T) {
	r, dev := newHeadlessRenderer(t, 5, 2)

	ok, err := r.BeginFrame(0)
	require.NoError(t, err)
	require.True(t, ok)
	_, err = r.UploadMatrices([]math.Mat4{math.NewMat4Identity()})
	require.NoError(t, err)
	require.NoError(t, r.EndFrame(0))

	dev.Lose()
	_, err = r.BeginFrame(0)
	assert.Error(t, err)
}

func TestBindCameraUploadsOncePerFrame(t *testing.T) {
	r, dev := newHeadlessRenderer(t, 1, 2)
	cam := components.NewCamera()
	cam.SetSize(640, 480)
	cam.LookAt(math.NewVec3(0, 0, 5), math.NewVec3Zero())

	for frame := 0; frame < 3; frame++ {
		ok, err := r.BeginFrame(0)
		require.NoError(t, err)
		require.True(t, ok)

		require.NoError(t, r.BindCamera(cam))
		require.NoError(t, r.BindCamera(cam))
		assert.Equal(t, 1, r.Transient().Stats().Claimed)
		require.NoError(t, r.EndFrame(0))
	}

	frame := dev.Frames()[2]
	require.Len(t, frame, 2)
	assert.Equal(t, frame[0].Offset, frame[1].Offset)
	assert.Equal(t, uint64(128), frame[0].Size)
}
