package webgpu

import (
	"testing"
	"time"

	"github.com/cogentcore/webgpu/wgpu"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spaghettifunk/marionette/engine/core"
	"github.com/spaghettifunk/marionette/engine/renderer"
	"github.com/spaghettifunk/marionette/engine/renderer/metadata"
	"github.com/spaghettifunk/marionette/engine/resources"
)

var _ renderer.RenderDevice = (*Backend)(nil)

func TestSignalCompletesWhenQueueDrains(t *testing.T) {
	idle := false
	tr := &tracker{poll: func() bool { return idle }}

	first := &frameSignal{tracker: tr, serial: tr.submit()}
	second := &frameSignal{tracker: tr, serial: tr.submit()}

	ok, err := first.Signaled()
	require.NoError(t, err)
	assert.False(t, ok)

	idle = true
	ok, err = second.Signaled()
	require.NoError(t, err)
	assert.True(t, ok)

	// Completion is remembered after the queue gets busy again.
	idle = false
	third := &frameSignal{tracker: tr, serial: tr.submit()}
	ok, _ = first.Signaled()
	assert.True(t, ok)
	ok, _ = third.Signaled()
	assert.False(t, ok)
}

func TestSignalWaitTimesOut(t *testing.T) {
	tr := &tracker{poll: func() bool { return false }}
	s := &frameSignal{tracker: tr, serial: tr.submit()}
	assert.ErrorIs(t, s.Wait(2*time.Millisecond), metadata.ErrSignalTimeout)
}

func TestSignalWaitPollsUntilIdle(t *testing.T) {
	polls := 0
	tr := &tracker{poll: func() bool {
		polls++
		return polls > 3
	}}
	s := &frameSignal{tracker: tr, serial: tr.submit()}
	require.NoError(t, s.Wait(time.Second))
	assert.Equal(t, 4, polls)
}

func TestSignalAfterShutdown(t *testing.T) {
	tr := &tracker{}
	s := &frameSignal{tracker: tr, serial: tr.submit()}
	tr.drained()
	ok, err := s.Signaled()
	require.NoError(t, err)
	assert.True(t, ok)

	tr.lost = true
	_, err = s.Signaled()
	assert.ErrorIs(t, err, core.ErrDeviceLost)
}

func TestAlignmentFor(t *testing.T) {
	assert.Equal(t, uint64(256), alignmentFor(0, 256, 32))
	assert.Equal(t, uint64(512), alignmentFor(512, 256, 256))
	assert.Equal(t, uint64(4), alignmentFor(0, 0, 0))
}

func TestBufferUsage(t *testing.T) {
	usage, err := bufferUsage(metadata.RENDERBUFFER_TYPE_TRANSIENT)
	require.NoError(t, err)
	assert.NotZero(t, usage&wgpu.BufferUsageUniform)
	assert.NotZero(t, usage&wgpu.BufferUsageStorage)
	assert.NotZero(t, usage&wgpu.BufferUsageCopyDst)

	usage, err = bufferUsage(metadata.RENDERBUFFER_TYPE_INDEX)
	require.NoError(t, err)
	assert.NotZero(t, usage&wgpu.BufferUsageIndex)

	_, err = bufferUsage(metadata.RENDERBUFFER_TYPE_UNKNOWN)
	assert.Error(t, err)
}

func TestVertexLayouts(t *testing.T) {
	format := resources.NewVertexFormat().
		AddAttribute(0, resources.VertexFormatFloat3).
		AddAttribute(0, resources.VertexFormatFloat2).
		AddAttribute(1, resources.VertexFormatUByte4).
		AddAttribute(1, resources.VertexFormatFloat4)

	layouts, err := vertexLayouts(format)
	require.NoError(t, err)
	require.Len(t, layouts, 2)

	assert.Equal(t, uint64(20), layouts[0].ArrayStride)
	assert.Equal(t, uint64(20), layouts[1].ArrayStride)
	require.Len(t, layouts[1].Attributes, 2)
	assert.Equal(t, wgpu.VertexFormatUint8x4, layouts[1].Attributes[0].Format)
	assert.Equal(t, uint32(2), layouts[1].Attributes[0].ShaderLocation)
	assert.Equal(t, uint64(4), layouts[1].Attributes[1].Offset)
}

func TestCullMode(t *testing.T) {
	assert.Equal(t, wgpu.CullModeNone, cullMode(metadata.FaceCullModeNone))
	assert.Equal(t, wgpu.CullModeBack, cullMode(metadata.FaceCullModeBack))
	assert.Equal(t, wgpu.CullModeFront, cullMode(metadata.FaceCullModeFront))
}

func TestMaterialLayoutEntries(t *testing.T) {
	entries := materialLayoutEntries(2)
	require.Len(t, entries, 3)
	assert.Equal(t, wgpu.SamplerBindingTypeFiltering, entries[0].Sampler.Type)
	assert.Equal(t, uint32(2), entries[2].Binding)
	assert.Equal(t, wgpu.TextureViewDimension2D, entries[2].Texture.ViewDimension)
}

func TestMaterialKeyTracksGeneration(t *testing.T) {
	tex := &metadata.Texture{Name: "diffuse"}
	before := materialKey([]*metadata.Texture{tex})
	tex.Generation++
	assert.NotEqual(t, before, materialKey([]*metadata.Texture{tex}))
}
