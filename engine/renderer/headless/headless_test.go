package headless

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spaghettifunk/marionette/engine/config"
	"github.com/spaghettifunk/marionette/engine/core"
	"github.com/spaghettifunk/marionette/engine/renderer"
	"github.com/spaghettifunk/marionette/engine/renderer/metadata"
	"github.com/spaghettifunk/marionette/engine/resources"
)

var _ renderer.RenderDevice = (*Device)(nil)

func newDevice(t *testing.T, latency int) *Device {
	t.Helper()
	d := New(latency)
	cfg := config.Default().Renderer
	require.NoError(t, d.Initialize("test", &cfg, 64, 64))
	return d
}

func TestSignalsRetireAfterLatency(t *testing.T) {
	d := newDevice(t, 2)

	var signals []metadata.FrameSignal
	for i := 0; i < 3; i++ {
		ok, err := d.BeginFrame(0)
		require.NoError(t, err)
		require.True(t, ok)
		s, err := d.EndFrame(0)
		require.NoError(t, err)
		signals = append(signals, s)
	}

	done, err := signals[0].Signaled()
	require.NoError(t, err)
	assert.True(t, done, "frame 1 retires when frame 3 is submitted")
	done, _ = signals[1].Signaled()
	assert.False(t, done)
	assert.Equal(t, 2, d.Pending())

	require.NoError(t, signals[2].Wait(time.Second))
	done, _ = signals[1].Signaled()
	assert.True(t, done, "waiting on a later frame retires earlier ones")
	assert.Zero(t, d.Pending())
}

func TestWriteToInFlightRangeFails(t *testing.T) {
	d := newDevice(t, 1)
	buf, err := d.CreateBuffer(metadata.RENDERBUFFER_TYPE_TRANSIENT, 512, "t")
	require.NoError(t, err)
	pipe, err := d.CreatePipeline(&metadata.PipelineConfig{Name: "p", VertexFormat: resources.StaticVertexFormat()})
	require.NoError(t, err)

	_, err = d.BeginFrame(0)
	require.NoError(t, err)
	require.NoError(t, d.WriteBuffer(buf, 0, make([]byte, 64)))
	require.NoError(t, d.BindPipeline(pipe))
	require.NoError(t, d.BindBufferRange(metadata.BindingSlotInstance, buf, 0, 64))
	require.NoError(t, d.DrawIndexed(3, 0, 1))
	assert.ErrorIs(t, d.WriteBuffer(buf, 32, []byte{1}), ErrInFlightWrite)
	s, err := d.EndFrame(0)
	require.NoError(t, err)

	assert.ErrorIs(t, d.WriteBuffer(buf, 0, []byte{1}), ErrInFlightWrite)
	assert.NoError(t, d.WriteBuffer(buf, 256, []byte{7}), "disjoint range")
	assert.Equal(t, byte(7), d.Contents(buf)[256])

	require.NoError(t, s.Wait(time.Second))
	assert.NoError(t, d.WriteBuffer(buf, 0, []byte{1}))
}

func TestLostDevice(t *testing.T) {
	d := newDevice(t, 3)
	_, err := d.BeginFrame(0)
	require.NoError(t, err)
	s, err := d.EndFrame(0)
	require.NoError(t, err)

	d.Lose()
	_, err = s.Signaled()
	assert.ErrorIs(t, err, core.ErrDeviceLost)
	assert.ErrorIs(t, s.Wait(time.Millisecond), metadata.ErrSignalTimeout)
	_, err = d.BeginFrame(0)
	assert.ErrorIs(t, err, core.ErrDeviceLost)
}

func TestMinimizedWindowSkipsFrames(t *testing.T) {
	d := newDevice(t, 0)
	require.NoError(t, d.Resized(0, 0))
	ok, err := d.BeginFrame(0)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestCreateTextureChecksSize(t *testing.T) {
	d := newDevice(t, 0)
	tex := &metadata.Texture{Name: "px", Width: 2, Height: 2, ChannelCount: 4}
	assert.Error(t, d.CreateTexture(tex, make([]byte, 3)))
	require.NoError(t, d.CreateTexture(tex, make([]byte, 16)))
	assert.Equal(t, uint32(1), tex.Generation)
}

func TestRetainedFramesAreBounded(t *testing.T) {
	d := newDevice(t, 2)
	d.Keep = 8

	for i := 0; i < 10000; i++ {
		ok, err := d.BeginFrame(0)
		require.NoError(t, err)
		require.True(t, ok)
		_, err = d.EndFrame(0)
		require.NoError(t, err)
	}

	assert.Len(t, d.Frames(), 8)
	assert.LessOrEqual(t, cap(d.Frames()), 32, "the backing array is reused")
	assert.Equal(t, uint64(10000), d.FrameCount())
	assert.Equal(t, 2, d.Pending())
}

func TestNewDeviceKeepsDefaultWindow(t *testing.T) {
	d := newDevice(t, 0)
	for i := 0; i < DefaultKeep+5; i++ {
		_, _ = d.BeginFrame(0)
		_, err := d.EndFrame(0)
		require.NoError(t, err)
	}
	assert.Len(t, d.Frames(), DefaultKeep)
}
