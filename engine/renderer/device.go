package renderer

import (
	"github.com/spaghettifunk/marionette/engine/config"
	"github.com/spaghettifunk/marionette/engine/renderer/metadata"
)

// BufferAllocator is the slice of a device the transient allocator needs.
type BufferAllocator interface {
	CreateBuffer(kind metadata.RenderBufferType, size uint64, label string) (*metadata.RenderBuffer, error)
	WriteBuffer(buffer *metadata.RenderBuffer, offset uint64, data []byte) error
	DestroyBuffer(buffer *metadata.RenderBuffer)
}

// RenderDevice is implemented once per native graphics API.
//
// Bindings recorded with BindPipeline, BindBufferRange, BindTextures and the
// vertex/index calls are state; they take effect at the next DrawIndexed.
type RenderDevice interface {
	BufferAllocator

	Initialize(appName string, cfg *config.RendererConfig, width, height uint32) error
	Shutdown() error
	Resized(width, height uint32) error

	// BeginFrame returns false when the frame must be skipped, for
	// instance while the swapchain is rebuilt.
	BeginFrame(deltaTime float64) (bool, error)
	// EndFrame submits the recorded commands and returns the signal that
	// fires when the GPU has consumed them.
	EndFrame(deltaTime float64) (metadata.FrameSignal, error)
	FramesInFlight() uint32
	// UniformAlignment is the minimum dynamic offset alignment.
	UniformAlignment() uint64

	CreateTexture(texture *metadata.Texture, pixels []uint8) error
	DestroyTexture(texture *metadata.Texture)

	CreatePipeline(config *metadata.PipelineConfig) (*metadata.Pipeline, error)
	DestroyPipeline(pipeline *metadata.Pipeline)

	BindPipeline(pipeline *metadata.Pipeline) error
	BindBufferRange(slot metadata.BindingSlot, buffer *metadata.RenderBuffer, offset, size uint64) error
	BindTextures(textures []*metadata.Texture) error
	BindVertexBuffer(slot uint32, buffer *metadata.RenderBuffer, offset uint64) error
	BindIndexBuffer(buffer *metadata.RenderBuffer, offset uint64) error
	DrawIndexed(indexCount, firstIndex, instanceCount uint32) error
}
