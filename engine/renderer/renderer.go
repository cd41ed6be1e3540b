package renderer

import (
	"fmt"

	"github.com/spaghettifunk/marionette/engine/config"
	"github.com/spaghettifunk/marionette/engine/core"
	"github.com/spaghettifunk/marionette/engine/math"
	"github.com/spaghettifunk/marionette/engine/renderer/components"
	"github.com/spaghettifunk/marionette/engine/renderer/metadata"
	"github.com/spaghettifunk/marionette/engine/resources"
)

// Renderer is the frontend the rest of the engine talks to. It owns the
// device and the transient allocator and drives both across frame boundaries.
type Renderer struct {
	device    RenderDevice
	cfg       config.RendererConfig
	transient *TransientAllocator

	frameNumber uint64
	inFrame     bool
	lastToken   FrameToken

	// camera uniforms already uploaded this frame
	camera       *components.Camera
	cameraFrame  uint64
	cameraRegion *Region
}

func New(device RenderDevice, cfg config.RendererConfig) *Renderer {
	return &Renderer{
		device: device,
		cfg:    cfg,
	}
}

func (r *Renderer) Initialize(appName string, width, height uint32) error {
	if err := r.device.Initialize(appName, &r.cfg, width, height); err != nil {
		core.LogError("failed to initialize render device: %s", err)
		return err
	}

	alignment := r.device.UniformAlignment()
	if r.cfg.UniformAlignment > alignment {
		alignment = r.cfg.UniformAlignment
	}
	ta, err := NewTransientAllocator(r.device, TransientConfig{
		Depth:      int(r.device.FramesInFlight()),
		Alignment:  alignment,
		MaxRegions: int(r.cfg.MaxRegions),
		Timeout:    r.cfg.FenceTimeout.Duration,
	})
	if err != nil {
		return err
	}
	r.transient = ta
	core.LogInfo("renderer initialized: %d frames in flight, %d byte alignment", r.device.FramesInFlight(), alignment)
	return nil
}

func (r *Renderer) Shutdown() error {
	if r.transient != nil {
		if err := r.transient.WaitIdle(); err != nil {
			core.LogError("transient frames did not drain: %s", err)
		}
		r.transient.Destroy()
	}
	return r.device.Shutdown()
}

// WaitIdle blocks until every submitted frame has completed on the GPU.
func (r *Renderer) WaitIdle() error {
	if r.transient == nil {
		return nil
	}
	return r.transient.WaitIdle()
}

func (r *Renderer) OnResize(width, height uint32) error {
	return r.device.Resized(width, height)
}

func (r *Renderer) Device() RenderDevice {
	return r.device
}

func (r *Renderer) Transient() *TransientAllocator {
	return r.transient
}

func (r *Renderer) FrameNumber() uint64 {
	return r.frameNumber
}

func (r *Renderer) InFrame() bool {
	return r.inFrame
}

// LastToken is the token of the most recently submitted frame.
func (r *Renderer) LastToken() FrameToken {
	return r.lastToken
}

// BeginFrame recycles the regions of every completed frame and opens a new
// one on the device. It returns false when the frame should be skipped.
func (r *Renderer) BeginFrame(deltaTime float64) (bool, error) {
	if r.inFrame {
		return false, fmt.Errorf("BeginFrame called twice without EndFrame")
	}
	if _, err := r.transient.RecycleCompleted(); err != nil {
		return false, err
	}
	ok, err := r.device.BeginFrame(deltaTime)
	if err != nil || !ok {
		return false, err
	}
	r.inFrame = true
	r.camera, r.cameraRegion = nil, nil
	return true, nil
}

// EndFrame submits the frame and hands its regions to the allocator tagged
// with the device's completion signal.
func (r *Renderer) EndFrame(deltaTime float64) error {
	if !r.inFrame {
		return fmt.Errorf("EndFrame called outside of a frame")
	}
	r.inFrame = false

	signal, err := r.device.EndFrame(deltaTime)
	if err != nil {
		core.LogError("RendererEndFrame failed: %s", err)
		return err
	}
	token, err := r.transient.Submit(signal)
	if err != nil {
		return err
	}
	r.lastToken = token
	r.frameNumber++
	return nil
}

// SetCamera uploads the camera matrices for this frame and binds them.
func (r *Renderer) SetCamera(view, projection math.Mat4) error {
	_, err := r.uploadCamera(view, projection)
	return err
}

// BindCamera binds camera's uniforms, uploading them at most once per frame.
func (r *Renderer) BindCamera(camera *components.Camera) error {
	if r.camera == camera && r.cameraRegion != nil && r.cameraFrame == r.frameNumber {
		return r.device.BindBufferRange(metadata.BindingSlotCamera, r.cameraRegion.Buffer, r.cameraRegion.Offset, cameraUniformsSize)
	}
	region, err := r.uploadCamera(camera.View(), camera.Projection())
	if err != nil {
		return err
	}
	r.camera, r.cameraRegion, r.cameraFrame = camera, region, r.frameNumber
	return nil
}

const cameraUniformsSize = uint64(128)

func (r *Renderer) uploadCamera(view, projection math.Mat4) (*Region, error) {
	u := []metadata.CameraUniforms{{View: view.Data, Projection: projection.Data}}
	data := resources.SliceBytes(u)
	region, err := r.transient.Claim(cameraUniformsSize)
	if err != nil {
		return nil, err
	}
	if err := region.Write(data); err != nil {
		return nil, err
	}
	if err := r.device.BindBufferRange(metadata.BindingSlotCamera, region.Buffer, region.Offset, cameraUniformsSize); err != nil {
		return nil, err
	}
	return region, nil
}

// UploadMatrices claims one region, fills it with ms and binds it as the
// instance data of the next draw.
func (r *Renderer) UploadMatrices(ms []math.Mat4) (*Region, error) {
	if len(ms) == 0 {
		return nil, fmt.Errorf("no matrices to upload")
	}
	data := resources.SliceBytes(ms)
	size := uint64(len(data))
	region, err := r.transient.Claim(size)
	if err != nil {
		return nil, err
	}
	if err := region.Write(data); err != nil {
		return nil, err
	}
	if err := r.device.BindBufferRange(metadata.BindingSlotInstance, region.Buffer, region.Offset, size); err != nil {
		return nil, err
	}
	return region, nil
}
