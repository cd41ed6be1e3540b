// Package webgpu implements the render device on wgpu-native.
package webgpu

import (
	"fmt"
	"math"
	"sort"

	"github.com/cogentcore/webgpu/wgpu"

	"github.com/spaghettifunk/marionette/engine/config"
	"github.com/spaghettifunk/marionette/engine/core"
	"github.com/spaghettifunk/marionette/engine/platform"
	"github.com/spaghettifunk/marionette/engine/renderer/metadata"
	"github.com/spaghettifunk/marionette/engine/resources"
)

type gpuBuffer struct {
	handle *wgpu.Buffer
	size   uint64
}

type gpuTexture struct {
	handle *wgpu.Texture
	view   *wgpu.TextureView
}

type gpuPipeline struct {
	handle    *wgpu.RenderPipeline
	layout    *wgpu.PipelineLayout
	material  bool
	textures  uint32
	vertexBuf uint32
}

type bufferBinding struct {
	buffer *gpuBuffer
	offset uint64
	size   uint64
}

type vertexBinding struct {
	buffer *gpuBuffer
	offset uint64
}

// Backend drives one window through WebGPU.
type Backend struct {
	platform *platform.Platform
	config   config.RendererConfig

	instance      *wgpu.Instance
	surface       *wgpu.Surface
	adapter       *wgpu.Adapter
	device        *wgpu.Device
	queue         *wgpu.Queue
	surfaceFormat wgpu.TextureFormat
	alphaMode     wgpu.CompositeAlphaMode

	depthTexture *wgpu.Texture
	depthView    *wgpu.TextureView

	bindings  *bindings
	tracker   *tracker
	inFlight  []*frameSignal
	alignment uint64

	FrameNumber   uint64
	width, height uint32
	reconfigure   bool

	// Per-frame objects, alive between BeginFrame and EndFrame.
	frameTexture *wgpu.Texture
	frameView    *wgpu.TextureView
	encoder      *wgpu.CommandEncoder
	pass         *wgpu.RenderPassEncoder

	// Bound state, applied at the next draw.
	pipeline      *gpuPipeline
	buffers       [metadata.BindingSlotCount]*bufferBinding
	textures      []*metadata.Texture
	vertexBuffers map[uint32]vertexBinding
	indexBuffer   *vertexBinding
}

func New(p *platform.Platform) *Backend {
	return &Backend{
		platform:      p,
		tracker:       &tracker{},
		vertexBuffers: make(map[uint32]vertexBinding),
	}
}

func (b *Backend) Initialize(appName string, cfg *config.RendererConfig, width, height uint32) error {
	b.config = *cfg
	b.width, b.height = width, height

	b.instance = wgpu.CreateInstance(nil)
	desc := b.platform.WebGPUSurfaceDescriptor()
	if desc == nil {
		return fmt.Errorf("webgpu: platform has no window")
	}
	b.surface = b.instance.CreateSurface(desc)

	adapter, err := b.instance.RequestAdapter(&wgpu.RequestAdapterOptions{
		CompatibleSurface: b.surface,
	})
	if err != nil {
		return fmt.Errorf("webgpu: request adapter: %w", err)
	}
	b.adapter = adapter

	device, err := adapter.RequestDevice(&wgpu.DeviceDescriptor{
		Label: appName,
		RequiredLimits: &wgpu.RequiredLimits{
			Limits: wgpu.DefaultLimits(),
		},
	})
	if err != nil {
		return fmt.Errorf("webgpu: request device: %w", err)
	}
	b.device = device
	b.queue = device.GetQueue()
	b.tracker.poll = func() bool { return b.device.Poll(false, nil) }

	limits := adapter.GetLimits().Limits
	b.alignment = alignmentFor(cfg.UniformAlignment, uint64(limits.MinUniformBufferOffsetAlignment), uint64(limits.MinStorageBufferOffsetAlignment))

	caps := b.surface.GetCapabilities(adapter)
	if len(caps.Formats) == 0 || len(caps.AlphaModes) == 0 {
		return fmt.Errorf("webgpu: surface is not presentable with this adapter")
	}
	b.surfaceFormat = caps.Formats[0]
	b.alphaMode = caps.AlphaModes[0]
	if err := b.configureSurface(); err != nil {
		return err
	}

	if b.bindings, err = newBindings(device); err != nil {
		return fmt.Errorf("webgpu: %w", err)
	}
	b.inFlight = make([]*frameSignal, b.FramesInFlight())

	core.LogInfo("webgpu device ready (format %v, uniform alignment %d)", b.surfaceFormat, b.alignment)
	return nil
}

// alignmentFor picks the largest of the configured and device alignments.
func alignmentFor(values ...uint64) uint64 {
	out := uint64(4)
	for _, v := range values {
		if v > out {
			out = v
		}
	}
	return out
}

func (b *Backend) presentMode() wgpu.PresentMode {
	if b.config.VSync {
		return wgpu.PresentModeFifo
	}
	return wgpu.PresentModeImmediate
}

// configureSurface (re)builds the swap surface and the depth target.
func (b *Backend) configureSurface() error {
	b.reconfigure = false
	if b.width == 0 || b.height == 0 {
		return nil
	}
	b.surface.Configure(b.adapter, b.device, &wgpu.SurfaceConfiguration{
		Usage:       wgpu.TextureUsageRenderAttachment,
		Format:      b.surfaceFormat,
		Width:       b.width,
		Height:      b.height,
		PresentMode: b.presentMode(),
		AlphaMode:   b.alphaMode,
	})

	b.releaseDepth()
	depth, err := b.device.CreateTexture(&wgpu.TextureDescriptor{
		Label: "depth",
		Size: wgpu.Extent3D{
			Width:              b.width,
			Height:             b.height,
			DepthOrArrayLayers: 1,
		},
		MipLevelCount: 1,
		SampleCount:   1,
		Dimension:     wgpu.TextureDimension2D,
		Format:        wgpu.TextureFormatDepth24Plus,
		Usage:         wgpu.TextureUsageRenderAttachment,
	})
	if err != nil {
		return fmt.Errorf("webgpu: depth texture: %w", err)
	}
	view, err := depth.CreateView(nil)
	if err != nil {
		depth.Release()
		return fmt.Errorf("webgpu: depth view: %w", err)
	}
	b.depthTexture, b.depthView = depth, view
	return nil
}

func (b *Backend) releaseDepth() {
	if b.depthView != nil {
		b.depthView.Release()
		b.depthView = nil
	}
	if b.depthTexture != nil {
		b.depthTexture.Release()
		b.depthTexture = nil
	}
}

func (b *Backend) Shutdown() error {
	if b.device != nil {
		b.device.Poll(true, nil)
		b.tracker.drained()
	}
	if b.bindings != nil {
		b.bindings.release()
		b.bindings = nil
	}
	b.releaseDepth()
	if b.queue != nil {
		b.queue.Release()
		b.queue = nil
	}
	if b.device != nil {
		b.device.Release()
		b.device = nil
	}
	if b.adapter != nil {
		b.adapter.Release()
		b.adapter = nil
	}
	if b.surface != nil {
		b.surface.Release()
		b.surface = nil
	}
	if b.instance != nil {
		b.instance.Release()
		b.instance = nil
	}
	b.tracker.lost = true
	return nil
}

func (b *Backend) Resized(width, height uint32) error {
	if width == b.width && height == b.height {
		return nil
	}
	b.width, b.height = width, height
	b.reconfigure = true
	core.LogDebug("webgpu surface resized to %dx%d", width, height)
	return nil
}

func (b *Backend) FramesInFlight() uint32 {
	if b.config.FramesInFlight == 0 {
		return 2
	}
	return b.config.FramesInFlight
}

func (b *Backend) UniformAlignment() uint64 {
	return b.alignment
}

func (b *Backend) BeginFrame(deltaTime float64) (bool, error) {
	if b.width == 0 || b.height == 0 {
		return false, nil
	}
	if b.reconfigure {
		if err := b.configureSurface(); err != nil {
			return false, err
		}
	}

	// Keep at most FramesInFlight submissions queued.
	slot := b.FrameNumber % uint64(len(b.inFlight))
	if prev := b.inFlight[slot]; prev != nil {
		if err := prev.Wait(b.config.FenceTimeout.Duration); err != nil {
			return false, fmt.Errorf("webgpu: frame %d: %w", b.FrameNumber, err)
		}
		b.inFlight[slot] = nil
	}

	tex, err := b.surface.GetCurrentTexture()
	if err != nil {
		core.LogWarn("webgpu: acquire failed (%s), reconfiguring", err)
		b.reconfigure = true
		return false, nil
	}
	view, err := tex.CreateView(nil)
	if err != nil {
		tex.Release()
		return false, fmt.Errorf("webgpu: surface view: %w", err)
	}
	encoder, err := b.device.CreateCommandEncoder(nil)
	if err != nil {
		view.Release()
		tex.Release()
		return false, fmt.Errorf("webgpu: command encoder: %w", err)
	}

	c := b.config.ClearColor
	b.pass = encoder.BeginRenderPass(&wgpu.RenderPassDescriptor{
		ColorAttachments: []wgpu.RenderPassColorAttachment{{
			View:       view,
			LoadOp:     wgpu.LoadOpClear,
			StoreOp:    wgpu.StoreOpStore,
			ClearValue: wgpu.Color{R: float64(c[0]), G: float64(c[1]), B: float64(c[2]), A: float64(c[3])},
		}},
		DepthStencilAttachment: &wgpu.RenderPassDepthStencilAttachment{
			View:            b.depthView,
			DepthLoadOp:     wgpu.LoadOpClear,
			DepthStoreOp:    wgpu.StoreOpDiscard,
			DepthClearValue: 1.0,
		},
	})
	b.frameTexture, b.frameView, b.encoder = tex, view, encoder
	b.resetBindings()
	return true, nil
}

func (b *Backend) resetBindings() {
	b.pipeline = nil
	b.buffers = [metadata.BindingSlotCount]*bufferBinding{}
	b.textures = b.textures[:0]
	for k := range b.vertexBuffers {
		delete(b.vertexBuffers, k)
	}
	b.indexBuffer = nil
}

func (b *Backend) releaseFrame() {
	if b.pass != nil {
		b.pass.Release()
		b.pass = nil
	}
	if b.encoder != nil {
		b.encoder.Release()
		b.encoder = nil
	}
	if b.frameView != nil {
		b.frameView.Release()
		b.frameView = nil
	}
	if b.frameTexture != nil {
		b.frameTexture.Release()
		b.frameTexture = nil
	}
}

func (b *Backend) EndFrame(deltaTime float64) (metadata.FrameSignal, error) {
	if b.pass == nil {
		return nil, fmt.Errorf("webgpu: EndFrame without BeginFrame")
	}
	defer b.releaseFrame()

	b.pass.End()
	commands, err := b.encoder.Finish(nil)
	if err != nil {
		return nil, fmt.Errorf("webgpu: finish frame %d: %w", b.FrameNumber, err)
	}
	b.queue.Submit(commands)
	commands.Release()
	signal := &frameSignal{tracker: b.tracker, serial: b.tracker.submit()}

	b.surface.Present()

	b.inFlight[b.FrameNumber%uint64(len(b.inFlight))] = signal
	b.FrameNumber++
	return signal, nil
}

func bufferUsage(kind metadata.RenderBufferType) (wgpu.BufferUsage, error) {
	switch kind {
	case metadata.RENDERBUFFER_TYPE_VERTEX:
		return wgpu.BufferUsageVertex | wgpu.BufferUsageCopyDst, nil
	case metadata.RENDERBUFFER_TYPE_INDEX:
		return wgpu.BufferUsageIndex | wgpu.BufferUsageCopyDst, nil
	case metadata.RENDERBUFFER_TYPE_UNIFORM:
		return wgpu.BufferUsageUniform | wgpu.BufferUsageCopyDst, nil
	case metadata.RENDERBUFFER_TYPE_STAGING:
		return wgpu.BufferUsageCopySrc | wgpu.BufferUsageCopyDst, nil
	case metadata.RENDERBUFFER_TYPE_TRANSIENT:
		return wgpu.BufferUsageUniform | wgpu.BufferUsageStorage | wgpu.BufferUsageCopyDst, nil
	}
	return 0, fmt.Errorf("unsupported buffer type %d", kind)
}

func (b *Backend) CreateBuffer(kind metadata.RenderBufferType, size uint64, label string) (*metadata.RenderBuffer, error) {
	usage, err := bufferUsage(kind)
	if err != nil {
		return nil, err
	}
	// Queue writes move whole words.
	size = (size + 3) &^ 3
	handle, err := b.device.CreateBuffer(&wgpu.BufferDescriptor{
		Label: label,
		Size:  size,
		Usage: usage,
	})
	if err != nil {
		return nil, fmt.Errorf("webgpu: buffer %q: %w", label, err)
	}
	return &metadata.RenderBuffer{
		RenderBufferType: kind,
		TotalSize:        size,
		Label:            label,
		InternalData:     &gpuBuffer{handle: handle, size: size},
	}, nil
}

func internalBuffer(buffer *metadata.RenderBuffer) (*gpuBuffer, error) {
	if buffer == nil {
		return nil, fmt.Errorf("nil buffer")
	}
	gb, ok := buffer.InternalData.(*gpuBuffer)
	if !ok || gb.handle == nil {
		return nil, fmt.Errorf("buffer %q was not created by the webgpu device", buffer.Label)
	}
	return gb, nil
}

// WriteBuffer queues the copy; wgpu orders it after every earlier submission.
func (b *Backend) WriteBuffer(buffer *metadata.RenderBuffer, offset uint64, data []byte) error {
	gb, err := internalBuffer(buffer)
	if err != nil {
		return err
	}
	if offset%4 != 0 {
		return fmt.Errorf("write offset %d into %q is not a multiple of 4", offset, buffer.Label)
	}
	if rem := len(data) % 4; rem != 0 {
		data = append(append([]byte(nil), data...), make([]byte, 4-rem)...)
	}
	if offset+uint64(len(data)) > gb.size {
		return fmt.Errorf("write [%d,%d) past the end of %q (%d bytes)", offset, offset+uint64(len(data)), buffer.Label, gb.size)
	}
	b.queue.WriteBuffer(gb.handle, offset, data)
	return nil
}

func (b *Backend) DestroyBuffer(buffer *metadata.RenderBuffer) {
	gb, err := internalBuffer(buffer)
	if err != nil {
		return
	}
	if b.bindings != nil {
		b.bindings.forgetBuffer(gb.handle)
	}
	gb.handle.Release()
	gb.handle = nil
	buffer.InternalData = nil
}

func (b *Backend) CreateTexture(texture *metadata.Texture, pixels []uint8) error {
	if want := texture.ByteSize(); uint64(len(pixels)) != want {
		return fmt.Errorf("texture %q expects %d bytes of RGBA8, got %d", texture.Name, want, len(pixels))
	}
	size := wgpu.Extent3D{Width: texture.Width, Height: texture.Height, DepthOrArrayLayers: 1}
	tex, err := b.device.CreateTexture(&wgpu.TextureDescriptor{
		Label:         texture.Name,
		Usage:         wgpu.TextureUsageTextureBinding | wgpu.TextureUsageCopyDst,
		Dimension:     wgpu.TextureDimension2D,
		Size:          size,
		Format:        wgpu.TextureFormatRGBA8Unorm,
		MipLevelCount: 1,
		SampleCount:   1,
	})
	if err != nil {
		return fmt.Errorf("webgpu: texture %q: %w", texture.Name, err)
	}
	b.queue.WriteTexture(
		&wgpu.ImageCopyTexture{Texture: tex, Aspect: wgpu.TextureAspectAll},
		pixels,
		&wgpu.TextureDataLayout{BytesPerRow: texture.Width * 4, RowsPerImage: texture.Height},
		&size,
	)
	view, err := tex.CreateView(nil)
	if err != nil {
		tex.Release()
		return fmt.Errorf("webgpu: texture view %q: %w", texture.Name, err)
	}

	// A reload swaps the view under the same texture.
	if old, ok := texture.InternalData.(*gpuTexture); ok {
		b.bindings.forgetTexture(texture)
		old.view.Release()
		old.handle.Release()
	}
	texture.InternalData = &gpuTexture{handle: tex, view: view}
	texture.ChannelCount = 4
	texture.Generation++
	return nil
}

func (b *Backend) DestroyTexture(texture *metadata.Texture) {
	gt, ok := texture.InternalData.(*gpuTexture)
	if !ok {
		return
	}
	if b.bindings != nil {
		b.bindings.forgetTexture(texture)
	}
	gt.view.Release()
	gt.handle.Release()
	texture.InternalData = nil
}

func vertexFormat(f resources.VertexAttributeFormat) (wgpu.VertexFormat, error) {
	switch f {
	case resources.VertexFormatFloat2:
		return wgpu.VertexFormatFloat32x2, nil
	case resources.VertexFormatFloat3:
		return wgpu.VertexFormatFloat32x3, nil
	case resources.VertexFormatFloat4:
		return wgpu.VertexFormatFloat32x4, nil
	case resources.VertexFormatUByte4:
		return wgpu.VertexFormatUint8x4, nil
	}
	return 0, fmt.Errorf("unsupported attribute format %d", f)
}

// vertexLayouts describes one vertex buffer per buffer index of format.
func vertexLayouts(format *resources.VertexFormat) ([]wgpu.VertexBufferLayout, error) {
	out := make([]wgpu.VertexBufferLayout, 0, format.BufferCount())
	for i := uint32(0); i < uint32(format.BufferCount()); i++ {
		attrs := format.BufferAttributes(i)
		layout := wgpu.VertexBufferLayout{
			ArrayStride: uint64(format.Stride(i)),
			StepMode:    wgpu.VertexStepModeVertex,
			Attributes:  make([]wgpu.VertexAttribute, 0, len(attrs)),
		}
		for _, a := range attrs {
			vf, err := vertexFormat(a.Format)
			if err != nil {
				return nil, err
			}
			layout.Attributes = append(layout.Attributes, wgpu.VertexAttribute{
				Format:         vf,
				Offset:         uint64(a.Offset),
				ShaderLocation: a.Location,
			})
		}
		out = append(out, layout)
	}
	return out, nil
}

var alphaBlend = wgpu.BlendState{
	Color: wgpu.BlendComponent{
		Operation: wgpu.BlendOperationAdd,
		SrcFactor: wgpu.BlendFactorSrcAlpha,
		DstFactor: wgpu.BlendFactorOneMinusSrcAlpha,
	},
	Alpha: wgpu.BlendComponent{
		Operation: wgpu.BlendOperationAdd,
		SrcFactor: wgpu.BlendFactorOne,
		DstFactor: wgpu.BlendFactorZero,
	},
}

func cullMode(m metadata.FaceCullMode) wgpu.CullMode {
	switch m {
	case metadata.FaceCullModeFront:
		return wgpu.CullModeFront
	case metadata.FaceCullModeBack:
		return wgpu.CullModeBack
	}
	return wgpu.CullModeNone
}

func (b *Backend) CreatePipeline(cfg *metadata.PipelineConfig) (*metadata.Pipeline, error) {
	if cfg.VertexFormat == nil {
		return nil, fmt.Errorf("pipeline %q has no vertex format", cfg.Name)
	}
	if cfg.WGSL == "" {
		return nil, fmt.Errorf("pipeline %q has no WGSL source", cfg.Name)
	}
	buffers, err := vertexLayouts(cfg.VertexFormat)
	if err != nil {
		return nil, fmt.Errorf("pipeline %q: %w", cfg.Name, err)
	}
	groupLayouts, err := b.bindings.layouts(cfg.TextureCount)
	if err != nil {
		return nil, fmt.Errorf("pipeline %q: %w", cfg.Name, err)
	}

	module, err := b.device.CreateShaderModule(&wgpu.ShaderModuleDescriptor{
		Label:          cfg.Name,
		WGSLDescriptor: &wgpu.ShaderModuleWGSLDescriptor{Code: cfg.WGSL},
	})
	if err != nil {
		return nil, fmt.Errorf("pipeline %q: shader module: %w", cfg.Name, err)
	}
	defer module.Release()

	layout, err := b.device.CreatePipelineLayout(&wgpu.PipelineLayoutDescriptor{
		Label:            cfg.Name,
		BindGroupLayouts: groupLayouts,
	})
	if err != nil {
		return nil, fmt.Errorf("pipeline %q: layout: %w", cfg.Name, err)
	}

	depthCompare := wgpu.CompareFunctionAlways
	if cfg.DepthTest {
		depthCompare = wgpu.CompareFunctionLess
	}
	handle, err := b.device.CreateRenderPipeline(&wgpu.RenderPipelineDescriptor{
		Label:  cfg.Name,
		Layout: layout,
		Vertex: wgpu.VertexState{
			Module:     module,
			EntryPoint: "vs_main",
			Buffers:    buffers,
		},
		Fragment: &wgpu.FragmentState{
			Module:     module,
			EntryPoint: "fs_main",
			Targets: []wgpu.ColorTargetState{{
				Format:    b.surfaceFormat,
				WriteMask: wgpu.ColorWriteMaskAll,
				Blend:     &alphaBlend,
			}},
		},
		Primitive: wgpu.PrimitiveState{
			Topology:  wgpu.PrimitiveTopologyTriangleList,
			FrontFace: wgpu.FrontFaceCCW,
			CullMode:  cullMode(cfg.CullMode),
		},
		Multisample: wgpu.MultisampleState{
			Count: 1,
			Mask:  0xFFFFFFFF,
		},
		DepthStencil: &wgpu.DepthStencilState{
			Format:            wgpu.TextureFormatDepth24Plus,
			DepthWriteEnabled: cfg.DepthTest,
			DepthCompare:      depthCompare,
			StencilFront:      wgpu.StencilFaceState{Compare: wgpu.CompareFunctionAlways},
			StencilBack:       wgpu.StencilFaceState{Compare: wgpu.CompareFunctionAlways},
		},
	})
	if err != nil {
		layout.Release()
		return nil, fmt.Errorf("pipeline %q: %w", cfg.Name, err)
	}

	core.LogDebug("webgpu pipeline %q created", cfg.Name)
	return &metadata.Pipeline{
		Name:   cfg.Name,
		Config: cfg,
		InternalData: &gpuPipeline{
			handle:    handle,
			layout:    layout,
			material:  cfg.TextureCount > 0,
			textures:  cfg.TextureCount,
			vertexBuf: uint32(cfg.VertexFormat.BufferCount()),
		},
	}, nil
}

func (b *Backend) DestroyPipeline(pipeline *metadata.Pipeline) {
	gp, ok := pipeline.InternalData.(*gpuPipeline)
	if !ok {
		return
	}
	gp.handle.Release()
	gp.layout.Release()
	pipeline.InternalData = nil
}

func (b *Backend) BindPipeline(pipeline *metadata.Pipeline) error {
	gp, ok := pipeline.InternalData.(*gpuPipeline)
	if !ok {
		return fmt.Errorf("pipeline %q was not created by the webgpu device", pipeline.Name)
	}
	b.pipeline = gp
	return nil
}

func (b *Backend) BindBufferRange(slot metadata.BindingSlot, buffer *metadata.RenderBuffer, offset, size uint64) error {
	if slot != metadata.BindingSlotCamera && slot != metadata.BindingSlotInstance {
		return fmt.Errorf("slot %s does not take a buffer", slot)
	}
	gb, err := internalBuffer(buffer)
	if err != nil {
		return err
	}
	if offset%b.alignment != 0 {
		return fmt.Errorf("offset %d of %q is not aligned to %d", offset, buffer.Label, b.alignment)
	}
	if offset+size > gb.size || offset > math.MaxUint32 {
		return fmt.Errorf("range [%d,%d) outside of %q (%d bytes)", offset, offset+size, buffer.Label, gb.size)
	}
	b.buffers[slot] = &bufferBinding{buffer: gb, offset: offset, size: size}
	return nil
}

func (b *Backend) BindTextures(textures []*metadata.Texture) error {
	b.textures = append(b.textures[:0], textures...)
	return nil
}

func (b *Backend) BindVertexBuffer(slot uint32, buffer *metadata.RenderBuffer, offset uint64) error {
	gb, err := internalBuffer(buffer)
	if err != nil {
		return err
	}
	b.vertexBuffers[slot] = vertexBinding{buffer: gb, offset: offset}
	return nil
}

func (b *Backend) BindIndexBuffer(buffer *metadata.RenderBuffer, offset uint64) error {
	gb, err := internalBuffer(buffer)
	if err != nil {
		return err
	}
	b.indexBuffer = &vertexBinding{buffer: gb, offset: offset}
	return nil
}

func (b *Backend) DrawIndexed(indexCount, firstIndex, instanceCount uint32) error {
	if b.pass == nil {
		return fmt.Errorf("draw outside of a frame")
	}
	if b.pipeline == nil {
		return fmt.Errorf("draw without a bound pipeline")
	}
	if b.indexBuffer == nil {
		return fmt.Errorf("draw without an index buffer")
	}
	if uint32(len(b.vertexBuffers)) < b.pipeline.vertexBuf {
		return fmt.Errorf("pipeline reads %d vertex buffers, %d bound", b.pipeline.vertexBuf, len(b.vertexBuffers))
	}

	b.pass.SetPipeline(b.pipeline.handle)
	for _, slot := range []metadata.BindingSlot{metadata.BindingSlotCamera, metadata.BindingSlotInstance} {
		bound := b.buffers[slot]
		if bound == nil {
			return fmt.Errorf("draw without a %s buffer", slot)
		}
		group, err := b.bindings.bufferGroup(slot, bound.buffer.handle, bound.size)
		if err != nil {
			return err
		}
		b.pass.SetBindGroup(uint32(slot), group, []uint32{uint32(bound.offset)})
	}
	if b.pipeline.material {
		if uint32(len(b.textures)) != b.pipeline.textures {
			return fmt.Errorf("pipeline samples %d textures, %d bound", b.pipeline.textures, len(b.textures))
		}
		group, err := b.bindings.materialGroup(b.textures)
		if err != nil {
			return err
		}
		b.pass.SetBindGroup(uint32(metadata.BindingSlotMaterial), group, nil)
	}

	slots := make([]uint32, 0, len(b.vertexBuffers))
	for s := range b.vertexBuffers {
		slots = append(slots, s)
	}
	sort.Slice(slots, func(i, j int) bool { return slots[i] < slots[j] })
	for _, s := range slots {
		vb := b.vertexBuffers[s]
		b.pass.SetVertexBuffer(s, vb.buffer.handle, vb.offset, wgpu.WholeSize)
	}
	b.pass.SetIndexBuffer(b.indexBuffer.buffer.handle, wgpu.IndexFormatUint32, b.indexBuffer.offset, wgpu.WholeSize)
	b.pass.DrawIndexed(indexCount, instanceCount, firstIndex, 0, 0)
	return nil
}
