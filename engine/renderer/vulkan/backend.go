package vulkan

import (
	"errors"
	"fmt"
	"math"
	"runtime"
	"sort"
	"unsafe"

	vk "github.com/goki/vulkan"

	"github.com/spaghettifunk/marionette/engine/config"
	"github.com/spaghettifunk/marionette/engine/core"
	"github.com/spaghettifunk/marionette/engine/platform"
	"github.com/spaghettifunk/marionette/engine/renderer/metadata"
)

type bufferBinding struct {
	buffer *VulkanBuffer
	offset uint64
	size   uint64
}

type vertexBinding struct {
	buffer *VulkanBuffer
	offset uint64
}

// Backend drives one window through Vulkan.
type Backend struct {
	platform    *platform.Platform
	context     *VulkanContext
	descriptors *VulkanDescriptors
	config      config.RendererConfig
	alignment   uint64

	FrameNumber             uint64
	cachedFramebufferWidth  uint32
	cachedFramebufferHeight uint32

	debug   bool
	inFrame bool

	// Bound state, applied at the next draw.
	pipeline      *VulkanPipeline
	buffers       [metadata.BindingSlotCount]*bufferBinding
	textures      []*metadata.Texture
	vertexBuffers map[uint32]vertexBinding
	indexBuffer   *vertexBinding
}

func New(p *platform.Platform) *Backend {
	return &Backend{
		platform:      p,
		context:       newVulkanContext(),
		vertexBuffers: make(map[uint32]vertexBinding),
	}
}

func (vr *Backend) Initialize(appName string, cfg *config.RendererConfig, appWidth, appHeight uint32) error {
	vr.config = *cfg
	vr.debug = core.GetLogLevel() == core.DebugLevel

	procAddr := platform.VulkanProcAddr()
	if procAddr == nil {
		return fmt.Errorf("GetInstanceProcAddress is nil")
	}
	vk.SetGetInstanceProcAddr(procAddr)
	if err := vk.Init(); err != nil {
		return fmt.Errorf("failed to initialize vk: %w", err)
	}

	vr.context.FramebufferWidth = appWidth
	vr.context.FramebufferHeight = appHeight

	if err := vr.createInstance(appName); err != nil {
		return err
	}

	if vr.debug {
		core.LogDebug("Creating Vulkan debugger...")
		debugCreateInfo := vk.DebugReportCallbackCreateInfo{
			SType:       vk.StructureTypeDebugReportCallbackCreateInfo,
			Flags:       vk.DebugReportFlags(vk.DebugReportErrorBit | vk.DebugReportWarningBit | vk.DebugReportPerformanceWarningBit),
			PfnCallback: dbgCallbackFunc,
		}
		var dbg vk.DebugReportCallback
		if err := vk.Error(vk.CreateDebugReportCallback(vr.context.Instance, &debugCreateInfo, vr.context.Allocator, &dbg)); err != nil {
			core.LogWarn("vk.CreateDebugReportCallback failed with %s", err)
		} else {
			vr.context.debugMessenger = dbg
		}
	}

	core.LogDebug("Creating Vulkan surface...")
	surface, err := vr.platform.CreateVulkanSurface(vr.context.Instance)
	if err != nil {
		return fmt.Errorf("vulkan surface creation failed: %w", err)
	}
	vr.context.Surface = vk.SurfaceFromPointer(surface)

	if err := DeviceCreate(vr.context); err != nil {
		return fmt.Errorf("failed to create device: %w", err)
	}

	limits := vr.context.Device.Properties.Limits
	vr.alignment = max(cfg.UniformAlignment, uint64(limits.MinUniformBufferOffsetAlignment), uint64(limits.MinStorageBufferOffsetAlignment))

	sc, err := SwapchainCreate(vr.context, appWidth, appHeight, cfg.FramesInFlight, cfg.VSync)
	if err != nil {
		return err
	}
	vr.context.Swapchain = sc
	vr.context.FramebufferWidth = sc.Extent.Width
	vr.context.FramebufferHeight = sc.Extent.Height

	rp, err := RenderpassCreate(
		vr.context,
		0, 0, float32(vr.context.FramebufferWidth), float32(vr.context.FramebufferHeight),
		cfg.ClearColor,
		1.0,
		0)
	if err != nil {
		return err
	}
	vr.context.MainRenderpass = rp

	if err := vr.regenerateFramebuffers(); err != nil {
		return err
	}
	if err := vr.createCommandBuffers(); err != nil {
		return err
	}
	if err := vr.createSyncObjects(); err != nil {
		return err
	}

	vr.descriptors, err = NewVulkanDescriptors(vr.context)
	if err != nil {
		return err
	}

	core.LogInfo("Vulkan renderer initialized: %d frames in flight, alignment %d.", cfg.FramesInFlight, vr.alignment)
	return nil
}

func (vr *Backend) createInstance(appName string) error {
	appInfo := &vk.ApplicationInfo{
		SType:              vk.StructureTypeApplicationInfo,
		ApiVersion:         uint32(vk.MakeVersion(1, 1, 0)),
		ApplicationVersion: uint32(vk.MakeVersion(1, 0, 0)),
		PApplicationName:   VulkanSafeString(appName),
		PEngineName:        VulkanSafeString("Marionette Engine"),
	}
	createInfo := vk.InstanceCreateInfo{
		SType:            vk.StructureTypeInstanceCreateInfo,
		PApplicationInfo: appInfo,
	}

	extensions := uniqueStrings(append([]string{vk.KhrSurfaceExtensionName}, vr.platform.GetRequiredExtensionNames()...))
	if runtime.GOOS == "darwin" {
		extensions = append(extensions,
			"VK_KHR_portability_enumeration",
			"VK_KHR_get_physical_device_properties2",
		)
		// VK_INSTANCE_CREATE_ENUMERATE_PORTABILITY_BIT_KHR
		createInfo.Flags |= 1
	}

	var layers []string
	if vr.debug {
		extensions = append(extensions, vk.ExtDebugReportExtensionName)
		if hasInstanceLayer("VK_LAYER_KHRONOS_validation") {
			layers = append(layers, "VK_LAYER_KHRONOS_validation")
			core.LogInfo("Validation layers enabled.")
		} else {
			core.LogWarn("VK_LAYER_KHRONOS_validation is not installed, running without validation.")
		}
	}
	for _, e := range extensions {
		core.LogDebug("Required extension: %s", e)
	}

	createInfo.EnabledExtensionCount = uint32(len(extensions))
	createInfo.PpEnabledExtensionNames = VulkanSafeStrings(extensions)
	createInfo.EnabledLayerCount = uint32(len(layers))
	createInfo.PpEnabledLayerNames = VulkanSafeStrings(layers)

	var instance vk.Instance
	if res := vk.CreateInstance(&createInfo, vr.context.Allocator, &instance); res != vk.Success {
		return fmt.Errorf("failed in creating the Vulkan Instance with error `%s`", VulkanResultString(res, true))
	}
	if err := vk.InitInstance(instance); err != nil {
		return err
	}
	vr.context.Instance = instance
	core.LogInfo("Vulkan Instance created.")
	return nil
}

func uniqueStrings(list []string) []string {
	seen := make(map[string]bool, len(list))
	out := list[:0]
	for _, s := range list {
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	return out
}

func hasInstanceLayer(name string) bool {
	var count uint32
	if res := vk.EnumerateInstanceLayerProperties(&count, nil); res != vk.Success {
		return false
	}
	available := make([]vk.LayerProperties, count)
	if res := vk.EnumerateInstanceLayerProperties(&count, available); res != vk.Success {
		return false
	}
	for i := range available {
		available[i].Deref()
		if vk.ToString(available[i].LayerName[:]) == name {
			return true
		}
	}
	return false
}

func (vr *Backend) createSyncObjects() error {
	frames := vr.context.Swapchain.MaxFramesInFlight
	vr.context.ImageAvailableSemaphores = make([]vk.Semaphore, frames)
	vr.context.QueueCompleteSemaphores = make([]vk.Semaphore, frames)
	vr.context.InFlightFences = make([]*VulkanFence, frames)

	semaphoreCreateInfo := vk.SemaphoreCreateInfo{
		SType: vk.StructureTypeSemaphoreCreateInfo,
	}
	for i := uint32(0); i < frames; i++ {
		if res := vk.CreateSemaphore(vr.context.Device.LogicalDevice, &semaphoreCreateInfo, vr.context.Allocator, &vr.context.ImageAvailableSemaphores[i]); res != vk.Success {
			return fmt.Errorf("failed to create image available semaphore: %s", VulkanResultString(res, true))
		}
		if res := vk.CreateSemaphore(vr.context.Device.LogicalDevice, &semaphoreCreateInfo, vr.context.Allocator, &vr.context.QueueCompleteSemaphores[i]); res != vk.Success {
			return fmt.Errorf("failed to create queue complete semaphore: %s", VulkanResultString(res, true))
		}
		// Created signaled so the first frame on each slot does not wait.
		f, err := NewFence(vr.context, true)
		if err != nil {
			return err
		}
		vr.context.InFlightFences[i] = f
	}

	// Not owned; each entry points at a fence in InFlightFences.
	vr.context.ImagesInFlight = make([]*VulkanFence, vr.context.Swapchain.ImageCount)
	return nil
}

func (vr *Backend) Shutdown() error {
	if vr.context.Device.LogicalDevice == nil {
		return nil
	}
	vk.DeviceWaitIdle(vr.context.Device.LogicalDevice)

	// Destroy in the opposite order of creation.
	if vr.descriptors != nil {
		vr.descriptors.Destroy(vr.context)
		vr.descriptors = nil
	}

	for i := range vr.context.InFlightFences {
		if vr.context.ImageAvailableSemaphores[i] != vk.NullSemaphore {
			vk.DestroySemaphore(vr.context.Device.LogicalDevice, vr.context.ImageAvailableSemaphores[i], vr.context.Allocator)
		}
		if vr.context.QueueCompleteSemaphores[i] != vk.NullSemaphore {
			vk.DestroySemaphore(vr.context.Device.LogicalDevice, vr.context.QueueCompleteSemaphores[i], vr.context.Allocator)
		}
		if vr.context.InFlightFences[i] != nil {
			vr.context.InFlightFences[i].FenceDestroy(vr.context)
		}
	}
	vr.context.ImageAvailableSemaphores = nil
	vr.context.QueueCompleteSemaphores = nil
	vr.context.InFlightFences = nil
	vr.context.ImagesInFlight = nil

	vr.freeCommandBuffers()
	vr.destroyFramebuffers()

	if vr.context.MainRenderpass != nil {
		vr.context.MainRenderpass.RenderpassDestroy(vr.context)
	}
	if vr.context.Swapchain != nil {
		vr.context.Swapchain.SwapchainDestroy(vr.context)
	}

	core.LogDebug("Destroying Vulkan device...")
	DeviceDestroy(vr.context)

	core.LogDebug("Destroying Vulkan surface...")
	if vr.context.Surface != vk.NullSurface {
		vk.DestroySurface(vr.context.Instance, vr.context.Surface, vr.context.Allocator)
		vr.context.Surface = vk.NullSurface
	}

	if vr.context.debugMessenger != vk.NullDebugReportCallback {
		core.LogDebug("Destroying Vulkan debugger...")
		vk.DestroyDebugReportCallback(vr.context.Instance, vr.context.debugMessenger, vr.context.Allocator)
		vr.context.debugMessenger = vk.NullDebugReportCallback
	}

	core.LogDebug("Destroying Vulkan instance...")
	vk.DestroyInstance(vr.context.Instance, vr.context.Allocator)
	return nil
}

// Resized only records the new size; the swapchain is rebuilt by the next
// BeginFrame.
func (vr *Backend) Resized(width, height uint32) error {
	vr.cachedFramebufferWidth = width
	vr.cachedFramebufferHeight = height
	vr.context.FramebufferSizeGeneration++

	core.LogInfo("Vulkan renderer backend->resized: w/h/gen: %d/%d/%d", width, height, vr.context.FramebufferSizeGeneration)
	return nil
}

func (vr *Backend) FramesInFlight() uint32 {
	return vr.config.FramesInFlight
}

func (vr *Backend) UniformAlignment() uint64 {
	return vr.alignment
}

func (vr *Backend) timeoutNs() uint64 {
	if vr.config.FenceTimeout.Duration <= 0 {
		return math.MaxUint64
	}
	return uint64(vr.config.FenceTimeout.Nanoseconds())
}

func (vr *Backend) BeginFrame(deltaTime float64) (bool, error) {
	device := vr.context.Device
	if vr.context.RecreatingSwapchain {
		if result := vk.DeviceWaitIdle(device.LogicalDevice); !VulkanResultIsSuccess(result) {
			return false, fmt.Errorf("BeginFrame vkDeviceWaitIdle failed: '%s'", VulkanResultString(result, true))
		}
		core.LogInfo("Recreating swapchain, booting.")
		return false, nil
	}

	if vr.context.FramebufferSizeGeneration != vr.context.FramebufferSizeLastGeneration {
		if result := vk.DeviceWaitIdle(device.LogicalDevice); !VulkanResultIsSuccess(result) {
			return false, fmt.Errorf("BeginFrame vkDeviceWaitIdle failed: '%s'", VulkanResultString(result, true))
		}
		// A minimized window keeps the generation mismatch until it has a size again.
		if err := vr.recreateSwapchain(); err != nil {
			return false, err
		}
		core.LogInfo("Resized, booting.")
		return false, nil
	}

	// The fence of this slot guards its semaphores and the command buffers it last used.
	if err := vr.context.InFlightFences[vr.context.CurrentFrame].FenceWait(vr.context, vr.timeoutNs()); err != nil {
		return false, fmt.Errorf("in-flight fence wait: %w", err)
	}

	imageIndex, err := vr.context.Swapchain.SwapchainAcquireNextImageIndex(vr.context, math.MaxUint64, vr.context.ImageAvailableSemaphores[vr.context.CurrentFrame], vk.NullFence)
	if errors.Is(err, core.ErrSwapchainBooting) {
		vr.context.FramebufferSizeGeneration++
		return false, nil
	}
	if err != nil {
		return false, err
	}
	vr.context.ImageIndex = imageIndex

	// Another slot may still be rendering into this image.
	if f := vr.context.ImagesInFlight[imageIndex]; f != nil {
		if err := f.FenceWait(vr.context, vr.timeoutNs()); err != nil {
			return false, fmt.Errorf("image fence wait: %w", err)
		}
	}

	commandBuffer := vr.context.GraphicsCommandBuffers[imageIndex]
	if err := commandBuffer.Reset(); err != nil {
		return false, err
	}
	if err := commandBuffer.Begin(false, false, false); err != nil {
		return false, err
	}

	// Negative height flips Y so clip space points up, as in the other backends.
	viewport := vk.Viewport{
		X:        0.0,
		Y:        float32(vr.context.FramebufferHeight),
		Width:    float32(vr.context.FramebufferWidth),
		Height:   -float32(vr.context.FramebufferHeight),
		MinDepth: 0.0,
		MaxDepth: 1.0,
	}
	scissor := vk.Rect2D{
		Extent: vk.Extent2D{
			Width:  vr.context.FramebufferWidth,
			Height: vr.context.FramebufferHeight,
		},
	}
	vk.CmdSetViewport(commandBuffer.Handle, 0, 1, []vk.Viewport{viewport})
	vk.CmdSetScissor(commandBuffer.Handle, 0, 1, []vk.Rect2D{scissor})

	vr.context.MainRenderpass.W = float32(vr.context.FramebufferWidth)
	vr.context.MainRenderpass.H = float32(vr.context.FramebufferHeight)
	vr.context.MainRenderpass.RenderpassBegin(commandBuffer, vr.context.Swapchain.Framebuffers[imageIndex].Handle)

	vr.resetBindings()
	vr.inFrame = true
	return true, nil
}

func (vr *Backend) EndFrame(deltaTime float64) (metadata.FrameSignal, error) {
	if !vr.inFrame {
		return nil, fmt.Errorf("EndFrame without BeginFrame")
	}
	vr.inFrame = false

	commandBuffer := vr.context.GraphicsCommandBuffers[vr.context.ImageIndex]
	vr.context.MainRenderpass.RenderpassEnd(commandBuffer)
	if err := commandBuffer.End(); err != nil {
		return nil, err
	}

	fence := vr.context.InFlightFences[vr.context.CurrentFrame]
	vr.context.ImagesInFlight[vr.context.ImageIndex] = fence
	if err := fence.FenceReset(vr.context); err != nil {
		return nil, err
	}
	signal := fence.Signal()

	submitInfo := vk.SubmitInfo{
		SType:                vk.StructureTypeSubmitInfo,
		CommandBufferCount:   1,
		PCommandBuffers:      []vk.CommandBuffer{commandBuffer.Handle},
		SignalSemaphoreCount: 1,
		PSignalSemaphores:    []vk.Semaphore{vr.context.QueueCompleteSemaphores[vr.context.CurrentFrame]},
		WaitSemaphoreCount:   1,
		PWaitSemaphores:      []vk.Semaphore{vr.context.ImageAvailableSemaphores[vr.context.CurrentFrame]},
		// Colour writes wait for the image; everything before them may run early.
		PWaitDstStageMask: []vk.PipelineStageFlags{vk.PipelineStageFlags(vk.PipelineStageColorAttachmentOutputBit)},
	}
	err := vr.context.locks.SafeQueueCall(uint32(vr.context.Device.GraphicsQueueIndex), func() error {
		result := vk.QueueSubmit(vr.context.Device.GraphicsQueue, 1, []vk.SubmitInfo{submitInfo}, fence.Handle)
		switch result {
		case vk.Success:
			return nil
		case vk.ErrorDeviceLost:
			return fmt.Errorf("%w: vkQueueSubmit", core.ErrDeviceLost)
		}
		return fmt.Errorf("vkQueueSubmit failed with result: %s", VulkanResultString(result, true))
	})
	if err != nil {
		core.LogError(err.Error())
		return nil, err
	}
	commandBuffer.UpdateSubmitted()

	recreate, err := vr.context.Swapchain.SwapchainPresent(
		vr.context,
		vr.context.Device.PresentQueue,
		vr.context.QueueCompleteSemaphores[vr.context.CurrentFrame],
		vr.context.ImageIndex)
	if err != nil {
		return signal, err
	}
	if recreate {
		vr.context.FramebufferSizeGeneration++
	}

	vr.FrameNumber++
	return signal, nil
}

func (vr *Backend) createCommandBuffers() error {
	vr.context.GraphicsCommandBuffers = make([]*VulkanCommandBuffer, vr.context.Swapchain.ImageCount)
	for i := range vr.context.GraphicsCommandBuffers {
		cb, err := NewVulkanCommandBuffer(vr.context, vr.context.Device.GraphicsCommandPool, true)
		if err != nil {
			return err
		}
		vr.context.GraphicsCommandBuffers[i] = cb
	}
	core.LogDebug("Vulkan command buffers created.")
	return nil
}

func (vr *Backend) freeCommandBuffers() {
	for _, cb := range vr.context.GraphicsCommandBuffers {
		if cb != nil {
			cb.Free(vr.context, vr.context.Device.GraphicsCommandPool)
		}
	}
	vr.context.GraphicsCommandBuffers = nil
}

func (vr *Backend) regenerateFramebuffers() error {
	swapchain := vr.context.Swapchain
	swapchain.Framebuffers = make([]*VulkanFramebuffer, swapchain.ImageCount)
	for i := range swapchain.Framebuffers {
		attachments := []vk.ImageView{
			swapchain.Views[i],
			swapchain.DepthAttachment.View,
		}
		fb, err := FramebufferCreate(vr.context, vr.context.MainRenderpass, vr.context.FramebufferWidth, vr.context.FramebufferHeight, attachments)
		if err != nil {
			return fmt.Errorf("framebuffer %d: %w", i, err)
		}
		swapchain.Framebuffers[i] = fb
	}
	return nil
}

func (vr *Backend) destroyFramebuffers() {
	if vr.context.Swapchain == nil {
		return
	}
	for _, fb := range vr.context.Swapchain.Framebuffers {
		if fb != nil {
			fb.Destroy(vr.context)
		}
	}
	vr.context.Swapchain.Framebuffers = nil
}

func (vr *Backend) recreateSwapchain() error {
	if vr.context.RecreatingSwapchain {
		core.LogDebug("recreateSwapchain called when already recreating. Booting.")
		return nil
	}

	width, height := vr.cachedFramebufferWidth, vr.cachedFramebufferHeight
	if width == 0 && height == 0 {
		width, height = vr.context.FramebufferWidth, vr.context.FramebufferHeight
	}
	if width == 0 || height == 0 {
		core.LogDebug("recreateSwapchain called when window is < 1 in a dimension. Booting.")
		return nil
	}

	vr.context.RecreatingSwapchain = true
	defer func() { vr.context.RecreatingSwapchain = false }()

	vk.DeviceWaitIdle(vr.context.Device.LogicalDevice)

	vr.destroyFramebuffers()
	vr.freeCommandBuffers()

	support, err := DeviceQuerySwapchainSupport(vr.context.Device.PhysicalDevice, vr.context.Surface)
	if err != nil {
		return err
	}
	vr.context.Device.SwapchainSupport = support

	sc, err := vr.context.Swapchain.SwapchainRecreate(vr.context, width, height, vr.config.VSync)
	if err != nil {
		return err
	}
	vr.context.Swapchain = sc

	vr.context.FramebufferWidth = sc.Extent.Width
	vr.context.FramebufferHeight = sc.Extent.Height
	vr.context.MainRenderpass.X = 0
	vr.context.MainRenderpass.Y = 0
	vr.context.MainRenderpass.W = float32(vr.context.FramebufferWidth)
	vr.context.MainRenderpass.H = float32(vr.context.FramebufferHeight)
	vr.cachedFramebufferWidth = 0
	vr.cachedFramebufferHeight = 0
	vr.context.FramebufferSizeLastGeneration = vr.context.FramebufferSizeGeneration

	vr.context.ImagesInFlight = make([]*VulkanFence, sc.ImageCount)
	if err := vr.regenerateFramebuffers(); err != nil {
		return err
	}
	return vr.createCommandBuffers()
}

func (vr *Backend) CreateBuffer(kind metadata.RenderBufferType, size uint64, label string) (*metadata.RenderBuffer, error) {
	if size == 0 {
		return nil, fmt.Errorf("buffer %q has zero size", label)
	}
	usage, flags, err := bufferUsage(kind)
	if err != nil {
		return nil, err
	}
	buffer, err := NewVulkanBuffer(vr.context, size, usage, flags)
	if err != nil {
		return nil, fmt.Errorf("buffer %q: %w", label, err)
	}
	core.LogDebug("created %s buffer %q of %d bytes", kind, label, size)
	return &metadata.RenderBuffer{
		RenderBufferType: kind,
		TotalSize:        size,
		Label:            label,
		InternalData:     buffer,
	}, nil
}

func internalBuffer(buffer *metadata.RenderBuffer) (*VulkanBuffer, error) {
	if buffer == nil {
		return nil, fmt.Errorf("nil buffer")
	}
	vb, ok := buffer.InternalData.(*VulkanBuffer)
	if !ok || vb == nil {
		return nil, fmt.Errorf("buffer %q was not created by the vulkan backend", buffer.Label)
	}
	return vb, nil
}

// WriteBuffer copies straight into mapped memory for host-visible buffers
// and goes through a staging copy for device-local ones.
func (vr *Backend) WriteBuffer(buffer *metadata.RenderBuffer, offset uint64, data []byte) error {
	vb, err := internalBuffer(buffer)
	if err != nil {
		return err
	}
	if vb.HostVisible() {
		return vb.Write(offset, data)
	}
	if offset+uint64(len(data)) > vb.Size {
		return fmt.Errorf("write [%d,%d) past the end of %q (%d bytes)", offset, offset+uint64(len(data)), buffer.Label, vb.Size)
	}
	return uploadStaged(vr.context, vb, offset, data)
}

// DestroyBuffer frees the buffer immediately. Callers hold it until every
// frame that read it has signaled.
func (vr *Backend) DestroyBuffer(buffer *metadata.RenderBuffer) {
	vb, err := internalBuffer(buffer)
	if err != nil {
		return
	}
	if vr.descriptors != nil {
		vr.descriptors.ForgetBuffer(vb)
	}
	vb.Destroy(vr.context)
	buffer.InternalData = nil
}

func (vr *Backend) CreateTexture(texture *metadata.Texture, pixels []uint8) error {
	if want := texture.ByteSize(); uint64(len(pixels)) != want {
		return fmt.Errorf("texture %q expects %d bytes of RGBA8, got %d", texture.Name, want, len(pixels))
	}

	image, err := ImageCreate(
		vr.context,
		texture.Width,
		texture.Height,
		vk.FormatR8g8b8a8Unorm,
		vk.ImageUsageFlags(vk.ImageUsageTransferDstBit|vk.ImageUsageSampledBit),
		vk.ImageAspectFlags(vk.ImageAspectColorBit))
	if err != nil {
		return fmt.Errorf("texture %q: %w", texture.Name, err)
	}
	if err := image.Upload(vr.context, pixels); err != nil {
		image.ImageDestroy(vr.context)
		return fmt.Errorf("texture %q: %w", texture.Name, err)
	}

	// A reload replaces the old image once the GPU is done with it.
	if old, ok := texture.InternalData.(*VulkanImage); ok && old != nil {
		vk.DeviceWaitIdle(vr.context.Device.LogicalDevice)
		vr.descriptors.ForgetTexture(texture)
		old.ImageDestroy(vr.context)
	}
	texture.InternalData = image
	texture.ChannelCount = 4
	texture.Generation++
	return nil
}

func (vr *Backend) DestroyTexture(texture *metadata.Texture) {
	image, ok := texture.InternalData.(*VulkanImage)
	if !ok || image == nil {
		return
	}
	vk.DeviceWaitIdle(vr.context.Device.LogicalDevice)
	vr.descriptors.ForgetTexture(texture)
	image.ImageDestroy(vr.context)
	texture.InternalData = nil
}

func (vr *Backend) CreatePipeline(cfg *metadata.PipelineConfig) (*metadata.Pipeline, error) {
	p, err := NewGraphicsPipeline(vr.context, vr.descriptors, cfg)
	if err != nil {
		return nil, err
	}
	return &metadata.Pipeline{Name: cfg.Name, Config: cfg, InternalData: p}, nil
}

func (vr *Backend) DestroyPipeline(pipeline *metadata.Pipeline) {
	p, ok := pipeline.InternalData.(*VulkanPipeline)
	if !ok || p == nil {
		return
	}
	vk.DeviceWaitIdle(vr.context.Device.LogicalDevice)
	p.Destroy(vr.context)
	pipeline.InternalData = nil
}

func (vr *Backend) resetBindings() {
	vr.pipeline = nil
	vr.buffers = [metadata.BindingSlotCount]*bufferBinding{}
	vr.textures = nil
	vr.vertexBuffers = make(map[uint32]vertexBinding)
	vr.indexBuffer = nil
}

func (vr *Backend) BindPipeline(pipeline *metadata.Pipeline) error {
	p, ok := pipeline.InternalData.(*VulkanPipeline)
	if !ok || p == nil {
		return fmt.Errorf("pipeline %q was not created by the vulkan backend", pipeline.Name)
	}
	vr.pipeline = p
	return nil
}

func (vr *Backend) BindBufferRange(slot metadata.BindingSlot, buffer *metadata.RenderBuffer, offset, size uint64) error {
	if slot != metadata.BindingSlotCamera && slot != metadata.BindingSlotInstance {
		return fmt.Errorf("slot %s does not take a buffer", slot)
	}
	vb, err := internalBuffer(buffer)
	if err != nil {
		return err
	}
	if offset%vr.alignment != 0 {
		return fmt.Errorf("offset %d of %q is not aligned to %d", offset, buffer.Label, vr.alignment)
	}
	if offset+size > vb.Size || offset > math.MaxUint32 {
		return fmt.Errorf("range [%d,%d) outside of %q (%d bytes)", offset, offset+size, buffer.Label, vb.Size)
	}
	vr.buffers[slot] = &bufferBinding{buffer: vb, offset: offset, size: size}
	return nil
}

func (vr *Backend) BindTextures(textures []*metadata.Texture) error {
	vr.textures = append(vr.textures[:0], textures...)
	return nil
}

func (vr *Backend) BindVertexBuffer(slot uint32, buffer *metadata.RenderBuffer, offset uint64) error {
	vb, err := internalBuffer(buffer)
	if err != nil {
		return err
	}
	vr.vertexBuffers[slot] = vertexBinding{buffer: vb, offset: offset}
	return nil
}

func (vr *Backend) BindIndexBuffer(buffer *metadata.RenderBuffer, offset uint64) error {
	vb, err := internalBuffer(buffer)
	if err != nil {
		return err
	}
	vr.indexBuffer = &vertexBinding{buffer: vb, offset: offset}
	return nil
}

// DrawIndexed flushes the bound state into the command buffer and records
// the draw. Buffer ranges become dynamic offsets into cached sets.
func (vr *Backend) DrawIndexed(indexCount, firstIndex, instanceCount uint32) error {
	if !vr.inFrame {
		return fmt.Errorf("draw recorded outside of a frame")
	}
	if vr.pipeline == nil {
		return fmt.Errorf("draw without a bound pipeline")
	}
	if vr.indexBuffer == nil {
		return fmt.Errorf("draw without a bound index buffer")
	}
	cb := vr.context.GraphicsCommandBuffers[vr.context.ImageIndex]

	sets := make([]vk.DescriptorSet, 0, vr.pipeline.SetCount)
	var offsets []uint32
	for _, slot := range []metadata.BindingSlot{metadata.BindingSlotCamera, metadata.BindingSlotInstance} {
		b := vr.buffers[slot]
		if b == nil {
			return fmt.Errorf("draw without a %s buffer", slot)
		}
		set, err := vr.descriptors.BufferSet(vr.context, slot, b.buffer, b.size)
		if err != nil {
			return err
		}
		sets = append(sets, set)
		offsets = append(offsets, uint32(b.offset))
	}
	if vr.pipeline.SetCount > uint32(metadata.BindingSlotMaterial) {
		set, err := vr.descriptors.MaterialSet(vr.context, vr.textures)
		if err != nil {
			return err
		}
		sets = append(sets, set)
	}

	vr.pipeline.Bind(cb)
	vk.CmdBindDescriptorSets(cb.Handle, vk.PipelineBindPointGraphics, vr.pipeline.PipelineLayout,
		0, uint32(len(sets)), sets, uint32(len(offsets)), offsets)

	slots := make([]uint32, 0, len(vr.vertexBuffers))
	for s := range vr.vertexBuffers {
		slots = append(slots, s)
	}
	sort.Slice(slots, func(i, j int) bool { return slots[i] < slots[j] })
	for _, s := range slots {
		v := vr.vertexBuffers[s]
		vk.CmdBindVertexBuffers(cb.Handle, s, 1, []vk.Buffer{v.buffer.Handle}, []vk.DeviceSize{vk.DeviceSize(v.offset)})
	}
	vk.CmdBindIndexBuffer(cb.Handle, vr.indexBuffer.buffer.Handle, vk.DeviceSize(vr.indexBuffer.offset), vk.IndexTypeUint32)

	vk.CmdDrawIndexed(cb.Handle, indexCount, instanceCount, firstIndex, 0, 0)
	return nil
}

func dbgCallbackFunc(flags vk.DebugReportFlags, objectType vk.DebugReportObjectType, object uint64, location uint64, messageCode int32, pLayerPrefix string, pMessage string, pUserData unsafe.Pointer) vk.Bool32 {
	switch {
	case flags&vk.DebugReportFlags(vk.DebugReportErrorBit) != 0:
		core.LogError("ERROR: [%s] Code %d : %s", pLayerPrefix, messageCode, pMessage)
	case flags&vk.DebugReportFlags(vk.DebugReportWarningBit) != 0:
		core.LogWarn("WARNING: [%s] Code %d : %s", pLayerPrefix, messageCode, pMessage)
	case flags&vk.DebugReportFlags(vk.DebugReportPerformanceWarningBit) != 0:
		core.LogWarn("PERFORMANCE WARNING: [%s] Code %d : %s", pLayerPrefix, messageCode, pMessage)
	default:
		core.LogDebug("[%s] Code %d : %s", pLayerPrefix, messageCode, pMessage)
	}
	return vk.Bool32(vk.False)
}
