package vulkan

import (
	"fmt"
	"math"

	vk "github.com/goki/vulkan"

	"github.com/spaghettifunk/marionette/engine/core"
	mmath "github.com/spaghettifunk/marionette/engine/math"
)

type VulkanSwapchain struct {
	ImageFormat       vk.SurfaceFormat
	MaxFramesInFlight uint32
	Handle            vk.Swapchain
	ImageCount        uint32
	Images            []vk.Image
	Views             []vk.ImageView
	Extent            vk.Extent2D

	DepthAttachment *VulkanImage

	// framebuffers used for on-screen rendering.
	Framebuffers []*VulkanFramebuffer
}

type VulkanSwapchainSupportInfo struct {
	Capabilities     vk.SurfaceCapabilities
	FormatCount      uint32
	Formats          []vk.SurfaceFormat
	PresentModeCount uint32
	PresentModes     []vk.PresentMode
}

func SwapchainCreate(context *VulkanContext, width, height, framesInFlight uint32, vsync bool) (*VulkanSwapchain, error) {
	return createSwapchain(context, width, height, framesInFlight, vsync)
}

// SwapchainRecreate destroys vs and builds a replacement for the new size.
func (vs *VulkanSwapchain) SwapchainRecreate(context *VulkanContext, width, height uint32, vsync bool) (*VulkanSwapchain, error) {
	frames := vs.MaxFramesInFlight
	vs.destroySwapchain(context)
	return createSwapchain(context, width, height, frames, vsync)
}

func (vs *VulkanSwapchain) SwapchainDestroy(context *VulkanContext) {
	vs.destroySwapchain(context)
}

// SwapchainAcquireNextImageIndex returns core.ErrSwapchainBooting when the
// swapchain is out of date and must be recreated before rendering.
func (vs *VulkanSwapchain) SwapchainAcquireNextImageIndex(context *VulkanContext, timeoutNS uint64, imageAvailableSemaphore vk.Semaphore, fence vk.Fence) (uint32, error) {
	var imageIndex uint32
	result := vk.AcquireNextImage(context.Device.LogicalDevice, vs.Handle, timeoutNS, imageAvailableSemaphore, fence, &imageIndex)
	switch result {
	case vk.Success, vk.Suboptimal:
		return imageIndex, nil
	case vk.ErrorOutOfDate:
		return 0, core.ErrSwapchainBooting
	case vk.ErrorDeviceLost:
		return 0, fmt.Errorf("%w: vkAcquireNextImageKHR", core.ErrDeviceLost)
	}
	return 0, fmt.Errorf("failed to acquire swapchain image: %s", VulkanResultString(result, true))
}

// SwapchainPresent hands the image back for presentation. It reports
// whether the swapchain no longer matches the surface.
func (vs *VulkanSwapchain) SwapchainPresent(context *VulkanContext, presentQueue vk.Queue, renderCompleteSemaphore vk.Semaphore, presentImageIndex uint32) (bool, error) {
	presentInfo := vk.PresentInfo{
		SType:              vk.StructureTypePresentInfo,
		WaitSemaphoreCount: 1,
		PWaitSemaphores:    []vk.Semaphore{renderCompleteSemaphore},
		SwapchainCount:     1,
		PSwapchains:        []vk.Swapchain{vs.Handle},
		PImageIndices:      []uint32{presentImageIndex},
	}

	var result vk.Result
	_ = context.locks.SafeQueueCall(uint32(context.Device.PresentQueueIndex), func() error {
		result = vk.QueuePresent(presentQueue, &presentInfo)
		return nil
	})

	// Advance the frame slot even if presentation failed; the submit
	// already went out on this slot's fence.
	context.CurrentFrame = (context.CurrentFrame + 1) % vs.MaxFramesInFlight

	switch result {
	case vk.Success:
		return false, nil
	case vk.ErrorOutOfDate, vk.Suboptimal:
		return true, nil
	case vk.ErrorDeviceLost:
		return false, fmt.Errorf("%w: vkQueuePresentKHR", core.ErrDeviceLost)
	}
	return false, fmt.Errorf("failed to present swapchain image: %s", VulkanResultString(result, true))
}

func chooseSurfaceFormat(formats []vk.SurfaceFormat) vk.SurfaceFormat {
	for _, f := range formats {
		if f.Format == vk.FormatB8g8r8a8Unorm && f.ColorSpace == vk.ColorSpaceSrgbNonlinear {
			return f
		}
	}
	return formats[0]
}

// FIFO is the only mode every driver must support; mailbox replaces it
// when vsync is off.
func choosePresentMode(modes []vk.PresentMode, vsync bool) vk.PresentMode {
	if vsync {
		return vk.PresentModeFifo
	}
	for _, m := range modes {
		if m == vk.PresentModeMailbox {
			return m
		}
	}
	for _, m := range modes {
		if m == vk.PresentModeImmediate {
			return m
		}
	}
	return vk.PresentModeFifo
}

func createSwapchain(context *VulkanContext, width, height, framesInFlight uint32, vsync bool) (*VulkanSwapchain, error) {
	support := context.Device.SwapchainSupport
	if support == nil || len(support.Formats) == 0 {
		return nil, fmt.Errorf("swapchain support has not been queried")
	}

	swapchain := &VulkanSwapchain{
		MaxFramesInFlight: framesInFlight,
		ImageFormat:       chooseSurfaceFormat(support.Formats),
	}
	presentMode := choosePresentMode(support.PresentModes, vsync)

	extent := vk.Extent2D{Width: width, Height: height}
	caps := support.Capabilities
	caps.CurrentExtent.Deref()
	caps.MinImageExtent.Deref()
	caps.MaxImageExtent.Deref()
	if caps.CurrentExtent.Width != math.MaxUint32 {
		extent = caps.CurrentExtent
	}
	extent.Width = mmath.Clamp(extent.Width, caps.MinImageExtent.Width, caps.MaxImageExtent.Width)
	extent.Height = mmath.Clamp(extent.Height, caps.MinImageExtent.Height, caps.MaxImageExtent.Height)
	swapchain.Extent = extent

	imageCount := caps.MinImageCount + 1
	if caps.MaxImageCount > 0 && imageCount > caps.MaxImageCount {
		imageCount = caps.MaxImageCount
	}

	createInfo := vk.SwapchainCreateInfo{
		SType:            vk.StructureTypeSwapchainCreateInfo,
		Surface:          context.Surface,
		MinImageCount:    imageCount,
		ImageFormat:      swapchain.ImageFormat.Format,
		ImageColorSpace:  swapchain.ImageFormat.ColorSpace,
		ImageExtent:      extent,
		ImageArrayLayers: 1,
		ImageUsage:       vk.ImageUsageFlags(vk.ImageUsageColorAttachmentBit),
		ImageSharingMode: vk.SharingModeExclusive,
		PreTransform:     caps.CurrentTransform,
		CompositeAlpha:   vk.CompositeAlphaOpaqueBit,
		PresentMode:      presentMode,
		Clipped:          vk.True,
	}
	if context.Device.GraphicsQueueIndex != context.Device.PresentQueueIndex {
		createInfo.ImageSharingMode = vk.SharingModeConcurrent
		createInfo.QueueFamilyIndexCount = 2
		createInfo.PQueueFamilyIndices = []uint32{
			uint32(context.Device.GraphicsQueueIndex),
			uint32(context.Device.PresentQueueIndex),
		}
	}

	var handle vk.Swapchain
	if res := vk.CreateSwapchain(context.Device.LogicalDevice, &createInfo, context.Allocator, &handle); res != vk.Success {
		return nil, fmt.Errorf("vkCreateSwapchainKHR failed with %s", VulkanResultString(res, true))
	}
	swapchain.Handle = handle
	context.CurrentFrame = 0

	if res := vk.GetSwapchainImages(context.Device.LogicalDevice, handle, &swapchain.ImageCount, nil); res != vk.Success {
		return nil, fmt.Errorf("vkGetSwapchainImagesKHR failed with %s", VulkanResultString(res, true))
	}
	swapchain.Images = make([]vk.Image, swapchain.ImageCount)
	swapchain.Views = make([]vk.ImageView, swapchain.ImageCount)
	if res := vk.GetSwapchainImages(context.Device.LogicalDevice, handle, &swapchain.ImageCount, swapchain.Images); res != vk.Success {
		return nil, fmt.Errorf("vkGetSwapchainImagesKHR failed with %s", VulkanResultString(res, true))
	}

	for i := range swapchain.Images {
		view, err := createImageView(context, swapchain.Images[i], swapchain.ImageFormat.Format, vk.ImageAspectFlags(vk.ImageAspectColorBit))
		if err != nil {
			return nil, err
		}
		swapchain.Views[i] = view
	}

	if !DeviceDetectDepthFormat(context.Device) {
		context.Device.DepthFormat = vk.FormatUndefined
		return nil, fmt.Errorf("failed to find a supported depth format")
	}

	depth, err := ImageCreate(
		context,
		extent.Width,
		extent.Height,
		context.Device.DepthFormat,
		vk.ImageUsageFlags(vk.ImageUsageDepthStencilAttachmentBit),
		vk.ImageAspectFlags(vk.ImageAspectDepthBit))
	if err != nil {
		return nil, fmt.Errorf("failed to create depth attachment: %w", err)
	}
	swapchain.DepthAttachment = depth

	core.LogInfo("Swapchain created: %dx%d, %d images, present mode %d.", extent.Width, extent.Height, swapchain.ImageCount, presentMode)
	return swapchain, nil
}

func (vs *VulkanSwapchain) destroySwapchain(context *VulkanContext) {
	vk.DeviceWaitIdle(context.Device.LogicalDevice)
	if vs.DepthAttachment != nil {
		vs.DepthAttachment.ImageDestroy(context)
		vs.DepthAttachment = nil
	}
	// The images belong to the swapchain; only the views are ours.
	for i := range vs.Views {
		vk.DestroyImageView(context.Device.LogicalDevice, vs.Views[i], context.Allocator)
	}
	vs.Views = nil
	vk.DestroySwapchain(context.Device.LogicalDevice, vs.Handle, context.Allocator)
	vs.Handle = vk.NullSwapchain
}
