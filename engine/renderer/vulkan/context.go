package vulkan

import (
	"fmt"

	vk "github.com/goki/vulkan"
)

// VulkanContext holds every object the backend creates. One exists per
// Backend; nothing in this package keeps global state.
type VulkanContext struct {
	// The framebuffer's current width.
	FramebufferWidth uint32
	// The framebuffer's current height.
	FramebufferHeight uint32
	// Incremented on every resize. When it differs from
	// FramebufferSizeLastGeneration the swapchain is rebuilt.
	FramebufferSizeGeneration     uint64
	FramebufferSizeLastGeneration uint64

	Instance       vk.Instance
	Allocator      *vk.AllocationCallbacks
	Surface        vk.Surface
	debugMessenger vk.DebugReportCallback

	Device         *VulkanDevice
	Swapchain      *VulkanSwapchain
	MainRenderpass *VulkanRenderpass

	// One per swapchain image.
	GraphicsCommandBuffers []*VulkanCommandBuffer

	// One per frame in flight.
	ImageAvailableSemaphores []vk.Semaphore
	QueueCompleteSemaphores  []vk.Semaphore
	InFlightFences           []*VulkanFence

	// The fence of the frame currently using each swapchain image; not owned.
	ImagesInFlight []*VulkanFence

	ImageIndex   uint32
	CurrentFrame uint32

	RecreatingSwapchain bool

	locks *VulkanLockPool
}

func newVulkanContext() *VulkanContext {
	return &VulkanContext{
		Device: &VulkanDevice{},
		locks:  NewVulkanLockPool(),
	}
}

// FindMemoryIndex returns the first memory type allowed by typeFilter that
// has all of the requested property flags.
func (c *VulkanContext) FindMemoryIndex(typeFilter uint32, flags vk.MemoryPropertyFlags) (uint32, error) {
	props := c.Device.Memory
	for i := uint32(0); i < props.MemoryTypeCount; i++ {
		props.MemoryTypes[i].Deref()
		if typeFilter&(1<<i) != 0 && props.MemoryTypes[i].PropertyFlags&flags == flags {
			return i, nil
		}
	}
	return 0, fmt.Errorf("no memory type satisfies filter %#x with flags %#x", typeFilter, flags)
}
