package vulkan

import (
	"fmt"
	"unsafe"

	vk "github.com/goki/vulkan"

	"github.com/spaghettifunk/marionette/engine/core"
	"github.com/spaghettifunk/marionette/engine/renderer/metadata"
)

// VulkanBuffer is the InternalData of every metadata.RenderBuffer this
// backend creates. Host-visible buffers stay mapped for their lifetime.
type VulkanBuffer struct {
	Handle      vk.Buffer
	Memory      vk.DeviceMemory
	Size        uint64
	Usage       vk.BufferUsageFlags
	MemoryFlags vk.MemoryPropertyFlags

	mapped unsafe.Pointer
}

func bufferUsage(kind metadata.RenderBufferType) (vk.BufferUsageFlags, vk.MemoryPropertyFlags, error) {
	hostVisible := vk.MemoryPropertyFlags(vk.MemoryPropertyHostVisibleBit | vk.MemoryPropertyHostCoherentBit)
	deviceLocal := vk.MemoryPropertyFlags(vk.MemoryPropertyDeviceLocalBit)
	switch kind {
	case metadata.RENDERBUFFER_TYPE_VERTEX:
		return vk.BufferUsageFlags(vk.BufferUsageVertexBufferBit | vk.BufferUsageTransferDstBit), deviceLocal, nil
	case metadata.RENDERBUFFER_TYPE_INDEX:
		return vk.BufferUsageFlags(vk.BufferUsageIndexBufferBit | vk.BufferUsageTransferDstBit), deviceLocal, nil
	case metadata.RENDERBUFFER_TYPE_UNIFORM:
		return vk.BufferUsageFlags(vk.BufferUsageUniformBufferBit), hostVisible, nil
	case metadata.RENDERBUFFER_TYPE_STAGING:
		return vk.BufferUsageFlags(vk.BufferUsageTransferSrcBit), hostVisible, nil
	case metadata.RENDERBUFFER_TYPE_TRANSIENT:
		return vk.BufferUsageFlags(vk.BufferUsageUniformBufferBit | vk.BufferUsageStorageBufferBit), hostVisible, nil
	}
	return 0, 0, fmt.Errorf("unsupported buffer type %s", kind)
}

func NewVulkanBuffer(context *VulkanContext, size uint64, usage vk.BufferUsageFlags, memoryFlags vk.MemoryPropertyFlags) (*VulkanBuffer, error) {
	buffer := &VulkanBuffer{Size: size, Usage: usage, MemoryFlags: memoryFlags}

	createInfo := vk.BufferCreateInfo{
		SType:       vk.StructureTypeBufferCreateInfo,
		Size:        vk.DeviceSize(size),
		Usage:       usage,
		SharingMode: vk.SharingModeExclusive,
	}
	var handle vk.Buffer
	if res := vk.CreateBuffer(context.Device.LogicalDevice, &createInfo, context.Allocator, &handle); res != vk.Success {
		return nil, fmt.Errorf("vkCreateBuffer failed with %s", VulkanResultString(res, true))
	}
	buffer.Handle = handle

	var reqs vk.MemoryRequirements
	vk.GetBufferMemoryRequirements(context.Device.LogicalDevice, handle, &reqs)
	reqs.Deref()

	memoryType, err := context.FindMemoryIndex(reqs.MemoryTypeBits, memoryFlags)
	if err != nil {
		buffer.Destroy(context)
		return nil, err
	}

	allocInfo := vk.MemoryAllocateInfo{
		SType:           vk.StructureTypeMemoryAllocateInfo,
		AllocationSize:  reqs.Size,
		MemoryTypeIndex: memoryType,
	}
	var memory vk.DeviceMemory
	if res := vk.AllocateMemory(context.Device.LogicalDevice, &allocInfo, context.Allocator, &memory); res != vk.Success {
		buffer.Destroy(context)
		return nil, fmt.Errorf("vkAllocateMemory of %d bytes failed with %s", reqs.Size, VulkanResultString(res, true))
	}
	buffer.Memory = memory

	if res := vk.BindBufferMemory(context.Device.LogicalDevice, handle, memory, 0); res != vk.Success {
		buffer.Destroy(context)
		return nil, fmt.Errorf("vkBindBufferMemory failed with %s", VulkanResultString(res, true))
	}

	if memoryFlags&vk.MemoryPropertyFlags(vk.MemoryPropertyHostVisibleBit) != 0 {
		var ptr unsafe.Pointer
		if res := vk.MapMemory(context.Device.LogicalDevice, memory, 0, vk.DeviceSize(size), 0, &ptr); res != vk.Success {
			buffer.Destroy(context)
			return nil, fmt.Errorf("vkMapMemory failed with %s", VulkanResultString(res, true))
		}
		buffer.mapped = ptr
	}
	return buffer, nil
}

func (b *VulkanBuffer) HostVisible() bool {
	return b.mapped != nil
}

// Write copies data into a mapped buffer. The memory is host-coherent, so
// no flush is needed.
func (b *VulkanBuffer) Write(offset uint64, data []byte) error {
	if b.mapped == nil {
		return fmt.Errorf("buffer is not host visible")
	}
	if offset+uint64(len(data)) > b.Size {
		return fmt.Errorf("write [%d,%d) past the end of a %d byte buffer", offset, offset+uint64(len(data)), b.Size)
	}
	dst := unsafe.Slice((*byte)(unsafe.Add(b.mapped, offset)), len(data))
	copy(dst, data)
	return nil
}

// CopyTo records a copy of size bytes from b into dst and waits for it.
func (b *VulkanBuffer) CopyTo(context *VulkanContext, srcOffset uint64, dst *VulkanBuffer, dstOffset, size uint64) error {
	return context.locks.SafeCall(BufferManagement, func() error {
		cb, err := AllocateAndBeginSingleUse(context, context.Device.GraphicsCommandPool)
		if err != nil {
			return err
		}
		region := vk.BufferCopy{
			SrcOffset: vk.DeviceSize(srcOffset),
			DstOffset: vk.DeviceSize(dstOffset),
			Size:      vk.DeviceSize(size),
		}
		vk.CmdCopyBuffer(cb.Handle, b.Handle, dst.Handle, 1, []vk.BufferCopy{region})
		return cb.EndSingleUse(context, context.Device.GraphicsCommandPool, context.Device.GraphicsQueue, uint32(context.Device.GraphicsQueueIndex))
	})
}

func (b *VulkanBuffer) Destroy(context *VulkanContext) {
	if b.mapped != nil {
		vk.UnmapMemory(context.Device.LogicalDevice, b.Memory)
		b.mapped = nil
	}
	if b.Memory != vk.NullDeviceMemory {
		vk.FreeMemory(context.Device.LogicalDevice, b.Memory, context.Allocator)
		b.Memory = vk.NullDeviceMemory
	}
	if b.Handle != vk.NullBuffer {
		vk.DestroyBuffer(context.Device.LogicalDevice, b.Handle, context.Allocator)
		b.Handle = vk.NullBuffer
	}
}

// uploadStaged writes data into a device-local buffer through a temporary
// staging buffer.
func uploadStaged(context *VulkanContext, dst *VulkanBuffer, offset uint64, data []byte) error {
	usage, flags, _ := bufferUsage(metadata.RENDERBUFFER_TYPE_STAGING)
	staging, err := NewVulkanBuffer(context, uint64(len(data)), usage, flags)
	if err != nil {
		return fmt.Errorf("failed to create staging buffer: %w", err)
	}
	defer staging.Destroy(context)
	if err := staging.Write(0, data); err != nil {
		return err
	}
	core.LogDebug("staged upload of %d bytes", len(data))
	return staging.CopyTo(context, 0, dst, offset, uint64(len(data)))
}
