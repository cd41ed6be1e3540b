package vulkan

import (
	"fmt"
	"time"

	vk "github.com/goki/vulkan"

	"github.com/spaghettifunk/marionette/engine/core"
	"github.com/spaghettifunk/marionette/engine/renderer/metadata"
)

// VulkanFence wraps one per-frame-slot fence. Every submission on the fence
// bumps its serial, so a signal can tell its own submission from a later
// reuse of the same fence.
type VulkanFence struct {
	Handle     vk.Fence
	IsSignaled bool

	context *VulkanContext
	serial  uint64
}

func NewFence(context *VulkanContext, createSignaled bool) (*VulkanFence, error) {
	createInfo := vk.FenceCreateInfo{
		SType: vk.StructureTypeFenceCreateInfo,
	}
	if createSignaled {
		createInfo.Flags = vk.FenceCreateFlags(vk.FenceCreateSignaledBit)
	}

	var handle vk.Fence
	if res := vk.CreateFence(context.Device.LogicalDevice, &createInfo, context.Allocator, &handle); res != vk.Success {
		return nil, fmt.Errorf("vkCreateFence failed with %s", VulkanResultString(res, true))
	}
	return &VulkanFence{
		Handle:     handle,
		IsSignaled: createSignaled,
		context:    context,
	}, nil
}

func (vf *VulkanFence) FenceDestroy(context *VulkanContext) {
	if vf.Handle != vk.NullFence {
		vk.DestroyFence(context.Device.LogicalDevice, vf.Handle, context.Allocator)
		vf.Handle = vk.NullFence
	}
	vf.IsSignaled = false
}

// FenceWait blocks for at most timeoutNs. It returns metadata.ErrSignalTimeout
// on timeout and core.ErrDeviceLost when the driver reports a lost device.
func (vf *VulkanFence) FenceWait(context *VulkanContext, timeoutNs uint64) error {
	if vf.IsSignaled {
		return nil
	}
	result := vk.WaitForFences(context.Device.LogicalDevice, 1, []vk.Fence{vf.Handle}, vk.True, timeoutNs)
	switch result {
	case vk.Success:
		vf.IsSignaled = true
		return nil
	case vk.Timeout:
		core.LogWarn("vk_fence_wait - Timed out")
		return metadata.ErrSignalTimeout
	case vk.ErrorDeviceLost:
		core.LogError("vk_fence_wait - VK_ERROR_DEVICE_LOST.")
		return core.ErrDeviceLost
	}
	err := fmt.Errorf("vkWaitForFences failed with %s", VulkanResultString(result, true))
	core.LogError(err.Error())
	return err
}

// FenceStatus polls the fence without blocking.
func (vf *VulkanFence) FenceStatus(context *VulkanContext) (bool, error) {
	if vf.IsSignaled {
		return true, nil
	}
	result := vk.GetFenceStatus(context.Device.LogicalDevice, vf.Handle)
	switch result {
	case vk.Success:
		vf.IsSignaled = true
		return true, nil
	case vk.NotReady:
		return false, nil
	case vk.ErrorDeviceLost:
		return false, core.ErrDeviceLost
	}
	return false, fmt.Errorf("vkGetFenceStatus failed with %s", VulkanResultString(result, true))
}

func (vf *VulkanFence) FenceReset(context *VulkanContext) error {
	if !vf.IsSignaled {
		return nil
	}
	if res := vk.ResetFences(context.Device.LogicalDevice, 1, []vk.Fence{vf.Handle}); res != vk.Success {
		return fmt.Errorf("vkResetFences failed with %s", VulkanResultString(res, true))
	}
	vf.IsSignaled = false
	return nil
}

// Signal returns the completion signal of the submission about to be made
// on this fence.
func (vf *VulkanFence) Signal() metadata.FrameSignal {
	vf.serial++
	return &fenceSignal{fence: vf, serial: vf.serial}
}

type fenceSignal struct {
	fence  *VulkanFence
	serial uint64
}

// A fence is only reset after its previous submission has completed, so a
// newer serial means this submission is done.
func (s *fenceSignal) reused() bool {
	return s.fence.serial != s.serial
}

func (s *fenceSignal) Signaled() (bool, error) {
	if s.reused() {
		return true, nil
	}
	if s.fence.Handle == vk.NullFence {
		return false, core.ErrDeviceLost
	}
	return s.fence.FenceStatus(s.fence.context)
}

func (s *fenceSignal) Wait(timeout time.Duration) error {
	if s.reused() {
		return nil
	}
	if s.fence.Handle == vk.NullFence {
		return core.ErrDeviceLost
	}
	return s.fence.FenceWait(s.fence.context, uint64(timeout.Nanoseconds()))
}
