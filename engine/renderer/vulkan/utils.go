package vulkan

import (
	"fmt"

	vk "github.com/goki/vulkan"
)

type resultInfo struct {
	name string
	desc string
}

var resultStrings = map[vk.Result]resultInfo{
	vk.Success:                   {"VK_SUCCESS", "command successfully completed"},
	vk.NotReady:                  {"VK_NOT_READY", "a fence or query has not yet completed"},
	vk.Timeout:                   {"VK_TIMEOUT", "a wait operation has not completed in the specified time"},
	vk.EventSet:                  {"VK_EVENT_SET", "an event is signaled"},
	vk.EventReset:                {"VK_EVENT_RESET", "an event is unsignaled"},
	vk.Incomplete:                {"VK_INCOMPLETE", "a return array was too small for the result"},
	vk.Suboptimal:                {"VK_SUBOPTIMAL_KHR", "the swapchain no longer matches the surface exactly"},
	vk.ErrorOutOfHostMemory:      {"VK_ERROR_OUT_OF_HOST_MEMORY", "a host memory allocation has failed"},
	vk.ErrorOutOfDeviceMemory:    {"VK_ERROR_OUT_OF_DEVICE_MEMORY", "a device memory allocation has failed"},
	vk.ErrorInitializationFailed: {"VK_ERROR_INITIALIZATION_FAILED", "initialization of an object could not be completed"},
	vk.ErrorDeviceLost:           {"VK_ERROR_DEVICE_LOST", "the logical or physical device has been lost"},
	vk.ErrorMemoryMapFailed:      {"VK_ERROR_MEMORY_MAP_FAILED", "mapping of a memory object has failed"},
	vk.ErrorLayerNotPresent:      {"VK_ERROR_LAYER_NOT_PRESENT", "a requested layer is not present"},
	vk.ErrorExtensionNotPresent:  {"VK_ERROR_EXTENSION_NOT_PRESENT", "a requested extension is not supported"},
	vk.ErrorFeatureNotPresent:    {"VK_ERROR_FEATURE_NOT_PRESENT", "a requested feature is not supported"},
	vk.ErrorIncompatibleDriver:   {"VK_ERROR_INCOMPATIBLE_DRIVER", "the requested Vulkan version is not supported by the driver"},
	vk.ErrorTooManyObjects:       {"VK_ERROR_TOO_MANY_OBJECTS", "too many objects of the type have already been created"},
	vk.ErrorFormatNotSupported:   {"VK_ERROR_FORMAT_NOT_SUPPORTED", "a requested format is not supported on this device"},
	vk.ErrorFragmentedPool:       {"VK_ERROR_FRAGMENTED_POOL", "a pool allocation has failed due to fragmentation"},
	vk.ErrorSurfaceLost:          {"VK_ERROR_SURFACE_LOST_KHR", "a surface is no longer available"},
	vk.ErrorNativeWindowInUse:    {"VK_ERROR_NATIVE_WINDOW_IN_USE_KHR", "the window is already in use"},
	vk.ErrorOutOfDate:            {"VK_ERROR_OUT_OF_DATE_KHR", "the surface changed and the swapchain must be recreated"},
	vk.ErrorIncompatibleDisplay:  {"VK_ERROR_INCOMPATIBLE_DISPLAY_KHR", "the display is incompatible with the swapchain"},
	vk.ErrorOutOfPoolMemory:      {"VK_ERROR_OUT_OF_POOL_MEMORY", "a descriptor pool has no space left"},
	vk.ErrorFragmentation:        {"VK_ERROR_FRAGMENTATION", "a descriptor pool creation has failed due to fragmentation"},
}

// VulkanResultString names result, optionally followed by a description.
func VulkanResultString(result vk.Result, getExtended bool) string {
	info, ok := resultStrings[result]
	if !ok {
		return fmt.Sprintf("VkResult(%d)", int32(result))
	}
	if getExtended {
		return info.name + " " + info.desc
	}
	return info.name
}

// Negative results are errors; everything else is a success code.
func VulkanResultIsSuccess(result vk.Result) bool {
	return result >= 0
}

// VulkanSafeString null-terminates s for the C API.
func VulkanSafeString(s string) string {
	if len(s) == 0 || s[len(s)-1] != 0 {
		return s + "\x00"
	}
	return s
}

func VulkanSafeStrings(list []string) []string {
	out := make([]string, len(list))
	for i := range list {
		out[i] = VulkanSafeString(list[i])
	}
	return out
}
