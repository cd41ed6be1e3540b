package vulkan

import (
	"sync"
	"testing"

	vk "github.com/goki/vulkan"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spaghettifunk/marionette/engine/renderer"
	"github.com/spaghettifunk/marionette/engine/renderer/metadata"
	"github.com/spaghettifunk/marionette/engine/resources"
)

var _ renderer.RenderDevice = (*Backend)(nil)

func TestVulkanSafeStrings(t *testing.T) {
	in := []string{"VK_KHR_surface", "VK_KHR_swapchain\x00"}
	out := VulkanSafeStrings(in)
	assert.Equal(t, []string{"VK_KHR_surface\x00", "VK_KHR_swapchain\x00"}, out)
	assert.Equal(t, "VK_KHR_surface", in[0], "input is not modified")
}

func TestUniqueStrings(t *testing.T) {
	assert.Equal(t, []string{"a", "b", "c"}, uniqueStrings([]string{"a", "b", "a", "c", "b"}))
}

func TestResultStrings(t *testing.T) {
	assert.Equal(t, "VK_ERROR_DEVICE_LOST", VulkanResultString(vk.ErrorDeviceLost, false))
	assert.Contains(t, VulkanResultString(vk.Timeout, true), "VK_TIMEOUT ")
	assert.Equal(t, "VkResult(-12345)", VulkanResultString(vk.Result(-12345), false))
	assert.True(t, VulkanResultIsSuccess(vk.Suboptimal))
	assert.False(t, VulkanResultIsSuccess(vk.ErrorOutOfDate))
}

func TestBufferUsage(t *testing.T) {
	usage, flags, err := bufferUsage(metadata.RENDERBUFFER_TYPE_TRANSIENT)
	require.NoError(t, err)
	assert.NotZero(t, usage&vk.BufferUsageFlags(vk.BufferUsageUniformBufferBit))
	assert.NotZero(t, usage&vk.BufferUsageFlags(vk.BufferUsageStorageBufferBit))
	assert.NotZero(t, flags&vk.MemoryPropertyFlags(vk.MemoryPropertyHostVisibleBit))

	_, flags, err = bufferUsage(metadata.RENDERBUFFER_TYPE_VERTEX)
	require.NoError(t, err)
	assert.Equal(t, vk.MemoryPropertyFlags(vk.MemoryPropertyDeviceLocalBit), flags)

	_, _, err = bufferUsage(metadata.RENDERBUFFER_TYPE_UNKNOWN)
	assert.Error(t, err)
}

func TestVertexInputFromFormat(t *testing.T) {
	format := resources.NewVertexFormat().
		AddAttribute(0, resources.VertexFormatFloat3).
		AddAttribute(0, resources.VertexFormatFloat2).
		AddAttribute(1, resources.VertexFormatUByte4).
		AddAttribute(1, resources.VertexFormatFloat4)

	bindings, attributes, err := vertexInput(format)
	require.NoError(t, err)
	require.Len(t, bindings, 2)
	assert.Equal(t, uint32(20), bindings[0].Stride)
	assert.Equal(t, uint32(20), bindings[1].Stride)

	require.Len(t, attributes, 4)
	assert.Equal(t, vk.FormatR8g8b8a8Uint, attributes[2].Format)
	assert.Equal(t, uint32(1), attributes[2].Binding)
	assert.Equal(t, uint32(4), attributes[3].Offset)
	assert.Equal(t, uint32(3), attributes[3].Location)
}

func TestCullMode(t *testing.T) {
	assert.Equal(t, vk.CullModeFlags(vk.CullModeNone), cullMode(metadata.FaceCullModeNone))
	assert.Equal(t, vk.CullModeFlags(vk.CullModeFrontBit), cullMode(metadata.FaceCullModeFront))
	assert.Equal(t, vk.CullModeFlags(vk.CullModeBackBit), cullMode(metadata.FaceCullModeBack))
}

func TestMaterialKeyTracksGeneration(t *testing.T) {
	tex := &metadata.Texture{Name: "skin"}
	before := materialKey([]*metadata.Texture{tex})
	tex.Generation++
	assert.NotEqual(t, before, materialKey([]*metadata.Texture{tex}))
}

func TestLockPoolQueuesAreIndependent(t *testing.T) {
	lp := NewVulkanLockPool()

	inside := make(chan struct{})
	release := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		_ = lp.SafeQueueCall(0, func() error {
			close(inside)
			<-release
			return nil
		})
	}()
	<-inside

	ran := false
	require.NoError(t, lp.SafeQueueCall(1, func() error {
		ran = true
		return nil
	}))
	assert.True(t, ran, "family 1 does not wait on family 0")

	close(release)
	wg.Wait()
	assert.Same(t, lp.group(BufferManagement), lp.group(BufferManagement))
}
