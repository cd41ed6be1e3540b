package vulkan

import (
	"fmt"
	"strings"

	vk "github.com/goki/vulkan"

	"github.com/spaghettifunk/marionette/engine/core"
	"github.com/spaghettifunk/marionette/engine/renderer/metadata"
)

const (
	// Sets per descriptor pool. A new pool is added when one runs out.
	descriptorSetsPerPool uint32 = 256
	// Upper bound on textures in one material set.
	maxMaterialTextures uint32 = 8
)

type bufferSetKey struct {
	slot   metadata.BindingSlot
	buffer *VulkanBuffer
	size   uint64
}

// VulkanDescriptors owns the set layouts shared by every pipeline and
// caches the descriptor sets written for them. Buffer sets use dynamic
// offsets, so one set per (buffer, range size) covers every region of a
// transient backing buffer.
type VulkanDescriptors struct {
	cameraLayout    vk.DescriptorSetLayout
	instanceLayout  vk.DescriptorSetLayout
	materialLayouts map[uint32]vk.DescriptorSetLayout
	sampler         vk.Sampler

	pools        []vk.DescriptorPool
	bufferSets   map[bufferSetKey]vk.DescriptorSet
	materialSets map[string]vk.DescriptorSet
}

func NewVulkanDescriptors(context *VulkanContext) (*VulkanDescriptors, error) {
	d := &VulkanDescriptors{
		materialLayouts: make(map[uint32]vk.DescriptorSetLayout),
		bufferSets:      make(map[bufferSetKey]vk.DescriptorSet),
		materialSets:    make(map[string]vk.DescriptorSet),
	}
	stages := vk.ShaderStageFlags(vk.ShaderStageVertexBit | vk.ShaderStageFragmentBit)

	var err error
	d.cameraLayout, err = createSetLayout(context, []vk.DescriptorSetLayoutBinding{{
		Binding:         0,
		DescriptorType:  vk.DescriptorTypeUniformBufferDynamic,
		DescriptorCount: 1,
		StageFlags:      stages,
	}})
	if err != nil {
		return nil, err
	}
	d.instanceLayout, err = createSetLayout(context, []vk.DescriptorSetLayoutBinding{{
		Binding:         0,
		DescriptorType:  vk.DescriptorTypeStorageBufferDynamic,
		DescriptorCount: 1,
		StageFlags:      vk.ShaderStageFlags(vk.ShaderStageVertexBit),
	}})
	if err != nil {
		return nil, err
	}

	samplerInfo := vk.SamplerCreateInfo{
		SType:            vk.StructureTypeSamplerCreateInfo,
		MagFilter:        vk.FilterLinear,
		MinFilter:        vk.FilterLinear,
		AddressModeU:     vk.SamplerAddressModeRepeat,
		AddressModeV:     vk.SamplerAddressModeRepeat,
		AddressModeW:     vk.SamplerAddressModeRepeat,
		AnisotropyEnable: vk.True,
		MaxAnisotropy:    16,
		BorderColor:      vk.BorderColorIntOpaqueBlack,
		CompareOp:        vk.CompareOpAlways,
		MipmapMode:       vk.SamplerMipmapModeLinear,
	}
	var sampler vk.Sampler
	if res := vk.CreateSampler(context.Device.LogicalDevice, &samplerInfo, context.Allocator, &sampler); res != vk.Success {
		return nil, fmt.Errorf("vkCreateSampler failed with %s", VulkanResultString(res, true))
	}
	d.sampler = sampler

	if err := d.addPool(context); err != nil {
		return nil, err
	}
	return d, nil
}

func createSetLayout(context *VulkanContext, bindings []vk.DescriptorSetLayoutBinding) (vk.DescriptorSetLayout, error) {
	createInfo := vk.DescriptorSetLayoutCreateInfo{
		SType:        vk.StructureTypeDescriptorSetLayoutCreateInfo,
		BindingCount: uint32(len(bindings)),
		PBindings:    bindings,
	}
	var layout vk.DescriptorSetLayout
	if res := vk.CreateDescriptorSetLayout(context.Device.LogicalDevice, &createInfo, context.Allocator, &layout); res != vk.Success {
		return vk.NullDescriptorSetLayout, fmt.Errorf("vkCreateDescriptorSetLayout failed with %s", VulkanResultString(res, true))
	}
	return layout, nil
}

// MaterialLayout is binding 0 a sampler, bindings 1..textureCount the textures.
func (d *VulkanDescriptors) MaterialLayout(context *VulkanContext, textureCount uint32) (vk.DescriptorSetLayout, error) {
	if textureCount > maxMaterialTextures {
		return vk.NullDescriptorSetLayout, fmt.Errorf("material uses %d textures, at most %d are supported", textureCount, maxMaterialTextures)
	}
	if l, ok := d.materialLayouts[textureCount]; ok {
		return l, nil
	}
	bindings := []vk.DescriptorSetLayoutBinding{{
		Binding:         0,
		DescriptorType:  vk.DescriptorTypeSampler,
		DescriptorCount: 1,
		StageFlags:      vk.ShaderStageFlags(vk.ShaderStageFragmentBit),
	}}
	for i := uint32(0); i < textureCount; i++ {
		bindings = append(bindings, vk.DescriptorSetLayoutBinding{
			Binding:         i + 1,
			DescriptorType:  vk.DescriptorTypeSampledImage,
			DescriptorCount: 1,
			StageFlags:      vk.ShaderStageFlags(vk.ShaderStageFragmentBit),
		})
	}
	l, err := createSetLayout(context, bindings)
	if err != nil {
		return l, err
	}
	d.materialLayouts[textureCount] = l
	return l, nil
}

// SetLayouts returns the layouts of a pipeline with textureCount textures.
// Pipelines without textures skip the material set.
func (d *VulkanDescriptors) SetLayouts(context *VulkanContext, textureCount uint32) ([]vk.DescriptorSetLayout, error) {
	layouts := []vk.DescriptorSetLayout{d.cameraLayout, d.instanceLayout}
	if textureCount == 0 {
		return layouts, nil
	}
	m, err := d.MaterialLayout(context, textureCount)
	if err != nil {
		return nil, err
	}
	return append(layouts, m), nil
}

func (d *VulkanDescriptors) addPool(context *VulkanContext) error {
	n := descriptorSetsPerPool
	sizes := []vk.DescriptorPoolSize{
		{Type: vk.DescriptorTypeUniformBufferDynamic, DescriptorCount: n},
		{Type: vk.DescriptorTypeStorageBufferDynamic, DescriptorCount: n},
		{Type: vk.DescriptorTypeSampler, DescriptorCount: n},
		{Type: vk.DescriptorTypeSampledImage, DescriptorCount: n * maxMaterialTextures},
	}
	createInfo := vk.DescriptorPoolCreateInfo{
		SType:         vk.StructureTypeDescriptorPoolCreateInfo,
		Flags:         vk.DescriptorPoolCreateFlags(vk.DescriptorPoolCreateFreeDescriptorSetBit),
		MaxSets:       n,
		PoolSizeCount: uint32(len(sizes)),
		PPoolSizes:    sizes,
	}
	var pool vk.DescriptorPool
	if res := vk.CreateDescriptorPool(context.Device.LogicalDevice, &createInfo, context.Allocator, &pool); res != vk.Success {
		return fmt.Errorf("vkCreateDescriptorPool failed with %s", VulkanResultString(res, true))
	}
	d.pools = append(d.pools, pool)
	core.LogDebug("descriptor pool %d created", len(d.pools))
	return nil
}

func (d *VulkanDescriptors) allocate(context *VulkanContext, layout vk.DescriptorSetLayout) (vk.DescriptorSet, error) {
	for attempt := 0; attempt < 2; attempt++ {
		allocInfo := vk.DescriptorSetAllocateInfo{
			SType:              vk.StructureTypeDescriptorSetAllocateInfo,
			DescriptorPool:     d.pools[len(d.pools)-1],
			DescriptorSetCount: 1,
			PSetLayouts:        []vk.DescriptorSetLayout{layout},
		}
		var set vk.DescriptorSet
		res := vk.AllocateDescriptorSets(context.Device.LogicalDevice, &allocInfo, &set)
		switch res {
		case vk.Success:
			return set, nil
		case vk.ErrorOutOfPoolMemory, vk.ErrorFragmentedPool:
			if err := d.addPool(context); err != nil {
				return vk.NullDescriptorSet, err
			}
			continue
		}
		return vk.NullDescriptorSet, fmt.Errorf("vkAllocateDescriptorSets failed with %s", VulkanResultString(res, true))
	}
	return vk.NullDescriptorSet, fmt.Errorf("descriptor allocation failed on a fresh pool")
}

// BufferSet returns the dynamic-offset set viewing size bytes of buffer
// through the layout of slot.
func (d *VulkanDescriptors) BufferSet(context *VulkanContext, slot metadata.BindingSlot, buffer *VulkanBuffer, size uint64) (vk.DescriptorSet, error) {
	key := bufferSetKey{slot: slot, buffer: buffer, size: size}
	if set, ok := d.bufferSets[key]; ok {
		return set, nil
	}

	var layout vk.DescriptorSetLayout
	var kind vk.DescriptorType
	switch slot {
	case metadata.BindingSlotCamera:
		layout, kind = d.cameraLayout, vk.DescriptorTypeUniformBufferDynamic
	case metadata.BindingSlotInstance:
		layout, kind = d.instanceLayout, vk.DescriptorTypeStorageBufferDynamic
	default:
		return vk.NullDescriptorSet, fmt.Errorf("slot %s does not take a buffer", slot)
	}

	var set vk.DescriptorSet
	err := context.locks.SafeCall(DescriptorManagement, func() error {
		var err error
		if set, err = d.allocate(context, layout); err != nil {
			return err
		}
		write := vk.WriteDescriptorSet{
			SType:           vk.StructureTypeWriteDescriptorSet,
			DstSet:          set,
			DstBinding:      0,
			DescriptorCount: 1,
			DescriptorType:  kind,
			PBufferInfo: []vk.DescriptorBufferInfo{{
				Buffer: buffer.Handle,
				Offset: 0,
				Range:  vk.DeviceSize(size),
			}},
		}
		vk.UpdateDescriptorSets(context.Device.LogicalDevice, 1, []vk.WriteDescriptorSet{write}, 0, nil)
		return nil
	})
	if err != nil {
		return vk.NullDescriptorSet, err
	}
	d.bufferSets[key] = set
	return set, nil
}

func materialKey(textures []*metadata.Texture) string {
	var sb strings.Builder
	for _, t := range textures {
		fmt.Fprintf(&sb, "%p:%d;", t, t.Generation)
	}
	return sb.String()
}

// MaterialSet returns the set sampling textures, in binding order.
func (d *VulkanDescriptors) MaterialSet(context *VulkanContext, textures []*metadata.Texture) (vk.DescriptorSet, error) {
	key := materialKey(textures)
	if set, ok := d.materialSets[key]; ok {
		return set, nil
	}
	layout, err := d.MaterialLayout(context, uint32(len(textures)))
	if err != nil {
		return vk.NullDescriptorSet, err
	}

	writes := []vk.WriteDescriptorSet{{
		SType:           vk.StructureTypeWriteDescriptorSet,
		DstBinding:      0,
		DescriptorCount: 1,
		DescriptorType:  vk.DescriptorTypeSampler,
		PImageInfo:      []vk.DescriptorImageInfo{{Sampler: d.sampler}},
	}}
	for i, t := range textures {
		img, ok := t.InternalData.(*VulkanImage)
		if !ok || img == nil {
			return vk.NullDescriptorSet, fmt.Errorf("texture %q has no device image", t.Name)
		}
		writes = append(writes, vk.WriteDescriptorSet{
			SType:           vk.StructureTypeWriteDescriptorSet,
			DstBinding:      uint32(i + 1),
			DescriptorCount: 1,
			DescriptorType:  vk.DescriptorTypeSampledImage,
			PImageInfo: []vk.DescriptorImageInfo{{
				ImageView:   img.View,
				ImageLayout: vk.ImageLayoutShaderReadOnlyOptimal,
			}},
		})
	}

	var set vk.DescriptorSet
	err = context.locks.SafeCall(DescriptorManagement, func() error {
		var err error
		if set, err = d.allocate(context, layout); err != nil {
			return err
		}
		for i := range writes {
			writes[i].DstSet = set
		}
		vk.UpdateDescriptorSets(context.Device.LogicalDevice, uint32(len(writes)), writes, 0, nil)
		return nil
	})
	if err != nil {
		return vk.NullDescriptorSet, err
	}
	d.materialSets[key] = set
	return set, nil
}

// ForgetBuffer drops every cached set that views buffer. The caller
// guarantees the GPU no longer uses them.
func (d *VulkanDescriptors) ForgetBuffer(buffer *VulkanBuffer) {
	for k := range d.bufferSets {
		if k.buffer == buffer {
			delete(d.bufferSets, k)
		}
	}
}

// ForgetTexture drops every cached material set sampling texture.
func (d *VulkanDescriptors) ForgetTexture(texture *metadata.Texture) {
	needle := fmt.Sprintf("%p:", texture)
	for k := range d.materialSets {
		if strings.Contains(k, needle) {
			delete(d.materialSets, k)
		}
	}
}

func (d *VulkanDescriptors) Destroy(context *VulkanContext) {
	dev := context.Device.LogicalDevice
	for _, p := range d.pools {
		vk.DestroyDescriptorPool(dev, p, context.Allocator)
	}
	d.pools = nil
	d.bufferSets = make(map[bufferSetKey]vk.DescriptorSet)
	d.materialSets = make(map[string]vk.DescriptorSet)
	for n, l := range d.materialLayouts {
		vk.DestroyDescriptorSetLayout(dev, l, context.Allocator)
		delete(d.materialLayouts, n)
	}
	if d.instanceLayout != vk.NullDescriptorSetLayout {
		vk.DestroyDescriptorSetLayout(dev, d.instanceLayout, context.Allocator)
		d.instanceLayout = vk.NullDescriptorSetLayout
	}
	if d.cameraLayout != vk.NullDescriptorSetLayout {
		vk.DestroyDescriptorSetLayout(dev, d.cameraLayout, context.Allocator)
		d.cameraLayout = vk.NullDescriptorSetLayout
	}
	if d.sampler != vk.NullSampler {
		vk.DestroySampler(dev, d.sampler, context.Allocator)
		d.sampler = vk.NullSampler
	}
}
