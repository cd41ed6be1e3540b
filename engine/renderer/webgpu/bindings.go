package webgpu

import (
	"fmt"
	"strings"

	"github.com/cogentcore/webgpu/wgpu"

	"github.com/spaghettifunk/marionette/engine/renderer/metadata"
)

const maxMaterialTextures = 8

type bindGroupKey struct {
	slot   metadata.BindingSlot
	buffer *wgpu.Buffer
	size   uint64
}

// bindings owns the bind group layouts shared by every pipeline and caches
// the groups built from them. Buffer groups are keyed by buffer and size;
// the offset travels as a dynamic offset at draw time.
type bindings struct {
	device    *wgpu.Device
	camera    *wgpu.BindGroupLayout
	instance  *wgpu.BindGroupLayout
	materials map[uint32]*wgpu.BindGroupLayout
	sampler   *wgpu.Sampler

	groups         map[bindGroupKey]*wgpu.BindGroup
	materialGroups map[string]*wgpu.BindGroup
}

func bufferLayoutEntry(kind wgpu.BufferBindingType, visibility wgpu.ShaderStage) wgpu.BindGroupLayoutEntry {
	return wgpu.BindGroupLayoutEntry{
		Binding:    0,
		Visibility: visibility,
		Buffer: wgpu.BufferBindingLayout{
			Type:             kind,
			HasDynamicOffset: true,
		},
	}
}

func newBindings(device *wgpu.Device) (*bindings, error) {
	b := &bindings{
		device:         device,
		materials:      make(map[uint32]*wgpu.BindGroupLayout),
		groups:         make(map[bindGroupKey]*wgpu.BindGroup),
		materialGroups: make(map[string]*wgpu.BindGroup),
	}

	var err error
	b.camera, err = device.CreateBindGroupLayout(&wgpu.BindGroupLayoutDescriptor{
		Label:   "camera",
		Entries: []wgpu.BindGroupLayoutEntry{bufferLayoutEntry(wgpu.BufferBindingTypeUniform, wgpu.ShaderStageVertex|wgpu.ShaderStageFragment)},
	})
	if err != nil {
		return nil, fmt.Errorf("camera bind group layout: %w", err)
	}
	b.instance, err = device.CreateBindGroupLayout(&wgpu.BindGroupLayoutDescriptor{
		Label:   "instance",
		Entries: []wgpu.BindGroupLayoutEntry{bufferLayoutEntry(wgpu.BufferBindingTypeReadOnlyStorage, wgpu.ShaderStageVertex)},
	})
	if err != nil {
		return nil, fmt.Errorf("instance bind group layout: %w", err)
	}
	b.sampler, err = device.CreateSampler(&wgpu.SamplerDescriptor{
		AddressModeU:  wgpu.AddressModeRepeat,
		AddressModeV:  wgpu.AddressModeRepeat,
		AddressModeW:  wgpu.AddressModeRepeat,
		MagFilter:     wgpu.FilterModeLinear,
		MinFilter:     wgpu.FilterModeLinear,
		MipmapFilter:  wgpu.MipmapFilterModeLinear,
		LodMaxClamp:   32,
		MaxAnisotropy: 1,
	})
	if err != nil {
		return nil, fmt.Errorf("sampler: %w", err)
	}
	return b, nil
}

func materialLayoutEntries(count uint32) []wgpu.BindGroupLayoutEntry {
	entries := make([]wgpu.BindGroupLayoutEntry, 0, count+1)
	entries = append(entries, wgpu.BindGroupLayoutEntry{
		Binding:    0,
		Visibility: wgpu.ShaderStageFragment,
		Sampler:    wgpu.SamplerBindingLayout{Type: wgpu.SamplerBindingTypeFiltering},
	})
	for i := uint32(1); i <= count; i++ {
		entries = append(entries, wgpu.BindGroupLayoutEntry{
			Binding:    i,
			Visibility: wgpu.ShaderStageFragment,
			Texture: wgpu.TextureBindingLayout{
				SampleType:    wgpu.TextureSampleTypeFloat,
				ViewDimension: wgpu.TextureViewDimension2D,
			},
		})
	}
	return entries
}

func (b *bindings) materialLayout(count uint32) (*wgpu.BindGroupLayout, error) {
	if count > maxMaterialTextures {
		return nil, fmt.Errorf("%d textures exceeds the limit of %d", count, maxMaterialTextures)
	}
	if l, ok := b.materials[count]; ok {
		return l, nil
	}
	l, err := b.device.CreateBindGroupLayout(&wgpu.BindGroupLayoutDescriptor{
		Label:   fmt.Sprintf("material_%d", count),
		Entries: materialLayoutEntries(count),
	})
	if err != nil {
		return nil, err
	}
	b.materials[count] = l
	return l, nil
}

// layouts returns the group layouts of a pipeline drawing with textureCount
// textures. Without textures the material group is left out.
func (b *bindings) layouts(textureCount uint32) ([]*wgpu.BindGroupLayout, error) {
	out := []*wgpu.BindGroupLayout{b.camera, b.instance}
	if textureCount == 0 {
		return out, nil
	}
	l, err := b.materialLayout(textureCount)
	if err != nil {
		return nil, err
	}
	return append(out, l), nil
}

func (b *bindings) bufferGroup(slot metadata.BindingSlot, buf *wgpu.Buffer, size uint64) (*wgpu.BindGroup, error) {
	key := bindGroupKey{slot: slot, buffer: buf, size: size}
	if g, ok := b.groups[key]; ok {
		return g, nil
	}
	layout := b.camera
	if slot == metadata.BindingSlotInstance {
		layout = b.instance
	}
	g, err := b.device.CreateBindGroup(&wgpu.BindGroupDescriptor{
		Label:  slot.String(),
		Layout: layout,
		Entries: []wgpu.BindGroupEntry{{
			Binding: 0,
			Buffer:  buf,
			Offset:  0,
			Size:    size,
		}},
	})
	if err != nil {
		return nil, fmt.Errorf("%s bind group: %w", slot, err)
	}
	b.groups[key] = g
	return g, nil
}

// materialKey identifies a texture list. The generation changes on reload,
// so groups built on a replaced view are never reused.
func materialKey(textures []*metadata.Texture) string {
	var sb strings.Builder
	for _, t := range textures {
		fmt.Fprintf(&sb, "%p:%d;", t, t.Generation)
	}
	return sb.String()
}

func (b *bindings) materialGroup(textures []*metadata.Texture) (*wgpu.BindGroup, error) {
	key := materialKey(textures)
	if g, ok := b.materialGroups[key]; ok {
		return g, nil
	}
	layout, err := b.materialLayout(uint32(len(textures)))
	if err != nil {
		return nil, err
	}
	entries := []wgpu.BindGroupEntry{{Binding: 0, Sampler: b.sampler}}
	for i, t := range textures {
		gt, ok := t.InternalData.(*gpuTexture)
		if !ok {
			return nil, fmt.Errorf("texture %q was not uploaded", t.Name)
		}
		entries = append(entries, wgpu.BindGroupEntry{Binding: uint32(i + 1), TextureView: gt.view})
	}
	g, err := b.device.CreateBindGroup(&wgpu.BindGroupDescriptor{
		Label:   "material",
		Layout:  layout,
		Entries: entries,
	})
	if err != nil {
		return nil, fmt.Errorf("material bind group: %w", err)
	}
	b.materialGroups[key] = g
	return g, nil
}

func (b *bindings) forgetBuffer(buf *wgpu.Buffer) {
	for k, g := range b.groups {
		if k.buffer == buf {
			g.Release()
			delete(b.groups, k)
		}
	}
}

func (b *bindings) forgetTexture(t *metadata.Texture) {
	prefix := fmt.Sprintf("%p:", t)
	for k, g := range b.materialGroups {
		if strings.Contains(k, prefix) {
			g.Release()
			delete(b.materialGroups, k)
		}
	}
}

func (b *bindings) release() {
	for _, g := range b.groups {
		g.Release()
	}
	for _, g := range b.materialGroups {
		g.Release()
	}
	for _, l := range b.materials {
		l.Release()
	}
	b.groups = nil
	b.materialGroups = nil
	b.materials = nil
	if b.sampler != nil {
		b.sampler.Release()
	}
	if b.instance != nil {
		b.instance.Release()
	}
	if b.camera != nil {
		b.camera.Release()
	}
}
