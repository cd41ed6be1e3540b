package metadata

import "github.com/spaghettifunk/marionette/engine/resources"

/** @brief Determines face culling mode during rendering. */
type FaceCullMode int

const (
	FaceCullModeNone FaceCullMode = iota
	FaceCullModeFront
	FaceCullModeBack
)

// BindingSlot names the resource groups every pipeline layout shares.
//
//	group/set 0  camera uniforms           uniform buffer, dynamic offset
//	group/set 1  instance matrices         read-only storage buffer, dynamic offset
//	group/set 2  material textures         one sampler plus TextureCount 2D textures
type BindingSlot uint32

const (
	BindingSlotCamera BindingSlot = iota
	BindingSlotInstance
	BindingSlotMaterial

	BindingSlotCount
)

func (b BindingSlot) String() string {
	switch b {
	case BindingSlotCamera:
		return "camera"
	case BindingSlotInstance:
		return "instance"
	case BindingSlotMaterial:
		return "material"
	}
	return "invalid"
}

type PipelineConfig struct {
	Name         string
	VertexFormat *resources.VertexFormat
	// SPIR-V stages for Vulkan.
	VertexSPIRV   []uint32
	FragmentSPIRV []uint32
	// WGSL module for WebGPU, with vs_main and fs_main entry points.
	WGSL         string
	CullMode     FaceCullMode
	DepthTest    bool
	TextureCount uint32
}

type Pipeline struct {
	Name   string
	Config *PipelineConfig
	/** @brief Backend pipeline and layout objects. */
	InternalData interface{}
}
