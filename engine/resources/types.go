package resources

import "github.com/spaghettifunk/marionette/engine/math"

type ResourceType int

/** @brief Pre-defined resource types. */
const (
	/** @brief Text resource type. */
	ResourceTypeText ResourceType = iota
	/** @brief Binary resource type (compiled shaders). */
	ResourceTypeBinary
	/** @brief Image resource type. */
	ResourceTypeImage
	/** @brief Material resource type. */
	ResourceTypeMaterial
	/** @brief Mesh resource type (vertices, skin weights and index ranges). */
	ResourceTypeMesh
	/** @brief Bone table. */
	ResourceTypeSkeleton
	/** @brief Keyframe animation clip. */
	ResourceTypeClip
	/** @brief Custom resource type. Used by loaders outside the core engine. */
	ResourceTypeCustom
)

func (rt ResourceType) String() string {
	switch rt {
	case ResourceTypeText:
		return "text"
	case ResourceTypeBinary:
		return "binary"
	case ResourceTypeImage:
		return "image"
	case ResourceTypeMaterial:
		return "material"
	case ResourceTypeMesh:
		return "mesh"
	case ResourceTypeSkeleton:
		return "skeleton"
	case ResourceTypeClip:
		return "clip"
	}
	return "custom"
}

/**
 * @brief A generic structure for a resource. All resource loaders
 * load data into these.
 */
type Resource struct {
	/** @brief The name of the resource. */
	Name string
	/** @brief The full file path of the resource. */
	FullPath string
	Type     ResourceType
	/** @brief The size of the resource data in bytes. */
	DataSize uint64
	/** @brief The resource data. */
	Data interface{}
}

/**
 * @brief A structure to hold image resource data. Pixels are always RGBA8.
 */
type ImageResourceData struct {
	/** @brief The number of channels. */
	ChannelCount uint8
	/** @brief The width of the image. */
	Width uint32
	/** @brief The height of the image. */
	Height uint32
	/** @brief The pixel data of the image. */
	Pixels []uint8
	// HasTransparency is set when any pixel has alpha below 255.
	HasTransparency bool
}

/** @brief Parameters used when loading an image. */
type ImageResourceParams struct {
	/** @brief Indicates if the image should be flipped on the y-axis when loaded. */
	FlipY bool
}

/**
 * @brief Material configuration loaded from a file.
 */
type MaterialConfig struct {
	/** @brief The name of the material. */
	Name string
	/** @brief Base name of the shader pair to use. */
	ShaderName string
	/** @brief The diffuse colour of the material. */
	DiffuseColour math.Vec4
	/** @brief Texture names, bound in order starting at binding 0 of the material set. */
	Textures []string
	Skinned  bool
}

// ShaderResourceData is a compiled shader blob. Code is SPIR-V words for
// Vulkan or WGSL source for WebGPU.
type ShaderResourceData struct {
	Name   string
	SPIRV  []uint32
	Source string
}
