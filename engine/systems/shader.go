package systems

import (
	"fmt"

	"github.com/spaghettifunk/marionette/engine/config"
	"github.com/spaghettifunk/marionette/engine/core"
	"github.com/spaghettifunk/marionette/engine/mesh"
	"github.com/spaghettifunk/marionette/engine/resources"
)

/** @brief Configuration for the shader system. */
type ShaderSystemConfig struct {
	/** @brief The maximum number of shaders held in the system. */
	MaxShaderCount uint16
	/** @brief Decides which compiled form of a shader gets loaded. */
	Backend config.Backend
}

// ShaderSystem loads the code a backend needs for a shader base name:
// "<name>.vert.spv" and "<name>.frag.spv" for Vulkan, "<name>.wgsl" for
// WebGPU. The headless device accepts either.
type ShaderSystem struct {
	Config *ShaderSystemConfig
	// A lookup table for shader name->stages
	Lookup map[string]mesh.ShaderStages
	// sub systems
	resources *ResourceSystem
}

func NewShaderSystem(config *ShaderSystemConfig, rs *ResourceSystem) (*ShaderSystem, error) {
	if config.MaxShaderCount == 0 {
		err := fmt.Errorf("NewShaderSystem - config.MaxShaderCount must be greater than 0")
		core.LogError(err.Error())
		return nil, err
	}
	return &ShaderSystem{
		Config:    config,
		Lookup:    make(map[string]mesh.ShaderStages),
		resources: rs,
	}, nil
}

func (shaderSystem *ShaderSystem) Shutdown() error {
	shaderSystem.Lookup = make(map[string]mesh.ShaderStages)
	return nil
}

// GetShader returns the stages for name, loading them on first use.
func (shaderSystem *ShaderSystem) GetShader(name string) (mesh.ShaderStages, error) {
	if stages, ok := shaderSystem.Lookup[name]; ok {
		return stages, nil
	}
	if len(shaderSystem.Lookup) >= int(shaderSystem.Config.MaxShaderCount) {
		err := fmt.Errorf("ShaderSystem.GetShader - no slot for shader %q, adjust MaxShaderCount", name)
		core.LogError(err.Error())
		return mesh.ShaderStages{}, err
	}

	var stages mesh.ShaderStages
	var err error
	switch shaderSystem.Config.Backend {
	case config.BackendVulkan:
		stages, err = shaderSystem.spirv(name)
	case config.BackendWebGPU:
		stages, err = shaderSystem.wgsl(name)
	default:
		if stages, err = shaderSystem.wgsl(name); err != nil {
			stages, err = shaderSystem.spirv(name)
		}
	}
	if err != nil {
		core.LogError("failed to load shader %s for %s: %s", name, shaderSystem.Config.Backend, err)
		return mesh.ShaderStages{}, err
	}
	shaderSystem.Lookup[name] = stages
	core.LogDebug("shader %s loaded for %s", name, shaderSystem.Config.Backend)
	return stages, nil
}

func (shaderSystem *ShaderSystem) spirv(name string) (mesh.ShaderStages, error) {
	vert, err := shaderSystem.resources.Shader(name+".vert", resources.ResourceTypeBinary)
	if err != nil {
		return mesh.ShaderStages{}, err
	}
	frag, err := shaderSystem.resources.Shader(name+".frag", resources.ResourceTypeBinary)
	if err != nil {
		return mesh.ShaderStages{}, err
	}
	return mesh.ShaderStages{Vertex: vert, Fragment: frag}, nil
}

func (shaderSystem *ShaderSystem) wgsl(name string) (mesh.ShaderStages, error) {
	module, err := shaderSystem.resources.Shader(name, resources.ResourceTypeText)
	if err != nil {
		return mesh.ShaderStages{}, err
	}
	return mesh.ShaderStages{Vertex: module}, nil
}
