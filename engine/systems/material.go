package systems

import (
	"fmt"

	"github.com/spaghettifunk/marionette/engine/core"
	"github.com/spaghettifunk/marionette/engine/mesh"
	"github.com/spaghettifunk/marionette/engine/renderer"
	"github.com/spaghettifunk/marionette/engine/renderer/metadata"
)

type MaterialSystemConfig struct {
	/** @brief The maximum number of loaded materials. */
	MaxMaterialCount uint32
}

type materialReference struct {
	material       *mesh.Material
	textures       []string
	referenceCount uint32
}

// MaterialSystem builds materials from *.material.toml files: one pipeline
// per material plus the textures it samples.
type MaterialSystem struct {
	Config     *MaterialSystemConfig
	registered map[string]*materialReference
	// sub systems
	shaders   *ShaderSystem
	textures  *TextureSystem
	resources *ResourceSystem
	renderer  *renderer.Renderer
}

func NewMaterialSystem(config *MaterialSystemConfig, ss *ShaderSystem, ts *TextureSystem, rs *ResourceSystem, r *renderer.Renderer) (*MaterialSystem, error) {
	if config.MaxMaterialCount == 0 {
		err := fmt.Errorf("func NewMaterialSystem - config.MaxMaterialCount must be > 0")
		core.LogError(err.Error())
		return nil, err
	}
	return &MaterialSystem{
		Config:     config,
		registered: make(map[string]*materialReference),
		shaders:    ss,
		textures:   ts,
		resources:  rs,
		renderer:   r,
	}, nil
}

// Acquire returns the named material, building it on first use.
func (ms *MaterialSystem) Acquire(name string) (*mesh.Material, error) {
	if ref, ok := ms.registered[name]; ok {
		ref.referenceCount++
		return ref.material, nil
	}
	if uint32(len(ms.registered)) >= ms.Config.MaxMaterialCount {
		err := fmt.Errorf("func MaterialSystem.Acquire - no slot for material %q, adjust MaxMaterialCount", name)
		core.LogError(err.Error())
		return nil, err
	}

	cfg, err := ms.resources.Material(name)
	if err != nil {
		return nil, err
	}
	stages, err := ms.shaders.GetShader(cfg.ShaderName)
	if err != nil {
		return nil, fmt.Errorf("material %s: %w", name, err)
	}
	textures := make([]*metadata.Texture, 0, len(cfg.Textures))
	for _, tn := range cfg.Textures {
		tex, err := ms.textures.Acquire(tn)
		if err != nil {
			ms.releaseTextures(cfg.Textures[:len(textures)])
			return nil, fmt.Errorf("material %s: %w", name, err)
		}
		textures = append(textures, tex)
	}

	mat, err := mesh.NewMaterial(ms.renderer, *cfg, stages, textures)
	if err != nil {
		ms.releaseTextures(cfg.Textures)
		return nil, err
	}
	ms.registered[name] = &materialReference{material: mat, textures: cfg.Textures, referenceCount: 1}
	core.LogDebug("material %s created with shader %s and %d textures", name, cfg.ShaderName, len(textures))
	return mat, nil
}

func (ms *MaterialSystem) releaseTextures(names []string) {
	for _, tn := range names {
		ms.textures.Release(tn)
	}
}

func (ms *MaterialSystem) Release(name string) {
	ref, ok := ms.registered[name]
	if !ok {
		return
	}
	ref.referenceCount--
	if ref.referenceCount == 0 {
		ref.material.Destroy()
		ms.releaseTextures(ref.textures)
		delete(ms.registered, name)
	}
}

func (ms *MaterialSystem) Shutdown() error {
	for name, ref := range ms.registered {
		ref.material.Destroy()
		ms.releaseTextures(ref.textures)
		delete(ms.registered, name)
	}
	return nil
}
