package mesh

import (
	"fmt"

	"github.com/spaghettifunk/marionette/engine/core"
	"github.com/spaghettifunk/marionette/engine/math"
	"github.com/spaghettifunk/marionette/engine/renderer"
	"github.com/spaghettifunk/marionette/engine/renderer/metadata"
	"github.com/spaghettifunk/marionette/engine/resources"
)

// Material is a pipeline plus the textures bound alongside it.
type Material struct {
	Name          string
	DiffuseColour math.Vec4
	Pipeline      *metadata.Pipeline
	Textures      []*metadata.Texture

	device renderer.RenderDevice
}

// ShaderStages holds the compiled code for one material. Vulkan reads the
// SPIR-V pair, WebGPU reads the WGSL module in Vertex.Source.
type ShaderStages struct {
	Vertex   *resources.ShaderResourceData
	Fragment *resources.ShaderResourceData
}

func NewMaterial(r *renderer.Renderer, cfg resources.MaterialConfig, shaders ShaderStages, textures []*metadata.Texture) (*Material, error) {
	if shaders.Vertex == nil {
		return nil, fmt.Errorf("%w: material %q has no vertex shader", core.ErrInvalidAsset, cfg.Name)
	}
	if len(textures) != len(cfg.Textures) {
		return nil, fmt.Errorf("%w: material %q expects %d textures, got %d", core.ErrInvalidAsset, cfg.Name, len(cfg.Textures), len(textures))
	}

	format := resources.StaticVertexFormat()
	if cfg.Skinned {
		format = resources.SkinnedVertexFormat()
	}
	pc := &metadata.PipelineConfig{
		Name:         cfg.Name,
		VertexFormat: format,
		VertexSPIRV:  shaders.Vertex.SPIRV,
		WGSL:         shaders.Vertex.Source,
		CullMode:     metadata.FaceCullModeBack,
		DepthTest:    true,
		TextureCount: uint32(len(textures)),
	}
	if shaders.Fragment != nil {
		pc.FragmentSPIRV = shaders.Fragment.SPIRV
	}

	pipeline, err := r.Device().CreatePipeline(pc)
	if err != nil {
		core.LogError("failed to create pipeline for material %s: %s", cfg.Name, err)
		return nil, err
	}
	return &Material{
		Name:          cfg.Name,
		DiffuseColour: cfg.DiffuseColour,
		Pipeline:      pipeline,
		Textures:      textures,
		device:        r.Device(),
	}, nil
}

func (m *Material) Skinned() bool {
	return m.Pipeline.Config.VertexFormat.BufferCount() > 1
}

// Bind makes the material's pipeline and textures current.
func (m *Material) Bind() error {
	if err := m.device.BindPipeline(m.Pipeline); err != nil {
		return err
	}
	if len(m.Textures) == 0 {
		return nil
	}
	return m.device.BindTextures(m.Textures)
}

func (m *Material) Destroy() {
	m.device.DestroyPipeline(m.Pipeline)
}

// UploadTexture creates a device texture from decoded RGBA8 pixels.
func UploadTexture(r *renderer.Renderer, name string, img *resources.ImageResourceData) (*metadata.Texture, error) {
	tex := &metadata.Texture{
		Name:         name,
		Width:        img.Width,
		Height:       img.Height,
		ChannelCount: img.ChannelCount,
	}
	tex.SetFlag(metadata.TextureFlagHasTransparency, img.HasTransparency)
	if err := r.Device().CreateTexture(tex, img.Pixels); err != nil {
		return nil, fmt.Errorf("failed to upload texture %s: %w", name, err)
	}
	return tex, nil
}
