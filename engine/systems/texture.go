package systems

import (
	"fmt"

	"github.com/spaghettifunk/marionette/engine/core"
	"github.com/spaghettifunk/marionette/engine/renderer"
	"github.com/spaghettifunk/marionette/engine/renderer/metadata"
	"github.com/spaghettifunk/marionette/engine/resources"
)

const DefaultTextureName = "default"

type TextureSystemConfig struct {
	/** @brief The maximum number of textures that can be loaded at once. */
	MaxTextureCount uint32
}

type textureReference struct {
	texture        *metadata.Texture
	referenceCount uint32
}

type TextureSystem struct {
	Config         *TextureSystemConfig
	DefaultTexture *metadata.Texture
	// Hashtable for texture lookups.
	registered map[string]*textureReference
	// sub systems
	jobSystem *JobSystem
	resources *ResourceSystem
	renderer  *renderer.Renderer
}

func NewTextureSystem(config *TextureSystemConfig, js *JobSystem, rs *ResourceSystem, r *renderer.Renderer) (*TextureSystem, error) {
	if config.MaxTextureCount == 0 {
		err := fmt.Errorf("func NewTextureSystem - config.MaxTextureCount must be > 0")
		core.LogError(err.Error())
		return nil, err
	}
	return &TextureSystem{
		Config:     config,
		registered: make(map[string]*textureReference),
		jobSystem:  js,
		resources:  rs,
		renderer:   r,
	}, nil
}

// checkerboard is a 256x256 blue/white pattern, made in code so that a
// missing texture never needs an asset of its own.
func checkerboard() *resources.ImageResourceData {
	const dim = 256
	const squares = 8
	img := &resources.ImageResourceData{ChannelCount: 4, Width: dim, Height: dim, Pixels: make([]uint8, dim*dim*4)}
	for row := 0; row < dim; row++ {
		for col := 0; col < dim; col++ {
			i := (row*dim + col) * 4
			img.Pixels[i+0] = 255
			img.Pixels[i+1] = 255
			img.Pixels[i+2] = 255
			img.Pixels[i+3] = 255
			if (row/(dim/squares))%2 == (col/(dim/squares))%2 {
				img.Pixels[i+0] = 0
				img.Pixels[i+1] = 0
			}
		}
	}
	return img
}

func (ts *TextureSystem) Initialize() error {
	tex, err := ts.upload(&metadata.Texture{Name: DefaultTextureName}, checkerboard())
	if err != nil {
		return err
	}
	ts.DefaultTexture = tex
	return nil
}

func (ts *TextureSystem) upload(tex *metadata.Texture, img *resources.ImageResourceData) (*metadata.Texture, error) {
	tex.Width = img.Width
	tex.Height = img.Height
	tex.ChannelCount = img.ChannelCount
	tex.SetFlag(metadata.TextureFlagHasTransparency, img.HasTransparency)
	if err := ts.renderer.Device().CreateTexture(tex, img.Pixels); err != nil {
		return nil, fmt.Errorf("failed to upload texture %s: %w", tex.Name, err)
	}
	return tex, nil
}

func (ts *TextureSystem) Shutdown() error {
	for name, ref := range ts.registered {
		ts.renderer.Device().DestroyTexture(ref.texture)
		delete(ts.registered, name)
	}
	if ts.DefaultTexture != nil {
		ts.renderer.Device().DestroyTexture(ts.DefaultTexture)
		ts.DefaultTexture = nil
	}
	return nil
}

// Acquire returns the named texture, decoding and uploading it on first use.
// An image that cannot be loaded falls back to the default texture.
func (ts *TextureSystem) Acquire(name string) (*metadata.Texture, error) {
	if name == DefaultTextureName {
		core.LogWarn("TextureSystem.Acquire called for the default texture. Use GetDefaultTexture instead")
		return ts.DefaultTexture, nil
	}
	if ref, ok := ts.registered[name]; ok {
		ref.referenceCount++
		return ref.texture, nil
	}
	if uint32(len(ts.registered)) >= ts.Config.MaxTextureCount {
		err := fmt.Errorf("func TextureSystem.Acquire - no slot for texture %q, adjust MaxTextureCount", name)
		core.LogError(err.Error())
		return nil, err
	}

	img, err := ts.resources.Image(name)
	if err != nil {
		core.LogWarn("texture %s unavailable, using the default texture: %s", name, err)
		return ts.DefaultTexture, nil
	}
	tex, err := ts.upload(&metadata.Texture{Name: name}, img)
	if err != nil {
		return nil, err
	}
	ts.registered[name] = &textureReference{texture: tex, referenceCount: 1}
	core.LogDebug("Successfully loaded texture '%s'.", name)
	return tex, nil
}

func (ts *TextureSystem) Release(name string) {
	ref, ok := ts.registered[name]
	if !ok {
		return
	}
	ref.referenceCount--
	if ref.referenceCount == 0 {
		ts.renderer.Device().DestroyTexture(ref.texture)
		delete(ts.registered, name)
	}
}

func (ts *TextureSystem) GetDefaultTexture() *metadata.Texture {
	return ts.DefaultTexture
}

// Reload decodes the image on a job worker and re-uploads it into the same
// texture on the thread that runs JobSystem.Update. Materials holding the
// texture see the new pixels without rebinding.
func (ts *TextureSystem) Reload(name string, done func()) bool {
	ref, ok := ts.registered[name]
	if !ok {
		return false
	}
	ts.jobSystem.Submit(JobTask{
		Name: "texture-reload:" + name,
		Run: func() (interface{}, error) {
			return ts.resources.Image(name)
		},
		OnComplete: func(result interface{}) {
			if ts.registered[name] != ref {
				// released while decoding
				return
			}
			if _, err := ts.upload(ref.texture, result.(*resources.ImageResourceData)); err != nil {
				core.LogError(err.Error())
				return
			}
			core.LogInfo("texture %s reloaded (generation %d)", name, ref.texture.Generation)
			if done != nil {
				done()
			}
		},
		OnFailure: func(err error) {
			core.LogError("Failed to reload texture '%s': %s", name, err)
		},
	})
	return true
}
