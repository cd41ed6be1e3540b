package metadata

type TextureFlag uint8

const (
	// TextureFlagHasTransparency marks textures with at least one pixel
	// whose alpha is below 255.
	TextureFlagHasTransparency TextureFlag = 1 << iota
)

// Texture is a sampled 2D RGBA8 image. Backends keep their image, view
// and sampler in InternalData.
type Texture struct {
	Name         string
	Width        uint32
	Height       uint32
	ChannelCount uint8
	Flags        TextureFlag
	// Generation grows every time the pixels are uploaded again, so cached
	// bind groups can tell a reloaded texture apart.
	Generation   uint32
	InternalData interface{}
}

func (t *Texture) HasFlag(flag TextureFlag) bool {
	return t.Flags&flag != 0
}

// SetFlag sets or clears flag.
func (t *Texture) SetFlag(flag TextureFlag, on bool) {
	if on {
		t.Flags |= flag
	} else {
		t.Flags &^= flag
	}
}

// ByteSize is the size of the RGBA8 pixel data.
func (t *Texture) ByteSize() uint64 {
	return uint64(t.Width) * uint64(t.Height) * 4
}
