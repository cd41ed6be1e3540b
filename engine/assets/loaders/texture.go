package loaders

import (
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"os"

	_ "golang.org/x/image/bmp"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"

	"github.com/spaghettifunk/marionette/engine/core"
	"github.com/spaghettifunk/marionette/engine/resources"
)

// TextureLoader decodes png, jpeg, bmp and webp images to RGBA8. Params may
// be a *resources.ImageResourceParams.
type TextureLoader struct{}

func (tl *TextureLoader) Load(path string, params interface{}) (*resources.Resource, error) {
	var flipY bool
	if p, ok := params.(*resources.ImageResourceParams); ok && p != nil {
		flipY = p.FlipY
	}

	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	img, format, err := image.Decode(file)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", core.ErrInvalidAsset, path, err)
	}

	b := img.Bounds()
	rgba := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(rgba, rgba.Bounds(), img, b.Min, draw.Src)
	if flipY {
		flipRows(rgba)
	}

	data := &resources.ImageResourceData{
		ChannelCount:    4,
		Width:           uint32(b.Dx()),
		Height:          uint32(b.Dy()),
		Pixels:          rgba.Pix,
		HasTransparency: hasTransparency(rgba.Pix),
	}
	core.LogDebug("decoded %s texture %s (%dx%d)", format, path, data.Width, data.Height)
	return &resources.Resource{
		Name:     AssetName(path),
		FullPath: path,
		Type:     resources.ResourceTypeImage,
		DataSize: uint64(len(rgba.Pix)),
		Data:     data,
	}, nil
}

func (tl *TextureLoader) Unload(*resources.Resource) error {
	return nil
}

func flipRows(img *image.RGBA) {
	h := img.Rect.Dy()
	tmp := make([]uint8, img.Stride)
	for y := 0; y < h/2; y++ {
		top := img.Pix[y*img.Stride : (y+1)*img.Stride]
		bottom := img.Pix[(h-1-y)*img.Stride : (h-y)*img.Stride]
		copy(tmp, top)
		copy(top, bottom)
		copy(bottom, tmp)
	}
}

func hasTransparency(pix []uint8) bool {
	for i := 3; i < len(pix); i += 4 {
		if pix[i] < 255 {
			return true
		}
	}
	return false
}
