package loaders

import (
	"fmt"

	"github.com/spaghettifunk/marionette/engine/core"
	"github.com/spaghettifunk/marionette/engine/math"
	"github.com/spaghettifunk/marionette/engine/resources"
)

type materialFile struct {
	Name          string    `toml:"name"`
	Shader        string    `toml:"shader"`
	DiffuseColour []float32 `toml:"diffuse_colour"`
	Textures      []string  `toml:"textures"`
	Skinned       bool      `toml:"skinned"`
}

type MaterialLoader struct{}

func (ml *MaterialLoader) Load(path string, params interface{}) (*resources.Resource, error) {
	var mf materialFile
	if err := decodeFile(path, &mf); err != nil {
		return nil, err
	}
	if mf.Name == "" {
		mf.Name = AssetName(path)
	}
	if mf.Shader == "" {
		return nil, fmt.Errorf("%w: %s: material %q names no shader", core.ErrInvalidAsset, path, mf.Name)
	}

	cfg := &resources.MaterialConfig{
		Name:          mf.Name,
		ShaderName:    mf.Shader,
		DiffuseColour: math.NewVec4(1, 1, 1, 1),
		Textures:      mf.Textures,
		Skinned:       mf.Skinned,
	}
	switch len(mf.DiffuseColour) {
	case 0:
	case 4:
		cfg.DiffuseColour = math.NewVec4(mf.DiffuseColour[0], mf.DiffuseColour[1], mf.DiffuseColour[2], mf.DiffuseColour[3])
	default:
		return nil, fmt.Errorf("%w: %s: invalid diffuse_colour, expected 4 values, got %d", core.ErrInvalidAsset, path, len(mf.DiffuseColour))
	}

	return &resources.Resource{
		Name:     cfg.Name,
		FullPath: path,
		Type:     resources.ResourceTypeMaterial,
		Data:     cfg,
	}, nil
}

func (ml *MaterialLoader) Unload(*resources.Resource) error {
	return nil
}
