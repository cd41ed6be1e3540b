package loaders

import (
	"fmt"
	"os"
	"strings"

	"github.com/spaghettifunk/marionette/engine/core"
	"github.com/spaghettifunk/marionette/engine/resources"
)

// ShaderLoader reads WGSL modules. Each module carries both stages, with
// vs_main and fs_main entry points.
type ShaderLoader struct{}

func (sl *ShaderLoader) Load(path string, params interface{}) (*resources.Resource, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	src := string(data)
	for _, entry := range []string{"vs_main", "fs_main"} {
		if !strings.Contains(src, entry) {
			return nil, fmt.Errorf("%w: %s: WGSL module has no %s entry point", core.ErrInvalidAsset, path, entry)
		}
	}

	name := AssetName(path)
	return &resources.Resource{
		Name:     name,
		FullPath: path,
		Type:     resources.ResourceTypeText,
		DataSize: uint64(len(data)),
		Data:     &resources.ShaderResourceData{Name: name, Source: src},
	}, nil
}

func (sl *ShaderLoader) Unload(*resources.Resource) error {
	return nil
}
