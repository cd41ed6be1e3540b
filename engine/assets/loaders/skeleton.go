package loaders

import (
	"fmt"

	"github.com/spaghettifunk/marionette/engine/animation"
	"github.com/spaghettifunk/marionette/engine/core"
	"github.com/spaghettifunk/marionette/engine/resources"
)

type skeletonFile struct {
	GlobalInverse []float32 `toml:"global_inverse"`
	Bones         []struct {
		Name   string    `toml:"name"`
		Parent int       `toml:"parent"`
		Bind   []float32 `toml:"bind"`
	} `toml:"bones"`
}

// SkeletonLoader reads *.skeleton.toml bone tables.
type SkeletonLoader struct{}

func (sl *SkeletonLoader) Load(path string, params interface{}) (*resources.Resource, error) {
	var sf skeletonFile
	if err := decodeFile(path, &sf); err != nil {
		return nil, err
	}

	globalInverse, err := mat4FromSlice(sf.GlobalInverse)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: global_inverse: %v", core.ErrInvalidAsset, path, err)
	}
	bones := make([]animation.Bone, len(sf.Bones))
	for i, b := range sf.Bones {
		bind, err := mat4FromSlice(b.Bind)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: bone %q: bind: %v", core.ErrInvalidAsset, path, b.Name, err)
		}
		bones[i] = animation.Bone{Name: b.Name, Parent: b.Parent, BindMatrix: bind}
	}

	skel, err := animation.NewSkeleton(bones, globalInverse)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return &resources.Resource{
		Name:     AssetName(path),
		FullPath: path,
		Type:     resources.ResourceTypeSkeleton,
		DataSize: uint64(len(bones) * 64),
		Data:     skel,
	}, nil
}

func (sl *SkeletonLoader) Unload(*resources.Resource) error {
	return nil
}
