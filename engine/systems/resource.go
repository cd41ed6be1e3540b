package systems

import (
	"fmt"

	"github.com/spaghettifunk/marionette/engine/animation"
	"github.com/spaghettifunk/marionette/engine/assets"
	"github.com/spaghettifunk/marionette/engine/core"
	"github.com/spaghettifunk/marionette/engine/resources"
)

// ResourceSystem is the typed face of the asset manager. Every method may
// run on a job worker: loaders only touch the file they read.
type ResourceSystem struct {
	assets *assets.AssetManager
}

func NewResourceSystem(am *assets.AssetManager) (*ResourceSystem, error) {
	if am == nil {
		err := fmt.Errorf("func NewResourceSystem - asset manager is nil")
		core.LogError(err.Error())
		return nil, err
	}
	return &ResourceSystem{assets: am}, nil
}

func (rs *ResourceSystem) Shutdown() error {
	return nil
}

func (rs *ResourceSystem) Assets() *assets.AssetManager {
	return rs.assets
}

func (rs *ResourceSystem) Skeleton(name string) (*animation.Skeleton, error) {
	res, err := rs.assets.LoadAsset(name, resources.ResourceTypeSkeleton, nil)
	if err != nil {
		return nil, err
	}
	return res.Data.(*animation.Skeleton), nil
}

// Clip loads a clip by name and checks it against skel.
func (rs *ResourceSystem) Clip(name string, skel *animation.Skeleton) (*animation.Clip, error) {
	info, ok := rs.assets.Lookup(name, resources.ResourceTypeClip)
	if !ok {
		return nil, fmt.Errorf("%w: clip %q", assets.ErrAssetNotFound, name)
	}
	return rs.ClipAt(info.Path, skel)
}

// ClipAt loads the clip file at path, as reported by a hot reload.
func (rs *ResourceSystem) ClipAt(path string, skel *animation.Skeleton) (*animation.Clip, error) {
	res, err := rs.assets.LoadPath(path, skel)
	if err != nil {
		return nil, err
	}
	clip, ok := res.Data.(*animation.Clip)
	if !ok {
		return nil, fmt.Errorf("%w: %s is not a clip", core.ErrInvalidAsset, path)
	}
	return clip, nil
}

func (rs *ResourceSystem) Mesh(name string) (*resources.MeshData, error) {
	res, err := rs.assets.LoadAsset(name, resources.ResourceTypeMesh, nil)
	if err != nil {
		return nil, err
	}
	return res.Data.(*resources.MeshData), nil
}

func (rs *ResourceSystem) Material(name string) (*resources.MaterialConfig, error) {
	res, err := rs.assets.LoadAsset(name, resources.ResourceTypeMaterial, nil)
	if err != nil {
		return nil, err
	}
	return res.Data.(*resources.MaterialConfig), nil
}

func (rs *ResourceSystem) Image(name string) (*resources.ImageResourceData, error) {
	res, err := rs.assets.LoadAsset(name, resources.ResourceTypeImage, &resources.ImageResourceParams{FlipY: true})
	if err != nil {
		return nil, err
	}
	return res.Data.(*resources.ImageResourceData), nil
}

// Shader loads one compiled stage ("skinned.vert") or a WGSL module ("skinned").
func (rs *ResourceSystem) Shader(name string, kind resources.ResourceType) (*resources.ShaderResourceData, error) {
	res, err := rs.assets.LoadAsset(name, kind, nil)
	if err != nil {
		return nil, err
	}
	return res.Data.(*resources.ShaderResourceData), nil
}
