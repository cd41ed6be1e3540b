package systems

import (
	"github.com/spaghettifunk/marionette/engine/assets"
	"github.com/spaghettifunk/marionette/engine/config"
	"github.com/spaghettifunk/marionette/engine/core"
	"github.com/spaghettifunk/marionette/engine/renderer"
)

// jobQueueSize bounds how many decode jobs may wait for a worker.
const jobQueueSize = 64

type SystemManager struct {
	CameraSystem     *CameraSystem
	JobSystem        *JobSystem
	MaterialSystem   *MaterialSystem
	MeshLoaderSystem *MeshLoaderSystem
	ShaderSystem     *ShaderSystem
	TextureSystem    *TextureSystem
	ResourceSystem   *ResourceSystem
}

func NewSystemManager(cfg *config.Config, r *renderer.Renderer, am *assets.AssetManager) (*SystemManager, error) {
	js, err := NewJobSystem(cfg.Assets.Workers, jobQueueSize)
	if err != nil {
		return nil, err
	}
	cs, err := NewCameraSystem(&CameraSystemConfig{
		MaxCameraCount: 100,
	})
	if err != nil {
		return nil, err
	}
	rs, err := NewResourceSystem(am)
	if err != nil {
		return nil, err
	}
	ts, err := NewTextureSystem(&TextureSystemConfig{
		MaxTextureCount: 1000,
	}, js, rs, r)
	if err != nil {
		return nil, err
	}
	ssys, err := NewShaderSystem(&ShaderSystemConfig{
		MaxShaderCount: 512,
		Backend:        cfg.Renderer.Backend,
	}, rs)
	if err != nil {
		return nil, err
	}
	ms, err := NewMaterialSystem(&MaterialSystemConfig{
		MaxMaterialCount: 1000,
	}, ssys, ts, rs, r)
	if err != nil {
		return nil, err
	}
	mls, err := NewMeshLoaderSystem(js, ms, rs, r)
	if err != nil {
		return nil, err
	}
	return &SystemManager{
		CameraSystem:     cs,
		JobSystem:        js,
		TextureSystem:    ts,
		ShaderSystem:     ssys,
		MaterialSystem:   ms,
		MeshLoaderSystem: mls,
		ResourceSystem:   rs,
	}, nil
}

// Initialize creates the GPU objects every system needs up front. The
// renderer must be initialized first.
func (sm *SystemManager) Initialize() error {
	return sm.TextureSystem.Initialize()
}

// Update runs the callbacks of finished jobs on the calling goroutine.
func (sm *SystemManager) Update() {
	if n := sm.JobSystem.Update(); n > 0 {
		core.LogDebug("%d jobs completed", n)
	}
}

func (sm *SystemManager) Shutdown() error {
	// Workers finish first so that no callback lands on a released object.
	if err := sm.JobSystem.Shutdown(); err != nil {
		return err
	}
	if err := sm.MeshLoaderSystem.Shutdown(); err != nil {
		return err
	}
	if err := sm.MaterialSystem.Shutdown(); err != nil {
		return err
	}
	if err := sm.ShaderSystem.Shutdown(); err != nil {
		return err
	}
	if err := sm.TextureSystem.Shutdown(); err != nil {
		return err
	}
	if err := sm.ResourceSystem.Shutdown(); err != nil {
		return err
	}
	if err := sm.CameraSystem.Shutdown(); err != nil {
		return err
	}
	return nil
}
