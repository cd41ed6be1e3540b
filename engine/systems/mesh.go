package systems

import (
	"fmt"

	"github.com/spaghettifunk/marionette/engine/animation"
	"github.com/spaghettifunk/marionette/engine/core"
	"github.com/spaghettifunk/marionette/engine/mesh"
	"github.com/spaghettifunk/marionette/engine/renderer"
	"github.com/spaghettifunk/marionette/engine/resources"
)

// AnimatedMeshConfig names the assets one skinned instance is built from.
// Clip may be empty, in which case the instance shows its bind pose.
type AnimatedMeshConfig struct {
	Mesh     string
	Skeleton string
	Clip     string
}

type staticReference struct {
	mesh           *mesh.StaticMesh
	materials      []string
	referenceCount uint32
}

type clipEntry struct {
	clip     *animation.Clip
	path     string
	skeleton *animation.Skeleton
}

// MeshLoaderSystem turns mesh, skeleton and clip files into uploaded meshes.
// Geometry, skeletons and clips are shared between instances.
type MeshLoaderSystem struct {
	statics   map[string]*staticReference
	skeletons map[string]*animation.Skeleton
	clips     map[string]*clipEntry
	instances map[*mesh.AnimatedMesh]string
	// sub systems
	jobSystem *JobSystem
	materials *MaterialSystem
	resources *ResourceSystem
	renderer  *renderer.Renderer
}

func NewMeshLoaderSystem(js *JobSystem, ms *MaterialSystem, rs *ResourceSystem, r *renderer.Renderer) (*MeshLoaderSystem, error) {
	return &MeshLoaderSystem{
		statics:   make(map[string]*staticReference),
		skeletons: make(map[string]*animation.Skeleton),
		clips:     make(map[string]*clipEntry),
		instances: make(map[*mesh.AnimatedMesh]string),
		jobSystem: js,
		materials: ms,
		resources: rs,
		renderer:  r,
	}, nil
}

// LoadStatic uploads the named mesh once and hands out the shared copy.
func (mls *MeshLoaderSystem) LoadStatic(name string) (*mesh.StaticMesh, error) {
	if ref, ok := mls.statics[name]; ok {
		ref.referenceCount++
		return ref.mesh, nil
	}
	data, err := mls.resources.Mesh(name)
	if err != nil {
		return nil, err
	}
	if data.Name != name {
		// statics are keyed by the name they were asked for
		data.Name = name
	}
	return mls.register(data)
}

// LoadGenerated uploads mesh data built in code, such as GeneratePlane
// output, and shares it under data.Name like a mesh loaded from disk.
func (mls *MeshLoaderSystem) LoadGenerated(data *resources.MeshData) (*mesh.StaticMesh, error) {
	if ref, ok := mls.statics[data.Name]; ok {
		ref.referenceCount++
		return ref.mesh, nil
	}
	return mls.register(data)
}

func (mls *MeshLoaderSystem) register(data *resources.MeshData) (*mesh.StaticMesh, error) {
	materials := make(map[string]*mesh.Material)
	var acquired []string
	for _, mm := range data.Materials {
		if _, ok := materials[mm.Material]; ok {
			continue
		}
		mat, err := mls.materials.Acquire(mm.Material)
		if err != nil {
			mls.releaseMaterials(acquired)
			return nil, fmt.Errorf("mesh %s: %w", data.Name, err)
		}
		materials[mm.Material] = mat
		acquired = append(acquired, mm.Material)
	}

	sm, err := mesh.NewStaticMesh(mls.renderer, data, materials)
	if err != nil {
		mls.releaseMaterials(acquired)
		return nil, err
	}
	mls.statics[data.Name] = &staticReference{mesh: sm, materials: acquired, referenceCount: 1}
	core.LogDebug("Successfully loaded mesh '%s'.", data.Name)
	return sm, nil
}

// Release drops one reference to a static mesh from LoadStatic or
// LoadGenerated.
func (mls *MeshLoaderSystem) Release(name string) {
	mls.releaseStatic(name)
}

func (mls *MeshLoaderSystem) releaseMaterials(names []string) {
	for _, n := range names {
		mls.materials.Release(n)
	}
}

func (mls *MeshLoaderSystem) releaseStatic(name string) {
	ref, ok := mls.statics[name]
	if !ok {
		return
	}
	ref.referenceCount--
	if ref.referenceCount == 0 {
		ref.mesh.Destroy()
		mls.releaseMaterials(ref.materials)
		delete(mls.statics, name)
	}
}

func (mls *MeshLoaderSystem) Skeleton(name string) (*animation.Skeleton, error) {
	if s, ok := mls.skeletons[name]; ok {
		return s, nil
	}
	s, err := mls.resources.Skeleton(name)
	if err != nil {
		return nil, err
	}
	mls.skeletons[name] = s
	return s, nil
}

// Clip loads a clip for skel. A clip is loaded once per name.
func (mls *MeshLoaderSystem) Clip(name string, skel *animation.Skeleton) (*animation.Clip, error) {
	if e, ok := mls.clips[name]; ok {
		if e.skeleton != skel {
			return nil, fmt.Errorf("%w: clip %q is bound to another skeleton", core.ErrInvalidAsset, name)
		}
		return e.clip, nil
	}
	info, ok := mls.resources.Assets().Lookup(name, resources.ResourceTypeClip)
	if !ok {
		return nil, fmt.Errorf("clip %q is not in the asset index", name)
	}
	clip, err := mls.resources.ClipAt(info.Path, skel)
	if err != nil {
		return nil, err
	}
	mls.clips[name] = &clipEntry{clip: clip, path: info.Path, skeleton: skel}
	return clip, nil
}

// LoadAnimated builds one skinned instance. Instances of the same mesh share
// its buffers and only own their bone influences and playback state.
func (mls *MeshLoaderSystem) LoadAnimated(cfg AnimatedMeshConfig) (*mesh.AnimatedMesh, error) {
	skel, err := mls.Skeleton(cfg.Skeleton)
	if err != nil {
		return nil, err
	}
	var clip *animation.Clip
	if cfg.Clip != "" {
		if clip, err = mls.Clip(cfg.Clip, skel); err != nil {
			return nil, err
		}
	}

	static, err := mls.LoadStatic(cfg.Mesh)
	if err != nil {
		return nil, err
	}
	m, err := mesh.NewAnimatedMesh(mls.renderer, static, skel, static.Data.Skin)
	if err != nil {
		mls.releaseStatic(cfg.Mesh)
		return nil, err
	}
	m.SetAnimation(clip)
	mls.instances[m] = cfg.Mesh
	return m, nil
}

func (mls *MeshLoaderSystem) Unload(m *mesh.AnimatedMesh) {
	name, ok := mls.instances[m]
	if !ok {
		return
	}
	m.Destroy()
	delete(mls.instances, m)
	mls.releaseStatic(name)
}

// ReloadClip re-reads a changed clip file on a job worker. On success every
// instance playing the clip switches to the new keys at its current
// position, then done runs with the number of instances updated.
func (mls *MeshLoaderSystem) ReloadClip(path string, done func(clip *animation.Clip, updated int)) bool {
	var entry *clipEntry
	var name string
	for n, e := range mls.clips {
		if e.path == path {
			name, entry = n, e
			break
		}
	}
	if entry == nil {
		return false
	}

	skel := entry.skeleton
	mls.jobSystem.Submit(JobTask{
		Name: "clip-reload:" + name,
		Run: func() (interface{}, error) {
			return mls.resources.ClipAt(path, skel)
		},
		OnComplete: func(result interface{}) {
			clip := result.(*animation.Clip)
			entry.clip = clip
			updated := 0
			for m := range mls.instances {
				if m.ReloadAnimation(clip) {
					updated++
				}
			}
			core.LogInfo("clip %s reloaded from %s, %d instances updated", clip.Name, path, updated)
			if done != nil {
				done(clip, updated)
			}
		},
		OnFailure: func(err error) {
			// The running clip stays in place.
			core.LogError("Failed to reload clip '%s': %s", name, err)
		},
	})
	return true
}

func (mls *MeshLoaderSystem) Shutdown() error {
	for m := range mls.instances {
		mls.Unload(m)
	}
	for name, ref := range mls.statics {
		ref.mesh.Destroy()
		mls.releaseMaterials(ref.materials)
		delete(mls.statics, name)
	}
	return nil
}
