package assets

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/spaghettifunk/marionette/engine/assets/loaders"
	"github.com/spaghettifunk/marionette/engine/core"
	"github.com/spaghettifunk/marionette/engine/resources"
)

var ErrAssetNotFound = errors.New("asset not found")

type AssetInfo struct {
	Path     string
	Name     string
	Type     resources.ResourceType
	Modified time.Time
}

// AssetManager indexes an asset directory and, with hot reload enabled,
// reports files that change on disk through Changes.
type AssetManager struct {
	dir       string
	hotReload bool

	assets  map[string]AssetInfo
	loaders map[resources.ResourceType]Loader

	mutex sync.RWMutex

	done     chan struct{}
	wg       sync.WaitGroup
	fsnotify *fsnotify.Watcher
	isClosed bool
	changes  chan AssetInfo
}

func NewAssetManager(dir string, hotReload bool) (*AssetManager, error) {
	am := &AssetManager{
		dir:       filepath.Clean(dir),
		hotReload: hotReload,
		assets:    make(map[string]AssetInfo),
		loaders:   make(map[resources.ResourceType]Loader),
		changes:   make(chan AssetInfo, 64),
		done:      make(chan struct{}),
	}
	if hotReload {
		fsWatch, err := fsnotify.NewWatcher()
		if err != nil {
			return nil, err
		}
		am.fsnotify = fsWatch
	}
	return am, nil
}

func (am *AssetManager) Initialize() error {
	am.RegisterLoader(resources.ResourceTypeSkeleton, &loaders.SkeletonLoader{})
	am.RegisterLoader(resources.ResourceTypeClip, &loaders.ClipLoader{})
	am.RegisterLoader(resources.ResourceTypeMesh, &loaders.MeshLoader{})
	am.RegisterLoader(resources.ResourceTypeMaterial, &loaders.MaterialLoader{})
	am.RegisterLoader(resources.ResourceTypeImage, &loaders.TextureLoader{})
	am.RegisterLoader(resources.ResourceTypeBinary, &loaders.BinaryLoader{})
	am.RegisterLoader(resources.ResourceTypeText, &loaders.ShaderLoader{})

	if err := am.watchRecursive(am.dir); err != nil {
		return err
	}
	if am.hotReload {
		am.wg.Add(1)
		go am.start()
	}
	core.LogInfo("asset manager indexed %d assets in %s (hot reload %t)", am.Count(), am.dir, am.hotReload)
	return nil
}

// RegisterLoader sets the loader for an asset type, replacing any previous one.
func (am *AssetManager) RegisterLoader(assetType resources.ResourceType, loader Loader) {
	am.mutex.Lock()
	defer am.mutex.Unlock()
	am.loaders[assetType] = loader
}

func (am *AssetManager) Count() int {
	am.mutex.RLock()
	defer am.mutex.RUnlock()
	return len(am.assets)
}

// Lookup finds an indexed asset by name and type.
func (am *AssetManager) Lookup(name string, resourceType resources.ResourceType) (AssetInfo, bool) {
	am.mutex.RLock()
	defer am.mutex.RUnlock()
	for _, a := range am.assets {
		if a.Name == name && a.Type == resourceType {
			return a, true
		}
	}
	return AssetInfo{}, false
}

// LoadAsset loads an indexed asset by name using the loader of its type.
func (am *AssetManager) LoadAsset(name string, resourceType resources.ResourceType, params interface{}) (*resources.Resource, error) {
	asset, ok := am.Lookup(name, resourceType)
	if !ok {
		return nil, fmt.Errorf("%w: %s %q in %s", ErrAssetNotFound, resourceType, name, am.dir)
	}
	return am.load(asset, params)
}

// LoadPath loads the asset at path, which must be in the index.
func (am *AssetManager) LoadPath(path string, params interface{}) (*resources.Resource, error) {
	am.mutex.RLock()
	asset, ok := am.assets[filepath.Clean(path)]
	am.mutex.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrAssetNotFound, path)
	}
	return am.load(asset, params)
}

func (am *AssetManager) load(asset AssetInfo, params interface{}) (*resources.Resource, error) {
	am.mutex.RLock()
	loader, exists := am.loaders[asset.Type]
	am.mutex.RUnlock()
	if !exists {
		return nil, fmt.Errorf("no loader registered for asset type: %s", asset.Type)
	}

	res, err := loader.Load(asset.Path, params)
	if err != nil {
		core.LogError("failed to load %s: %s", asset.Path, err)
		return nil, err
	}
	core.LogDebug("loaded %s %s (%d bytes)", asset.Type, asset.Name, res.DataSize)
	return res, nil
}

func (am *AssetManager) UnloadAsset(asset *resources.Resource) error {
	am.mutex.RLock()
	loader, exists := am.loaders[asset.Type]
	am.mutex.RUnlock()
	if !exists {
		return nil
	}
	return loader.Unload(asset)
}

// Changes delivers assets modified on disk. It is closed by Shutdown.
func (am *AssetManager) Changes() <-chan AssetInfo {
	return am.changes
}

func (am *AssetManager) Shutdown() error {
	am.mutex.Lock()
	if am.isClosed {
		am.mutex.Unlock()
		return nil
	}
	am.isClosed = true
	am.mutex.Unlock()

	close(am.done)
	am.wg.Wait()
	close(am.changes)
	if am.fsnotify != nil {
		return am.fsnotify.Close()
	}
	return nil
}

func (am *AssetManager) start() {
	defer am.wg.Done()
	for {
		select {
		case e, ok := <-am.fsnotify.Events:
			if !ok {
				return
			}
			s, err := os.Stat(e.Name)
			if err == nil && s != nil && s.IsDir() {
				if e.Op&fsnotify.Create != 0 {
					if err := am.watchRecursive(e.Name); err != nil {
						core.LogWarn("failed to watch %s: %s", e.Name, err)
					}
				}
				continue
			}
			if e.Op&(fsnotify.Create|fsnotify.Write) != 0 {
				if info, ok := am.handleFileEvent(e.Name); ok {
					am.notify(info)
				}
			}
			// A removed path may have been a directory; the watcher drops it on its own.
			if e.Op&(fsnotify.Remove|fsnotify.Rename) != 0 {
				am.removeAsset(e.Name)
			}

		case err, ok := <-am.fsnotify.Errors:
			if !ok {
				return
			}
			core.LogError(err.Error())

		case <-am.done:
			return
		}
	}
}

// notify never blocks the watcher; a consumer that falls behind loses events.
func (am *AssetManager) notify(info AssetInfo) {
	select {
	case am.changes <- info:
	default:
		core.LogWarn("asset change queue full, dropping reload of %s", info.Path)
	}
}

// watchRecursive indexes every file under path and, with hot reload on,
// watches every directory.
func (am *AssetManager) watchRecursive(path string) error {
	return filepath.Walk(path, func(walkPath string, fi os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if fi.IsDir() {
			if am.fsnotify != nil {
				return am.fsnotify.Add(walkPath)
			}
			return nil
		}
		am.handleFileEvent(walkPath)
		return nil
	})
}

// Handle the creation or modification of a file
func (am *AssetManager) handleFileEvent(path string) (AssetInfo, bool) {
	assetType, ok := determineAssetType(path)
	if !ok {
		return AssetInfo{}, false
	}
	info := AssetInfo{
		Path:     filepath.Clean(path),
		Name:     loaders.AssetName(path),
		Type:     assetType,
		Modified: time.Now(),
	}

	am.mutex.Lock()
	defer am.mutex.Unlock()
	am.assets[info.Path] = info
	return info, true
}

// Remove the asset from the index if it was deleted
func (am *AssetManager) removeAsset(path string) {
	am.mutex.Lock()
	defer am.mutex.Unlock()

	delete(am.assets, filepath.Clean(path))
}

func determineAssetType(path string) (resources.ResourceType, bool) {
	lower := strings.ToLower(path)
	switch {
	case strings.HasSuffix(lower, ".skeleton.toml"):
		return resources.ResourceTypeSkeleton, true
	case strings.HasSuffix(lower, ".clip.toml"):
		return resources.ResourceTypeClip, true
	case strings.HasSuffix(lower, ".mesh.toml"):
		return resources.ResourceTypeMesh, true
	case strings.HasSuffix(lower, ".material.toml"):
		return resources.ResourceTypeMaterial, true
	}
	switch filepath.Ext(lower) {
	case ".spv":
		return resources.ResourceTypeBinary, true
	case ".wgsl":
		return resources.ResourceTypeText, true
	case ".png", ".jpg", ".jpeg", ".bmp", ".webp":
		return resources.ResourceTypeImage, true
	}
	return 0, false
}
