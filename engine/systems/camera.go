package systems

import (
	"fmt"

	"github.com/spaghettifunk/marionette/engine/core"
	"github.com/spaghettifunk/marionette/engine/renderer/components"
)

const DefaultCameraName = "default"

type cameraReference struct {
	camera         *components.Camera
	referenceCount uint32
}

type CameraSystem struct {
	Config *CameraSystemConfig
	lookup map[string]*cameraReference
	// A default, non-registered camera that always exists as a fallback.
	DefaultCamera *components.Camera
}

/** @brief The camera system configuration. */
type CameraSystemConfig struct {
	/** @brief The maximum number of named cameras managed by the system. */
	MaxCameraCount uint16
}

func NewCameraSystem(config *CameraSystemConfig) (*CameraSystem, error) {
	if config.MaxCameraCount == 0 {
		err := fmt.Errorf("func NewCameraSystem - config.MaxCameraCount must be > 0")
		core.LogError(err.Error())
		return nil, err
	}
	return &CameraSystem{
		Config:        config,
		lookup:        make(map[string]*cameraReference, config.MaxCameraCount),
		DefaultCamera: components.NewCamera(),
	}, nil
}

func (cs *CameraSystem) Shutdown() error {
	cs.lookup = make(map[string]*cameraReference)
	return nil
}

/**
 * @brief Acquires a camera by name, creating it on first use.
 * The internal reference counter is incremented.
 */
func (cs *CameraSystem) Acquire(name string) (*components.Camera, error) {
	if name == DefaultCameraName {
		return cs.DefaultCamera, nil
	}
	ref, ok := cs.lookup[name]
	if !ok {
		if len(cs.lookup) >= int(cs.Config.MaxCameraCount) {
			err := fmt.Errorf("func CameraSystem.Acquire - no slot for camera %q, adjust MaxCameraCount", name)
			core.LogError(err.Error())
			return nil, err
		}
		core.LogDebug("Creating new camera named '%s'...", name)
		ref = &cameraReference{camera: components.NewCamera()}
		cs.lookup[name] = ref
	}
	ref.referenceCount++
	return ref.camera, nil
}

/**
 * @brief Releases a camera. When the reference count reaches 0 the camera is
 * dropped and the name is free again.
 */
func (cs *CameraSystem) Release(name string) {
	if name == DefaultCameraName {
		core.LogDebug("Cannot release default camera. Nothing was done.")
		return
	}
	ref, ok := cs.lookup[name]
	if !ok {
		core.LogWarn("CameraSystem.Release failed lookup for '%s'. Nothing was done.", name)
		return
	}
	ref.referenceCount--
	if ref.referenceCount == 0 {
		ref.camera.Reset()
		delete(cs.lookup, name)
	}
}

func (cs *CameraSystem) GetDefault() *components.Camera {
	return cs.DefaultCamera
}
