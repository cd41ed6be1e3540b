package engine

import (
	"github.com/spaghettifunk/marionette/engine/renderer"
	"github.com/spaghettifunk/marionette/engine/systems"
)

// Game is the application the engine drives. SystemManager and Renderer are
// filled in by Engine.Initialize before FnInitialize runs.
type Game struct {
	SystemManager *systems.SystemManager
	Renderer      *renderer.Renderer
	State         interface{}
	FnInitialize  Initialize
	FnUpdate      Update
	FnRender      Render
	FnOnResize    OnResize
	FnShutdown    Shutdown
}

type Initialize func() error

// Update runs once per loop iteration, also when the frame is skipped.
type Update func(deltaTime float64) error

// Render runs between BeginFrame and EndFrame and records the draws.
type Render func(deltaTime float64) error
type OnResize func(width uint32, height uint32) error
type Shutdown func() error
