package testbed

import (
	"fmt"

	"github.com/spaghettifunk/marionette/engine"
	"github.com/spaghettifunk/marionette/engine/animation"
	"github.com/spaghettifunk/marionette/engine/core"
	"github.com/spaghettifunk/marionette/engine/math"
	"github.com/spaghettifunk/marionette/engine/mesh"
	"github.com/spaghettifunk/marionette/engine/renderer/components"
	"github.com/spaghettifunk/marionette/engine/systems"
)

const (
	figureCount = 5
	moveSpeed   = 4.0
	turnSpeed   = 1.0
	// radians per pixel of right-button drag
	lookSpeed = 0.005
	// world units per wheel notch
	zoomStep = 0.5
)

type TestGame struct {
	*engine.Game
}

type gameState struct {
	WorldCamera *components.Camera

	width  uint32
	height uint32

	ground  *mesh.StaticMesh
	figures []*mesh.AnimatedMesh
	clips   []string
	current int
}

func NewTestGame() *TestGame {
	tg := &TestGame{
		Game: &engine.Game{
			State: &gameState{
				clips: []string{"wave", "idle"},
			},
		},
	}

	tg.FnInitialize = tg.Initialize
	tg.FnUpdate = tg.Update
	tg.FnRender = tg.Render
	tg.FnOnResize = tg.OnResize
	tg.FnShutdown = tg.Shutdown

	return tg
}

func (g *TestGame) Initialize() error {
	core.LogDebug("TestGame Initialize fn....")

	if g.SystemManager == nil {
		return fmt.Errorf("the engine is not yet initialized with all the system managers")
	}

	state := g.State.(*gameState)
	state.WorldCamera = g.SystemManager.CameraSystem.GetDefault()
	state.WorldCamera.SetPerspective(components.DefaultFOV, 0.1, 100)
	state.WorldCamera.LookAt(math.NewVec3(0, 2.5, 7), math.NewVec3(0, 1.5, 0))

	ground, err := g.SystemManager.MeshLoaderSystem.LoadGenerated(systems.GeneratePlane(20, 20, 4, 4, 5, 5, "ground", "ground"))
	if err != nil {
		core.LogError("failed to load the ground plane: %s", err)
		return err
	}
	state.ground = ground

	// A row of figures, each starting at a different point of the loop.
	for i := 0; i < figureCount; i++ {
		m, err := g.SystemManager.MeshLoaderSystem.LoadAnimated(systems.AnimatedMeshConfig{
			Mesh:     "figure",
			Skeleton: "figure",
			Clip:     state.clips[state.current],
		})
		if err != nil {
			core.LogError("failed to load figure %d: %s", i, err)
			return err
		}
		m.Transform.SetPosition(math.NewVec3(float32(i-figureCount/2)*1.2, 0, 0))
		m.AddTime(float32(i) * 0.15)
		state.figures = append(state.figures, m)
	}

	core.EventRegister(core.EVENT_CODE_KEY_RELEASED, g, g.gameOnKey)
	core.EventRegister(core.EVENT_CODE_ASSET_RELOADED, g, g.gameOnReload)
	return nil
}

func (g *TestGame) Update(deltaTime float64) error {
	state := g.State.(*gameState)
	dt := float32(deltaTime)
	camera := state.WorldCamera

	if core.InputIsKeyDown(core.KEY_A) || core.InputIsKeyDown(core.KEY_LEFT) {
		camera.Yaw(turnSpeed * dt)
	}
	if core.InputIsKeyDown(core.KEY_D) || core.InputIsKeyDown(core.KEY_RIGHT) {
		camera.Yaw(-turnSpeed * dt)
	}
	if core.InputIsKeyDown(core.KEY_UP) {
		camera.Pitch(turnSpeed * dt)
	}
	if core.InputIsKeyDown(core.KEY_DOWN) {
		camera.Pitch(-turnSpeed * dt)
	}
	if core.InputIsKeyDown(core.KEY_W) {
		camera.MoveForward(moveSpeed * dt)
	}
	if core.InputIsKeyDown(core.KEY_S) {
		camera.MoveBackward(moveSpeed * dt)
	}
	if core.InputIsKeyDown(core.KEY_Q) {
		camera.MoveLeft(moveSpeed * dt)
	}
	if core.InputIsKeyDown(core.KEY_E) {
		camera.MoveRight(moveSpeed * dt)
	}
	if core.InputIsKeyDown(core.KEY_SPACE) {
		camera.MoveUp(moveSpeed * dt)
	}
	if core.InputIsKeyDown(core.KEY_X) {
		camera.MoveDown(moveSpeed * dt)
	}

	if core.InputIsButtonDown(core.BUTTON_RIGHT) {
		dx, dy := core.InputGetMouseDelta()
		camera.Yaw(-float32(dx) * lookSpeed)
		camera.Pitch(-float32(dy) * lookSpeed)
	}
	if wheel := core.InputGetMouseWheel(); wheel != 0 {
		camera.MoveForward(float32(wheel) * zoomStep)
	}

	for _, m := range state.figures {
		m.AddTime(dt)
	}
	return nil
}

func (g *TestGame) Render(deltaTime float64) error {
	state := g.State.(*gameState)
	if err := state.ground.Render(state.WorldCamera); err != nil {
		return err
	}
	for _, m := range state.figures {
		if err := m.Render(state.WorldCamera); err != nil {
			return err
		}
	}
	return nil
}

func (g *TestGame) OnResize(width uint32, height uint32) error {
	state := g.State.(*gameState)
	state.width = width
	state.height = height
	if state.WorldCamera != nil {
		state.WorldCamera.SetSize(width, height)
	}
	return nil
}

func (g *TestGame) Shutdown() error {
	state := g.State.(*gameState)
	core.EventUnregister(core.EVENT_CODE_KEY_RELEASED, g)
	core.EventUnregister(core.EVENT_CODE_ASSET_RELOADED, g)
	for _, m := range state.figures {
		g.SystemManager.MeshLoaderSystem.Unload(m)
	}
	state.figures = nil
	if state.ground != nil {
		g.SystemManager.MeshLoaderSystem.Release(state.ground.Data.Name)
		state.ground = nil
	}
	return nil
}

// switchClip moves every figure to the next clip, from its start.
func (g *TestGame) switchClip() error {
	state := g.State.(*gameState)
	state.current = (state.current + 1) % len(state.clips)
	name := state.clips[state.current]

	var clip *animation.Clip
	for _, m := range state.figures {
		if clip == nil {
			var err error
			if clip, err = g.SystemManager.MeshLoaderSystem.Clip(name, m.Skeleton()); err != nil {
				return err
			}
		}
		m.SetAnimation(clip)
	}
	core.LogInfo("playing %s (%.2fs loop)", name, clip.Seconds())
	return nil
}

func (g *TestGame) gameOnKey(context core.EventContext) bool {
	ke, ok := context.Data.(*core.KeyEvent)
	if !ok {
		return false
	}
	state := g.State.(*gameState)
	switch ke.KeyCode {
	case core.KEY_C:
		if err := g.switchClip(); err != nil {
			core.LogError("failed to switch clip: %s", err)
		}
		return true
	case core.KEY_P:
		pos := state.WorldCamera.Position()
		rot := state.WorldCamera.EulerRotation()
		core.LogInfo("Camera Pos: [%.3f, %.3f, %.3f] Rot: [%.3f, %.3f, %.3f]",
			pos.X, pos.Y, pos.Z, math.RadToDeg(rot.X), math.RadToDeg(rot.Y), math.RadToDeg(rot.Z))
		return true
	case core.KEY_T:
		stats := g.Renderer.Transient().Stats()
		core.LogInfo("transient: %d regions, %d free, %d in flight over %d frames, %d growths, %d bytes",
			stats.Regions, stats.Free, stats.InFlight, stats.InFlightFrames, stats.Growths, stats.BackingBytes)
		return true
	}
	return false
}

func (g *TestGame) gameOnReload(context core.EventContext) bool {
	if ae, ok := context.Data.(*core.AssetEvent); ok {
		core.LogInfo("%s %s reloaded", ae.Kind, ae.Name)
	}
	return false
}
