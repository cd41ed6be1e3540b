package engine

import (
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/spaghettifunk/marionette/engine/animation"
	"github.com/spaghettifunk/marionette/engine/assets"
	"github.com/spaghettifunk/marionette/engine/config"
	"github.com/spaghettifunk/marionette/engine/core"
	"github.com/spaghettifunk/marionette/engine/platform"
	"github.com/spaghettifunk/marionette/engine/renderer"
	"github.com/spaghettifunk/marionette/engine/renderer/headless"
	"github.com/spaghettifunk/marionette/engine/renderer/vulkan"
	"github.com/spaghettifunk/marionette/engine/renderer/webgpu"
	"github.com/spaghettifunk/marionette/engine/resources"
	"github.com/spaghettifunk/marionette/engine/systems"
)

type Stage uint8

const (
	// Engine is in an uninitialized state
	EngineStageUninitialized Stage = iota
	// Engine is currently initializing
	EngineStageInitializing
	// Engine initialization is complete
	EngineStageInitialized
	// Engine is currently running
	EngineStageRunning
	// Engine is in the process of shutting down
	EngineStageShuttingDown
)

// suspendedPoll is how long a minimized window sleeps between event pumps.
const suspendedPoll = 16 * time.Millisecond

type Engine struct {
	currentStage  Stage
	config        *config.Config
	gameInstance  *Game
	isRunning     atomic.Bool
	isSuspended   bool
	platform      *platform.Platform
	renderer      *renderer.Renderer
	assetManager  *assets.AssetManager
	systemManager *systems.SystemManager
	width         uint32
	height        uint32
	clock         *core.Clock
	lastTime      float64
	frameCount    uint64
	maxFrames     uint64
}

// New builds the engine for cfg. Nothing touches the window or the GPU
// before Initialize.
func New(g *Game, cfg *config.Config) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		core.LogError(err.Error())
		return nil, err
	}
	core.SetLogLevel(cfg.LogLevel())

	var p *platform.Platform
	var device renderer.RenderDevice
	switch cfg.Renderer.Backend {
	case config.BackendVulkan:
		p = platform.New()
		device = vulkan.New(p)
	case config.BackendWebGPU:
		p = platform.New()
		device = webgpu.New(p)
	case config.BackendHeadless:
		device = headless.New(int(cfg.Renderer.FramesInFlight))
	default:
		return nil, fmt.Errorf("unknown renderer backend %q", cfg.Renderer.Backend)
	}

	am, err := assets.NewAssetManager(cfg.Assets.Dir, cfg.Assets.HotReload)
	if err != nil {
		core.LogError(err.Error())
		return nil, err
	}

	r := renderer.New(device, cfg.Renderer)
	sm, err := systems.NewSystemManager(cfg, r, am)
	if err != nil {
		core.LogError(err.Error())
		return nil, err
	}

	return &Engine{
		currentStage:  EngineStageUninitialized,
		config:        cfg,
		gameInstance:  g,
		clock:         core.NewClock(),
		platform:      p,
		renderer:      r,
		assetManager:  am,
		systemManager: sm,
		width:         cfg.Application.Width,
		height:        cfg.Application.Height,
	}, nil
}

// SetFrameLimit stops Run after n frames. Zero runs until quit.
func (e *Engine) SetFrameLimit(n uint64) {
	e.maxFrames = n
}

func (e *Engine) Initialize() error {
	e.currentStage = EngineStageInitializing

	if err := core.InputInitialize(); err != nil {
		return err
	}
	if !core.EventInitialize() {
		return fmt.Errorf("failed to initialize the event system")
	}
	if err := core.MetricsInitialize(); err != nil {
		return err
	}

	core.EventRegister(core.EVENT_CODE_APPLICATION_QUIT, e, e.onEvent)
	core.EventRegister(core.EVENT_CODE_KEY_PRESSED, e, e.onKey)
	core.EventRegister(core.EVENT_CODE_RESIZED, e, e.onResized)

	if e.platform != nil {
		if err := e.platform.Startup(e.config.Application); err != nil {
			return err
		}
		e.width, e.height = e.platform.FramebufferSize()
	}

	if err := e.assetManager.Initialize(); err != nil {
		return err
	}
	core.LogInfo("%d assets indexed in %s", e.assetManager.Count(), e.config.Assets.Dir)

	if err := e.renderer.Initialize(e.config.Application.Name, e.width, e.height); err != nil {
		return err
	}
	if err := e.systemManager.Initialize(); err != nil {
		return err
	}

	e.gameInstance.SystemManager = e.systemManager
	e.gameInstance.Renderer = e.renderer
	if err := e.gameInstance.FnInitialize(); err != nil {
		return err
	}
	if err := e.gameInstance.FnOnResize(e.width, e.height); err != nil {
		return err
	}

	e.currentStage = EngineStageInitialized
	return nil
}

// Run drives frames until quit is requested. A lost device ends the loop
// with an error wrapping core.ErrDeviceLost.
func (e *Engine) Run() error {
	e.currentStage = EngineStageRunning
	e.isRunning.Store(true)

	e.clock.Start()
	e.clock.Update()
	e.lastTime = e.clock.Elapsed()

	var targetFrameSeconds float64
	if e.config.Application.TargetFPS > 0 {
		targetFrameSeconds = 1.0 / float64(e.config.Application.TargetFPS)
	}

	for e.isRunning.Load() {
		if e.platform != nil {
			e.platform.PumpMessages()
			if e.platform.ShouldClose() {
				e.Stop()
			}
		}

		// Finished decode jobs land here, on the render thread.
		e.systemManager.Update()
		e.applyAssetChanges()

		if e.isSuspended {
			time.Sleep(suspendedPoll)
			continue
		}

		e.clock.Update()
		currentTime := e.clock.Elapsed()
		delta := currentTime - e.lastTime
		frameStart := time.Now()

		if err := e.gameInstance.FnUpdate(delta); err != nil {
			core.LogError("Game update failed, shutting down: %s", err)
			return err
		}

		ok, err := e.renderer.BeginFrame(delta)
		if err != nil {
			return e.frameError(err)
		}
		if ok {
			if err := e.gameInstance.FnRender(delta); err != nil {
				core.LogError("Game render failed, shutting down: %s", err)
				return err
			}
			if err := e.renderer.EndFrame(delta); err != nil {
				return e.frameError(err)
			}
		}

		frameElapsed := time.Since(frameStart).Seconds()
		core.MetricsUpdate(frameElapsed)
		if remaining := targetFrameSeconds - frameElapsed; remaining > 0 {
			// Give the time left back to the OS.
			time.Sleep(time.Duration(remaining * float64(time.Second)))
		}

		// Input state is copied last so that this frame saw every event.
		if err := core.InputUpdate(delta); err != nil {
			return err
		}

		e.lastTime = currentTime
		e.frameCount++
		if e.maxFrames > 0 && e.frameCount >= e.maxFrames {
			core.LogInfo("frame limit %d reached", e.maxFrames)
			e.Stop()
		}
	}

	fps, frameTime := core.MetricsFrame()
	core.LogInfo("%d frames, %.1f fps, %.2f ms, %d transient growths, %d transient waits",
		e.frameCount, fps, frameTime, core.MetricsTransientGrowths(), core.MetricsTransientWaits())
	return nil
}

func (e *Engine) frameError(err error) error {
	if errors.Is(err, core.ErrDeviceLost) {
		core.LogError("render device lost after frame %d: %s", e.renderer.FrameNumber(), err)
	} else {
		core.LogError("frame %d failed: %s", e.renderer.FrameNumber(), err)
	}
	return err
}

// Stop asks Run to return after the current frame. Safe from any goroutine.
func (e *Engine) Stop() {
	e.isRunning.Store(false)
}

// applyAssetChanges hands every file changed on disk to the system that owns
// it. Decoding happens on the job workers.
func (e *Engine) applyAssetChanges() {
	for {
		select {
		case info, ok := <-e.assetManager.Changes():
			if !ok {
				return
			}
			e.reloadAsset(info)
		default:
			return
		}
	}
}

func (e *Engine) reloadAsset(info assets.AssetInfo) {
	switch info.Type {
	case resources.ResourceTypeClip:
		queued := e.systemManager.MeshLoaderSystem.ReloadClip(info.Path, func(clip *animation.Clip, updated int) {
			fireAssetReloaded(clip.Name, info.Type)
		})
		if !queued {
			core.LogDebug("clip %s changed but is not loaded", info.Path)
		}
	case resources.ResourceTypeImage:
		queued := e.systemManager.TextureSystem.Reload(info.Name, func() {
			fireAssetReloaded(info.Name, info.Type)
		})
		if !queued {
			core.LogDebug("texture %s changed but is not loaded", info.Path)
		}
	default:
		core.LogDebug("no reload for %s assets, %s ignored", info.Type, info.Path)
	}
}

func fireAssetReloaded(name string, kind resources.ResourceType) {
	core.EventFire(core.EventContext{
		Type: core.EVENT_CODE_ASSET_RELOADED,
		Data: &core.AssetEvent{Name: name, Kind: kind.String()},
	})
}

func (e *Engine) Shutdown() error {
	e.currentStage = EngineStageShuttingDown

	if e.gameInstance.FnShutdown != nil {
		if err := e.gameInstance.FnShutdown(); err != nil {
			core.LogError("game shutdown failed: %s", err)
		}
	}
	// GPU objects may only go once the frames using them are done.
	if err := e.renderer.WaitIdle(); err != nil {
		core.LogError("frames did not complete before shutdown: %s", err)
	}
	if err := e.systemManager.Shutdown(); err != nil {
		return err
	}
	if err := e.renderer.Shutdown(); err != nil {
		return err
	}
	if err := e.assetManager.Shutdown(); err != nil {
		return err
	}
	if e.platform != nil {
		if err := e.platform.Shutdown(); err != nil {
			return err
		}
	}
	if err := core.EventShutdown(); err != nil {
		return err
	}
	return core.InputShutdown()
}

// GetFramebufferSize returns the width and height (in this order)
// of the application Framebuffer
func (e *Engine) GetFramebufferSize() (uint32, uint32) {
	return e.width, e.height
}

func (e *Engine) onEvent(context core.EventContext) bool {
	if context.Type == core.EVENT_CODE_APPLICATION_QUIT {
		core.LogInfo("EVENT_CODE_APPLICATION_QUIT received, shutting down.")
		e.Stop()
		return true
	}
	return false
}

func (e *Engine) onKey(context core.EventContext) bool {
	ke, ok := context.Data.(*core.KeyEvent)
	if !ok {
		core.LogError("wrong event associated with the event type `%d`", context.Type)
		return false
	}
	if ke.KeyCode == core.KEY_ESCAPE {
		// NOTE: Technically firing an event to itself, but there may be other listeners.
		core.EventFire(core.EventContext{Type: core.EVENT_CODE_APPLICATION_QUIT})
		return true
	}
	return false
}

func (e *Engine) onResized(context core.EventContext) bool {
	re, ok := context.Data.(*core.ResizeEvent)
	if !ok {
		core.LogError("wrong event associated with the event type `%d`", context.Type)
		return false
	}
	if re.Width == e.width && re.Height == e.height {
		return false
	}
	e.width, e.height = re.Width, re.Height
	core.LogDebug("Window resize: %d, %d", re.Width, re.Height)

	// Handle minimization
	if re.Width == 0 || re.Height == 0 {
		core.LogInfo("Window minimized, suspending application.")
		e.isSuspended = true
		return false
	}
	if e.isSuspended {
		core.LogInfo("Window restored, resuming application.")
		e.isSuspended = false
	}
	if err := e.renderer.OnResize(re.Width, re.Height); err != nil {
		core.LogError(err.Error())
	}
	if err := e.gameInstance.FnOnResize(re.Width, re.Height); err != nil {
		core.LogError(err.Error())
	}
	// Other listeners may track the window size too.
	return false
}
