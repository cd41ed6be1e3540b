// Package config loads the engine configuration from TOML.
package config

import (
	"bytes"
	"fmt"
	"os"
	"time"

	"github.com/pelletier/go-toml/v2"

	"github.com/spaghettifunk/marionette/engine/core"
)

type Backend string

const (
	BackendVulkan   Backend = "vulkan"
	BackendWebGPU   Backend = "webgpu"
	BackendHeadless Backend = "headless"
)

const (
	MinFramesInFlight = 1
	MaxFramesInFlight = 4
)

// Duration decodes TOML strings such as "5s" or "250ms".
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

type Config struct {
	Application ApplicationConfig `toml:"application"`
	Log         LogConfig         `toml:"log"`
	Renderer    RendererConfig    `toml:"renderer"`
	Assets      AssetsConfig      `toml:"assets"`
}

type ApplicationConfig struct {
	Name      string `toml:"name"`
	X         int32  `toml:"x"`
	Y         int32  `toml:"y"`
	Width     uint32 `toml:"width"`
	Height    uint32 `toml:"height"`
	TargetFPS uint32 `toml:"target_fps"`
}

type LogConfig struct {
	Level string `toml:"level"`
}

type RendererConfig struct {
	Backend          Backend    `toml:"backend"`
	FramesInFlight   uint32     `toml:"frames_in_flight"`
	UniformAlignment uint64     `toml:"uniform_alignment"`
	MaxRegions       uint32     `toml:"max_regions"`
	FenceTimeout     Duration   `toml:"fence_timeout"`
	VSync            bool       `toml:"vsync"`
	ClearColor       [4]float32 `toml:"clear_color"`
}

type AssetsConfig struct {
	Dir       string `toml:"dir"`
	HotReload bool   `toml:"hot_reload"`
	Workers   int    `toml:"workers"`
}

func Default() *Config {
	return &Config{
		Application: ApplicationConfig{
			Name:   "marionette",
			X:      100,
			Y:      100,
			Width:  1280,
			Height: 720,
		},
		Log: LogConfig{Level: "info"},
		Renderer: RendererConfig{
			Backend:          BackendVulkan,
			FramesInFlight:   2,
			UniformAlignment: 256,
			MaxRegions:       1024,
			FenceTimeout:     Duration{5 * time.Second},
			VSync:            true,
			ClearColor:       [4]float32{0.1, 0.1, 0.12, 1.0},
		},
		Assets: AssetsConfig{
			Dir:       "assets",
			HotReload: true,
			Workers:   4,
		},
	}
}

// Load reads a TOML file on top of the defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config %s: %w", path, err)
	}
	cfg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

func Parse(data []byte) (*Config, error) {
	cfg := Default()
	dec := toml.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	switch c.Renderer.Backend {
	case BackendVulkan, BackendWebGPU, BackendHeadless:
	default:
		return fmt.Errorf("renderer.backend: unknown backend %q", c.Renderer.Backend)
	}
	if c.Renderer.FramesInFlight < MinFramesInFlight || c.Renderer.FramesInFlight > MaxFramesInFlight {
		return fmt.Errorf("renderer.frames_in_flight must be between %d and %d, got %d",
			MinFramesInFlight, MaxFramesInFlight, c.Renderer.FramesInFlight)
	}
	if a := c.Renderer.UniformAlignment; a == 0 || a&(a-1) != 0 {
		return fmt.Errorf("renderer.uniform_alignment must be a power of two, got %d", a)
	}
	if c.Renderer.MaxRegions == 0 {
		return fmt.Errorf("renderer.max_regions must be positive")
	}
	if c.Renderer.FenceTimeout.Duration <= 0 {
		return fmt.Errorf("renderer.fence_timeout must be positive")
	}
	if c.Application.Width == 0 || c.Application.Height == 0 {
		return fmt.Errorf("application size must be non-zero, got %dx%d", c.Application.Width, c.Application.Height)
	}
	if c.Assets.Workers < 1 {
		return fmt.Errorf("assets.workers must be at least 1")
	}
	if _, err := core.ParseLogLevel(c.Log.Level); err != nil {
		return fmt.Errorf("log.level: %w", err)
	}
	return nil
}

func (c *Config) LogLevel() core.LogLevel {
	lvl, _ := core.ParseLogLevel(c.Log.Level)
	return lvl
}

// Encode writes the configuration back as TOML.
func (c *Config) Encode() ([]byte, error) {
	return toml.Marshal(c)
}
