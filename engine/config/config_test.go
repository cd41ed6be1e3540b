package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spaghettifunk/marionette/engine/core"
)

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, uint32(2), cfg.Renderer.FramesInFlight)
	assert.Equal(t, uint64(256), cfg.Renderer.UniformAlignment)
	assert.Equal(t, 5*time.Second, cfg.Renderer.FenceTimeout.Duration)
}

func TestParseOverlaysDefaults(t *testing.T) {
	cfg, err := Parse([]byte(`
[application]
name = "walker"

[log]
level = "debug"

[renderer]
backend = "webgpu"
frames_in_flight = 3
fence_timeout = "250ms"
clear_color = [0.0, 0.0, 0.0, 1.0]
`))
	require.NoError(t, err)

	assert.Equal(t, "walker", cfg.Application.Name)
	assert.Equal(t, uint32(1280), cfg.Application.Width, "untouched keys keep their default")
	assert.Equal(t, BackendWebGPU, cfg.Renderer.Backend)
	assert.Equal(t, uint32(3), cfg.Renderer.FramesInFlight)
	assert.Equal(t, 250*time.Millisecond, cfg.Renderer.FenceTimeout.Duration)
	assert.Equal(t, [4]float32{0, 0, 0, 1}, cfg.Renderer.ClearColor)
	assert.Equal(t, core.DebugLevel, cfg.LogLevel())
}

func TestParseRejectsInvalid(t *testing.T) {
	cases := map[string]string{
		"backend":          "[renderer]\nbackend = \"metal\"",
		"frames in flight": "[renderer]\nframes_in_flight = 9",
		"alignment":        "[renderer]\nuniform_alignment = 100",
		"timeout":          "[renderer]\nfence_timeout = \"soon\"",
		"log level":        "[log]\nlevel = \"loud\"",
		"unknown key":      "[renderer]\nbogus = 1",
	}
	for name, doc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Parse([]byte(doc))
			assert.Error(t, err)
		})
	}
}

func TestLoadRoundTrip(t *testing.T) {
	cfg := Default()
	cfg.Renderer.Backend = BackendHeadless
	data, err := cfg.Encode()
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "marionette.toml")
	require.NoError(t, os.WriteFile(path, data, 0o644))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, loaded)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.toml"))
	assert.Error(t, err)
}
