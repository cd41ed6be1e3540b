package assets

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spaghettifunk/marionette/engine/animation"
	"github.com/spaghettifunk/marionette/engine/resources"
)

const skeleton = "[[bones]]\nname = \"root\"\nparent = -1\n"

func clip(duration string) string {
	return "name = \"idle\"\nduration = " + duration + "\n[[tracks]]\nbone = \"root\"\npositions = [{time = 0.0, value = [0,0,0]}]\n"
}

func assetDir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "clips"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "hero.skeleton.toml"), []byte(skeleton), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "clips", "idle.clip.toml"), []byte(clip("4.0")), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "README.md"), []byte("ignored"), 0o644))
	return dir
}

func TestAssetManagerIndexesAndLoads(t *testing.T) {
	am, err := NewAssetManager(assetDir(t), false)
	require.NoError(t, err)
	require.NoError(t, am.Initialize())
	defer am.Shutdown()

	assert.Equal(t, 2, am.Count())

	res, err := am.LoadAsset("hero", resources.ResourceTypeSkeleton, nil)
	require.NoError(t, err)
	skel := res.Data.(*animation.Skeleton)

	res, err = am.LoadAsset("idle", resources.ResourceTypeClip, skel)
	require.NoError(t, err)
	assert.Equal(t, float32(4), res.Data.(*animation.Clip).Duration)

	_, err = am.LoadAsset("hero", resources.ResourceTypeClip, skel)
	assert.ErrorIs(t, err, ErrAssetNotFound)
}

func TestAssetManagerHotReload(t *testing.T) {
	dir := assetDir(t)
	am, err := NewAssetManager(dir, true)
	require.NoError(t, err)
	require.NoError(t, am.Initialize())
	defer am.Shutdown()

	path := filepath.Join(dir, "clips", "idle.clip.toml")
	require.NoError(t, os.WriteFile(path, []byte(clip("8.0")), 0o644))

	select {
	case info := <-am.Changes():
		assert.Equal(t, "idle", info.Name)
		assert.Equal(t, resources.ResourceTypeClip, info.Type)
		assert.Equal(t, filepath.Clean(path), info.Path)
	case <-time.After(5 * time.Second):
		t.Fatal("no change reported")
	}

	res, err := am.LoadAsset("hero", resources.ResourceTypeSkeleton, nil)
	require.NoError(t, err)
	res, err = am.LoadPath(path, res.Data)
	require.NoError(t, err)
	assert.Equal(t, float32(8), res.Data.(*animation.Clip).Duration)
}

func TestAssetManagerShutdownClosesChanges(t *testing.T) {
	am, err := NewAssetManager(assetDir(t), true)
	require.NoError(t, err)
	require.NoError(t, am.Initialize())
	require.NoError(t, am.Shutdown())
	require.NoError(t, am.Shutdown())

	_, open := <-am.Changes()
	assert.False(t, open)
}

func TestDetermineAssetType(t *testing.T) {
	cases := map[string]resources.ResourceType{
		"a/hero.skeleton.toml":     resources.ResourceTypeSkeleton,
		"walk.clip.toml":           resources.ResourceTypeClip,
		"hero.mesh.toml":           resources.ResourceTypeMesh,
		"skin.material.toml":       resources.ResourceTypeMaterial,
		"shaders/skinned.vert.spv": resources.ResourceTypeBinary,
		"skinned.wgsl":             resources.ResourceTypeText,
		"checker.PNG":              resources.ResourceTypeImage,
		"bark.webp":                resources.ResourceTypeImage,
	}
	for path, want := range cases {
		got, ok := determineAssetType(path)
		assert.True(t, ok, path)
		assert.Equal(t, want, got, path)
	}
	_, ok := determineAssetType("config.toml")
	assert.False(t, ok)
}
