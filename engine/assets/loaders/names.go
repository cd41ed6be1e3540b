package loaders

import (
	"path/filepath"
	"strings"
)

// Suffixes are checked longest first so that "walk.clip.toml" is a clip
// and not a generic TOML file.
var suffixes = []string{
	".skeleton.toml",
	".material.toml",
	".clip.toml",
	".mesh.toml",
	".spv",
	".wgsl",
	".png",
	".jpg",
	".jpeg",
	".bmp",
	".webp",
}

// AssetName is the file name without directory and type suffix.
// Shader stages keep their stage: "skinned.vert.spv" is "skinned.vert".
func AssetName(path string) string {
	base := filepath.Base(path)
	lower := strings.ToLower(base)
	for _, s := range suffixes {
		if strings.HasSuffix(lower, s) {
			return base[:len(base)-len(s)]
		}
	}
	return strings.TrimSuffix(base, filepath.Ext(base))
}
