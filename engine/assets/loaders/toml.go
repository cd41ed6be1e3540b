package loaders

import (
	"fmt"
	"os"

	"github.com/pelletier/go-toml/v2"

	"github.com/spaghettifunk/marionette/engine/core"
	"github.com/spaghettifunk/marionette/engine/math"
)

// decodeFile strictly decodes a TOML asset; unknown keys are errors so that
// typos in hand-edited files do not silently fall back to defaults.
func decodeFile(path string, v interface{}) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	dec := toml.NewDecoder(f)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("%w: %s: %v", core.ErrInvalidAsset, path, err)
	}
	return nil
}

func mat4FromSlice(values []float32) (math.Mat4, error) {
	if len(values) == 0 {
		return math.NewMat4Identity(), nil
	}
	if len(values) != 16 {
		return math.Mat4{}, fmt.Errorf("matrix has %d values, want 16", len(values))
	}
	var m math.Mat4
	copy(m.Data[:], values)
	return m, nil
}

func vec3FromSlice(values []float32) (math.Vec3, error) {
	if len(values) != 3 {
		return math.Vec3{}, fmt.Errorf("vector has %d values, want 3", len(values))
	}
	return math.NewVec3(values[0], values[1], values[2]), nil
}
