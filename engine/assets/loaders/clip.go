package loaders

import (
	"fmt"

	"github.com/spaghettifunk/marionette/engine/animation"
	"github.com/spaghettifunk/marionette/engine/core"
	"github.com/spaghettifunk/marionette/engine/math"
	"github.com/spaghettifunk/marionette/engine/resources"
)

type keyFile struct {
	Time  float32   `toml:"time"`
	Value []float32 `toml:"value"`
}

type clipFile struct {
	Name           string  `toml:"name"`
	Duration       float32 `toml:"duration"`
	TicksPerSecond float32 `toml:"ticks_per_second"`
	Tracks         []struct {
		Bone      string    `toml:"bone"`
		Positions []keyFile `toml:"positions"`
		Rotations []keyFile `toml:"rotations"`
		Scales    []keyFile `toml:"scales"`
	} `toml:"tracks"`
}

// ClipLoader reads *.clip.toml files. Tracks name their bone, so params
// must be the *animation.Skeleton the clip animates.
type ClipLoader struct{}

func (cl *ClipLoader) Load(path string, params interface{}) (*resources.Resource, error) {
	skel, ok := params.(*animation.Skeleton)
	if !ok || skel == nil {
		return nil, fmt.Errorf("clip loader needs the target skeleton to load %s", path)
	}

	var cf clipFile
	if err := decodeFile(path, &cf); err != nil {
		return nil, err
	}
	if cf.Name == "" {
		cf.Name = AssetName(path)
	}

	clip := &animation.Clip{
		Name:           cf.Name,
		Duration:       cf.Duration,
		TicksPerSecond: cf.TicksPerSecond,
		Tracks:         make([]animation.BoneTrack, skel.BoneCount()),
	}
	seen := make(map[int]bool, len(cf.Tracks))
	keys := 0
	for _, tf := range cf.Tracks {
		bone, ok := skel.BoneIndex(tf.Bone)
		if !ok {
			return nil, fmt.Errorf("%w: %s: clip %q animates unknown bone %q", core.ErrInvalidAsset, path, cf.Name, tf.Bone)
		}
		if seen[bone] {
			return nil, fmt.Errorf("%w: %s: clip %q has two tracks for bone %q", core.ErrInvalidAsset, path, cf.Name, tf.Bone)
		}
		seen[bone] = true

		track := &clip.Tracks[bone]
		var err error
		if track.Positions, err = vec3Keys(tf.Positions); err != nil {
			return nil, fmt.Errorf("%w: %s: clip %q bone %q positions: %v", core.ErrInvalidAsset, path, cf.Name, tf.Bone, err)
		}
		if track.Scales, err = vec3Keys(tf.Scales); err != nil {
			return nil, fmt.Errorf("%w: %s: clip %q bone %q scales: %v", core.ErrInvalidAsset, path, cf.Name, tf.Bone, err)
		}
		if track.Rotations, err = quatKeys(tf.Rotations); err != nil {
			return nil, fmt.Errorf("%w: %s: clip %q bone %q rotations: %v", core.ErrInvalidAsset, path, cf.Name, tf.Bone, err)
		}
		keys += len(tf.Positions) + len(tf.Rotations) + len(tf.Scales)
	}

	if err := clip.Validate(skel); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return &resources.Resource{
		Name:     clip.Name,
		FullPath: path,
		Type:     resources.ResourceTypeClip,
		DataSize: uint64(keys),
		Data:     clip,
	}, nil
}

func (cl *ClipLoader) Unload(*resources.Resource) error {
	return nil
}

func vec3Keys(in []keyFile) ([]animation.Key[math.Vec3], error) {
	if len(in) == 0 {
		return nil, nil
	}
	out := make([]animation.Key[math.Vec3], len(in))
	for i, k := range in {
		v, err := vec3FromSlice(k.Value)
		if err != nil {
			return nil, fmt.Errorf("key %d: %v", i, err)
		}
		out[i] = animation.Key[math.Vec3]{Time: k.Time, Value: v}
	}
	return out, nil
}

// quatKeys reads x y z w rotations and normalizes them.
func quatKeys(in []keyFile) ([]animation.RotationKey, error) {
	if len(in) == 0 {
		return nil, nil
	}
	out := make([]animation.RotationKey, len(in))
	for i, k := range in {
		if len(k.Value) != 4 {
			return nil, fmt.Errorf("key %d: rotation has %d values, want 4 (x y z w)", i, len(k.Value))
		}
		q := math.NewQuat(k.Value[0], k.Value[1], k.Value[2], k.Value[3]).Normalize()
		out[i] = animation.RotationKey{Time: k.Time, Value: q}
	}
	return out, nil
}
