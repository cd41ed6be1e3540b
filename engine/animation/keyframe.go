package animation

import (
	"golang.org/x/exp/slices"

	"github.com/spaghettifunk/marionette/engine/core"
	"github.com/spaghettifunk/marionette/engine/math"
)

// Key is one sample of a channel. Time is in ticks.
type Key[V any] struct {
	Time  float32
	Value V
}

type (
	PositionKey = Key[math.Vec3]
	RotationKey = Key[math.Quaternion]
	ScaleKey    = Key[math.Vec3]
)

// BoneTrack holds the three channels of one bone. Any of them may be empty.
type BoneTrack struct {
	Positions []PositionKey
	Rotations []RotationKey
	Scales    []ScaleKey
}

func (bt *BoneTrack) IsEmpty() bool {
	return len(bt.Positions) == 0 && len(bt.Rotations) == 0 && len(bt.Scales) == 0
}

func lerpVec3(a, b math.Vec3, f float32) math.Vec3 {
	return a.Lerp(b, f)
}

func slerpQuat(a, b math.Quaternion, f float32) math.Quaternion {
	return a.Slerp(b, f)
}

// keyFactor is the position of t between t1 and t2. Coincident keys give 0.
func keyFactor(t, t1, t2 float32) float32 {
	delta := t2 - t1
	if delta == 0 {
		return 0
	}
	f := (t - t1) / delta
	if f < 0 || f > 1 {
		core.LogDebug("keyframe factor %f outside [0,1] (t=%f, t1=%f, t2=%f), clamping", f, t, t1, t2)
		f = math.Clamp(f, 0, 1)
	}
	return f
}

// sample evaluates a channel at time t of a looping clip of the given duration.
// Before the first key it blends from the last key shifted back by one loop.
// After the last key it blends toward the first key, which is placed at the
// end of the loop.
func sample[V any](keys []Key[V], t, duration float32, def V, mix func(a, b V, f float32) V) V {
	switch len(keys) {
	case 0:
		return def
	case 1:
		return keys[0].Value
	}

	i, found := slices.BinarySearchFunc(keys, t, func(k Key[V], t float32) int {
		switch {
		case k.Time < t:
			return -1
		case k.Time > t:
			return 1
		}
		return 0
	})
	if found {
		return keys[i].Value
	}

	last := len(keys) - 1
	var from, to Key[V]
	var t1, t2 float32
	switch i {
	case 0:
		from, to = keys[last], keys[0]
		t1, t2 = from.Time-duration, to.Time
	case len(keys):
		from, to = keys[last], keys[0]
		t1, t2 = from.Time, duration
	default:
		from, to = keys[i-1], keys[i]
		t1, t2 = from.Time, to.Time
	}
	return mix(from.Value, to.Value, keyFactor(t, t1, t2))
}
