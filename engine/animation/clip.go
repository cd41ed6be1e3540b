package animation

import (
	"fmt"

	"github.com/spaghettifunk/marionette/engine/core"
	"github.com/spaghettifunk/marionette/engine/math"
)

// DefaultTicksPerSecond is used when a clip does not specify a rate.
const DefaultTicksPerSecond = 25.0

// Clip is immutable keyframe data shared by every instance playing it.
// Tracks is indexed by bone; bones past the end of Tracks are not animated.
type Clip struct {
	Name           string
	Duration       float32
	TicksPerSecond float32
	Tracks         []BoneTrack
}

func (c *Clip) ticksPerSecond() float32 {
	if c.TicksPerSecond == 0 {
		return DefaultTicksPerSecond
	}
	return c.TicksPerSecond
}

// Seconds is the length of one loop.
func (c *Clip) Seconds() float32 {
	if c == nil || c.Duration <= 0 {
		return 0
	}
	return c.Duration / c.ticksPerSecond()
}

// Ticks converts elapsed seconds to a tick position in [0, Duration).
func (c *Clip) Ticks(elapsedSeconds float32) float32 {
	if c.Duration <= 0 {
		return 0
	}
	ticks := math.Mod(elapsedSeconds*c.ticksPerSecond(), c.Duration)
	if ticks < 0 {
		ticks += c.Duration
	}
	if ticks >= c.Duration {
		// Rounding on the negative branch can land exactly on Duration.
		ticks = 0
	}
	return ticks
}

// LocalTransform samples bone's channels at ticks and composes T·R·S.
// A bone without any channel gets the identity.
func (c *Clip) LocalTransform(bone int, ticks float32) math.Mat4 {
	if bone >= len(c.Tracks) || c.Tracks[bone].IsEmpty() {
		return math.NewMat4Identity()
	}
	tr := &c.Tracks[bone]
	position := sample(tr.Positions, ticks, c.Duration, math.NewVec3Zero(), lerpVec3)
	rotation := sample(tr.Rotations, ticks, c.Duration, math.NewQuatIdentity(), slerpQuat)
	scale := sample(tr.Scales, ticks, c.Duration, math.NewVec3One(), lerpVec3)
	return math.NewMat4TRS(position, rotation, scale)
}

// Validate checks the clip against the skeleton it will animate.
func (c *Clip) Validate(s *Skeleton) error {
	if c.Duration <= 0 {
		return fmt.Errorf("%w: clip %q has non-positive duration %f", core.ErrInvalidAsset, c.Name, c.Duration)
	}
	if c.TicksPerSecond < 0 {
		return fmt.Errorf("%w: clip %q has negative ticks per second", core.ErrInvalidAsset, c.Name)
	}
	if len(c.Tracks) > s.BoneCount() {
		return fmt.Errorf("%w: clip %q has %d tracks for a skeleton of %d bones",
			core.ErrInvalidAsset, c.Name, len(c.Tracks), s.BoneCount())
	}
	for i := range c.Tracks {
		bone := s.Bones[i].Name
		tr := &c.Tracks[i]
		if err := checkKeyTimes(tr.Positions); err != nil {
			return fmt.Errorf("%w: clip %q bone %q positions: %v", core.ErrInvalidAsset, c.Name, bone, err)
		}
		if err := checkKeyTimes(tr.Rotations); err != nil {
			return fmt.Errorf("%w: clip %q bone %q rotations: %v", core.ErrInvalidAsset, c.Name, bone, err)
		}
		if err := checkKeyTimes(tr.Scales); err != nil {
			return fmt.Errorf("%w: clip %q bone %q scales: %v", core.ErrInvalidAsset, c.Name, bone, err)
		}
	}
	return nil
}

func checkKeyTimes[V any](keys []Key[V]) error {
	for i := 1; i < len(keys); i++ {
		if keys[i].Time <= keys[i-1].Time {
			return fmt.Errorf("key %d at time %f does not follow %f", i, keys[i].Time, keys[i-1].Time)
		}
	}
	return nil
}
