package animation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spaghettifunk/marionette/engine/core"
	"github.com/spaghettifunk/marionette/engine/math"
)

const tolerance = 1e-4

func twoBoneChain(t *testing.T) *Skeleton {
	t.Helper()
	s, err := NewSkeleton([]Bone{
		{Name: "root", Parent: NoParent, BindMatrix: math.NewMat4Identity()},
		{Name: "child", Parent: 0, BindMatrix: math.NewMat4Translation(math.NewVec3(0, 1, 0))},
	}, math.NewMat4Identity())
	require.NoError(t, err)
	return s
}

func slidingClip() *Clip {
	return &Clip{
		Name:           "slide",
		Duration:       10,
		TicksPerSecond: 10,
		Tracks: []BoneTrack{
			{Positions: []PositionKey{
				{Time: 0, Value: math.NewVec3(0, 0, 0)},
				{Time: 5, Value: math.NewVec3(1, 0, 0)},
			}},
		},
	}
}

func TestTwoBoneChainScenario(t *testing.T) {
	e := NewEvaluator(twoBoneChain(t))

	out := e.Evaluate(slidingClip(), 0.25)
	require.Len(t, out, 2)

	assert.True(t, out[0].Translation().Compare(math.NewVec3(0.5, 0, 0), tolerance), "root %v", out[0].Translation())
	assert.True(t, out[1].Translation().Compare(math.NewVec3(0.5, 1, 0), tolerance), "child %v", out[1].Translation())
	assert.True(t, e.World()[1].Translation().Compare(math.NewVec3(0.5, 0, 0), tolerance))
}

func TestRestPoseIgnoresTime(t *testing.T) {
	s := twoBoneChain(t)
	e := NewEvaluator(s)
	for _, elapsed := range []float32{0, 0.3, 17, -2} {
		out := e.Evaluate(nil, elapsed)
		for i := range s.Bones {
			assert.Equal(t, s.Bones[i].BindMatrix, out[i])
		}
	}
}

func TestLoopingContinuity(t *testing.T) {
	clip := &Clip{
		Duration:       8,
		TicksPerSecond: 16,
		Tracks: []BoneTrack{
			{
				Positions: []PositionKey{{Time: 1, Value: math.NewVec3(0, 0, 0)}, {Time: 6, Value: math.NewVec3(2, 4, 0)}},
				Rotations: []RotationKey{
					{Time: 0, Value: math.NewQuatIdentity()},
					{Time: 4, Value: math.NewQuatFromAxisAngle(math.NewVec3Up(), 1.2, true)},
				},
			},
		},
	}
	e := NewEvaluator(twoBoneChain(t))
	seconds := clip.Seconds()
	require.InDelta(t, 0.5, seconds, 1e-6)

	for _, elapsed := range []float32{0, 0.05, 0.125, 0.3, 0.49} {
		a := e.Evaluate(clip, elapsed)[1]
		b := e.Evaluate(clip, elapsed+seconds)[1]
		assert.True(t, a.Compare(b, tolerance), "t=%f", elapsed)
	}
}

func TestWrapAroundBeforeFirstAndAfterLastKey(t *testing.T) {
	keys := []PositionKey{
		{Time: 2, Value: math.NewVec3(0, 0, 0)},
		{Time: 8, Value: math.NewVec3(6, 0, 0)},
	}
	before := sample(keys, 0, 10, math.NewVec3Zero(), lerpVec3)
	assert.True(t, before.Compare(math.NewVec3(3, 0, 0), tolerance), "got %v", before)

	// (9-8)/(10-8): the first key sits at the end of the loop.
	after := sample(keys, 9, 10, math.NewVec3Zero(), lerpVec3)
	assert.True(t, after.Compare(math.NewVec3(3, 0, 0), tolerance), "got %v", after)

	exact := sample(keys, 8, 10, math.NewVec3Zero(), lerpVec3)
	assert.Equal(t, keys[1].Value, exact)
}

func TestAfterLastKeyBlendsTowardLoopEnd(t *testing.T) {
	keys := []PositionKey{
		{Time: 2, Value: math.NewVec3(0, 0, 0)},
		{Time: 8, Value: math.NewVec3(4, 0, 0)},
	}
	for _, tc := range []struct {
		tick float32
		x    float32
	}{
		{8.5, 3},
		{9, 2},
		{9.5, 1},
	} {
		v := sample(keys, tc.tick, 10, math.NewVec3Zero(), lerpVec3)
		assert.InDelta(t, tc.x, v.X, tolerance, "tick %f", tc.tick)
	}
}

func TestSingleKeyHolds(t *testing.T) {
	hold := math.NewVec3(1, 2, 3)
	clip := &Clip{
		Duration: 20,
		Tracks:   []BoneTrack{{Positions: []PositionKey{{Time: 4, Value: hold}}}},
	}
	e := NewEvaluator(twoBoneChain(t))
	for _, elapsed := range []float32{0, 0.1, 0.16, 0.5, 0.79} {
		out := e.Evaluate(clip, elapsed)
		assert.True(t, out[0].Translation().Compare(hold, tolerance), "t=%f", elapsed)
	}
}

func TestMissingChannelsContributeIdentity(t *testing.T) {
	rot := math.NewQuatFromAxisAngle(math.NewVec3(0, 0, 1), math.K_HALF_PI, true)
	clip := &Clip{
		Duration: 10,
		Tracks:   []BoneTrack{{Rotations: []RotationKey{{Time: 0, Value: rot}}}},
	}
	e := NewEvaluator(twoBoneChain(t))
	out := e.Evaluate(clip, 0.1)

	assert.True(t, out[0].Compare(rot.ToMat4(), tolerance), "scale must stay one and translation zero")
	// The child has no track at all and simply follows its parent.
	assert.True(t, e.World()[1].Compare(e.World()[0], tolerance))
}

func TestRotationStaysUnitLength(t *testing.T) {
	keys := []RotationKey{
		{Time: 0, Value: math.NewQuatIdentity()},
		{Time: 10, Value: math.NewQuatFromAxisAngle(math.NewVec3(1, 0, 0), 2.5, true)},
	}
	for _, tick := range []float32{0.5, 3, 7.7, 9.9} {
		q := sample(keys, tick, 20, math.NewQuatIdentity(), slerpQuat)
		assert.InDelta(t, 1.0, q.Normal(), 1e-5)
	}
}

func TestZeroDeltaKeysDoNotDivideByZero(t *testing.T) {
	assert.Equal(t, float32(0), keyFactor(3, 3, 3))
	assert.Equal(t, float32(0), keyFactor(5, 3, 3))

	// The last key shifted back one loop lands on the first key.
	keys := []PositionKey{
		{Time: 0, Value: math.NewVec3(1, 0, 0)},
		{Time: 10, Value: math.NewVec3(2, 0, 0)},
	}
	v := sample(keys, -1, 10, math.NewVec3Zero(), lerpVec3)
	assert.Equal(t, math.NewVec3(2, 0, 0), v)
}

func TestKeyFactorClamps(t *testing.T) {
	assert.Equal(t, float32(1), keyFactor(12, 0, 10))
	assert.Equal(t, float32(0), keyFactor(-1, 0, 10))
	assert.InDelta(t, 0.25, keyFactor(2.5, 0, 10), 1e-6)
}

func TestParentBeforeChildComposition(t *testing.T) {
	s, err := NewSkeleton([]Bone{
		{Name: "hips", Parent: NoParent, BindMatrix: math.NewMat4Identity()},
		{Name: "spine", Parent: 0, BindMatrix: math.NewMat4Identity()},
		{Name: "head", Parent: 1, BindMatrix: math.NewMat4Identity()},
		{Name: "arm", Parent: 1, BindMatrix: math.NewMat4Identity()},
	}, math.NewMat4Translation(math.NewVec3(0, -1, 0)))
	require.NoError(t, err)

	clip := &Clip{
		Duration: 4,
		Tracks: []BoneTrack{
			{Positions: []PositionKey{{Time: 0, Value: math.NewVec3(0, 1, 0)}, {Time: 2, Value: math.NewVec3(0, 2, 0)}}},
			{Rotations: []RotationKey{{Time: 0, Value: math.NewQuatFromAxisAngle(math.NewVec3(0, 0, 1), 0.4, true)}}},
			{Positions: []PositionKey{{Time: 0, Value: math.NewVec3(0, 1, 0)}}},
			{
				Positions: []PositionKey{{Time: 0, Value: math.NewVec3(1, 0, 0)}},
				Scales:    []ScaleKey{{Time: 0, Value: math.NewVec3(2, 2, 2)}, {Time: 3, Value: math.NewVec3(1, 1, 1)}},
			},
		},
	}

	e := NewEvaluator(s)
	const elapsed = 0.05
	e.Evaluate(clip, elapsed)
	world := e.World()
	ticks := clip.Ticks(elapsed)

	assert.True(t, world[0].Compare(s.GlobalInverse.Mul(clip.LocalTransform(0, ticks)), tolerance))
	for j := 1; j < len(s.Bones); j++ {
		i := s.Bones[j].Parent
		expected := world[i].Mul(clip.LocalTransform(j, ticks))
		assert.True(t, world[j].Compare(expected, tolerance), "bone %s", s.Bones[j].Name)
	}
}

func TestEvaluatePanicsOnOutOfOrderParent(t *testing.T) {
	s := &Skeleton{
		Bones: []Bone{
			{Name: "a", Parent: 1, BindMatrix: math.NewMat4Identity()},
			{Name: "b", Parent: NoParent, BindMatrix: math.NewMat4Identity()},
		},
		GlobalInverse: math.NewMat4Identity(),
	}
	e := NewEvaluator(s)
	assert.PanicsWithValue(t,
		`animation: bone "a" (index 0) references parent 1 which is not evaluated yet`,
		func() { e.Evaluate(&Clip{Duration: 1}, 0) })
}

func TestDefaultTicksPerSecond(t *testing.T) {
	clip := &Clip{Duration: 50}
	assert.InDelta(t, 2.0, clip.Seconds(), 1e-6)
	assert.InDelta(t, 25.0, clip.Ticks(1), 1e-4)
	assert.InDelta(t, 37.5, clip.Ticks(-0.5), 1e-4)
}

func TestNewSkeletonRejectsBadTables(t *testing.T) {
	_, err := NewSkeleton(nil, math.NewMat4Identity())
	assert.ErrorIs(t, err, core.ErrInvalidAsset)

	_, err = NewSkeleton([]Bone{
		{Name: "root", Parent: NoParent},
		{Name: "tail", Parent: 1},
	}, math.NewMat4Identity())
	require.ErrorIs(t, err, core.ErrInvalidAsset)
	assert.Contains(t, err.Error(), `"tail"`)

	_, err = NewSkeleton([]Bone{
		{Name: "root", Parent: NoParent},
		{Name: "root", Parent: 0},
	}, math.NewMat4Identity())
	assert.ErrorIs(t, err, core.ErrInvalidAsset)
}

func TestClipValidate(t *testing.T) {
	s := twoBoneChain(t)
	require.NoError(t, slidingClip().Validate(s))

	unsorted := slidingClip()
	unsorted.Tracks[0].Positions[1].Time = 0
	err := unsorted.Validate(s)
	require.ErrorIs(t, err, core.ErrInvalidAsset)
	assert.Contains(t, err.Error(), `bone "root"`)
	assert.Contains(t, err.Error(), `clip "slide"`)

	tooMany := slidingClip()
	tooMany.Tracks = make([]BoneTrack, 3)
	assert.ErrorIs(t, tooMany.Validate(s), core.ErrInvalidAsset)

	empty := slidingClip()
	empty.Duration = 0
	assert.ErrorIs(t, empty.Validate(s), core.ErrInvalidAsset)
}

func TestCursor(t *testing.T) {
	clip := slidingClip()
	var c Cursor

	c.Advance(0.3)
	assert.InDelta(t, 0.3, c.Elapsed(), 1e-6, "no clip still accumulates")

	assert.True(t, c.SetClip(clip))
	assert.Zero(t, c.Elapsed())

	c.Advance(0.4)
	assert.False(t, c.SetClip(clip), "same clip is a no-op")
	assert.InDelta(t, 0.4, c.Elapsed(), 1e-6)

	c.Advance(0.8)
	assert.InDelta(t, 0.2, c.Elapsed(), 1e-5, "wraps at the clip length")

	assert.True(t, c.SetClip(nil))
	assert.Zero(t, c.Elapsed())
}
