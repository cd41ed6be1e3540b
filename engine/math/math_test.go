package math

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const tolerance = 1e-5

func TestMat4MulOrder(t *testing.T) {
	tr := NewMat4Translation(NewVec3(1, 2, 3))
	s := NewMat4Scale(NewVec3(2, 2, 2))

	// T·S scales first, then translates.
	p := NewVec3(1, 1, 1).Transform(tr.Mul(s))
	assert.True(t, p.Compare(NewVec3(3, 4, 5), tolerance), "got %v", p)

	// S·T translates first, then scales.
	p = NewVec3(1, 1, 1).Transform(s.Mul(tr))
	assert.True(t, p.Compare(NewVec3(4, 6, 8), tolerance), "got %v", p)
}

func TestMat4IdentityIsNeutral(t *testing.T) {
	m := NewMat4TRS(NewVec3(1, -2, 3), NewQuatFromAxisAngle(NewVec3Up(), 0.7, true), NewVec3(1, 2, 3))
	id := NewMat4Identity()
	assert.True(t, m.Mul(id).Compare(m, tolerance))
	assert.True(t, id.Mul(m).Compare(m, tolerance))
}

func TestMat4Inverse(t *testing.T) {
	m := NewMat4TRS(NewVec3(4, 5, 6), NewQuatFromAxisAngle(NewVec3(1, 1, 0), 1.1, true), NewVec3(2, 3, 0.5))
	inv := m.Inverse()
	assert.True(t, m.Mul(inv).Compare(NewMat4Identity(), 1e-4))
	assert.True(t, inv.Mul(m).Compare(NewMat4Identity(), 1e-4))
}

func TestMat4TRSMatchesProduct(t *testing.T) {
	pos := NewVec3(1, 2, 3)
	rot := NewQuatFromAxisAngle(NewVec3(0, 0, 1), K_HALF_PI, true)
	scale := NewVec3(2, 1, 1)

	expected := NewMat4Translation(pos).Mul(rot.ToMat4()).Mul(NewMat4Scale(scale))
	assert.True(t, NewMat4TRS(pos, rot, scale).Compare(expected, tolerance))
}

func TestQuatToMat4RotatesCounterClockwise(t *testing.T) {
	q := NewQuatFromAxisAngle(NewVec3(0, 0, 1), K_HALF_PI, true)
	p := NewVec3(1, 0, 0).Transform(q.ToMat4())
	assert.True(t, p.Compare(NewVec3(0, 1, 0), tolerance), "got %v", p)
}

func TestQuatSlerp(t *testing.T) {
	a := NewQuatIdentity()
	b := NewQuatFromAxisAngle(NewVec3Up(), K_HALF_PI, true)

	assert.True(t, a.Slerp(b, 0).Compare(a, tolerance))
	assert.True(t, a.Slerp(b, 1).Compare(b, tolerance))

	mid := a.Slerp(b, 0.5)
	assert.InDelta(t, 1.0, mid.Normal(), tolerance)
	assert.True(t, mid.Compare(NewQuatFromAxisAngle(NewVec3Up(), K_QUARTER_PI, true), tolerance))
}

func TestQuatSlerpShortestPath(t *testing.T) {
	a := NewQuatFromAxisAngle(NewVec3Up(), 0.1, true)
	b := NewQuatFromAxisAngle(NewVec3Up(), 0.3, true)
	negB := Quaternion{-b.X, -b.Y, -b.Z, -b.W}

	assert.True(t, a.Slerp(b, 0.5).Compare(a.Slerp(negB, 0.5), tolerance))
}

func TestLookAtMovesEyeToOrigin(t *testing.T) {
	eye := NewVec3(0, 0, 5)
	view := NewMat4LookAt(eye, NewVec3Zero(), NewVec3Up())

	p := eye.Transform(view)
	assert.True(t, p.Compare(NewVec3Zero(), tolerance), "got %v", p)

	// The target lies straight ahead, down -Z.
	target := NewVec3Zero().Transform(view)
	assert.True(t, target.Compare(NewVec3(0, 0, -5), tolerance), "got %v", target)
}

func TestTransformWorld(t *testing.T) {
	parent := TransformFromPosition(NewVec3(1, 0, 0))
	child := TransformFromPosition(NewVec3(0, 1, 0))
	child.Parent = parent

	require.True(t, child.IsDirty)
	w := child.GetWorld()
	assert.False(t, child.IsDirty)
	assert.True(t, w.Translation().Compare(NewVec3(1, 1, 0), tolerance))
}

func TestHelpers(t *testing.T) {
	assert.Equal(t, 5, Clamp(7, 0, 5))
	assert.Equal(t, float32(0), Clamp(float32(-1), 0, 1))
	assert.Equal(t, uint64(256), AlignUp(uint64(1), 256))
	assert.Equal(t, uint64(512), AlignUp(uint64(257), 256))
	assert.Equal(t, uint64(256), AlignUp(uint64(256), 256))
	assert.Equal(t, uint64(7), AlignUp(uint64(7), 0))
	assert.InDelta(t, 2.5, Lerp(float32(0), 10, 0.25), tolerance)
}
