package components

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/spaghettifunk/marionette/engine/math"
)

const tolerance = 1e-4

func TestCameraDefaults(t *testing.T) {
	c := NewCamera()
	assert.Equal(t, float32(90), c.FOV())
	assert.Equal(t, float32(1), c.Near())
	assert.Equal(t, float32(10), c.Far())
	assert.True(t, c.View().Compare(math.NewMat4Identity(), tolerance))
	assert.True(t, c.Forward().Compare(math.NewVec3(0, 0, -1), tolerance))
}

func TestCameraViewIsLazy(t *testing.T) {
	c := NewCamera()
	_ = c.View()
	assert.False(t, c.viewDirty)

	c.SetPosition(math.NewVec3(0, 0, 5))
	assert.True(t, c.viewDirty)
	p := math.NewVec3(0, 0, 5).Transform(c.View())
	assert.True(t, p.Compare(math.NewVec3Zero(), tolerance), "got %v", p)

	_ = c.Projection()
	c.SetSize(0, 600)
	assert.False(t, c.projectionDirty, "zero size is ignored")
	c.SetSize(800, 600)
	assert.True(t, c.projectionDirty)
}

func TestCameraLookAt(t *testing.T) {
	c := NewCamera()
	eye := math.NewVec3(3, 2, 5)
	c.LookAt(eye, math.NewVec3Zero())

	want := math.NewVec3Zero().Sub(eye).Normalize()
	assert.True(t, c.Forward().Compare(want, tolerance), "got %v want %v", c.Forward(), want)

	// The target sits on the view axis.
	target := math.NewVec3Zero().Transform(c.View())
	assert.InDelta(t, 0, target.X, tolerance)
	assert.InDelta(t, 0, target.Y, tolerance)
	assert.InDelta(t, -eye.Length(), target.Z, tolerance)
}

func TestCameraUnprojectCenter(t *testing.T) {
	c := NewCamera()
	c.SetSize(800, 600)
	c.LookAt(math.NewVec3(0, 0, 5), math.NewVec3Zero())

	near := c.Unproject(400, 300, 0)
	assert.True(t, near.Compare(math.NewVec3(0, 0, 4), tolerance), "got %v", near)
	far := c.Unproject(400, 300, 1)
	assert.True(t, far.Compare(math.NewVec3(0, 0, -5), 1e-3), "got %v", far)
}

func TestCameraPitchIsClamped(t *testing.T) {
	c := NewCamera()
	c.Pitch(10)
	assert.InDelta(t, pitchLimit, c.EulerRotation().X, tolerance)
	c.Pitch(-20)
	assert.InDelta(t, -pitchLimit, c.EulerRotation().X, tolerance)
}

func TestCameraMovement(t *testing.T) {
	c := NewCamera()
	c.MoveForward(2)
	assert.True(t, c.Position().Compare(math.NewVec3(0, 0, -2), tolerance))
	c.MoveRight(1)
	c.MoveUp(3)
	assert.True(t, c.Position().Compare(math.NewVec3(1, 3, -2), tolerance))
}
