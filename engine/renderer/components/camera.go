package components

import (
	"github.com/chewxy/math32"

	"github.com/spaghettifunk/marionette/engine/math"
)

const (
	DefaultFOV  float32 = 90
	DefaultNear float32 = 1
	DefaultFar  float32 = 10

	// 89 degrees; keeps pitch away from the poles.
	pitchLimit float32 = 1.55334306
)

// Camera is a perspective camera. View and projection are rebuilt lazily,
// only when something they depend on has changed.
type Camera struct {
	position      math.Vec3
	eulerRotation math.Vec3

	fov           float32
	near, far     float32
	width, height float32

	viewDirty       bool
	projectionDirty bool
	view            math.Mat4
	projection      math.Mat4
}

func NewCamera() *Camera {
	camera := &Camera{}
	camera.Reset()
	return camera
}

func (c *Camera) Reset() {
	c.position = math.NewVec3Zero()
	c.eulerRotation = math.NewVec3Zero()
	c.fov = DefaultFOV
	c.near = DefaultNear
	c.far = DefaultFar
	c.width, c.height = 1, 1
	c.view = math.NewMat4Identity()
	c.projection = math.NewMat4Identity()
	c.viewDirty = true
	c.projectionDirty = true
}

func (c *Camera) Position() math.Vec3 {
	return c.position
}

func (c *Camera) SetPosition(position math.Vec3) {
	c.position = position
	c.viewDirty = true
}

// EulerRotation is (pitch, yaw, roll) in radians.
func (c *Camera) EulerRotation() math.Vec3 {
	return c.eulerRotation
}

func (c *Camera) SetEulerRotation(rotation math.Vec3) {
	c.eulerRotation = rotation
	c.eulerRotation.X = math.Clamp(c.eulerRotation.X, -pitchLimit, pitchLimit)
	c.viewDirty = true
}

// LookAt places the camera at eye facing target. Roll is reset.
func (c *Camera) LookAt(eye, target math.Vec3) {
	dir := target.Sub(eye).Normalize()
	c.position = eye
	c.eulerRotation = math.Vec3{
		X: math32.Asin(math.Clamp(dir.Y, -1, 1)),
		Y: math32.Atan2(-dir.X, -dir.Z),
	}
	c.eulerRotation.X = math.Clamp(c.eulerRotation.X, -pitchLimit, pitchLimit)
	c.viewDirty = true
}

// SetPerspective sets the vertical field of view in degrees and the clip planes.
func (c *Camera) SetPerspective(fovDegrees, near, far float32) {
	c.fov, c.near, c.far = fovDegrees, near, far
	c.projectionDirty = true
}

// SetSize updates the aspect ratio. A zero dimension is ignored.
func (c *Camera) SetSize(width, height uint32) {
	if width == 0 || height == 0 {
		return
	}
	c.width, c.height = float32(width), float32(height)
	c.projectionDirty = true
}

func (c *Camera) FOV() float32 {
	return c.fov
}

func (c *Camera) Near() float32 {
	return c.near
}

func (c *Camera) Far() float32 {
	return c.far
}

// World is the camera's own transform, T·R.
func (c *Camera) World() math.Mat4 {
	rotation := math.NewMat4EulerXYZ(c.eulerRotation.X, c.eulerRotation.Y, c.eulerRotation.Z)
	return math.NewMat4Translation(c.position).Mul(rotation)
}

func (c *Camera) View() math.Mat4 {
	if c.viewDirty {
		c.view = c.World().Inverse()
		c.viewDirty = false
	}
	return c.view
}

// Projection maps view space depth to [0,1].
func (c *Camera) Projection() math.Mat4 {
	if c.projectionDirty {
		c.projection = math.NewMat4PerspectiveZO(math.DegToRad(c.fov), c.width/c.height, c.near, c.far)
		c.projectionDirty = false
	}
	return c.projection
}

// Unproject maps a pixel and a depth in [0,1] back to a world position.
func (c *Camera) Unproject(x, y, depth float32) math.Vec3 {
	ndc := math.NewVec4(2*x/c.width-1, 1-2*y/c.height, depth, 1)
	inv := c.Projection().Mul(c.View()).Inverse()
	p := inv.MulVec4(ndc)
	if p.W != 0 {
		p = p.MulScalar(1 / p.W)
	}
	return p.ToVec3()
}

func (c *Camera) Forward() math.Vec3 {
	return c.World().Forward()
}

func (c *Camera) Backward() math.Vec3 {
	return c.Forward().MulScalar(-1)
}

func (c *Camera) Right() math.Vec3 {
	return c.World().Right()
}

func (c *Camera) Left() math.Vec3 {
	return c.Right().MulScalar(-1)
}

func (c *Camera) move(direction math.Vec3, amount float32) {
	c.position = c.position.Add(direction.MulScalar(amount))
	c.viewDirty = true
}

func (c *Camera) MoveForward(amount float32) {
	c.move(c.Forward(), amount)
}

func (c *Camera) MoveBackward(amount float32) {
	c.move(c.Backward(), amount)
}

func (c *Camera) MoveLeft(amount float32) {
	c.move(c.Left(), amount)
}

func (c *Camera) MoveRight(amount float32) {
	c.move(c.Right(), amount)
}

func (c *Camera) MoveUp(amount float32) {
	c.move(math.NewVec3Up(), amount)
}

func (c *Camera) MoveDown(amount float32) {
	c.move(math.NewVec3Up(), -amount)
}

func (c *Camera) Yaw(amount float32) {
	c.eulerRotation.Y += amount
	c.viewDirty = true
}

func (c *Camera) Pitch(amount float32) {
	c.eulerRotation.X = math.Clamp(c.eulerRotation.X+amount, -pitchLimit, pitchLimit)
	c.viewDirty = true
}
