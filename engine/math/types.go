package math

// Vec2 represents a 2D vector
type Vec2 struct {
	X, Y float32
}

// Vec3 represents a 3D vector
type Vec3 struct {
	X, Y, Z float32
}

// Vec4 represents a 4D vector
type Vec4 struct {
	X, Y, Z, W float32
}

// Quaternion is a rotation stored as (X, Y, Z, W) with W the scalar part.
type Quaternion Vec4

// Mat4 is a 4x4 matrix stored column-major: Data[col*4+row].
// The translation lives in Data[12], Data[13], Data[14], which is
// the layout both GLSL and WGSL expect for a mat4x4 uniform.
type Mat4 struct {
	Data [16]float32
}

// Transform is a position/rotation/scale triple with a lazily rebuilt
// local matrix. Fields should be changed through the setters so the
// matrix is regenerated.
type Transform struct {
	Position Vec3
	Rotation Quaternion
	Scale    Vec3
	// IsDirty is set whenever position, rotation or scale change.
	IsDirty bool
	Local   Mat4
	// Parent is optional.
	Parent *Transform
}
