package math

func NewQuatIdentity() Quaternion {
	return Quaternion{0, 0, 0, 1.0}
}

func NewQuat(x, y, z, w float32) Quaternion {
	return Quaternion{x, y, z, w}
}

// Normal is the length of the quaternion.
func (q Quaternion) Normal() float32 {
	return ksqrt(q.X*q.X + q.Y*q.Y + q.Z*q.Z + q.W*q.W)
}

// Normalize returns a unit-length copy. A zero quaternion becomes the identity.
func (q Quaternion) Normalize() Quaternion {
	normal := q.Normal()
	if normal == 0 {
		return NewQuatIdentity()
	}
	return Quaternion{q.X / normal, q.Y / normal, q.Z / normal, q.W / normal}
}

func (q Quaternion) Conjugate() Quaternion {
	return Quaternion{-q.X, -q.Y, -q.Z, q.W}
}

func (q Quaternion) Inverse() Quaternion {
	return q.Conjugate().Normalize()
}

// Mul is the Hamilton product q·other; other is applied first.
func (q Quaternion) Mul(other Quaternion) Quaternion {
	return Quaternion{
		X: q.X*other.W + q.Y*other.Z - q.Z*other.Y + q.W*other.X,
		Y: -q.X*other.Z + q.Y*other.W + q.Z*other.X + q.W*other.Y,
		Z: q.X*other.Y - q.Y*other.X + q.Z*other.W + q.W*other.Z,
		W: -q.X*other.X - q.Y*other.Y - q.Z*other.Z + q.W*other.W,
	}
}

func (q Quaternion) Dot(other Quaternion) float32 {
	return q.X*other.X + q.Y*other.Y + q.Z*other.Z + q.W*other.W
}

// Compare treats q and -q as the same rotation.
func (q Quaternion) Compare(other Quaternion, tolerance float32) bool {
	return kabs(kabs(q.Normalize().Dot(other.Normalize()))-1) <= tolerance
}

// ToMat4 returns the rotation matrix of the normalized quaternion.
func (q Quaternion) ToMat4() Mat4 {
	out_matrix := NewMat4Identity()
	n := q.Normalize()

	xx, yy, zz := n.X*n.X, n.Y*n.Y, n.Z*n.Z
	xy, xz, yz := n.X*n.Y, n.X*n.Z, n.Y*n.Z
	wx, wy, wz := n.W*n.X, n.W*n.Y, n.W*n.Z

	out_matrix.Data[0] = 1.0 - 2.0*(yy+zz)
	out_matrix.Data[1] = 2.0 * (xy + wz)
	out_matrix.Data[2] = 2.0 * (xz - wy)

	out_matrix.Data[4] = 2.0 * (xy - wz)
	out_matrix.Data[5] = 1.0 - 2.0*(xx+zz)
	out_matrix.Data[6] = 2.0 * (yz + wx)

	out_matrix.Data[8] = 2.0 * (xz + wy)
	out_matrix.Data[9] = 2.0 * (yz - wx)
	out_matrix.Data[10] = 1.0 - 2.0*(xx+yy)

	return out_matrix
}

func NewQuatFromAxisAngle(axis Vec3, angle float32, normalize bool) Quaternion {
	half_angle := 0.5 * angle
	s := ksin(half_angle)
	c := kcos(half_angle)

	q := Quaternion{s * axis.X, s * axis.Y, s * axis.Z, c}
	if normalize {
		q = q.Normalize()
	}
	return q
}

// Slerp interpolates along the shortest arc. The result is always unit length.
func (q Quaternion) Slerp(other Quaternion, percentage float32) Quaternion {
	// Source: https://en.Wikipedia.org/wiki/Slerp
	v0 := q.Normalize()
	v1 := other.Normalize()

	dot := v0.Dot(v1)

	// v1 and -v1 are the same rotation; flip to take the shorter path.
	if dot < 0.0 {
		v1 = Quaternion{-v1.X, -v1.Y, -v1.Z, -v1.W}
		dot = -dot
	}

	const DOT_THRESHOLD = float32(0.9995)
	if dot > DOT_THRESHOLD {
		qt := Quaternion{
			v0.X + ((v1.X - v0.X) * percentage),
			v0.Y + ((v1.Y - v0.Y) * percentage),
			v0.Z + ((v1.Z - v0.Z) * percentage),
			v0.W + ((v1.W - v0.W) * percentage)}
		return qt.Normalize()
	}

	// dot is in [0, DOT_THRESHOLD] so acos is safe
	theta_0 := kacos(dot)
	theta := theta_0 * percentage
	sin_theta := ksin(theta)
	sin_theta_0 := ksin(theta_0)

	s0 := kcos(theta) - dot*sin_theta/sin_theta_0 // == sin(theta_0 - theta) / sin(theta_0)
	s1 := sin_theta / sin_theta_0

	return Quaternion{
		(v0.X * s0) + (v1.X * s1),
		(v0.Y * s0) + (v1.Y * s1),
		(v0.Z * s0) + (v1.Z * s1),
		(v0.W * s0) + (v1.W * s1)}
}
