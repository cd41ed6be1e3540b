package math

import (
	"github.com/chewxy/math32"
	"golang.org/x/exp/constraints"
)

const (
	K_PI         float32 = math32.Pi
	K_PI_2       float32 = 2.0 * K_PI
	K_HALF_PI    float32 = 0.5 * K_PI
	K_QUARTER_PI float32 = 0.25 * K_PI

	K_DEG2RAD_MULTIPLIER float32 = K_PI / 180.0
	K_RAD2DEG_MULTIPLIER float32 = 180.0 / K_PI

	// Smallest positive number where 1.0 + FLOAT_EPSILON != 0
	K_FLOAT_EPSILON float32 = 1.192092896e-07
)

func ksin(x float32) float32  { return math32.Sin(x) }
func kcos(x float32) float32  { return math32.Cos(x) }
func ktan(x float32) float32  { return math32.Tan(x) }
func kacos(x float32) float32 { return math32.Acos(x) }
func ksqrt(x float32) float32 { return math32.Sqrt(x) }
func kabs(x float32) float32  { return math32.Abs(x) }

// Clamp returns the value `f` clamped to the range [low, high].
// It works for any numeric type (integers and floats).
func Clamp[T constraints.Ordered](f, low, high T) T {
	if f < low {
		return low
	}
	if f > high {
		return high
	}
	return f
}

// Lerp linearly interpolates between a and b.
func Lerp[T constraints.Float](a, b, t T) T {
	return a + (b-a)*t
}

// Mod is the floating point remainder of x/y. The result has the sign of x.
func Mod(x, y float32) float32 {
	return math32.Mod(x, y)
}

// AlignUp rounds size up to the next multiple of alignment.
// An alignment of zero leaves size unchanged.
func AlignUp[T constraints.Unsigned](size, alignment T) T {
	if alignment == 0 {
		return size
	}
	return (size + alignment - 1) / alignment * alignment
}

func DegToRad(degrees float32) float32 {
	return degrees * K_DEG2RAD_MULTIPLIER
}

func RadToDeg(radians float32) float32 {
	return radians * K_RAD2DEG_MULTIPLIER
}
