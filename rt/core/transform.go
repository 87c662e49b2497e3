package core

import (
	"math"

	"github.com/go-gl/mathgl/mgl32"
)

const TwoPi = float32(2 * math.Pi)

var (
	Up      = mgl32.Vec3{0, 1, 0}
	Right   = mgl32.Vec3{1, 0, 0}
	Left    = mgl32.Vec3{-1, 0, 0}
	Forward = mgl32.Vec3{0, 0, 1}
	Back    = mgl32.Vec3{0, 0, -1}
)

// Transform is a rigid transform with a uniform scale.
type Transform struct {
	Position mgl32.Vec3
	Rotation mgl32.Quat
	Scale    float32
}

func NewTransform() Transform {
	return Transform{
		Position: mgl32.Vec3{0, 0, 0},
		Rotation: mgl32.QuatIdent(),
		Scale:    1,
	}
}

func (t Transform) ObjectToWorld() mgl32.Mat4 {
	return TRS(t.Position, t.Rotation, t.Scale)
}

// TRS builds M = T * R * S for a uniform scale without the two full matrix
// products. Column-major, same layout as mgl32.Translate3D(...).Mul4(...).
func TRS(pos mgl32.Vec3, rot mgl32.Quat, scale float32) mgl32.Mat4 {
	m := rot.Mat4()
	for col := 0; col < 3; col++ {
		m[col*4+0] *= scale
		m[col*4+1] *= scale
		m[col*4+2] *= scale
	}
	m[12] = pos.X()
	m[13] = pos.Y()
	m[14] = pos.Z()
	return m
}

// RotateY is a rotation of angle radians around the up axis.
func RotateY(angle float32) mgl32.Quat {
	return mgl32.QuatRotate(angle, Up)
}

// Compose returns a∘b: b is applied first, then a.
func Compose(a, b mgl32.Quat) mgl32.Quat {
	return a.Mul(b)
}

// WrapAngle folds an angle back into (-2π, 2π). Rotations built from the
// result are the same as from the input.
func WrapAngle(angle float32) float32 {
	if angle < TwoPi && angle > -TwoPi {
		return angle
	}
	return float32(math.Mod(float64(angle), 2*math.Pi))
}

func DegToRad(deg float32) float32 {
	return mgl32.DegToRad(deg)
}
