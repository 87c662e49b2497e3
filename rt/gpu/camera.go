package gpu

import (
	"math"

	"github.com/go-gl/mathgl/mgl32"
)

// OrbitCamera circles Target at Distance. Yaw turns around +Y, Pitch lifts
// the eye above the XZ plane.
type OrbitCamera struct {
	Target   mgl32.Vec3
	Distance float32
	Yaw      float32
	Pitch    float32
	FovY     float32
	Aspect   float32
	Near     float32
	Far      float32
}

func NewOrbitCamera() *OrbitCamera {
	return &OrbitCamera{
		Distance: 6,
		Pitch:    mgl32.DegToRad(20),
		FovY:     mgl32.DegToRad(60),
		Aspect:   16.0 / 9.0,
		Near:     0.1,
		Far:      100,
	}
}

func (c *OrbitCamera) Eye() mgl32.Vec3 {
	cp := float32(math.Cos(float64(c.Pitch)))
	offset := mgl32.Vec3{
		cp * float32(math.Sin(float64(c.Yaw))),
		float32(math.Sin(float64(c.Pitch))),
		cp * float32(math.Cos(float64(c.Yaw))),
	}
	return c.Target.Add(offset.Mul(c.Distance))
}

func (c *OrbitCamera) View() mgl32.Mat4 {
	return mgl32.LookAtV(c.Eye(), c.Target, mgl32.Vec3{0, 1, 0})
}

func (c *OrbitCamera) Projection() mgl32.Mat4 {
	return mgl32.Perspective(c.FovY, c.Aspect, c.Near, c.Far)
}

func (c *OrbitCamera) ViewProj() mgl32.Mat4 {
	return c.Projection().Mul4(c.View())
}
