package instancing

import (
	"errors"

	"github.com/go-gl/mathgl/mgl32"
)

// MatrixStride is the size of one instance (a column-major 4x4 float32 matrix).
const MatrixStride = 16 * 4

var (
	ErrResourceExhaustion = errors.New("instance buffer allocation failed")
	ErrBufferLength       = errors.New("instance buffer length mismatch")
	ErrReleased           = errors.New("instance buffer already released")
)

// Mesh and Material are opaque renderer handles passed through to the Drawer.
type (
	Mesh     any
	Material any
)

// Bounds is the axis-aligned volume handed to the renderer with every draw.
type Bounds struct {
	Center mgl32.Vec3
	Size   mgl32.Vec3
}

// CubeBounds is a cube of the given side centred at the origin.
func CubeBounds(side float32) Bounds {
	return Bounds{Size: mgl32.Vec3{side, side, side}}
}

// DefaultBounds is large enough to keep the whole fractal from being culled.
func DefaultBounds() Bounds {
	return CubeBounds(3)
}

// Buffer is a GPU-visible array of instance matrices with a fixed length.
type Buffer interface {
	Len() int
	// Write overwrites the whole buffer; len(matrices) must equal Len().
	Write(matrices []mgl32.Mat4) error
	Release()
}

type Allocator interface {
	CreateInstanceBuffer(label string, count int) (Buffer, error)
}

// Drawer issues one instanced draw. The buffer holds instanceCount matrices.
type Drawer interface {
	DrawInstanced(mesh Mesh, material Material, bounds Bounds, buffer Buffer, instanceCount int)
}
