package gpu

import (
	"fmt"
	"unsafe"

	"github.com/cogentcore/webgpu/wgpu"
)

// MeshVertex matches VertexInput in fractal.wgsl.
type MeshVertex struct {
	Pos    [3]float32
	Normal [3]float32
}

type Mesh struct {
	Label        string
	VertexBuffer *wgpu.Buffer
	VertexCount  uint32
}

// CubeVertices is a unit cube centred at the origin as a triangle list, two
// triangles per face, wound counter-clockwise seen from outside.
func CubeVertices() []MeshVertex {
	type face struct {
		normal, u, v [3]float32
	}
	faces := []face{
		{normal: [3]float32{1, 0, 0}, u: [3]float32{0, 0, -1}, v: [3]float32{0, 1, 0}},
		{normal: [3]float32{-1, 0, 0}, u: [3]float32{0, 0, 1}, v: [3]float32{0, 1, 0}},
		{normal: [3]float32{0, 1, 0}, u: [3]float32{1, 0, 0}, v: [3]float32{0, 0, -1}},
		{normal: [3]float32{0, -1, 0}, u: [3]float32{1, 0, 0}, v: [3]float32{0, 0, 1}},
		{normal: [3]float32{0, 0, 1}, u: [3]float32{1, 0, 0}, v: [3]float32{0, 1, 0}},
		{normal: [3]float32{0, 0, -1}, u: [3]float32{-1, 0, 0}, v: [3]float32{0, 1, 0}},
	}

	corner := func(f face, su, sv float32) MeshVertex {
		var p [3]float32
		for i := range p {
			p[i] = 0.5*f.normal[i] + 0.5*su*f.u[i] + 0.5*sv*f.v[i]
		}
		return MeshVertex{Pos: p, Normal: f.normal}
	}

	vertices := make([]MeshVertex, 0, len(faces)*6)
	for _, f := range faces {
		a, b, c, d := corner(f, -1, -1), corner(f, 1, -1), corner(f, 1, 1), corner(f, -1, 1)
		vertices = append(vertices, a, b, c, a, c, d)
	}
	return vertices
}

// NewMesh uploads vertices into a static vertex buffer.
func NewMesh(device *wgpu.Device, label string, vertices []MeshVertex) (*Mesh, error) {
	if len(vertices) == 0 {
		return nil, fmt.Errorf("mesh %s has no vertices", label)
	}
	size := uint64(len(vertices)) * uint64(unsafe.Sizeof(MeshVertex{}))
	buf, err := device.CreateBuffer(&wgpu.BufferDescriptor{
		Label: label,
		Size:  size,
		Usage: wgpu.BufferUsageVertex | wgpu.BufferUsageCopyDst,
	})
	if err != nil {
		return nil, fmt.Errorf("mesh %s: %w", label, err)
	}
	device.GetQueue().WriteBuffer(buf, 0, unsafe.Slice((*byte)(unsafe.Pointer(&vertices[0])), size))
	return &Mesh{Label: label, VertexBuffer: buf, VertexCount: uint32(len(vertices))}, nil
}

func NewCubeMesh(device *wgpu.Device) (*Mesh, error) {
	return NewMesh(device, "FractalCube", CubeVertices())
}

func (m *Mesh) Release() {
	if m.VertexBuffer != nil {
		m.VertexBuffer.Release()
		m.VertexBuffer = nil
	}
}
