package gpu

import (
	"testing"

	"github.com/gekko3d/fractal/rt/instancing"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOrbitCamera(t *testing.T) {
	cam := NewOrbitCamera()
	cam.Pitch = 0
	cam.Distance = 5

	assert.True(t, cam.Eye().ApproxEqual(mgl32.Vec3{0, 0, 5}))

	cam.Yaw = mgl32.DegToRad(90)
	assert.True(t, cam.Eye().ApproxEqualThreshold(mgl32.Vec3{5, 0, 0}, 1e-5))

	// The target projects to the centre of the screen.
	clip := cam.ViewProj().Mul4x1(cam.Target.Vec4(1))
	assert.InDelta(t, 0, clip.X()/clip.W(), 1e-5)
	assert.InDelta(t, 0, clip.Y()/clip.W(), 1e-5)

	// Points nearer the eye get a smaller depth.
	nearClip := cam.ViewProj().Mul4x1(cam.Eye().Mul(0.5).Vec4(1))
	assert.Less(t, nearClip.Z()/nearClip.W(), clip.Z()/clip.W())
}

func TestCubeVertices(t *testing.T) {
	vertices := CubeVertices()
	require.Len(t, vertices, 36)

	for i := 0; i < len(vertices); i += 3 {
		a, b, c := mgl32.Vec3(vertices[i].Pos), mgl32.Vec3(vertices[i+1].Pos), mgl32.Vec3(vertices[i+2].Pos)
		n := mgl32.Vec3(vertices[i].Normal)

		assert.InDelta(t, 1, n.Len(), 1e-6)
		for _, p := range []mgl32.Vec3{a, b, c} {
			for axis := 0; axis < 3; axis++ {
				assert.InDelta(t, 0.5, abs(p[axis]), 1e-6)
			}
			// Every corner sits on the face its normal names.
			assert.InDelta(t, 0.5, p.Dot(n), 1e-6)
		}
		// Counter-clockwise seen from outside.
		assert.Greater(t, b.Sub(a).Cross(c.Sub(a)).Dot(n), float32(0))
	}
}

func abs(f float32) float32 {
	if f < 0 {
		return -f
	}
	return f
}

func TestInstancedPassQueuesDraws(t *testing.T) {
	p := &InstancedPass{}
	mesh := &Mesh{VertexCount: 36}
	mat := &Material{}
	root := &InstanceBuffer{Label: "level-0", count: 1}
	leaves := &InstanceBuffer{Label: "level-1", count: 5}
	bounds := instancing.DefaultBounds()

	p.DrawInstanced(mesh, mat, bounds, root, 1)
	p.DrawInstanced(mesh, mat, bounds, leaves, 5)
	p.DrawInstanced("not a mesh", mat, bounds, leaves, 5)
	hostBuf, err := instancing.NewHostAllocator().CreateInstanceBuffer("host", 1)
	require.NoError(t, err)
	p.DrawInstanced(mesh, mat, bounds, hostBuf, 1)
	p.DrawInstanced(mesh, mat, bounds, leaves, 0)

	queued, skipped := p.Stats()
	assert.Equal(t, 2, queued)
	assert.Equal(t, 3, skipped)

	draws := p.Pending()
	require.Len(t, draws, 2)
	assert.Same(t, root, draws[0].Instances)
	assert.Equal(t, uint32(1), draws[0].Count)
	assert.Same(t, leaves, draws[1].Instances)
	assert.Equal(t, uint32(5), draws[1].Count)
	assert.Equal(t, bounds, draws[1].Bounds)

	p.reset()
	queued, skipped = p.Stats()
	assert.Zero(t, queued+skipped)
}

func TestInstancedPassDiscardDoesNotAccumulate(t *testing.T) {
	p := &InstancedPass{}
	mesh := &Mesh{VertexCount: 36}
	mat := &Material{}
	bounds := instancing.DefaultBounds()
	levels := []*InstanceBuffer{
		{Label: "level-0", count: 1},
		{Label: "level-1", count: 5},
		{Label: "level-2", count: 25},
	}

	// Frames whose surface texture is unavailable never reach Encode.
	for range 10 {
		for _, buf := range levels {
			p.DrawInstanced(mesh, mat, bounds, buf, buf.Len())
		}
		p.DrawInstanced("not a mesh", mat, bounds, levels[0], 1)
		p.Discard()
	}

	queued, skipped := p.Stats()
	assert.Zero(t, queued)
	assert.Zero(t, skipped)
	assert.Empty(t, p.Pending())

	for _, buf := range levels {
		p.DrawInstanced(mesh, mat, bounds, buf, buf.Len())
	}
	assert.Len(t, p.Pending(), len(levels))
}

func TestInstanceBufferGuards(t *testing.T) {
	buf := &InstanceBuffer{Label: "level-1", count: 5}

	err := buf.Write(make([]mgl32.Mat4, 4))
	assert.ErrorIs(t, err, instancing.ErrBufferLength)

	buf.Release()
	buf.Release()
	assert.Nil(t, buf.Raw())
	assert.ErrorIs(t, buf.Write(make([]mgl32.Mat4, 5)), instancing.ErrReleased)
}

func TestAllocatorRejectsOversizedBuffers(t *testing.T) {
	a := &Allocator{MaxBufferSize: 10 * instancing.MatrixStride}

	_, err := a.CreateInstanceBuffer("huge", 11)
	assert.Error(t, err)
	_, err = a.CreateInstanceBuffer("empty", 0)
	assert.Error(t, err)
}
