package engine

import (
	"math"
	"runtime"
	"testing"
	"time"

	"github.com/gekko3d/fractal/rt/core"
	"github.com/gekko3d/fractal/rt/tree"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const referenceRate = float32(0.125 * math.Pi)

func identityFrame(spinDelta float32) Frame {
	return Frame{Host: core.NewTransform(), SpinDelta: spinDelta, WrapSpin: true}
}

func buildTree(t *testing.T, depth int) *tree.Tree {
	t.Helper()
	tr, err := tree.Build(depth)
	require.NoError(t, err)
	return tr
}

func TestLevelScaleHalves(t *testing.T) {
	for _, host := range []float32{1, 3, 0.7} {
		for li := 0; li <= tree.MaxDepth; li++ {
			expected := float32(float64(host) * math.Pow(0.5, float64(li)))
			assert.Equal(t, expected, LevelScale(host, li), "host %v level %d", host, li)
		}
	}
}

func TestRootInheritsHost(t *testing.T) {
	tr := buildTree(t, 1)
	host := core.Transform{
		Position: mgl32.Vec3{4, 5, 6},
		Rotation: mgl32.QuatRotate(mgl32.DegToRad(30), core.Right),
		Scale:    2,
	}
	UpdateSequential(tr, Frame{Host: host})

	root := tr.Root()
	assert.Equal(t, host.Position, root.WorldPosition)
	assert.True(t, root.WorldRotation.ApproxEqualThreshold(host.Rotation, 1e-6))
	assert.True(t, tr.Level(0).Matrices[0].ApproxEqualThreshold(host.ObjectToWorld(), 1e-6))
}

func TestChildPlacement(t *testing.T) {
	tr := buildTree(t, 2)
	UpdateSequential(tr, identityFrame(0))

	expected := []mgl32.Vec3{
		{0, 0.75, 0},
		{0.75, 0, 0},
		{-0.75, 0, 0},
		{0, 0, 0.75},
		{0, 0, -0.75},
	}
	for i, pos := range expected {
		got := tr.Level(1).States[i].WorldPosition
		if got.Sub(pos).Len() > 1e-6 {
			t.Errorf("child %d: expected %v, got %v", i, pos, got)
		}
		col0 := tr.Level(1).Matrices[i].Col(0).Vec3()
		assert.InDelta(t, 0.5, col0.Len(), 1e-6, "child %d matrix scale", i)
	}
}

func TestChildFollowsParentSpin(t *testing.T) {
	tr := buildTree(t, 2)
	spin := mgl32.DegToRad(90)
	UpdateSequential(tr, identityFrame(spin))

	// Root spun 90 degrees around Y carries the right-hand child onto -Z.
	got := tr.Level(1).States[1].WorldPosition
	if got.Sub(mgl32.Vec3{0, 0, -0.75}).Len() > 1e-5 {
		t.Errorf("expected (0, 0, -0.75), got %v", got)
	}
}

func TestRootInvariance(t *testing.T) {
	tr := buildTree(t, 3)
	UpdateSequential(tr, identityFrame(0))

	leaf := 7
	mid := tree.ParentIndex(leaf)
	expected := core.ArchetypeAt(0).Rotation.
		Mul(core.ArchetypeAt(tree.ArchetypeIndex(mid)).Rotation).
		Mul(core.ArchetypeAt(tree.ArchetypeIndex(leaf)).Rotation)

	got := tr.Level(2).States[leaf].WorldRotation
	assert.True(t, got.ApproxEqualThreshold(expected, 1e-6), "expected %v, got %v", expected, got)

	for _, level := range tr.Levels() {
		for i, s := range level.States {
			assert.Zero(t, s.SpinAngle, "level %d node %d", level.Index, i)
		}
	}
}

func TestSpinAccumulates(t *testing.T) {
	tr := buildTree(t, 2)
	dt := float32(1.0 / 60.0)
	for i := 0; i < 10; i++ {
		UpdateSequential(tr, identityFrame(referenceRate*dt))
	}

	expected := mgl32.DegToRad(3.75)
	root := tr.Root()
	assert.InDelta(t, expected, root.SpinAngle, 1e-5)
	assert.True(t, root.WorldRotation.ApproxEqualThreshold(core.RotateY(expected), 1e-4))
	for i, s := range tr.Level(1).States {
		assert.InDelta(t, expected, s.SpinAngle, 1e-5, "child %d", i)
	}
}

func TestSpinWraps(t *testing.T) {
	tr := buildTree(t, 1)
	UpdateSequential(tr, identityFrame(core.TwoPi+0.5))
	assert.InDelta(t, 0.5, tr.Root().SpinAngle, 1e-5)

	tr = buildTree(t, 1)
	f := identityFrame(core.TwoPi + 0.5)
	f.WrapSpin = false
	UpdateSequential(tr, f)
	assert.InDelta(t, core.TwoPi+0.5, tr.Root().SpinAngle, 1e-5)
}

func TestEngineMatchesSequential(t *testing.T) {
	e := New(WithWorkers(4), WithChunkSize(16))
	defer e.Close()

	parallel := buildTree(t, 5)
	sequential := buildTree(t, 5)

	host := core.Transform{
		Position: mgl32.Vec3{1, 2, 3},
		Rotation: mgl32.QuatRotate(0.3, mgl32.Vec3{0, 1, 1}.Normalize()),
		Scale:    1.5,
	}
	for frame := 0; frame < 5; frame++ {
		f := Frame{Host: host, SpinDelta: referenceRate / 60, WrapSpin: true}
		e.Update(parallel, f)
		UpdateSequential(sequential, f)
	}

	for li := range parallel.Levels() {
		assert.Equal(t, sequential.Level(li).Matrices, parallel.Level(li).Matrices, "level %d", li)
		assert.Equal(t, sequential.Level(li).States, parallel.Level(li).States, "level %d", li)
	}
}

func TestScheduleOrdersLevels(t *testing.T) {
	e := New(WithWorkers(2), WithChunkSize(16))
	defer e.Close()

	tr := buildTree(t, 5)
	jobs := e.Schedule(tr, identityFrame(0.01))
	require.Len(t, jobs, 5)

	for li, job := range jobs {
		job.Wait()
		assert.Equal(t, li, job.Level)
		for prev := 0; prev < li; prev++ {
			select {
			case <-jobs[prev].Done():
			default:
				t.Fatalf("level %d finished before level %d", li, prev)
			}
		}
	}

	assert.Equal(t, 1, jobs[0].Chunks())
	assert.Equal(t, 1, jobs[1].Chunks())
	assert.Equal(t, 2, jobs[2].Chunks())
	assert.Equal(t, 8, jobs[3].Chunks())
	assert.Equal(t, 40, jobs[4].Chunks())
}

func TestEngineDepthOne(t *testing.T) {
	e := New(WithWorkers(1))
	defer e.Close()

	tr := buildTree(t, 1)
	jobs := e.Schedule(tr, identityFrame(0.5))
	require.Len(t, jobs, 1)
	jobs[0].Wait()
	assert.InDelta(t, 0.5, tr.Root().SpinAngle, 1e-6)
}

func TestEngineAfterClose(t *testing.T) {
	e := New(WithWorkers(2), WithChunkSize(4))
	e.Close()
	e.Close()

	tr := buildTree(t, 3)
	e.Update(tr, identityFrame(0.1))
	assert.InDelta(t, 0.1, tr.Level(2).States[24].SpinAngle, 1e-6)
}

func TestCloseJoinsWorkers(t *testing.T) {
	before := runtime.NumGoroutine()
	tr := buildTree(t, 4)
	for range 20 {
		e := New(WithWorkers(8), WithChunkSize(8))
		e.Update(tr, identityFrame(0.1))
		e.Close()
	}
	assert.Eventually(t, func() bool {
		return runtime.NumGoroutine() <= before
	}, time.Second, 10*time.Millisecond, "worker goroutines outlived Close")
}

func TestEngineDefaults(t *testing.T) {
	e := New()
	defer e.Close()
	assert.GreaterOrEqual(t, e.Workers(), 1)
	assert.Equal(t, DefaultChunkSize, e.ChunkSize())
}
