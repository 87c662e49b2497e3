package engine

import (
	"github.com/gekko3d/fractal/rt/core"
	"github.com/gekko3d/fractal/rt/tree"
)

// ChildOffset is the distance from a parent to a child, in child scale units.
const ChildOffset = 1.5

// Frame is the input shared by every node for one tick.
type Frame struct {
	Host      core.Transform
	SpinDelta float32
	WrapSpin  bool
}

// LevelScale is host * 0.5^level. Halving is exact in binary floating point.
func LevelScale(hostScale float32, level int) float32 {
	s := hostScale
	for i := 0; i < level; i++ {
		s *= 0.5
	}
	return s
}

func advanceSpin(angle float32, f Frame) float32 {
	angle += f.SpinDelta
	if f.WrapSpin {
		angle = core.WrapAngle(angle)
	}
	return angle
}

// UpdateRoot inherits the host transform into the single root node.
func UpdateRoot(root *tree.Level, f Frame) {
	s := &root.States[0]
	s.SpinAngle = advanceSpin(s.SpinAngle, f)
	s.WorldRotation = f.Host.Rotation.Mul(root.Archetypes[0].Rotation).Mul(core.RotateY(s.SpinAngle))
	s.WorldPosition = f.Host.Position
	root.Matrices[0] = core.TRS(s.WorldPosition, s.WorldRotation, f.Host.Scale)
}

// UpdateRange updates nodes [lo, hi) of level from the already updated parent
// level. Disjoint ranges of the same level may run concurrently.
func UpdateRange(parent, level *tree.Level, f Frame, lo, hi int) {
	scale := LevelScale(f.Host.Scale, level.Index)
	offset := ChildOffset * scale
	for i := lo; i < hi; i++ {
		p := &parent.States[tree.ParentIndex(i)]
		a := &level.Archetypes[i]
		s := &level.States[i]

		s.SpinAngle = advanceSpin(s.SpinAngle, f)
		s.WorldRotation = p.WorldRotation.Mul(a.Rotation).Mul(core.RotateY(s.SpinAngle))
		s.WorldPosition = p.WorldPosition.Add(p.WorldRotation.Rotate(a.Direction.Mul(offset)))
		level.Matrices[i] = core.TRS(s.WorldPosition, s.WorldRotation, scale)
	}
}

// UpdateSequential runs one frame on the calling goroutine, root to leaf.
func UpdateSequential(t *tree.Tree, f Frame) {
	UpdateRoot(t.Level(0), f)
	for li := 1; li < t.Depth(); li++ {
		level := t.Level(li)
		UpdateRange(t.Level(li-1), level, f, 0, level.Len())
	}
}
