package tree

import (
	"errors"
	"fmt"

	"github.com/gekko3d/fractal/rt/core"
	"github.com/go-gl/mathgl/mgl32"
)

const (
	// Branching is the number of children of every node.
	Branching = core.ArchetypeCount

	// MaxDepth keeps the node count (97,656 at depth 8) within the per-frame budget.
	MaxDepth = 8
)

var ErrInvalidConfiguration = errors.New("invalid configuration")

// NodeState is the per-frame part of a node. SpinAngle carries over between
// frames; the world transform is rewritten every frame, root first.
type NodeState struct {
	SpinAngle     float32
	WorldPosition mgl32.Vec3
	WorldRotation mgl32.Quat
}

// Level holds every node at one depth as parallel slices. Archetypes is
// read-only once the tree is built and may be shared by concurrent readers;
// States and Matrices are written exactly once per node per frame.
type Level struct {
	Index      int
	Archetypes []core.Archetype
	States     []NodeState
	Matrices   []mgl32.Mat4
}

func (l *Level) Len() int {
	return len(l.States)
}

// Tree is a flat, per-level arena. Node (L, i) has parent (L-1, i/5).
type Tree struct {
	levels []*Level
}

// Build allocates depth levels sized 5^0 .. 5^(depth-1) and assigns each node
// the archetype i mod 5.
func Build(depth int) (*Tree, error) {
	if depth < 1 || depth > MaxDepth {
		return nil, fmt.Errorf("%w: depth %d outside [1, %d]", ErrInvalidConfiguration, depth, MaxDepth)
	}

	t := &Tree{levels: make([]*Level, depth)}
	for li, length := 0, 1; li < depth; li, length = li+1, length*Branching {
		level := &Level{
			Index:      li,
			Archetypes: make([]core.Archetype, length),
			States:     make([]NodeState, length),
			Matrices:   make([]mgl32.Mat4, length),
		}
		for i := range level.Archetypes {
			level.Archetypes[i] = core.ArchetypeAt(ArchetypeIndex(i))
			level.States[i].WorldRotation = mgl32.QuatIdent()
		}
		t.levels[li] = level
	}
	return t, nil
}

func (t *Tree) Depth() int {
	return len(t.levels)
}

func (t *Tree) Level(li int) *Level {
	return t.levels[li]
}

func (t *Tree) Levels() []*Level {
	return t.levels
}

// LevelSizes returns the node count of every level, root first.
func (t *Tree) LevelSizes() []int {
	sizes := make([]int, len(t.levels))
	for i, l := range t.levels {
		sizes[i] = l.Len()
	}
	return sizes
}

func (t *Tree) NodeCount() int {
	n := 0
	for _, l := range t.levels {
		n += l.Len()
	}
	return n
}

// Root is level 0, index 0.
func (t *Tree) Root() *NodeState {
	return &t.levels[0].States[0]
}

// ParentIndex is the index of node i's parent in the previous level.
func ParentIndex(i int) int {
	return i / Branching
}

// ArchetypeIndex selects which of the fixed archetypes node i uses.
func ArchetypeIndex(i int) int {
	return i % Branching
}

// LevelSize is 5^level.
func LevelSize(level int) int {
	n := 1
	for i := 0; i < level; i++ {
		n *= Branching
	}
	return n
}

// TotalNodes is the sum of LevelSize over levels 0 .. depth-1.
func TotalNodes(depth int) int {
	n := 0
	for li := 0; li < depth; li++ {
		n += LevelSize(li)
	}
	return n
}
