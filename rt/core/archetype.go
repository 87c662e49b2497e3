package core

import (
	"github.com/go-gl/mathgl/mgl32"
)

// ArchetypeCount is the branching factor of the fractal.
const ArchetypeCount = 5

// Archetype is the fixed placement of a child relative to its parent.
type Archetype struct {
	Direction mgl32.Vec3
	Rotation  mgl32.Quat
}

var archetypes = [ArchetypeCount]Archetype{
	{Direction: Up, Rotation: mgl32.QuatIdent()},
	{Direction: Right, Rotation: mgl32.QuatRotate(mgl32.DegToRad(-90), Forward)},
	{Direction: Left, Rotation: mgl32.QuatRotate(mgl32.DegToRad(90), Forward)},
	{Direction: Forward, Rotation: mgl32.QuatRotate(mgl32.DegToRad(90), Right)},
	{Direction: Back, Rotation: mgl32.QuatRotate(mgl32.DegToRad(-90), Right)},
}

// ArchetypeAt returns archetype i. It panics if i is not in [0, ArchetypeCount).
func ArchetypeAt(i int) Archetype {
	return archetypes[i]
}

func Archetypes() [ArchetypeCount]Archetype {
	return archetypes
}
