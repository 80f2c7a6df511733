package core

// WorkgroupSize is the number of constraints one dispatch lane group covers.
const WorkgroupSize = 32

// StretchConstraint keeps two particles at their rest distance.
// Lambda is the XPBD multiplier and is reset every substep.
type StretchConstraint struct {
	Particle0  int32
	Particle1  int32
	RestLength float32
	Lambda     float32
}

func (c StretchConstraint) Particles() []int32 {
	return []int32{c.Particle0, c.Particle1}
}

func (c StretchConstraint) SharedVertices(o StretchConstraint) bool {
	return c.Particle0 == o.Particle0 || c.Particle0 == o.Particle1 ||
		c.Particle1 == o.Particle0 || c.Particle1 == o.Particle1
}

// BendingConstraint keeps V at height H0 above the centroid of the
// triangle {V, B0, B1}.
type BendingConstraint struct {
	V  int32
	B0 int32
	B1 int32
	H0 float32
}

func (c BendingConstraint) Particles() []int32 {
	return []int32{c.V, c.B0, c.B1}
}

func (c BendingConstraint) SharedVertices(o BendingConstraint) bool {
	for _, a := range [3]int32{c.V, c.B0, c.B1} {
		if a == o.V || a == o.B0 || a == o.B1 {
			return true
		}
	}
	return false
}

// ColorGroup is a contiguous range of a flattened constraint array in which
// no two constraints touch the same particle.
type ColorGroup struct {
	Offset int
	Length int
}

func (g ColorGroup) End() int {
	return g.Offset + g.Length
}

// DispatchShape is the number of workgroups needed to cover the group.
func (g ColorGroup) DispatchShape() uint32 {
	return uint32((g.Length + WorkgroupSize - 1) / WorkgroupSize)
}
