package controller

import (
	"github.com/gekko3d/cloth/pbd/core"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/google/uuid"
)

// Snapshot is a read-only copy of the settled state after a tick.
// Indices and UVs are shared with the fabric and must not be modified.
type Snapshot struct {
	FabricID      uuid.UUID
	Frame         int
	HorizontalNum int
	VerticalNum   int
	Positions     []mgl32.Vec3
	Normals       []mgl32.Vec3
	UVs           []mgl32.Vec2
	Indices       []uint32
	Pinned        []int32
	View          View
}

// Snapshot exports the current state, or nil without an active fabric.
func (c *Controller) Snapshot() *Snapshot {
	if c.sim == nil {
		return nil
	}
	f := c.fabric
	positions := c.sim.Positions()

	uvs := make([]mgl32.Vec2, len(f.Particles))
	var pinned []int32
	for i := range f.Particles {
		uvs[i] = f.Particles[i].UV
		if f.Particles[i].Pinned() {
			pinned = append(pinned, int32(i))
		}
	}

	return &Snapshot{
		FabricID:      f.ID,
		Frame:         c.frame,
		HorizontalNum: f.HorizontalNum,
		VerticalNum:   f.VerticalNum,
		Positions:     positions,
		Normals:       Normals(positions, f.Neighbors),
		UVs:           uvs,
		Indices:       f.Mesh.Indices,
		Pinned:        pinned,
		View:          c.view,
	}
}

// Normals estimates a shading normal per particle from its neighbor slots.
// Slot pairs (0,1) and (2,3) span two triangles around the particle.
func Normals(positions []mgl32.Vec3, neighbors []core.Neighbors) []mgl32.Vec3 {
	out := make([]mgl32.Vec3, len(positions))
	for i, n := range neighbors {
		p := positions[i]
		e0 := positions[n[0]].Sub(p)
		e1 := positions[n[1]].Sub(p)
		e2 := positions[n[2]].Sub(p)
		e3 := positions[n[3]].Sub(p)
		sum := e1.Cross(e0).Add(e3.Cross(e2))
		if l := sum.Len(); l > 0 {
			out[i] = sum.Mul(1 / l)
		} else {
			out[i] = mgl32.Vec3{0, 0, 1}
		}
	}
	return out
}
