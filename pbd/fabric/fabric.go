// Package fabric builds cloth fabrics: the particle grid, its render mesh,
// the neighbor table used for shading and the colored constraint lists.
package fabric

import (
	"context"
	"fmt"

	"github.com/gekko3d/cloth/pbd/constraints"
	"github.com/gekko3d/cloth/pbd/core"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/google/uuid"
)

// ClothFabric is the immutable result of a build. Simulators copy the parts
// they mutate.
type ClothFabric struct {
	ID            uuid.UUID
	Request       Request
	HorizontalNum int
	VerticalNum   int

	Particles []core.Particle
	Neighbors []core.Neighbors
	Mesh      Mesh

	Stretch       []core.StretchConstraint
	StretchGroups []core.ColorGroup
	Bending       []core.BendingConstraint
	BendingGroups []core.ColorGroup
}

func (f *ClothFabric) ParticleCount() int {
	return len(f.Particles)
}

// RestPositions returns a copy of the particle positions at construction.
func (f *ClothFabric) RestPositions() []mgl32.Vec3 {
	out := make([]mgl32.Vec3, len(f.Particles))
	for i := range f.Particles {
		out[i] = f.Particles[i].Position
	}
	return out
}

// Build validates req, lays out the grid, generates constraints and colors
// them. ctx is checked between stages so a superseded build stops early.
func Build(ctx context.Context, req Request) (*ClothFabric, error) {
	grid, err := NewGrid(req)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	hn, vn := req.HorizontalNum, req.VerticalNum
	stretchWindow := req.StretchWindow
	if stretchWindow == 0 {
		stretchWindow = constraints.DefaultStretchWindow(hn)
	}
	bendingWindow := req.BendingWindow
	if bendingWindow == 0 {
		bendingWindow = constraints.DefaultBendingWindow(hn)
	}

	stretch, err := constraints.ColorStretch(constraints.Stretch(grid.Particles, hn, vn), stretchWindow, len(grid.Particles))
	if err != nil {
		return nil, fmt.Errorf("failed to build %dx%d fabric: %w", hn, vn, err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	bending, err := constraints.ColorBending(constraints.Bending(grid.Particles, hn, vn), bendingWindow, len(grid.Particles))
	if err != nil {
		return nil, fmt.Errorf("failed to build %dx%d fabric: %w", hn, vn, err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	return &ClothFabric{
		ID:            uuid.New(),
		Request:       req,
		HorizontalNum: hn,
		VerticalNum:   vn,
		Particles:     grid.Particles,
		Neighbors:     grid.Neighbors,
		Mesh:          grid.Mesh,
		Stretch:       stretch.Items,
		StretchGroups: stretch.Groups,
		Bending:       bending.Items,
		BendingGroups: bending.Groups,
	}, nil
}
