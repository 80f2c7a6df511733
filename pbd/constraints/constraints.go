// Package constraints derives the stretch and bending constraint lists of a
// rectangular particle grid and colors them for parallel projection.
package constraints

import (
	"fmt"

	"github.com/gekko3d/cloth/pbd/coloring"
	"github.com/gekko3d/cloth/pbd/core"
	"github.com/go-gl/mathgl/mgl32"
)

// DefaultStretchWindow covers the current and the previous grid row of
// stretch constraints, which is every constraint that can share a particle.
func DefaultStretchWindow(horizontalNum int) int {
	return 8 * horizontalNum
}

// DefaultBendingWindow covers three rows of bending triples.
func DefaultBendingWindow(horizontalNum int) int {
	return 6 * horizontalNum
}

// Stretch sweeps the grid top to bottom, left to right. The first row links
// each particle to its right neighbor. Later rows link to the particle above
// and, past the first column, to the upper-left, to the left and across the
// second diagonal (above to left).
func Stretch(particles []core.Particle, horizontalNum, verticalNum int) []core.StretchConstraint {
	out := make([]core.StretchConstraint, 0, horizontalNum*verticalNum*4)
	link := func(a, b int32) {
		out = append(out, core.StretchConstraint{
			Particle0:  a,
			Particle1:  b,
			RestLength: particles[a].Position.Sub(particles[b].Position).Len(),
		})
	}

	for h := 0; h < verticalNum; h++ {
		for w := 0; w < horizontalNum; w++ {
			idx := core.ParticleIndex(h, w, horizontalNum)
			if h == 0 {
				if w < horizontalNum-1 {
					link(idx, idx+1)
				}
				continue
			}
			top := idx - int32(horizontalNum)
			link(idx, top)
			if w > 0 {
				link(idx, top-1)
				link(idx, idx-1)
				link(top, idx-1)
			}
		}
	}
	return out
}

// Bending emits triangle bending triples. For every cell it adds a horizontal
// triple whose apex sits two columns right of the base edge and, below the
// first row, a vertical triple whose apex sits two rows above the base edge.
func Bending(particles []core.Particle, horizontalNum, verticalNum int) []core.BendingConstraint {
	hn := int32(horizontalNum)
	out := make([]core.BendingConstraint, 0, horizontalNum*verticalNum*2)
	triple := func(v, b0, b1 int32) {
		out = append(out, core.BendingConstraint{
			V:  v,
			B0: b0,
			B1: b1,
			H0: Height(particles[v].Position, particles[b0].Position, particles[b1].Position),
		})
	}

	for h := 0; h < verticalNum-1; h++ {
		offset := int32(h) * hn
		for w := int32(1); w < hn; w++ {
			if w+1 < hn {
				v := offset + w + 1
				triple(v, v-2, v-2+hn)
			}
			if h == 0 {
				continue
			}
			v := offset + w - 1 - hn
			triple(v, v+2*hn, v+2*hn+1)
		}
	}
	return out
}

// Height is the distance from v to the centroid of {v, b0, b1}.
func Height(v, b0, b1 mgl32.Vec3) float32 {
	centroid := v.Add(b0).Add(b1).Mul(1.0 / 3.0)
	return v.Sub(centroid).Len()
}

// ColorStretch colors stretch constraints and verifies the result against
// particleCount.
func ColorStretch(items []core.StretchConstraint, window, particleCount int) (coloring.Result[core.StretchConstraint], error) {
	res, err := coloring.Color(items, core.StretchConstraint.SharedVertices, window, coloring.MaxColors)
	if err != nil {
		return res, fmt.Errorf("stretch coloring: %w", err)
	}
	if err := coloring.VerifyDisjoint(res.Items, res.Groups, core.StretchConstraint.Particles, particleCount); err != nil {
		return res, fmt.Errorf("stretch coloring: %w", err)
	}
	return res, nil
}

// ColorBending colors bending constraints and verifies the result against
// particleCount.
func ColorBending(items []core.BendingConstraint, window, particleCount int) (coloring.Result[core.BendingConstraint], error) {
	res, err := coloring.Color(items, core.BendingConstraint.SharedVertices, window, coloring.MaxColors)
	if err != nil {
		return res, fmt.Errorf("bending coloring: %w", err)
	}
	if err := coloring.VerifyDisjoint(res.Items, res.Groups, core.BendingConstraint.Particles, particleCount); err != nil {
		return res, fmt.Errorf("bending coloring: %w", err)
	}
	return res, nil
}
