// Package xpbd advances a cloth fabric with extended position based dynamics.
//
// Every substep predicts positions from the implicit velocity, projects the
// stretch constraints (XPBD, compliance based) one color group after the
// other, then the bending constraints (PBD, stiffness based) the same way.
// Groups run through a dispatch.Dispatcher; the order of groups is fixed, so
// later groups observe the corrections of earlier ones.
package xpbd

import (
	"errors"
	"fmt"

	"github.com/gekko3d/cloth/pbd/core"
	"github.com/gekko3d/cloth/pbd/dispatch"
	"github.com/gekko3d/cloth/pbd/fabric"
	"github.com/go-gl/mathgl/mgl32"
)

// ErrDiverged is returned once a particle position became NaN or infinite.
// The solver refuses to step until Reset is called.
var ErrDiverged = errors.New("solver diverged")

const minSeparation = 1e-7

type Solver struct {
	dispatcher dispatch.Dispatcher

	rest      []core.Particle
	particles []core.Particle

	stretch       []core.StretchConstraint
	stretchGroups []core.ColorGroup
	bending       []core.BendingConstraint
	bendingGroups []core.ColorGroup

	frame    int
	diverged error
}

// New copies the mutable state out of f. The solver owns d and closes it in
// Close; a nil dispatcher runs serially.
func New(f *fabric.ClothFabric, d dispatch.Dispatcher) *Solver {
	if d == nil {
		d = dispatch.Serial{}
	}
	s := &Solver{
		dispatcher:    d,
		rest:          f.Particles,
		particles:     make([]core.Particle, len(f.Particles)),
		stretch:       make([]core.StretchConstraint, len(f.Stretch)),
		stretchGroups: f.StretchGroups,
		bending:       f.Bending,
		bendingGroups: f.BendingGroups,
	}
	copy(s.particles, f.Particles)
	copy(s.stretch, f.Stretch)
	return s
}

// Step advances one frame. External forces are applied once, after the
// substeps, as a velocity impulse.
func (s *Solver) Step(p Params) error {
	if s.diverged != nil {
		return fmt.Errorf("%w: reset required", s.diverged)
	}
	if err := p.Validate(); err != nil {
		return err
	}

	dt := p.SubstepDt()
	alpha := p.Compliance / (dt * dt)
	k := p.SubstepStiffness()

	for sub := 0; sub < p.Substeps; sub++ {
		s.predict(p.Gravity, p.Damping, dt)
		s.solveStretch(alpha)
		s.solveBending(k)

		if i := s.firstNonFinite(); i >= 0 {
			s.diverged = fmt.Errorf("%w: particle %d at frame %d substep %d", ErrDiverged, i, s.frame, sub)
			return s.diverged
		}
	}

	if len(p.Forces) > 0 {
		s.applyForces(p.Forces, dt)
	}
	s.frame++
	return nil
}

func (s *Solver) predict(gravity, damping, dt float32) {
	dt2 := dt * dt
	s.dispatcher.Dispatch(len(s.particles), func(lo, hi int) {
		for i := lo; i < hi; i++ {
			p := &s.particles[i]
			if p.InverseMass == 0 {
				continue
			}
			ea := p.ExternalAccel
			accel := mgl32.Vec3{ea.X(), ea.Y() + gravity*ea.W(), ea.Z()}
			vel := p.Position.Sub(p.PrevPosition).Mul(1 - damping)
			p.PrevPosition = p.Position
			p.Position = p.Position.Add(vel).Add(accel.Mul(dt2))
		}
	})
	for i := range s.stretch {
		s.stretch[i].Lambda = 0
	}
}

func (s *Solver) solveStretch(alpha float32) {
	for _, g := range s.stretchGroups {
		offset := g.Offset
		s.dispatcher.Dispatch(g.Length, func(lo, hi int) {
			s.projectStretch(offset+lo, offset+hi, alpha)
		})
	}
}

func (s *Solver) projectStretch(lo, hi int, alpha float32) {
	for i := lo; i < hi; i++ {
		c := &s.stretch[i]
		p0 := &s.particles[c.Particle0]
		p1 := &s.particles[c.Particle1]

		w0, w1 := p0.InverseMass, p1.InverseMass
		wSum := w0 + w1 + alpha
		if wSum == 0 {
			continue
		}
		d := p1.Position.Sub(p0.Position)
		length := d.Len()
		if length < minSeparation {
			continue
		}
		n := d.Mul(1 / length)

		constraint := length - c.RestLength
		dLambda := (-constraint - alpha*c.Lambda) / wSum
		c.Lambda += dLambda

		p0.Position = p0.Position.Sub(n.Mul(w0 * dLambda))
		p1.Position = p1.Position.Add(n.Mul(w1 * dLambda))
	}
}

func (s *Solver) solveBending(k float32) {
	if k == 0 {
		return
	}
	for _, g := range s.bendingGroups {
		offset := g.Offset
		s.dispatcher.Dispatch(g.Length, func(lo, hi int) {
			s.projectBending(offset+lo, offset+hi, k)
		})
	}
}

// projectBending moves the apex towards its rest height over the centroid.
// Gradients are 2/3 n for the apex and -1/3 n for both base particles.
func (s *Solver) projectBending(lo, hi int, k float32) {
	for i := lo; i < hi; i++ {
		c := &s.bending[i]
		v := &s.particles[c.V]
		b0 := &s.particles[c.B0]
		b1 := &s.particles[c.B1]

		w := v.InverseMass*4.0/9.0 + (b0.InverseMass+b1.InverseMass)/9.0
		if w == 0 {
			continue
		}
		centroid := v.Position.Add(b0.Position).Add(b1.Position).Mul(1.0 / 3.0)
		d := v.Position.Sub(centroid)
		length := d.Len()
		if length < minSeparation {
			continue
		}
		n := d.Mul(1 / length)

		scale := -(length - c.H0) / w * k
		v.Position = v.Position.Add(n.Mul(v.InverseMass * scale * 2.0 / 3.0))
		b0.Position = b0.Position.Sub(n.Mul(b0.InverseMass * scale / 3.0))
		b1.Position = b1.Position.Sub(n.Mul(b1.InverseMass * scale / 3.0))
	}
}

func (s *Solver) applyForces(forces []ExternalForce, dt float32) {
	s.dispatcher.Dispatch(len(s.particles), func(lo, hi int) {
		for i := lo; i < hi; i++ {
			p := &s.particles[i]
			if p.InverseMass == 0 {
				continue
			}
			for _, f := range forces {
				if !f.Active() {
					continue
				}
				dist := p.Position.Sub(f.Center).Len()
				if dist >= f.Radius {
					continue
				}
				falloff := 1 - dist/f.Radius
				p.PrevPosition = p.PrevPosition.Sub(f.Velocity.Mul(dt * falloff * f.Strength()))
			}
		}
	})
}

func (s *Solver) firstNonFinite() int {
	for i := range s.particles {
		pos := s.particles[i].Position
		if !finite(pos[0]) || !finite(pos[1]) || !finite(pos[2]) {
			return i
		}
	}
	return -1
}

// Reset restores the rest pose and clears the multipliers. Constraints and
// coloring are kept.
func (s *Solver) Reset() error {
	copy(s.particles, s.rest)
	for i := range s.stretch {
		s.stretch[i].Lambda = 0
	}
	s.frame = 0
	s.diverged = nil
	return nil
}

// Positions returns a copy of the current particle positions.
func (s *Solver) Positions() []mgl32.Vec3 {
	out := make([]mgl32.Vec3, len(s.particles))
	for i := range s.particles {
		out[i] = s.particles[i].Position
	}
	return out
}

// Particles returns a copy of the full particle state.
func (s *Solver) Particles() []core.Particle {
	out := make([]core.Particle, len(s.particles))
	copy(out, s.particles)
	return out
}

// StretchResidual is the largest relative stretch error |C|/rest.
func (s *Solver) StretchResidual() float32 {
	var worst float32
	for _, c := range s.stretch {
		if c.RestLength == 0 {
			continue
		}
		d := s.particles[c.Particle1].Position.Sub(s.particles[c.Particle0].Position).Len()
		r := (d - c.RestLength) / c.RestLength
		if r < 0 {
			r = -r
		}
		worst = max(worst, r)
	}
	return worst
}

func (s *Solver) Frame() int {
	return s.frame
}

func (s *Solver) Diverged() bool {
	return s.diverged != nil
}

func (s *Solver) Close() {
	s.dispatcher.Close()
}
