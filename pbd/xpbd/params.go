package xpbd

import (
	"errors"
	"fmt"
	"math"

	"github.com/go-gl/mathgl/mgl32"
)

// MaxForces bounds the number of simultaneously active external forces.
const MaxForces = 16

// ParamEpsilon is the smallest parameter change worth re-uploading.
const ParamEpsilon = 1e-12

var ErrInvalidParams = errors.New("invalid solver parameters")

// ExternalForce is a transient velocity impulse applied to every free
// particle within Radius of Center, fading linearly with distance and with
// the remaining lifetime.
type ExternalForce struct {
	Center     mgl32.Vec3
	Velocity   mgl32.Vec3
	Radius     float32
	FramesLeft int
	Lifetime   int
}

func (f ExternalForce) Active() bool {
	return f.FramesLeft > 0 && f.Radius > 0
}

// Strength is the lifetime scale in (0, 1].
func (f ExternalForce) Strength() float32 {
	if f.Lifetime <= 0 {
		return 1
	}
	return float32(f.FramesLeft) / float32(f.Lifetime)
}

// Params is the per-frame parameter snapshot the solver reads.
type Params struct {
	Gravity    float32
	Damping    float32
	Compliance float32
	Stiffness  float32
	FrameDt    float32
	Substeps   int
	Forces     []ExternalForce
}

func DefaultParams() Params {
	return Params{
		Gravity:    -9.8,
		Damping:    0.01,
		Compliance: 1.6e-9,
		Stiffness:  0.05,
		FrameDt:    0.016,
		Substeps:   15,
	}
}

func (p Params) Validate() error {
	fields := []struct {
		name string
		v    float32
	}{
		{"gravity", p.Gravity},
		{"damping", p.Damping},
		{"compliance", p.Compliance},
		{"stiffness", p.Stiffness},
		{"frame dt", p.FrameDt},
	}
	for _, f := range fields {
		if !finite(f.v) {
			return fmt.Errorf("%w: %s is %v", ErrInvalidParams, f.name, f.v)
		}
	}
	if p.Substeps < 1 {
		return fmt.Errorf("%w: substeps=%d", ErrInvalidParams, p.Substeps)
	}
	if p.FrameDt <= 0 {
		return fmt.Errorf("%w: frame dt=%g", ErrInvalidParams, p.FrameDt)
	}
	if p.Damping < 0 || p.Damping > 1 {
		return fmt.Errorf("%w: damping=%g outside [0,1]", ErrInvalidParams, p.Damping)
	}
	if p.Stiffness < 0 || p.Stiffness > 1 {
		return fmt.Errorf("%w: stiffness=%g outside [0,1]", ErrInvalidParams, p.Stiffness)
	}
	if p.Compliance < 0 {
		return fmt.Errorf("%w: compliance=%g", ErrInvalidParams, p.Compliance)
	}
	for i, f := range p.Forces {
		if !finite(f.Radius) || !finite(f.Velocity.Len()) || !finite(f.Center.Len()) {
			return fmt.Errorf("%w: force %d is not finite", ErrInvalidParams, i)
		}
	}
	return nil
}

// SubstepDt is the integration step of one substep.
func (p Params) SubstepDt() float32 {
	return p.FrameDt / float32(p.Substeps)
}

// SubstepStiffness converts the per-frame bending stiffness into the
// per-substep factor that yields the same total correction.
func (p Params) SubstepStiffness() float32 {
	if p.Stiffness >= 1 {
		return 1
	}
	return 1 - float32(math.Pow(float64(1-p.Stiffness), 1/float64(p.Substeps)))
}

// Differs reports whether any scalar parameter moved by more than eps.
// Forces are not compared.
func (p Params) Differs(o Params, eps float32) bool {
	if p.Substeps != o.Substeps {
		return true
	}
	pairs := [...][2]float32{
		{p.Gravity, o.Gravity},
		{p.Damping, o.Damping},
		{p.Compliance, o.Compliance},
		{p.Stiffness, o.Stiffness},
		{p.FrameDt, o.FrameDt},
	}
	for _, pair := range pairs {
		if float32(math.Abs(float64(pair[0]-pair[1]))) > eps {
			return true
		}
	}
	return false
}

func finite(v float32) bool {
	return !math.IsNaN(float64(v)) && !math.IsInf(float64(v), 0)
}
