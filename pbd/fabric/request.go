package fabric

import (
	"errors"
	"fmt"
	"math"

	"github.com/go-gl/mathgl/mgl32"
)

// PinMode selects which particles get an infinite mass.
type PinMode int

const (
	// PinCorners pins the two top corners.
	PinCorners PinMode = iota
	// PinTopRow pins every particle of the first row.
	PinTopRow
	// PinNone leaves every particle free.
	PinNone
)

func (m PinMode) String() string {
	switch m {
	case PinCorners:
		return "corners"
	case PinTopRow:
		return "top-row"
	case PinNone:
		return "none"
	}
	return fmt.Sprintf("PinMode(%d)", int(m))
}

// ParsePinMode accepts the names produced by PinMode.String.
func ParsePinMode(s string) (PinMode, error) {
	for _, m := range []PinMode{PinCorners, PinTopRow, PinNone} {
		if m.String() == s {
			return m, nil
		}
	}
	return PinCorners, fmt.Errorf("%w: %q", ErrInvalidPinMode, s)
}

var (
	ErrInvalidRequest = errors.New("invalid fabric request")
	ErrGridTooSmall   = errors.New("grid needs at least 2x2 particles")
	ErrInvalidExtent  = errors.New("width, height and scale must be positive")
	ErrInvalidMass    = errors.New("particle mass must be positive")
	ErrInvalidWindow  = errors.New("coloring window must not be negative")
	ErrInvalidPinMode = errors.New("unknown pin mode")
	ErrInvalidWind    = errors.New("wind must be finite")
)

// Request describes the fabric to build. Zero coloring windows select the
// defaults derived from HorizontalNum.
type Request struct {
	HorizontalNum int
	VerticalNum   int
	Width         float32
	Height        float32
	Scale         float32
	Pin           PinMode
	// ParticleMass is the mass of an interior particle. Border particles
	// carry half of it.
	ParticleMass  float32
	// Wind is a constant acceleration applied to every free particle.
	Wind          mgl32.Vec3
	StretchWindow int
	BendingWindow int
}

func DefaultRequest() Request {
	return Request{
		HorizontalNum: 50,
		VerticalNum:   50,
		Width:         1,
		Height:        1,
		Scale:         1,
		Pin:           PinCorners,
		ParticleMass:  10,
	}
}

func (r Request) Validate() error {
	if r.HorizontalNum < 2 || r.VerticalNum < 2 {
		return fmt.Errorf("%w: %dx%d: %w", ErrInvalidRequest, r.HorizontalNum, r.VerticalNum, ErrGridTooSmall)
	}
	if !(r.Width > 0) || !(r.Height > 0) || !(r.Scale > 0) {
		return fmt.Errorf("%w: width=%g height=%g scale=%g: %w", ErrInvalidRequest, r.Width, r.Height, r.Scale, ErrInvalidExtent)
	}
	if !(r.ParticleMass > 0) {
		return fmt.Errorf("%w: mass=%g: %w", ErrInvalidRequest, r.ParticleMass, ErrInvalidMass)
	}
	if r.StretchWindow < 0 || r.BendingWindow < 0 {
		return fmt.Errorf("%w: stretch=%d bending=%d: %w", ErrInvalidRequest, r.StretchWindow, r.BendingWindow, ErrInvalidWindow)
	}
	for _, v := range r.Wind {
		if math.IsNaN(float64(v)) || math.IsInf(float64(v), 0) {
			return fmt.Errorf("%w: wind=%v: %w", ErrInvalidRequest, r.Wind, ErrInvalidWind)
		}
	}
	if r.Pin < PinCorners || r.Pin > PinNone {
		return fmt.Errorf("%w: %v: %w", ErrInvalidRequest, r.Pin, ErrInvalidPinMode)
	}
	return nil
}

func (r Request) ParticleCount() int {
	return r.HorizontalNum * r.VerticalNum
}
