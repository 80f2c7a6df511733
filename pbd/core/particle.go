package core

import "github.com/go-gl/mathgl/mgl32"

// Particle is one simulated mass point of the fabric.
//
// Position is authoritative. PrevPosition is the position at the start of the
// previous substep and encodes velocity implicitly. ExternalAccel.xyz is a
// constant acceleration set at build time (the request's wind, zero by
// default) and ExternalAccel.w scales gravity (1 by default). Swipe forces do
// not go through it: they displace PrevPosition once per frame.
// An InverseMass of 0 pins the particle.
type Particle struct {
	Position      mgl32.Vec3
	PrevPosition  mgl32.Vec3
	ExternalAccel mgl32.Vec4
	UV            mgl32.Vec2
	InverseMass   float32
}

func (p *Particle) Pinned() bool {
	return p.InverseMass == 0
}

// Velocity returns the implicit per-substep displacement.
func (p *Particle) Velocity() mgl32.Vec3 {
	return p.Position.Sub(p.PrevPosition)
}

// Neighbors holds up, right, down, left particle indices. Particles on the
// border repeat an available neighbor instead of pointing outside the grid.
type Neighbors [4]int32

const (
	NeighborUp = iota
	NeighborRight
	NeighborDown
	NeighborLeft
)

// ParticleIndex maps grid coordinates to the stable particle index.
func ParticleIndex(row, col, horizontalNum int) int32 {
	return int32(row*horizontalNum + col)
}
