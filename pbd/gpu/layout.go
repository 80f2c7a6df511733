package gpu

import (
	"encoding/binary"
	"math"

	"github.com/gekko3d/cloth/pbd/core"
	"github.com/gekko3d/cloth/pbd/xpbd"
	"github.com/go-gl/mathgl/mgl32"
)

// Byte sizes of the structs declared in common.wgsl.
const (
	particleStride   = 64
	constraintStride = 16
	paramsSize       = 32
	rangeSize        = 16
	forceStride      = 32
)

func putF32(buf []byte, off int, v float32) {
	binary.LittleEndian.PutUint32(buf[off:], math.Float32bits(v))
}

func getF32(buf []byte, off int) float32 {
	return math.Float32frombits(binary.LittleEndian.Uint32(buf[off:]))
}

func putVec4(buf []byte, off int, x, y, z, w float32) {
	putF32(buf, off, x)
	putF32(buf, off+4, y)
	putF32(buf, off+8, z)
	putF32(buf, off+12, w)
}

func encodeParticles(particles []core.Particle) []byte {
	buf := make([]byte, len(particles)*particleStride)
	for i := range particles {
		p := &particles[i]
		off := i * particleStride
		putVec4(buf, off, p.Position.X(), p.Position.Y(), p.Position.Z(), 0)
		putVec4(buf, off+16, p.PrevPosition.X(), p.PrevPosition.Y(), p.PrevPosition.Z(), 0)
		putVec4(buf, off+32, p.ExternalAccel.X(), p.ExternalAccel.Y(), p.ExternalAccel.Z(), p.ExternalAccel.W())
		putVec4(buf, off+48, p.UV.X(), p.UV.Y(), p.InverseMass, 0)
	}
	return buf
}

// decodePositions reads the position field of n encoded particles.
func decodePositions(buf []byte, n int) []mgl32.Vec3 {
	out := make([]mgl32.Vec3, n)
	for i := range out {
		off := i * particleStride
		out[i] = mgl32.Vec3{getF32(buf, off), getF32(buf, off+4), getF32(buf, off+8)}
	}
	return out
}

func encodeStretch(cs []core.StretchConstraint) []byte {
	buf := make([]byte, max(len(cs), 1)*constraintStride)
	for i, c := range cs {
		off := i * constraintStride
		binary.LittleEndian.PutUint32(buf[off:], uint32(c.Particle0))
		binary.LittleEndian.PutUint32(buf[off+4:], uint32(c.Particle1))
		putF32(buf, off+8, c.RestLength)
		putF32(buf, off+12, c.Lambda)
	}
	return buf
}

func encodeBending(cs []core.BendingConstraint) []byte {
	buf := make([]byte, max(len(cs), 1)*constraintStride)
	for i, c := range cs {
		off := i * constraintStride
		binary.LittleEndian.PutUint32(buf[off:], uint32(c.V))
		binary.LittleEndian.PutUint32(buf[off+4:], uint32(c.B0))
		binary.LittleEndian.PutUint32(buf[off+8:], uint32(c.B1))
		putF32(buf, off+12, c.H0)
	}
	return buf
}

// encodeParams packs the SimParams uniform. Compliance is pre-divided by the
// squared substep dt and stiffness is converted to its per-substep value.
func encodeParams(p xpbd.Params, particleCount, stretchCount, forceCount int) []byte {
	dt := p.SubstepDt()
	buf := make([]byte, paramsSize)
	putF32(buf, 0, p.Gravity)
	putF32(buf, 4, p.Damping)
	putF32(buf, 8, p.Compliance/(dt*dt))
	putF32(buf, 12, p.SubstepStiffness())
	putF32(buf, 16, dt)
	binary.LittleEndian.PutUint32(buf[20:], uint32(particleCount))
	binary.LittleEndian.PutUint32(buf[24:], uint32(stretchCount))
	binary.LittleEndian.PutUint32(buf[28:], uint32(forceCount))
	return buf
}

func encodeRange(g core.ColorGroup) []byte {
	buf := make([]byte, rangeSize)
	binary.LittleEndian.PutUint32(buf[0:], uint32(g.Offset))
	binary.LittleEndian.PutUint32(buf[4:], uint32(g.Length))
	return buf
}

// encodeForces packs up to xpbd.MaxForces active forces into a buffer of
// fixed capacity and returns how many were written.
func encodeForces(forces []xpbd.ExternalForce) ([]byte, int) {
	buf := make([]byte, xpbd.MaxForces*forceStride)
	n := 0
	for _, f := range forces {
		if !f.Active() || n == xpbd.MaxForces {
			continue
		}
		off := n * forceStride
		putVec4(buf, off, f.Center.X(), f.Center.Y(), f.Center.Z(), f.Radius)
		putVec4(buf, off+16, f.Velocity.X(), f.Velocity.Y(), f.Velocity.Z(), f.Strength())
		n++
	}
	return buf, n
}

func workgroups(n int) uint32 {
	return uint32((n + core.WorkgroupSize - 1) / core.WorkgroupSize)
}
