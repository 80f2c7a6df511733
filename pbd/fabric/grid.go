package fabric

import (
	"github.com/gekko3d/cloth/pbd/core"
	"github.com/go-gl/mathgl/mgl32"
)

// MeshVertex ties a render vertex to its grid cell and particle.
type MeshVertex struct {
	Column   uint32
	Row      uint32
	Particle uint32
}

// Mesh is the static triangle list of the fabric. Indices never change after
// construction; only the particle positions they reference move.
type Mesh struct {
	Vertices []MeshVertex
	Indices  []uint32
}

func (m Mesh) TriangleCount() int {
	return len(m.Indices) / 3
}

// Grid is the unconstrained particle layout of a fabric.
type Grid struct {
	HorizontalNum int
	VerticalNum   int
	Particles     []core.Particle
	Neighbors     []core.Neighbors
	Mesh          Mesh
}

// NewGrid lays particles out row-major, centered on the origin in the z=0
// plane with row 0 on top.
func NewGrid(req Request) (*Grid, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	hn, vn := req.HorizontalNum, req.VerticalNum
	g := &Grid{
		HorizontalNum: hn,
		VerticalNum:   vn,
		Particles:     make([]core.Particle, 0, hn*vn),
		Mesh:          buildMesh(hn, vn),
	}

	stepX := req.Width / float32(hn-1) * req.Scale
	stepY := req.Height / float32(vn-1) * req.Scale
	left := -stepX * float32(hn-1) / 2
	top := stepY * float32(vn-1) / 2
	interior := 1 / req.ParticleMass

	for h := 0; h < vn; h++ {
		for w := 0; w < hn; w++ {
			pos := mgl32.Vec3{left + stepX*float32(w), top - stepY*float32(h), 0}
			g.Particles = append(g.Particles, core.Particle{
				Position:      pos,
				PrevPosition:  pos,
				ExternalAccel: req.Wind.Vec4(1),
				UV:            mgl32.Vec2{float32(w) / float32(hn-1), float32(h) / float32(vn-1)},
				InverseMass:   inverseMass(req.Pin, h, w, hn, vn, interior),
			})
		}
	}

	g.Neighbors = buildNeighbors(hn, vn)
	return g, nil
}

func inverseMass(pin PinMode, h, w, hn, vn int, interior float32) float32 {
	switch pin {
	case PinCorners:
		if h == 0 && (w == 0 || w == hn-1) {
			return 0
		}
	case PinTopRow:
		if h == 0 {
			return 0
		}
	}
	// Border particles touch half as many triangles.
	if h == 0 || w == 0 || w == hn-1 || h == vn-1 {
		return 2 * interior
	}
	return interior
}

// buildMesh emits two triangles per cell with the diagonal alternating like
// a checkerboard, so interior vertices join four or eight triangles.
func buildMesh(hn, vn int) Mesh {
	m := Mesh{
		Vertices: make([]MeshVertex, 0, hn*vn),
		Indices:  make([]uint32, 0, (hn-1)*(vn-1)*6),
	}
	for h := 0; h < vn; h++ {
		for w := 0; w < hn; w++ {
			current := uint32(h*hn + w)
			m.Vertices = append(m.Vertices, MeshVertex{Column: uint32(w), Row: uint32(h), Particle: current})
			if h == 0 || w == 0 {
				continue
			}
			left := current - 1
			top := current - uint32(hn)
			if h%2 == w%2 {
				m.Indices = append(m.Indices, top, top-1, left, left, current, top)
			} else {
				m.Indices = append(m.Indices, current, top, top-1, top-1, left, current)
			}
		}
	}
	return m
}

// buildNeighbors fills up/right/down/left slots. Border particles reuse an
// available neighbor so that the (0,1) and (2,3) slot pairs keep a consistent
// winding for normal estimation.
func buildNeighbors(hn, vn int) []core.Neighbors {
	out := make([]core.Neighbors, hn*vn)
	row := int32(hn)
	for h := 0; h < vn; h++ {
		for w := 0; w < hn; w++ {
			i := core.ParticleIndex(h, w, hn)
			up, down, left, right := i-row, i+row, i-1, i+1

			var n core.Neighbors
			switch {
			case h == 0 && w == 0:
				n = core.Neighbors{right, down, right, down}
			case h == 0 && w == hn-1:
				n = core.Neighbors{down, left, down, left}
			case h == 0:
				n = core.Neighbors{right, down, down, left}
			case h == vn-1 && w == 0:
				n = core.Neighbors{up, right, up, right}
			case h == vn-1 && w == hn-1:
				n = core.Neighbors{left, up, left, up}
			case h == vn-1:
				n = core.Neighbors{left, up, up, right}
			case w == 0:
				n = core.Neighbors{up, right, right, down}
			case w == hn-1:
				n = core.Neighbors{down, left, left, up}
			default:
				n = core.Neighbors{up, right, down, left}
			}
			out[i] = n
		}
	}
	return out
}
