package fabric

import (
	"context"
	"math"
	"testing"

	"github.com/gekko3d/cloth/pbd/coloring"
	"github.com/gekko3d/cloth/pbd/core"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func request(hn, vn int) Request {
	req := DefaultRequest()
	req.HorizontalNum = hn
	req.VerticalNum = vn
	return req
}

func TestRequest_Validate(t *testing.T) {
	require.NoError(t, DefaultRequest().Validate())

	cases := []struct {
		name  string
		edit  func(r *Request)
		cause error
	}{
		{"one column", func(r *Request) { r.HorizontalNum = 1 }, ErrGridTooSmall},
		{"no rows", func(r *Request) { r.VerticalNum = 0 }, ErrGridTooSmall},
		{"zero width", func(r *Request) { r.Width = 0 }, ErrInvalidExtent},
		{"negative scale", func(r *Request) { r.Scale = -1 }, ErrInvalidExtent},
		{"zero mass", func(r *Request) { r.ParticleMass = 0 }, ErrInvalidMass},
		{"negative window", func(r *Request) { r.BendingWindow = -3 }, ErrInvalidWindow},
		{"pin mode", func(r *Request) { r.Pin = PinMode(9) }, ErrInvalidPinMode},
		{"nan wind", func(r *Request) { r.Wind = mgl32.Vec3{0, 0, float32(math.NaN())} }, ErrInvalidWind},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			req := DefaultRequest()
			c.edit(&req)
			err := req.Validate()
			assert.ErrorIs(t, err, ErrInvalidRequest)
			assert.ErrorIs(t, err, c.cause)
		})
	}
}

func TestParsePinMode(t *testing.T) {
	for _, m := range []PinMode{PinCorners, PinTopRow, PinNone} {
		got, err := ParsePinMode(m.String())
		require.NoError(t, err)
		assert.Equal(t, m, got)
	}
	_, err := ParsePinMode("left")
	assert.ErrorIs(t, err, ErrInvalidPinMode)
}

func TestNewGrid_Layout(t *testing.T) {
	req := request(3, 5)
	req.Width = 2
	req.Height = 4
	g, err := NewGrid(req)
	require.NoError(t, err)

	require.Len(t, g.Particles, 15)
	// Centered: step 1 horizontally, 1 vertically.
	assert.Equal(t, mgl32.Vec3{-1, 2, 0}, g.Particles[0].Position)
	assert.Equal(t, mgl32.Vec3{1, 2, 0}, g.Particles[2].Position)
	assert.Equal(t, mgl32.Vec3{1, -2, 0}, g.Particles[14].Position)
	assert.Equal(t, mgl32.Vec2{0.5, 0.25}, g.Particles[4].UV)

	for i, p := range g.Particles {
		assert.Equal(t, p.Position, p.PrevPosition, "particle %d", i)
		assert.Equal(t, float32(1), p.ExternalAccel.W(), "particle %d", i)
	}
}

func TestNewGrid_WindSetsExternalAccel(t *testing.T) {
	req := request(3, 3)
	req.Wind = mgl32.Vec3{0.5, 0, -2}
	g, err := NewGrid(req)
	require.NoError(t, err)

	for i, p := range g.Particles {
		assert.Equal(t, mgl32.Vec4{0.5, 0, -2, 1}, p.ExternalAccel, "particle %d", i)
	}
}

func TestNewGrid_InverseMass(t *testing.T) {
	g, err := NewGrid(request(4, 4))
	require.NoError(t, err)

	for i, p := range g.Particles {
		assert.GreaterOrEqual(t, p.InverseMass, float32(0), "particle %d", i)
	}
	assert.Zero(t, g.Particles[0].InverseMass)
	assert.Zero(t, g.Particles[3].InverseMass)
	assert.InDelta(t, 0.2, g.Particles[1].InverseMass, 1e-7)
	assert.InDelta(t, 0.2, g.Particles[4].InverseMass, 1e-7)
	assert.InDelta(t, 0.2, g.Particles[13].InverseMass, 1e-7)
	assert.InDelta(t, 0.1, g.Particles[5].InverseMass, 1e-7)

	req := request(4, 4)
	req.Pin = PinTopRow
	g, err = NewGrid(req)
	require.NoError(t, err)
	for w := 0; w < 4; w++ {
		assert.True(t, g.Particles[w].Pinned())
	}
	assert.False(t, g.Particles[4].Pinned())

	req.Pin = PinNone
	g, err = NewGrid(req)
	require.NoError(t, err)
	for _, p := range g.Particles {
		assert.False(t, p.Pinned())
	}
}

func TestNewGrid_MeshWinding(t *testing.T) {
	g, err := NewGrid(request(3, 3))
	require.NoError(t, err)

	assert.Len(t, g.Mesh.Vertices, 9)
	assert.Equal(t, 8, g.Mesh.TriangleCount())
	// Cell (1,1): odd row, odd column.
	assert.Equal(t, []uint32{1, 0, 3, 3, 4, 1}, g.Mesh.Indices[0:6])
	// Cell (1,2): odd row, even column.
	assert.Equal(t, []uint32{5, 2, 1, 1, 4, 5}, g.Mesh.Indices[6:12])

	for _, idx := range g.Mesh.Indices {
		assert.Less(t, idx, uint32(9))
	}
}

func TestNewGrid_Neighbors(t *testing.T) {
	g, err := NewGrid(request(3, 3))
	require.NoError(t, err)

	expected := []core.Neighbors{
		{1, 3, 1, 3},
		{2, 4, 4, 0},
		{5, 1, 5, 1},
		{0, 4, 4, 6},
		{1, 5, 7, 3},
		{8, 4, 4, 2},
		{3, 7, 3, 7},
		{6, 4, 4, 8},
		{7, 5, 7, 5},
	}
	assert.Equal(t, expected, g.Neighbors)
}

func TestNewGrid_NeighborWindingIsConsistent(t *testing.T) {
	g, err := NewGrid(request(5, 4))
	require.NoError(t, err)

	for i, n := range g.Neighbors {
		p := g.Particles[i].Position
		at := func(slot int) mgl32.Vec3 { return g.Particles[n[slot]].Position.Sub(p) }
		normal := at(0).Cross(at(1)).Add(at(2).Cross(at(3)))
		assert.Less(t, normal.Z(), float32(0), "particle %d", i)
		assert.InDelta(t, 0, normal.X(), 1e-6, "particle %d", i)
		assert.InDelta(t, 0, normal.Y(), 1e-6, "particle %d", i)
	}
}

func TestBuild(t *testing.T) {
	f, err := Build(context.Background(), request(8, 6))
	require.NoError(t, err)

	assert.NotEqual(t, uuid.Nil, f.ID)
	assert.Equal(t, 48, f.ParticleCount())
	assert.Len(t, f.Neighbors, 48)
	assert.Len(t, f.RestPositions(), 48)
	assert.Len(t, f.Stretch, 7+5*(1+4*7))
	assert.Len(t, f.Bending, 5*6+4*7)
	assert.LessOrEqual(t, len(f.StretchGroups), coloring.MaxColors)
	assert.LessOrEqual(t, len(f.BendingGroups), coloring.MaxColors)

	require.NoError(t, coloring.VerifyDisjoint(f.Stretch, f.StretchGroups, core.StretchConstraint.Particles, f.ParticleCount()))
	require.NoError(t, coloring.VerifyDisjoint(f.Bending, f.BendingGroups, core.BendingConstraint.Particles, f.ParticleCount()))

	other, err := Build(context.Background(), request(8, 6))
	require.NoError(t, err)
	assert.NotEqual(t, f.ID, other.ID)
}

func TestBuild_RejectsInvalidRequest(t *testing.T) {
	f, err := Build(context.Background(), request(1, 6))
	assert.Nil(t, f)
	assert.ErrorIs(t, err, ErrGridTooSmall)
}

func TestBuild_ShortWindowFailsVerification(t *testing.T) {
	req := request(10, 10)
	req.StretchWindow = 2
	_, err := Build(context.Background(), req)
	assert.ErrorIs(t, err, coloring.ErrConflict)
}

func TestBuild_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Build(ctx, request(10, 10))
	assert.ErrorIs(t, err, context.Canceled)
}
