package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStretchConstraint_SharedVertices(t *testing.T) {
	a := StretchConstraint{Particle0: 0, Particle1: 1}

	assert.True(t, a.SharedVertices(StretchConstraint{Particle0: 1, Particle1: 2}))
	assert.True(t, a.SharedVertices(StretchConstraint{Particle0: 5, Particle1: 0}))
	assert.False(t, a.SharedVertices(StretchConstraint{Particle0: 2, Particle1: 3}))
}

func TestBendingConstraint_SharedVertices(t *testing.T) {
	a := BendingConstraint{V: 2, B0: 0, B1: 4}

	assert.True(t, a.SharedVertices(BendingConstraint{V: 7, B0: 4, B1: 9}))
	assert.False(t, a.SharedVertices(BendingConstraint{V: 1, B0: 3, B1: 5}))
	assert.Equal(t, []int32{2, 0, 4}, a.Particles())
}

func TestColorGroup_DispatchShape(t *testing.T) {
	cases := []struct {
		length int
		want   uint32
	}{
		{0, 0},
		{1, 1},
		{32, 1},
		{33, 2},
		{96, 3},
	}
	for _, c := range cases {
		g := ColorGroup{Offset: 7, Length: c.length}
		if got := g.DispatchShape(); got != c.want {
			t.Errorf("DispatchShape(%d) = %d, want %d", c.length, got, c.want)
		}
		assert.Equal(t, 7+c.length, g.End())
	}
}

func TestParticle_Pinned(t *testing.T) {
	p := Particle{InverseMass: 0}
	assert.True(t, p.Pinned())
	p.InverseMass = 0.1
	assert.False(t, p.Pinned())
	assert.Equal(t, int32(13), ParticleIndex(2, 3, 5))
}
