package controller

import (
	"github.com/gekko3d/cloth/pbd/fabric"
	"github.com/go-gl/mathgl/mgl32"
)

// SwipeConfig converts screen drags into external forces.
type SwipeConfig struct {
	// MaxJumpPixels rejects moves longer than this, which are pointer jumps
	// rather than drags.
	MaxJumpPixels float32
	// SpeedScale multiplies the drag speed in simulation units per second.
	SpeedScale float32
	// MaxSpeed clamps the resulting force velocity.
	MaxSpeed float32
	// Lift adds an out-of-plane component proportional to the speed.
	Lift     float32
	Radius   float32
	Lifetime int
}

func DefaultSwipeConfig() SwipeConfig {
	return SwipeConfig{
		MaxJumpPixels: 300,
		SpeedScale:    1,
		MaxSpeed:      8,
		Lift:          0.5,
		Radius:        0.15,
		Lifetime:      90,
	}
}

// View is the square region of the simulation plane a viewport shows. It is
// fitted around the rest pose of the fabric with some margin.
type View struct {
	Center     mgl32.Vec2
	HalfExtent float32
}

const viewMargin = 1.25

// ViewFor fits a view around the rest positions of f.
func ViewFor(f *fabric.ClothFabric) View {
	if f == nil || len(f.Particles) == 0 {
		return View{HalfExtent: 1}
	}
	p0 := f.Particles[0].Position
	lo := mgl32.Vec2{p0.X(), p0.Y()}
	hi := lo
	for i := range f.Particles {
		p := f.Particles[i].Position
		lo = mgl32.Vec2{min(lo.X(), p.X()), min(lo.Y(), p.Y())}
		hi = mgl32.Vec2{max(hi.X(), p.X()), max(hi.Y(), p.Y())}
	}
	size := hi.Sub(lo)
	half := max(size.X(), size.Y()) / 2 * viewMargin
	if half <= 0 {
		half = 1
	}
	return View{Center: lo.Add(hi).Mul(0.5), HalfExtent: half}
}

// ScreenToSim maps a pixel position (origin top-left, y down) into the z=0
// simulation plane.
func (v View) ScreenToSim(screen, viewport mgl32.Vec2) mgl32.Vec3 {
	ndcX := screen.X()/viewport.X()*2 - 1
	ndcY := 1 - screen.Y()/viewport.Y()*2
	return mgl32.Vec3{
		v.Center.X() + ndcX*v.HalfExtent,
		v.Center.Y() + ndcY*v.HalfExtent,
		0,
	}
}

// SimToScreen is the inverse of ScreenToSim for the xy components.
func (v View) SimToScreen(p mgl32.Vec3, viewport mgl32.Vec2) mgl32.Vec2 {
	ndcX := (p.X() - v.Center.X()) / v.HalfExtent
	ndcY := (p.Y() - v.Center.Y()) / v.HalfExtent
	return mgl32.Vec2{
		(ndcX + 1) / 2 * viewport.X(),
		(1 - ndcY) / 2 * viewport.Y(),
	}
}

func (c *Controller) View() View {
	return c.view
}

// ScreenToSim maps a pixel position using the view of the active fabric.
func (c *Controller) ScreenToSim(screen, viewport mgl32.Vec2) mgl32.Vec3 {
	return c.view.ScreenToSim(screen, viewport)
}

// InjectSwipe turns one pointer move from -> to, in pixels, into a force at
// the destination. Empty moves, jumps and moves without a fabric or viewport
// are ignored. It reports whether a force was added.
func (c *Controller) InjectSwipe(from, to, viewport mgl32.Vec2) bool {
	if c.fabric == nil || viewport.X() <= 0 || viewport.Y() <= 0 {
		return false
	}
	pixels := to.Sub(from).Len()
	if pixels == 0 || pixels > c.cfg.Swipe.MaxJumpPixels {
		return false
	}

	a := c.view.ScreenToSim(from, viewport)
	b := c.view.ScreenToSim(to, viewport)
	velocity := b.Sub(a).Mul(c.cfg.Swipe.SpeedScale / c.params.FrameDt)

	speed := velocity.Len()
	if c.cfg.Swipe.MaxSpeed > 0 && speed > c.cfg.Swipe.MaxSpeed {
		velocity = velocity.Mul(c.cfg.Swipe.MaxSpeed / speed)
		speed = c.cfg.Swipe.MaxSpeed
	}
	velocity[2] = speed * c.cfg.Swipe.Lift

	c.InjectForce(b, velocity, c.cfg.Swipe.Radius)
	return true
}
