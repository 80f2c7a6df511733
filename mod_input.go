package cloth

import (
	"sync"

	"github.com/go-gl/mathgl/mgl32"
)

type PointerPhase int

const (
	PointerBegin PointerPhase = iota
	PointerMove
	PointerEnd
)

type PointerEvent struct {
	Phase    PointerPhase
	Position mgl32.Vec2
}

// Pointer queues touch or mouse events from the windowing layer. Events may
// be pushed from any goroutine and are consumed once per frame.
type Pointer struct {
	mu       sync.Mutex
	events   []PointerEvent
	viewport mgl32.Vec2

	down    bool
	hasLast bool
	last    mgl32.Vec2
	Swipes  int
}

func (p *Pointer) push(e PointerEvent) {
	p.mu.Lock()
	p.events = append(p.events, e)
	p.mu.Unlock()
}

func (p *Pointer) TouchBegin(pos mgl32.Vec2) { p.push(PointerEvent{Phase: PointerBegin, Position: pos}) }
func (p *Pointer) TouchMove(pos mgl32.Vec2)  { p.push(PointerEvent{Phase: PointerMove, Position: pos}) }
func (p *Pointer) TouchEnd(pos mgl32.Vec2)   { p.push(PointerEvent{Phase: PointerEnd, Position: pos}) }

// SetViewport records the size of the surface in pixels.
func (p *Pointer) SetViewport(width, height int) {
	p.mu.Lock()
	p.viewport = mgl32.Vec2{float32(width), float32(height)}
	p.mu.Unlock()
}

func (p *Pointer) drain() ([]PointerEvent, mgl32.Vec2) {
	p.mu.Lock()
	defer p.mu.Unlock()
	events := p.events
	p.events = nil
	return events, p.viewport
}

// InputModule turns pointer drags into swipe forces on the cloth. Install it
// after ClothModule.
type InputModule struct {
	Width, Height int
}

func (mod InputModule) Install(app *App, cmd *Commands) {
	p := &Pointer{}
	p.SetViewport(mod.Width, mod.Height)
	cmd.AddResources(p)
	cmd.UseSystem(System(inputSystem).InStage(PreUpdate))
}

// inputSystem feeds every move of a drag to the controller. The first move
// after a touch begins only records the position.
func inputSystem(p *Pointer, state *ClothState) {
	events, viewport := p.drain()
	for _, e := range events {
		switch e.Phase {
		case PointerBegin:
			p.down = true
			p.hasLast = false
		case PointerMove:
			if !p.down {
				continue
			}
			if p.hasLast && state.Controller.InjectSwipe(p.last, e.Position, viewport) {
				p.Swipes++
			}
			p.last = e.Position
			p.hasLast = true
		case PointerEnd:
			p.down = false
			p.hasLast = false
		}
	}
}
