// Package controller owns a cloth simulation session: it builds fabrics off
// the frame loop, adopts finished builds between frames, feeds the simulator
// a parameter snapshot every tick and exports read-only snapshots.
package controller

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/gekko3d/cloth/pbd/dispatch"
	"github.com/gekko3d/cloth/pbd/fabric"
	"github.com/gekko3d/cloth/pbd/xpbd"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/google/uuid"
)

var ErrNotReady = errors.New("no active fabric")

type Logger interface {
	Debugf(format string, args ...any)
	Infof(format string, args ...any)
	Warnf(format string, args ...any)
	Errorf(format string, args ...any)
}

type nopLogger struct{}

func (nopLogger) Debugf(string, ...any) {}
func (nopLogger) Infof(string, ...any)  {}
func (nopLogger) Warnf(string, ...any)  {}
func (nopLogger) Errorf(string, ...any) {}

// Simulator advances particle state. xpbd.Solver and gpu.ComputeSolver
// implement it.
type Simulator interface {
	Step(p xpbd.Params) error
	Reset() error
	Positions() []mgl32.Vec3
	Close()
}

// SimulatorFactory creates the simulator for a freshly adopted fabric.
type SimulatorFactory func(f *fabric.ClothFabric) (Simulator, error)

// CPUSimulator returns a factory for xpbd solvers. More than one worker
// projects each color group on a worker pool.
func CPUSimulator(workers int) SimulatorFactory {
	return func(f *fabric.ClothFabric) (Simulator, error) {
		var d dispatch.Dispatcher = dispatch.Serial{}
		if workers > 1 {
			d = dispatch.NewWorkerPool(workers)
		}
		return xpbd.New(f, d), nil
	}
}

type Config struct {
	Params       xpbd.Params
	NewSimulator SimulatorFactory
	// WarmupFrames is the number of frames stepped before external forces
	// are applied.
	WarmupFrames int
	Swipe        SwipeConfig
}

func DefaultConfig() Config {
	return Config{
		Params:       xpbd.DefaultParams(),
		NewSimulator: CPUSimulator(1),
		WarmupFrames: 10,
		Swipe:        DefaultSwipeConfig(),
	}
}

type buildResult struct {
	generation uint64
	id         uuid.UUID
	fabric     *fabric.ClothFabric
	err        error
}

// Controller is driven by a single frame loop goroutine. RequestBuild and
// Await may be called from any goroutine.
type Controller struct {
	cfg Config
	log Logger

	mu         sync.Mutex
	generation atomic.Uint64
	cancel     context.CancelFunc
	done       chan struct{}
	pending    atomic.Pointer[buildResult]

	fabric   *fabric.ClothFabric
	sim      Simulator
	view     View
	params   xpbd.Params
	forces   []xpbd.ExternalForce
	frame    int
	diverged error
	buildErr error
}

func New(cfg Config, log Logger) *Controller {
	if log == nil {
		log = nopLogger{}
	}
	if cfg.NewSimulator == nil {
		cfg.NewSimulator = CPUSimulator(1)
	}
	done := make(chan struct{})
	close(done)
	return &Controller{
		cfg:    cfg,
		log:    log,
		done:   done,
		params: withoutForces(cfg.Params),
	}
}

// RequestBuild validates req synchronously and starts building the fabric in
// the background. A previous in-flight build is cancelled and its result is
// discarded. ctx bounds the background build.
func (c *Controller) RequestBuild(ctx context.Context, req fabric.Request) (uuid.UUID, error) {
	if err := req.Validate(); err != nil {
		return uuid.Nil, err
	}

	id := uuid.New()
	buildCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})

	c.mu.Lock()
	if c.cancel != nil {
		c.cancel()
	}
	gen := c.generation.Add(1)
	c.cancel = cancel
	c.done = done
	c.mu.Unlock()

	c.log.Debugf("building fabric %s (%dx%d, generation %d)", id, req.HorizontalNum, req.VerticalNum, gen)

	go func() {
		defer close(done)
		defer cancel()

		f, err := fabric.Build(buildCtx, req)
		if f != nil {
			f.ID = id
		}
		c.publish(&buildResult{generation: gen, id: id, fabric: f, err: err})
	}()

	return id, nil
}

// publish hands a finished build to the frame loop unless a newer build
// already superseded it.
func (c *Controller) publish(res *buildResult) {
	for {
		if c.generation.Load() != res.generation {
			c.log.Debugf("discarding stale fabric build %s", res.id)
			return
		}
		cur := c.pending.Load()
		if cur != nil && cur.generation > res.generation {
			c.log.Debugf("discarding stale fabric build %s", res.id)
			return
		}
		if c.pending.CompareAndSwap(cur, res) {
			return
		}
	}
}

// Await blocks until the most recently requested build finished. It returns
// the build error, if any; the result is adopted by the next Tick.
func (c *Controller) Await(ctx context.Context) error {
	c.mu.Lock()
	done := c.done
	c.mu.Unlock()

	select {
	case <-done:
	case <-ctx.Done():
		return ctx.Err()
	}
	if res := c.pending.Load(); res != nil && res.generation == c.generation.Load() {
		return res.err
	}
	return nil
}

// adopt swaps in a finished build. It runs between frames only.
func (c *Controller) adopt() error {
	res := c.pending.Swap(nil)
	if res == nil {
		return nil
	}
	if res.generation != c.generation.Load() {
		c.log.Debugf("discarding stale fabric build %s", res.id)
		return nil
	}
	if res.err != nil {
		c.buildErr = fmt.Errorf("fabric build %s: %w", res.id, res.err)
		c.log.Errorf("%v", c.buildErr)
		return c.buildErr
	}

	sim, err := c.cfg.NewSimulator(res.fabric)
	if err != nil {
		c.buildErr = fmt.Errorf("simulator for fabric %s: %w", res.id, err)
		c.log.Errorf("%v", c.buildErr)
		return c.buildErr
	}
	if c.sim != nil {
		c.sim.Close()
	}

	f := res.fabric
	c.fabric = f
	c.sim = sim
	c.view = ViewFor(f)
	c.frame = 0
	c.forces = c.forces[:0]
	c.diverged = nil
	c.buildErr = nil

	c.log.Infof("adopted fabric %s: %dx%d particles, %d stretch constraints in %d colors, %d bending constraints in %d colors",
		f.ID, f.HorizontalNum, f.VerticalNum,
		len(f.Stretch), len(f.StretchGroups), len(f.Bending), len(f.BendingGroups))
	return nil
}

// Tick adopts a finished build if one is waiting and advances the active
// simulator by one frame. It reports whether a frame was stepped. Build
// failures and divergence are returned once; a diverged session stays idle
// until Reset.
func (c *Controller) Tick() (bool, error) {
	if err := c.adopt(); err != nil {
		return false, err
	}
	if c.sim == nil || c.diverged != nil {
		return false, nil
	}

	p := c.params
	applyForces := c.frame >= c.cfg.WarmupFrames && len(c.forces) > 0
	if applyForces {
		p.Forces = c.forces
	}

	if err := c.sim.Step(p); err != nil {
		if errors.Is(err, xpbd.ErrDiverged) {
			c.diverged = err
			c.log.Errorf("fabric %s diverged at frame %d: %v", c.fabric.ID, c.frame, err)
		} else {
			c.log.Warnf("step failed at frame %d: %v", c.frame, err)
		}
		return false, err
	}

	c.frame++
	if applyForces {
		c.ageForces()
	}
	return true, nil
}

func (c *Controller) ageForces() {
	alive := c.forces[:0]
	for _, f := range c.forces {
		f.FramesLeft--
		if f.Active() {
			alive = append(alive, f)
		}
	}
	c.forces = alive
}

// SetParams replaces the parameter snapshot when any value moved by more
// than xpbd.ParamEpsilon. It reports whether the snapshot changed.
func (c *Controller) SetParams(p xpbd.Params) (bool, error) {
	p = withoutForces(p)
	if err := p.Validate(); err != nil {
		return false, err
	}
	if !p.Differs(c.params, xpbd.ParamEpsilon) {
		return false, nil
	}
	c.params = p
	c.log.Debugf("params updated: gravity=%g damping=%g compliance=%g stiffness=%g substeps=%d",
		p.Gravity, p.Damping, p.Compliance, p.Stiffness, p.Substeps)
	return true, nil
}

func (c *Controller) Params() xpbd.Params {
	return c.params
}

// InjectForce adds a transient force that lives for Swipe.Lifetime applied
// frames. The oldest force is dropped beyond xpbd.MaxForces.
func (c *Controller) InjectForce(center, velocity mgl32.Vec3, radius float32) {
	if !(radius > 0) {
		return
	}
	lifetime := max(c.cfg.Swipe.Lifetime, 1)
	c.forces = append(c.forces, xpbd.ExternalForce{
		Center:     center,
		Velocity:   velocity,
		Radius:     radius,
		FramesLeft: lifetime,
		Lifetime:   lifetime,
	})
	if n := len(c.forces); n > xpbd.MaxForces {
		c.forces = append(c.forces[:0], c.forces[n-xpbd.MaxForces:]...)
	}
}

// ActiveForces returns a copy of the pending forces.
func (c *Controller) ActiveForces() []xpbd.ExternalForce {
	out := make([]xpbd.ExternalForce, len(c.forces))
	copy(out, c.forces)
	return out
}

// Reset puts the active fabric back to its rest pose, keeping constraints
// and coloring. It recovers a diverged session.
func (c *Controller) Reset() error {
	if c.sim == nil {
		return ErrNotReady
	}
	if err := c.sim.Reset(); err != nil {
		return err
	}
	c.frame = 0
	c.forces = c.forces[:0]
	c.diverged = nil
	c.log.Infof("fabric %s reset to rest pose", c.fabric.ID)
	return nil
}

func (c *Controller) Fabric() *fabric.ClothFabric {
	return c.fabric
}

func (c *Controller) Frame() int {
	return c.frame
}

func (c *Controller) Diverged() bool {
	return c.diverged != nil
}

// BuildErr is the error of the last failed build, cleared on adoption.
func (c *Controller) BuildErr() error {
	return c.buildErr
}

// Close cancels an in-flight build and releases the simulator.
func (c *Controller) Close() {
	c.mu.Lock()
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
	c.generation.Add(1)
	c.mu.Unlock()

	if c.sim != nil {
		c.sim.Close()
		c.sim = nil
	}
	c.fabric = nil
}

func withoutForces(p xpbd.Params) xpbd.Params {
	p.Forces = nil
	return p
}
