package cloth

import (
	"context"
	"errors"
	"time"

	"github.com/gekko3d/cloth/pbd/controller"
	"github.com/gekko3d/cloth/pbd/fabric"
	"github.com/gekko3d/cloth/pbd/gpu"
	"github.com/gekko3d/cloth/pbd/xpbd"
	"github.com/google/uuid"
)

// Session states of a cloth app built with UseStates(ClothBuilding, ClothDone).
// A stateless app steps the cloth every frame instead.
const (
	ClothBuilding State = iota
	ClothRunning
	ClothDiverged
	ClothDone
)

// ClothModule installs a cloth session: a ClothState resource stepped in
// Update and exported to a ClothSnapshotContainer in PostUpdate. In a
// stateful app the session moves from ClothBuilding to ClothRunning once a
// fabric is adopted, to ClothDiverged when the solver blows up and to
// ClothDone after MaxFrames stepped frames or a failed first build.
type ClothModule struct {
	Request fabric.Request
	// Params with zero Substeps fall back to xpbd.DefaultParams.
	Params  xpbd.Params
	Workers int
	UseGPU  bool
	// WarmupFrames below zero keeps the controller default.
	WarmupFrames int
	Swipe        *controller.SwipeConfig
	// AutoReset puts a diverged cloth back to its rest pose on the next frame.
	AutoReset bool
	// StatsEvery logs profiler stats at debug level every n stepped frames.
	StatsEvery int
	// MaxFrames ends the app after that many stepped frames. Zero runs until
	// something else exits.
	MaxFrames int
	// MaxFrameDt caps the clock step fed to the solver. Zero caps it at
	// Params.FrameDt.
	MaxFrameDt float32
}

func DefaultClothModule() ClothModule {
	return ClothModule{
		Request:      fabric.DefaultRequest(),
		Params:       xpbd.DefaultParams(),
		Workers:      1,
		WarmupFrames: -1,
	}
}

type ClothState struct {
	Controller *controller.Controller
	BuildID    uuid.UUID
	Stepped    int
	Resets     int
	LastErr    error

	autoReset  bool
	statsEvery int
	maxFrames  int
	maxFrameDt float32
	log        Logger
}

// Rebuild requests a new fabric; the running one keeps stepping until the
// build is adopted.
func (s *ClothState) Rebuild(req fabric.Request) error {
	id, err := s.Controller.RequestBuild(context.Background(), req)
	if err != nil {
		return err
	}
	s.BuildID = id
	return nil
}

// Simulator picks the backend for new fabrics. The GPU backend falls back to
// workers on the CPU when no adapter is available.
func Simulator(useGPU bool, workers int, log Logger) controller.SimulatorFactory {
	cpu := controller.CPUSimulator(workers)
	if !useGPU {
		return cpu
	}
	return func(f *fabric.ClothFabric) (controller.Simulator, error) {
		s, err := gpu.New(f, gpu.DefaultOptions())
		if errors.Is(err, gpu.ErrNoAdapter) {
			log.Warnf("%v, simulating on the CPU", err)
			return cpu(f)
		}
		if err != nil {
			return nil, err
		}
		return s, nil
	}
}

func (m ClothModule) Install(app *App, cmd *Commands) {
	log := app.Logger()

	cfg := controller.DefaultConfig()
	if m.Params.Substeps > 0 {
		cfg.Params = m.Params
	}
	if m.WarmupFrames >= 0 {
		cfg.WarmupFrames = m.WarmupFrames
	}
	if m.Swipe != nil {
		cfg.Swipe = *m.Swipe
	}
	cfg.NewSimulator = Simulator(m.UseGPU, m.Workers, log)

	state := &ClothState{
		Controller: controller.New(cfg, log),
		autoReset:  m.AutoReset,
		statsEvery: m.StatsEvery,
		maxFrames:  m.MaxFrames,
		maxFrameDt: cfg.Params.FrameDt,
		log:        log,
	}
	if m.MaxFrameDt > 0 {
		state.maxFrameDt = m.MaxFrameDt
	}
	if err := state.Rebuild(m.Request); err != nil {
		state.LastErr = err
		log.Errorf("cloth request rejected: %v", err)
	}

	if Resource[Profiler](app) == nil {
		cmd.AddResources(NewProfiler())
	}
	// Without a TimeModule the clock stays stopped and Params.FrameDt holds.
	if Resource[Time](app) == nil {
		cmd.AddResources(&Time{Time: time.Now()})
	}
	cmd.AddResources(state, &ClothSnapshotContainer{})

	if app.stateful {
		cmd.UseSystem(System(clothBuildingSystem).InStage(Update).InState(OnExecute(ClothBuilding)))
		cmd.UseSystem(System(clothRunningSystem).InStage(Update).InState(OnExecute(ClothRunning)))
		cmd.UseSystem(System(clothDivergedEnterSystem).InStage(Update).InState(OnEnter(ClothDiverged)))
		cmd.UseSystem(System(clothDivergedSystem).InStage(Update).InState(OnExecute(ClothDiverged)))
		cmd.UseSystem(System(clothDoneEnterSystem).InStage(Update).InState(OnEnter(ClothDone)))
	} else {
		cmd.UseSystem(System(clothTickSystem).InStage(Update))
	}
	cmd.UseSystem(System(clothExportSystem).InStage(PostUpdate))
	cmd.OnClose(state.Controller.Close)
}

// syncClock feeds the clock step to the solver as the frame dt.
func (s *ClothState) syncClock(clock *Time) {
	if clock.Dt <= 0 {
		return
	}
	p := s.Controller.Params()
	p.FrameDt = min(float32(clock.Dt.Seconds()), s.maxFrameDt)
	if _, err := s.Controller.SetParams(p); err != nil {
		s.LastErr = err
	}
}

// tick steps the controller once and reports whether a frame was simulated.
func (s *ClothState) tick(prof *Profiler, clock *Time) bool {
	s.syncClock(clock)
	c := s.Controller

	prof.BeginScope("Cloth Tick")
	stepped, err := c.Tick()
	prof.EndScope("Cloth Tick")

	if err != nil {
		s.LastErr = err
	}
	if !stepped {
		return false
	}
	s.Stepped++
	tagFrame(s.log, c.Frame())
	prof.SetCount("Cloth Frame", c.Frame())
	prof.SetCount("Cloth Forces", len(c.ActiveForces()))
	if f := c.Fabric(); f != nil {
		prof.SetCount("Particles", f.ParticleCount())
		prof.SetCount("Stretch Colors", len(f.StretchGroups))
		prof.SetCount("Bending Colors", len(f.BendingGroups))
	}
	if s.statsEvery > 0 && s.Stepped%s.statsEvery == 0 && s.log.DebugEnabled() {
		s.log.Debugf("cloth stats after %d frames:\n%s", s.Stepped, prof.GetStatsString())
	}
	return true
}

func (s *ClothState) reset() bool {
	if err := s.Controller.Reset(); err != nil {
		s.LastErr = err
		return false
	}
	s.Resets++
	return true
}

func (s *ClothState) finished() bool {
	return s.maxFrames > 0 && s.Stepped >= s.maxFrames
}

func clothTickSystem(state *ClothState, prof *Profiler, clock *Time, cmd *Commands) {
	if state.autoReset && state.Controller.Diverged() {
		state.reset()
	}
	state.tick(prof, clock)
	if state.finished() {
		cmd.Exit()
	}
}

func clothBuildingSystem(state *ClothState, prof *Profiler, clock *Time, cmd *Commands) {
	state.tick(prof, clock)
	switch {
	case state.Controller.Fabric() != nil:
		cmd.ChangeState(ClothRunning)
	case state.LastErr != nil:
		state.log.Errorf("no fabric to simulate: %v", state.LastErr)
		cmd.ChangeState(ClothDone)
	}
}

func clothRunningSystem(state *ClothState, prof *Profiler, clock *Time, cmd *Commands) {
	state.tick(prof, clock)
	switch {
	case state.Controller.Diverged():
		cmd.ChangeState(ClothDiverged)
	case state.finished():
		cmd.ChangeState(ClothDone)
	}
}

func clothDivergedEnterSystem(state *ClothState) {
	if state.autoReset {
		state.log.Warnf("cloth diverged after %d frames, resetting", state.Stepped)
	} else {
		state.log.Warnf("cloth diverged after %d frames, waiting for a rebuild", state.Stepped)
	}
}

// clothDivergedSystem resets the cloth when AutoReset is set. Otherwise it
// keeps ticking so that a requested rebuild is adopted.
func clothDivergedSystem(state *ClothState, prof *Profiler, clock *Time, cmd *Commands) {
	if state.autoReset {
		if state.reset() {
			cmd.ChangeState(ClothRunning)
		}
		return
	}
	state.tick(prof, clock)
	if !state.Controller.Diverged() {
		cmd.ChangeState(ClothRunning)
	}
}

func clothDoneEnterSystem(state *ClothState) {
	tagFrame(state.log, -1)
	state.log.Infof("cloth session done after %d frames, %d resets", state.Stepped, state.Resets)
}

func clothExportSystem(state *ClothState, snapshots *ClothSnapshotContainer, prof *Profiler) {
	prof.BeginScope("Cloth Export")
	if snap := state.Controller.Snapshot(); snap != nil {
		snapshots.Update(snap)
	}
	prof.EndScope("Cloth Export")
}
