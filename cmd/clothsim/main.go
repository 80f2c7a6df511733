// Command clothsim runs a headless cloth simulation and optionally writes
// PNG previews of the settled frames.
package main

import (
	"flag"
	"log"
	"time"

	"github.com/gekko3d/cloth"
	"github.com/gekko3d/cloth/pbd/fabric"
	"github.com/go-gl/mathgl/mgl32"
)

func main() {
	var (
		width    = flag.Int("w", 50, "particles per row")
		height   = flag.Int("h", 50, "particle rows")
		frames   = flag.Int("frames", 300, "frames to simulate")
		useGPU   = flag.Bool("gpu", false, "simulate with WebGPU compute kernels")
		workers  = flag.Int("workers", 1, "CPU workers per color group")
		out      = flag.String("out", "", "directory for PNG previews")
		every    = flag.Int("every", 30, "write a preview every n frames")
		swipe    = flag.Bool("swipe", false, "drag across the cloth once warmup is over")
		pin      = flag.String("pin", "corners", "pinned particles: corners, top-row or none")
		substeps = flag.Int("substeps", 15, "solver substeps per frame")
		wind     = flag.Float64("wind", 0, "constant wind acceleration along +z")
		logLevel = flag.String("log", "info", "log level: debug, info, warn or error")
	)
	flag.Parse()

	pinMode, err := fabric.ParsePinMode(*pin)
	if err != nil {
		log.Fatalf("invalid -pin: %v", err)
	}
	level, err := cloth.ParseLevel(*logLevel)
	if err != nil {
		log.Fatalf("invalid -log: %v", err)
	}

	mod := cloth.DefaultClothModule()
	mod.Request.HorizontalNum = *width
	mod.Request.VerticalNum = *height
	mod.Request.Pin = pinMode
	mod.Request.Wind = mgl32.Vec3{0, 0, float32(*wind)}
	mod.Params.Substeps = *substeps
	mod.Workers = *workers
	mod.UseGPU = *useGPU
	mod.StatsEvery = *every
	mod.MaxFrames = *frames

	const viewport = 800
	modules := []cloth.Module{
		cloth.LoggingModule{Prefix: "clothsim", Level: level},
		cloth.TimeModule{Fixed: time.Duration(mod.Params.FrameDt * float32(time.Second))},
		cloth.ProfilerModule{},
		mod,
		cloth.InputModule{Width: viewport, Height: viewport},
	}
	if *out != "" {
		modules = append(modules, cloth.PreviewModule{Dir: *out, Every: *every})
	}
	if *swipe {
		modules = append(modules, swipeScript{viewport: viewport})
	}
	app := cloth.NewAppBuilder().
		UseStates(cloth.ClothBuilding, cloth.ClothDone).
		UseModule(modules...).
		Build()
	logger := app.Logger()
	state := cloth.Resource[cloth.ClothState](app)
	pointer := cloth.Resource[cloth.Pointer](app)

	start := time.Now()
	app.Run()
	elapsed := time.Since(start)

	logger.Infof("simulated %d frames in %s (%.2f ms/frame), %d swipes, %d resets",
		state.Stepped, elapsed.Round(time.Millisecond),
		float64(elapsed.Microseconds())/1000/float64(max(state.Stepped, 1)),
		pointer.Swipes, state.Resets)
	if state.LastErr != nil {
		if state.Stepped == 0 {
			log.Fatalf("no frames simulated: %v", state.LastErr)
		}
		logger.Warnf("last error: %v", state.LastErr)
	}
	if pv := cloth.Resource[cloth.PreviewState](app); pv != nil {
		logger.Infof("wrote %d previews to %s", len(pv.Written), pv.Dir)
	}
}

// swipeScript drags across the middle of the viewport over 20 frames, once
// the controller warmup is over.
type swipeScript struct {
	viewport int
}

func (m swipeScript) Install(app *cloth.App, cmd *cloth.Commands) {
	cmd.UseSystem(cloth.System(func(state *cloth.ClothState, p *cloth.Pointer) {
		scriptSwipe(p, state.Stepped, m.viewport)
	}).InStage(cloth.Prelude))
}

func scriptSwipe(p *cloth.Pointer, frame, viewport int) {
	const begin, length = 20, 20
	y := float32(viewport) / 2
	step := float32(viewport) / 2 / length
	x := float32(viewport)/4 + float32(frame-begin)*step
	switch {
	case frame == begin:
		p.TouchBegin(mgl32.Vec2{x, y})
	case frame > begin && frame < begin+length:
		p.TouchMove(mgl32.Vec2{x, y})
	case frame == begin+length:
		p.TouchEnd(mgl32.Vec2{x, y})
	}
}
