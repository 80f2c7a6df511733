package cloth

import (
	"time"
)

// Time is the app clock. ClothModule feeds Dt to the solver as the frame
// step, capped by ClothModule.MaxFrameDt.
type Time struct {
	Time  time.Time
	Dt    time.Duration
	Frame int
}

// TimeModule keeps the Time resource current. A non-zero Fixed step advances
// the clock by exactly that much every frame, which keeps headless runs
// reproducible.
type TimeModule struct {
	Fixed time.Duration
}

// Install reuses a Time resource added by an earlier module, such as the
// stopped clock ClothModule provides when installed first.
func (mod TimeModule) Install(app *App, cmd *Commands) {
	if Resource[Time](app) == nil {
		cmd.AddResources(&Time{Time: time.Now()})
	}
	if mod.Fixed > 0 {
		cmd.UseSystem(System(func(t *Time) { fixedTimeSystem(t, mod.Fixed) }).InStage(Prelude))
	} else {
		cmd.UseSystem(System(timeSystem).InStage(Prelude))
	}
}

func timeSystem(timeResource *Time) {
	now := time.Now()

	timeResource.Dt = now.Sub(timeResource.Time)
	timeResource.Time = now
	timeResource.Frame++
}

func fixedTimeSystem(timeResource *Time, step time.Duration) {
	timeResource.Dt = step
	timeResource.Time = timeResource.Time.Add(step)
	timeResource.Frame++
}
