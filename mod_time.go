package fractal

import (
	"time"
)

type Time struct {
	Time time.Time
	Dt   time.Duration
}

// Seconds is Dt as float seconds, the unit the fractal spins in.
func (t *Time) Seconds() float32 {
	return float32(t.Dt.Seconds())
}

// TimeModule keeps the Time resource current. A non-zero FixedDt replaces the
// wall clock with a constant step, which makes runs reproducible.
type TimeModule struct {
	FixedDt time.Duration
}

func (mod TimeModule) Install(app *App, cmd *Commands) {
	cmd.AddResources(&Time{
		Time: time.Now(),
		Dt:   0,
	})
	if mod.FixedDt > 0 {
		fixed := mod.FixedDt
		cmd.UseSystem(System(func(t *Time) { fixedTimeSystem(t, fixed) }).InStage(Prelude))
		return
	}
	cmd.UseSystem(System(timeSystem).InStage(Prelude))
}

func timeSystem(timeResource *Time) {
	now := time.Now()

	timeResource.Dt = now.Sub(timeResource.Time)
	timeResource.Time = now
}

func fixedTimeSystem(timeResource *Time, dt time.Duration) {
	timeResource.Dt = dt
	timeResource.Time = timeResource.Time.Add(dt)
}
