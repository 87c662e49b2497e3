package fractal

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type MockResource1 struct {
	name string
}
type MockResource2 struct {
	calls int
}

type installFunc func(app *App, cmd *Commands)

func (f installFunc) Install(app *App, cmd *Commands) { f(app, cmd) }

func TestApp_addResources(t *testing.T) {
	app := NewApp()

	resource1 := &MockResource1{name: "Resource1"}
	app.addResources(resource1)

	got, ok := Resource[MockResource1](app)
	require.True(t, ok)
	assert.Same(t, resource1, got)

	assert.Panics(t, func() { app.addResources(&MockResource1{name: "again"}) })
	assert.Panics(t, func() { app.addResources(MockResource2{}) })

	_, ok = Resource[MockResource2](app)
	assert.False(t, ok)
}

func TestApp_systemsReceiveResources(t *testing.T) {
	app := NewApp()
	r1 := &MockResource1{name: "r1"}
	r2 := &MockResource2{}
	app.addResources(r1, r2)

	var seen string
	app.UseSystem(System(func(a *MockResource1, b *MockResource2, cmd *Commands) {
		seen = a.name
		b.calls++
		require.NotNil(t, cmd)
	}))

	app.Step()
	app.Step()
	assert.Equal(t, "r1", seen)
	assert.Equal(t, 2, r2.calls)
	assert.Equal(t, uint64(2), app.Frame())
}

func TestApp_unresolvedDependencyPanics(t *testing.T) {
	app := NewApp()
	app.UseSystem(System(func(*MockResource1) {}))
	assert.Panics(t, app.Step)
}

func TestApp_stageOrder(t *testing.T) {
	app := NewApp()
	custom := Stage{Name: "Custom"}
	app.UseStage(custom, AfterStage(Update))

	var order []string
	record := func(name string) func() {
		return func() { order = append(order, name) }
	}
	app.UseSystem(System(record("render")).InStage(Render))
	app.UseSystem(System(record("custom")).InStage(custom))
	app.UseSystem(System(record("update")))
	app.UseSystem(System(record("prelude")).InStage(Prelude))

	app.Step()
	assert.Equal(t, []string{"prelude", "update", "custom", "render"}, order)

	assert.Panics(t, func() { app.UseStage(Stage{Name: "x"}, BeforeStage(Stage{Name: "missing"})) })
	assert.Panics(t, func() { app.UseSystem(System(record("x")).InStage(Stage{Name: "missing"})) })
}

func TestApp_runStopsAndShutsDownInReverse(t *testing.T) {
	app := NewApp()
	var hooks []string
	app.UseModules(installFunc(func(app *App, cmd *Commands) {
		cmd.OnShutdown(func() { hooks = append(hooks, "first") })
		cmd.OnShutdown(func() { hooks = append(hooks, "second") })
		cmd.UseSystem(System(func(cmd *Commands) {
			if cmd.app.Frame() == 2 {
				cmd.Stop()
			}
		}))
	}))

	app.Run(func() bool { return false })
	assert.Equal(t, uint64(3), app.Frame())
	assert.Equal(t, []string{"second", "first"}, hooks)

	app.Shutdown()
	assert.Len(t, hooks, 2)

	app.Step()
	assert.Equal(t, uint64(3), app.Frame())
}

func TestApp_runHonoursDoneFunc(t *testing.T) {
	app := NewApp()
	steps := 0
	app.UseSystem(System(func() { steps++ }))

	app.Run(func() bool { return steps >= 5 })
	assert.Equal(t, 5, steps)
}

func TestApp_loggerFallsBackToNop(t *testing.T) {
	app := NewApp()
	require.NotNil(t, app.Logger())
	assert.False(t, app.Logger().DebugEnabled())

	app.UseModules(LoggingModule{Prefix: "test", Debug: true})
	assert.True(t, app.Logger().DebugEnabled())

	var nilApp *App
	assert.NotNil(t, nilApp.Logger())
}

func TestTimeModule_fixedStep(t *testing.T) {
	app := NewApp()
	app.UseModules(TimeModule{FixedDt: 20 * time.Millisecond})

	res, ok := Resource[Time](app)
	require.True(t, ok)
	start := res.Time

	app.Step()
	app.Step()
	assert.Equal(t, 20*time.Millisecond, res.Dt)
	assert.InDelta(t, 0.02, res.Seconds(), 1e-6)
	assert.True(t, start.Add(40*time.Millisecond).Equal(res.Time))
}

func TestTimeModule_wallClock(t *testing.T) {
	app := NewApp()
	app.UseModules(TimeModule{})
	res, ok := Resource[Time](app)
	require.True(t, ok)

	before := res.Time
	app.Step()
	assert.GreaterOrEqual(t, res.Dt, time.Duration(0))
	assert.False(t, res.Time.Before(before))
}
