package fractal

import (
	"fmt"

	"github.com/gekko3d/fractal/rt/instancing"
)

// FractalModule attaches one fractal to the App. It configures on install,
// ticks in Update with the Time resource and tears down on shutdown.
type FractalModule struct {
	Config    Config
	Allocator instancing.Allocator
	Drawer    instancing.Drawer
	Mesh      instancing.Mesh
	Material  instancing.Material
}

func (m FractalModule) Install(app *App, cmd *Commands) {
	logger := app.Logger()

	f := NewFractal(m.Config, m.Allocator,
		WithLogger(logger),
		WithDrawer(m.Drawer, m.Mesh, m.Material),
	)
	if err := f.Configure(m.Config.Depth); err != nil {
		f.Close()
		panic(fmt.Sprintf("FractalModule: %v", err))
	}

	host := IdentityHost()
	host.UniformScale = m.Config.HostScale

	cmd.AddResources(f, &host)
	cmd.UseSystem(System(fractalTickSystem).InStage(Update))
	cmd.OnShutdown(f.Close)
}

func fractalTickSystem(f *Fractal, host *HostTransform, t *Time, cmd *Commands) {
	if err := f.Tick(*host, t.Seconds()); err != nil {
		cmd.Logger().Errorf("fractal %s: tick: %v", f.ID, err)
	}
}
