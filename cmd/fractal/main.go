package main

import (
	"flag"
	"math"
	"runtime"

	"github.com/gekko3d/fractal"
	"github.com/gekko3d/fractal/rt/gpu"
	"github.com/go-gl/glfw/v3.3/glfw"
	"github.com/go-gl/mathgl/mgl32"
)

func init() {
	runtime.LockOSThread()
}

// viewer is the window-side state shared by the demo systems.
type viewer struct {
	Window       *glfw.Window
	PendingDepth int
	Orbit        float32
	MoveHost     bool
	elapsed      float64
}

type viewerModule struct {
	window   *glfw.Window
	renderer *gpu.Renderer
}

func (m viewerModule) Install(app *fractal.App, cmd *fractal.Commands) {
	v := &viewer{Window: m.window, MoveHost: true}
	cam := gpu.NewOrbitCamera()

	cmd.AddResources(v, cam, m.renderer)
	// Registered before FractalModule so the renderer outlives the fractal's
	// instance buffers at shutdown.
	cmd.OnShutdown(m.renderer.Release)

	m.window.SetFramebufferSizeCallback(func(w *glfw.Window, width, height int) {
		if err := m.renderer.Resize(width, height); err != nil {
			cmd.Logger().Errorf("resize: %v", err)
		}
	})
	m.window.SetKeyCallback(func(w *glfw.Window, key glfw.Key, scancode int, action glfw.Action, mods glfw.ModifierKey) {
		if action == glfw.Release {
			return
		}
		switch {
		case key == glfw.KeyEscape:
			w.SetShouldClose(true)
		case key >= glfw.Key1 && key <= glfw.Key8:
			v.PendingDepth = int(key-glfw.Key1) + 1
		case key == glfw.KeyLeft:
			v.Orbit = -1
		case key == glfw.KeyRight:
			v.Orbit = 1
		case key == glfw.KeySpace && action == glfw.Press:
			v.MoveHost = !v.MoveHost
		}
	})

	cmd.UseSystem(fractal.System(pollEventsSystem).InStage(fractal.Prelude))
	cmd.UseSystem(fractal.System(reconfigureSystem).InStage(fractal.PreUpdate))
	cmd.UseSystem(fractal.System(moveHostSystem).InStage(fractal.PreUpdate))
	cmd.UseSystem(fractal.System(cameraSystem).InStage(fractal.PreUpdate))
	cmd.UseSystem(fractal.System(renderSystem).InStage(fractal.Render))
}

func pollEventsSystem(v *viewer) {
	v.Orbit = 0
	glfw.PollEvents()
}

func reconfigureSystem(v *viewer, f *fractal.Fractal, cmd *fractal.Commands) {
	if v.PendingDepth == 0 {
		return
	}
	depth := v.PendingDepth
	v.PendingDepth = 0
	if depth == f.Depth() {
		return
	}
	if err := f.Configure(depth); err != nil {
		cmd.Logger().Errorf("reconfigure to depth %d: %v", depth, err)
	}
}

func moveHostSystem(v *viewer, host *fractal.HostTransform, t *fractal.Time) {
	if !v.MoveHost {
		return
	}
	v.elapsed += t.Dt.Seconds()
	host.Position = mgl32.Vec3{0, 0.25 * float32(math.Sin(v.elapsed)), 0}
	host.Rotation = mgl32.QuatRotate(float32(v.elapsed)*0.3, mgl32.Vec3{1, 0, 1}.Normalize())
}

func cameraSystem(v *viewer, cam *gpu.OrbitCamera, r *gpu.Renderer, t *fractal.Time) {
	cam.Yaw += v.Orbit * 1.5 * t.Seconds()
	r.BeginFrame(cam)
}

func renderSystem(r *gpu.Renderer, cmd *fractal.Commands) {
	if err := r.Render(); err != nil {
		cmd.Logger().Errorf("render: %v", err)
	}
}

func main() {
	configPath := flag.String("config", "", "YAML or TOML config file")
	depth := flag.Int("depth", 0, "Fractal depth 1..8, overrides the config")
	debug := flag.Bool("debug", false, "Enable debug logging and periodic stats")
	flag.Parse()

	cfg := fractal.DefaultConfig()
	if *configPath != "" {
		loaded, err := fractal.LoadConfig(*configPath)
		if err != nil {
			panic(err)
		}
		cfg = loaded
	}
	if *depth != 0 {
		cfg.Depth = *depth
	}
	cfg.Debug = cfg.Debug || *debug
	if err := cfg.Validate(); err != nil {
		panic(err)
	}

	if err := glfw.Init(); err != nil {
		panic(err)
	}
	defer glfw.Terminate()

	glfw.WindowHint(glfw.ClientAPI, glfw.NoAPI)
	window, err := glfw.CreateWindow(cfg.Window.Width, cfg.Window.Height, cfg.Window.Title, nil, nil)
	if err != nil {
		panic(err)
	}
	defer window.Destroy()

	renderer, err := gpu.NewRenderer(window, [4]float32{0.9, 0.55, 0.2, 1})
	if err != nil {
		panic(err)
	}

	app := fractal.NewApp().UseModules(
		fractal.LoggingModule{Prefix: "fractal", Debug: cfg.Debug},
		fractal.TimeModule{FixedDt: cfg.FixedDt()},
		viewerModule{window: window, renderer: renderer},
		fractal.FractalModule{
			Config:    cfg,
			Allocator: renderer.Allocator,
			Drawer:    renderer.Pass,
			Mesh:      renderer.Cube,
			Material:  renderer.Material,
		},
	)
	app.Run(window.ShouldClose)
}
