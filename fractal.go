package fractal

import (
	"errors"
	"fmt"
	"sync"

	"github.com/gekko3d/fractal/rt/core"
	"github.com/gekko3d/fractal/rt/engine"
	"github.com/gekko3d/fractal/rt/instancing"
	"github.com/gekko3d/fractal/rt/tree"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/google/uuid"
)

var (
	ErrInvalidConfiguration = tree.ErrInvalidConfiguration
	ErrResourceExhaustion   = instancing.ErrResourceExhaustion
	ErrNotConfigured        = errors.New("fractal not configured")
	ErrClosed               = errors.New("fractal closed")
)

// HostTransform is the transform of the object the fractal is attached to.
// It is read once per Tick and feeds the root node. The zero value has a
// zero quaternion, which collapses every rotation; start from IdentityHost.
type HostTransform struct {
	Position     mgl32.Vec3
	Rotation     mgl32.Quat
	UniformScale float32
}

func IdentityHost() HostTransform {
	return HostTransform{
		Rotation:     mgl32.QuatIdent(),
		UniformScale: 1,
	}
}

func (h HostTransform) transform() core.Transform {
	return core.Transform{Position: h.Position, Rotation: h.Rotation, Scale: h.UniformScale}
}

// NodeView is a copy of one node, for inspection.
type NodeView struct {
	Level     int
	Index     int
	Archetype core.Archetype
	State     tree.NodeState
}

// Fractal owns the node tree and its per-level instance buffers. Configure,
// Tick and Teardown are serialized, so a rebuild never overlaps a frame.
type Fractal struct {
	ID string

	mu       sync.Mutex
	rate     float32
	wrapSpin bool
	bounds   instancing.Bounds
	every    int

	engine   *engine.Engine
	alloc    instancing.Allocator
	drawer   instancing.Drawer
	mesh     instancing.Mesh
	material instancing.Material
	logger   Logger
	profiler *Profiler

	tree    *tree.Tree
	buffers *instancing.LevelBuffers
	frames  uint64
	closed  bool
}

type FractalOption func(*Fractal)

func WithLogger(logger Logger) FractalOption {
	return func(f *Fractal) {
		if logger != nil {
			f.logger = logger
		}
	}
}

// WithDrawer sets the renderer that receives one draw per level each Tick.
// Without a drawer the buffers are still written but nothing is drawn.
func WithDrawer(drawer instancing.Drawer, mesh instancing.Mesh, material instancing.Material) FractalOption {
	return func(f *Fractal) {
		f.drawer = drawer
		f.mesh = mesh
		f.material = material
	}
}

func WithEngine(e *engine.Engine) FractalOption {
	return func(f *Fractal) {
		f.engine = e
	}
}

// NewFractal creates an unconfigured fractal. A nil allocator keeps the
// instance buffers in host memory.
func NewFractal(cfg Config, alloc instancing.Allocator, options ...FractalOption) *Fractal {
	if alloc == nil {
		alloc = instancing.NewHostAllocator()
	}
	f := &Fractal{
		ID:       uuid.NewString(),
		rate:     cfg.SpinRate(),
		wrapSpin: cfg.WrapSpin,
		bounds:   instancing.CubeBounds(cfg.BoundsSize),
		every:    cfg.ProfileEvery,
		alloc:    alloc,
		logger:   NewNopLogger(),
		profiler: NewProfiler(),
	}
	for _, option := range options {
		option(f)
	}
	f.logger = Named(f.logger, "fractal "+f.ID[:8])
	if f.engine == nil {
		f.engine = engine.New(
			engine.WithWorkers(cfg.Workers),
			engine.WithChunkSize(cfg.ChunkSize),
			engine.WithQueueSize(cfg.QueueSize),
		)
	}
	return f
}

// Configure (re)builds the tree and its instance buffers for depth. Spin
// restarts from zero. On error nothing new is kept and the previous
// configuration, if any, stays in use.
func (f *Fractal) Configure(depth int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return ErrClosed
	}

	t, err := tree.Build(depth)
	if err != nil {
		f.logger.Warnf("configure rejected: %v", err)
		return err
	}

	buffers, err := instancing.Allocate(f.alloc, "fractal-"+f.ID, t.LevelSizes())
	if err != nil {
		f.logger.Errorf("depth %d: %v", depth, err)
		return err
	}

	rebuilt := f.tree != nil
	f.releaseLocked()
	f.tree = t
	f.buffers = buffers
	f.frames = 0
	f.profiler.Reset()

	verb := "configured"
	if rebuilt {
		verb = "rebuilt"
	}
	f.logger.Infof("%s: depth=%d nodes=%d", verb, depth, t.NodeCount())
	return nil
}

// Tick runs one update and render-submit cycle. Each level is uploaded as
// soon as its job completes; draws are requested once every level is done.
func (f *Fractal) Tick(host HostTransform, elapsedSeconds float32) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.tree == nil {
		return ErrNotConfigured
	}

	frame := engine.Frame{
		Host:      host.transform(),
		SpinDelta: f.rate * elapsedSeconds,
		WrapSpin:  f.wrapSpin,
	}

	f.profiler.BeginScope("frame")
	jobs := f.engine.Schedule(f.tree, frame)

	var uploadErr error
	for _, job := range jobs {
		job.Wait()
		f.profiler.SetScope(fmt.Sprintf("level %d", job.Level), job.Elapsed())
		f.profiler.SetCount(fmt.Sprintf("level %d chunks", job.Level), job.Chunks())
		if uploadErr != nil {
			continue
		}
		uploadErr = f.buffers.Upload(job.Level, f.tree.Level(job.Level).Matrices)
	}
	if uploadErr != nil {
		f.profiler.EndScope("frame")
		f.logger.Errorf("upload: %v", uploadErr)
		return uploadErr
	}

	if f.drawer != nil {
		f.buffers.Draw(f.drawer, f.mesh, f.material, f.bounds)
	}
	f.profiler.EndScope("frame")
	f.profiler.SetCount("nodes", f.tree.NodeCount())

	f.frames++
	if f.every > 0 && f.frames%uint64(f.every) == 0 && f.logger.DebugEnabled() {
		f.logger.Debugf("frame %d\n%s", f.frames, f.profiler.StatsString())
	}
	return nil
}

// Teardown releases the tree and every instance buffer. Idempotent.
func (f *Fractal) Teardown() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.releaseLocked() {
		f.logger.Infof("torn down")
	}
}

// Close tears the fractal down and stops its worker pool. Configure returns
// ErrClosed afterwards. Close is idempotent.
func (f *Fractal) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.releaseLocked() {
		f.logger.Infof("torn down")
	}
	f.closed = true
	f.engine.Close()
}

func (f *Fractal) releaseLocked() bool {
	if f.tree == nil {
		return false
	}
	f.buffers.Release()
	f.buffers = nil
	f.tree = nil
	return true
}

func (f *Fractal) Configured() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.tree != nil
}

// Depth is the number of levels, 0 when unconfigured.
func (f *Fractal) Depth() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.tree == nil {
		return 0
	}
	return f.tree.Depth()
}

func (f *Fractal) Frames() uint64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.frames
}

// Node returns a copy of node (level, index).
func (f *Fractal) Node(level, index int) (NodeView, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.tree == nil || level < 0 || level >= f.tree.Depth() {
		return NodeView{}, false
	}
	l := f.tree.Level(level)
	if index < 0 || index >= l.Len() {
		return NodeView{}, false
	}
	return NodeView{
		Level:     level,
		Index:     index,
		Archetype: l.Archetypes[index],
		State:     l.States[index],
	}, true
}

// Snapshot returns a copy of the instance matrices of one level.
func (f *Fractal) Snapshot(level int) []mgl32.Mat4 {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.tree == nil || level < 0 || level >= f.tree.Depth() {
		return nil
	}
	return append([]mgl32.Mat4(nil), f.tree.Level(level).Matrices...)
}

func (f *Fractal) Stats() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.profiler.StatsString()
}
