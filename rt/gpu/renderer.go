package gpu

import (
	"fmt"

	"github.com/cogentcore/webgpu/wgpu"
	"github.com/cogentcore/webgpu/wgpuglfw"
	"github.com/go-gl/glfw/v3.3/glfw"
)

// Renderer owns the device and swapchain of one window and draws the
// instanced pass into it every frame.
type Renderer struct {
	Window   *glfw.Window
	Instance *wgpu.Instance
	Adapter  *wgpu.Adapter
	Device   *wgpu.Device
	Queue    *wgpu.Queue
	Surface  *wgpu.Surface
	Config   *wgpu.SurfaceConfiguration

	DepthTexture *wgpu.Texture
	DepthView    *wgpu.TextureView

	Pass      *InstancedPass
	Allocator *Allocator
	Cube      *Mesh
	Material  *Material

	ClearColor wgpu.Color
}

func NewRenderer(window *glfw.Window, color [4]float32) (*Renderer, error) {
	r := &Renderer{
		Window:     window,
		ClearColor: wgpu.Color{R: 0.05, G: 0.05, B: 0.08, A: 1},
	}

	r.Instance = wgpu.CreateInstance(nil)
	r.Surface = r.Instance.CreateSurface(wgpuglfw.GetSurfaceDescriptor(window))

	adapter, err := r.Instance.RequestAdapter(&wgpu.RequestAdapterOptions{
		CompatibleSurface: r.Surface,
		PowerPreference:   wgpu.PowerPreferenceHighPerformance,
	})
	if err != nil {
		return nil, fmt.Errorf("request adapter: %w", err)
	}
	r.Adapter = adapter

	r.Device, err = adapter.RequestDevice(nil)
	if err != nil {
		return nil, fmt.Errorf("request device: %w", err)
	}
	r.Queue = r.Device.GetQueue()

	width, height := window.GetFramebufferSize()
	caps := r.Surface.GetCapabilities(adapter)
	r.Config = &wgpu.SurfaceConfiguration{
		Usage:       wgpu.TextureUsageRenderAttachment,
		Format:      caps.Formats[0],
		Width:       uint32(width),
		Height:      uint32(height),
		PresentMode: wgpu.PresentModeFifo,
		AlphaMode:   caps.AlphaModes[0],
	}
	r.Surface.Configure(adapter, r.Device, r.Config)

	if err := r.setupDepth(width, height); err != nil {
		return nil, err
	}

	if r.Pass, err = NewInstancedPass(r.Device, r.Config.Format); err != nil {
		return nil, fmt.Errorf("instanced pass: %w", err)
	}
	if r.Cube, err = NewCubeMesh(r.Device); err != nil {
		return nil, err
	}
	if r.Material, err = r.Pass.NewMaterial(color); err != nil {
		return nil, fmt.Errorf("material: %w", err)
	}
	r.Allocator = NewAllocator(r.Device)
	return r, nil
}

func (r *Renderer) setupDepth(w, h int) error {
	if w == 0 || h == 0 {
		return nil
	}
	if r.DepthView != nil {
		r.DepthView.Release()
	}
	if r.DepthTexture != nil {
		r.DepthTexture.Release()
	}

	var err error
	r.DepthTexture, err = r.Device.CreateTexture(&wgpu.TextureDescriptor{
		Label:         "Depth Texture",
		Size:          wgpu.Extent3D{Width: uint32(w), Height: uint32(h), DepthOrArrayLayers: 1},
		MipLevelCount: 1,
		SampleCount:   1,
		Dimension:     wgpu.TextureDimension2D,
		Format:        DepthFormat,
		Usage:         wgpu.TextureUsageRenderAttachment,
	})
	if err != nil {
		return fmt.Errorf("depth texture: %w", err)
	}
	r.DepthView, err = r.DepthTexture.CreateView(nil)
	if err != nil {
		return fmt.Errorf("depth view: %w", err)
	}
	return nil
}

// Resize reconfigures the surface after a framebuffer size change. A
// minimised window (0x0) is ignored.
func (r *Renderer) Resize(w, h int) error {
	if w <= 0 || h <= 0 {
		return nil
	}
	r.Config.Width = uint32(w)
	r.Config.Height = uint32(h)
	r.Surface.Configure(r.Adapter, r.Device, r.Config)
	return r.setupDepth(w, h)
}

func (r *Renderer) Aspect() float32 {
	if r.Config.Height == 0 {
		return 1
	}
	return float32(r.Config.Width) / float32(r.Config.Height)
}

// BeginFrame fits the camera to the surface and uploads it.
func (r *Renderer) BeginFrame(cam *OrbitCamera) {
	cam.Aspect = r.Aspect()
	r.Pass.SetCamera(r.Queue, cam)
}

// Render encodes the queued draws, submits and presents. The draw queue is
// emptied even when the frame cannot be rendered.
func (r *Renderer) Render() error {
	next, err := r.Surface.GetCurrentTexture()
	if err != nil {
		r.Pass.Discard()
		return fmt.Errorf("get current texture: %w", err)
	}
	defer next.Release()

	view, err := next.CreateView(nil)
	if err != nil {
		r.Pass.Discard()
		return fmt.Errorf("create view: %w", err)
	}
	defer view.Release()

	encoder, err := r.Device.CreateCommandEncoder(nil)
	if err != nil {
		r.Pass.Discard()
		return fmt.Errorf("create command encoder: %w", err)
	}

	pass := encoder.BeginRenderPass(&wgpu.RenderPassDescriptor{
		ColorAttachments: []wgpu.RenderPassColorAttachment{{
			View:       view,
			LoadOp:     wgpu.LoadOpClear,
			StoreOp:    wgpu.StoreOpStore,
			ClearValue: r.ClearColor,
		}},
		DepthStencilAttachment: &wgpu.RenderPassDepthStencilAttachment{
			View:            r.DepthView,
			DepthLoadOp:     wgpu.LoadOpClear,
			DepthStoreOp:    wgpu.StoreOpDiscard,
			DepthClearValue: 1.0,
		},
	})
	r.Pass.Encode(pass)
	if err := pass.End(); err != nil {
		return fmt.Errorf("render pass end: %w", err)
	}

	cmd, err := encoder.Finish(nil)
	if err != nil {
		return fmt.Errorf("encoder finish: %w", err)
	}
	r.Queue.Submit(cmd)
	r.Surface.Present()
	return nil
}

// Release frees every GPU object owned by the renderer. Instance buffers
// belong to whoever allocated them and must be released first.
func (r *Renderer) Release() {
	if r.Material != nil {
		r.Material.Release()
	}
	if r.Cube != nil {
		r.Cube.Release()
	}
	if r.Pass != nil {
		r.Pass.Release()
	}
	if r.DepthView != nil {
		r.DepthView.Release()
	}
	if r.DepthTexture != nil {
		r.DepthTexture.Release()
	}
	if r.Device != nil {
		r.Device.Release()
	}
	if r.Adapter != nil {
		r.Adapter.Release()
	}
	if r.Surface != nil {
		r.Surface.Release()
	}
	if r.Instance != nil {
		r.Instance.Release()
	}
}
