package gpu

import (
	"fmt"
	"unsafe"

	"github.com/cogentcore/webgpu/wgpu"
	"github.com/gekko3d/fractal/rt/instancing"
	"github.com/gekko3d/fractal/rt/shaders"
	"github.com/go-gl/mathgl/mgl32"
)

const DepthFormat = wgpu.TextureFormatDepth24Plus

// CameraUniform matches Camera in fractal.wgsl.
type CameraUniform struct {
	ViewProj mgl32.Mat4
	Eye      [4]float32
}

// Material is a flat colour bound at group 1.
type Material struct {
	Color     [4]float32
	buffer    *wgpu.Buffer
	bindGroup *wgpu.BindGroup
}

func (m *Material) Release() {
	if m.bindGroup != nil {
		m.bindGroup.Release()
		m.bindGroup = nil
	}
	if m.buffer != nil {
		m.buffer.Release()
		m.buffer = nil
	}
}

// Draw is one instanced draw queued for the next Encode.
type Draw struct {
	Mesh      *Mesh
	Material  *Material
	Instances *InstanceBuffer
	Bounds    instancing.Bounds
	Count     uint32
}

// InstancedPass collects instanced draws during a frame and encodes them into
// a render pass.
type InstancedPass struct {
	Device   *wgpu.Device
	Pipeline *wgpu.RenderPipeline

	cameraBuffer    *wgpu.Buffer
	cameraBindGroup *wgpu.BindGroup

	draws   []Draw
	skipped int
}

func NewInstancedPass(device *wgpu.Device, format wgpu.TextureFormat) (*InstancedPass, error) {
	shaderModule, err := device.CreateShaderModule(&wgpu.ShaderModuleDescriptor{
		Label:          "FractalShader",
		WGSLDescriptor: &wgpu.ShaderModuleWGSLDescriptor{Code: shaders.FractalWGSL},
	})
	if err != nil {
		return nil, err
	}

	cameraBGL, err := device.CreateBindGroupLayout(&wgpu.BindGroupLayoutDescriptor{
		Label: "FractalCameraBGL",
		Entries: []wgpu.BindGroupLayoutEntry{{
			Binding:    0,
			Visibility: wgpu.ShaderStageVertex | wgpu.ShaderStageFragment,
			Buffer: wgpu.BufferBindingLayout{
				Type:           wgpu.BufferBindingTypeUniform,
				MinBindingSize: uint64(unsafe.Sizeof(CameraUniform{})),
			},
		}},
	})
	if err != nil {
		return nil, err
	}

	materialBGL, err := device.CreateBindGroupLayout(&wgpu.BindGroupLayoutDescriptor{
		Label: "FractalMaterialBGL",
		Entries: []wgpu.BindGroupLayoutEntry{{
			Binding:    0,
			Visibility: wgpu.ShaderStageFragment,
			Buffer: wgpu.BufferBindingLayout{
				Type:           wgpu.BufferBindingTypeUniform,
				MinBindingSize: 16,
			},
		}},
	})
	if err != nil {
		return nil, err
	}

	pipelineLayout, err := device.CreatePipelineLayout(&wgpu.PipelineLayoutDescriptor{
		Label:            "FractalPipelineLayout",
		BindGroupLayouts: []*wgpu.BindGroupLayout{cameraBGL, materialBGL},
	})
	if err != nil {
		return nil, err
	}

	instanceAttributes := make([]wgpu.VertexAttribute, 4)
	for col := range instanceAttributes {
		instanceAttributes[col] = wgpu.VertexAttribute{
			Format:         wgpu.VertexFormatFloat32x4,
			Offset:         uint64(col * 16),
			ShaderLocation: uint32(2 + col),
		}
	}

	pipeline, err := device.CreateRenderPipeline(&wgpu.RenderPipelineDescriptor{
		Label:  "FractalPipeline",
		Layout: pipelineLayout,
		Vertex: wgpu.VertexState{
			Module:     shaderModule,
			EntryPoint: "vs_main",
			Buffers: []wgpu.VertexBufferLayout{
				{
					ArrayStride: uint64(unsafe.Sizeof(MeshVertex{})),
					StepMode:    wgpu.VertexStepModeVertex,
					Attributes: []wgpu.VertexAttribute{
						{Format: wgpu.VertexFormatFloat32x3, Offset: 0, ShaderLocation: 0},
						{Format: wgpu.VertexFormatFloat32x3, Offset: 12, ShaderLocation: 1},
					},
				},
				{
					ArrayStride: instancing.MatrixStride,
					StepMode:    wgpu.VertexStepModeInstance,
					Attributes:  instanceAttributes,
				},
			},
		},
		Fragment: &wgpu.FragmentState{
			Module:     shaderModule,
			EntryPoint: "fs_main",
			Targets: []wgpu.ColorTargetState{{
				Format:    format,
				WriteMask: wgpu.ColorWriteMaskAll,
			}},
		},
		Primitive: wgpu.PrimitiveState{
			Topology:  wgpu.PrimitiveTopologyTriangleList,
			FrontFace: wgpu.FrontFaceCCW,
			CullMode:  wgpu.CullModeBack,
		},
		DepthStencil: &wgpu.DepthStencilState{
			Format:            DepthFormat,
			DepthWriteEnabled: true,
			DepthCompare:      wgpu.CompareFunctionLess,
			StencilFront:      wgpu.StencilFaceState{Compare: wgpu.CompareFunctionAlways},
			StencilBack:       wgpu.StencilFaceState{Compare: wgpu.CompareFunctionAlways},
		},
		Multisample: wgpu.MultisampleState{
			Count: 1,
			Mask:  0xFFFFFFFF,
		},
	})
	if err != nil {
		return nil, err
	}

	cameraBuffer, err := device.CreateBuffer(&wgpu.BufferDescriptor{
		Label: "FractalCameraUniform",
		Size:  uint64(unsafe.Sizeof(CameraUniform{})),
		Usage: wgpu.BufferUsageUniform | wgpu.BufferUsageCopyDst,
	})
	if err != nil {
		return nil, err
	}
	cameraBindGroup, err := device.CreateBindGroup(&wgpu.BindGroupDescriptor{
		Label:  "FractalCameraBG",
		Layout: cameraBGL,
		Entries: []wgpu.BindGroupEntry{{
			Binding: 0,
			Buffer:  cameraBuffer,
			Size:    uint64(unsafe.Sizeof(CameraUniform{})),
		}},
	})
	if err != nil {
		return nil, err
	}

	return &InstancedPass{
		Device:          device,
		Pipeline:        pipeline,
		cameraBuffer:    cameraBuffer,
		cameraBindGroup: cameraBindGroup,
	}, nil
}

// NewMaterial creates a colour material usable with this pass.
func (p *InstancedPass) NewMaterial(color [4]float32) (*Material, error) {
	buf, err := p.Device.CreateBuffer(&wgpu.BufferDescriptor{
		Label: "FractalMaterialUniform",
		Size:  16,
		Usage: wgpu.BufferUsageUniform | wgpu.BufferUsageCopyDst,
	})
	if err != nil {
		return nil, err
	}
	p.Device.GetQueue().WriteBuffer(buf, 0, unsafe.Slice((*byte)(unsafe.Pointer(&color[0])), 16))

	bg, err := p.Device.CreateBindGroup(&wgpu.BindGroupDescriptor{
		Label:   "FractalMaterialBG",
		Layout:  p.Pipeline.GetBindGroupLayout(1),
		Entries: []wgpu.BindGroupEntry{{Binding: 0, Buffer: buf, Size: 16}},
	})
	if err != nil {
		buf.Release()
		return nil, err
	}
	return &Material{Color: color, buffer: buf, bindGroup: bg}, nil
}

func (p *InstancedPass) SetCamera(queue *wgpu.Queue, cam *OrbitCamera) {
	eye := cam.Eye()
	u := CameraUniform{ViewProj: cam.ViewProj(), Eye: [4]float32{eye[0], eye[1], eye[2], 1}}
	queue.WriteBuffer(p.cameraBuffer, 0, unsafe.Slice((*byte)(unsafe.Pointer(&u)), unsafe.Sizeof(u)))
}

// DrawInstanced queues one draw. Handles that were not created by this
// package are skipped.
func (p *InstancedPass) DrawInstanced(mesh instancing.Mesh, material instancing.Material, bounds instancing.Bounds, buffer instancing.Buffer, instanceCount int) {
	m, okMesh := mesh.(*Mesh)
	mat, okMat := material.(*Material)
	inst, okInst := buffer.(*InstanceBuffer)
	if !okMesh || !okMat || !okInst || instanceCount < 1 {
		p.skipped++
		return
	}

	p.draws = append(p.draws, Draw{
		Mesh:      m,
		Material:  mat,
		Instances: inst,
		Bounds:    bounds,
		Count:     uint32(min(instanceCount, inst.Len())),
	})
}

// Pending returns the draws queued since the last Encode.
func (p *InstancedPass) Pending() []Draw {
	return p.draws
}

// Stats reports draws queued and skipped since the last Encode.
func (p *InstancedPass) Stats() (queued, skipped int) {
	return len(p.draws), p.skipped
}

// Encode records the queued draws into pass and clears the queue.
func (p *InstancedPass) Encode(pass *wgpu.RenderPassEncoder) {
	if len(p.draws) > 0 {
		pass.SetPipeline(p.Pipeline)
		pass.SetBindGroup(0, p.cameraBindGroup, nil)
	}
	for _, d := range p.draws {
		raw := d.Instances.Raw()
		if raw == nil || d.Mesh.VertexBuffer == nil {
			continue
		}
		pass.SetBindGroup(1, d.Material.bindGroup, nil)
		pass.SetVertexBuffer(0, d.Mesh.VertexBuffer, 0, d.Mesh.VertexBuffer.GetSize())
		pass.SetVertexBuffer(1, raw, 0, raw.GetSize())
		pass.Draw(d.Mesh.VertexCount, d.Count, 0, 0)
	}
	p.reset()
}

// Discard drops the queued draws without encoding them, for frames that
// never reach a render pass.
func (p *InstancedPass) Discard() {
	p.reset()
}

func (p *InstancedPass) reset() {
	p.draws = p.draws[:0]
	p.skipped = 0
}

func (p *InstancedPass) Release() {
	if p.cameraBindGroup != nil {
		p.cameraBindGroup.Release()
		p.cameraBindGroup = nil
	}
	if p.cameraBuffer != nil {
		p.cameraBuffer.Release()
		p.cameraBuffer = nil
	}
	if p.Pipeline != nil {
		p.Pipeline.Release()
		p.Pipeline = nil
	}
}

func (p *InstancedPass) String() string {
	return fmt.Sprintf("InstancedPass{queued=%d skipped=%d}", len(p.draws), p.skipped)
}
