package gpu

import (
	"fmt"
	"unsafe"

	"github.com/cogentcore/webgpu/wgpu"
	"github.com/gekko3d/fractal/rt/instancing"
	"github.com/go-gl/mathgl/mgl32"
)

// Allocator creates per-level instance buffers on a device.
type Allocator struct {
	Device *wgpu.Device
	Queue  *wgpu.Queue
	// MaxBufferSize caps one buffer in bytes; 0 leaves the check to the device.
	MaxBufferSize uint64
}

func NewAllocator(device *wgpu.Device) *Allocator {
	return &Allocator{
		Device: device,
		Queue:  device.GetQueue(),
	}
}

func (a *Allocator) CreateInstanceBuffer(label string, count int) (instancing.Buffer, error) {
	if count < 1 {
		return nil, fmt.Errorf("%s: instance count must be positive, got %d", label, count)
	}
	size := uint64(count) * instancing.MatrixStride
	if a.MaxBufferSize > 0 && size > a.MaxBufferSize {
		return nil, fmt.Errorf("%s: %d bytes exceed the %d byte limit", label, size, a.MaxBufferSize)
	}

	buf, err := a.Device.CreateBuffer(&wgpu.BufferDescriptor{
		Label: label,
		Size:  size,
		Usage: wgpu.BufferUsageVertex | wgpu.BufferUsageCopyDst,
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", label, err)
	}
	return &InstanceBuffer{Label: label, buffer: buf, queue: a.Queue, count: count}, nil
}

// InstanceBuffer is a vertex buffer stepped per instance, holding one model
// matrix per instance.
type InstanceBuffer struct {
	Label string

	buffer   *wgpu.Buffer
	queue    *wgpu.Queue
	count    int
	released bool
}

func (b *InstanceBuffer) Len() int {
	return b.count
}

func (b *InstanceBuffer) Write(matrices []mgl32.Mat4) error {
	if b.released {
		return fmt.Errorf("%s: %w", b.Label, instancing.ErrReleased)
	}
	if len(matrices) != b.count {
		return fmt.Errorf("%w: %s holds %d, got %d", instancing.ErrBufferLength, b.Label, b.count, len(matrices))
	}
	size := uint64(len(matrices)) * instancing.MatrixStride
	b.queue.WriteBuffer(b.buffer, 0, unsafe.Slice((*byte)(unsafe.Pointer(&matrices[0])), size))
	return nil
}

// Raw is the underlying buffer, nil once released.
func (b *InstanceBuffer) Raw() *wgpu.Buffer {
	return b.buffer
}

func (b *InstanceBuffer) Release() {
	if b.released {
		return
	}
	b.released = true
	if b.buffer != nil {
		b.buffer.Release()
		b.buffer = nil
	}
}
