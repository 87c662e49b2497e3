package instancing

import (
	"fmt"

	"github.com/go-gl/mathgl/mgl32"
)

// LevelBuffers owns one instance buffer per fractal level. Buffers are never
// shared between levels and never resized; a different level layout needs a
// new LevelBuffers.
type LevelBuffers struct {
	buffers []Buffer
	sizes   []int
}

// Allocate creates a buffer of exactly sizes[L] instances for every level.
// If any allocation fails the buffers created so far are released and the
// error wraps ErrResourceExhaustion.
func Allocate(alloc Allocator, label string, sizes []int) (*LevelBuffers, error) {
	lb := &LevelBuffers{
		buffers: make([]Buffer, 0, len(sizes)),
		sizes:   append([]int(nil), sizes...),
	}
	for li, n := range sizes {
		buf, err := alloc.CreateInstanceBuffer(fmt.Sprintf("%s-level-%d", label, li), n)
		if err != nil {
			lb.Release()
			return nil, fmt.Errorf("%w: level %d (%d instances): %w", ErrResourceExhaustion, li, n, err)
		}
		if buf.Len() != n {
			buf.Release()
			lb.Release()
			return nil, fmt.Errorf("%w: level %d: want %d instances, allocator returned %d", ErrBufferLength, li, n, buf.Len())
		}
		lb.buffers = append(lb.buffers, buf)
	}
	return lb, nil
}

func (lb *LevelBuffers) Len() int {
	return len(lb.buffers)
}

// Buffer returns the buffer of level li, or nil once released.
func (lb *LevelBuffers) Buffer(li int) Buffer {
	if li < 0 || li >= len(lb.buffers) {
		return nil
	}
	return lb.buffers[li]
}

// Matches reports whether the buffers were allocated for exactly these sizes.
func (lb *LevelBuffers) Matches(sizes []int) bool {
	if lb.Released() || len(sizes) != len(lb.sizes) {
		return false
	}
	for i := range sizes {
		if sizes[i] != lb.sizes[i] {
			return false
		}
	}
	return true
}

// Upload overwrites level li with matrices.
func (lb *LevelBuffers) Upload(li int, matrices []mgl32.Mat4) error {
	buf := lb.Buffer(li)
	if buf == nil {
		return fmt.Errorf("level %d: %w", li, ErrReleased)
	}
	if len(matrices) != buf.Len() {
		return fmt.Errorf("%w: level %d has %d instances, got %d matrices", ErrBufferLength, li, buf.Len(), len(matrices))
	}
	return buf.Write(matrices)
}

// Draw requests one instanced draw per level with the shared mesh and material.
func (lb *LevelBuffers) Draw(drawer Drawer, mesh Mesh, material Material, bounds Bounds) {
	for _, buf := range lb.buffers {
		drawer.DrawInstanced(mesh, material, bounds, buf, buf.Len())
	}
}

// Release frees every buffer. Calling it again is a no-op.
func (lb *LevelBuffers) Release() {
	for _, buf := range lb.buffers {
		buf.Release()
	}
	lb.buffers = nil
	lb.sizes = nil
}

func (lb *LevelBuffers) Released() bool {
	return lb.buffers == nil
}
