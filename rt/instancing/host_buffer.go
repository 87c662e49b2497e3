package instancing

import (
	"fmt"
	"sync"

	"github.com/go-gl/mathgl/mgl32"
)

// HostAllocator keeps instance buffers in host memory. It backs headless runs
// and lets callers inspect exactly what a GPU backend would receive.
type HostAllocator struct {
	// MaxInstances caps a single buffer; 0 means unlimited.
	MaxInstances int

	mu       sync.Mutex
	live     map[*HostBuffer]struct{}
	created  int
	released int
}

func NewHostAllocator() *HostAllocator {
	return &HostAllocator{live: make(map[*HostBuffer]struct{})}
}

func (a *HostAllocator) CreateInstanceBuffer(label string, count int) (Buffer, error) {
	if count < 0 {
		return nil, fmt.Errorf("%s: negative instance count %d", label, count)
	}
	if a.MaxInstances > 0 && count > a.MaxInstances {
		return nil, fmt.Errorf("%s: %d instances exceed the limit of %d", label, count, a.MaxInstances)
	}

	buf := &HostBuffer{
		Label: label,
		data:  make([]mgl32.Mat4, count),
		owner: a,
	}
	a.mu.Lock()
	if a.live == nil {
		a.live = make(map[*HostBuffer]struct{})
	}
	a.live[buf] = struct{}{}
	a.created++
	a.mu.Unlock()
	return buf, nil
}

// Live is the number of buffers created and not yet released.
func (a *HostAllocator) Live() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.live)
}

func (a *HostAllocator) Stats() (created, released int) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.created, a.released
}

func (a *HostAllocator) release(buf *HostBuffer) {
	a.mu.Lock()
	delete(a.live, buf)
	a.released++
	a.mu.Unlock()
}

type HostBuffer struct {
	Label string

	data     []mgl32.Mat4
	writes   int
	released bool
	owner    *HostAllocator
}

func (b *HostBuffer) Len() int {
	return len(b.data)
}

func (b *HostBuffer) Write(matrices []mgl32.Mat4) error {
	if b.released {
		return fmt.Errorf("%s: %w", b.Label, ErrReleased)
	}
	if len(matrices) != len(b.data) {
		return fmt.Errorf("%w: %s holds %d, got %d", ErrBufferLength, b.Label, len(b.data), len(matrices))
	}
	copy(b.data, matrices)
	b.writes++
	return nil
}

// Matrices returns the buffer contents. The slice is owned by the buffer.
func (b *HostBuffer) Matrices() []mgl32.Mat4 {
	return b.data
}

func (b *HostBuffer) Writes() int {
	return b.writes
}

func (b *HostBuffer) Released() bool {
	return b.released
}

func (b *HostBuffer) Release() {
	if b.released {
		panic(fmt.Sprintf("instancing: %s released twice", b.Label))
	}
	b.released = true
	b.data = nil
	if b.owner != nil {
		b.owner.release(b)
	}
}
