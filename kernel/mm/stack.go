package mm

import (
	"kernos/kernel"
	"kernos/kernel/sync"
	"unsafe"
)

// StackAllocatorFn reserves size bytes for a kernel stack and returns the
// lowest address of the reserved region.
type StackAllocatorFn func(size Size) (uintptr, *kernel.Error)

// StackFreeFn returns a region obtained from a StackAllocatorFn.
type StackFreeFn func(base uintptr, size Size) *kernel.Error

var (
	stackAllocator StackAllocatorFn
	stackFree      StackFreeFn
)

// SetStackAllocator registers the functions used by AllocKernelStack and
// FreeKernelStack.
func SetStackAllocator(allocFn StackAllocatorFn, freeFn StackFreeFn) {
	stackAllocator, stackFree = allocFn, freeFn
}

// AllocKernelStack reserves a kernel stack of the requested size. The size
// must be a multiple of PageSize. The returned address is the lowest address
// of the stack; the initial stack pointer is base+size.
func AllocKernelStack(size Size) (uintptr, *kernel.Error) {
	if !size.PageAligned() {
		return 0, ErrNotAligned
	}
	if stackAllocator == nil {
		return 0, ErrNoAllocator
	}
	return stackAllocator(size)
}

// FreeKernelStack releases a stack previously returned by AllocKernelStack.
func FreeKernelStack(base uintptr, size Size) *kernel.Error {
	if stackFree == nil {
		return ErrNoAllocator
	}
	return stackFree(base, size)
}

// HeapStackAllocator carves kernel stacks out of the Go heap. It keeps a
// reference to every live stack so the collector never reclaims a stack that
// a saved context still points into.
type HeapStackAllocator struct {
	live sync.Mutex[map[uintptr][]byte]
}

// Alloc implements StackAllocatorFn.
func (a *HeapStackAllocator) Alloc(size Size) (uintptr, *kernel.Error) {
	buf := make([]byte, uintptr(size)+PageSize)
	base := alignUp(uintptr(unsafe.Pointer(&buf[0])), PageSize)

	g := a.live.Lock()
	if *g.Get() == nil {
		*g.Get() = make(map[uintptr][]byte)
	}
	(*g.Get())[base] = buf
	g.Unlock()

	return base, nil
}

// Free implements StackFreeFn.
func (a *HeapStackAllocator) Free(base uintptr, _ Size) *kernel.Error {
	g := a.live.Lock()
	defer g.Unlock()

	if _, ok := (*g.Get())[base]; !ok {
		return ErrInvalidRegion
	}
	delete(*g.Get(), base)
	return nil
}

// Live returns the number of stacks that have not been freed yet.
func (a *HeapStackAllocator) Live() int {
	g := a.live.Lock()
	defer g.Unlock()
	return len(*g.Get())
}

func alignUp(addr, align uintptr) uintptr {
	return (addr + align - 1) &^ (align - 1)
}
