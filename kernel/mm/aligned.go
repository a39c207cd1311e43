package mm

import "unsafe"

// AlignedNew allocates a zeroed T whose address is a multiple of align, which
// must be a power of two. T must not contain pointers: the value lives inside
// a byte buffer that the garbage collector does not scan.
func AlignedNew[T any](align uintptr) *T {
	var zero T
	size := unsafe.Sizeof(zero)
	if size == 0 {
		size = 1
	}

	buf := make([]byte, size+align-1)
	addr := alignUp(uintptr(unsafe.Pointer(&buf[0])), align)
	offset := addr - uintptr(unsafe.Pointer(&buf[0]))

	return (*T)(unsafe.Pointer(&buf[offset]))
}

// IsAligned returns true if ptr is a multiple of align.
func IsAligned(ptr unsafe.Pointer, align uintptr) bool {
	return uintptr(ptr)&(align-1) == 0
}
