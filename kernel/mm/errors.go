package mm

import "kernos/kernel"

// Errors shared by the memory allocation collaborators.
var (
	ErrOutOfMemory   = &kernel.Error{Module: "mm", Message: "out of memory"}
	ErrNotAligned    = &kernel.Error{Module: "mm", Message: "size or address is not aligned to the required boundary"}
	ErrNoAllocator   = &kernel.Error{Module: "mm", Message: "no allocator registered"}
	ErrInvalidRegion = &kernel.Error{Module: "mm", Message: "region was not allocated by this allocator"}
)
