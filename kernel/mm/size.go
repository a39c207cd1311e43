package mm

// Size represents a memory block size in bytes.
type Size uint64

// Common memory block sizes.
const (
	Byte Size = 1
	Kb        = 1024 * Byte
	Mb        = 1024 * Kb
	Gb        = 1024 * Mb
)

// PageAligned returns true if s is a non-zero multiple of PageSize.
func (s Size) PageAligned() bool {
	return s != 0 && uintptr(s)&(PageSize-1) == 0
}
