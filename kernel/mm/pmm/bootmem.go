// Package pmm provides the physical frame allocator used while the kernel
// boots.
package pmm

import (
	"kernos/kernel"
	"kernos/kernel/kfmt"
	"kernos/kernel/mm"
	"kernos/kernel/sync"
	"kernos/multiboot"
)

var (
	log = kfmt.NewLogger("pmm")

	// visitRegionsFn is mocked by tests.
	visitRegionsFn = multiboot.VisitMemRegions

	bootAllocator BootMemAllocator

	errOutOfMemory = &kernel.Error{Module: "pmm", Message: "out of memory"}
)

// BootMemAllocator hands out the free frames reported by the bootloader in
// ascending order while skipping the frames occupied by the kernel image.
// Frames can never be returned to it.
type BootMemAllocator struct {
	lock sync.Spinlock

	allocCount     uint64
	lastAllocFrame mm.Frame

	kernelStartAddr, kernelEndAddr   uintptr
	kernelStartFrame, kernelEndFrame mm.Frame
}

// Init sets up the boot allocator for a kernel image loaded at
// [kernelStart, kernelEnd) and registers it with mm.SetFrameAllocator.
func Init(kernelStart, kernelEnd uintptr) {
	bootAllocator.init(kernelStart, kernelEnd)
	bootAllocator.printMemoryMap()
	mm.SetFrameAllocator(bootAllocator.AllocFrame)
}

func (alloc *BootMemAllocator) init(kernelStart, kernelEnd uintptr) {
	pageSizeMinus1 := mm.PageSize - 1
	alloc.allocCount = 0
	alloc.lastAllocFrame = 0
	alloc.kernelStartAddr = kernelStart
	alloc.kernelEndAddr = kernelEnd
	alloc.kernelStartFrame = mm.FrameFromAddress(kernelStart)
	alloc.kernelEndFrame = mm.Frame(((kernelEnd+pageSizeMinus1) & ^pageSizeMinus1)>>mm.PageShift) - 1
}

// AllocCount returns the number of frames handed out so far.
func (alloc *BootMemAllocator) AllocCount() uint64 {
	alloc.lock.Acquire()
	defer alloc.lock.Release()
	return alloc.allocCount
}

// AllocFrame reserves the next free frame. It returns an error once every
// available region has been used up.
func (alloc *BootMemAllocator) AllocFrame() (mm.Frame, *kernel.Error) {
	alloc.lock.Acquire()
	defer alloc.lock.Release()

	var err = errOutOfMemory

	visitRegionsFn(func(region *multiboot.MemoryMapEntry) bool {
		if region.Type != multiboot.MemAvailable || region.Length < uint64(mm.PageSize) {
			return true
		}

		// Region bounds may not be page-aligned.
		pageSizeMinus1 := uint64(mm.PageSize - 1)
		regionStartFrame := mm.Frame(((region.PhysAddress + pageSizeMinus1) & ^pageSizeMinus1) >> mm.PageShift)
		regionEndFrame := mm.Frame(((region.PhysAddress+region.Length) & ^pageSizeMinus1)>>mm.PageShift) - 1

		if alloc.allocCount != 0 && alloc.lastAllocFrame >= regionEndFrame {
			return true
		}

		switch {
		case alloc.allocCount == 0 || alloc.lastAllocFrame < regionStartFrame:
			alloc.lastAllocFrame = regionStartFrame
		default:
			alloc.lastAllocFrame++
		}

		if alloc.lastAllocFrame >= alloc.kernelStartFrame && alloc.lastAllocFrame <= alloc.kernelEndFrame {
			alloc.lastAllocFrame = alloc.kernelEndFrame + 1
		}

		// The kernel image may extend to the end of the region.
		if alloc.lastAllocFrame > regionEndFrame {
			return true
		}

		err = nil
		return false
	})

	if err != nil {
		return mm.InvalidFrame, err
	}

	alloc.allocCount++
	return alloc.lastAllocFrame, nil
}

func (alloc *BootMemAllocator) printMemoryMap() {
	var totalFree mm.Size
	visitRegionsFn(func(region *multiboot.MemoryMapEntry) bool {
		log.Debugf("region 0x%16x - 0x%16x type %d", region.PhysAddress, region.PhysAddress+region.Length, uint32(region.Type))
		if region.Type == multiboot.MemAvailable {
			totalFree += mm.Size(region.Length)
		}
		return true
	})
	log.Infof("available memory: %dKb", uint64(totalFree/mm.Kb))
	log.Infof("kernel image at 0x%x - 0x%x, reserved frames: %d",
		alloc.kernelStartAddr, alloc.kernelEndAddr,
		uint64(alloc.kernelEndFrame-alloc.kernelStartFrame+1),
	)
}
