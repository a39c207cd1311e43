// Package vmm manages the top-level page tables of the address spaces that
// the scheduler switches between.
//
// Every address space shares the kernel half (top-level entries 256-510) of
// the kernel address space. Entry 511 is a recursive mapping of the table to
// itself and is never shared.
package vmm

import (
	"kernos/kernel"
	"kernos/kernel/cpu"
	"kernos/kernel/mm"
	"kernos/kernel/sync"
	"unsafe"
)

const (
	kernelFirstEntry = entriesPerTable / 2
	recursiveEntry   = entriesPerTable - 1

	// directMapBase is the virtual address where all physical memory is
	// mapped in the kernel half.
	directMapBase = uintptr(0xffff800000000000)
)

var (
	// activePDTFn is used by tests to override calls to activePDT which
	// will cause a fault if called in user-mode.
	activePDTFn = cpu.ActivePDT

	// switchPDTFn is used by tests to override calls to switchPDT which
	// will cause a fault if called in user-mode.
	switchPDTFn = cpu.SwitchPDT

	// allocFrameFn and tableFn are mocked by tests and are automatically
	// inlined by the compiler.
	allocFrameFn = mm.AllocFrame
	tableFn      = directMappedTable

	kernelSpace AddressSpace

	errKernelSpaceNotReady = &kernel.Error{Module: "vmm", Message: "kernel address space has not been initialized"}
	errNoTable             = &kernel.Error{Module: "vmm", Message: "address space has no top-level table"}
)

// AddressSpace describes the top-level page table of a process.
type AddressSpace struct {
	// guards the entries of the top-level table. The scheduler clones kernel
	// entries with interrupts disabled so the lock must keep them disabled.
	lock sync.IRQSpinlock

	root mm.Frame

	// kernel points to the address space whose upper half is shared. It is
	// nil for the kernel address space itself.
	kernel *AddressSpace
}

// InitKernelSpace adopts the currently active page table as the kernel
// address space and returns it.
func InitKernelSpace() *AddressSpace {
	kernelSpace.root = mm.FrameFromAddress(activePDTFn() & ptePhysPageMask)
	kernelSpace.kernel = nil
	return &kernelSpace
}

// KernelSpace returns the kernel address space.
func KernelSpace() *AddressSpace {
	return &kernelSpace
}

// NewAddressSpace allocates a new top-level table, installs the recursive
// mapping and copies the kernel half from the kernel address space.
func NewAddressSpace() (*AddressSpace, *kernel.Error) {
	if !kernelSpace.hasTable() {
		return nil, errKernelSpaceNotReady
	}

	frame, err := allocFrameFn()
	if err != nil {
		return nil, err
	}

	table := tableFn(frame)
	kernel.Memset(uintptr(unsafe.Pointer(table)), 0, mm.PageSize)
	table[recursiveEntry].SetFlags(FlagPresent | FlagRW | FlagNoExecute)
	table[recursiveEntry].SetFrame(frame)

	as := &AddressSpace{root: frame, kernel: &kernelSpace}
	if err = as.CloneKernelEntries(); err != nil {
		return nil, err
	}
	return as, nil
}

// Root returns the frame holding the top-level table.
func (as *AddressSpace) Root() mm.Frame {
	return as.root
}

// CloneKernelEntries copies every present kernel-half entry of the kernel
// address space that is missing from this address space. Tables that the
// kernel added after this address space was created become visible once
// this call returns.
func (as *AddressSpace) CloneKernelEntries() *kernel.Error {
	switch {
	case as.kernel == nil:
		return nil
	case !as.kernel.hasTable():
		return errKernelSpaceNotReady
	case !as.hasTable():
		return errNoTable
	}

	as.lock.Acquire()
	src, dst := tableFn(as.kernel.root), tableFn(as.root)
	for i := kernelFirstEntry; i < recursiveEntry; i++ {
		if src[i].HasFlags(FlagPresent) && !dst[i].HasFlags(FlagPresent) {
			dst[i] = src[i]
		}
	}
	as.lock.Release()
	return nil
}

// Active returns true if this address space is loaded on the executing core.
func (as *AddressSpace) Active() bool {
	return activePDTFn()&ptePhysPageMask == as.root.Address()
}

// Activate loads this address space on the executing core. Loading the
// already active table is skipped to avoid a needless TLB flush.
func (as *AddressSpace) Activate() *kernel.Error {
	if !as.hasTable() {
		return errNoTable
	}
	if !as.Active() {
		switchPDTFn(as.root.Address())
	}
	return nil
}

func (as *AddressSpace) hasTable() bool {
	return as.root.Valid() && as.root != 0
}

// DirectMapAddress returns the virtual address at which frame is visible
// through the direct map of physical memory.
func DirectMapAddress(frame mm.Frame) uintptr {
	return directMapBase + frame.Address()
}

func directMappedTable(frame mm.Frame) *pageTable {
	return (*pageTable)(unsafe.Pointer(DirectMapAddress(frame)))
}
