package vmm

import "kernos/kernel/mm"

const (
	// ptePhysPageMask selects bits 12-51 of an entry, which hold the
	// physical address of the next level table or the mapped frame.
	ptePhysPageMask = uintptr(0x000ffffffffff000)

	entriesPerTable = 512
)

// PageTableEntryFlag is a control bit of an amd64 page table entry.
type PageTableEntryFlag uintptr

// Entry flags used when building top-level tables.
const (
	FlagPresent        PageTableEntryFlag = 1 << 0
	FlagRW             PageTableEntryFlag = 1 << 1
	FlagUserAccessible PageTableEntryFlag = 1 << 2
	FlagGlobal         PageTableEntryFlag = 1 << 8
	FlagNoExecute      PageTableEntryFlag = 1 << 63
)

// pageTableEntry holds a frame address plus flags.
type pageTableEntry uintptr

// pageTable is one level of the four-level paging hierarchy.
type pageTable [entriesPerTable]pageTableEntry

// HasFlags reports whether every bit in flags is set.
func (pte pageTableEntry) HasFlags(flags PageTableEntryFlag) bool {
	return uintptr(pte)&uintptr(flags) == uintptr(flags)
}

func (pte *pageTableEntry) SetFlags(flags PageTableEntryFlag) {
	*pte |= pageTableEntry(flags)
}

func (pte *pageTableEntry) ClearFlags(flags PageTableEntryFlag) {
	*pte &^= pageTableEntry(flags)
}

// Frame returns the frame the entry points to.
func (pte pageTableEntry) Frame() mm.Frame {
	return mm.FrameFromAddress(uintptr(pte) & ptePhysPageMask)
}

// SetFrame points the entry at frame and keeps its flags.
func (pte *pageTableEntry) SetFrame(frame mm.Frame) {
	*pte = pageTableEntry(uintptr(*pte)&^ptePhysPageMask | frame.Address())
}
