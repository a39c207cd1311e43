// Package amd64 implements the x86-64 context backend.
//
// A saved context consists of the 512-byte FXSAVE area followed by the
// general purpose registers and the IRETQ frame. Every context is resumed
// with IRETQ so kernel and user contexts share a single restore path.
package amd64

import (
	"kernos/kernel/arch"
	"kernos/kernel/kfmt"
	"kernos/kernel/mm"
	"unsafe"
)

const (
	kernelCodeSelector = 0x08
	kernelDataSelector = 0x10
	userDataSelector   = 0x1b
	userCodeSelector   = 0x23

	rflagsReserved  = 1 << 1
	rflagsInterrupt = 1 << 9

	// maxRegisterArguments is the number of integer arguments passed in
	// registers by the System V calling convention.
	maxRegisterArguments = 6

	registerCount = 22
)

// Registers is the general purpose register area of a saved context. The
// field order is relied upon by the switch routines.
type Registers struct {
	RAX    uint64
	RDX    uint64
	RCX    uint64
	RBX    uint64
	RBP    uint64
	RSI    uint64
	RDI    uint64
	R8     uint64
	R9     uint64
	R10    uint64
	R11    uint64
	R12    uint64
	R13    uint64
	R14    uint64
	R15    uint64
	FS     uint64
	GS     uint64
	SS     uint64
	RSP    uint64
	RFlags uint64
	CS     uint64
	RIP    uint64
}

// The register area must match the layout used by switch_amd64.s and hold an
// even number of words so the context size stays a multiple of 16 bytes.
var (
	_ [unsafe.Sizeof(Registers{}) - registerCount*8]byte
	_ [registerCount*8 - unsafe.Sizeof(Registers{})]byte
	_ [1 - registerCount%2]byte
)

// Context is the amd64 implementation of arch.ContextData.
type Context struct {
	fxSave [512]byte
	Regs   Registers
}

var log = kfmt.NewLogger("amd64")

func newContext() *Context {
	return mm.AlignedNew[Context](mm.CacheLineSize)
}

// ProgramCounter implements arch.ContextData. A system context that has not
// left goEntry yet reports the Go function it is about to call.
func (c *Context) ProgramCounter() uintptr {
	if c.Regs.RIP == uint64(goEntryAddr) {
		return uintptr(c.Regs.R12)
	}
	return uintptr(c.Regs.RIP)
}

// StackPointer implements arch.ContextData.
func (c *Context) StackPointer() uintptr { return uintptr(c.Regs.RSP) }

// InterruptsEnabled implements arch.ContextData.
func (c *Context) InterruptsEnabled() bool { return c.Regs.RFlags&rflagsInterrupt != 0 }

// UserMode implements arch.ContextData.
func (c *Context) UserMode() bool { return c.Regs.CS&3 == 3 }

// SetFunctionCallArguments implements arch.ContextData.
func (c *Context) SetFunctionCallArguments(args ...uint64) {
	if len(args) > maxRegisterArguments {
		log.Errorf("%d arguments supplied; only %d can be passed in registers", len(args), maxRegisterArguments)
		args = args[:maxRegisterArguments]
	}

	regs := [maxRegisterArguments]*uint64{&c.Regs.RDI, &c.Regs.RSI, &c.Regs.RDX, &c.Regs.RCX, &c.Regs.R8, &c.Regs.R9}
	for i, arg := range args {
		*regs[i] = arg
	}
}

// SystemCallArgument implements arch.ContextData.
func (c *Context) SystemCallArgument(index int) (uint64, bool) {
	if index < 0 || index >= arch.MaxSystemCallArguments {
		return 0, false
	}
	block := (*[arch.MaxSystemCallArguments]uint64)(unsafe.Pointer(uintptr(c.Regs.RDI)))
	return block[index], true
}

// SetSystemCallReturnValue implements arch.ContextData.
func (c *Context) SetSystemCallReturnValue(v uint64) { c.Regs.RAX = v }

// Snapshot implements arch.ContextData.
func (c *Context) Snapshot(src arch.ContextData) {
	*c = *mustContext(src)
}

func mustContext(ctx arch.ContextData) *Context {
	c, ok := ctx.(*Context)
	if !ok {
		panic(arch.ErrForeignContext)
	}
	if !mm.IsAligned(unsafe.Pointer(c), mm.CacheLineSize) {
		panic(arch.ErrMisalignedContext)
	}
	return c
}

// Backend implements arch.CPUContext for x86-64.
type Backend struct{}

// Name implements arch.CPUContext.
func (Backend) Name() string { return "amd64" }

// CreateContextDataForSystem implements arch.CPUContext.
func (Backend) CreateContextDataForSystem(entry, stack uintptr) arch.ContextData {
	c := newContext()
	c.Regs.RSP = uint64(stack)
	c.Regs.CS = kernelCodeSelector
	c.Regs.SS = kernelDataSelector
	c.setEntry(entry)
	c.Regs.RFlags = rflagsReserved | rflagsInterrupt
	initFPUState(c)
	return c
}

// CreateContextDataForUser implements arch.CPUContext.
func (Backend) CreateContextDataForUser(entry, stack uintptr, args []uint64) arch.ContextData {
	c := newContext()
	c.Regs.RIP = uint64(entry)
	c.Regs.RSP = uint64(stack)
	c.Regs.CS = userCodeSelector
	c.Regs.SS = userDataSelector
	c.Regs.RFlags = rflagsReserved | rflagsInterrupt
	c.SetFunctionCallArguments(args...)
	initFPUState(c)
	return c
}

// ForkContextData implements arch.CPUContext.
func (Backend) ForkContextData(original arch.ContextData, entry, stack uintptr) arch.ContextData {
	orig := mustContext(original)

	c := newContext()
	c.Regs.RSP = uint64(stack)
	c.Regs.CS = orig.Regs.CS
	c.Regs.SS = orig.Regs.SS
	c.Regs.RFlags = orig.Regs.RFlags
	c.fxSave = orig.fxSave
	c.setEntry(entry)
	return c
}

// setEntry points c at entry. Kernel mode entry points are Go functions and
// are reached through goEntry.
func (c *Context) setEntry(entry uintptr) {
	if c.UserMode() {
		c.Regs.RIP = uint64(entry)
		return
	}
	c.Regs.RIP = uint64(goEntryAddr)
	c.Regs.R12 = uint64(entry)
}

// JumpToContext implements arch.CPUContext.
func (Backend) JumpToContext(ctx arch.ContextData, allowInterrupt bool) {
	taskRestoreFn(mustContext(ctx), allowInterrupt)
}

// SwitchContext implements arch.CPUContext.
func (Backend) SwitchContext(old, next arch.ContextData, allowInterrupt bool) {
	taskSwitchFn(mustContext(old), mustContext(next), allowInterrupt)
}

// initFPUState sets the FCW and MXCSR fields of the FXSAVE area to their
// power-on defaults so the first FXRSTOR loads a sane x87/SSE state.
func initFPUState(c *Context) {
	c.fxSave[0], c.fxSave[1] = 0x7f, 0x03
	c.fxSave[24], c.fxSave[25] = 0x80, 0x1f
}
