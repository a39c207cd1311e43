// Package riscv64 implements the RISC-V context backend. Contexts are
// resumed with SRET; kernel threads run in S-mode and user threads in U-mode.
package riscv64

import (
	"kernos/kernel/arch"
	"kernos/kernel/kfmt"
	"kernos/kernel/mm"
	"unsafe"
)

const (
	sstatusSIE  = 1 << 1
	sstatusSPIE = 1 << 5
	sstatusSPP  = 1 << 8

	// a0 is x10; X holds x1..x31.
	regA0 = 10 - 1

	maxRegisterArguments = 8

	registerCount = 34
)

// Context is the riscv64 implementation of arch.ContextData. X[n-1] holds
// register xn. SStatus is loaded into sstatus before SRET, so SPP selects
// the privilege and SPIE the interrupt state on resume.
type Context struct {
	X        [31]uint64
	SStatus  uint64
	SEPC     uint64
	SScratch uint64
}

var (
	_ [unsafe.Sizeof(Context{}) - registerCount*8]byte
	_ [registerCount*8 - unsafe.Sizeof(Context{})]byte
	_ [1 - registerCount%2]byte
)

var log = kfmt.NewLogger("riscv64")

func newContext() *Context {
	return mm.AlignedNew[Context](mm.CacheLineSize)
}

// ProgramCounter implements arch.ContextData.
func (c *Context) ProgramCounter() uintptr { return uintptr(c.SEPC) }

// StackPointer implements arch.ContextData.
func (c *Context) StackPointer() uintptr { return uintptr(c.X[2-1]) }

// InterruptsEnabled implements arch.ContextData.
func (c *Context) InterruptsEnabled() bool { return c.SStatus&sstatusSPIE != 0 }

// UserMode implements arch.ContextData.
func (c *Context) UserMode() bool { return c.SStatus&sstatusSPP == 0 }

// SetFunctionCallArguments implements arch.ContextData.
func (c *Context) SetFunctionCallArguments(args ...uint64) {
	if len(args) > maxRegisterArguments {
		log.Errorf("%d arguments supplied; only %d can be passed in registers", len(args), maxRegisterArguments)
		args = args[:maxRegisterArguments]
	}
	copy(c.X[regA0:regA0+maxRegisterArguments], args)
}

// SystemCallArgument implements arch.ContextData.
func (c *Context) SystemCallArgument(index int) (uint64, bool) {
	if index < 0 || index >= arch.MaxSystemCallArguments {
		return 0, false
	}
	block := (*[arch.MaxSystemCallArguments]uint64)(unsafe.Pointer(uintptr(c.X[regA0])))
	return block[index], true
}

// SetSystemCallReturnValue implements arch.ContextData.
func (c *Context) SetSystemCallReturnValue(v uint64) { c.X[regA0] = v }

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

// Backend implements arch.CPUContext for RISC-V.
type Backend struct{}

// Name implements arch.CPUContext.
func (Backend) Name() string { return "riscv64" }

// CreateContextDataForSystem implements arch.CPUContext.
func (Backend) CreateContextDataForSystem(entry, stack uintptr) arch.ContextData {
	c := newContext()
	c.SEPC = uint64(entry)
	c.X[2-1] = uint64(stack)
	c.SStatus = sstatusSPP | sstatusSPIE
	return c
}

// CreateContextDataForUser implements arch.CPUContext.
func (Backend) CreateContextDataForUser(entry, stack uintptr, args []uint64) arch.ContextData {
	c := newContext()
	c.SEPC = uint64(entry)
	c.X[2-1] = uint64(stack)
	c.SStatus = sstatusSPIE
	c.SetFunctionCallArguments(args...)
	return c
}

// ForkContextData implements arch.CPUContext.
func (Backend) ForkContextData(original arch.ContextData, entry, stack uintptr) arch.ContextData {
	c := newContext()
	c.SEPC = uint64(entry)
	c.X[2-1] = uint64(stack)
	c.SStatus = mustContext(original).SStatus
	return c
}

// JumpToContext implements arch.CPUContext.
func (Backend) JumpToContext(ctx arch.ContextData, allowInterrupt bool) {
	taskRestoreFn(mustContext(ctx), allowInterrupt)
}

// SwitchContext implements arch.CPUContext.
func (Backend) SwitchContext(old, next arch.ContextData, allowInterrupt bool) {
	taskSwitchFn(mustContext(old), mustContext(next), allowInterrupt)
}
