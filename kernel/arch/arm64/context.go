// Package arm64 implements the AArch64 context backend. Contexts are
// resumed with ERET from EL1; kernel threads run in EL1h and user threads in
// EL0t.
package arm64

import (
	"kernos/kernel/arch"
	"kernos/kernel/kfmt"
	"kernos/kernel/mm"
	"unsafe"
)

const (
	spsrModeMask = 0xf
	spsrModeEL0t = 0x0
	spsrModeEL1h = 0x5
	spsrF        = 1 << 6
	spsrI        = 1 << 7

	maxRegisterArguments = 8

	registerCount = 36
)

// Context is the arm64 implementation of arch.ContextData. The field order
// is relied upon by switch_arm64.s.
type Context struct {
	X     [31]uint64
	_     uint64
	SP    uint64
	TPIDR uint64
	ELR   uint64
	SPSR  uint64
}

var (
	_ [unsafe.Sizeof(Context{}) - registerCount*8]byte
	_ [registerCount*8 - unsafe.Sizeof(Context{})]byte
	_ [1 - registerCount%2]byte
)

var log = kfmt.NewLogger("arm64")

func newContext() *Context {
	return mm.AlignedNew[Context](mm.CacheLineSize)
}

// ProgramCounter implements arch.ContextData.
func (c *Context) ProgramCounter() uintptr { return uintptr(c.ELR) }

// StackPointer implements arch.ContextData.
func (c *Context) StackPointer() uintptr { return uintptr(c.SP) }

// InterruptsEnabled implements arch.ContextData.
func (c *Context) InterruptsEnabled() bool { return c.SPSR&(spsrI|spsrF) == 0 }

// UserMode implements arch.ContextData.
func (c *Context) UserMode() bool { return c.SPSR&spsrModeMask == spsrModeEL0t }

// SetFunctionCallArguments implements arch.ContextData.
func (c *Context) SetFunctionCallArguments(args ...uint64) {
	if len(args) > maxRegisterArguments {
		log.Errorf("%d arguments supplied; only %d can be passed in registers", len(args), maxRegisterArguments)
		args = args[:maxRegisterArguments]
	}
	copy(c.X[:maxRegisterArguments], args)
}

// SystemCallArgument implements arch.ContextData.
func (c *Context) SystemCallArgument(index int) (uint64, bool) {
	if index < 0 || index >= arch.MaxSystemCallArguments {
		return 0, false
	}
	block := (*[arch.MaxSystemCallArguments]uint64)(unsafe.Pointer(uintptr(c.X[0])))
	return block[index], true
}

// SetSystemCallReturnValue implements arch.ContextData.
func (c *Context) SetSystemCallReturnValue(v uint64) { c.X[0] = v }

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

// Backend implements arch.CPUContext for AArch64.
type Backend struct{}

// Name implements arch.CPUContext.
func (Backend) Name() string { return "arm64" }

// CreateContextDataForSystem implements arch.CPUContext.
func (Backend) CreateContextDataForSystem(entry, stack uintptr) arch.ContextData {
	c := newContext()
	c.ELR = uint64(entry)
	c.SP = uint64(stack)
	c.SPSR = spsrModeEL1h
	return c
}

// CreateContextDataForUser implements arch.CPUContext.
func (Backend) CreateContextDataForUser(entry, stack uintptr, args []uint64) arch.ContextData {
	c := newContext()
	c.ELR = uint64(entry)
	c.SP = uint64(stack)
	c.SPSR = spsrModeEL0t
	c.SetFunctionCallArguments(args...)
	return c
}

// ForkContextData implements arch.CPUContext.
func (Backend) ForkContextData(original arch.ContextData, entry, stack uintptr) arch.ContextData {
	c := newContext()
	c.ELR = uint64(entry)
	c.SP = uint64(stack)
	c.SPSR = mustContext(original).SPSR
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
