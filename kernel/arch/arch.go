// Package arch defines the contract between the scheduler and the
// architecture-specific code that saves, creates and resumes execution
// contexts. Each supported architecture provides one CPUContext
// implementation; package native selects the one matching the build target.
package arch

import "kernos/kernel"

// MaxSystemCallArguments is the number of words in the argument block a
// system call passes by reference in its first argument register.
const MaxSystemCallArguments = 8

var (
	// ErrMisalignedContext is raised when a context whose register area is
	// not aligned to mm.CacheLineSize reaches a hand-off operation.
	ErrMisalignedContext = &kernel.Error{Module: "arch", Message: "context data is not 64-byte aligned"}

	// ErrForeignContext is raised when a backend receives context data
	// created by a different backend.
	ErrForeignContext = &kernel.Error{Module: "arch", Message: "context data belongs to a different architecture"}

	// ErrNoContextSwitch is raised by backends whose hand-off routines are
	// not available on the build target.
	ErrNoContextSwitch = &kernel.Error{Module: "arch", Message: "context hand-off is not supported on this target"}
)

// ContextData holds exactly the register state needed to resume a thread:
// general purpose registers, program counter, stack pointer and the
// privilege/interrupt-mask word.
type ContextData interface {
	// ProgramCounter returns the address execution resumes at.
	ProgramCounter() uintptr

	// StackPointer returns the stack pointer restored on resume.
	StackPointer() uintptr

	// InterruptsEnabled reports whether interrupts are unmasked on resume.
	InterruptsEnabled() bool

	// UserMode reports whether the context resumes in user mode.
	UserMode() bool

	// SetFunctionCallArguments places args into the argument registers of
	// the native calling convention. Arguments beyond the architecture's
	// register budget are dropped and logged.
	SetFunctionCallArguments(args ...uint64)

	// SystemCallArgument returns word index of the argument block whose
	// address is held in the first argument register. It returns false if
	// index is not smaller than MaxSystemCallArguments.
	SystemCallArgument(index int) (uint64, bool)

	// SetSystemCallReturnValue stores v into the return value register.
	SetSystemCallReturnValue(v uint64)

	// Snapshot overwrites this context with the register state held by
	// src, which must have been created by the same backend.
	Snapshot(src ContextData)
}

// CPUContext is implemented by each architecture backend.
type CPUContext interface {
	// Name returns the architecture name.
	Name() string

	// CreateContextDataForSystem returns a zeroed kernel-mode context that
	// starts executing entry on stack with interrupts enabled.
	CreateContextDataForSystem(entry, stack uintptr) ContextData

	// CreateContextDataForUser returns a user-mode context that starts
	// executing entry on stack with interrupts enabled and args placed in
	// the argument registers.
	CreateContextDataForUser(entry, stack uintptr, args []uint64) ContextData

	// ForkContextData returns a fresh context for entry and stack that
	// inherits only the privilege/interrupt-mask word of original.
	ForkContextData(original ContextData, entry, stack uintptr) ContextData

	// JumpToContext resumes ctx on the executing core and never returns.
	// If allowInterrupt is true, interrupts are unmasked on resume.
	JumpToContext(ctx ContextData, allowInterrupt bool)

	// SwitchContext saves the caller's state into old and resumes next.
	// It returns once some core switches back to old. If allowInterrupt
	// is true, interrupts are unmasked when next resumes.
	SwitchContext(old, next ContextData, allowInterrupt bool)
}
