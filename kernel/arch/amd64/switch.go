package amd64

import (
	"kernos/kernel"
	"kernos/kernel/arch"
	"kernos/kernel/kfmt"
)

var (
	// taskSwitchFn and taskRestoreFn point to the assembly hand-off
	// routines on amd64 builds. Tests replace them with a simulated CPU.
	taskSwitchFn  = func(old, next *Context, allowInterrupt bool) { panic(arch.ErrNoContextSwitch) }
	taskRestoreFn = func(ctx *Context, allowInterrupt bool) { panic(arch.ErrNoContextSwitch) }

	checkSwitchFn = func() *kernel.Error { return arch.ErrNoContextSwitch }

	// goEntryAddr is the address of goEntry on amd64 builds and zero
	// elsewhere.
	goEntryAddr uintptr

	// bootG is loaded into R14 by goEntry. bounceG receives the R14 value
	// seen by bounceEntry.
	bootG, bounceG uintptr

	errEntryReturned   = &kernel.Error{Module: "amd64", Message: "system thread entry point returned"}
	errSwitchClobbered = &kernel.Error{Module: "amd64", Message: "callee saved registers were not restored by the switch"}
	errSwitchG         = &kernel.Error{Module: "amd64", Message: "system context entered Go code with the wrong goroutine"}
)

// fxSaveFn stores the FPU/SSE state of the executing core into area.
var fxSaveFn = func(area *[512]byte) {}

// SetBootG records the goroutine descriptor that system threads run Go code
// with. It must be set before the first system context is resumed.
func SetBootG(g uintptr) { bootG = g }

// CheckContextSwitch switches into a scratch context entered through the
// system thread trampoline and back again, and verifies that the callee saved
// registers and the goroutine register came through intact.
func CheckContextSwitch() *kernel.Error { return checkSwitchFn() }

func entryReturned() {
	kfmt.Panic(errEntryReturned)
}
