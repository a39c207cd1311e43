package riscv64

import "kernos/kernel/arch"

var (
	// taskSwitchFn and taskRestoreFn point to the assembly hand-off
	// routines on riscv64 builds. Tests replace them with a simulated CPU.
	taskSwitchFn  = func(old, next *Context, allowInterrupt bool) { panic(arch.ErrNoContextSwitch) }
	taskRestoreFn = func(ctx *Context, allowInterrupt bool) { panic(arch.ErrNoContextSwitch) }
)
