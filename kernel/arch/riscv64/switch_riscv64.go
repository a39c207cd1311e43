package riscv64

func init() {
	taskSwitchFn = taskSwitch
	taskRestoreFn = taskRestore
}

// taskSwitch saves the caller state into old and resumes next. The saved SEPC
// is the return address so resuming old returns to the caller of taskSwitch.
func taskSwitch(old, next *Context, allowInterrupt bool)

// taskRestore resumes ctx via SRET and never returns.
func taskRestore(ctx *Context, allowInterrupt bool)
