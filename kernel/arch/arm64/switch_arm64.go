package arm64

func init() {
	taskSwitchFn = taskSwitch
	taskRestoreFn = taskRestore
}

// taskSwitch saves the caller state into old and resumes next. The saved ELR
// is the link register so resuming old returns to the caller of taskSwitch.
func taskSwitch(old, next *Context, allowInterrupt bool)

// taskRestore resumes ctx via ERET and never returns.
func taskRestore(ctx *Context, allowInterrupt bool)
