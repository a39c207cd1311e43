package amd64

func init() {
	taskSwitchFn = taskSwitch
	taskRestoreFn = taskRestore
	fxSaveFn = fxSave
	goEntryAddr = goEntryPC()
	checkSwitchFn = checkSwitch
}

// taskSwitch saves the callee state into old and resumes next. When some core
// later resumes old, execution continues at taskResume which returns to the
// caller of taskSwitch.
func taskSwitch(old, next *Context, allowInterrupt bool)

// taskRestore resumes ctx via IRETQ and never returns.
func taskRestore(ctx *Context, allowInterrupt bool)

// taskResume is the resume address stored into contexts saved by taskSwitch.
func taskResume()

// fxSave executes FXSAVE64 into area, which must be 16-byte aligned.
func fxSave(area *[512]byte)

// goEntry is the first instruction of every system context. It calls the Go
// function stored in R12 and never returns.
func goEntry()

func goEntryPC() uintptr

// currentSelectors returns the CS and SS selectors of the executing code.
func currentSelectors() (cs, ss uint64)

// switchAndReport loads canary into RBX and R12, switches from old to next
// and returns both registers as found once old is resumed.
func switchAndReport(old, next *Context, canary uint64) (rbx, r12 uint64)

// bounceEntry stores R14 into bounceG and resumes the context passed in RDI
// after clobbering RBX and R12.
func bounceEntry()

func bounceEntryPC() uintptr
