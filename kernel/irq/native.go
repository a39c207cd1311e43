//go:build amd64 || arm64 || riscv64

package irq

import "kernos/kernel/cpu"

var (
	// the following functions are mocked by tests and are automatically
	// inlined by the compiler.
	saveAndDisableFn = cpu.SaveFlagsAndDisableInterrupts
	restoreFlagsFn   = cpu.RestoreFlags
	enableFn         = cpu.EnableInterrupts
)

// NativeController drives the interrupt mask of the executing core.
type NativeController struct{}

// SaveAndDisable implements LocalController.
func (NativeController) SaveAndDisable() State {
	return State(saveAndDisableFn())
}

// Restore implements LocalController.
func (NativeController) Restore(s State) {
	restoreFlagsFn(uintptr(s))
}

// Enable implements LocalController.
func (NativeController) Enable() {
	enableFn()
}

// Enabled implements LocalController.
func (NativeController) Enabled(s State) bool {
	return cpu.InterruptsEnabledIn(uintptr(s))
}
