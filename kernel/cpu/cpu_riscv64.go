// Package cpu exposes the privileged instructions the scheduler and its
// collaborators need. All functions without a body are implemented in
// assembly and fault if called from U-mode.
package cpu

// sstatusSIE is the supervisor interrupt enable bit of sstatus.
const sstatusSIE = 1 << 1

// EnableInterrupts sets sstatus.SIE.
func EnableInterrupts()

// DisableInterrupts clears sstatus.SIE.
func DisableInterrupts()

// SaveFlagsAndDisableInterrupts returns the current sstatus value and then
// clears sstatus.SIE.
func SaveFlagsAndDisableInterrupts() uintptr

// RestoreFlags sets sstatus.SIE again if it was set in a value previously
// returned by SaveFlagsAndDisableInterrupts.
func RestoreFlags(flags uintptr)

// InterruptsEnabledIn returns true if SIE is set in the supplied sstatus value.
func InterruptsEnabledIn(flags uintptr) bool {
	return flags&sstatusSIE != 0
}

// Halt waits for the next interrupt.
func Halt()

// SwitchPDT loads satp and flushes the address translation caches.
func SwitchPDT(satp uintptr)

// ActivePDT returns the value of satp.
func ActivePDT() uintptr

// SBISendIPI asks the SBI firmware to raise a supervisor software interrupt
// on the harts selected by hartMask (relative to hartMaskBase). It returns
// the SBI error code.
func SBISendIPI(hartMask, hartMaskBase uintptr) int64
