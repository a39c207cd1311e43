// Package cpu exposes the privileged instructions the scheduler and its
// collaborators need. All functions without a body are implemented in
// assembly and fault if called from EL0.
package cpu

// daifMask covers the IRQ and FIQ mask bits of the DAIF register.
const daifMask = 3 << 6

// EnableInterrupts unmasks IRQ and FIQ.
func EnableInterrupts()

// DisableInterrupts masks IRQ and FIQ.
func DisableInterrupts()

// SaveFlagsAndDisableInterrupts returns the current DAIF value and then masks
// IRQ and FIQ.
func SaveFlagsAndDisableInterrupts() uintptr

// RestoreFlags loads DAIF from a value previously returned by
// SaveFlagsAndDisableInterrupts.
func RestoreFlags(flags uintptr)

// InterruptsEnabledIn returns true if neither IRQ nor FIQ is masked in the
// supplied DAIF value.
func InterruptsEnabledIn(flags uintptr) bool {
	return flags&daifMask == 0
}

// Halt waits for the next interrupt.
func Halt()

// SwitchPDT loads TTBR0_EL1 and invalidates the stage 1 TLB entries.
func SwitchPDT(pdtPhysAddr uintptr)

// ActivePDT returns the value of TTBR0_EL1.
func ActivePDT() uintptr

// WriteSGI1R writes ICC_SGI1R_EL1, raising a software generated interrupt.
func WriteSGI1R(val uint64)
