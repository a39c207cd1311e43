// Package cpu exposes the privileged instructions the scheduler and its
// collaborators need. All functions without a body are implemented in
// assembly and fault if called from user-mode.
package cpu

var (
	cpuidFn = ID
)

// interruptFlag is the IF bit of the RFLAGS register.
const interruptFlag = 1 << 9

// EnableInterrupts enables interrupt handling.
func EnableInterrupts()

// DisableInterrupts disables interrupt handling.
func DisableInterrupts()

// SaveFlagsAndDisableInterrupts returns the current RFLAGS value and then
// disables interrupt handling.
func SaveFlagsAndDisableInterrupts() uintptr

// RestoreFlags loads RFLAGS from a value previously returned by
// SaveFlagsAndDisableInterrupts.
func RestoreFlags(flags uintptr)

// InterruptsEnabledIn returns true if the IF bit is set in the supplied
// RFLAGS value.
func InterruptsEnabledIn(flags uintptr) bool {
	return flags&interruptFlag != 0
}

// Halt stops instruction execution until the next interrupt arrives.
func Halt()

// SwitchPDT sets the root page table directory to point to the specified
// physical address and flushes the TLB.
func SwitchPDT(pdtPhysAddr uintptr)

// ActivePDT returns the physical address of the currently active page table.
func ActivePDT() uintptr

// ReadMSR returns the value of a model specific register.
func ReadMSR(reg uint32) uint64

// WriteMSR stores val into a model specific register.
func WriteMSR(reg uint32, val uint64)

// ID returns information about the CPU and its features. It
// is implemented as a CPUID instruction with EAX=leaf and
// returns the values in EAX, EBX, ECX and EDX.
func ID(leaf uint32) (uint32, uint32, uint32, uint32)

// IsIntel returns true if the code is running on an Intel processor.
func IsIntel() bool {
	_, ebx, ecx, edx := cpuidFn(0)
	return ebx == 0x756e6547 && // "Genu"
		edx == 0x49656e69 && // "ineI"
		ecx == 0x6c65746e // "ntel"
}

// HasX2APIC returns true if the local APIC can be driven through MSRs.
func HasX2APIC() bool {
	_, _, ecx, _ := cpuidFn(1)
	return ecx&(1<<21) != 0
}

// APICID returns the initial APIC id of the executing core.
func APICID() uint32 {
	_, ebx, _, _ := cpuidFn(1)
	return ebx >> 24
}
