package irq

import (
	"kernos/kernel"
	"kernos/kernel/cpu"
)

const (
	// x2apicICR is the interrupt command register MSR of the x2APIC.
	x2apicICR = uint32(0x830)

	// icrLevelAssert selects the asserted level for fixed delivery.
	icrLevelAssert = uint64(1 << 14)
)

var (
	writeMSRFn = cpu.WriteMSR

	errBadVector = &kernel.Error{Module: "irq", Message: "reschedule vector must be in the 32-255 range"}
)

// X2APICSender delivers reschedule IPIs through the x2APIC ICR.
type X2APICSender struct {
	// The IDT vector the receiving core dispatches.
	Vector uint8
}

// SendRescheduleIPI implements IPISender. The hardware id is the x2APIC id of
// the target core.
func (s X2APICSender) SendRescheduleIPI(hardwareID uint32) *kernel.Error {
	if s.Vector < 32 {
		return errBadVector
	}

	writeMSRFn(x2apicICR, uint64(hardwareID)<<32|icrLevelAssert|uint64(s.Vector))
	return nil
}
