package irq

import (
	"kernos/kernel"
	"kernos/kernel/cpu"
)

var (
	writeSGI1RFn = cpu.WriteSGI1R

	errBadSGI = &kernel.Error{Module: "irq", Message: "reschedule SGI must be in the 0-15 range"}
)

// GICv3Sender delivers reschedule IPIs as GICv3 software generated
// interrupts.
type GICv3Sender struct {
	// The SGI INTID the receiving core dispatches.
	SGI uint8
}

// SendRescheduleIPI implements IPISender. The hardware id holds the
// Aff3.Aff2.Aff1.Aff0 fields of the target core's MPIDR_EL1, packed as bytes
// from most to least significant.
func (s GICv3Sender) SendRescheduleIPI(hardwareID uint32) *kernel.Error {
	if s.SGI > 15 {
		return errBadSGI
	}

	var (
		aff0 = uint64(hardwareID & 0xff)
		aff1 = uint64(hardwareID>>8) & 0xff
		aff2 = uint64(hardwareID>>16) & 0xff
		aff3 = uint64(hardwareID>>24) & 0xff
	)

	// The target list addresses 16 cores per Aff1 cluster; RS selects the
	// block of 16 that contains aff0.
	val := aff3<<48 | (aff0>>4)<<44 | aff2<<32 | uint64(s.SGI)<<24 | aff1<<16 | 1<<(aff0&0xf)
	writeSGI1RFn(val)
	return nil
}
