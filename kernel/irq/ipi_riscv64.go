package irq

import (
	"kernos/kernel"
	"kernos/kernel/cpu"
)

var (
	sbiSendIPIFn = cpu.SBISendIPI

	errSBIFailed = &kernel.Error{Module: "irq", Message: "SBI send_ipi call failed"}
)

// SBISender delivers reschedule IPIs through the SBI IPI extension.
type SBISender struct{}

// SendRescheduleIPI implements IPISender. The hardware id is the hart id of
// the target core.
func (SBISender) SendRescheduleIPI(hardwareID uint32) *kernel.Error {
	if sbiSendIPIFn(1, uintptr(hardwareID)) != 0 {
		return errSBIFailed
	}
	return nil
}
