// Package irq coordinates local interrupt masking and inter-processor
// reschedule requests.
//
// The local controller defaults to a VirtualController so code paths that
// mask interrupts can be exercised without privileged instructions. The
// kernel installs the native controller during bring-up.
package irq

import (
	"kernos/kernel"
	"sync/atomic"
)

// State is an opaque snapshot of the local interrupt mask returned by
// SaveAndDisableLocal.
type State uintptr

// LocalController masks and unmasks interrupt delivery on the executing core.
type LocalController interface {
	// SaveAndDisable returns the current interrupt state and then disables
	// interrupt delivery.
	SaveAndDisable() State

	// Restore re-applies a state returned by SaveAndDisable. Restoring a
	// state captured with interrupts disabled leaves them disabled.
	Restore(State)

	// Enable unconditionally enables interrupt delivery.
	Enable()

	// Enabled reports whether the supplied state had interrupts enabled.
	Enabled(State) bool
}

// IPISender raises a reschedule inter-processor interrupt on a remote core.
type IPISender interface {
	SendRescheduleIPI(hardwareID uint32) *kernel.Error
}

var (
	localController LocalController = &VirtualController{}
	ipiSender       IPISender

	errNoIPISender = &kernel.Error{Module: "irq", Message: "no IPI sender registered"}
)

// SetLocalController installs c as the active local interrupt controller and
// returns the previously installed one.
func SetLocalController(c LocalController) LocalController {
	prev := localController
	localController = c
	return prev
}

// SetIPISender registers the sender used by SendRescheduleIPI.
func SetIPISender(s IPISender) { ipiSender = s }

// SaveAndDisableLocal saves the interrupt state of the executing core and then
// disables interrupts. Calls nest: each one must be paired with a
// RestoreLocal call that receives the returned state, in reverse order.
func SaveAndDisableLocal() State {
	return localController.SaveAndDisable()
}

// RestoreLocal restores the interrupt state returned by SaveAndDisableLocal.
func RestoreLocal(s State) {
	localController.Restore(s)
}

// EnableLocal enables interrupt delivery on the executing core.
func EnableLocal() {
	localController.Enable()
}

// LocalEnabled reports whether interrupts are currently enabled on the
// executing core.
func LocalEnabled() bool {
	s := localController.SaveAndDisable()
	localController.Restore(s)
	return localController.Enabled(s)
}

// SendRescheduleIPI asks the core identified by hardwareID to run its
// reschedule epilogue. The receiving handler does nothing beyond returning;
// the epilogue observes the pending reschedule request.
func SendRescheduleIPI(hardwareID uint32) *kernel.Error {
	if ipiSender == nil {
		return errNoIPISender
	}
	return ipiSender.SendRescheduleIPI(hardwareID)
}

// VirtualController emulates a single interrupt enable flag in memory. It is
// used before the native controller is installed and by hosted tests.
type VirtualController struct {
	disabled uint32
}

// SaveAndDisable implements LocalController.
func (c *VirtualController) SaveAndDisable() State {
	return State(atomic.SwapUint32(&c.disabled, 1))
}

// Restore implements LocalController.
func (c *VirtualController) Restore(s State) {
	atomic.StoreUint32(&c.disabled, uint32(s))
}

// Enable implements LocalController.
func (c *VirtualController) Enable() {
	atomic.StoreUint32(&c.disabled, 0)
}

// Enabled implements LocalController.
func (c *VirtualController) Enabled(s State) bool {
	return s == 0
}
