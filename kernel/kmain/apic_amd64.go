package kmain

import (
	"kernos/kernel"
	"kernos/kernel/gate"
)

// x2APIC model specific registers.
const (
	msrAPICBase          = uint32(0x1b)
	msrEOI               = uint32(0x80b)
	msrSpurious          = uint32(0x80f)
	msrLVTTimer          = uint32(0x832)
	msrTimerInitialCount = uint32(0x838)
	msrTimerDivide       = uint32(0x83e)

	apicBaseX2APIC   = uint64(1 << 10)
	apicBaseEnable   = uint64(1 << 11)
	spuriousEnable   = uint64(1 << 8)
	lvtTimerPeriodic = uint64(1 << 17)
	timerDivideBy16  = uint64(0x3)
)

var errNoX2APIC = &kernel.Error{Module: "apic", Message: "x2APIC mode is not supported by this CPU"}

// enableX2APIC switches the local APIC of the executing core to x2APIC mode
// and routes spurious interrupts to gate.Spurious.
func enableX2APIC() *kernel.Error {
	if !hasX2APICFn() {
		return errNoX2APIC
	}

	writeMSRFn(msrAPICBase, readMSRFn(msrAPICBase)|apicBaseEnable|apicBaseX2APIC)
	writeMSRFn(msrSpurious, spuriousEnable|uint64(gate.Spurious))
	return nil
}

// startLocalTimer arms the periodic local timer. Each expiry raises
// gate.LocalTimer.
func startLocalTimer(count uint32) {
	writeMSRFn(msrTimerDivide, timerDivideBy16)
	writeMSRFn(msrLVTTimer, lvtTimerPeriodic|uint64(gate.LocalTimer))
	writeMSRFn(msrTimerInitialCount, uint64(count))
}

func acknowledgeInterrupt() {
	writeMSRFn(msrEOI, 0)
}
