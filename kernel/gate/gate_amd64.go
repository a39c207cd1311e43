// Package gate routes x86 interrupts, exceptions and IPIs to registered Go
// handlers.
//
// The low-level entry stubs push a Registers snapshot onto the interrupt stack
// and call Dispatch. If a handler returns, any modifications to the snapshot
// are propagated back to the interrupted context on IRETQ.
package gate

import (
	"io"
	"kernos/kernel"
	"kernos/kernel/kfmt"
)

// Registers contains a snapshot of all register values when an exception,
// interrupt or syscall occurs.
type Registers struct {
	RAX uint64
	RBX uint64
	RCX uint64
	RDX uint64
	RSI uint64
	RDI uint64
	RBP uint64
	R8  uint64
	R9  uint64
	R10 uint64
	R11 uint64
	R12 uint64
	R13 uint64
	R14 uint64
	R15 uint64

	// Info contains the exception code for exceptions, the syscall number
	// for syscall entries or the IRQ number for HW interrupts.
	Info uint64

	// The return frame used by IRETQ
	RIP    uint64
	CS     uint64
	RFlags uint64
	RSP    uint64
	SS     uint64
}

// DumpTo outputs the register contents to w.
func (r *Registers) DumpTo(w io.Writer) {
	kfmt.Fprintf(w, "RAX = %16x RBX = %16x\n", r.RAX, r.RBX)
	kfmt.Fprintf(w, "RCX = %16x RDX = %16x\n", r.RCX, r.RDX)
	kfmt.Fprintf(w, "RSI = %16x RDI = %16x\n", r.RSI, r.RDI)
	kfmt.Fprintf(w, "RBP = %16x\n", r.RBP)
	kfmt.Fprintf(w, "R8  = %16x R9  = %16x\n", r.R8, r.R9)
	kfmt.Fprintf(w, "R10 = %16x R11 = %16x\n", r.R10, r.R11)
	kfmt.Fprintf(w, "R12 = %16x R13 = %16x\n", r.R12, r.R13)
	kfmt.Fprintf(w, "R14 = %16x R15 = %16x\n", r.R14, r.R15)
	kfmt.Fprintf(w, "\n")
	kfmt.Fprintf(w, "RIP = %16x CS  = %16x\n", r.RIP, r.CS)
	kfmt.Fprintf(w, "RSP = %16x SS  = %16x\n", r.RSP, r.SS)
	kfmt.Fprintf(w, "RFL = %16x\n", r.RFlags)
}

// InterruptNumber describes an x86 interrupt/exception/trap slot.
type InterruptNumber uint8

const (
	// DoubleFault occurs when an unhandled exception occurs or when an
	// exception occurs within a running exception handler.
	DoubleFault = InterruptNumber(8)

	// GPFException occurs when a general protection fault occurs.
	GPFException = InterruptNumber(13)

	// PageFaultException occurs when a page directory table (PDT) or one
	// of its entries is not present or when a privilege and/or RW
	// protection check fails.
	PageFaultException = InterruptNumber(14)

	// LocalTimer is raised by the local APIC timer of each core once every
	// scheduler tick.
	LocalTimer = InterruptNumber(0x20)

	// RescheduleIPI is sent by a core that queued a thread on a remote
	// core with higher priority than the one the remote core runs.
	RescheduleIPI = InterruptNumber(0xf1)

	// Spurious is delivered by the local APIC for cancelled interrupts.
	Spurious = InterruptNumber(0xff)
)

var (
	handlers [256]func(*Registers)

	// eoiFn acknowledges hardware interrupts. It is installed by the local
	// APIC driver and is nil while interrupts are dispatched in tests.
	eoiFn func()

	errUnhandledInterrupt = &kernel.Error{Module: "gate", Message: "unhandled interrupt"}
)

// HandleInterrupt ensures that the provided handler will be invoked when a
// particular interrupt number occurs. The value of the istOffset argument
// specifies the offset in the interrupt stack table (if 0 then IST is not
// used) and is recorded for the entry stub of intNumber.
func HandleInterrupt(intNumber InterruptNumber, istOffset uint8, handler func(*Registers)) {
	handlers[intNumber] = handler
	istOffsets[intNumber] = istOffset
}

// istOffsets holds the IST slot selected for each gate entry.
var istOffsets [256]uint8

// SetEOIHandler registers the function that acknowledges hardware
// interrupts once their handler returns.
func SetEOIHandler(fn func()) { eoiFn = fn }

// Dispatch invokes the handler registered for the interrupt number stored in
// regs.Info. Interrupts without a handler are unrecoverable.
func Dispatch(regs *Registers) {
	intNumber := InterruptNumber(regs.Info)
	handler := handlers[intNumber]
	if handler == nil {
		kfmt.Printf("\nunhandled interrupt %d\n", uint8(intNumber))
		regs.DumpTo(kfmt.Console())
		kfmt.Panic(errUnhandledInterrupt)
		return
	}

	// Acknowledge the interrupt before the handler runs: the timer and IPI
	// handlers may switch to another thread and only return much later.
	if intNumber >= LocalTimer && intNumber != Spurious && eoiFn != nil {
		eoiFn()
	}

	handler(regs)
}
