package kfmt

import (
	"kernos/kernel"
	"kernos/kernel/cpu"
	"kernos/kernel/irq"
)

var (
	// cpuHaltFn is mocked by tests and is automatically inlined by the compiler.
	cpuHaltFn = cpu.Halt

	errRuntimePanic = &kernel.Error{Module: "rt", Message: "unknown cause"}
)

// Panic outputs the supplied error (if not nil) to the console and halts the
// CPU. Calls to Panic never return on real hardware. Panic accepts the values
// recovered from a Go panic: *kernel.Error, error and string.
func Panic(e interface{}) {
	var err *kernel.Error

	switch t := e.(type) {
	case *kernel.Error:
		err = t
	case string:
		errRuntimePanic.Message = t
		err = errRuntimePanic
	case error:
		errRuntimePanic.Message = t.Error()
		err = errRuntimePanic
	}

	// Another core (or this one, if the panic was raised while printing)
	// may own the output lock; print regardless once the attempts run out.
	state, locked := outLock.acquireBounded(panicLockAttempts)

	fprintf(outputSink, "\n-----------------------------------\n", nil)
	if err != nil {
		fprintf(outputSink, "[%s] unrecoverable error: %s\n", []interface{}{err.Module, err.Message})
	}
	fprintf(outputSink, "*** kernel panic: system halted ***", nil)
	fprintf(outputSink, "\n-----------------------------------\n", nil)

	if locked {
		outLock.release(state)
	} else {
		irq.RestoreLocal(state)
	}

	cpuHaltFn()
}

// SetHaltFn replaces the function Panic invokes to halt the CPU and returns
// the previous one.
func SetHaltFn(fn func()) func() {
	prev := cpuHaltFn
	cpuHaltFn = fn
	return prev
}
