package amd64

import (
	"kernos/kernel"
	"kernos/kernel/mm"
	"runtime"
	"unsafe"
)

const (
	switchCanary    = uint64(0xcafebabe5ca1ab1e)
	checkStackWords = 512
)

func checkSwitch() *kernel.Error {
	stack := mm.AlignedNew[[checkStackWords]uint64](16)
	cs, ss := currentSelectors()

	caller := newContext()
	worker := newContext()
	initFPUState(worker)
	worker.Regs.CS, worker.Regs.SS = cs, ss
	worker.Regs.RSP = uint64(uintptr(unsafe.Pointer(&stack[checkStackWords-2])))
	worker.Regs.RFlags = rflagsReserved
	worker.Regs.RIP = uint64(goEntryAddr)
	worker.Regs.R12 = uint64(bounceEntryPC())
	worker.Regs.RDI = uint64(uintptr(unsafe.Pointer(caller)))

	bounceG = ^bootG
	rbx, r12 := switchAndReport(caller, worker, switchCanary)
	runtime.KeepAlive(stack)
	runtime.KeepAlive(worker)

	switch {
	case rbx != switchCanary || r12 != switchCanary:
		log.Errorf("switch round trip returned rbx=0x%x r12=0x%x", rbx, r12)
		return errSwitchClobbered
	case bounceG != bootG:
		return errSwitchG
	}
	return nil
}
