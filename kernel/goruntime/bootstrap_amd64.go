// Package goruntime contains code for bootstrapping Go runtime features such
// as the memory allocator.
//
// The functions marked with go:redirect-from replace their runtime
// counterparts. The tools/redirects program records them in the kernel image
// and the boot code patches the runtime before Kmain runs.
package goruntime

import (
	"kernos/kernel"
	"kernos/kernel/kfmt"
	"kernos/kernel/mm"
	"kernos/kernel/mm/vmm"
	"kernos/kernel/timer"
	"unsafe"
)

var (
	log = kfmt.NewLogger("goruntime")

	frameAllocFn    = mm.AllocFrame
	directMapFn     = vmm.DirectMapAddress
	memsetFn        = kernel.Memset
	mallocInitFn    = mallocInit
	algInitFn       = algInit
	modulesInitFn   = modulesInit
	typeLinksInitFn = typeLinksInit
	itabsInitFn     = itabsInit
	currentGFn      = currentG
	openStackFn     = openStack

	// A seed for the pseudo-random number generator used by getRandomData
	prngSeed = 0xdeadc0de
)

//go:linkname algInit runtime.alginit
func algInit()

//go:linkname modulesInit runtime.modulesinit
func modulesInit()

//go:linkname typeLinksInit runtime.typelinksinit
func typeLinksInit()

//go:linkname itabsInit runtime.itabsinit
func itabsInit()

//go:linkname mallocInit runtime.mallocinit
func mallocInit()

// physPageSize is normally read from the auxiliary vector by the runtime and
// must be non-zero before mallocinit runs.
//
//go:linkname physPageSize runtime.physPageSize
var physPageSize uintptr

// currentG returns the goroutine descriptor stored in the TLS slot.
func currentG() uintptr

// gStack mirrors the leading fields of the runtime's g structure.
type gStack struct {
	lo, hi      uintptr
	stackGuard0 uintptr
	stackGuard1 uintptr
}

// openStack lets the goroutine g run on any stack. Kernel threads execute Go
// code on their own kernel stacks while sharing the boot goroutine, so the
// stack bounds of g must not trigger a stack split.
func openStack(g uintptr) {
	s := (*gStack)(unsafe.Pointer(g))
	s.lo, s.hi = 0, ^uintptr(0)
	s.stackGuard0, s.stackGuard1 = 0, 0
}

// reserveContiguous allocates enough physically contiguous frames to hold
// size bytes and returns their zeroed range in the direct map. Frames that
// precede a gap in the allocator's output are lost. A zero size yields a zero
// address.
func reserveContiguous(size uintptr) (uintptr, *kernel.Error) {
	if size == 0 {
		return 0, nil
	}
	pages := (size + mm.PageSize - 1) >> mm.PageShift

	var (
		start, last mm.Frame
		count       uintptr
	)
	for count < pages {
		frame, err := frameAllocFn()
		if err != nil {
			return 0, err
		}
		if count == 0 || frame != last+1 {
			if count != 0 {
				log.Debugf("dropping %d frames before gap at frame %d", uint64(count), uint64(frame))
			}
			start, count = frame, 0
		}
		last = frame
		count++
	}

	addr := directMapFn(start)
	memsetFn(addr, 0, pages<<mm.PageShift)
	return addr, nil
}

// sysReserveOS reserves address space for the Go heap. Memory can only come
// from the direct map, so hinted reservations are refused and the runtime
// falls back to an unhinted one which is backed right away.
//
//go:redirect-from runtime.sysReserveOS
//go:nosplit
func sysReserveOS(v unsafe.Pointer, n uintptr) unsafe.Pointer {
	if v != nil {
		return nil
	}

	addr, err := reserveContiguous(n)
	if err != nil {
		log.Errorf("cannot reserve %d bytes: %s", uint64(n), err)
		return nil
	}
	return unsafe.Pointer(addr)
}

// sysMapOS commits a reserved region. Reserved regions are already backed.
//
//go:redirect-from runtime.sysMapOS
//go:nosplit
func sysMapOS(_ unsafe.Pointer, _ uintptr) {}

// sysAllocOS allocates zeroed memory for runtime metadata.
//
//go:redirect-from runtime.sysAllocOS
//go:nosplit
func sysAllocOS(n uintptr) unsafe.Pointer {
	addr, err := reserveContiguous(n)
	if err != nil {
		log.Errorf("cannot allocate %d bytes: %s", uint64(n), err)
		return nil
	}
	return unsafe.Pointer(addr)
}

// The boot allocator cannot take frames back, so the runtime's hints about
// unused or freed memory are dropped.

//go:redirect-from runtime.sysUsedOS
//go:nosplit
func sysUsedOS(_ unsafe.Pointer, _ uintptr) {}

//go:redirect-from runtime.sysUnusedOS
//go:nosplit
func sysUnusedOS(_ unsafe.Pointer, _ uintptr) {}

//go:redirect-from runtime.sysFreeOS
//go:nosplit
func sysFreeOS(_ unsafe.Pointer, _ uintptr) {}

//go:redirect-from runtime.sysHugePageOS
//go:nosplit
func sysHugePageOS(_ unsafe.Pointer, _ uintptr) {}

// nanotime1 returns the time elapsed since the scheduler tick started.
//
//go:redirect-from runtime.nanotime1
//go:nosplit
func nanotime1() int64 {
	return int64(timer.Uptime())
}

// getRandomData populates the given slice with random data. The runtime
// reads it from the auxiliary vector or /dev/urandom; neither exists here so
// a prng is used instead.
//
//go:redirect-from runtime.getRandomData
func getRandomData(r []byte) {
	for i := 0; i < len(r); i++ {
		prngSeed = (prngSeed * 58321) + 11113
		r[i] = byte((prngSeed >> 16) & 255)
	}
}

// Init enables support for various Go runtime features. After a call to Init
// the following runtime features become available for use:
//   - heap memory allocation (new, make e.t.c)
//   - map primitives
//   - interfaces
//
// It also lifts the stack bounds of the boot goroutine, whose descriptor
// BootG returns, so kernel threads can share it.
func Init() *kernel.Error {
	physPageSize = mm.PageSize

	mallocInitFn()
	algInitFn()       // setup hash implementation for map keys
	modulesInitFn()   // provides activeModules
	typeLinksInitFn() // uses maps, activeModules
	itabsInitFn()     // uses activeModules

	openStackFn(currentGFn())
	return nil
}

// BootG returns the goroutine descriptor of the executing code.
func BootG() uintptr {
	return currentGFn()
}

func init() {
	// Dummy calls so the compiler does not optimize away the functions in
	// this file.
	var zeroPtr = unsafe.Pointer(uintptr(0))

	sysReserveOS(zeroPtr, 0)
	sysMapOS(zeroPtr, 0)
	sysAllocOS(0)
	sysUsedOS(zeroPtr, 0)
	sysUnusedOS(zeroPtr, 0)
	sysFreeOS(zeroPtr, 0)
	sysHugePageOS(zeroPtr, 0)
	getRandomData(nil)
	_ = nanotime1()
}
