// Package kmain brings up the kernel on the boot core and hands control to
// the scheduler.
package kmain

import (
	"kernos/device/console"
	"kernos/kernel"
	"kernos/kernel/arch"
	"kernos/kernel/arch/amd64"
	"kernos/kernel/arch/native"
	"kernos/kernel/cmdline"
	"kernos/kernel/cpu"
	"kernos/kernel/gate"
	"kernos/kernel/goruntime"
	"kernos/kernel/irq"
	"kernos/kernel/kfmt"
	"kernos/kernel/mm"
	"kernos/kernel/mm/pmm"
	"kernos/kernel/mm/vmm"
	"kernos/kernel/smp"
	"kernos/kernel/sync"
	"kernos/kernel/task"
	"kernos/kernel/timer"
	"kernos/multiboot"
	"unsafe"
)

const (
	// vgaTextBase is the VGA text buffer as seen through the direct map.
	vgaTextBase = uintptr(0xffff8000000b8000)

	vgaColumns, vgaRows = 80, 25

	// defaultTimerCount is the initial count of the local APIC timer.
	defaultTimerCount = 1000000
)

var (
	log = kfmt.NewLogger("kmain")

	errKmainReturned = &kernel.Error{Module: "kmain", Message: "Kmain returned"}
	errUnknownCore   = &kernel.Error{Module: "kmain", Message: "executing core is not part of the cluster"}

	cluster *smp.Cluster
	stacks  mm.HeapStackAllocator

	// The following are mocked by tests as they touch privileged state.
	hardwareIDFn      = cpu.APICID
	haltFn            = cpu.Halt
	readMSRFn         = cpu.ReadMSR
	writeMSRFn        = cpu.WriteMSR
	hasX2APICFn       = cpu.HasX2APIC
	initKernelSpaceFn = vmm.InitKernelSpace
	backendFn         = native.Backend
	bootGFn           = goruntime.BootG
	checkSwitchFn     = amd64.CheckContextSwitch

	nativeIRQ irq.LocalController = irq.NativeController{}
)

// bootConfig collects the settings read from the kernel command line.
type bootConfig struct {
	sched      task.Config
	timerCount uint32
}

// Kmain is the only Go symbol that is visible (exported) from the rt0
// initialization code. The rt0 code passes the address of the multiboot info
// payload provided by the bootloader as well as the physical addresses for
// the kernel start/end.
//
// Kmain is not expected to return. If it does, the rt0 code will halt the CPU.
//
//go:noinline
func Kmain(multibootInfoPtr, kernelStart, kernelEnd uintptr) {
	multiboot.SetInfoPtr(multibootInfoPtr)

	// Nothing before this point may allocate from the Go heap.
	pmm.Init(kernelStart, kernelEnd)
	if err := goruntime.Init(); err != nil {
		kfmt.Panic(err)
	}

	fb := unsafe.Slice((*uint16)(unsafe.Pointer(vgaTextBase)), vgaColumns*vgaRows)
	cons := console.NewTextConsole(vgaColumns, vgaRows, fb)
	cons.Clear()
	kfmt.SetOutputSink(cons)

	cfg := configure(multiboot.BootCmdLine())
	if name := multiboot.BootLoaderName(); name != "" {
		log.Infof("booted by %s", name)
	}

	if err := boot(cfg); err != nil {
		kfmt.Panic(err)
	}

	currentCore().Start()

	// Use kfmt.Panic instead of panic to prevent the compiler from
	// treating it as dead code and eliminating it.
	kfmt.Panic(errKmainReturned)
}

// configure applies the global settings found in cmdLine and returns the
// rest for boot.
func configure(cmdLine string) bootConfig {
	kv := cmdline.Parse(cmdLine)

	if name := cmdline.String(kv, "loglevel", ""); name != "" {
		if level, ok := kfmt.ParseLevel(name); ok {
			kfmt.SetLogLevel(level)
		} else {
			log.Warnf("unknown log level %s", name)
		}
	}
	sync.SetSpinWarnThreshold(cmdline.Uint(kv, "sync.spin_warn_threshold", 0))

	return bootConfig{
		sched:      task.ConfigFromCmdLine(kv),
		timerCount: uint32(cmdline.Uint(kv, "apic.timer_count", defaultTimerCount)),
	}
}

// boot installs the native collaborators of the scheduler, builds the
// cluster and arms the local timer. Interrupts stay masked until the first
// thread starts.
func boot(cfg bootConfig) *kernel.Error {
	irq.SetLocalController(nativeIRQ)
	mm.SetStackAllocator(stacks.Alloc, stacks.Free)

	// System threads share the boot goroutine.
	amd64.SetBootG(bootGFn())
	if err := checkSwitchFn(); err != nil {
		return err
	}

	initKernelSpaceFn()
	task.SetAddressSpaceAllocator(newAddressSpace)

	if err := enableX2APIC(); err != nil {
		return err
	}
	irq.SetIPISender(irq.X2APICSender{Vector: uint8(gate.RescheduleIPI)})
	gate.SetEOIHandler(acknowledgeInterrupt)
	gate.HandleInterrupt(gate.LocalTimer, 0, timerInterrupt)
	gate.HandleInterrupt(gate.RescheduleIPI, 0, rescheduleInterrupt)
	gate.HandleInterrupt(gate.Spurious, 0, func(*gate.Registers) {})

	c, err := bringUp(backendFn(), cfg.sched, []uint32{hardwareIDFn()})
	if err != nil {
		return err
	}
	cluster = c

	startLocalTimer(cfg.timerCount)
	return nil
}

// bringUp creates the cluster for the given cores together with their idle
// threads and work queue daemons.
func bringUp(backend arch.CPUContext, cfg task.Config, hardwareIDs []uint32) (*smp.Cluster, *kernel.Error) {
	mgr := task.NewManager(backend, cfg)

	c, err := smp.NewCluster(mgr, backend, hardwareIDs)
	if err != nil {
		return nil, err
	}
	if err = c.SpawnIdleThreads(task.EntryPC(idleLoop)); err != nil {
		return nil, err
	}
	if err = c.SpawnWorkDaemons(task.EntryPC(workDaemon)); err != nil {
		return nil, err
	}

	log.Infof("scheduler ready on %s", backend.Name())
	return c, nil
}

// newAddressSpace adapts vmm.NewAddressSpace so a failed allocation yields a
// nil interface.
func newAddressSpace() (task.AddressSpace, *kernel.Error) {
	as, err := vmm.NewAddressSpace()
	if err != nil {
		return nil, err
	}
	return as, nil
}

func currentCore() *smp.Core {
	core, ok := cluster.CoreByHardwareID(hardwareIDFn())
	if !ok {
		panic(errUnknownCore)
	}
	return core
}

func idleLoop() {
	for {
		haltFn()
	}
}

func workDaemon() {
	currentCore().WorkQueue.Run()
}

// frameLoader is implemented by contexts that can capture an interrupt frame.
type frameLoader interface {
	LoadInterruptFrame(*gate.Registers)
}

func timerInterrupt(regs *gate.Registers) {
	core := currentCore()
	if core == cluster.Cores()[0] {
		timer.Tick()
	}
	core.Scratch.(frameLoader).LoadInterruptFrame(regs)
	core.TimerInterrupt(core.Scratch)
}

func rescheduleInterrupt(regs *gate.Registers) {
	core := currentCore()
	core.Scratch.(frameLoader).LoadInterruptFrame(regs)
	core.RescheduleInterrupt(core.Scratch)
}
