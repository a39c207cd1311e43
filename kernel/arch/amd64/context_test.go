package amd64

import (
	"bytes"
	"kernos/kernel/arch"
	"kernos/kernel/irq"
	"kernos/kernel/kfmt"
	"kernos/kernel/mm"
	"testing"
	"unsafe"
)

// simCPU models the register file of a core so the hand-off routines can be
// exercised without privileged instructions.
type simCPU struct {
	regs    Registers
	resumes int
}

const simResumeAddr = 0xfeedface

func (cpu *simCPU) install() func() {
	origSwitch, origRestore := taskSwitchFn, taskRestoreFn

	taskSwitchFn = func(old, next *Context, allowInterrupt bool) {
		old.Regs = cpu.regs
		old.Regs.RIP = simResumeAddr
		cpu.load(next, allowInterrupt)
	}
	taskRestoreFn = cpu.load

	return func() { taskSwitchFn, taskRestoreFn = origSwitch, origRestore }
}

func (cpu *simCPU) load(ctx *Context, allowInterrupt bool) {
	cpu.regs = ctx.Regs
	if allowInterrupt {
		cpu.regs.RFlags |= rflagsInterrupt
	}
	cpu.resumes++
}

func TestContextLayout(t *testing.T) {
	var c Context

	specs := []struct {
		name   string
		offset uintptr
		exp    uintptr
	}{
		{"RAX", unsafe.Offsetof(c.Regs) + unsafe.Offsetof(c.Regs.RAX), 512},
		{"RBX", unsafe.Offsetof(c.Regs) + unsafe.Offsetof(c.Regs.RBX), 536},
		{"R15", unsafe.Offsetof(c.Regs) + unsafe.Offsetof(c.Regs.R15), 624},
		{"SS", unsafe.Offsetof(c.Regs) + unsafe.Offsetof(c.Regs.SS), 648},
		{"RSP", unsafe.Offsetof(c.Regs) + unsafe.Offsetof(c.Regs.RSP), 656},
		{"RFlags", unsafe.Offsetof(c.Regs) + unsafe.Offsetof(c.Regs.RFlags), 664},
		{"CS", unsafe.Offsetof(c.Regs) + unsafe.Offsetof(c.Regs.CS), 672},
		{"RIP", unsafe.Offsetof(c.Regs) + unsafe.Offsetof(c.Regs.RIP), 680},
	}

	for _, spec := range specs {
		if spec.offset != spec.exp {
			t.Errorf("expected %s to be stored at offset %d; got %d", spec.name, spec.exp, spec.offset)
		}
	}
}

func TestCreateContextData(t *testing.T) {
	defer irq.SetLocalController(irq.SetLocalController(&irq.VirtualController{}))

	var b Backend

	t.Run("system", func(t *testing.T) {
		ctx := b.CreateContextDataForSystem(0x1000, 0x8000)
		c := ctx.(*Context)

		if !mm.IsAligned(unsafe.Pointer(c), mm.CacheLineSize) {
			t.Fatal("expected context to be 64-byte aligned")
		}
		if ctx.ProgramCounter() != 0x1000 || ctx.StackPointer() != 0x8000 {
			t.Fatalf("expected pc/sp to be 0x1000/0x8000; got %x/%x", ctx.ProgramCounter(), ctx.StackPointer())
		}
		if ctx.UserMode() || !ctx.InterruptsEnabled() {
			t.Fatal("expected a kernel-mode context with interrupts enabled")
		}
		if c.Regs.RIP != uint64(goEntryAddr) || c.Regs.R12 != 0x1000 {
			t.Fatalf("expected the entry point to be reached through goEntry; got rip=%x r12=%x", c.Regs.RIP, c.Regs.R12)
		}
		if c.Regs.RFlags != 0x202 || c.Regs.CS != kernelCodeSelector || c.Regs.SS != kernelDataSelector {
			t.Fatalf("unexpected rflags/cs/ss: %x/%x/%x", c.Regs.RFlags, c.Regs.CS, c.Regs.SS)
		}
		if c.Regs.RAX|c.Regs.RBX|c.Regs.RDI|c.Regs.R15 != 0 {
			t.Fatal("expected general purpose registers to be zeroed")
		}
	})

	t.Run("user", func(t *testing.T) {
		ctx := b.CreateContextDataForUser(0x400000, 0x7fff0000, []uint64{1, 2, 3, 4, 5, 6})
		c := ctx.(*Context)

		if !ctx.UserMode() || !ctx.InterruptsEnabled() {
			t.Fatal("expected a user-mode context with interrupts enabled")
		}
		got := []uint64{c.Regs.RDI, c.Regs.RSI, c.Regs.RDX, c.Regs.RCX, c.Regs.R8, c.Regs.R9}
		for i, v := range got {
			if v != uint64(i+1) {
				t.Errorf("expected argument %d to be %d; got %d", i, i+1, v)
			}
		}
	})

	t.Run("user with excess arguments", func(t *testing.T) {
		defer kfmt.SetOutputSink(nil)
		var buf bytes.Buffer
		kfmt.SetOutputSink(&buf)

		ctx := b.CreateContextDataForUser(0x400000, 0x7fff0000, []uint64{1, 2, 3, 4, 5, 6, 7, 8})
		c := ctx.(*Context)

		if c.Regs.R9 != 6 || c.Regs.RAX != 0 {
			t.Fatal("expected arguments beyond the sixth to be dropped")
		}
		if !bytes.Contains(buf.Bytes(), []byte("8 arguments supplied")) {
			t.Fatalf("expected an error to be logged; got %q", buf.String())
		}
	})
}

func TestForkContextData(t *testing.T) {
	var b Backend

	orig := b.CreateContextDataForUser(0x400000, 0x7fff0000, []uint64{1, 2})
	orig.(*Context).Regs.RBX = 0xdead

	fork := b.ForkContextData(orig, 0x500000, 0x6fff0000).(*Context)

	if fork.ProgramCounter() != 0x500000 || fork.StackPointer() != 0x6fff0000 {
		t.Fatal("expected fork to use the supplied entry and stack")
	}
	if !fork.UserMode() || fork.Regs.RFlags != orig.(*Context).Regs.RFlags {
		t.Fatal("expected fork to inherit the privilege and interrupt state")
	}
	if fork.Regs.RBX != 0 || fork.Regs.RDI != 0 {
		t.Fatal("expected fork general purpose registers to be zeroed")
	}

	kfork := b.ForkContextData(b.CreateContextDataForSystem(0x1000, 0x8000), 0x3000, 0x9000).(*Context)
	if kfork.UserMode() || kfork.ProgramCounter() != 0x3000 || kfork.Regs.RIP != uint64(goEntryAddr) {
		t.Fatalf("expected kernel fork to enter 0x3000 through goEntry; got rip=%x r12=%x", kfork.Regs.RIP, kfork.Regs.R12)
	}
}

func TestSystemCallABI(t *testing.T) {
	var (
		b     Backend
		block = [arch.MaxSystemCallArguments]uint64{10, 11, 12, 13, 14, 15, 16, 17}
	)

	ctx := b.CreateContextDataForSystem(0, 0)
	ctx.SetFunctionCallArguments(uint64(uintptr(unsafe.Pointer(&block))))

	for i := 0; i < arch.MaxSystemCallArguments; i++ {
		got, ok := ctx.SystemCallArgument(i)
		if !ok || got != block[i] {
			t.Errorf("expected argument %d to be (%d, true); got (%d, %t)", i, block[i], got, ok)
		}
	}

	for _, index := range []int{-1, 8, 100} {
		if _, ok := ctx.SystemCallArgument(index); ok {
			t.Errorf("expected argument %d to be reported as missing", index)
		}
	}

	ctx.SetSystemCallReturnValue(0x42)
	if got := ctx.(*Context).Regs.RAX; got != 0x42 {
		t.Fatalf("expected return value to be stored in RAX; got %x", got)
	}
}

func TestSwitchContextRoundTrip(t *testing.T) {
	var (
		b   Backend
		cpu simCPU
	)
	defer cpu.install()()

	// The caller runs with interrupts masked and a canary in a callee
	// saved register.
	cpu.regs = Registers{RBX: 0xcafebabe, R12: 0x1234, RFlags: 0x2, CS: kernelCodeSelector}

	caller := b.CreateContextDataForSystem(0, 0)
	worker := b.CreateContextDataForSystem(0x1000, 0x8000)

	b.SwitchContext(caller, worker, true)

	if cpu.regs.RIP != uint64(goEntryAddr) || cpu.regs.R12 != 0x1000 || cpu.regs.RSP != 0x8000 {
		t.Fatalf("expected core to enter the worker through goEntry; got rip=%x r12=%x rsp=%x", cpu.regs.RIP, cpu.regs.R12, cpu.regs.RSP)
	}
	if cpu.regs.RFlags&rflagsInterrupt == 0 {
		t.Fatal("expected interrupts to be enabled when the worker resumes")
	}

	// The worker clobbers the canary and switches back.
	cpu.regs.RBX = 0

	b.SwitchContext(worker, caller, false)

	if cpu.regs.RBX != 0xcafebabe || cpu.regs.R12 != 0x1234 {
		t.Fatalf("expected caller registers to be restored; got rbx=%x r12=%x", cpu.regs.RBX, cpu.regs.R12)
	}
	if cpu.regs.RIP != simResumeAddr {
		t.Fatal("expected caller to resume at the switch return address")
	}
	if cpu.regs.RFlags&rflagsInterrupt != 0 {
		t.Fatal("expected interrupts to remain masked when not allowed")
	}
	if cpu.resumes != 2 {
		t.Fatalf("expected 2 resumes; got %d", cpu.resumes)
	}
}

func TestJumpToContextAndSnapshot(t *testing.T) {
	var (
		b   Backend
		cpu simCPU
	)
	defer cpu.install()()

	interrupted := b.CreateContextDataForSystem(0x2000, 0x9000)
	interrupted.(*Context).Regs.RBX = 0x55

	saved := b.CreateContextDataForSystem(0, 0)
	saved.Snapshot(interrupted)
	if saved.(*Context).Regs.RBX != 0x55 || saved.ProgramCounter() != 0x2000 {
		t.Fatal("expected Snapshot to copy the interrupted register state")
	}

	b.JumpToContext(saved, false)
	if cpu.regs.R12 != 0x2000 || cpu.regs.RBX != 0x55 {
		t.Fatal("expected JumpToContext to resume the saved context")
	}
}

type foreignContext struct{ arch.ContextData }

func TestContextValidation(t *testing.T) {
	var b Backend

	expectPanic := func(t *testing.T, exp error, fn func()) {
		t.Helper()
		defer func() {
			if err := recover(); err != exp {
				t.Fatalf("expected panic with %v; got %v", exp, err)
			}
		}()
		fn()
	}

	t.Run("foreign context", func(t *testing.T) {
		expectPanic(t, arch.ErrForeignContext, func() {
			b.JumpToContext(foreignContext{}, false)
		})
	})

	t.Run("misaligned context", func(t *testing.T) {
		buf := make([]byte, unsafe.Sizeof(Context{})+2*mm.CacheLineSize)
		base := (uintptr(unsafe.Pointer(&buf[0])) + mm.CacheLineSize - 1) &^ (mm.CacheLineSize - 1)
		misaligned := (*Context)(unsafe.Pointer(&buf[base+8-uintptr(unsafe.Pointer(&buf[0]))]))

		expectPanic(t, arch.ErrMisalignedContext, func() {
			b.SwitchContext(misaligned, b.CreateContextDataForSystem(0, 0), false)
		})
	})
}

func TestBackendName(t *testing.T) {
	var cpuCtx arch.CPUContext = Backend{}
	if cpuCtx.Name() != "amd64" {
		t.Fatalf("expected backend name amd64; got %s", cpuCtx.Name())
	}
}
