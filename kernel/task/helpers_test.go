package task

import (
	"kernos/kernel"
	"kernos/kernel/arch"
	"kernos/kernel/mm"
	"testing"
)

type fakeContext struct {
	pc, sp    uintptr
	user      bool
	irqOn     bool
	args      []uint64
	ret       uint64
	snapshots int
}

func (c *fakeContext) ProgramCounter() uintptr { return c.pc }
func (c *fakeContext) StackPointer() uintptr   { return c.sp }
func (c *fakeContext) InterruptsEnabled() bool { return c.irqOn }
func (c *fakeContext) UserMode() bool          { return c.user }

func (c *fakeContext) SetFunctionCallArguments(args ...uint64) {
	c.args = append(c.args[:0], args...)
}

func (c *fakeContext) SystemCallArgument(index int) (uint64, bool) {
	if index < 0 || index >= len(c.args) {
		return 0, false
	}
	return c.args[index], true
}

func (c *fakeContext) SetSystemCallReturnValue(v uint64) { c.ret = v }

func (c *fakeContext) Snapshot(src arch.ContextData) {
	c.pc, c.sp = src.ProgramCounter(), src.StackPointer()
	c.snapshots++
}

type opKind uint8

const (
	opJump opKind = iota
	opSwitch
)

type contextOp struct {
	kind     opKind
	from, to arch.ContextData
	allowIRQ bool
}

// fakeBackend records every hand-off instead of performing it.
type fakeBackend struct {
	ops []contextOp
}

func (b *fakeBackend) Name() string { return "fake" }

func (b *fakeBackend) CreateContextDataForSystem(entry, stack uintptr) arch.ContextData {
	return &fakeContext{pc: entry, sp: stack, irqOn: true}
}

func (b *fakeBackend) CreateContextDataForUser(entry, stack uintptr, args []uint64) arch.ContextData {
	return &fakeContext{pc: entry, sp: stack, irqOn: true, user: true, args: args}
}

func (b *fakeBackend) ForkContextData(original arch.ContextData, entry, stack uintptr) arch.ContextData {
	return &fakeContext{pc: entry, sp: stack, irqOn: original.InterruptsEnabled(), user: original.UserMode()}
}

func (b *fakeBackend) JumpToContext(ctx arch.ContextData, allowInterrupt bool) {
	b.ops = append(b.ops, contextOp{kind: opJump, to: ctx, allowIRQ: allowInterrupt})
}

func (b *fakeBackend) SwitchContext(old, next arch.ContextData, allowInterrupt bool) {
	b.ops = append(b.ops, contextOp{kind: opSwitch, from: old, to: next, allowIRQ: allowInterrupt})
}

func (b *fakeBackend) last() contextOp { return b.ops[len(b.ops)-1] }

// fakeSpace counts calls made by the scheduler and fails them on demand.
type fakeSpace struct {
	clones, activations int
	cloneErr, activateErr *kernel.Error
}

func (s *fakeSpace) CloneKernelEntries() *kernel.Error {
	s.clones++
	return s.cloneErr
}

func (s *fakeSpace) Activate() *kernel.Error {
	s.activations++
	return s.activateErr
}

type schedFixture struct {
	backend *fakeBackend
	mgr     *Manager
	rq      *RunQueue
	idle    *Thread
	stacks  *mm.HeapStackAllocator
}

// newFixture returns a started-up manager plus a run queue with an idle
// thread. The returned func restores the global state touched by the fixture.
func newFixture(t *testing.T, cfg Config) (*schedFixture, func()) {
	t.Helper()

	f := &schedFixture{backend: &fakeBackend{}, stacks: &mm.HeapStackAllocator{}}
	mm.SetStackAllocator(f.stacks.Alloc, f.stacks.Free)

	f.mgr = NewManager(f.backend, cfg)

	var err *kernel.Error
	if f.rq, err = f.mgr.NewRunQueue(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	f.idle = f.kernelThread(t, IdlePriority)
	f.rq.SetIdleThread(f.idle)

	return f, func() { mm.SetStackAllocator(nil, nil) }
}

func (f *schedFixture) kernelThread(t *testing.T, prio uint8) *Thread {
	t.Helper()

	th, err := f.mgr.CreateKernelThread(0x1000, prio)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return th
}

// spawn creates and queues a kernel thread.
func (f *schedFixture) spawn(t *testing.T, prio uint8) *Thread {
	t.Helper()

	th := f.kernelThread(t, prio)
	if err := f.rq.AddThread(th); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return th
}

func (f *schedFixture) queued() int {
	return f.rq.run.count + f.rq.expired.count
}

// expectPanic runs fn and returns the recovered value.
func expectPanic(t *testing.T, fn func()) (recovered interface{}) {
	t.Helper()

	defer func() {
		recovered = recover()
		if recovered == nil {
			t.Fatal("expected a panic")
		}
	}()
	fn()
	return nil
}
