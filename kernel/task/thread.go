package task

import (
	"kernos/kernel/arch"
	"kernos/kernel/mm"
	"kernos/kernel/sync"
)

// Thread is the control block of a schedulable thread.
//
// status, context and wakePending are guarded by lock. The run list links and
// timeSlice belong to the run queue that holds the thread and are guarded by
// that queue's lock.
type Thread struct {
	lock sync.IRQSpinlock

	id       ThreadID
	process  *Process
	priority uint8
	status   Status
	context  arch.ContextData

	// home is the run queue the thread is bound to once queued.
	home *RunQueue

	// run list membership.
	bucket     *runList
	prev, next *Thread
	timeSlice  uint64

	// wait queue membership, guarded by the wait queue lock.
	waitNext *Thread

	// wakePending records a wake-up that arrived while the thread was still
	// executing; the next sleep returns immediately.
	wakePending bool

	kernelStack     uintptr
	kernelStackSize mm.Size
}

// ID returns the thread id.
func (t *Thread) ID() ThreadID { return t.id }

// Process returns the process that owns the thread.
func (t *Thread) Process() *Process { return t.process }

// Priority returns the thread priority. Lower values run first.
func (t *Thread) Priority() uint8 { return t.priority }

// Home returns the run queue the thread has been bound to or nil if the thread
// was never queued.
func (t *Thread) Home() *RunQueue {
	t.lock.Acquire()
	home := t.home
	t.lock.Release()
	return home
}

// Status returns the current thread status.
func (t *Thread) Status() Status {
	t.lock.Acquire()
	status := t.status
	t.lock.Release()
	return status
}

// Context returns the saved register state of the thread.
func (t *Thread) Context() arch.ContextData {
	t.lock.Acquire()
	ctx := t.context
	t.lock.Release()
	return ctx
}

// KernelStack returns the base address and size of the thread's kernel stack.
func (t *Thread) KernelStack() (uintptr, mm.Size) {
	return t.kernelStack, t.kernelStackSize
}

// setStatus moves the thread to a new status. The caller must hold t.lock.
// Illegal transitions are fatal.
func (t *Thread) setStatus(to Status) {
	if !CanTransition(t.status, to) {
		log.Errorf("thread %d: %s -> %s", uint64(t.id), t.status.String(), to.String())
		panic(errInvalidTransition)
	}
	t.status = to
}

// sameTask reports whether a and b describe the same thread of the same
// process.
func sameTask(a, b *Thread) bool {
	return a.id == b.id && a.process.id == b.process.id
}

// copyData returns a detached copy of t suitable for forking. The copy shares
// the process and priority of t but is not queued anywhere. The caller must
// hold t.lock.
func (t *Thread) copyData() *Thread {
	return &Thread{
		process:  t.process,
		priority: t.priority,
		status:   StatusStopping,
		context:  t.context,
	}
}
