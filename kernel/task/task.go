// Package task implements the per-core scheduler: thread and process control
// blocks, the priority-bucketed run queue with its run/expired epoch lists,
// wait queues, the deferred work queue and the thread creation helpers.
//
// Lock order is always: run queue lock, then the running thread's lock, then
// at most one other thread lock. Wait and work queue locks are taken before
// any run queue lock.
package task

import (
	"kernos/kernel"
	"kernos/kernel/kfmt"
	"sync/atomic"
	"unsafe"
)

var (
	log = kfmt.NewLogger("sched")

	// ErrRunListPoolAlloc is returned by RunQueue.Init when the bucket slab
	// cannot be carved out.
	ErrRunListPoolAlloc = &kernel.Error{Module: "sched", Message: "unable to allocate run list pool"}

	// ErrRunListPoolExhausted is returned when a thread needs a new priority
	// bucket and the slab has no free nodes left.
	ErrRunListPoolExhausted = &kernel.Error{Module: "sched", Message: "run list pool exhausted"}

	// ErrThreadBusy is returned by non-blocking paths when a thread lock is
	// held by someone else.
	ErrThreadBusy = &kernel.Error{Module: "sched", Message: "thread lock is busy"}

	// ErrThreadNotQueued is returned by RemoveThread for threads that do not
	// occupy a bucket of the queue.
	ErrThreadNotQueued = &kernel.Error{Module: "sched", Message: "thread is not queued on this run queue"}

	// ErrThreadNotExited is returned by ReapThread for threads that are still
	// alive.
	ErrThreadNotExited = &kernel.Error{Module: "sched", Message: "thread has not exited"}

	// ErrWorkQueueFull is returned by AddWork when the ring has no free slot.
	ErrWorkQueueFull = &kernel.Error{Module: "sched", Message: "work queue is full"}

	// ErrNoAddressSpace is returned when a user process is requested without
	// an address space and no allocator is registered.
	ErrNoAddressSpace = &kernel.Error{Module: "sched", Message: "no address space available for user process"}

	// ErrNoRunningThread is returned when an operation needs the running
	// thread of a queue that has not been started.
	ErrNoRunningThread = &kernel.Error{Module: "sched", Message: "run queue has no running thread"}

	errThreadQueued       = &kernel.Error{Module: "sched", Message: "thread is already queued"}
	errRemoveRunning      = &kernel.Error{Module: "sched", Message: "cannot remove the running thread"}
	errScheduleReentry    = &kernel.Error{Module: "sched", Message: "schedule re-entered on the same run queue"}
	errInvalidTransition  = &kernel.Error{Module: "sched", Message: "invalid thread status transition"}
	errNoIdleThread       = &kernel.Error{Module: "sched", Message: "run queue has no idle thread"}
	errStartReturned      = &kernel.Error{Module: "sched", Message: "jump to the first thread returned"}
	errIdleSleep          = &kernel.Error{Module: "sched", Message: "the idle thread cannot leave the running state"}
	errForeignThread      = &kernel.Error{Module: "sched", Message: "thread belongs to a different run queue"}
	errRunListCorrupted   = &kernel.Error{Module: "sched", Message: "run list bitmap does not match its buckets"}
	errNotRunnable        = &kernel.Error{Module: "sched", Message: "scheduling candidate is not runnable"}
	errNilEntry           = &kernel.Error{Module: "sched", Message: "thread entry point is nil"}
	errNotWorkDaemon      = &kernel.Error{Module: "sched", Message: "work queue loop must run on its daemon thread"}
)

// ThreadID uniquely identifies a thread.
type ThreadID uint64

// ProcessID uniquely identifies a process. The kernel pseudo-process always
// has id 0.
type ProcessID uint64

var (
	nextThreadID  uint64
	nextProcessID uint64
)

func allocThreadID() ThreadID {
	return ThreadID(atomic.AddUint64(&nextThreadID, 1))
}

func allocProcessID() ProcessID {
	return ProcessID(atomic.AddUint64(&nextProcessID, 1))
}

// EntryPC returns the address of the first instruction of fn so it can be
// used as the entry point of a new thread context. fn must be a top-level
// function; closures lose their captured state.
func EntryPC(fn func()) uintptr {
	if fn == nil {
		panic(errNilEntry)
	}
	return **(**uintptr)(unsafe.Pointer(&fn))
}
