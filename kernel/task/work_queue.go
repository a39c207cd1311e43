package task

import (
	"kernos/kernel"
	"kernos/kernel/sync"
)

// WorkQueueSize is the number of work items a core can defer before AddWork
// starts failing.
const WorkQueueSize = 64

// WorkFn is a deferred function. data is passed through unchanged.
type WorkFn func(data uintptr)

type work struct {
	fn   WorkFn
	data uintptr
}

// WorkQueue defers work from interrupt handlers to a per-core daemon thread.
// AddWork never allocates so it can be called with interrupts masked.
type WorkQueue struct {
	lock sync.IRQSpinlock
	rq   *RunQueue

	ring  [WorkQueueSize]work
	head  int
	count int

	daemon         *Thread
	daemonSleeping bool
}

// NewWorkQueue returns a work queue whose daemon runs on rq.
func NewWorkQueue(rq *RunQueue) *WorkQueue {
	return &WorkQueue{rq: rq}
}

// SetDaemon registers the thread executing Run. Work added before the daemon
// is registered stays pending until it is.
func (wq *WorkQueue) SetDaemon(t *Thread) {
	wq.lock.Acquire()
	wq.daemon = t
	wq.lock.Release()
}

// Daemon returns the registered daemon thread.
func (wq *WorkQueue) Daemon() *Thread {
	wq.lock.Acquire()
	t := wq.daemon
	wq.lock.Release()
	return t
}

// AddWork defers fn(data) to the daemon thread and wakes it if it sleeps.
func (wq *WorkQueue) AddWork(fn WorkFn, data uintptr) *kernel.Error {
	wq.lock.Acquire()
	if wq.count == WorkQueueSize {
		wq.lock.Release()
		return ErrWorkQueueFull
	}

	wq.ring[(wq.head+wq.count)%WorkQueueSize] = work{fn: fn, data: data}
	wq.count++

	daemon, wake := wq.daemon, wq.daemonSleeping
	wq.daemonSleeping = false
	wq.lock.Release()

	if wake {
		if err := wq.rq.AddThread(daemon); err != nil {
			log.Errorf("cannot wake work queue daemon: %s", err)
			return err
		}
	}
	return nil
}

// Pending returns the number of queued work items.
func (wq *WorkQueue) Pending() int {
	wq.lock.Acquire()
	n := wq.count
	wq.lock.Release()
	return n
}

// RunPending executes the queued work in FIFO order, including work added
// while it runs, and returns the number of executed items.
func (wq *WorkQueue) RunPending() int {
	var executed int
	for {
		wq.lock.Acquire()
		if wq.count == 0 {
			wq.lock.Release()
			return executed
		}

		w := wq.ring[wq.head]
		wq.ring[wq.head] = work{}
		wq.head = (wq.head + 1) % WorkQueueSize
		wq.count--
		wq.lock.Release()

		w.fn(w.data)
		executed++
	}
}

// Run is the body of the daemon thread. It never returns.
func (wq *WorkQueue) Run() {
	if wq.rq.Running() != wq.Daemon() {
		panic(errNotWorkDaemon)
	}

	for {
		wq.RunPending()
		wq.sleepIfIdle()
	}
}

// sleepIfIdle parks the daemon when no work is pending.
func (wq *WorkQueue) sleepIfIdle() {
	wq.lock.Acquire()
	if wq.count > 0 {
		wq.lock.Release()
		return
	}
	wq.daemonSleeping = true
	wq.lock.Release()

	wq.rq.SleepCurrentThread(StatusWaiting)
}
