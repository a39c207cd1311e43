package task

import (
	"kernos/kernel"
	"kernos/kernel/arch"
	"kernos/kernel/irq"
	"kernos/kernel/sync"
	"sync/atomic"
)

// RunQueue is the scheduler of a single core. Threads live in two epoch
// lists: run holds threads that still have to get their turn in the current
// epoch and expired holds the ones that already had it. The thread executing
// on the core is linked into neither and is tracked through running.
//
// Across priorities selection is strict; within a priority threads rotate in
// FIFO order and a thread cannot run twice in an epoch while a sibling is
// still waiting in the run list.
//
// Strictness holds across epochs too: when an expired bucket outranks the
// best run bucket it is adopted into the run list before the epoch ends. A
// preempted high priority thread therefore never waits behind lower ones, but
// lower priorities have no starvation bound while higher ones stay runnable.
type RunQueue struct {
	lock sync.IRQSpinlock

	backend arch.CPUContext
	cfg     Config

	lists        [2]runListSet
	run, expired *runListSet
	pool         runListPool

	idle    *Thread
	running *Thread

	numberOfThreads       uint64
	shouldRecheckPriority bool
	shouldReschedule      bool

	// scheduling is set while Schedule runs on this queue.
	scheduling uint32
}

// NewRunQueue returns a run queue that hands off threads through backend.
// Init must be invoked before the queue is used.
func NewRunQueue(backend arch.CPUContext, cfg Config) *RunQueue {
	rq := &RunQueue{backend: backend, cfg: cfg}
	rq.run, rq.expired = &rq.lists[0], &rq.lists[1]
	return rq
}

// Init carves out the bucket slab of the queue.
func (rq *RunQueue) Init() *kernel.Error {
	rq.lock.Acquire()
	defer rq.lock.Release()

	if err := rq.pool.init(rq.cfg.RunListPool); err != nil {
		log.Errorf("run queue init: %s", err)
		return err
	}
	return nil
}

// SetIdleThread registers the thread that runs when nothing else can. The
// idle thread never occupies a bucket.
func (rq *RunQueue) SetIdleThread(t *Thread) {
	rq.lock.Acquire()
	t.lock.Acquire()

	t.setStatus(StatusRunning)
	t.home = rq
	t.timeSlice = rq.cfg.MinTimeSlice
	rq.idle = t
	rq.numberOfThreads++

	t.lock.Release()
	rq.lock.Release()
}

// Start selects the first thread of the core and jumps into it. Start never
// returns.
func (rq *RunQueue) Start() {
	state := irq.SaveAndDisableLocal()
	rq.lock.Acquire()

	next := rq.pickNext()
	if next == nil {
		rq.lock.Release()
		irq.RestoreLocal(state)
		panic(errNoIdleThread)
	}
	rq.running = next

	next.lock.Acquire()
	ctx := next.context
	next.lock.Release()
	rq.lock.Release()

	log.Debugf("starting with thread %d", uint64(next.id))
	rq.backend.JumpToContext(ctx, true)

	irq.RestoreLocal(state)
	panic(errStartReturned)
}

// Tick consumes one tick of the running thread's quantum and flags the queue
// for rescheduling when it runs out or when a higher priority thread is
// pending.
func (rq *RunQueue) Tick() {
	rq.lock.Acquire()
	if t := rq.running; t != nil {
		if t.timeSlice > 0 {
			t.timeSlice--
		}
		if t.timeSlice == 0 || rq.shouldRecheckPriority {
			rq.shouldReschedule = true
		}
	}
	rq.lock.Release()
}

// ShouldCallSchedule reports whether an interrupt epilogue should call
// Schedule.
func (rq *RunQueue) ShouldCallSchedule() bool {
	rq.lock.Acquire()
	should := rq.shouldReschedule
	rq.lock.Release()
	return should
}

// Running returns the thread executing on the core.
func (rq *RunQueue) Running() *Thread {
	rq.lock.Acquire()
	t := rq.running
	rq.lock.Release()
	return t
}

// IdleThread returns the registered idle thread.
func (rq *RunQueue) IdleThread() *Thread {
	rq.lock.Acquire()
	t := rq.idle
	rq.lock.Release()
	return t
}

// NumberOfThreads returns the number of runnable threads owned by the queue,
// counting the idle and the running thread.
func (rq *RunQueue) NumberOfThreads() uint64 {
	rq.lock.Acquire()
	n := rq.numberOfThreads
	rq.lock.Release()
	return n
}

// AddThread queues t on this core.
func (rq *RunQueue) AddThread(t *Thread) *kernel.Error {
	_, err := rq.insert(t, false)
	return err
}

// AssignThread queues t on this core on behalf of another core. It returns
// true when t outranks the running thread; the caller must then send a
// reschedule IPI to the core owning the queue.
func (rq *RunQueue) AssignThread(t *Thread) (bool, *kernel.Error) {
	return rq.insert(t, true)
}

func (rq *RunQueue) insert(t *Thread, remote bool) (bool, *kernel.Error) {
	rq.lock.Acquire()
	defer rq.lock.Release()

	t.lock.Acquire()
	defer t.lock.Release()

	if t.home != nil && t.home != rq {
		panic(errForeignThread)
	}

	// The thread is still executing here; its next sleep returns at once.
	if t == rq.running {
		if t.status == StatusRunning {
			t.wakePending = true
		}
		return false, nil
	}

	if t.bucket != nil {
		panic(errThreadQueued)
	}
	if !CanTransition(t.status, StatusRunning) {
		log.Errorf("thread %d cannot be queued while %s", uint64(t.id), t.status.String())
		panic(errInvalidTransition)
	}

	t.timeSlice = rq.cfg.timeSlice(t.priority, rq.numberOfThreads+1)
	if err := rq.run.push(t, &rq.pool); err != nil {
		log.Warnf("cannot queue thread %d at priority %d: %s", uint64(t.id), t.priority, err)
		return false, err
	}

	t.setStatus(StatusRunning)
	t.home = rq
	rq.numberOfThreads++

	higher := rq.running != nil && t.priority < rq.running.priority
	if higher {
		rq.shouldRecheckPriority = true
		if remote {
			rq.shouldReschedule = true
		}
	}
	return higher, nil
}

// RemoveThread unlinks a queued thread from this core and parks it in
// StatusWaiting so a later AddThread can queue it again. Removing the running
// thread is fatal; it must call SleepCurrentThread instead.
func (rq *RunQueue) RemoveThread(t *Thread) *kernel.Error {
	rq.lock.Acquire()
	defer rq.lock.Release()

	if t == rq.running {
		panic(errRemoveRunning)
	}

	t.lock.Acquire()
	defer t.lock.Release()

	switch {
	case rq.run.contains(t):
		rq.run.remove(t, &rq.pool)
	case rq.expired.contains(t):
		rq.expired.remove(t, &rq.pool)
	default:
		return ErrThreadNotQueued
	}

	t.setStatus(StatusWaiting)
	rq.numberOfThreads--
	return nil
}

// SleepCurrentThread moves the running thread to status and schedules another
// thread. It returns once the thread is queued again and switched back in. A
// thread going to StatusWaiting returns at once if a wake-up arrived before it
// could leave the core.
func (rq *RunQueue) SleepCurrentThread(status Status) {
	state := irq.SaveAndDisableLocal()
	rq.enterSchedule()
	rq.lock.Acquire()

	cur := rq.running
	if cur == nil {
		panic(ErrNoRunningThread)
	}
	if cur == rq.idle {
		panic(errIdleSleep)
	}

	cur.lock.Acquire()
	if status == StatusWaiting && cur.wakePending {
		cur.wakePending = false
		cur.lock.Release()
		rq.lock.Release()
		rq.leaveSchedule()
		irq.RestoreLocal(state)
		return
	}

	cur.setStatus(status)
	rq.numberOfThreads--
	rq.scheduleLocked(cur, nil)
	irq.RestoreLocal(state)
}

// CopyRunningThreadData returns a detached copy of the running thread for
// fork-like duplication. It fails with ErrThreadBusy instead of spinning on
// the running thread's lock.
func (rq *RunQueue) CopyRunningThreadData() (*Thread, *kernel.Error) {
	rq.lock.Acquire()
	defer rq.lock.Release()

	cur := rq.running
	if cur == nil {
		return nil, ErrNoRunningThread
	}
	if !cur.lock.TryToAcquire() {
		return nil, ErrThreadBusy
	}
	copied := cur.copyData()
	cur.lock.Release()

	return copied, nil
}

// Schedule picks the next thread of the core and hands off to it. current is
// the register state captured by an interrupt entry or nil for a voluntary
// call. Schedule returns without any context operation when the running
// thread is picked again.
func (rq *RunQueue) Schedule(current arch.ContextData) {
	state := irq.SaveAndDisableLocal()
	rq.enterSchedule()
	rq.lock.Acquire()

	cur := rq.running
	if cur == nil {
		panic(ErrNoRunningThread)
	}
	cur.lock.Acquire()

	rq.scheduleLocked(cur, current)
	irq.RestoreLocal(state)
}

func (rq *RunQueue) enterSchedule() {
	if !atomic.CompareAndSwapUint32(&rq.scheduling, 0, 1) {
		panic(errScheduleReentry)
	}
}

func (rq *RunQueue) leaveSchedule() {
	atomic.StoreUint32(&rq.scheduling, 0)
}

// scheduleLocked runs the scheduling algorithm. It is entered with interrupts
// masked while holding rq.lock and cur.lock and releases both before the
// hand-off.
func (rq *RunQueue) scheduleLocked(cur *Thread, current arch.ContextData) {
	rq.shouldReschedule = false
	rq.shouldRecheckPriority = false

	if cur == rq.idle {
		cur.timeSlice = rq.cfg.MinTimeSlice
	} else if cur.status == StatusRunning {
		cur.timeSlice = rq.cfg.timeSlice(cur.priority, rq.numberOfThreads)
		if err := rq.expired.push(cur, &rq.pool); err != nil {
			panic(err)
		}
	}

	next := rq.pickNext()
	if next == nil {
		panic(errNoIdleThread)
	}

	if sameTask(next, cur) {
		cur.lock.Release()
		rq.lock.Release()
		rq.leaveSchedule()
		return
	}

	next.lock.Acquire()
	if next.status != StatusRunning {
		panic(errNotRunnable)
	}
	rq.running = next

	if next.process != cur.process {
		if space := next.process.space; space != nil {
			err := space.CloneKernelEntries()
			if err == nil {
				err = space.Activate()
			}
			if err != nil {
				log.Errorf("cannot switch to the address space of process %d: %s", uint64(next.process.id), err)
				panic(err)
			}
		}
	}

	outCtx, nextCtx := cur.context, next.context
	if current != nil {
		outCtx.Snapshot(current)
	}

	log.Debugf("switch %d -> %d", uint64(cur.id), uint64(next.id))

	next.lock.Release()
	cur.lock.Release()
	rq.lock.Release()
	rq.leaveSchedule()

	if current != nil {
		rq.backend.JumpToContext(nextCtx, true)
		return
	}
	rq.backend.SwitchContext(outCtx, nextCtx, true)
}

// pickNext dequeues the best runnable thread or returns the idle thread when
// both epoch lists are empty. Expired buckets outranking everything in the
// run list are promoted first; an empty run list starts a new epoch.
func (rq *RunQueue) pickNext() *Thread {
	runPrio, runOK := rq.run.best()
	expPrio, expOK := rq.expired.best()

	switch {
	case !runOK && expOK:
		rq.run, rq.expired = rq.expired, rq.run
	case runOK && expOK && expPrio < runPrio:
		rq.run.adopt(rq.expired, expPrio, &rq.pool)
	}

	if t := rq.run.popBest(&rq.pool); t != nil {
		return t
	}
	return rq.idle
}
