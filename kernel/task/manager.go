package task

import (
	"kernos/kernel"
	"kernos/kernel/arch"
	"kernos/kernel/mm"
	"kernos/kernel/sync"
)

// AddressSpaceAllocatorFn returns a fresh address space for a user process.
type AddressSpaceAllocatorFn func() (AddressSpace, *kernel.Error)

var addressSpaceAllocator AddressSpaceAllocatorFn

// SetAddressSpaceAllocator registers the function used by CreateUserProcess
// when no address space is supplied.
func SetAddressSpaceAllocator(fn AddressSpaceAllocatorFn) {
	addressSpaceAllocator = fn
}

// Manager creates and destroys threads and processes.
type Manager struct {
	backend arch.CPUContext
	cfg     Config

	kernelProcess *Process
	processes     *sync.Mutex[map[ProcessID]*Process]
}

// NewManager returns a manager that builds contexts through backend. The
// kernel pseudo-process (pid 0, no address space) is created immediately.
func NewManager(backend arch.CPUContext, cfg Config) *Manager {
	m := &Manager{
		backend:       backend,
		cfg:           cfg,
		kernelProcess: newProcess(0, nil),
	}
	m.processes = sync.NewMutex(map[ProcessID]*Process{0: m.kernelProcess})
	return m
}

// Config returns the scheduler configuration.
func (m *Manager) Config() Config { return m.cfg }

// KernelProcess returns the pseudo-process owning all kernel threads.
func (m *Manager) KernelProcess() *Process { return m.kernelProcess }

// Process looks up a live process.
func (m *Manager) Process(id ProcessID) (*Process, bool) {
	g := m.processes.Lock()
	defer g.Unlock()
	p, ok := (*g.Get())[id]
	return p, ok
}

// ProcessCount returns the number of live processes including the kernel
// pseudo-process.
func (m *Manager) ProcessCount() int {
	g := m.processes.Lock()
	defer g.Unlock()
	return len(*g.Get())
}

// NewRunQueue returns an initialized run queue sharing the manager's backend
// and configuration.
func (m *Manager) NewRunQueue() (*RunQueue, *kernel.Error) {
	rq := NewRunQueue(m.backend, m.cfg)
	if err := rq.Init(); err != nil {
		return nil, err
	}
	return rq, nil
}

// CreateKernelThread builds a kernel thread that starts executing at entry.
// The thread is left in StatusStopping; it runs once it is added to a run
// queue.
func (m *Manager) CreateKernelThread(entry uintptr, priority uint8) (*Thread, *kernel.Error) {
	t, err := m.newThread(m.kernelProcess, priority)
	if err != nil {
		return nil, err
	}

	t.context = m.backend.CreateContextDataForSystem(entry, t.kernelStack+uintptr(t.kernelStackSize))
	m.kernelProcess.addThread(t)

	log.Debugf("kernel thread %d created (priority %d)", uint64(t.id), priority)
	return t, nil
}

// CreateUserProcess creates a process running in space with a single thread
// entering user mode at entry with the given user stack and arguments. When
// space is nil an address space is requested from the registered allocator.
func (m *Manager) CreateUserProcess(space AddressSpace, entry, userStack uintptr, args []uint64, priority uint8) (*Thread, *kernel.Error) {
	if space == nil {
		if addressSpaceAllocator == nil {
			return nil, ErrNoAddressSpace
		}

		var err *kernel.Error
		if space, err = addressSpaceAllocator(); err != nil {
			return nil, err
		}
	}
	if err := space.CloneKernelEntries(); err != nil {
		return nil, err
	}

	p := newProcess(allocProcessID(), space)
	t, err := m.newThread(p, priority)
	if err != nil {
		return nil, err
	}

	t.context = m.backend.CreateContextDataForUser(entry, userStack, args)
	p.addThread(t)

	g := m.processes.Lock()
	(*g.Get())[p.id] = p
	g.Unlock()

	log.Infof("process %d created with thread %d", uint64(p.id), uint64(t.id))
	return t, nil
}

// ForkRunningThread duplicates the thread running on rq into a new thread of
// the same process that starts at entry on its own kernel stack. Only the
// privilege and interrupt state of the running thread carry over.
func (m *Manager) ForkRunningThread(rq *RunQueue, entry uintptr) (*Thread, *kernel.Error) {
	t, err := rq.CopyRunningThreadData()
	if err != nil {
		return nil, err
	}

	if err = m.allocStack(t); err != nil {
		return nil, err
	}
	t.id = allocThreadID()
	t.context = m.backend.ForkContextData(t.context, entry, t.kernelStack+uintptr(t.kernelStackSize))
	t.process.addThread(t)

	return t, nil
}

// ExitCurrentThread terminates the thread running on rq. The thread stays in
// StatusExiting until ReapThread releases it.
func (m *Manager) ExitCurrentThread(rq *RunQueue) {
	rq.SleepCurrentThread(StatusExiting)
}

// ReapThread releases an exited (or never started) thread. When the last
// thread of a user process is reaped the process is destroyed.
func (m *Manager) ReapThread(t *Thread) *kernel.Error {
	if home := t.Home(); home != nil && home.Running() == t {
		return ErrThreadBusy
	}

	t.lock.Acquire()
	if t.status != StatusExiting && t.status != StatusStopping {
		t.lock.Release()
		return ErrThreadNotExited
	}
	t.setStatus(StatusDeleting)
	t.lock.Release()

	var freeErr *kernel.Error
	if t.kernelStack != 0 {
		freeErr = mm.FreeKernelStack(t.kernelStack, t.kernelStackSize)
		if freeErr != nil {
			log.Warnf("thread %d: cannot free kernel stack: %s", uint64(t.id), freeErr)
		}
		t.kernelStack = 0
	}

	p := t.process
	if left := p.removeThread(t); left == 0 && p != m.kernelProcess {
		g := m.processes.Lock()
		delete(*g.Get(), p.id)
		g.Unlock()
		log.Infof("process %d destroyed", uint64(p.id))
	}

	return freeErr
}

func (m *Manager) newThread(p *Process, priority uint8) (*Thread, *kernel.Error) {
	t := &Thread{
		id:       allocThreadID(),
		process:  p,
		priority: priority,
		status:   StatusStopping,
	}
	if err := m.allocStack(t); err != nil {
		return nil, err
	}
	return t, nil
}

func (m *Manager) allocStack(t *Thread) *kernel.Error {
	stack, err := mm.AllocKernelStack(m.cfg.KernelStackSize)
	if err != nil {
		log.Errorf("cannot allocate kernel stack: %s", err)
		return err
	}
	t.kernelStack, t.kernelStackSize = stack, m.cfg.KernelStackSize
	return nil
}
