// Package smp ties the per-core schedulers together: it owns one run queue and
// one work queue per core, routes cross-core wake-ups and provides the
// scheduling epilogues invoked by the interrupt handlers.
package smp

import (
	"kernos/kernel"
	"kernos/kernel/arch"
	"kernos/kernel/irq"
	"kernos/kernel/kfmt"
	"kernos/kernel/task"
)

var (
	log = kfmt.NewLogger("smp")

	// ErrNoCores is returned when a cluster is requested without cores.
	ErrNoCores = &kernel.Error{Module: "smp", Message: "cluster needs at least one core"}

	// ErrDuplicateHardwareID is returned when two cores report the same
	// hardware id.
	ErrDuplicateHardwareID = &kernel.Error{Module: "smp", Message: "duplicate core hardware id"}

	sendIPIFn = irq.SendRescheduleIPI
)

// Core is the scheduling state of one processor.
type Core struct {
	// Index is the position of the core in the cluster.
	Index int

	// HardwareID addresses the core for inter-processor interrupts.
	HardwareID uint32

	RunQueue  *task.RunQueue
	WorkQueue *task.WorkQueue

	// Scratch receives the register state captured by interrupt entries
	// before it is handed to the scheduler.
	Scratch arch.ContextData
}

// TimerInterrupt is the epilogue of the local timer interrupt. ctx holds the
// interrupted register state. If the running thread's quantum ran out the core
// switches to the next thread and the call does not return.
func (c *Core) TimerInterrupt(ctx arch.ContextData) {
	c.RunQueue.Tick()
	c.reschedule(ctx)
}

// RescheduleInterrupt is the epilogue of the reschedule IPI. The IPI only
// exists to get the core here; the decision was already recorded by
// AssignThread on the sending core.
func (c *Core) RescheduleInterrupt(ctx arch.ContextData) {
	c.reschedule(ctx)
}

func (c *Core) reschedule(ctx arch.ContextData) {
	if c.RunQueue.ShouldCallSchedule() {
		c.RunQueue.Schedule(ctx)
	}
}

// Start enters the scheduler of the core. It never returns.
func (c *Core) Start() {
	log.Infof("core %d (hw id %d) entering scheduler", c.Index, c.HardwareID)
	c.RunQueue.Start()
}

// Cluster is the set of cores managed by the kernel.
type Cluster struct {
	mgr   *task.Manager
	cores []*Core
}

// NewCluster builds one core per hardware id with an initialized run queue
// and work queue.
func NewCluster(mgr *task.Manager, backend arch.CPUContext, hardwareIDs []uint32) (*Cluster, *kernel.Error) {
	if len(hardwareIDs) == 0 {
		return nil, ErrNoCores
	}

	c := &Cluster{mgr: mgr, cores: make([]*Core, 0, len(hardwareIDs))}
	for index, hwID := range hardwareIDs {
		if _, exists := c.CoreByHardwareID(hwID); exists {
			return nil, ErrDuplicateHardwareID
		}

		rq, err := mgr.NewRunQueue()
		if err != nil {
			return nil, err
		}

		c.cores = append(c.cores, &Core{
			Index:      index,
			HardwareID: hwID,
			RunQueue:   rq,
			WorkQueue:  task.NewWorkQueue(rq),
			Scratch:    backend.CreateContextDataForSystem(0, 0),
		})
	}

	log.Infof("cluster with %d cores", len(c.cores))
	return c, nil
}

// Cores returns the cores of the cluster.
func (c *Cluster) Cores() []*Core { return c.cores }

// CoreByHardwareID looks up the core with the given hardware id.
func (c *Cluster) CoreByHardwareID(hwID uint32) (*Core, bool) {
	for _, core := range c.cores {
		if core.HardwareID == hwID {
			return core, true
		}
	}
	return nil, false
}

// coreOf returns the core owning rq.
func (c *Cluster) coreOf(rq *task.RunQueue) *Core {
	for _, core := range c.cores {
		if core.RunQueue == rq {
			return core
		}
	}
	return nil
}

// leastLoaded returns the core with the fewest runnable threads.
func (c *Cluster) leastLoaded() *Core {
	best := c.cores[0]
	bestLoad := best.RunQueue.NumberOfThreads()
	for _, core := range c.cores[1:] {
		if load := core.RunQueue.NumberOfThreads(); load < bestLoad {
			best, bestLoad = core, load
		}
	}
	return best
}

// Wake makes t runnable. Threads that were queued before go back to their
// home core; new threads go to the least loaded core. If t outranks the
// thread running on its core, the core receives a reschedule IPI.
func (c *Cluster) Wake(t *task.Thread) *kernel.Error {
	core := c.leastLoaded()
	if home := t.Home(); home != nil {
		if core = c.coreOf(home); core == nil {
			return task.ErrThreadNotQueued
		}
	}

	higher, err := core.RunQueue.AssignThread(t)
	if err != nil {
		return err
	}

	if higher {
		if err = sendIPIFn(core.HardwareID); err != nil {
			log.Warnf("reschedule IPI to core %d failed: %s", core.Index, err)
			return err
		}
	}
	return nil
}

// SpawnIdleThreads creates and registers an idle thread starting at entry on
// every core.
func (c *Cluster) SpawnIdleThreads(entry uintptr) *kernel.Error {
	for _, core := range c.cores {
		t, err := c.mgr.CreateKernelThread(entry, task.IdlePriority)
		if err != nil {
			return err
		}
		core.RunQueue.SetIdleThread(t)
	}
	return nil
}

// SpawnWorkDaemons creates and queues the work queue daemon of every core.
// entry must end up calling Run on the core's work queue.
func (c *Cluster) SpawnWorkDaemons(entry uintptr) *kernel.Error {
	for _, core := range c.cores {
		t, err := c.mgr.CreateKernelThread(entry, task.KernelPriority(0))
		if err != nil {
			return err
		}
		core.WorkQueue.SetDaemon(t)
		if err = core.RunQueue.AddThread(t); err != nil {
			return err
		}
	}
	return nil
}
