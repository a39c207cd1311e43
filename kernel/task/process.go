package task

import (
	"kernos/kernel"
	"kernos/kernel/sync"
)

// AddressSpace is the memory collaborator a process runs in. Both methods are
// called by the scheduler with interrupts disabled.
type AddressSpace interface {
	// CloneKernelEntries copies any kernel-shared top level page table
	// entries that are missing from the address space.
	CloneKernelEntries() *kernel.Error

	// Activate makes the address space the active one on this core.
	Activate() *kernel.Error
}

// Process groups threads sharing an address space.
type Process struct {
	id      ProcessID
	space   AddressSpace
	threads *sync.Mutex[[]*Thread]
}

func newProcess(id ProcessID, space AddressSpace) *Process {
	return &Process{
		id:      id,
		space:   space,
		threads: sync.NewMutex[[]*Thread](nil),
	}
}

// ID returns the process id.
func (p *Process) ID() ProcessID { return p.id }

// AddressSpace returns the address space of the process or nil for the
// kernel pseudo-process.
func (p *Process) AddressSpace() AddressSpace { return p.space }

// ThreadCount returns the number of threads owned by the process.
func (p *Process) ThreadCount() int {
	g := p.threads.Lock()
	defer g.Unlock()
	return len(*g.Get())
}

func (p *Process) addThread(t *Thread) {
	g := p.threads.Lock()
	*g.Get() = append(*g.Get(), t)
	g.Unlock()
}

// removeThread detaches t and returns the number of threads left.
func (p *Process) removeThread(t *Thread) int {
	g := p.threads.Lock()
	defer g.Unlock()

	list := *g.Get()
	for i, cur := range list {
		if cur == t {
			list[i] = list[len(list)-1]
			list[len(list)-1] = nil
			list = list[:len(list)-1]
			break
		}
	}
	*g.Get() = list
	return len(list)
}
