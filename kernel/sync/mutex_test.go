package sync

import (
	"runtime"
	"sync"
	"testing"
)

func TestMutex(t *testing.T) {
	defer func(origYieldFn func()) { yieldFn = origYieldFn }(yieldFn)
	yieldFn = runtime.Gosched

	var (
		m          = NewMutex([]int{})
		wg         sync.WaitGroup
		numWorkers = 4
	)

	wg.Add(numWorkers)
	for i := 0; i < numWorkers; i++ {
		go func(worker int) {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				g := m.Lock()
				*g.Get() = append(*g.Get(), worker)
				g.Unlock()
			}
		}(i)
	}
	wg.Wait()

	g := m.Lock()
	if got, exp := len(*g.Get()), numWorkers*50; got != exp {
		t.Fatalf("expected %d entries; got %d", exp, got)
	}

	if _, ok := m.TryLock(); ok {
		t.Fatal("expected TryLock to fail while the mutex is held")
	}
	g.Unlock()

	g2, ok := m.TryLock()
	if !ok {
		t.Fatal("expected TryLock to succeed on a free mutex")
	}
	g2.Unlock()
}

func TestMutexZeroValue(t *testing.T) {
	var m Mutex[uint64]

	g := m.Lock()
	*g.Get() = 42
	g.Unlock()

	g = m.Lock()
	defer g.Unlock()
	if got := *g.Get(); got != 42 {
		t.Fatalf("expected guarded value to be 42; got %d", got)
	}
}
