package sync

import (
	"kernos/kernel/irq"
	"runtime"
	"sync"
	"testing"
)

func TestIRQSpinlockMasksInterrupts(t *testing.T) {
	defer irq.SetLocalController(irq.SetLocalController(&irq.VirtualController{}))

	var outer, inner IRQSpinlock

	outer.Acquire()
	if irq.LocalEnabled() {
		t.Fatal("expected interrupts to be disabled while the lock is held")
	}

	inner.Acquire()
	inner.Release()
	if irq.LocalEnabled() {
		t.Fatal("expected interrupts to stay disabled after releasing a nested lock")
	}
	if !outer.Locked() {
		t.Fatal("expected outer lock to remain held")
	}

	outer.Release()
	if !irq.LocalEnabled() {
		t.Fatal("expected interrupts to be enabled after releasing the outermost lock")
	}
}

func TestIRQSpinlockKeepsDisabledState(t *testing.T) {
	defer irq.SetLocalController(irq.SetLocalController(&irq.VirtualController{}))

	var l IRQSpinlock

	state := irq.SaveAndDisableLocal()
	l.Acquire()
	l.Release()
	if irq.LocalEnabled() {
		t.Fatal("expected Release to restore the disabled state found by Acquire")
	}
	irq.RestoreLocal(state)
}

func TestIRQSpinlockTryToAcquire(t *testing.T) {
	defer irq.SetLocalController(irq.SetLocalController(&irq.VirtualController{}))

	var l IRQSpinlock

	if !l.TryToAcquire() {
		t.Fatal("expected TryToAcquire to succeed on a free lock")
	}

	state := irq.SaveAndDisableLocal()
	irq.EnableLocal()
	if l.TryToAcquire() {
		t.Fatal("expected TryToAcquire to fail on a held lock")
	}
	if !irq.LocalEnabled() {
		t.Fatal("expected a failed TryToAcquire to leave interrupts enabled")
	}
	irq.RestoreLocal(state)

	l.Release()
}

func TestIRQSpinlockContention(t *testing.T) {
	defer func(origYieldFn func()) { yieldFn = origYieldFn }(yieldFn)
	defer irq.SetLocalController(irq.SetLocalController(&irq.VirtualController{}))
	yieldFn = runtime.Gosched

	var (
		l          IRQSpinlock
		wg         sync.WaitGroup
		numWorkers = 8
		counter    int
	)

	wg.Add(numWorkers)
	for i := 0; i < numWorkers; i++ {
		go func() {
			defer wg.Done()
			for j := 0; j < 200; j++ {
				l.Acquire()
				counter++
				l.Release()
			}
		}()
	}
	wg.Wait()

	if exp := numWorkers * 200; counter != exp {
		t.Fatalf("expected counter to be %d; got %d", exp, counter)
	}
}
