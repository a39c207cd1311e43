package sync

import (
	"bytes"
	"kernos/kernel/kfmt"
	"runtime"
	"sync"
	"testing"
	"time"
)

func TestSpinlock(t *testing.T) {
	// Substitute the yieldFn with runtime.Gosched to avoid deadlocks while testing
	defer func(origYieldFn func()) { yieldFn = origYieldFn }(yieldFn)
	yieldFn = runtime.Gosched

	var (
		sl         Spinlock
		wg         sync.WaitGroup
		numWorkers = 10
		counter    int
	)

	sl.Acquire()

	if sl.TryToAcquire() != false {
		t.Error("expected TryToAcquire to return false when lock is held")
	}

	if sl.TryToAcquireWeak() != false {
		t.Error("expected TryToAcquireWeak to return false when lock is held")
	}

	wg.Add(numWorkers)
	for i := 0; i < numWorkers; i++ {
		go func(worker int) {
			for j := 0; j < 100; j++ {
				sl.Acquire()
				counter++
				sl.Release()
			}
			wg.Done()
		}(i)
	}

	<-time.After(100 * time.Millisecond)
	sl.Release()
	wg.Wait()

	if exp := numWorkers * 100; counter != exp {
		t.Fatalf("expected counter to be %d; got %d", exp, counter)
	}

	if sl.Locked() {
		t.Fatal("expected lock to be released")
	}

	if !sl.TryToAcquireWeak() {
		t.Fatal("expected TryToAcquireWeak to succeed on a free lock")
	}
	sl.Release()
}

func TestSpinlockDeadlockWarning(t *testing.T) {
	defer func(origYieldFn func()) { yieldFn = origYieldFn }(yieldFn)
	defer func(orig uint64) { spinWarnThreshold = orig }(spinWarnThreshold)
	defer kfmt.SetOutputSink(nil)

	var (
		buf      bytes.Buffer
		sl       Spinlock
		attempts int
	)
	kfmt.SetOutputSink(&buf)
	SetSpinWarnThreshold(4)
	SetSpinWarnThreshold(0)

	// Release the lock from the yield hook once enough attempts have
	// been made to trigger the first two warnings.
	yieldFn = func() {
		if attempts++; attempts == 10 {
			sl.Release()
		}
	}

	sl.Acquire()
	sl.Acquire()
	sl.Release()

	if got := bytes.Count(buf.Bytes(), []byte("possible deadlock")); got != 2 {
		t.Fatalf("expected 2 deadlock warnings (at 4 and 8 attempts); got %d:\n%s", got, buf.String())
	}
}
