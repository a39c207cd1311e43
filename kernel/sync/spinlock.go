// Package sync provides the spinlock primitives used by the scheduler: a plain
// spinlock, an interrupt-safe spinlock and a spinlock-guarded value.
package sync

import (
	"kernos/kernel/kfmt"
	"sync/atomic"
	"unsafe"
)

var (
	// yieldFn is invoked between failed acquisition attempts. It stays nil
	// in the kernel and is set to runtime.Gosched by tests.
	yieldFn func()

	// spinWarnThreshold is the number of failed attempts after which
	// Acquire logs a possible deadlock. Subsequent warnings are emitted
	// each time the attempt count doubles.
	spinWarnThreshold = uint64(1 << 28)

	log = kfmt.NewLogger("sync")
)

// SetSpinWarnThreshold overrides the number of failed acquisition attempts
// after which a possible deadlock is reported. A zero value is ignored.
func SetSpinWarnThreshold(attempts uint64) {
	if attempts != 0 {
		spinWarnThreshold = attempts
	}
}

// Spinlock implements a lock where each task trying to acquire it busy-waits
// till the lock becomes available. The zero value is an unlocked spinlock.
type Spinlock struct {
	state uint32
}

// Acquire blocks until the lock can be acquired by the currently active task.
// Any attempt to re-acquire a lock already held by the current task will cause
// a deadlock; Acquire never gives up but keeps reporting it.
func (l *Spinlock) Acquire() {
	if atomic.CompareAndSwapUint32(&l.state, 0, 1) {
		return
	}

	var (
		attempts uint64
		nextWarn = spinWarnThreshold
	)
	for {
		// Spin on a plain load so the cache line is not bounced between
		// cores by failing CAS operations.
		if atomic.LoadUint32(&l.state) == 0 && atomic.CompareAndSwapUint32(&l.state, 0, 1) {
			return
		}

		attempts++
		if attempts == nextWarn {
			log.Warnf("possible deadlock: lock 0x%x still busy after %d attempts", uintptr(unsafe.Pointer(l)), attempts)
			if nextWarn<<1 > nextWarn {
				nextWarn <<= 1
			}
		}

		if yieldFn != nil {
			yieldFn()
		}
	}
}

// TryToAcquire attempts to acquire the lock and returns true if the lock could
// be acquired or false otherwise.
func (l *Spinlock) TryToAcquire() bool {
	return atomic.CompareAndSwapUint32(&l.state, 0, 1)
}

// TryToAcquireWeak makes a single cheap acquisition attempt. Unlike
// TryToAcquire it may fail even though the lock was free at the time of the
// call if another core raced for it.
func (l *Spinlock) TryToAcquireWeak() bool {
	return atomic.LoadUint32(&l.state) == 0 && atomic.CompareAndSwapUint32(&l.state, 0, 1)
}

// Release relinquishes a held lock allowing other tasks to acquire it. Calling
// Release while the lock is free has no effect.
func (l *Spinlock) Release() {
	atomic.StoreUint32(&l.state, 0)
}

// Locked returns true if the lock is currently held by some task.
func (l *Spinlock) Locked() bool {
	return atomic.LoadUint32(&l.state) != 0
}
