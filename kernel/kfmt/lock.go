package kfmt

import (
	"kernos/kernel/irq"
	"sync/atomic"
)

// panicLockAttempts bounds the number of attempts Panic makes to grab the
// output lock before printing anyway.
const panicLockAttempts = 1 << 20

// outLock serializes output from all cores. It masks local interrupts while
// held so interrupt handlers can log without deadlocking against the code
// they interrupted.
var outLock outputLock

type outputLock struct {
	state uint32
}

func (l *outputLock) acquire() irq.State {
	state := irq.SaveAndDisableLocal()
	for !atomic.CompareAndSwapUint32(&l.state, 0, 1) {
	}
	return state
}

// acquireBounded behaves like acquire but gives up after maxAttempts. The
// returned flag is false if the lock could not be obtained.
func (l *outputLock) acquireBounded(maxAttempts int) (irq.State, bool) {
	state := irq.SaveAndDisableLocal()
	for i := 0; i < maxAttempts; i++ {
		if atomic.CompareAndSwapUint32(&l.state, 0, 1) {
			return state, true
		}
	}
	return state, false
}

func (l *outputLock) release(state irq.State) {
	atomic.StoreUint32(&l.state, 0)
	irq.RestoreLocal(state)
}
