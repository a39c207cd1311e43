package sync

import "kernos/kernel/irq"

// IRQSpinlock is a spinlock that keeps local interrupts disabled while held.
// Any data that is also touched by an interrupt handler must be protected by
// an IRQSpinlock; a plain Spinlock would deadlock when the handler interrupts
// the lock holder on the same core.
//
// Locks nest: each Acquire saves the interrupt state it found and the
// matching Release restores it, so releasing the innermost of several held
// locks keeps interrupts disabled.
type IRQSpinlock struct {
	lock  Spinlock
	saved irq.State
}

// Acquire disables local interrupts and then spins until the lock is held.
func (l *IRQSpinlock) Acquire() {
	state := irq.SaveAndDisableLocal()
	l.lock.Acquire()
	l.saved = state
}

// TryToAcquire attempts to acquire the lock once. On failure, the local
// interrupt state is left untouched.
func (l *IRQSpinlock) TryToAcquire() bool {
	state := irq.SaveAndDisableLocal()
	if !l.lock.TryToAcquire() {
		irq.RestoreLocal(state)
		return false
	}
	l.saved = state
	return true
}

// Release releases the lock and restores the interrupt state captured by the
// matching Acquire.
func (l *IRQSpinlock) Release() {
	state := l.saved
	l.lock.Release()
	irq.RestoreLocal(state)
}

// Locked returns true if the lock is currently held.
func (l *IRQSpinlock) Locked() bool {
	return l.lock.Locked()
}
