package task

import (
	"kernos/kernel"
	"kernos/kernel/sync"
)

// Waker makes a sleeping thread runnable again.
type Waker interface {
	Wake(t *Thread) *kernel.Error
}

// HomeWaker re-queues threads on their home run queue without notifying the
// core. It is enough on a single core system; SMP systems wake through a
// waker that also sends a reschedule IPI.
type HomeWaker struct{}

// Wake implements Waker.
func (HomeWaker) Wake(t *Thread) *kernel.Error {
	home := t.Home()
	if home == nil {
		return ErrThreadNotQueued
	}
	return home.AddThread(t)
}

// WaitQueue is a FIFO of threads sleeping on a common condition.
type WaitQueue struct {
	lock       sync.IRQSpinlock
	head, tail *Thread
	length     int
}

// Sleep parks the thread running on rq until another thread wakes it.
func (wq *WaitQueue) Sleep(rq *RunQueue) *kernel.Error {
	cur := rq.Running()
	if cur == nil {
		return ErrNoRunningThread
	}

	wq.lock.Acquire()
	cur.waitNext = nil
	if wq.tail != nil {
		wq.tail.waitNext = cur
	} else {
		wq.head = cur
	}
	wq.tail = cur
	wq.length++
	wq.lock.Release()

	rq.SleepCurrentThread(StatusWaiting)
	return nil
}

// WakeOne wakes the longest sleeping thread. It returns false if nobody was
// waiting. If the waker fails the thread goes back to the head of the queue
// and the error is returned.
func (wq *WaitQueue) WakeOne(w Waker) (bool, *kernel.Error) {
	t := wq.pop()
	if t == nil {
		return false, nil
	}

	if err := w.Wake(t); err != nil {
		log.Warnf("wake thread %d: %s", uint64(t.id), err)
		wq.pushFront(t)
		return false, err
	}
	return true, nil
}

// WakeAll wakes every sleeping thread and returns how many were woken. It
// stops at the first thread that cannot be woken.
func (wq *WaitQueue) WakeAll(w Waker) (int, *kernel.Error) {
	var woken int
	for {
		ok, err := wq.WakeOne(w)
		if err != nil {
			return woken, err
		}
		if !ok {
			return woken, nil
		}
		woken++
	}
}

// Len returns the number of sleeping threads.
func (wq *WaitQueue) Len() int {
	wq.lock.Acquire()
	n := wq.length
	wq.lock.Release()
	return n
}

func (wq *WaitQueue) pop() *Thread {
	wq.lock.Acquire()
	defer wq.lock.Release()

	t := wq.head
	if t == nil {
		return nil
	}
	wq.head = t.waitNext
	if wq.head == nil {
		wq.tail = nil
	}
	t.waitNext = nil
	wq.length--
	return t
}

func (wq *WaitQueue) pushFront(t *Thread) {
	wq.lock.Acquire()
	t.waitNext = wq.head
	wq.head = t
	if wq.tail == nil {
		wq.tail = t
	}
	wq.length++
	wq.lock.Release()
}
