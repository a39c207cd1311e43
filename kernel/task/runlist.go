package task

import (
	"kernos/kernel"
	"math/bits"
)

// runList is a priority bucket: a FIFO of threads sharing one priority.
type runList struct {
	priority   uint8
	set        *runListSet
	head, tail *Thread

	// nextFree links unused nodes in the pool.
	nextFree *runList
}

// runListPool is a fixed slab of bucket nodes. Buckets are returned to the
// pool as soon as they become empty.
type runListPool struct {
	slab []runList
	free *runList
	used int
}

var allocSlabFn = func(n int) ([]runList, *kernel.Error) {
	if n <= 0 {
		return nil, ErrRunListPoolAlloc
	}
	return make([]runList, n), nil
}

func (p *runListPool) init(n int) *kernel.Error {
	slab, err := allocSlabFn(n)
	if err != nil {
		return err
	}

	p.slab, p.free, p.used = slab, nil, 0
	for i := len(p.slab) - 1; i >= 0; i-- {
		p.slab[i].nextFree = p.free
		p.free = &p.slab[i]
	}
	return nil
}

func (p *runListPool) get() *runList {
	b := p.free
	if b == nil {
		return nil
	}
	p.free = b.nextFree
	b.nextFree = nil
	p.used++
	return b
}

func (p *runListPool) put(b *runList) {
	*b = runList{nextFree: p.free}
	p.free = b
	p.used--
}

// runListSet is one epoch list: the buckets indexed by priority plus a bitmap
// of the non-empty ones.
type runListSet struct {
	buckets [256]*runList
	bitmap  [4]uint64
	count   int
}

// best returns the highest (numerically lowest) priority with queued threads.
func (s *runListSet) best() (uint8, bool) {
	for word, bitsSet := range s.bitmap {
		if bitsSet != 0 {
			return uint8(word<<6 + bits.TrailingZeros64(bitsSet)), true
		}
	}
	return 0, false
}

func (s *runListSet) mark(prio uint8) { s.bitmap[prio>>6] |= 1 << (prio & 63) }

func (s *runListSet) unmark(prio uint8) { s.bitmap[prio>>6] &^= 1 << (prio & 63) }

// push appends t to the bucket for its priority, taking a node from pool if
// the bucket does not exist yet.
func (s *runListSet) push(t *Thread, pool *runListPool) *kernel.Error {
	if t.bucket != nil {
		panic(errThreadQueued)
	}

	b := s.buckets[t.priority]
	if b == nil {
		if b = pool.get(); b == nil {
			return ErrRunListPoolExhausted
		}
		b.priority, b.set = t.priority, s
		s.buckets[t.priority] = b
		s.mark(t.priority)
	}

	t.prev, t.next, t.bucket = b.tail, nil, b
	if b.tail != nil {
		b.tail.next = t
	} else {
		b.head = t
	}
	b.tail = t
	s.count++
	return nil
}

// remove unlinks t from its bucket and releases the bucket once empty.
func (s *runListSet) remove(t *Thread, pool *runListPool) {
	b := t.bucket
	if t.prev != nil {
		t.prev.next = t.next
	} else {
		b.head = t.next
	}
	if t.next != nil {
		t.next.prev = t.prev
	} else {
		b.tail = t.prev
	}
	t.prev, t.next, t.bucket = nil, nil, nil
	s.count--

	if b.head == nil {
		s.buckets[b.priority] = nil
		s.unmark(b.priority)
		pool.put(b)
	}
}

// popBest dequeues the first thread of the highest priority bucket.
func (s *runListSet) popBest(pool *runListPool) *Thread {
	prio, ok := s.best()
	if !ok {
		return nil
	}

	b := s.buckets[prio]
	if b == nil || b.head == nil {
		panic(errRunListCorrupted)
	}
	t := b.head
	s.remove(t, pool)
	return t
}

// adopt moves the bucket at prio from src into s. If s already holds a bucket
// at that priority the threads are appended to it in order.
func (s *runListSet) adopt(src *runListSet, prio uint8, pool *runListPool) {
	b := src.buckets[prio]
	if b == nil {
		return
	}

	var moved int
	for t := b.head; t != nil; t = t.next {
		moved++
	}
	src.buckets[prio] = nil
	src.unmark(prio)
	src.count -= moved
	s.count += moved

	dst := s.buckets[prio]
	if dst == nil {
		b.set = s
		s.buckets[prio] = b
		s.mark(prio)
		return
	}

	for t := b.head; t != nil; t = t.next {
		t.bucket = dst
	}
	b.head.prev = dst.tail
	dst.tail.next = b.head
	dst.tail = b.tail
	pool.put(b)
}

// contains reports whether t is linked into one of the buckets of s.
func (s *runListSet) contains(t *Thread) bool {
	return t.bucket != nil && t.bucket.set == s
}
