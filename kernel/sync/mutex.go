package sync

// Mutex guards a value of type T with a plain Spinlock. The zero value holds
// the zero T and is unlocked. Mutex must not be used for data that interrupt
// handlers access.
type Mutex[T any] struct {
	lock  Spinlock
	value T
}

// Guard provides access to the value of a locked Mutex until Unlock is called.
type Guard[T any] struct {
	m *Mutex[T]
}

// NewMutex returns a Mutex that holds v.
func NewMutex[T any](v T) *Mutex[T] {
	return &Mutex[T]{value: v}
}

// Lock blocks until the mutex is held and returns a guard for its value.
func (m *Mutex[T]) Lock() Guard[T] {
	m.lock.Acquire()
	return Guard[T]{m: m}
}

// TryLock attempts to lock the mutex once. The returned guard is only valid
// if the second return value is true.
func (m *Mutex[T]) TryLock() (Guard[T], bool) {
	if !m.lock.TryToAcquire() {
		return Guard[T]{}, false
	}
	return Guard[T]{m: m}, true
}

// Get returns a pointer to the guarded value. The pointer must not be used
// after Unlock.
func (g Guard[T]) Get() *T {
	return &g.m.value
}

// Unlock releases the mutex.
func (g Guard[T]) Unlock() {
	g.m.lock.Release()
}
