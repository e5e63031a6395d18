package rollout

import "sync"

// deviceLocks serializes rollout mutations per device so the
// single-active-rollout check-and-set is atomic with respect to concurrent
// schedules for the same device. Unrelated devices proceed without blocking
// each other.
type deviceLocks struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func newDeviceLocks() *deviceLocks {
	return &deviceLocks{locks: make(map[string]*sync.Mutex)}
}

func (l *deviceLocks) forDevice(key string) *sync.Mutex {
	l.mu.Lock()
	defer l.mu.Unlock()

	lock, ok := l.locks[key]
	if !ok {
		lock = &sync.Mutex{}
		l.locks[key] = lock
	}
	return lock
}
