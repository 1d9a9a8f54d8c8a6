package orchestrator

import "sync"

// keyLock serializes work per string key. Locks are created on first use
// and never discarded; the key space (broker/instrument pairs) is small
// and bounded by configuration.
type keyLock struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func newKeyLock() *keyLock {
	return &keyLock{locks: make(map[string]*sync.Mutex)}
}

// Acquire blocks until the lock for key is held and returns its release
// function. Contending callers wait; acquisition never fails.
func (k *keyLock) Acquire(key string) func() {
	k.mu.Lock()
	l, ok := k.locks[key]
	if !ok {
		l = &sync.Mutex{}
		k.locks[key] = l
	}
	k.mu.Unlock()

	l.Lock()
	return l.Unlock
}
