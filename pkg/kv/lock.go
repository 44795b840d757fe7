package kv

import "sync"

// Locker hands out one mutex per key so that writers of the same key
// serialize while writers of different keys proceed independently.
// Idle mutexes are released.
type Locker struct {
	mu    sync.Mutex
	locks map[string]*keyLock
}

type keyLock struct {
	mu   sync.Mutex
	refs int
}

// Lock blocks until key is free and returns its unlock function.
func (l *Locker) Lock(key Key) (unlock func()) {
	name := key.String()

	l.mu.Lock()
	if l.locks == nil {
		l.locks = make(map[string]*keyLock)
	}
	kl, ok := l.locks[name]
	if !ok {
		kl = &keyLock{}
		l.locks[name] = kl
	}
	kl.refs++
	l.mu.Unlock()

	kl.mu.Lock()
	return func() {
		kl.mu.Unlock()
		l.mu.Lock()
		kl.refs--
		if kl.refs == 0 {
			delete(l.locks, name)
		}
		l.mu.Unlock()
	}
}
