package helpers

import "sync"

// KeyedMutex hands out one mutex per key. Entries are dropped once nobody holds
// or waits for them.
type KeyedMutex struct {
	mu    sync.Mutex
	locks map[string]*keyedEntry
}

type keyedEntry struct {
	mu   sync.Mutex
	refs int
}

func NewKeyedMutex() *KeyedMutex {
	return &KeyedMutex{locks: map[string]*keyedEntry{}}
}

// Lock blocks until key is free and returns the matching unlock function.
func (k *KeyedMutex) Lock(key string) func() {
	k.mu.Lock()
	e, ok := k.locks[key]
	if !ok {
		e = &keyedEntry{}
		k.locks[key] = e
	}
	e.refs++
	k.mu.Unlock()

	e.mu.Lock()
	return func() {
		e.mu.Unlock()
		k.mu.Lock()
		e.refs--
		if e.refs == 0 {
			delete(k.locks, key)
		}
		k.mu.Unlock()
	}
}

// TryLock acquires key only if it is free.
func (k *KeyedMutex) TryLock(key string) (func(), bool) {
	k.mu.Lock()
	defer k.mu.Unlock()
	if _, ok := k.locks[key]; ok {
		return nil, false
	}
	e := &keyedEntry{refs: 1}
	e.mu.Lock()
	k.locks[key] = e
	return func() {
		e.mu.Unlock()
		k.mu.Lock()
		e.refs--
		if e.refs == 0 {
			delete(k.locks, key)
		}
		k.mu.Unlock()
	}, true
}

// Held reports whether key is locked or waited for, without acquiring it.
func (k *KeyedMutex) Held(key string) bool {
	k.mu.Lock()
	defer k.mu.Unlock()
	_, ok := k.locks[key]
	return ok
}

func (k *KeyedMutex) Len() int {
	k.mu.Lock()
	defer k.mu.Unlock()
	return len(k.locks)
}
