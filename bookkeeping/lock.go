package bookkeeping

import "sync"

// keyedMutex serializes work per transaction id. Entries live only while somebody holds or waits for them.
type keyedMutex struct {
	mux   sync.Mutex
	locks map[int64]*refMutex
}

type refMutex struct {
	sync.Mutex
	refs int
}

func newKeyedMutex() *keyedMutex {
	return &keyedMutex{locks: make(map[int64]*refMutex)}
}

// Lock locks the id and returns the function unlocking it.
func (k *keyedMutex) Lock(id int64) func() {
	k.mux.Lock()
	m, ok := k.locks[id]
	if !ok {
		m = &refMutex{}
		k.locks[id] = m
	}
	m.refs++
	k.mux.Unlock()

	m.Lock()
	return func() {
		m.Unlock()
		k.mux.Lock()
		m.refs--
		if m.refs == 0 {
			delete(k.locks, id)
		}
		k.mux.Unlock()
	}
}

func (k *keyedMutex) len() int {
	k.mux.Lock()
	defer k.mux.Unlock()
	return len(k.locks)
}
