package ingestion

import (
	"sync"

	"github.com/poiesic/passage/core"
)

// docLocks hands out one mutex per document. Entries are dropped once no
// goroutine holds or waits for them.
type docLocks struct {
	mu    sync.Mutex
	locks map[core.ID]*docLock
}

type docLock struct {
	mu   sync.Mutex
	refs int
}

func newDocLocks() *docLocks {
	return &docLocks{locks: make(map[core.ID]*docLock)}
}

// lock blocks until id is free and returns the matching unlock.
func (l *docLocks) lock(id core.ID) func() {
	l.mu.Lock()
	dl, ok := l.locks[id]
	if !ok {
		dl = &docLock{}
		l.locks[id] = dl
	}
	dl.refs++
	l.mu.Unlock()

	dl.mu.Lock()
	return func() {
		dl.mu.Unlock()
		l.mu.Lock()
		dl.refs--
		if dl.refs == 0 {
			delete(l.locks, id)
		}
		l.mu.Unlock()
	}
}

func (l *docLocks) len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.locks)
}
