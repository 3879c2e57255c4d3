package flow

import "sync"

// identityLocks serializes turn processing per lead identity. Two webhook
// deliveries for the same phone run one after the other; different phones run
// in parallel. Locks are never evicted, the registry grows with the number of
// distinct identities seen since startup.
type identityLocks struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func newIdentityLocks() *identityLocks {
	return &identityLocks{locks: make(map[string]*sync.Mutex)}
}

// get returns the mutex for one identity key, creating it on first use.
func (l *identityLocks) get(key string) *sync.Mutex {
	l.mu.Lock()
	defer l.mu.Unlock()
	m, ok := l.locks[key]
	if !ok {
		m = &sync.Mutex{}
		l.locks[key] = m
	}
	return m
}
