package lock

import "sync"

// MutexLock ignores the key and serializes everything through one RWMutex.
// Useful for tests and for single-view tools.
type MutexLock struct {
	mu sync.RWMutex
}

func NewMutexLock() *MutexLock {
	return &MutexLock{}
}

func (l *MutexLock) Lock(string)    { l.mu.Lock() }
func (l *MutexLock) Unlock(string)  { l.mu.Unlock() }
func (l *MutexLock) RLock(string)   { l.mu.RLock() }
func (l *MutexLock) RUnlock(string) { l.mu.RUnlock() }
